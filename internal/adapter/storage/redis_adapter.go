package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	deviceKeyPrefix   = "device:"
	checkoutKeyPrefix = "checkout:"
	checkoutLockTTL   = 5 * time.Minute
)

// RedisAdapter backs the per-device cart/address/favorites cache with
// string-keyed JSON blobs, plus the in-flight checkout guard.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func deviceKey(deviceID, key string) string {
	return deviceKeyPrefix + deviceID + ":" + key
}

func (r *RedisAdapter) Get(ctx context.Context, deviceID, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, deviceKey(deviceID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return val, nil
}

func (r *RedisAdapter) Set(ctx context.Context, deviceID, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := r.client.Set(ctx, deviceKey(deviceID, key), b, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (r *RedisAdapter) Delete(ctx context.Context, deviceID, key string) error {
	if err := r.client.Del(ctx, deviceKey(deviceID, key)).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (r *RedisAdapter) AcquireCheckoutLock(ctx context.Context, txRef string) (bool, error) {
	ok, err := r.client.SetNX(ctx, checkoutKeyPrefix+txRef, 1, checkoutLockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("acquire checkout lock: %w", err)
	}
	return ok, nil
}

func (r *RedisAdapter) ReleaseCheckoutLock(ctx context.Context, txRef string) error {
	if err := r.client.Del(ctx, checkoutKeyPrefix+txRef).Err(); err != nil {
		return fmt.Errorf("release checkout lock: %w", err)
	}
	return nil
}
