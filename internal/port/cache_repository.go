package port

import "context"

// Keys the mobile app stores per device.
const (
	KeyCart            = "cart"
	KeySavedAddress    = "savedShippingAddress"
	KeyFavorites       = "favorites"
	LegacyKeyFavorites = "favorite" // older app builds wrote the singular key
)

type DeviceCacheRepository interface {
	// Get returns the raw JSON stored under key for the device, or nil
	// when nothing has been written yet.
	Get(ctx context.Context, deviceID, key string) ([]byte, error)

	// Set replaces the value for key wholesale.
	Set(ctx context.Context, deviceID, key string, value any) error

	// Delete removes the key; deleting an absent key is not an error.
	Delete(ctx context.Context, deviceID, key string) error

	// AcquireCheckoutLock guards a tx_ref against concurrent submission,
	// returns false if a checkout for it is already in flight.
	AcquireCheckoutLock(ctx context.Context, txRef string) (bool, error)

	// ReleaseCheckoutLock frees the guard once the attempt settles.
	ReleaseCheckoutLock(ctx context.Context, txRef string) error
}
