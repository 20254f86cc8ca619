// Command seed primes a local environment: demo products and variant
// stock in MySQL, plus a demo cart and saved address in the device
// cache, so a checkout can be exercised end to end.
package main

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/davidumoru/shopcore/internal/adapter/storage"
	"github.com/davidumoru/shopcore/internal/config"
	"github.com/davidumoru/shopcore/internal/core/domain"
	"github.com/davidumoru/shopcore/internal/port"
)

const demoDeviceID = "demo-device"

type seedProduct struct {
	id       string
	name     string
	supplier string
	variants map[string]int
}

var seedProducts = []seedProduct{
	{
		id:       "sneaker-aurora",
		name:     "Aurora Running Sneaker",
		supplier: "supplier-northwind",
		variants: map[string]int{"eu42-black": 25, "eu43-black": 18, "eu42-white": 12},
	},
	{
		id:       "tee-classic",
		name:     "Classic Cotton Tee",
		supplier: "supplier-lagosmills",
		variants: map[string]int{"m-navy": 40, "l-navy": 35},
	},
	{
		id:       "bag-transit",
		name:     "Transit Day Bag",
		supplier: "supplier-northwind",
		variants: map[string]int{"onesize-olive": 9},
	},
}

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect mysql")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping mysql")
	}

	if err := storage.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	for _, p := range seedProducts {
		_, err := db.ExecContext(ctx, `
			INSERT INTO products (id, name, supplier_id) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE name = VALUES(name), supplier_id = VALUES(supplier_id)`,
			p.id, p.name, p.supplier,
		)
		if err != nil {
			log.Fatal().Err(err).Str("productId", p.id).Msg("failed to seed product")
		}
		for variantID, stock := range p.variants {
			_, err := db.ExecContext(ctx, `
				INSERT INTO variants (product_id, variant_id, stock) VALUES (?, ?, ?)
				ON DUPLICATE KEY UPDATE stock = VALUES(stock)`,
				p.id, variantID, stock,
			)
			if err != nil {
				log.Fatal().Err(err).Str("productId", p.id).Str("variantId", variantID).Msg("failed to seed variant")
			}
		}
		log.Info().Str("productId", p.id).Int("variants", len(p.variants)).Msg("seeded product")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect redis")
	}

	cache := storage.NewRedisAdapter(rdb)
	demoCart := []domain.CartItem{
		{
			ID:         "sneaker-aurora_eu42-black",
			Name:       "Aurora Running Sneaker",
			Price:      decimal.NewFromInt(24500),
			Quantity:   1,
			Stock:      25,
			Attributes: map[string]string{"size": "EU 42", "color": "black"},
		},
		{
			ID:         "tee-classic_m-navy",
			Name:       "Classic Cotton Tee",
			Price:      decimal.NewFromInt(5200),
			Quantity:   2,
			Stock:      40,
			Attributes: map[string]string{"size": "M", "color": "navy"},
		},
	}
	if err := cache.Set(ctx, demoDeviceID, port.KeyCart, demoCart); err != nil {
		log.Fatal().Err(err).Msg("failed to seed demo cart")
	}

	demoAddress := domain.ShippingAddress{
		Country:    "NG",
		Name:       "Demo Shopper",
		Street:     "14 Adetokunbo Ademola",
		City:       "Lagos",
		PostalCode: "101241",
		Phone:      "+2348012345678",
	}
	if err := cache.Set(ctx, demoDeviceID, port.KeySavedAddress, demoAddress); err != nil {
		log.Fatal().Err(err).Msg("failed to seed demo address")
	}

	log.Info().Str("deviceId", demoDeviceID).Msg("seeded demo cart and address")
}
