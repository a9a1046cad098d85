// Command seed-db applies migrations and upserts one sample coupon of each
// type. Running it twice leaves the same three coupons in place.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/storage/postgres"
)

func sampleCoupons() []coupon.Definition {
	return []coupon.Definition{
		{
			Code:        "CART10",
			Type:        coupon.TypeCartWise,
			Description: "10% off carts over 100",
			Config: &coupon.CartWiseConfig{
				Threshold: decimal.NewFromInt(100),
				Discount:  decimal.NewFromInt(10),
				Kind:      coupon.DiscountPercentage,
			},
			Active: true,
		},
		{
			Code:        "PRODUCT1-20",
			Type:        coupon.TypeProductWise,
			Description: "20% off product 1",
			Config: &coupon.ProductWiseConfig{
				ProductID: 1,
				Discount:  decimal.NewFromInt(20),
				Kind:      coupon.DiscountPercentage,
			},
			Active: true,
		},
		{
			Code:        "B2G1",
			Type:        coupon.TypeBxGy,
			Description: "Buy two of product 1 or 2, get product 3 free",
			Config: &coupon.BxGyConfig{
				BuyProducts: []coupon.ProductQuantity{
					{ProductID: 1, Quantity: 2},
					{ProductID: 2, Quantity: 2},
				},
				GetProducts:     []coupon.ProductQuantity{{ProductID: 3, Quantity: 1}},
				RepetitionLimit: 3,
			},
			Active: true,
		},
	}
}

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		if databaseURL == "" {
			databaseURL = os.Getenv("DATABASE_URL")
		}
		if databaseURL == "" {
			return errors.New("database URL is required: set -database-url or DATABASE_URL")
		}
		return run(ctx, lg, databaseURL)
	})
}

func run(ctx context.Context, lg *zap.Logger, databaseURL string) error {
	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewCouponRepository(pool)
	for _, def := range sampleCoupons() {
		if err := def.Config.Validate(); err != nil {
			return errors.Wrapf(err, "validate %s", def.Code)
		}
		saved, err := repo.Upsert(ctx, def)
		if err != nil {
			return err
		}
		lg.Info("Seeded coupon",
			zap.Int64("coupon_id", saved.ID),
			zap.String("code", saved.Code),
			zap.String("type", string(saved.Type)),
		)
	}
	lg.Info("Seed completed")
	return nil
}
