//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "coupons",
				"POSTGRES_PASSWORD": "coupons",
				"POSTGRES_DB":       "coupons",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Terminate(context.Background())
	})

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://coupons:coupons@%s:%s/coupons?sslmode=disable", host, port.Port())
	pool, err := NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func TestCouponRepository(t *testing.T) {
	pool := startPostgres(t)
	repo := NewCouponRepository(pool)
	ctx := context.Background()

	now := time.Now().UTC()
	past := now.Add(-time.Hour)

	cartWise, err := repo.Create(ctx, coupon.Definition{
		Code:        "CART10",
		Type:        coupon.TypeCartWise,
		Description: "10% off over 100",
		Config: &coupon.CartWiseConfig{
			Threshold:   decimal.NewFromInt(100),
			Discount:    decimal.NewFromInt(10),
			Kind:        coupon.DiscountPercentage,
			MaxDiscount: decimal.NewNullDecimal(decimal.NewFromInt(25)),
		},
		Active: true,
	})
	require.NoError(t, err)
	assert.NotZero(t, cartWise.ID)
	assert.False(t, cartWise.CreatedAt.IsZero())

	_, err = repo.Create(ctx, coupon.Definition{
		Code:      "EXPIRED",
		Type:      coupon.TypeProductWise,
		Config:    &coupon.ProductWiseConfig{ProductID: 1, Discount: decimal.NewFromInt(5), Kind: coupon.DiscountFixed},
		ExpiresAt: &past,
		Active:    true,
	})
	require.NoError(t, err)

	bxgy, err := repo.Create(ctx, coupon.Definition{
		Code: "B2G1",
		Type: coupon.TypeBxGy,
		Config: &coupon.BxGyConfig{
			BuyProducts:     []coupon.ProductQuantity{{ProductID: 1, Quantity: 2}},
			GetProducts:     []coupon.ProductQuantity{{ProductID: 3, Quantity: 1}},
			RepetitionLimit: 2,
		},
		Active: true,
	})
	require.NoError(t, err)

	t.Run("duplicate code", func(t *testing.T) {
		_, err := repo.Create(ctx, coupon.Definition{
			Code:   "CART10",
			Type:   coupon.TypeCartWise,
			Config: &coupon.CartWiseConfig{Kind: coupon.DiscountPercentage},
			Active: true,
		})
		require.ErrorIs(t, err, coupon.ErrDuplicateCode)
	})

	t.Run("find by id", func(t *testing.T) {
		got, err := repo.FindByID(ctx, cartWise.ID)
		require.NoError(t, err)
		cfg, ok := got.Config.(*coupon.CartWiseConfig)
		require.True(t, ok)
		assert.True(t, cfg.MaxDiscount.Valid)
		assert.True(t, decimal.NewFromInt(25).Equal(cfg.MaxDiscount.Decimal))

		_, err = repo.FindByID(ctx, 999999)
		require.ErrorIs(t, err, coupon.ErrNotFound)
	})

	t.Run("exists by code", func(t *testing.T) {
		ok, err := repo.ExistsByCode(ctx, "B2G1")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = repo.ExistsByCode(ctx, "NOPE")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("list valid skips expired", func(t *testing.T) {
		all, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		valid, err := repo.ListValid(ctx, now)
		require.NoError(t, err)
		require.Len(t, valid, 2)
		assert.Equal(t, "CART10", valid[0].Code)
		assert.Equal(t, "B2G1", valid[1].Code)
	})

	t.Run("update", func(t *testing.T) {
		bxgy.Active = false
		bxgy.Description = "paused"
		updated, err := repo.Update(ctx, bxgy)
		require.NoError(t, err)
		assert.False(t, updated.Active)
		assert.Equal(t, "paused", updated.Description)
		assert.Equal(t, 2, updated.Config.(*coupon.BxGyConfig).RepetitionLimit)
	})

	t.Run("upsert replaces by code", func(t *testing.T) {
		saved, err := repo.Upsert(ctx, coupon.Definition{
			Code:   "CART10",
			Type:   coupon.TypeCartWise,
			Config: &coupon.CartWiseConfig{Threshold: decimal.NewFromInt(50), Discount: decimal.NewFromInt(5), Kind: coupon.DiscountFixed},
			Active: true,
		})
		require.NoError(t, err)
		assert.Equal(t, cartWise.ID, saved.ID)
		assert.Equal(t, coupon.DiscountFixed, saved.Config.(*coupon.CartWiseConfig).Kind)
	})

	t.Run("corrupt configuration surfaces", func(t *testing.T) {
		_, err := pool.Exec(ctx, `INSERT INTO coupons (code, type, configuration) VALUES ('BROKEN', 'BXGY', '{"buyProducts": 1}')`)
		require.NoError(t, err)
		_, err = repo.List(ctx)
		require.ErrorIs(t, err, coupon.ErrInvalidConfiguration)
		_, err = pool.Exec(ctx, `DELETE FROM coupons WHERE code = 'BROKEN'`)
		require.NoError(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, bxgy.ID))
		require.ErrorIs(t, repo.Delete(ctx, bxgy.ID), coupon.ErrNotFound)
	})
}
