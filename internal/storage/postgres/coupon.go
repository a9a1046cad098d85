package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

const (
	couponColumns = `id, code, type, description, configuration, expiration_date,
		is_active, created_at, updated_at`

	insertCouponSQL = `INSERT INTO coupons (code, type, description, configuration, expiration_date, is_active)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6)
		RETURNING ` + couponColumns

	upsertCouponSQL = `INSERT INTO coupons (code, type, description, configuration, expiration_date, is_active)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6)
		ON CONFLICT (code) DO UPDATE SET
			type = EXCLUDED.type,
			description = EXCLUDED.description,
			configuration = EXCLUDED.configuration,
			expiration_date = EXCLUDED.expiration_date,
			is_active = EXCLUDED.is_active,
			updated_at = now()
		RETURNING ` + couponColumns

	updateCouponSQL = `UPDATE coupons SET
			code = $2, description = $3, configuration = $4::jsonb,
			expiration_date = $5, is_active = $6, updated_at = now()
		WHERE id = $1
		RETURNING ` + couponColumns

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`

	getCouponByIDSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

	existsCouponCodeSQL = `SELECT EXISTS (SELECT 1 FROM coupons WHERE code = $1)`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY id`

	listValidCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons
		WHERE is_active AND (expiration_date IS NULL OR expiration_date > $1)
		ORDER BY id`
)

const uniqueViolation = "23505"

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
// Configuration documents are stored as JSONB and parsed on read.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// Create inserts a new coupon. A code conflict yields a
// *coupon.DuplicateCodeError.
func (r *CouponRepository) Create(ctx context.Context, def coupon.Definition) (coupon.Definition, error) {
	rows, err := r.pool.Query(ctx, insertCouponSQL, definitionArgs(def)...)
	if err != nil {
		return coupon.Definition{}, mapWriteError(def.Code, err)
	}
	created, err := pgx.CollectExactlyOneRow(rows, scanDefinition)
	if err != nil {
		return coupon.Definition{}, mapWriteError(def.Code, err)
	}
	return created, nil
}

// Upsert inserts def or replaces the coupon that has the same code.
func (r *CouponRepository) Upsert(ctx context.Context, def coupon.Definition) (coupon.Definition, error) {
	rows, err := r.pool.Query(ctx, upsertCouponSQL, definitionArgs(def)...)
	if err != nil {
		return coupon.Definition{}, fmt.Errorf("upserting coupon %q: %w", def.Code, err)
	}
	saved, err := pgx.CollectExactlyOneRow(rows, scanDefinition)
	if err != nil {
		return coupon.Definition{}, fmt.Errorf("upserting coupon %q: %w", def.Code, err)
	}
	return saved, nil
}

// Update overwrites the mutable fields of an existing coupon.
func (r *CouponRepository) Update(ctx context.Context, def coupon.Definition) (coupon.Definition, error) {
	rows, err := r.pool.Query(ctx, updateCouponSQL,
		def.ID, def.Code, def.Description, string(coupon.MarshalConfiguration(def.Config)),
		def.ExpiresAt, def.Active,
	)
	if err != nil {
		return coupon.Definition{}, fmt.Errorf("updating coupon %d: %w", def.ID, err)
	}
	updated, err := pgx.CollectExactlyOneRow(rows, scanDefinition)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return coupon.Definition{}, &coupon.NotFoundError{ID: def.ID}
		}
		return coupon.Definition{}, mapWriteError(def.Code, err)
	}
	return updated, nil
}

// Delete removes a coupon by id.
func (r *CouponRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return fmt.Errorf("deleting coupon %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &coupon.NotFoundError{ID: id}
	}
	return nil
}

// FindByID returns the coupon with the given id or a *coupon.NotFoundError.
func (r *CouponRepository) FindByID(ctx context.Context, id int64) (coupon.Definition, error) {
	rows, err := r.pool.Query(ctx, getCouponByIDSQL, id)
	if err != nil {
		return coupon.Definition{}, fmt.Errorf("finding coupon %d: %w", id, err)
	}
	def, err := pgx.CollectExactlyOneRow(rows, scanDefinition)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return coupon.Definition{}, &coupon.NotFoundError{ID: id}
		}
		return coupon.Definition{}, fmt.Errorf("finding coupon %d: %w", id, err)
	}
	return def, nil
}

// ExistsByCode reports whether any coupon uses code.
func (r *CouponRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, existsCouponCodeSQL, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking coupon code %q: %w", code, err)
	}
	return exists, nil
}

// List returns all coupons ordered by id.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Definition, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	defs, err := pgx.CollectRows(rows, scanDefinition)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return defs, nil
}

// ListValid returns active coupons that have not expired at now.
func (r *CouponRepository) ListValid(ctx context.Context, now time.Time) ([]coupon.Definition, error) {
	rows, err := r.pool.Query(ctx, listValidCouponsSQL, now)
	if err != nil {
		return nil, fmt.Errorf("listing valid coupons: %w", err)
	}
	defs, err := pgx.CollectRows(rows, scanDefinition)
	if err != nil {
		return nil, fmt.Errorf("listing valid coupons: %w", err)
	}
	return defs, nil
}

func definitionArgs(def coupon.Definition) []any {
	return []any{
		def.Code,
		string(def.Type),
		def.Description,
		string(coupon.MarshalConfiguration(def.Config)),
		def.ExpiresAt,
		def.Active,
	}
}

func mapWriteError(code string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &coupon.DuplicateCodeError{Code: code}
	}
	return fmt.Errorf("writing coupon %q: %w", code, err)
}

// scanDefinition reads a coupons row. A configuration document that no
// longer parses is reported as a *coupon.ConfigError.
func scanDefinition(row pgx.CollectableRow) (coupon.Definition, error) {
	var (
		def coupon.Definition
		typ string
		raw []byte
	)
	err := row.Scan(
		&def.ID, &def.Code, &typ, &def.Description, &raw, &def.ExpiresAt,
		&def.Active, &def.CreatedAt, &def.UpdatedAt,
	)
	if err != nil {
		return def, err
	}
	def.Type = coupon.Type(typ)
	def.Config, err = coupon.ParseConfiguration(def.Type, raw)
	if err != nil {
		return def, errors.Wrapf(err, "coupon %d", def.ID)
	}
	return def, nil
}
