package coupon

import (
	"context"
	"time"
)

// Type enumerates the supported coupon families.
type Type string

const (
	// TypeCartWise discounts the whole cart once it crosses a threshold.
	TypeCartWise Type = "CART_WISE"
	// TypeProductWise discounts a single product line.
	TypeProductWise Type = "PRODUCT_WISE"
	// TypeBxGy grants free "get" products for each bundle of "buy" products.
	TypeBxGy Type = "BXGY"
)

// Types lists every known coupon type.
var Types = []Type{TypeCartWise, TypeProductWise, TypeBxGy}

// ParseType validates a type tag.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", &ConfigError{Type: Type(s), Problem: ErrUnknownType.Error()}
}

// DiscountKind selects how a configured discount value is interpreted.
type DiscountKind string

const (
	// DiscountPercentage treats the value as a percentage of the base.
	DiscountPercentage DiscountKind = "PERCENTAGE"
	// DiscountFixed treats the value as an absolute amount.
	DiscountFixed DiscountKind = "FIXED"
)

// Definition is a stored coupon with its parsed configuration.
type Definition struct {
	ID          int64
	Code        string
	Type        Type
	Description string
	Config      Configuration
	ExpiresAt   *time.Time
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsExpired reports whether the coupon's expiration has been reached at now.
func (d Definition) IsExpired(now time.Time) bool {
	return d.ExpiresAt != nil && !now.Before(*d.ExpiresAt)
}

// IsValid reports whether the coupon is active and not expired at now.
func (d Definition) IsValid(now time.Time) bool {
	return d.Active && !d.IsExpired(now)
}

// Repository provides storage of coupon definitions.
type Repository interface {
	Create(ctx context.Context, def Definition) (Definition, error)
	Update(ctx context.Context, def Definition) (Definition, error)
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (Definition, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	List(ctx context.Context) ([]Definition, error)
	// ListValid returns coupons that are active and unexpired at now,
	// ordered by id.
	ListValid(ctx context.Context, now time.Time) ([]Definition, error)
}
