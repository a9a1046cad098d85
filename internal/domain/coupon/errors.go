package coupon

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when no coupon exists for the given id.
	ErrNotFound = errors.New("coupon not found")
	// ErrDuplicateCode is returned when a coupon code is already taken.
	ErrDuplicateCode = errors.New("coupon code already exists")
	// ErrNotApplicable is matched by NotApplicableError.
	ErrNotApplicable = errors.New("coupon not applicable")
	// ErrInvalidConfiguration is matched by ConfigError.
	ErrInvalidConfiguration = errors.New("invalid coupon configuration")
	// ErrInvalidCoupon is returned when a coupon is inactive or expired at
	// apply time.
	ErrInvalidCoupon = errors.New("coupon is either inactive or expired")
	// ErrUnknownType is returned for a type outside the closed set.
	ErrUnknownType = errors.New("unknown coupon type")
)

// NotApplicableError reports that a coupon's business conditions are not met
// by a cart. Reason is suitable for display to API callers.
type NotApplicableError struct {
	Code   string
	Reason string
}

func (e *NotApplicableError) Error() string {
	return fmt.Sprintf("coupon %q not applicable: %s", e.Code, e.Reason)
}

func (e *NotApplicableError) Is(target error) bool {
	return target == ErrNotApplicable
}

// ConfigError reports a malformed configuration document.
type ConfigError struct {
	Type    Type
	Field   string
	Problem string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s configuration: %s", e.Type, e.Problem)
	}
	return fmt.Sprintf("%s configuration: %s: %s", e.Type, e.Field, e.Problem)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

// NotFoundError carries the id that failed to resolve.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("coupon not found with id: %d", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// DuplicateCodeError carries the conflicting code.
type DuplicateCodeError struct {
	Code string
}

func (e *DuplicateCodeError) Error() string {
	return fmt.Sprintf("coupon with code %q already exists", e.Code)
}

func (e *DuplicateCodeError) Is(target error) bool {
	return target == ErrDuplicateCode
}

// InvalidCouponError is returned by apply when the coupon fails its validity
// check.
type InvalidCouponError struct {
	Code   string
	Reason string
}

func (e *InvalidCouponError) Error() string {
	return fmt.Sprintf("coupon %q is %s", e.Code, e.Reason)
}

func (e *InvalidCouponError) Is(target error) bool {
	return target == ErrInvalidCoupon
}
