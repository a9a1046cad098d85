package discount

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// Evaluation is the outcome of evaluating a coupon against a cart. When
// Applicable is false, Reason explains which condition was not met and
// Amount is zero.
type Evaluation struct {
	Amount     decimal.Decimal
	Applicable bool
	Reason     string
}

func applicable(amount decimal.Decimal) Evaluation {
	return Evaluation{Amount: amount, Applicable: true}
}

func notApplicable(format string, args ...any) Evaluation {
	return Evaluation{Amount: decimal.Zero, Reason: fmt.Sprintf(format, args...)}
}

// Err converts a negative evaluation into a *coupon.NotApplicableError.
func (e Evaluation) Err(code string) error {
	if e.Applicable {
		return nil
	}
	return &coupon.NotApplicableError{Code: code, Reason: e.Reason}
}

// UpdatedItem is an output line with the discount allocated to it.
type UpdatedItem struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
}

// UpdatedCart is the itemized result of applying a coupon. All monetary
// fields are rounded to two fractional digits.
type UpdatedCart struct {
	Items         []UpdatedItem
	TotalPrice    decimal.Decimal
	TotalDiscount decimal.Decimal
	FinalPrice    decimal.Decimal
}

// ApplicableCoupon is one entry of the applicable coupons listing.
type ApplicableCoupon struct {
	CouponID    int64
	Code        string
	Type        coupon.Type
	Discount    decimal.Decimal
	Description string
}

// Strategy computes discounts for one coupon family.
//
// Evaluate returns an error only for configuration problems; a cart that
// does not qualify yields a non-applicable Evaluation. Apply returns a
// *coupon.NotApplicableError in that case.
type Strategy interface {
	Evaluate(def coupon.Definition, c cart.Cart) (Evaluation, error)
	Apply(def coupon.Definition, c cart.Cart) (UpdatedCart, error)
}

// buildCart assembles an UpdatedCart in input order. discounts holds the
// already rounded per-item discounts, total the raw total discount.
func buildCart(c cart.Cart, discounts []decimal.Decimal, total decimal.Decimal) UpdatedCart {
	items := make([]UpdatedItem, len(c.Items))
	for i, item := range c.Items {
		items[i] = UpdatedItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Discount:  discounts[i],
		}
	}
	totalPrice := c.TotalPrice()
	return UpdatedCart{
		Items:         items,
		TotalPrice:    Round(totalPrice),
		TotalDiscount: Round(total),
		FinalPrice:    Round(totalPrice.Sub(total)),
	}
}

func configError(def coupon.Definition) error {
	return &coupon.ConfigError{
		Type:    def.Type,
		Problem: fmt.Sprintf("coupon %q carries %T", def.Code, def.Config),
	}
}
