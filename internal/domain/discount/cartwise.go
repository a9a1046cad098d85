package discount

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// CartWise discounts the whole cart once its total reaches a threshold.
type CartWise struct{}

func (CartWise) config(def coupon.Definition) (*coupon.CartWiseConfig, error) {
	cfg, ok := def.Config.(*coupon.CartWiseConfig)
	if !ok || cfg == nil {
		return nil, configError(def)
	}
	return cfg, nil
}

func (s CartWise) Evaluate(def coupon.Definition, c cart.Cart) (Evaluation, error) {
	cfg, err := s.config(def)
	if err != nil {
		return Evaluation{}, err
	}

	total := c.TotalPrice()
	if total.LessThan(cfg.Threshold) {
		return notApplicable("Cart total %s is below threshold %s",
			Round(total).StringFixed(2), cfg.Threshold.StringFixed(2)), nil
	}
	if cfg.MinItemCount > 0 && c.TotalItemCount() < cfg.MinItemCount {
		return notApplicable("Cart has %d items, minimum required: %d",
			c.TotalItemCount(), cfg.MinItemCount), nil
	}

	var amount decimal.Decimal
	switch cfg.Kind {
	case coupon.DiscountFixed:
		amount = cfg.Discount
	default:
		amount = total.Mul(cfg.Discount).Div(hundred)
	}
	return applicable(clamp(amount, cfg.MaxDiscount, total)), nil
}

// Apply spreads the rounded discount over all items in proportion to their
// line totals. Every item but the last gets its rounded share; the last one
// takes the remainder so the item discounts add up to the total exactly.
func (s CartWise) Apply(def coupon.Definition, c cart.Cart) (UpdatedCart, error) {
	ev, err := s.Evaluate(def, c)
	if err != nil {
		return UpdatedCart{}, err
	}
	if !ev.Applicable {
		return UpdatedCart{}, ev.Err(def.Code)
	}

	total := c.TotalPrice()
	discount := Round(ev.Amount)
	discounts := make([]decimal.Decimal, len(c.Items))
	allocated := decimal.Zero
	last := len(c.Items) - 1
	for i, item := range c.Items {
		if i == last {
			discounts[i] = discount.Sub(allocated)
			break
		}
		share := decimal.Zero
		if total.IsPositive() {
			share = Round(item.LineTotal().Mul(discount).Div(total))
		}
		discounts[i] = share
		allocated = allocated.Add(share)
	}
	return buildCart(c, discounts, discount), nil
}
