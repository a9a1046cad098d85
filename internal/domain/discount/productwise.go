package discount

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// ProductWise discounts a single product line.
type ProductWise struct{}

func (ProductWise) config(def coupon.Definition) (*coupon.ProductWiseConfig, error) {
	cfg, ok := def.Config.(*coupon.ProductWiseConfig)
	if !ok || cfg == nil {
		return nil, configError(def)
	}
	return cfg, nil
}

func (s ProductWise) Evaluate(def coupon.Definition, c cart.Cart) (Evaluation, error) {
	cfg, err := s.config(def)
	if err != nil {
		return Evaluation{}, err
	}

	item, ok := c.Find(cfg.ProductID)
	if !ok {
		return notApplicable("Product with ID %d not found in cart", cfg.ProductID), nil
	}
	if cfg.MinQuantity > 0 && item.Quantity < cfg.MinQuantity {
		return notApplicable("Product quantity %d is below minimum required: %d",
			item.Quantity, cfg.MinQuantity), nil
	}

	line := item.LineTotal()
	var amount decimal.Decimal
	switch cfg.Kind {
	case coupon.DiscountFixed:
		amount = cfg.Discount.Mul(decimal.NewFromInt(int64(item.Quantity)))
	default:
		amount = line.Mul(cfg.Discount).Div(hundred)
	}
	return applicable(clamp(amount, cfg.MaxDiscount, line)), nil
}

// Apply puts the whole discount on the matched product line.
func (s ProductWise) Apply(def coupon.Definition, c cart.Cart) (UpdatedCart, error) {
	ev, err := s.Evaluate(def, c)
	if err != nil {
		return UpdatedCart{}, err
	}
	if !ev.Applicable {
		return UpdatedCart{}, ev.Err(def.Code)
	}

	// Evaluate already resolved the product, so the config is well-typed.
	cfg, _ := s.config(def)
	discount := Round(ev.Amount)
	discounts := make([]decimal.Decimal, len(c.Items))
	for i, item := range c.Items {
		discounts[i] = decimal.Zero
		if item.ProductID == cfg.ProductID {
			discounts[i] = discount
		}
	}
	return buildCart(c, discounts, discount), nil
}
