package discount

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// BxGy grants "get" products for free for every bundle of "buy" products in
// the cart, up to the repetition limit.
type BxGy struct{}

// freeUnits is the part of the free quantity assigned to one cart line.
type freeUnits struct {
	index    int
	quantity int
	amount   decimal.Decimal
}

type bxgyResult struct {
	eval        Evaluation
	repetitions int
	allocations []freeUnits
}

func (BxGy) config(def coupon.Definition) (*coupon.BxGyConfig, error) {
	cfg, ok := def.Config.(*coupon.BxGyConfig)
	if !ok || cfg == nil {
		return nil, configError(def)
	}
	if cfg.RequiredBuyQuantity() <= 0 {
		return nil, &coupon.ConfigError{Type: coupon.TypeBxGy, Field: "buyProducts", Problem: "must not be empty"}
	}
	return cfg, nil
}

func (s BxGy) compute(def coupon.Definition, c cart.Cart) (bxgyResult, error) {
	cfg, err := s.config(def)
	if err != nil {
		return bxgyResult{}, err
	}

	// Buy quantities are pooled across all buy products.
	required := cfg.RequiredBuyQuantity()
	available := 0
	for _, p := range cfg.BuyProducts {
		available += c.QuantityOf(p.ProductID)
	}
	if available < required {
		return bxgyResult{eval: notApplicable("Insufficient buy products. Required: %d, Available: %d",
			required, available)}, nil
	}

	repetitions := min(available/required, cfg.RepetitionLimit)
	remaining := repetitions * cfg.GetQuantity()

	var eligible []int
	for i, item := range c.Items {
		if cfg.IsGetProduct(item.ProductID) {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		return bxgyResult{eval: notApplicable("None of the 'get' products are in the cart")}, nil
	}

	// Cheapest items are given away first.
	sort.SliceStable(eligible, func(a, b int) bool {
		return c.Items[eligible[a]].UnitPrice.LessThan(c.Items[eligible[b]].UnitPrice)
	})

	total := decimal.Zero
	var allocations []freeUnits
	for _, i := range eligible {
		if remaining <= 0 {
			break
		}
		item := c.Items[i]
		free := min(remaining, item.Quantity)
		amount := item.UnitPrice.Mul(decimal.NewFromInt(int64(free)))
		allocations = append(allocations, freeUnits{index: i, quantity: free, amount: amount})
		total = total.Add(amount)
		remaining -= free
	}

	return bxgyResult{
		eval:        applicable(total),
		repetitions: repetitions,
		allocations: allocations,
	}, nil
}

func (s BxGy) Evaluate(def coupon.Definition, c cart.Cart) (Evaluation, error) {
	res, err := s.compute(def, c)
	if err != nil {
		return Evaluation{}, err
	}
	return res.eval, nil
}

// Apply records the free value per line from the same greedy pass as
// Evaluate. Lines are rounded individually and the last line touched by
// the pass takes the rounding remainder.
func (s BxGy) Apply(def coupon.Definition, c cart.Cart) (UpdatedCart, error) {
	res, err := s.compute(def, c)
	if err != nil {
		return UpdatedCart{}, err
	}
	if !res.eval.Applicable {
		return UpdatedCart{}, res.eval.Err(def.Code)
	}

	discount := Round(res.eval.Amount)
	discounts := make([]decimal.Decimal, len(c.Items))
	for i := range discounts {
		discounts[i] = decimal.Zero
	}
	allocated := decimal.Zero
	for n, a := range res.allocations {
		if n == len(res.allocations)-1 {
			discounts[a.index] = discount.Sub(allocated)
			break
		}
		share := Round(a.amount)
		discounts[a.index] = share
		allocated = allocated.Add(share)
	}
	return buildCart(c, discounts, discount), nil
}
