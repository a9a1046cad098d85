package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// Engine resolves a coupon's type to its strategy. It holds no per-call
// state and is safe for concurrent use.
type Engine struct {
	strategies map[coupon.Type]Strategy
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for the validity check in Apply.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine returns an Engine with a strategy for every coupon type.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		strategies: map[coupon.Type]Strategy{
			coupon.TypeCartWise:    CartWise{},
			coupon.TypeProductWise: ProductWise{},
			coupon.TypeBxGy:        BxGy{},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) strategy(def coupon.Definition) (Strategy, error) {
	s, ok := e.strategies[def.Type]
	if !ok {
		return nil, &coupon.ConfigError{Type: def.Type, Problem: coupon.ErrUnknownType.Error()}
	}
	return s, nil
}

// Evaluate computes the unrounded discount of def for c.
func (e *Engine) Evaluate(def coupon.Definition, c cart.Cart) (Evaluation, error) {
	s, err := e.strategy(def)
	if err != nil {
		return Evaluation{}, err
	}
	return s.Evaluate(def, c)
}

// ListApplicable evaluates every coupon against c and returns those with a
// positive rounded discount, in input order. Coupons whose conditions are not
// met are skipped. Configuration errors abort the listing.
func (e *Engine) ListApplicable(ctx context.Context, defs []coupon.Definition, c cart.Cart) ([]ApplicableCoupon, error) {
	lg := zctx.From(ctx)
	out := make([]ApplicableCoupon, 0, len(defs))
	for _, def := range defs {
		ev, err := e.Evaluate(def, c)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluate coupon %d", def.ID)
		}
		if !ev.Applicable {
			lg.Debug("Coupon not applicable",
				zap.Int64("coupon_id", def.ID),
				zap.String("code", def.Code),
				zap.String("reason", ev.Reason),
			)
			continue
		}
		amount := Round(ev.Amount)
		if !amount.IsPositive() {
			continue
		}
		out = append(out, ApplicableCoupon{
			CouponID:    def.ID,
			Code:        def.Code,
			Type:        def.Type,
			Discount:    amount,
			Description: def.Description,
		})
	}
	return out, nil
}

// Apply re-checks that def is active and unexpired, then produces the
// itemized cart for it.
func (e *Engine) Apply(ctx context.Context, def coupon.Definition, c cart.Cart) (UpdatedCart, error) {
	now := e.now()
	if !def.IsValid(now) {
		reason := "inactive"
		if def.Active {
			reason = "expired"
		}
		return UpdatedCart{}, &coupon.InvalidCouponError{Code: def.Code, Reason: reason}
	}
	s, err := e.strategy(def)
	if err != nil {
		return UpdatedCart{}, err
	}
	updated, err := s.Apply(def, c)
	if err != nil {
		return UpdatedCart{}, err
	}
	zctx.From(ctx).Debug("Coupon applied",
		zap.Int64("coupon_id", def.ID),
		zap.String("total_discount", updated.TotalDiscount.StringFixed(2)),
	)
	return updated, nil
}
