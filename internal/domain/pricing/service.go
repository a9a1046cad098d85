// Package pricing connects stored coupons with the discount engine.
package pricing

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/domain/discount"
)

const instrumentationName = "github.com/xenking/coupon-engine/internal/domain/pricing"

// Outcome labels for the applied counter.
const (
	outcomeApplied       = "applied"
	outcomeNotApplicable = "not_applicable"
	outcomeInvalid       = "invalid"
	outcomeNotFound      = "not_found"
	outcomeError         = "error"
)

// Service lists and applies coupons for carts.
type Service struct {
	repo   coupon.Repository
	engine *discount.Engine
	now    func() time.Time

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	evaluated      metric.Int64Counter
	applicable     metric.Int64Counter
	applied        metric.Int64Counter
}

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracerProvider = tp
	}
}

// WithMeterProvider sets the meter provider. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		s.meterProvider = mp
	}
}

// WithClock overrides the clock used to select currently valid coupons.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a pricing Service.
func NewService(repo coupon.Repository, engine *discount.Engine, opts ...Option) (*Service, error) {
	s := &Service{
		repo:           repo,
		engine:         engine,
		now:            time.Now,
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.tracer = s.tracerProvider.Tracer(instrumentationName)
	meter := s.meterProvider.Meter(instrumentationName)

	var err error
	if s.evaluated, err = meter.Int64Counter("coupons.evaluated",
		metric.WithDescription("Coupons evaluated against carts"),
	); err != nil {
		return nil, errors.Wrap(err, "evaluated counter")
	}
	if s.applicable, err = meter.Int64Counter("coupons.applicable",
		metric.WithDescription("Coupons found applicable to carts"),
	); err != nil {
		return nil, errors.Wrap(err, "applicable counter")
	}
	if s.applied, err = meter.Int64Counter("coupons.applied",
		metric.WithDescription("Coupon apply attempts by outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "applied counter")
	}
	return s, nil
}

// ApplicableCoupons returns every currently valid coupon that gives c a
// positive discount, ordered by coupon id.
func (s *Service) ApplicableCoupons(ctx context.Context, c cart.Cart) (_ []discount.ApplicableCoupon, rerr error) {
	ctx, span := s.tracer.Start(ctx, "pricing.ApplicableCoupons",
		trace.WithAttributes(attribute.Int("cart.items", len(c.Items))),
	)
	defer func() {
		recordError(span, rerr)
		span.End()
	}()

	if err := c.Validate(); err != nil {
		return nil, err
	}

	defs, err := s.repo.ListValid(ctx, s.now())
	if err != nil {
		return nil, errors.Wrap(err, "list valid coupons")
	}
	s.evaluated.Add(ctx, int64(len(defs)))

	out, err := s.engine.ListApplicable(ctx, defs, c)
	if err != nil {
		return nil, err
	}
	s.applicable.Add(ctx, int64(len(out)))

	zctx.From(ctx).Info("Found applicable coupons",
		zap.Int("cart_items", len(c.Items)),
		zap.Int("candidates", len(defs)),
		zap.Int("applicable", len(out)),
	)
	return out, nil
}

// ApplyCoupon applies the coupon with the given id to c.
func (s *Service) ApplyCoupon(ctx context.Context, id int64, c cart.Cart) (_ discount.UpdatedCart, rerr error) {
	ctx, span := s.tracer.Start(ctx, "pricing.ApplyCoupon",
		trace.WithAttributes(
			attribute.Int64("coupon.id", id),
			attribute.Int("cart.items", len(c.Items)),
		),
	)
	defer func() {
		recordError(span, rerr)
		span.End()
	}()

	if err := c.Validate(); err != nil {
		return discount.UpdatedCart{}, err
	}

	def, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.countApplied(ctx, "", err)
		return discount.UpdatedCart{}, errors.Wrapf(err, "find coupon %d", id)
	}
	span.SetAttributes(attribute.String("coupon.type", string(def.Type)))

	updated, err := s.engine.Apply(ctx, def, c)
	s.countApplied(ctx, def.Type, err)
	if err != nil {
		return discount.UpdatedCart{}, err
	}

	zctx.From(ctx).Info("Coupon applied",
		zap.Int64("coupon_id", id),
		zap.String("code", def.Code),
		zap.String("final_price", updated.FinalPrice.StringFixed(2)),
	)
	return updated, nil
}

func (s *Service) countApplied(ctx context.Context, t coupon.Type, err error) {
	outcome := outcomeApplied
	switch {
	case err == nil:
	case errors.Is(err, coupon.ErrNotApplicable):
		outcome = outcomeNotApplicable
	case errors.Is(err, coupon.ErrInvalidCoupon):
		outcome = outcomeInvalid
	case errors.Is(err, coupon.ErrNotFound):
		outcome = outcomeNotFound
	default:
		outcome = outcomeError
	}
	s.applied.Add(ctx, 1, metric.WithAttributes(
		attribute.String("coupon.type", string(t)),
		attribute.String("outcome", outcome),
	))
}

func recordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
