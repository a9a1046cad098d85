// Package handler exposes coupon management and cart pricing over HTTP.
package handler

import (
	"reflect"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/domain/pricing"
)

// maxBodySize bounds request bodies read by the handlers.
const maxBodySize = 1 << 20

// Handler serves the coupon REST API, delegating business logic to the
// coupon manager and the pricing service.
type Handler struct {
	coupons  *coupon.Manager
	pricing  *pricing.Service
	validate *validator.Validate
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(coupons *coupon.Manager, pricing *pricing.Service) *Handler {
	return &Handler{
		coupons:  coupons,
		pricing:  pricing,
		validate: newValidator(),
	}
}

// Routes registers every endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/coupons", func(r chi.Router) {
		r.Post("/", h.CreateCoupon)
		r.Get("/", h.ListCoupons)
		r.Get("/{id}", h.GetCoupon)
		r.Put("/{id}", h.UpdateCoupon)
		r.Delete("/{id}", h.DeleteCoupon)
	})
	r.Post("/applicable-coupons", h.ApplicableCoupons)
	r.Post("/apply-coupon/{id}", h.ApplyCoupon)
}

// newValidator names fields by their `field` tag, the key the client sent,
// and compares decimal amounts numerically.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("field"); name != "" {
			return name
		}
		return f.Name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}
