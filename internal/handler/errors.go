package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// requestError is a malformed request body or path parameter.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// apiError is the body written for every failed request.
type apiError struct {
	Status  int
	Slug    string
	Message string
}

// mapError converts a domain error into its HTTP representation. write is
// set for requests that store a configuration, where a bad configuration is
// the caller's fault rather than corrupt state.
func mapError(err error, write bool) apiError {
	var (
		validationErrs validator.ValidationErrors
		reqErr         *requestError
		itemErr        *cart.InvalidItemError
		notFound       *coupon.NotFoundError
		duplicate      *coupon.DuplicateCodeError
		notApplicable  *coupon.NotApplicableError
		invalidCoupon  *coupon.InvalidCouponError
		configErr      *coupon.ConfigError
	)
	switch {
	case errors.As(err, &validationErrs):
		return apiError{http.StatusBadRequest, "validation_failed", describeValidation(validationErrs)}
	case errors.As(err, &reqErr):
		return apiError{http.StatusBadRequest, "bad_request", reqErr.msg}
	case errors.Is(err, cart.ErrEmpty):
		return apiError{http.StatusBadRequest, "invalid_cart", cart.ErrEmpty.Error()}
	case errors.As(err, &itemErr):
		return apiError{http.StatusBadRequest, "invalid_cart", itemErr.Error()}
	case errors.As(err, &notFound):
		return apiError{http.StatusNotFound, "not_found", notFound.Error()}
	case errors.As(err, &duplicate):
		return apiError{http.StatusConflict, "duplicate_code", duplicate.Error()}
	case errors.As(err, &notApplicable):
		return apiError{http.StatusBadRequest, "not_applicable", notApplicable.Reason}
	case errors.As(err, &invalidCoupon):
		return apiError{http.StatusBadRequest, "invalid_coupon", invalidCoupon.Error()}
	case errors.As(err, &configErr):
		if write {
			return apiError{http.StatusUnprocessableEntity, "invalid_configuration", configErr.Error()}
		}
		return apiError{http.StatusInternalServerError, "invalid_configuration", configErr.Error()}
	default:
		return apiError{http.StatusInternalServerError, "internal_error", "internal server error"}
	}
}

func describeValidation(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		// Drop the request struct name from the namespace.
		_, field, _ := strings.Cut(fe.Namespace(), ".")
		parts = append(parts, field+" "+describeTag(fe))
	}
	return strings.Join(parts, "; ")
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must not be less than " + fe.Param()
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.writeError(w, r, err, false)
}

func (h *Handler) failWrite(w http.ResponseWriter, r *http.Request, err error) {
	h.writeError(w, r, err, true)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, write bool) {
	apiErr := mapError(err, write)
	if apiErr.Status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, apiErr.Status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(apiErr.Status)
		e.FieldStart("error")
		e.Str(apiErr.Slug)
		e.FieldStart("message")
		e.Str(apiErr.Message)
		e.ObjEnd()
	})
}
