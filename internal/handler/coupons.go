package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

type createCouponRequest struct {
	Code          string `field:"code" validate:"required,max=50"`
	Type          string `field:"type" validate:"required"`
	Description   string `field:"description" validate:"max=500"`
	Configuration []byte `field:"configuration" validate:"required"`
	ExpiresAt     *time.Time
	Active        *bool
}

type updateCouponRequest struct {
	Code          *string `field:"code" validate:"omitnil,min=1,max=50"`
	Description   *string `field:"description" validate:"omitnil,max=500"`
	Configuration []byte
	ExpiresAt     *time.Time
	Active        *bool
}

// couponFields is the union of create and update bodies. Pointer fields are
// nil when the key is absent or null.
type couponFields struct {
	Code          *string
	Type          string
	Description   *string
	Configuration []byte
	ExpiresAt     *time.Time
	Active        *bool
}

// decodeCouponFields accepts "details" as an alias of "configuration".
func decodeCouponFields(data []byte) (couponFields, error) {
	var f couponFields
	err := decodeObject(data, func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			s, err := d.Str()
			f.Code = &s
			return err
		case "type":
			s, err := d.Str()
			f.Type = s
			return err
		case "description":
			if d.Next() == jx.Null {
				return d.Null()
			}
			s, err := d.Str()
			f.Description = &s
			return err
		case "configuration", "details":
			raw, err := d.Raw()
			f.Configuration = append([]byte(nil), raw...)
			return err
		case "expirationDate":
			ts, err := decodeTimestamp(d, key)
			f.ExpiresAt = ts
			return err
		case "isActive":
			if d.Next() == jx.Null {
				return d.Null()
			}
			b, err := d.Bool()
			f.Active = &b
			return err
		default:
			return d.Skip()
		}
	})
	return f, err
}

func decodeCreateCoupon(data []byte) (createCouponRequest, error) {
	f, err := decodeCouponFields(data)
	if err != nil {
		return createCouponRequest{}, err
	}
	req := createCouponRequest{
		Type:          f.Type,
		Configuration: f.Configuration,
		ExpiresAt:     f.ExpiresAt,
		Active:        f.Active,
	}
	if f.Code != nil {
		req.Code = *f.Code
	}
	if f.Description != nil {
		req.Description = *f.Description
	}
	return req, nil
}

// decodeUpdateCoupon ignores the type key: a coupon's type never changes.
func decodeUpdateCoupon(data []byte) (updateCouponRequest, error) {
	f, err := decodeCouponFields(data)
	if err != nil {
		return updateCouponRequest{}, err
	}
	return updateCouponRequest{
		Code:          f.Code,
		Description:   f.Description,
		Configuration: f.Configuration,
		ExpiresAt:     f.ExpiresAt,
		Active:        f.Active,
	}, nil
}

// CreateCoupon handles POST /coupons.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	req, err := decodeCreateCoupon(data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.fail(w, r, err)
		return
	}

	def, err := h.coupons.Create(r.Context(), coupon.CreateInput{
		Code:        req.Code,
		Type:        coupon.Type(req.Type),
		Description: req.Description,
		Config:      req.Configuration,
		ExpiresAt:   req.ExpiresAt,
		Active:      req.Active,
	})
	if err != nil {
		h.failWrite(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeCoupon(e, def)
	})
}

// ListCoupons handles GET /coupons.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	defs, err := h.coupons.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, def := range defs {
			encodeCoupon(e, def)
		}
		e.ArrEnd()
	})
}

// GetCoupon handles GET /coupons/{id}.
func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	def, err := h.coupons.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCoupon(e, def)
	})
}

// UpdateCoupon handles PUT /coupons/{id}. Only the fields present in the
// body are changed.
func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data, err := readBody(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	req, err := decodeUpdateCoupon(data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.fail(w, r, err)
		return
	}

	def, err := h.coupons.Update(r.Context(), id, coupon.Patch{
		Code:        req.Code,
		Description: req.Description,
		Config:      req.Configuration,
		ExpiresAt:   req.ExpiresAt,
		Active:      req.Active,
	})
	if err != nil {
		h.failWrite(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCoupon(e, def)
	})
}

// DeleteCoupon handles DELETE /coupons/{id}.
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.coupons.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func encodeCoupon(e *jx.Encoder, def coupon.Definition) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(def.ID)
	e.FieldStart("code")
	e.Str(def.Code)
	e.FieldStart("type")
	e.Str(string(def.Type))
	e.FieldStart("description")
	e.Str(def.Description)
	e.FieldStart("configuration")
	def.Config.Encode(e)
	e.FieldStart("expirationDate")
	if def.ExpiresAt != nil {
		e.Str(def.ExpiresAt.UTC().Format(time.RFC3339))
	} else {
		e.Null()
	}
	e.FieldStart("isActive")
	e.Bool(def.Active)
	e.FieldStart("createdAt")
	e.Str(def.CreatedAt.UTC().Format(time.RFC3339))
	e.FieldStart("updatedAt")
	e.Str(def.UpdatedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
}
