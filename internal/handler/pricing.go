package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/discount"
)

// cartRequest is decoded by hand with jx; the field tags only name fields in
// validation messages.
type cartRequest struct {
	Items []cartItemRequest `field:"items" validate:"dive"`
}

type cartItemRequest struct {
	ProductID int64 `field:"product_id" validate:"gt=0"`
	Quantity  int
	Price     decimal.Decimal
}

// decodeCart reads a {"cart":{"items":[...]}} body. Quantity and price
// bounds are checked by cart.Validate so the caller sees the same messages
// as every other cart consumer.
func decodeCart(data []byte) (cartRequest, error) {
	var (
		req   cartRequest
		found bool
	)
	err := decodeObject(data, func(d *jx.Decoder, key string) error {
		if key != "cart" {
			return d.Skip()
		}
		found = true
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if string(key) != "items" {
				return d.Skip()
			}
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeCartItem(d, len(req.Items))
				if err != nil {
					return err
				}
				req.Items = append(req.Items, item)
				return nil
			})
		})
	})
	if err != nil {
		return req, err
	}
	if !found {
		return req, badRequest("cart is required")
	}
	return req, nil
}

func decodeCartItem(d *jx.Decoder, index int) (cartItemRequest, error) {
	var (
		item     cartItemRequest
		hasPrice bool
	)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "product_id":
			item.ProductID, err = d.Int64()
		case "quantity":
			item.Quantity, err = d.Int()
		case "price":
			hasPrice = true
			item.Price, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return item, err
	}
	if !hasPrice {
		return item, badRequest("items[%d].price is required", index)
	}
	return item, nil
}

func (req cartRequest) toCart() cart.Cart {
	items := make([]cart.LineItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = cart.LineItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		}
	}
	return cart.New(items...)
}

func (h *Handler) readCart(r *http.Request) (cart.Cart, error) {
	data, err := readBody(r)
	if err != nil {
		return cart.Cart{}, err
	}
	req, err := decodeCart(data)
	if err != nil {
		return cart.Cart{}, err
	}
	if err := h.validate.Struct(req); err != nil {
		return cart.Cart{}, err
	}
	return req.toCart(), nil
}

// ApplicableCoupons handles POST /applicable-coupons.
func (h *Handler) ApplicableCoupons(w http.ResponseWriter, r *http.Request) {
	c, err := h.readCart(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	coupons, err := h.pricing.ApplicableCoupons(r.Context(), c)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("applicable_coupons")
		e.ArrStart()
		for _, ac := range coupons {
			encodeApplicableCoupon(e, ac)
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

// ApplyCoupon handles POST /apply-coupon/{id}.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.readCart(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.pricing.ApplyCoupon(r.Context(), id, c)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("updated_cart")
		encodeUpdatedCart(e, updated)
		e.ObjEnd()
	})
}

func encodeApplicableCoupon(e *jx.Encoder, ac discount.ApplicableCoupon) {
	e.ObjStart()
	e.FieldStart("coupon_id")
	e.Int64(ac.CouponID)
	e.FieldStart("code")
	e.Str(ac.Code)
	e.FieldStart("type")
	e.Str(string(ac.Type))
	e.FieldStart("discount")
	encodeMoney(e, ac.Discount)
	e.FieldStart("description")
	e.Str(ac.Description)
	e.ObjEnd()
}

func encodeUpdatedCart(e *jx.Encoder, uc discount.UpdatedCart) {
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range uc.Items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Int64(item.ProductID)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.FieldStart("price")
		e.Num(jx.Num(item.UnitPrice.String()))
		e.FieldStart("total_discount")
		encodeMoney(e, item.Discount)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("total_price")
	encodeMoney(e, uc.TotalPrice)
	e.FieldStart("total_discount")
	encodeMoney(e, uc.TotalDiscount)
	e.FieldStart("final_price")
	encodeMoney(e, uc.FinalPrice)
	e.ObjEnd()
}
