package coupon

import (
	"bytes"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Configuration is the typed, per-type payload of a coupon. Exactly one
// implementation exists for every Type.
type Configuration interface {
	Type() Type
	Validate() error
	Encode(e *jx.Encoder)
}

// CartWiseConfig discounts the whole cart.
type CartWiseConfig struct {
	Threshold decimal.Decimal
	Discount  decimal.Decimal
	Kind      DiscountKind
	// MinItemCount is the minimum total quantity in the cart; 0 disables it.
	MinItemCount int
	MaxDiscount  decimal.NullDecimal
}

// ProductWiseConfig discounts a single product line.
type ProductWiseConfig struct {
	ProductID int64
	Discount  decimal.Decimal
	Kind      DiscountKind
	// MinQuantity is the minimum quantity of the product; 0 disables it.
	MinQuantity int
	MaxDiscount decimal.NullDecimal
}

// ProductQuantity pairs a product with a quantity inside a BxGy bundle.
type ProductQuantity struct {
	ProductID int64
	Quantity  int
}

// BxGyConfig grants GetProducts for free once per bundle of BuyProducts,
// at most RepetitionLimit times.
type BxGyConfig struct {
	BuyProducts     []ProductQuantity
	GetProducts     []ProductQuantity
	RepetitionLimit int
}

func (*CartWiseConfig) Type() Type    { return TypeCartWise }
func (*ProductWiseConfig) Type() Type { return TypeProductWise }
func (*BxGyConfig) Type() Type        { return TypeBxGy }

// RequiredBuyQuantity is the pooled quantity of buy products per bundle.
func (c *BxGyConfig) RequiredBuyQuantity() int {
	return sumQuantity(c.BuyProducts)
}

// GetQuantity is the number of free units granted per bundle.
func (c *BxGyConfig) GetQuantity() int {
	return sumQuantity(c.GetProducts)
}

// IsGetProduct reports whether productID is one of the free products.
func (c *BxGyConfig) IsGetProduct(productID int64) bool {
	for _, p := range c.GetProducts {
		if p.ProductID == productID {
			return true
		}
	}
	return false
}

func sumQuantity(ps []ProductQuantity) int {
	total := 0
	for _, p := range ps {
		total += p.Quantity
	}
	return total
}

func validateDiscount(t Type, value decimal.Decimal, kind DiscountKind, maxDiscount decimal.NullDecimal) error {
	switch kind {
	case DiscountPercentage:
		if value.GreaterThan(hundred) {
			return &ConfigError{Type: t, Field: "discount", Problem: "percentage must not exceed 100"}
		}
	case DiscountFixed:
	default:
		return &ConfigError{Type: t, Field: "discountType", Problem: "must be PERCENTAGE or FIXED"}
	}
	if value.IsNegative() {
		return &ConfigError{Type: t, Field: "discount", Problem: "must not be negative"}
	}
	if maxDiscount.Valid && maxDiscount.Decimal.IsNegative() {
		return &ConfigError{Type: t, Field: "maxDiscount", Problem: "must not be negative"}
	}
	return nil
}

func (c *CartWiseConfig) Validate() error {
	if c.Threshold.IsNegative() {
		return &ConfigError{Type: TypeCartWise, Field: "threshold", Problem: "must not be negative"}
	}
	if c.MinItemCount < 0 {
		return &ConfigError{Type: TypeCartWise, Field: "minItems", Problem: "must not be negative"}
	}
	return validateDiscount(TypeCartWise, c.Discount, c.Kind, c.MaxDiscount)
}

func (c *ProductWiseConfig) Validate() error {
	if c.MinQuantity < 0 {
		return &ConfigError{Type: TypeProductWise, Field: "minQuantity", Problem: "must not be negative"}
	}
	return validateDiscount(TypeProductWise, c.Discount, c.Kind, c.MaxDiscount)
}

func (c *BxGyConfig) Validate() error {
	if err := validateBundle("buyProducts", c.BuyProducts); err != nil {
		return err
	}
	if err := validateBundle("getProducts", c.GetProducts); err != nil {
		return err
	}
	if c.RepetitionLimit < 0 {
		return &ConfigError{Type: TypeBxGy, Field: "repetitionLimit", Problem: "must not be negative"}
	}
	return nil
}

func validateBundle(field string, ps []ProductQuantity) error {
	if len(ps) == 0 {
		return &ConfigError{Type: TypeBxGy, Field: field, Problem: "must not be empty"}
	}
	for _, p := range ps {
		if p.Quantity <= 0 {
			return &ConfigError{Type: TypeBxGy, Field: field, Problem: "quantity must be greater than 0"}
		}
	}
	return nil
}

// ParseConfiguration decodes and validates a configuration document for t.
// Missing required keys, unknown keys and out-of-range values yield a
// *ConfigError.
func ParseConfiguration(t Type, data []byte) (Configuration, error) {
	data = bytes.TrimSpace(data)
	raw, err := jx.DecodeBytes(data).Raw()
	if err != nil {
		return nil, &ConfigError{Type: t, Problem: "malformed JSON"}
	}
	if len(raw) != len(data) {
		return nil, &ConfigError{Type: t, Problem: "unexpected data after the JSON object"}
	}
	d := jx.DecodeBytes(raw)
	if d.Next() != jx.Object {
		return nil, &ConfigError{Type: t, Problem: "must be a JSON object"}
	}

	var cfg Configuration
	switch t {
	case TypeCartWise:
		cfg, err = decodeCartWise(d)
	case TypeProductWise:
		cfg, err = decodeProductWise(d)
	case TypeBxGy:
		cfg, err = decodeBxGy(d)
	default:
		return nil, &ConfigError{Type: t, Problem: ErrUnknownType.Error()}
	}
	if err != nil {
		return nil, asConfigError(t, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MarshalConfiguration encodes cfg as a JSON document.
func MarshalConfiguration(cfg Configuration) []byte {
	var e jx.Encoder
	cfg.Encode(&e)
	return e.Bytes()
}

func asConfigError(t Type, err error) error {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce
	}
	return &ConfigError{Type: t, Problem: err.Error()}
}

func fieldError(t Type, key string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce
	}
	return &ConfigError{Type: t, Field: key, Problem: err.Error()}
}

func missing(t Type, key string) error {
	return &ConfigError{Type: t, Field: key, Problem: "is required"}
}

func decodeCartWise(d *jx.Decoder) (*CartWiseConfig, error) {
	cfg := &CartWiseConfig{Kind: DiscountPercentage}
	var hasThreshold, hasDiscount bool
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch k := string(key); k {
		case "threshold":
			hasThreshold = true
			cfg.Threshold, err = decodeDecimal(d)
		case "discount":
			hasDiscount = true
			cfg.Discount, err = decodeDecimal(d)
		case "discountType", "discountKind":
			cfg.Kind, err = decodeKind(d)
		case "minItems", "minItemCount":
			cfg.MinItemCount, err = decodeOptionalInt(d, 0)
		case "maxDiscount":
			cfg.MaxDiscount, err = decodeNullDecimal(d)
		default:
			return &ConfigError{Type: TypeCartWise, Field: k, Problem: "unknown field"}
		}
		return fieldError(TypeCartWise, string(key), err)
	}); err != nil {
		return nil, err
	}
	if !hasThreshold {
		return nil, missing(TypeCartWise, "threshold")
	}
	if !hasDiscount {
		return nil, missing(TypeCartWise, "discount")
	}
	return cfg, nil
}

func decodeProductWise(d *jx.Decoder) (*ProductWiseConfig, error) {
	cfg := &ProductWiseConfig{Kind: DiscountPercentage}
	var hasProduct, hasDiscount bool
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch k := string(key); k {
		case "productId":
			hasProduct = true
			cfg.ProductID, err = d.Int64()
		case "discount":
			hasDiscount = true
			cfg.Discount, err = decodeDecimal(d)
		case "discountType", "discountKind":
			cfg.Kind, err = decodeKind(d)
		case "minQuantity":
			cfg.MinQuantity, err = decodeOptionalInt(d, 0)
		case "maxDiscount":
			cfg.MaxDiscount, err = decodeNullDecimal(d)
		default:
			return &ConfigError{Type: TypeProductWise, Field: k, Problem: "unknown field"}
		}
		return fieldError(TypeProductWise, string(key), err)
	}); err != nil {
		return nil, err
	}
	if !hasProduct {
		return nil, missing(TypeProductWise, "productId")
	}
	if !hasDiscount {
		return nil, missing(TypeProductWise, "discount")
	}
	return cfg, nil
}

func decodeBxGy(d *jx.Decoder) (*BxGyConfig, error) {
	cfg := &BxGyConfig{RepetitionLimit: 1}
	var hasBuy, hasGet bool
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch k := string(key); k {
		case "buyProducts":
			hasBuy = true
			cfg.BuyProducts, err = decodeBundle(d)
		case "getProducts":
			hasGet = true
			cfg.GetProducts, err = decodeBundle(d)
		case "repetitionLimit":
			cfg.RepetitionLimit, err = decodeOptionalInt(d, 1)
		default:
			return &ConfigError{Type: TypeBxGy, Field: k, Problem: "unknown field"}
		}
		return fieldError(TypeBxGy, string(key), err)
	}); err != nil {
		return nil, err
	}
	if !hasBuy {
		return nil, missing(TypeBxGy, "buyProducts")
	}
	if !hasGet {
		return nil, missing(TypeBxGy, "getProducts")
	}
	return cfg, nil
}

func decodeBundle(d *jx.Decoder) ([]ProductQuantity, error) {
	var out []ProductQuantity
	err := d.Arr(func(d *jx.Decoder) error {
		var (
			pq                  ProductQuantity
			hasProduct, hasQty bool
		)
		if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			var err error
			switch string(key) {
			case "productId":
				hasProduct = true
				pq.ProductID, err = d.Int64()
			case "quantity":
				hasQty = true
				pq.Quantity, err = d.Int()
			default:
				return errors.Errorf("unknown field %q", key)
			}
			return err
		}); err != nil {
			return err
		}
		if !hasProduct || !hasQty {
			return errors.New("each entry requires productId and quantity")
		}
		out = append(out, pq)
		return nil
	})
	return out, err
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}

func decodeNullDecimal(d *jx.Decoder) (decimal.NullDecimal, error) {
	if d.Next() == jx.Null {
		return decimal.NullDecimal{}, d.Null()
	}
	v, err := decodeDecimal(d)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(v), nil
}

func decodeOptionalInt(d *jx.Decoder, def int) (int, error) {
	if d.Next() == jx.Null {
		return def, d.Null()
	}
	return d.Int()
}

func decodeKind(d *jx.Decoder) (DiscountKind, error) {
	if d.Next() == jx.Null {
		return DiscountPercentage, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return "", err
	}
	// Validate reports unsupported kinds with the field name attached.
	return DiscountKind(s), nil
}

func encodeDecimal(e *jx.Encoder, name string, v decimal.Decimal) {
	e.FieldStart(name)
	e.Num(jx.Num(v.String()))
}

func (c *CartWiseConfig) Encode(e *jx.Encoder) {
	e.ObjStart()
	encodeDecimal(e, "threshold", c.Threshold)
	encodeDecimal(e, "discount", c.Discount)
	e.FieldStart("discountType")
	e.Str(string(c.Kind))
	if c.MinItemCount > 0 {
		e.FieldStart("minItems")
		e.Int(c.MinItemCount)
	}
	if c.MaxDiscount.Valid {
		encodeDecimal(e, "maxDiscount", c.MaxDiscount.Decimal)
	}
	e.ObjEnd()
}

func (c *ProductWiseConfig) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("productId")
	e.Int64(c.ProductID)
	encodeDecimal(e, "discount", c.Discount)
	e.FieldStart("discountType")
	e.Str(string(c.Kind))
	if c.MinQuantity > 0 {
		e.FieldStart("minQuantity")
		e.Int(c.MinQuantity)
	}
	if c.MaxDiscount.Valid {
		encodeDecimal(e, "maxDiscount", c.MaxDiscount.Decimal)
	}
	e.ObjEnd()
}

func (c *BxGyConfig) Encode(e *jx.Encoder) {
	e.ObjStart()
	encodeBundle(e, "buyProducts", c.BuyProducts)
	encodeBundle(e, "getProducts", c.GetProducts)
	e.FieldStart("repetitionLimit")
	e.Int(c.RepetitionLimit)
	e.ObjEnd()
}

func encodeBundle(e *jx.Encoder, name string, ps []ProductQuantity) {
	e.FieldStart(name)
	e.ArrStart()
	for _, p := range ps {
		e.ObjStart()
		e.FieldStart("productId")
		e.Int64(p.ProductID)
		e.FieldStart("quantity")
		e.Int(p.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
}
