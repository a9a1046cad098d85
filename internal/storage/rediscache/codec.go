package rediscache

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

func encodeDefinition(e *jx.Encoder, def coupon.Definition) {
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
	if def.ExpiresAt != nil {
		e.FieldStart("expiresAt")
		e.Str(def.ExpiresAt.Format(time.RFC3339Nano))
	}
	e.FieldStart("active")
	e.Bool(def.Active)
	e.FieldStart("createdAt")
	e.Str(def.CreatedAt.Format(time.RFC3339Nano))
	e.FieldStart("updatedAt")
	e.Str(def.UpdatedAt.Format(time.RFC3339Nano))
	e.ObjEnd()
}

func decodeDefinition(d *jx.Decoder) (coupon.Definition, error) {
	var (
		def coupon.Definition
		raw jx.Raw
	)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			def.ID, err = d.Int64()
		case "code":
			def.Code, err = d.Str()
		case "type":
			var s string
			s, err = d.Str()
			def.Type = coupon.Type(s)
		case "description":
			def.Description, err = d.Str()
		case "configuration":
			raw, err = d.Raw()
		case "expiresAt":
			var ts time.Time
			ts, err = decodeTime(d)
			def.ExpiresAt = &ts
		case "active":
			def.Active, err = d.Bool()
		case "createdAt":
			def.CreatedAt, err = decodeTime(d)
		case "updatedAt":
			def.UpdatedAt, err = decodeTime(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return def, errors.Wrap(err, "decode coupon")
	}
	def.Config, err = coupon.ParseConfiguration(def.Type, raw)
	if err != nil {
		return def, errors.Wrapf(err, "coupon %d", def.ID)
	}
	return def, nil
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, s)
}

func marshalDefinitions(defs []coupon.Definition) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, def := range defs {
		encodeDefinition(&e, def)
	}
	e.ArrEnd()
	return e.Bytes()
}

func unmarshalDefinitions(data []byte) ([]coupon.Definition, error) {
	var defs []coupon.Definition
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		def, err := decodeDefinition(d)
		if err != nil {
			return err
		}
		defs = append(defs, def)
		return nil
	})
	return defs, err
}

func marshalDefinition(def coupon.Definition) []byte {
	var e jx.Encoder
	encodeDefinition(&e, def)
	return e.Bytes()
}

func unmarshalDefinition(data []byte) (coupon.Definition, error) {
	return decodeDefinition(jx.DecodeBytes(data))
}
