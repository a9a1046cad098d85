package main

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

const (
	maxCodeLen        = 50
	maxDescriptionLen = 500
	localTimeLayout   = "2006-01-02T15:04:05"
)

// parseDocument decodes one NDJSON coupon document into a validated
// definition. The document uses the same field names as the coupon API.
func parseDocument(line []byte) (coupon.Definition, error) {
	var (
		def     = coupon.Definition{Active: true}
		rawType string
		rawCfg  jx.Raw
	)
	d := jx.DecodeBytes(line)
	if d.Next() != jx.Object {
		return coupon.Definition{}, errors.New("document must be a JSON object")
	}
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "code":
			def.Code, err = d.Str()
		case "type":
			rawType, err = d.Str()
		case "description":
			if d.Next() == jx.Null {
				return d.Null()
			}
			def.Description, err = d.Str()
		case "configuration", "details":
			rawCfg, err = d.Raw()
		case "expirationDate":
			def.ExpiresAt, err = decodeExpiration(d)
		case "isActive":
			def.Active, err = d.Bool()
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, string(key))
		}
		return nil
	}); err != nil {
		return coupon.Definition{}, errors.Wrap(err, "decode")
	}

	switch {
	case def.Code == "":
		return coupon.Definition{}, errors.New("code is required")
	case len(def.Code) > maxCodeLen:
		return coupon.Definition{}, errors.Errorf("code longer than %d characters", maxCodeLen)
	case len(def.Description) > maxDescriptionLen:
		return coupon.Definition{}, errors.Errorf("description longer than %d characters", maxDescriptionLen)
	case rawCfg == nil:
		return coupon.Definition{}, errors.New("configuration is required")
	}

	t, err := coupon.ParseType(rawType)
	if err != nil {
		return coupon.Definition{}, err
	}
	cfg, err := coupon.ParseConfiguration(t, rawCfg)
	if err != nil {
		return coupon.Definition{}, err
	}
	def.Type = t
	def.Config = cfg
	return def, nil
}

func decodeExpiration(d *jx.Decoder) (*time.Time, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return &ts, nil
	}
	ts, err := time.ParseInLocation(localTimeLayout, s, time.UTC)
	if err != nil {
		return nil, errors.Errorf("invalid timestamp %q", s)
	}
	return &ts, nil
}
