package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/discount"
)

// localTimeLayout is accepted for timestamps sent without a zone; they are
// read as UTC.
const localTimeLayout = "2006-01-02T15:04:05"

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if len(data) > maxBodySize {
		return nil, badRequest("request body exceeds %d bytes", maxBodySize)
	}
	if len(data) == 0 {
		return nil, badRequest("request body is required")
	}
	return data, nil
}

// decodeObject runs fn for every key of the JSON object in data. Syntax
// errors are reported as bad requests; errors returned by fn keep their type.
func decodeObject(data []byte, fn func(d *jx.Decoder, key string) error) error {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return badRequest("request body must be a JSON object")
	}
	return wrapDecodeError(d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		return fn(d, string(key))
	}))
}

func wrapDecodeError(err error) error {
	if err == nil {
		return nil
	}
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}
	return badRequest("malformed JSON: %s", err)
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(n.String())
}

func decodeTimestamp(d *jx.Decoder, field string) (*time.Time, error) {
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
		return nil, badRequest("%s: invalid timestamp %q", field, s)
	}
	return &ts, nil
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid coupon id %q", raw)
	}
	return id, nil
}

func encodeMoney(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(discount.Round(v).StringFixed(2)))
}
