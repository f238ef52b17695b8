// Package wire contains the JSON representations exchanged between the
// storefront API and its clients.
//
// Field names follow the public API: products are keyed by "_id", order
// lines are carried under "products".
package wire

import (
	"io"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// EncodeDecimal writes v as a JSON number.
func EncodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.RawStr(v.String())
}

// DecodeDecimal reads a JSON number, or a string holding a number.
func DecodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch tt := d.Next(); tt {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(string(n))
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	default:
		return decimal.Decimal{}, errors.Errorf("expected number, got %s", tt)
	}
}

// Marshal runs enc against a pooled encoder and returns a copy of the
// produced bytes.
func Marshal(enc func(e *jx.Encoder)) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	enc(e)
	return slices.Clone(e.Bytes())
}

// ErrTrailingData is returned by Unmarshal when bytes follow the decoded
// value.
var ErrTrailingData = errors.New("unexpected trailing data")

// Unmarshal runs decode over data and requires that nothing but whitespace
// follows the decoded value.
func Unmarshal(data []byte, decode func(d *jx.Decoder) error) error {
	d := jx.DecodeBytes(data)
	if err := decode(d); err != nil {
		return err
	}
	if err := d.Skip(); !errors.Is(err, io.EOF) {
		return ErrTrailingData
	}
	return nil
}

// Error is the body of every non-2xx API response.
type Error struct {
	Message string
}

// Encode writes {"error": message}.
func (v Error) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("error")
	e.Str(v.Message)
	e.ObjEnd()
}

// Decode reads an error body. Bodies using "message" instead of "error" are
// accepted as well.
func (v *Error) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "error", "message":
			if d.Next() != jx.String {
				return d.Skip()
			}
			s, err := d.Str()
			if err != nil {
				return err
			}
			if v.Message == "" {
				v.Message = s
			}
			return nil
		default:
			return d.Skip()
		}
	})
}

// Confirmation toggles the confirmed flag of an order.
type Confirmation struct {
	Confirmed bool
}

// Encode writes {"confirmed": bool}.
func (v Confirmation) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("confirmed")
	e.Bool(v.Confirmed)
	e.ObjEnd()
}

// Decode reads a confirmation body.
func (v *Confirmation) Decode(d *jx.Decoder) error {
	seen := false
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "confirmed" {
			return d.Skip()
		}
		b, err := d.Bool()
		if err != nil {
			return errors.Wrap(err, "confirmed")
		}
		v.Confirmed = b
		seen = true
		return nil
	}); err != nil {
		return err
	}
	if !seen {
		return errors.New("confirmed is required")
	}
	return nil
}
