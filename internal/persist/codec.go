package persist

import (
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/wire"
)

// Encode serializes the items of s as {"items":[...]}. No other part of the
// state is written.
func Encode(s cart.State) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range s.Items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(it.ProductID)
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("price")
		wire.EncodeDecimal(e, it.Price)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("imageUrl")
		e.Str(it.ImageURL)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()

	return slices.Clone(e.Bytes())
}

// Decode parses a payload written by Encode. Payloads from older clients that
// stored the image under "image" are accepted. Items that break the cart
// invariants are dropped and duplicate product IDs are merged.
func Decode(data []byte) (cart.State, error) {
	var s cart.State
	err := wire.Unmarshal(data, func(d *jx.Decoder) error {
		if d.Next() != jx.Object {
			return errors.New("payload is not an object")
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "items" {
				return d.Skip()
			}
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Arr(func(d *jx.Decoder) error {
				it, err := decodeItem(d)
				if err != nil {
					return err
				}
				s.Items = append(s.Items, it)
				return nil
			})
		})
	})
	if err != nil {
		return cart.State{}, errors.Wrap(err, "decode cart")
	}
	return cart.Normalize(s), nil
}

func decodeItem(d *jx.Decoder) (cart.LineItem, error) {
	var (
		it       cart.LineItem
		legacy   string
		imageSet bool
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			it.ProductID, err = d.Str()
		case "name":
			it.Name, err = d.Str()
		case "price":
			it.Price, err = wire.DecodeDecimal(d)
		case "quantity":
			it.Quantity, err = d.Int()
		case "imageUrl":
			it.ImageURL, err = d.Str()
			imageSet = true
		case "image":
			legacy, err = d.Str()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return cart.LineItem{}, err
	}
	if !imageSet {
		it.ImageURL = legacy
	}
	return it, nil
}
