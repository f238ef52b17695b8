package wire

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// OrderLine is one product entry of an order. Name is only present in
// responses.
type OrderLine struct {
	ProductID string
	Name      string
	Quantity  int
	Price     decimal.Decimal
}

// Encode writes the line object.
func (l OrderLine) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("productId")
	e.Str(l.ProductID)
	if l.Name != "" {
		e.FieldStart("name")
		e.Str(l.Name)
	}
	e.FieldStart("quantity")
	e.Int(l.Quantity)
	e.FieldStart("price")
	EncodeDecimal(e, l.Price)
	e.ObjEnd()
}

// Decode reads a line object.
func (l *OrderLine) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			l.ProductID, err = d.Str()
		case "name":
			l.Name, err = d.Str()
		case "quantity":
			l.Quantity, err = d.Int()
		case "price":
			l.Price, err = DecodeDecimal(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
}

func encodeLines(e *jx.Encoder, lines []OrderLine) {
	e.ArrStart()
	for _, l := range lines {
		l.Encode(e)
	}
	e.ArrEnd()
}

func decodeLines(d *jx.Decoder) ([]OrderLine, error) {
	out := []OrderLine{}
	err := d.Arr(func(d *jx.Decoder) error {
		var l OrderLine
		if err := l.Decode(d); err != nil {
			return err
		}
		out = append(out, l)
		return nil
	})
	return out, err
}

// OrderRequest is the body of POST /orders.
type OrderRequest struct {
	Name     string
	Surname  string
	Phone    string
	State    string
	Products []OrderLine
}

// Encode writes the request with its lines under "products".
func (r OrderRequest) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("name")
	e.Str(r.Name)
	e.FieldStart("surname")
	e.Str(r.Surname)
	e.FieldStart("phone")
	e.Str(r.Phone)
	e.FieldStart("state")
	e.Str(r.State)
	e.FieldStart("products")
	encodeLines(e, r.Products)
	e.ObjEnd()
}

// Decode reads a request. Lines may be sent under "products" or "items".
func (r *OrderRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			r.Name, err = d.Str()
		case "surname":
			r.Surname, err = d.Str()
		case "phone":
			r.Phone, err = d.Str()
		case "state":
			r.State, err = d.Str()
		case "products", "items":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var lines []OrderLine
			lines, err = decodeLines(d)
			r.Products = append(r.Products, lines...)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
}

// Order is a placed order as returned by the API.
type Order struct {
	ID        string
	Name      string
	Surname   string
	Phone     string
	State     string
	Products  []OrderLine
	Total     decimal.Decimal
	Confirmed bool
	CreatedAt time.Time
}

// Encode writes the order object.
func (o Order) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("_id")
	e.Str(o.ID)
	e.FieldStart("name")
	e.Str(o.Name)
	e.FieldStart("surname")
	e.Str(o.Surname)
	e.FieldStart("phone")
	e.Str(o.Phone)
	e.FieldStart("state")
	e.Str(o.State)
	e.FieldStart("products")
	encodeLines(e, o.Products)
	e.FieldStart("total")
	EncodeDecimal(e, o.Total)
	e.FieldStart("confirmed")
	e.Bool(o.Confirmed)
	e.FieldStart("createdAt")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()
}

// Decode reads an order object.
func (o *Order) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "_id", "id":
			o.ID, err = d.Str()
		case "name":
			o.Name, err = d.Str()
		case "surname":
			o.Surname, err = d.Str()
		case "phone":
			o.Phone, err = d.Str()
		case "state":
			o.State, err = d.Str()
		case "products":
			o.Products, err = decodeLines(d)
		case "total":
			o.Total, err = DecodeDecimal(d)
		case "confirmed":
			o.Confirmed, err = d.Bool()
		case "createdAt":
			var s string
			if s, err = d.Str(); err == nil {
				o.CreatedAt, err = time.Parse(time.RFC3339Nano, s)
			}
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
}

// EncodeOrders writes a JSON array of orders.
func EncodeOrders(e *jx.Encoder, orders []Order) {
	e.ArrStart()
	for _, o := range orders {
		o.Encode(e)
	}
	e.ArrEnd()
}

// DecodeOrders reads a JSON array of orders.
func DecodeOrders(d *jx.Decoder) ([]Order, error) {
	out := []Order{}
	err := d.Arr(func(d *jx.Decoder) error {
		var o Order
		if err := o.Decode(d); err != nil {
			return err
		}
		out = append(out, o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
