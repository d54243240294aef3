package api

import (
	"math"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Decode decodes SyncRequest from JSON. Missing or null products and order
// leave the fields empty; wrong JSON types are errors.
func (s *SyncRequest) Decode(d *jx.Decoder) error {
	if s == nil {
		return errors.New("invalid: unable to decode SyncRequest to nil")
	}
	if err := expectObject(d); err != nil {
		return err
	}
	return d.ObjBytes(func(d *jx.Decoder, k []byte) error {
		switch string(k) {
		case "products":
			if d.Next() == jx.Null {
				return d.Null()
			}
			s.Products = s.Products[:0]
			if err := d.Arr(func(d *jx.Decoder) error {
				var p ProductInput
				if err := p.Decode(d); err != nil {
					return err
				}
				s.Products = append(s.Products, p)
				return nil
			}); err != nil {
				return errors.Wrap(err, "decode field \"products\"")
			}
		case "order":
			if err := s.Order.Decode(d); err != nil {
				return errors.Wrap(err, "decode field \"order\"")
			}
		default:
			return d.Skip()
		}
		return nil
	})
}

// Decode decodes ProductInput from JSON. Numeric fields accept JSON numbers
// and numeric strings.
func (s *ProductInput) Decode(d *jx.Decoder) error {
	if s == nil {
		return errors.New("invalid: unable to decode ProductInput to nil")
	}
	if err := expectObject(d); err != nil {
		return err
	}
	return d.ObjBytes(func(d *jx.Decoder, k []byte) error {
		var err error
		switch string(k) {
		case "sku":
			s.SKU, err = decodeString(d)
		case "title":
			s.Title, err = decodeString(d)
		case "description":
			s.Description, err = decodeString(d)
		case "price":
			s.Price, err = decodeDecimal(d)
		case "stock_quantity":
			s.StockQuantity, err = decodeStock(d)
		case "weight":
			s.Weight, err = decodeDecimal(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode field %q", k)
		}
		return nil
	})
}

// Decode decodes OptOrder from JSON. Null and empty objects leave it unset.
func (o *OptOrder) Decode(d *jx.Decoder) error {
	if o == nil {
		return errors.New("invalid: unable to decode OptOrder to nil")
	}
	if d.Next() == jx.Null {
		*o = OptOrder{}
		return d.Null()
	}
	if err := expectObject(d); err != nil {
		return err
	}

	var (
		v    Order
		keys int
	)
	if err := d.ObjBytes(func(d *jx.Decoder, k []byte) error {
		keys++
		switch string(k) {
		case "user":
			if d.Next() == jx.Null {
				return d.Null()
			}
			if err := v.User.Decode(d); err != nil {
				return errors.Wrap(err, "decode field \"user\"")
			}
		case "shipping":
			var opt OptAddress
			if err := opt.Decode(d); err != nil {
				return errors.Wrap(err, "decode field \"shipping\"")
			}
			v.Shipping = opt.Value
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return err
	}

	*o = OptOrder{Value: v, Set: keys > 0}
	return nil
}

// Decode decodes User from JSON.
func (s *User) Decode(d *jx.Decoder) error {
	if s == nil {
		return errors.New("invalid: unable to decode User to nil")
	}
	if err := expectObject(d); err != nil {
		return err
	}
	return d.ObjBytes(func(d *jx.Decoder, k []byte) error {
		var err error
		switch string(k) {
		case "email":
			s.Email, err = decodeString(d)
		case "first_name":
			s.FirstName, err = decodeString(d)
		case "last_name":
			s.LastName, err = decodeString(d)
		case "billing":
			err = s.Billing.Decode(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode field %q", k)
		}
		return nil
	})
}

// Decode decodes OptAddress from JSON. Null leaves it unset; any object,
// including an empty one, sets it.
func (o *OptAddress) Decode(d *jx.Decoder) error {
	if o == nil {
		return errors.New("invalid: unable to decode OptAddress to nil")
	}
	if d.Next() == jx.Null {
		*o = OptAddress{}
		return d.Null()
	}
	if err := expectObject(d); err != nil {
		return err
	}

	var v Address
	if err := d.ObjBytes(func(d *jx.Decoder, k []byte) error {
		var (
			field *string
			err   error
		)
		switch string(k) {
		case "first_name":
			field = &v.FirstName
		case "last_name":
			field = &v.LastName
		case "company":
			field = &v.Company
		case "address_1":
			field = &v.Address1
		case "address_2":
			field = &v.Address2
		case "city":
			field = &v.City
		case "state":
			field = &v.State
		case "postcode":
			field = &v.Postcode
		case "country":
			field = &v.Country
		case "email":
			field = &v.Email
		case "phone":
			field = &v.Phone
		default:
			return d.Skip()
		}
		if *field, err = decodeString(d); err != nil {
			return errors.Wrapf(err, "decode field %q", k)
		}
		return nil
	}); err != nil {
		return err
	}

	*o = OptAddress{Value: v, Set: true}
	return nil
}

func expectObject(d *jx.Decoder) error {
	if tt := d.Next(); tt != jx.Object {
		return errors.Errorf("unexpected type %s, want object", tt)
	}
	return nil
}

// decodeString reads a string field. Numbers are kept as their literal text
// and null is the empty string.
func decodeString(d *jx.Decoder) (string, error) {
	switch tt := d.Next(); tt {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", errors.Errorf("unexpected type %s, want string", tt)
	}
}

var (
	minStock = decimal.NewFromInt(math.MinInt32)
	maxStock = decimal.NewFromInt(math.MaxInt32)
)

// decodeStock reads a stock quantity. Fractions are truncated; values outside
// the 32-bit range the store keeps are errors.
func decodeStock(d *jx.Decoder) (int, error) {
	v, err := decodeDecimal(d)
	if err != nil {
		return 0, err
	}
	v = v.Truncate(0)
	if v.LessThan(minStock) || v.GreaterThan(maxStock) {
		return 0, errors.Errorf("stock quantity %s out of range", v)
	}
	return int(v.IntPart()), nil
}

// decodeDecimal reads a number or a numeric string. Null and blank strings
// are zero.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch tt := d.Next(); tt {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		if s = strings.TrimSpace(s); s == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(s)
	case jx.Null:
		return decimal.Zero, d.Null()
	default:
		return decimal.Zero, errors.Errorf("unexpected type %s, want number", tt)
	}
}
