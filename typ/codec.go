package typ

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Codec converts a custom scalar between its wire form and its internal
// form. Decode takes client input, Encode produces client output. Both
// must tolerate already-converted values so formatting stays idempotent
// across layers.
type Codec interface {
	Name() string
	Decode(v interface{}) (interface{}, error)
	Encode(v interface{}) (interface{}, error)
}

// Codecs is the default codec registry keyed by codec name.
var Codecs = map[string]Codec{
	"date":     DateCodec{},
	"datetime": DateTimeCodec{},
	"decimal":  DecimalCodec{},
	"uuid":     UUIDCodec{},
}

// Date and DateTime are the custom types built on the registry.
var (
	Date     = Custom(DateCodec{})
	DateTime = Custom(DateTimeCodec{})
	Decimal  = Custom(DecimalCodec{})
	UUID     = Custom(UUIDCodec{})
)

// DateCodec maps calendar dates to ISO 8601 date strings.
type DateCodec struct{}

func (DateCodec) Name() string { return "date" }

func (DateCodec) Decode(v interface{}) (interface{}, error) {
	switch d := v.(type) {
	case time.Time:
		return d, nil
	case string:
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			return nil, errors.Wrapf(err, "decode date %q", d)
		}
		return t, nil
	}
	return nil, errors.Errorf("decode date: unexpected %T", v)
}

func (DateCodec) Encode(v interface{}) (interface{}, error) {
	switch d := v.(type) {
	case time.Time:
		return d.Format("2006-01-02"), nil
	case string:
		return d, nil
	}
	return nil, errors.Errorf("encode date: unexpected %T", v)
}

// DateTimeCodec maps timestamps to RFC 3339 strings in UTC.
type DateTimeCodec struct{}

func (DateTimeCodec) Name() string { return "datetime" }

func (DateTimeCodec) Decode(v interface{}) (interface{}, error) {
	switch d := v.(type) {
	case time.Time:
		return d, nil
	case string:
		t, err := time.Parse(time.RFC3339, d)
		if err != nil {
			return nil, errors.Wrapf(err, "decode datetime %q", d)
		}
		return t, nil
	}
	return nil, errors.Errorf("decode datetime: unexpected %T", v)
}

func (DateTimeCodec) Encode(v interface{}) (interface{}, error) {
	switch d := v.(type) {
	case time.Time:
		return d.UTC().Format(time.RFC3339), nil
	case string:
		return d, nil
	}
	return nil, errors.Errorf("encode datetime: unexpected %T", v)
}

// DecimalCodec maps arbitrary precision decimals to strings so no
// precision is lost in JSON transit.
type DecimalCodec struct{}

func (DecimalCodec) Name() string { return "decimal" }

func (DecimalCodec) Decode(v interface{}) (interface{}, error) {
	switch d := v.(type) {
	case decimal.Decimal:
		return d, nil
	case string:
		dec, err := decimal.NewFromString(d)
		if err != nil {
			return nil, errors.Wrapf(err, "decode decimal %q", d)
		}
		return dec, nil
	case float64:
		return decimal.NewFromFloat(d), nil
	case int64:
		return decimal.NewFromInt(d), nil
	case int:
		return decimal.NewFromInt(int64(d)), nil
	}
	return nil, errors.Errorf("decode decimal: unexpected %T", v)
}

func (DecimalCodec) Encode(v interface{}) (interface{}, error) {
	switch d := v.(type) {
	case decimal.Decimal:
		return d.String(), nil
	case string:
		return d, nil
	case float64:
		return decimal.NewFromFloat(d).String(), nil
	case int64:
		return decimal.NewFromInt(d).String(), nil
	}
	return nil, errors.Errorf("encode decimal: unexpected %T", v)
}

// UUIDCodec validates uuid strings and normalizes them to the canonical
// lowercase form.
type UUIDCodec struct{}

func (UUIDCodec) Name() string { return "uuid" }

func (UUIDCodec) Decode(v interface{}) (interface{}, error) {
	switch d := v.(type) {
	case uuid.UUID:
		return d, nil
	case string:
		id, err := uuid.Parse(d)
		if err != nil {
			return nil, errors.Wrapf(err, "decode uuid %q", d)
		}
		return id, nil
	}
	return nil, errors.Errorf("decode uuid: unexpected %T", v)
}

func (UUIDCodec) Encode(v interface{}) (interface{}, error) {
	switch d := v.(type) {
	case uuid.UUID:
		return d.String(), nil
	case string:
		id, err := uuid.Parse(d)
		if err != nil {
			return nil, errors.Wrapf(err, "encode uuid %q", d)
		}
		return id.String(), nil
	}
	return nil, errors.Errorf("encode uuid: unexpected %T", v)
}
