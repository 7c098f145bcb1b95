package typ

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{String, "string"},
		{Array(Int), "array<int>"},
		{Struct("user"), "@user"},
		{Opaque, "opaque"},
		{Union(
			Member{Name: "text", Type: String},
			Member{Name: "note", Type: Record(FieldSpec{Name: "body", Type: String})},
		), "union{text note}"},
		{Map(FieldSpec{Name: "a", Type: Int}), "map{a}"},
		{Tuple(FieldSpec{Name: "x", Type: Float}, FieldSpec{Name: "y", Type: Float}), "tuple{x y}"},
		{DateTime, "custom:datetime"},
		{Type{}, "void"},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, test.typ.String())
	}
}

func TestFieldLookup(t *testing.T) {
	rec := Record(
		FieldSpec{Name: "body", Type: String},
		FieldSpec{Name: "pinned", Type: Bool},
	)
	f := rec.Field("pinned")
	require.NotNil(t, f)
	assert.Equal(t, KindScalar, f.Type.Kind)
	assert.Nil(t, rec.Field("missing"))
	assert.Equal(t, 1, rec.FieldIndex("pinned"))
	assert.Equal(t, -1, rec.FieldIndex("missing"))
}

func TestMemberLookup(t *testing.T) {
	u := Union(
		Member{Name: "text", Type: String},
		Member{Name: "note", Type: Record(FieldSpec{Name: "body", Type: String}), Tag: "kind", TagValue: "note"},
	)
	m := u.Member("note")
	require.NotNil(t, m)
	assert.Equal(t, "kind", m.Tag)
	assert.Nil(t, u.Member("missing"))
}

func TestDateCodec(t *testing.T) {
	c := DateCodec{}
	v, err := c.Decode("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), v)

	s, err := c.Encode(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", s)

	_, err = c.Decode("03/01/2024")
	assert.Error(t, err)
	_, err = c.Decode(42)
	assert.Error(t, err)
}

func TestDateTimeCodec(t *testing.T) {
	c := DateTimeCodec{}
	v, err := c.Decode("2024-03-01T10:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), v)

	loc := time.FixedZone("CET", 3600)
	s, err := c.Encode(time.Date(2024, 3, 1, 11, 30, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T10:30:00Z", s)
}

func TestDecimalCodec(t *testing.T) {
	c := DecimalCodec{}
	v, err := c.Decode("123.456000000000000001")
	require.NoError(t, err)
	dec, ok := v.(decimal.Decimal)
	require.True(t, ok)

	s, err := c.Encode(dec)
	require.NoError(t, err)
	assert.Equal(t, "123.456000000000000001", s)

	_, err = c.Decode("not a number")
	assert.Error(t, err)
}

func TestUUIDCodec(t *testing.T) {
	c := UUIDCodec{}
	v, err := c.Decode("9E1BF4A8-0D3E-4E4C-8C3A-111111111111")
	require.NoError(t, err)
	id, ok := v.(uuid.UUID)
	require.True(t, ok)

	s, err := c.Encode(id)
	require.NoError(t, err)
	assert.Equal(t, "9e1bf4a8-0d3e-4e4c-8c3a-111111111111", s)

	_, err = c.Decode("nope")
	assert.Error(t, err)
}

func TestCodecsRegistry(t *testing.T) {
	for _, name := range []string{"date", "datetime", "decimal", "uuid"} {
		c, ok := Codecs[name]
		require.True(t, ok, name)
		assert.Equal(t, name, c.Name())
	}
}
