package shape_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenslib/lens/dom"
	"github.com/lenslib/lens/dom/domtest"
	"github.com/lenslib/lens/shape"
	"github.com/lenslib/lens/typ"
)

func formatter(t *testing.T) (shape.Formatter, *dom.Entity) {
	t.Helper()
	fix := domtest.Must(domtest.TodoFixture())
	return shape.Formatter{Schema: fix.Schema}, fix.Schema.Entity("todo")
}

func TestScalarRoundTrip(t *testing.T) {
	f, todo := formatter(t)
	tests := []struct {
		typ  typ.Type
		in   interface{}
		want interface{}
	}{
		{typ.String, "hello", "hello"},
		{typ.Int, float64(42), int64(42)},
		{typ.Int, 42, int64(42)},
		{typ.Float, 42, float64(42)},
		{typ.Bool, true, true},
		{typ.Any, "anything", "anything"},
	}
	for _, test := range tests {
		in, err := f.ToInternal(todo, test.typ, test.in)
		require.NoError(t, err)
		assert.Equal(t, test.want, in)
		out, err := f.ToClient(todo, test.typ, in)
		require.NoError(t, err)
		assert.Equal(t, test.want, out)
	}
}

func TestScalarErrors(t *testing.T) {
	f, todo := formatter(t)
	var verr *shape.ValueError

	_, err := f.ToInternal(todo, typ.Int, 4.5)
	require.Error(t, err)
	assert.ErrorAs(t, err, &verr)
	_, err = f.ToInternal(todo, typ.String, 42)
	assert.Error(t, err)
	_, err = f.ToInternal(todo, typ.Bool, "true")
	assert.Error(t, err)
}

func TestCustomScalars(t *testing.T) {
	f, todo := formatter(t)

	in, err := f.ToInternal(todo, typ.DateTime, "2024-03-01T10:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), in)
	out, err := f.ToClient(todo, typ.DateTime, in)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T10:30:00Z", out)

	out, err = f.ToClient(todo, typ.Decimal, "150.75")
	require.NoError(t, err)
	assert.Equal(t, "150.75", out)
}

func TestNilPassesThrough(t *testing.T) {
	f, todo := formatter(t)
	out, err := f.ToClient(todo, typ.String, nil)
	require.NoError(t, err)
	assert.Nil(t, out)
	in, err := f.ToInternal(todo, typ.Int, nil)
	require.NoError(t, err)
	assert.Nil(t, in)
}

func TestArray(t *testing.T) {
	f, todo := formatter(t)
	out, err := f.ToClient(todo, typ.Array(typ.Int), []interface{}{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(1), int64(2), int64(3)}, out)

	_, err = f.ToClient(todo, typ.Array(typ.Int), "nope")
	assert.Error(t, err)
}

func TestTypedMapKeys(t *testing.T) {
	f, todo := formatter(t)
	mt := typ.Map(
		typ.FieldSpec{Name: "color_name", Type: typ.String},
		typ.FieldSpec{Name: "notify", Type: typ.Bool},
	)
	out, err := f.ToClient(todo, mt, map[string]interface{}{"color_name": "red", "notify": true})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"colorName": "red", "notify": true}, out)

	in, err := f.ToInternal(todo, mt, map[string]interface{}{"colorName": "red"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"color_name": "red"}, in)

	_, err = f.ToInternal(todo, mt, map[string]interface{}{"unknownKey": 1})
	assert.Error(t, err)
}

func TestTuple(t *testing.T) {
	f, todo := formatter(t)
	tt := typ.Tuple(
		typ.FieldSpec{Name: "lat", Type: typ.Float},
		typ.FieldSpec{Name: "lng", Type: typ.Float},
	)
	out, err := f.ToClient(todo, tt, []interface{}{52.52, 13.405})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"lat": 52.52, "lng": 13.405}, out)

	in, err := f.ToInternal(todo, tt, map[string]interface{}{"lat": 1.0, "lng": 2.0})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1.0, 2.0}, in)

	in, err = f.ToInternal(todo, tt, []interface{}{1.0, 2.0})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1.0, 2.0}, in)

	_, err = f.ToClient(todo, tt, []interface{}{1.0})
	assert.Error(t, err)
	_, err = f.ToInternal(todo, tt, map[string]interface{}{"lat": 1.0})
	assert.Error(t, err)
}

func TestStruct(t *testing.T) {
	f, todo := formatter(t)
	ut := typ.Struct("user")

	out, err := f.ToClient(todo, ut, map[string]interface{}{
		"name":     "Ana Gram",
		"url_slug": "ana-gram",
		"email":    dom.NotLoaded,
		"id":       dom.Forbidden,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"name":    "Ana Gram",
		"URLSlug": "ana-gram",
		"id":      nil,
	}, out)

	in, err := f.ToInternal(todo, ut, map[string]interface{}{"URLSlug": "bo-katan"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"url_slug": "bo-katan"}, in)

	_, err = f.ToInternal(todo, ut, map[string]interface{}{"bogus": 1})
	assert.Error(t, err)
}

func TestUnionTagMatch(t *testing.T) {
	f, todo := formatter(t)
	ct := todo.Field("content").Type

	in, err := f.ToInternal(todo, ct, map[string]interface{}{
		"kind":   "note",
		"body":   "remember",
		"pinned": true,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"note": map[string]interface{}{"body": "remember", "pinned": true},
	}, in)
}

func TestUnionStructuralMatch(t *testing.T) {
	f, todo := formatter(t)
	ct := todo.Field("content").Type

	in, err := f.ToInternal(todo, ct, "just text")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"text": "just text"}, in)

	in, err = f.ToInternal(todo, ct, map[string]interface{}{"body": "b", "pinned": false})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"note": map[string]interface{}{"body": "b", "pinned": false},
	}, in)
}

func TestUnionNoMatch(t *testing.T) {
	f, todo := formatter(t)
	ct := todo.Field("content").Type

	_, err := f.ToInternal(todo, ct, 42)
	require.Error(t, err)
	var uerr *shape.UnionError
	require.ErrorAs(t, err, &uerr)
	assert.False(t, uerr.Ambiguous)
}

func TestUnionAmbiguous(t *testing.T) {
	f, todo := formatter(t)
	ut := typ.Union(
		typ.Member{Name: "a", Type: typ.String},
		typ.Member{Name: "b", Type: typ.String},
	)
	_, err := f.ToInternal(todo, ut, "either")
	require.Error(t, err)
	var uerr *shape.UnionError
	require.ErrorAs(t, err, &uerr)
	assert.True(t, uerr.Ambiguous)
	assert.ElementsMatch(t, []string{"a", "b"}, uerr.Candidates)
}

func TestUnionToClient(t *testing.T) {
	f, todo := formatter(t)
	ct := todo.Field("content").Type

	out, err := f.ToClient(todo, ct, map[string]interface{}{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"text": "hello"}, out)

	out, err = f.ToClient(todo, ct, map[string]interface{}{
		"note": map[string]interface{}{"body": "b", "pinned": true},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"note": map[string]interface{}{"body": "b", "pinned": true},
	}, out)

	_, err = f.ToClient(todo, ct, map[string]interface{}{"bogus": 1})
	assert.Error(t, err)
	_, err = f.ToClient(todo, ct, "bare")
	assert.Error(t, err)
}

func TestOpaquePassthrough(t *testing.T) {
	f, todo := formatter(t)
	val := map[string]interface{}{"snake_case_key": 1, "CamelKey": []interface{}{true}}

	out, err := f.ToClient(todo, typ.Opaque, val)
	require.NoError(t, err)
	assert.Equal(t, val, out)

	in, err := f.ToInternal(todo, typ.Opaque, val)
	require.NoError(t, err)
	assert.Equal(t, val, in)
}

func TestOpaqueStringifyKeys(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	f := shape.Formatter{Schema: fix.Schema, StringifyMapKeys: true}
	todo := fix.Schema.Entity("todo")

	out, err := f.ToClient(todo, typ.Opaque, map[interface{}]interface{}{
		42: "answer", "k": map[interface{}]interface{}{true: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"42": "answer",
		"k":  map[string]interface{}{"true": int(1)},
	}, out)
}
