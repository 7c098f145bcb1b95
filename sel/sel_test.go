package sel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenslib/lens/dom/domtest"
	"github.com/lenslib/lens/sel"
)

func raw(els ...interface{}) []interface{} { return els }

func nested(name string, els ...interface{}) map[string]interface{} {
	return map[string]interface{}{name: els}
}

func TestParseFlat(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	ss, err := sel.Parse(s, s.Entity("todo"), raw("id", "title", "commentCount"))
	require.NoError(t, err)
	require.Len(t, ss, 3)
	assert.Equal(t, "id", ss[0].Key)
	assert.Equal(t, "title", ss[1].Key)
	assert.Equal(t, "comment_count", ss[2].Key)
	assert.Equal(t, "commentCount", ss[2].Name)
	assert.False(t, ss[2].Nested)
}

func TestParseLeavesFirst(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	ss, err := sel.Parse(s, s.Entity("todo"), raw(
		nested("assignee", "name"),
		"id",
		"title",
	))
	require.NoError(t, err)
	require.Len(t, ss, 3)
	assert.Equal(t, "id", ss[0].Key)
	assert.Equal(t, "title", ss[1].Key)
	assert.Equal(t, "assignee", ss[2].Key)
	assert.True(t, ss[2].Nested)
}

func TestParseOverrideThreading(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	ss, err := sel.Parse(s, s.Entity("todo"), raw(
		nested("assignee", "name", "URLSlug"),
	))
	require.NoError(t, err)
	sub := ss.Sel("assignee").Sub
	require.NotNil(t, sub.Sel("url_slug"))
	assert.Equal(t, "URLSlug", sub.Sel("url_slug").Name)
}

func TestParseDedup(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema

	ss, err := sel.Parse(s, s.Entity("todo"), raw("title", "title"))
	require.NoError(t, err)
	assert.Len(t, ss, 1)

	ss, err = sel.Parse(s, s.Entity("todo"), raw("assignee", nested("assignee", "name")))
	require.NoError(t, err)
	require.Len(t, ss, 1)
	assert.True(t, ss[0].Nested)
	require.Len(t, ss[0].Sub, 1)

	ss, err = sel.Parse(s, s.Entity("todo"), raw(
		nested("assignee", "name"),
		nested("assignee", "email"),
	))
	require.NoError(t, err)
	require.Len(t, ss, 1)
	assert.Len(t, ss[0].Sub, 2)

	ss, err = sel.Parse(s, s.Entity("todo"), raw(nested("assignee", "name"), "assignee"))
	require.NoError(t, err)
	require.Len(t, ss, 1)
	assert.True(t, ss[0].Nested)
}

func TestParseUnionMembers(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	ss, err := sel.Parse(s, s.Entity("todo"), raw(
		nested("content", "text", nested("note", "body", "pinned")),
	))
	require.NoError(t, err)
	content := ss.Sel("content")
	require.NotNil(t, content)
	require.Len(t, content.Sub, 2)
	assert.Equal(t, "text", content.Sub[0].Key)
	note := content.Sub.Sel("note")
	require.NotNil(t, note)
	assert.NotNil(t, note.Sub.Sel("pinned"))
}

func TestParseOpaqueKeysVerbatim(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	ss, err := sel.Parse(s, s.Entity("todo"), raw(
		nested("metadata", "legacyId", nested("NestedThing", "innerKey")),
	))
	require.NoError(t, err)
	md := ss.Sel("metadata")
	require.NotNil(t, md)
	assert.Equal(t, "legacyId", md.Sub[0].Key)
	nt := md.Sub.Sel("NestedThing")
	require.NotNil(t, nt)
	assert.Equal(t, "innerKey", nt.Sub[0].Key)
}

func TestParseSelfArgs(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	ss, err := sel.Parse(s, s.Entity("todo"), raw(
		nested("displayName", map[string]interface{}{"self": map[string]interface{}{"prefix": "Mr. "}}),
	))
	require.NoError(t, err)
	calc := ss.Sel("display_name")
	require.NotNil(t, calc)
	assert.Empty(t, calc.Sub)
	assert.Equal(t, "Mr. ", calc.Args["prefix"])
}

func TestParseMalformed(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	tests := []struct {
		name string
		raw  []interface{}
	}{
		{"multi key map", raw(map[string]interface{}{"a": []interface{}{}, "b": []interface{}{}})},
		{"non list nested", raw(map[string]interface{}{"assignee": "name"})},
		{"numeric entry", raw(42)},
		{"self at top level", raw(map[string]interface{}{"self": map[string]interface{}{}})},
		{"self args not a map", raw(nested("displayName", map[string]interface{}{"self": "x"}))},
	}
	for _, test := range tests {
		_, err := sel.Parse(s, s.Entity("todo"), test.raw)
		require.Error(t, err, test.name)
		var merr *sel.MalformedError
		assert.ErrorAs(t, err, &merr, test.name)
	}
}

func TestParseUnknownFieldPasses(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	ss, err := sel.Parse(s, s.Entity("todo"), raw("bogusField", nested("alsoBogus", "x")))
	require.NoError(t, err)
	assert.Equal(t, "bogus_field", ss[0].Key)
	assert.Equal(t, "bogusField", ss[0].Name)
	assert.Equal(t, "also_bogus", ss[1].Key)
}

func TestFingerprint(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	todo := s.Entity("todo")

	a, err := sel.Parse(s, todo, raw("id", nested("assignee", "name")))
	require.NoError(t, err)
	b, err := sel.Parse(s, todo, raw("id", nested("assignee", "name")))
	require.NoError(t, err)
	assert.Equal(t, sel.Fingerprint("todo", "read", a), sel.Fingerprint("todo", "read", b))

	c, err := sel.Parse(s, todo, raw("id", nested("assignee", "email")))
	require.NoError(t, err)
	assert.NotEqual(t, sel.Fingerprint("todo", "read", a), sel.Fingerprint("todo", "read", c))
	assert.NotEqual(t, sel.Fingerprint("todo", "read", a), sel.Fingerprint("todo", "list", a))

	d, err := sel.Parse(s, todo, raw(
		nested("displayName", map[string]interface{}{"self": map[string]interface{}{"prefix": "a"}}),
	))
	require.NoError(t, err)
	e, err := sel.Parse(s, todo, raw(
		nested("displayName", map[string]interface{}{"self": map[string]interface{}{"prefix": "b"}}),
	))
	require.NoError(t, err)
	assert.NotEqual(t, sel.Fingerprint("todo", "read", d), sel.Fingerprint("todo", "read", e))
}
