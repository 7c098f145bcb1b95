package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenslib/lens/typ"
)

const rawSchema = `
name: app
naming: camel
entities:
  - name: user
    overrides:
      url_slug: URLSlug
    fields:
      - name: id
        type: uuid
      - name: name
        type: string
      - name: url_slug
        type: string
  - name: comment
    fields:
      - name: id
        type: uuid
      - name: body
        type: string
      - name: author
        rel: user
  - name: todo
    table: todos
    fields:
      - name: id
        type: uuid
      - name: title
        type: string
      - name: due_on
        type: date
      - name: budget
        type: decimal
      - name: tags
        type:
          array: string
      - name: metadata
        type: opaque
      - name: content
        type:
          union:
            - name: text
              type: string
            - name: note
              tag: kind
              tag_value: note
              type:
                record:
                  - name: body
                    type: string
                  - name: pinned
                    type: bool
      - name: position
        type:
          tuple:
            - name: lat
              type: float
            - name: lng
              type: float
      - name: assignee
        rel: user
      - name: comments
        rel: comment
        many: true
      - name: comment_count
        aggr: count
        path: comments
      - name: last_comment_body
        aggr: first
        path: comments
        of: body
      - name: display_name
        calc: true
        type: string
        args:
          - name: prefix
            type: string
            required: true
`

func TestParseSchema(t *testing.T) {
	s, err := ParseSchema([]byte(rawSchema))
	require.NoError(t, err)
	assert.Equal(t, "app", s.Name)
	require.Len(t, s.Entities, 3)

	todo := s.Entity("todo")
	require.NotNil(t, todo)
	assert.Equal(t, "todos", todo.TableName())
	assert.Equal(t, "user", s.Entity("user").TableName())

	assert.Equal(t, typ.KindCustom, todo.Field("due_on").Type.Kind)
	assert.Equal(t, "decimal", todo.Field("budget").Type.Codec.Name())
	assert.Equal(t, typ.KindArray, todo.Field("tags").Type.Kind)
	assert.Equal(t, typ.KindOpaque, todo.Field("metadata").Type.Kind)
	assert.Equal(t, typ.KindTuple, todo.Field("position").Type.Kind)

	content := todo.Field("content").Type
	require.Equal(t, typ.KindUnion, content.Kind)
	require.Len(t, content.Members, 2)
	note := content.Member("note")
	require.NotNil(t, note)
	assert.Equal(t, "kind", note.Tag)
	assert.Equal(t, "note", note.TagValue)
	require.Equal(t, typ.KindRecord, note.Type.Kind)
	assert.Equal(t, 2, len(note.Type.Fields))

	assert.Equal(t, KindRel, todo.Field("assignee").Kind)
	assert.True(t, todo.Field("comments").Many)

	count := todo.Field("comment_count")
	assert.Equal(t, KindAggr, count.Kind)
	assert.Equal(t, AggrCount, count.Aggr)
	assert.Equal(t, typ.Int, count.Type)
	assert.Equal(t, typ.String, todo.Field("last_comment_body").Type)

	calc := todo.Field("display_name")
	assert.Equal(t, KindCalc, calc.Kind)
	require.Len(t, calc.Args, 1)
	assert.True(t, calc.Args[0].Required)

	assert.Equal(t, "URLSlug", s.ToClient(s.Entity("user"), "url_slug"))
}

func TestParseSchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"bad yaml", `entities: [`},
		{"bad naming", "naming: shouty\nentities:"},
		{"unknown type", "entities:\n - name: a\n   fields:\n    - name: x\n      type: blob"},
		{"unknown aggr", "entities:\n - name: a\n   fields:\n    - name: x\n      aggr: median\n      path: r"},
		{"missing type", "entities:\n - name: a\n   fields:\n    - name: x"},
		{"args on attr", "entities:\n - name: a\n   fields:\n    - name: x\n      type: string\n      args:\n       - name: p"},
		{"unknown codec", "entities:\n - name: a\n   fields:\n    - name: x\n      type:\n        custom: blob"},
		{"empty type mapping", "entities:\n - name: a\n   fields:\n    - name: x\n      type: {}"},
		{"unknown rel target", "entities:\n - name: a\n   fields:\n    - name: x\n      rel: nope"},
	}
	for _, test := range tests {
		_, err := ParseSchema([]byte(test.raw))
		assert.Error(t, err, test.name)
	}
}

func TestParseSchemaWithCustomCodecs(t *testing.T) {
	codecs := map[string]typ.Codec{"uuid": typ.UUIDCodec{}}
	raw := "entities:\n - name: a\n   fields:\n    - name: id\n      type: uuid"
	s, err := ParseSchemaWith([]byte(raw), codecs)
	require.NoError(t, err)
	assert.Equal(t, "uuid", s.Entity("a").Field("id").Type.Codec.Name())

	raw = "entities:\n - name: a\n   fields:\n    - name: t\n      type: datetime"
	_, err = ParseSchemaWith([]byte(raw), codecs)
	assert.Error(t, err)
}
