package proj_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lenslib/lens/dom"
	"github.com/lenslib/lens/dom/domtest"
	"github.com/lenslib/lens/fetch"
	"github.com/lenslib/lens/plan"
	"github.com/lenslib/lens/proj"
	"github.com/lenslib/lens/sel"
)

func raw(els ...interface{}) []interface{} { return els }

func nested(name string, els ...interface{}) map[string]interface{} {
	return map[string]interface{}{name: els}
}

func compile(t *testing.T, s *dom.Schema, e *dom.Entity, rawSel []interface{}) *plan.Template {
	t.Helper()
	ss, err := sel.Parse(s, e, rawSel)
	require.NoError(t, err)
	_, tmpl, err := plan.Compile(s, e, ss)
	require.NoError(t, err)
	return tmpl
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	out, err := json.Marshal(v)
	require.NoError(t, err)
	return string(out)
}

func TestProjectRecord(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	todo := s.Entity("todo")
	tmpl := compile(t, s, todo, raw("id", "title", nested("assignee", "id", "name")))
	p := proj.New(s)

	rec := fetch.Record{
		"id":    "AAAAAAAA-0000-0000-0000-000000000001",
		"title": "Fix the sink",
		"assignee": map[string]interface{}{
			"id":   "bbbbbbbb-0000-0000-0000-000000000002",
			"name": "Bo",
		},
	}
	d, err := p.Record(tmpl, rec)
	require.NoError(t, err)
	require.Equal(t,
		`{"id":"aaaaaaaa-0000-0000-0000-000000000001","title":"Fix the sink",`+
			`"assignee":{"id":"bbbbbbbb-0000-0000-0000-000000000002","name":"Bo"}}`,
		mustJSON(t, d))
}

func TestProjectKeyOrder(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	todo := s.Entity("todo")
	tmpl := compile(t, s, todo, raw("title", "priority", "completed"))
	p := proj.New(s)
	rec := fetch.Record{"completed": false, "priority": 2, "title": "x"}
	d, err := p.Record(tmpl, rec)
	require.NoError(t, err)
	require.Equal(t, `{"title":"x","priority":2,"completed":false}`, mustJSON(t, d))
}

func TestProjectIdempotent(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	todo := s.Entity("todo")
	tmpl := compile(t, s, todo, raw("title", nested("comments", "body"), nested("content", "text")))
	p := proj.New(s)
	rec := fetch.Record{
		"title":    "x",
		"comments": []fetch.Record{{"body": "a"}, {"body": "b"}},
		"content":  map[string]interface{}{"text": "hi"},
	}
	a, err := p.Record(tmpl, rec)
	require.NoError(t, err)
	b, err := p.Record(tmpl, rec)
	require.NoError(t, err)
	require.Equal(t, mustJSON(t, a), mustJSON(t, b))
}

func TestProjectSentinels(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	todo := s.Entity("todo")
	tmpl := compile(t, s, todo, raw("id", "title", "priority", nested("assignee", "name")))
	p := proj.New(s)
	rec := fetch.Record{
		"id":       "aaaaaaaa-0000-0000-0000-000000000001",
		"title":    dom.NotLoaded,
		"priority": dom.Forbidden,
		"assignee": dom.Forbidden,
	}
	d, err := p.Record(tmpl, rec)
	require.NoError(t, err)
	require.Equal(t, []string{"id", "priority", "assignee"}, d.Keys())
	require.Equal(t,
		`{"id":"aaaaaaaa-0000-0000-0000-000000000001","priority":null,"assignee":null}`,
		mustJSON(t, d))
}

func TestProjectMissingOmitted(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	todo := s.Entity("todo")
	tmpl := compile(t, s, todo, raw("title", "priority"))
	p := proj.New(s)
	d, err := p.Record(tmpl, fetch.Record{"priority": 1})
	require.NoError(t, err)
	require.Equal(t, `{"priority":1}`, mustJSON(t, d))
}

func TestProjectNilNested(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	todo := s.Entity("todo")
	tmpl := compile(t, s, todo, raw("title", nested("assignee", "name")))
	p := proj.New(s)
	d, err := p.Record(tmpl, fetch.Record{"title": "x", "assignee": nil})
	require.NoError(t, err)
	require.Equal(t, `{"title":"x","assignee":null}`, mustJSON(t, d))
}

func TestProjectUnion(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	todo := s.Entity("todo")
	tmpl := compile(t, s, todo, raw(nested("content", "text", nested("note", "body"))))
	p := proj.New(s)

	d, err := p.Record(tmpl, fetch.Record{
		"content": map[string]interface{}{"text": "hi"},
	})
	require.NoError(t, err)
	require.Equal(t, `{"content":{"text":"hi"}}`, mustJSON(t, d))

	d, err = p.Record(tmpl, fetch.Record{
		"content": map[string]interface{}{
			"note": map[string]interface{}{"body": "b", "pinned": true},
		},
	})
	require.NoError(t, err)
	require.Equal(t, `{"content":{"note":{"body":"b"}}}`, mustJSON(t, d))
}

func TestProjectUnionUnselectedMember(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	todo := s.Entity("todo")
	tmpl := compile(t, s, todo, raw(nested("content", nested("note", "body"))))
	p := proj.New(s)
	d, err := p.Record(tmpl, fetch.Record{
		"content": map[string]interface{}{"text": "hi"},
	})
	require.NoError(t, err)
	require.Equal(t, `{"content":null}`, mustJSON(t, d))
}

func TestProjectUnionLeaf(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	todo := s.Entity("todo")
	tmpl := compile(t, s, todo, raw("content"))
	p := proj.New(s)
	d, err := p.Record(tmpl, fetch.Record{
		"content": map[string]interface{}{"text": "hi"},
	})
	require.NoError(t, err)
	require.Equal(t, `{"content":{"text":"hi"}}`, mustJSON(t, d))
}

func TestProjectUnionList(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	todo := s.Entity("todo")
	tmpl := compile(t, s, todo, raw(
		nested("attachments", nested("link", "url"), nested("file", "name")),
	))
	p := proj.New(s)
	d, err := p.Record(tmpl, fetch.Record{
		"attachments": []interface{}{
			map[string]interface{}{"link": map[string]interface{}{"url": "https://x"}},
			map[string]interface{}{"file": map[string]interface{}{"name": "manual.pdf", "size": 2048}},
		},
	})
	require.NoError(t, err)
	require.Equal(t,
		`{"attachments":[{"link":{"url":"https://x"}},{"file":{"name":"manual.pdf"}}]}`,
		mustJSON(t, d))
}

func TestProjectTuple(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	todo := s.Entity("todo")
	tmpl := compile(t, s, todo, raw(nested("position", "lng", "lat")))
	p := proj.New(s)
	d, err := p.Record(tmpl, fetch.Record{
		"position": []interface{}{52.52, 13.405},
	})
	require.NoError(t, err)
	require.Equal(t, `{"position":{"lng":13.405,"lat":52.52}}`, mustJSON(t, d))
}

func TestProjectOpaque(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	todo := s.Entity("todo")
	p := proj.New(s)

	tmpl := compile(t, s, todo, raw("metadata"))
	d, err := p.Record(tmpl, fetch.Record{
		"metadata": map[string]interface{}{"Foo": 1, "bar_baz": 2},
	})
	require.NoError(t, err)
	require.Equal(t, `{"metadata":{"Foo":1,"bar_baz":2}}`, mustJSON(t, d))

	tmpl = compile(t, s, todo, raw(nested("metadata", "bar_baz")))
	d, err = p.Record(tmpl, fetch.Record{
		"metadata": map[string]interface{}{"Foo": 1, "bar_baz": 2},
	})
	require.NoError(t, err)
	require.Equal(t, `{"metadata":{"bar_baz":2}}`, mustJSON(t, d))
}

func TestProjectFormatLeaves(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	todo := s.Entity("todo")
	tmpl := compile(t, s, todo, raw("dueOn", "createdAt", "budget", "settings"))
	p := proj.New(s)
	d, err := p.Record(tmpl, fetch.Record{
		"due_on":     time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		"created_at": time.Date(2024, 3, 1, 11, 30, 0, 0, time.FixedZone("CET", 3600)),
		"budget":     "150.75",
		"settings":   map[string]interface{}{"color": "red", "notify": true},
	})
	require.NoError(t, err)
	require.Equal(t,
		`{"dueOn":"2024-03-05","createdAt":"2024-03-01T10:30:00Z","budget":"150.75",`+
			`"settings":{"color":"red","notify":true}}`,
		mustJSON(t, d))
}

func TestProjectList(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	todo := s.Entity("todo")
	tmpl := compile(t, s, todo, raw("title"))
	p := proj.New(s)
	list, err := p.List(tmpl, []fetch.Record{{"title": "a"}, nil, {"title": "b"}})
	require.NoError(t, err)
	require.Equal(t, `[{"title":"a"},null,{"title":"b"}]`, mustJSON(t, list))
}

func TestProjectNilRecord(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	todo := s.Entity("todo")
	tmpl := compile(t, s, todo, raw("title"))
	d, err := proj.New(s).Record(tmpl, nil)
	require.NoError(t, err)
	require.Nil(t, d)
	require.Equal(t, `null`, mustJSON(t, d))
}

func TestProjectPageOffset(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	todo := s.Entity("todo")
	tmpl := compile(t, s, todo, raw("title"))
	p := proj.New(s)
	d, err := p.Page(tmpl, &fetch.Page{
		Records: []fetch.Record{{"title": "a"}, {"title": "b"}},
		Limit:   2,
		Offset:  0,
		More:    true,
	})
	require.NoError(t, err)
	require.Equal(t,
		`{"results":[{"title":"a"},{"title":"b"}],"hasMore":true,"limit":2,"offset":0}`,
		mustJSON(t, d))
}

func TestProjectPageKeyset(t *testing.T) {
	fix := domtest.Must(domtest.TodoFixture())
	s := fix.Schema
	todo := s.Entity("todo")
	tmpl := compile(t, s, todo, raw("title"))
	p := proj.New(s)
	d, err := p.Page(tmpl, &fetch.Page{
		Records: []fetch.Record{
			{"title": "a", fetch.MetaKey: "cur1"},
			{"title": "b", fetch.MetaKey: "cur2"},
		},
		More:   false,
		Keyset: true,
	})
	require.NoError(t, err)
	require.Equal(t,
		`{"results":[{"title":"a"},{"title":"b"}],"hasMore":false,"before":"cur1","after":"cur2"}`,
		mustJSON(t, d))

	d, err = p.Page(tmpl, &fetch.Page{Keyset: true})
	require.NoError(t, err)
	require.Equal(t,
		`{"results":[],"hasMore":false,"before":null,"after":null}`,
		mustJSON(t, d))
}
