package catalog

import (
	"errors"
	"testing"
	"testing/fstest"

	qt "github.com/frankban/quicktest"

	"github.com/brensch/lionsweep/game"
)

func TestDefault(t *testing.T) {
	c := qt.New(t)
	cat := Default()

	names := make([]string, 0)
	for _, e := range cat.List() {
		names = append(names, e.Name)
		c.Assert(e.Description, qt.Not(qt.Equals), "")
	}
	c.Assert(names, qt.DeepEquals, []string{"example", "line", "path", "triangle", "star", "grid", "cycle"})

	g, err := cat.Load("example")
	c.Assert(err, qt.IsNil)
	c.Assert(g.NodeCount(), qt.Equals, 8)
	c.Assert(len(g.Edges()), qt.Equals, 15)
	c.Assert(g.Adjacent("7", "5"), qt.IsTrue)
	c.Assert(g.Adjacent("7", "8"), qt.IsFalse)

	n, ok := g.Node("8")
	c.Assert(ok, qt.IsTrue)
	c.Assert(n, qt.Equals, game.Node{ID: "8", X: 250, Y: 150})
}

func TestLoadUnknown(t *testing.T) {
	c := qt.New(t)
	_, err := Default().Load("nope")
	c.Assert(errors.Is(err, ErrNotFound), qt.IsTrue)
}

func TestNewRejectsBrokenEntries(t *testing.T) {
	c := qt.New(t)
	tests := []struct {
		name    string
		fsys    fstest.MapFS
		wantErr string
	}{{
		name:    "missing index",
		fsys:    fstest.MapFS{},
		wantErr: `read index: .*`,
	}, {
		name: "missing file",
		fsys: fstest.MapFS{
			IndexFile: {Data: []byte(`{"graphs": [{"name": "a", "filePath": "a.json"}]}`)},
		},
		wantErr: `graph "a": .*`,
	}, {
		name: "malformed graph",
		fsys: fstest.MapFS{
			IndexFile: {Data: []byte(`{"graphs": [{"name": "a", "filePath": "a.json"}]}`)},
			"a.json":  {Data: []byte(`{"nodes": []}`)},
		},
		wantErr: `graph "a": malformed graph: .*`,
	}, {
		name: "duplicate name",
		fsys: fstest.MapFS{
			IndexFile: {Data: []byte(`{"graphs": [{"name": "a", "filePath": "a.json"}, {"name": "a", "filePath": "a.json"}]}`)},
			"a.json":  {Data: []byte(`{"nodes": [], "edges": []}`)},
		},
		wantErr: `index entry 1: duplicate name "a"`,
	}, {
		name: "no file",
		fsys: fstest.MapFS{
			IndexFile: {Data: []byte(`{"graphs": [{"name": "a"}]}`)},
		},
		wantErr: `index entry 0: name and filePath are required`,
	}}
	for _, test := range tests {
		c.Run(test.name, func(c *qt.C) {
			_, err := New(test.fsys, IndexFile)
			c.Assert(err, qt.ErrorMatches, test.wantErr)
		})
	}
}

func TestFromSubdirectory(t *testing.T) {
	c := qt.New(t)
	fsys := fstest.MapFS{
		"sets/" + IndexFile: {Data: []byte(`{"graphs": [{"name": "pair", "description": "two", "filePath": "pair.json"}]}`)},
		"sets/pair.json":    {Data: []byte(`{"nodes": [{"id": "a"}, {"id": "b"}], "edges": [{"from": "a", "to": "b"}]}`)},
	}
	cat, err := New(fsys, "sets/"+IndexFile)
	c.Assert(err, qt.IsNil)

	raw, err := cat.Raw("pair")
	c.Assert(err, qt.IsNil)
	c.Assert(string(raw), qt.Contains, `"from": "a"`)

	g, err := cat.Load("pair")
	c.Assert(err, qt.IsNil)
	c.Assert(g.Neighbors("a"), qt.DeepEquals, []string{"b"})
}
