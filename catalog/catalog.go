// Package catalog serves named graphs from an index file, the way the board
// offers a list of ready-made graphs to load.
package catalog

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"

	"github.com/brensch/lionsweep/game"
)

// IndexFile is the index name looked up by Default and FromDir.
const IndexFile = "all-graphs.json"

var ErrNotFound = errors.New("catalog: graph not found")

//go:embed graphs/*.json
var bundled embed.FS

// Entry describes one graph in the index. File is relative to the index.
type Entry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	File        string `json:"filePath"`
}

type index struct {
	Graphs []Entry `json:"graphs"`
}

// Catalog is a read-only set of named graphs. Safe for concurrent use.
type Catalog struct {
	fsys    fs.FS
	dir     string
	entries []Entry
	byName  map[string]int
}

// Default returns the graphs compiled into the binary.
func Default() *Catalog {
	c, err := New(bundled, "graphs/"+IndexFile)
	if err != nil {
		panic(fmt.Sprintf("catalog: bundled index is broken: %v", err))
	}
	return c
}

// FromDir reads dir/all-graphs.json.
func FromDir(dir string) (*Catalog, error) {
	return New(os.DirFS(dir), IndexFile)
}

// New reads the index at indexPath in fsys. Every listed file must exist and
// parse as a graph; a catalog never lists a graph it cannot load.
func New(fsys fs.FS, indexPath string) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, indexPath)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decode index %s: %w", indexPath, err)
	}

	c := &Catalog{
		fsys:   fsys,
		dir:    path.Dir(indexPath),
		byName: make(map[string]int, len(idx.Graphs)),
	}
	for i, e := range idx.Graphs {
		if e.Name == "" || e.File == "" {
			return nil, fmt.Errorf("index entry %d: name and filePath are required", i)
		}
		if _, dup := c.byName[e.Name]; dup {
			return nil, fmt.Errorf("index entry %d: duplicate name %q", i, e.Name)
		}
		c.byName[e.Name] = len(c.entries)
		c.entries = append(c.entries, e)
		if _, err := c.Load(e.Name); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// List returns the entries in index order.
func (c *Catalog) List() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Raw returns the graph record of name exactly as stored.
func (c *Catalog) Raw(name string) ([]byte, error) {
	i, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	data, err := fs.ReadFile(c.fsys, path.Join(c.dir, c.entries[i].File))
	if err != nil {
		return nil, fmt.Errorf("graph %q: %w", name, err)
	}
	return data, nil
}

// Load parses the graph called name.
func (c *Catalog) Load(name string) (*game.Graph, error) {
	data, err := c.Raw(name)
	if err != nil {
		return nil, err
	}
	g, err := game.ParseGraphJSON(data)
	if err != nil {
		return nil, fmt.Errorf("graph %q: %w", name, err)
	}
	return g, nil
}
