package game

import (
	"errors"
	"fmt"
	"sort"
)

// ErrMalformedGraph is wrapped by every graph construction or ingestion failure.
// No partial graph is ever returned alongside it.
var ErrMalformedGraph = errors.New("malformed graph")

// Node is a graph vertex. X and Y are layout coordinates supplied by the
// caller; the rules never read them.
type Node struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Edge connects two nodes. Direction carries no meaning.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// EdgeKey is the canonical form of an undirected edge: A <= B.
type EdgeKey struct {
	A string
	B string
}

// NewEdgeKey returns the key for the undirected edge between a and b.
// NewEdgeKey(a, b) == NewEdgeKey(b, a).
func NewEdgeKey(a, b string) EdgeKey {
	if b < a {
		a, b = b, a
	}
	return EdgeKey{A: a, B: b}
}

func (k EdgeKey) String() string {
	return k.A + "-" + k.B
}

// NodeSet is a set of node ids.
type NodeSet map[string]struct{}

// NewNodeSet returns a set holding ids.
func NewNodeSet(ids ...string) NodeSet {
	s := make(NodeSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s NodeSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s NodeSet) Add(id string) {
	s[id] = struct{}{}
}

func (s NodeSet) Delete(id string) {
	delete(s, id)
}

// Sorted returns the members in lexical order.
func (s NodeSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy. Cloning a nil set yields an empty set.
func (s NodeSet) Clone() NodeSet {
	out := make(NodeSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Graph is an immutable undirected graph. Build one with NewGraph or
// ParseGraph; the zero value is an empty graph.
type Graph struct {
	nodes []Node
	edges []Edge

	index     map[string]int
	adjacency map[string]NodeSet
	// neighbors keeps adjacency in edge insertion order so iteration is stable.
	neighbors map[string][]string
}

// NewGraph validates nodes and edges and derives the adjacency relation.
// Node ids must be non-empty and unique and every edge endpoint must name
// an existing node.
func NewGraph(nodes []Node, edges []Edge) (*Graph, error) {
	g := &Graph{
		nodes:     make([]Node, len(nodes)),
		edges:     make([]Edge, len(edges)),
		index:     make(map[string]int, len(nodes)),
		adjacency: make(map[string]NodeSet, len(nodes)),
		neighbors: make(map[string][]string, len(nodes)),
	}
	copy(g.nodes, nodes)
	copy(g.edges, edges)

	for i, n := range g.nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("%w: nodes[%d] has an empty id", ErrMalformedGraph, i)
		}
		if prev, ok := g.index[n.ID]; ok {
			return nil, fmt.Errorf("%w: nodes[%d] id %q duplicates nodes[%d]", ErrMalformedGraph, i, n.ID, prev)
		}
		g.index[n.ID] = i
		g.adjacency[n.ID] = make(NodeSet)
	}

	for i, e := range g.edges {
		if _, ok := g.index[e.From]; !ok {
			return nil, fmt.Errorf("%w: edges[%d] references unknown node %q", ErrMalformedGraph, i, e.From)
		}
		if _, ok := g.index[e.To]; !ok {
			return nil, fmt.Errorf("%w: edges[%d] references unknown node %q", ErrMalformedGraph, i, e.To)
		}
		g.link(e.From, e.To)
		g.link(e.To, e.From)
	}

	return g, nil
}

func (g *Graph) link(from, to string) {
	if g.adjacency[from].Has(to) {
		return
	}
	g.adjacency[from].Add(to)
	g.neighbors[from] = append(g.neighbors[from], to)
}

// Nodes returns a copy of the node list in load order.
func (g *Graph) Nodes() []Node {
	if g == nil {
		return nil
	}
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns a copy of the edge list in load order.
func (g *Graph) Edges() []Edge {
	if g == nil {
		return nil
	}
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

func (g *Graph) NodeCount() int {
	if g == nil {
		return 0
	}
	return len(g.nodes)
}

func (g *Graph) HasNode(id string) bool {
	if g == nil {
		return false
	}
	_, ok := g.index[id]
	return ok
}

// Node looks up a node by id.
func (g *Graph) Node(id string) (Node, bool) {
	if g == nil {
		return Node{}, false
	}
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Adjacent reports whether an edge joins a and b.
func (g *Graph) Adjacent(a, b string) bool {
	if g == nil {
		return false
	}
	return g.adjacency[a].Has(b)
}

// Neighbors returns the nodes one edge away from id, in the order their
// edges were loaded. Unknown ids have no neighbours.
func (g *Graph) Neighbors(id string) []string {
	if g == nil {
		return nil
	}
	nbs := g.neighbors[id]
	out := make([]string, len(nbs))
	copy(out, nbs)
	return out
}

// Adjacency returns a copy of the full adjacency relation.
func (g *Graph) Adjacency() map[string]NodeSet {
	if g == nil {
		return nil
	}
	out := make(map[string]NodeSet, len(g.adjacency))
	for id, nbs := range g.adjacency {
		out[id] = nbs.Clone()
	}
	return out
}

// NodeIDs returns every node id in load order.
func (g *Graph) NodeIDs() []string {
	if g == nil {
		return nil
	}
	out := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.ID
	}
	return out
}

// NearestNode returns the node closest to (x, y) by Euclidean distance.
// Ties go to the node loaded first.
func (g *Graph) NearestNode(x, y float64) (string, bool) {
	if g == nil || len(g.nodes) == 0 {
		return "", false
	}
	best := ""
	bestD2 := 0.0
	for i, n := range g.nodes {
		dx := n.X - x
		dy := n.Y - y
		d2 := dx*dx + dy*dy
		if i == 0 || d2 < bestD2 {
			best, bestD2 = n.ID, d2
		}
	}
	return best, true
}
