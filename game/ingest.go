// ingest.go decodes graph records from JSON. Ids may arrive as numbers or
// strings and are normalised to strings so that 1 and "1" name the same node.

package game

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// GraphRecord is the wire form of a graph: {"nodes": [...], "edges": [...]}.
type GraphRecord struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

type rawGraph struct {
	Nodes json.RawMessage `json:"nodes"`
	Edges json.RawMessage `json:"edges"`
}

type rawNode struct {
	ID json.RawMessage `json:"id"`
	X  json.RawMessage `json:"x"`
	Y  json.RawMessage `json:"y"`
}

type rawEdge struct {
	From json.RawMessage `json:"from"`
	To   json.RawMessage `json:"to"`
}

// ParseGraph decodes a graph record from r and builds the graph.
func ParseGraph(r io.Reader) (*Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}
	return ParseGraphJSON(data)
}

// ParseGraphJSON decodes a graph record and builds the graph. Missing node
// or edge arrays, non-scalar ids and dangling edges are all rejected with
// an error wrapping ErrMalformedGraph.
func ParseGraphJSON(data []byte) (*Graph, error) {
	var raw rawGraph
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGraph, err)
	}
	if isAbsent(raw.Nodes) {
		return nil, fmt.Errorf("%w: missing nodes array", ErrMalformedGraph)
	}
	if isAbsent(raw.Edges) {
		return nil, fmt.Errorf("%w: missing edges array", ErrMalformedGraph)
	}

	var rawNodes []rawNode
	if err := json.Unmarshal(raw.Nodes, &rawNodes); err != nil {
		return nil, fmt.Errorf("%w: nodes is not an array of objects", ErrMalformedGraph)
	}
	var rawEdges []rawEdge
	if err := json.Unmarshal(raw.Edges, &rawEdges); err != nil {
		return nil, fmt.Errorf("%w: edges is not an array of objects", ErrMalformedGraph)
	}

	nodes := make([]Node, 0, len(rawNodes))
	for i, rn := range rawNodes {
		id, err := NormalizeID(rn.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: nodes[%d].id: %v", ErrMalformedGraph, i, err)
		}
		x, err := parseCoord(rn.X)
		if err != nil {
			return nil, fmt.Errorf("%w: nodes[%d].x: %v", ErrMalformedGraph, i, err)
		}
		y, err := parseCoord(rn.Y)
		if err != nil {
			return nil, fmt.Errorf("%w: nodes[%d].y: %v", ErrMalformedGraph, i, err)
		}
		nodes = append(nodes, Node{ID: id, X: x, Y: y})
	}

	edges := make([]Edge, 0, len(rawEdges))
	for i, re := range rawEdges {
		from, err := NormalizeID(re.From)
		if err != nil {
			return nil, fmt.Errorf("%w: edges[%d].from: %v", ErrMalformedGraph, i, err)
		}
		to, err := NormalizeID(re.To)
		if err != nil {
			return nil, fmt.Errorf("%w: edges[%d].to: %v", ErrMalformedGraph, i, err)
		}
		edges = append(edges, Edge{From: from, To: to})
	}

	return NewGraph(nodes, edges)
}

// NormalizeID converts a JSON string or number into the canonical string id.
// Numbers are printed without exponent or trailing zeros, so 2, 2.0 and "2"
// all become "2".
func NormalizeID(raw json.RawMessage) (string, error) {
	v := bytes.TrimSpace(raw)
	if isAbsent(v) {
		return "", fmt.Errorf("missing id")
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", err
		}
		if s == "" {
			return "", fmt.Errorf("empty id")
		}
		return s, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return "", err
		}
		return formatNumber(f), nil
	default:
		return "", fmt.Errorf("id must be a string or number, got %s", truncate(string(v), 32))
	}
}

// formatNumber prints f the way a browser's String(number) does: plain
// decimals between 1e-6 and 1e21, shortest exponent form outside it, and
// "0" for negative zero.
func formatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	if a := math.Abs(f); a >= 1e-6 && a < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, exp, _ := strings.Cut(s, "e")
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	return mant + "e" + sign + digits
}

// parseCoord accepts numbers and numeric strings. Absent coordinates are 0.
func parseCoord(raw json.RawMessage) (float64, error) {
	v := bytes.TrimSpace(raw)
	if isAbsent(v) {
		return 0, nil
	}
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", s)
		}
		return f, nil
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return 0, fmt.Errorf("not a number: %s", truncate(string(v), 32))
	}
	return f, nil
}

func isAbsent(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) == 0 || bytes.Equal(v, []byte("null"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Record returns the wire form of g.
func (g *Graph) Record() GraphRecord {
	return GraphRecord{Nodes: g.Nodes(), Edges: g.Edges()}
}

// MarshalJSON encodes g as a GraphRecord.
func (g *Graph) MarshalJSON() ([]byte, error) {
	rec := g.Record()
	if rec.Nodes == nil {
		rec.Nodes = []Node{}
	}
	if rec.Edges == nil {
		rec.Edges = []Edge{}
	}
	return json.Marshal(rec)
}

// UnmarshalJSON parses data with ParseGraphJSON, so a decoded graph obeys
// the same validation as an ingested one.
func (g *Graph) UnmarshalJSON(data []byte) error {
	parsed, err := ParseGraphJSON(data)
	if err != nil {
		return err
	}
	*g = *parsed
	return nil
}
