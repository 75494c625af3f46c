// Package game defines the graph and simulation state types for the lion
// sweep game.
//
// These types carry no behaviour beyond bookkeeping: the turn rules live in
// package rules and operate on clones of State, so a state value can be
// snapshotted or replayed freely.
package game

// Lion is a searcher token. Ids start at 1 and are never reused within a
// placement phase.
type Lion struct {
	ID     int    `json:"id"`
	NodeID string `json:"node_id"`
}

// State is the complete simulation state for one graph.
//
// Lions are kept in creation order; rules that pick "the first" lion rely on it.
// QueuedMoves maps lion id to intended target node, at most one per lion.
// Contaminated holds the uncontrolled nodes and is only meaningful once Started.
type State struct {
	Graph        *Graph
	Lions        []Lion
	QueuedMoves  map[int]string
	Contaminated NodeSet
	Started      bool
	LastLionID   int
	Turn         int32
}

// NewState returns an empty placement-phase state on g.
func NewState(g *Graph) *State {
	return &State{
		Graph:        g,
		QueuedMoves:  make(map[int]string),
		Contaminated: make(NodeSet),
	}
}

// Clone performs a deep copy of the state. The graph is immutable and shared.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}

	out := &State{
		Graph:        s.Graph,
		Started:      s.Started,
		LastLionID:   s.LastLionID,
		Turn:         s.Turn,
		QueuedMoves:  make(map[int]string, len(s.QueuedMoves)),
		Contaminated: s.Contaminated.Clone(),
	}

	if len(s.Lions) > 0 {
		out.Lions = make([]Lion, len(s.Lions))
		copy(out.Lions, s.Lions)
	}
	for id, target := range s.QueuedMoves {
		out.QueuedMoves[id] = target
	}

	return out
}

// Lion finds a lion by id.
func (s *State) Lion(id int) (Lion, bool) {
	for _, l := range s.Lions {
		if l.ID == id {
			return l, true
		}
	}
	return Lion{}, false
}

// LionNodes returns the set of nodes hosting at least one lion.
func (s *State) LionNodes() NodeSet {
	out := make(NodeSet, len(s.Lions))
	for _, l := range s.Lions {
		out.Add(l.NodeID)
	}
	return out
}

// LionsAt returns the lions on nodeID in creation order.
func (s *State) LionsAt(nodeID string) []Lion {
	var out []Lion
	for _, l := range s.Lions {
		if l.NodeID == nodeID {
			out = append(out, l)
		}
	}
	return out
}
