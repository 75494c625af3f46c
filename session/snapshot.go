package session

import (
	"sort"

	"github.com/brensch/lionsweep/game"
)

// QueuedMove is one lion's pending move as seen by presentation layers.
type QueuedMove struct {
	LionID int    `json:"lion_id"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// MoveGroup aggregates queued moves along the same from -> to pair. Count is
// the number a renderer draws next to the arrow.
type MoveGroup struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int    `json:"count"`
}

// Snapshot is an immutable copy of a session's state, safe to hand to other
// goroutines and to encode as JSON.
type Snapshot struct {
	SessionID    string         `json:"session_id"`
	Version      uint64         `json:"version"`
	Started      bool           `json:"started"`
	Turn         int32          `json:"turn"`
	Graph        *game.Graph    `json:"graph"`
	Lions        []game.Lion    `json:"lions"`
	Queued       []QueuedMove   `json:"queued"`
	MoveGroups   []MoveGroup    `json:"move_groups"`
	LionCounts   map[string]int `json:"lion_counts"`
	Contaminated []string       `json:"contaminated"`
}

// IsContaminated reports whether nodeID is in the contamination set.
func (s Snapshot) IsContaminated(nodeID string) bool {
	i := sort.SearchStrings(s.Contaminated, nodeID)
	return i < len(s.Contaminated) && s.Contaminated[i] == nodeID
}

// QueuedFor returns the queued target of lionID, if any.
func (s Snapshot) QueuedFor(lionID int) (string, bool) {
	for _, q := range s.Queued {
		if q.LionID == lionID {
			return q.To, true
		}
	}
	return "", false
}

func newSnapshot(id string, version uint64, st *game.State) Snapshot {
	snap := Snapshot{
		SessionID:    id,
		Version:      version,
		Started:      st.Started,
		Turn:         st.Turn,
		Graph:        st.Graph,
		Lions:        make([]game.Lion, len(st.Lions)),
		Queued:       make([]QueuedMove, 0, len(st.QueuedMoves)),
		MoveGroups:   []MoveGroup{},
		LionCounts:   make(map[string]int),
		Contaminated: st.Contaminated.Sorted(),
	}
	copy(snap.Lions, st.Lions)

	groupIndex := make(map[game.Edge]int)
	for _, lion := range st.Lions {
		snap.LionCounts[lion.NodeID]++

		target, ok := st.QueuedMoves[lion.ID]
		if !ok {
			continue
		}
		snap.Queued = append(snap.Queued, QueuedMove{LionID: lion.ID, From: lion.NodeID, To: target})

		key := game.Edge{From: lion.NodeID, To: target}
		if i, ok := groupIndex[key]; ok {
			snap.MoveGroups[i].Count++
			continue
		}
		groupIndex[key] = len(snap.MoveGroups)
		snap.MoveGroups = append(snap.MoveGroups, MoveGroup{From: lion.NodeID, To: target, Count: 1})
	}

	return snap
}
