package store

import (
	"errors"
	"fmt"
	"slices"

	"github.com/brensch/lionsweep/game"
	"github.com/brensch/lionsweep/rules"
)

// Frame is one archived turn decoded back into simulation terms.
type Frame struct {
	Turn         int32
	Lions        []game.Lion
	Moves        []ArchiveMove
	Dropped      int32
	Contaminated game.NodeSet
}

// Game is a decoded archive file.
type Game struct {
	SessionID string
	Graph     *game.Graph
	Frames    []Frame
}

// DecodeGame turns archive rows back into a graph and a list of frames. The
// first row must carry the graph record.
func DecodeGame(rows []TurnRow) (*Game, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("archive has no rows")
	}
	if len(rows[0].GraphJSON) == 0 {
		return nil, fmt.Errorf("first row of session %s has no graph", rows[0].SessionID)
	}
	g, err := game.ParseGraphJSON(rows[0].GraphJSON)
	if err != nil {
		return nil, fmt.Errorf("archived graph: %w", err)
	}

	out := &Game{SessionID: rows[0].SessionID, Graph: g, Frames: make([]Frame, 0, len(rows))}
	for _, row := range rows {
		f := Frame{
			Turn:         row.Turn,
			Moves:        row.Moves,
			Dropped:      row.Dropped,
			Contaminated: game.NewNodeSet(row.Contaminated...),
			Lions:        make([]game.Lion, 0, len(row.Lions)),
		}
		for _, l := range row.Lions {
			f.Lions = append(f.Lions, game.Lion{ID: int(l.ID), NodeID: l.NodeID})
		}
		out.Frames = append(out.Frames, f)
	}
	return out, nil
}

// State rebuilds the simulation state of frame i.
func (g *Game) State(i int) *game.State {
	f := g.Frames[i]
	st := game.NewState(g.Graph)
	st.Started = true
	st.Turn = f.Turn
	st.Lions = append(st.Lions, f.Lions...)
	st.Contaminated = f.Contaminated.Clone()
	for _, l := range f.Lions {
		if l.ID > st.LastLionID {
			st.LastLionID = l.ID
		}
	}
	return st
}

// Verify replays every consecutive pair of frames through rules.NextTurn,
// queueing the archived moves, and reports each frame whose lions or
// contamination differ from the recorded outcome.
func (g *Game) Verify() error {
	var errs []error
	for i := 1; i < len(g.Frames); i++ {
		prev, next := g.Frames[i-1], g.Frames[i]
		if next.Turn != prev.Turn+1 {
			continue
		}
		st := g.State(i - 1)
		for _, mv := range next.Moves {
			st.QueuedMoves[int(mv.LionID)] = mv.To
		}
		got, _ := rules.NextTurn(st)

		if want, have := next.Contaminated.Sorted(), got.Contaminated.Sorted(); !slices.Equal(want, have) {
			errs = append(errs, fmt.Errorf("turn %d: contaminated %v, rules give %v", next.Turn, want, have))
		}
		if !slices.Equal(next.Lions, got.Lions) {
			errs = append(errs, fmt.Errorf("turn %d: lions %v, rules give %v", next.Turn, next.Lions, got.Lions))
		}
	}
	return errors.Join(errs...)
}
