package rules

import (
	"sort"

	"github.com/brensch/lionsweep/game"
)

// Move is a validated lion move for one turn.
type Move struct {
	LionID int    `json:"lion_id"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// AnimationKind says what an Animation entry moves.
type AnimationKind string

const (
	AnimateLion          AnimationKind = "lion"
	AnimateContamination AnimationKind = "contamination"
)

// Animation is a cosmetic hint for presentation layers: something travelled
// from one node to another during the turn. It has no effect on state.
type Animation struct {
	Kind AnimationKind `json:"kind"`
	From string        `json:"from"`
	To   string        `json:"to"`
}

// TurnResult describes what a call to NextTurn did.
type TurnResult struct {
	// Executed is false when there was nothing queued; the state is then unchanged.
	Executed bool   `json:"executed"`
	Turn     int32  `json:"turn"`
	Moves    []Move `json:"moves"`
	// Dropped counts queued moves that failed validation (stale lion,
	// missing node or no longer adjacent).
	Dropped      int            `json:"dropped"`
	UsedEdges    []game.EdgeKey `json:"-"`
	Contaminated []string       `json:"contaminated"`
	Animations   []Animation    `json:"animations"`
}

// IsLegalMove reports whether lionID may move to target right now: the lion
// exists and target is adjacent to its current node.
func IsLegalMove(state *game.State, lionID int, target string) bool {
	lion, ok := state.Lion(lionID)
	if !ok {
		return false
	}
	return state.Graph.Adjacent(lion.NodeID, target)
}

// LegalTargets returns the nodes lionID can be queued to, in adjacency order.
func LegalTargets(state *game.State, lionID int) []string {
	lion, ok := state.Lion(lionID)
	if !ok {
		return nil
	}
	return state.Graph.Neighbors(lion.NodeID)
}

// ValidMoves filters the queued moves to those whose target is adjacent to
// the lion's current node. Queue entries for unknown lions and non-adjacent
// targets are dropped silently; the count is returned. Moves come back in
// lion creation order.
func ValidMoves(state *game.State) ([]Move, int) {
	valid := make([]Move, 0, len(state.QueuedMoves))
	for _, lion := range state.Lions {
		target, ok := state.QueuedMoves[lion.ID]
		if !ok {
			continue
		}
		if state.Graph.Adjacent(lion.NodeID, target) {
			valid = append(valid, Move{LionID: lion.ID, From: lion.NodeID, To: target})
		}
	}
	return valid, len(state.QueuedMoves) - len(valid)
}

// Start leaves the placement phase: every node without a lion becomes
// contaminated. Starting an already started state returns an unchanged clone.
func Start(state *game.State) *game.State {
	newState := state.Clone()
	if newState.Started {
		return newState
	}
	newState.Started = true
	newState.Turn = 0
	newState.Contaminated = InitialContamination(newState.Graph, newState.Lions)
	return newState
}

// InitialContamination returns every node of g not hosting one of lions.
func InitialContamination(g *game.Graph, lions []game.Lion) game.NodeSet {
	occupied := make(game.NodeSet, len(lions))
	for _, l := range lions {
		occupied.Add(l.NodeID)
	}
	out := make(game.NodeSet, g.NodeCount())
	for _, id := range g.NodeIDs() {
		if !occupied.Has(id) {
			out.Add(id)
		}
	}
	return out
}

// NextTurn resolves one turn: all valid queued moves are applied
// simultaneously, contamination spreads from where it stood before the
// moves, and the queue is emptied. With nothing queued it returns an
// unchanged clone and a result with Executed == false.
func NextTurn(state *game.State) (*game.State, TurnResult) {
	newState := state.Clone()
	if len(newState.QueuedMoves) == 0 {
		return newState, TurnResult{Turn: newState.Turn}
	}

	// 1. Contamination as it stood before anyone moved.
	before := newState.Contaminated.Clone()

	// 2. Validate against current positions.
	moves, dropped := ValidMoves(newState)

	// 3. Apply simultaneously. Targets were fixed in step 2 so application
	// order cannot matter.
	targets := make(map[int]string, len(moves))
	for _, mv := range moves {
		targets[mv.LionID] = mv.To
	}
	for i := range newState.Lions {
		if to, ok := targets[newState.Lions[i].ID]; ok {
			newState.Lions[i].NodeID = to
		}
	}

	// 4. Where lions stand now.
	lionNodes := newState.LionNodes()

	// 5. Edges swept this turn, undirected.
	used := UsedEdges(moves)

	// 6. Spread.
	next, spreadAnims := spread(newState.Graph, before, used, lionNodes)
	newState.Contaminated = next

	// 7. Clear every queued entry, valid or not.
	newState.QueuedMoves = make(map[int]string)
	newState.Turn++

	usedKeys := make([]game.EdgeKey, 0, len(used))
	for k := range used {
		usedKeys = append(usedKeys, k)
	}
	sort.Slice(usedKeys, func(i, j int) bool {
		if usedKeys[i].A != usedKeys[j].A {
			return usedKeys[i].A < usedKeys[j].A
		}
		return usedKeys[i].B < usedKeys[j].B
	})

	anims := make([]Animation, 0, len(moves)+len(spreadAnims))
	for _, mv := range moves {
		anims = append(anims, Animation{Kind: AnimateLion, From: mv.From, To: mv.To})
	}
	anims = append(anims, spreadAnims...)

	return newState, TurnResult{
		Executed:     true,
		Turn:         newState.Turn,
		Moves:        moves,
		Dropped:      dropped,
		UsedEdges:    usedKeys,
		Contaminated: next.Sorted(),
		Animations:   anims,
	}
}

// UsedEdges returns the undirected edges traversed by moves.
func UsedEdges(moves []Move) map[game.EdgeKey]struct{} {
	used := make(map[game.EdgeKey]struct{}, len(moves))
	for _, mv := range moves {
		used[game.NewEdgeKey(mv.From, mv.To)] = struct{}{}
	}
	return used
}
