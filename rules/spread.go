// spread.go implements the one-step contamination spread of the sweep game.

package rules

import (
	"github.com/brensch/lionsweep/game"
)

// Spread computes the next contamination set.
//
// Nodes contaminated before the turn stay contaminated unless a lion now
// stands on them. Each of them also contaminates every neighbour, except
// neighbours hosting a lion and neighbours across an edge a lion used this
// turn. Spread only originates from before, never from newly contaminated
// nodes. The result never contains a member of lionNodes.
func Spread(g *game.Graph, before game.NodeSet, used map[game.EdgeKey]struct{}, lionNodes game.NodeSet) game.NodeSet {
	next, _ := spread(g, before, used, lionNodes)
	return next
}

func spread(g *game.Graph, before game.NodeSet, used map[game.EdgeKey]struct{}, lionNodes game.NodeSet) (game.NodeSet, []Animation) {
	next := make(game.NodeSet, len(before))
	for id := range before {
		if !lionNodes.Has(id) {
			next.Add(id)
		}
	}

	var anims []Animation
	// Sorted sources keep the animation list deterministic.
	for _, src := range before.Sorted() {
		for _, nb := range g.Neighbors(src) {
			if lionNodes.Has(nb) {
				continue
			}
			if _, swept := used[game.NewEdgeKey(src, nb)]; swept {
				continue
			}
			if next.Has(nb) {
				continue
			}
			next.Add(nb)
			anims = append(anims, Animation{Kind: AnimateContamination, From: src, To: nb})
		}
	}

	return next, anims
}
