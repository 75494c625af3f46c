package render

import (
	"math"

	"github.com/brensch/lionsweep/game"
)

// Point is a position in board coordinates.
type Point struct {
	X, Y float64
}

// Arrow is the drawable shape of a queued move between two node centres.
type Arrow struct {
	// Head is the arrow head triangle: tip then the two base corners.
	Head [3]Point
	// LineStart and LineEnd bound the shaft. DrawLine is false when the
	// nodes are too close for a shaft to fit between the head and the
	// source circle.
	LineStart, LineEnd Point
	DrawLine           bool
	// HitStart and HitEnd span the gap between the two circles.
	HitStart, HitEnd Point
}

// ArrowGeometry computes the arrow from one node centre to another. ok is
// false when the two centres coincide.
func ArrowGeometry(from, to Point, radius, headLength, headWidth float64) (Arrow, bool) {
	dx := to.X - from.X
	dy := to.Y - from.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return Arrow{}, false
	}
	ux, uy := dx/length, dy/length

	tip := Point{to.X - ux*radius, to.Y - uy*radius}
	base := Point{tip.X - ux*headLength, tip.Y - uy*headLength}
	half := headWidth / 2

	return Arrow{
		Head: [3]Point{
			tip,
			{base.X + uy*half, base.Y - ux*half},
			{base.X - uy*half, base.Y + ux*half},
		},
		LineStart: Point{from.X + ux*radius, from.Y + uy*radius},
		LineEnd:   base,
		DrawLine:  length > radius*2+headLength,
		HitStart:  Point{from.X + ux*radius, from.Y + uy*radius},
		HitEnd:    tip,
	}, true
}

// CountLabel returns where the count of a move group is drawn: the midpoint
// of the edge pushed sideways by offset.
func CountLabel(from, to Point, offset float64) Point {
	mid := Point{(from.X + to.X) / 2, (from.Y + to.Y) / 2}
	dx := to.X - from.X
	dy := to.Y - from.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return mid
	}
	return Point{mid.X + dy/length*offset, mid.Y - dx/length*offset}
}

// Bounds returns the bounding box of the graph's node centres grown by pad.
func Bounds(g *game.Graph, pad float64) (min, max Point) {
	nodes := g.Nodes()
	if len(nodes) == 0 {
		return Point{-pad, -pad}, Point{pad, pad}
	}
	min = Point{math.Inf(1), math.Inf(1)}
	max = Point{math.Inf(-1), math.Inf(-1)}
	for _, n := range nodes {
		min.X = math.Min(min.X, n.X)
		min.Y = math.Min(min.Y, n.Y)
		max.X = math.Max(max.X, n.X)
		max.Y = math.Max(max.Y, n.Y)
	}
	return Point{min.X - pad, min.Y - pad}, Point{max.X + pad, max.Y + pad}
}
