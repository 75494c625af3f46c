// Package render draws a session snapshot as a standalone SVG document.
package render

import (
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/brensch/lionsweep/session"
)

const (
	lionGlyph          = "🦁"
	contaminationGlyph = "🦠"
	arrowColor         = "#ef4444"
	countOffset        = 7
)

// Style holds the cosmetic drawing constants.
type Style struct {
	NodeRadius        float64
	NodeStrokeWidth   float64
	EdgeStrokeWidth   float64
	ArrowStrokeWidth  float64
	ArrowHeadLength   float64
	ArrowHeadWidth    float64
	EmojiFontSize     float64
	CountFontSize     float64
	AnimationDuration time.Duration
}

// DefaultStyle matches the board's stock look.
func DefaultStyle() Style {
	return Style{
		NodeRadius:        18,
		NodeStrokeWidth:   2,
		EdgeStrokeWidth:   2,
		ArrowStrokeWidth:  3,
		ArrowHeadLength:   5,
		ArrowHeadWidth:    3,
		EmojiFontSize:     24,
		CountFontSize:     10,
		AnimationDuration: 500 * time.Millisecond,
	}
}

// SVG writes snap as an SVG document.
//
// Nodes are <g class="node" data-node-id=...> groups. A node shows a lion
// glyph when occupied (with an "xN" count above one) and a contamination
// glyph when the game has started and the node is contaminated. Queued
// moves are drawn once per from -> to group, with the group size printed
// next to the arrow when above one.
func SVG(w io.Writer, snap session.Snapshot, style Style) error {
	var b strings.Builder
	g := snap.Graph

	pad := style.NodeRadius * 2
	min, max := Point{-pad, -pad}, Point{pad, pad}
	if g != nil {
		min, max = Bounds(g, pad)
	}
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" id="graph" viewBox="%s %s %s %s" data-session="%s" data-turn="%d" data-started="%t">`+"\n",
		num(min.X), num(min.Y), num(max.X-min.X), num(max.Y-min.Y),
		attr(snap.SessionID), snap.Turn, snap.Started)
	fmt.Fprintf(&b, `<style>.edge{stroke:#94a3b8;stroke-width:%s}.node circle{fill:#fff;stroke:#334155;stroke-width:%s}.emoji{font-size:%spx}.lion-count,.arrow-count{font-size:%spx}.queue-arrow{stroke:%s;stroke-width:%s}</style>`+"\n",
		num(style.EdgeStrokeWidth), num(style.NodeStrokeWidth), num(style.EmojiFontSize),
		num(style.CountFontSize), arrowColor, num(style.ArrowStrokeWidth))
	b.WriteString(`<g id="viewport">` + "\n")

	if g != nil {
		writeEdges(&b, snap)
		writeNodes(&b, snap, style)
		writeArrows(&b, snap, style)
	}

	b.WriteString("</g>\n</svg>\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// String renders snap to a string.
func String(snap session.Snapshot, style Style) string {
	var b strings.Builder
	_ = SVG(&b, snap, style)
	return b.String()
}

func writeEdges(b *strings.Builder, snap session.Snapshot) {
	for _, e := range snap.Graph.Edges() {
		from, ok1 := snap.Graph.Node(e.From)
		to, ok2 := snap.Graph.Node(e.To)
		if !ok1 || !ok2 {
			continue
		}
		fmt.Fprintf(b, `<line class="edge" data-from="%s" data-to="%s" x1="%s" y1="%s" x2="%s" y2="%s"/>`+"\n",
			attr(e.From), attr(e.To), num(from.X), num(from.Y), num(to.X), num(to.Y))
	}
}

func writeNodes(b *strings.Builder, snap session.Snapshot, style Style) {
	for _, n := range snap.Graph.Nodes() {
		lions := snap.LionCounts[n.ID]
		contaminated := snap.Started && lions == 0 && snap.IsContaminated(n.ID)

		classes := "node"
		if lions > 0 {
			classes += " has-lion"
		}
		if contaminated {
			classes += " contaminated"
		}
		fmt.Fprintf(b, `<g class="%s" data-node-id="%s">`, classes, attr(n.ID))
		fmt.Fprintf(b, `<circle cx="%s" cy="%s" r="%s"/>`, num(n.X), num(n.Y), num(style.NodeRadius))

		switch {
		case lions > 0:
			fmt.Fprintf(b, `<text class="emoji" x="%s" y="%s" text-anchor="middle">%s</text>`,
				num(n.X), num(n.Y+2.5), lionGlyph)
			if lions != 1 {
				fmt.Fprintf(b, `<text class="lion-count" x="%s" y="%s" text-anchor="middle">x%d</text>`,
					num(n.X+11), num(n.Y+6), lions)
			}
		case contaminated:
			fmt.Fprintf(b, `<text class="emoji" x="%s" y="%s" text-anchor="middle">%s</text>`,
				num(n.X), num(n.Y+2), contaminationGlyph)
		}
		b.WriteString("</g>\n")
	}
}

func writeArrows(b *strings.Builder, snap session.Snapshot, style Style) {
	headLength := style.ArrowHeadLength * style.ArrowStrokeWidth
	headWidth := style.ArrowHeadWidth * style.ArrowStrokeWidth

	for _, group := range snap.MoveGroups {
		fromNode, ok1 := snap.Graph.Node(group.From)
		toNode, ok2 := snap.Graph.Node(group.To)
		if !ok1 || !ok2 {
			continue
		}
		from := Point{fromNode.X, fromNode.Y}
		to := Point{toNode.X, toNode.Y}
		geo, ok := ArrowGeometry(from, to, style.NodeRadius, headLength, headWidth)
		if !ok {
			continue
		}

		fmt.Fprintf(b, `<polygon class="queue-arrow static" points="%s,%s %s,%s %s,%s" fill="%s" data-from="%s" data-to="%s"/>`+"\n",
			num(geo.Head[0].X), num(geo.Head[0].Y), num(geo.Head[1].X), num(geo.Head[1].Y),
			num(geo.Head[2].X), num(geo.Head[2].Y), arrowColor, attr(group.From), attr(group.To))
		if geo.DrawLine {
			fmt.Fprintf(b, `<line class="queue-arrow static" x1="%s" y1="%s" x2="%s" y2="%s"/>`+"\n",
				num(geo.LineStart.X), num(geo.LineStart.Y), num(geo.LineEnd.X), num(geo.LineEnd.Y))
		}
		fmt.Fprintf(b, `<line class="queue-arrow-hitbox" x1="%s" y1="%s" x2="%s" y2="%s" stroke="transparent" stroke-width="20" data-from="%s" data-to="%s"/>`+"\n",
			num(geo.HitStart.X), num(geo.HitStart.Y), num(geo.HitEnd.X), num(geo.HitEnd.Y),
			attr(group.From), attr(group.To))

		if group.Count > 1 {
			at := CountLabel(from, to, countOffset)
			fmt.Fprintf(b, `<text class="arrow-count" x="%s" y="%s" text-anchor="middle" data-from="%s" data-to="%s">%d</text>`+"\n",
				num(at.X), num(at.Y), attr(group.From), attr(group.To), group.Count)
		}
	}
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func attr(s string) string {
	return html.EscapeString(s)
}
