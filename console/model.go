package main

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brensch/lionsweep/rules"
	"github.com/brensch/lionsweep/session"
)

const maxRecent = 8

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cursorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	lionStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	germStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	cleanStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	arrowStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	pickStyle    = lipgloss.NewStyle().Reverse(true)
	boardBorder  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	sidebarStyle = lipgloss.NewStyle().PaddingLeft(2)
)

// eventMsg carries a session event into the bubbletea loop.
type eventMsg session.Event

// model is the terminal presentation layer. Commands run synchronously on
// the session; events arrive through the events channel and only feed the
// recent activity list.
type model struct {
	sess   *session.Session
	graph  string
	events chan session.Event

	snap   session.Snapshot
	nodes  []string
	cursor int

	// Move mode: choosing a neighbour of the cursor node.
	picking bool
	targets []string
	pick    int

	status string
	failed bool
	recent []string
}

func newModel(sess *session.Session, graphName string, events chan session.Event) model {
	m := model{sess: sess, graph: graphName, events: events}
	m.refresh()
	return m
}

func waitForEvent(events chan session.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

func (m model) Init() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return waitForEvent(m.events)
}

func (m *model) refresh() {
	m.snap = m.sess.Snapshot()
	m.nodes = m.snap.Graph.NodeIDs()
	if m.cursor >= len(m.nodes) {
		m.cursor = 0
	}
}

func (m model) current() string {
	if len(m.nodes) == 0 {
		return ""
	}
	return m.nodes[m.cursor]
}

func (m *model) report(err error, format string, args ...any) {
	if err != nil {
		m.status = err.Error()
		m.failed = true
		return
	}
	m.status = fmt.Sprintf(format, args...)
	m.failed = false
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.picking {
			m.updatePicking(msg)
			return m, nil
		}
		if msg.String() == "q" {
			return m, tea.Quit
		}
		m.updateBoard(msg)
		return m, nil
	case eventMsg:
		m.noteEvent(session.Event(msg))
		return m, waitForEvent(m.events)
	}
	return m, nil
}

func (m *model) updateBoard(msg tea.KeyMsg) {
	node := m.current()
	switch msg.String() {
	case "up", "k":
		m.step(0, -1)
	case "down", "j":
		m.step(0, 1)
	case "left", "h":
		m.step(-1, 0)
	case "right", "l":
		m.step(1, 0)
	case "tab":
		m.cycle(1)
	case "shift+tab":
		m.cycle(-1)
	case "p":
		id, err := m.sess.PlaceLion(node)
		m.report(err, "lion %d placed on %s", id, node)
	case "s":
		err := m.sess.Start()
		m.report(err, "started: %d contaminated", len(m.sess.Snapshot().Contaminated))
	case "m":
		m.beginPick(node)
	case "c":
		m.cancelFrom(node)
	case "enter":
		res, err := m.sess.ExecuteTurn()
		m.report(err, "turn %d: %d moved, %d dropped, %d contaminated", res.Turn, len(res.Moves), res.Dropped, len(res.Contaminated))
	case "r":
		err := m.sess.Reset()
		m.report(err, "reset")
	}
	m.refresh()
}

func (m *model) beginPick(node string) {
	if node == "" {
		m.report(session.ErrNoGraph, "")
		return
	}
	if !m.snap.Started {
		m.report(session.ErrNotStarted, "")
		return
	}
	targets := m.snap.Graph.Neighbors(node)
	if len(targets) == 0 {
		m.report(fmt.Errorf("node %s has no neighbours", node), "")
		return
	}
	m.picking = true
	m.targets = targets
	m.pick = 0
	m.report(nil, "move from %s: choose a neighbour", node)
}

func (m *model) updatePicking(msg tea.KeyMsg) {
	key := msg.String()
	switch key {
	case "esc", "m":
		m.picking = false
		m.report(nil, "move cancelled")
		return
	case "up", "left", "k", "h":
		m.pick = (m.pick + len(m.targets) - 1) % len(m.targets)
		return
	case "down", "right", "tab", "j", "l":
		m.pick = (m.pick + 1) % len(m.targets)
		return
	case "enter":
	default:
		if len(key) != 1 || key[0] < '1' || key[0] > '9' {
			return
		}
		i := int(key[0] - '1')
		if i >= len(m.targets) {
			return
		}
		m.pick = i
	}

	from, to := m.current(), m.targets[m.pick]
	m.picking = false
	id, err := m.sess.QueueMoveFrom(from, to)
	m.report(err, "lion %d queued %s -> %s", id, from, to)
	m.refresh()
}

// cancelFrom cancels one queued move leaving node, taking the first move
// group in snapshot order.
func (m *model) cancelFrom(node string) {
	for _, g := range m.snap.MoveGroups {
		if g.From != node {
			continue
		}
		id, err := m.sess.CancelMove(g.From, g.To)
		m.report(err, "lion %d no longer moves %s -> %s", id, g.From, g.To)
		return
	}
	m.report(session.ErrNoMatchingMove, "")
}

func (m *model) cycle(delta int) {
	if len(m.nodes) == 0 {
		return
	}
	m.cursor = (m.cursor + delta + len(m.nodes)) % len(m.nodes)
}

// step moves the cursor to the closest node in direction (dx, dy), using
// layout coordinates. Nodes inside a 45 degree cone win over nodes that are
// merely on the right side. At the edge of the board the cursor stays put;
// graphs without a layout fall back to load order.
func (m *model) step(dx, dy float64) {
	g := m.snap.Graph
	from, ok := g.Node(m.current())
	if !ok {
		m.cycle(int(dx + dy))
		return
	}

	best, bestCone := -1, false
	bestD2 := math.Inf(1)
	laidOut := false
	for i, id := range m.nodes {
		if i == m.cursor {
			continue
		}
		n, _ := g.Node(id)
		ox, oy := n.X-from.X, n.Y-from.Y
		if ox != 0 || oy != 0 {
			laidOut = true
		}
		along := ox*dx + oy*dy
		if along <= 0 {
			continue
		}
		across := math.Abs(ox*dy - oy*dx)
		cone := along > across
		d2 := ox*ox + oy*oy
		if (cone && !bestCone) || (cone == bestCone && d2 < bestD2) {
			best, bestCone, bestD2 = i, cone, d2
		}
	}
	switch {
	case best >= 0:
		m.cursor = best
	case !laidOut:
		m.cycle(int(dx + dy))
	}
}

func (m *model) noteEvent(ev session.Event) {
	var line string
	switch ev.Kind {
	case session.EventTurnExecuted:
		if ev.Turn == nil {
			return
		}
		parts := make([]string, 0, len(ev.Turn.Animations))
		for _, a := range ev.Turn.Animations {
			icon := "lion"
			if a.Kind == rules.AnimateContamination {
				icon = "spread"
			}
			parts = append(parts, fmt.Sprintf("%s %s->%s", icon, a.From, a.To))
		}
		line = fmt.Sprintf("turn %d: %s", ev.Turn.Turn, strings.Join(parts, ", "))
	case session.EventMoveQueued, session.EventMoveCancelled:
		return
	default:
		line = fmt.Sprintf("%s (v%d)", ev.Kind, ev.Snapshot.Version)
	}
	m.recent = append([]string{line}, m.recent...)
	if len(m.recent) > maxRecent {
		m.recent = m.recent[:maxRecent]
	}
}

func (m model) View() string {
	var b strings.Builder
	phase := "placing lions"
	if m.snap.Started {
		phase = fmt.Sprintf("turn %d", m.snap.Turn)
	}
	b.WriteString(titleStyle.Render(fmt.Sprintf("Lion sweep - %s - %s", m.graph, phase)))
	b.WriteString("\n")

	board := m.viewBoard()
	side := sidebarStyle.Render(m.viewSidebar())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boardBorder.Render(board), side))
	b.WriteString("\n")

	if m.status != "" {
		if m.failed {
			b.WriteString(errorStyle.Render(m.status))
		} else {
			b.WriteString(m.status)
		}
		b.WriteString("\n")
	}
	if m.picking {
		b.WriteString(dimStyle.Render("arrows/1-9 choose, enter queue, esc abort"))
	} else {
		b.WriteString(dimStyle.Render("arrows move, p place, s start, m move, c cancel, enter turn, r reset, q quit"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m model) viewBoard() string {
	if len(m.nodes) == 0 {
		return dimStyle.Render("no graph loaded")
	}
	var b strings.Builder
	for i, id := range m.nodes {
		marker := "  "
		if i == m.cursor {
			marker = cursorStyle.Render("> ")
		}
		b.WriteString(marker)
		b.WriteString(fmt.Sprintf("%-4s", id))

		switch {
		case m.snap.LionCounts[id] > 0:
			b.WriteString(lionStyle.Render(fmt.Sprintf("lion x%d", m.snap.LionCounts[id])))
		case m.snap.Started && m.snap.IsContaminated(id):
			b.WriteString(germStyle.Render("contaminated"))
		case m.snap.Started:
			b.WriteString(cleanStyle.Render("clear"))
		default:
			b.WriteString(dimStyle.Render("-"))
		}

		for _, g := range m.snap.MoveGroups {
			if g.From == id {
				b.WriteString(arrowStyle.Render(fmt.Sprintf("  -> %s x%d", g.To, g.Count)))
			}
		}
		if i < len(m.nodes)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m model) viewSidebar() string {
	var b strings.Builder
	node := m.current()
	if node != "" {
		b.WriteString(fmt.Sprintf("node %s neighbours:\n", node))
		neighbours := m.snap.Graph.Neighbors(node)
		if m.picking {
			neighbours = m.targets
		}
		for i, nb := range neighbours {
			line := fmt.Sprintf(" %d. %s", i+1, nb)
			if m.picking && i == m.pick {
				line = pickStyle.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	if len(m.recent) > 0 {
		b.WriteString("\nrecent:\n")
		for _, r := range m.recent {
			b.WriteString(dimStyle.Render(r))
			b.WriteString("\n")
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}
