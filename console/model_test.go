package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/lionsweep/catalog"
	"github.com/brensch/lionsweep/logging"
	"github.com/brensch/lionsweep/session"
)

func newTestModel(t *testing.T, graph string) (model, chan session.Event) {
	t.Helper()
	g, err := catalog.Default().Load(graph)
	if err != nil {
		t.Fatalf("load %s: %v", graph, err)
	}
	events := make(chan session.Event, 64)
	sess := session.New("console-test",
		session.WithLogger(logging.Discard()),
		session.WithListener(forward(events, logging.Discard())),
	)
	if err := sess.LoadGraph(g); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(sess.Close)
	return newModel(sess, graph, events), events
}

func press(t *testing.T, m model, keys ...string) model {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "left":
			msg = tea.KeyMsg{Type: tea.KeyLeft}
		case "right":
			msg = tea.KeyMsg{Type: tea.KeyRight}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(model)
	}
	return m
}

func TestModel_PlayLine(t *testing.T) {
	m, _ := newTestModel(t, "line")
	if m.current() != "1" {
		t.Fatalf("cursor starts on %q, want 1", m.current())
	}

	m = press(t, m, "right", "p", "s")
	if m.failed {
		t.Fatalf("status = %q", m.status)
	}
	if got := strings.Join(m.snap.Contaminated, ","); got != "1,3" {
		t.Fatalf("contaminated after start = %s, want 1,3", got)
	}

	// Move mode from node 2: its neighbours are 1 then 3.
	m = press(t, m, "m")
	if !m.picking || len(m.targets) != 2 {
		t.Fatalf("picking=%v targets=%v", m.picking, m.targets)
	}
	m = press(t, m, "1")
	if m.picking || m.failed {
		t.Fatalf("after pick: picking=%v status=%q", m.picking, m.status)
	}
	if len(m.snap.Queued) != 1 || m.snap.Queued[0].To != "1" {
		t.Fatalf("queued = %+v", m.snap.Queued)
	}

	m = press(t, m, "enter")
	t.Logf("after turn: %s", m.status)
	if m.snap.Turn != 1 || m.snap.Lions[0].NodeID != "1" {
		t.Fatalf("turn=%d lions=%+v", m.snap.Turn, m.snap.Lions)
	}
	if got := strings.Join(m.snap.Contaminated, ","); got != "2,3" {
		t.Errorf("contaminated = %s, want 2,3", got)
	}

	m = press(t, m, "r")
	if m.snap.Started || len(m.snap.Lions) != 0 || m.snap.Graph == nil {
		t.Errorf("after reset: %+v", m.snap)
	}
}

func TestModel_CancelOne(t *testing.T) {
	m, _ := newTestModel(t, "path")
	m = press(t, m, "tab", "p", "p", "s")
	if m.snap.LionCounts["2"] != 2 {
		t.Fatalf("lion counts = %v", m.snap.LionCounts)
	}

	// Neighbours of 2 are 1 and 3; pick 3 with the arrow then enter, twice.
	m = press(t, m, "m", "down", "enter", "m", "down", "enter")
	if len(m.snap.MoveGroups) != 1 || m.snap.MoveGroups[0].Count != 2 {
		t.Fatalf("move groups = %+v", m.snap.MoveGroups)
	}

	m = press(t, m, "c")
	if len(m.snap.Queued) != 1 {
		t.Fatalf("queued after cancel = %+v", m.snap.Queued)
	}
	if !strings.Contains(m.View(), "-> 3 x1") {
		t.Errorf("view does not show the remaining arrow:\n%s", m.View())
	}

	m = press(t, m, "c", "c")
	if !m.failed || !strings.Contains(m.status, "no queued move") {
		t.Errorf("status = %q failed=%v", m.status, m.failed)
	}
}

func TestModel_Errors(t *testing.T) {
	m, _ := newTestModel(t, "line")

	m = press(t, m, "m")
	if m.picking || !m.failed || !strings.Contains(m.status, "not started") {
		t.Fatalf("move before start: picking=%v status=%q", m.picking, m.status)
	}

	m = press(t, m, "enter")
	if !m.failed {
		t.Errorf("turn before start should fail, status=%q", m.status)
	}

	m = press(t, m, "s", "p")
	if !m.failed || !strings.Contains(m.status, "already started") {
		t.Errorf("place after start: status=%q", m.status)
	}

	// Node 1 has no lion: the move is rejected by the session.
	m = press(t, m, "m", "enter")
	if !m.failed || !strings.Contains(m.status, "no lion") {
		t.Errorf("queue from empty node: status=%q", m.status)
	}

	m = press(t, m, "m", "esc")
	if m.picking || m.failed {
		t.Errorf("esc should leave move mode quietly: %q", m.status)
	}
}

func TestModel_ArrowNavigation(t *testing.T) {
	m, _ := newTestModel(t, "example")
	steps := []struct {
		key  string
		want string
	}{
		{"right", "2"},
		{"right", "3"},
		{"down", "6"},
		{"left", "5"},
		{"left", "4"},
		{"up", "1"},
		{"left", "1"},
		{"right", "2"},
		{"down", "5"},
		{"up", "2"},
	}
	for _, s := range steps {
		m = press(t, m, s.key)
		if got := m.current(); got != s.want {
			t.Fatalf("after %s: cursor on %s, want %s", s.key, got, s.want)
		}
	}
}

func TestModel_Quit(t *testing.T) {
	m, _ := newTestModel(t, "line")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("q did not quit")
	}
}

func TestModel_Events(t *testing.T) {
	m, events := newTestModel(t, "line")
	m = press(t, m, "right", "p", "s", "m", "1", "enter")

	// Drain what the session published and feed it back as the program would.
	for len(events) > 0 {
		next, cmd := m.Update(eventMsg(<-events))
		m = next.(model)
		if cmd == nil {
			t.Fatal("event handling stopped listening")
		}
	}
	if len(m.recent) == 0 || !strings.HasPrefix(m.recent[0], "turn 1: lion 2->1") {
		t.Fatalf("recent = %q", m.recent)
	}
	if !strings.Contains(m.recent[0], "spread 3->2") {
		t.Errorf("turn line misses the spread: %q", m.recent[0])
	}
	if !strings.Contains(m.View(), "recent:") {
		t.Errorf("view has no activity list")
	}
}
