package session

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/brensch/lionsweep/game"
	"github.com/brensch/lionsweep/rules"
)

const pathGraph = `{
	"nodes": [{"id": 1, "x": 0, "y": 0}, {"id": 2, "x": 1, "y": 0}, {"id": 3, "x": 2, "y": 0}, {"id": 4, "x": 3, "y": 0}],
	"edges": [{"from": 1, "to": 2}, {"from": 2, "to": 3}, {"from": 3, "to": 4}]
}`

const lineGraph = `{
	"nodes": [{"id": "1"}, {"id": "2"}, {"id": "3"}],
	"edges": [{"from": "1", "to": "2"}, {"from": "2", "to": "3"}]
}`

const triangleGraph = `{
	"nodes": [{"id": 1}, {"id": 2}, {"id": 3}],
	"edges": [{"from": 1, "to": 2}, {"from": 2, "to": 3}, {"from": 1, "to": 3}]
}`

// recorder collects events delivered to a listener.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newLoaded(t *testing.T, graph string) (*Session, *recorder) {
	t.Helper()
	rec := &recorder{}
	s := New("test", WithListener(rec.listen))
	if err := s.LoadGraphJSON([]byte(graph)); err != nil {
		t.Fatalf("LoadGraphJSON: %v", err)
	}
	return s, rec
}

func mustPlace(t *testing.T, s *Session, node string) int {
	t.Helper()
	id, err := s.PlaceLion(node)
	if err != nil {
		t.Fatalf("PlaceLion(%s): %v", node, err)
	}
	return id
}

func logSnapshot(t *testing.T, label string, snap Snapshot) {
	t.Helper()
	t.Logf("%s: v=%d started=%v turn=%d lions=%v queued=%v contaminated=%v",
		label, snap.Version, snap.Started, snap.Turn, snap.Lions, snap.Queued, snap.Contaminated)
}

func TestScenario_Line(t *testing.T) {
	s, _ := newLoaded(t, lineGraph)
	lion := mustPlace(t, s, "2")
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := s.Snapshot().Contaminated; !reflect.DeepEqual(got, []string{"1", "3"}) {
		t.Fatalf("after start contaminated = %v, want [1 3]", got)
	}

	if err := s.QueueMove(lion, "1"); err != nil {
		t.Fatalf("QueueMove: %v", err)
	}
	logSnapshot(t, "before", s.Snapshot())
	res, err := s.ExecuteTurn()
	if err != nil {
		t.Fatalf("ExecuteTurn: %v", err)
	}
	snap := s.Snapshot()
	logSnapshot(t, "after", snap)

	if snap.Lions[0].NodeID != "1" {
		t.Errorf("lion at %s, want 1", snap.Lions[0].NodeID)
	}
	if !reflect.DeepEqual(snap.Contaminated, []string{"2", "3"}) {
		t.Errorf("contaminated = %v, want [2 3]", snap.Contaminated)
	}
	if len(snap.Queued) != 0 {
		t.Errorf("queue not cleared: %v", snap.Queued)
	}
	if res.Turn != 1 || snap.Turn != 1 {
		t.Errorf("turn = %d/%d, want 1", res.Turn, snap.Turn)
	}
}

func TestScenario_TriangleNoLions(t *testing.T) {
	s, rec := newLoaded(t, triangleGraph)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	before := s.Snapshot()
	if !reflect.DeepEqual(before.Contaminated, []string{"1", "2", "3"}) {
		t.Fatalf("contaminated = %v, want [1 2 3]", before.Contaminated)
	}

	events := rec.len()
	if _, err := s.ExecuteTurn(); !errors.Is(err, ErrNoQueuedMoves) {
		t.Fatalf("ExecuteTurn on empty queue: err = %v, want ErrNoQueuedMoves", err)
	}
	after := s.Snapshot()
	if !reflect.DeepEqual(before, after) {
		t.Errorf("empty turn changed state:\nbefore %+v\nafter  %+v", before, after)
	}
	if rec.len() != events {
		t.Errorf("empty turn fired %d events", rec.len()-events)
	}
}

func TestScenario_PathOneMove(t *testing.T) {
	s, _ := newLoaded(t, pathGraph)
	a := mustPlace(t, s, "2")
	mustPlace(t, s, "3")
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if got := s.Snapshot().Contaminated; !reflect.DeepEqual(got, []string{"1", "4"}) {
		t.Fatalf("after start contaminated = %v, want [1 4]", got)
	}
	if err := s.QueueMove(a, "1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ExecuteTurn(); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	logSnapshot(t, "after", snap)
	if !reflect.DeepEqual(snap.Contaminated, []string{"4"}) {
		t.Errorf("contaminated = %v, want [4]", snap.Contaminated)
	}
}

func TestScenario_CancelDecrements(t *testing.T) {
	s, _ := newLoaded(t, pathGraph)
	x := mustPlace(t, s, "2")
	y := mustPlace(t, s, "2")
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	for _, id := range []int{x, y} {
		if err := s.QueueMove(id, "3"); err != nil {
			t.Fatal(err)
		}
	}
	if groups := s.Snapshot().MoveGroups; len(groups) != 1 || groups[0].Count != 2 {
		t.Fatalf("move groups = %+v, want one group of 2", groups)
	}

	cancelled, err := s.CancelMove("2", "3")
	if err != nil {
		t.Fatalf("CancelMove: %v", err)
	}
	if cancelled != x {
		t.Errorf("cancelled lion %d, want the first created (%d)", cancelled, x)
	}

	snap := s.Snapshot()
	if len(snap.Queued) != 1 {
		t.Fatalf("queued = %v, want exactly one left", snap.Queued)
	}
	if to, ok := snap.QueuedFor(y); !ok || to != "3" {
		t.Errorf("lion %d queued = %q %v, want 3", y, to, ok)
	}
	if groups := snap.MoveGroups; len(groups) != 1 || groups[0].Count != 1 {
		t.Errorf("move groups = %+v, want one group of 1", groups)
	}

	if _, err := s.CancelMove("2", "3"); err != nil {
		t.Fatalf("second CancelMove: %v", err)
	}
	if _, err := s.CancelMove("2", "3"); !errors.Is(err, ErrNoMatchingMove) {
		t.Errorf("third CancelMove err = %v, want ErrNoMatchingMove", err)
	}
}

func TestCommandErrors(t *testing.T) {
	s := New("empty")
	if _, err := s.PlaceLion("1"); !errors.Is(err, ErrNoGraph) {
		t.Errorf("PlaceLion without graph: %v", err)
	}
	if err := s.Start(); !errors.Is(err, ErrNoGraph) {
		t.Errorf("Start without graph: %v", err)
	}

	s, rec := newLoaded(t, pathGraph)
	if _, err := s.PlaceLion("9"); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("PlaceLion unknown node: %v", err)
	}
	lion := mustPlace(t, s, "1")
	if err := s.QueueMove(lion, "2"); !errors.Is(err, ErrNotStarted) {
		t.Errorf("QueueMove before start: %v", err)
	}
	if _, err := s.ExecuteTurn(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("ExecuteTurn before start: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PlaceLion("2"); !errors.Is(err, ErrStarted) {
		t.Errorf("PlaceLion after start: %v", err)
	}
	if err := s.QueueMove(lion, "3"); !errors.Is(err, ErrNotAdjacent) {
		t.Errorf("QueueMove non-adjacent: %v", err)
	}
	if err := s.QueueMove(42, "2"); !errors.Is(err, ErrUnknownLion) {
		t.Errorf("QueueMove unknown lion: %v", err)
	}
	if err := s.QueueMove(lion, "nope"); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("QueueMove unknown target: %v", err)
	}

	events := rec.len()
	version := s.Snapshot().Version
	if err := s.Start(); err != nil {
		t.Errorf("second Start: %v", err)
	}
	if rec.len() != events || s.Snapshot().Version != version {
		t.Errorf("second Start was not a no-op")
	}

	for _, err := range []error{ErrStarted, ErrNotAdjacent, ErrNoIdleLion} {
		if !IsInvalidOperation(err) {
			t.Errorf("IsInvalidOperation(%v) = false", err)
		}
	}
	if IsInvalidOperation(game.ErrMalformedGraph) || IsInvalidOperation(ErrNotFound) {
		t.Errorf("malformed graph and not found are not soft command errors")
	}
}

func TestQueueOverwrites(t *testing.T) {
	s, _ := newLoaded(t, pathGraph)
	lion := mustPlace(t, s, "2")
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.QueueMove(lion, "1"); err != nil {
		t.Fatal(err)
	}
	if err := s.QueueMove(lion, "3"); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if len(snap.Queued) != 1 || snap.Queued[0].To != "3" {
		t.Errorf("queued = %+v, want single move to 3", snap.Queued)
	}
}

func TestQueueMoveFrom(t *testing.T) {
	s, _ := newLoaded(t, pathGraph)
	first := mustPlace(t, s, "2")
	second := mustPlace(t, s, "2")
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	got, err := s.QueueMoveFrom("2", "1")
	if err != nil || got != first {
		t.Fatalf("QueueMoveFrom = %d, %v; want %d", got, err, first)
	}
	got, err = s.QueueMoveFrom("2", "3")
	if err != nil || got != second {
		t.Fatalf("QueueMoveFrom = %d, %v; want %d", got, err, second)
	}
	if _, err := s.QueueMoveFrom("2", "1"); !errors.Is(err, ErrNoIdleLion) {
		t.Errorf("every lion busy: err = %v", err)
	}
	if _, err := s.QueueMoveFrom("1", "3"); !errors.Is(err, ErrNotAdjacent) {
		t.Errorf("non-adjacent: err = %v", err)
	}
	if _, err := s.QueueMoveFrom("4", "3"); !errors.Is(err, ErrNoIdleLion) {
		t.Errorf("empty node: err = %v", err)
	}

	snap := s.Snapshot()
	want := []MoveGroup{{From: "2", To: "1", Count: 1}, {From: "2", To: "3", Count: 1}}
	if !reflect.DeepEqual(snap.MoveGroups, want) {
		t.Errorf("move groups = %+v, want %+v", snap.MoveGroups, want)
	}
	if snap.LionCounts["2"] != 2 {
		t.Errorf("lion counts = %v", snap.LionCounts)
	}
}

func TestEvents(t *testing.T) {
	s, rec := newLoaded(t, lineGraph)
	lion := mustPlace(t, s, "2")
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.QueueMove(lion, "3"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CancelMove("2", "3"); err != nil {
		t.Fatal(err)
	}
	if err := s.QueueMove(lion, "1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ExecuteTurn(); err != nil {
		t.Fatal(err)
	}
	if err := s.Reset(); err != nil {
		t.Fatal(err)
	}
	s.Close()

	want := []EventKind{
		EventGraphLoaded, EventLionPlaced, EventStarted, EventMoveQueued,
		EventMoveCancelled, EventMoveQueued, EventTurnExecuted, EventReset, EventClosed,
	}
	if got := rec.kinds(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v\nwant     %v", got, want)
	}

	var last uint64
	for _, ev := range rec.events {
		if ev.Snapshot.Version <= last {
			t.Errorf("version did not increase at %s: %d after %d", ev.Kind, ev.Snapshot.Version, last)
		}
		last = ev.Snapshot.Version
		if (ev.Kind == EventTurnExecuted) != (ev.Turn != nil) {
			t.Errorf("%s: turn payload present = %v", ev.Kind, ev.Turn != nil)
		}
	}

	turn := rec.events[6].Turn
	if len(turn.Animations) == 0 || turn.Animations[0] != (rules.Animation{Kind: rules.AnimateLion, From: "2", To: "1"}) {
		t.Errorf("animations = %+v", turn.Animations)
	}

	if err := s.Start(); !errors.Is(err, ErrClosed) {
		t.Errorf("command after close: %v", err)
	}
}

func TestResetKeepsGraph(t *testing.T) {
	s, _ := newLoaded(t, pathGraph)
	lion := mustPlace(t, s, "1")
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.QueueMove(lion, "2"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ExecuteTurn(); err != nil {
		t.Fatal(err)
	}
	if err := s.Reset(); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	if snap.Started || snap.Turn != 0 || len(snap.Lions) != 0 || len(snap.Contaminated) != 0 || len(snap.Queued) != 0 {
		t.Fatalf("reset left state behind: %+v", snap)
	}
	if snap.Graph.NodeCount() != 4 {
		t.Fatalf("reset dropped the graph")
	}
	if id := mustPlace(t, s, "3"); id != 1 {
		t.Errorf("lion id after reset = %d, want 1", id)
	}
}

func TestLoadGraphDiscardsState(t *testing.T) {
	s, _ := newLoaded(t, pathGraph)
	mustPlace(t, s, "1")
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	if err := s.LoadGraphJSON([]byte(`{"nodes": [{"id": 1}], "edges": [{"from": 1, "to": 2}]}`)); !errors.Is(err, game.ErrMalformedGraph) {
		t.Fatalf("malformed load err = %v", err)
	}
	if snap := s.Snapshot(); !snap.Started || snap.Graph.NodeCount() != 4 {
		t.Fatalf("malformed load touched the session: %+v", snap)
	}

	if err := s.LoadGraphJSON([]byte(triangleGraph)); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if snap.Started || len(snap.Lions) != 0 || snap.Graph.NodeCount() != 3 {
		t.Errorf("graph load kept old state: %+v", snap)
	}
}

func TestConcurrentTurns(t *testing.T) {
	s, _ := newLoaded(t, pathGraph)
	lion := mustPlace(t, s, "1")
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap := s.Snapshot()
			pos := snap.Lions[0].NodeID
			targets := snap.Graph.Neighbors(pos)
			if err := s.QueueMove(lion, targets[0]); err != nil && !errors.Is(err, ErrNotAdjacent) {
				t.Errorf("QueueMove: %v", err)
			}
			if _, err := s.ExecuteTurn(); err != nil && !errors.Is(err, ErrNoQueuedMoves) {
				t.Errorf("ExecuteTurn: %v", err)
			}
		}()
	}
	wg.Wait()

	st := s.State()
	for _, l := range st.Lions {
		if st.Contaminated.Has(l.NodeID) {
			t.Errorf("lion node %s contaminated", l.NodeID)
		}
	}
	if len(st.QueuedMoves) > 1 {
		t.Errorf("queue holds %d entries for one lion", len(st.QueuedMoves))
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	s, _ := newLoaded(t, lineGraph)
	rec := &recorder{}
	stop := s.Subscribe(rec.listen)
	mustPlace(t, s, "1")
	stop()
	stop()
	mustPlace(t, s, "2")
	if rec.len() != 1 {
		t.Errorf("got %d events, want 1", rec.len())
	}
}
