// Package session wraps one simulation state in a controller that the
// presentation layers drive with explicit commands.
//
// Every command runs under the session mutex, so at most one turn is ever in
// flight. Listeners are called after the mutex is released, in registration
// order, with an immutable Snapshot; Snapshot.Version lets a consumer drop
// updates that arrive out of order.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/brensch/lionsweep/game"
	"github.com/brensch/lionsweep/logging"
	"github.com/brensch/lionsweep/observe"
	"github.com/brensch/lionsweep/rules"
)

// EventKind names the command that produced an Event.
type EventKind string

const (
	EventGraphLoaded   EventKind = "graph_loaded"
	EventLionPlaced    EventKind = "lion_placed"
	EventStarted       EventKind = "started"
	EventMoveQueued    EventKind = "move_queued"
	EventMoveCancelled EventKind = "move_cancelled"
	EventTurnExecuted  EventKind = "turn_executed"
	EventReset         EventKind = "reset"
	EventClosed        EventKind = "closed"
)

// Event is delivered to listeners after every successful mutation.
// Turn is set only for EventTurnExecuted.
type Event struct {
	Kind     EventKind
	Snapshot Snapshot
	Turn     *rules.TurnResult
}

// Listener receives session events. It must not call back into the session
// synchronously.
type Listener func(Event)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger. The default discards everything.
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics records command and turn metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithListener subscribes l before the session is returned.
func WithListener(l Listener) Option {
	return func(s *Session) { s.subscribe(l) }
}

// Session is the controller for one game.
type Session struct {
	id      string
	log     *slog.Logger
	metrics *observe.Metrics

	// delivering counts listener loops still running outside the mutex.
	delivering sync.WaitGroup

	mu           sync.Mutex
	state        *game.State
	version      uint64
	closed       bool
	listeners    map[int]Listener
	listenerSeq  int
	listenerKeys []int
}

// New returns an empty session with no graph loaded.
func New(id string, opts ...Option) *Session {
	s := &Session{
		id:        id,
		log:       logging.Discard(),
		state:     game.NewState(nil),
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("session", id)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Subscribe registers l and returns a function that removes it.
func (s *Session) Subscribe(l Listener) func() {
	s.mu.Lock()
	key := s.subscribe(l)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, key)
			for i, k := range s.listenerKeys {
				if k == key {
					s.listenerKeys = append(s.listenerKeys[:i], s.listenerKeys[i+1:]...)
					break
				}
			}
		})
	}
}

func (s *Session) subscribe(l Listener) int {
	s.listenerSeq++
	key := s.listenerSeq
	s.listeners[key] = l
	s.listenerKeys = append(s.listenerKeys, key)
	return key
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return newSnapshot(s.id, s.version, s.state)
}

// State returns a deep copy of the underlying simulation state.
func (s *Session) State() *game.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// LoadGraph installs g and discards lions, queued moves and contamination.
func (s *Session) LoadGraph(g *game.Graph) error {
	if g == nil {
		return fmt.Errorf("%w: nil graph", game.ErrMalformedGraph)
	}
	return s.apply("load_graph", func(st *game.State) (EventKind, *rules.TurnResult, error) {
		*st = *game.NewState(g)
		s.log.Info("graph loaded", "nodes", g.NodeCount(), "edges", len(g.Edges()))
		return EventGraphLoaded, nil, nil
	})
}

// LoadGraphJSON parses a graph record and installs it. A malformed record
// leaves the current graph in place.
func (s *Session) LoadGraphJSON(data []byte) error {
	g, err := game.ParseGraphJSON(data)
	if err != nil {
		s.metrics.RecordCommand(context.Background(), "load_graph", "malformed")
		return err
	}
	return s.LoadGraph(g)
}

// PlaceLion adds a lion on nodeID during the placement phase and returns its id.
func (s *Session) PlaceLion(nodeID string) (int, error) {
	var id int
	err := s.apply("place", func(st *game.State) (EventKind, *rules.TurnResult, error) {
		if st.Graph == nil {
			return "", nil, ErrNoGraph
		}
		if st.Started {
			return "", nil, ErrStarted
		}
		if !st.Graph.HasNode(nodeID) {
			return "", nil, fmt.Errorf("%w: %q", ErrUnknownNode, nodeID)
		}
		st.LastLionID++
		id = st.LastLionID
		st.Lions = append(st.Lions, game.Lion{ID: id, NodeID: nodeID})
		if s.metrics != nil {
			s.metrics.LionsPlaced.Add(context.Background(), 1)
		}
		s.log.Debug("lion placed", "lion", id, "node", nodeID)
		return EventLionPlaced, nil, nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Start leaves the placement phase. Starting twice is a no-op that returns
// nil and fires no event.
func (s *Session) Start() error {
	return s.apply("start", func(st *game.State) (EventKind, *rules.TurnResult, error) {
		if st.Graph == nil {
			return "", nil, ErrNoGraph
		}
		if st.Started {
			return "", nil, nil
		}
		*st = *rules.Start(st)
		s.log.Info("simulation started", "lions", len(st.Lions), "contaminated", len(st.Contaminated))
		return EventStarted, nil, nil
	})
}

// QueueMove sets lionID's move for the next turn, replacing any earlier one.
func (s *Session) QueueMove(lionID int, target string) error {
	return s.apply("queue", func(st *game.State) (EventKind, *rules.TurnResult, error) {
		if err := checkStarted(st); err != nil {
			return "", nil, err
		}
		lion, ok := st.Lion(lionID)
		if !ok {
			return "", nil, fmt.Errorf("%w: %d", ErrUnknownLion, lionID)
		}
		if !st.Graph.HasNode(target) {
			return "", nil, fmt.Errorf("%w: %q", ErrUnknownNode, target)
		}
		if !rules.IsLegalMove(st, lionID, target) {
			return "", nil, fmt.Errorf("%w: %s -> %s", ErrNotAdjacent, lion.NodeID, target)
		}
		st.QueuedMoves[lionID] = target
		s.log.Debug("move queued", "lion", lionID, "from", lion.NodeID, "to", target)
		return EventMoveQueued, nil, nil
	})
}

// QueueMoveFrom queues a move to `to` for the first lion on `from` that has
// nothing queued yet, and returns that lion's id.
func (s *Session) QueueMoveFrom(from, to string) (int, error) {
	var id int
	err := s.apply("queue_from", func(st *game.State) (EventKind, *rules.TurnResult, error) {
		if err := checkStarted(st); err != nil {
			return "", nil, err
		}
		if !st.Graph.HasNode(from) {
			return "", nil, fmt.Errorf("%w: %q", ErrUnknownNode, from)
		}
		if !st.Graph.HasNode(to) {
			return "", nil, fmt.Errorf("%w: %q", ErrUnknownNode, to)
		}
		if !st.Graph.Adjacent(from, to) {
			return "", nil, fmt.Errorf("%w: %s -> %s", ErrNotAdjacent, from, to)
		}
		for _, lion := range st.LionsAt(from) {
			if _, queued := st.QueuedMoves[lion.ID]; queued {
				continue
			}
			id = lion.ID
			st.QueuedMoves[id] = to
			s.log.Debug("move queued", "lion", id, "from", from, "to", to)
			return EventMoveQueued, nil, nil
		}
		return "", nil, fmt.Errorf("%w: %q", ErrNoIdleLion, from)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CancelMove removes the queued move of exactly one lion standing on `from`
// and heading for `to`, the earliest created. It returns that lion's id.
func (s *Session) CancelMove(from, to string) (int, error) {
	var id int
	err := s.apply("cancel", func(st *game.State) (EventKind, *rules.TurnResult, error) {
		if err := checkStarted(st); err != nil {
			return "", nil, err
		}
		for _, lion := range st.LionsAt(from) {
			if target, ok := st.QueuedMoves[lion.ID]; ok && target == to {
				id = lion.ID
				delete(st.QueuedMoves, id)
				s.log.Debug("move cancelled", "lion", id, "from", from, "to", to)
				return EventMoveCancelled, nil, nil
			}
		}
		return "", nil, fmt.Errorf("%w: %s -> %s", ErrNoMatchingMove, from, to)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ExecuteTurn resolves one turn. With an empty queue it returns
// ErrNoQueuedMoves and changes nothing.
func (s *Session) ExecuteTurn() (rules.TurnResult, error) {
	var result rules.TurnResult
	err := s.apply("turn", func(st *game.State) (EventKind, *rules.TurnResult, error) {
		if err := checkStarted(st); err != nil {
			return "", nil, err
		}
		if len(st.QueuedMoves) == 0 {
			return "", nil, ErrNoQueuedMoves
		}

		begin := time.Now()
		next, res := rules.NextTurn(st)
		took := time.Since(begin)
		*st = *next
		result = res

		s.metrics.RecordTurn(context.Background(), len(res.Moves), res.Dropped, len(res.Contaminated), took)
		s.log.Info("turn executed",
			"turn", res.Turn,
			"moves", len(res.Moves),
			"dropped", res.Dropped,
			"contaminated", len(res.Contaminated),
		)
		return EventTurnExecuted, &result, nil
	})
	return result, err
}

// Reset returns to an empty placement phase on the same graph.
func (s *Session) Reset() error {
	return s.apply("reset", func(st *game.State) (EventKind, *rules.TurnResult, error) {
		*st = *game.NewState(st.Graph)
		s.log.Info("session reset")
		return EventReset, nil, nil
	})
}

// Close fires a final EventClosed and drops every listener. It waits for
// events of earlier commands to reach their listeners first, so EventClosed
// is always the last event a listener sees. Later commands fail with
// ErrClosed. Closing twice is a no-op. Listeners must not call Close.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.version++
	ev := Event{Kind: EventClosed, Snapshot: newSnapshot(s.id, s.version, s.state)}
	listeners := s.orderedListeners()
	s.listeners = make(map[int]Listener)
	s.listenerKeys = nil
	s.mu.Unlock()

	s.delivering.Wait()
	s.log.Debug("session closed")
	for _, l := range listeners {
		l(ev)
	}
}

// apply runs fn on a working copy of the state. On error the copy is thrown
// away; on success it replaces the state, bumps the version and notifies
// listeners outside the lock. An empty kind means fn changed nothing.
func (s *Session) apply(command string, fn func(st *game.State) (EventKind, *rules.TurnResult, error)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.metrics.RecordCommand(context.Background(), command, "rejected")
		return ErrClosed
	}

	work := s.state.Clone()
	kind, turn, err := fn(work)
	if err != nil {
		s.mu.Unlock()
		s.metrics.RecordCommand(context.Background(), command, "rejected")
		s.log.Debug("command rejected", "command", command, "err", err)
		return err
	}
	if kind == "" {
		s.mu.Unlock()
		s.metrics.RecordCommand(context.Background(), command, "noop")
		return nil
	}

	s.state = work
	s.version++
	ev := Event{Kind: kind, Snapshot: newSnapshot(s.id, s.version, s.state), Turn: turn}
	listeners := s.orderedListeners()
	s.delivering.Add(1)
	s.mu.Unlock()
	defer s.delivering.Done()

	s.metrics.RecordCommand(context.Background(), command, "ok")
	for _, l := range listeners {
		l(ev)
	}
	return nil
}

func (s *Session) orderedListeners() []Listener {
	out := make([]Listener, 0, len(s.listenerKeys))
	for _, k := range s.listenerKeys {
		out = append(out, s.listeners[k])
	}
	return out
}

func checkStarted(st *game.State) error {
	if st.Graph == nil {
		return ErrNoGraph
	}
	if !st.Started {
		return ErrNotStarted
	}
	return nil
}
