package store

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/brensch/lionsweep/game"
	"github.com/brensch/lionsweep/logging"
	"github.com/brensch/lionsweep/rules"
	"github.com/brensch/lionsweep/session"
)

// Recorder is a session listener that batches the start position and every
// executed turn, and writes the batch to an archive file on reset, graph
// load, close, or once FlushTurns rows are buffered.
type Recorder struct {
	dir        string
	flushTurns int
	log        *slog.Logger
	now        func() time.Time
	encode     func(*game.Graph) ([]byte, error)

	mu      sync.Mutex
	pending []TurnRow
	written []string
}

// NewRecorder returns a recorder writing to dir. flushTurns <= 0 disables
// the size trigger.
func NewRecorder(dir string, flushTurns int, log *slog.Logger) *Recorder {
	if log == nil {
		log = logging.Discard()
	}
	return &Recorder{dir: dir, flushTurns: flushTurns, log: log, now: time.Now, encode: encodeGraph}
}

func encodeGraph(g *game.Graph) ([]byte, error) {
	return json.Marshal(g)
}

// Listen implements session.Listener.
func (r *Recorder) Listen(ev session.Event) {
	switch ev.Kind {
	case session.EventStarted:
		r.append(ev.Snapshot, nil)
	case session.EventTurnExecuted:
		r.append(ev.Snapshot, ev.Turn)
	case session.EventReset, session.EventGraphLoaded, session.EventClosed:
		r.flush(ev.Snapshot.SessionID)
	}
}

// Pending returns the number of buffered rows.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Written returns the files written so far.
func (r *Recorder) Written() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.written...)
}

func (r *Recorder) append(snap session.Snapshot, turn *rules.TurnResult) {
	row := TurnRow{
		SessionID:    snap.SessionID,
		Turn:         snap.Turn,
		RecordedAt:   r.now().UnixNano(),
		Lions:        make([]ArchiveLion, 0, len(snap.Lions)),
		Moves:        []ArchiveMove{},
		Contaminated: snap.Contaminated,
	}
	for _, l := range snap.Lions {
		row.Lions = append(row.Lions, ArchiveLion{ID: int32(l.ID), NodeID: l.NodeID})
	}
	if turn != nil {
		row.Dropped = int32(turn.Dropped)
		for _, mv := range turn.Moves {
			row.Moves = append(row.Moves, ArchiveMove{LionID: int32(mv.LionID), From: mv.From, To: mv.To})
		}
	}

	// The first row of a batch carries the graph; a batch without one
	// cannot be decoded, so the row is dropped instead.
	r.mu.Lock()
	if len(r.pending) == 0 {
		graph, err := r.encode(snap.Graph)
		if err != nil || len(graph) == 0 {
			r.mu.Unlock()
			r.log.Error("encode graph for archive, row dropped", "session", snap.SessionID, "turn", snap.Turn, "err", err)
			return
		}
		row.GraphJSON = graph
	}
	r.pending = append(r.pending, row)
	full := r.flushTurns > 0 && len(r.pending) >= r.flushTurns
	r.mu.Unlock()

	if full {
		r.flush(snap.SessionID)
	}
}

func (r *Recorder) flush(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 {
		return
	}
	rows := r.pending
	r.pending = nil

	path, err := WriteTurnsAtomic(r.dir, sessionID, rows)
	if err != nil {
		r.log.Error("archive flush failed", "session", sessionID, "rows", len(rows), "err", err)
		return
	}
	r.written = append(r.written, path)
	r.log.Info("archive flushed", "session", sessionID, "rows", len(rows), "path", path)
}
