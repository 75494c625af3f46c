package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/brensch/lionsweep/catalog"
	"github.com/brensch/lionsweep/game"
	"github.com/brensch/lionsweep/session"
)

func TestWriteReadTurns(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	path := filepath.Join(dir, "nested", "game.parquet")

	rows := []TurnRow{{
		SessionID:    "s1",
		Turn:         0,
		RecordedAt:   42,
		GraphJSON:    []byte(`{"nodes":[{"id":"1","x":0,"y":0},{"id":"2","x":1,"y":0}],"edges":[{"from":"1","to":"2"}]}`),
		Lions:        []ArchiveLion{{ID: 1, NodeID: "1"}},
		Contaminated: []string{"2"},
	}, {
		SessionID:    "s1",
		Turn:         1,
		RecordedAt:   43,
		Lions:        []ArchiveLion{{ID: 1, NodeID: "2"}},
		Moves:        []ArchiveMove{{LionID: 1, From: "1", To: "2"}},
		Contaminated: []string{"1"},
	}}
	c.Assert(WriteTurns(path, rows), qt.IsNil)

	_, err := os.Stat(path + ".tmp")
	c.Assert(os.IsNotExist(err), qt.IsTrue)

	got, err := ReadTurns(path)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, 2)
	c.Assert(got[1].Turn, qt.Equals, int32(1))
	c.Assert(got[1].Moves, qt.DeepEquals, rows[1].Moves)
	c.Assert(got[1].Lions, qt.DeepEquals, rows[1].Lions)
	c.Assert(got[0].Contaminated, qt.DeepEquals, []string{"2"})
	c.Assert(string(got[0].GraphJSON), qt.Equals, string(rows[0].GraphJSON))
	c.Assert(got[1].RecordedTime().UnixNano(), qt.Equals, int64(43))

	g, err := DecodeGame(got)
	c.Assert(err, qt.IsNil)
	c.Assert(g.Graph.Adjacent("1", "2"), qt.IsTrue)
	st := g.State(1)
	c.Assert(st.Lions[0].NodeID, qt.Equals, "2")
	c.Assert(st.Contaminated.Has("1"), qt.IsTrue)
	c.Assert(st.LastLionID, qt.Equals, 1)
}

func TestWriteTurnsAtomic(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()

	path, err := WriteTurnsAtomic(dir, "sess", []TurnRow{{SessionID: "sess"}})
	c.Assert(err, qt.IsNil)
	c.Assert(filepath.Dir(path), qt.Equals, dir)
	c.Assert(strings.HasPrefix(filepath.Base(path), "sess_"), qt.IsTrue)

	tmp, err := os.ReadDir(filepath.Join(dir, "tmp"))
	c.Assert(err, qt.IsNil)
	c.Assert(tmp, qt.HasLen, 0)

	files, err := ListArchives(dir)
	c.Assert(err, qt.IsNil)
	c.Assert(files, qt.DeepEquals, []string{path})

	_, err = WriteTurnsAtomic(dir, "", nil)
	c.Assert(err, qt.ErrorMatches, "session id is required")
}

func TestDecodeGameNeedsGraph(t *testing.T) {
	c := qt.New(t)
	_, err := DecodeGame(nil)
	c.Assert(err, qt.ErrorMatches, "archive has no rows")
	_, err = DecodeGame([]TurnRow{{SessionID: "x"}})
	c.Assert(err, qt.ErrorMatches, "first row of session x has no graph")
}

func TestRecorder(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	rec := NewRecorder(dir, 3, nil)

	g, err := catalog.Default().Load("path")
	c.Assert(err, qt.IsNil)

	s := session.New("rec", session.WithListener(rec.Listen))
	c.Assert(s.LoadGraph(g), qt.IsNil)
	lion, err := s.PlaceLion("1")
	c.Assert(err, qt.IsNil)
	c.Assert(s.Start(), qt.IsNil)
	c.Assert(rec.Pending(), qt.Equals, 1)

	// 1 -> 2 -> 3 fills the batch of three.
	for _, to := range []string{"2", "3"} {
		c.Assert(s.QueueMove(lion, to), qt.IsNil)
		_, err := s.ExecuteTurn()
		c.Assert(err, qt.IsNil)
	}
	c.Assert(rec.Pending(), qt.Equals, 0)
	c.Assert(rec.Written(), qt.HasLen, 1)

	c.Assert(s.QueueMove(lion, "4"), qt.IsNil)
	_, err = s.ExecuteTurn()
	c.Assert(err, qt.IsNil)
	c.Assert(rec.Pending(), qt.Equals, 1)

	s.Close()
	written := rec.Written()
	c.Assert(written, qt.HasLen, 2)

	first, err := ReadTurns(written[0])
	c.Assert(err, qt.IsNil)
	c.Assert(first, qt.HasLen, 3)
	c.Assert(first[0].Turn, qt.Equals, int32(0))
	c.Assert(first[0].Contaminated, qt.DeepEquals, []string{"2", "3", "4"})
	c.Assert(first[2].Moves, qt.DeepEquals, []ArchiveMove{{LionID: 1, From: "2", To: "3"}})

	second, err := ReadTurns(written[1])
	c.Assert(err, qt.IsNil)
	c.Assert(second, qt.HasLen, 1)
	c.Assert(len(second[0].GraphJSON) > 0, qt.IsTrue)

	decoded, err := DecodeGame(second)
	c.Assert(err, qt.IsNil)
	c.Assert(decoded.Frames[0].Turn, qt.Equals, int32(3))
	c.Assert(decoded.Frames[0].Lions[0].NodeID, qt.Equals, "4")
}

func TestGameVerify(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	rec := NewRecorder(dir, 0, nil)

	g, err := catalog.Default().Load("example")
	c.Assert(err, qt.IsNil)
	s := session.New("verify", session.WithListener(rec.Listen))
	c.Assert(s.LoadGraph(g), qt.IsNil)
	for _, node := range []string{"7", "8"} {
		_, err := s.PlaceLion(node)
		c.Assert(err, qt.IsNil)
	}
	c.Assert(s.Start(), qt.IsNil)
	for _, mv := range [][2]string{{"7", "5"}, {"8", "3"}, {"5", "4"}} {
		_, err := s.QueueMoveFrom(mv[0], mv[1])
		c.Assert(err, qt.IsNil)
		_, err = s.ExecuteTurn()
		c.Assert(err, qt.IsNil)
	}
	c.Assert(s.Reset(), qt.IsNil)

	written := rec.Written()
	c.Assert(written, qt.HasLen, 1)
	rows, err := ReadTurns(written[0])
	c.Assert(err, qt.IsNil)
	c.Assert(rows, qt.HasLen, 4)

	decoded, err := DecodeGame(rows)
	c.Assert(err, qt.IsNil)
	c.Assert(decoded.Verify(), qt.IsNil)

	// A tampered outcome no longer matches the rules.
	decoded.Frames[2].Contaminated = game.NewNodeSet()
	c.Assert(decoded.Verify(), qt.ErrorMatches, `(?s)turn 2: contaminated .*`)
}

func TestRecorderCloseDuringTurn(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	rec := NewRecorder(dir, 0, nil)

	g, err := catalog.Default().Load("line")
	c.Assert(err, qt.IsNil)

	// A slow listener ahead of the recorder holds the turn event back.
	entered := make(chan struct{})
	release := make(chan struct{})
	slow := func(ev session.Event) {
		if ev.Kind == session.EventTurnExecuted {
			close(entered)
			<-release
		}
	}
	s := session.New("slow", session.WithListener(slow), session.WithListener(rec.Listen))
	c.Assert(s.LoadGraph(g), qt.IsNil)
	lion, err := s.PlaceLion("2")
	c.Assert(err, qt.IsNil)
	c.Assert(s.Start(), qt.IsNil)
	c.Assert(s.QueueMove(lion, "1"), qt.IsNil)

	turnDone := make(chan error, 1)
	go func() {
		_, err := s.ExecuteTurn()
		turnDone <- err
	}()
	<-entered

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	select {
	case <-closed:
		c.Fatal("Close returned while a turn was still being delivered")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	c.Assert(<-turnDone, qt.IsNil)
	<-closed

	c.Assert(rec.Pending(), qt.Equals, 0)
	written := rec.Written()
	c.Assert(written, qt.HasLen, 1)
	rows, err := ReadTurns(written[0])
	c.Assert(err, qt.IsNil)
	c.Assert(rows, qt.HasLen, 2)
	c.Assert(rows[1].Turn, qt.Equals, int32(1))
}

func TestRecorderSkipsRowWithoutGraph(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	rec := NewRecorder(dir, 0, nil)
	rec.encode = func(*game.Graph) ([]byte, error) { return nil, errors.New("boom") }

	g, err := catalog.Default().Load("line")
	c.Assert(err, qt.IsNil)
	s := session.New("nograph", session.WithListener(rec.Listen))
	c.Assert(s.LoadGraph(g), qt.IsNil)
	_, err = s.PlaceLion("2")
	c.Assert(err, qt.IsNil)
	c.Assert(s.Start(), qt.IsNil)
	c.Assert(rec.Pending(), qt.Equals, 0)

	// Once the graph encodes again the next row opens a readable batch.
	rec.encode = encodeGraph
	c.Assert(s.QueueMove(1, "1"), qt.IsNil)
	_, err = s.ExecuteTurn()
	c.Assert(err, qt.IsNil)
	s.Close()

	written := rec.Written()
	c.Assert(written, qt.HasLen, 1)
	rows, err := ReadTurns(written[0])
	c.Assert(err, qt.IsNil)
	c.Assert(rows, qt.HasLen, 1)
	decoded, err := DecodeGame(rows)
	c.Assert(err, qt.IsNil)
	c.Assert(decoded.Frames[0].Turn, qt.Equals, int32(1))
}
