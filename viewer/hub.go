package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brensch/lionsweep/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	readLimit  = 64 << 10
	sendBuffer = 64
)

// checkOrigin allows any origin when origins is empty, otherwise only the
// listed ones. Same-host requests are always allowed.
func checkOrigin(origins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(origins) == 0 {
			return true
		}
		if slices.Contains(origins, origin) {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}

// wsClient is one browser connected to one session.
type wsClient struct {
	conn *websocket.Conn
	log  *slog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
	// version of the newest state frame queued so far.
	version uint64
}

func newWSClient(conn *websocket.Conn, log *slog.Logger) *wsClient {
	return &wsClient{conn: conn, log: log, send: make(chan []byte, sendBuffer)}
}

// enqueue queues a frame for the write pump. State frames older than one
// already queued are skipped. A client that cannot keep up is disconnected
// rather than blocking the session.
func (c *wsClient) enqueue(frame ServerFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		c.log.Error("encode frame", "type", frame.Type, "err", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if frame.State != nil {
		if frame.State.Version <= c.version {
			return
		}
		c.version = frame.State.Version
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn("websocket client too slow, dropping connection")
		c.closeLocked()
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *wsClient) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump owns all writes to the connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug("websocket write", "err", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleWS upgrades to a WebSocket bound to one session. The browser gets
// the current state immediately, then a frame per session event; it sends
// command frames back.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "session", sess.ID(), "err", err)
		return
	}

	log := s.log.With("session", sess.ID(), "remote", r.RemoteAddr)
	client := newWSClient(conn, log)
	if s.metrics != nil {
		s.metrics.ActiveConnections.Add(context.Background(), 1)
		defer s.metrics.ActiveConnections.Add(context.Background(), -1)
	}

	// Subscribe before reading the state so no command can fall in between.
	unsubscribe := sess.Subscribe(func(ev session.Event) {
		for _, frame := range s.eventFrames(ev) {
			client.enqueue(frame)
		}
		if ev.Kind == session.EventClosed {
			client.close()
		}
	})
	snap := sess.Snapshot()
	client.enqueue(ServerFrame{Type: FrameState, State: &snap})

	go client.writePump()
	log.Debug("websocket connected")

	s.readPump(client, sess)

	unsubscribe()
	client.close()
	log.Debug("websocket disconnected")
}

// eventFrames turns a session event into the frames pushed to browsers: an
// animation frame ahead of the state for executed turns.
func (s *Server) eventFrames(ev session.Event) []ServerFrame {
	snap := ev.Snapshot
	frames := make([]ServerFrame, 0, 2)
	if ev.Kind == session.EventTurnExecuted && ev.Turn != nil {
		frames = append(frames, ServerFrame{
			Type:       FrameAnimation,
			Turn:       ev.Turn.Turn,
			Moves:      ev.Turn.Animations,
			DurationMs: s.style.AnimationDuration.Milliseconds(),
		})
	}
	if ev.Kind == session.EventClosed {
		return append(frames, ServerFrame{Type: FrameClosed, Event: string(ev.Kind)})
	}
	return append(frames, ServerFrame{Type: FrameState, Event: string(ev.Kind), State: &snap})
}

func (s *Server) readPump(client *wsClient, sess *session.Session) {
	conn := client.conn
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				client.log.Debug("websocket read", "err", err)
			}
			return
		}

		var cmd ClientFrame
		if err := json.Unmarshal(data, &cmd); err != nil {
			client.enqueue(ServerFrame{Type: FrameError, Error: fmt.Sprintf("bad frame: %v", err)})
			continue
		}
		lionID, err := s.dispatch(sess, cmd)
		if err != nil {
			client.enqueue(ServerFrame{Type: FrameError, Request: cmd.Type, Error: err.Error()})
			continue
		}
		client.enqueue(ServerFrame{Type: FrameAck, Request: cmd.Type, LionID: lionID})
	}
}

// dispatch runs one client command. The state change itself reaches the
// client through the session listener.
func (s *Server) dispatch(sess *session.Session, cmd ClientFrame) (int, error) {
	switch cmd.Type {
	case CmdPlace:
		return sess.PlaceLion(cmd.NodeID)
	case CmdStart:
		return 0, sess.Start()
	case CmdQueue:
		return cmd.LionID, sess.QueueMove(cmd.LionID, cmd.Target)
	case CmdQueueFrom:
		return sess.QueueMoveFrom(cmd.From, cmd.To)
	case CmdCancel:
		return sess.CancelMove(cmd.From, cmd.To)
	case CmdTurn:
		_, err := sess.ExecuteTurn()
		return 0, err
	case CmdReset:
		return 0, sess.Reset()
	case CmdLoadGraph:
		g, err := s.catalog.Load(cmd.Name)
		if err != nil {
			return 0, err
		}
		return 0, sess.LoadGraph(g)
	}
	return 0, fmt.Errorf("%w: unknown command %q", errBadRequest, cmd.Type)
}
