package main

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/brensch/lionsweep/catalog"
	"github.com/brensch/lionsweep/observe"
	"github.com/brensch/lionsweep/render"
	"github.com/brensch/lionsweep/session"
	"github.com/brensch/lionsweep/store"
)

// ArchiveOptions enables the turn archive for every session the server creates.
type ArchiveOptions struct {
	Dir        string
	FlushTurns int
}

// Server holds shared state for HTTP handlers.
type Server struct {
	log      *slog.Logger
	registry *session.Registry
	catalog  *catalog.Catalog
	style    render.Style
	metrics  *observe.Metrics
	archive  *ArchiveOptions
	upgrader websocket.Upgrader
}

// NewServer creates a Server. metrics and archive may be nil.
func NewServer(log *slog.Logger, cat *catalog.Catalog, style render.Style, metrics *observe.Metrics, archive *ArchiveOptions, origins []string) *Server {
	return &Server{
		log:      log,
		registry: session.NewRegistry(metrics, session.WithLogger(log)),
		catalog:  cat,
		style:    style,
		metrics:  metrics,
		archive:  archive,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(origins),
		},
	}
}

// RegisterRoutes sets up all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/graphs", s.handleGraphs)
	mux.HandleFunc("GET /api/graphs/{name}", s.handleGraph)

	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSnapshot)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/graph", s.handleLoadGraph)
	mux.HandleFunc("POST /api/sessions/{id}/graph/{name}", s.handleLoadNamedGraph)
	mux.HandleFunc("POST /api/sessions/{id}/lions", s.handlePlace)
	mux.HandleFunc("POST /api/sessions/{id}/start", s.handleStart)
	mux.HandleFunc("POST /api/sessions/{id}/moves", s.handleQueue)
	mux.HandleFunc("DELETE /api/sessions/{id}/moves", s.handleCancel)
	mux.HandleFunc("POST /api/sessions/{id}/turn", s.handleTurn)
	mux.HandleFunc("POST /api/sessions/{id}/reset", s.handleReset)
	mux.HandleFunc("GET /api/sessions/{id}/svg", s.handleSVG)
	mux.HandleFunc("GET /api/sessions/{id}/ws", s.handleWS)
}

// Shutdown closes every session so pending archive rows get written.
func (s *Server) Shutdown() {
	s.registry.CloseAll()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"status": "ok", "sessions": s.registry.Len()})
}

func (s *Server) handleGraphs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, GraphsResponse{Graphs: s.catalog.List()})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	raw, err := s.catalog.Raw(r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, SessionsResponse{Sessions: s.registry.List()})
}

// handleCreateSession creates a session; ?graph=<name> loads a catalog graph
// straight away.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var opts []session.Option
	var rec *store.Recorder
	if s.archive != nil {
		rec = store.NewRecorder(s.archive.Dir, s.archive.FlushTurns, s.log)
		opts = append(opts, session.WithListener(rec.Listen))
	}
	sess := s.registry.Create(opts...)

	if name := r.URL.Query().Get("graph"); name != "" {
		g, err := s.catalog.Load(name)
		if err == nil {
			err = sess.LoadGraph(g)
		}
		if err != nil {
			_ = s.registry.Remove(sess.ID())
			writeError(w, err)
			return
		}
	}

	s.log.Info("session created", "session", sess.ID(), "archive", rec != nil)
	writeJSONStatus(w, http.StatusCreated, SessionResponse{ID: sess.ID(), State: sess.Snapshot()})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) respond(w http.ResponseWriter, sess *session.Session, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, SessionResponse{ID: sess.ID(), State: sess.Snapshot()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.respond(w, sess, nil)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Remove(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLoadGraph(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, err)
		return
	}
	s.respond(w, sess, sess.LoadGraphJSON(data))
}

func (s *Server) handleLoadNamedGraph(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	g, err := s.catalog.Load(r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.respond(w, sess, sess.LoadGraph(g))
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req PlaceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, err := sess.PlaceLion(req.NodeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, PlaceResponse{LionID: id, State: sess.Snapshot()})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.respond(w, sess, sess.Start())
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req MoveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var id int
	var err error
	switch {
	case req.LionID != nil:
		id = *req.LionID
		err = sess.QueueMove(id, req.Target)
	case req.From != "" || req.To != "":
		id, err = sess.QueueMoveFrom(req.From, req.To)
	default:
		err = errMoveRequest
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, MoveResponse{LionID: id, State: sess.Snapshot()})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	id, err := sess.CancelMove(q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, MoveResponse{LionID: id, State: sess.Snapshot()})
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	res, err := sess.ExecuteTurn()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, TurnResponse{Turn: res, State: sess.Snapshot()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.respond(w, sess, sess.Reset())
}

func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	if err := render.SVG(w, sess.Snapshot(), s.style); err != nil {
		s.log.Warn("render svg", "session", sess.ID(), "err", err)
	}
}
