package main

import (
	"github.com/brensch/lionsweep/catalog"
	"github.com/brensch/lionsweep/rules"
	"github.com/brensch/lionsweep/session"
)

// SessionResponse is returned by every command endpoint.
type SessionResponse struct {
	ID    string           `json:"id"`
	State session.Snapshot `json:"state"`
}

// SessionsResponse lists live sessions.
type SessionsResponse struct {
	Sessions []string `json:"sessions"`
}

// GraphsResponse is the catalog listing for /api/graphs.
type GraphsResponse struct {
	Graphs []catalog.Entry `json:"graphs"`
}

// PlaceRequest is the body of POST /api/sessions/{id}/lions.
type PlaceRequest struct {
	NodeID string `json:"node_id"`
}

type PlaceResponse struct {
	LionID int              `json:"lion_id"`
	State  session.Snapshot `json:"state"`
}

// MoveRequest is the body of POST /api/sessions/{id}/moves. Either LionID
// and Target are set, or From and To (the first idle lion on From moves).
type MoveRequest struct {
	LionID *int   `json:"lion_id,omitempty"`
	Target string `json:"target,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
}

type MoveResponse struct {
	LionID int              `json:"lion_id"`
	State  session.Snapshot `json:"state"`
}

type TurnResponse struct {
	Turn  rules.TurnResult `json:"turn"`
	State session.Snapshot `json:"state"`
}

// ErrorResponse is the body of every non-2xx API answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Frame types on the WebSocket.
const (
	FrameState     = "state"
	FrameAnimation = "animation"
	FrameError     = "error"
	FrameAck       = "ack"
	FrameClosed    = "closed"
)

// ServerFrame is pushed from server to browser.
type ServerFrame struct {
	Type  string            `json:"type"`
	Event string            `json:"event,omitempty"`
	State *session.Snapshot `json:"state,omitempty"`

	// Animation frames.
	Turn       int32             `json:"turn,omitempty"`
	Moves      []rules.Animation `json:"moves,omitempty"`
	DurationMs int64             `json:"duration_ms,omitempty"`

	// Ack and error frames.
	Request string `json:"request,omitempty"`
	LionID  int    `json:"lion_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Client command names on the WebSocket.
const (
	CmdPlace     = "place"
	CmdStart     = "start"
	CmdQueue     = "queue"
	CmdQueueFrom = "queue_from"
	CmdCancel    = "cancel"
	CmdTurn      = "turn"
	CmdReset     = "reset"
	CmdLoadGraph = "load_graph"
)

// ClientFrame is a command sent by the browser.
type ClientFrame struct {
	Type   string `json:"type"`
	NodeID string `json:"node_id,omitempty"`
	LionID int    `json:"lion_id,omitempty"`
	Target string `json:"target,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Name   string `json:"name,omitempty"`
}
