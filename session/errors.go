package session

import "errors"

// Command errors. Each one leaves the session state untouched and fires no
// event, so callers can report it and carry on.
var (
	ErrNoGraph        = errors.New("session: no graph loaded")
	ErrStarted        = errors.New("session: simulation already started")
	ErrNotStarted     = errors.New("session: simulation not started")
	ErrUnknownNode    = errors.New("session: unknown node")
	ErrUnknownLion    = errors.New("session: unknown lion")
	ErrNotAdjacent    = errors.New("session: target is not adjacent")
	ErrNoQueuedMoves  = errors.New("session: no queued moves")
	ErrNoMatchingMove = errors.New("session: no queued move matches")
	ErrNoIdleLion     = errors.New("session: no lion without a queued move on node")
	ErrClosed         = errors.New("session: closed")
	ErrNotFound       = errors.New("session: not found")
)

// IsInvalidOperation reports whether err is one of the soft command errors
// above, as opposed to a malformed graph or a missing session.
func IsInvalidOperation(err error) bool {
	for _, target := range []error{
		ErrNoGraph, ErrStarted, ErrNotStarted, ErrUnknownNode, ErrUnknownLion,
		ErrNotAdjacent, ErrNoQueuedMoves, ErrNoMatchingMove, ErrNoIdleLion, ErrClosed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
