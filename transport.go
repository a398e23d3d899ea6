package mcpwire

import (
	"context"
	"iter"
)

// Session represents one bidirectional message channel between two peers.
// The router is transport-agnostic: anything that can send a framed message
// and yield received messages can carry it.
type Session interface {
	// ID returns the unique identifier for this session. Implementations
	// must guarantee uniqueness across all active sessions.
	ID() string

	// Send transmits a message to the peer. It may suspend until the
	// transport accepts the frame or ctx is done.
	Send(ctx context.Context, msg JSONRPCMessage) error

	// Messages returns an iterator that yields messages received from the
	// peer. The iteration ends when the session is closed.
	Messages() iter.Seq[JSONRPCMessage]

	// Stop closes the session. The caller is guaranteed to call this
	// method at most once.
	Stop()
}

// ServerTransport accepts inbound peer connections and hands them to the
// router as sessions.
type ServerTransport interface {
	// Sessions returns an iterator that yields new peer sessions as they
	// connect. Each yielded Session represents a unique connection. The
	// iteration ends when Shutdown is called.
	Sessions() iter.Seq[Session]

	// Shutdown gracefully releases transport resources. Implementations
	// should not close the sessions they produced; the caller does that.
	// The caller is guaranteed to call this method only once.
	Shutdown(ctx context.Context) error
}

// ClientTransport initiates a connection to a serving peer.
type ClientTransport interface {
	// StartSession connects to the peer and returns the established
	// session. Operations are canceled when ctx is canceled.
	StartSession(ctx context.Context) (Session, error)
}
