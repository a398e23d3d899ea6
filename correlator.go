package mcpwire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var errSessionClosed = errors.New("session closed")

type pendingOutcome struct {
	msg JSONRPCMessage
	err error
}

// PendingRequest tracks one outbound request awaiting the peer's reply.
// Its completion slot resolves exactly once: with the matching response,
// with ErrTimeout when the deadline passes, or with a cancellation outcome.
type PendingRequest struct {
	id       MustString
	issuedAt time.Time
	deadline time.Time

	timer *time.Timer

	once    sync.Once
	outcome chan pendingOutcome
}

// Wait blocks until the request completes, its deadline passes, or ctx is
// done. A ctx cancellation is terminal for this request; the caller must not
// reuse the pending entry afterwards.
func (p *PendingRequest) Wait(ctx context.Context) (JSONRPCMessage, error) {
	select {
	case <-ctx.Done():
		return JSONRPCMessage{}, ctx.Err()
	case out := <-p.outcome:
		return out.msg, out.err
	}
}

func (p *PendingRequest) resolve(out pendingOutcome) {
	p.once.Do(func() {
		if p.timer != nil {
			p.timer.Stop()
		}
		p.outcome <- out
	})
}

// Correlator matches inbound responses to the outbound requests that are
// awaiting them. Entries live from Register until exactly one of Complete,
// deadline expiry, Cancel, or Close resolves them; none may leak.
type Correlator struct {
	logger *slog.Logger

	mu      sync.Mutex
	pending map[MustString]*PendingRequest
	closed  bool
}

// NewCorrelator creates an empty correlator.
func NewCorrelator(logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{
		logger:  logger,
		pending: make(map[MustString]*PendingRequest),
	}
}

// Register creates a pending entry for an outbound request id. The entry's
// deadline timer resolves it with ErrTimeout if no response arrives in time.
// A colliding id is a protocol violation and returns ErrDuplicateID.
func (c *Correlator) Register(id MustString, deadline time.Time) (*PendingRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errSessionClosed
	}
	if _, ok := c.pending[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	p := &PendingRequest{
		id:       id,
		issuedAt: time.Now(),
		deadline: deadline,
		outcome:  make(chan pendingOutcome, 1),
	}
	p.timer = time.AfterFunc(time.Until(deadline), func() {
		c.expire(id)
	})
	c.pending[id] = p

	return p, nil
}

// Complete resolves the pending entry for id with the peer's response and
// removes it. A response with no matching entry is dropped and logged as an
// anomaly (late, duplicate, or unsolicited); Complete reports whether a
// matching entry existed.
func (c *Correlator) Complete(id MustString, msg JSONRPCMessage) bool {
	c.mu.Lock()
	p, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()

	if !ok {
		c.logger.Warn("dropping response with no pending request",
			slog.String("messageID", string(id)))
		return false
	}

	if msg.Error != nil {
		p.resolve(pendingOutcome{err: errorFromResponse(msg.Error)})
		return true
	}
	p.resolve(pendingOutcome{msg: msg})
	return true
}

// Cancel removes the pending entry for id, resolving it with the caller's
// cancellation. It is a no-op if the entry already completed.
func (c *Correlator) Cancel(id MustString) {
	c.mu.Lock()
	p, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()

	if !ok {
		return
	}
	p.resolve(pendingOutcome{err: context.Canceled})
}

// PendingCount returns the number of outstanding entries.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close fails all outstanding entries and rejects further registrations.
// Used when the underlying session goes away.
func (c *Correlator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	remaining := make([]*PendingRequest, 0, len(c.pending))
	for id, p := range c.pending {
		remaining = append(remaining, p)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	for _, p := range remaining {
		p.resolve(pendingOutcome{err: &TransportError{Err: errSessionClosed}})
	}
}

// expire runs from the per-entry deadline timer.
func (c *Correlator) expire(id MustString) {
	c.mu.Lock()
	p, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()

	if !ok {
		return
	}
	c.logger.Debug("pending request timed out",
		slog.String("messageID", string(id)),
		slog.Duration("age", time.Since(p.issuedAt)))
	p.resolve(pendingOutcome{err: fmt.Errorf("%w: no response for request %s", ErrTimeout, id)})
}
