// Package inflight tracks computations currently running for a fingerprint so
// concurrent identical requests join a single in-progress computation instead
// of issuing parallel provider calls.
package inflight

import (
	"context"
	"sync"
	"time"

	"github.com/dumb-meh/Sui-Amor/models"
)

// Ticket is the handle for one in-progress computation. The owner resolves it
// through Map.Complete or Map.Fail; every waiter observes the same result or
// error.
type Ticket struct {
	key    string
	done   chan struct{}
	result []byte
	err    error
}

// Result returns the outcome after the ticket resolved. Only valid once the
// done channel is closed.
func (t *Ticket) outcome() ([]byte, error) { return t.result, t.err }

// Wait blocks until the ticket resolves, the context is cancelled, or the
// waiter's own bound elapses. The bound is independent of the owner's
// deadlines so a wedged owner cannot hold waiters forever; in that case the
// waiter receives models.ErrTicketTimeout, a retryable-by-caller error. A
// ticket that resolved before Wait is called returns immediately.
func (t *Ticket) Wait(ctx context.Context, maxWait time.Duration) ([]byte, error) {
	timer := time.NewTimer(maxWait)
	defer timer.Stop()
	select {
	case <-t.done:
		return t.outcome()
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, models.ErrTicketTimeout
	}
}

// Map serializes ticket creation and resolution so at most one owner exists
// per key at any instant.
type Map struct {
	mu      sync.Mutex
	tickets map[string]*Ticket
}

// NewMap creates an empty in-flight map.
func NewMap() *Map {
	return &Map{tickets: make(map[string]*Ticket)}
}

// AcquireOrJoin returns the ticket for key. Exactly one caller per key
// receives owner=true and must eventually call Complete or Fail; everyone
// else joins the existing ticket. Registration and resolution share one
// mutex, so a joiner either observes an unresolved ticket (and blocks on it)
// or arrives after removal and becomes the next owner.
func (m *Map) AcquireOrJoin(key string) (*Ticket, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tickets[key]; ok {
		return t, false
	}
	t := &Ticket{key: key, done: make(chan struct{})}
	m.tickets[key] = t
	return t, true
}

// Complete resolves the ticket with a result and releases all waiters.
func (m *Map) Complete(t *Ticket, result []byte) {
	m.resolve(t, result, nil)
}

// Fail resolves the ticket with an error; every waiter receives it.
func (m *Map) Fail(t *Ticket, err error) {
	m.resolve(t, nil, err)
}

func (m *Map) resolve(t *Ticket, result []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-t.done:
		// Already resolved; ignore duplicate completion.
		return
	default:
	}
	t.result = result
	t.err = err
	close(t.done)
	if cur, ok := m.tickets[t.key]; ok && cur == t {
		delete(m.tickets, t.key)
	}
}

// Len returns the number of outstanding tickets.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickets)
}
