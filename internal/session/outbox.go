package session

import (
	"sync"

	"github.com/getpaseo/paseod/internal/protocol"
)

// outbox is a bounded, per-session send queue. A slow client must
// not block other sessions or the agent manager, so once it is full,
// droppable entries (incremental stream deltas) are discarded rather than
// applying backpressure to the sender. Overflow drops the oldest queued
// droppable entry to make room for the new one; if every queued entry is
// critical, a new droppable entry is itself dropped, and for a new critical
// entry the caller is told to close the session rather than silently drop
// a lifecycle event.
type outbox struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []*protocol.Envelope
	capacity int
	closed   bool
}

func newOutbox(capacity int) *outbox {
	o := &outbox{queue: make([]*protocol.Envelope, 0, capacity), capacity: capacity}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// push enqueues env. ok is false if env was dropped; overflowCritical is
// true if env itself was critical and could not be made room for, meaning
// the caller must close the session.
func (o *outbox) push(env *protocol.Envelope) (ok bool, overflowCritical bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false, false
	}
	if len(o.queue) < o.capacity {
		o.queue = append(o.queue, env)
		o.cond.Signal()
		return true, false
	}

	for i, queued := range o.queue {
		if !isCritical(queued.Type) {
			o.queue = append(o.queue[:i], o.queue[i+1:]...)
			o.queue = append(o.queue, env)
			o.cond.Signal()
			return true, false
		}
	}
	if !isCritical(env.Type) {
		return false, false
	}
	return false, true
}

// pop blocks until an entry is available or the outbox is closed.
func (o *outbox) pop() (*protocol.Envelope, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for len(o.queue) == 0 && !o.closed {
		o.cond.Wait()
	}
	if len(o.queue) == 0 {
		return nil, false
	}
	env := o.queue[0]
	o.queue = o.queue[1:]
	return env, true
}

// isCritical reports whether a message type must never be silently dropped.
// Incremental stream deltas are replayable from a backfill snapshot on
// resubscribe, so they are the only droppable type; every lifecycle
// transition, permission arbitration event, and request/response pair is
// critical because the client has no other way to learn it happened.
func isCritical(t string) bool {
	return t != protocol.TypeAgentStream
}

func (o *outbox) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.cond.Broadcast()
}
