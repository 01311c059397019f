// Package session implements the per-client session (C2): authentication
// state, request routing keyed by envelope type, agent-stream
// subscriptions, per-client UX state consumed by the attention policy
// (C9), and the bounded outbox that isolates one slow client from every
// other session and from the agent manager.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/getpaseo/paseod/internal/agent"
	"github.com/getpaseo/paseod/internal/agent/adapter"
	"github.com/getpaseo/paseod/internal/logging"
	"github.com/getpaseo/paseod/internal/protocol"
)

// Conn is the minimal duplex-frame contract a transport (local WebSocket
// or relay data socket) must satisfy for a Session to drive it; it is
// deliberately narrower than *websocket.Conn so the relay's E2EE-wrapped
// channel can implement it too.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// StreamSubscription is the subset of manager.Subscription a Session
// depends on, kept as an interface so tests can fake it without importing
// the manager package.
type StreamSubscription interface {
	Chan() <-chan adapter.Event
	Close()
}

// LifecycleIntentHandler reacts to a client-originated "shutdown" or
// "restart" message, deferring the decision of whether to act locally or
// forward to a supervisor to C11.
type LifecycleIntentHandler func(ctx context.Context, intent string) error

// UXState is the per-client presence state C9 reads to decide whether to
// suppress a notification.
type UXState struct {
	DeviceType     string
	AppVisible     bool
	FocusedAgentID agent.ID
	LastHeartbeat  time.Time
}

// Session is one live client connection.
type Session struct {
	ID         string
	log        *logging.Logger
	conn       Conn
	dispatcher *Dispatcher
	outbox     *outbox
	onIntent   LifecycleIntentHandler

	mu        sync.Mutex
	ux        UXState
	closed    bool
	closeOnce sync.Once
	subs      map[string]func() // subscriptionId -> cancel, for agent directory / stream / etc.
}

// New constructs a Session. outboxCapacity bounds the send queue;
// dispatcher routes request envelopes; onIntent may be nil if the daemon
// has no supervisor callback wired yet.
func New(id string, conn Conn, dispatcher *Dispatcher, onIntent LifecycleIntentHandler, log *logging.Logger, outboxCapacity int) *Session {
	if outboxCapacity <= 0 {
		outboxCapacity = 256
	}
	return &Session{
		ID:         id,
		log:        log.WithClient(id),
		conn:       conn,
		dispatcher: dispatcher,
		onIntent:   onIntent,
		outbox:     newOutbox(outboxCapacity),
		subs:       make(map[string]func()),
	}
}

// Run drives the session until the connection closes or ctx is canceled.
// It blocks until the read loop exits.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.writePump()
	s.readPump(ctx)
	s.Close()
}

func (s *Session) readPump(ctx context.Context) {
	for {
		data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.log.Warn("dropping malformed frame", zap.Error(err))
			continue
		}

		switch env.Type {
		case "shutdown", "restart":
			go s.handleIntent(ctx, env.Type)
		default:
			go s.handleRequest(ctx, &env)
		}
	}
}

func (s *Session) handleIntent(ctx context.Context, intent string) {
	if s.onIntent == nil {
		return
	}
	if err := s.onIntent(ctx, intent); err != nil {
		s.log.Warn("lifecycle intent handler failed", zap.String("intent", intent), zap.Error(err))
	}
}

func (s *Session) handleRequest(ctx context.Context, req *protocol.Envelope) {
	resp, err := s.dispatcher.Dispatch(ctx, s, req)
	if err != nil {
		s.Send(protocol.NewRPCError(req.RequestID, req.Type, err))
		return
	}
	if resp != nil {
		s.Send(resp)
	}
}

func (s *Session) writePump() {
	for {
		env, ok := s.outbox.pop()
		if !ok {
			return
		}
		data, err := json.Marshal(env)
		if err != nil {
			s.log.Error("failed to marshal outbound envelope", zap.String("type", env.Type), zap.Error(err))
			continue
		}
		if err := s.conn.WriteMessage(data); err != nil {
			return
		}
	}
}

// Send enqueues env for delivery, applying the outbox's backpressure policy.
func (s *Session) Send(env *protocol.Envelope) {
	ok, overflowCritical := s.outbox.push(env)
	if ok {
		return
	}
	if overflowCritical {
		s.log.Warn("outbox overflow would drop a critical event, closing session")
		s.Close()
		return
	}
	s.log.Debug("dropped outbound envelope under backpressure", zap.String("type", env.Type))
}

// Close tears down the session: the outbox, every live subscription, and
// the underlying connection. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		subs := s.subs
		s.subs = nil
		s.mu.Unlock()

		for _, cancel := range subs {
			cancel()
		}
		s.outbox.close()
		s.conn.Close()
	})
}

// Closed reports whether the session has already torn down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// TrackSubscription registers a cancel func invoked on session close, so
// per-session work (agent stream subs, checkout diff computations) is
// abandoned when the client disconnects.
func (s *Session) TrackSubscription(id string, cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		cancel()
		return
	}
	s.subs[id] = cancel
}

// DropSubscription cancels and forgets one tracked subscription.
func (s *Session) DropSubscription(id string) {
	s.mu.Lock()
	cancel, ok := s.subs[id]
	if ok {
		delete(s.subs, id)
	}
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// ForwardAgentStream pumps sub's events to the client as agent_stream
// envelopes until sub closes or the session does, tracking the forwarding
// goroutine as a cancelable subscription keyed by subscriptionID.
func (s *Session) ForwardAgentStream(subscriptionID string, agentID agent.ID, sub StreamSubscription) {
	done := make(chan struct{})
	s.TrackSubscription(subscriptionID, func() {
		sub.Close()
		<-done
	})

	go func() {
		defer close(done)
		for ev := range sub.Chan() {
			env, err := protocol.Encode(protocol.TypeAgentStream, "", protocol.AgentStreamEvent{AgentID: agentID, Event: ev})
			if err != nil {
				s.log.Error("failed to encode agent_stream event", zap.Error(err))
				continue
			}
			s.Send(env)
		}
	}()
}

// SetDeviceType, SetAppVisible, SetFocusedAgent, and Heartbeat update the
// per-client UX state C9 reads.
func (s *Session) SetDeviceType(deviceType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ux.DeviceType = deviceType
}

func (s *Session) SetAppVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ux.AppVisible = visible
}

func (s *Session) SetFocusedAgent(id agent.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ux.FocusedAgentID = id
}

func (s *Session) Heartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ux.LastHeartbeat = time.Now()
}

// UX returns a copy of the current per-client UX state.
func (s *Session) UX() UXState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ux
}
