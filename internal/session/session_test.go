package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/getpaseo/paseod/internal/logging"
	"github.com/getpaseo/paseod/internal/protocol"
)

// fakeConn is an in-memory Conn for exercising Session without a real
// socket: reads come from an inbound queue the test feeds, writes land on
// an outbound queue the test inspects.
type fakeConn struct {
	mu      sync.Mutex
	inbound [][]byte
	inIdx   int
	inReady chan struct{}

	outbound chan []byte
	closed   bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inReady: make(chan struct{}, 64), outbound: make(chan []byte, 64)}
}

func (c *fakeConn) feed(data []byte) {
	c.mu.Lock()
	c.inbound = append(c.inbound, data)
	c.mu.Unlock()
	c.inReady <- struct{}{}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	for {
		c.mu.Lock()
		if c.inIdx < len(c.inbound) {
			data := c.inbound[c.inIdx]
			c.inIdx++
			c.mu.Unlock()
			return data, nil
		}
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return nil, context.Canceled
		}
		<-c.inReady
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return context.Canceled
	}
	c.outbound <- data
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.inReady)
	return nil
}

func TestSession_PingPongRoundTrip(t *testing.T) {
	conn := newFakeConn()
	d := NewDispatcher()
	d.Register(protocol.TypePing, func(ctx context.Context, s *Session, req *protocol.Envelope) (*protocol.Envelope, error) {
		return protocol.Encode(protocol.TypePong, req.RequestID, nil)
	})

	sess := New("sess-1", conn, d, nil, logging.Default(), 16)
	go sess.Run(context.Background())

	env, err := protocol.Encode(protocol.TypePing, "req-1", nil)
	require.NoError(t, err)
	data, err := json.Marshal(env)
	require.NoError(t, err)
	conn.feed(data)

	select {
	case out := <-conn.outbound:
		var got protocol.Envelope
		require.NoError(t, json.Unmarshal(out, &got))
		require.Equal(t, protocol.TypePong, got.Type)
		require.Equal(t, "req-1", got.RequestID)
	case <-time.After(time.Second):
		t.Fatal("no pong received")
	}

	sess.Close()
}

func TestSession_UnknownTypeProducesRPCError(t *testing.T) {
	conn := newFakeConn()
	d := NewDispatcher()
	sess := New("sess-2", conn, d, nil, logging.Default(), 16)
	go sess.Run(context.Background())

	env, err := protocol.Encode("bogus_request", "req-2", nil)
	require.NoError(t, err)
	data, err := json.Marshal(env)
	require.NoError(t, err)
	conn.feed(data)

	select {
	case out := <-conn.outbound:
		var got protocol.Envelope
		require.NoError(t, json.Unmarshal(out, &got))
		require.Equal(t, protocol.TypeRPCError, got.Type)

		var payload protocol.RPCError
		require.NoError(t, got.Decode(&payload))
		require.Equal(t, "req-2", payload.RequestID)
	case <-time.After(time.Second):
		t.Fatal("no rpc_error received")
	}

	sess.Close()
}

func TestOutbox_DropsNonCriticalUnderOverflow(t *testing.T) {
	o := newOutbox(1)
	delta, _ := protocol.Encode(protocol.TypeAgentStream, "", nil)
	ok, overflow := o.push(delta)
	require.True(t, ok)
	require.False(t, overflow)

	second, _ := protocol.Encode(protocol.TypeAgentStream, "", nil)
	ok, overflow = o.push(second)
	require.True(t, ok)
	require.False(t, overflow)

	popped, present := o.pop()
	require.True(t, present)
	require.Same(t, second, popped)
}

func TestOutbox_CriticalEvictsOldestDroppable(t *testing.T) {
	o := newOutbox(1)
	delta, _ := protocol.Encode(protocol.TypeAgentStream, "", nil)
	ok, _ := o.push(delta)
	require.True(t, ok)

	state, _ := protocol.Encode(protocol.TypeAgentState, "", nil)
	ok, overflow := o.push(state)
	require.True(t, ok)
	require.False(t, overflow)

	popped, present := o.pop()
	require.True(t, present)
	require.Equal(t, protocol.TypeAgentState, popped.Type)
}

func TestOutbox_CriticalOverflowReportsClose(t *testing.T) {
	o := newOutbox(1)
	first, _ := protocol.Encode(protocol.TypeAgentState, "", nil)
	ok, _ := o.push(first)
	require.True(t, ok)

	second, _ := protocol.Encode(protocol.TypeAgentDeleted, "", nil)
	ok, overflow := o.push(second)
	require.False(t, ok)
	require.True(t, overflow)
}
