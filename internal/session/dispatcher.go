package session

import (
	"context"

	"github.com/getpaseo/paseod/internal/apperrors"
	"github.com/getpaseo/paseod/internal/protocol"
)

// Handler answers one request envelope. A nil response with a nil error is
// valid for fire-and-forget message types (none currently defined, but
// kept so future additions don't need a dispatcher change).
type Handler func(ctx context.Context, s *Session, req *protocol.Envelope) (*protocol.Envelope, error)

// Dispatcher routes an inbound envelope's Type to a registered Handler.
type Dispatcher struct {
	handlers map[string]Handler
}

// NewDispatcher constructs an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register binds handler to msgType, overwriting any previous registration.
func (d *Dispatcher) Register(msgType string, handler Handler) {
	d.handlers[msgType] = handler
}

// Dispatch routes req to its handler, or returns an UNSUPPORTED error for
// an unrecognized type.
func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, req *protocol.Envelope) (*protocol.Envelope, error) {
	handler, ok := d.handlers[req.Type]
	if !ok {
		return nil, apperrors.Unsupportedf("unrecognized message type %q", req.Type)
	}
	return handler(ctx, s, req)
}
