// Package adapter defines the provider-facing boundary (C5): one
// AgentClient per running agent, translating a provider's own wire
// protocol into the daemon's normalized event stream.
package adapter

import (
	"context"

	"github.com/getpaseo/paseod/internal/agent"
)

// EventType tags the union carried by Event.
type EventType string

const (
	EventTurnStarted         EventType = "turn_started"
	EventTurnCompleted       EventType = "turn_completed"
	EventTurnFailed          EventType = "turn_failed"
	EventTurnCanceled        EventType = "turn_canceled"
	EventTimeline            EventType = "timeline"
	EventPermissionRequested EventType = "permission_requested"
	EventPermissionResolved  EventType = "permission_resolved"
	EventCapabilitiesChanged EventType = "capabilities_changed"
	EventModesUpdated        EventType = "modes_updated"
)

// Event is one normalized notification an AgentClient emits asynchronously
// as the underlying provider process runs.
type Event struct {
	Type EventType

	// EventTimeline
	TimelineItem agent.Item

	// EventPermissionRequested
	Permission agent.PermissionRequest

	// EventPermissionResolved
	PermissionID string
	Resolution   agent.Resolution

	// EventTurnFailed
	Err error

	// EventTurnCompleted
	Usage agent.Usage

	// EventCapabilitiesChanged
	Capabilities agent.Capabilities

	// EventModesUpdated
	Modes         []agent.Mode
	CurrentModeID string
}

// StartParams configures a newly created provider session.
type StartParams struct {
	Cwd              string
	Model            string
	ModeID           string
	ThinkingOptionID string
	VariantID        string
	Resume           *agent.PersistenceHandle
}

// AgentClient is the capability interface every provider adapter
// implements. Concrete providers may
// implement a subset; callers consult Capabilities before invoking an
// optional method.
type AgentClient interface {
	// Start launches or resumes the underlying provider process/session.
	Start(ctx context.Context, params StartParams) error

	// Send delivers one user turn; results arrive asynchronously via
	// Events.
	Send(ctx context.Context, text string, attachments []agent.Attachment) error

	// Cancel requests the in-flight turn stop as soon as possible.
	Cancel(ctx context.Context) error

	// Resolve answers a pending permission request.
	Resolve(ctx context.Context, requestID string, resolution agent.Resolution) error

	// SetMode, SetModel, SetThinkingOption, SetVariant live-swap a running
	// session's configuration; callers must check Capabilities first.
	SetMode(ctx context.Context, modeID string) error
	SetModel(ctx context.Context, model string) error
	SetThinkingOption(ctx context.Context, optionID string) error
	SetVariant(ctx context.Context, variantID string) error

	// Capabilities reports what this provider/session combination
	// currently supports.
	Capabilities() agent.Capabilities

	// PersistenceHandle returns the opaque handle used to resume this
	// session later, once one is available.
	PersistenceHandle() *agent.PersistenceHandle

	// Events returns the channel of normalized events. Closed by Close.
	Events() <-chan Event

	// Close tears down the underlying process/session.
	Close(ctx context.Context) error
}

// Factory constructs one AgentClient for a provider tag.
type Factory func(providerTag string) (AgentClient, error)
