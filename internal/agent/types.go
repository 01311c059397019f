// Package agent defines the core data model shared by the agent manager
// (C3), agent instance state machine (C4), provider adapters (C5), and the
// persistence store (C6).
package agent

import "time"

// ID identifies one agent, unique within the daemon and stable across
// restart for persisted agents.
type ID string

// Status is one node of the agent lifecycle state machine.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusIdle         Status = "idle"
	StatusRunning      Status = "running"
	StatusError        Status = "error"
	StatusClosed       Status = "closed"
)

// AttentionReason explains why requiresAttention is set.
type AttentionReason string

const (
	AttentionNone       AttentionReason = ""
	AttentionFinished   AttentionReason = "finished"
	AttentionPermission AttentionReason = "permission"
	AttentionError      AttentionReason = "error"
)

// Usage is opaque provider-reported token/cost usage, passed through
// verbatim from the adapter to clients.
type Usage map[string]any

// PersistenceHandle is the opaque handle a provider returns so a closed
// agent can later be resumed.
type PersistenceHandle struct {
	Provider     string         `json:"provider"`
	SessionID    string         `json:"sessionId"`
	NativeHandle string         `json:"nativeHandle,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Capabilities is the set of optional features a provider/agent supports.
type Capabilities struct {
	SupportsImages        bool `json:"supportsImages"`
	SupportsResume        bool `json:"supportsResume"`
	SupportsLiveModeSwap  bool `json:"supportsLiveModeSwap"`
	SupportsLiveModelSwap bool `json:"supportsLiveModelSwap"`
}

// RuntimeInfo is opaque provider-reported metadata (normalized model id,
// provider version, ...).
type RuntimeInfo map[string]any

// Mode is one entry of the provider's mode selector (e.g. "ask" vs "bypass
// permissions").
type Mode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Agent is the central entity of the daemon: one managed conversational
// session with one provider, bound to a working directory.
type Agent struct {
	ID        ID     `json:"id"`
	Provider  string `json:"provider"`
	Cwd       string `json:"cwd"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Status Status
	Title  *string

	CurrentModeID  string
	AvailableModes []Mode

	Model            string
	ThinkingOptionID string
	VariantID        string

	RuntimeInfo  RuntimeInfo
	Capabilities Capabilities

	PendingPermissions []PermissionRequest

	Persistence *PersistenceHandle

	LastError         string
	LastUsage         Usage
	LastUserMessageAt *time.Time
	LastActivityAt    time.Time

	RequiresAttention  bool
	AttentionReason    AttentionReason
	AttentionTimestamp *time.Time

	ArchivedAt *time.Time

	Labels map[string]string
}

// Clone returns a deep-enough copy of a for safe handoff across the
// per-agent mutex boundary (snapshots given to callers must not alias the
// instance's live state).
func (a *Agent) Clone() *Agent {
	if a == nil {
		return nil
	}
	cp := *a
	if a.Title != nil {
		t := *a.Title
		cp.Title = &t
	}
	cp.AvailableModes = append([]Mode(nil), a.AvailableModes...)
	cp.PendingPermissions = append([]PermissionRequest(nil), a.PendingPermissions...)
	if a.Persistence != nil {
		p := *a.Persistence
		cp.Persistence = &p
	}
	if a.LastUserMessageAt != nil {
		t := *a.LastUserMessageAt
		cp.LastUserMessageAt = &t
	}
	if a.AttentionTimestamp != nil {
		t := *a.AttentionTimestamp
		cp.AttentionTimestamp = &t
	}
	if a.ArchivedAt != nil {
		t := *a.ArchivedAt
		cp.ArchivedAt = &t
	}
	cp.Labels = make(map[string]string, len(a.Labels))
	for k, v := range a.Labels {
		cp.Labels[k] = v
	}
	cp.RuntimeInfo = cloneMap(a.RuntimeInfo)
	cp.LastUsage = cloneMap(a.LastUsage)
	return &cp
}

func cloneMap[M ~map[string]any](m M) M {
	if m == nil {
		return nil
	}
	out := make(M, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
