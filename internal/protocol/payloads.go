package protocol

import (
	"github.com/getpaseo/paseod/internal/agent"
	"github.com/getpaseo/paseod/internal/agent/adapter"
	"github.com/getpaseo/paseod/internal/agent/timeline"
)

// CreateAgentRequest is the payload of a create_agent_request envelope.
type CreateAgentRequest struct {
	Provider         string            `json:"provider"`
	Cwd              string            `json:"cwd"`
	Model            string            `json:"model,omitempty"`
	ModeID           string            `json:"modeId,omitempty"`
	ThinkingOptionID string            `json:"thinkingOptionId,omitempty"`
	VariantID        string            `json:"variantId,omitempty"`
	Title            *string           `json:"title,omitempty"`
	Labels           map[string]string `json:"labels,omitempty"`
}

// SendAgentMessageRequest is the payload of a send_agent_message envelope.
type SendAgentMessageRequest struct {
	AgentID     agent.ID           `json:"agentId"`
	Text        string             `json:"text"`
	Attachments []agent.Attachment `json:"attachments,omitempty"`
	MessageID   string             `json:"messageId,omitempty"`
}

// AgentIDRequest is the shared payload shape of requests that act on one
// agent and carry no other fields (cancel_agent_request,
// delete_agent_request).
type AgentIDRequest struct {
	AgentID agent.ID `json:"agentId"`
}

// ResumeAgentRequest is the payload of a resume_agent_request envelope.
type ResumeAgentRequest struct {
	Provider string                   `json:"provider"`
	Handle   agent.PersistenceHandle  `json:"persistenceHandle"`
	Cwd      string                   `json:"cwd"`
}

// AgentPermissionResponseRequest answers one pending permission request.
type AgentPermissionResponseRequest struct {
	AgentID    agent.ID         `json:"agentId"`
	RequestID  string           `json:"requestId"`
	Resolution agent.Resolution `json:"resolution"`
}

// SetAgentSelectorRequest is the shared payload shape of
// set_agent_mode|model|thinking_option|variant.
type SetAgentSelectorRequest struct {
	AgentID  agent.ID `json:"agentId"`
	Selector string   `json:"selector"`
}

// FetchAgentTimelineRequest is the payload of a
// fetch_agent_timeline_request envelope.
type FetchAgentTimelineRequest struct {
	AgentID               agent.ID          `json:"agentId"`
	Direction             timeline.Direction `json:"direction"`
	Cursor                int64             `json:"cursor,omitempty"`
	Limit                 int               `json:"limit"`
	Projection            timeline.Mode     `json:"projection"`
	CollapseToolLifecycle bool              `json:"collapseToolLifecycle"`
}

// FetchAgentTimelineResponse is the payload of the matching response.
type FetchAgentTimelineResponse struct {
	Entries     []timeline.Entry `json:"entries"`
	StartCursor int64            `json:"startCursor"`
	EndCursor   int64            `json:"endCursor"`
	HasOlder    bool             `json:"hasOlder"`
	HasNewer    bool             `json:"hasNewer"`
}

// SubscribeAgentStreamRequest is the payload of a
// subscribe_agent_stream_request envelope.
type SubscribeAgentStreamRequest struct {
	AgentID agent.ID `json:"agentId"`
	FromSeq int64    `json:"fromSeq,omitempty"`
}

// AgentStreamEvent is the payload of a server-pushed agent_stream event.
type AgentStreamEvent struct {
	AgentID agent.ID      `json:"agentId"`
	Event   adapter.Event `json:"event"`
}

// AgentStreamSnapshotEvent backfills an agent's stream before live fanout
// begins.
type AgentStreamSnapshotEvent struct {
	AgentID agent.ID              `json:"agentId"`
	Events  []agent.TimelineRow   `json:"events"`
}

// AgentStateEvent is the payload of a server-pushed agent_state event.
type AgentStateEvent struct {
	Agent *agent.Agent `json:"agent"`
}

// AgentDeletedEvent is the payload of a server-pushed agent_deleted event.
type AgentDeletedEvent struct {
	AgentID agent.ID `json:"agentId"`
}

// AgentPermissionRequestEvent is the payload of a server-pushed
// agent_permission_request event.
type AgentPermissionRequestEvent struct {
	AgentID agent.ID                `json:"agentId"`
	Request agent.PermissionRequest `json:"request"`
}

// AgentPermissionResolvedEvent is the payload of a server-pushed
// agent_permission_resolved event.
type AgentPermissionResolvedEvent struct {
	AgentID   agent.ID `json:"agentId"`
	RequestID string   `json:"requestId"`
}

// ListProviderModelsRequest queries a provider's model catalog, optionally
// scoped to a working directory.
type ListProviderModelsRequest struct {
	Provider string `json:"provider"`
	Cwd      string `json:"cwd,omitempty"`
}

// ListProviderModelsResponse is the payload of the matching event.
type ListProviderModelsResponse struct {
	Provider string              `json:"provider"`
	Models   []ModelDescriptor   `json:"models"`
}

// ModelDescriptor is one provider-reported model in a catalog response.
type ModelDescriptor struct {
	ID              string   `json:"id"`
	DisplayName     string   `json:"displayName"`
	ThinkingOptions []string `json:"thinkingOptions,omitempty"`
	VariantOptions  []string `json:"variantOptions,omitempty"`
}

// ListAgentsResponse is the payload of the matching response: every agent
// paseod currently tracks, live or archived.
type ListAgentsResponse struct {
	Agents []*agent.Agent `json:"agents"`
}

// AckResponse is the generic payload for requests whose only useful
// response is "it worked" (cancel_agent_request, delete_agent_request,
// agent_permission_response, set_agent_*).
type AckResponse struct {
	OK bool `json:"ok"`
}
