// Package protocol defines the wire shape of the daemon's single
// bidirectional JSON-over-WebSocket stream: one tagged
// envelope type used for client requests, server responses, server events,
// and rpc errors, plus the catalog of message type strings C2 dispatches
// on.
package protocol

import (
	"encoding/json"

	"github.com/getpaseo/paseod/internal/apperrors"
)

// Envelope is the single message shape carried over the socket. Request
// messages set RequestID (most, but not all, request types end in
// "_request"); responses echo the RequestID they answer, and
// server-initiated events omit it entirely.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
}

// Encode marshals v as payload into an Envelope of the given type.
func Encode(msgType string, requestID string, v any) (*Envelope, error) {
	var raw json.RawMessage
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return &Envelope{Type: msgType, Payload: raw, RequestID: requestID}, nil
}

// Decode unmarshals e's payload into v.
func (e *Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

// RPCError is the payload of an "rpc_error" envelope.
type RPCError struct {
	RequestID   string         `json:"requestId"`
	RequestType string         `json:"requestType"`
	Code        apperrors.Kind `json:"code"`
	Message     string         `json:"message"`
}

// NewRPCError builds the rpc_error envelope for a failed request.
func NewRPCError(requestID, requestType string, err error) *Envelope {
	payload := RPCError{
		RequestID:   requestID,
		RequestType: requestType,
		Code:        apperrors.KindOf(err),
		Message:     err.Error(),
	}
	data, _ := json.Marshal(payload)
	return &Envelope{Type: TypeRPCError, Payload: data}
}

// Request/response message types.
const (
	TypeCreateAgentRequest         = "create_agent_request"
	TypeSendAgentMessage           = "send_agent_message"
	TypeCancelAgentRequest         = "cancel_agent_request"
	TypeDeleteAgentRequest         = "delete_agent_request"
	TypeResumeAgentRequest         = "resume_agent_request"
	TypeAgentPermissionResponse    = "agent_permission_response"
	TypeSetAgentMode               = "set_agent_mode"
	TypeSetAgentModel              = "set_agent_model"
	TypeSetAgentThinkingOption      = "set_agent_thinking_option"
	TypeSetAgentVariant            = "set_agent_variant"
	TypeInitializeAgentRequest     = "initialize_agent_request"
	TypeFetchAgentTimelineRequest  = "fetch_agent_timeline_request"
	TypeSubscribeAgentStreamRequest = "subscribe_agent_stream_request"
	TypeListProviderModelsRequest  = "list_provider_models_request"
	TypeCheckoutStatusRequest      = "checkout_status_request"
	TypeCheckoutDiffRequest        = "checkout_diff_request"
	TypeFileExplorerRequest        = "file_explorer_request"
	TypeListAgentsRequest          = "list_agents_request"
	TypePing                       = "ping"
)

// Response counterparts. Most requests share one response type per
// resource; the exact pairing is documented at each handler.
const (
	TypeAgentCreatedResponse       = "agent_created_response"
	TypeAgentResponse              = "agent_response"
	TypeAckResponse                = "ack_response"
	TypeFetchAgentTimelineResponse = "fetch_agent_timeline_response"
	TypeSubscribeAgentStreamResponse = "subscribe_agent_stream_response"
	TypeListAgentsResponse         = "list_agents_response"
	TypePong                       = "pong"
)

// Event types (server-initiated, no requestId).
const (
	TypeSessionState              = "session_state"
	TypeAgentState                = "agent_state"
	TypeAgentDeleted              = "agent_deleted"
	TypeAgentStream                = "agent_stream"
	TypeAgentStreamSnapshot        = "agent_stream_snapshot"
	TypeAgentPermissionRequest      = "agent_permission_request"
	TypeAgentPermissionResolved     = "agent_permission_resolved"
	TypeActivityLog                = "activity_log"
	TypeTranscriptionResult        = "transcription_result"
	TypeAudioOutput                = "audio_output"
	TypeCheckoutStatusResponse      = "checkout_status_response"
	TypeCheckoutDiffResponse        = "checkout_diff_response"
	TypeListProviderModelsResponse = "list_provider_models_response"
	TypeRPCError                   = "rpc_error"
)
