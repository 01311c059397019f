package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/getpaseo/paseod/internal/agent"
	"github.com/getpaseo/paseod/internal/agent/manager"
	"github.com/getpaseo/paseod/internal/agent/timeline"
	"github.com/getpaseo/paseod/internal/apperrors"
	"github.com/getpaseo/paseod/internal/protocol"
)

// AgentManager is the subset of *manager.Manager the session handlers
// need, kept as an interface so tests can fake it without standing up a
// real Store/registry/adapter.Factory.
type AgentManager interface {
	CreateAgent(ctx context.Context, params manager.CreateParams) (*agent.Agent, error)
	ResumeAgent(ctx context.Context, provider string, handle agent.PersistenceHandle, cwd string) (*agent.Agent, error)
	SendMessage(ctx context.Context, id agent.ID, text string, attachments []agent.Attachment) error
	CancelAgent(ctx context.Context, id agent.ID) error
	ResolvePermission(ctx context.Context, requestID string, resolution agent.Resolution) error
	SetAgentMode(ctx context.Context, id agent.ID, modeID string) error
	SetAgentModel(ctx context.Context, id agent.ID, model string) error
	SetAgentThinkingOption(ctx context.Context, id agent.ID, optionID string) error
	SetAgentVariant(ctx context.Context, id agent.ID, variantID string) error
	DeleteAgent(ctx context.Context, id agent.ID) error
	GetAgent(id agent.ID) (*agent.Agent, error)
	ListAgents() []*agent.Agent
	FetchTimeline(id agent.ID, params timeline.FetchParams) (timeline.FetchResult, error)
	SubscribeAgentStream(id agent.ID) ([]agent.TimelineRow, *manager.Subscription, error)
}

// RegisterAgentHandlers wires every agent-control envelope type
// names to mgr.
func RegisterAgentHandlers(d *Dispatcher, mgr AgentManager) {
	d.Register(protocol.TypeCreateAgentRequest, func(ctx context.Context, s *Session, req *protocol.Envelope) (*protocol.Envelope, error) {
		var body protocol.CreateAgentRequest
		if err := req.Decode(&body); err != nil {
			return nil, apperrors.Invalidf("decode create_agent_request: %v", err)
		}
		a, err := mgr.CreateAgent(ctx, manager.CreateParams{
			Provider: body.Provider, Cwd: body.Cwd, Model: body.Model,
			ModeID: body.ModeID, ThinkingOptionID: body.ThinkingOptionID, VariantID: body.VariantID,
			Title: body.Title, Labels: body.Labels,
		})
		if err != nil {
			return nil, err
		}
		return protocol.Encode(protocol.TypeAgentCreatedResponse, req.RequestID, protocol.AgentStateEvent{Agent: a})
	})

	d.Register(protocol.TypeResumeAgentRequest, func(ctx context.Context, s *Session, req *protocol.Envelope) (*protocol.Envelope, error) {
		var body protocol.ResumeAgentRequest
		if err := req.Decode(&body); err != nil {
			return nil, apperrors.Invalidf("decode resume_agent_request: %v", err)
		}
		a, err := mgr.ResumeAgent(ctx, body.Provider, body.Handle, body.Cwd)
		if err != nil {
			return nil, err
		}
		return protocol.Encode(protocol.TypeAgentResponse, req.RequestID, protocol.AgentStateEvent{Agent: a})
	})

	d.Register(protocol.TypeSendAgentMessage, func(ctx context.Context, s *Session, req *protocol.Envelope) (*protocol.Envelope, error) {
		var body protocol.SendAgentMessageRequest
		if err := req.Decode(&body); err != nil {
			return nil, apperrors.Invalidf("decode send_agent_message: %v", err)
		}
		if err := mgr.SendMessage(ctx, body.AgentID, body.Text, body.Attachments); err != nil {
			return nil, err
		}
		return protocol.Encode(protocol.TypeAckResponse, req.RequestID, protocol.AckResponse{OK: true})
	})

	d.Register(protocol.TypeCancelAgentRequest, func(ctx context.Context, s *Session, req *protocol.Envelope) (*protocol.Envelope, error) {
		var body protocol.AgentIDRequest
		if err := req.Decode(&body); err != nil {
			return nil, apperrors.Invalidf("decode cancel_agent_request: %v", err)
		}
		if err := mgr.CancelAgent(ctx, body.AgentID); err != nil {
			return nil, err
		}
		return protocol.Encode(protocol.TypeAckResponse, req.RequestID, protocol.AckResponse{OK: true})
	})

	d.Register(protocol.TypeDeleteAgentRequest, func(ctx context.Context, s *Session, req *protocol.Envelope) (*protocol.Envelope, error) {
		var body protocol.AgentIDRequest
		if err := req.Decode(&body); err != nil {
			return nil, apperrors.Invalidf("decode delete_agent_request: %v", err)
		}
		if err := mgr.DeleteAgent(ctx, body.AgentID); err != nil {
			return nil, err
		}
		return protocol.Encode(protocol.TypeAckResponse, req.RequestID, protocol.AckResponse{OK: true})
	})

	d.Register(protocol.TypeAgentPermissionResponse, func(ctx context.Context, s *Session, req *protocol.Envelope) (*protocol.Envelope, error) {
		var body protocol.AgentPermissionResponseRequest
		if err := req.Decode(&body); err != nil {
			return nil, apperrors.Invalidf("decode agent_permission_response: %v", err)
		}
		if err := mgr.ResolvePermission(ctx, body.RequestID, body.Resolution); err != nil {
			return nil, err
		}
		return protocol.Encode(protocol.TypeAckResponse, req.RequestID, protocol.AckResponse{OK: true})
	})

	d.Register(protocol.TypeInitializeAgentRequest, func(ctx context.Context, s *Session, req *protocol.Envelope) (*protocol.Envelope, error) {
		var body protocol.AgentIDRequest
		if err := req.Decode(&body); err != nil {
			return nil, apperrors.Invalidf("decode initialize_agent_request: %v", err)
		}
		a, err := mgr.GetAgent(body.AgentID)
		if err != nil {
			return nil, err
		}
		return protocol.Encode(protocol.TypeAgentResponse, req.RequestID, protocol.AgentStateEvent{Agent: a})
	})

	d.Register(protocol.TypeListAgentsRequest, func(ctx context.Context, s *Session, req *protocol.Envelope) (*protocol.Envelope, error) {
		return protocol.Encode(protocol.TypeListAgentsResponse, req.RequestID, protocol.ListAgentsResponse{Agents: mgr.ListAgents()})
	})

	d.Register(protocol.TypeSetAgentMode, setAgentSelectorHandler(mgr.SetAgentMode))
	d.Register(protocol.TypeSetAgentModel, setAgentSelectorHandler(mgr.SetAgentModel))
	d.Register(protocol.TypeSetAgentThinkingOption, setAgentSelectorHandler(mgr.SetAgentThinkingOption))
	d.Register(protocol.TypeSetAgentVariant, setAgentSelectorHandler(mgr.SetAgentVariant))

	d.Register(protocol.TypeFetchAgentTimelineRequest, func(ctx context.Context, s *Session, req *protocol.Envelope) (*protocol.Envelope, error) {
		var body protocol.FetchAgentTimelineRequest
		if err := req.Decode(&body); err != nil {
			return nil, apperrors.Invalidf("decode fetch_agent_timeline_request: %v", err)
		}
		result, err := mgr.FetchTimeline(body.AgentID, timeline.FetchParams{
			Direction: body.Direction, Cursor: body.Cursor, Limit: body.Limit,
			Mode: body.Projection, CollapseToolLifecycle: body.CollapseToolLifecycle,
		})
		if err != nil {
			return nil, err
		}
		return protocol.Encode(protocol.TypeFetchAgentTimelineResponse, req.RequestID, protocol.FetchAgentTimelineResponse{
			Entries: result.Entries, StartCursor: result.StartCursor, EndCursor: result.EndCursor,
			HasOlder: result.HasOlder, HasNewer: result.HasNewer,
		})
	})

	d.Register(protocol.TypeSubscribeAgentStreamRequest, func(ctx context.Context, s *Session, req *protocol.Envelope) (*protocol.Envelope, error) {
		var body protocol.SubscribeAgentStreamRequest
		if err := req.Decode(&body); err != nil {
			return nil, apperrors.Invalidf("decode subscribe_agent_stream_request: %v", err)
		}
		rows, sub, err := mgr.SubscribeAgentStream(body.AgentID)
		if err != nil {
			return nil, err
		}

		var backfill []agent.TimelineRow
		for _, r := range rows {
			if r.Seq > body.FromSeq {
				backfill = append(backfill, r)
			}
		}
		snapshot, encErr := protocol.Encode(protocol.TypeAgentStreamSnapshot, "", protocol.AgentStreamSnapshotEvent{AgentID: body.AgentID, Events: backfill})
		if encErr == nil {
			s.Send(snapshot)
		}

		s.ForwardAgentStream(uuid.NewString(), body.AgentID, sub)
		return protocol.Encode(protocol.TypeSubscribeAgentStreamResponse, req.RequestID, protocol.AckResponse{OK: true})
	})

	d.Register(protocol.TypePing, func(ctx context.Context, s *Session, req *protocol.Envelope) (*protocol.Envelope, error) {
		return protocol.Encode(protocol.TypePong, req.RequestID, nil)
	})
}

func setAgentSelectorHandler(apply func(ctx context.Context, id agent.ID, selector string) error) Handler {
	return func(ctx context.Context, s *Session, req *protocol.Envelope) (*protocol.Envelope, error) {
		var body protocol.SetAgentSelectorRequest
		if err := req.Decode(&body); err != nil {
			return nil, apperrors.Invalidf("decode set-agent-selector request: %v", err)
		}
		if err := apply(ctx, body.AgentID, body.Selector); err != nil {
			return nil, err
		}
		return protocol.Encode(protocol.TypeAckResponse, req.RequestID, protocol.AckResponse{OK: true})
	}
}
