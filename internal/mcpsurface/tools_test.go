package mcpsurface

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/getpaseo/paseod/internal/agent"
	"github.com/getpaseo/paseod/internal/agent/manager"
	"github.com/getpaseo/paseod/internal/agent/timeline"
)

type fakeManager struct {
	createdParams manager.CreateParams
	resolved      struct {
		requestID  string
		resolution agent.Resolution
	}
	closedID    agent.ID
	agents      []*agent.Agent
	fetchParams timeline.FetchParams
}

func (f *fakeManager) CreateAgent(ctx context.Context, params manager.CreateParams) (*agent.Agent, error) {
	f.createdParams = params
	return &agent.Agent{ID: "new-agent", Provider: params.Provider}, nil
}

func (f *fakeManager) SendMessage(ctx context.Context, id agent.ID, text string, attachments []agent.Attachment) error {
	return nil
}

func (f *fakeManager) CancelAgent(ctx context.Context, id agent.ID) error { return nil }

func (f *fakeManager) CloseAgent(ctx context.Context, id agent.ID) error {
	f.closedID = id
	return nil
}

func (f *fakeManager) SetAgentMode(ctx context.Context, id agent.ID, modeID string) error { return nil }

func (f *fakeManager) SetAgentModel(ctx context.Context, id agent.ID, model string) error { return nil }

func (f *fakeManager) ResolvePermission(ctx context.Context, requestID string, resolution agent.Resolution) error {
	f.resolved.requestID = requestID
	f.resolved.resolution = resolution
	return nil
}

func (f *fakeManager) GetAgent(id agent.ID) (*agent.Agent, error) { return nil, nil }

func (f *fakeManager) ListAgents() []*agent.Agent { return f.agents }

func (f *fakeManager) FetchTimeline(id agent.ID, params timeline.FetchParams) (timeline.FetchResult, error) {
	f.fetchParams = params
	return timeline.FetchResult{}, nil
}

func callToolRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func TestCreateAgentHandler_TagsCallerAgentID(t *testing.T) {
	fm := &fakeManager{}
	handler := createAgentHandler(fm)

	result, err := handler(context.Background(), callToolRequest(map[string]any{
		"provider":      "claude-code",
		"cwd":           "/tmp/work",
		"callerAgentId": "parent-1",
	}))

	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Equal(t, "parent-1", fm.createdParams.Labels["callerAgentId"])
	require.Equal(t, "claude-code", fm.createdParams.Provider)
}

func TestKillAgentHandler_ClosesRequestedAgent(t *testing.T) {
	fm := &fakeManager{}
	handler := killAgentHandler(fm)

	_, err := handler(context.Background(), callToolRequest(map[string]any{"agentId": "agent-7"}))

	require.NoError(t, err)
	require.Equal(t, agent.ID("agent-7"), fm.closedID)
}

func TestResolvePermissionHandler_RejectsUnknownBehavior(t *testing.T) {
	fm := &fakeManager{}
	handler := resolvePermissionHandler(fm)

	result, err := handler(context.Background(), callToolRequest(map[string]any{
		"requestId": "req-1",
		"behavior":  "maybe",
	}))

	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestResolvePermissionHandler_ForwardsAllowDecision(t *testing.T) {
	fm := &fakeManager{}
	handler := resolvePermissionHandler(fm)

	_, err := handler(context.Background(), callToolRequest(map[string]any{
		"requestId": "req-1",
		"behavior":  "allow",
		"optionId":  "opt-a",
	}))

	require.NoError(t, err)
	require.Equal(t, "req-1", fm.resolved.requestID)
	require.Equal(t, agent.BehaviorAllow, fm.resolved.resolution.Behavior)
	require.Equal(t, "opt-a", fm.resolved.resolution.OptionID)
}

func TestGetAgentActivityHandler_DefaultsLimitWhenOmitted(t *testing.T) {
	fm := &fakeManager{}
	handler := getAgentActivityHandler(fm)

	result, err := handler(context.Background(), callToolRequest(map[string]any{"agentId": "agent-1"}))

	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Equal(t, 50, fm.fetchParams.Limit)
}
