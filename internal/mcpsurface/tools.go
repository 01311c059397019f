package mcpsurface

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/getpaseo/paseod/internal/agent"
	"github.com/getpaseo/paseod/internal/agent/manager"
	"github.com/getpaseo/paseod/internal/agent/timeline"
	"github.com/getpaseo/paseod/internal/logging"
)

// AgentManager is the subset of *manager.Manager the MCP tool handlers
// call into.
type AgentManager interface {
	CreateAgent(ctx context.Context, params manager.CreateParams) (*agent.Agent, error)
	SendMessage(ctx context.Context, id agent.ID, text string, attachments []agent.Attachment) error
	CancelAgent(ctx context.Context, id agent.ID) error
	CloseAgent(ctx context.Context, id agent.ID) error
	SetAgentMode(ctx context.Context, id agent.ID, modeID string) error
	SetAgentModel(ctx context.Context, id agent.ID, model string) error
	ResolvePermission(ctx context.Context, requestID string, resolution agent.Resolution) error
	GetAgent(id agent.ID) (*agent.Agent, error)
	ListAgents() []*agent.Agent
	FetchTimeline(id agent.ID, params timeline.FetchParams) (timeline.FetchResult, error)
}

func registerTools(s *server.MCPServer, m AgentManager, log *logging.Logger) {
	s.AddTool(
		mcp.NewTool("list_agents",
			mcp.WithDescription("List every agent this daemon is currently managing."),
		),
		listAgentsHandler(m),
	)

	s.AddTool(
		mcp.NewTool("create_agent",
			mcp.WithDescription("Start a new agent for a provider in a working directory. Optionally tag the new agent with the calling agent's id."),
			mcp.WithString("provider", mcp.Required(), mcp.Description("Provider tag, e.g. \"claude\" or \"codex\"")),
			mcp.WithString("cwd", mcp.Required(), mcp.Description("Working directory the new agent runs in")),
			mcp.WithString("model", mcp.Description("Model id override (optional)")),
			mcp.WithString("callerAgentId", mcp.Description("Id of the agent requesting this creation, recorded as parent metadata")),
		),
		createAgentHandler(m),
	)

	s.AddTool(
		mcp.NewTool("send_agent_prompt",
			mcp.WithDescription("Send a user-role message to a running agent."),
			mcp.WithString("agentId", mcp.Required()),
			mcp.WithString("text", mcp.Required()),
		),
		sendAgentPromptHandler(m),
	)

	s.AddTool(
		mcp.NewTool("get_agent_activity",
			mcp.WithDescription("Fetch an agent's recent timeline as a projected (human-readable) window."),
			mcp.WithString("agentId", mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum entries to return (default 50)")),
		),
		getAgentActivityHandler(m),
	)

	s.AddTool(
		mcp.NewTool("kill_agent",
			mcp.WithDescription("Stop an agent, archiving its state so it can later be resumed."),
			mcp.WithString("agentId", mcp.Required()),
		),
		killAgentHandler(m),
	)

	s.AddTool(
		mcp.NewTool("set_agent_mode",
			mcp.WithDescription("Switch an agent's active mode (e.g. ask vs. bypass-permissions)."),
			mcp.WithString("agentId", mcp.Required()),
			mcp.WithString("modeId", mcp.Required()),
		),
		setAgentModeHandler(m),
	)

	s.AddTool(
		mcp.NewTool("set_agent_model",
			mcp.WithDescription("Switch an agent's active model."),
			mcp.WithString("agentId", mcp.Required()),
			mcp.WithString("model", mcp.Required()),
		),
		setAgentModelHandler(m),
	)

	s.AddTool(
		mcp.NewTool("resolve_permission",
			mcp.WithDescription("Answer a pending permission request with allow or deny."),
			mcp.WithString("requestId", mcp.Required()),
			mcp.WithString("behavior", mcp.Required(), mcp.Description("\"allow\" or \"deny\"")),
			mcp.WithString("optionId", mcp.Description("Selected option id, if the request offered a choice")),
		),
		resolvePermissionHandler(m),
	)

	log.Info("registered MCP tools", zap.Int("count", 8))
}

func listAgentsHandler(m AgentManager) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		agents := m.ListAgents()
		data, err := json.MarshalIndent(agents, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func createAgentHandler(m AgentManager) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		provider, err := req.RequireString("provider")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		cwd, err := req.RequireString("cwd")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		labels := map[string]string{}
		if caller := req.GetString("callerAgentId", ""); caller != "" {
			labels["callerAgentId"] = caller
		}

		created, err := m.CreateAgent(ctx, manager.CreateParams{
			Provider: provider,
			Cwd:      cwd,
			Model:    req.GetString("model", ""),
			Labels:   labels,
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		data, _ := json.MarshalIndent(created, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	}
}

func sendAgentPromptHandler(m AgentManager) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		agentID, err := req.RequireString("agentId")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := m.SendMessage(ctx, agent.ID(agentID), text, nil); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("sent"), nil
	}
}

func getAgentActivityHandler(m AgentManager) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		agentID, err := req.RequireString("agentId")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		limit := 50
		if v, ok := req.GetArguments()["limit"].(float64); ok && v > 0 {
			limit = int(v)
		}

		res, err := m.FetchTimeline(agent.ID(agentID), timeline.FetchParams{
			Direction: timeline.DirectionTail,
			Limit:     limit,
			Mode:      timeline.ModeProjected,
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		data, _ := json.MarshalIndent(res, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	}
}

func killAgentHandler(m AgentManager) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		agentID, err := req.RequireString("agentId")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := m.CloseAgent(ctx, agent.ID(agentID)); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("stopped"), nil
	}
}

func setAgentModeHandler(m AgentManager) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		agentID, err := req.RequireString("agentId")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		modeID, err := req.RequireString("modeId")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := m.SetAgentMode(ctx, agent.ID(agentID), modeID); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("ok"), nil
	}
}

func setAgentModelHandler(m AgentManager) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		agentID, err := req.RequireString("agentId")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		model, err := req.RequireString("model")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := m.SetAgentModel(ctx, agent.ID(agentID), model); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("ok"), nil
	}
}

func resolvePermissionHandler(m AgentManager) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestID, err := req.RequireString("requestId")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		behavior, err := req.RequireString("behavior")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if behavior != string(agent.BehaviorAllow) && behavior != string(agent.BehaviorDeny) {
			return mcp.NewToolResultError(fmt.Sprintf("behavior must be %q or %q", agent.BehaviorAllow, agent.BehaviorDeny)), nil
		}

		resolution := agent.Resolution{
			Behavior: agent.Behavior(behavior),
			OptionID: req.GetString("optionId", ""),
		}
		if err := m.ResolvePermission(ctx, requestID, resolution); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("resolved"), nil
	}
}
