package acp

import (
	acpsdk "github.com/coder/acp-go-sdk"

	"github.com/getpaseo/paseod/internal/agent"
	"github.com/getpaseo/paseod/internal/agent/adapter"
)

// convertNotification converts one ACP SessionNotification into a
// normalized timeline event. ok is false for update kinds this adapter
// does not yet project onto the timeline (e.g. available-commands).
func convertNotification(n acpsdk.SessionNotification) (adapter.Event, bool) {
	u := n.Update

	switch {
	case u.AgentMessageChunk != nil:
		if u.AgentMessageChunk.Content.Text != nil {
			return adapter.Event{
				Type:         adapter.EventTimeline,
				TimelineItem: agent.Item{Type: agent.ItemAssistantMessage, Text: u.AgentMessageChunk.Content.Text.Text},
			}, true
		}

	case u.AgentThoughtChunk != nil:
		if u.AgentThoughtChunk.Content.Text != nil {
			return adapter.Event{
				Type:         adapter.EventTimeline,
				TimelineItem: agent.Item{Type: agent.ItemReasoning, Text: u.AgentThoughtChunk.Content.Text.Text},
			}, true
		}

	case u.ToolCall != nil:
		status := toolStatus(string(u.ToolCall.Status))
		input := map[string]any{}
		if u.ToolCall.RawInput != nil {
			input["rawInput"] = u.ToolCall.RawInput
		}
		name := ""
		if u.ToolCall.Kind != "" {
			name = string(u.ToolCall.Kind)
		}
		return adapter.Event{
			Type: adapter.EventTimeline,
			TimelineItem: agent.Item{
				Type:   agent.ItemToolCall,
				CallID: string(u.ToolCall.ToolCallId),
				Name:   name,
				Status: status,
				Input:  input,
			},
		}, true

	case u.ToolCallUpdate != nil:
		status := agent.ToolRunning
		if u.ToolCallUpdate.Status != nil {
			status = toolStatus(string(*u.ToolCallUpdate.Status))
		}
		item := agent.Item{
			Type:   agent.ItemToolCall,
			CallID: string(u.ToolCallUpdate.ToolCallId),
			Status: status,
		}
		if u.ToolCallUpdate.RawOutput != nil {
			item.Output = map[string]any{"rawOutput": u.ToolCallUpdate.RawOutput}
		}
		return adapter.Event{Type: adapter.EventTimeline, TimelineItem: item}, true

	case u.Plan != nil:
		entries := make([]agent.TodoEntry, len(u.Plan.Entries))
		for i, e := range u.Plan.Entries {
			entries[i] = agent.TodoEntry{Text: e.Content, Completed: string(e.Status) == "completed"}
		}
		return adapter.Event{Type: adapter.EventTimeline, TimelineItem: agent.Item{Type: agent.ItemTodo, Todos: entries}}, true
	}

	return adapter.Event{}, false
}

func toolStatus(s string) agent.ToolStatus {
	switch s {
	case "completed", "complete":
		return agent.ToolCompleted
	case "failed", "error":
		return agent.ToolFailed
	case "cancelled", "canceled":
		return agent.ToolCanceled
	default:
		return agent.ToolRunning
	}
}
