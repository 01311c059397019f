// Package timeline implements the append validation and canonical/projected
// read-views of an agent's timeline.
package timeline

import (
	"fmt"

	"github.com/getpaseo/paseod/internal/agent"
)

// ValidateAppend checks that appending row to the rows already written for
// one agent (tail last) does not violate a tool_call lifecycle transition.
// A violation is not fatal to the agent; the caller should instead append
// an error row and continue.
func ValidateAppend(existing []agent.TimelineRow, row agent.Item) error {
	if row.Type != agent.ItemToolCall {
		return nil
	}
	if row.CallID == "" {
		return fmt.Errorf("tool_call row missing callId")
	}

	var last *agent.Item
	for i := len(existing) - 1; i >= 0; i-- {
		if existing[i].Item.Type == agent.ItemToolCall && existing[i].Item.CallID == row.CallID {
			last = &existing[i].Item
			break
		}
	}

	if last == nil {
		// First row for this callId: any status is acceptable, including
		// a row that arrives already-terminal.
		return nil
	}

	switch last.Status {
	case agent.ToolRunning:
		switch row.Status {
		case agent.ToolCompleted, agent.ToolFailed, agent.ToolCanceled, agent.ToolRunning:
			return nil
		default:
			return fmt.Errorf("tool_call %s: invalid status %q following running", row.CallID, row.Status)
		}
	case agent.ToolCompleted, agent.ToolFailed, agent.ToolCanceled:
		return fmt.Errorf("tool_call %s: status %q arrived after terminal status %q", row.CallID, row.Status, last.Status)
	default:
		return fmt.Errorf("tool_call %s: unknown prior status %q", row.CallID, last.Status)
	}
}
