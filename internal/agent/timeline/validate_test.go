package timeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/getpaseo/paseod/internal/agent"
)

func TestValidateAppend_RunningThenTerminalOK(t *testing.T) {
	existing := []agent.TimelineRow{
		{Seq: 1, Item: agent.Item{Type: agent.ItemToolCall, CallID: "c1", Status: agent.ToolRunning}},
	}
	err := ValidateAppend(existing, agent.Item{Type: agent.ItemToolCall, CallID: "c1", Status: agent.ToolCompleted})
	require.NoError(t, err)
}

func TestValidateAppend_TerminalTwiceRejected(t *testing.T) {
	existing := []agent.TimelineRow{
		{Seq: 1, Item: agent.Item{Type: agent.ItemToolCall, CallID: "c1", Status: agent.ToolCompleted}},
	}
	err := ValidateAppend(existing, agent.Item{Type: agent.ItemToolCall, CallID: "c1", Status: agent.ToolRunning})
	require.Error(t, err)
}

func TestValidateAppend_FirstRowAnyStatusOK(t *testing.T) {
	err := ValidateAppend(nil, agent.Item{Type: agent.ItemToolCall, CallID: "c1", Status: agent.ToolCompleted})
	require.NoError(t, err)
}

func TestValidateAppend_NonToolCallAlwaysOK(t *testing.T) {
	err := ValidateAppend(nil, agent.Item{Type: agent.ItemUserMessage, Text: "hi"})
	require.NoError(t, err)
}
