package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/getpaseo/paseod/internal/agent"
)

func assistantRow(seq int64, text string) agent.TimelineRow {
	return agent.TimelineRow{
		Seq:       seq,
		Timestamp: time.Unix(seq, 0),
		Item:      agent.Item{Type: agent.ItemAssistantMessage, Text: text},
	}
}

func userRow(seq int64, text string) agent.TimelineRow {
	return agent.TimelineRow{
		Seq:       seq,
		Timestamp: time.Unix(seq, 0),
		Item:      agent.Item{Type: agent.ItemUserMessage, Text: text},
	}
}

// TestFetch_ProjectedTailBoundary checks that a projected tail fetch with
// limit 1 returns only the last projected entry: the "Wor"+"ld" chunks
// merged into one entry covering seqs 4-5, with EndCursor 5.
func TestFetch_ProjectedTailBoundary(t *testing.T) {
	rows := []agent.TimelineRow{
		assistantRow(1, "Hel"),
		assistantRow(2, "lo"),
		userRow(3, "next"),
		assistantRow(4, "Wor"),
		assistantRow(5, "ld"),
	}

	res := Fetch(rows, FetchParams{
		Direction:             DirectionTail,
		Limit:                 1,
		Mode:                  ModeProjected,
		CollapseToolLifecycle: true,
	})

	require.Len(t, res.Entries, 1)
	entry := res.Entries[0]
	require.Equal(t, agent.ItemAssistantMessage, entry.Type)
	require.Equal(t, "World", entry.Item.Text)
	require.Equal(t, []SeqRange{{4, 5}}, entry.SourceSeqRanges)
	require.Equal(t, int64(5), res.EndCursor)
}

// TestFetch_ProjectedTailBoundary_Count covers the invariant that any
// projected tail query with limit=N returns exactly min(N, total).
func TestFetch_ProjectedTailBoundary_Count(t *testing.T) {
	rows := []agent.TimelineRow{
		assistantRow(1, "a"),
		userRow(2, "b"),
		assistantRow(3, "c"),
	}
	res := Fetch(rows, FetchParams{Direction: DirectionTail, Limit: 10, Mode: ModeProjected})
	require.Len(t, res.Entries, 3)
	require.Equal(t, int64(3), res.EndCursor)
}

func TestProjected_ConcatenationMatchesCanonical(t *testing.T) {
	rows := []agent.TimelineRow{
		assistantRow(1, "Hel"),
		assistantRow(2, "lo "),
		assistantRow(3, "World"),
	}
	projected := Projected(rows)
	require.Len(t, projected, 1)

	var canonicalConcat string
	for _, r := range rows {
		canonicalConcat += r.Item.Text
	}
	require.Equal(t, canonicalConcat, projected[0].Item.Text)
}

func TestProjected_CollapsesToolCallLifecycle(t *testing.T) {
	rows := []agent.TimelineRow{
		{Seq: 1, Item: agent.Item{Type: agent.ItemToolCall, CallID: "c1", Status: agent.ToolRunning, Name: "shell"}},
		{Seq: 2, Item: agent.Item{Type: agent.ItemAssistantMessage, Text: "working..."}},
		{Seq: 3, Item: agent.Item{Type: agent.ItemToolCall, CallID: "c1", Status: agent.ToolCompleted, Name: "shell"}},
	}
	projected := Projected(rows)
	require.Len(t, projected, 2)
	require.Equal(t, agent.ItemToolCall, projected[0].Type)
	require.Equal(t, agent.ToolCompleted, projected[0].Status)
	require.Equal(t, []SeqRange{{1, 1}, {3, 3}}, projected[0].SourceSeqRanges)
}
