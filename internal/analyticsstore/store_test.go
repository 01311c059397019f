package analyticsstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordTurn_AggregatesProviderUsage(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	start := time.Now().Add(-time.Hour)

	require.NoError(t, store.RecordTurn(ctx, "agent-1", "claude-code", start, start.Add(2*time.Second)))
	require.NoError(t, store.RecordTurn(ctx, "agent-2", "claude-code", start, start.Add(3*time.Second)))
	require.NoError(t, store.RecordTurn(ctx, "agent-3", "codex", start, start.Add(5*time.Second)))

	usage, err := store.ProviderUsageSince(ctx, start.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, usage, 2)

	byProvider := map[string]ProviderUsage{}
	for _, u := range usage {
		byProvider[u.Provider] = u
	}

	require.EqualValues(t, 2, byProvider["claude-code"].TurnCount)
	require.EqualValues(t, 5000, byProvider["claude-code"].TotalDurationMS)
	require.EqualValues(t, 1, byProvider["codex"].TurnCount)
}

func TestAgentTurnCount_CountsOnlyThatAgent(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()
	require.NoError(t, store.RecordTurn(ctx, "agent-1", "claude-code", now, now.Add(time.Second)))
	require.NoError(t, store.RecordTurn(ctx, "agent-1", "claude-code", now, now.Add(time.Second)))
	require.NoError(t, store.RecordTurn(ctx, "agent-2", "claude-code", now, now.Add(time.Second)))

	count, err := store.AgentTurnCount(ctx, "agent-1")
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}
