package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/getpaseo/paseod/internal/agent"
)

func TestSaveAndLoadRegistry_RoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	agents := []agent.Agent{
		{ID: "a1", Provider: "claude", Cwd: "/tmp/a", CreatedAt: time.Now(), Status: agent.StatusIdle},
		{ID: "a2", Provider: "codex", Cwd: "/tmp/b", CreatedAt: time.Now(), Status: agent.StatusRunning},
	}

	require.NoError(t, s.SaveRegistry(context.Background(), agents))

	loaded, err := s.LoadRegistry(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, agent.ID("a1"), loaded[0].ID)
}

func TestLoadRegistry_MissingFileReturnsEmpty(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	loaded, err := s.LoadRegistry(context.Background())
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestAppendAndLoadTimeline_PreservesOrder(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	id := agent.ID("a1")
	for i := int64(1); i <= 3; i++ {
		row := agent.TimelineRow{Seq: i, Timestamp: time.Now(), Item: agent.Item{Type: agent.ItemUserMessage, Text: "m"}}
		require.NoError(t, s.AppendTimelineRow(context.Background(), id, row))
	}

	rows, err := s.LoadTimeline(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, int64(1), rows[0].Seq)
	require.Equal(t, int64(3), rows[2].Seq)
}

func TestDeleteAgent_RemovesTimeline(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	id := agent.ID("a1")
	require.NoError(t, s.AppendTimelineRow(context.Background(), id, agent.TimelineRow{Seq: 1}))
	require.NoError(t, s.DeleteAgent(context.Background(), id))

	rows, err := s.LoadTimeline(context.Background(), id)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestRecoverTruncatedRegistry_DropsPartialTail(t *testing.T) {
	good := `{"version":1,"agents":[{"id":"a1","provider":"claude"},{"id":"a2","provider":"cod`
	recovered, ok := recoverTruncatedRegistry([]byte(good))
	require.True(t, ok)
	require.Len(t, recovered, 1)
	require.Equal(t, agent.ID("a1"), recovered[0].ID)
}
