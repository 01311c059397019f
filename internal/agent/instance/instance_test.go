package instance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/getpaseo/paseod/internal/agent"
	"github.com/getpaseo/paseod/internal/agent/adapter"
	"github.com/getpaseo/paseod/internal/agent/adapter/mock"
	"github.com/getpaseo/paseod/internal/agent/permission"
	"github.com/getpaseo/paseod/internal/logging"
)

func newTestInstance(t *testing.T) (*Instance, *mock.Client) {
	t.Helper()
	client := mock.New()
	broker := permission.New()
	record := agent.Agent{ID: agent.ID("agent-1"), Provider: "mock"}
	inst := New(record, client, broker, nil, logging.Default())
	require.NoError(t, inst.Start(context.Background(), adapter.StartParams{}))
	return inst, client
}

// waitStatus polls until inst reaches want or the deadline passes.
func waitStatus(t *testing.T, inst *Instance, want agent.Status) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if inst.Status() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %s, got %s", want, inst.Status())
}

// TestInstance_BasicTurnCompletes drives a full send/echo/complete cycle
// through the mock adapter and checks the timeline and status land where
// the turn lifecycle says they should.
func TestInstance_BasicTurnCompletes(t *testing.T) {
	inst, _ := newTestInstance(t)
	defer inst.Close(context.Background())

	inst.AppendUserMessage("hello", nil)
	require.NoError(t, inst.Send(context.Background(), "hello", nil))

	waitStatus(t, inst, agent.StatusIdle)

	rows := inst.Rows()
	require.Len(t, rows, 2)
	require.Equal(t, agent.ItemUserMessage, rows[0].Item.Type)
	require.Equal(t, agent.ItemAssistantMessage, rows[1].Item.Type)
	require.Equal(t, "echo: hello", rows[1].Item.Text)

	snap := inst.Snapshot()
	require.True(t, snap.RequiresAttention)
	require.Equal(t, agent.AttentionFinished, snap.AttentionReason)
}

// TestInstance_SendRejectsConcurrentTurn checks the synchronous guard: once
// a Send has transitioned the instance to running, a second Send must fail
// with INVALID rather than reach the adapter, closing the race where
// status only flipped to running asynchronously inside apply.
func TestInstance_SendRejectsConcurrentTurn(t *testing.T) {
	inst, client := newTestInstance(t)
	defer inst.Close(context.Background())

	blocked := make(chan struct{})
	client.SendFunc = func(ctx context.Context, text string) error {
		<-blocked
		return nil
	}

	errCh := make(chan error, 1)
	go func() { errCh <- inst.Send(context.Background(), "first", nil) }()

	waitStatus(t, inst, agent.StatusRunning)

	err := inst.Send(context.Background(), "second", nil)
	require.Error(t, err)
	require.ErrorContains(t, err, "not idle")

	close(blocked)
	require.NoError(t, <-errCh)
}

// TestInstance_SendRejectsWithPendingPermission checks the
// PERMISSIONS_OUTSTANDING guard: a turn cannot be sent while a provider
// permission request is awaiting a client decision.
func TestInstance_SendRejectsWithPendingPermission(t *testing.T) {
	inst, client := newTestInstance(t)
	defer inst.Close(context.Background())

	client.EmitPermissionRequest(agent.PermissionRequest{ID: "perm-1", Name: "write_file"})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(inst.Snapshot().PendingPermissions) == 0 {
		time.Sleep(time.Millisecond)
	}
	require.Len(t, inst.Snapshot().PendingPermissions, 1)

	err := inst.Send(context.Background(), "go ahead", nil)
	require.Error(t, err)

	require.NoError(t, inst.Resolve(context.Background(), "perm-1", agent.Resolution{Behavior: agent.BehaviorAllow}))
	require.Empty(t, inst.Snapshot().PendingPermissions)

	require.NoError(t, inst.Send(context.Background(), "go ahead", nil))
}

// TestInstance_ResolveRejectsUnownedRequest checks that resolving a
// requestId registered to a different agent is refused rather than
// silently applied.
func TestInstance_ResolveRejectsUnownedRequest(t *testing.T) {
	broker := permission.New()
	otherRecord := agent.Agent{ID: agent.ID("other-agent")}
	broker.Register(otherRecord.ID, agent.PermissionRequest{ID: "perm-foreign"})

	client := mock.New()
	record := agent.Agent{ID: agent.ID("agent-1"), Provider: "mock"}
	inst := New(record, client, broker, nil, logging.Default())
	require.NoError(t, inst.Start(context.Background(), adapter.StartParams{}))
	defer inst.Close(context.Background())

	err := inst.Resolve(context.Background(), "perm-foreign", agent.Resolution{Behavior: agent.BehaviorDeny})
	require.Error(t, err)
}
