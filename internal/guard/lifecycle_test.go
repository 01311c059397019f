package guard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/getpaseo/paseod/internal/logging"
)

type fakeSupervisor struct {
	intents []string
}

func (f *fakeSupervisor) Forward(ctx context.Context, intent string) error {
	f.intents = append(f.intents, intent)
	return nil
}

func TestHandleIntent_StandaloneCallsStop(t *testing.T) {
	called := false
	stop := func(ctx context.Context) error { called = true; return nil }

	g := New(true, nil, stop, time.Second, logging.Default())
	require.NoError(t, g.HandleIntent(context.Background(), IntentShutdown))
	require.True(t, called)
}

func TestHandleIntent_NonStandaloneForwardsToSupervisor(t *testing.T) {
	sup := &fakeSupervisor{}
	stop := func(ctx context.Context) error { t.Fatal("stop should not be called"); return nil }

	g := New(false, sup, stop, time.Second, logging.Default())
	require.NoError(t, g.HandleIntent(context.Background(), IntentRestart))
	require.Equal(t, []string{IntentRestart}, sup.intents)
}

func TestHandleIntent_RejectsUnknownIntent(t *testing.T) {
	g := New(true, nil, func(ctx context.Context) error { return nil }, time.Second, logging.Default())
	err := g.HandleIntent(context.Background(), "bogus")
	require.Error(t, err)
}

func TestHandleIntent_ForceExitsOnTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	stop := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	forced := false
	g := New(true, nil, stop, 10*time.Millisecond, logging.Default())
	g.OnForceExit(func() { forced = true })

	err := g.HandleIntent(context.Background(), IntentShutdown)
	require.Error(t, err)
	require.True(t, forced)
}
