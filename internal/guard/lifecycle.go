package guard

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/getpaseo/paseod/internal/apperrors"
	"github.com/getpaseo/paseod/internal/logging"
)

// Intent names accepted from a client over C2.
const (
	IntentShutdown = "shutdown"
	IntentRestart  = "restart"
)

// StopFunc performs the daemon's graceful shutdown sequence: HTTP close,
// agent close, flush stores. It is given a context that is canceled when
// the force-exit timer fires.
type StopFunc func(ctx context.Context) error

// Supervisor forwards a lifecycle intent to an external process supervisor
// instead of acting on it directly.
type Supervisor interface {
	Forward(ctx context.Context, intent string) error
}

// Guard owns C11's lifecycle-intent decision: act locally in standalone
// mode, or forward to a supervisor.
type Guard struct {
	standalone   bool
	supervisor   Supervisor
	stop         StopFunc
	forceExit    time.Duration
	log          *logging.Logger
	onForceExit  func()
	restartAfter bool
}

// New constructs a Guard. forceExit bounds how long graceful stop is given
// before exiting unconditionally.
func New(standalone bool, supervisor Supervisor, stop StopFunc, forceExit time.Duration, log *logging.Logger) *Guard {
	if forceExit <= 0 {
		forceExit = 10 * time.Second
	}
	return &Guard{
		standalone: standalone,
		supervisor: supervisor,
		stop:       stop,
		forceExit:  forceExit,
		log:        log.With(zap.String("component", "guard")),
	}
}

// OnForceExit registers a callback invoked if the force-exit timer fires
// before graceful stop completes. Tests use this instead of letting Guard
// call os.Exit directly.
func (g *Guard) OnForceExit(fn func()) { g.onForceExit = fn }

// HandleIntent implements session.LifecycleIntentHandler: it is wired as
// the callback every Session's readPump invokes for "shutdown"/"restart"
// envelopes.
func (g *Guard) HandleIntent(ctx context.Context, intent string) error {
	if intent != IntentShutdown && intent != IntentRestart {
		return apperrors.Unsupportedf("unknown lifecycle intent %q", intent)
	}

	if !g.standalone && g.supervisor != nil {
		return g.supervisor.Forward(ctx, intent)
	}

	g.restartAfter = intent == IntentRestart
	return g.gracefulStop(ctx)
}

func (g *Guard) gracefulStop(ctx context.Context) error {
	stopCtx, cancel := context.WithTimeout(ctx, g.forceExit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.stop(stopCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("graceful stop failed: %w", err)
		}
		g.log.Info("graceful stop completed", zap.Bool("restart", g.restartAfter))
		return nil
	case <-stopCtx.Done():
		g.log.Warn("graceful stop timed out, forcing exit", zap.Duration("grace", g.forceExit))
		if g.onForceExit != nil {
			g.onForceExit()
		} else {
			os.Exit(1)
		}
		return fmt.Errorf("graceful stop timed out after %s", g.forceExit)
	}
}
