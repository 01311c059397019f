// Package process launches a provider's coding-agent binary as a child
// process and wires its stdio to an ACP connection, satisfying
// adapter.AgentClient by delegating everything but lifecycle to the ACP
// adapter underneath.
package process

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/getpaseo/paseod/internal/agent"
	"github.com/getpaseo/paseod/internal/agent/adapter"
	"github.com/getpaseo/paseod/internal/agent/adapter/acp"
	"github.com/getpaseo/paseod/internal/logging"
)

// Spec is the static launch configuration for one provider binary.
type Spec struct {
	Command []string
	Env     []string
}

// Status mirrors the underlying child process's coarse lifecycle.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusExited   Status = "exited"
)

// Launcher owns one child process and the ACP adapter bound to its pipes.
type Launcher struct {
	spec Spec
	log  *logging.Logger

	mu     sync.RWMutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	status atomic.Value

	exitCode atomic.Int32
	doneCh   chan struct{}

	inner *acp.Adapter
}

// New creates a Launcher for spec; the child process is not started until
// Start is called.
func New(spec Spec, log *logging.Logger) *Launcher {
	l := &Launcher{spec: spec, log: log.With(zap.String("adapter", "process")), doneCh: make(chan struct{})}
	l.status.Store(StatusStopped)
	l.exitCode.Store(-1)
	return l
}

func (l *Launcher) Status() Status { return l.status.Load().(Status) }

func (l *Launcher) Start(ctx context.Context, params adapter.StartParams) error {
	if len(l.spec.Command) == 0 {
		return fmt.Errorf("process: no command configured")
	}

	l.status.Store(StatusStarting)

	cmd := exec.Command(l.spec.Command[0], l.spec.Command[1:]...)
	cmd.Dir = params.Cwd
	cmd.Env = l.spec.Env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		l.status.Store(StatusExited)
		return fmt.Errorf("process: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		l.status.Store(StatusExited)
		return fmt.Errorf("process: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		l.status.Store(StatusExited)
		return fmt.Errorf("process: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		l.status.Store(StatusExited)
		return fmt.Errorf("process: start: %w", err)
	}

	l.mu.Lock()
	l.cmd = cmd
	l.stdin = stdin
	l.inner = acp.New(l.log, stdin, stdout)
	l.mu.Unlock()

	go l.drainStderr(stderr)
	go l.wait()

	l.status.Store(StatusRunning)
	return l.inner.Start(ctx, params)
}

func (l *Launcher) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		l.log.Debug("provider stderr", zap.String("line", scanner.Text()))
	}
}

func (l *Launcher) wait() {
	l.mu.RLock()
	cmd := l.cmd
	l.mu.RUnlock()

	err := cmd.Wait()
	code := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	} else if err != nil {
		code = -1
	}
	l.exitCode.Store(int32(code))
	l.status.Store(StatusExited)
	close(l.doneCh)
}

func (l *Launcher) Send(ctx context.Context, text string, attachments []agent.Attachment) error {
	return l.inner.Send(ctx, text, attachments)
}

func (l *Launcher) Cancel(ctx context.Context) error { return l.inner.Cancel(ctx) }

func (l *Launcher) Resolve(ctx context.Context, requestID string, resolution agent.Resolution) error {
	return l.inner.Resolve(ctx, requestID, resolution)
}

func (l *Launcher) SetMode(ctx context.Context, modeID string) error { return l.inner.SetMode(ctx, modeID) }
func (l *Launcher) SetModel(ctx context.Context, model string) error { return l.inner.SetModel(ctx, model) }
func (l *Launcher) SetThinkingOption(ctx context.Context, id string) error {
	return l.inner.SetThinkingOption(ctx, id)
}
func (l *Launcher) SetVariant(ctx context.Context, id string) error { return l.inner.SetVariant(ctx, id) }

func (l *Launcher) Capabilities() agent.Capabilities { return l.inner.Capabilities() }

func (l *Launcher) PersistenceHandle() *agent.PersistenceHandle { return l.inner.PersistenceHandle() }

func (l *Launcher) Events() <-chan adapter.Event { return l.inner.Events() }

// Close requests the child process stop: stdin is closed first (most
// providers exit cleanly on EOF), escalating to SIGKILL after grace.
func (l *Launcher) Close(ctx context.Context) error {
	l.status.Store(StatusStopping)

	l.mu.RLock()
	stdin, cmd := l.stdin, l.cmd
	l.mu.RUnlock()

	if stdin != nil {
		_ = stdin.Close()
	}

	select {
	case <-l.doneCh:
	case <-time.After(5 * time.Second):
		if cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-l.doneCh
	case <-ctx.Done():
	}

	return l.inner.Close(ctx)
}

var _ adapter.AgentClient = (*Launcher)(nil)
