// Package acp implements the ACP (Agent Client Protocol) provider adapter:
// JSON-RPC 2.0 over the child process's stdin/stdout, using the upstream
// coder/acp-go-sdk client-side connection.
package acp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	acpsdk "github.com/coder/acp-go-sdk"
	"go.uber.org/zap"

	"github.com/getpaseo/paseod/internal/agent"
	"github.com/getpaseo/paseod/internal/agent/adapter"
	"github.com/getpaseo/paseod/internal/logging"
)

// Adapter implements adapter.AgentClient over an ACP subprocess connection.
// The subprocess is started and owned by the caller (the process adapter);
// Adapter only speaks ACP over the pipes handed to it.
type Adapter struct {
	log *logging.Logger

	mu           sync.RWMutex
	conn         *acpsdk.ClientSideConnection
	client       *clientHandler
	sessionID    string
	workdir      string
	capabilities agent.Capabilities
	closed       bool

	events chan adapter.Event
}

func (a *Adapter) cwd() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.workdir
}

// New constructs an ACP adapter bound to stdin/stdout of an already-started
// provider subprocess.
func New(log *logging.Logger, stdin io.Writer, stdout io.Reader) *Adapter {
	a := &Adapter{
		log:    log.With(zap.String("adapter", "acp")),
		events: make(chan adapter.Event, 256),
	}
	a.client = &clientHandler{adapter: a}
	a.conn = acpsdk.NewClientSideConnection(a.client, stdin, stdout)
	a.conn.SetLogger(slog.Default().With("component", "acp-conn"))
	return a
}

func (a *Adapter) Start(ctx context.Context, params adapter.StartParams) error {
	a.mu.Lock()
	a.workdir = params.Cwd
	a.mu.Unlock()

	resp, err := a.conn.Initialize(ctx, acpsdk.InitializeRequest{
		ProtocolVersion: acpsdk.ProtocolVersionNumber,
		ClientInfo: &acpsdk.Implementation{
			Name:    "paseod",
			Version: "0.1.0",
		},
	})
	if err != nil {
		return fmt.Errorf("acp initialize: %w", err)
	}

	a.mu.Lock()
	a.capabilities.SupportsResume = resp.AgentCapabilities.LoadSession
	a.capabilities.SupportsImages = true
	a.mu.Unlock()

	if params.Resume != nil && resp.AgentCapabilities.LoadSession {
		if _, err := a.conn.LoadSession(ctx, acpsdk.LoadSessionRequest{
			SessionId: acpsdk.SessionId(params.Resume.NativeHandle),
		}); err != nil {
			return fmt.Errorf("acp session/load: %w", err)
		}
		a.mu.Lock()
		a.sessionID = params.Resume.NativeHandle
		a.mu.Unlock()
		return nil
	}

	sresp, err := a.conn.NewSession(ctx, acpsdk.NewSessionRequest{
		Cwd:        params.Cwd,
		McpServers: []acpsdk.McpServer{},
	})
	if err != nil {
		return fmt.Errorf("acp session/new: %w", err)
	}
	a.mu.Lock()
	a.sessionID = string(sresp.SessionId)
	a.mu.Unlock()
	return nil
}

func (a *Adapter) Send(ctx context.Context, text string, attachments []agent.Attachment) error {
	a.mu.RLock()
	sessionID := a.sessionID
	a.mu.RUnlock()
	if sessionID == "" {
		return fmt.Errorf("acp: no active session")
	}

	blocks := []acpsdk.ContentBlock{acpsdk.TextBlock(text)}
	resp, err := a.conn.Prompt(ctx, acpsdk.PromptRequest{
		SessionId: acpsdk.SessionId(sessionID),
		Prompt:    blocks,
	})
	if err != nil {
		a.emit(adapter.Event{Type: adapter.EventTurnFailed, Err: err})
		return err
	}

	a.emit(adapter.Event{
		Type:  adapter.EventTurnCompleted,
		Usage: agent.Usage{"stopReason": string(resp.StopReason)},
	})
	return nil
}

func (a *Adapter) Cancel(ctx context.Context) error {
	a.mu.RLock()
	sessionID := a.sessionID
	a.mu.RUnlock()
	if sessionID == "" {
		return nil
	}
	if err := a.conn.Cancel(ctx, acpsdk.CancelNotification{SessionId: acpsdk.SessionId(sessionID)}); err != nil {
		return err
	}
	a.emit(adapter.Event{Type: adapter.EventTurnCanceled})
	return nil
}

// Resolve is handled out of band: the ACP permission handler blocks on a
// response channel filled by the caller via deliverResolution.
func (a *Adapter) Resolve(ctx context.Context, requestID string, resolution agent.Resolution) error {
	return a.client.deliverResolution(requestID, resolution)
}

func (a *Adapter) SetMode(ctx context.Context, modeID string) error {
	return fmt.Errorf("acp: live mode swap not supported")
}

func (a *Adapter) SetModel(ctx context.Context, model string) error {
	return fmt.Errorf("acp: live model swap not supported")
}

func (a *Adapter) SetThinkingOption(ctx context.Context, optionID string) error {
	return fmt.Errorf("acp: thinking option swap not supported")
}

func (a *Adapter) SetVariant(ctx context.Context, variantID string) error {
	return fmt.Errorf("acp: variant swap not supported")
}

func (a *Adapter) Capabilities() agent.Capabilities {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.capabilities
}

func (a *Adapter) PersistenceHandle() *agent.PersistenceHandle {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.sessionID == "" {
		return nil
	}
	return &agent.PersistenceHandle{Provider: "acp", SessionID: a.sessionID, NativeHandle: a.sessionID}
}

func (a *Adapter) Events() <-chan adapter.Event {
	return a.events
}

func (a *Adapter) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	close(a.events)
	return nil
}

func (a *Adapter) emit(ev adapter.Event) {
	select {
	case a.events <- ev:
	default:
		a.log.Warn("adapter event channel full, dropping event", zap.String("type", string(ev.Type)))
	}
}
