package acp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	acpsdk "github.com/coder/acp-go-sdk"
	"github.com/google/uuid"

	"github.com/getpaseo/paseod/internal/agent"
	"github.com/getpaseo/paseod/internal/agent/adapter"
)

// clientHandler implements acpsdk.Client: the callback surface the agent
// subprocess invokes on us (session updates, permission requests, and the
// small filesystem/terminal surface ACP agents expect their client to
// provide).
type clientHandler struct {
	adapter *Adapter

	mu          sync.Mutex
	resolutions map[string]chan agent.Resolution
}

func (c *clientHandler) pendingResolutions() map[string]chan agent.Resolution {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolutions == nil {
		c.resolutions = make(map[string]chan agent.Resolution)
	}
	return c.resolutions
}

func (c *clientHandler) deliverResolution(requestID string, resolution agent.Resolution) error {
	c.mu.Lock()
	ch, ok := c.resolutions[requestID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("acp: no pending permission request %q", requestID)
	}
	select {
	case ch <- resolution:
		return nil
	default:
		return fmt.Errorf("acp: permission request %q already resolved", requestID)
	}
}

// RequestPermission forwards one ACP permission request as a normalized
// daemon Event and blocks until the caller answers via deliverResolution.
func (c *clientHandler) RequestPermission(ctx context.Context, p acpsdk.RequestPermissionRequest) (acpsdk.RequestPermissionResponse, error) {
	if len(p.Options) == 0 {
		return acpsdk.RequestPermissionResponse{
			Outcome: acpsdk.RequestPermissionOutcome{Cancelled: &acpsdk.RequestPermissionOutcomeCancelled{}},
		}, nil
	}

	title := ""
	if p.ToolCall.Title != nil {
		title = *p.ToolCall.Title
	}
	kind := ""
	if p.ToolCall.Kind != nil {
		kind = string(*p.ToolCall.Kind)
	}

	opts := make([]agent.PermissionOption, len(p.Options))
	for i, o := range p.Options {
		opts[i] = agent.PermissionOption{ID: string(o.OptionId), Name: o.Name}
	}

	requestID := uuid.NewString()
	ch := make(chan agent.Resolution, 1)
	resolutions := c.pendingResolutions()
	c.mu.Lock()
	resolutions[requestID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.resolutions, requestID)
		c.mu.Unlock()
	}()

	input := map[string]any{}
	if p.ToolCall.RawInput != nil {
		input["rawInput"] = p.ToolCall.RawInput
	}

	c.adapter.emit(adapter.Event{
		Type: adapter.EventPermissionRequested,
		Permission: agent.PermissionRequest{
			ID:      requestID,
			Kind:    kind,
			Name:    kind,
			Title:   title,
			Input:   input,
			Options: opts,
			Metadata: map[string]any{
				"toolCallId": string(p.ToolCall.ToolCallId),
			},
		},
	})

	select {
	case res := <-ch:
		if res.Behavior == agent.BehaviorDeny {
			return acpsdk.RequestPermissionResponse{
				Outcome: acpsdk.RequestPermissionOutcome{Cancelled: &acpsdk.RequestPermissionOutcomeCancelled{}},
			}, nil
		}
		return acpsdk.RequestPermissionResponse{
			Outcome: acpsdk.RequestPermissionOutcome{
				Selected: &acpsdk.RequestPermissionOutcomeSelected{OptionId: acpsdk.PermissionOptionId(res.OptionID)},
			},
		}, nil
	case <-ctx.Done():
		return acpsdk.RequestPermissionResponse{
			Outcome: acpsdk.RequestPermissionOutcome{Cancelled: &acpsdk.RequestPermissionOutcomeCancelled{}},
		}, nil
	}
}

func (c *clientHandler) SessionUpdate(ctx context.Context, n acpsdk.SessionNotification) error {
	ev, ok := convertNotification(n)
	if ok {
		c.adapter.emit(ev)
	}
	return nil
}

func (c *clientHandler) resolvePath(reqPath, workspaceRoot string) (string, error) {
	var resolved string
	if filepath.IsAbs(reqPath) {
		resolved = filepath.Clean(reqPath)
	} else {
		resolved = filepath.Join(workspaceRoot, reqPath)
	}
	root := filepath.Clean(workspaceRoot) + string(filepath.Separator)
	if resolved != filepath.Clean(workspaceRoot) && !strings.HasPrefix(resolved, root) {
		return "", fmt.Errorf("path %q resolves outside workspace root %q", reqPath, workspaceRoot)
	}
	return resolved, nil
}

func (c *clientHandler) ReadTextFile(ctx context.Context, p acpsdk.ReadTextFileRequest) (acpsdk.ReadTextFileResponse, error) {
	path, err := c.resolvePath(p.Path, c.adapter.cwd())
	if err != nil {
		return acpsdk.ReadTextFileResponse{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return acpsdk.ReadTextFileResponse{}, err
	}
	content := string(b)
	if p.Line != nil || p.Limit != nil {
		lines := strings.Split(content, "\n")
		start := 0
		if p.Line != nil && *p.Line > 0 {
			start = *p.Line - 1
			if start > len(lines) {
				start = len(lines)
			}
		}
		end := len(lines)
		if p.Limit != nil && *p.Limit > 0 && start+*p.Limit < end {
			end = start + *p.Limit
		}
		content = strings.Join(lines[start:end], "\n")
	}
	return acpsdk.ReadTextFileResponse{Content: content}, nil
}

func (c *clientHandler) WriteTextFile(ctx context.Context, p acpsdk.WriteTextFileRequest) (acpsdk.WriteTextFileResponse, error) {
	path, err := c.resolvePath(p.Path, c.adapter.cwd())
	if err != nil {
		return acpsdk.WriteTextFileResponse{}, err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return acpsdk.WriteTextFileResponse{}, err
		}
	}
	return acpsdk.WriteTextFileResponse{}, os.WriteFile(path, []byte(p.Content), 0o644)
}

func (c *clientHandler) CreateTerminal(ctx context.Context, p acpsdk.CreateTerminalRequest) (acpsdk.CreateTerminalResponse, error) {
	return acpsdk.CreateTerminalResponse{TerminalId: acpsdk.TerminalId(uuid.NewString())}, nil
}

func (c *clientHandler) KillTerminalCommand(ctx context.Context, p acpsdk.KillTerminalCommandRequest) (acpsdk.KillTerminalCommandResponse, error) {
	return acpsdk.KillTerminalCommandResponse{}, nil
}

func (c *clientHandler) TerminalOutput(ctx context.Context, p acpsdk.TerminalOutputRequest) (acpsdk.TerminalOutputResponse, error) {
	return acpsdk.TerminalOutputResponse{Output: "", Truncated: false}, nil
}

func (c *clientHandler) ReleaseTerminal(ctx context.Context, p acpsdk.ReleaseTerminalRequest) (acpsdk.ReleaseTerminalResponse, error) {
	return acpsdk.ReleaseTerminalResponse{}, nil
}

func (c *clientHandler) WaitForTerminalExit(ctx context.Context, p acpsdk.WaitForTerminalExitRequest) (acpsdk.WaitForTerminalExitResponse, error) {
	exitCode := 0
	return acpsdk.WaitForTerminalExitResponse{ExitCode: &exitCode}, nil
}

var _ acpsdk.Client = (*clientHandler)(nil)
