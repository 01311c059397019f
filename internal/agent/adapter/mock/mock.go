// Package mock provides a deterministic in-memory AgentClient for tests:
// no subprocess, no network, scripted or programmatic responses.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/getpaseo/paseod/internal/agent"
	"github.com/getpaseo/paseod/internal/agent/adapter"
)

// Client is a scriptable adapter.AgentClient.
type Client struct {
	mu           sync.Mutex
	events       chan adapter.Event
	capabilities agent.Capabilities
	persistence  *agent.PersistenceHandle
	closed       bool

	// SendFunc, if set, is invoked synchronously by Send instead of the
	// default behaviour of echoing one assistant_message and completing.
	SendFunc func(ctx context.Context, text string) error
}

// New constructs a Client with sensible test defaults (resume + live mode
// swap supported, so manager tests can exercise those paths).
func New() *Client {
	return &Client{
		events: make(chan adapter.Event, 64),
		capabilities: agent.Capabilities{
			SupportsImages:        true,
			SupportsResume:        true,
			SupportsLiveModeSwap:  true,
			SupportsLiveModelSwap: true,
		},
	}
}

func (c *Client) Start(ctx context.Context, params adapter.StartParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if params.Resume != nil {
		c.persistence = params.Resume
	} else {
		c.persistence = &agent.PersistenceHandle{Provider: "mock", SessionID: "mock-session"}
	}
	return nil
}

func (c *Client) Send(ctx context.Context, text string, attachments []agent.Attachment) error {
	if c.SendFunc != nil {
		return c.SendFunc(ctx, text)
	}
	c.emit(adapter.Event{Type: adapter.EventTurnStarted})
	c.emit(adapter.Event{
		Type:         adapter.EventTimeline,
		TimelineItem: agent.Item{Type: agent.ItemAssistantMessage, Text: "echo: " + text},
	})
	c.emit(adapter.Event{Type: adapter.EventTurnCompleted, Usage: agent.Usage{"echoed": true}})
	return nil
}

func (c *Client) Cancel(ctx context.Context) error {
	c.emit(adapter.Event{Type: adapter.EventTurnCanceled})
	return nil
}

func (c *Client) Resolve(ctx context.Context, requestID string, resolution agent.Resolution) error {
	c.emit(adapter.Event{Type: adapter.EventPermissionResolved, PermissionID: requestID, Resolution: resolution})
	return nil
}

func (c *Client) SetMode(ctx context.Context, modeID string) error {
	c.emit(adapter.Event{Type: adapter.EventModesUpdated, CurrentModeID: modeID})
	return nil
}

func (c *Client) SetModel(ctx context.Context, model string) error { return nil }

func (c *Client) SetThinkingOption(ctx context.Context, optionID string) error { return nil }

func (c *Client) SetVariant(ctx context.Context, variantID string) error { return nil }

func (c *Client) Capabilities() agent.Capabilities {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capabilities
}

func (c *Client) PersistenceHandle() *agent.PersistenceHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persistence
}

func (c *Client) Events() <-chan adapter.Event { return c.events }

func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.events)
	return nil
}

// EmitPermissionRequest lets a test script inject a provider-originated
// permission request asynchronously.
func (c *Client) EmitPermissionRequest(req agent.PermissionRequest) {
	c.emit(adapter.Event{Type: adapter.EventPermissionRequested, Permission: req})
}

func (c *Client) emit(ev adapter.Event) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	select {
	case c.events <- ev:
	default:
		panic(fmt.Sprintf("mock adapter event channel full, type=%s", ev.Type))
	}
}

var _ adapter.AgentClient = (*Client)(nil)
