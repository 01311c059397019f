package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/getpaseo/paseod/internal/agent"
	"github.com/getpaseo/paseod/internal/agent/adapter"
	"github.com/getpaseo/paseod/internal/agent/manager"
	"github.com/getpaseo/paseod/internal/analyticsstore"
	"github.com/getpaseo/paseod/internal/events"
	"github.com/getpaseo/paseod/internal/logging"
)

// telemetryManager wraps *manager.Manager so every agent it creates or
// resumes gets its turn timings recorded to the analytics store and its
// lifecycle broadcast on the cross-cutting event bus, without changing
// the manager's own constructor or persistence contract.
type telemetryManager struct {
	*manager.Manager
	analytics *analyticsstore.Store
	bus       events.Bus
	log       *logging.Logger
}

func newTelemetryManager(mgr *manager.Manager, analytics *analyticsstore.Store, bus events.Bus, log *logging.Logger) *telemetryManager {
	return &telemetryManager{Manager: mgr, analytics: analytics, bus: bus, log: log}
}

func (t *telemetryManager) CreateAgent(ctx context.Context, params manager.CreateParams) (*agent.Agent, error) {
	a, err := t.Manager.CreateAgent(ctx, params)
	if err != nil {
		return nil, err
	}
	t.watch(a)
	t.publish(ctx, "agent.created", a.ID, a.Provider)
	return a, nil
}

func (t *telemetryManager) ResumeAgent(ctx context.Context, provider string, handle agent.PersistenceHandle, cwd string) (*agent.Agent, error) {
	a, err := t.Manager.ResumeAgent(ctx, provider, handle, cwd)
	if err != nil {
		return nil, err
	}
	t.watch(a)
	t.publish(ctx, "agent.resumed", a.ID, a.Provider)
	return a, nil
}

func (t *telemetryManager) DeleteAgent(ctx context.Context, id agent.ID) error {
	if err := t.Manager.DeleteAgent(ctx, id); err != nil {
		return err
	}
	t.publish(ctx, "agent.deleted", id, "")
	return nil
}

// watch subscribes to a's stream and records each completed turn's timing,
// exiting once the subscription is closed, which the manager does when the
// agent is deleted. Closing (archiving) an agent leaves it open.
func (t *telemetryManager) watch(a *agent.Agent) {
	_, sub, err := t.Manager.SubscribeAgentStream(a.ID)
	if err != nil {
		t.log.Warn("telemetry: failed to subscribe to agent stream", zap.String("agent_id", string(a.ID)), zap.Error(err))
		return
	}

	go func(provider string) {
		var turnStarted time.Time
		for ev := range sub.Chan() {
			switch ev.Type {
			case adapter.EventTurnStarted:
				turnStarted = time.Now()
			case adapter.EventTurnCompleted:
				if turnStarted.IsZero() {
					continue
				}
				if err := t.analytics.RecordTurn(context.Background(), a.ID, provider, turnStarted, time.Now()); err != nil {
					t.log.Warn("telemetry: failed to record turn", zap.String("agent_id", string(a.ID)), zap.Error(err))
				}
				turnStarted = time.Time{}
			}
		}
	}(a.Provider)
}

func (t *telemetryManager) publish(ctx context.Context, eventType string, id agent.ID, provider string) {
	data := map[string]any{"agentId": string(id)}
	if provider != "" {
		data["provider"] = provider
	}
	if err := t.bus.Publish(ctx, eventType, events.New(eventType, "manager", data)); err != nil {
		t.log.Warn("telemetry: failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}
