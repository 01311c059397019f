// Package manager implements the agent manager (C3): the top-level
// AgentId -> Instance registry and the operations exposed to client
// sessions and the MCP surface (CreateAgent, SendMessage, CancelAgent,
// SetAgentMode/Model/ThinkingOption/Variant, DeleteAgent, ResumeAgent,
// FetchTimeline, SubscribeAgentStream).
package manager

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/getpaseo/paseod/internal/agent"
	"github.com/getpaseo/paseod/internal/agent/adapter"
	"github.com/getpaseo/paseod/internal/agent/instance"
	"github.com/getpaseo/paseod/internal/agent/permission"
	"github.com/getpaseo/paseod/internal/agent/registry"
	"github.com/getpaseo/paseod/internal/agent/timeline"
	"github.com/getpaseo/paseod/internal/apperrors"
	"github.com/getpaseo/paseod/internal/logging"
)

// Store is the subset of the persistence layer (C6) the manager depends
// on; kept as an interface so unit tests can run with an in-memory fake.
type Store interface {
	SaveRegistry(ctx context.Context, agents []agent.Agent) error
	AppendTimelineRow(ctx context.Context, agentID agent.ID, row agent.TimelineRow) error
	LoadTimeline(ctx context.Context, agentID agent.ID) ([]agent.TimelineRow, error)
	DeleteAgent(ctx context.Context, agentID agent.ID) error
}

// Subscription is a live handle on one agent's event stream.
type Subscription struct {
	C      <-chan adapter.Event
	cancel func()
}

// Close stops delivery to this subscription's channel.
func (s *Subscription) Close() { s.cancel() }

// Chan exposes the subscription's event channel through the
// session.StreamSubscription interface.
func (s *Subscription) Chan() <-chan adapter.Event { return s.C }

// Manager owns every running Instance.
type Manager struct {
	log     *logging.Logger
	store   Store
	broker  *permission.Broker
	reg     *registry.Registry
	factory adapter.Factory

	mu        sync.RWMutex
	instances map[agent.ID]*instance.Instance

	subMu sync.Mutex
	subs  map[agent.ID][]chan adapter.Event
}

// New constructs a Manager. factory builds one AgentClient per provider
// tag, e.g. dispatching to the acp/process adapter or a mock in tests.
func New(store Store, reg *registry.Registry, factory adapter.Factory, log *logging.Logger) *Manager {
	return &Manager{
		log:       log.With(zap.String("component", "agent-manager")),
		store:     store,
		broker:    permission.New(),
		reg:       reg,
		factory:   factory,
		instances: make(map[agent.ID]*instance.Instance),
		subs:      make(map[agent.ID][]chan adapter.Event),
	}
}

// CreateParams configures CreateAgent.
type CreateParams struct {
	Provider         string
	Cwd              string
	Model            string
	ModeID           string
	ThinkingOptionID string
	VariantID        string
	Title            *string
	Labels           map[string]string
}

// CreateAgent starts a new agent for params.Provider and registers it.
func (m *Manager) CreateAgent(ctx context.Context, params CreateParams) (*agent.Agent, error) {
	if _, ok := m.reg.Lookup(params.Provider); !ok {
		return nil, apperrors.Invalidf("unknown provider %q", params.Provider)
	}

	client, err := m.factory(params.Provider)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ProviderUnavailable, "construct provider client", err)
	}

	now := time.Now()
	record := agent.Agent{
		ID:               agent.ID(uuid.NewString()),
		Provider:         params.Provider,
		Cwd:              params.Cwd,
		CreatedAt:        now,
		UpdatedAt:        now,
		Status:           agent.StatusInitializing,
		Title:            params.Title,
		CurrentModeID:    params.ModeID,
		Model:            params.Model,
		ThinkingOptionID: params.ThinkingOptionID,
		VariantID:        params.VariantID,
		LastActivityAt:   now,
		Labels:           params.Labels,
	}

	inst := instance.New(record, client, m.broker, m.dispatch, m.log)

	m.mu.Lock()
	m.instances[record.ID] = inst
	m.mu.Unlock()

	if err := inst.Start(ctx, adapter.StartParams{
		Cwd: params.Cwd, Model: params.Model, ModeID: params.ModeID,
		ThinkingOptionID: params.ThinkingOptionID, VariantID: params.VariantID,
	}); err != nil {
		m.mu.Lock()
		delete(m.instances, record.ID)
		m.mu.Unlock()
		return nil, err
	}

	m.persistRegistry(ctx)
	return inst.Snapshot(), nil
}

// ResumeAgent restarts an archived/closed agent from its persistence
// handle.
func (m *Manager) ResumeAgent(ctx context.Context, provider string, handle agent.PersistenceHandle, cwd string) (*agent.Agent, error) {
	p, ok := m.reg.Lookup(provider)
	if !ok {
		return nil, apperrors.Invalidf("unknown provider %q", provider)
	}
	if !p.SupportsResume {
		return nil, apperrors.Unsupportedf("provider %q does not support resume", provider)
	}

	client, err := m.factory(provider)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ProviderUnavailable, "construct provider client", err)
	}

	now := time.Now()
	record := agent.Agent{
		ID:             agent.ID(uuid.NewString()),
		Provider:       provider,
		Cwd:            cwd,
		CreatedAt:      now,
		UpdatedAt:      now,
		Status:         agent.StatusInitializing,
		Persistence:    &handle,
		LastActivityAt: now,
	}

	rows, err := m.store.LoadTimeline(ctx, record.ID)
	if err != nil {
		m.log.Warn("resume: failed to preload timeline", zap.Error(err))
	}

	inst := instance.New(record, client, m.broker, m.dispatch, m.log)
	inst.Hydrate(rows)
	m.mu.Lock()
	m.instances[record.ID] = inst
	m.mu.Unlock()

	if err := inst.Start(ctx, adapter.StartParams{Cwd: cwd, Resume: &handle}); err != nil {
		m.mu.Lock()
		delete(m.instances, record.ID)
		m.mu.Unlock()
		return nil, err
	}

	m.persistRegistry(ctx)
	return inst.Snapshot(), nil
}

func (m *Manager) get(id agent.ID) (*instance.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[id]
	if !ok {
		return nil, apperrors.NotFoundf("agent %q not found", id)
	}
	return inst, nil
}

// SendMessage appends the user's message and forwards the turn.
func (m *Manager) SendMessage(ctx context.Context, id agent.ID, text string, attachments []agent.Attachment) error {
	inst, err := m.get(id)
	if err != nil {
		return err
	}
	row := inst.AppendUserMessage(text, attachments)
	if err := m.store.AppendTimelineRow(ctx, id, row); err != nil {
		m.log.Warn("failed to persist user message", zap.Error(err))
	}
	return inst.Send(ctx, text, attachments)
}

// CancelAgent requests the in-flight turn stop.
func (m *Manager) CancelAgent(ctx context.Context, id agent.ID) error {
	inst, err := m.get(id)
	if err != nil {
		return err
	}
	return inst.Cancel(ctx)
}

// ResolvePermission answers a pending permission request. Only the owning
// agent's instance is consulted. The broker forgets a request once it is
// resolved, so a second decision on the same requestID fails with
// NOT_FOUND, exactly like an unknown requestID.
func (m *Manager) ResolvePermission(ctx context.Context, requestID string, resolution agent.Resolution) error {
	agentID, err := m.broker.Lookup(requestID)
	if err != nil {
		return err
	}
	inst, err := m.get(agentID)
	if err != nil {
		return err
	}
	return inst.Resolve(ctx, requestID, resolution)
}

func (m *Manager) SetAgentMode(ctx context.Context, id agent.ID, modeID string) error {
	inst, err := m.get(id)
	if err != nil {
		return err
	}
	return inst.SetMode(ctx, modeID)
}

func (m *Manager) SetAgentModel(ctx context.Context, id agent.ID, model string) error {
	inst, err := m.get(id)
	if err != nil {
		return err
	}
	return inst.SetModel(ctx, model)
}

func (m *Manager) SetAgentThinkingOption(ctx context.Context, id agent.ID, optionID string) error {
	inst, err := m.get(id)
	if err != nil {
		return err
	}
	return inst.SetThinkingOption(ctx, optionID)
}

func (m *Manager) SetAgentVariant(ctx context.Context, id agent.ID, variantID string) error {
	inst, err := m.get(id)
	if err != nil {
		return err
	}
	return inst.SetVariant(ctx, variantID)
}

// DeleteAgent closes an agent and removes it (and its timeline) from the
// store entirely.
func (m *Manager) DeleteAgent(ctx context.Context, id agent.ID) error {
	inst, err := m.get(id)
	if err != nil {
		return err
	}
	if err := inst.Close(ctx); err != nil {
		m.log.Warn("error closing agent on delete", zap.Error(err))
	}

	m.mu.Lock()
	delete(m.instances, id)
	m.mu.Unlock()

	m.subMu.Lock()
	for _, ch := range m.subs[id] {
		close(ch)
	}
	delete(m.subs, id)
	m.subMu.Unlock()

	if err := m.store.DeleteAgent(ctx, id); err != nil {
		return err
	}
	m.persistRegistry(ctx)
	return nil
}

// CloseAgent archives an agent without deleting its persisted state, so it
// can later be resumed.
func (m *Manager) CloseAgent(ctx context.Context, id agent.ID) error {
	inst, err := m.get(id)
	if err != nil {
		return err
	}
	if err := inst.Close(ctx); err != nil {
		return err
	}
	m.persistRegistry(ctx)
	return nil
}

// GetAgent returns a snapshot of one agent.
func (m *Manager) GetAgent(id agent.ID) (*agent.Agent, error) {
	inst, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return inst.Snapshot(), nil
}

// ListAgents returns a snapshot of every tracked agent.
func (m *Manager) ListAgents() []*agent.Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*agent.Agent, 0, len(m.instances))
	for _, inst := range m.instances {
		out = append(out, inst.Snapshot())
	}
	return out
}

// AgentRows returns the raw loaded timeline rows for one agent, used to
// backfill a new stream subscriber before live fanout begins.
func (m *Manager) AgentRows(id agent.ID) ([]agent.TimelineRow, error) {
	inst, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return inst.Rows(), nil
}

// FetchTimeline applies the canonical/projected windowing package
// timeline implements, over one agent's loaded rows.
func (m *Manager) FetchTimeline(id agent.ID, params timeline.FetchParams) (timeline.FetchResult, error) {
	inst, err := m.get(id)
	if err != nil {
		return timeline.FetchResult{}, err
	}
	return timeline.Fetch(inst.Rows(), params), nil
}

// SubscribeAgentStream registers a live subscriber and returns the backfill
// rows loaded so far in the same critical section, so a row appended
// between the two steps can never land in both the snapshot and the live
// channel.
func (m *Manager) SubscribeAgentStream(id agent.ID) ([]agent.TimelineRow, *Subscription, error) {
	inst, err := m.get(id)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan adapter.Event, 64)
	rows := inst.RowsAnd(func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		m.subs[id] = append(m.subs[id], ch)
	})

	cancel := func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		list := m.subs[id]
		for i, c := range list {
			if c == ch {
				m.subs[id] = append(list[:i], list[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return rows, &Subscription{C: ch, cancel: cancel}, nil
}

// dispatch is the instance.StreamHandler passed to every Instance: it
// persists the row (if any) and fans the event out to subscribers in
// the same order the instance emitted them.
func (m *Manager) dispatch(agentID agent.ID, ev adapter.Event, row *agent.TimelineRow) {
	if row != nil {
		if err := m.store.AppendTimelineRow(context.Background(), agentID, *row); err != nil {
			m.log.Warn("failed to persist timeline row", zap.String("agent_id", string(agentID)), zap.Error(err))
		}
	}

	m.subMu.Lock()
	subs := append([]chan adapter.Event(nil), m.subs[agentID]...)
	m.subMu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			m.log.Warn("subscriber channel full, dropping event", zap.String("agent_id", string(agentID)))
		}
	}
}

func (m *Manager) persistRegistry(ctx context.Context) {
	m.mu.RLock()
	agents := make([]agent.Agent, 0, len(m.instances))
	for _, inst := range m.instances {
		agents = append(agents, *inst.Snapshot())
	}
	m.mu.RUnlock()

	if err := m.store.SaveRegistry(ctx, agents); err != nil {
		m.log.Error("failed to persist agent registry", zap.Error(err))
	}
}
