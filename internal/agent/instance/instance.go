// Package instance implements the per-agent state machine (C4): one
// Instance owns one Agent record, its timeline, its provider adapter, and
// the mutex boundary that serializes every mutation so operations on the
// same agent never interleave.
package instance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/getpaseo/paseod/internal/agent"
	"github.com/getpaseo/paseod/internal/agent/adapter"
	"github.com/getpaseo/paseod/internal/agent/permission"
	"github.com/getpaseo/paseod/internal/agent/timeline"
	"github.com/getpaseo/paseod/internal/apperrors"
	"github.com/getpaseo/paseod/internal/logging"
	"github.com/getpaseo/paseod/internal/tracing"
)

// StreamHandler receives every normalized event an Instance produces, in
// emission order, so the manager can fan it out to subscribers and persist
// it without the Instance knowing about transport.
type StreamHandler func(agentID agent.ID, ev adapter.Event, row *agent.TimelineRow)

// Instance is one managed agent: its record, its append-only timeline, and
// the provider adapter driving it.
type Instance struct {
	log     *logging.Logger
	broker  *permission.Broker
	onEvent StreamHandler

	mu          sync.Mutex
	record      agent.Agent
	rows        []agent.TimelineRow
	nextSeq     int64
	client      adapter.AgentClient
	pumpStop    context.CancelFunc
	wg          sync.WaitGroup
	sessionSpan trace.Span
	turnSpan    trace.Span
}

// New constructs an Instance wrapping client, seeded with an initial
// record. The caller is responsible for calling Start.
func New(record agent.Agent, client adapter.AgentClient, broker *permission.Broker, onEvent StreamHandler, log *logging.Logger) *Instance {
	return &Instance{
		log:     log.With(zap.String("agent_id", string(record.ID))),
		broker:  broker,
		onEvent: onEvent,
		record:  record,
		client:  client,
		nextSeq: 1,
	}
}

// Snapshot returns a deep-enough copy of the current Agent record.
func (in *Instance) Snapshot() *agent.Agent {
	in.mu.Lock()
	defer in.mu.Unlock()
	r := in.record
	return r.Clone()
}

// Rows returns a copy of the timeline loaded so far.
func (in *Instance) Rows() []agent.TimelineRow {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]agent.TimelineRow(nil), in.rows...)
}

// RowsAnd returns a copy of the timeline loaded so far and runs fn before
// releasing the instance lock. apply holds the same lock while appending a
// row, so no event applied after fn runs can be missing from the returned
// snapshot, and fn can register a live subscriber without risking a
// duplicate delivery of a row that lands in both the snapshot and the feed.
func (in *Instance) RowsAnd(fn func()) []agent.TimelineRow {
	in.mu.Lock()
	defer in.mu.Unlock()
	rows := append([]agent.TimelineRow(nil), in.rows...)
	fn()
	return rows
}

// Hydrate seeds the in-memory timeline from rows loaded from the store,
// before Start is called, so a resumed agent's FetchTimeline/projection
// sees its full history rather than just what happens from this process
// launch onward. rows must already be in
// ascending seq order; nextSeq continues from the highest seq seen.
func (in *Instance) Hydrate(rows []agent.TimelineRow) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.rows = append([]agent.TimelineRow(nil), rows...)
	for _, r := range rows {
		if r.Seq >= in.nextSeq {
			in.nextSeq = r.Seq + 1
		}
	}
}

// Start launches the provider session and begins pumping its event stream.
// It opens the agent's session-level trace span, which stays open for the
// instance's whole lifetime so every per-turn span nests under one trace.
func (in *Instance) Start(ctx context.Context, params adapter.StartParams) error {
	in.mu.Lock()
	in.record.Status = agent.StatusInitializing
	_, in.sessionSpan = tracing.TraceAgentSession(ctx, string(in.record.ID), in.record.Provider)
	in.mu.Unlock()

	if err := in.client.Start(ctx, params); err != nil {
		in.mu.Lock()
		in.record.Status = agent.StatusError
		in.record.LastError = err.Error()
		in.mu.Unlock()
		return apperrors.Wrap(apperrors.ProviderUnavailable, "start provider session", err)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	in.mu.Lock()
	in.pumpStop = cancel
	in.record.Status = agent.StatusIdle
	in.record.Capabilities = in.client.Capabilities()
	in.mu.Unlock()

	in.wg.Add(1)
	go in.pump(pumpCtx)

	return nil
}

// pump drains the adapter's event channel until it closes or ctx is
// cancelled, applying each event to the timeline/record under the
// instance mutex and forwarding it to onEvent.
func (in *Instance) pump(ctx context.Context) {
	defer in.wg.Done()
	events := in.client.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			in.mu.Lock()
			row := in.apply(ev)
			if in.onEvent != nil {
				in.onEvent(in.record.ID, ev, row)
			}
			in.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

func (in *Instance) id() agent.ID {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.record.ID
}

// apply mutates the record/timeline for one adapter event and returns the
// appended timeline row, if the event produced one. Must be called with
// in.mu held.
func (in *Instance) apply(ev adapter.Event) *agent.TimelineRow {
	now := time.Now()
	in.record.UpdatedAt = now
	in.record.LastActivityAt = now

	switch ev.Type {
	case adapter.EventTurnStarted:
		in.record.Status = agent.StatusRunning

	case adapter.EventTurnCompleted:
		in.record.Status = agent.StatusIdle
		in.record.LastUsage = ev.Usage
		in.record.RequiresAttention = true
		in.record.AttentionReason = agent.AttentionFinished
		t := now
		in.record.AttentionTimestamp = &t
		in.record.Persistence = in.client.PersistenceHandle()
		in.endTurnSpanLocked()

	case adapter.EventTurnFailed:
		in.record.Status = agent.StatusError
		if ev.Err != nil {
			in.record.LastError = ev.Err.Error()
		}
		in.record.RequiresAttention = true
		in.record.AttentionReason = agent.AttentionError
		t := now
		in.record.AttentionTimestamp = &t
		in.endTurnSpanLocked()
		return in.appendLocked(agent.Item{Type: agent.ItemError, Text: in.record.LastError})

	case adapter.EventTurnCanceled:
		in.record.Status = agent.StatusIdle
		in.endTurnSpanLocked()

	case adapter.EventTimeline:
		if err := timeline.ValidateAppend(in.rows, ev.TimelineItem); err != nil {
			in.log.Warn("dropping invalid timeline append", zap.Error(err))
			return in.appendLocked(agent.Item{Type: agent.ItemError, Text: err.Error()})
		}
		return in.appendLocked(ev.TimelineItem)

	case adapter.EventPermissionRequested:
		requestID, dup := in.broker.Register(in.record.ID, ev.Permission)
		if !dup {
			req := ev.Permission
			req.ID = requestID
			in.record.PendingPermissions = append(in.record.PendingPermissions, req)
			in.record.RequiresAttention = true
			in.record.AttentionReason = agent.AttentionPermission
			t := now
			in.record.AttentionTimestamp = &t
		}

	case adapter.EventPermissionResolved:
		in.removePendingLocked(ev.PermissionID)

	case adapter.EventCapabilitiesChanged:
		in.record.Capabilities = ev.Capabilities

	case adapter.EventModesUpdated:
		in.record.AvailableModes = ev.Modes
		in.record.CurrentModeID = ev.CurrentModeID
	}

	return nil
}

// endTurnSpanLocked closes the in-flight turn span, if any. Must be called
// with in.mu held.
func (in *Instance) endTurnSpanLocked() {
	if in.turnSpan != nil {
		in.turnSpan.End()
		in.turnSpan = nil
	}
}

func (in *Instance) removePendingLocked(requestID string) {
	out := in.record.PendingPermissions[:0]
	for _, p := range in.record.PendingPermissions {
		if p.ID != requestID {
			out = append(out, p)
		}
	}
	in.record.PendingPermissions = out
}

// appendLocked must be called with in.mu held.
func (in *Instance) appendLocked(item agent.Item) *agent.TimelineRow {
	row := agent.TimelineRow{Seq: in.nextSeq, Timestamp: time.Now(), Item: item}
	in.nextSeq++
	in.rows = append(in.rows, row)
	return &row
}

// AppendUserMessage records a user-authored timeline row before forwarding
// the turn to the provider.
func (in *Instance) AppendUserMessage(text string, attachments []agent.Attachment) agent.TimelineRow {
	in.mu.Lock()
	defer in.mu.Unlock()
	t := time.Now()
	in.record.LastUserMessageAt = &t
	in.record.RequiresAttention = false
	in.record.AttentionReason = agent.AttentionNone
	row := in.appendLocked(agent.Item{Type: agent.ItemUserMessage, Text: text, Attachments: attachments})
	return *row
}

// Send forwards one user turn to the provider. Call AppendUserMessage
// first so the timeline reflects the prompt even if the provider call
// fails.
func (in *Instance) Send(ctx context.Context, text string, attachments []agent.Attachment) error {
	if err := in.beginSend(); err != nil {
		return err
	}
	return in.client.Send(ctx, text, attachments)
}

// beginSend validates that the agent can accept a new turn and, if so,
// transitions it to running synchronously. Both checks and the transition
// happen under the same lock acquisition so two concurrent Send calls can
// never both observe an idle status: the loser sees StatusRunning (or a
// non-empty PendingPermissions) and fails before reaching the adapter.
func (in *Instance) beginSend() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.record.Status != agent.StatusIdle && in.record.Status != agent.StatusError {
		return apperrors.Invalidf("agent is %s, not idle or error", in.record.Status)
	}
	if len(in.record.PendingPermissions) > 0 {
		return apperrors.PermissionsOutstandingf("agent has %d pending permission request(s)", len(in.record.PendingPermissions))
	}
	in.record.Status = agent.StatusRunning
	_, in.turnSpan = tracing.TraceTurn(context.Background(), string(in.record.ID))
	return nil
}

// Status returns the current lifecycle status.
func (in *Instance) Status() agent.Status {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.record.Status
}

// Cancel requests the in-flight turn stop.
func (in *Instance) Cancel(ctx context.Context) error {
	return in.client.Cancel(ctx)
}

// Resolve answers a pending permission request, rejecting requestIDs this
// instance did not register.
func (in *Instance) Resolve(ctx context.Context, requestID string, resolution agent.Resolution) error {
	owner, err := in.broker.Lookup(requestID)
	if err != nil {
		return err
	}
	if owner != in.id() {
		return apperrors.Invalidf("permission request %q does not belong to this agent", requestID)
	}
	if err := in.client.Resolve(ctx, requestID, resolution); err != nil {
		return err
	}
	in.broker.Resolve(requestID)
	in.mu.Lock()
	in.removePendingLocked(requestID)
	in.mu.Unlock()
	return nil
}

// SetMode, SetModel, SetThinkingOption, SetVariant live-swap configuration,
// checking Capabilities first.
func (in *Instance) SetMode(ctx context.Context, modeID string) error {
	if !in.Snapshot().Capabilities.SupportsLiveModeSwap {
		return apperrors.Unsupportedf("provider does not support live mode swap")
	}
	if err := in.client.SetMode(ctx, modeID); err != nil {
		return err
	}
	in.mu.Lock()
	in.record.CurrentModeID = modeID
	in.mu.Unlock()
	return nil
}

func (in *Instance) SetModel(ctx context.Context, model string) error {
	if !in.Snapshot().Capabilities.SupportsLiveModelSwap {
		return apperrors.Unsupportedf("provider does not support live model swap")
	}
	if err := in.client.SetModel(ctx, model); err != nil {
		return err
	}
	in.mu.Lock()
	in.record.Model = model
	in.mu.Unlock()
	return nil
}

func (in *Instance) SetThinkingOption(ctx context.Context, optionID string) error {
	if err := in.client.SetThinkingOption(ctx, optionID); err != nil {
		return err
	}
	in.mu.Lock()
	in.record.ThinkingOptionID = optionID
	in.mu.Unlock()
	return nil
}

func (in *Instance) SetVariant(ctx context.Context, variantID string) error {
	if err := in.client.SetVariant(ctx, variantID); err != nil {
		return err
	}
	in.mu.Lock()
	in.record.VariantID = variantID
	in.mu.Unlock()
	return nil
}

// Close stops the pump and tears down the provider session. Pending
// permissions belonging to this agent are dropped from the broker.
func (in *Instance) Close(ctx context.Context) error {
	in.mu.Lock()
	stop := in.pumpStop
	id := in.record.ID
	in.record.Status = agent.StatusClosed
	t := time.Now()
	in.record.ArchivedAt = &t
	if in.turnSpan != nil {
		in.turnSpan.End()
		in.turnSpan = nil
	}
	session := in.sessionSpan
	in.sessionSpan = nil
	in.mu.Unlock()

	if session != nil {
		session.End()
	}

	if stop != nil {
		stop()
	}
	in.wg.Wait()
	in.broker.DropAgent(id)

	if err := in.client.Close(ctx); err != nil {
		return fmt.Errorf("close provider session: %w", err)
	}
	return nil
}

// PersistenceHandle returns the handle needed to resume this agent later.
func (in *Instance) PersistenceHandle() *agent.PersistenceHandle {
	return in.client.PersistenceHandle()
}
