// Package permission implements the permission broker (C7): a correlation
// table between provider-originated permission requests and client
// responses, collapsing duplicate provider-side requests onto one pending
// entry.
package permission

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/getpaseo/paseod/internal/agent"
	"github.com/getpaseo/paseod/internal/apperrors"
)

// Entry correlates one pending requestId with the agent it belongs to and
// the fingerprint used to collapse duplicates.
type Entry struct {
	AgentID     agent.ID
	Fingerprint string
}

// Broker is a single in-memory map requestId -> Entry.
type Broker struct {
	mu      sync.Mutex
	pending map[string]Entry
	byFinger map[fingerprintKey]string // (agentID,fingerprint) -> requestId, for dedup
}

type fingerprintKey struct {
	agentID     agent.ID
	fingerprint string
}

// New creates an empty Broker.
func New() *Broker {
	return &Broker{
		pending:  make(map[string]Entry),
		byFinger: make(map[fingerprintKey]string),
	}
}

// Fingerprint derives the stable fingerprint:
// (agentId, request.id | metadata.id | name | title | kind+hash(input|metadata)).
func Fingerprint(req agent.PermissionRequest) string {
	switch {
	case req.ID != "":
		return "id:" + req.ID
	case req.Metadata != nil:
		if id, ok := req.Metadata["id"].(string); ok && id != "" {
			return "metaid:" + id
		}
	}
	if req.Name != "" {
		return "name:" + req.Name
	}
	if req.Title != "" {
		return "title:" + req.Title
	}
	h := sha256.New()
	if b, err := json.Marshal(req.Input); err == nil {
		h.Write(b)
	}
	if b, err := json.Marshal(req.Metadata); err == nil {
		h.Write(b)
	}
	return fmt.Sprintf("kindhash:%s:%s", req.Kind, hex.EncodeToString(h.Sum(nil)))
}

// Register records a new pending request, returning the existing requestId
// if a duplicate (same agent + fingerprint) is already outstanding.
func (b *Broker) Register(agentID agent.ID, req agent.PermissionRequest) (requestID string, duplicate bool) {
	fp := Fingerprint(req)
	key := fingerprintKey{agentID: agentID, fingerprint: fp}

	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.byFinger[key]; ok {
		return existing, true
	}
	b.pending[req.ID] = Entry{AgentID: agentID, Fingerprint: fp}
	b.byFinger[key] = req.ID
	return req.ID, false
}

// Resolve removes requestID from the pending set and returns the agent it
// belonged to. A second call for the same requestID is a no-op.
func (b *Broker) Resolve(requestID string) (agent.ID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.pending[requestID]
	if !ok {
		return "", false
	}
	delete(b.pending, requestID)
	delete(b.byFinger, fingerprintKey{agentID: entry.AgentID, fingerprint: entry.Fingerprint})
	return entry.AgentID, true
}

// Lookup returns the agent a pending requestID belongs to without
// resolving it.
func (b *Broker) Lookup(requestID string) (agent.ID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.pending[requestID]
	if !ok {
		return "", apperrors.NotFoundf("unknown permission request %q", requestID)
	}
	return entry.AgentID, nil
}

// DropAgent discards every pending entry belonging to agentID, e.g. on
// agent close/delete.
func (b *Broker) DropAgent(agentID agent.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for reqID, entry := range b.pending {
		if entry.AgentID == agentID {
			delete(b.pending, reqID)
			delete(b.byFinger, fingerprintKey{agentID: entry.AgentID, fingerprint: entry.Fingerprint})
		}
	}
}
