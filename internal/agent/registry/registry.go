// Package registry is the static + detected provider catalog: one entry per supported coding-agent provider,
// with a TTL-cached view of which binaries are actually installed.
package registry

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/getpaseo/paseod/internal/agent"
	"github.com/getpaseo/paseod/internal/logging"
)

const defaultCatalogTTL = 30 * time.Second

// ModelInfo is one selectable model of a provider.
type ModelInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Provider is the static definition of one coding-agent provider.
type Provider struct {
	Tag             string      `json:"tag"`
	DisplayName     string      `json:"displayName"`
	BinaryNames     []string    `json:"binaryNames"`
	DefaultModel    string      `json:"defaultModel"`
	Models          []ModelInfo `json:"models"`
	DefaultModes    []agent.Mode `json:"defaultModes"`
	SupportsResume  bool        `json:"supportsResume"`
}

// Availability is one provider's detected-on-this-machine status.
type Availability struct {
	Tag         string `json:"tag"`
	Available   bool   `json:"available"`
	MatchedPath string `json:"matchedPath,omitempty"`
}

// defaults is the built-in catalog of providers this daemon ships knowing
// about.
func defaults() []Provider {
	return []Provider{
		{
			Tag:          "claude",
			DisplayName:  "Claude Code",
			BinaryNames:  []string{"claude"},
			DefaultModel: "claude-sonnet-4-5",
			Models: []ModelInfo{
				{ID: "claude-opus-4-5", DisplayName: "Opus 4.5"},
				{ID: "claude-sonnet-4-5", DisplayName: "Sonnet 4.5"},
			},
			DefaultModes: []agent.Mode{
				{ID: "default", Name: "Ask before actions"},
				{ID: "bypassPermissions", Name: "Bypass permissions"},
			},
			SupportsResume: true,
		},
		{
			Tag:          "codex",
			DisplayName:  "Codex",
			BinaryNames:  []string{"codex"},
			DefaultModel: "gpt-5-codex",
			Models: []ModelInfo{
				{ID: "gpt-5-codex", DisplayName: "GPT-5 Codex"},
			},
			DefaultModes: []agent.Mode{
				{ID: "suggest", Name: "Suggest"},
				{ID: "auto-edit", Name: "Auto Edit"},
				{ID: "full-auto", Name: "Full Auto"},
			},
			SupportsResume: true,
		},
		{
			Tag:          "opencode",
			DisplayName:  "OpenCode",
			BinaryNames:  []string{"opencode"},
			DefaultModel: "",
			Models:       nil,
			SupportsResume: false,
		},
	}
}

// Registry holds the static catalog and a TTL-cached detection pass.
type Registry struct {
	providers []Provider
	log       *logging.Logger

	mu       sync.RWMutex
	cached   []Availability
	cachedAt time.Time
	ttl      time.Duration
}

// New builds a Registry from the built-in defaults, optionally overridden.
func New(log *logging.Logger, overrides ...Provider) *Registry {
	providers := defaults()
	if len(overrides) > 0 {
		providers = overrides
	}
	return &Registry{providers: providers, log: log, ttl: defaultCatalogTTL}
}

// Providers returns a copy of the static catalog.
func (r *Registry) Providers() []Provider {
	return append([]Provider(nil), r.providers...)
}

// Lookup finds one provider by tag.
func (r *Registry) Lookup(tag string) (Provider, bool) {
	for _, p := range r.providers {
		if p.Tag == tag {
			return p, true
		}
	}
	return Provider{}, false
}

// Detect reports which providers have a resolvable binary on PATH,
// caching the result for ttl to avoid spawning `exec.LookPath` on every
// catalog request.
func (r *Registry) Detect(ctx context.Context) []Availability {
	if cached := r.getCached(); cached != nil {
		return cached
	}

	results := make([]Availability, 0, len(r.providers))
	for _, p := range r.providers {
		avail := Availability{Tag: p.Tag}
		for _, bin := range p.BinaryNames {
			if path, err := exec.LookPath(bin); err == nil {
				avail.Available = true
				avail.MatchedPath = path
				break
			}
		}
		results = append(results, avail)
	}

	r.mu.Lock()
	r.cached = results
	r.cachedAt = time.Now()
	r.mu.Unlock()

	r.log.Debug("registry: refreshed provider detection", zap.Int("providers", len(results)))
	return results
}

// InvalidateCache forces the next Detect call to re-probe PATH.
func (r *Registry) InvalidateCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached = nil
	r.cachedAt = time.Time{}
}

func (r *Registry) getCached() []Availability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cached == nil || time.Since(r.cachedAt) > r.ttl {
		return nil
	}
	return append([]Availability(nil), r.cached...)
}
