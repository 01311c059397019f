package events

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/getpaseo/paseod/internal/logging"
)

// MemoryBus is the in-process Bus implementation: the default when the
// daemon runs standalone with no shared broker configured.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string][]*memorySub
	log    *logging.Logger
	closed bool
}

type memorySub struct {
	bus     *MemoryBus
	subject string
	pattern *regexp.Regexp
	handler Handler

	mu     sync.Mutex
	active bool
}

func (s *memorySub) Unsubscribe() error {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	subs := s.bus.subs[s.subject]
	for i, sub := range subs {
		if sub == s {
			s.bus.subs[s.subject] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	return nil
}

// NewMemoryBus constructs an empty MemoryBus.
func NewMemoryBus(log *logging.Logger) *MemoryBus {
	return &MemoryBus{subs: make(map[string][]*memorySub), log: log}
}

// Publish delivers event to every subscription whose subject pattern
// matches, each in its own goroutine so one slow handler never blocks
// Publish or another subscriber. Unlike instance.Instance's synchronous
// onEvent fan-out, delivery order across handlers is not kept.
func (b *MemoryBus) Publish(ctx context.Context, subject string, event *Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("events: bus is closed")
	}

	for pattern, subs := range b.subs {
		if !subjectMatches(subject, pattern) {
			continue
		}
		for _, sub := range subs {
			sub.mu.Lock()
			active := sub.active
			sub.mu.Unlock()
			if !active {
				continue
			}
			go func(s *memorySub, e *Event) {
				if err := s.handler(ctx, e); err != nil {
					b.log.Warn("event handler error", zap.String("subject", subject), zap.Error(err))
				}
			}(sub, event)
		}
	}
	return nil
}

// Subscribe registers handler against a subject pattern. Patterns support
// NATS-style wildcards: "*" for one token, ">" for the remaining tokens.
func (b *MemoryBus) Subscribe(subject string, handler Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("events: bus is closed")
	}

	sub := &memorySub{bus: b, subject: subject, pattern: compileSubjectPattern(subject), handler: handler, active: true}
	b.subs[subject] = append(b.subs[subject], sub)
	return sub, nil
}

// Close deactivates every subscription and discards them.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for _, subs := range b.subs {
		for _, sub := range subs {
			sub.mu.Lock()
			sub.active = false
			sub.mu.Unlock()
		}
	}
	b.subs = make(map[string][]*memorySub)
}

func subjectMatches(subject, pattern string) bool {
	if !strings.ContainsAny(pattern, "*>") {
		return subject == pattern
	}
	re := compileSubjectPattern(pattern)
	return re != nil && re.MatchString(subject)
}

func compileSubjectPattern(pattern string) *regexp.Regexp {
	if !strings.ContainsAny(pattern, "*>") {
		return nil
	}
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\*`, `[^.]+`)
	escaped = strings.ReplaceAll(escaped, `\>`, `.+`)
	re, err := regexp.Compile("^" + escaped + "$")
	if err != nil {
		return nil
	}
	return re
}

var _ Bus = (*MemoryBus)(nil)
