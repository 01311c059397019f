// Package downloadtoken implements the single-use, TTL-bounded tokens the
// daemon mints so a client can fetch a file over plain HTTP instead of
// having it base64'd through the WebSocket stream. A token is consumed the
// first time it is redeemed; an in-memory map with a periodic GC sweep
// evicts anything that expired unredeemed.
package downloadtoken

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/getpaseo/paseod/internal/logging"
)

// entry is one minted token's redemption target and expiry.
type entry struct {
	path      string
	expiresAt time.Time
}

// Store mints and redeems download tokens.
type Store struct {
	log *logging.Logger
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]entry
}

// New constructs a Store whose tokens live for ttl after minting.
func New(ttl time.Duration, log *logging.Logger) *Store {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Store{log: log, ttl: ttl, entries: make(map[string]entry)}
}

// Mint issues a new token redeemable for path exactly once, before ttl
// elapses.
func (s *Store) Mint(path string) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	s.mu.Lock()
	s.entries[token] = entry{path: path, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return token, nil
}

// redeem consumes token, returning its target path if it was valid and
// unexpired.
func (s *Store) redeem(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[token]
	delete(s.entries, token) // consume-on-use regardless of outcome
	if !ok || time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.path, true
}

// GC runs a periodic sweep evicting expired, unredeemed tokens until ctx
// is canceled.
func (s *Store) GC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, token)
		}
	}
}

// Handler serves GET /api/files/download?token=... by streaming the
// token's target file, consuming the token on first use.
func (s *Store) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusForbidden)
			return
		}

		path, ok := s.redeem(token)
		if !ok {
			http.Error(w, "invalid or expired token", http.StatusForbidden)
			return
		}

		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				http.Error(w, "file not found", http.StatusNotFound)
				return
			}
			http.Error(w, "failed to open file", http.StatusInternalServerError)
			return
		}
		defer f.Close()

		w.Header().Set("Content-Type", "application/octet-stream")
		if _, err := io.Copy(w, f); err != nil {
			s.log.Warn("download stream interrupted", zap.Error(err))
		}
	}
}
