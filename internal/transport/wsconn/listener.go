// Package wsconn implements the local WebSocket transport (C1): an
// http.Server with a single upgrade endpoint that validates the Host
// header against an allowlist (Vite-style host protection) and applies a
// CORS origin allowlist for cross-origin clients, then hands each
// upgraded connection to the session layer.
package wsconn

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/getpaseo/paseod/internal/config"
	"github.com/getpaseo/paseod/internal/logging"
	"github.com/getpaseo/paseod/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// SessionHandler is invoked once per accepted connection with a ready
// Conn; the caller owns constructing and running the Session.
type SessionHandler func(ctx context.Context, clientID string, conn *Conn, remoteAddr string)

// Listener is the local WebSocket server.
type Listener struct {
	cfg     config.ServerConfig
	log     *logging.Logger
	onConn  SessionHandler
	srv     *http.Server
	mux     *http.ServeMux
	upgrade websocket.Upgrader
}

// New constructs a Listener bound to cfg.Host:cfg.Port. onConn is called
// for every successfully upgraded and auth-checked connection.
func New(cfg config.ServerConfig, auth config.AuthConfig, log *logging.Logger, onConn SessionHandler) *Listener {
	allowedHosts := make(map[string]bool, len(cfg.AllowedHosts))
	for _, h := range cfg.AllowedHosts {
		allowedHosts[h] = true
	}
	allowedOrigins := make(map[string]bool, len(cfg.CORSOrigins))
	for _, o := range cfg.CORSOrigins {
		allowedOrigins[o] = true
	}

	l := &Listener{
		cfg: cfg,
		log: log.With(zap.String("component", "wsconn")),
		upgrade: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return allowedOrigins[origin]
			},
		},
		onConn: onConn,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", l.handleUpgrade(allowedHosts, auth))
	l.mux = mux
	l.srv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: mux,
	}
	return l
}

// Handle registers an additional HTTP route (e.g. the download-token
// endpoint) on the same listener, alongside the WebSocket upgrade path.
func (l *Listener) Handle(pattern string, handler http.Handler) {
	l.mux.Handle(pattern, handler)
}

func (l *Listener) handleUpgrade(allowedHosts map[string]bool, auth config.AuthConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(allowedHosts) > 0 && !allowedHosts[stripPort(r.Host)] {
			http.Error(w, "host not allowed", http.StatusForbidden)
			return
		}
		if auth.Username != "" {
			user, pass, ok := r.BasicAuth()
			if !ok || user != auth.Username || pass != auth.Password {
				w.Header().Set("WWW-Authenticate", `Basic realm="`+auth.BasicAuthRealm+`"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		raw, err := l.upgrade.Upgrade(w, r, nil)
		if err != nil {
			l.log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		conn := newConn(raw)
		clientID := uuid.NewString()
		l.log.Debug("client connected", zap.String("client_id", clientID), zap.String("remote_addr", r.RemoteAddr))

		if l.onConn != nil {
			l.onConn(r.Context(), clientID, conn, r.RemoteAddr)
		}
	}
}

func stripPort(hostport string) string {
	for i := 0; i < len(hostport); i++ {
		if hostport[i] == ':' {
			return hostport[:i]
		}
	}
	return hostport
}

// ListenAndServe blocks serving connections until ctx is canceled.
func (l *Listener) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return l.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

var _ session.Conn = (*Conn)(nil)
