// Package mcpsurface exposes agent control as MCP tools, so any agent
// (including one paseod is itself supervising) can manage other agents:
// list, create, prompt, inspect activity, kill, and change mode/model, plus
// resolve a pending permission request. SSE and Streamable HTTP transports
// are served off one mux for broad client compatibility.
package mcpsurface

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/getpaseo/paseod/internal/logging"
)

// AuthConfig gates every MCP HTTP request behind basic or bearer auth.
type AuthConfig struct {
	Mode   string // "basic", "bearer", or "" to disable
	Bearer string
	User   string
	Pass   string
}

// Config holds the MCP surface's listen and auth configuration.
type Config struct {
	Addr string
	Auth AuthConfig
}

// Server wraps the SSE and Streamable HTTP transports behind one
// auth-gated mux.
type Server struct {
	cfg        Config
	log        *logging.Logger
	manager    AgentManager
	httpServer *http.Server

	mu      sync.Mutex
	running bool
}

// New constructs a Server. manager is the subset of the agent manager's
// operations the tool handlers call into.
func New(cfg Config, manager AgentManager, log *logging.Logger) *Server {
	return &Server{cfg: cfg, manager: manager, log: log.With(zap.String("component", "mcpsurface"))}
}

// Start builds the MCP server, registers every tool, and begins serving.
// It returns once the listener is up; later Serve errors are only logged.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("mcp surface already running")
	}
	s.running = true
	s.mu.Unlock()

	mcpServer := server.NewMCPServer("paseod", "1.0.0", server.WithToolCapabilities(true))
	registerTools(mcpServer, s.manager, s.log)

	sseServer := server.NewSSEServer(mcpServer)
	streamableServer := server.NewStreamableHTTPServer(mcpServer, server.WithEndpointPath("/mcp"))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	mux.Handle("/mcp", streamableServer)

	s.httpServer = &http.Server{Addr: s.cfg.Addr, Handler: withAuth(s.cfg.Auth, mux)}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("mcp surface stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	running := s.running
	s.running = false
	s.mu.Unlock()
	if !running || s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func withAuth(auth AuthConfig, next http.Handler) http.Handler {
	if auth.Mode == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch auth.Mode {
		case "basic":
			user, pass, ok := r.BasicAuth()
			if !ok || user != auth.User || pass != auth.Pass {
				w.Header().Set("WWW-Authenticate", `Basic realm="paseod"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		case "bearer":
			if r.Header.Get("Authorization") != "Bearer "+auth.Bearer {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
