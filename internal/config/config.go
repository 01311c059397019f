// Package config loads paseod's configuration from defaults, an optional
// config.yaml, and PASEO_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/getpaseo/paseod/internal/logging"
)

// Config holds every configuration section paseod needs.
type Config struct {
	Home       string           `mapstructure:"home"`
	Server     ServerConfig     `mapstructure:"server"`
	Relay      RelayConfig      `mapstructure:"relay"`
	Auth       AuthConfig       `mapstructure:"auth"`
	MCP        MCPConfig        `mapstructure:"mcp"`
	Logging    logging.Config   `mapstructure:"logging"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Events     EventsConfig     `mapstructure:"events"`
}

// ServerConfig configures the local WebSocket listener (C1).
type ServerConfig struct {
	Host            string   `mapstructure:"host"`
	Port            int      `mapstructure:"port"`
	AllowedHosts    []string `mapstructure:"allowedHosts"`
	CORSOrigins     []string `mapstructure:"corsOrigins"`
	MaxFrameBytes   int      `mapstructure:"maxFrameBytes"`
	OutboxCapacity  int      `mapstructure:"outboxCapacity"`
	SnapshotTimeout int      `mapstructure:"snapshotTimeoutSeconds"`
}

func (s ServerConfig) SnapshotTimeoutDuration() time.Duration {
	return time.Duration(s.SnapshotTimeout) * time.Second
}

// RelayConfig configures the outbound relay transport (C1/C10).
type RelayConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	ReconnectMaxSec int    `mapstructure:"reconnectMaxSeconds"`
}

// AuthConfig configures local basic-auth for the WebSocket and MCP endpoints.
type AuthConfig struct {
	BasicAuthRealm string `mapstructure:"basicAuthRealm"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
}

// MCPConfig configures the MCP tool-surface HTTP listener (C8).
type MCPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Bearer  string `mapstructure:"bearerToken"`
}

// AgentConfig configures agent defaults.
type AgentConfig struct {
	DefaultCwd         string `mapstructure:"defaultCwd"`
	CatalogTTLSeconds  int    `mapstructure:"catalogTtlSeconds"`
	CleanupIntervalSec int    `mapstructure:"cleanupIntervalSeconds"`
}

func (a AgentConfig) CatalogTTL() time.Duration {
	return time.Duration(a.CatalogTTLSeconds) * time.Second
}

// SupervisorConfig configures process-guard / lifecycle-intent handling (C11).
type SupervisorConfig struct {
	Standalone   bool `mapstructure:"standalone"`
	OwnerPID     int  `mapstructure:"ownerPid"`
	ShutdownSecs int  `mapstructure:"shutdownGraceSeconds"`
}

func (s SupervisorConfig) ShutdownGrace() time.Duration {
	return time.Duration(s.ShutdownSecs) * time.Second
}

// EventsConfig selects the cross-cutting event bus backend (C-events): the
// in-memory bus by default, or a shared NATS broker when a daemon instance
// wants its agent-lifecycle notifications visible to other processes.
type EventsConfig struct {
	Backend       string `mapstructure:"backend"`
	NATSURL       string `mapstructure:"natsUrl"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// Load reads configuration from defaults, config.yaml (cwd, /etc/paseo, or
// configPath if given) and PASEO_-prefixed env vars.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PASEO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/paseo/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if cfg.Home == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		cfg.Home = filepath.Join(home, ".paseo")
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 7777)
	v.SetDefault("server.allowedHosts", []string{"localhost", "127.0.0.1"})
	v.SetDefault("server.corsOrigins", []string{})
	v.SetDefault("server.maxFrameBytes", 10*1024*1024)
	v.SetDefault("server.outboxCapacity", 256)
	v.SetDefault("server.snapshotTimeoutSeconds", 10)

	v.SetDefault("relay.enabled", false)
	v.SetDefault("relay.endpoint", "")
	v.SetDefault("relay.reconnectMaxSeconds", 30)

	v.SetDefault("auth.basicAuthRealm", "paseod")
	v.SetDefault("auth.username", "")
	v.SetDefault("auth.password", "")

	v.SetDefault("mcp.enabled", true)
	v.SetDefault("mcp.port", 7778)
	v.SetDefault("mcp.bearerToken", "")

	v.SetDefault("agent.defaultCwd", "")
	v.SetDefault("agent.catalogTtlSeconds", 300)
	v.SetDefault("agent.cleanupIntervalSeconds", 60)

	v.SetDefault("supervisor.standalone", true)
	v.SetDefault("supervisor.ownerPid", 0)
	v.SetDefault("supervisor.shutdownGraceSeconds", 10)

	v.SetDefault("events.backend", "memory")
	v.SetDefault("events.natsUrl", "nats://127.0.0.1:4222")
	v.SetDefault("events.clientId", "paseod")
	v.SetDefault("events.maxReconnects", 10)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.outputPath", "stdout")
}

func validate(cfg *Config) error {
	var errs []string
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if cfg.MCP.Enabled && (cfg.MCP.Port <= 0 || cfg.MCP.Port > 65535) {
		errs = append(errs, "mcp.port must be between 1 and 65535 when mcp.enabled")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
