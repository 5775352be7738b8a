// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration, assembled from defaults, an
// optional YAML file, and environment variables.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Session   SessionConfig   `koanf:"session"`
	Auth      AuthConfig      `koanf:"auth"`
	Events    EventsConfig    `koanf:"events"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Logging   LoggingConfig   `koanf:"logging"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitRPS    int           `koanf:"rate_limit_rps"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// SessionConfig tunes the session manager's timers and thresholds.
type SessionConfig struct {
	// ServerID identifies this server in authentication results. Generated
	// at startup when empty.
	ServerID string `koanf:"server_id"`

	AutoProgressInterval   time.Duration `koanf:"auto_progress_interval"`
	IdleSweepInterval      time.Duration `koanf:"idle_sweep_interval"`
	IdleTimeout            time.Duration `koanf:"idle_timeout"`
	ActivityEventThreshold time.Duration `koanf:"activity_event_threshold"`
	UserActivityThreshold  time.Duration `koanf:"user_activity_threshold"`
}

// AuthConfig selects and tunes the token store and optional admin bootstrap.
type AuthConfig struct {
	// TokenStore is "memory" or "badger".
	TokenStore     string `koanf:"token_store"`
	TokenStorePath string `koanf:"token_store_path"`
	BcryptCost     int    `koanf:"bcrypt_cost"`

	// AdminUsername/AdminPassword seed an administrator account at startup
	// when no user with that name exists. Both empty disables bootstrap.
	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`
}

// EventsConfig tunes the in-process event bus.
type EventsConfig struct {
	BufferSize int64 `koanf:"buffer_size"`
}

// WebSocketConfig tunes the WebSocket session transport.
type WebSocketConfig struct {
	ReadBufferSize  int           `koanf:"read_buffer_size"`
	WriteBufferSize int           `koanf:"write_buffer_size"`
	MaxMessageSize  int64         `koanf:"max_message_size"`
	PingInterval    time.Duration `koanf:"ping_interval"`
	PongTimeout     time.Duration `koanf:"pong_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	SendQueueSize   int           `koanf:"send_queue_size"`
}

// LoggingConfig mirrors the logging package's init options.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// defaultConfig returns a Config with all defaults applied. File and
// environment layers override these.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8096,
			CORSOrigins:     []string{"*"},
			RateLimitRPS:    100,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Session: SessionConfig{
			ServerID:               "",
			AutoProgressInterval:   10 * time.Second,
			IdleSweepInterval:      5 * time.Minute,
			IdleTimeout:            5 * time.Minute,
			ActivityEventThreshold: 10 * time.Second,
			UserActivityThreshold:  60 * time.Second,
		},
		Auth: AuthConfig{
			TokenStore:     "memory",
			TokenStorePath: "/data/sable/tokens",
			BcryptCost:     12,
		},
		Events: EventsConfig{
			BufferSize: 256,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			MaxMessageSize:  64 << 10,
			PingInterval:    30 * time.Second,
			PongTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			SendQueueSize:   64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks constraints the type system cannot express.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("server.rate_limit_rps must not be negative, got %d", c.Server.RateLimitRPS)
	}
	if c.Session.AutoProgressInterval <= 0 {
		return fmt.Errorf("session.auto_progress_interval must be positive, got %s", c.Session.AutoProgressInterval)
	}
	if c.Session.IdleSweepInterval <= 0 {
		return fmt.Errorf("session.idle_sweep_interval must be positive, got %s", c.Session.IdleSweepInterval)
	}
	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("session.idle_timeout must be positive, got %s", c.Session.IdleTimeout)
	}

	switch c.Auth.TokenStore {
	case "memory":
	case "badger":
		if c.Auth.TokenStorePath == "" {
			return fmt.Errorf("auth.token_store_path is required when auth.token_store is badger")
		}
	default:
		return fmt.Errorf("auth.token_store must be memory or badger, got %q", c.Auth.TokenStore)
	}

	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost must be between 4 and 31, got %d", c.Auth.BcryptCost)
	}
	if c.Auth.AdminUsername != "" && len(c.Auth.AdminPassword) < 8 {
		return fmt.Errorf("auth.admin_password must be at least 8 characters when auth.admin_username is set")
	}

	if c.WebSocket.PongTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("websocket.pong_timeout (%s) must exceed websocket.ping_interval (%s)",
			c.WebSocket.PongTimeout, c.WebSocket.PingInterval)
	}
	return nil
}
