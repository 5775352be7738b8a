// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

/*
Package config provides centralized configuration management for Sable.

Configuration is assembled in three layers with Koanf v2:

 1. Defaults: built-in sensible defaults for every setting
 2. Config file: optional YAML file (config.yaml) for persistent settings
 3. Environment variables: override any setting, highest priority

# Configuration Structure

Settings are organized into logical groups:

  - ServerConfig: HTTP listener (host, port, CORS, rate limits, timeouts)
  - SessionConfig: session manager timers (auto-progress, idle sweep, activity thresholds)
  - AuthConfig: token store selection (memory or badger) and bcrypt cost
  - EventsConfig: in-process event bus buffering
  - WebSocketConfig: WebSocket transport tuning (ping/pong, buffers, send queue)
  - LoggingConfig: zerolog level, format, caller reporting
  - MetricsConfig: Prometheus endpoint toggle

# Environment Variables

Every key can be set via a SABLE_-prefixed environment variable. The first
underscore after the prefix separates the section from the key:

	SABLE_SERVER_PORT=8096
	SABLE_SESSION_IDLE_TIMEOUT=5m
	SABLE_AUTH_TOKEN_STORE=badger
	SABLE_AUTH_TOKEN_STORE_PATH=/data/sable/tokens
	SABLE_LOGGING_LEVEL=debug

SABLE_CONFIG_PATH overrides the config file search path.

# Usage Example

	cfg, err := config.Load()
	if err != nil {
	    log.Fatalf("Failed to load config: %v", err)
	}
	fmt.Printf("Listening on %s:%d\n", cfg.Server.Host, cfg.Server.Port)

# Thread Safety

The Config struct is immutable after Load() returns, making it safe for
concurrent access from multiple goroutines without synchronization.
*/
package config
