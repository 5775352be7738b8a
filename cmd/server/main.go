// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sablecast/sable/internal/api"
	"github.com/sablecast/sable/internal/authstore"
	"github.com/sablecast/sable/internal/config"
	"github.com/sablecast/sable/internal/devices"
	"github.com/sablecast/sable/internal/events"
	"github.com/sablecast/sable/internal/library"
	"github.com/sablecast/sable/internal/logging"
	"github.com/sablecast/sable/internal/models"
	"github.com/sablecast/sable/internal/session"
	"github.com/sablecast/sable/internal/supervisor"
	"github.com/sablecast/sable/internal/supervisor/services"
	"github.com/sablecast/sable/internal/users"
	ws "github.com/sablecast/sable/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	serverID := cfg.Session.ServerID
	if serverID == "" {
		serverID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	logging.Info().
		Str("server_id", serverID).
		Str("token_store", cfg.Auth.TokenStore).
		Msg("Starting Sable")

	// Token store: Badger survives restarts, memory does not.
	var (
		authRepo   session.AuthenticationRepository
		badgerRepo *authstore.BadgerRepository
		closeStore func() error
	)
	switch cfg.Auth.TokenStore {
	case "badger":
		repo, closer, err := authstore.OpenBadgerRepository(cfg.Auth.TokenStorePath)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Auth.TokenStorePath).Msg("Failed to open token store")
		}
		authRepo, badgerRepo, closeStore = repo, repo, closer
		logging.Info().Str("path", cfg.Auth.TokenStorePath).Msg("Durable token store opened")
	default:
		authRepo = authstore.NewMemoryRepository()
		logging.Warn().Msg("In-memory token store: access tokens will not survive a restart")
	}
	defer func() {
		if closeStore == nil {
			return
		}
		if err := closeStore(); err != nil {
			logging.Error().Err(err).Msg("Error closing token store")
		}
	}()

	userManager := users.NewManager(cfg.Auth.BcryptCost)
	userData := users.NewUserDataStore()
	catalog := library.New()
	mixer := library.NewMixer(catalog)
	mediaSources := library.NewMediaSources()
	deviceRegistry := devices.NewRegistry()

	if cfg.Auth.AdminUsername != "" {
		if err := seedAdmin(userManager, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
			logging.Fatal().Err(err).Msg("Failed to seed administrator account")
		}
	}

	bus := events.NewBus(events.Config{BufferSize: cfg.Events.BufferSize})
	hub := ws.NewHub()

	manager := session.NewManager(
		session.Config{
			ServerID:               serverID,
			AutoProgressInterval:   cfg.Session.AutoProgressInterval,
			IdleSweepInterval:      cfg.Session.IdleSweepInterval,
			IdleTimeout:            cfg.Session.IdleTimeout,
			ActivityEventThreshold: cfg.Session.ActivityEventThreshold,
			UserActivityThreshold:  cfg.Session.UserActivityThreshold,
		},
		session.Dependencies{
			UserManager:        userManager,
			UserDataManager:    userData,
			LibraryManager:     catalog,
			MusicManager:       mixer,
			MediaSourceManager: mediaSources,
			DeviceManager:      deviceRegistry,
			AuthRepo:           authRepo,
			ImageProcessor:     library.NewImageTagger(),
			Events:             bus,
		},
		ws.NewFactory(hub),
	)

	// Device renames propagate into the live session snapshots.
	deviceRegistry.OnOptionsUpdated(manager.OnDeviceOptionsUpdated)

	wsCfg := ws.Config{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		MaxMessageSize:  cfg.WebSocket.MaxMessageSize,
		PingInterval:    cfg.WebSocket.PingInterval,
		PongTimeout:     cfg.WebSocket.PongTimeout,
		WriteTimeout:    cfg.WebSocket.WriteTimeout,
		SendQueueSize:   cfg.WebSocket.SendQueueSize,
	}
	wsHandler := ws.NewHandler(manager, hub, wsCfg)

	handler := api.NewHandler(manager)
	middleware := api.NewMiddleware(api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		RateLimitRPS:       cfg.Server.RateLimitRPS,
	}, manager)
	router := api.NewRouter(handler, middleware, wsHandler, api.RouterConfig{
		MetricsEnabled: cfg.Metrics.Enabled,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Supervisor logging goes through slog; the adapter bridges to zerolog.
	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	if badgerRepo != nil {
		tree.AddDataService(services.NewTokenStoreGCService(badgerRepo, 5*time.Minute))
	}
	tree.AddMessagingService(services.NewEventBroadcastService(bus, hub))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

		// Tell connected clients before tearing their sockets down.
		notifyCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		if err := manager.SendServerShutdownNotification(notifyCtx); err != nil {
			logging.Warn().Err(err).Msg("Shutdown notification failed")
		}
		done()

		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	// The tree is down; dispose live sessions, then the transports under them.
	manager.Dispose()
	hub.Shutdown()
	if err := bus.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing event bus")
	}

	logging.Info().Msg("Sable stopped gracefully")
}

// seedAdmin creates the configured administrator account unless a user with
// that name already exists.
func seedAdmin(userManager *users.Manager, username, password string) error {
	existing, err := userManager.GetUserByName(context.Background(), username)
	if err != nil {
		return fmt.Errorf("look up admin user: %w", err)
	}
	if existing != nil {
		return nil
	}

	_, err = userManager.AddUser(models.User{
		Name: username,
		Policy: models.UserPolicy{
			IsAdministrator:                 true,
			EnableRemoteControlOfOtherUsers: true,
			EnableAllDevices:                true,
		},
	}, password)
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	logging.Info().Str("user", username).Msg("Administrator account seeded")
	return nil
}
