// Package main provides the entry point for the SCIM provisioning server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/elimity-com/scim"

	"github.com/visibuild/scimitar/internal/config"
	"github.com/visibuild/scimitar/internal/database"
	"github.com/visibuild/scimitar/internal/domain"
	"github.com/visibuild/scimitar/internal/observability"
	"github.com/visibuild/scimitar/internal/resourcetypes"
	"github.com/visibuild/scimitar/internal/scimprov"
	"github.com/visibuild/scimitar/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("scimitar server starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Register the built-in resource types.
	registry := domain.NewRegistry()
	if err := resourcetypes.Register(registry); err != nil {
		return fmt.Errorf("register resource types: %w", err)
	}

	// Set up metrics.
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("scimitar")
	}

	// Wire one provider per resource type.
	providerOpts := []scimprov.ProviderOption{
		scimprov.WithLogger(logger),
		scimprov.WithPageSizes(cfg.SCIM.DefaultPageSize, cfg.SCIM.MaxPageSize),
	}
	if metrics != nil {
		providerOpts = append(providerOpts, scimprov.WithMetrics(metrics))
	}

	userType, ok := registry.Lookup("User")
	if !ok {
		return fmt.Errorf("resource type User not registered")
	}
	groupType, ok := registry.Lookup("Group")
	if !ok {
		return fmt.Errorf("resource type Group not registered")
	}

	scimResourceTypes := []scim.ResourceType{
		resourcetypes.UserResourceType(scimprov.NewProvider(db, userType, providerOpts...)),
		resourcetypes.GroupResourceType(scimprov.NewProvider(db, groupType, providerOpts...)),
	}

	// Create the HTTP server.
	httpSrv, err := server.New(cfg, db, scimResourceTypes, logger, metrics)
	if err != nil {
		return fmt.Errorf("create HTTP server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	logger.Info().
		Str("http_address", cfg.Server.HTTPAddress()).
		Str("scim_base_path", cfg.SCIM.BasePath).
		Msg("scimitar is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down scimitar")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("scimitar shutdown complete")
	return nil
}
