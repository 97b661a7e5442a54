// Loadpilotd is the LoadPilot learning daemon.
//
// It watches customer conversations and usage events from the freight
// analytics assistant, learns terminology, preferences, and habits, and
// serves the learned knowledge back over a JSON API.
//
// Usage:
//
//	# Start with defaults (in-memory stores)
//	loadpilotd
//
//	# Configure via file and environment
//	loadpilotd --config /etc/loadpilot/config.yaml
//	DATABASE_URL=postgres://... SERVER_PORT=8780 loadpilotd
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/loadpilot/loadpilot/internal/config"
	httpserver "github.com/loadpilot/loadpilot/internal/http"
	"github.com/loadpilot/loadpilot/internal/learning"
	"github.com/loadpilot/loadpilot/internal/logging"
	"github.com/loadpilot/loadpilot/internal/store/postgres"
	"github.com/loadpilot/loadpilot/internal/usage"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "loadpilotd",
		Short:         "LoadPilot customer learning daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("loadpilotd\n")
			fmt.Printf("Version:    %s\n", version)
			fmt.Printf("Commit:     %s\n", gitCommit)
			fmt.Printf("Build Date: %s\n", buildDate)
		},
	})

	return root
}

// run starts loadpilotd and blocks until ctx is cancelled.
//
//  1. Loads and validates configuration
//  2. Initializes the logger
//  3. Opens stores (PostgreSQL when configured, in-memory otherwise)
//  4. Wires the learning engine and usage tracker
//  5. Starts the HTTP server
//  6. Performs graceful shutdown on context cancellation
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logging.Sync(logger)

	logger.Info("starting loadpilotd",
		zap.String("version", version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	var (
		learningStore learning.Store
		eventStore    usage.EventStore
	)
	if cfg.Database.URL != "" {
		pg, err := postgres.New(ctx, cfg.Database.URL, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		learningStore = pg
		eventStore = pg
		logger.Info("using postgresql stores")
	} else {
		learningStore = learning.NewMemoryStore()
		eventStore = usage.NewMemoryEventStore()
		logger.Warn("no database.url configured, learned knowledge will not survive restarts")
	}

	engine := learning.NewEngine(learningStore, logger.Named("learning"))
	tracker := usage.NewTracker(eventStore, logger.Named("usage"))

	server, err := httpserver.NewServer(engine, tracker, logger.Named("http"), &httpserver.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
