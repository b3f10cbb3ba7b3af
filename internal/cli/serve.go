package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mvarela/gapfill/internal/archive"
	"github.com/mvarela/gapfill/internal/auth"
	"github.com/mvarela/gapfill/internal/backfill"
	"github.com/mvarela/gapfill/internal/database"
	"github.com/mvarela/gapfill/internal/events"
	"github.com/mvarela/gapfill/internal/jobs"
	"github.com/mvarela/gapfill/internal/scheduler"
	"github.com/mvarela/gapfill/internal/server"
	"github.com/mvarela/gapfill/internal/storage"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Gapfill server",
	Long: `Start the HTTP API, the event bus and the run scheduler. Runs
until interrupted; SIGINT or SIGTERM triggers a graceful shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	store := backfill.NewStore(db)

	registry, err := jobs.Load(cfg.Jobs.Path, cfg.Jobs.Strict)
	if err != nil {
		return fmt.Errorf("loading job catalog: %w", err)
	}

	bus := events.NewBus(db, events.BusOptions{
		ProcessInterval: cfg.Events.ProcessInterval,
		CleanupInterval: cfg.Events.CleanupInterval,
		Retention:       cfg.Events.Retention,
	})

	var finalizer scheduler.Finalizer
	if cfg.Archive.Enabled {
		backend, err := storage.NewBackend(context.Background(), cfg.Archive)
		if err != nil {
			return fmt.Errorf("creating archive backend: %w", err)
		}
		finalizer = archive.New(backend, cfg.Archive.Backend)
		log.Info().
			Str("backend", cfg.Archive.Backend).
			Str("compression", cfg.Archive.Compression).
			Msg("Archiving enabled")
	}

	sched := scheduler.New(store, bus, scheduler.EventOnlyExecutor(), finalizer, cfg.Scheduler)

	var authService *auth.Service
	if cfg.Auth.Enabled {
		authService = auth.NewService(cfg.Auth)
	}

	srv := server.New(cfg, store, registry, bus, authService)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus.Start(ctx)
	defer bus.Stop()

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown failed")
		}
	}

	return nil
}
