package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/devid8642/weather-alert/internal/server"
	"github.com/devid8642/weather-alert/pkg/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "Listen address (default from config)")
	serveCmd.Flags().Bool("with-worker", false, "Also run the periodic task worker in this process")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	logger := a.logger

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.Listen = listen
	}

	apiServer, err := server.NewServer(a.store, a.sync, a.alerts, server.Config{
		WebhookSecret: cfg.Webhook.Secret,
		APIBaseURL:    cfg.Frontend.APIBaseURL,
		Version:       Version,
		RateLimit:     cfg.Server.RateLimit,
		MaxBodySize:   cfg.Server.MaxBodySize,
		Metrics:       a.metrics,
	}, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	withWorker, _ := cmd.Flags().GetBool("with-worker")
	if withWorker {
		beat, err := startWorker(ctx, a)
		if err != nil {
			return err
		}
		defer beat.Stop()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      apiServer.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api started", "listen", cfg.Server.Listen, "worker", withWorker)
		fmt.Fprintf(os.Stderr, "Weather Alert API listening on %s\n", cfg.Server.Listen)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("api stopped")
	return nil
}

// startWorker registers the task handlers, repairs the periodic task table
// and starts the beat.
func startWorker(ctx context.Context, a *app) (*worker.Beat, error) {
	registry := worker.NewRegistry()
	if err := worker.RegisterDefaults(registry, a.evaluator); err != nil {
		return nil, err
	}

	if _, err := a.sync.Reconcile(ctx); err != nil {
		return nil, err
	}

	beat := worker.NewBeat(a.store, registry, worker.BeatConfig{
		SyncInterval: a.cfg.Scheduler.SyncInterval,
		TaskTimeout:  a.cfg.Scheduler.TaskTimeout,
	}, a.metrics, a.logger)
	if err := beat.Start(ctx); err != nil {
		return nil, fmt.Errorf("start beat: %w", err)
	}
	return beat, nil
}
