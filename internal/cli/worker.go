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
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run scheduled temperature checks",
	Long: `Run the worker: it reconciles the periodic task table with the alert
configs, then executes every enabled task on its interval until interrupted.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().String("metrics-listen", "", "Serve /metrics on this address (disabled when empty)")
}

func runWorker(cmd *cobra.Command, _ []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	logger := a.logger

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	beat, err := startWorker(ctx, a)
	if err != nil {
		return err
	}
	defer beat.Stop()

	var metricsSrv *http.Server
	if addr, _ := cmd.Flags().GetString("metrics-listen"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", a.metrics.Handler())
		metricsSrv = &http.Server{Addr: addr, Handler: mux, ReadTimeout: 10 * time.Second}
		go func() {
			logger.Info("worker metrics listening", "listen", addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "error", err)
			}
		}()
	}

	fmt.Fprintf(os.Stderr, "Weather Alert worker running with %d scheduled tasks\n", len(beat.Scheduled()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutting down", "signal", sig.String())
	cancel()

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	logger.Info("worker stopped")
	return nil
}
