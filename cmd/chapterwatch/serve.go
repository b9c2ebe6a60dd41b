package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/chapterwatch/api"
	"github.com/use-agent/chapterwatch/api/handler"
	"github.com/use-agent/chapterwatch/metrics"
	"github.com/use-agent/chapterwatch/notify"
	"github.com/use-agent/chapterwatch/store"
	"github.com/use-agent/chapterwatch/tracker"
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API with on-demand checks and runs",
		RunE:  runServe,
	}
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	slog.Info("chapterwatch starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"backend", cfg.Fetch.Backend,
	)
	if cfg.Auth.Enabled && len(cfg.Auth.APIKeys) == 0 {
		slog.Warn("auth enabled without CHAPTERWATCH_API_KEYS, API is open")
	}

	m := metrics.New()
	st, err := buildStack(cfg, m)
	if err != nil {
		return fmt.Errorf("build engines: %w", err)
	}
	defer st.Close()

	// Runs outlive the request that starts them but not the server.
	baseCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	seriesStore := store.NewYAMLStore(cfg.Tracker.SeriesFile)
	runs := handler.NewRuns(baseCtx, &tracker.Pipeline{
		Tracker:  st.tracker,
		Store:    seriesStore,
		Notifier: notify.NewDiscord(),
		Target:   cfg.Notify.DiscordWebhook,
	})

	router := api.NewRouter(baseCtx, cfg, api.Deps{
		Engines:       st.fetcher.Engines(),
		ActiveRenders: st.activeRenders,
		Store:         seriesStore,
		Checker:       st.tracker,
		Runs:          runs,
		Metrics:       m,
		StartTime:     time.Now(),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// A canceled run still saves what it finished.
	cancelRuns()
	runs.Wait()

	slog.Info("chapterwatch stopped")
	return nil
}
