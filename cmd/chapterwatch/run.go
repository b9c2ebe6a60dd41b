package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/use-agent/chapterwatch/engine"
	"github.com/use-agent/chapterwatch/notify"
	"github.com/use-agent/chapterwatch/store"
	"github.com/use-agent/chapterwatch/tracker"
)

func init() {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Check every tracked series once, save new chapters and send the report",
		RunE:  runTracker,
	}
	rootCmd.AddCommand(runCmd)
}

// runTracker exits non-zero only when the store cannot be read or no
// engine works. Per-series failures are part of the report.
func runTracker(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := buildStack(cfg, nil)
	if err != nil {
		return fmt.Errorf("build engines: %w", err)
	}
	defer st.Close()

	p := &tracker.Pipeline{
		Tracker:  st.tracker,
		Store:    store.NewYAMLStore(cfg.Tracker.SeriesFile),
		Notifier: notify.NewDiscord(),
		Target:   cfg.Notify.DiscordWebhook,
	}

	report, err := p.Execute(ctx, uuid.NewString())
	if report != nil {
		fmt.Fprint(cmd.OutOrStdout(), report.Summary())
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, engine.ErrAutomationUnavailable), report == nil:
		return err
	case errors.Is(err, context.Canceled):
		slog.Warn("run interrupted", "error", err)
		return nil
	default:
		slog.Error("run finished with errors", "error", err)
		return nil
	}
}
