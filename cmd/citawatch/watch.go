package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/citawatch/internal/config"
	"github.com/nao1215/citawatch/internal/gate"
	"github.com/nao1215/citawatch/internal/notify"
	"github.com/nao1215/citawatch/internal/scheduler"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Check every target in rounds until interrupted",
		Long: `Watch runs rounds over the configured targets until Ctrl+C.

Each target check opens a fresh browser, navigates to the calendar and
classifies it. A new set of free slots is sent to Telegram once; the same
set is not repeated. Blank pages are retried through the configured proxy
and reported after consecutive blocked rounds.

Examples:
  # Watch until interrupted
  citawatch watch

  # Run three rounds and exit
  citawatch watch --rounds 3

  # Show the browser window
  citawatch watch --headed`,
		Args: cobra.NoArgs,
		RunE: runWatchCmd,
	}

	cmd.Flags().IntP("rounds", "r", 0, "Number of rounds to run (0 = until interrupted)")
	cmd.Flags().Bool("headed", false, "Show the browser window")
	cmd.Flags().Bool("no-history", false, "Do not record observations in the history database")

	return cmd
}

// runWatchCmd executes the watch command.
func runWatchCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}
	if cfg.MaxRounds, err = cmd.Flags().GetInt("rounds"); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, slog.LevelInfo)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runWatch(ctx, cfg, cmd.OutOrStdout(), logger)
}

// applyRunFlags copies the flags shared by watch and check into cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	headed, err := cmd.Flags().GetBool("headed")
	if err != nil {
		return err
	}
	noHistory, err := cmd.Flags().GetBool("no-history")
	if err != nil {
		return err
	}
	cfg.Headed = headed
	cfg.SaveToDB = !noHistory
	return nil
}

// runWatch builds the pipeline and runs the scheduler until ctx ends or
// the round cap is reached.
func runWatch(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	channel, err := buildChannel(cfg, out, logger)
	if err != nil {
		return err
	}
	eng, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Error("failed to release proxy pool", "error", err)
		}
	}()

	return watchWith(ctx, cfg, eng.policy, channel, out, logger)
}

// watchWith runs the scheduler over checker. It is separate from runWatch
// so that tests can replace the browser pipeline.
func watchWith(ctx context.Context, cfg *config.Config, checker scheduler.Checker, channel notify.Channel, out io.Writer, logger *slog.Logger) error {
	g, err := gate.New(cfg.GateConfig(), channel, gate.WithLogger(logger))
	if err != nil {
		return err
	}

	opts := []scheduler.Option{
		scheduler.WithLogger(logger),
		scheduler.WithObserver(g),
		scheduler.WithRecorder(printRecorder(out)),
	}
	db, err := openHistory(cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		opts = append(opts, scheduler.WithRecorder(historyRecorder(db)))
	}

	s, err := scheduler.New(cfg.SchedulerConfig(), cfg.Targets, checker, opts...)
	if err != nil {
		return err
	}

	if err := channel.SendText(ctx, notify.StartMessage(targetNames(cfg.Targets))); err != nil {
		logger.Warn("failed to send start message", "error", err)
	}
	logger.Info("watch started", "targets", targetNames(cfg.Targets), "rounds", cfg.MaxRounds)

	if err := s.Run(ctx); err != nil {
		return err
	}
	logger.Info("watch stopped")
	return nil
}
