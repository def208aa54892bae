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
	"github.com/nao1215/citawatch/internal/scheduler"
)

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [target...]",
		Short: "Check targets once and print the result",
		Long: `Check runs a single pass over the named targets (all when none is named)
and prints one line per target. Nothing is sent unless --notify is given.

Examples:
  # Check every target
  citawatch check

  # Check one target with the browser visible
  citawatch check Lima --headed

  # Check and alert as the watch loop would
  citawatch check --notify`,
		Args: cobra.ArbitraryArgs,
		RunE: runCheckCmd,
	}

	cmd.Flags().Bool("notify", false, "Send alerts through the notification gate")
	cmd.Flags().Bool("headed", false, "Show the browser window")
	cmd.Flags().Bool("no-history", false, "Do not record observations in the history database")

	return cmd
}

// runCheckCmd executes the check command.
func runCheckCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}
	if cfg.Targets, err = config.SelectTargets(cfg.Targets, args); err != nil {
		return err
	}
	sendAlerts, err := cmd.Flags().GetBool("notify")
	if err != nil {
		return err
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, slog.LevelWarn)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Error("failed to release proxy pool", "error", err)
		}
	}()

	var observer scheduler.Observer
	if sendAlerts {
		channel, err := buildChannel(cfg, cmd.OutOrStdout(), logger)
		if err != nil {
			return err
		}
		if observer, err = gate.New(cfg.GateConfig(), channel, gate.WithLogger(logger)); err != nil {
			return err
		}
	}
	return checkOnce(ctx, cfg, eng.policy, observer, cmd.OutOrStdout(), logger)
}

// checkOnce runs one round over cfg.Targets. A nil observer sends nothing.
//
// Design decision: The hit cool-down is dropped for a single pass. It
// spaces out repeated checks of a target that just had slots, and a pass
// never checks a target twice. Block and error cool-downs still apply
// between targets since they give the egress time to recover.
func checkOnce(ctx context.Context, cfg *config.Config, checker scheduler.Checker, observer scheduler.Observer, out io.Writer, logger *slog.Logger) error {
	sc := cfg.SchedulerConfig()
	sc.MaxRounds = 1
	sc.HitCooldown = 0

	opts := []scheduler.Option{
		scheduler.WithLogger(logger),
		scheduler.WithRecorder(printRecorder(out)),
	}
	if observer != nil {
		opts = append(opts, scheduler.WithObserver(observer))
	}
	db, err := openHistory(cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		opts = append(opts, scheduler.WithRecorder(historyRecorder(db)))
	}

	s, err := scheduler.New(sc, cfg.Targets, checker, opts...)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}
	return s.Run(ctx)
}
