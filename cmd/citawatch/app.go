package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nao1215/citawatch/internal/browser"
	"github.com/nao1215/citawatch/internal/classify"
	"github.com/nao1215/citawatch/internal/config"
	"github.com/nao1215/citawatch/internal/database"
	"github.com/nao1215/citawatch/internal/gate"
	"github.com/nao1215/citawatch/internal/log"
	"github.com/nao1215/citawatch/internal/model"
	"github.com/nao1215/citawatch/internal/navigator"
	"github.com/nao1215/citawatch/internal/notify"
	"github.com/nao1215/citawatch/internal/proxy"
	"github.com/nao1215/citawatch/internal/retry"
	"github.com/nao1215/citawatch/internal/scheduler"
)

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getStringFlag retrieves a string flag from the command or its parent.
func getStringFlag(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetString(name)
		if err != nil {
			return ""
		}
	}
	return v
}

// setupLogger creates the secret-scrubbing logger of a command.
// Long-running commands log at Info, one-shot commands at Warn.
func setupLogger(w io.Writer, verbose bool, base slog.Level) *slog.Logger {
	return log.NewSecureLogger(w, log.Level(verbose, base))
}

// newConfig returns a Config carrying the global flags, without loading
// the file.
func newConfig(cmd *cobra.Command) *config.Config {
	cfg := config.NewConfig()
	cfg.ConfigFilePath = getStringFlag(cmd, "config")
	cfg.Verbose = getVerboseFlag(cmd)
	if dir := getStringFlag(cmd, "data-dir"); dir != "" {
		cfg.DBDir = dir
	}
	return cfg
}

// loadConfig loads and validates the configuration file of a command.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := newConfig(cmd)
	if err := config.Load(cfg, os.Getenv); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// engine is the check pipeline: browser launcher, navigator and retry
// policy, plus the proxy pool they draw from.
type engine struct {
	policy  *retry.Policy
	checker *proxy.Checker
	closers []io.Closer
	logger  *slog.Logger
}

// newChecker returns the proxy health checker configured by cfg.
func newChecker(cfg *config.Config, logger *slog.Logger) *proxy.Checker {
	opts := []proxy.CheckerOption{proxy.WithCheckerLogger(logger)}
	if u := cfg.LookupURL(); u != "" {
		opts = append(opts, proxy.WithLookupURL(u))
	}
	return proxy.NewChecker(opts...)
}

// newPool returns the configured proxy pool, or nil when every attempt
// uses the default egress. The closer is nil for pools without resources.
func newPool(cfg *config.Config, logger *slog.Logger) (retry.Pool, io.Closer, error) {
	if cfg.UseTor() {
		p := proxy.NewTorPool(
			proxy.WithStartupTimeout(cfg.TorStartupTimeout()),
			proxy.WithTorLogger(logger),
		)
		return p, p, nil
	}
	if sc, ok := cfg.StaticProxyConfig(); ok {
		p, err := proxy.NewStaticPool(sc, proxy.WithStaticLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("proxy pool: %w", err)
		}
		return p, nil, nil
	}
	return nil, nil, nil
}

// buildEngine wires the components of a target check.
func buildEngine(cfg *config.Config, logger *slog.Logger) (*engine, error) {
	classifier := classify.New(cfg.ClassifierConfig(), classify.WithLogger(logger))
	nav := navigator.New(cfg.NavigatorConfig(), classifier, navigator.WithLogger(logger))
	launcher := browser.NewLauncher(cfg.LaunchConfig(), browser.WithLogger(logger))

	e := &engine{checker: newChecker(cfg, logger), logger: logger}
	opts := []retry.Option{
		retry.WithLogger(logger),
		retry.WithHealthChecker(e.checker),
	}

	pool, closer, err := newPool(cfg, logger)
	if err != nil {
		return nil, err
	}
	if pool != nil {
		opts = append(opts, retry.WithPool(pool))
	}
	if closer != nil {
		e.closers = append(e.closers, closer)
	}

	e.policy, err = retry.New(cfg.RetryConfig(), launcher, nav, opts...)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

// Close releases the pool resources.
func (e *engine) Close() error {
	var errs []error
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newTelegram returns the Telegram channel configured by cfg.
func newTelegram(cfg *config.Config, logger *slog.Logger) (*notify.Telegram, error) {
	if !cfg.HasTelegram() {
		return nil, config.ErrMissingTelegram
	}
	tg := cfg.Telegram()
	opts := []notify.TelegramOption{notify.WithLogger(logger)}
	if tg.BaseURL != "" {
		opts = append(opts, notify.WithBaseURL(tg.BaseURL))
	}
	return notify.NewTelegram(tg.Token, tg.ChatID, opts...)
}

// buildChannel returns the notification channel of the watch loop: the
// console, plus Telegram when configured.
func buildChannel(cfg *config.Config, out io.Writer, logger *slog.Logger) (notify.Channel, error) {
	console := notify.NewConsole(out)
	if !cfg.HasTelegram() {
		logger.Warn("telegram is not configured, alerts are printed only")
		return console, nil
	}
	tg, err := newTelegram(cfg, logger)
	if err != nil {
		return nil, err
	}
	return notify.Multi{console, tg}, nil
}

// openHistory opens the history database when saving is enabled.
// A nil database means history is off.
func openHistory(cfg *config.Config, logger *slog.Logger) (*database.HistoryDB, error) {
	if !cfg.SaveToDB {
		return nil, nil
	}
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Debug("database opened", "path", db.Path())
	return db, nil
}

// toRecord converts a scheduler observation into a history row.
// A failed check is stored as TIMEOUT with the scrubbed error.
func toRecord(obs scheduler.Observation) database.Observation {
	r := obs.Report.Result
	rec := database.Observation{
		AttemptID:     obs.Report.AttemptID,
		Target:        obs.Target.Name,
		Outcome:       r.Outcome,
		Labels:        r.Labels,
		Signature:     string(r.Signature()),
		Attempts:      obs.Report.Attempts,
		ProbableBlock: obs.Report.ProbableBlock,
		Notified:      obs.Decision.Action == gate.ActionNotified,
		Action:        obs.Decision.Action.String(),
		Reason:        r.Diagnostics.Reason,
		TextChars:     r.Diagnostics.TextChars,
		MarkupChars:   r.Diagnostics.MarkupChars,
		DateLabel:     r.Diagnostics.DateLabel,
		URL:           r.Diagnostics.URL,
		Timestamp:     obs.Started,
	}
	if obs.Report.Proxy != nil {
		rec.Proxy = obs.Report.Proxy.String()
	}
	if obs.Err != nil {
		rec.Outcome = model.OutcomeTimeout
		rec.Error = log.Scrub(obs.Err.Error())
	}
	if rec.AttemptID == "" {
		rec.AttemptID = uuid.NewString()
	}
	return rec
}

// historyRecorder stores every observation in db.
func historyRecorder(db *database.HistoryDB) scheduler.Recorder {
	return scheduler.RecorderFunc(func(ctx context.Context, obs scheduler.Observation) error {
		rec := toRecord(obs)
		_, err := db.SaveObservation(ctx, &rec)
		return err
	})
}

// printRecorder prints one line per observation to w.
func printRecorder(w io.Writer) scheduler.Recorder {
	return scheduler.RecorderFunc(func(_ context.Context, obs scheduler.Observation) error {
		_, err := fmt.Fprintln(w, formatObservation(obs))
		return err
	})
}

// formatObservation renders an observation as a console line.
func formatObservation(obs scheduler.Observation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-12s ", obs.Started.Local().Format(time.DateTime), obs.Target.Name)

	if obs.Err != nil {
		fmt.Fprintf(&b, "ERROR  %s", log.Scrub(obs.Err.Error()))
		return b.String()
	}

	r := obs.Report.Result
	b.WriteString(strings.ToUpper(r.Outcome.String()))
	if len(r.Labels) > 0 {
		fmt.Fprintf(&b, "  %s", strings.Join(r.Labels, ", "))
	}
	if r.Diagnostics.Reason != "" {
		fmt.Fprintf(&b, "  (%s)", r.Diagnostics.Reason)
	}
	if obs.Report.Attempts > 1 {
		fmt.Fprintf(&b, "  attempts=%d", obs.Report.Attempts)
	}
	if obs.Report.ProbableBlock {
		b.WriteString("  probable block")
	}
	if obs.Decision.Action != gate.ActionNone {
		fmt.Fprintf(&b, "  [%s]", obs.Decision.Action)
	}
	return b.String()
}

// targetNames returns the names of targets.
func targetNames(targets []model.Target) []string {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.Name
	}
	return names
}
