package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/citawatch/internal/database"
	"github.com/nao1215/citawatch/internal/report"
)

// DefaultHistoryLimit is the default number of observations shown.
const DefaultHistoryLimit = 50

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [target]",
		Short: "Show recorded observations",
		Long: `History prints the observations recorded by watch and check, newest first,
with the number of observations per outcome.

Examples:
  # Last 50 observations of every target
  citawatch history

  # Last 20 observations of one target as Markdown
  citawatch history Lima --limit 20 --format markdown

  # Everything as JSON
  citawatch history --limit 0 --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("format", "f", "text", "Output format: text, json or markdown")
	cmd.Flags().IntP("limit", "n", DefaultHistoryLimit, "Maximum observations to show (0 = all)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	target := ""
	if len(args) == 1 {
		target = args[0]
	}

	cfg := newConfig(cmd)
	w, err := historyWriter(format, cmd.OutOrStdout(), cfg.Verbose)
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.DBDir, database.Options{CreateIfNotExists: false})
	if errors.Is(err, database.ErrNotFound) {
		fmt.Fprintln(cmd.OutOrStdout(), "No history yet. Run 'citawatch check' or 'citawatch watch' first.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	h, err := loadHistory(cmd.Context(), db, target, limit)
	if err != nil {
		return err
	}
	_, err = w.Write(h)
	return err
}

// historyWriter returns the report writer for format.
func historyWriter(format string, out io.Writer, verbose bool) (report.Writer, error) {
	switch strings.ToLower(format) {
	case "text", "":
		return report.NewSimpleWriter(out, report.WithVerbose(verbose)), nil
	case "json":
		return report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithVersion(getVersion())), nil
	case "markdown", "md":
		return report.NewMarkdownWriter(out), nil
	default:
		return nil, fmt.Errorf("unknown format %q: use text, json or markdown", format)
	}
}

// loadHistory reads the observations and the outcome counts of target.
// An empty target reads every target.
func loadHistory(ctx context.Context, db *database.HistoryDB, target string, limit int) (*report.History, error) {
	observations, err := db.GetHistory(ctx, target, limit)
	if err != nil {
		return nil, err
	}
	counts, err := db.OutcomeCounts(ctx, target)
	if err != nil {
		return nil, err
	}
	return report.NewHistory(target, observations, counts), nil
}
