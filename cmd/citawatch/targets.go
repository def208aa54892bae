package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/nao1215/citawatch/internal/model"
)

// NewTargetsCmd creates the targets command.
func NewTargetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List the configured targets",
		Long: `Targets prints the enabled targets of the configuration file with their
navigation mode and the URLs the browser starts from and the operator books on.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			t := newTable(cmd)
			renderTargets(t, cfg.Targets)
			t.Render()
			return nil
		},
	}
}

// newTable returns a table writer mirrored to the command output.
func newTable(cmd *cobra.Command) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(cmd.OutOrStdout())
	return t
}

// renderTargets appends one row per target.
func renderTargets(t table.Writer, targets []model.Target) {
	t.AppendHeader(table.Row{"Name", "Mode", "Start URL", "Booking URL", "Panel"})
	for _, tg := range targets {
		panel := "-"
		if tg.Mode.NeedsPanel() {
			panel = tg.PanelMarker
		}
		t.AppendRow(table.Row{tg.Name, tg.Mode.String(), tg.StartURL(), tg.AccessURL(), panel})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d target(s)", len(targets))})
}
