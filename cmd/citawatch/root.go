package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for citawatch.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "citawatch",
		Short: "Watch consular booking calendars for free appointment slots",
		Long: `citawatch drives a real browser through each configured booking flow,
reads the calendar and reports one of four states per target: slots found,
no slots, blocked or timeout.

New slot sets are announced on Telegram once; blank pages are retried
through the configured proxies and reported as a probable block.

Run 'citawatch init' to create a configuration file.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .citawatch.yaml in current, XDG config or home directory)")
	cmd.PersistentFlags().String("data-dir", "",
		"Directory of the history database (default: XDG data directory)")

	// Add subcommands
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewNotifyTestCmd())
	cmd.AddCommand(NewTargetsCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewProxyCheckCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
