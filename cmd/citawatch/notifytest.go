package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/citawatch/internal/config"
	"github.com/nao1215/citawatch/internal/notify"
)

// NewNotifyTestCmd creates the notify-test command.
func NewNotifyTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test message to the configured Telegram chat",
		Long: `Notify-test sends a short message with the configured bot token and chat ID
so that the credentials can be verified before watching.

Examples:
  TELEGRAM_BOT_TOKEN=123456:ABC TELEGRAM_CHAT_ID=42 citawatch notify-test

  # Also send a file attachment
  citawatch notify-test --document`,
		Args: cobra.NoArgs,
		RunE: runNotifyTestCmd,
	}

	cmd.Flags().Bool("document", false, "Also send a small text document")

	return cmd
}

// runNotifyTestCmd executes the notify-test command.
func runNotifyTestCmd(cmd *cobra.Command, _ []string) error {
	cfg := newConfig(cmd)
	cf, err := loadOptionalFile(cfg)
	if err != nil {
		return err
	}
	cf.ApplyEnv(os.Getenv)
	cfg.File = cf

	withDocument, err := cmd.Flags().GetBool("document")
	if err != nil {
		return err
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, slog.LevelWarn)
	tg, err := newTelegram(cfg, logger)
	if err != nil {
		return err
	}
	if err := sendTest(cmd.Context(), tg, withDocument); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Test message sent.")
	return nil
}

// loadOptionalFile loads the configuration file if one exists. Unlike the
// watch commands, a missing file is not an error unless it was named.
func loadOptionalFile(cfg *config.Config) (*config.File, error) {
	path := config.FindConfigFile(cfg.ConfigFilePath)
	if path == "" {
		if cfg.ConfigFilePath != "" {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
		}
		return &config.File{}, nil
	}
	cf, err := config.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cf, nil
}

// sendTest sends the test message, and a document when requested.
func sendTest(ctx context.Context, ch notify.Channel, withDocument bool) error {
	if err := ch.SendText(ctx, notify.TestMessage); err != nil {
		return fmt.Errorf("send test message: %w", err)
	}
	if withDocument {
		doc := []byte("citawatch notify-test\n")
		if err := ch.SendDocument(ctx, doc, "citawatch-test.txt", "Adjunto de prueba"); err != nil {
			return fmt.Errorf("send test document: %w", err)
		}
	}
	return nil
}
