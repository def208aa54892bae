package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/citawatch/internal/config"
)

//go:embed templates/citawatch.yaml
var configTemplate embed.FS

// templatePath is the path of the template inside configTemplate.
const templatePath = "templates/citawatch.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a citawatch configuration file",
		Long: `Init writes an annotated .citawatch.yaml in the current directory.

The generated file includes:
- An example target for each navigation mode
- The watch cool-downs and round interval
- Browser, proxy and classifier settings with their defaults

Examples:
  # Create .citawatch.yaml in current directory
  citawatch init

  # Create config file at a specific path
  citawatch init -o ~/.config/citawatch/config.yaml

  # Force overwrite existing file
  citawatch init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// The file may hold a bot token, so it is private to the user.
	if err := os.WriteFile(outputPath, content, 0o600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  - Add your targets under 'targets'")
	fmt.Fprintln(out, "  - Export TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID")
	fmt.Fprintln(out, "  - Run 'citawatch notify-test', then 'citawatch check'")
	return nil
}
