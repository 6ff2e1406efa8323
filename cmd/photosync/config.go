package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"photosync/pkg/config"
	"photosync/pkg/ui"
)

var forceInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage photosync configuration.

Configuration is merged from, highest priority first:
  - Command line flags
  - PHOTOSYNC_* environment variables (also read from .env files)
  - The configuration file
  - Default values`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)

	initCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
}

const configHeader = `# photosync configuration
#
# Every value can be overridden with a PHOTOSYNC_* environment variable,
# for example PHOTOSYNC_ALBUM or PHOTOSYNC_OUTPUT_DIR.
# Durations use Go syntax: 30s, 10m.
`

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := configFile
	if path == "" {
		path = "photosync.yaml"
	}

	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("configuration file %s already exists (use --force to overwrite)", path)
	}

	data, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append([]byte(configHeader+"\n"), data...), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	ui.Out = out
	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "1. Set photos.client_id and photos.client_secret")
	fmt.Fprintln(out, "2. Run 'photosync auth login'")
	fmt.Fprintln(out, "3. Run 'photosync sync'")
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	display := *cfg
	display.Photos.ClientSecret = maskSecret(display.Photos.ClientSecret)

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.Title("Current configuration"))
	fmt.Fprintln(out)
	fmt.Fprint(out, string(data))

	source := configFile
	if source == "" {
		source = config.FindConfigFile()
	}
	if source == "" {
		source = "(none found, defaults in use)"
	}
	fmt.Fprintf(out, "\n%s %s\n", ui.Dim("Config file:"), source)
	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	ui.Out = out

	cfg, err := loadConfig(nil)
	if err != nil {
		// Load wraps the joined validation errors; print one per line
		fmt.Fprintln(out, ui.Red("Configuration is invalid:"))
		var joined interface{ Unwrap() []error }
		if errors.As(err, &joined) {
			for _, e := range joined.Unwrap() {
				fmt.Fprintf(out, "  - %v\n", e)
			}
		} else {
			fmt.Fprintf(out, "  - %v\n", err)
		}
		return errors.New("configuration validation failed")
	}

	if cfg.Photos.ClientID == "" || cfg.Photos.ClientSecret == "" {
		ui.PrintWarning("photos.client_id / photos.client_secret are not set; 'auth login' and 'sync' will fail")
	}

	ui.PrintSuccess("Configuration is valid")
	ui.PrintInfo("Album", cfg.Sync.Album)
	ui.PrintInfo("Output directory", cfg.Sync.OutputDir)
	ui.PrintInfo("Checkpoint", fmt.Sprintf("%s (%s)", cfg.Checkpoint.Path, cfg.Checkpoint.Backend))
	ui.PrintInfo("Timezone", cfg.Sync.Timezone)
	ui.PrintInfo("Concurrent downloads", fmt.Sprint(cfg.Download.ConcurrentDownloads))
	return nil
}

// maskSecret keeps the first and last four characters of a secret
func maskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "********"
	default:
		return s[:4] + "..." + s[len(s)-4:]
	}
}
