// Package main provides the CLI entrypoint for displaysync.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/displaysyncd/internal/dbus"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global state
var (
	globalOpts struct {
		verbose bool
		busName string
	}
	logger *slog.Logger
	client *dbus.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "displaysync",
	Short: "Control a running displaysyncd daemon",
	Long: `displaysync talks to a running displaysyncd daemon over the session bus.

It can push now-playing display templates, start playback tied to a display,
query what is currently shown, and tear the display down.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		client, err = dbus.NewClient(globalOpts.busName)
		if err != nil {
			return fmt.Errorf("failed to connect to daemon: %w", err)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.busName, "bus-name", "",
		"Daemon bus name (default: io.github.jmylchreest.displaysyncd)")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

func main() {
	Execute()
}
