package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/covercash2/green/pkg/logging"
)

var (
	verbose  bool
	quiet    bool
	logLevel string

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "green",
	Short: "green - home lab landing page and deployment hook",
	Long: `green serves the home lab landing page, the local CA certificate and a
health check. It receives GitHub webhooks, relays them to Ultron and pins
pushed revisions of tracked repositories into the NixOS flake.`,
	SilenceUsage:      true,
	PersistentPreRunE: initLogger,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(flakeCmd)
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(deploymentsCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// resolveLogLevel picks the log level: --log-level wins over -v/-q, which
// win over the configured level.
func resolveLogLevel(configured string) string {
	switch {
	case logLevel != "":
		return logLevel
	case verbose:
		return "debug"
	case quiet:
		return "error"
	case configured != "":
		return configured
	default:
		return "info"
	}
}

// initLogger builds the console logger used by the CLI commands. serve
// replaces it with one built from the config file.
func initLogger(cmd *cobra.Command, args []string) error {
	l, err := logging.New(logging.Options{
		Level:  resolveLogLevel("warn"),
		Format: "console",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = l
	return nil
}
