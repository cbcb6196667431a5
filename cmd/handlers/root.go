package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"swotlens/internal/config"
	"swotlens/internal/logger"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "swotlens",
		Short: "swotlens turns customer reviews into a SWOT analysis.",
		Long: `swotlens reads review exports for your shop and its competitors, sends them
to Gemini in batches, repairs malformed model output, and merges every batch
into one SWOT report with an executive summary.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}

	// Add persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.swotlens.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (overrides config)")

	// Add subcommands
	rootCmd.AddCommand(NewAnalyzeCmd())
	rootCmd.AddCommand(NewPlanCmd())
	rootCmd.AddCommand(NewReportsCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig loads configuration and applies logging settings
func initConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	format := cfg.Logging.Format
	if logFormat != "" {
		format = logFormat
	}
	if err := logger.Configure(level, format, os.Stderr); err != nil {
		return err
	}

	if cfg.App.ConfigFile != "" {
		logger.Debug("Using config file", "path", cfg.App.ConfigFile)
	}
	return nil
}
