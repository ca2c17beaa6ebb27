package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/iwvelando/sprint-budget/internal/config"
	"github.com/iwvelando/sprint-budget/pkg/constants"
	"github.com/iwvelando/sprint-budget/pkg/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// cli carries the global flags and everything loaded from them.
type cli struct {
	configPath   string
	logLevel     string
	outputFormat string

	conf   *config.Configuration
	logger *zap.Logger
}

// initializeLogger creates a zap logger based on configuration and CLI override
func initializeLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	// CLI override takes precedence
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	zapLevel, err := validation.ParseLogLevel(level)
	if err != nil {
		return nil, err
	}

	if err := validation.ValidateLogFormat(loggingConfig.Format); err != nil {
		return nil, err
	}

	var zapConfig zap.Config
	if loggingConfig.Format == validation.LogFormatConsole {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)

	if loggingConfig.OutputFile != "" {
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %v", dir, err)
			}
		}

		// Fail early if the file cannot be written.
		file, err := os.OpenFile(loggingConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %v", loggingConfig.OutputFile, err)
		}
		_ = file.Close()

		zapConfig.OutputPaths = []string{loggingConfig.OutputFile}
		zapConfig.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	} else {
		// stdout is reserved for command output.
		zapConfig.OutputPaths = []string{"stderr"}
	}

	return zapConfig.Build()
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "sprint-budget",
		Short:         "Budget planning for iteration-based teams",
		Long:          "Project cumulative spend against a budget, reconcile the iteration ledger, export CSV and PDF, and save named snapshots.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.Version = version

	root.PersistentFlags().StringVar(&c.configPath, "config", constants.DefaultConfigFile, "path to configuration file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&c.outputFormat, "output-format", "", "type of output override: pretty, csv")

	root.AddCommand(
		newServeCmd(c),
		newProjectCmd(c),
		newReconcileCmd(c),
		newCSVCmd(c),
		newReportCmd(c),
		newSnapshotCmd(c),
		newLoginCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
	)
	return root
}

// load reads the configuration and builds the logger. Configuration warnings
// are logged, not fatal.
func (c *cli) load() error {
	conf, err := config.LoadConfiguration(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration at %s: %w", c.configPath, err)
	}

	logger, err := initializeLogger(conf.Logging, c.logLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main.load"),
		)
	}

	c.conf = conf
	c.logger = logger
	return nil
}

// format resolves the output format, CLI override first.
func (c *cli) format() (string, error) {
	outputFormat := c.conf.Output.Format
	if c.outputFormat != "" {
		outputFormat = c.outputFormat
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		return "", err
	}
	return outputFormat, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "{\"op\": \"main\", \"level\": \"fatal\", \"msg\": %q}\n", err.Error())
		os.Exit(1)
	}
}
