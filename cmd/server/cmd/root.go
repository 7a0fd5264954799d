package cmd

import (
	"fmt"
	"os"

	"github.com/coachbook/server/internal/config"
	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	serve := newServeCommand(opts)
	root := &cobra.Command{
		Use:   "server",
		Short: "coachbook server - coaching session booking backend",
		Long: `coachbook server books coaching sessions between coaches and coachees.

It provides:
- Google sign-in with role selection (coach or coachee)
- Booking creation, status changes, coach reports and coachee ratings
- Coach and coachee dashboards with a cached per-user view
- Prometheus metrics, OpenTelemetry tracing and health probes`,
		SilenceUsage: true,
		RunE:         serve.RunE,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (environment variables take precedence)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (json, console) (default: json)")

	root.AddCommand(serve)
	root.AddCommand(newMigrateCommand(opts))
	root.AddCommand(newVersionCommand())
	root.AddCommand(newHealthcheckCommand())
	return root
}

// Execute runs the CLI. It is called by main.main.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadEnv applies the dotenv file without overriding the real environment.
func (o *rootOptions) loadEnv() error {
	if o.envFile == "" {
		return nil
	}
	return config.LoadDotEnv(o.envFile)
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	if err := o.loadEnv(); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}
	return cfg, nil
}
