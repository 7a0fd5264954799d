package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/coachbook/server/internal/storage/postgres"
	"github.com/spf13/cobra"
)

// migrateRunner is the storage surface used by the migrate commands.
type migrateRunner struct {
	up      func(url string) error
	down    func(url string, steps int) error
	version func(url string) (uint, bool, error)
}

var defaultMigrateRunner = migrateRunner{
	up:      postgres.MigrateUp,
	down:    postgres.MigrateDown,
	version: postgres.MigrationVersion,
}

func newMigrateCommand(root *rootOptions) *cobra.Command {
	return newMigrateCommandWith(root, defaultMigrateRunner)
}

func newMigrateCommandWith(root *rootOptions, runner migrateRunner) *cobra.Command {
	var databaseURL string

	resolveURL := func() (string, error) {
		if err := root.loadEnv(); err != nil {
			return "", err
		}
		if databaseURL != "" {
			return databaseURL, nil
		}
		if url := os.Getenv("DATABASE_URL"); url != "" {
			return url, nil
		}
		return "", errors.New("DATABASE_URL is required (or pass --database-url)")
	}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL URL (default: $DATABASE_URL)")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := resolveURL()
			if err != nil {
				return err
			}
			if err := runner.up(url); err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			return printVersion(cmd, runner, url)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps must be positive, got %d", steps)
			}
			url, err := resolveURL()
			if err != nil {
				return err
			}
			if err := runner.down(url, steps); err != nil {
				return fmt.Errorf("migrate down: %w", err)
			}
			return printVersion(cmd, runner, url)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := resolveURL()
			if err != nil {
				return err
			}
			return printVersion(cmd, runner, url)
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func printVersion(cmd *cobra.Command, runner migrateRunner, url string) error {
	version, dirty, err := runner.version(url)
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}
	out := cmd.OutOrStdout()
	if dirty {
		fmt.Fprintf(out, "schema version %d (dirty)\n", version)
		return nil
	}
	fmt.Fprintf(out, "schema version %d\n", version)
	return nil
}
