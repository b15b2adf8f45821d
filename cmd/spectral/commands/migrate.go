package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/banshee-data/spectral.report/internal/db"
	"github.com/banshee-data/spectral.report/internal/monitoring"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the run history schema",
		Long: `Apply, roll back or repair the run history schema. Migrations are
embedded in the binary; the index and change commands migrate up
automatically, so these actions are for inspection and recovery.`,
	}
	cmd.AddCommand(newMigrateUpCommand())
	cmd.AddCommand(newMigrateDownCommand())
	cmd.AddCommand(newMigrateStatusCommand())
	cmd.AddCommand(newMigrateToCommand())
	cmd.AddCommand(newMigrateForceCommand())
	return cmd
}

// withRawDB opens the database without migrating so that a dirty or outdated
// schema can be inspected.
func withRawDB(fn func(database *db.DB) error) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	database, err := db.OpenDB(resolveDBPath(cfg))
	if err != nil {
		return err
	}
	defer database.Close()
	return fn(database)
}

func printVersion(cmd *cobra.Command, database *db.DB) error {
	version, dirty, err := database.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func newMigrateUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRawDB(func(database *db.DB) error {
				monitoring.Logf("Running migrations...")
				if err := database.MigrateUp(); err != nil {
					return err
				}
				return printVersion(cmd, database)
			})
		},
	}
}

func newMigrateDownCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRawDB(func(database *db.DB) error {
				monitoring.Logf("Rolling back one migration...")
				if err := database.MigrateDown(); err != nil {
					return err
				}
				return printVersion(cmd, database)
			})
		},
	}
}

func newMigrateStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current and latest schema versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRawDB(func(database *db.DB) error {
				version, dirty, err := database.MigrateVersion()
				if err != nil {
					return err
				}
				latest, err := db.LatestMigration()
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintln(w, "=== Migration Status ===")
				fmt.Fprintf(w, "Current version: %d\n", version)
				fmt.Fprintf(w, "Latest version: %d\n", latest)
				fmt.Fprintf(w, "Dirty: %v\n", dirty)
				if dirty {
					fmt.Fprintln(w, "A migration failed mid-execution. Inspect the database, then run:")
					fmt.Fprintln(w, "  spectral migrate force <version>")
				} else if version < latest {
					fmt.Fprintf(w, "%d migration(s) pending\n", latest-version)
				}
				return nil
			})
		},
	}
}

func newMigrateToCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "to VERSION",
		Short: "Migrate up or down to a specific version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid version number %q: %w", args[0], err)
			}
			return withRawDB(func(database *db.DB) error {
				monitoring.Logf("Migrating to version %d...", target)
				if err := database.MigrateTo(uint(target)); err != nil {
					return err
				}
				return printVersion(cmd, database)
			})
		},
	}
}

func newMigrateForceCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "force VERSION",
		Short: "Force the recorded schema version (recovery only)",
		Long: `Set the recorded schema version without running any migration and clear
the dirty flag. Use only after repairing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version number %q: %w", args[0], err)
			}
			if !yes {
				return fmt.Errorf("refusing to force version %d without --yes", version)
			}
			return withRawDB(func(database *db.DB) error {
				if err := database.MigrateForce(version); err != nil {
					return err
				}
				return printVersion(cmd, database)
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm forcing the version")
	return cmd
}
