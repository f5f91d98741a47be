package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/agenda-api/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the agenda database schema",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("dir", "./migrations", "Path to migrations directory")

	rootCmd.AddCommand(upCmd(), downCmd(), versionCmd(), forceCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newMigrator(cmd *cobra.Command) (*migrate.Migrate, error) {
	dir, _ := cmd.Flags().GetString("dir")

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	m, err := migrate.New("file://"+dir, cfg.Database.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}
	return m, nil
}

func closeMigrator(m *migrate.Migrate) {
	if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
		fmt.Fprintf(os.Stderr, "failed to close migrator: %v %v\n", srcErr, dbErr)
	}
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeMigrator(m)

			if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migration up failed: %w", err)
			}
			fmt.Println("Migration up successful")
			return nil
		},
	}
}

func downCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")

			m, err := newMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeMigrator(m)

			if steps > 0 {
				err = m.Steps(-steps)
			} else {
				err = m.Down()
			}
			if err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migration down failed: %w", err)
			}
			fmt.Println("Migration down successful")
			return nil
		},
	}
	cmd.Flags().Int("steps", 1, "Number of migrations to roll back, 0 for all")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeMigrator(m)

			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				fmt.Println("No migrations applied")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read version: %w", err)
			}
			fmt.Printf("Version %d (dirty: %t)\n", version, dirty)
			return nil
		},
	}
}

func forceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}

			m, err := newMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeMigrator(m)

			if err := m.Force(version); err != nil {
				return fmt.Errorf("failed to force version: %w", err)
			}
			fmt.Printf("Version forced to %d\n", version)
			return nil
		},
	}
}
