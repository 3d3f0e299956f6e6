package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"grievdedup/internal/logger"
	"grievdedup/internal/persistence"
)

// NewMigrateCmd creates the migrate command for database migrations.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Manage database schema migrations.

The migration system tracks applied migrations in the schema_migrations table
and applies new migrations in sequential order. Each migration runs in a
transaction and rolls back on failure.

Examples:
  grievdedup migrate up
  grievdedup migrate status`,
	}

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateStatusCmd())

	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrateUp(cmd.Context()); err != nil {
				logger.Error("Migration failed", err)
				os.Exit(1)
			}
			return nil
		},
	}
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrateStatus(cmd.Context()); err != nil {
				logger.Error("Failed to get migration status", err)
				os.Exit(1)
			}
			return nil
		},
	}
}

func runMigrateUp(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	migrator := persistence.NewMigrationManager(a.db)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Println("All migrations applied successfully")
	return nil
}

func runMigrateStatus(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	migrator := persistence.NewMigrationManager(a.db)
	statuses, err := migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	fmt.Printf("%-8s %-40s %s\n", "VERSION", "DESCRIPTION", "APPLIED")
	for _, s := range statuses {
		applied := "pending"
		if s.Applied {
			applied = "applied"
		}
		fmt.Printf("%-8d %-40s %s\n", s.Version, s.Description, applied)
	}
	return nil
}
