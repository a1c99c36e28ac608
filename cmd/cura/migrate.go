package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/curahq/cura/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	Long:  `Apply all pending schema migrations to the database named by DATABASE_URL.`,
	RunE:  runMigrate,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE:  runMigrateStatus,
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

func databaseURL() (string, error) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return "", fmt.Errorf("DATABASE_URL environment variable is required")
	}
	return url, nil
}

func runMigrate(_ *cobra.Command, _ []string) error {
	url, err := databaseURL()
	if err != nil {
		return err
	}
	if err := db.Migrate(url); err != nil {
		return err
	}
	fmt.Println("migrations applied")
	return nil
}

func runMigrateStatus(_ *cobra.Command, _ []string) error {
	url, err := databaseURL()
	if err != nil {
		return err
	}
	return db.MigrationStatus(url)
}
