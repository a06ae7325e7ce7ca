package main

import (
	"fmt"
	"os"

	"pharmadist-backend/internal/config"
	"pharmadist-backend/internal/database"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:   "erpctl",
	Short: "Maintenance commands for the pharmadist backend",
	Long: `erpctl runs one-off maintenance tasks against the database configured
through the same environment variables (or .env file) as the API server.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		config.LogError(config.GetLogger(), "erpctl", "main", "execute", nil, err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(migrateCmd, seedAdminCmd, exportExpiryCmd)
}

func openDB() (*gorm.DB, *config.Config, error) {
	cfg := config.Load()
	db, err := database.Open(cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return db, cfg, nil
}
