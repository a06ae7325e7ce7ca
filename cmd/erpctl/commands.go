package main

import (
	"errors"
	"fmt"
	"os"

	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/config"
	"pharmadist-backend/internal/database"
	"pharmadist-backend/internal/inventory"
	"pharmadist-backend/internal/models"
	"pharmadist-backend/internal/reports"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update all tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		config.GetLogger().Info("migration complete")
		return nil
	},
}

var seedAdminCmd = &cobra.Command{
	Use:     "seed-admin",
	Short:   "Create an admin user",
	Example: `  erpctl seed-admin --name "Head Office" --email admin@example.com --password 'change-me-now'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		if name == "" || email == "" {
			return errors.New("--name and --email are required")
		}
		if len(password) < 8 {
			return errors.New("--password must be at least 8 characters")
		}

		db, _, err := openDB()
		if err != nil {
			return err
		}
		var n int64
		if err := db.Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("user %s already exists", email)
		}
		user, err := auth.CreateUser(db, name, email, password, models.RoleAdmin)
		if err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		config.GetLogger().WithField("user_id", user.ID).Info("admin user created")
		return nil
	},
}

var exportExpiryCmd = &cobra.Command{
	Use:     "export-expiry",
	Short:   "Write the near-expiry batch report to an xlsx file",
	Example: `  erpctl export-expiry --days 60 --out expiry.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		out, _ := cmd.Flags().GetString("out")

		db, cfg, err := openDB()
		if err != nil {
			return err
		}
		if days <= 0 {
			days = cfg.ExpiryWarningDays
		}
		today := inventory.Today()
		if out == "" {
			out = reports.FileName("expiry", today)
		}

		rows, err := reports.ExpiryRows(db, today, days)
		if err != nil {
			return fmt.Errorf("load batches: %w", err)
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := reports.WriteExpiry(f, rows); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		config.GetLogger().WithField("rows", len(rows)).WithField("file", out).Info("expiry report written")
		return nil
	},
}

func init() {
	seedAdminCmd.Flags().String("name", "", "Display name")
	seedAdminCmd.Flags().String("email", "", "Login email")
	seedAdminCmd.Flags().String("password", "", "Initial password (min 8 characters)")

	exportExpiryCmd.Flags().Int("days", 0, "Expiry window in days (default EXPIRY_WARNING_DAYS)")
	exportExpiryCmd.Flags().String("out", "", "Output file (default expiry-YYYYMMDD.xlsx)")
}
