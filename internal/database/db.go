package database

import (
	"pharmadist-backend/internal/config"
	"pharmadist-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Init(cfg *config.Config) {
	log := config.GetLogger()

	db, err := Open(cfg.DatabaseDSN)
	if err != nil {
		log.WithField("module", "database").Fatalf("could not connect to database: %v", err)
	}
	DB = db

	if cfg.AutoMigrate {
		if err := Migrate(DB); err != nil {
			log.WithField("module", "database").Fatalf("AutoMigrate failed: %v", err)
		}
		log.Info("database connected, migration complete")
		return
	}
	log.Info("database connected (AUTO_MIGRATE=false, schema untouched)")
}

func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
}

// Migrate creates or updates every table the API uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.AuditLog{},
		&models.Product{},
		&models.Batch{},
		&models.Customer{},
		&models.SalesOrder{},
		&models.SalesOrderItem{},
		&models.DeliveryChallan{},
		&models.DispatchLineItem{},
		&models.MaterialReturn{},
		&models.MaterialReturnItem{},
		&models.Invoice{},
		&models.InvoiceItem{},
		&models.Payment{},
		&models.PaymentAllocation{},
		&models.JournalEntry{},
		&models.JournalLine{},
		&models.Appointment{},
	)
}
