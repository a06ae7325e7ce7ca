package database

import (
	"os"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenTestDB returns a migrated, empty database. With TEST_DATABASE_DSN set it
// connects to that postgres database and truncates all tables; otherwise each
// test gets its own in-memory SQLite database.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		return openMemoryDB(t)
	}
	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	err = db.Exec(`TRUNCATE users, audit_logs, products, batches, customers, sales_orders,
		sales_order_items, delivery_challans, dispatch_line_items, material_returns,
		material_return_items, invoices, invoice_items, payments, payment_allocations,
		journal_entries, journal_lines, appointments RESTART IDENTITY CASCADE`).Error
	if err != nil {
		t.Fatalf("truncate test db: %v", err)
	}
	return db
}

// openMemoryDB keeps a single connection: every new connection to :memory:
// would see a different, empty database.
func openMemoryDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate sqlite test db: %v", err)
	}
	return db
}
