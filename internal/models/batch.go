package models

import "time"

// Batch: one goods receipt of a product. Stock counts are in base units.
type Batch struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	ProductID     uint       `gorm:"index;not null;uniqueIndex:idx_batch_product_number" json:"product_id"`
	Product       *Product   `json:"product,omitempty"`
	BatchNumber   string     `gorm:"size:50;not null;uniqueIndex:idx_batch_product_number" json:"batch_number"`
	CurrentStock  int        `gorm:"not null;default:0;check:current_stock >= 0" json:"current_stock"`
	ReservedStock int        `gorm:"not null;default:0;check:reserved_stock >= 0" json:"reserved_stock"`
	ExpiryDate    *time.Time `gorm:"index" json:"expiry_date"`
	ImportDate    time.Time  `gorm:"index;not null" json:"import_date"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (b Batch) Available() int {
	return b.CurrentStock - b.ReservedStock
}

// Expired reports whether the batch expired strictly before the given day.
// A batch expiring today is still sellable.
func (b Batch) Expired(today time.Time) bool {
	if b.ExpiryDate == nil {
		return false
	}
	return truncateDay(*b.ExpiryDate).Before(truncateDay(today))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
