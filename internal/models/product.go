package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Name      string          `gorm:"size:150;not null" json:"name"`
	SKU       string          `gorm:"size:50;uniqueIndex;not null" json:"sku"`
	PackType  string          `gorm:"size:30" json:"pack_type"` // strip, bottle, vial, box
	PackSize  int             `gorm:"not null;default:1" json:"pack_size"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	IsActive  bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
