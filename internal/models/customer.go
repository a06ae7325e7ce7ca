package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"size:150;not null" json:"name"`
	Phone       string          `gorm:"size:30" json:"phone"`
	Email       string          `gorm:"size:100" json:"email"`
	Address     string          `gorm:"size:255" json:"address"`
	LicenseNo   string          `gorm:"size:50" json:"license_no"` // drug license
	CreditLimit decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit_limit"`
	IsActive    bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
