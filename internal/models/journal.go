package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type JournalEntry struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	EntryNumber string    `gorm:"size:30;uniqueIndex;not null" json:"entry_number"`
	Date        time.Time `gorm:"index;not null" json:"date"`
	Memo        string    `gorm:"size:255" json:"memo"`
	Reference   string    `gorm:"size:100" json:"reference"`
	CreatedBy   uint      `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`

	Lines []JournalLine `gorm:"foreignKey:EntryID;constraint:OnDelete:CASCADE" json:"lines"`
}

type JournalLine struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	EntryID     uint            `gorm:"index;not null" json:"entry_id"`
	AccountCode string          `gorm:"size:20;not null;index" json:"account_code"`
	Description string          `gorm:"size:255" json:"description"`
	Debit       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"debit"`
	Credit      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit"`
}
