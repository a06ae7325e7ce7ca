package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice: paid amount and payment status are derived from PaymentAllocation
// rows and never stored here.
type Invoice struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	InvoiceNumber string          `gorm:"size:30;uniqueIndex;not null" json:"invoice_number"`
	CustomerID    uint            `gorm:"index;not null" json:"customer_id"`
	Customer      *Customer       `json:"customer,omitempty"`
	ChallanID     *uint           `gorm:"index" json:"challan_id"`
	InvoiceDate   time.Time       `gorm:"index;not null" json:"invoice_date"`
	DueDate       time.Time       `gorm:"index;not null" json:"due_date"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_amount"`
	Note          string          `gorm:"size:255" json:"note"`
	CreatedBy     uint            `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items"`
}

type InvoiceItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	InvoiceID uint            `gorm:"index;not null" json:"invoice_id"`
	ProductID uint            `gorm:"index;not null" json:"product_id"`
	BatchID   *uint           `gorm:"index" json:"batch_id"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	LineTotal decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"line_total"`
}
