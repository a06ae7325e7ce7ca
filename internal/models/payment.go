package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCheque       PaymentMethod = "cheque"
	MethodUPI          PaymentMethod = "upi"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodCheque, MethodUPI:
		return true
	}
	return false
}

// MoneyPlaces is the scale of every decimal(20,4) money column.
const MoneyPlaces = 4

// FitsMoneyScale reports whether d is stored without rounding.
func FitsMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyPlaces))
}

type Payment struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	CustomerID  uint            `gorm:"index;not null" json:"customer_id"`
	Customer    *Customer       `json:"customer,omitempty"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	PaymentDate time.Time       `gorm:"index;not null" json:"payment_date"`
	Method      PaymentMethod   `gorm:"size:20;not null" json:"method"`
	Reference   string          `gorm:"size:100" json:"reference"`
	Note        string          `gorm:"size:255" json:"note"`
	CreatedBy   uint            `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	Allocations []PaymentAllocation `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE" json:"allocations"`
}

type PaymentAllocation struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	PaymentID       uint            `gorm:"not null;uniqueIndex:idx_alloc_payment_invoice" json:"payment_id"`
	InvoiceID       uint            `gorm:"index;not null;uniqueIndex:idx_alloc_payment_invoice" json:"invoice_id"`
	AllocatedAmount decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"allocated_amount"`
	CreatedAt       time.Time       `json:"created_at"`
}
