package models

import "time"

// DeliveryChallan: goods physically shipped to a customer.
type DeliveryChallan struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	ChallanNumber   string         `gorm:"size:30;uniqueIndex;not null" json:"challan_number"`
	CustomerID      uint           `gorm:"index;not null" json:"customer_id"`
	Customer        *Customer      `json:"customer,omitempty"`
	SalesOrderID    *uint          `gorm:"index" json:"sales_order_id"`
	Date            time.Time      `gorm:"index;not null" json:"date"`
	Status          ApprovalStatus `gorm:"size:20;not null;index" json:"status"`
	RejectionReason string         `gorm:"size:500" json:"rejection_reason"`
	Note            string         `gorm:"size:255" json:"note"`
	CreatedBy       uint           `json:"created_by"`
	ApprovedBy      *uint          `json:"approved_by"`
	ApprovedAt      *time.Time     `json:"approved_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`

	Items []DispatchLineItem `gorm:"foreignKey:ChallanID;constraint:OnDelete:CASCADE" json:"items"`
}

type DispatchLineItem struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ChallanID        uint      `gorm:"index;not null" json:"challan_id"`
	ProductID        uint      `gorm:"index;not null" json:"product_id"`
	BatchID          uint      `gorm:"index;not null" json:"batch_id"`
	SalesOrderItemID *uint     `gorm:"index" json:"sales_order_item_id"`
	Quantity         int       `gorm:"not null" json:"quantity"`
	PackSize         int       `gorm:"not null;default:1" json:"pack_size"`
	PackType         string    `gorm:"size:30" json:"pack_type"`
	NumberOfPacks    int       `gorm:"not null;default:0" json:"number_of_packs"`
	CreatedAt        time.Time `json:"created_at"`
}
