package models

import "time"

type MaterialReturn struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	ReturnNumber    string         `gorm:"size:30;uniqueIndex;not null" json:"return_number"`
	CustomerID      uint           `gorm:"index;not null" json:"customer_id"`
	ChallanID       *uint          `gorm:"index" json:"challan_id"`
	Date            time.Time      `gorm:"index;not null" json:"date"`
	Reason          string         `gorm:"size:500" json:"reason"` // damaged, near expiry, wrong item...
	Status          ApprovalStatus `gorm:"size:20;not null;index" json:"status"`
	RejectionReason string         `gorm:"size:500" json:"rejection_reason"`
	CreatedBy       uint           `json:"created_by"`
	ApprovedBy      *uint          `json:"approved_by"`
	ApprovedAt      *time.Time     `json:"approved_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`

	Items []MaterialReturnItem `gorm:"foreignKey:ReturnID;constraint:OnDelete:CASCADE" json:"items"`
}

type MaterialReturnItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ReturnID  uint      `gorm:"index;not null" json:"return_id"`
	ProductID uint      `gorm:"index;not null" json:"product_id"`
	BatchID   uint      `gorm:"index;not null" json:"batch_id"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}
