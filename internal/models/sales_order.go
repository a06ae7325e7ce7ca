package models

import "time"

type SalesOrder struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	OrderNumber string      `gorm:"size:30;uniqueIndex;not null" json:"order_number"`
	CustomerID  uint        `gorm:"index;not null" json:"customer_id"`
	Customer    *Customer   `json:"customer,omitempty"`
	OrderDate   time.Time   `gorm:"index;not null" json:"order_date"`
	Status      OrderStatus `gorm:"size:30;not null;index" json:"status"`
	Note        string      `gorm:"size:255" json:"note"`
	CreatedBy   uint        `json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	Items []SalesOrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

// SalesOrderItem holds one product/batch reservation. A product split across
// several batches by FIFO planning produces several items.
type SalesOrderItem struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	OrderID      uint      `gorm:"index;not null" json:"order_id"`
	ProductID    uint      `gorm:"index;not null" json:"product_id"`
	BatchID      uint      `gorm:"index;not null" json:"batch_id"`
	OrderedQty   int       `gorm:"not null" json:"ordered_qty"`
	DeliveredQty int       `gorm:"not null;default:0" json:"delivered_qty"`
	ReservedQty  int       `gorm:"not null;default:0" json:"reserved_qty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
