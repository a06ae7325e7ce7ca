package models

import "time"

type Appointment struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	CustomerID uint              `gorm:"index;not null" json:"customer_id"`
	Customer   *Customer         `json:"customer,omitempty"`
	AssignedTo uint              `gorm:"index;not null" json:"assigned_to"` // sales user
	StartsAt   time.Time         `gorm:"index;not null" json:"starts_at"`
	EndsAt     time.Time         `gorm:"not null" json:"ends_at"`
	Purpose    string            `gorm:"size:255;not null" json:"purpose"`
	Notes      string            `gorm:"type:text" json:"notes"`
	Status     AppointmentStatus `gorm:"size:20;not null;index" json:"status"`
	CreatedBy  uint              `json:"created_by"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}
