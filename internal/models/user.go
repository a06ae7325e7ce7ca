package models

import "time"

type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleAccounts  UserRole = "accounts"
	RoleSales     UserRole = "sales"
	RoleWarehouse UserRole = "warehouse"
	RoleManager   UserRole = "manager"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleAccounts, RoleSales, RoleWarehouse, RoleManager:
		return true
	}
	return false
}

// CanApprove: only these roles may move a document out of pending_approval.
func (r UserRole) CanApprove() bool {
	switch r {
	case RoleAdmin, RoleManager:
		return true
	case RoleAccounts, RoleSales, RoleWarehouse:
		return false
	}
	return false
}

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Email        string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         UserRole  `gorm:"size:20;not null" json:"role"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
