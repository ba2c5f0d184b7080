package domain

import (
	"time"
)

type UserRole string

const (
	RoleAdmin  UserRole = "ADMIN"
	RoleSeller UserRole = "SELLER"
	RoleBuyer  UserRole = "BUYER"
)

func (r UserRole) IsValid() bool {
	switch r {
	case RoleAdmin, RoleSeller, RoleBuyer:
		return true
	}
	return false
}

// User is a collaborator entity: registration, profiles and credentials
// live in the main marketplace service. The messaging core only reads
// id, name and role.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	Role      UserRole  `gorm:"type:varchar(20);not null;default:'BUYER'" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
