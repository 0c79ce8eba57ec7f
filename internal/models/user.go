package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSecurity   Role = "SECURITY"
	RoleSuperAdmin Role = "SUPERADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSecurity, RoleSuperAdmin:
		return true
	}
	return false
}

// User mirrors the identity provider's directory entry. Credentials are not
// stored here; only what the workflow needs to validate assignments.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"not null;size:255;uniqueIndex" json:"email"`
	FullName  string    `gorm:"size:255" json:"full_name"`
	Role      Role      `gorm:"size:20;not null;default:'USER'" json:"role"`
	Enabled   bool      `gorm:"not null" json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Actor is the authenticated caller of an operation, as supplied by the
// identity collaborator.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}
