// Package model defines the data structures used throughout the application.
//
// The structs double as gorm models: the `gorm:"..."` tags describe columns,
// indexes and relations, and the `json:"..."` tags are the wire names used by
// the HTTP layer.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is what a user is in the registry.
type Role string

const (
	RoleParticulier Role = "particulier" // a citizen handing in an item
	RoleMairie      Role = "mairie"      // municipal staff; every product references one
	RoleAssociation Role = "association" // a reviewing association
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleParticulier, RoleMairie, RoleAssociation:
		return true
	}
	return false
}

// User represents a registered account.
//
// A user relates to products in three independent ways, each through its own
// foreign key on the products table:
//
//	Products            ← products.user_id              (owner, optional)
//	MairieProducts      ← products.mairie_user_id       (municipality, mandatory)
//	AssociationProducts ← products.association_user_id  (association, optional)
//
// DeletedAt is a plain nullable timestamp, not gorm.DeletedAt: a soft-deleted
// user is still returned by every lookup.
type User struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Nom       string     `gorm:"size:255;not null" json:"nom"`
	Prenom    string     `gorm:"size:255;not null" json:"prenom"`
	Email     string     `gorm:"size:255;not null;uniqueIndex" json:"email"` // always NormalizeEmail'd
	Telephone string     `gorm:"size:20;not null;default:''" json:"telephone"`
	Role      Role       `gorm:"size:32;not null" json:"role"`
	Password  string     `gorm:"size:255;not null" json:"-"` // bcrypt digest
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	Products            []Product `gorm:"foreignKey:UserID" json:"-"`
	MairieProducts      []Product `gorm:"foreignKey:MairieUserID" json:"-"`
	AssociationProducts []Product `gorm:"foreignKey:AssociationUserID" json:"-"`
}

// BeforeCreate assigns a random ID when the caller left it zero.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
// Every path that stores or filters by email goes through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
