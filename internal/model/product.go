package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// ErrMalformedPhotos is wrapped by Photos.Scan when the stored column is not
// a JSON array of strings.
var ErrMalformedPhotos = errors.New("model: malformed photos column")

// Product is an item registered with a municipality.
//
// Reference is written once, on insert (`<-:create`), and never updated.
// MairieUserID is mandatory; the owner and association links are optional.
type Product struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title        string     `gorm:"size:255;not null" json:"title"`
	Description  string     `gorm:"size:255;not null" json:"description"`
	ProductIssue string     `gorm:"column:product_issue;size:255;not null" json:"productIssue"`
	Reference    string     `gorm:"size:255;not null;uniqueIndex;<-:create" json:"reference"`
	Marque       string     `gorm:"size:255;not null" json:"marque"`
	Status       string     `gorm:"size:255;not null" json:"status"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeposedAt    *time.Time `json:"deposed_at"`
	Photos       Photos     `gorm:"not null" json:"photos"`

	UserID            *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	MairieUserID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"mairie_user_id"`
	AssociationUserID *uuid.UUID `gorm:"type:uuid;index" json:"association_user_id"`

	User            *User `gorm:"foreignKey:UserID" json:"-"`
	MairieUser      *User `gorm:"foreignKey:MairieUserID" json:"-"`
	AssociationUser *User `gorm:"foreignKey:AssociationUserID" json:"-"`
}

// BeforeCreate fills in the ID and the reference when they are missing.
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Reference == "" {
		p.Reference = NewReference(tx.NowFunc())
	}
	return nil
}

// NewReference builds a human-readable product code:
//
//	PRD-20240131-9f86d081
//	    ^^^^^^^^ ^^^^^^^^
//	    UTC date 8 random lowercase hex digits
func NewReference(now time.Time) string {
	random, _, _ := strings.Cut(uuid.NewString(), "-")
	return "PRD-" + now.UTC().Format("20060102") + "-" + random
}

// Photos is the ordered list of photo URLs attached to a product, stored as a
// JSON array in a single column. A nil list is written as [] and a NULL or
// JSON null column reads back as an empty list, never nil.
type Photos []string

// Scan implements sql.Scanner.
func (p *Photos) Scan(value any) error {
	if value == nil {
		*p = Photos{}
		return nil
	}

	var list datatypes.JSONSlice[string]
	if err := list.Scan(value); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPhotos, err)
	}
	if list == nil {
		list = datatypes.JSONSlice[string]{}
	}
	*p = Photos(list)
	return nil
}

// Value implements driver.Valuer.
func (p Photos) Value() (driver.Value, error) {
	if p == nil {
		p = Photos{}
	}
	v, err := datatypes.JSONSlice[string](p).Value()
	if err != nil {
		return nil, err
	}
	if b, ok := v.([]byte); ok {
		return string(b), nil
	}
	return v, nil
}

// GormDataType implements schema.GormDataTypeInterface.
func (Photos) GormDataType() string {
	return "json"
}

// GormDBDataType picks JSONB on postgres and JSON everywhere else.
func (Photos) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "JSONB"
	}
	return "JSON"
}
