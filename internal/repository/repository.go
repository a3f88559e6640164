// Package repository declares the storage contracts the services depend on.
// The gormdb sub-package implements them on top of gorm.
//
// Every method runs as a single transaction. Errors are *apperror.AppError
// values: ErrNotFound, ErrValidation, ErrDuplicateEmail, ErrPersistence or
// ErrMalformed.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/sakif/product-registry/internal/model"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

type ListOptions struct {
	Limit  int
	Offset int
}

// Normalize clamps the options to usable values: a non-positive limit becomes
// DefaultLimit, a limit above MaxLimit becomes MaxLimit and a negative offset
// becomes 0.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// Hasher turns a plaintext password into a storable digest.
type Hasher interface {
	Hash(plaintext string) (string, error)
}

// UserPatch is a partial update; nil fields are left untouched.
type UserPatch struct {
	Nom       *string
	Prenom    *string
	Email     *string
	Telephone *string
	Role      *model.Role
	Password  *string // plaintext, hashed before storage
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User, password string) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	Update(ctx context.Context, id string, patch UserPatch) (*model.User, error)
	SoftDelete(ctx context.Context, id string) error
}

// NewProduct is the input to ProductRepository.Create. The reference is
// always generated by the repository.
type NewProduct struct {
	Title             string
	Description       string
	ProductIssue      string
	Marque            string
	Status            string
	UserID            *uuid.UUID
	MairieUserID      uuid.UUID
	AssociationUserID *uuid.UUID
	Photos            []string
}

// ProductPatch is a partial update; nil fields are left untouched. There is
// no way to change a reference.
type ProductPatch struct {
	Title             *string
	Description       *string
	ProductIssue      *string
	Marque            *string
	Status            *string
	Photos            *[]string
	UserID            *uuid.UUID
	MairieUserID      *uuid.UUID
	AssociationUserID *uuid.UUID
}

type ProductRepository interface {
	Create(ctx context.Context, in NewProduct) (*model.Product, error)
	FindByID(ctx context.Context, id string) (*model.Product, error)
	FindByOwner(ctx context.Context, userID string) ([]model.Product, error)
	FindByMunicipality(ctx context.Context, mairieUserID string) ([]model.Product, error)
	FindByAssociation(ctx context.Context, associationUserID string) ([]model.Product, error)
	List(ctx context.Context, opts ListOptions) ([]model.Product, error)
	Update(ctx context.Context, id string, patch ProductPatch) (*model.Product, error)
	UpdateStatus(ctx context.Context, id, status string) (*model.Product, error)
	UpdateAssociation(ctx context.Context, id, associationUserID string) (*model.Product, error)
	MarkDeposed(ctx context.Context, id string) (*model.Product, error)
	Delete(ctx context.Context, id string) error
}
