package gormdb

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sakif/product-registry/internal/apperror"
	"github.com/sakif/product-registry/internal/auth"
	"github.com/sakif/product-registry/internal/model"
	"github.com/sakif/product-registry/internal/repository"
)

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB is the users table.
type UserDB struct {
	db *DB
}

// Create hashes password, normalizes the email and inserts the user.
//
// Uniqueness is checked inside the transaction before the INSERT. Two
// concurrent registrations can both pass that check; the unique index then
// rejects the second one at commit and the violation is reported the same way.
func (r *UserDB) Create(ctx context.Context, user *model.User, password string) error {
	if !user.Role.Valid() {
		return apperror.ValidationFailed("role", "role must be one of particulier, mairie, association")
	}

	digest, err := r.hash(password)
	if err != nil {
		return err
	}
	user.Password = digest
	user.Email = model.NormalizeEmail(user.Email)

	err = r.db.transaction(ctx, func(tx *gorm.DB) error {
		if err := ensureEmailFree(tx, user.Email, uuid.Nil); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(user).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.DuplicateEmail(user.Email)
		}
		return writeError("creating user", err)
	}
	return nil
}

// FindByEmail looks a user up by normalized email.
// Returns apperror.ErrNotFound when no user has that address.
func (r *UserDB) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	email = model.NormalizeEmail(email)

	var u model.User
	err := r.db.transaction(ctx, func(tx *gorm.DB) error {
		return tx.Where("email = ?", email).Take(&u).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperror.AppError{
				Err:     apperror.ErrNotFound,
				Message: "user not found with email " + email,
			}
		}
		return nil, readError("user", email, "looking up user", err)
	}
	return &u, nil
}

// FindByID returns apperror.ErrValidation for a malformed id and
// apperror.ErrNotFound when no user has it.
func (r *UserDB) FindByID(ctx context.Context, id string) (*model.User, error) {
	uid, err := parseID("user_id", id)
	if err != nil {
		return nil, err
	}

	var u model.User
	err = r.db.transaction(ctx, func(tx *gorm.DB) error {
		return tx.Take(&u, "id = ?", uid).Error
	})
	if err != nil {
		return nil, readError("user", id, "getting user", err)
	}
	return &u, nil
}

// Update applies the non-nil fields of patch and bumps updated_at.
func (r *UserDB) Update(ctx context.Context, id string, patch repository.UserPatch) (*model.User, error) {
	uid, err := parseID("user_id", id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if patch.Nom != nil {
		updates["nom"] = *patch.Nom
	}
	if patch.Prenom != nil {
		updates["prenom"] = *patch.Prenom
	}
	if patch.Telephone != nil {
		updates["telephone"] = *patch.Telephone
	}
	if patch.Role != nil {
		if !patch.Role.Valid() {
			return nil, apperror.ValidationFailed("role", "role must be one of particulier, mairie, association")
		}
		updates["role"] = string(*patch.Role)
	}
	if patch.Password != nil {
		digest, err := r.hash(*patch.Password)
		if err != nil {
			return nil, err
		}
		updates["password"] = digest
	}
	var email string
	if patch.Email != nil {
		email = model.NormalizeEmail(*patch.Email)
		updates["email"] = email
	}
	updates["updated_at"] = r.db.conn.NowFunc()

	var u model.User
	err = r.db.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Take(&u, "id = ?", uid).Error; err != nil {
			return err
		}
		if email != "" && email != u.Email {
			if err := ensureEmailFree(tx, email, uid); err != nil {
				return err
			}
		}
		if err := tx.Model(&u).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Take(&u, "id = ?", uid).Error
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, apperror.NotFound("user", id)
		case isUniqueViolation(err):
			return nil, apperror.DuplicateEmail(email)
		}
		return nil, writeError("updating user", err)
	}
	return &u, nil
}

// SoftDelete stamps deleted_at. The row stays visible to every lookup.
func (r *UserDB) SoftDelete(ctx context.Context, id string) error {
	uid, err := parseID("user_id", id)
	if err != nil {
		return err
	}

	now := r.db.conn.NowFunc()
	err = r.db.transaction(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&model.User{}).Where("id = ?", uid).
			Updates(map[string]any{"deleted_at": now, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.NotFound("user", id)
		}
		return nil
	})
	if err != nil {
		return writeError("deleting user", err)
	}
	return nil
}

func (r *UserDB) hash(password string) (string, error) {
	digest, err := r.db.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return "", apperror.ValidationFailed("password", "password must be 72 bytes or fewer")
		}
		return "", apperror.Persistence("hashing password", err)
	}
	return digest, nil
}

// ensureEmailFree fails with DuplicateEmail when another user owns email.
// except is the user being updated, or uuid.Nil on create.
func ensureEmailFree(tx *gorm.DB, email string, except uuid.UUID) error {
	q := tx.Model(&model.User{}).Where("email = ?", email)
	if except != uuid.Nil {
		q = q.Where("id <> ?", except)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return apperror.DuplicateEmail(email)
	}
	return nil
}

// parseID validates a textual UUID. field names the argument in the error.
func parseID(field, id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, apperror.InvalidArgument(field, id)
	}
	return uid, nil
}
