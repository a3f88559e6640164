package gormdb

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sakif/product-registry/internal/apperror"
	"github.com/sakif/product-registry/internal/model"
	"github.com/sakif/product-registry/internal/repository"
)

// compile-time check that *ProductDB implements repository.ProductRepository
var _ repository.ProductRepository = (*ProductDB)(nil)

// ProductDB is the products table.
type ProductDB struct {
	db *DB
}

// Create inserts a product after checking every referenced user exists.
// The reference is generated here; any failure leaves no row behind.
func (r *ProductDB) Create(ctx context.Context, in repository.NewProduct) (*model.Product, error) {
	if strings.TrimSpace(in.Status) == "" {
		return nil, apperror.ValidationFailed("status", "status must not be empty")
	}

	p := &model.Product{
		Title:             in.Title,
		Description:       in.Description,
		ProductIssue:      in.ProductIssue,
		Marque:            in.Marque,
		Status:            in.Status,
		UserID:            in.UserID,
		MairieUserID:      in.MairieUserID,
		AssociationUserID: in.AssociationUserID,
		Photos:            model.Photos(in.Photos),
	}
	if p.Photos == nil {
		p.Photos = model.Photos{}
	}

	err := r.db.transaction(ctx, func(tx *gorm.DB) error {
		if err := requireUser(tx, "mairie_user", in.MairieUserID); err != nil {
			return err
		}
		if err := requireOptionalUser(tx, "user", in.UserID); err != nil {
			return err
		}
		if err := requireOptionalUser(tx, "association_user", in.AssociationUserID); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(p).Error
	})
	if err != nil {
		return nil, writeError("creating product", err)
	}
	return p, nil
}

func (r *ProductDB) FindByID(ctx context.Context, id string) (*model.Product, error) {
	pid, err := parseID("product_id", id)
	if err != nil {
		return nil, err
	}

	var p model.Product
	err = r.db.transaction(ctx, func(tx *gorm.DB) error {
		return tx.Take(&p, "id = ?", pid).Error
	})
	if err != nil {
		return nil, readError("product", id, "getting product", err)
	}
	return &p, nil
}

// FindByOwner lists the products whose user_id is userID.
func (r *ProductDB) FindByOwner(ctx context.Context, userID string) ([]model.Product, error) {
	return r.findByUser(ctx, "user_id", userID)
}

// FindByMunicipality lists the products whose mairie_user_id is mairieUserID.
func (r *ProductDB) FindByMunicipality(ctx context.Context, mairieUserID string) ([]model.Product, error) {
	return r.findByUser(ctx, "mairie_user_id", mairieUserID)
}

// FindByAssociation lists the products whose association_user_id is associationUserID.
func (r *ProductDB) FindByAssociation(ctx context.Context, associationUserID string) ([]model.Product, error) {
	return r.findByUser(ctx, "association_user_id", associationUserID)
}

// findByUser resolves the referenced user first so that an unknown user is
// NotFound rather than an empty list.
func (r *ProductDB) findByUser(ctx context.Context, column, userID string) ([]model.Product, error) {
	uid, err := parseID(column, userID)
	if err != nil {
		return nil, err
	}

	products := []model.Product{}
	err = r.db.transaction(ctx, func(tx *gorm.DB) error {
		if err := requireUser(tx, "user", uid); err != nil {
			return err
		}
		return tx.Where(column+" = ?", uid).Order("created_at, id").Find(&products).Error
	})
	if err != nil {
		return nil, readError("product", "", "listing products", err)
	}
	return products, nil
}

// List returns one page of products ordered by creation time.
func (r *ProductDB) List(ctx context.Context, opts repository.ListOptions) ([]model.Product, error) {
	opts = opts.Normalize()

	products := make([]model.Product, 0, opts.Limit)
	err := r.db.transaction(ctx, func(tx *gorm.DB) error {
		return tx.Order("created_at, id").Limit(opts.Limit).Offset(opts.Offset).Find(&products).Error
	})
	if err != nil {
		return nil, readError("product", "", "listing products", err)
	}
	return products, nil
}

// Update applies the non-nil fields of patch. Each referenced user it sets
// must exist.
func (r *ProductDB) Update(ctx context.Context, id string, patch repository.ProductPatch) (*model.Product, error) {
	updates := map[string]any{}
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.ProductIssue != nil {
		updates["product_issue"] = *patch.ProductIssue
	}
	if patch.Marque != nil {
		updates["marque"] = *patch.Marque
	}
	if patch.Status != nil {
		if strings.TrimSpace(*patch.Status) == "" {
			return nil, apperror.ValidationFailed("status", "status must not be empty")
		}
		updates["status"] = *patch.Status
	}
	if patch.Photos != nil {
		updates["photos"] = model.Photos(*patch.Photos)
	}
	if patch.UserID != nil {
		updates["user_id"] = *patch.UserID
	}
	if patch.MairieUserID != nil {
		updates["mairie_user_id"] = *patch.MairieUserID
	}
	if patch.AssociationUserID != nil {
		updates["association_user_id"] = *patch.AssociationUserID
	}

	return r.update(ctx, id, "updating product", updates, func(tx *gorm.DB) error {
		if err := requireOptionalUser(tx, "user", patch.UserID); err != nil {
			return err
		}
		if err := requireOptionalUser(tx, "mairie_user", patch.MairieUserID); err != nil {
			return err
		}
		return requireOptionalUser(tx, "association_user", patch.AssociationUserID)
	})
}

func (r *ProductDB) UpdateStatus(ctx context.Context, id, status string) (*model.Product, error) {
	if strings.TrimSpace(status) == "" {
		return nil, apperror.ValidationFailed("status", "status must not be empty")
	}
	return r.update(ctx, id, "updating product status", map[string]any{"status": status}, nil)
}

// UpdateAssociation links the product to an association user, which must exist.
func (r *ProductDB) UpdateAssociation(ctx context.Context, id, associationUserID string) (*model.Product, error) {
	aid, err := parseID("association_user_id", associationUserID)
	if err != nil {
		return nil, err
	}
	return r.update(ctx, id, "updating product association",
		map[string]any{"association_user_id": aid},
		func(tx *gorm.DB) error { return requireUser(tx, "association_user", aid) },
	)
}

// MarkDeposed stamps deposed_at with the current time.
func (r *ProductDB) MarkDeposed(ctx context.Context, id string) (*model.Product, error) {
	return r.update(ctx, id, "marking product deposed",
		map[string]any{"deposed_at": r.db.conn.NowFunc()}, nil)
}

// update is the shared body of every UPDATE: load the product (NotFound if
// absent), run check, write updates plus updated_at, and read the row back.
func (r *ProductDB) update(ctx context.Context, id, action string, updates map[string]any, check func(tx *gorm.DB) error) (*model.Product, error) {
	pid, err := parseID("product_id", id)
	if err != nil {
		return nil, err
	}
	updates["updated_at"] = r.db.conn.NowFunc()

	var p model.Product
	err = r.db.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Select("id").Take(&p, "id = ?", pid).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("product", id)
			}
			return err
		}
		if check != nil {
			if err := check(tx); err != nil {
				return err
			}
		}
		if err := tx.Model(&model.Product{}).Where("id = ?", pid).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Take(&p, "id = ?", pid).Error
	})
	if err != nil {
		if errors.Is(err, model.ErrMalformedPhotos) {
			return nil, apperror.Malformed("product", id, err)
		}
		return nil, writeError(action, err)
	}
	return &p, nil
}

// Delete removes the row for good. Photos in object storage are not touched.
func (r *ProductDB) Delete(ctx context.Context, id string) error {
	pid, err := parseID("product_id", id)
	if err != nil {
		return err
	}

	err = r.db.transaction(ctx, func(tx *gorm.DB) error {
		res := tx.Delete(&model.Product{}, "id = ?", pid)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.NotFound("product", id)
		}
		return nil
	})
	if err != nil {
		return writeError("deleting product", err)
	}
	return nil
}

// requireUser fails with NotFound unless a user with id exists.
func requireUser(tx *gorm.DB, field string, id uuid.UUID) error {
	var count int64
	if err := tx.Model(&model.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return &apperror.AppError{
			Err:     apperror.ErrNotFound,
			Message: "user not found with id " + id.String(),
			Field:   field,
		}
	}
	return nil
}

func requireOptionalUser(tx *gorm.DB, field string, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	return requireUser(tx, field, *id)
}
