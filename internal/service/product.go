package service

import (
	"context"
	"log/slog"

	"github.com/sakif/product-registry/internal/model"
	"github.com/sakif/product-registry/internal/repository"
)

// ProductService handles business logic for products.
//
// Most rules (referenced users must exist, the reference is generated once,
// updated_at moves on every write) live in the repository because they must
// hold inside its transaction. The service logs the state changes.
type ProductService struct {
	repo   repository.ProductRepository
	logger *slog.Logger
}

func NewProductService(repo repository.ProductRepository, logger *slog.Logger) *ProductService {
	return &ProductService{
		repo:   repo,
		logger: logger,
	}
}

func (s *ProductService) Create(ctx context.Context, in repository.NewProduct) (*model.Product, error) {
	p, err := s.repo.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.logger.Info("product created",
		slog.String("productID", p.ID.String()),
		slog.String("reference", p.Reference),
		slog.String("mairieUserID", p.MairieUserID.String()),
	)
	return p, nil
}

func (s *ProductService) Get(ctx context.Context, id string) (*model.Product, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *ProductService) List(ctx context.Context, opts repository.ListOptions) ([]model.Product, error) {
	return s.repo.List(ctx, opts)
}

func (s *ProductService) ListByOwner(ctx context.Context, userID string) ([]model.Product, error) {
	return s.repo.FindByOwner(ctx, userID)
}

func (s *ProductService) ListByMunicipality(ctx context.Context, mairieUserID string) ([]model.Product, error) {
	return s.repo.FindByMunicipality(ctx, mairieUserID)
}

func (s *ProductService) ListByAssociation(ctx context.Context, associationUserID string) ([]model.Product, error) {
	return s.repo.FindByAssociation(ctx, associationUserID)
}

func (s *ProductService) Update(ctx context.Context, id string, patch repository.ProductPatch) (*model.Product, error) {
	p, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.logger.Info("product updated", slog.String("productID", id))
	return p, nil
}

func (s *ProductService) UpdateStatus(ctx context.Context, id, status string) (*model.Product, error) {
	p, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.logger.Info("product status changed",
		slog.String("productID", id),
		slog.String("status", status),
	)
	return p, nil
}

func (s *ProductService) AssignAssociation(ctx context.Context, id, associationUserID string) (*model.Product, error) {
	p, err := s.repo.UpdateAssociation(ctx, id, associationUserID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("product assigned to association",
		slog.String("productID", id),
		slog.String("associationUserID", associationUserID),
	)
	return p, nil
}

// MarkDeposed records that the physical item was handed in.
func (s *ProductService) MarkDeposed(ctx context.Context, id string) (*model.Product, error) {
	p, err := s.repo.MarkDeposed(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("product deposed", slog.String("productID", id))
	return p, nil
}

func (s *ProductService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("product deleted", slog.String("productID", id))
	return nil
}
