package product

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Service implements catalog browsing and the admin product operations.
type Service struct {
	repo Repository
}

// NewService creates a product Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns every product, or only those matching search when it is not
// blank.
func (s *Service) List(ctx context.Context, search string) ([]Product, error) {
	if q := strings.TrimSpace(search); q != "" {
		products, err := s.repo.Search(ctx, q)
		if err != nil {
			return nil, errors.Wrap(err, "search products")
		}
		return products, nil
	}
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// Create validates p, assigns it a new ID and stores it.
func (s *Service) Create(ctx context.Context, p Product) (*Product, error) {
	p.ID = uuid.New().String()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return &p, nil
}

// Update replaces the stored product with the same ID.
func (s *Service) Update(ctx context.Context, p Product) (*Product, error) {
	if p.ID == "" {
		return nil, &ValidationError{Fields: []string{"_id"}}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &p); err != nil {
		return nil, errors.Wrap(err, "update product")
	}
	return &p, nil
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete product")
	}
	return nil
}
