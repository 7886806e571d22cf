package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/atlas-retail/atlas-erp/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) GetBySKU(ctx context.Context, sku string) (Product, error) {
	if strings.TrimSpace(sku) == "" {
		return Product{}, fmt.Errorf("%w: sku", shared.ErrRequiredField)
	}
	return s.repo.GetBySKU(ctx, sku)
}

func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, product)
}

func (s *Service) Update(ctx context.Context, id int64, product Product) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.validate(product); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, product)
}

// RecordPurchasePrice updates the last purchase price tier after a
// goods receipt posting.
func (s *Service) RecordPurchasePrice(ctx context.Context, id int64, price float64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if price < 0 {
		return fmt.Errorf("%w: purchase price must not be negative", shared.ErrValidation)
	}
	return s.repo.SetLastPurchasePrice(ctx, id, price)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}
