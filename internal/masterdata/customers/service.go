package customers

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Customer, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	if id <= 0 {
		return Customer{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, customer Customer) (Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return Customer{}, fmt.Errorf("%w: name", shared.ErrRequiredField)
	}
	return s.repo.Create(ctx, customer)
}

func (s *Service) Update(ctx context.Context, id int64, customer Customer) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if strings.TrimSpace(customer.Name) == "" {
		return fmt.Errorf("%w: name", shared.ErrRequiredField)
	}
	return s.repo.Update(ctx, id, customer)
}

func (s *Service) ListGroups(ctx context.Context) ([]CustomerGroup, error) {
	return s.repo.ListGroups(ctx)
}

func (s *Service) CreateGroup(ctx context.Context, group CustomerGroup) (CustomerGroup, error) {
	if strings.TrimSpace(group.Name) == "" {
		return CustomerGroup{}, fmt.Errorf("%w: name", shared.ErrRequiredField)
	}
	return s.repo.CreateGroup(ctx, group)
}
