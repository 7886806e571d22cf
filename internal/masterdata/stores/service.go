package stores

import (
	"context"
	"fmt"
	"strings"

	"github.com/atlas-retail/atlas-erp/internal/masterdata/shared"
	"github.com/atlas-retail/atlas-erp/internal/sequence"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Store, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, code string) (Store, error) {
	if strings.TrimSpace(code) == "" {
		return Store{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, code)
}

func (s *Service) Create(ctx context.Context, store Store) (Store, error) {
	if err := s.validate(store); err != nil {
		return Store{}, err
	}
	return s.repo.Create(ctx, store)
}

func (s *Service) Update(ctx context.Context, code string, store Store) error {
	if strings.TrimSpace(code) == "" {
		return shared.ErrInvalidID
	}
	if err := s.validate(store); err != nil {
		return err
	}
	return s.repo.Update(ctx, code, store)
}

func (s *Service) Delete(ctx context.Context, code string) error {
	if strings.TrimSpace(code) == "" {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, code)
}

func (s *Service) validate(store Store) error {
	if strings.TrimSpace(store.Code) == "" {
		return fmt.Errorf("%w: code", shared.ErrRequiredField)
	}
	if strings.TrimSpace(store.Name) == "" {
		return fmt.Errorf("%w: name", shared.ErrRequiredField)
	}
	if !ValidType(store.Type) {
		return fmt.Errorf("%w: unknown store type %q", shared.ErrValidation, store.Type)
	}
	return nil
}

// InvoicePrefix resolves the store's registered numbering prefix for an
// invoice series. It satisfies the sequence allocator's prefix source.
func (s *Service) InvoicePrefix(ctx context.Context, storeID string, kind sequence.Kind) (string, error) {
	store, err := s.repo.Get(ctx, storeID)
	if err != nil {
		return "", err
	}
	var prefix *string
	switch kind {
	case sequence.KindInvoiceCash:
		prefix = store.CashPrefix
	case sequence.KindInvoiceLayby:
		prefix = store.LaybyPrefix
	case sequence.KindInvoiceField:
		prefix = store.FieldPrefix
	default:
		return "", sequence.ErrUnknownKind
	}
	if prefix == nil || *prefix == "" {
		return "", fmt.Errorf("store %s, kind %s: %w", storeID, kind, sequence.ErrPrefixNotConfigured)
	}
	return *prefix, nil
}
