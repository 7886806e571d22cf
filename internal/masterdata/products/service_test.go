package products

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlas-retail/atlas-erp/internal/masterdata/shared"
)

type memoryRepo struct {
	products map[int64]Product
	lastID   int64
}

func (r *memoryRepo) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	var list []Product
	for _, p := range r.products {
		list = append(list, p)
	}
	return list, len(list), nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Product, error) {
	p, ok := r.products[id]
	if !ok {
		return Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) GetBySKU(ctx context.Context, sku string) (Product, error) {
	for _, p := range r.products {
		if p.SKU == sku {
			return p, nil
		}
	}
	return Product{}, shared.ErrNotFound
}

func (r *memoryRepo) Create(ctx context.Context, product Product) (Product, error) {
	for _, existing := range r.products {
		if existing.SKU == product.SKU {
			return Product{}, shared.ErrDuplicate
		}
	}
	r.lastID++
	product.ID = r.lastID
	r.products[product.ID] = product
	return product, nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, product Product) error {
	if _, ok := r.products[id]; !ok {
		return shared.ErrNotFound
	}
	product.ID = id
	r.products[id] = product
	return nil
}

func (r *memoryRepo) SetLastPurchasePrice(ctx context.Context, id int64, price float64) error {
	p, ok := r.products[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.LastPurchasePrice = price
	r.products[id] = p
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.products[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.products, id)
	return nil
}

func newTestService() (*Service, *memoryRepo) {
	repo := &memoryRepo{products: map[int64]Product{}}
	return NewService(repo), repo
}

func TestCreateRequiresSKUAndName(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), Product{Name: "Widget"})
	require.ErrorIs(t, err, shared.ErrRequiredField)

	_, err = svc.Create(context.Background(), Product{SKU: "WID-1"})
	require.ErrorIs(t, err, shared.ErrRequiredField)

	created, err := svc.Create(context.Background(), Product{SKU: "WID-1", Name: "Widget", ShopPrice: 100})
	require.NoError(t, err)
	require.Equal(t, int64(1), created.ID)
}

func TestCreateRejectsNegativePrices(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), Product{SKU: "WID-1", Name: "Widget", FieldPrice: -1})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateRejectsDuplicateSKU(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), Product{SKU: "WID-1", Name: "Widget"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), Product{SKU: "WID-1", Name: "Other"})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestRecordPurchasePrice(t *testing.T) {
	svc, repo := newTestService()

	created, err := svc.Create(context.Background(), Product{SKU: "WID-1", Name: "Widget"})
	require.NoError(t, err)

	require.NoError(t, svc.RecordPurchasePrice(context.Background(), created.ID, 25.5))
	require.Equal(t, 25.5, repo.products[created.ID].LastPurchasePrice)

	require.ErrorIs(t, svc.RecordPurchasePrice(context.Background(), created.ID, -1), shared.ErrValidation)
	require.ErrorIs(t, svc.RecordPurchasePrice(context.Background(), 0, 10), shared.ErrInvalidID)
}
