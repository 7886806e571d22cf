// Package masterdata exposes reference-data services (products, stores,
// customers, suppliers) and the read-only ports the document engines
// consume them through.
package masterdata

import (
	"context"
	"errors"
	"fmt"

	mdshared "github.com/atlas-retail/atlas-erp/internal/masterdata/shared"

	"github.com/atlas-retail/atlas-erp/internal/masterdata/customers"
	"github.com/atlas-retail/atlas-erp/internal/masterdata/products"
	"github.com/atlas-retail/atlas-erp/internal/masterdata/stores"
	"github.com/atlas-retail/atlas-erp/internal/masterdata/suppliers"
	"github.com/atlas-retail/atlas-erp/internal/pricing"
	"github.com/atlas-retail/atlas-erp/internal/procurement"
	"github.com/atlas-retail/atlas-erp/internal/sales"
	"github.com/atlas-retail/atlas-erp/internal/shared"
)

// Port adapts the masterdata services to the lookup interfaces the
// procurement and sales engines depend on. Missing IDs surface as
// shared.ErrReferenceNotFound per the engines' contract.
type Port struct {
	products  *products.Service
	stores    *stores.Service
	customers *customers.Service
	suppliers *suppliers.Service
}

// NewPort builds the adapter.
func NewPort(p *products.Service, s *stores.Service, c *customers.Service, v *suppliers.Service) *Port {
	return &Port{products: p, stores: s, customers: c, suppliers: v}
}

var (
	_ procurement.MasterDataPort = (*Port)(nil)
	_ sales.MasterDataPort       = (*SalesPort)(nil)
)

// Product resolves a product for procurement line pricing and
// batch/expiry flag enforcement.
func (p *Port) Product(ctx context.Context, id int64) (procurement.ProductRef, error) {
	product, err := p.products.Get(ctx, id)
	if err != nil {
		return procurement.ProductRef{}, refErr("product", id, err)
	}
	return procurement.ProductRef{
		ID:                  product.ID,
		SKU:                 product.SKU,
		Name:                product.Name,
		UnitOfMeasure:       product.UnitOfMeasure,
		StandardCost:        product.StandardCost,
		RequiresBatchNumber: product.RequiresBatchNumber,
		RequiresExpiryDate:  product.RequiresExpiryDate,
	}, nil
}

// StoreExists checks the store code resolves to an active store.
func (p *Port) StoreExists(ctx context.Context, storeID string) error {
	store, err := p.stores.Get(ctx, storeID)
	if err != nil {
		return refErrCode("store", storeID, err)
	}
	if !store.IsActive {
		return fmt.Errorf("store %s inactive: %w", storeID, shared.ErrReferenceNotFound)
	}
	return nil
}

// SupplierExists checks the supplier ID resolves.
func (p *Port) SupplierExists(ctx context.Context, supplierID int64) error {
	if _, err := p.suppliers.Get(ctx, supplierID); err != nil {
		return refErr("supplier", supplierID, err)
	}
	return nil
}

// SalesPort narrows Port to the sales engine's view of masterdata.
// Defined separately because the sales ProductRef carries price tiers.
type SalesPort struct {
	*Port
}

// NewSalesPort builds the sales-side adapter.
func NewSalesPort(p *Port) *SalesPort {
	return &SalesPort{Port: p}
}

// Product resolves a product together with its selling tiers.
func (p *SalesPort) Product(ctx context.Context, id int64) (sales.ProductRef, error) {
	product, err := p.products.Get(ctx, id)
	if err != nil {
		return sales.ProductRef{}, refErr("product", id, err)
	}
	return sales.ProductRef{
		ID:            product.ID,
		SKU:           product.SKU,
		Name:          product.Name,
		UnitOfMeasure: product.UnitOfMeasure,
		StandardCost:  product.StandardCost,
		Tiers: pricing.PriceTiers{
			Shop:      product.ShopPrice,
			Field:     product.FieldPrice,
			Wholesale: product.WholesalePrice,
		},
	}, nil
}

// Customer resolves the pricing-relevant customer attributes.
func (p *SalesPort) Customer(ctx context.Context, id int64) (sales.CustomerRef, error) {
	customer, err := p.customers.Get(ctx, id)
	if err != nil {
		return sales.CustomerRef{}, refErr("customer", id, err)
	}
	return sales.CustomerRef{
		ID:        customer.ID,
		GroupID:   customer.GroupID,
		Wholesale: customer.IsWholesale,
	}, nil
}

func refErr(entity string, id int64, err error) error {
	if errors.Is(err, mdshared.ErrNotFound) || errors.Is(err, mdshared.ErrInvalidID) {
		return fmt.Errorf("%s %d: %w", entity, id, shared.ErrReferenceNotFound)
	}
	return err
}

func refErrCode(entity, code string, err error) error {
	if errors.Is(err, mdshared.ErrNotFound) || errors.Is(err, mdshared.ErrInvalidID) {
		return fmt.Errorf("%s %s: %w", entity, code, shared.ErrReferenceNotFound)
	}
	return err
}
