package products

import (
	"fmt"
	"strings"

	"github.com/atlas-retail/atlas-erp/internal/masterdata/shared"
)

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.SKU) == "" {
		return fmt.Errorf("%w: sku", shared.ErrRequiredField)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name", shared.ErrRequiredField)
	}
	for _, price := range []float64{p.StandardCost, p.ShopPrice, p.FieldPrice, p.WholesalePrice} {
		if price < 0 {
			return fmt.Errorf("%w: prices must not be negative", shared.ErrValidation)
		}
	}
	if p.ReorderLevel < 0 {
		return fmt.Errorf("%w: reorder level must not be negative", shared.ErrValidation)
	}
	return nil
}
