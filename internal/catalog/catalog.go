package catalog

import (
	"context"

	"github.com/joa111/ecom-mang/internal/domain"
)

// Catalog resolves a product ID to its catalog snapshot. The cart snapshots
// price and stock at add-time only; it never polls the catalog.
type Catalog interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
}
