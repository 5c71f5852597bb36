package catalog

import (
	"context"
	"sync"

	"github.com/joa111/ecom-mang/internal/domain"
	apperrors "github.com/joa111/ecom-mang/pkg/errors"
)

// Memory is an in-memory Catalog used in tests and local development.
type Memory struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

// NewMemory creates an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{products: make(map[string]domain.Product)}
}

// Put stores or replaces a product.
func (m *Memory) Put(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

// GetProduct returns the stored product or ErrNotFound.
func (m *Memory) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[productID]
	if !ok {
		return nil, apperrors.NotFound("product", productID)
	}
	return &p, nil
}
