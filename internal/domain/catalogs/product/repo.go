package product

import (
	"context"

	"stockledger/internal/core/id"
)

// ListFilter narrows product listings.
type ListFilter struct {
	IDs      []id.ID
	Search   string
	Category string
	Limit    int
	Offset   int
}

// Repository defines the interface for Product persistence.
type Repository interface {
	Create(ctx context.Context, p *Product) error

	// Update saves p if its Version still matches, then bumps it.
	Update(ctx context.Context, p *Product) error

	GetByID(ctx context.Context, productID id.ID) (*Product, error)

	// FindBySKU returns NOT_FOUND when no product carries sku.
	FindBySKU(ctx context.Context, sku string) (*Product, error)

	List(ctx context.Context, filter ListFilter) ([]*Product, int, error)
}
