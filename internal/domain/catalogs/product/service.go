package product

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/units"
	"stockledger/pkg/logger"
)

// Service provides business logic for the Product catalog.
type Service struct {
	repo      Repository
	txm       tx.Manager
	converter *units.Converter
}

// NewService creates a new Product service. The converter's cache is
// invalidated for a product whenever its unit graph changes.
func NewService(repo Repository, txm tx.Manager, converter *units.Converter) *Service {
	return &Service{repo: repo, txm: txm, converter: converter}
}

// Create validates and stores a new product. SKUs are unique.
func (s *Service) Create(ctx context.Context, p *Product) error {
	if id.IsNil(p.ID) {
		p.ID = id.New()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	p.Version = 1

	if err := p.Validate(ctx); err != nil {
		return err
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindBySKU(ctx, p.SKU)
		if err != nil && !apperror.IsNotFound(err) {
			return fmt.Errorf("check sku: %w", err)
		}
		if existing != nil {
			return apperror.NewConflict("product with this SKU already exists").WithDetail("sku", p.SKU)
		}
		return s.repo.Create(ctx, p)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "product created", "product_id", p.ID, "sku", p.SKU)
	return nil
}

// Get returns a product by ID.
func (s *Service) Get(ctx context.Context, productID id.ID) (*Product, error) {
	return s.repo.GetByID(ctx, productID)
}

// List returns products matching filter and the total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Product, int, error) {
	return s.repo.List(ctx, filter)
}

// UpdateInput carries the mutable product attributes. Nil fields are left unchanged.
type UpdateInput struct {
	Name        *string
	Barcode     *string
	Category    *string
	Units       *units.Definition
	StockLevels *StockLevels
	CostPrice   *types.Money
	IsActive    *bool
}

// Update applies in to the product and persists it.
func (s *Service) Update(ctx context.Context, productID id.ID, in UpdateInput) (*Product, error) {
	var updated *Product
	unitsChanged := false

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, productID)
		if err != nil {
			return err
		}

		if in.Name != nil {
			p.Name = strings.TrimSpace(*in.Name)
		}
		if in.Barcode != nil {
			p.Barcode = *in.Barcode
		}
		if in.Category != nil {
			p.Category = *in.Category
		}
		if in.Units != nil {
			p.Units = *in.Units
			unitsChanged = true
		}
		if in.StockLevels != nil {
			p.StockLevels = *in.StockLevels
		}
		if in.CostPrice != nil {
			p.CostPrice = *in.CostPrice
		}
		if in.IsActive != nil {
			p.IsActive = *in.IsActive
		}
		p.UpdatedAt = time.Now().UTC()

		if err := p.Validate(ctx); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if unitsChanged {
		s.converter.Cache().Invalidate(productID.String())
		logger.Info(ctx, "product units changed, conversion cache invalidated", "product_id", productID)
	}
	return updated, nil
}
