package memory

import (
	"context"
	"sort"
	"strings"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/units"
)

var _ product.Repository = (*ProductRepo)(nil)

// ProductRepo implements product.Repository.
type ProductRepo struct {
	store *Store
}

func cloneProduct(p *product.Product) *product.Product {
	out := *p
	out.Units = units.Definition{
		Base:         p.Units.Base,
		Alternatives: append([]units.Alternative(nil), p.Units.Alternatives...),
	}
	return &out
}

func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	return r.store.access(ctx, func(st *state) error {
		if _, ok := st.products[p.ID]; ok {
			return apperror.NewConflict("product already exists").WithDetail("id", p.ID.String())
		}
		for _, other := range st.products {
			if strings.EqualFold(other.SKU, p.SKU) {
				return apperror.NewConflict("sku already in use").WithDetail("sku", p.SKU)
			}
		}
		if p.Version == 0 {
			p.Version = 1
		}
		st.products[p.ID] = cloneProduct(p)
		return nil
	})
}

func (r *ProductRepo) Update(ctx context.Context, p *product.Product) error {
	return r.store.access(ctx, func(st *state) error {
		cur, ok := st.products[p.ID]
		if !ok {
			return apperror.NewNotFound("product", p.ID)
		}
		if cur.Version != p.Version {
			return apperror.NewTransactionConflict("product", p.ID)
		}
		p.Version++
		st.products[p.ID] = cloneProduct(p)
		return nil
	})
}

func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	var out *product.Product
	err := r.store.access(ctx, func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return apperror.NewNotFound("product", productID)
		}
		out = cloneProduct(p)
		return nil
	})
	return out, err
}

func (r *ProductRepo) FindBySKU(ctx context.Context, sku string) (*product.Product, error) {
	var out *product.Product
	err := r.store.access(ctx, func(st *state) error {
		for _, p := range st.products {
			if strings.EqualFold(p.SKU, strings.TrimSpace(sku)) {
				out = cloneProduct(p)
				return nil
			}
		}
		return apperror.NewNotFound("product", sku)
	})
	return out, err
}

func (r *ProductRepo) List(ctx context.Context, filter product.ListFilter) ([]*product.Product, int, error) {
	var (
		out   []*product.Product
		total int
	)
	err := r.store.access(ctx, func(st *state) error {
		var wanted map[id.ID]bool
		if filter.IDs != nil {
			wanted = make(map[id.ID]bool, len(filter.IDs))
			for _, pid := range filter.IDs {
				wanted[pid] = true
			}
		}

		matched := make([]*product.Product, 0, len(st.products))
		for _, p := range st.products {
			if wanted != nil && !wanted[p.ID] {
				continue
			}
			if filter.Category != "" && !strings.EqualFold(p.Category, filter.Category) {
				continue
			}
			if filter.Search != "" && !p.Matches(filter.Search) {
				continue
			}
			matched = append(matched, p)
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i].SKU < matched[j].SKU })

		total = len(matched)
		start, end := page(total, filter.Offset, filter.Limit)
		out = make([]*product.Product, 0, end-start)
		for _, p := range matched[start:end] {
			out = append(out, cloneProduct(p))
		}
		return nil
	})
	return out, total, err
}
