package memory

import (
	"context"
	"sort"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/inventory"
)

var _ inventory.Repository = (*InventoryRepo)(nil)

// InventoryRepo implements inventory.Repository with optimistic versions.
type InventoryRepo struct {
	store *Store
}

func cloneInventory(inv *inventory.Inventory) *inventory.Inventory {
	out := inv.Clone()
	return &out
}

// GetForUpdate is Get: holding the transaction already excludes other writers.
func (r *InventoryRepo) GetForUpdate(ctx context.Context, productID, locationID id.ID) (*inventory.Inventory, error) {
	return r.Get(ctx, productID, locationID)
}

func (r *InventoryRepo) Get(ctx context.Context, productID, locationID id.ID) (*inventory.Inventory, error) {
	var out *inventory.Inventory
	err := r.store.access(ctx, func(st *state) error {
		inv, ok := st.inventories[invKey{productID, locationID}]
		if !ok {
			return apperror.NewNotFound("inventory", productID.String()+"@"+locationID.String())
		}
		out = cloneInventory(inv)
		return nil
	})
	return out, err
}

func (r *InventoryRepo) Create(ctx context.Context, inv *inventory.Inventory) error {
	return r.store.access(ctx, func(st *state) error {
		k := invKey{inv.ProductID, inv.LocationID}
		if _, ok := st.inventories[k]; ok {
			return apperror.NewTransactionConflict("inventory", inv.ID)
		}
		inv.Version = 1
		st.inventories[k] = cloneInventory(inv)
		return nil
	})
}

func (r *InventoryRepo) Save(ctx context.Context, inv *inventory.Inventory) error {
	return r.store.access(ctx, func(st *state) error {
		k := invKey{inv.ProductID, inv.LocationID}
		cur, ok := st.inventories[k]
		if !ok {
			return apperror.NewNotFound("inventory", inv.ID)
		}
		if cur.Version != inv.Version {
			return apperror.NewTransactionConflict("inventory", inv.ID)
		}
		inv.Version++
		st.inventories[k] = cloneInventory(inv)
		return nil
	})
}

func (r *InventoryRepo) List(ctx context.Context, filter inventory.ListFilter) ([]*inventory.Inventory, int, error) {
	var out []*inventory.Inventory
	err := r.store.access(ctx, func(st *state) error {
		var wanted map[id.ID]bool
		if filter.ProductIDs != nil {
			wanted = make(map[id.ID]bool, len(filter.ProductIDs))
			for _, pid := range filter.ProductIDs {
				wanted[pid] = true
			}
		}

		out = make([]*inventory.Inventory, 0, len(st.inventories))
		for k, inv := range st.inventories {
			if wanted != nil && !wanted[k.productID] {
				continue
			}
			if filter.ProductID != nil && *filter.ProductID != k.productID {
				continue
			}
			if filter.LocationID != nil && *filter.LocationID != k.locationID {
				continue
			}
			out = append(out, cloneInventory(inv))
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sortInventories(out, filter.SortBy, filter.SortDesc)
	total := len(out)
	start, end := page(total, filter.Offset, filter.Limit)
	return out[start:end], total, nil
}

func sortInventories(invs []*inventory.Inventory, by inventory.SortField, desc bool) {
	cmp := func(a, b *inventory.Inventory) int {
		switch by {
		case inventory.SortCreatedAt:
			return a.CreatedAt.Compare(b.CreatedAt)
		case inventory.SortAvailable:
			return a.Totals.Available.Cmp(b.Totals.Available)
		case inventory.SortReserved:
			return a.Totals.Reserved.Cmp(b.Totals.Reserved)
		case inventory.SortQuarantine:
			return a.Totals.Quarantine.Cmp(b.Totals.Quarantine)
		default:
			return a.UpdatedAt.Compare(b.UpdatedAt)
		}
	}
	sort.SliceStable(invs, func(i, j int) bool {
		c := cmp(invs[i], invs[j])
		if c == 0 {
			return invs[i].ID.String() < invs[j].ID.String()
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}
