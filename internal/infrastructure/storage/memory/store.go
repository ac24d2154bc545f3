// Package memory provides an in-process store implementing the ledger
// repositories and tx.Manager. Transactions are serialized by one lock and
// roll back by restoring a snapshot; it backs tests and single-node demos.
package memory

import (
	"context"
	"sync"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/inventory"
)

var _ tx.Manager = (*Store)(nil)

type invKey struct {
	productID  id.ID
	locationID id.ID
}

// state holds the data. Stored values are never mutated in place: writers
// replace them with fresh copies, so a shallow copy of the maps is a
// consistent snapshot.
type state struct {
	products    map[id.ID]*product.Product
	inventories map[invKey]*inventory.Inventory
	movements   []*entity.Movement
	alerts      map[id.ID]*entity.Alert
}

func (st state) snapshot() state {
	out := state{
		products:    make(map[id.ID]*product.Product, len(st.products)),
		inventories: make(map[invKey]*inventory.Inventory, len(st.inventories)),
		movements:   st.movements[:len(st.movements):len(st.movements)],
		alerts:      make(map[id.ID]*entity.Alert, len(st.alerts)),
	}
	for k, v := range st.products {
		out.products[k] = v
	}
	for k, v := range st.inventories {
		out.inventories[k] = v
	}
	for k, v := range st.alerts {
		out.alerts[k] = v
	}
	return out
}

// Store is the in-memory database.
type Store struct {
	mu   sync.Mutex
	data state
}

// New creates an empty store.
func New() *Store {
	return &Store{
		data: state{
			products:    map[id.ID]*product.Product{},
			inventories: map[invKey]*inventory.Inventory{},
			alerts:      map[id.ID]*entity.Alert{},
		},
	}
}

// txKey marks a context running inside a transaction of one store.
type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// RunInTransaction executes fn with the store locked. Nested calls reuse the
// outer transaction. On error every write made by fn is discarded.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.data.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.data = saved
		return err
	}
	return nil
}

// access runs fn against the data, taking the lock unless ctx already
// holds it through a transaction.
func (s *Store) access(ctx context.Context, fn func(st *state) error) error {
	if s.inTx(ctx) {
		return fn(&s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.data)
}

// Products returns the product repository.
func (s *Store) Products() *ProductRepo { return &ProductRepo{store: s} }

// Inventories returns the inventory repository.
func (s *Store) Inventories() *InventoryRepo { return &InventoryRepo{store: s} }

// Movements returns the movement log.
func (s *Store) Movements() *MovementRepo { return &MovementRepo{store: s} }

// Alerts returns the alert repository.
func (s *Store) Alerts() *AlertRepo { return &AlertRepo{store: s} }

// Ping always succeeds; it mirrors the database health probe.
func (s *Store) Ping(context.Context) error { return nil }

// page applies offset and limit (0 means no limit) to n items.
func page(n, offset, limit int) (start, end int) {
	start = min(max(offset, 0), n)
	end = n
	if limit > 0 {
		end = min(start+limit, n)
	}
	return start, end
}
