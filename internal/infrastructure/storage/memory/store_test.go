package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/inventory"
)

func TestRunInTransaction_RollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := product.New("SKU-1", "Milk", "l")
	require.NoError(t, s.Products().Create(ctx, p))

	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		inv := inventory.New(p.ID, id.New(), "l", time.Now())
		require.NoError(t, s.Inventories().Create(ctx, &inv))
		require.NoError(t, s.Movements().Append(ctx, &entity.Movement{ID: id.New(), Type: entity.MovementEntry, ProductID: p.ID}))

		p.Name = "Oat milk"
		require.NoError(t, s.Products().Update(ctx, p))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Products().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Milk", got.Name)
	assert.Equal(t, 1, got.Version)

	invs, n, err := s.Inventories().List(ctx, inventory.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, invs)
	assert.Zero(t, n)

	_, total, err := s.Movements().List(ctx, inventory.MovementFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)

	// appends after a rollback must not resurrect discarded entries
	require.NoError(t, s.Movements().Append(ctx, &entity.Movement{ID: id.New(), Type: entity.MovementExit, ProductID: p.ID}))
	items, total, err := s.Movements().List(ctx, inventory.MovementFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, entity.MovementExit, items[0].Type)
}

func TestRunInTransaction_Nested(t *testing.T) {
	ctx := context.Background()
	s := New()

	calls := 0
	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.RunInTransaction(ctx, func(ctx context.Context) error {
			calls++
			return s.Products().Create(ctx, product.New("SKU-2", "Eggs", "unit"))
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, total, err := s.Products().List(ctx, product.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestInventoryRepo_VersionCheck(t *testing.T) {
	ctx := context.Background()
	s := New()
	repo := s.Inventories()

	inv := inventory.New(id.New(), id.New(), "kg", time.Now())
	require.NoError(t, repo.Create(ctx, &inv))
	assert.Equal(t, 1, inv.Version)

	dup := inventory.New(inv.ProductID, inv.LocationID, "kg", time.Now())
	assert.True(t, apperror.IsTransactionConflict(repo.Create(ctx, &dup)))

	stale := inv
	inv.Totals.Available = decimal.NewFromInt(3)
	require.NoError(t, repo.Save(ctx, &inv))
	assert.Equal(t, 2, inv.Version)

	assert.True(t, apperror.IsTransactionConflict(repo.Save(ctx, &stale)))

	got, err := repo.GetForUpdate(ctx, inv.ProductID, inv.LocationID)
	require.NoError(t, err)
	assert.True(t, got.Totals.Available.Equal(decimal.NewFromInt(3)))

	_, err = repo.Get(ctx, id.New(), inv.LocationID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestAlertRepo_Ordering(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()

	alerts := []entity.Alert{
		{ID: id.New(), Type: entity.AlertReorderPoint, Priority: entity.PriorityMedium, IsActive: true, CreatedAt: now},
		{ID: id.New(), Type: entity.AlertExpiredProduct, Priority: entity.PriorityCritical, IsActive: true, CreatedAt: now.Add(-time.Hour)},
		{ID: id.New(), Type: entity.AlertLowStock, Priority: entity.PriorityHigh, IsActive: false, CreatedAt: now},
	}
	require.NoError(t, s.Alerts().Insert(ctx, alerts))

	active, total, err := s.Alerts().List(ctx, inventory.AlertFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, entity.PriorityCritical, active[0].Priority)

	all, total, err := s.Alerts().List(ctx, inventory.AlertFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, all, 1)
	assert.Equal(t, entity.PriorityHigh, all[0].Priority)
}
