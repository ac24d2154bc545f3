package inventory_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/inventory"
	"stockledger/internal/domain/units"
	"stockledger/internal/infrastructure/storage/memory"
	"stockledger/internal/notify"
)

var now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func q(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

type recordingNotifier struct {
	mu       sync.Mutex
	payloads []notify.Payload
}

func (n *recordingNotifier) Enqueue(_ context.Context, p notify.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = append(n.payloads, p)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.payloads)
}

// conflictingRepo fails the first n saves with a transaction conflict.
type conflictingRepo struct {
	*memory.InventoryRepo
	failures atomic.Int32
	saves    atomic.Int32
}

func (r *conflictingRepo) Save(ctx context.Context, inv *inventory.Inventory) error {
	r.saves.Add(1)
	if r.failures.Add(-1) >= 0 {
		return apperror.NewTransactionConflict("inventory", inv.ID)
	}
	return r.InventoryRepo.Save(ctx, inv)
}

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	svc      *inventory.Service
	notifier *recordingNotifier
	flour    *product.Product
	locA     id.ID
	locB     id.ID
}

// newFixture builds a service over a fresh store. wrap, when set, decorates
// the inventory repository.
func newFixture(t *testing.T, wrap func(*memory.InventoryRepo) inventory.Repository) *fixture {
	t.Helper()
	store := memory.New()
	var inventories inventory.Repository = store.Inventories()
	if wrap != nil {
		inventories = wrap(store.Inventories())
	}

	flour := product.New("FLR-01", "Wheat flour", "kg")
	flour.Category = "bakery"
	flour.Units.Alternatives = []units.Alternative{{Code: "bag", Name: "Bag", ConversionFactor: 25}}
	flour.StockLevels = product.StockLevels{Minimum: q(10), ReorderPoint: q(10)}
	flour.CostPrice = q(2)
	require.NoError(t, store.Products().Create(context.Background(), flour))

	notifier := &recordingNotifier{}
	cfg := inventory.DefaultConfig()
	cfg.Retry = tx.RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}
	cfg.Now = func() time.Time { return now }

	svc := inventory.NewService(inventory.Deps{
		TxManager:   store,
		Products:    store.Products(),
		Inventories: inventories,
		Movements:   store.Movements(),
		Alerts:      store.Alerts(),
		Converter:   units.NewConverter(units.NewFactorCache()),
		Notifier:    notifier,
	}, cfg)

	return &fixture{
		ctx:      appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u-1"}),
		store:    store,
		svc:      svc,
		notifier: notifier,
		flour:    flour,
		locA:     id.New(),
		locB:     id.New(),
	}
}

func (f *fixture) receive(t *testing.T, loc id.ID, qty, cost float64, batchID string) *inventory.Result {
	t.Helper()
	c := types.NewMoney(cost)
	res, err := f.svc.AdjustStock(f.ctx, inventory.AdjustInput{
		ProductID:   f.flour.ID,
		LocationID:  loc,
		Quantity:    qty,
		Unit:        "kg",
		Reason:      "purchase",
		BatchID:     batchID,
		CostPerUnit: &c,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) movements(t *testing.T) []*entity.Movement {
	t.Helper()
	items, _, err := f.store.Movements().List(context.Background(), inventory.MovementFilter{Ascending: true})
	require.NoError(t, err)
	return items
}

func alertsOf(alerts []entity.Alert, typ entity.AlertType) int {
	n := 0
	for _, a := range alerts {
		if a.Type == typ {
			n++
		}
	}
	return n
}

func TestAdjustStock_Entry(t *testing.T) {
	f := newFixture(t, nil)

	res := f.receive(t, f.locA, 12, 10, "LOT-1")

	require.NotNil(t, res.Inventory)
	assert.Equal(t, 1, res.Inventory.Version)
	assert.True(t, res.Inventory.Totals.Available.Equal(q(12)))
	assert.Equal(t, "kg", res.Inventory.Totals.Unit)
	assert.Empty(t, res.Alerts)

	mv := res.Movement
	require.NotNil(t, mv)
	assert.Equal(t, entity.MovementEntry, mv.Type)
	assert.Nil(t, mv.FromLocation)
	require.NotNil(t, mv.ToLocation)
	assert.Equal(t, f.locA, *mv.ToLocation)
	assert.True(t, mv.Quantity.Equal(q(12)))
	assert.True(t, mv.Cost.Equal(q(120)))
	assert.Equal(t, "u-1", mv.PerformedBy)
	assert.Len(t, f.movements(t), 1)
}

func TestAdjustStock_ConvertsUnits(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.AdjustStock(f.ctx, inventory.AdjustInput{
		ProductID: f.flour.ID, LocationID: f.locA, Quantity: 2, Unit: "bag",
	})
	require.NoError(t, err)
	assert.True(t, res.Inventory.Totals.Available.Equal(q(50)))
	assert.True(t, res.Inventory.Batches[0].CostPerUnit.Equal(q(2)), "defaults to product cost")
	assert.NotEmpty(t, res.Inventory.Batches[0].BatchID)

	_, err = f.svc.AdjustStock(f.ctx, inventory.AdjustInput{
		ProductID: f.flour.ID, LocationID: f.locA, Quantity: 1, Unit: "litre",
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeNoConversionPath))
}

func TestAdjustStock_InactiveProduct(t *testing.T) {
	f := newFixture(t, nil)
	f.receive(t, f.locA, 5, 1, "LOT-1")

	p, err := f.store.Products().GetByID(context.Background(), f.flour.ID)
	require.NoError(t, err)
	p.IsActive = false
	require.NoError(t, f.store.Products().Update(context.Background(), p))

	_, err = f.svc.AdjustStock(f.ctx, inventory.AdjustInput{
		ProductID: f.flour.ID, LocationID: f.locA, Quantity: 1, Unit: "kg",
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))

	// Existing stock can still leave.
	_, err = f.svc.AdjustStock(f.ctx, inventory.AdjustInput{
		ProductID: f.flour.ID, LocationID: f.locA, Quantity: -2, Unit: "kg",
	})
	require.NoError(t, err)
}

func TestAdjustStock_Validation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.AdjustStock(f.ctx, inventory.AdjustInput{ProductID: f.flour.ID, LocationID: f.locA})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.svc.AdjustStock(f.ctx, inventory.AdjustInput{
		ProductID: f.flour.ID, LocationID: f.locA, Quantity: -1, Type: entity.MovementEntry,
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.svc.AdjustStock(f.ctx, inventory.AdjustInput{ProductID: id.New(), LocationID: f.locA, Quantity: 1})
	assert.True(t, apperror.IsNotFound(err))
}

func TestAdjustStock_InsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t, nil)
	f.receive(t, f.locA, 12, 10, "LOT-1")

	_, err := f.svc.AdjustStock(f.ctx, inventory.AdjustInput{
		ProductID: f.flour.ID, LocationID: f.locA, Quantity: -20, Reason: "waste",
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, "20", appErr.Details["requested"])
	assert.Equal(t, "12", appErr.Details["available"])
	assert.Equal(t, "8", appErr.Details["shortfall"])

	inv, err := f.store.Inventories().Get(context.Background(), f.flour.ID, f.locA)
	require.NoError(t, err)
	assert.Equal(t, 1, inv.Version)
	assert.True(t, inv.Totals.Available.Equal(q(12)))
	assert.Len(t, f.movements(t), 1)

	_, err = f.svc.AdjustStock(f.ctx, inventory.AdjustInput{
		ProductID: f.flour.ID, LocationID: f.locB, Quantity: -1,
	})
	assert.True(t, apperror.IsInsufficientStock(err))
	_, err = f.store.Inventories().Get(context.Background(), f.flour.ID, f.locB)
	assert.True(t, apperror.IsNotFound(err), "failed exit must not create a record")
}

func TestAdjustStock_LowStockAlert(t *testing.T) {
	f := newFixture(t, nil)
	f.receive(t, f.locA, 12, 10, "LOT-1")

	res, err := f.svc.AdjustStock(f.ctx, inventory.AdjustInput{
		ProductID: f.flour.ID, LocationID: f.locA, Quantity: -4, Reason: "bakery",
	})
	require.NoError(t, err)

	assert.Equal(t, entity.MovementExit, res.Movement.Type)
	assert.True(t, res.Movement.Cost.Equal(q(40)))
	assert.Equal(t, 1, alertsOf(res.Alerts, entity.AlertLowStock))
	assert.Equal(t, f.notifier.count(), len(res.Alerts))

	page, err := f.svc.GetActiveAlerts(f.ctx, inventory.AlertQuery{})
	require.NoError(t, err)
	assert.Equal(t, len(res.Alerts), page.Total)
	assert.Equal(t, entity.PriorityHigh, page.Items[0].Priority)
	assert.Equal(t, "Wheat flour", f.notifier.payloads[0].ProductName)
}

func TestAdjustStock_ExplicitAdjustment(t *testing.T) {
	f := newFixture(t, nil)
	f.receive(t, f.locA, 12, 10, "LOT-1")

	res, err := f.svc.AdjustStock(f.ctx, inventory.AdjustInput{
		ProductID: f.flour.ID, LocationID: f.locA, Quantity: -1, Type: entity.MovementAdjustment, Reason: "count",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.MovementAdjustment, res.Movement.Type)
	require.NotNil(t, res.Movement.FromLocation)
	assert.True(t, res.Inventory.Totals.Available.Equal(q(11)))
}

func TestTransferStock(t *testing.T) {
	f := newFixture(t, nil)
	expiry := now.AddDate(0, 2, 0)
	c := types.NewMoney(10)
	_, err := f.svc.AdjustStock(f.ctx, inventory.AdjustInput{
		ProductID: f.flour.ID, LocationID: f.locA, Quantity: 30, BatchID: "LOT-1", CostPerUnit: &c, ExpiryDate: &expiry,
	})
	require.NoError(t, err)

	res, err := f.svc.TransferStock(f.ctx, inventory.TransferInput{
		ProductID: f.flour.ID, FromLocationID: f.locA, ToLocationID: f.locB, Quantity: 12, Reason: "restock",
	})
	require.NoError(t, err)

	assert.True(t, res.Inventory.Totals.Available.Equal(q(18)))
	require.NotNil(t, res.Destination)
	assert.True(t, res.Destination.Totals.Available.Equal(q(12)))
	require.Len(t, res.Destination.Batches, 1)
	moved := res.Destination.Batches[0]
	assert.Equal(t, "LOT-1", moved.BatchID)
	assert.True(t, moved.CostPerUnit.Equal(q(10)))
	require.NotNil(t, moved.ExpiryDate)
	assert.True(t, moved.ExpiryDate.Equal(expiry))

	assert.Equal(t, entity.MovementTransfer, res.Movement.Type)
	assert.True(t, res.Movement.Cost.Equal(q(120)))
	assert.Len(t, f.movements(t), 2)
}

func TestTransferStock_SameIDDifferentLot(t *testing.T) {
	f := newFixture(t, nil)
	f.receive(t, f.locA, 5, 10, "LOT-1")
	f.receive(t, f.locB, 5, 12, "LOT-1")

	_, err := f.svc.TransferStock(f.ctx, inventory.TransferInput{
		ProductID: f.flour.ID, FromLocationID: f.locA, ToLocationID: f.locB, Quantity: 5,
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))

	value := decimal.Zero
	for _, loc := range []id.ID{f.locA, f.locB} {
		inv, err := f.store.Inventories().Get(context.Background(), f.flour.ID, loc)
		require.NoError(t, err)
		require.Len(t, inv.Batches, 1)
		assert.True(t, inv.Batches[0].Quantity.Equal(q(5)))
		value = value.Add(inv.Batches[0].Value())
	}
	assert.True(t, value.Equal(q(110)), "value unchanged: %s", value)
	assert.Len(t, f.movements(t), 2)
}

func TestTransferStock_MergesSameLot(t *testing.T) {
	f := newFixture(t, nil)
	f.receive(t, f.locA, 10, 10, "LOT-1")

	for range 2 {
		_, err := f.svc.TransferStock(f.ctx, inventory.TransferInput{
			ProductID: f.flour.ID, FromLocationID: f.locA, ToLocationID: f.locB, Quantity: 3,
		})
		require.NoError(t, err)
	}

	dst, err := f.store.Inventories().Get(context.Background(), f.flour.ID, f.locB)
	require.NoError(t, err)
	require.Len(t, dst.Batches, 1)
	assert.True(t, dst.Batches[0].Quantity.Equal(q(6)))
	assert.True(t, dst.Batches[0].CostPerUnit.Equal(q(10)))
}

func TestTransferStock_Errors(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.TransferStock(f.ctx, inventory.TransferInput{
		ProductID: f.flour.ID, FromLocationID: f.locA, ToLocationID: f.locA, Quantity: 1,
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.svc.TransferStock(f.ctx, inventory.TransferInput{
		ProductID: f.flour.ID, FromLocationID: f.locA, ToLocationID: f.locB, Quantity: 1,
	})
	assert.True(t, apperror.IsNotFound(err))

	f.receive(t, f.locA, 5, 10, "LOT-1")
	_, err = f.svc.TransferStock(f.ctx, inventory.TransferInput{
		ProductID: f.flour.ID, FromLocationID: f.locA, ToLocationID: f.locB, Quantity: 6,
	})
	assert.True(t, apperror.IsInsufficientStock(err))
	_, err = f.store.Inventories().Get(context.Background(), f.flour.ID, f.locB)
	assert.True(t, apperror.IsNotFound(err))
}

func TestReservations(t *testing.T) {
	f := newFixture(t, nil)
	f.receive(t, f.locA, 20, 10, "LOT-1")

	res, err := f.svc.ReserveStock(f.ctx, inventory.ReserveInput{
		ProductID: f.flour.ID, LocationID: f.locA, Quantity: 5, ReservedFor: "order-7",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Reservation)
	assert.Nil(t, res.Movement)
	assert.True(t, res.Inventory.Totals.Available.Equal(q(15)))
	assert.True(t, res.Inventory.Totals.Reserved.Equal(q(5)))
	assert.Len(t, f.movements(t), 1, "reservations log no movement")

	_, err = f.svc.ConsumeStock(f.ctx, inventory.ConsumeInput{
		ProductID: f.flour.ID, LocationID: f.locA, Quantity: 16, Purpose: "bread",
	})
	assert.True(t, apperror.IsInsufficientStock(err))

	rid := res.Reservation.ID
	consumed, err := f.svc.ConsumeStock(f.ctx, inventory.ConsumeInput{
		ProductID: f.flour.ID, LocationID: f.locA, Quantity: 8, Purpose: "order-7", ReservationID: &rid,
	})
	require.NoError(t, err)
	assert.True(t, consumed.Inventory.Totals.Available.Equal(q(12)))
	assert.True(t, consumed.Inventory.Totals.Reserved.IsZero())
	assert.Equal(t, "consumption: order-7", consumed.Movement.Reason)

	_, err = f.svc.ReleaseReservation(f.ctx, inventory.ReleaseInput{
		ProductID: f.flour.ID, LocationID: f.locA, ReservationID: rid,
	})
	assert.True(t, apperror.IsNotFound(err))
}

func TestReleaseReservation(t *testing.T) {
	f := newFixture(t, nil)
	f.receive(t, f.locA, 20, 10, "LOT-1")

	res, err := f.svc.ReserveStock(f.ctx, inventory.ReserveInput{
		ProductID: f.flour.ID, LocationID: f.locA, Quantity: 6,
	})
	require.NoError(t, err)

	partial, err := f.svc.ReleaseReservation(f.ctx, inventory.ReleaseInput{
		ProductID: f.flour.ID, LocationID: f.locA, ReservationID: res.Reservation.ID, Quantity: 2,
	})
	require.NoError(t, err)
	assert.True(t, partial.Reservation.Quantity.Equal(q(4)))
	assert.True(t, partial.Inventory.Totals.Available.Equal(q(16)))

	full, err := f.svc.ReleaseReservation(f.ctx, inventory.ReleaseInput{
		ProductID: f.flour.ID, LocationID: f.locA, ReservationID: res.Reservation.ID,
	})
	require.NoError(t, err)
	assert.True(t, full.Inventory.Totals.Available.Equal(q(20)))
	assert.Empty(t, full.Inventory.Reservations)

	_, err = f.svc.ReserveStock(f.ctx, inventory.ReserveInput{
		ProductID: f.flour.ID, LocationID: f.locB, Quantity: 1,
	})
	assert.True(t, apperror.IsInsufficientStock(err))
}

func TestConservation(t *testing.T) {
	f := newFixture(t, nil)
	f.receive(t, f.locA, 40, 10, "LOT-1")
	f.receive(t, f.locA, 10, 12, "LOT-2")

	_, err := f.svc.ConsumeStock(f.ctx, inventory.ConsumeInput{ProductID: f.flour.ID, LocationID: f.locA, Quantity: 7, Purpose: "bread"})
	require.NoError(t, err)
	_, err = f.svc.TransferStock(f.ctx, inventory.TransferInput{ProductID: f.flour.ID, FromLocationID: f.locA, ToLocationID: f.locB, Quantity: 1.5, Unit: "bag"})
	require.NoError(t, err)
	_, err = f.svc.ReserveStock(f.ctx, inventory.ReserveInput{ProductID: f.flour.ID, LocationID: f.locB, Quantity: 3})
	require.NoError(t, err)
	_, err = f.svc.AdjustStock(f.ctx, inventory.AdjustInput{ProductID: f.flour.ID, LocationID: f.locB, Quantity: -0.5, Type: entity.MovementAdjustment})
	require.NoError(t, err)

	for _, loc := range []id.ID{f.locA, f.locB} {
		rec, err := f.svc.Reconcile(f.ctx, f.flour.ID, loc)
		require.NoError(t, err)
		assert.True(t, rec.Balanced, "difference %s", rec.Difference)
	}

	a, err := f.store.Inventories().Get(context.Background(), f.flour.ID, f.locA)
	require.NoError(t, err)
	b, err := f.store.Inventories().Get(context.Background(), f.flour.ID, f.locB)
	require.NoError(t, err)
	assert.True(t, a.Totals.OnHand().Add(b.Totals.OnHand()).Equal(q(42.5)))
	assert.True(t, b.Totals.Reserved.Equal(q(3)))
}

func TestConcurrentConsumption(t *testing.T) {
	f := newFixture(t, nil)
	f.receive(t, f.locA, 10, 1, "LOT-1")

	var wg sync.WaitGroup
	var failed atomic.Int32
	for range 12 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ConsumeStock(f.ctx, inventory.ConsumeInput{ProductID: f.flour.ID, LocationID: f.locA, Quantity: 1})
			if err != nil {
				failed.Add(1)
			}
		}()
	}
	wg.Wait()

	inv, err := f.store.Inventories().Get(context.Background(), f.flour.ID, f.locA)
	require.NoError(t, err)
	assert.True(t, inv.Totals.Available.IsZero())
	assert.Equal(t, int32(2), failed.Load())
	assert.Len(t, f.movements(t), 11)
}

func TestMutation_RetriesConflicts(t *testing.T) {
	var repo *conflictingRepo
	f := newFixture(t, func(r *memory.InventoryRepo) inventory.Repository {
		repo = &conflictingRepo{InventoryRepo: r}
		return repo
	})
	f.receive(t, f.locA, 10, 1, "LOT-1")

	repo.failures.Store(2)
	repo.saves.Store(0)
	res, err := f.svc.ConsumeStock(f.ctx, inventory.ConsumeInput{ProductID: f.flour.ID, LocationID: f.locA, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(3), repo.saves.Load())
	assert.True(t, res.Inventory.Totals.Available.Equal(q(9)))

	repo.failures.Store(5)
	_, err = f.svc.ConsumeStock(f.ctx, inventory.ConsumeInput{ProductID: f.flour.ID, LocationID: f.locA, Quantity: 1})
	assert.True(t, apperror.IsTransactionConflict(err))
}
