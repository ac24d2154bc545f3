// Package ledger_repo provides PostgreSQL implementations for the inventory
// ledger: inventory records with their batches and reservations, the
// movement log and alerts.
package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/inventory"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	inventoriesTable  = "inventories"
	batchesTable      = "inventory_batches"
	reservationsTable = "inventory_reservations"
)

// inventoryRow is the header row; totals are denormalised for sorting only.
type inventoryRow struct {
	ID             id.ID          `db:"id"`
	ProductID      id.ID          `db:"product_id"`
	LocationID     id.ID          `db:"location_id"`
	Unit           string         `db:"unit"`
	Available      types.Quantity `db:"available"`
	Reserved       types.Quantity `db:"reserved"`
	Quarantine     types.Quantity `db:"quarantine"`
	Version        int            `db:"version"`
	LastMovementAt *time.Time     `db:"last_movement_at"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

type batchRow struct {
	InventoryID id.ID `db:"inventory_id"`
	Position    int   `db:"position"`
	entity.Batch
}

type reservationRow struct {
	InventoryID id.ID `db:"inventory_id"`
	inventory.Reservation
}

var (
	inventoryColumns   = postgres.Columns[inventoryRow]()
	batchColumns       = postgres.Columns[batchRow]()
	reservationColumns = postgres.Columns[reservationRow]()
)

func toInventoryRow(inv *inventory.Inventory) inventoryRow {
	return inventoryRow{
		ID:             inv.ID,
		ProductID:      inv.ProductID,
		LocationID:     inv.LocationID,
		Unit:           inv.Totals.Unit,
		Available:      inv.Totals.Available,
		Reserved:       inv.Totals.Reserved,
		Quarantine:     inv.Totals.Quarantine,
		Version:        inv.Version,
		LastMovementAt: inv.LastMovementAt,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
}

// sortColumns whitelists inventory.SortField values.
var sortColumns = map[inventory.SortField]string{
	inventory.SortUpdatedAt:  "updated_at",
	inventory.SortCreatedAt:  "created_at",
	inventory.SortAvailable:  "available",
	inventory.SortReserved:   "reserved",
	inventory.SortQuarantine: "quarantine",
}

// InventoryRepo implements inventory.Repository.
type InventoryRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewInventoryRepo creates a new inventory repository.
func NewInventoryRepo(txManager *postgres.TxManager) *InventoryRepo {
	return &InventoryRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetForUpdate loads the record with a row lock held until commit.
func (r *InventoryRepo) GetForUpdate(ctx context.Context, productID, locationID id.ID) (*inventory.Inventory, error) {
	return r.getOne(ctx, productID, locationID, true)
}

// Get loads the record without locking.
func (r *InventoryRepo) Get(ctx context.Context, productID, locationID id.ID) (*inventory.Inventory, error) {
	return r.getOne(ctx, productID, locationID, false)
}

func (r *InventoryRepo) getOne(ctx context.Context, productID, locationID id.ID, lock bool) (*inventory.Inventory, error) {
	q := r.builder.Select(inventoryColumns...).
		From(inventoriesTable).
		Where(squirrel.Eq{"product_id": productID, "location_id": locationID})
	if lock {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row inventoryRow
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("inventory", productID.String()+"@"+locationID.String())
		}
		return nil, postgres.MapError(fmt.Errorf("get inventory: %w", err), "inventory", productID)
	}

	items, err := r.assemble(ctx, []inventoryRow{row})
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

// Create inserts a new record with Version 1. Losing a race on the
// (product, location) key yields TRANSACTION_CONFLICT so the caller retries
// against the winner's row.
func (r *InventoryRepo) Create(ctx context.Context, inv *inventory.Inventory) error {
	inv.Version = 1
	q := r.builder.Insert(inventoriesTable).
		SetMap(postgres.RowMap(toInventoryRow(inv))).
		Suffix("ON CONFLICT (product_id, location_id) DO NOTHING")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(fmt.Errorf("insert inventory: %w", err), "inventory", inv.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewTransactionConflict("inventory", inv.ProductID.String()+"@"+inv.LocationID.String())
	}

	return r.writeChildren(ctx, inv)
}

// Save overwrites the record when the stored version matches inv.Version.
// Batch and reservation rows are replaced wholesale.
func (r *InventoryRepo) Save(ctx context.Context, inv *inventory.Inventory) error {
	data := postgres.RowMap(toInventoryRow(inv))
	delete(data, "id")
	delete(data, "version")
	delete(data, "created_at")

	q := r.builder.Update(inventoriesTable).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": inv.ID, "version": inv.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(fmt.Errorf("update inventory: %w", err), "inventory", inv.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewTransactionConflict("inventory", inv.ID)
	}

	if err := r.clearChildren(ctx, querier, inv.ID); err != nil {
		return postgres.MapError(err, "inventory", inv.ID)
	}

	if err := r.writeChildren(ctx, inv); err != nil {
		return err
	}

	inv.Version++
	return nil
}

// clearChildren deletes the batch and reservation rows of one record, in a
// single round trip when a transaction is open.
func (r *InventoryRepo) clearChildren(ctx context.Context, querier postgres.Querier, inventoryID id.ID) error {
	queries := make([]postgres.BatchQuery, 0, 2)
	for _, table := range []string{batchesTable, reservationsTable} {
		sql, args, err := r.builder.Delete(table).Where(squirrel.Eq{"inventory_id": inventoryID}).ToSql()
		if err != nil {
			return fmt.Errorf("build delete: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}

	if r.txManager.GetTx(ctx) != nil {
		if err := postgres.NewBatchExecutor(r.txManager).ExecuteBatch(ctx, queries); err != nil {
			return fmt.Errorf("clear children: %w", err)
		}
		return nil
	}
	for _, q := range queries {
		if _, err := querier.Exec(ctx, q.SQL, q.Args...); err != nil {
			return fmt.Errorf("clear children: %w", err)
		}
	}
	return nil
}

// writeChildren inserts batch and reservation rows, using COPY inside a
// transaction and a multi-row INSERT otherwise.
func (r *InventoryRepo) writeChildren(ctx context.Context, inv *inventory.Inventory) error {
	batchRows := make([][]any, 0, len(inv.Batches))
	for i, b := range inv.Batches {
		batchRows = append(batchRows, postgres.RowValues(batchRow{InventoryID: inv.ID, Position: i, Batch: b}, batchColumns))
	}
	resRows := make([][]any, 0, len(inv.Reservations))
	for _, res := range inv.Reservations {
		resRows = append(resRows, postgres.RowValues(reservationRow{InventoryID: inv.ID, Reservation: res}, reservationColumns))
	}

	if err := r.insertRows(ctx, batchesTable, batchColumns, batchRows); err != nil {
		return postgres.MapError(fmt.Errorf("write batches: %w", err), "inventory", inv.ID)
	}
	if err := r.insertRows(ctx, reservationsTable, reservationColumns, resRows); err != nil {
		return postgres.MapError(fmt.Errorf("write reservations: %w", err), "inventory", inv.ID)
	}
	return nil
}

func (r *InventoryRepo) insertRows(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	if r.txManager.GetTx(ctx) != nil {
		_, err := postgres.NewBatchInserter(r.txManager).CopyFromSlice(ctx, table, columns, rows)
		return err
	}

	q := r.builder.Insert(table).Columns(columns...)
	for _, row := range rows {
		q = q.Values(row...)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	_, err = r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	return err
}

// List returns one page of matching records in the requested order,
// together with the unpaged total. Child rows are loaded for the page only.
func (r *InventoryRepo) List(ctx context.Context, filter inventory.ListFilter) ([]*inventory.Inventory, int, error) {
	where := squirrel.And{}
	if filter.ProductIDs != nil {
		where = append(where, squirrel.Eq{"product_id": filter.ProductIDs})
	}
	if filter.ProductID != nil {
		where = append(where, squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.LocationID != nil {
		where = append(where, squirrel.Eq{"location_id": *filter.LocationID})
	}

	querier := r.txManager.GetQuerier(ctx)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").From(inventoriesTable).Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count inventories: %w", err)
	}

	col, ok := sortColumns[filter.SortBy]
	if !ok {
		col = sortColumns[inventory.SortUpdatedAt]
	}
	dir := "ASC"
	if filter.SortDesc {
		dir = "DESC"
	}
	q := r.builder.Select(inventoryColumns...).
		From(inventoriesTable).
		Where(where).
		OrderBy(col+" "+dir, "id "+dir)
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}

	var rows []inventoryRow
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, 0, fmt.Errorf("list inventories: %w", err)
	}
	if len(rows) == 0 {
		return []*inventory.Inventory{}, total, nil
	}
	invs, err := r.assemble(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return invs, total, nil
}

// assemble loads child rows for headers in two queries and rebuilds totals.
func (r *InventoryRepo) assemble(ctx context.Context, headers []inventoryRow) ([]*inventory.Inventory, error) {
	ids := make([]id.ID, len(headers))
	for i, h := range headers {
		ids[i] = h.ID
	}
	querier := r.txManager.GetQuerier(ctx)

	batchSQL, batchArgs, err := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"inventory_id": ids}).
		OrderBy("inventory_id", "position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build batch query: %w", err)
	}
	var batches []batchRow
	if err := pgxscan.Select(ctx, querier, &batches, batchSQL, batchArgs...); err != nil {
		return nil, fmt.Errorf("load batches: %w", err)
	}

	resSQL, resArgs, err := r.builder.Select(reservationColumns...).
		From(reservationsTable).
		Where(squirrel.Eq{"inventory_id": ids}).
		OrderBy("inventory_id", "created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build reservation query: %w", err)
	}
	var reservations []reservationRow
	if err := pgxscan.Select(ctx, querier, &reservations, resSQL, resArgs...); err != nil {
		return nil, fmt.Errorf("load reservations: %w", err)
	}

	byID := make(map[id.ID]*inventory.Inventory, len(headers))
	out := make([]*inventory.Inventory, 0, len(headers))
	for _, h := range headers {
		inv := &inventory.Inventory{
			ID:             h.ID,
			ProductID:      h.ProductID,
			LocationID:     h.LocationID,
			Batches:        []entity.Batch{},
			Reservations:   []inventory.Reservation{},
			Totals:         inventory.Totals{Unit: h.Unit},
			Version:        h.Version,
			LastMovementAt: h.LastMovementAt,
			CreatedAt:      h.CreatedAt,
			UpdatedAt:      h.UpdatedAt,
		}
		byID[h.ID] = inv
		out = append(out, inv)
	}
	for _, b := range batches {
		if inv, ok := byID[b.InventoryID]; ok {
			inv.Batches = append(inv.Batches, b.Batch)
		}
	}
	for _, res := range reservations {
		if inv, ok := byID[res.InventoryID]; ok {
			inv.Reservations = append(inv.Reservations, res.Reservation)
		}
	}
	for i, inv := range out {
		recomputed := inv.Recompute()
		out[i] = &recomputed
	}
	return out, nil
}
