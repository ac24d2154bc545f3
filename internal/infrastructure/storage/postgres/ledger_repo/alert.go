package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/inventory"
	"stockledger/internal/infrastructure/storage/postgres"
)

const alertsTable = "alerts"

var alertColumns = postgres.Columns[entity.Alert]()

// AlertRepo implements inventory.AlertRepository.
type AlertRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewAlertRepo creates a new alert repository.
func NewAlertRepo(txManager *postgres.TxManager) *AlertRepo {
	return &AlertRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Insert stores alerts in one statement, adding the sortable priority rank.
func (r *AlertRepo) Insert(ctx context.Context, alerts []entity.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	cols := append(append([]string{}, alertColumns...), "priority_rank")
	q := r.builder.Insert(alertsTable).Columns(cols...)
	for _, a := range alerts {
		vals := postgres.RowValues(a, alertColumns)
		q = q.Values(append(vals, a.Priority.Rank())...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewConflict("alert already exists")
		}
		return postgres.MapError(fmt.Errorf("insert alerts: %w", err), "alert", alerts[0].ID)
	}
	return nil
}

// GetByID retrieves an alert by ID.
func (r *AlertRepo) GetByID(ctx context.Context, alertID id.ID) (*entity.Alert, error) {
	sql, args, err := r.builder.Select(alertColumns...).
		From(alertsTable).
		Where(squirrel.Eq{"id": alertID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var a entity.Alert
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &a, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("alert", alertID)
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return &a, nil
}

// Update persists the resolution fields of a.
func (r *AlertRepo) Update(ctx context.Context, a *entity.Alert) error {
	sql, args, err := r.builder.Update(alertsTable).
		Set("is_active", a.IsActive).
		Set("resolved_at", a.ResolvedAt).
		Set("resolved_by", a.ResolvedBy).
		Set("resolution_notes", a.ResolutionNotes).
		Where(squirrel.Eq{"id": a.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(fmt.Errorf("update alert: %w", err), "alert", a.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("alert", a.ID)
	}
	return nil
}

// List returns alerts by priority (most urgent first), then newest first.
func (r *AlertRepo) List(ctx context.Context, filter inventory.AlertFilter) ([]*entity.Alert, int, error) {
	where := squirrel.And{}
	if filter.ActiveOnly {
		where = append(where, squirrel.Eq{"is_active": true})
	}
	if filter.ProductID != nil {
		where = append(where, squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.LocationID != nil {
		where = append(where, squirrel.Eq{"location_id": *filter.LocationID})
	}
	if filter.Type != nil {
		where = append(where, squirrel.Eq{"type": string(*filter.Type)})
	}
	if filter.Priority != nil {
		where = append(where, squirrel.Eq{"priority": string(*filter.Priority)})
	}

	querier := r.txManager.GetQuerier(ctx)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").From(alertsTable).Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}

	q := r.builder.Select(alertColumns...).
		From(alertsTable).
		Where(where).
		OrderBy("priority_rank DESC", "created_at DESC", "id DESC")
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

	out := make([]*entity.Alert, 0)
	if err := pgxscan.Select(ctx, querier, &out, sql, args...); err != nil {
		return nil, 0, fmt.Errorf("list alerts: %w", err)
	}
	return out, total, nil
}
