package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/domain/inventory"
	"stockledger/internal/infrastructure/storage/postgres"
)

const movementsTable = "movements"

var movementColumns = postgres.Columns[entity.Movement]()

// MovementRepo implements inventory.MovementRepository. Rows are never
// updated or deleted.
type MovementRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewMovementRepo creates a new movement log repository.
func NewMovementRepo(txManager *postgres.TxManager) *MovementRepo {
	return &MovementRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append writes one movement.
func (r *MovementRepo) Append(ctx context.Context, m *entity.Movement) error {
	if !m.Type.IsValid() {
		return apperror.NewValidation("invalid movement type").WithDetail("type", string(m.Type))
	}

	row := *m
	if row.Lines == nil {
		row.Lines = []entity.MovementLine{}
	}

	sql, args, err := r.builder.Insert(movementsTable).SetMap(postgres.RowMap(row)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert movement: %w", err), "movement", m.ID)
	}
	return nil
}

// List returns matching movements, newest first unless filter.Ascending,
// together with the unpaged total.
func (r *MovementRepo) List(ctx context.Context, filter inventory.MovementFilter) ([]*entity.Movement, int, error) {
	where := squirrel.And{}
	if filter.ProductID != nil {
		where = append(where, squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.LocationID != nil {
		where = append(where, squirrel.Or{
			squirrel.Eq{"from_location": *filter.LocationID},
			squirrel.Eq{"to_location": *filter.LocationID},
		})
	}
	if filter.Type != nil {
		where = append(where, squirrel.Eq{"type": string(*filter.Type)})
	}
	if filter.UserID != "" {
		where = append(where, squirrel.Eq{"performed_by": filter.UserID})
	}
	if filter.StartDate != nil {
		where = append(where, squirrel.GtOrEq{"created_at": *filter.StartDate})
	}
	if filter.EndDate != nil {
		where = append(where, squirrel.LtOrEq{"created_at": *filter.EndDate})
	}

	querier := r.txManager.GetQuerier(ctx)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").From(movementsTable).Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count movements: %w", err)
	}

	dir := "DESC"
	if filter.Ascending {
		dir = "ASC"
	}
	q := r.builder.Select(movementColumns...).
		From(movementsTable).
		Where(where).
		OrderBy("created_at "+dir, "id "+dir)
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

	out := make([]*entity.Movement, 0)
	if err := pgxscan.Select(ctx, querier, &out, sql, args...); err != nil {
		return nil, 0, fmt.Errorf("list movements: %w", err)
	}
	return out, total, nil
}
