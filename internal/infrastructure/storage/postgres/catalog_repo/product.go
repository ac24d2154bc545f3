// Package catalog_repo provides PostgreSQL implementations for catalog repositories.
package catalog_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/units"
	"stockledger/internal/infrastructure/storage/postgres"
)

const productsTable = "products"

// productRow is the flat table shape of product.Product.
type productRow struct {
	ID           id.ID            `db:"id"`
	SKU          string           `db:"sku"`
	Name         string           `db:"name"`
	Barcode      string           `db:"barcode"`
	Category     string           `db:"category"`
	Units        units.Definition `db:"units"`
	MinStock     types.Quantity   `db:"min_stock"`
	ReorderPoint types.Quantity   `db:"reorder_point"`
	CostPrice    types.Money      `db:"cost_price"`
	IsActive     bool             `db:"is_active"`
	Version      int              `db:"version"`
	CreatedAt    time.Time        `db:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at"`
}

func toProductRow(p *product.Product) productRow {
	return productRow{
		ID:           p.ID,
		SKU:          p.SKU,
		Name:         p.Name,
		Barcode:      p.Barcode,
		Category:     p.Category,
		Units:        p.Units,
		MinStock:     p.StockLevels.Minimum,
		ReorderPoint: p.StockLevels.ReorderPoint,
		CostPrice:    p.CostPrice,
		IsActive:     p.IsActive,
		Version:      p.Version,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func (r productRow) toDomain() *product.Product {
	return &product.Product{
		ID:       r.ID,
		SKU:      r.SKU,
		Name:     r.Name,
		Barcode:  r.Barcode,
		Category: r.Category,
		Units:    r.Units,
		StockLevels: product.StockLevels{
			Minimum:      r.MinStock,
			ReorderPoint: r.ReorderPoint,
		},
		CostPrice: r.CostPrice,
		IsActive:  r.IsActive,
		Version:   r.Version,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// ProductRepo implements product.Repository.
type ProductRepo struct {
	txManager  *postgres.TxManager
	builder    squirrel.StatementBuilderType
	selectCols []string
}

// NewProductRepo creates a new product repository.
func NewProductRepo(txManager *postgres.TxManager) *ProductRepo {
	return &ProductRepo{
		txManager:  txManager,
		builder:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		selectCols: postgres.Columns[productRow](),
	}
}

// Create inserts a new product.
func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	if p.Version == 0 {
		p.Version = 1
	}

	q := r.builder.Insert(productsTable).SetMap(postgres.RowMap(toProductRow(p)))
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewConflict("product with this id or sku already exists").
				WithDetail("sku", p.SKU)
		}
		return postgres.MapError(fmt.Errorf("insert product: %w", err), "product", p.ID)
	}
	return nil
}

// Update saves p when its version still matches, then bumps p.Version.
func (r *ProductRepo) Update(ctx context.Context, p *product.Product) error {
	data := postgres.RowMap(toProductRow(p))
	delete(data, "id")
	delete(data, "version")
	delete(data, "created_at")

	q := r.builder.Update(productsTable).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": p.ID, "version": p.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewConflict("product with this sku already exists").
				WithDetail("sku", p.SKU)
		}
		return postgres.MapError(fmt.Errorf("update product: %w", err), "product", p.ID)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, p.ID); err != nil {
			return err
		}
		return apperror.NewTransactionConflict("product", p.ID)
	}

	p.Version++
	return nil
}

// GetByID retrieves a product by ID.
func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	return r.getOne(ctx, squirrel.Eq{"id": productID}, productID)
}

// FindBySKU looks up a product by SKU, case-insensitively.
func (r *ProductRepo) FindBySKU(ctx context.Context, sku string) (*product.Product, error) {
	sku = strings.TrimSpace(sku)
	return r.getOne(ctx, squirrel.Expr("lower(sku) = lower(?)", sku), sku)
}

func (r *ProductRepo) getOne(ctx context.Context, where squirrel.Sqlizer, key any) (*product.Product, error) {
	q := r.builder.Select(r.selectCols...).From(productsTable).Where(where)
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row productRow
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product", key)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return row.toDomain(), nil
}

// List returns products ordered by SKU together with the unpaged total.
func (r *ProductRepo) List(ctx context.Context, filter product.ListFilter) ([]*product.Product, int, error) {
	where := squirrel.And{}
	if filter.IDs != nil {
		where = append(where, squirrel.Eq{"id": filter.IDs})
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + s + "%"
		where = append(where, squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"sku": pattern},
			squirrel.ILike{"barcode": pattern},
		})
	}
	if c := strings.TrimSpace(filter.Category); c != "" {
		where = append(where, squirrel.Expr("lower(category) = lower(?)", c))
	}

	querier := r.txManager.GetQuerier(ctx)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").From(productsTable).Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	q := r.builder.Select(r.selectCols...).From(productsTable).Where(where).OrderBy("lower(sku)", "id")
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

	var rows []productRow
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("list products: %w", err)
	}

	out := make([]*product.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, total, nil
}
