package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/costing"
	"stockledger/pkg/logger"
)

const (
	defaultPageSize   = 20
	maxPageSize       = 100
	defaultExpiryDays = 7
)

// Paging resolves page/limit pairs into offsets.
type Paging struct {
	Page  int
	Limit int
}

func (p Paging) normalize() Paging {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	return p
}

func (p Paging) offset() int {
	return (p.Page - 1) * p.Limit
}

// Query filters the inventory listing.
type Query struct {
	ProductID  *id.ID
	LocationID *id.ID
	// Search matches product name, SKU or barcode.
	Search   string
	Category string
	// LowStock keeps records at or below the product minimum.
	LowStock bool
	// ExpiringSoon keeps records holding a batch expiring within ExpiryDays.
	ExpiringSoon bool
	ExpiryDays   int
	SortBy       SortField
	// SortOrder is "asc" or "desc" (default).
	SortOrder string
	Paging
}

// ProductSummary is the product part of a listing row.
type ProductSummary struct {
	ID          id.ID               `json:"id"`
	SKU         string              `json:"sku"`
	Name        string              `json:"name"`
	Category    string              `json:"category,omitempty"`
	StockLevels product.StockLevels `json:"stockLevels"`
}

// View is an inventory record enriched for listings.
type View struct {
	Inventory
	Product         ProductSummary `json:"product"`
	Value           types.Money    `json:"value"`
	IsLowStock      bool           `json:"isLowStock"`
	ExpiringBatches int            `json:"expiringBatches"`
}

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

func newPage[T any](items []T, total int, p Paging) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Page[T]{Items: items, Total: total, Page: p.Page, Limit: p.Limit, TotalPages: pages}
}

// GetInventory lists inventory records. Store filters, ordering and paging
// apply in the store; the low-stock and expiry filters depend on derived
// state, so when either is set paging happens after them instead.
func (s *Service) GetInventory(ctx context.Context, q Query) (Page[View], error) {
	paging := q.Paging.normalize()
	if q.ExpiryDays <= 0 {
		q.ExpiryDays = defaultExpiryDays
	}
	if q.SortBy == "" {
		q.SortBy = SortUpdatedAt
	}
	if !q.SortBy.IsValid() {
		return Page[View]{}, apperror.NewValidation("unsupported sort field").WithDetail("sortBy", string(q.SortBy))
	}

	filter := ListFilter{
		ProductID:  q.ProductID,
		LocationID: q.LocationID,
		SortBy:     q.SortBy,
		SortDesc:   !strings.EqualFold(q.SortOrder, "asc"),
	}
	if q.Search != "" || q.Category != "" {
		prods, _, err := s.products.List(ctx, product.ListFilter{Search: q.Search, Category: q.Category})
		if err != nil {
			return Page[View]{}, fmt.Errorf("search products: %w", err)
		}
		filter.ProductIDs = make([]id.ID, 0, len(prods))
		for _, p := range prods {
			filter.ProductIDs = append(filter.ProductIDs, p.ID)
		}
	}

	postFilter := q.LowStock || q.ExpiringSoon
	if !postFilter {
		filter.Limit, filter.Offset = paging.Limit, paging.offset()
	}

	invs, total, err := s.inventories.List(ctx, filter)
	if err != nil {
		return Page[View]{}, fmt.Errorf("list inventories: %w", err)
	}
	prods, err := s.productsByID(ctx, invs)
	if err != nil {
		return Page[View]{}, err
	}

	now := s.cfg.Now()
	window := time.Duration(q.ExpiryDays) * 24 * time.Hour
	views := make([]View, 0, len(invs))
	for _, inv := range invs {
		prod, ok := prods[inv.ProductID]
		if !ok {
			continue
		}
		v := s.view(*inv, prod, now, window)
		if q.LowStock && !v.IsLowStock {
			continue
		}
		if q.ExpiringSoon && v.ExpiringBatches == 0 {
			continue
		}
		views = append(views, v)
	}
	if !postFilter {
		return newPage(views, total, paging), nil
	}

	total = len(views)
	start := min(paging.offset(), total)
	end := min(start+paging.Limit, total)
	return newPage(views[start:end], total, paging), nil
}

func (s *Service) view(inv Inventory, prod *product.Product, now time.Time, window time.Duration) View {
	v := View{
		Inventory: inv,
		Product: ProductSummary{
			ID:          prod.ID,
			SKU:         prod.SKU,
			Name:        prod.Name,
			Category:    prod.Category,
			StockLevels: prod.StockLevels,
		},
		Value:      s.calculator.InventoryValue(inv.Batches, now).TotalValue,
		IsLowStock: inv.Totals.Available.LessThanOrEqual(prod.StockLevels.Minimum),
	}
	for _, b := range inv.Batches {
		if b.ExpiresWithin(now, window) {
			v.ExpiringBatches++
		}
	}
	return v
}

func (s *Service) productsByID(ctx context.Context, invs []*Inventory) (map[id.ID]*product.Product, error) {
	out := make(map[id.ID]*product.Product)
	if len(invs) == 0 {
		return out, nil
	}

	seen := make(map[id.ID]bool)
	ids := make([]id.ID, 0, len(invs))
	for _, inv := range invs {
		if !seen[inv.ProductID] {
			seen[inv.ProductID] = true
			ids = append(ids, inv.ProductID)
		}
	}

	prods, _, err := s.products.List(ctx, product.ListFilter{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	for _, p := range prods {
		out[p.ID] = p
	}
	return out, nil
}

// MovementQuery filters the movement log.
type MovementQuery struct {
	ProductID  *id.ID
	LocationID *id.ID
	Type       *entity.MovementType
	UserID     string
	StartDate  *time.Time
	EndDate    *time.Time
	Paging
}

// GetMovements lists movements, newest first.
func (s *Service) GetMovements(ctx context.Context, q MovementQuery) (Page[*entity.Movement], error) {
	if q.Type != nil && !q.Type.IsValid() {
		return Page[*entity.Movement]{}, apperror.NewValidation("unknown movement type").WithDetail("type", string(*q.Type))
	}
	if q.StartDate != nil && q.EndDate != nil && q.EndDate.Before(*q.StartDate) {
		return Page[*entity.Movement]{}, apperror.NewValidation("endDate is before startDate")
	}

	paging := q.Paging.normalize()
	items, total, err := s.movements.List(ctx, MovementFilter{
		ProductID:  q.ProductID,
		LocationID: q.LocationID,
		Type:       q.Type,
		UserID:     q.UserID,
		StartDate:  q.StartDate,
		EndDate:    q.EndDate,
		Limit:      paging.Limit,
		Offset:     paging.offset(),
	})
	if err != nil {
		return Page[*entity.Movement]{}, fmt.Errorf("list movements: %w", err)
	}
	return newPage(items, total, paging), nil
}

// ExportMovements streams every movement matching q, oldest first, to fn.
// Paging fields of q are ignored.
func (s *Service) ExportMovements(ctx context.Context, q MovementQuery, fn func(*entity.Movement) error) error {
	const chunk = 500
	filter := MovementFilter{
		ProductID:  q.ProductID,
		LocationID: q.LocationID,
		Type:       q.Type,
		UserID:     q.UserID,
		StartDate:  q.StartDate,
		EndDate:    q.EndDate,
		Limit:      chunk,
		Ascending:  true,
	}

	for {
		items, _, err := s.movements.List(ctx, filter)
		if err != nil {
			return fmt.Errorf("list movements: %w", err)
		}
		for _, m := range items {
			if err := fn(m); err != nil {
				return err
			}
		}
		if len(items) < chunk {
			return nil
		}
		filter.Offset += chunk
	}
}

// ValuationItem is the value held for one product at one location.
type ValuationItem struct {
	ProductID   id.ID          `json:"productId"`
	SKU         string         `json:"sku"`
	Name        string         `json:"name"`
	Category    string         `json:"category,omitempty"`
	LocationID  id.ID          `json:"locationId"`
	Quantity    types.Quantity `json:"quantity"`
	Unit        string         `json:"unit"`
	Value       types.Money    `json:"value"`
	AverageCost types.Money    `json:"averageCost"`
}

// StockValuation is the value of available stock.
type StockValuation struct {
	TotalValue types.Money            `json:"totalValue"`
	ByLocation map[string]types.Money `json:"byLocation"`
	ByCategory map[string]types.Money `json:"byCategory"`
	Items      []ValuationItem        `json:"items"`
	AsOf       time.Time              `json:"asOf"`
}

// CalculateStockValuation values the available batches at cost.
func (s *Service) CalculateStockValuation(ctx context.Context, productID, locationID *id.ID) (*StockValuation, error) {
	invs, _, err := s.inventories.List(ctx, ListFilter{ProductID: productID, LocationID: locationID, SortBy: SortCreatedAt})
	if err != nil {
		return nil, fmt.Errorf("list inventories: %w", err)
	}
	prods, err := s.productsByID(ctx, invs)
	if err != nil {
		return nil, err
	}

	now := s.cfg.Now()
	out := &StockValuation{
		ByLocation: map[string]types.Money{},
		ByCategory: map[string]types.Money{},
		Items:      []ValuationItem{},
		AsOf:       now,
	}
	for _, inv := range invs {
		prod, ok := prods[inv.ProductID]
		if !ok {
			continue
		}
		val := s.calculator.InventoryValue(inv.Batches, now)
		out.Items = append(out.Items, ValuationItem{
			ProductID:   prod.ID,
			SKU:         prod.SKU,
			Name:        prod.Name,
			Category:    prod.Category,
			LocationID:  inv.LocationID,
			Quantity:    val.TotalQuantity,
			Unit:        inv.Totals.Unit,
			Value:       val.TotalValue,
			AverageCost: val.AverageCost,
		})
		out.TotalValue = out.TotalValue.Add(val.TotalValue)
		loc := inv.LocationID.String()
		out.ByLocation[loc] = out.ByLocation[loc].Add(val.TotalValue)
		out.ByCategory[prod.Category] = out.ByCategory[prod.Category].Add(val.TotalValue)
	}
	return out, nil
}

// Summary is a dashboard overview of the ledger.
type Summary struct {
	Records          int                     `json:"records"`
	Products         int                     `json:"products"`
	Locations        int                     `json:"locations"`
	TotalValue       types.Money             `json:"totalValue"`
	LowStock         int                     `json:"lowStock"`
	OutOfStock       int                     `json:"outOfStock"`
	ExpiringBatches  int                     `json:"expiringBatches"`
	ExpiredBatches   int                     `json:"expiredBatches"`
	ActiveAlerts     int                     `json:"activeAlerts"`
	AlertsByPriority map[entity.Priority]int `json:"alertsByPriority"`
}

// GetInventorySummary aggregates stock health, optionally for one location.
func (s *Service) GetInventorySummary(ctx context.Context, locationID *id.ID) (*Summary, error) {
	invs, _, err := s.inventories.List(ctx, ListFilter{LocationID: locationID, SortBy: SortCreatedAt})
	if err != nil {
		return nil, fmt.Errorf("list inventories: %w", err)
	}
	prods, err := s.productsByID(ctx, invs)
	if err != nil {
		return nil, err
	}

	now := s.cfg.Now()
	out := &Summary{Records: len(invs), AlertsByPriority: map[entity.Priority]int{}}
	locations := map[id.ID]bool{}
	products := map[id.ID]bool{}

	for _, inv := range invs {
		locations[inv.LocationID] = true
		products[inv.ProductID] = true
		out.TotalValue = out.TotalValue.Add(s.calculator.InventoryValue(inv.Batches, now).TotalValue)

		if !inv.Totals.Available.IsPositive() {
			out.OutOfStock++
		}
		if p, ok := prods[inv.ProductID]; ok && inv.Totals.Available.LessThanOrEqual(p.StockLevels.Minimum) {
			out.LowStock++
		}
		for _, b := range inv.Batches {
			switch {
			case b.IsExpired(now):
				out.ExpiredBatches++
			case b.ExpiresWithin(now, s.cfg.Alerts.ExpiryWindow):
				out.ExpiringBatches++
			}
		}
	}
	out.Products, out.Locations = len(products), len(locations)

	alerts, total, err := s.alerts.List(ctx, AlertFilter{LocationID: locationID, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	out.ActiveAlerts = total
	for _, a := range alerts {
		out.AlertsByPriority[a.Priority]++
	}
	return out, nil
}

// AlertQuery filters the active alert board.
type AlertQuery struct {
	ProductID  *id.ID
	LocationID *id.ID
	Type       *entity.AlertType
	Priority   *entity.Priority
	Paging
}

// GetActiveAlerts lists unresolved alerts, most urgent first.
func (s *Service) GetActiveAlerts(ctx context.Context, q AlertQuery) (Page[*entity.Alert], error) {
	paging := q.Paging.normalize()
	items, total, err := s.alerts.List(ctx, AlertFilter{
		ProductID:  q.ProductID,
		LocationID: q.LocationID,
		Type:       q.Type,
		Priority:   q.Priority,
		ActiveOnly: true,
		Limit:      paging.Limit,
		Offset:     paging.offset(),
	})
	if err != nil {
		return Page[*entity.Alert]{}, fmt.Errorf("list alerts: %w", err)
	}
	return newPage(items, total, paging), nil
}

// ResolveAlert acknowledges an active alert.
func (s *Service) ResolveAlert(ctx context.Context, alertID id.ID, userID, notes string) (*entity.Alert, error) {
	var out *entity.Alert
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		a, err := s.alerts.GetByID(ctx, alertID)
		if err != nil {
			return err
		}
		if !a.IsActive {
			return apperror.NewConflict("alert is already resolved").WithDetail("alert_id", alertID.String())
		}

		a.Resolve(performer(ctx, userID), strings.TrimSpace(notes), s.cfg.Now())
		if err := s.alerts.Update(ctx, a); err != nil {
			return fmt.Errorf("update alert: %w", err)
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CostAnalysis compares costing methods on the live batches of one record.
type CostAnalysis struct {
	ProductID      id.ID                  `json:"productId"`
	LocationID     id.ID                  `json:"locationId"`
	Quantity       types.Quantity         `json:"quantity"`
	Unit           string                 `json:"unit"`
	Comparison     costing.Comparison     `json:"comparison"`
	Recommendation costing.Recommendation `json:"recommendation"`
	Valuation      costing.Valuation      `json:"valuation"`
}

// CostAnalysisInput parametrises AnalyzeCost. A zero Quantity analyses
// consuming everything available.
type CostAnalysisInput struct {
	ProductID         id.ID
	LocationID        id.ID
	Quantity          float64
	Unit              string
	AnnualConsumption float64
	Objective         costing.Objective
}

// AnalyzeCost runs the advisory cost methods for a product at a location.
// It never changes the ledger.
func (s *Service) AnalyzeCost(ctx context.Context, in CostAnalysisInput) (*CostAnalysis, error) {
	prod, err := s.products.GetByID(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	inv, err := s.inventories.Get(ctx, in.ProductID, in.LocationID)
	if err != nil {
		return nil, err
	}

	qty := inv.Totals.Available
	if in.Quantity > 0 {
		if qty, err = s.toBase(prod, in.Quantity, in.Unit); err != nil {
			return nil, err
		}
	}
	annual := decimal.Zero
	if in.AnnualConsumption > 0 {
		if annual, err = s.toBase(prod, in.AnnualConsumption, in.Unit); err != nil {
			return nil, err
		}
	}

	cmp, err := s.calculator.Compare(inv.Batches, qty)
	if err != nil {
		return nil, err
	}
	rec, err := s.calculator.Optimize(inv.Batches, annual, in.Objective)
	if err != nil {
		return nil, err
	}

	return &CostAnalysis{
		ProductID:      prod.ID,
		LocationID:     in.LocationID,
		Quantity:       qty,
		Unit:           prod.BaseUnit(),
		Comparison:     cmp,
		Recommendation: rec,
		Valuation:      s.calculator.InventoryValue(inv.Batches, s.cfg.Now()),
	}, nil
}

// Reconciliation compares the movement log with the stored record.
type Reconciliation struct {
	ProductID       id.ID          `json:"productId"`
	LocationID      id.ID          `json:"locationId"`
	Movements       int            `json:"movements"`
	MovementBalance types.Quantity `json:"movementBalance"`
	OnHand          types.Quantity `json:"onHand"`
	Difference      types.Quantity `json:"difference"`
	Balanced        bool           `json:"balanced"`
}

// Reconcile sums the signed movements of a record and compares the result
// with available + reserved + quarantine.
func (s *Service) Reconcile(ctx context.Context, productID, locationID id.ID) (*Reconciliation, error) {
	inv, err := s.inventories.Get(ctx, productID, locationID)
	if err != nil {
		return nil, err
	}

	out := &Reconciliation{ProductID: productID, LocationID: locationID}
	err = s.ExportMovements(ctx, MovementQuery{ProductID: &productID, LocationID: &locationID}, func(m *entity.Movement) error {
		out.Movements++
		out.MovementBalance = out.MovementBalance.Add(m.SignedQuantityAt(locationID))
		return nil
	})
	if err != nil {
		return nil, err
	}

	out.OnHand = inv.Totals.OnHand()
	out.Difference = out.OnHand.Sub(out.MovementBalance)
	out.Balanced = out.Difference.IsZero()
	if !out.Balanced {
		logger.Warn(ctx, "inventory does not reconcile with movement log",
			"product_id", productID,
			"location_id", locationID,
			"difference", out.Difference.String(),
		)
	}
	return out, nil
}

// SortAlerts orders alerts most urgent first, then newest first, for stores
// without native ordering.
func SortAlerts(alerts []*entity.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := alerts[i].Priority.Rank(), alerts[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		if !alerts[i].CreatedAt.Equal(alerts[j].CreatedAt) {
			return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
		}
		return alerts[i].ID.String() > alerts[j].ID.String()
	})
}
