package dto

import (
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/costing"
	"stockledger/internal/domain/inventory"
)

// --- Mutation requests ---

// AdjustStockRequest is the body of POST /inventory/adjust.
// A positive quantity is an entry, a negative one an exit.
type AdjustStockRequest struct {
	ProductID    string       `json:"productId" binding:"required"`
	LocationID   string       `json:"locationId" binding:"required"`
	Quantity     float64      `json:"quantity" binding:"required"`
	Unit         string       `json:"unit"`
	Type         string       `json:"type"`
	Reason       string       `json:"reason"`
	Notes        string       `json:"notes"`
	BatchID      string       `json:"batchId"`
	CostPerUnit  *types.Money `json:"costPerUnit"`
	ExpiryDate   *time.Time   `json:"expiryDate"`
	ReceivedDate *time.Time   `json:"receivedDate"`
}

// ToInput converts the request for the inventory service.
func (r *AdjustStockRequest) ToInput(userID string) (inventory.AdjustInput, error) {
	productID, err := ParseID("productId", r.ProductID)
	if err != nil {
		return inventory.AdjustInput{}, err
	}
	locationID, err := ParseID("locationId", r.LocationID)
	if err != nil {
		return inventory.AdjustInput{}, err
	}

	in := inventory.AdjustInput{
		ProductID:    productID,
		LocationID:   locationID,
		Quantity:     r.Quantity,
		Unit:         r.Unit,
		Reason:       r.Reason,
		Notes:        r.Notes,
		UserID:       userID,
		BatchID:      r.BatchID,
		CostPerUnit:  r.CostPerUnit,
		ExpiryDate:   r.ExpiryDate,
		ReceivedDate: r.ReceivedDate,
	}
	if t := strings.TrimSpace(r.Type); t != "" {
		in.Type = entity.MovementType(strings.ToUpper(t))
		if !in.Type.IsValid() {
			return inventory.AdjustInput{}, apperror.NewValidation("unknown movement type").WithDetail("type", t)
		}
	}
	return in, nil
}

// TransferStockRequest is the body of POST /inventory/transfer.
type TransferStockRequest struct {
	ProductID      string  `json:"productId" binding:"required"`
	FromLocationID string  `json:"fromLocationId" binding:"required"`
	ToLocationID   string  `json:"toLocationId" binding:"required"`
	Quantity       float64 `json:"quantity" binding:"required,gt=0"`
	Unit           string  `json:"unit"`
	Reason         string  `json:"reason"`
	Notes          string  `json:"notes"`
}

// ToInput converts the request for the inventory service.
func (r *TransferStockRequest) ToInput(userID string) (inventory.TransferInput, error) {
	productID, err := ParseID("productId", r.ProductID)
	if err != nil {
		return inventory.TransferInput{}, err
	}
	fromID, err := ParseID("fromLocationId", r.FromLocationID)
	if err != nil {
		return inventory.TransferInput{}, err
	}
	toID, err := ParseID("toLocationId", r.ToLocationID)
	if err != nil {
		return inventory.TransferInput{}, err
	}
	return inventory.TransferInput{
		ProductID:      productID,
		FromLocationID: fromID,
		ToLocationID:   toID,
		Quantity:       r.Quantity,
		Unit:           r.Unit,
		Reason:         r.Reason,
		Notes:          r.Notes,
		UserID:         userID,
	}, nil
}

// ReserveStockRequest is the body of POST /inventory/reserve.
type ReserveStockRequest struct {
	ProductID   string     `json:"productId" binding:"required"`
	LocationID  string     `json:"locationId" binding:"required"`
	Quantity    float64    `json:"quantity" binding:"required,gt=0"`
	Unit        string     `json:"unit"`
	ReservedFor string     `json:"reservedFor"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

// ToInput converts the request for the inventory service.
func (r *ReserveStockRequest) ToInput(userID string) (inventory.ReserveInput, error) {
	productID, err := ParseID("productId", r.ProductID)
	if err != nil {
		return inventory.ReserveInput{}, err
	}
	locationID, err := ParseID("locationId", r.LocationID)
	if err != nil {
		return inventory.ReserveInput{}, err
	}
	return inventory.ReserveInput{
		ProductID:   productID,
		LocationID:  locationID,
		Quantity:    r.Quantity,
		Unit:        r.Unit,
		ReservedFor: r.ReservedFor,
		ExpiresAt:   r.ExpiresAt,
		UserID:      userID,
	}, nil
}

// ReleaseReservationRequest is the body of POST /inventory/release.
// Omitting quantity releases the whole reservation.
type ReleaseReservationRequest struct {
	ProductID     string  `json:"productId" binding:"required"`
	LocationID    string  `json:"locationId" binding:"required"`
	ReservationID string  `json:"reservationId" binding:"required"`
	Quantity      float64 `json:"quantity" binding:"gte=0"`
	Unit          string  `json:"unit"`
}

// ToInput converts the request for the inventory service.
func (r *ReleaseReservationRequest) ToInput(userID string) (inventory.ReleaseInput, error) {
	productID, err := ParseID("productId", r.ProductID)
	if err != nil {
		return inventory.ReleaseInput{}, err
	}
	locationID, err := ParseID("locationId", r.LocationID)
	if err != nil {
		return inventory.ReleaseInput{}, err
	}
	reservationID, err := ParseID("reservationId", r.ReservationID)
	if err != nil {
		return inventory.ReleaseInput{}, err
	}
	return inventory.ReleaseInput{
		ProductID:     productID,
		LocationID:    locationID,
		ReservationID: reservationID,
		Quantity:      r.Quantity,
		Unit:          r.Unit,
		UserID:        userID,
	}, nil
}

// ConsumeStockRequest is the body of POST /inventory/consume.
type ConsumeStockRequest struct {
	ProductID     string  `json:"productId" binding:"required"`
	LocationID    string  `json:"locationId" binding:"required"`
	Quantity      float64 `json:"quantity" binding:"required,gt=0"`
	Unit          string  `json:"unit"`
	Purpose       string  `json:"purpose"`
	ReservationID string  `json:"reservationId"`
	Notes         string  `json:"notes"`
}

// ToInput converts the request for the inventory service.
func (r *ConsumeStockRequest) ToInput(userID string) (inventory.ConsumeInput, error) {
	productID, err := ParseID("productId", r.ProductID)
	if err != nil {
		return inventory.ConsumeInput{}, err
	}
	locationID, err := ParseID("locationId", r.LocationID)
	if err != nil {
		return inventory.ConsumeInput{}, err
	}
	reservationID, err := ParseOptionalID("reservationId", r.ReservationID)
	if err != nil {
		return inventory.ConsumeInput{}, err
	}
	return inventory.ConsumeInput{
		ProductID:     productID,
		LocationID:    locationID,
		Quantity:      r.Quantity,
		Unit:          r.Unit,
		Purpose:       r.Purpose,
		ReservationID: reservationID,
		Notes:         r.Notes,
		UserID:        userID,
	}, nil
}

// --- Query parameters ---

// InventoryListQuery holds the GET /inventory query string.
type InventoryListQuery struct {
	ProductID    string `form:"productId"`
	LocationID   string `form:"locationId"`
	Search       string `form:"search"`
	Category     string `form:"category"`
	LowStock     bool   `form:"lowStock"`
	ExpiringSoon bool   `form:"expiringSoon"`
	ExpiryDays   int    `form:"expiryDays" binding:"omitempty,min=1"`
	SortBy       string `form:"sortBy"`
	SortOrder    string `form:"sortOrder" binding:"omitempty,oneof=asc desc"`
	PaginationRequest
}

// ToQuery converts the query string for the inventory service.
func (q *InventoryListQuery) ToQuery() (inventory.Query, error) {
	productID, err := ParseOptionalID("productId", q.ProductID)
	if err != nil {
		return inventory.Query{}, err
	}
	locationID, err := ParseOptionalID("locationId", q.LocationID)
	if err != nil {
		return inventory.Query{}, err
	}
	return inventory.Query{
		ProductID:    productID,
		LocationID:   locationID,
		Search:       q.Search,
		Category:     q.Category,
		LowStock:     q.LowStock,
		ExpiringSoon: q.ExpiringSoon,
		ExpiryDays:   q.ExpiryDays,
		SortBy:       inventory.SortField(q.SortBy),
		SortOrder:    q.SortOrder,
		Paging:       inventory.Paging{Page: q.Page, Limit: q.Limit},
	}, nil
}

// MovementListQuery holds the GET /movements query string.
type MovementListQuery struct {
	ProductID  string `form:"productId"`
	LocationID string `form:"locationId"`
	Type       string `form:"type"`
	UserID     string `form:"userId"`
	StartDate  string `form:"startDate"`
	EndDate    string `form:"endDate"`
	PaginationRequest
}

// ToQuery converts the query string for the inventory service.
func (q *MovementListQuery) ToQuery() (inventory.MovementQuery, error) {
	productID, err := ParseOptionalID("productId", q.ProductID)
	if err != nil {
		return inventory.MovementQuery{}, err
	}
	locationID, err := ParseOptionalID("locationId", q.LocationID)
	if err != nil {
		return inventory.MovementQuery{}, err
	}
	start, err := ParseOptionalTime("startDate", q.StartDate)
	if err != nil {
		return inventory.MovementQuery{}, err
	}
	end, err := ParseOptionalTime("endDate", q.EndDate)
	if err != nil {
		return inventory.MovementQuery{}, err
	}

	out := inventory.MovementQuery{
		ProductID:  productID,
		LocationID: locationID,
		UserID:     strings.TrimSpace(q.UserID),
		StartDate:  start,
		EndDate:    end,
		Paging:     inventory.Paging{Page: q.Page, Limit: q.Limit},
	}
	if t := strings.TrimSpace(q.Type); t != "" {
		mt := entity.MovementType(strings.ToUpper(t))
		out.Type = &mt
	}
	return out, nil
}

// AlertListQuery holds the GET /alerts query string.
type AlertListQuery struct {
	ProductID  string `form:"productId"`
	LocationID string `form:"locationId"`
	Type       string `form:"type"`
	Priority   string `form:"priority"`
	PaginationRequest
}

// ToQuery converts the query string for the inventory service.
func (q *AlertListQuery) ToQuery() (inventory.AlertQuery, error) {
	productID, err := ParseOptionalID("productId", q.ProductID)
	if err != nil {
		return inventory.AlertQuery{}, err
	}
	locationID, err := ParseOptionalID("locationId", q.LocationID)
	if err != nil {
		return inventory.AlertQuery{}, err
	}

	out := inventory.AlertQuery{
		ProductID:  productID,
		LocationID: locationID,
		Paging:     inventory.Paging{Page: q.Page, Limit: q.Limit},
	}
	if t := strings.TrimSpace(q.Type); t != "" {
		at := entity.AlertType(strings.ToUpper(t))
		out.Type = &at
	}
	if p := strings.TrimSpace(q.Priority); p != "" {
		pr := entity.Priority(strings.ToUpper(p))
		if pr.Rank() == 0 {
			return inventory.AlertQuery{}, apperror.NewValidation("unknown alert priority").WithDetail("priority", p)
		}
		out.Priority = &pr
	}
	return out, nil
}

// ResolveAlertRequest is the body of POST /alerts/:id/resolve.
type ResolveAlertRequest struct {
	Notes string `json:"notes"`
}

// CostAnalysisQuery holds the cost-analysis query string.
type CostAnalysisQuery struct {
	Quantity          float64 `form:"quantity" binding:"gte=0"`
	Unit              string  `form:"unit"`
	AnnualConsumption float64 `form:"annualConsumption" binding:"gte=0"`
	Objective         string  `form:"objective"`
}

// ToInput converts the query string for the inventory service.
func (q *CostAnalysisQuery) ToInput(productID, locationID string) (inventory.CostAnalysisInput, error) {
	pid, err := ParseID("productId", productID)
	if err != nil {
		return inventory.CostAnalysisInput{}, err
	}
	lid, err := ParseID("locationId", locationID)
	if err != nil {
		return inventory.CostAnalysisInput{}, err
	}
	return inventory.CostAnalysisInput{
		ProductID:         pid,
		LocationID:        lid,
		Quantity:          q.Quantity,
		Unit:              q.Unit,
		AnnualConsumption: q.AnnualConsumption,
		Objective:         costing.Objective(strings.ToLower(strings.TrimSpace(q.Objective))),
	}, nil
}
