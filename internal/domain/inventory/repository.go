package inventory

import (
	"context"
	"time"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
)

// SortField orders inventory listings.
type SortField string

const (
	SortUpdatedAt  SortField = "updatedAt"
	SortCreatedAt  SortField = "createdAt"
	SortAvailable  SortField = "available"
	SortReserved   SortField = "reserved"
	SortQuarantine SortField = "quarantine"
)

// IsValid checks if the sort field is supported.
func (f SortField) IsValid() bool {
	switch f {
	case SortUpdatedAt, SortCreatedAt, SortAvailable, SortReserved, SortQuarantine:
		return true
	}
	return false
}

// ListFilter narrows inventory listings at the store level.
type ListFilter struct {
	// ProductIDs restricts to these products when not nil (empty matches nothing).
	ProductIDs []id.ID
	ProductID  *id.ID
	LocationID *id.ID
	SortBy     SortField
	SortDesc   bool
	// Limit 0 means no limit.
	Limit  int
	Offset int
}

// Repository persists inventory records keyed by (product, location).
type Repository interface {
	// GetForUpdate loads and locks the record for the rest of the
	// transaction. NOT_FOUND when it does not exist yet.
	GetForUpdate(ctx context.Context, productID, locationID id.ID) (*Inventory, error)

	// Get loads the record without locking.
	Get(ctx context.Context, productID, locationID id.ID) (*Inventory, error)

	// Create inserts a new record with Version 1. A concurrent insert of the
	// same pair yields TRANSACTION_CONFLICT.
	Create(ctx context.Context, inv *Inventory) error

	// Save overwrites the record if its stored version equals inv.Version,
	// then bumps inv.Version. A mismatch yields TRANSACTION_CONFLICT.
	Save(ctx context.Context, inv *Inventory) error

	// List returns one page of the records matching filter in the requested
	// order, together with the unpaged total.
	List(ctx context.Context, filter ListFilter) ([]*Inventory, int, error)
}

// MovementFilter narrows movement listings.
type MovementFilter struct {
	ProductID *id.ID
	// LocationID matches either side of a movement.
	LocationID *id.ID
	Type       *entity.MovementType
	UserID     string
	StartDate  *time.Time
	EndDate    *time.Time
	// Limit 0 means no limit.
	Limit  int
	Offset int
	// Ascending lists oldest first; the default is newest first.
	Ascending bool
}

// MovementRepository is the append-only movement log.
type MovementRepository interface {
	Append(ctx context.Context, m *entity.Movement) error
	List(ctx context.Context, filter MovementFilter) ([]*entity.Movement, int, error)
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	ProductID  *id.ID
	LocationID *id.ID
	Type       *entity.AlertType
	Priority   *entity.Priority
	// ActiveOnly is set for the active alert board.
	ActiveOnly bool
	Limit      int
	Offset     int
}

// AlertRepository stores alerts.
type AlertRepository interface {
	Insert(ctx context.Context, alerts []entity.Alert) error
	GetByID(ctx context.Context, alertID id.ID) (*entity.Alert, error)

	// Update persists the resolution fields of a.
	Update(ctx context.Context, a *entity.Alert) error

	// List returns alerts by priority (most urgent first), then newest first.
	List(ctx context.Context, filter AlertFilter) ([]*entity.Alert, int, error)
}
