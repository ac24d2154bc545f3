// Package notify delivers alert notifications outside the ledger transaction.
//
// The ledger only decides that and what to notify: it enqueues a Payload on a
// bounded Dispatcher after commit. Workers hand payloads to a Gateway, which
// picks channels by priority and owns the transport.
package notify

import (
	"context"
	"time"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// Payload is the structured alert notification.
type Payload struct {
	UserID       string           `json:"userId"`
	AlertID      id.ID            `json:"alertId"`
	Type         entity.AlertType `json:"type"`
	Priority     entity.Priority  `json:"priority"`
	ProductID    id.ID            `json:"productId"`
	ProductName  string           `json:"productName"`
	LocationID   id.ID            `json:"locationId"`
	Threshold    types.Quantity   `json:"threshold"`
	CurrentValue types.Quantity   `json:"currentValue"`
	ExpiryDate   *time.Time       `json:"expiryDate,omitempty"`
	BatchID      *string          `json:"batchId,omitempty"`
	Message      string           `json:"message"`
	CreatedAt    time.Time        `json:"createdAt"`
	Channels     []Channel        `json:"channels,omitempty"`
}

// FromAlert builds the payload for a persisted alert.
func FromAlert(a entity.Alert, userID, productName string) Payload {
	return Payload{
		UserID:       userID,
		AlertID:      a.ID,
		Type:         a.Type,
		Priority:     a.Priority,
		ProductID:    a.ProductID,
		ProductName:  productName,
		LocationID:   a.LocationID,
		Threshold:    a.Threshold,
		CurrentValue: a.CurrentValue,
		ExpiryDate:   a.ExpiryDate,
		BatchID:      a.BatchID,
		Message:      a.Message,
		CreatedAt:    a.CreatedAt,
	}
}

// Gateway is the external notification collaborator.
type Gateway interface {
	Notify(ctx context.Context, p Payload) error
}
