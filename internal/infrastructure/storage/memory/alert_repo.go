package memory

import (
	"context"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/inventory"
)

var _ inventory.AlertRepository = (*AlertRepo)(nil)

// AlertRepo stores alerts.
type AlertRepo struct {
	store *Store
}

func cloneAlert(a *entity.Alert) *entity.Alert {
	out := *a
	return &out
}

func (r *AlertRepo) Insert(ctx context.Context, alerts []entity.Alert) error {
	return r.store.access(ctx, func(st *state) error {
		for i := range alerts {
			if _, ok := st.alerts[alerts[i].ID]; ok {
				return apperror.NewConflict("alert already exists").WithDetail("id", alerts[i].ID.String())
			}
			st.alerts[alerts[i].ID] = cloneAlert(&alerts[i])
		}
		return nil
	})
}

func (r *AlertRepo) GetByID(ctx context.Context, alertID id.ID) (*entity.Alert, error) {
	var out *entity.Alert
	err := r.store.access(ctx, func(st *state) error {
		a, ok := st.alerts[alertID]
		if !ok {
			return apperror.NewNotFound("alert", alertID)
		}
		out = cloneAlert(a)
		return nil
	})
	return out, err
}

func (r *AlertRepo) Update(ctx context.Context, a *entity.Alert) error {
	return r.store.access(ctx, func(st *state) error {
		if _, ok := st.alerts[a.ID]; !ok {
			return apperror.NewNotFound("alert", a.ID)
		}
		st.alerts[a.ID] = cloneAlert(a)
		return nil
	})
}

func (r *AlertRepo) List(ctx context.Context, f inventory.AlertFilter) ([]*entity.Alert, int, error) {
	var (
		out   []*entity.Alert
		total int
	)
	err := r.store.access(ctx, func(st *state) error {
		matched := make([]*entity.Alert, 0)
		for _, a := range st.alerts {
			switch {
			case f.ActiveOnly && !a.IsActive:
			case f.ProductID != nil && a.ProductID != *f.ProductID:
			case f.LocationID != nil && a.LocationID != *f.LocationID:
			case f.Type != nil && a.Type != *f.Type:
			case f.Priority != nil && a.Priority != *f.Priority:
			default:
				matched = append(matched, cloneAlert(a))
			}
		}
		inventory.SortAlerts(matched)

		total = len(matched)
		start, end := page(total, f.Offset, f.Limit)
		out = matched[start:end]
		return nil
	})
	return out, total, err
}
