package memory

import (
	"context"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/domain/inventory"
)

var _ inventory.MovementRepository = (*MovementRepo)(nil)

// MovementRepo is the append-only movement log.
type MovementRepo struct {
	store *Store
}

func cloneMovement(m *entity.Movement) *entity.Movement {
	out := *m
	out.Lines = append([]entity.MovementLine(nil), m.Lines...)
	return &out
}

func (r *MovementRepo) Append(ctx context.Context, m *entity.Movement) error {
	if !m.Type.IsValid() {
		return apperror.NewValidation("unknown movement type").WithDetail("type", string(m.Type))
	}
	return r.store.access(ctx, func(st *state) error {
		st.movements = append(st.movements, cloneMovement(m))
		return nil
	})
}

func (r *MovementRepo) List(ctx context.Context, f inventory.MovementFilter) ([]*entity.Movement, int, error) {
	var (
		out   []*entity.Movement
		total int
	)
	err := r.store.access(ctx, func(st *state) error {
		matched := make([]*entity.Movement, 0)
		for _, m := range st.movements {
			if matchMovement(m, f) {
				matched = append(matched, m)
			}
		}
		if !f.Ascending {
			for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
				matched[i], matched[j] = matched[j], matched[i]
			}
		}

		total = len(matched)
		start, end := page(total, f.Offset, f.Limit)
		out = make([]*entity.Movement, 0, end-start)
		for _, m := range matched[start:end] {
			out = append(out, cloneMovement(m))
		}
		return nil
	})
	return out, total, err
}

func matchMovement(m *entity.Movement, f inventory.MovementFilter) bool {
	switch {
	case f.ProductID != nil && m.ProductID != *f.ProductID:
		return false
	case f.LocationID != nil && !m.Touches(*f.LocationID):
		return false
	case f.Type != nil && m.Type != *f.Type:
		return false
	case f.UserID != "" && m.PerformedBy != f.UserID:
		return false
	case f.StartDate != nil && m.CreatedAt.Before(*f.StartDate):
		return false
	case f.EndDate != nil && m.CreatedAt.After(*f.EndDate):
		return false
	}
	return true
}
