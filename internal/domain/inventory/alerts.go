package inventory

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/catalogs/product"
)

// AlertPolicy holds the expiry windows used by alert evaluation.
type AlertPolicy struct {
	// ExpiryWindow raises EXPIRY_WARNING for batches expiring within it.
	ExpiryWindow time.Duration

	// UrgentWindow upgrades EXPIRY_WARNING to HIGH.
	UrgentWindow time.Duration
}

// DefaultAlertPolicy warns seven days ahead, urgently three days ahead.
func DefaultAlertPolicy() AlertPolicy {
	return AlertPolicy{ExpiryWindow: 7 * 24 * time.Hour, UrgentWindow: 3 * 24 * time.Hour}
}

// Evaluate returns the alerts inv triggers at now. It has no side effects;
// every call yields fresh alerts, duplicates of active ones included.
func (p AlertPolicy) Evaluate(prod *product.Product, inv Inventory, now time.Time) []entity.Alert {
	var out []entity.Alert
	avail := inv.Totals.Available
	unit := inv.Totals.Unit

	newAlert := func(t entity.AlertType, pr entity.Priority) entity.Alert {
		return entity.Alert{
			ID:         id.New(),
			Type:       t,
			Priority:   pr,
			ProductID:  inv.ProductID,
			LocationID: inv.LocationID,
			IsActive:   true,
			CreatedAt:  now,
		}
	}

	if minimum := prod.StockLevels.Minimum; avail.LessThanOrEqual(minimum) {
		pr := entity.PriorityHigh
		if !avail.IsPositive() {
			pr = entity.PriorityCritical
		}
		a := newAlert(entity.AlertLowStock, pr)
		a.Threshold, a.CurrentValue = minimum, avail
		a.Message = fmt.Sprintf("%s stock is %s %s, at or below the minimum of %s", prod.Name, avail, unit, minimum)
		out = append(out, a)
	}

	if rp := prod.StockLevels.ReorderPoint; avail.LessThanOrEqual(rp) {
		a := newAlert(entity.AlertReorderPoint, entity.PriorityMedium)
		a.Threshold, a.CurrentValue = rp, avail
		a.Message = fmt.Sprintf("%s stock is %s %s, at or below the reorder point of %s", prod.Name, avail, unit, rp)
		out = append(out, a)
	}

	windowDays := decimal.NewFromFloat(p.ExpiryWindow.Hours() / 24)
	for _, b := range inv.Batches {
		if b.ExpiryDate == nil || !b.Quantity.IsPositive() {
			continue
		}
		batchID := b.BatchID
		expiry := *b.ExpiryDate

		switch {
		case b.IsExpired(now):
			a := newAlert(entity.AlertExpiredProduct, entity.PriorityCritical)
			a.BatchID, a.ExpiryDate = &batchID, &expiry
			a.CurrentValue = b.Quantity
			a.Message = fmt.Sprintf("batch %s of %s expired on %s", batchID, prod.Name, expiry.Format(time.DateOnly))
			out = append(out, a)

		case b.ExpiresWithin(now, p.ExpiryWindow):
			pr := entity.PriorityMedium
			if !expiry.After(now.Add(p.UrgentWindow)) {
				pr = entity.PriorityHigh
			}
			days := int(math.Ceil(expiry.Sub(now).Hours() / 24))
			a := newAlert(entity.AlertExpiryWarning, pr)
			a.BatchID, a.ExpiryDate = &batchID, &expiry
			a.Threshold, a.CurrentValue = windowDays, b.Quantity
			a.Message = fmt.Sprintf("batch %s of %s expires in %d day(s)", batchID, prod.Name, days)
			out = append(out, a)
		}
	}
	return out
}
