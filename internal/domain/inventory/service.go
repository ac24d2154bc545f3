package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/costing"
	"stockledger/internal/domain/units"
	"stockledger/internal/notify"
	"stockledger/pkg/logger"
)

var tracer = otel.Tracer("stockledger/inventory")

// SystemUser is recorded as performer when no user is known.
const SystemUser = "system"

// Notifier accepts alert notifications for delivery after commit.
// notify.Dispatcher implements it.
type Notifier interface {
	Enqueue(ctx context.Context, p notify.Payload) error
}

// Config tunes the service.
type Config struct {
	Retry  tx.RetryPolicy
	Alerts AlertPolicy

	// Now is the clock; defaults to time.Now in UTC.
	Now func() time.Time
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Retry:  tx.DefaultRetryPolicy(),
		Alerts: DefaultAlertPolicy(),
	}
}

// Deps are the collaborators of the service.
type Deps struct {
	TxManager   tx.Manager
	Products    product.Repository
	Inventories Repository
	Movements   MovementRepository
	Alerts      AlertRepository
	Converter   *units.Converter
	Calculator  *costing.Calculator

	// Notifier is optional; without it alerts are stored but not dispatched.
	Notifier Notifier
}

// Service provides the ledger operations.
type Service struct {
	txm         tx.Manager
	products    product.Repository
	inventories Repository
	movements   MovementRepository
	alerts      AlertRepository
	converter   *units.Converter
	calculator  *costing.Calculator
	notifier    Notifier
	cfg         Config
}

// NewService creates the inventory service.
func NewService(d Deps, cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Alerts.ExpiryWindow <= 0 {
		cfg.Alerts = DefaultAlertPolicy()
	}
	if d.Converter == nil {
		d.Converter = units.NewConverter(nil)
	}
	if d.Calculator == nil {
		d.Calculator = costing.NewCalculator()
	}

	return &Service{
		txm:         d.TxManager,
		products:    d.Products,
		inventories: d.Inventories,
		movements:   d.Movements,
		alerts:      d.Alerts,
		converter:   d.Converter,
		calculator:  d.Calculator,
		notifier:    d.Notifier,
		cfg:         cfg,
	}
}

// Result is the outcome of a mutation.
type Result struct {
	// Inventory is the record at the operation's location (the source of a transfer).
	Inventory *Inventory `json:"inventory"`

	// Destination is set for transfers.
	Destination *Inventory `json:"destination,omitempty"`

	// Movement is nil for reservations, which log no movement.
	Movement *entity.Movement `json:"movement,omitempty"`

	Reservation *Reservation         `json:"reservation,omitempty"`
	Consumption *costing.Consumption `json:"consumption,omitempty"`
	Alerts      []entity.Alert       `json:"alerts"`

	product *product.Product
	userID  string
}

// AdjustInput is a signed stock change at one location.
// A positive quantity is an entry, a negative one an exit.
type AdjustInput struct {
	ProductID  id.ID
	LocationID id.ID
	Quantity   float64
	// Unit defaults to the product base unit.
	Unit string
	// Type may be AJUSTE to label a correction; it keeps entry/exit mechanics.
	Type   entity.MovementType
	Reason string
	Notes  string
	UserID string

	// Entry-only fields.
	BatchID      string
	CostPerUnit  *types.Money
	ExpiryDate   *time.Time
	ReceivedDate *time.Time
}

// TransferInput moves stock between two locations.
type TransferInput struct {
	ProductID      id.ID
	FromLocationID id.ID
	ToLocationID   id.ID
	Quantity       float64
	Unit           string
	Reason         string
	Notes          string
	UserID         string
}

// ReserveInput sets stock aside.
type ReserveInput struct {
	ProductID   id.ID
	LocationID  id.ID
	Quantity    float64
	Unit        string
	ReservedFor string
	ExpiresAt   *time.Time
	UserID      string
}

// ReleaseInput returns reserved stock. A zero Quantity releases all of it.
type ReleaseInput struct {
	ProductID     id.ID
	LocationID    id.ID
	ReservationID id.ID
	Quantity      float64
	Unit          string
	UserID        string
}

// ConsumeInput uses stock up for a purpose, optionally fulfilling a reservation.
type ConsumeInput struct {
	ProductID     id.ID
	LocationID    id.ID
	Quantity      float64
	Unit          string
	Purpose       string
	ReservationID *id.ID
	Notes         string
	UserID        string
}

// AdjustStock applies a signed quantity change.
func (s *Service) AdjustStock(ctx context.Context, in AdjustInput) (*Result, error) {
	if in.Quantity == 0 {
		return nil, apperror.NewValidation("quantity must not be zero").WithDetail("field", "quantity")
	}
	if in.Type != "" && in.Type != entity.MovementAdjustment && !isDirectional(in.Type, in.Quantity) {
		return nil, apperror.NewValidation("movement type does not match the sign of the quantity").
			WithDetail("type", string(in.Type))
	}

	userID := performer(ctx, in.UserID)
	return s.mutate(ctx, "AdjustStock", userID, func(ctx context.Context, res *Result) error {
		prod, inv, isNew, err := s.open(ctx, in.ProductID, in.LocationID)
		if err != nil {
			return err
		}
		res.product = prod

		qty, err := s.toBase(prod, in.Quantity, in.Unit)
		if err != nil {
			return err
		}

		return s.adjust(ctx, res, prod, inv, isNew, qty, in, nil)
	})
}

// ConsumeStock withdraws quantity for purpose. It is AdjustStock with the
// sign flipped; a named reservation is released in the same transaction.
func (s *Service) ConsumeStock(ctx context.Context, in ConsumeInput) (*Result, error) {
	if in.Quantity <= 0 {
		return nil, apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}

	adj := AdjustInput{
		ProductID:  in.ProductID,
		LocationID: in.LocationID,
		Quantity:   -in.Quantity,
		Unit:       in.Unit,
		Reason:     "consumption: " + strings.TrimSpace(in.Purpose),
		Notes:      in.Notes,
		UserID:     in.UserID,
	}

	userID := performer(ctx, in.UserID)
	return s.mutate(ctx, "ConsumeStock", userID, func(ctx context.Context, res *Result) error {
		prod, inv, isNew, err := s.open(ctx, in.ProductID, in.LocationID)
		if err != nil {
			return err
		}
		res.product = prod

		qty, err := s.toBase(prod, adj.Quantity, adj.Unit)
		if err != nil {
			return err
		}
		return s.adjust(ctx, res, prod, inv, isNew, qty, adj, in.ReservationID)
	})
}

// adjust is the shared body of AdjustStock and ConsumeStock, run inside the transaction.
func (s *Service) adjust(
	ctx context.Context,
	res *Result,
	prod *product.Product,
	inv Inventory,
	isNew bool,
	qty types.Quantity,
	in AdjustInput,
	reservationID *id.ID,
) error {
	if qty.IsZero() {
		return apperror.NewValidation("quantity is zero in the product base unit").
			WithDetail("quantity", fmt.Sprint(in.Quantity)).
			WithDetail("unit", in.Unit)
	}

	now := s.cfg.Now()
	mv := &entity.Movement{
		ID:          id.New(),
		ProductID:   prod.ID,
		Quantity:    qty.Abs(),
		Unit:        prod.BaseUnit(),
		PerformedBy: res.userID,
		Reason:      in.Reason,
		Notes:       in.Notes,
		CreatedAt:   now,
	}
	loc := inv.LocationID

	var next Inventory
	if qty.IsPositive() {
		if !prod.IsActive {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "product is inactive").
				WithDetail("product_id", prod.ID.String())
		}
		b := entity.Batch{
			BatchID:      strings.TrimSpace(in.BatchID),
			Quantity:     qty,
			CostPerUnit:  prod.CostPrice,
			ReceivedDate: now,
			ExpiryDate:   in.ExpiryDate,
			Status:       entity.BatchAvailable,
		}
		if in.CostPerUnit != nil {
			if in.CostPerUnit.IsNegative() {
				return apperror.NewValidation("cost per unit must not be negative").WithDetail("field", "costPerUnit")
			}
			b.CostPerUnit = *in.CostPerUnit
		}
		if in.ReceivedDate != nil {
			b.ReceivedDate = in.ReceivedDate.UTC()
		}
		if b.BatchID == "" {
			b.BatchID = id.NewBatchCode(b.ReceivedDate)
		}

		var err error
		if next, err = inv.AddBatch(b); err != nil {
			return err
		}

		mv.Type = entity.MovementEntry
		mv.ToLocation = &loc
		mv.BatchID = &b.BatchID
		mv.Cost = qty.Mul(b.CostPerUnit)
		mv.Lines = []entity.MovementLine{{BatchID: b.BatchID, Quantity: qty, CostPerUnit: b.CostPerUnit, TotalCost: mv.Cost}}
	} else {
		if isNew {
			return insufficient(prod.ID, qty.Abs(), types.Quantity{})
		}

		cur := inv
		if reservationID != nil {
			r, ok := inv.Reservation(*reservationID)
			if !ok {
				return apperror.NewNotFound("reservation", *reservationID)
			}
			var err error
			if cur, _, err = inv.Release(r.ID, types.MinQuantity(r.Quantity, qty.Abs())); err != nil {
				return err
			}
		}

		var (
			cons costing.Consumption
			err  error
		)
		if next, cons, err = cur.Withdraw(qty.Abs()); err != nil {
			return err
		}

		mv.Type = entity.MovementExit
		mv.FromLocation = &loc
		mv.Cost = cons.TotalCost
		mv.Lines = movementLines(cons.Lines)
		if len(cons.Lines) == 1 {
			mv.BatchID = &cons.Lines[0].BatchID
		}
		res.Consumption = &cons
	}
	if in.Type == entity.MovementAdjustment {
		mv.Type = entity.MovementAdjustment
	}
	next.LastMovementAt = &now

	saved, err := s.persist(ctx, next, isNew)
	if err != nil {
		return err
	}
	if err := s.movements.Append(ctx, mv); err != nil {
		return fmt.Errorf("append movement: %w", err)
	}
	alerts, err := s.raiseAlerts(ctx, prod, saved)
	if err != nil {
		return err
	}

	res.Inventory = &saved
	res.Movement = mv
	res.Alerts = alerts
	return nil
}

// TransferStock moves quantity from one location to another, oldest
// batches first. Batch identity, cost, receive date and expiry travel with
// the stock; one TRANSFERENCIA movement records the move.
func (s *Service) TransferStock(ctx context.Context, in TransferInput) (*Result, error) {
	if in.Quantity <= 0 {
		return nil, apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}
	if in.FromLocationID == in.ToLocationID {
		return nil, apperror.NewValidation("source and destination locations must differ").
			WithDetail("location_id", in.FromLocationID.String())
	}

	userID := performer(ctx, in.UserID)
	return s.mutate(ctx, "TransferStock", userID, func(ctx context.Context, res *Result) error {
		prod, err := s.products.GetByID(ctx, in.ProductID)
		if err != nil {
			return err
		}
		res.product = prod

		src, dst, dstNew, err := s.lockPair(ctx, prod, in.FromLocationID, in.ToLocationID)
		if err != nil {
			return err
		}

		qty, err := s.toBase(prod, in.Quantity, in.Unit)
		if err != nil {
			return err
		}
		if !qty.IsPositive() {
			return apperror.NewValidation("quantity is zero in the product base unit")
		}

		nextSrc, cons, err := src.Withdraw(qty)
		if err != nil {
			return err
		}
		nextDst, err := dst.Receive(movedBatches(src, cons.Lines))
		if err != nil {
			return err
		}

		now := s.cfg.Now()
		nextSrc.LastMovementAt, nextDst.LastMovementAt = &now, &now

		savedSrc, err := s.persist(ctx, nextSrc, false)
		if err != nil {
			return err
		}
		savedDst, err := s.persist(ctx, nextDst, dstNew)
		if err != nil {
			return err
		}

		from, to := in.FromLocationID, in.ToLocationID
		mv := &entity.Movement{
			ID:           id.New(),
			Type:         entity.MovementTransfer,
			ProductID:    prod.ID,
			FromLocation: &from,
			ToLocation:   &to,
			Quantity:     qty,
			Unit:         prod.BaseUnit(),
			Lines:        movementLines(cons.Lines),
			Cost:         cons.TotalCost,
			PerformedBy:  res.userID,
			Reason:       in.Reason,
			Notes:        in.Notes,
			CreatedAt:    now,
		}
		if len(cons.Lines) == 1 {
			mv.BatchID = &cons.Lines[0].BatchID
		}
		if err := s.movements.Append(ctx, mv); err != nil {
			return fmt.Errorf("append movement: %w", err)
		}

		alerts, err := s.raiseAlerts(ctx, prod, savedSrc, savedDst)
		if err != nil {
			return err
		}

		res.Inventory = &savedSrc
		res.Destination = &savedDst
		res.Movement = mv
		res.Consumption = &cons
		res.Alerts = alerts
		return nil
	})
}

// lockPair locks both inventory rows in a fixed order so that opposing
// transfers cannot deadlock. The source must exist.
func (s *Service) lockPair(ctx context.Context, prod *product.Product, fromID, toID id.ID) (src, dst Inventory, dstNew bool, err error) {
	lockSrc := func() error {
		inv, err := s.inventories.GetForUpdate(ctx, prod.ID, fromID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound("inventory", fmt.Sprintf("%s@%s", prod.ID, fromID))
			}
			return fmt.Errorf("lock source inventory: %w", err)
		}
		src = *inv
		return nil
	}
	lockDst := func() error {
		var err error
		dst, dstNew, err = s.load(ctx, prod, toID)
		return err
	}

	first, second := lockSrc, lockDst
	if toID.String() < fromID.String() {
		first, second = lockDst, lockSrc
	}
	if err = first(); err != nil {
		return
	}
	err = second()
	return
}

// ReserveStock sets quantity aside for a purpose. No batch changes and no
// movement is logged.
func (s *Service) ReserveStock(ctx context.Context, in ReserveInput) (*Result, error) {
	if in.Quantity <= 0 {
		return nil, apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}

	userID := performer(ctx, in.UserID)
	return s.mutate(ctx, "ReserveStock", userID, func(ctx context.Context, res *Result) error {
		prod, inv, isNew, err := s.open(ctx, in.ProductID, in.LocationID)
		if err != nil {
			return err
		}
		res.product = prod

		qty, err := s.toBase(prod, in.Quantity, in.Unit)
		if err != nil {
			return err
		}
		if isNew {
			return insufficient(prod.ID, qty, types.Quantity{})
		}

		r := Reservation{
			ID:          id.New(),
			Quantity:    qty,
			ReservedFor: strings.TrimSpace(in.ReservedFor),
			ExpiresAt:   in.ExpiresAt,
			CreatedBy:   res.userID,
			CreatedAt:   s.cfg.Now(),
		}
		next, err := inv.Reserve(r)
		if err != nil {
			return err
		}

		saved, err := s.persist(ctx, next, false)
		if err != nil {
			return err
		}
		alerts, err := s.raiseAlerts(ctx, prod, saved)
		if err != nil {
			return err
		}

		res.Inventory = &saved
		res.Reservation = &r
		res.Alerts = alerts
		return nil
	})
}

// ReleaseReservation returns reserved quantity to available stock.
func (s *Service) ReleaseReservation(ctx context.Context, in ReleaseInput) (*Result, error) {
	if in.Quantity < 0 {
		return nil, apperror.NewValidation("quantity must not be negative").WithDetail("field", "quantity")
	}

	userID := performer(ctx, in.UserID)
	return s.mutate(ctx, "ReleaseReservation", userID, func(ctx context.Context, res *Result) error {
		prod, err := s.products.GetByID(ctx, in.ProductID)
		if err != nil {
			return err
		}
		res.product = prod

		inv, err := s.inventories.GetForUpdate(ctx, in.ProductID, in.LocationID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound("inventory", fmt.Sprintf("%s@%s", in.ProductID, in.LocationID))
			}
			return fmt.Errorf("lock inventory: %w", err)
		}

		var qty types.Quantity
		if in.Quantity > 0 {
			if qty, err = s.toBase(prod, in.Quantity, in.Unit); err != nil {
				return err
			}
		}

		next, r, err := inv.Release(in.ReservationID, qty)
		if err != nil {
			return err
		}

		saved, err := s.persist(ctx, next, false)
		if err != nil {
			return err
		}
		alerts, err := s.raiseAlerts(ctx, prod, saved)
		if err != nil {
			return err
		}

		res.Inventory = &saved
		res.Reservation = &r
		res.Alerts = alerts
		return nil
	})
}

// mutate runs fn in a transaction, retrying conflicts, and dispatches the
// alerts it raised once the transaction has committed.
func (s *Service) mutate(ctx context.Context, op, userID string, fn func(ctx context.Context, res *Result) error) (*Result, error) {
	ctx, span := tracer.Start(ctx, "inventory."+op, trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	var res *Result
	err := tx.RunWithRetry(ctx, s.txm, s.cfg.Retry, func(ctx context.Context) error {
		res = &Result{userID: userID}
		return fn(ctx, res)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn(ctx, "inventory operation failed", "operation", op, "error", err)
		return nil, err
	}

	if res.Movement != nil {
		logger.Info(ctx, "inventory movement recorded",
			"operation", op,
			"movement_id", res.Movement.ID,
			"type", res.Movement.Type,
			"product_id", res.Movement.ProductID,
			"quantity", res.Movement.Quantity.String(),
		)
	}
	s.dispatch(ctx, res)
	return res, nil
}

// dispatch enqueues one notification per alert. Failures are logged only.
func (s *Service) dispatch(ctx context.Context, res *Result) {
	if s.notifier == nil || len(res.Alerts) == 0 {
		return
	}
	for _, a := range res.Alerts {
		p := notify.FromAlert(a, res.userID, res.product.Name)
		if err := s.notifier.Enqueue(ctx, p); err != nil {
			logger.Warn(ctx, "alert notification not enqueued",
				"alert_id", a.ID,
				"type", a.Type,
				"error", err,
			)
		}
	}
}

// open reads the product and locks its inventory at locationID, creating
// an unsaved empty record when none exists yet.
func (s *Service) open(ctx context.Context, productID, locationID id.ID) (*product.Product, Inventory, bool, error) {
	prod, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, Inventory{}, false, err
	}
	inv, isNew, err := s.load(ctx, prod, locationID)
	if err != nil {
		return nil, Inventory{}, false, err
	}
	return prod, inv, isNew, nil
}

func (s *Service) load(ctx context.Context, prod *product.Product, locationID id.ID) (Inventory, bool, error) {
	inv, err := s.inventories.GetForUpdate(ctx, prod.ID, locationID)
	if err == nil {
		return *inv, false, nil
	}
	if !apperror.IsNotFound(err) {
		return Inventory{}, false, fmt.Errorf("lock inventory: %w", err)
	}
	return New(prod.ID, locationID, prod.BaseUnit(), s.cfg.Now()), true, nil
}

func (s *Service) persist(ctx context.Context, inv Inventory, isNew bool) (Inventory, error) {
	inv.UpdatedAt = s.cfg.Now()
	if isNew {
		if err := s.inventories.Create(ctx, &inv); err != nil {
			return Inventory{}, fmt.Errorf("create inventory: %w", err)
		}
		return inv, nil
	}
	if err := s.inventories.Save(ctx, &inv); err != nil {
		return Inventory{}, fmt.Errorf("save inventory: %w", err)
	}
	return inv, nil
}

// toBase normalises a human-entered quantity to the product base unit.
func (s *Service) toBase(prod *product.Product, value float64, unit string) (types.Quantity, error) {
	if strings.TrimSpace(unit) == "" {
		unit = prod.Units.Base
	}
	opts := prod.ConversionOptions()
	opts.AllowNegative = true

	res, err := s.converter.Convert(value, unit, prod.Units.Base, opts)
	if err != nil {
		return types.Quantity{}, err
	}
	return types.NewQuantity(res.Value), nil
}

func (s *Service) raiseAlerts(ctx context.Context, prod *product.Product, invs ...Inventory) ([]entity.Alert, error) {
	now := s.cfg.Now()
	alerts := []entity.Alert{}
	for _, inv := range invs {
		alerts = append(alerts, s.cfg.Alerts.Evaluate(prod, inv, now)...)
	}
	if len(alerts) == 0 {
		return alerts, nil
	}
	if err := s.alerts.Insert(ctx, alerts); err != nil {
		return nil, fmt.Errorf("insert alerts: %w", err)
	}
	return alerts, nil
}

// movedBatches rebuilds the consumed parts of src's batches for the destination.
func movedBatches(src Inventory, lines []costing.Line) []entity.Batch {
	byID := make(map[string]entity.Batch, len(src.Batches))
	for _, b := range src.Batches {
		byID[b.BatchID] = b
	}

	out := make([]entity.Batch, 0, len(lines))
	for _, l := range lines {
		b := byID[l.BatchID].WithQuantity(l.Quantity)
		b.Status = entity.BatchAvailable
		out = append(out, b)
	}
	return out
}

func movementLines(lines []costing.Line) []entity.MovementLine {
	out := make([]entity.MovementLine, len(lines))
	for i, l := range lines {
		out[i] = entity.MovementLine{
			BatchID:     l.BatchID,
			Quantity:    l.Quantity,
			CostPerUnit: l.CostPerUnit,
			TotalCost:   l.TotalCost,
		}
	}
	return out
}

func isDirectional(t entity.MovementType, qty float64) bool {
	return (t == entity.MovementEntry && qty > 0) || (t == entity.MovementExit && qty < 0)
}

func performer(ctx context.Context, explicit string) string {
	if u := appctx.ResolveUserID(ctx, strings.TrimSpace(explicit)); u != "" {
		return u
	}
	return SystemUser
}
