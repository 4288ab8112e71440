package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gkstays/booking/internal/domain/catalog"
	"github.com/gkstays/booking/internal/domain/discount"
	"github.com/gkstays/booking/internal/domain/identity"
)

// CreateInput is a booking request: stay dates, guests, requested lines and
// an optional promo code.
type CreateInput struct {
	GuestID   string
	CheckIn   time.Time
	CheckOut  time.Time
	Guests    []Guest
	PromoCode string
	Notes     string
	Lines     []LineRequest
}

// LineRequest is one requested booking line. ProductID/VariantID are
// optional; when present they must resolve, and the catalog records are
// snapshotted onto the line. Zero-valued stay inputs fall back to the
// resolved catalog values.
type LineRequest struct {
	ProductID          string
	VariantID          string
	Currency           string
	PricePerNight      decimal.Decimal
	Rooms              int
	Nights             int
	Capacity           int
	ExtraBed           *ExtraBed
	FoodOptions        []FoodOption
	SpecialRequests    string
	CancellationPolicy string
}

// UpdateInput is a partial order edit. Nil fields keep their current value.
// A non-nil Lines replaces the whole line set; there is no partial line
// patching.
type UpdateInput struct {
	GuestID   *string
	CheckIn   *time.Time
	CheckOut  *time.Time
	Guests    []Guest
	PromoCode *string
	Notes     *string
	Lines     []LineRequest
}

// Service orchestrates order creation and lifecycle: it validates and
// resolves references, prices lines, aggregates totals and routes status
// changes through the transition table. All validation happens before any
// write; persistence is a single transactional step.
type Service struct {
	catalog   catalog.Repository
	users     identity.Repository
	discounts discount.Evaluator
	orders    Repository
	pricing   PricingConfig
}

// NewService creates an order Service with the required collaborators.
func NewService(
	cat catalog.Repository,
	users identity.Repository,
	discounts discount.Evaluator,
	orders Repository,
	pricing PricingConfig,
) *Service {
	return &Service{
		catalog:   cat,
		users:     users,
		discounts: discounts,
		orders:    orders,
		pricing:   pricing,
	}
}

// Create validates the booking request, prices every line, aggregates the
// order totals and persists the order with its lines, invoice number and
// promo usage in one transaction.
func (s *Service) Create(ctx context.Context, in CreateInput, operatorID string) (*Order, error) {
	if err := validateStay(in.CheckIn, in.CheckOut); err != nil {
		return nil, err
	}
	if err := validateGuests(in.Guests); err != nil {
		return nil, err
	}
	if len(in.Lines) == 0 {
		return nil, &InvalidRequestError{Reason: "at least one order line is required"}
	}

	if _, err := s.users.GetUser(ctx, in.GuestID); err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return nil, &NotFoundError{Entity: "user", ID: in.GuestID}
		}
		return nil, errors.Wrap(err, "resolve guest")
	}

	lines := make([]Line, 0, len(in.Lines))
	for _, req := range in.Lines {
		line, err := s.buildLine(ctx, req)
		if err != nil {
			return nil, err
		}
		lines = append(lines, *line)
	}

	detail, err := s.resolvePromo(ctx, in.PromoCode, lines, in.GuestID, "")
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:         uuid.New().String(),
		GuestID:    in.GuestID,
		OperatorID: operatorID,
		CheckIn:    in.CheckIn,
		CheckOut:   in.CheckOut,
		Guests:     in.Guests,
		PromoCode:  in.PromoCode,
		Status:     StatusPending,
		Notes:      in.Notes,
	}
	s.priceAndAggregate(o, lines, detail)

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// Get loads a single order with its lines.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.Get(ctx, id)
}

// ListForUser returns all orders booked for the given guest.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListForUser(ctx, userID)
}

// Update applies a partial edit. If new lines are supplied the stored line
// set is fully replaced; in every case the lines are re-priced and the
// order totals re-aggregated before persisting. Edits are rejected outright
// on cancelled or completed orders.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanModify(o.Status) {
		return nil, &InvalidRequestError{
			Reason: fmt.Sprintf("order in %s status cannot be modified", o.Status),
		}
	}

	if in.CheckIn != nil {
		o.CheckIn = *in.CheckIn
	}
	if in.CheckOut != nil {
		o.CheckOut = *in.CheckOut
	}
	if err := validateStay(o.CheckIn, o.CheckOut); err != nil {
		return nil, err
	}
	if in.Guests != nil {
		if err := validateGuests(in.Guests); err != nil {
			return nil, err
		}
		o.Guests = in.Guests
	}
	if in.Notes != nil {
		o.Notes = *in.Notes
	}
	if in.GuestID != nil && *in.GuestID != o.GuestID {
		if _, err := s.users.GetUser(ctx, *in.GuestID); err != nil {
			if errors.Is(err, identity.ErrUserNotFound) {
				return nil, &NotFoundError{Entity: "user", ID: *in.GuestID}
			}
			return nil, errors.Wrap(err, "resolve guest")
		}
		o.GuestID = *in.GuestID
	}

	promoChanged := in.PromoCode != nil && *in.PromoCode != o.PromoCode
	if promoChanged {
		o.PromoCode = *in.PromoCode
	}

	replaceLines := in.Lines != nil
	lines := o.Lines
	if replaceLines {
		if len(in.Lines) == 0 {
			return nil, &InvalidRequestError{Reason: "at least one order line is required"}
		}
		lines = make([]Line, 0, len(in.Lines))
		for _, req := range in.Lines {
			line, err := s.buildLine(ctx, req)
			if err != nil {
				return nil, err
			}
			line.OrderID = o.ID
			lines = append(lines, *line)
		}
	}

	// The code is re-evaluated against the new line subtotals whenever it
	// changes or the line set is rebuilt, so an expired or deactivated code
	// cannot keep discounting edited lines. The order's own id is passed so
	// the per-customer check does not count this very order's redemption.
	// An unchanged code on an untouched line set keeps the embedded detail.
	var detail *discount.Detail
	if promoChanged || (replaceLines && o.PromoCode != "") {
		detail, err = s.resolvePromo(ctx, o.PromoCode, lines, o.GuestID, o.ID)
		if err != nil {
			return nil, err
		}
	} else {
		detail = o.existingDetail()
	}

	s.priceAndAggregate(o, lines, detail)

	consumePromo := promoChanged && o.PromoCode != ""
	if err := s.orders.Update(ctx, o, replaceLines, consumePromo); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	return o, nil
}

// UpdateStatus routes a single-order status change through the transition
// table and persists it only on acceptance.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Transition(o.Status, status); err != nil {
		return nil, err
	}
	if err := s.orders.UpdateStatus(ctx, id, status, o.Notes); err != nil {
		return nil, errors.Wrap(err, "update status")
	}
	o.Status = status
	return o, nil
}

// Confirm moves a pending order to confirmed.
func (s *Service) Confirm(ctx context.Context, id string) (*Order, error) {
	return s.guardedStatus(ctx, id, StatusPending, StatusConfirmed,
		"only pending orders can be confirmed")
}

// Complete moves a confirmed order to completed.
func (s *Service) Complete(ctx context.Context, id string) (*Order, error) {
	return s.guardedStatus(ctx, id, StatusConfirmed, StatusCompleted,
		"only confirmed orders can be completed")
}

// Cancel cancels an order unless it is already cancelled or completed,
// optionally appending the reason to the order notes.
func (s *Service) Cancel(ctx context.Context, id, reason string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status == StatusCancelled || o.Status == StatusCompleted {
		return nil, &InvalidRequestError{
			Reason: fmt.Sprintf("order in %s status cannot be cancelled", o.Status),
		}
	}
	notes := o.Notes
	if reason != "" {
		if notes != "" {
			notes += "\n"
		}
		notes += "cancelled: " + reason
	}
	if err := s.orders.UpdateStatus(ctx, id, StatusCancelled, notes); err != nil {
		return nil, errors.Wrap(err, "cancel order")
	}
	o.Status = StatusCancelled
	o.Notes = notes
	return o, nil
}

// Remove soft-deletes an order. Deletion is permitted only from pending or
// cancelled status; the record stays recoverable via Restore.
func (s *Service) Remove(ctx context.Context, id string) error {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return err
	}
	if o.Status != StatusPending && o.Status != StatusCancelled {
		return &InvalidRequestError{Reason: "only pending or cancelled orders can be deleted"}
	}
	return s.orders.SoftDelete(ctx, id)
}

// Restore clears an order's soft-delete tombstone.
func (s *Service) Restore(ctx context.Context, id string) error {
	return s.orders.Restore(ctx, id)
}

// BulkUpdateStatus sets a status on many orders directly. This deliberately
// bypasses the transition table: it is an administrative correction tool
// and must be exposed with higher privileges than UpdateStatus.
func (s *Service) BulkUpdateStatus(ctx context.Context, ids []string, status Status) (int, error) {
	if !status.Valid() {
		return 0, &UnknownStatusError{Status: status}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return s.orders.BulkUpdateStatus(ctx, ids, status)
}

// Statistics returns order counts per status and revenue over confirmed
// and completed orders.
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	return s.orders.Statistics(ctx)
}

// guardedStatus applies a convenience transition with an exact precondition
// on the current status.
func (s *Service) guardedStatus(ctx context.Context, id string, from, to Status, reason string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != from {
		return nil, &InvalidRequestError{Reason: reason}
	}
	if err := s.orders.UpdateStatus(ctx, id, to, o.Notes); err != nil {
		return nil, errors.Wrap(err, "update status")
	}
	o.Status = to
	return o, nil
}

// buildLine validates a line request, resolves its catalog references and
// assembles an unpriced line with immutable snapshots.
func (s *Service) buildLine(ctx context.Context, req LineRequest) (*Line, error) {
	if req.Rooms <= 0 {
		return nil, &InvalidRequestError{Reason: "number of rooms must be greater than zero"}
	}
	if req.Nights <= 0 {
		return nil, &InvalidRequestError{Reason: "number of nights must be greater than zero"}
	}

	line := &Line{
		ID:                 uuid.New().String(),
		Currency:           req.Currency,
		PricePerNight:      req.PricePerNight,
		Rooms:              req.Rooms,
		Nights:             req.Nights,
		Capacity:           req.Capacity,
		ExtraBed:           req.ExtraBed,
		FoodOptions:        req.FoodOptions,
		SpecialRequests:    req.SpecialRequests,
		CancellationPolicy: req.CancellationPolicy,
	}

	if req.ProductID != "" {
		p, err := s.catalog.GetProduct(ctx, req.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				return nil, &NotFoundError{Entity: "product", ID: req.ProductID}
			}
			return nil, errors.Wrap(err, "resolve product")
		}
		pid := p.ID
		line.ProductID = &pid
		line.Product = &ProductSnapshot{
			Version:            SnapshotVersion,
			ID:                 p.ID,
			Name:               p.Name,
			CommissionPercent:  p.CommissionPercent,
			CancellationPolicy: p.CancellationPolicy,
			Capacity:           p.Capacity,
			PricePerNight:      p.PricePerNight,
			Currency:           p.Currency,
		}
		pct := p.CommissionPercent
		line.CommissionPercent = &pct
		if line.Currency == "" {
			line.Currency = p.Currency
		}
		if line.PricePerNight.IsZero() {
			line.PricePerNight = p.PricePerNight
		}
		if line.Capacity == 0 {
			line.Capacity = p.Capacity
		}
		if line.CancellationPolicy == "" {
			line.CancellationPolicy = p.CancellationPolicy
		}

		if req.VariantID != "" {
			v, err := s.catalog.GetVariant(ctx, req.VariantID, p.ID)
			if err != nil {
				if errors.Is(err, catalog.ErrVariantNotFound) {
					return nil, &NotFoundError{Entity: "variant", ID: req.VariantID}
				}
				return nil, errors.Wrap(err, "resolve variant")
			}
			vid := v.ID
			line.VariantID = &vid
			line.Variant = &VariantSnapshot{
				Version:       SnapshotVersion,
				ID:            v.ID,
				Name:          v.Name,
				Capacity:      v.Capacity,
				PricePerNight: v.PricePerNight,
				ExtraBed:      v.ExtraBed,
				ExtraBedPrice: v.ExtraBedPrice,
			}
			if req.PricePerNight.IsZero() {
				line.PricePerNight = v.PricePerNight
			}
			if req.Capacity == 0 {
				line.Capacity = v.Capacity
			}
		}
	}

	if !line.PricePerNight.IsPositive() {
		return nil, &InvalidRequestError{Reason: "price per night must be greater than zero"}
	}
	return line, nil
}

// resolvePromo evaluates a promo code against the summed raw line subtotals
// and returns its line-embeddable detail. A supplied code that does not
// apply rejects the whole order with the evaluator's specific reason.
func (s *Service) resolvePromo(ctx context.Context, code string, lines []Line, customerID, excludeOrderID string) (*discount.Detail, error) {
	if code == "" {
		return nil, nil
	}

	raw := decimal.Zero
	for i := range lines {
		raw = raw.Add(PriceLine(lines[i].input(), nil, s.pricing).Subtotal)
	}

	eval, err := s.discounts.Evaluate(ctx, code, raw, customerID, excludeOrderID)
	if err != nil {
		return nil, errors.Wrap(err, "evaluate promo code")
	}
	if !eval.Applies {
		return nil, &InvalidRequestError{Reason: eval.Reason}
	}
	return eval.Rule.Detail(), nil
}

// priceAndAggregate attaches the discount to every line, re-derives all
// line financials and recomputes the order totals from the result.
func (s *Service) priceAndAggregate(o *Order, lines []Line, detail *discount.Detail) {
	for i := range lines {
		lines[i].Discount = detail
		lines[i].applyPricing(PriceLine(lines[i].input(), detail, s.pricing))
	}
	o.Lines = lines
	o.applyTotals(Aggregate(lines))
}

// existingDetail returns the discount detail the order's current code was
// applied with, if any.
func (o *Order) existingDetail() *discount.Detail {
	if o.PromoCode == "" {
		return nil
	}
	for i := range o.DiscountDetails {
		if o.DiscountDetails[i].Code == o.PromoCode {
			return &o.DiscountDetails[i]
		}
	}
	for i := range o.Lines {
		if d := o.Lines[i].Discount; d != nil && d.Code == o.PromoCode {
			return d
		}
	}
	return nil
}

func validateStay(checkIn, checkOut time.Time) error {
	if checkIn.IsZero() || checkOut.IsZero() {
		return &InvalidRequestError{Reason: "check-in and check-out dates are required"}
	}
	if !checkOut.After(checkIn) {
		return &InvalidRequestError{Reason: "check-out date must be after check-in date"}
	}
	return nil
}

func validateGuests(guests []Guest) error {
	if len(guests) == 0 {
		return &InvalidRequestError{Reason: "at least one guest is required"}
	}
	for _, g := range guests {
		if g.Name == "" {
			return &InvalidRequestError{Reason: "guest name is required"}
		}
	}
	return nil
}
