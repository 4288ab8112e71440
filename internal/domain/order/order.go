package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gkstays/booking/internal/domain/discount"
)

// SnapshotVersion tags embedded catalog snapshots so their shape can evolve
// without breaking historical orders.
const SnapshotVersion = 1

// Order is one booking transaction for a guest, placed by an operator.
// All financial fields are derived from the line set by Aggregate and are
// never hand-set.
type Order struct {
	ID        string
	InvoiceNo string

	GuestID    string
	OperatorID string

	CheckIn  time.Time
	CheckOut time.Time
	Guests   []Guest

	Lines     []Line
	PromoCode string

	Status Status
	Notes  string

	Subtotal          decimal.Decimal
	TaxAmount         decimal.Decimal
	DiscountAmount    decimal.Decimal
	Total             decimal.Decimal
	CommissionAmount  decimal.Decimal
	CommissionPercent decimal.Decimal
	DiscountDetails   []discount.Detail
	Taxes             []TaxLine
	CommissionRates   []CommissionRate

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Guest is one occupant on the booking. Only the name is required.
type Guest struct {
	Name    string `json:"name"`
	Age     *int   `json:"age,omitempty"`
	Gender  string `json:"gender,omitempty"`
	IDProof string `json:"id_proof,omitempty"`
}

// Line is one priced booking entry within an order, for one product/variant
// combination or a free-form item. The snapshots are captured when the line
// is built and never re-read from the live catalog.
type Line struct {
	ID      string
	OrderID string

	// ProductID/VariantID may be nil: a line can outlive its catalog records.
	ProductID *string
	VariantID *string
	Product   *ProductSnapshot
	Variant   *VariantSnapshot

	Currency      string
	PricePerNight decimal.Decimal
	Rooms         int
	Nights        int
	Capacity      int

	ExtraBed           *ExtraBed
	FoodOptions        []FoodOption
	SpecialRequests    string
	CancellationPolicy string
	Discount           *discount.Detail

	Subtotal          decimal.Decimal
	Taxes             []TaxLine
	TaxAmount         decimal.Decimal
	DiscountAmount    decimal.Decimal
	Total             decimal.Decimal
	CommissionPercent *decimal.Decimal
	CommissionAmount  decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExtraBed holds the optional extra-bed terms of a line.
type ExtraBed struct {
	Available     bool            `json:"available"`
	PricePerNight decimal.Decimal `json:"price_per_night"`
}

// FoodOption is a meal plan added to a line, billed per room-night.
type FoodOption struct {
	Plan            string          `json:"plan"`
	AdditionalPrice decimal.Decimal `json:"additional_price"`
}

// TaxLine is one tax entry on a line or order.
type TaxLine struct {
	Type       string          `json:"type"`
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
}

// CommissionRate is a reporting summary entry: the commission observed for
// one (product, variant) pair across the order's lines.
type CommissionRate struct {
	ProductName string          `json:"product_name"`
	VariantName string          `json:"variant_name"`
	Percentage  decimal.Decimal `json:"percentage"`
	Amount      decimal.Decimal `json:"amount"`
}

// ProductSnapshot is the immutable copy of catalog product data embedded in
// a line at order time.
type ProductSnapshot struct {
	Version            int             `json:"version"`
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	CommissionPercent  decimal.Decimal `json:"commission_percent"`
	CancellationPolicy string          `json:"cancellation_policy"`
	Capacity           int             `json:"capacity"`
	PricePerNight      decimal.Decimal `json:"price_per_night"`
	Currency           string          `json:"currency"`
}

// VariantSnapshot is the immutable copy of catalog variant data embedded in
// a line at order time.
type VariantSnapshot struct {
	Version       int             `json:"version"`
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Capacity      int             `json:"capacity"`
	PricePerNight decimal.Decimal `json:"price_per_night"`
	ExtraBed      bool            `json:"extra_bed"`
	ExtraBedPrice decimal.Decimal `json:"extra_bed_price"`
}

// Statistics summarizes the order book: counts per status plus revenue
// (total over confirmed and completed orders).
type Statistics struct {
	CountByStatus map[Status]int
	Revenue       decimal.Decimal
}

// NotFoundError indicates a referenced entity does not resolve.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// InvalidRequestError carries the specific reason an order mutation was
// rejected before any write happened.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return e.Reason
}

// Repository defines transactional persistence for order aggregates.
// Create and Update write the order, its lines, the invoice allocation and
// the promo usage increment as a single atomic unit.
type Repository interface {
	// Create persists a new order with its lines, allocating the invoice
	// number and consuming one promo usage (when the order carries a code)
	// in the same transaction.
	Create(ctx context.Context, o *Order) error
	// Get loads a non-deleted order with its lines.
	Get(ctx context.Context, id string) (*Order, error)
	// ListForUser returns all non-deleted orders where the user is the guest.
	ListForUser(ctx context.Context, userID string) ([]Order, error)
	// Update persists order fields; when replaceLines is set the stored line
	// set is deleted and rewritten from o.Lines, and when consumePromo is set
	// one usage of o.PromoCode is consumed, all in one transaction.
	Update(ctx context.Context, o *Order, replaceLines, consumePromo bool) error
	// UpdateStatus sets the status (and notes) of a single order.
	UpdateStatus(ctx context.Context, id string, status Status, notes string) error
	// SoftDelete tombstones the order; Restore clears the tombstone.
	SoftDelete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
	// BulkUpdateStatus sets the status on many orders directly, without
	// state machine involvement. Returns the number of affected orders.
	BulkUpdateStatus(ctx context.Context, ids []string, status Status) (int, error)
	Statistics(ctx context.Context) (*Statistics, error)
}
