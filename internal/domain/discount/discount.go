package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported promo-code discount strategies.
type Type string

const (
	// TypeFixed subtracts a fixed monetary amount.
	TypeFixed Type = "fixed"
	// TypePercentage subtracts a percentage of the candidate amount.
	TypePercentage Type = "percentage"
	// TypeFreeShipping waives delivery/service charges; it carries no
	// monetary value for order pricing.
	TypeFreeShipping Type = "free_shipping"
	// TypeBuyXGetY grants promotional units; it carries no monetary value
	// for order pricing.
	TypeBuyXGetY Type = "buy_x_get_y"
)

// Sentinel errors for discount storage.
var (
	// ErrNotFound is returned when no discount exists for a promo code.
	ErrNotFound = errors.New("discount not found")
	// ErrUsageConflict is returned when a usage increment loses the race
	// against concurrent redemptions exhausting the code. Callers may retry
	// the whole operation; the evaluation will then reject the code.
	ErrUsageConflict = errors.New("discount usage limit reached concurrently")
)

// Discount is a promo-code campaign as read by the evaluator. Campaign
// management (creation, editing) lives outside this module.
type Discount struct {
	Code        string
	Type        Type
	Value       decimal.Decimal
	Description string

	// MinOrderValue gates applicability: nil means no minimum.
	MinOrderValue *decimal.Decimal
	// MaxDiscount caps the computed amount when HasMaxDiscount is set.
	MaxDiscount    decimal.Decimal
	HasMaxDiscount bool

	// UsageLimit caps global redemptions; zero means unlimited.
	UsageLimit int
	UsedCount  int
	// PerUserLimit caps redemptions per customer when HasPerUserLimit is
	// set; otherwise one use per customer is allowed.
	PerUserLimit    int
	HasPerUserLimit bool

	Active   bool
	StartsAt *time.Time
	EndsAt   *time.Time
}

// perUserLimit returns the effective per-customer redemption cap.
func (d *Discount) perUserLimit() int {
	if d.HasPerUserLimit && d.PerUserLimit > 0 {
		return d.PerUserLimit
	}
	return 1
}

// Detail is the portion of a discount copied onto order lines, so that a
// priced line stays self-describing even if the campaign is later edited.
type Detail struct {
	Code        string           `json:"code"`
	Type        Type             `json:"type"`
	Value       decimal.Decimal  `json:"value"`
	Description string           `json:"description,omitempty"`
	MinAmount   *decimal.Decimal `json:"min_amount,omitempty"`
	MaxDiscount *decimal.Decimal `json:"max_discount,omitempty"`
}

// Detail returns the line-embeddable copy of the discount.
func (d *Discount) Detail() *Detail {
	det := &Detail{
		Code:        d.Code,
		Type:        d.Type,
		Value:       d.Value,
		Description: d.Description,
		MinAmount:   d.MinOrderValue,
	}
	if d.HasMaxDiscount {
		md := d.MaxDiscount
		det.MaxDiscount = &md
	}
	return det
}

// Repository provides discount reads and the transactional usage increment.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Discount, error)
	// CountOrdersByUserAndCode returns how many non-deleted orders of the
	// given user already redeemed the code. A non-empty excludeOrderID is
	// left out of the count, so an order being edited does not count its
	// own redemption against the limit.
	CountOrdersByUserAndCode(ctx context.Context, userID, code, excludeOrderID string) (int, error)
	// ConsumeUsage atomically increments the global usage counter on behalf
	// of orderID placed by userID. It fails with ErrUsageConflict when the
	// global limit is already reached or when the user's other orders have
	// exhausted the per-user limit.
	ConsumeUsage(ctx context.Context, code, userID, orderID string) error
}
