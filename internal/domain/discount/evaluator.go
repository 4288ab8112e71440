package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Rejection reasons surfaced to callers. These are operationally meaningful
// to support staff, so the evaluator returns the specific reason instead of
// a generic failure.
const (
	ReasonNotFound       = "Invalid discount code"
	ReasonInactive       = "Discount code is not active"
	ReasonNotStarted     = "Discount code is not yet valid"
	ReasonExpired        = "Discount code has expired"
	ReasonBelowMinimum   = "Order amount does not meet the minimum for this discount code"
	ReasonUsageExhausted = "Discount code usage limit exceeded"
	ReasonAlreadyUsed    = "Discount code has already been used by this customer"
)

// Evaluation is the outcome of checking a promo code against an amount.
// A non-applying code is not an error: Applies is false and Reason carries
// the first failing check.
type Evaluation struct {
	Applies        bool
	Reason         string
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
	Rule           *Discount
}

// Evaluator decides whether a promo code currently applies to an amount for
// a customer, and what it is worth. A non-empty excludeOrderID exempts that
// order's own redemption from the per-user check, so re-evaluating an order
// under edit does not reject its own code.
type Evaluator interface {
	Evaluate(ctx context.Context, code string, amount decimal.Decimal, customerID, excludeOrderID string) (*Evaluation, error)
}

// RepoEvaluator implements Evaluator against a Repository. It is a pure
// read: usage counters are only consumed later, inside the transaction that
// finalizes the order.
type RepoEvaluator struct {
	repo Repository
	now  func() time.Time
}

// NewEvaluator creates a RepoEvaluator backed by the given Repository.
func NewEvaluator(repo Repository) *RepoEvaluator {
	return &RepoEvaluator{repo: repo, now: time.Now}
}

// Evaluate runs the rejection checks in a fixed order; the first failing
// check wins. The returned error is reserved for infrastructure failures.
func (e *RepoEvaluator) Evaluate(ctx context.Context, code string, amount decimal.Decimal, customerID, excludeOrderID string) (*Evaluation, error) {
	rule, err := e.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return rejected(ReasonNotFound, amount), nil
		}
		return nil, errors.Wrap(err, "lookup discount")
	}

	now := e.now()

	switch {
	case !rule.Active:
		return rejected(ReasonInactive, amount), nil
	case rule.StartsAt != nil && now.Before(*rule.StartsAt):
		return rejected(ReasonNotStarted, amount), nil
	case rule.EndsAt != nil && now.After(*rule.EndsAt):
		return rejected(ReasonExpired, amount), nil
	case rule.MinOrderValue != nil && amount.LessThan(*rule.MinOrderValue):
		return rejected(ReasonBelowMinimum, amount), nil
	case rule.UsageLimit > 0 && rule.UsedCount >= rule.UsageLimit:
		return rejected(ReasonUsageExhausted, amount), nil
	}

	used, err := e.repo.CountOrdersByUserAndCode(ctx, customerID, rule.Code, excludeOrderID)
	if err != nil {
		return nil, errors.Wrap(err, "count customer redemptions")
	}
	if used >= rule.perUserLimit() {
		return rejected(ReasonAlreadyUsed, amount), nil
	}

	discountAmount := Amount(rule.Detail(), amount)

	return &Evaluation{
		Applies:        true,
		DiscountAmount: discountAmount,
		FinalAmount:    amount.Sub(discountAmount),
		Rule:           rule,
	}, nil
}

// Amount computes the monetary worth of a discount against an amount. The
// result is capped at MaxDiscount when set and never exceeds the amount
// itself. Non-monetary types (free_shipping, buy_x_get_y) yield zero.
func Amount(d *Detail, amount decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}

	var v decimal.Decimal
	switch d.Type {
	case TypePercentage:
		v = amount.Mul(d.Value).Div(decimal.NewFromInt(100))
	case TypeFixed:
		v = d.Value
	default:
		return decimal.Zero
	}

	if d.MaxDiscount != nil && v.GreaterThan(*d.MaxDiscount) {
		v = *d.MaxDiscount
	}
	if v.GreaterThan(amount) {
		v = amount
	}
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}

func rejected(reason string, amount decimal.Decimal) *Evaluation {
	return &Evaluation{
		Applies:     false,
		Reason:      reason,
		FinalAmount: amount,
	}
}
