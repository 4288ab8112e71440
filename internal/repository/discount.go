package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gkstays/booking/internal/domain/discount"
)

const (
	findDiscountByCodeSQL = `SELECT code, discount_type, value, description,
		min_order_value, max_discount, has_max_discount,
		usage_limit, used_count, per_user_limit, has_per_user_limit,
		active, starts_at, ends_at
		FROM discounts WHERE UPPER(code) = UPPER($1)`

	countRedemptionsSQL = `SELECT COUNT(*) FROM orders
		WHERE guest_id = $1 AND UPPER(promo_code) = UPPER($2) AND deleted_at IS NULL
		AND ($3 = '' OR id::text <> $3)`

	// The WHERE clause makes the increment conditional so that concurrent
	// redemptions cannot push used_count past the global limit, and the
	// subquery re-checks the per-user limit against committed orders in the
	// same statement. The redeeming order's own row is excluded: it is
	// already inserted by the time the increment runs.
	consumeDiscountSQL = `UPDATE discounts SET used_count = used_count + 1
		WHERE UPPER(code) = UPPER($1)
		AND (usage_limit = 0 OR used_count < usage_limit)
		AND (SELECT COUNT(*) FROM orders
			WHERE guest_id = $2 AND UPPER(promo_code) = UPPER($1)
			AND deleted_at IS NULL AND id::text <> $3)
			< CASE WHEN has_per_user_limit AND per_user_limit > 0
				THEN per_user_limit ELSE 1 END`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// FindByCode looks up a discount by its promo code (case-insensitive).
// Returns discount.ErrNotFound when no such code exists.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*discount.Discount, error) {
	rows, err := r.pool.Query(ctx, findDiscountByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding discount by code %q: %w", code, err)
	}

	d, err := pgx.CollectExactlyOneRow(rows, scanDiscount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, fmt.Errorf("finding discount by code %q: %w", code, err)
	}
	return &d, nil
}

// CountOrdersByUserAndCode counts the user's live orders that redeemed the
// code, leaving out excludeOrderID when it is non-empty.
func (r *DiscountRepository) CountOrdersByUserAndCode(ctx context.Context, userID, code, excludeOrderID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, countRedemptionsSQL, userID, code, excludeOrderID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting redemptions of %q: %w", code, err)
	}
	return n, nil
}

// ConsumeUsage increments the usage counter for the code on behalf of the
// given user's order. It fails with discount.ErrUsageConflict when either
// the global or the per-user limit is already exhausted.
func (r *DiscountRepository) ConsumeUsage(ctx context.Context, code, userID, orderID string) error {
	return consumeDiscount(ctx, r.pool, code, userID, orderID)
}

// execer is the subset of pgx shared by pools and transactions, so usage
// consumption can join an order transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func consumeDiscount(ctx context.Context, q execer, code, userID, orderID string) error {
	tag, err := q.Exec(ctx, consumeDiscountSQL, code, userID, orderID)
	if err != nil {
		return fmt.Errorf("consuming usage of discount %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrUsageConflict
	}
	return nil
}

func scanDiscount(row pgx.CollectableRow) (discount.Discount, error) {
	var (
		d            discount.Discount
		discountType string
	)
	err := row.Scan(
		&d.Code, &discountType, &d.Value, &d.Description,
		&d.MinOrderValue, &d.MaxDiscount, &d.HasMaxDiscount,
		&d.UsageLimit, &d.UsedCount, &d.PerUserLimit, &d.HasPerUserLimit,
		&d.Active, &d.StartsAt, &d.EndsAt,
	)
	d.Type = discount.Type(discountType)
	return d, err
}
