package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gkstays/booking/internal/domain/order"
)

const (
	// Each day has a counter row; the upsert serializes concurrent
	// allocations on the row lock so a sequence number is never reused.
	allocateInvoiceSQL = `INSERT INTO invoice_counters (day, last_seq) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET last_seq = invoice_counters.last_seq + 1
		RETURNING last_seq`

	orderColumns = `id, invoice_no, guest_id, operator_id, check_in, check_out, guests,
		promo_code, status, notes, subtotal, tax_amount, discount_amount, total,
		commission_amount, commission_percent, discount_details, taxes, commission_rates,
		created_at, updated_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE id = $1 AND deleted_at IS NULL`

	listOrdersForUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE guest_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`

	updateOrderSQL = `UPDATE orders SET check_in = $2, check_out = $3, guests = $4,
		promo_code = $5, notes = $6, subtotal = $7, tax_amount = $8, discount_amount = $9,
		total = $10, commission_amount = $11, commission_percent = $12,
		discount_details = $13, taxes = $14, commission_rates = $15, updated_at = $16
		WHERE id = $1 AND deleted_at IS NULL`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, notes = $3, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`

	softDeleteOrderSQL = `UPDATE orders SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`

	restoreOrderSQL = `UPDATE orders SET deleted_at = NULL, updated_at = now()
		WHERE id = $1 AND deleted_at IS NOT NULL`

	bulkUpdateStatusSQL = `UPDATE orders SET status = $2, updated_at = now()
		WHERE id = ANY($1) AND deleted_at IS NULL`

	lineColumns = `id, order_id, product_id, variant_id, product_snapshot, variant_snapshot,
		currency, price_per_night, rooms, nights, capacity, extra_bed, food_options,
		special_requests, cancellation_policy, discount_details, subtotal, taxes,
		tax_amount, discount_amount, total, commission_percent, commission_amount,
		created_at, updated_at`

	insertLineSQL = `INSERT INTO order_lines (` + lineColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`

	listLinesSQL = `SELECT ` + lineColumns + ` FROM order_lines
		WHERE order_id = ANY($1) ORDER BY created_at, id`

	deleteLinesSQL = `DELETE FROM order_lines WHERE order_id = $1`

	countOrdersByStatusSQL = `SELECT status, COUNT(*) FROM orders
		WHERE deleted_at IS NULL GROUP BY status`

	revenueSQL = `SELECT COALESCE(SUM(total), 0) FROM orders
		WHERE deleted_at IS NULL AND status IN ('confirmed', 'completed')`
)

var (
	_ order.Repository       = (*OrderRepository)(nil)
	_ order.InvoiceAllocator = (*OrderRepository)(nil)
)

// OrderRepository implements order.Repository backed by PostgreSQL. Order
// aggregates span two tables (orders, order_lines) plus the invoice counter
// and discount usage, so every write runs in a transaction.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order and its lines, allocating the invoice number
// and consuming one promo usage in the same transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now

	o.InvoiceNo, err = allocateInvoice(ctx, tx, now)
	if err != nil {
		return err
	}

	guests, details, taxes, rates, err := marshalOrderJSON(o)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, createOrderSQL,
		o.ID, o.InvoiceNo, o.GuestID, o.OperatorID, o.CheckIn, o.CheckOut, guests,
		o.PromoCode, string(o.Status), o.Notes, o.Subtotal, o.TaxAmount, o.DiscountAmount,
		o.Total, o.CommissionAmount, o.CommissionPercent, details, taxes, rates,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	if err := insertLines(ctx, tx, o, now); err != nil {
		return err
	}

	if o.PromoCode != "" {
		if err := consumeDiscount(ctx, tx, o.PromoCode, o.GuestID, o.ID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Get loads a non-deleted order together with its lines.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &order.NotFoundError{Entity: "order", ID: id}
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	byOrder, err := r.loadLines(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	o.Lines = byOrder[id]
	return &o, nil
}

// ListForUser returns all non-deleted orders where the user is the guest,
// newest first, with their lines attached.
func (r *OrderRepository) ListForUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersForUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}

	out, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, len(out))
	for i := range out {
		ids[i] = out[i].ID
	}
	byOrder, err := r.loadLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines = byOrder[out[i].ID]
	}
	return out, nil
}

// Update rewrites the order row. When replaceLines is set the stored line
// set is replaced with o.Lines; when consumePromo is set one usage of the
// order's promo code is consumed. All in one transaction.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order, replaceLines, consumePromo bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	o.UpdatedAt = time.Now().UTC()

	guests, details, taxes, rates, err := marshalOrderJSON(o)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, updateOrderSQL,
		o.ID, o.CheckIn, o.CheckOut, guests, o.PromoCode, o.Notes,
		o.Subtotal, o.TaxAmount, o.DiscountAmount, o.Total,
		o.CommissionAmount, o.CommissionPercent, details, taxes, rates, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return &order.NotFoundError{Entity: "order", ID: o.ID}
	}

	if replaceLines {
		if _, err := tx.Exec(ctx, deleteLinesSQL, o.ID); err != nil {
			return fmt.Errorf("deleting lines of order %q: %w", o.ID, err)
		}
		if err := insertLines(ctx, tx, o, o.UpdatedAt); err != nil {
			return err
		}
	}

	if consumePromo && o.PromoCode != "" {
		if err := consumeDiscount(ctx, tx, o.PromoCode, o.GuestID, o.ID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// UpdateStatus sets the status and notes of a single order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status, notes string) error {
	return r.execOne(ctx, updateOrderStatusSQL, "updating status of order", id, string(status), notes)
}

// SoftDelete tombstones the order without touching its rows.
func (r *OrderRepository) SoftDelete(ctx context.Context, id string) error {
	return r.execOne(ctx, softDeleteOrderSQL, "deleting order", id)
}

// Restore clears the tombstone of a soft-deleted order.
func (r *OrderRepository) Restore(ctx context.Context, id string) error {
	return r.execOne(ctx, restoreOrderSQL, "restoring order", id)
}

// BulkUpdateStatus stamps the status on every listed order that is not
// deleted. Returns how many orders were touched.
func (r *OrderRepository) BulkUpdateStatus(ctx context.Context, ids []string, status order.Status) (int, error) {
	tag, err := r.pool.Exec(ctx, bulkUpdateStatusSQL, ids, string(status))
	if err != nil {
		return 0, fmt.Errorf("bulk updating order status: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Statistics reports live order counts per status and revenue over the
// confirmed and completed orders.
func (r *OrderRepository) Statistics(ctx context.Context) (*order.Statistics, error) {
	stats := &order.Statistics{CountByStatus: make(map[order.Status]int)}

	rows, err := r.pool.Query(ctx, countOrdersByStatusSQL)
	if err != nil {
		return nil, fmt.Errorf("counting orders by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("counting orders by status: %w", err)
		}
		stats.CountByStatus[order.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("counting orders by status: %w", err)
	}

	if err := r.pool.QueryRow(ctx, revenueSQL).Scan(&stats.Revenue); err != nil {
		return nil, fmt.Errorf("summing revenue: %w", err)
	}
	return stats, nil
}

// AllocateInvoiceNo issues the next invoice number for the given day.
func (r *OrderRepository) AllocateInvoiceNo(ctx context.Context, day time.Time) (string, error) {
	return allocateInvoice(ctx, r.pool, day)
}

// execOne runs a statement that must touch exactly one order row.
func (r *OrderRepository) execOne(ctx context.Context, sql, action, id string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("%s %q: %w", action, id, err)
	}
	if tag.RowsAffected() == 0 {
		return &order.NotFoundError{Entity: "order", ID: id}
	}
	return nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func allocateInvoice(ctx context.Context, q rowQuerier, day time.Time) (string, error) {
	var seq int
	if err := q.QueryRow(ctx, allocateInvoiceSQL, day).Scan(&seq); err != nil {
		return "", fmt.Errorf("allocating invoice sequence: %w", err)
	}
	return order.FormatInvoiceNo(day, seq), nil
}

func insertLines(ctx context.Context, tx pgx.Tx, o *order.Order, now time.Time) error {
	for i := range o.Lines {
		l := &o.Lines[i]
		l.OrderID = o.ID
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		l.UpdatedAt = now
		if err := insertLine(ctx, tx, l); err != nil {
			return err
		}
	}
	return nil
}

func insertLine(ctx context.Context, tx pgx.Tx, l *order.Line) error {
	productSnap, err := marshalPtr(l.Product)
	if err != nil {
		return fmt.Errorf("marshaling product snapshot: %w", err)
	}
	variantSnap, err := marshalPtr(l.Variant)
	if err != nil {
		return fmt.Errorf("marshaling variant snapshot: %w", err)
	}
	extraBed, err := marshalPtr(l.ExtraBed)
	if err != nil {
		return fmt.Errorf("marshaling extra bed: %w", err)
	}
	lineDiscount, err := marshalPtr(l.Discount)
	if err != nil {
		return fmt.Errorf("marshaling line discount: %w", err)
	}
	foodOptions, err := json.Marshal(l.FoodOptions)
	if err != nil {
		return fmt.Errorf("marshaling food options: %w", err)
	}
	taxes, err := json.Marshal(l.Taxes)
	if err != nil {
		return fmt.Errorf("marshaling line taxes: %w", err)
	}

	_, err = tx.Exec(ctx, insertLineSQL,
		l.ID, l.OrderID, l.ProductID, l.VariantID, productSnap, variantSnap,
		l.Currency, l.PricePerNight, l.Rooms, l.Nights, l.Capacity,
		extraBed, foodOptions, l.SpecialRequests, l.CancellationPolicy, lineDiscount,
		l.Subtotal, taxes, l.TaxAmount, l.DiscountAmount, l.Total,
		l.CommissionPercent, l.CommissionAmount, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting line %q: %w", l.ID, err)
	}
	return nil
}

func (r *OrderRepository) loadLines(ctx context.Context, orderIDs []string) (map[string][]order.Line, error) {
	rows, err := r.pool.Query(ctx, listLinesSQL, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("loading order lines: %w", err)
	}

	lines, err := pgx.CollectRows(rows, scanLine)
	if err != nil {
		return nil, fmt.Errorf("loading order lines: %w", err)
	}

	byOrder := make(map[string][]order.Line, len(orderIDs))
	for _, l := range lines {
		byOrder[l.OrderID] = append(byOrder[l.OrderID], l)
	}
	return byOrder, nil
}

func marshalOrderJSON(o *order.Order) (guests, details, taxes, rates []byte, err error) {
	if guests, err = json.Marshal(o.Guests); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshaling guests: %w", err)
	}
	if details, err = json.Marshal(o.DiscountDetails); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshaling discount details: %w", err)
	}
	if taxes, err = json.Marshal(o.Taxes); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshaling taxes: %w", err)
	}
	if rates, err = json.Marshal(o.CommissionRates); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshaling commission rates: %w", err)
	}
	return guests, details, taxes, rates, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string

		guests, details, taxes, rates []byte
	)
	err := row.Scan(
		&o.ID, &o.InvoiceNo, &o.GuestID, &o.OperatorID, &o.CheckIn, &o.CheckOut, &guests,
		&o.PromoCode, &status, &o.Notes, &o.Subtotal, &o.TaxAmount, &o.DiscountAmount,
		&o.Total, &o.CommissionAmount, &o.CommissionPercent, &details, &taxes, &rates,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	o.Status = order.Status(status)

	if err := unmarshalJSON(guests, &o.Guests); err != nil {
		return o, fmt.Errorf("unmarshaling guests: %w", err)
	}
	if err := unmarshalJSON(details, &o.DiscountDetails); err != nil {
		return o, fmt.Errorf("unmarshaling discount details: %w", err)
	}
	if err := unmarshalJSON(taxes, &o.Taxes); err != nil {
		return o, fmt.Errorf("unmarshaling taxes: %w", err)
	}
	if err := unmarshalJSON(rates, &o.CommissionRates); err != nil {
		return o, fmt.Errorf("unmarshaling commission rates: %w", err)
	}
	return o, nil
}

func scanLine(row pgx.CollectableRow) (order.Line, error) {
	var (
		l order.Line

		productSnap, variantSnap, extraBed, foodOptions, lineDiscount, taxes []byte
	)
	err := row.Scan(
		&l.ID, &l.OrderID, &l.ProductID, &l.VariantID, &productSnap, &variantSnap,
		&l.Currency, &l.PricePerNight, &l.Rooms, &l.Nights, &l.Capacity,
		&extraBed, &foodOptions, &l.SpecialRequests, &l.CancellationPolicy, &lineDiscount,
		&l.Subtotal, &taxes, &l.TaxAmount, &l.DiscountAmount, &l.Total,
		&l.CommissionPercent, &l.CommissionAmount, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return l, err
	}

	if err := unmarshalPtr(productSnap, &l.Product); err != nil {
		return l, fmt.Errorf("unmarshaling product snapshot: %w", err)
	}
	if err := unmarshalPtr(variantSnap, &l.Variant); err != nil {
		return l, fmt.Errorf("unmarshaling variant snapshot: %w", err)
	}
	if err := unmarshalPtr(extraBed, &l.ExtraBed); err != nil {
		return l, fmt.Errorf("unmarshaling extra bed: %w", err)
	}
	if err := unmarshalPtr(lineDiscount, &l.Discount); err != nil {
		return l, fmt.Errorf("unmarshaling line discount: %w", err)
	}
	if err := unmarshalJSON(foodOptions, &l.FoodOptions); err != nil {
		return l, fmt.Errorf("unmarshaling food options: %w", err)
	}
	if err := unmarshalJSON(taxes, &l.Taxes); err != nil {
		return l, fmt.Errorf("unmarshaling line taxes: %w", err)
	}
	return l, nil
}

// marshalPtr serializes an optional struct, mapping nil to a SQL NULL.
func marshalPtr[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalPtr[T any](data []byte, dst **T) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	*dst = v
	return nil
}

func unmarshalJSON(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
