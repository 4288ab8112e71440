package order

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// InvoicePrefix starts every invoice number issued by the platform.
const InvoicePrefix = "GKS-"

// InvoiceAllocator produces a unique, date-scoped, strictly increasing
// invoice number. Allocation must be serialized per day: two concurrent
// allocations on the same date must never yield the same number.
type InvoiceAllocator interface {
	AllocateInvoiceNo(ctx context.Context, day time.Time) (string, error)
}

// InvoiceDayPrefix returns the prefix shared by all invoice numbers of a
// day, e.g. "GKS-20250115".
func InvoiceDayPrefix(day time.Time) string {
	return InvoicePrefix + day.Format("20060102")
}

// FormatInvoiceNo renders an invoice number for the given day and sequence,
// e.g. FormatInvoiceNo(2025-01-15, 7) -> "GKS-20250115007". The sequence is
// zero-padded to three digits and grows past 999 without truncation.
func FormatInvoiceNo(day time.Time, seq int) string {
	return fmt.Sprintf("%s%03d", InvoiceDayPrefix(day), seq)
}

// NextInvoiceNo computes the successor of the last issued invoice number
// for the given day. A last number from another day (or none at all)
// restarts the sequence at 001.
func NextInvoiceNo(last string, day time.Time) (string, error) {
	prefix := InvoiceDayPrefix(day)
	if last == "" || !strings.HasPrefix(last, prefix) {
		return FormatInvoiceNo(day, 1), nil
	}
	seq, err := strconv.Atoi(last[len(prefix):])
	if err != nil {
		return "", fmt.Errorf("malformed invoice number %q: %w", last, err)
	}
	return FormatInvoiceNo(day, seq+1), nil
}
