package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFormatInvoiceNo(t *testing.T) {
	assert.Equal(t, "GKS-20250115001", FormatInvoiceNo(day(2025, time.January, 15), 1))
	assert.Equal(t, "GKS-20250115042", FormatInvoiceNo(day(2025, time.January, 15), 42))
	// Sequence grows past three digits without truncation.
	assert.Equal(t, "GKS-202501151000", FormatInvoiceNo(day(2025, time.January, 15), 1000))
}

func TestNextInvoiceNo(t *testing.T) {
	jan15 := day(2025, time.January, 15)

	tests := []struct {
		name string
		last string
		want string
	}{
		{name: "no prior invoice starts at 001", last: "", want: "GKS-20250115001"},
		{name: "same-day invoice increments", last: "GKS-20250115007", want: "GKS-20250115008"},
		{name: "other-day invoice restarts", last: "GKS-20250114099", want: "GKS-20250115001"},
		{name: "carries past 099", last: "GKS-20250115099", want: "GKS-20250115100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextInvoiceNo(tt.last, jan15)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextInvoiceNo_Malformed(t *testing.T) {
	_, err := NextInvoiceNo("GKS-20250115ABC", day(2025, time.January, 15))
	require.Error(t, err)
}

// counterAllocator serializes per-day sequence assignment behind a mutex,
// mirroring the per-day counter row the repository uses.
type counterAllocator struct {
	mu   sync.Mutex
	seqs map[string]int
}

func (a *counterAllocator) AllocateInvoiceNo(_ context.Context, d time.Time) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.seqs == nil {
		a.seqs = make(map[string]int)
	}
	key := d.Format("20060102")
	a.seqs[key]++
	return FormatInvoiceNo(d, a.seqs[key]), nil
}

var _ InvoiceAllocator = (*counterAllocator)(nil)

// Uniqueness: N concurrent allocations on one date yield N distinct numbers.
func TestInvoiceAllocator_ConcurrentUniqueness(t *testing.T) {
	const n = 200

	alloc := &counterAllocator{}
	d := day(2025, time.January, 15)

	results := make([]string, n)
	g, ctx := errgroup.WithContext(context.Background())
	for i := range n {
		g.Go(func() error {
			no, err := alloc.AllocateInvoiceNo(ctx, d)
			results[i] = no
			return err
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[string]bool, n)
	for _, no := range results {
		assert.False(t, seen[no], "duplicate invoice number %s", no)
		seen[no] = true
	}
	assert.Len(t, seen, n)
}
