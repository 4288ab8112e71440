package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gkstays/booking/internal/domain/catalog"
	"github.com/gkstays/booking/internal/domain/discount"
	"github.com/gkstays/booking/internal/domain/identity"
)

// --- Mock implementations ---

type mockCatalog struct {
	products map[string]*catalog.Product
	variants map[string]*catalog.Variant
}

func (m *mockCatalog) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return p, nil
}

func (m *mockCatalog) GetVariant(_ context.Context, id, productID string) (*catalog.Variant, error) {
	v, ok := m.variants[id]
	if !ok || v.ProductID != productID {
		return nil, catalog.ErrVariantNotFound
	}
	return v, nil
}

type mockUsers struct {
	users map[string]*identity.User
}

func (m *mockUsers) GetUser(_ context.Context, id string) (*identity.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return u, nil
}

type mockOrders struct {
	created *Order
	updated *Order

	replaceLines bool
	consumePromo bool

	byID map[string]*Order

	statusID    string
	status      Status
	statusNotes string

	deletedID  string
	restoredID string

	bulkIDs    []string
	bulkStatus Status
}

func (m *mockOrders) Create(_ context.Context, o *Order) error {
	o.InvoiceNo = "GKS-20250115001"
	m.created = o
	return nil
}

func (m *mockOrders) Get(_ context.Context, id string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, &NotFoundError{Entity: "order", ID: id}
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrders) ListForUser(_ context.Context, _ string) ([]Order, error) {
	return nil, nil
}

func (m *mockOrders) Update(_ context.Context, o *Order, replaceLines, consumePromo bool) error {
	m.updated = o
	m.replaceLines = replaceLines
	m.consumePromo = consumePromo
	return nil
}

func (m *mockOrders) UpdateStatus(_ context.Context, id string, status Status, notes string) error {
	m.statusID = id
	m.status = status
	m.statusNotes = notes
	return nil
}

func (m *mockOrders) SoftDelete(_ context.Context, id string) error {
	m.deletedID = id
	return nil
}

func (m *mockOrders) Restore(_ context.Context, id string) error {
	m.restoredID = id
	return nil
}

func (m *mockOrders) BulkUpdateStatus(_ context.Context, ids []string, status Status) (int, error) {
	m.bulkIDs = ids
	m.bulkStatus = status
	return len(ids), nil
}

func (m *mockOrders) Statistics(_ context.Context) (*Statistics, error) {
	return &Statistics{CountByStatus: map[Status]int{StatusPending: 2}}, nil
}

// --- Helpers ---

func testService(orders *mockOrders, eval discount.Evaluator) *Service {
	cat := &mockCatalog{
		products: map[string]*catalog.Product{
			"villa": {
				ID:                 "villa",
				Name:               "Hillside Villa",
				CommissionPercent:  dec("10"),
				CancellationPolicy: "free until 48h before check-in",
				Capacity:           2,
				PricePerNight:      dec("2000"),
				Currency:           "INR",
			},
		},
		variants: map[string]*catalog.Variant{
			"deluxe": {
				ID:            "deluxe",
				ProductID:     "villa",
				Name:          "Deluxe",
				Capacity:      3,
				PricePerNight: dec("3000"),
				ExtraBed:      true,
				ExtraBedPrice: dec("500"),
			},
		},
	}
	users := &mockUsers{users: map[string]*identity.User{
		"guest-1": {ID: "guest-1", Name: "Asha"},
	}}
	if eval == nil {
		eval = discount.NewEvaluator(&staticDiscountRepo{})
	}
	return NewService(cat, users, eval, orders, DefaultPricingConfig())
}

// staticDiscountRepo backs a real evaluator in service tests.
type staticDiscountRepo struct {
	rule *discount.Discount
	used int

	countCalls    int
	lastExcludeID string
}

func (r *staticDiscountRepo) FindByCode(_ context.Context, _ string) (*discount.Discount, error) {
	if r.rule == nil {
		return nil, discount.ErrNotFound
	}
	return r.rule, nil
}

func (r *staticDiscountRepo) CountOrdersByUserAndCode(_ context.Context, _, _, excludeOrderID string) (int, error) {
	r.countCalls++
	r.lastExcludeID = excludeOrderID
	return r.used, nil
}

func (r *staticDiscountRepo) ConsumeUsage(_ context.Context, _, _, _ string) error {
	return nil
}

func validCreateInput() CreateInput {
	return CreateInput{
		GuestID:  "guest-1",
		CheckIn:  time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2025, 1, 17, 11, 0, 0, 0, time.UTC),
		Guests:   []Guest{{Name: "Asha"}},
		Lines: []LineRequest{{
			ProductID: "villa",
			Rooms:     1,
			Nights:    2,
		}},
	}
}

// --- Tests ---

func TestCreate_HappyPath(t *testing.T) {
	orders := &mockOrders{}
	svc := testService(orders, nil)

	o, err := svc.Create(context.Background(), validCreateInput(), "op-1")

	require.NoError(t, err)
	require.NotNil(t, orders.created)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "GKS-20250115001", o.InvoiceNo)
	assert.Equal(t, "op-1", o.OperatorID)

	require.Len(t, o.Lines, 1)
	line := o.Lines[0]
	require.NotNil(t, line.Product)
	assert.Equal(t, "Hillside Villa", line.Product.Name)
	assert.Equal(t, SnapshotVersion, line.Product.Version)
	// Catalog defaults filled in.
	assert.Equal(t, "INR", line.Currency)
	assert.True(t, dec("2000").Equal(line.PricePerNight))

	// 2000 * 2 nights = 4000, GST 720, commission 10% of 4720.
	assert.True(t, dec("4000").Equal(o.Subtotal))
	assert.True(t, dec("720").Equal(o.TaxAmount))
	assert.True(t, dec("4720").Equal(o.Total))
	assert.True(t, dec("472").Equal(o.CommissionAmount))
}

func TestCreate_VariantOverridesPriceAndCapacity(t *testing.T) {
	orders := &mockOrders{}
	svc := testService(orders, nil)

	in := validCreateInput()
	in.Lines[0].VariantID = "deluxe"

	o, err := svc.Create(context.Background(), in, "op-1")

	require.NoError(t, err)
	line := o.Lines[0]
	require.NotNil(t, line.Variant)
	assert.Equal(t, "Deluxe", line.Variant.Name)
	assert.True(t, dec("3000").Equal(line.PricePerNight))
	assert.Equal(t, 3, line.Capacity)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*CreateInput)
		wantReason string
	}{
		{
			name:       "missing dates",
			mutate:     func(in *CreateInput) { in.CheckIn = time.Time{} },
			wantReason: "check-in and check-out dates are required",
		},
		{
			name:       "check-out not after check-in",
			mutate:     func(in *CreateInput) { in.CheckOut = in.CheckIn },
			wantReason: "check-out date must be after check-in date",
		},
		{
			name:       "no guests",
			mutate:     func(in *CreateInput) { in.Guests = nil },
			wantReason: "at least one guest is required",
		},
		{
			name:       "guest without name",
			mutate:     func(in *CreateInput) { in.Guests = []Guest{{}} },
			wantReason: "guest name is required",
		},
		{
			name:       "no lines",
			mutate:     func(in *CreateInput) { in.Lines = nil },
			wantReason: "at least one order line is required",
		},
		{
			name:       "zero rooms",
			mutate:     func(in *CreateInput) { in.Lines[0].Rooms = 0 },
			wantReason: "number of rooms must be greater than zero",
		},
		{
			name:       "zero nights",
			mutate:     func(in *CreateInput) { in.Lines[0].Nights = 0 },
			wantReason: "number of nights must be greater than zero",
		},
		{
			name: "free-form line without price",
			mutate: func(in *CreateInput) {
				in.Lines[0].ProductID = ""
			},
			wantReason: "price per night must be greater than zero",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &mockOrders{}
			svc := testService(orders, nil)

			in := validCreateInput()
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), in, "op-1")

			var reqErr *InvalidRequestError
			require.ErrorAs(t, err, &reqErr)
			assert.Equal(t, tt.wantReason, reqErr.Reason)
			assert.Nil(t, orders.created, "no write may happen on validation failure")
		})
	}
}

func TestCreate_GuestNotFound(t *testing.T) {
	svc := testService(&mockOrders{}, nil)

	in := validCreateInput()
	in.GuestID = "nobody"

	_, err := svc.Create(context.Background(), in, "op-1")

	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "user", nfErr.Entity)
}

func TestCreate_ProductNotFound(t *testing.T) {
	svc := testService(&mockOrders{}, nil)

	in := validCreateInput()
	in.Lines[0].ProductID = "ghost"

	_, err := svc.Create(context.Background(), in, "op-1")

	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "product", nfErr.Entity)
	assert.Equal(t, "ghost", nfErr.ID)
}

func TestCreate_VariantNotFound(t *testing.T) {
	svc := testService(&mockOrders{}, nil)

	in := validCreateInput()
	in.Lines[0].VariantID = "ghost"

	_, err := svc.Create(context.Background(), in, "op-1")

	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "variant", nfErr.Entity)
}

func TestCreate_PromoApplied(t *testing.T) {
	orders := &mockOrders{}
	repo := &staticDiscountRepo{rule: &discount.Discount{
		Code:           "SAVE10",
		Type:           discount.TypePercentage,
		Value:          dec("10"),
		Active:         true,
		MaxDiscount:    dec("300"),
		HasMaxDiscount: true,
	}}
	svc := testService(orders, discount.NewEvaluator(repo))

	in := validCreateInput()
	in.PromoCode = "SAVE10"

	o, err := svc.Create(context.Background(), in, "op-1")

	require.NoError(t, err)
	// 10% of 4000 = 400, capped at 300.
	assert.True(t, dec("300").Equal(o.DiscountAmount), "got %s", o.DiscountAmount)
	assert.True(t, dec("4420").Equal(o.Total), "got %s", o.Total)
	require.Len(t, o.DiscountDetails, 1)
	assert.Equal(t, "SAVE10", o.DiscountDetails[0].Code)
	assert.Equal(t, "SAVE10", o.PromoCode)
}

func TestCreate_PromoRejectedRejectsWholeOrder(t *testing.T) {
	orders := &mockOrders{}
	repo := &staticDiscountRepo{rule: &discount.Discount{
		Code:       "LIMITED",
		Type:       discount.TypeFixed,
		Value:      dec("100"),
		Active:     true,
		UsageLimit: 5,
		UsedCount:  5,
	}}
	svc := testService(orders, discount.NewEvaluator(repo))

	in := validCreateInput()
	in.PromoCode = "LIMITED"

	_, err := svc.Create(context.Background(), in, "op-1")

	var reqErr *InvalidRequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, discount.ReasonUsageExhausted, reqErr.Reason)
	assert.Nil(t, orders.created)
}

func TestUpdate_RejectedOnTerminalStatus(t *testing.T) {
	for _, status := range []Status{StatusCancelled, StatusCompleted} {
		orders := &mockOrders{byID: map[string]*Order{
			"o1": {ID: "o1", Status: status},
		}}
		svc := testService(orders, nil)

		_, err := svc.Update(context.Background(), "o1", UpdateInput{})

		var reqErr *InvalidRequestError
		require.ErrorAs(t, err, &reqErr, "status %s", status)
		assert.Nil(t, orders.updated)
	}
}

func TestUpdate_ReplacesLineSet(t *testing.T) {
	existing := &Order{
		ID:       "o1",
		GuestID:  "guest-1",
		Status:   StatusPending,
		CheckIn:  time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2025, 1, 17, 11, 0, 0, 0, time.UTC),
		Guests:   []Guest{{Name: "Asha"}},
		Lines: []Line{{
			ID:            "old-line",
			OrderID:       "o1",
			Currency:      "INR",
			PricePerNight: dec("1000"),
			Rooms:         1,
			Nights:        1,
		}},
	}
	orders := &mockOrders{byID: map[string]*Order{"o1": existing}}
	svc := testService(orders, nil)

	o, err := svc.Update(context.Background(), "o1", UpdateInput{
		Lines: []LineRequest{{ProductID: "villa", Rooms: 2, Nights: 3}},
	})

	require.NoError(t, err)
	assert.True(t, orders.replaceLines)
	require.Len(t, o.Lines, 1)
	assert.NotEqual(t, "old-line", o.Lines[0].ID)
	// 2000 * 6 room-nights.
	assert.True(t, dec("12000").Equal(o.Subtotal), "got %s", o.Subtotal)
}

func TestUpdate_RepricesKeptLines(t *testing.T) {
	existing := &Order{
		ID:       "o1",
		GuestID:  "guest-1",
		Status:   StatusPending,
		CheckIn:  time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2025, 1, 17, 11, 0, 0, 0, time.UTC),
		Guests:   []Guest{{Name: "Asha"}},
		Lines: []Line{{
			ID:            "l1",
			OrderID:       "o1",
			PricePerNight: dec("2000"),
			Rooms:         1,
			Nights:        2,
			// Stored totals are stale on purpose; update must re-derive them.
			Subtotal: dec("1"),
			Total:    dec("1"),
		}},
	}
	orders := &mockOrders{byID: map[string]*Order{"o1": existing}}
	svc := testService(orders, nil)

	notes := "late arrival"
	o, err := svc.Update(context.Background(), "o1", UpdateInput{Notes: &notes})

	require.NoError(t, err)
	assert.False(t, orders.replaceLines)
	assert.Equal(t, "late arrival", o.Notes)
	assert.True(t, dec("4000").Equal(o.Subtotal), "stale subtotal must be recomputed, got %s", o.Subtotal)
	assert.True(t, dec("4720").Equal(o.Total))
}

func TestUpdate_NewPromoConsumesUsage(t *testing.T) {
	existing := &Order{
		ID:       "o1",
		GuestID:  "guest-1",
		Status:   StatusPending,
		CheckIn:  time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2025, 1, 17, 11, 0, 0, 0, time.UTC),
		Guests:   []Guest{{Name: "Asha"}},
		Lines: []Line{{
			ID: "l1", OrderID: "o1",
			PricePerNight: dec("2000"), Rooms: 1, Nights: 2,
		}},
	}
	orders := &mockOrders{byID: map[string]*Order{"o1": existing}}
	repo := &staticDiscountRepo{rule: &discount.Discount{
		Code: "NEW10", Type: discount.TypePercentage, Value: dec("10"), Active: true,
	}}
	svc := testService(orders, discount.NewEvaluator(repo))

	code := "NEW10"
	o, err := svc.Update(context.Background(), "o1", UpdateInput{PromoCode: &code})

	require.NoError(t, err)
	assert.True(t, orders.consumePromo)
	assert.True(t, dec("400").Equal(o.DiscountAmount), "got %s", o.DiscountAmount)
}

func TestUpdate_LineReplacementRevalidatesPromo(t *testing.T) {
	ended := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := &Order{
		ID:        "o1",
		GuestID:   "guest-1",
		Status:    StatusPending,
		PromoCode: "GONE10",
		CheckIn:   time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC),
		CheckOut:  time.Date(2025, 1, 17, 11, 0, 0, 0, time.UTC),
		Guests:    []Guest{{Name: "Asha"}},
		Lines: []Line{{
			ID: "l1", OrderID: "o1",
			PricePerNight: dec("2000"), Rooms: 1, Nights: 2,
			Discount: &discount.Detail{Code: "GONE10", Type: discount.TypePercentage, Value: dec("10")},
		}},
	}
	orders := &mockOrders{byID: map[string]*Order{"o1": existing}}
	repo := &staticDiscountRepo{rule: &discount.Discount{
		Code: "GONE10", Type: discount.TypePercentage, Value: dec("10"),
		Active: true, EndsAt: &ended,
	}}
	svc := testService(orders, discount.NewEvaluator(repo))

	_, err := svc.Update(context.Background(), "o1", UpdateInput{
		Lines: []LineRequest{{ProductID: "villa", Rooms: 2, Nights: 3}},
	})

	var reqErr *InvalidRequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, discount.ReasonExpired, reqErr.Reason)
	assert.Nil(t, orders.updated)
}

func TestUpdate_RevalidationSkipsOwnRedemption(t *testing.T) {
	existing := &Order{
		ID:        "o1",
		GuestID:   "guest-1",
		Status:    StatusPending,
		PromoCode: "KEEP10",
		CheckIn:   time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC),
		CheckOut:  time.Date(2025, 1, 17, 11, 0, 0, 0, time.UTC),
		Guests:    []Guest{{Name: "Asha"}},
		Lines: []Line{{
			ID: "l1", OrderID: "o1",
			PricePerNight: dec("2000"), Rooms: 1, Nights: 2,
			Discount: &discount.Detail{Code: "KEEP10", Type: discount.TypePercentage, Value: dec("10")},
		}},
	}
	orders := &mockOrders{byID: map[string]*Order{"o1": existing}}
	repo := &staticDiscountRepo{rule: &discount.Discount{
		Code: "KEEP10", Type: discount.TypePercentage, Value: dec("10"), Active: true,
	}}
	svc := testService(orders, discount.NewEvaluator(repo))

	o, err := svc.Update(context.Background(), "o1", UpdateInput{
		Lines: []LineRequest{{ProductID: "villa", Rooms: 1, Nights: 2}},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, repo.countCalls)
	assert.Equal(t, "o1", repo.lastExcludeID, "the order under edit must not count against its own code")
	assert.True(t, dec("400").Equal(o.DiscountAmount), "got %s", o.DiscountAmount)
}

func TestUpdateStatus_RoutedThroughStateMachine(t *testing.T) {
	orders := &mockOrders{byID: map[string]*Order{
		"o1": {ID: "o1", Status: StatusPending},
	}}
	svc := testService(orders, nil)

	o, err := svc.UpdateStatus(context.Background(), "o1", StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, o.Status)
	assert.Equal(t, "o1", orders.statusID)

	_, err = svc.UpdateStatus(context.Background(), "o1", StatusCompleted)
	var invErr *InvalidTransitionError
	require.ErrorAs(t, err, &invErr)
}

func TestConfirm_RequiresPending(t *testing.T) {
	orders := &mockOrders{byID: map[string]*Order{
		"o1": {ID: "o1", Status: StatusOnHold},
	}}
	svc := testService(orders, nil)

	_, err := svc.Confirm(context.Background(), "o1")

	var reqErr *InvalidRequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "only pending orders can be confirmed", reqErr.Reason)
}

func TestComplete_RequiresConfirmed(t *testing.T) {
	orders := &mockOrders{byID: map[string]*Order{
		"o1": {ID: "o1", Status: StatusPending},
	}}
	svc := testService(orders, nil)

	_, err := svc.Complete(context.Background(), "o1")

	var reqErr *InvalidRequestError
	require.ErrorAs(t, err, &reqErr)
}

func TestCancel_AppendsReasonToNotes(t *testing.T) {
	orders := &mockOrders{byID: map[string]*Order{
		"o1": {ID: "o1", Status: StatusConfirmed, Notes: "vip"},
	}}
	svc := testService(orders, nil)

	o, err := svc.Cancel(context.Background(), "o1", "guest request")

	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, "vip\ncancelled: guest request", orders.statusNotes)
}

func TestCancel_RejectedWhenTerminal(t *testing.T) {
	for _, status := range []Status{StatusCancelled, StatusCompleted} {
		orders := &mockOrders{byID: map[string]*Order{
			"o1": {ID: "o1", Status: status},
		}}
		svc := testService(orders, nil)

		_, err := svc.Cancel(context.Background(), "o1", "")

		var reqErr *InvalidRequestError
		require.ErrorAs(t, err, &reqErr, "status %s", status)
	}
}

func TestRemove_OnlyPendingOrCancelled(t *testing.T) {
	tests := []struct {
		status  Status
		wantErr bool
	}{
		{StatusPending, false},
		{StatusCancelled, false},
		{StatusConfirmed, true},
		{StatusCompleted, true},
	}

	for _, tt := range tests {
		orders := &mockOrders{byID: map[string]*Order{
			"o1": {ID: "o1", Status: tt.status},
		}}
		svc := testService(orders, nil)

		err := svc.Remove(context.Background(), "o1")

		if tt.wantErr {
			assert.Error(t, err, "status %s", tt.status)
			assert.Empty(t, orders.deletedID)
		} else {
			assert.NoError(t, err, "status %s", tt.status)
			assert.Equal(t, "o1", orders.deletedID)
		}
	}
}

func TestBulkUpdateStatus_BypassesStateMachine(t *testing.T) {
	orders := &mockOrders{}
	svc := testService(orders, nil)

	// pending -> completed is not a legal single-order transition, but bulk
	// is a direct administrative set.
	n, err := svc.BulkUpdateStatus(context.Background(), []string{"a", "b"}, StatusCompleted)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, StatusCompleted, orders.bulkStatus)
}

func TestBulkUpdateStatus_UnknownStatus(t *testing.T) {
	svc := testService(&mockOrders{}, nil)

	_, err := svc.BulkUpdateStatus(context.Background(), []string{"a"}, Status("shipped"))

	var unkErr *UnknownStatusError
	require.ErrorAs(t, err, &unkErr)
}

func TestGet_NotFound(t *testing.T) {
	svc := testService(&mockOrders{}, nil)

	_, err := svc.Get(context.Background(), "missing")

	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
}
