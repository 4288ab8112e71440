package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/gkstays/booking/internal/domain/discount"
	"github.com/gkstays/booking/internal/domain/order"
)

type lineRequest struct {
	ProductID          string             `json:"product_id"`
	VariantID          string             `json:"variant_id"`
	Currency           string             `json:"currency"`
	PricePerNight      decimal.Decimal    `json:"price_per_night"`
	Rooms              int                `json:"rooms"`
	Nights             int                `json:"nights"`
	Capacity           int                `json:"capacity"`
	ExtraBed           *order.ExtraBed    `json:"extra_bed"`
	FoodOptions        []order.FoodOption `json:"food_options"`
	SpecialRequests    string             `json:"special_requests"`
	CancellationPolicy string             `json:"cancellation_policy"`
}

func (l lineRequest) toDomain() order.LineRequest {
	return order.LineRequest{
		ProductID:          l.ProductID,
		VariantID:          l.VariantID,
		Currency:           l.Currency,
		PricePerNight:      l.PricePerNight,
		Rooms:              l.Rooms,
		Nights:             l.Nights,
		Capacity:           l.Capacity,
		ExtraBed:           l.ExtraBed,
		FoodOptions:        l.FoodOptions,
		SpecialRequests:    l.SpecialRequests,
		CancellationPolicy: l.CancellationPolicy,
	}
}

type createOrderRequest struct {
	GuestID    string        `json:"guest_id"`
	OperatorID string        `json:"operator_id"`
	CheckIn    time.Time     `json:"check_in"`
	CheckOut   time.Time     `json:"check_out"`
	Guests     []order.Guest `json:"guests"`
	PromoCode  string        `json:"promo_code"`
	Notes      string        `json:"notes"`
	Lines      []lineRequest `json:"lines"`
}

type updateOrderRequest struct {
	GuestID   *string       `json:"guest_id"`
	CheckIn   *time.Time    `json:"check_in"`
	CheckOut  *time.Time    `json:"check_out"`
	Guests    []order.Guest `json:"guests"`
	PromoCode *string       `json:"promo_code"`
	Notes     *string       `json:"notes"`
	Lines     []lineRequest `json:"lines"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type bulkStatusRequest struct {
	IDs    []string `json:"ids"`
	Status string   `json:"status"`
}

type bulkStatusResponse struct {
	Updated int `json:"updated"`
}

type lineResponse struct {
	ID                 string                 `json:"id"`
	ProductID          *string                `json:"product_id,omitempty"`
	VariantID          *string                `json:"variant_id,omitempty"`
	Product            *order.ProductSnapshot `json:"product,omitempty"`
	Variant            *order.VariantSnapshot `json:"variant,omitempty"`
	Currency           string                 `json:"currency"`
	PricePerNight      decimal.Decimal        `json:"price_per_night"`
	Rooms              int                    `json:"rooms"`
	Nights             int                    `json:"nights"`
	Capacity           int                    `json:"capacity"`
	ExtraBed           *order.ExtraBed        `json:"extra_bed,omitempty"`
	FoodOptions        []order.FoodOption     `json:"food_options,omitempty"`
	SpecialRequests    string                 `json:"special_requests,omitempty"`
	CancellationPolicy string                 `json:"cancellation_policy,omitempty"`
	Discount           *discount.Detail       `json:"discount,omitempty"`
	Subtotal           decimal.Decimal        `json:"subtotal"`
	Taxes              []order.TaxLine        `json:"taxes"`
	TaxAmount          decimal.Decimal        `json:"tax_amount"`
	DiscountAmount     decimal.Decimal        `json:"discount_amount"`
	Total              decimal.Decimal        `json:"total"`
	CommissionPercent  *decimal.Decimal       `json:"commission_percent,omitempty"`
	CommissionAmount   decimal.Decimal        `json:"commission_amount"`
}

type orderResponse struct {
	ID                string                 `json:"id"`
	InvoiceNo         string                 `json:"invoice_no"`
	GuestID           string                 `json:"guest_id"`
	OperatorID        string                 `json:"operator_id"`
	CheckIn           time.Time              `json:"check_in"`
	CheckOut          time.Time              `json:"check_out"`
	Guests            []order.Guest          `json:"guests"`
	Lines             []lineResponse         `json:"lines"`
	PromoCode         string                 `json:"promo_code,omitempty"`
	Status            string                 `json:"status"`
	Notes             string                 `json:"notes,omitempty"`
	Subtotal          decimal.Decimal        `json:"subtotal"`
	TaxAmount         decimal.Decimal        `json:"tax_amount"`
	DiscountAmount    decimal.Decimal        `json:"discount_amount"`
	Total             decimal.Decimal        `json:"total"`
	CommissionAmount  decimal.Decimal        `json:"commission_amount"`
	CommissionPercent decimal.Decimal        `json:"commission_percent"`
	DiscountDetails   []discount.Detail      `json:"discount_details,omitempty"`
	Taxes             []order.TaxLine        `json:"taxes"`
	CommissionRates   []order.CommissionRate `json:"commission_rates,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

type statisticsResponse struct {
	CountByStatus map[string]int  `json:"count_by_status"`
	Revenue       decimal.Decimal `json:"revenue"`
}

func toOrderResponse(o *order.Order) orderResponse {
	lines := make([]lineResponse, len(o.Lines))
	for i := range o.Lines {
		l := &o.Lines[i]
		lines[i] = lineResponse{
			ID:                 l.ID,
			ProductID:          l.ProductID,
			VariantID:          l.VariantID,
			Product:            l.Product,
			Variant:            l.Variant,
			Currency:           l.Currency,
			PricePerNight:      l.PricePerNight,
			Rooms:              l.Rooms,
			Nights:             l.Nights,
			Capacity:           l.Capacity,
			ExtraBed:           l.ExtraBed,
			FoodOptions:        l.FoodOptions,
			SpecialRequests:    l.SpecialRequests,
			CancellationPolicy: l.CancellationPolicy,
			Discount:           l.Discount,
			Subtotal:           l.Subtotal,
			Taxes:              l.Taxes,
			TaxAmount:          l.TaxAmount,
			DiscountAmount:     l.DiscountAmount,
			Total:              l.Total,
			CommissionPercent:  l.CommissionPercent,
			CommissionAmount:   l.CommissionAmount,
		}
	}
	return orderResponse{
		ID:                o.ID,
		InvoiceNo:         o.InvoiceNo,
		GuestID:           o.GuestID,
		OperatorID:        o.OperatorID,
		CheckIn:           o.CheckIn,
		CheckOut:          o.CheckOut,
		Guests:            o.Guests,
		Lines:             lines,
		PromoCode:         o.PromoCode,
		Status:            string(o.Status),
		Notes:             o.Notes,
		Subtotal:          o.Subtotal,
		TaxAmount:         o.TaxAmount,
		DiscountAmount:    o.DiscountAmount,
		Total:             o.Total,
		CommissionAmount:  o.CommissionAmount,
		CommissionPercent: o.CommissionPercent,
		DiscountDetails:   o.DiscountDetails,
		Taxes:             o.Taxes,
		CommissionRates:   o.CommissionRates,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.OperatorID == "" {
		writeError(w, http.StatusBadRequest, "operator_id is required")
		return
	}

	lines := make([]order.LineRequest, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = l.toDomain()
	}

	o, err := h.orders.Create(r.Context(), order.CreateInput{
		GuestID:   req.GuestID,
		CheckIn:   req.CheckIn,
		CheckOut:  req.CheckOut,
		Guests:    req.Guests,
		PromoCode: req.PromoCode,
		Notes:     req.Notes,
		Lines:     lines,
	}, req.OperatorID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.ordersPlaced.Add(r.Context(), 1, metric.WithAttributes(attrStatus(o.Status)))
	trace.SpanFromContext(r.Context()).SetAttributes(attrStatus(o.Status))

	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) listUserOrders(w http.ResponseWriter, r *http.Request) {
	out, err := h.orders.ListForUser(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := make([]orderResponse, len(out))
	for i := range out {
		resp[i] = toOrderResponse(&out[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	in := order.UpdateInput{
		GuestID:   req.GuestID,
		CheckIn:   req.CheckIn,
		CheckOut:  req.CheckOut,
		Guests:    req.Guests,
		PromoCode: req.PromoCode,
		Notes:     req.Notes,
	}
	if req.Lines != nil {
		in.Lines = make([]order.LineRequest, len(req.Lines))
		for i, l := range req.Lines {
			in.Lines[i] = l.toDomain()
		}
	}

	o, err := h.orders.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), order.Status(req.Status))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Confirm(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) completeOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Complete(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	// The reason is optional, so an empty body is allowed here.
	var req cancelRequest
	if err := readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	o, err := h.orders.Cancel(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) removeOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Remove(r.Context(), r.PathValue("id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) restoreOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Restore(r.Context(), r.PathValue("id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) bulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req bulkStatusRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids are required")
		return
	}
	n, err := h.orders.BulkUpdateStatus(r.Context(), req.IDs, order.Status(req.Status))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bulkStatusResponse{Updated: n})
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orders.Statistics(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	counts := make(map[string]int, len(stats.CountByStatus))
	for s, n := range stats.CountByStatus {
		counts[string(s)] = n
	}
	writeJSON(w, http.StatusOK, statisticsResponse{
		CountByStatus: counts,
		Revenue:       stats.Revenue,
	})
}
