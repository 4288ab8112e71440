// Package handler exposes the order service over HTTP with JSON bodies.
// The transport stays thin: decode, delegate to the domain service, map
// domain errors to status codes.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/gkstays/booking/internal/domain/discount"
	"github.com/gkstays/booking/internal/domain/order"
)

// Handler serves the order API endpoints.
type Handler struct {
	orders *order.Service

	ordersPlaced metric.Int64Counter
}

// NewHandler constructs a Handler around the order service. The meter is
// used for the placed-orders counter; pass a noop meter in tests.
func NewHandler(orders *order.Service, meter metric.Meter) (*Handler, error) {
	ordersPlaced, err := meter.Int64Counter("booking.orders.placed",
		metric.WithDescription("Number of orders placed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create orders counter")
	}
	return &Handler{orders: orders, ordersPlaced: ordersPlaced}, nil
}

// Register attaches all API routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders", h.createOrder)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("PATCH /api/orders/{id}", h.updateOrder)
	mux.HandleFunc("DELETE /api/orders/{id}", h.removeOrder)
	mux.HandleFunc("POST /api/orders/{id}/status", h.updateStatus)
	mux.HandleFunc("POST /api/orders/{id}/confirm", h.confirmOrder)
	mux.HandleFunc("POST /api/orders/{id}/complete", h.completeOrder)
	mux.HandleFunc("POST /api/orders/{id}/cancel", h.cancelOrder)
	mux.HandleFunc("POST /api/orders/{id}/restore", h.restoreOrder)
	mux.HandleFunc("GET /api/users/{id}/orders", h.listUserOrders)
	mux.HandleFunc("POST /api/admin/orders/bulk-status", h.bulkUpdateStatus)
	mux.HandleFunc("GET /api/admin/orders/statistics", h.statistics)
}

// errorResponse is the JSON error body shared by all endpoints.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Code: status, Message: msg})
}

// readJSON decodes the request body, rejecting unknown fields so typos in
// client payloads fail loudly.
func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// respondError maps domain errors onto the HTTP error taxonomy.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound      *order.NotFoundError
		invalid       *order.InvalidRequestError
		badTransition *order.InvalidTransitionError
		unknown       *order.UnknownStatusError
	)
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, invalid.Error())
	case errors.As(err, &badTransition):
		writeError(w, http.StatusBadRequest, badTransition.Error())
	case errors.As(err, &unknown):
		writeError(w, http.StatusBadRequest, unknown.Error())
	case errors.Is(err, discount.ErrUsageConflict):
		writeError(w, http.StatusConflict, "discount code was exhausted concurrently, retry")
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func attrStatus(s order.Status) attribute.KeyValue {
	return attribute.String("order.status", string(s))
}
