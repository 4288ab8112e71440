//go:build integration

package integration

import (
	"net/http"
	"regexp"
	"testing"
)

var invoicePattern = regexp.MustCompile(`^GKS-\d{8}\d{3,}$`)

func TestPlaceOrder(t *testing.T) {
	o := placeOrder(t, validOrderRequest())

	if o.Status != "pending" {
		t.Errorf("status: got %q, want pending", o.Status)
	}
	if !invoicePattern.MatchString(o.InvoiceNo) {
		t.Errorf("invoice %q does not match GKS-YYYYMMDDNNN", o.InvoiceNo)
	}
	if o.Subtotal != "4000" {
		t.Errorf("subtotal: got %q, want 4000", o.Subtotal)
	}
	if o.TaxAmount != "720" {
		t.Errorf("tax: got %q, want 720", o.TaxAmount)
	}
	if o.Total != "4720" {
		t.Errorf("total: got %q, want 4720", o.Total)
	}
}

func TestPlaceOrder_SequentialInvoices(t *testing.T) {
	first := placeOrder(t, validOrderRequest())
	second := placeOrder(t, validOrderRequest())

	if first.InvoiceNo == second.InvoiceNo {
		t.Errorf("invoice numbers must be unique, both %q", first.InvoiceNo)
	}
}

func TestPlaceOrder_WithPromo(t *testing.T) {
	req := validOrderRequest()
	req.PromoCode = "WELCOME10"

	o := placeOrder(t, req)

	// 10% of 4000 is 400, capped at 300 by the campaign.
	if o.DiscountAmount != "300" {
		t.Errorf("discount: got %q, want 300", o.DiscountAmount)
	}
	if o.Total != "4420" {
		t.Errorf("total: got %q, want 4420", o.Total)
	}
}

func TestPlaceOrder_PromoSecondUseRejected(t *testing.T) {
	// WELCOME10 carries no explicit per-user limit, so each guest may
	// redeem it once. Rahul has no prior orders in the seed data.
	const rahulID = "0b0e4f86-1a8c-4b63-9a57-0d77e1a10002"

	req := validOrderRequest()
	req.GuestID = rahulID
	req.Guests = []guestRequest{{Name: "Rahul Mehta"}}
	req.PromoCode = "WELCOME10"

	placeOrder(t, req)

	resp := do(t, http.MethodPost, "/api/orders", req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("second redemption: expected 400, got %d", resp.StatusCode)
	}
	e := decode[errorResponse](t, resp)
	if e.Message != "Discount code has already been used by this customer" {
		t.Errorf("message: got %q", e.Message)
	}
}

func TestPlaceOrder_InvalidPromo(t *testing.T) {
	req := validOrderRequest()
	req.PromoCode = "NOSUCHCODE"

	resp := do(t, http.MethodPost, "/api/orders", req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	e := decode[errorResponse](t, resp)
	if e.Message != "Invalid discount code" {
		t.Errorf("message: got %q", e.Message)
	}
}

func TestPlaceOrder_UnknownGuest(t *testing.T) {
	req := validOrderRequest()
	req.GuestID = "00000000-0000-0000-0000-000000000000"

	resp := do(t, http.MethodPost, "/api/orders", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestOrderLifecycle(t *testing.T) {
	o := placeOrder(t, validOrderRequest())

	resp := do(t, http.MethodPost, "/api/orders/"+o.ID+"/confirm", nil)
	confirmed := decode[orderResponse](t, resp)
	if confirmed.Status != "confirmed" {
		t.Fatalf("confirm: got status %q", confirmed.Status)
	}

	resp = do(t, http.MethodPost, "/api/orders/"+o.ID+"/complete", nil)
	completed := decode[orderResponse](t, resp)
	if completed.Status != "completed" {
		t.Fatalf("complete: got status %q", completed.Status)
	}

	// Completed orders cannot be cancelled.
	resp = do(t, http.MethodPost, "/api/orders/"+o.ID+"/cancel", map[string]string{"reason": "too late"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("cancel completed: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCancelWithReason(t *testing.T) {
	o := placeOrder(t, validOrderRequest())

	resp := do(t, http.MethodPost, "/api/orders/"+o.ID+"/cancel", map[string]string{"reason": "guest request"})
	cancelled := decode[orderResponse](t, resp)

	if cancelled.Status != "cancelled" {
		t.Errorf("status: got %q, want cancelled", cancelled.Status)
	}
	if cancelled.Notes != "cancelled: guest request" {
		t.Errorf("notes: got %q", cancelled.Notes)
	}
}

func TestDeleteAndRestore(t *testing.T) {
	o := placeOrder(t, validOrderRequest())

	resp := do(t, http.MethodDelete, "/api/orders/"+o.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}

	resp = doGet(t, "/api/orders/"+o.ID)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted: expected 404, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, "/api/orders/"+o.ID+"/restore", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("restore: expected 204, got %d", resp.StatusCode)
	}

	resp = doGet(t, "/api/orders/"+o.ID)
	restored := decode[orderResponse](t, resp)
	if restored.InvoiceNo != o.InvoiceNo {
		t.Errorf("restored invoice: got %q, want %q", restored.InvoiceNo, o.InvoiceNo)
	}
}

func TestUpdateOrder_ReplacesLines(t *testing.T) {
	o := placeOrder(t, validOrderRequest())

	resp := do(t, http.MethodPatch, "/api/orders/"+o.ID, map[string]any{
		"lines": []lineRequest{{
			ProductID: villaID,
			VariantID: deluxeID,
			Rooms:     1,
			Nights:    2,
		}},
	})
	updated := decode[orderResponse](t, resp)

	// The deluxe variant is 3000 per night.
	if updated.Subtotal != "6000" {
		t.Errorf("subtotal: got %q, want 6000", updated.Subtotal)
	}
	if len(updated.Lines) != 1 {
		t.Errorf("lines: got %d, want 1", len(updated.Lines))
	}
}

func TestListUserOrders(t *testing.T) {
	placeOrder(t, validOrderRequest())

	resp := doGet(t, "/api/users/"+guestID+"/orders")
	orders := decode[[]orderResponse](t, resp)
	if len(orders) == 0 {
		t.Fatal("expected at least one order for seeded guest")
	}
}

func TestStatistics(t *testing.T) {
	placeOrder(t, validOrderRequest())

	resp := doGet(t, "/api/admin/orders/statistics")
	stats := decode[statisticsResponse](t, resp)
	if stats.CountByStatus["pending"] == 0 {
		t.Error("expected pending orders in statistics")
	}
}

func TestBulkStatus(t *testing.T) {
	first := placeOrder(t, validOrderRequest())
	second := placeOrder(t, validOrderRequest())

	resp := do(t, http.MethodPost, "/api/admin/orders/bulk-status", map[string]any{
		"ids":    []string{first.ID, second.ID},
		"status": "on_hold",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
