package handlers

import (
	"fmt"
	"net/http"
	"testing"
)

func TestOrderHandler_Create(t *testing.T) {
	env := setupTestApp(t)

	seller := env.registerSeller(t, "seller")
	buyer := env.registerBuyer(t, "buyer")
	listing := env.createListing(t, seller.ID, "garden shed")

	resp := env.request(t, http.MethodPost, "/orders", map[string]any{
		"buyer_id":   buyer.ID,
		"listing_id": listing.ID,
		"quantity":   2,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	result := decodeBody(t, resp)
	if result["status"] != "pending" || result["payment_status"] != "unpaid" {
		t.Errorf("unexpected response: %+v", result)
	}
	if result["total_price"] != float64(50) {
		t.Errorf("total_price = %v, want 50", result["total_price"])
	}
	if result["listing_title"] != "garden shed" {
		t.Errorf("listing_title = %v", result["listing_title"])
	}

	// Unknown listing
	resp = env.request(t, http.MethodPost, "/orders", map[string]any{
		"buyer_id":   buyer.ID,
		"listing_id": "999",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown listing, got %d", resp.StatusCode)
	}
}

func TestOrderHandler_StatusLifecycle(t *testing.T) {
	env := setupTestApp(t)

	seller := env.registerSeller(t, "lifeseller")
	buyer := env.registerBuyer(t, "lifebuyer")
	listing := env.createListing(t, seller.ID, "firewood bundle")

	resp := env.request(t, http.MethodPost, "/orders", map[string]any{
		"buyer_id":   buyer.ID,
		"listing_id": listing.ID,
	})
	order := decodeBody(t, resp)
	orderID := order["id"].(string)

	statusPath := fmt.Sprintf("/orders/%s/status?actor_id=%s", orderID, seller.ID)
	for _, status := range []string{"approved", "in_progress", "completed"} {
		resp = env.request(t, http.MethodPut, statusPath, map[string]string{"status": status})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 moving to %s, got %d", status, resp.StatusCode)
		}
	}

	resp = env.request(t, http.MethodGet, "/orders/"+orderID, nil)
	result := decodeBody(t, resp)
	if result["status"] != "completed" || result["payment_status"] != "paid" {
		t.Errorf("final order = status %v, payment %v", result["status"], result["payment_status"])
	}

	// Terminal state rejects further transitions
	resp = env.request(t, http.MethodPut, statusPath, map[string]string{"status": "approved"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for transition out of completed, got %d", resp.StatusCode)
	}

	// Missing status field
	resp = env.request(t, http.MethodPut, statusPath, map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing status, got %d", resp.StatusCode)
	}
}

func TestOrderHandler_Cancel(t *testing.T) {
	env := setupTestApp(t)

	seller := env.registerSeller(t, "cancelseller")
	buyer := env.registerBuyer(t, "cancelbuyer")
	listing := env.createListing(t, seller.ID, "spare mower")

	resp := env.request(t, http.MethodPost, "/orders", map[string]any{
		"buyer_id":   buyer.ID,
		"listing_id": listing.ID,
	})
	order := decodeBody(t, resp)
	orderID := order["id"].(string)

	cancelPath := fmt.Sprintf("/orders/%s/cancel?actor_id=%s", orderID, buyer.ID)
	resp = env.request(t, http.MethodPost, cancelPath, map[string]string{"reason": "changed my mind"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	result := decodeBody(t, resp)
	if result["status"] != "cancelled" || result["cancel_reason"] != "changed my mind" {
		t.Errorf("unexpected response: %+v", result)
	}

	// Cancelled orders cannot be cancelled again
	resp = env.request(t, http.MethodPost, cancelPath, map[string]string{"reason": "again"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 cancelling a cancelled order, got %d", resp.StatusCode)
	}
}

func TestOrderHandler_List(t *testing.T) {
	env := setupTestApp(t)

	seller := env.registerSeller(t, "listseller")
	buyer := env.registerBuyer(t, "listbuyer")
	listing := env.createListing(t, seller.ID, "lawn mowing kit")

	for i := 0; i < 2; i++ {
		resp := env.request(t, http.MethodPost, "/orders", map[string]any{
			"buyer_id":   buyer.ID,
			"listing_id": listing.ID,
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201, got %d", resp.StatusCode)
		}
	}

	resp := env.request(t, http.MethodGet, "/orders?buyer_id="+buyer.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	result := decodeBody(t, resp)
	if result["count"] != float64(2) {
		t.Errorf("count = %v, want 2", result["count"])
	}

	resp = env.request(t, http.MethodGet, "/orders?status=pending", nil)
	result = decodeBody(t, resp)
	if result["count"] != float64(2) {
		t.Errorf("pending count = %v, want 2", result["count"])
	}

	// No filter at all
	resp = env.request(t, http.MethodGet, "/orders", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 without a filter, got %d", resp.StatusCode)
	}
}
