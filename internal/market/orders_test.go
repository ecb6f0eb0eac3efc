package market

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/bazarhq/bazar/internal/logger"
	"github.com/bazarhq/bazar/internal/store"
)

func orderFixture(t *testing.T) (*UserService, *ListingService, *OrderService, *User, *User, *Listing) {
	t.Helper()

	users, listings, orders := newTestServices(t)
	seller := registerUser(t, users, "seller", UserTypeSeller)
	buyer := registerUser(t, users, "buyer", UserTypeBuyer)
	listing := createListing(t, listings, seller.ID, ListingTypeProduct, "garden shed")
	return users, listings, orders, seller, buyer, listing
}

func TestCreateOrderSnapshot(t *testing.T) {
	_, _, orders, seller, buyer, listing := orderFixture(t)

	order, err := orders.Create(CreateOrderInput{
		BuyerID:   buyer.ID,
		ListingID: listing.ID,
		Quantity:  3,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if order.SellerID != seller.ID {
		t.Errorf("seller_id = %q, want %q", order.SellerID, seller.ID)
	}
	if order.ListingTitle != listing.Title || order.ListingType != listing.Type {
		t.Errorf("listing snapshot = %q/%q, want %q/%q",
			order.ListingTitle, order.ListingType, listing.Title, listing.Type)
	}
	if order.UnitPrice != listing.Price {
		t.Errorf("unit_price = %v, want %v", order.UnitPrice, listing.Price)
	}
	if order.TotalPrice != listing.Price*3 {
		t.Errorf("total_price = %v, want %v", order.TotalPrice, listing.Price*3)
	}
	if order.Status != OrderStatusPending {
		t.Errorf("status = %q, want pending", order.Status)
	}
	if order.PaymentStatus != "unpaid" {
		t.Errorf("payment_status = %q, want unpaid", order.PaymentStatus)
	}
	if len(order.StatusHistory) != 1 || order.StatusHistory[0].Status != OrderStatusPending {
		t.Errorf("status history = %+v, want single pending entry", order.StatusHistory)
	}
}

func TestCreateOrderDefaultsQuantity(t *testing.T) {
	_, _, orders, _, buyer, listing := orderFixture(t)

	order, err := orders.Create(CreateOrderInput{BuyerID: buyer.ID, ListingID: listing.ID})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if order.Quantity != 1 {
		t.Errorf("quantity = %d, want 1", order.Quantity)
	}
	if order.TotalPrice != listing.Price {
		t.Errorf("total_price = %v, want %v", order.TotalPrice, listing.Price)
	}
}

func TestCreateOrderOwnListing(t *testing.T) {
	users, listings, orders := newTestServices(t)

	seller := registerUser(t, users, "selfbuyer", UserTypeBoth)
	listing := createListing(t, listings, seller.ID, ListingTypeProduct, "own goods")

	if _, err := orders.Create(CreateOrderInput{BuyerID: seller.ID, ListingID: listing.ID}); !IsValidation(err) {
		t.Errorf("expected validation error ordering own listing, got %v", err)
	}
}

func TestCreateOrderInactiveListing(t *testing.T) {
	_, listings, orders, _, buyer, listing := orderFixture(t)

	suspended := StatusSuspended
	if _, err := listings.Update(listing.ID, listing.UserID, UpdateListingInput{Status: &suspended}); err != nil {
		t.Fatalf("suspend listing failed: %v", err)
	}

	if _, err := orders.Create(CreateOrderInput{BuyerID: buyer.ID, ListingID: listing.ID}); !IsConflict(err) {
		t.Errorf("expected conflict for inactive listing, got %v", err)
	}
}

func TestCreateOrderSellerCannotBuy(t *testing.T) {
	users, _, orders, _, _, listing := orderFixture(t)

	pureSeller := registerUser(t, users, "pureseller", UserTypeSeller)
	if _, err := orders.Create(CreateOrderInput{BuyerID: pureSeller.ID, ListingID: listing.ID}); !IsForbidden(err) {
		t.Errorf("expected forbidden for seller-only account, got %v", err)
	}
}

func TestOrderStatusLifecycle(t *testing.T) {
	_, _, orders, seller, buyer, listing := orderFixture(t)

	order, err := orders.Create(CreateOrderInput{BuyerID: buyer.ID, ListingID: listing.ID})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	steps := []struct {
		status string
		actor  string
	}{
		{OrderStatusApproved, seller.ID},
		{OrderStatusInProgress, seller.ID},
		{OrderStatusCompleted, seller.ID},
	}
	for _, step := range steps {
		order, err = orders.UpdateStatus(order.ID, step.actor, step.status, "")
		if err != nil {
			t.Fatalf("UpdateStatus to %s failed: %v", step.status, err)
		}
		if order.Status != step.status {
			t.Errorf("status = %q, want %q", order.Status, step.status)
		}
	}

	if order.PaymentStatus != "paid" {
		t.Errorf("payment_status after completion = %q, want paid", order.PaymentStatus)
	}
	if len(order.StatusHistory) != 4 {
		t.Errorf("status history has %d entries, want 4", len(order.StatusHistory))
	}
	last := order.StatusHistory[len(order.StatusHistory)-1]
	if last.Status != OrderStatusCompleted || last.ChangedBy != seller.ID {
		t.Errorf("last history entry = %+v", last)
	}
}

func TestOrderInvalidTransition(t *testing.T) {
	_, _, orders, seller, buyer, listing := orderFixture(t)

	order, err := orders.Create(CreateOrderInput{BuyerID: buyer.ID, ListingID: listing.ID})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := orders.UpdateStatus(order.ID, seller.ID, OrderStatusCompleted, ""); !IsConflict(err) {
		t.Errorf("expected conflict for pending->completed, got %v", err)
	}

	if _, err := orders.UpdateStatus(order.ID, seller.ID, "shipped", ""); !IsConflict(err) {
		t.Errorf("expected conflict for unknown status, got %v", err)
	}
}

func TestOrderStatusAuthorization(t *testing.T) {
	users, _, orders, _, buyer, listing := orderFixture(t)

	order, err := orders.Create(CreateOrderInput{BuyerID: buyer.ID, ListingID: listing.ID})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	stranger := registerUser(t, users, "bystander", UserTypeBoth)
	if _, err := orders.UpdateStatus(order.ID, stranger.ID, OrderStatusApproved, ""); !IsForbidden(err) {
		t.Errorf("expected forbidden for non-party, got %v", err)
	}

	admin := registerUser(t, users, "ops", UserTypeBuyer)
	if err := users.store.Update(UsersFile, admin.ID, store.Record{"type": UserTypeAdmin}, usersKey, "id"); err != nil {
		t.Fatalf("admin promote failed: %v", err)
	}
	if _, err := orders.UpdateStatus(order.ID, admin.ID, OrderStatusApproved, "approved by support"); err != nil {
		t.Errorf("admin UpdateStatus failed: %v", err)
	}
}

func TestCancelOrder(t *testing.T) {
	_, _, orders, _, buyer, listing := orderFixture(t)

	order, err := orders.Create(CreateOrderInput{BuyerID: buyer.ID, ListingID: listing.ID})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	cancelled, err := orders.Cancel(order.ID, buyer.ID, "changed my mind")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled.Status != OrderStatusCancelled {
		t.Errorf("status = %q, want cancelled", cancelled.Status)
	}
	if cancelled.CancelReason != "changed my mind" {
		t.Errorf("cancel_reason = %q", cancelled.CancelReason)
	}
}

func TestCancelOrderAfterStart(t *testing.T) {
	_, _, orders, seller, buyer, listing := orderFixture(t)

	order, err := orders.Create(CreateOrderInput{BuyerID: buyer.ID, ListingID: listing.ID})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for _, status := range []string{OrderStatusApproved, OrderStatusInProgress} {
		if _, err := orders.UpdateStatus(order.ID, seller.ID, status, ""); err != nil {
			t.Fatalf("UpdateStatus to %s failed: %v", status, err)
		}
	}

	if _, err := orders.Cancel(order.ID, buyer.ID, "too late"); !IsConflict(err) {
		t.Errorf("expected conflict cancelling in-progress order, got %v", err)
	}
}

func TestListOrders(t *testing.T) {
	users, listings, orders := newTestServices(t)

	seller := registerUser(t, users, "listseller", UserTypeSeller)
	alice := registerUser(t, users, "alice", UserTypeBuyer)
	bob := registerUser(t, users, "bob", UserTypeBuyer)
	listing := createListing(t, listings, seller.ID, ListingTypeProduct, "firewood bundle")

	for _, buyerID := range []string{alice.ID, bob.ID, alice.ID} {
		if _, err := orders.Create(CreateOrderInput{BuyerID: buyerID, ListingID: listing.ID}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	byAlice, err := orders.ListByBuyer(alice.ID)
	if err != nil {
		t.Fatalf("ListByBuyer failed: %v", err)
	}
	if len(byAlice) != 2 {
		t.Errorf("alice has %d orders, want 2", len(byAlice))
	}

	bySeller, err := orders.ListBySeller(seller.ID)
	if err != nil {
		t.Fatalf("ListBySeller failed: %v", err)
	}
	if len(bySeller) != 3 {
		t.Errorf("seller has %d orders, want 3", len(bySeller))
	}

	pending, err := orders.ListByStatus(OrderStatusPending)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(pending) != 3 {
		t.Errorf("%d pending orders, want 3", len(pending))
	}

	if _, err := orders.ListByStatus("refunded"); !IsValidation(err) {
		t.Errorf("expected validation error for unknown status, got %v", err)
	}
}

// countOrderBackups counts the backup copies of the orders file.
func countOrderBackups(t *testing.T, dir string) int {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(dir, "orders", "orders.json.backup.*"))
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	return len(matches)
}

func TestCancelOrderWritesOnce(t *testing.T) {
	dir := t.TempDir()

	// The clock advances on every call so each write's backup gets a
	// distinct name, making backups a per-write counter.
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st, err := store.New(dir, store.Options{
		Logger:  logger.Nop(),
		Backups: true,
		Clock: func() time.Time {
			now = now.Add(time.Second)
			return now
		},
	})
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	if err := EnsureCollections(st); err != nil {
		t.Fatalf("EnsureCollections failed: %v", err)
	}

	log := logger.Nop()
	users := NewUserService(st, Location{Lat: 40.7128, Lng: -74.0060}, log)
	listings := NewListingService(st, users, ListingLimits{
		MaxPerUser:    5,
		MaxRadiusKm:   50,
		DefaultRadius: 25,
	}, log)
	orders := NewOrderService(st, users, listings, log)

	seller := registerUser(t, users, "onceseller", UserTypeSeller)
	buyer := registerUser(t, users, "oncebuyer", UserTypeBuyer)
	listing := createListing(t, listings, seller.ID, ListingTypeProduct, "garden shed")

	order, err := orders.Create(CreateOrderInput{
		BuyerID:   buyer.ID,
		ListingID: listing.ID,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	before := countOrderBackups(t, dir)
	cancelled, err := orders.Cancel(order.ID, buyer.ID, "changed my mind")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	after := countOrderBackups(t, dir)

	if got := after - before; got != 1 {
		t.Errorf("cancel wrote the orders file %d times, want 1", got)
	}
	if cancelled.Status != OrderStatusCancelled {
		t.Errorf("status = %s, want %s", cancelled.Status, OrderStatusCancelled)
	}
	if cancelled.CancelReason != "changed my mind" {
		t.Errorf("cancel_reason = %q, want %q", cancelled.CancelReason, "changed my mind")
	}

	fetched, err := orders.Get(order.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched.CancelReason != "changed my mind" {
		t.Errorf("persisted cancel_reason = %q, want %q", fetched.CancelReason, "changed my mind")
	}
}
