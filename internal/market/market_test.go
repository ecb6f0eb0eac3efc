package market

import (
	"testing"

	"github.com/bazarhq/bazar/internal/logger"
	"github.com/bazarhq/bazar/internal/store"
)

func newTestServices(t *testing.T) (*UserService, *ListingService, *OrderService) {
	t.Helper()

	st, err := store.New(t.TempDir(), store.Options{Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	if err := EnsureCollections(st); err != nil {
		t.Fatalf("EnsureCollections failed: %v", err)
	}

	log := logger.Nop()
	users := NewUserService(st, Location{Lat: 40.7128, Lng: -74.0060, Address: "New York, NY"}, log)
	listings := NewListingService(st, users, ListingLimits{
		MaxPerUser:    5,
		MaxRadiusKm:   50,
		DefaultRadius: 25,
	}, log)
	orders := NewOrderService(st, users, listings, log)

	return users, listings, orders
}

func registerUser(t *testing.T, users *UserService, username, userType string) *User {
	t.Helper()

	user, err := users.Register(RegisterUserInput{Username: username, Type: userType})
	if err != nil {
		t.Fatalf("Register %s failed: %v", username, err)
	}
	return user
}

func createListing(t *testing.T, listings *ListingService, userID, listingType, title string) *Listing {
	t.Helper()

	listing, err := listings.Create(CreateListingInput{
		UserID:      userID,
		Type:        listingType,
		Title:       title,
		Description: "a perfectly reasonable description",
		Price:       25,
	})
	if err != nil {
		t.Fatalf("Create listing %q failed: %v", title, err)
	}
	return listing
}
