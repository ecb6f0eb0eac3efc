package market

import (
	"strings"
	"testing"

	"github.com/bazarhq/bazar/internal/geo"
	"github.com/bazarhq/bazar/internal/logger"
	"github.com/bazarhq/bazar/internal/store"
)

func TestCreateListingRequiresSeller(t *testing.T) {
	users, listings, _ := newTestServices(t)

	buyer := registerUser(t, users, "justbuyer", UserTypeBuyer)

	_, err := listings.Create(CreateListingInput{
		UserID:      buyer.ID,
		Type:        ListingTypeProduct,
		Title:       "not allowed",
		Description: "buyers cannot publish listings",
	})
	if !IsForbidden(err) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestCreateListingSuspendedOwner(t *testing.T) {
	users, listings, _ := newTestServices(t)

	seller := registerUser(t, users, "suspended", UserTypeSeller)
	if err := users.Suspend(seller.ID, "fraud"); err != nil {
		t.Fatalf("Suspend failed: %v", err)
	}

	_, err := listings.Create(CreateListingInput{
		UserID:      seller.ID,
		Type:        ListingTypeProduct,
		Title:       "blocked",
		Description: "suspended sellers cannot publish",
	})
	if !IsForbidden(err) {
		t.Errorf("expected forbidden for suspended seller, got %v", err)
	}
}

func TestCreateListingValidation(t *testing.T) {
	users, listings, _ := newTestServices(t)

	seller := registerUser(t, users, "validseller", UserTypeSeller)

	cases := []CreateListingInput{
		{UserID: seller.ID, Type: "membership", Title: "bad type", Description: "description long enough"},
		{UserID: seller.ID, Type: ListingTypeProduct, Title: "ab", Description: "description long enough"},
		{UserID: seller.ID, Type: ListingTypeProduct, Title: strings.Repeat("x", 101), Description: "description long enough"},
		{UserID: seller.ID, Type: ListingTypeProduct, Title: "fine title", Description: "short"},
		{UserID: seller.ID, Type: ListingTypeProduct, Title: "fine title", Description: "description long enough", Price: -1},
		{UserID: seller.ID, Type: ListingTypeProduct, Title: "fine title", Description: "description long enough",
			Tags: []string{"a1", "a2", "a3", "a4", "a5", "a6"}},
		{UserID: seller.ID, Type: ListingTypeProduct, Title: "fine title", Description: "description long enough",
			Tags: []string{"x"}},
	}
	for i, in := range cases {
		if _, err := listings.Create(in); !IsValidation(err) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestCreateListingLimit(t *testing.T) {
	users, listings, _ := newTestServices(t)

	seller := registerUser(t, users, "prolific", UserTypeSeller)
	for i := 0; i < 5; i++ {
		createListing(t, listings, seller.ID, ListingTypeProduct, "listing number "+strings.Repeat("i", i+1))
	}

	_, err := listings.Create(CreateListingInput{
		UserID:      seller.ID,
		Type:        ListingTypeProduct,
		Title:       "one too many",
		Description: "the per-user limit should stop this one",
	})
	if !IsConflict(err) {
		t.Errorf("expected conflict at listing limit, got %v", err)
	}
}

func TestCreateListingDefaults(t *testing.T) {
	users, listings, _ := newTestServices(t)

	seller := registerUser(t, users, "defaults", UserTypeSeller)
	listing := createListing(t, listings, seller.ID, ListingTypeProduct, "kitchen table")

	if listing.Currency != "USD" {
		t.Errorf("currency = %q, want USD", listing.Currency)
	}
	if listing.Status != StatusActive {
		t.Errorf("status = %q, want active", listing.Status)
	}
	if listing.ProductDetails == nil {
		t.Errorf("product details not defaulted")
	}
	if listing.Location.Lat != seller.Location.Lat {
		t.Errorf("listing location not inherited from owner")
	}

	svc, err := listings.Create(CreateListingInput{
		UserID:      seller.ID,
		Type:        ListingTypeService,
		Title:       "plumbing service",
		Description: "pipes fixed while you wait",
	})
	if err != nil {
		t.Fatalf("service Create failed: %v", err)
	}
	if svc.ServiceDetails == nil {
		t.Errorf("service details not defaulted")
	}
	if svc.Type != ListingTypeService {
		t.Errorf("type = %q, want service", svc.Type)
	}
}

func TestGetListingChecksBothFiles(t *testing.T) {
	users, listings, _ := newTestServices(t)

	seller := registerUser(t, users, "bothfiles", UserTypeSeller)
	product := createListing(t, listings, seller.ID, ListingTypeProduct, "product item")
	service := createListing(t, listings, seller.ID, ListingTypeService, "service item")

	for _, id := range []string{product.ID, service.ID} {
		if _, err := listings.Get(id); err != nil {
			t.Errorf("Get %s failed: %v", id, err)
		}
	}

	if _, err := listings.Get("999"); !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestUpdateListingAuthorization(t *testing.T) {
	users, listings, _ := newTestServices(t)

	seller := registerUser(t, users, "owner", UserTypeSeller)
	stranger := registerUser(t, users, "stranger", UserTypeSeller)
	admin := registerUser(t, users, "moderator", UserTypeSeller)
	// Promote via direct patch; registration never creates admins.
	if err := users.store.Update(UsersFile, admin.ID, store.Record{"type": UserTypeAdmin}, usersKey, "id"); err != nil {
		t.Fatalf("admin promote failed: %v", err)
	}

	listing := createListing(t, listings, seller.ID, ListingTypeProduct, "guarded item")

	newTitle := "renamed by stranger"
	if _, err := listings.Update(listing.ID, stranger.ID, UpdateListingInput{Title: &newTitle}); !IsForbidden(err) {
		t.Errorf("expected forbidden for non-owner, got %v", err)
	}

	ownerTitle := "renamed by owner"
	updated, err := listings.Update(listing.ID, seller.ID, UpdateListingInput{Title: &ownerTitle})
	if err != nil {
		t.Fatalf("owner Update failed: %v", err)
	}
	if updated.Title != ownerTitle {
		t.Errorf("title = %q, want %q", updated.Title, ownerTitle)
	}

	adminTitle := "renamed by admin"
	if _, err := listings.Update(listing.ID, admin.ID, UpdateListingInput{Title: &adminTitle}); err != nil {
		t.Errorf("admin Update failed: %v", err)
	}
}

func TestSearchFeaturedFirst(t *testing.T) {
	users, listings, _ := newTestServices(t)

	seller := registerUser(t, users, "featured", UserTypeSeller)
	plain := createListing(t, listings, seller.ID, ListingTypeProduct, "plain listing")
	starred := createListing(t, listings, seller.ID, ListingTypeProduct, "starred listing")

	if err := listings.store.Update(ProductsFile, starred.ID, store.Record{"featured": true}, productsKey, "id"); err != nil {
		t.Fatalf("feature flag update failed: %v", err)
	}

	results, err := listings.Search(store.Record{"status": StatusActive}, ListingTypeProduct)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != starred.ID || results[1].ID != plain.ID {
		t.Errorf("featured listing not first: got [%s, %s]", results[0].ID, results[1].ID)
	}
}

func TestNearbyOrderingAndRadius(t *testing.T) {
	users, listings, _ := newTestServices(t)

	seller := registerUser(t, users, "nearbyseller", UserTypeSeller)
	ref := geo.Point{Lat: 40.7128, Lng: -74.0060}

	place := func(title string, km float64) {
		t.Helper()
		_, err := listings.Create(CreateListingInput{
			UserID:      seller.ID,
			Type:        ListingTypeProduct,
			Title:       title,
			Description: "distance test listing body",
			Location:    &Location{Lat: ref.Lat + km/111.19, Lng: ref.Lng},
		})
		if err != nil {
			t.Fatalf("Create %q failed: %v", title, err)
		}
	}

	place("two km away", 2)
	place("fifty km away", 50)
	place("ten km away", 10)

	results, err := listings.Nearby(ref, 25, "")
	if err != nil {
		t.Fatalf("Nearby failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Title != "two km away" || results[1].Title != "ten km away" {
		t.Errorf("wrong order: [%s, %s]", results[0].Title, results[1].Title)
	}
	if results[0].Distance == nil || results[1].Distance == nil {
		t.Fatalf("distance annotation missing")
	}
	if *results[0].Distance > *results[1].Distance {
		t.Errorf("results not sorted by distance")
	}

	// Radius above the configured maximum is clamped to it (50 km).
	results, err = listings.Nearby(ref, 10000, "")
	if err != nil {
		t.Fatalf("Nearby with huge radius failed: %v", err)
	}
	for _, l := range results {
		if *l.Distance > 50.1 {
			t.Errorf("listing %q beyond clamped radius: %f", l.Title, *l.Distance)
		}
	}
}

func TestDeleteListingBlockedByOpenOrder(t *testing.T) {
	users, listings, orders := newTestServices(t)

	seller := registerUser(t, users, "blockseller", UserTypeSeller)
	buyer := registerUser(t, users, "blockbuyer", UserTypeBuyer)
	listing := createListing(t, listings, seller.ID, ListingTypeProduct, "ordered item")

	if _, err := orders.Create(CreateOrderInput{BuyerID: buyer.ID, ListingID: listing.ID}); err != nil {
		t.Fatalf("order Create failed: %v", err)
	}

	if err := listings.Delete(listing.ID, seller.ID); !IsConflict(err) {
		t.Errorf("expected conflict deleting listing with open order, got %v", err)
	}
}

func TestRateListingMirrorsSeller(t *testing.T) {
	users, listings, _ := newTestServices(t)

	seller := registerUser(t, users, "ratedseller", UserTypeSeller)
	listing := createListing(t, listings, seller.ID, ListingTypeProduct, "rated item")

	if err := listings.Rate(listing.ID, 4); err != nil {
		t.Fatalf("Rate failed: %v", err)
	}

	rated, err := listings.Get(listing.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rated.Rating != 4 || rated.TotalRatings != 1 {
		t.Errorf("listing rating = %v/%d, want 4/1", rated.Rating, rated.TotalRatings)
	}

	owner, err := users.GetByID(seller.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if owner.Rating != 4 {
		t.Errorf("seller rating = %v, want 4", owner.Rating)
	}

	if err := listings.Rate(listing.ID, 0); !IsValidation(err) {
		t.Errorf("expected validation error for rating 0, got %v", err)
	}
}

func TestIncrementViewsAndFavorites(t *testing.T) {
	users, listings, _ := newTestServices(t)

	seller := registerUser(t, users, "viewseller", UserTypeSeller)
	listing := createListing(t, listings, seller.ID, ListingTypeProduct, "viewed item")

	for i := 0; i < 3; i++ {
		if err := listings.IncrementViews(listing.ID); err != nil {
			t.Fatalf("IncrementViews failed: %v", err)
		}
	}
	if err := listings.AddFavorite(listing.ID); err != nil {
		t.Fatalf("AddFavorite failed: %v", err)
	}

	got, err := listings.Get(listing.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Views != 3 || got.Favorites != 1 {
		t.Errorf("views/favorites = %d/%d, want 3/1", got.Views, got.Favorites)
	}
}

func TestListingTagAndImageLimitsConfigurable(t *testing.T) {
	st, err := store.New(t.TempDir(), store.Options{Logger: logger.Nop()})
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
		MaxTags:       10,
		MaxImages:     2,
		MaxRadiusKm:   50,
		DefaultRadius: 25,
	}, log)

	seller := registerUser(t, users, "limitseller", UserTypeSeller)

	created, err := listings.Create(CreateListingInput{
		UserID:      seller.ID,
		Type:        ListingTypeProduct,
		Title:       "generously tagged",
		Description: "six tags fit under the raised limit",
		Tags:        []string{"t1", "t2", "t3", "t4", "t5", "t6"},
	})
	if err != nil {
		t.Fatalf("Create with 6 tags failed: %v", err)
	}
	if len(created.Tags) != 6 {
		t.Errorf("tags = %d, want 6", len(created.Tags))
	}

	_, err = listings.Create(CreateListingInput{
		UserID:      seller.ID,
		Type:        ListingTypeProduct,
		Title:       "over-illustrated",
		Description: "three images exceed the lowered limit",
		Images:      []string{"a.jpg", "b.jpg", "c.jpg"},
	})
	if !IsValidation(err) {
		t.Errorf("expected validation error for 3 images, got %v", err)
	}

	images := []string{"a.jpg", "b.jpg", "c.jpg"}
	if _, err := listings.Update(created.ID, seller.ID, UpdateListingInput{Images: &images}); !IsValidation(err) {
		t.Errorf("expected validation error updating to 3 images, got %v", err)
	}
}
