package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bazarhq/bazar/internal/auth"
	"github.com/bazarhq/bazar/internal/logger"
	"github.com/bazarhq/bazar/internal/market"
	"github.com/bazarhq/bazar/internal/store"
)

// testEnv wires handlers against a real store in a temp directory so the
// HTTP flows exercise the full stack below the router.
type testEnv struct {
	app      *fiber.App
	store    *store.Store
	users    *market.UserService
	listings *market.ListingService
	orders   *market.OrderService
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.New(t.TempDir(), store.Options{Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	if err := market.EnsureCollections(st); err != nil {
		t.Fatalf("EnsureCollections failed: %v", err)
	}

	log := logger.Nop()
	users := market.NewUserService(st, market.Location{Lat: 40.7128, Lng: -74.0060, Address: "New York, NY"}, log)
	listings := market.NewListingService(st, users, market.ListingLimits{
		MaxPerUser:    10,
		MaxRadiusKm:   50,
		DefaultRadius: 25,
	}, log)
	orders := market.NewOrderService(st, users, listings, log)

	jwtService := auth.NewJWTService("test-secret", time.Hour, 24*time.Hour, "bazar-test")

	authHandler := NewAuthHandler(users, jwtService)
	userHandler := NewUserHandler(users)
	listingHandler := NewListingHandler(listings)
	orderHandler := NewOrderHandler(orders)
	healthHandler := NewHealthHandler(st, "test")

	app := fiber.New()

	app.Post("/auth/login", authHandler.Login)
	app.Post("/auth/refresh", authHandler.Refresh)

	app.Get("/health", healthHandler.Check)
	app.Get("/health/live", healthHandler.Liveness)
	app.Get("/health/ready", healthHandler.Readiness)

	app.Post("/users", userHandler.Register)
	app.Get("/users/:id", userHandler.Get)
	app.Put("/users/:id", userHandler.Update)
	app.Delete("/users/:id", userHandler.Delete)
	app.Put("/users/:id/location", userHandler.UpdateLocation)
	app.Post("/users/:id/suspend", userHandler.Suspend)
	app.Post("/users/:id/activate", userHandler.Activate)
	app.Get("/users/:id/stats", userHandler.Stats)

	app.Get("/listings/nearby", listingHandler.Nearby)
	app.Get("/listings/featured", listingHandler.Featured)
	app.Get("/listings/recent", listingHandler.Recent)
	app.Post("/listings", listingHandler.Create)
	app.Get("/listings", listingHandler.Search)
	app.Get("/listings/:id", listingHandler.Get)
	app.Put("/listings/:id", listingHandler.Update)
	app.Delete("/listings/:id", listingHandler.Delete)
	app.Post("/listings/:id/favorite", listingHandler.Favorite)
	app.Post("/listings/:id/rate", listingHandler.Rate)

	app.Post("/orders", orderHandler.Create)
	app.Get("/orders", orderHandler.List)
	app.Get("/orders/:id", orderHandler.Get)
	app.Put("/orders/:id/status", orderHandler.UpdateStatus)
	app.Post("/orders/:id/cancel", orderHandler.Cancel)

	return &testEnv{app: app, store: st, users: users, listings: listings, orders: orders}
}

func (e *testEnv) request(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.app.Test(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return result
}

func (e *testEnv) registerSeller(t *testing.T, username string) *market.User {
	t.Helper()

	user, err := e.users.Register(market.RegisterUserInput{Username: username, Type: market.UserTypeSeller})
	if err != nil {
		t.Fatalf("Register %s failed: %v", username, err)
	}
	return user
}

func (e *testEnv) registerBuyer(t *testing.T, username string) *market.User {
	t.Helper()

	user, err := e.users.Register(market.RegisterUserInput{Username: username, Type: market.UserTypeBuyer})
	if err != nil {
		t.Fatalf("Register %s failed: %v", username, err)
	}
	return user
}

func (e *testEnv) createListing(t *testing.T, userID, title string) *market.Listing {
	t.Helper()

	listing, err := e.listings.Create(market.CreateListingInput{
		UserID:      userID,
		Type:        market.ListingTypeProduct,
		Title:       title,
		Description: "a perfectly reasonable description",
		Price:       25,
		Tags:        []string{"tools", "garden"},
	})
	if err != nil {
		t.Fatalf("Create listing %q failed: %v", title, err)
	}
	return listing
}
