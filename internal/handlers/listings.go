package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/bazarhq/bazar/internal/geo"
	"github.com/bazarhq/bazar/internal/logger"
	"github.com/bazarhq/bazar/internal/market"
	"github.com/bazarhq/bazar/internal/middleware"
	"github.com/bazarhq/bazar/internal/store"
)

type ListingHandler struct {
	listings *market.ListingService
}

func NewListingHandler(listings *market.ListingService) *ListingHandler {
	return &ListingHandler{listings: listings}
}

// Create publishes a listing for the authenticated seller.
func (h *ListingHandler) Create(c *fiber.Ctx) error {
	log := middleware.GetLogger(c)

	var in market.CreateListingInput
	if err := c.BodyParser(&in); err != nil {
		log.Error("Failed to parse request body", logger.Error(err))
		return middleware.BadRequest(c, "Invalid JSON body")
	}

	if userID := middleware.GetUserID(c); userID != "" {
		in.UserID = userID
	}

	listing, err := h.listings.Create(in)
	if err != nil {
		return middleware.DomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(listing)
}

// Get returns a listing and bumps its view counter.
func (h *ListingHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")

	listing, err := h.listings.Get(id)
	if err != nil {
		return middleware.DomainError(c, err)
	}

	if err := h.listings.IncrementViews(id); err != nil {
		middleware.GetLogger(c).Warn("Failed to increment views",
			logger.String("listing_id", id),
			logger.Error(err))
	} else {
		listing.Views++
	}

	return c.JSON(listing)
}

// Update applies changes to a listing owned by the actor.
func (h *ListingHandler) Update(c *fiber.Ctx) error {
	var in market.UpdateListingInput
	if err := c.BodyParser(&in); err != nil {
		return middleware.BadRequest(c, "Invalid JSON body")
	}

	listing, err := h.listings.Update(c.Params("id"), actorID(c), in)
	if err != nil {
		return middleware.DomainError(c, err)
	}
	return c.JSON(listing)
}

// Delete removes a listing owned by the actor.
func (h *ListingHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.listings.Delete(id, actorID(c)); err != nil {
		return middleware.DomainError(c, err)
	}
	return c.JSON(fiber.Map{"message": "listing deleted", "id": id})
}

// Search filters listings by query parameters. Supported criteria:
// type, category_id, user_id, tag, featured, status.
func (h *ListingHandler) Search(c *fiber.Ctx) error {
	criteria := store.Record{}
	if v := c.Query("category_id"); v != "" {
		criteria["category_id"] = v
	}
	if v := c.Query("user_id"); v != "" {
		criteria["user_id"] = v
	}
	if v := c.Query("tag"); v != "" {
		criteria["tags"] = []string{v}
	}
	if v := c.Query("featured"); v != "" {
		criteria["featured"] = v == "true"
	}
	if v := c.Query("status", market.StatusActive); v != "" {
		criteria["status"] = v
	}

	listings, err := h.listings.Search(criteria, c.Query("type"))
	if err != nil {
		return middleware.DomainError(c, err)
	}

	return c.JSON(fiber.Map{
		"listings": listings,
		"count":    len(listings),
	})
}

// Nearby returns active listings within a radius of the given point,
// nearest first, each annotated with its distance in kilometers.
func (h *ListingHandler) Nearby(c *fiber.Ctx) error {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		return middleware.BadRequest(c, "lat is required and must be a number")
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		return middleware.BadRequest(c, "lng is required and must be a number")
	}

	radius := 0.0
	if v := c.Query("radius"); v != "" {
		if radius, err = strconv.ParseFloat(v, 64); err != nil {
			return middleware.BadRequest(c, "radius must be a number")
		}
	}

	listings, err := h.listings.Nearby(geo.Point{Lat: lat, Lng: lng}, radius, c.Query("type"))
	if err != nil {
		return middleware.DomainError(c, err)
	}

	return c.JSON(fiber.Map{
		"listings": listings,
		"count":    len(listings),
	})
}

// Featured returns featured active listings.
func (h *ListingHandler) Featured(c *fiber.Ctx) error {
	listings, err := h.listings.Featured(c.QueryInt("limit", 10))
	if err != nil {
		return middleware.DomainError(c, err)
	}
	return c.JSON(fiber.Map{"listings": listings, "count": len(listings)})
}

// Recent returns the newest active listings.
func (h *ListingHandler) Recent(c *fiber.Ctx) error {
	listings, err := h.listings.Recent(c.QueryInt("limit", 10))
	if err != nil {
		return middleware.DomainError(c, err)
	}
	return c.JSON(fiber.Map{"listings": listings, "count": len(listings)})
}

// Favorite bumps a listing's favorite counter.
func (h *ListingHandler) Favorite(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.listings.AddFavorite(id); err != nil {
		return middleware.DomainError(c, err)
	}
	return c.JSON(fiber.Map{"message": "favorite added", "id": id})
}

// Rate applies a 1-5 rating to a listing.
func (h *ListingHandler) Rate(c *fiber.Ctx) error {
	body := struct {
		Rating float64 `json:"rating"`
	}{}
	if err := c.BodyParser(&body); err != nil {
		return middleware.BadRequest(c, "Invalid JSON body")
	}

	id := c.Params("id")
	if err := h.listings.Rate(id, body.Rating); err != nil {
		return middleware.DomainError(c, err)
	}
	return c.JSON(fiber.Map{"message": "rating recorded", "id": id})
}

// actorID prefers the authenticated account id, falling back to an
// explicit actor_id query parameter when auth is disabled.
func actorID(c *fiber.Ctx) string {
	if id := middleware.GetUserID(c); id != "" {
		return id
	}
	return c.Query("actor_id")
}
