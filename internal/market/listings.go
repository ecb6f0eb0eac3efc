package market

import (
	"fmt"
	"sort"

	"github.com/bazarhq/bazar/internal/geo"
	"github.com/bazarhq/bazar/internal/logger"
	"github.com/bazarhq/bazar/internal/metrics"
	"github.com/bazarhq/bazar/internal/store"
)

// Listing validation bounds.
const (
	titleMinLen       = 3
	titleMaxLen       = 100
	descriptionMinLen = 10
	descriptionMaxLen = 2000
	defaultMaxTags    = 5
	tagMinLen         = 2
	tagMaxLen         = 20
	defaultMaxImages  = 5
)

// ListingLimits carries the configurable listing constraints. MaxTags and
// MaxImages fall back to the package defaults when left zero.
type ListingLimits struct {
	MaxPerUser    int
	MaxTags       int
	MaxImages     int
	MaxRadiusKm   float64
	DefaultRadius float64
}

// ListingService manages product and service listings across the two
// collection files.
type ListingService struct {
	store  *store.Store
	users  *UserService
	limits ListingLimits
	log    logger.Logger
}

// NewListingService creates a listing service backed by the document store.
func NewListingService(st *store.Store, users *UserService, limits ListingLimits, log logger.Logger) *ListingService {
	if limits.MaxTags <= 0 {
		limits.MaxTags = defaultMaxTags
	}
	if limits.MaxImages <= 0 {
		limits.MaxImages = defaultMaxImages
	}
	return &ListingService{
		store:  st,
		users:  users,
		limits: limits,
		log:    log,
	}
}

// CreateListingInput is the payload for publishing a listing.
type CreateListingInput struct {
	UserID         string          `json:"user_id"`
	Type           string          `json:"type"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Price          float64         `json:"price"`
	Currency       string          `json:"currency"`
	CategoryID     string          `json:"category_id"`
	Tags           []string        `json:"tags"`
	Location       *Location       `json:"location"`
	Images         []string        `json:"images"`
	ProductDetails *ProductDetails `json:"product_details"`
	ServiceDetails *ServiceDetails `json:"service_details"`
}

// Create publishes a listing. The owner must be an active seller and
// under the per-user listing limit.
func (s *ListingService) Create(in CreateListingInput) (*Listing, error) {
	if err := s.validateListing(in); err != nil {
		metrics.ListingOperationsTotal.WithLabelValues("create", "invalid").Inc()
		return nil, err
	}

	owner, err := s.users.GetByID(in.UserID)
	if err != nil {
		metrics.ListingOperationsTotal.WithLabelValues("create", "not_found").Inc()
		return nil, err
	}
	if owner.Status != StatusActive {
		metrics.ListingOperationsTotal.WithLabelValues("create", "forbidden").Inc()
		return nil, fmt.Errorf("%w: account %s is suspended", ErrForbidden, in.UserID)
	}
	if !owner.IsSeller() {
		metrics.ListingOperationsTotal.WithLabelValues("create", "forbidden").Inc()
		return nil, fmt.Errorf("%w: account %s cannot sell", ErrForbidden, in.UserID)
	}

	if count := s.countByUser(in.UserID); count >= s.limits.MaxPerUser {
		metrics.ListingOperationsTotal.WithLabelValues("create", "conflict").Inc()
		return nil, fmt.Errorf("%w: listing limit of %d reached", ErrConflict, s.limits.MaxPerUser)
	}

	listing := Listing{
		UserID:      in.UserID,
		Type:        in.Type,
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		Currency:    in.Currency,
		CategoryID:  in.CategoryID,
		Tags:        in.Tags,
		Location:    owner.Location,
		Images:      in.Images,
		Status:      StatusActive,
	}
	if listing.Currency == "" {
		listing.Currency = "USD"
	}
	if listing.Tags == nil {
		listing.Tags = []string{}
	}
	if listing.Images == nil {
		listing.Images = []string{}
	}
	if in.Location != nil {
		listing.Location = *in.Location
	}

	switch in.Type {
	case ListingTypeProduct:
		listing.ProductDetails = in.ProductDetails
		if listing.ProductDetails == nil {
			listing.ProductDetails = &ProductDetails{Condition: "used", Pickup: true}
		}
	case ListingTypeService:
		listing.ServiceDetails = in.ServiceDetails
		if listing.ServiceDetails == nil {
			listing.ServiceDetails = &ServiceDetails{}
		}
	}

	rec, err := toRecord(listing)
	if err != nil {
		return nil, err
	}

	path, key := fileFor(in.Type)
	id, err := s.store.Insert(path, rec, key, "id")
	if err != nil {
		metrics.ListingOperationsTotal.WithLabelValues("create", "error").Inc()
		return nil, err
	}

	metrics.ListingOperationsTotal.WithLabelValues("create", "success").Inc()
	metrics.ActiveListings.WithLabelValues(in.Type).Inc()
	s.log.Info("Listing created",
		logger.String("listing_id", id),
		logger.String("user_id", in.UserID),
		logger.String("type", in.Type))

	return s.Get(id)
}

// Get loads a listing by id, checking the product file first and the
// service file second.
func (s *ListingService) Get(id string) (*Listing, error) {
	for _, c := range []struct {
		path string
		key  string
		typ  string
	}{
		{ProductsFile, productsKey, ListingTypeProduct},
		{ServicesFile, servicesKey, ListingTypeService},
	} {
		rec, err := s.store.FindByID(c.path, id, c.key, "id")
		if err == nil {
			listing, convErr := fromRecord[Listing](rec)
			if convErr != nil {
				return nil, convErr
			}
			if listing.Type == "" {
				listing.Type = c.typ
			}
			return listing, nil
		}
		if !store.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: listing %s", ErrNotFound, id)
}

// UpdateListingInput carries optional listing changes.
type UpdateListingInput struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Price       *float64  `json:"price"`
	CategoryID  *string   `json:"category_id"`
	Tags        *[]string `json:"tags"`
	Location    *Location `json:"location"`
	Images      *[]string `json:"images"`
	Status      *string   `json:"status"`
}

// Update applies changes to a listing. Only the owner or an admin may
// update it.
func (s *ListingService) Update(id, actorID string, in UpdateListingInput) (*Listing, error) {
	listing, err := s.Get(id)
	if err != nil {
		metrics.ListingOperationsTotal.WithLabelValues("update", "not_found").Inc()
		return nil, err
	}

	if err := s.authorize(listing, actorID); err != nil {
		metrics.ListingOperationsTotal.WithLabelValues("update", "forbidden").Inc()
		return nil, err
	}

	patch := store.Record{}
	if in.Title != nil {
		if l := len(*in.Title); l < titleMinLen || l > titleMaxLen {
			return nil, validationf("title must be %d-%d characters", titleMinLen, titleMaxLen)
		}
		patch["title"] = *in.Title
	}
	if in.Description != nil {
		if l := len(*in.Description); l < descriptionMinLen || l > descriptionMaxLen {
			return nil, validationf("description must be %d-%d characters", descriptionMinLen, descriptionMaxLen)
		}
		patch["description"] = *in.Description
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return nil, validationf("price must not be negative")
		}
		patch["price"] = *in.Price
	}
	if in.CategoryID != nil {
		patch["category_id"] = *in.CategoryID
	}
	if in.Tags != nil {
		if err := s.validateTags(*in.Tags); err != nil {
			return nil, err
		}
		patch["tags"] = toAnySlice(*in.Tags)
	}
	if in.Location != nil {
		locRec, convErr := toRecord(*in.Location)
		if convErr != nil {
			return nil, convErr
		}
		patch["location"] = map[string]any(locRec)
	}
	if in.Images != nil {
		if len(*in.Images) > s.limits.MaxImages {
			return nil, validationf("at most %d images allowed", s.limits.MaxImages)
		}
		patch["images"] = toAnySlice(*in.Images)
	}
	if in.Status != nil {
		if *in.Status != StatusActive && *in.Status != StatusSuspended {
			return nil, validationf("invalid listing status: %s", *in.Status)
		}
		patch["status"] = *in.Status
	}

	path, key := fileFor(listing.Type)
	if err := s.store.Update(path, id, patch, key, "id"); err != nil {
		metrics.ListingOperationsTotal.WithLabelValues("update", "error").Inc()
		return nil, err
	}

	metrics.ListingOperationsTotal.WithLabelValues("update", "success").Inc()
	return s.Get(id)
}

// Delete removes a listing. Refused while open orders reference it.
func (s *ListingService) Delete(id, actorID string) error {
	listing, err := s.Get(id)
	if err != nil {
		metrics.ListingOperationsTotal.WithLabelValues("delete", "not_found").Inc()
		return err
	}

	if err := s.authorize(listing, actorID); err != nil {
		metrics.ListingOperationsTotal.WithLabelValues("delete", "forbidden").Inc()
		return err
	}

	if s.hasOpenOrders(id) {
		metrics.ListingOperationsTotal.WithLabelValues("delete", "conflict").Inc()
		return fmt.Errorf("%w: listing %s has open orders", ErrConflict, id)
	}

	path, key := fileFor(listing.Type)
	if err := s.store.Delete(path, id, key, "id"); err != nil {
		metrics.ListingOperationsTotal.WithLabelValues("delete", "error").Inc()
		return err
	}

	metrics.ListingOperationsTotal.WithLabelValues("delete", "success").Inc()
	metrics.ActiveListings.WithLabelValues(listing.Type).Dec()
	s.log.Info("Listing deleted",
		logger.String("listing_id", id),
		logger.String("actor_id", actorID))
	return nil
}

// Search returns listings matching criteria, optionally restricted to one
// listing type. Results order featured listings first, then newest first.
func (s *ListingService) Search(criteria store.Record, listingType string) ([]*Listing, error) {
	matches, err := s.collect(listingType, criteria)
	if err != nil {
		metrics.ListingOperationsTotal.WithLabelValues("search", "error").Inc()
		return nil, err
	}

	listings, err := fromRecords[Listing](matches)
	if err != nil {
		return nil, err
	}

	sortListings(listings)
	metrics.ListingOperationsTotal.WithLabelValues("search", "success").Inc()
	return listings, nil
}

// Nearby returns active listings within radiusKm of ref, nearest first.
// Each result carries the computed distance in kilometers.
func (s *ListingService) Nearby(ref geo.Point, radiusKm float64, listingType string) ([]*Listing, error) {
	if radiusKm <= 0 {
		radiusKm = s.limits.DefaultRadius
	}
	if radiusKm > s.limits.MaxRadiusKm {
		radiusKm = s.limits.MaxRadiusKm
	}

	active := store.Record{"status": StatusActive}
	matches, err := s.collect(listingType, active)
	if err != nil {
		metrics.ListingOperationsTotal.WithLabelValues("nearby", "error").Inc()
		return nil, err
	}

	nearby := geo.Query(ref, radiusKm, matches)
	listings, err := fromRecords[Listing](nearby)
	if err != nil {
		return nil, err
	}

	metrics.ListingOperationsTotal.WithLabelValues("nearby", "success").Inc()
	return listings, nil
}

// Featured returns up to limit featured active listings, newest first.
func (s *ListingService) Featured(limit int) ([]*Listing, error) {
	matches, err := s.collect("", store.Record{"status": StatusActive, "featured": true})
	if err != nil {
		return nil, err
	}

	listings, err := fromRecords[Listing](matches)
	if err != nil {
		return nil, err
	}

	sortListings(listings)
	return clip(listings, limit), nil
}

// Recent returns up to limit active listings, newest first.
func (s *ListingService) Recent(limit int) ([]*Listing, error) {
	matches, err := s.collect("", store.Record{"status": StatusActive})
	if err != nil {
		return nil, err
	}

	listings, err := fromRecords[Listing](matches)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(listings, func(i, j int) bool {
		return listings[i].CreatedAt > listings[j].CreatedAt
	})
	return clip(listings, limit), nil
}

// ListByUser returns all listings owned by a user, both types.
func (s *ListingService) ListByUser(userID string) ([]*Listing, error) {
	matches, err := s.collect("", store.Record{"user_id": userID})
	if err != nil {
		return nil, err
	}
	return fromRecords[Listing](matches)
}

// IncrementViews bumps a listing's view counter.
func (s *ListingService) IncrementViews(id string) error {
	listing, err := s.Get(id)
	if err != nil {
		return err
	}

	path, key := fileFor(listing.Type)
	return s.store.Update(path, id, store.Record{"views": listing.Views + 1}, key, "id")
}

// AddFavorite bumps a listing's favorite counter.
func (s *ListingService) AddFavorite(id string) error {
	listing, err := s.Get(id)
	if err != nil {
		return err
	}

	path, key := fileFor(listing.Type)
	return s.store.Update(path, id, store.Record{"favorites": listing.Favorites + 1}, key, "id")
}

// Rate folds a 1-5 rating into the listing's running average and mirrors
// it onto the seller's account rating.
func (s *ListingService) Rate(id string, rating float64) error {
	if rating < 1 || rating > 5 {
		return validationf("rating must be between 1 and 5, got %f", rating)
	}

	listing, err := s.Get(id)
	if err != nil {
		return err
	}

	total := listing.TotalRatings + 1
	average := (listing.Rating*float64(listing.TotalRatings) + rating) / float64(total)

	path, key := fileFor(listing.Type)
	if err := s.store.Update(path, id, store.Record{
		"rating":        roundTo(average, 2),
		"total_ratings": total,
	}, key, "id"); err != nil {
		return err
	}

	if err := s.users.UpdateRating(listing.UserID, rating); err != nil {
		s.log.Warn("Failed to mirror rating to seller",
			logger.String("listing_id", id),
			logger.String("user_id", listing.UserID),
			logger.Error(err))
	}

	metrics.ListingOperationsTotal.WithLabelValues("rate", "success").Inc()
	return nil
}

// collect gathers raw records from the file(s) selected by listingType,
// stamping the type field so decoded listings always carry it.
func (s *ListingService) collect(listingType string, criteria store.Record) ([]store.Record, error) {
	type source struct {
		path string
		key  string
		typ  string
	}

	var files []source
	switch listingType {
	case ListingTypeProduct:
		files = []source{{ProductsFile, productsKey, ListingTypeProduct}}
	case ListingTypeService:
		files = []source{{ServicesFile, servicesKey, ListingTypeService}}
	case "":
		files = []source{
			{ProductsFile, productsKey, ListingTypeProduct},
			{ServicesFile, servicesKey, ListingTypeService},
		}
	default:
		return nil, validationf("invalid listing type: %s", listingType)
	}

	var out []store.Record
	for _, f := range files {
		matches, err := s.store.Search(f.path, criteria, f.key)
		if err != nil {
			return nil, err
		}
		for _, rec := range matches {
			if _, ok := rec["type"]; !ok {
				rec["type"] = f.typ
			}
		}
		out = append(out, matches...)
	}
	return out, nil
}

func (s *ListingService) authorize(listing *Listing, actorID string) error {
	if listing.UserID == actorID {
		return nil
	}

	actor, err := s.users.GetByID(actorID)
	if err == nil && actor.IsAdmin() {
		return nil
	}
	return fmt.Errorf("%w: user %s does not own listing %s", ErrForbidden, actorID, listing.ID)
}

func (s *ListingService) countByUser(userID string) int {
	count := 0
	for _, f := range []struct {
		path string
		key  string
	}{{ProductsFile, productsKey}, {ServicesFile, servicesKey}} {
		matches, err := s.store.Search(f.path, store.Record{"user_id": userID}, f.key)
		if err == nil {
			count += len(matches)
		}
	}
	return count
}

func (s *ListingService) hasOpenOrders(listingID string) bool {
	matches, err := s.store.Search(OrdersFile, store.Record{"listing_id": listingID}, ordersKey)
	if err != nil {
		return false
	}

	for _, rec := range matches {
		switch rec["status"] {
		case OrderStatusPending, OrderStatusApproved, OrderStatusInProgress:
			return true
		}
	}
	return false
}

func (s *ListingService) validateListing(in CreateListingInput) error {
	if in.Type != ListingTypeProduct && in.Type != ListingTypeService {
		return validationf("invalid listing type: %s", in.Type)
	}
	if l := len(in.Title); l < titleMinLen || l > titleMaxLen {
		return validationf("title must be %d-%d characters", titleMinLen, titleMaxLen)
	}
	if l := len(in.Description); l < descriptionMinLen || l > descriptionMaxLen {
		return validationf("description must be %d-%d characters", descriptionMinLen, descriptionMaxLen)
	}
	if in.Price < 0 {
		return validationf("price must not be negative")
	}
	if err := s.validateTags(in.Tags); err != nil {
		return err
	}
	if len(in.Images) > s.limits.MaxImages {
		return validationf("at most %d images allowed", s.limits.MaxImages)
	}
	return nil
}

func (s *ListingService) validateTags(tags []string) error {
	if len(tags) > s.limits.MaxTags {
		return validationf("at most %d tags allowed", s.limits.MaxTags)
	}
	for _, tag := range tags {
		if l := len(tag); l < tagMinLen || l > tagMaxLen {
			return validationf("tag %q must be %d-%d characters", tag, tagMinLen, tagMaxLen)
		}
	}
	return nil
}

// sortListings orders featured listings before non-featured, newest first
// within each group.
func sortListings(listings []*Listing) {
	sort.SliceStable(listings, func(i, j int) bool {
		if listings[i].Featured != listings[j].Featured {
			return listings[i].Featured
		}
		return listings[i].CreatedAt > listings[j].CreatedAt
	})
}

func fileFor(listingType string) (path, key string) {
	if listingType == ListingTypeService {
		return ServicesFile, servicesKey
	}
	return ProductsFile, productsKey
}

func clip[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func toAnySlice(items []string) []any {
	out := make([]any, len(items))
	for i, v := range items {
		out[i] = v
	}
	return out
}
