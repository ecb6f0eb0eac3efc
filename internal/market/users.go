package market

import (
	"fmt"
	"strings"
	"time"

	"github.com/bazarhq/bazar/internal/logger"
	"github.com/bazarhq/bazar/internal/metrics"
	"github.com/bazarhq/bazar/internal/store"
)

// EnsureCollections seeds every collection file the marketplace uses.
// Called once at startup; safe to call again.
func EnsureCollections(st *store.Store) error {
	collections := []struct {
		path string
		key  string
	}{
		{UsersFile, usersKey},
		{ProductsFile, productsKey},
		{ServicesFile, servicesKey},
		{OrdersFile, ordersKey},
		{ImagesFile, imagesKey},
	}

	for _, c := range collections {
		if err := st.EnsureCollection(c.path, c.key); err != nil {
			return fmt.Errorf("ensure collection %s: %w", c.path, err)
		}
	}
	return nil
}

// UserService manages marketplace accounts.
type UserService struct {
	store           *store.Store
	defaultLocation Location
	log             logger.Logger
}

// NewUserService creates a user service backed by the document store.
func NewUserService(st *store.Store, defaultLocation Location, log logger.Logger) *UserService {
	return &UserService{
		store:           st,
		defaultLocation: defaultLocation,
		log:             log,
	}
}

// RegisterUserInput is the payload for creating an account.
type RegisterUserInput struct {
	Username string    `json:"username"`
	Type     string    `json:"type"`
	Email    string    `json:"email"`
	Phone    string    `json:"phone"`
	Location *Location `json:"location"`
}

// Register creates a new account. Usernames are unique; accounts start
// active with a zero rating.
func (s *UserService) Register(in RegisterUserInput) (*User, error) {
	if err := s.validateRegistration(in); err != nil {
		metrics.UserOperationsTotal.WithLabelValues("register", "invalid").Inc()
		return nil, err
	}

	if _, err := s.GetByUsername(in.Username); err == nil {
		metrics.UserOperationsTotal.WithLabelValues("register", "conflict").Inc()
		return nil, fmt.Errorf("%w: username %q already taken", ErrConflict, in.Username)
	}

	user := User{
		Username: in.Username,
		Type:     in.Type,
		Email:    in.Email,
		Phone:    in.Phone,
		Location: s.defaultLocation,
		Status:   StatusActive,
	}
	if in.Type == "" {
		user.Type = UserTypeBuyer
	}
	if in.Location != nil {
		user.Location = *in.Location
	}

	rec, err := toRecord(user)
	if err != nil {
		return nil, err
	}

	id, err := s.store.Insert(UsersFile, rec, usersKey, "id")
	if err != nil {
		metrics.UserOperationsTotal.WithLabelValues("register", "error").Inc()
		return nil, err
	}

	metrics.UserOperationsTotal.WithLabelValues("register", "success").Inc()
	s.log.Info("User registered",
		logger.String("user_id", id),
		logger.String("username", in.Username),
		logger.String("type", user.Type))

	return s.GetByID(id)
}

// GetByID loads an account by id.
func (s *UserService) GetByID(id string) (*User, error) {
	rec, err := s.store.FindByID(UsersFile, id, usersKey, "id")
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		return nil, err
	}
	return fromRecord[User](rec)
}

// GetByUsername loads an account by its unique username.
func (s *UserService) GetByUsername(username string) (*User, error) {
	matches, err := s.store.Search(UsersFile, store.Record{"username": username}, usersKey)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: username %s", ErrNotFound, username)
	}
	return fromRecord[User](matches[0])
}

// UpdateUserInput carries optional profile changes.
type UpdateUserInput struct {
	Email *string `json:"email"`
	Phone *string `json:"phone"`
	Type  *string `json:"type"`
}

// Update applies profile changes to an account.
func (s *UserService) Update(id string, in UpdateUserInput) (*User, error) {
	patch := store.Record{}
	if in.Email != nil {
		if *in.Email != "" && !strings.Contains(*in.Email, "@") {
			return nil, validationf("invalid email: %s", *in.Email)
		}
		patch["email"] = *in.Email
	}
	if in.Phone != nil {
		patch["phone"] = *in.Phone
	}
	if in.Type != nil {
		if !validUserType(*in.Type) {
			return nil, validationf("invalid user type: %s", *in.Type)
		}
		patch["type"] = *in.Type
	}

	if err := s.applyPatch(id, patch, "update"); err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

// UpdateLocation stores new coordinates for an account.
func (s *UserService) UpdateLocation(id string, loc Location) (*User, error) {
	if loc.Lat < -90 || loc.Lat > 90 {
		return nil, validationf("invalid latitude: %f", loc.Lat)
	}
	if loc.Lng < -180 || loc.Lng > 180 {
		return nil, validationf("invalid longitude: %f", loc.Lng)
	}

	locRec, err := toRecord(loc)
	if err != nil {
		return nil, err
	}

	if err := s.applyPatch(id, store.Record{"location": map[string]any(locRec)}, "update_location"); err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

// Suspend marks an account suspended. Suspended accounts cannot create
// listings or orders.
func (s *UserService) Suspend(id, reason string) error {
	return s.applyPatch(id, store.Record{
		"status":         StatusSuspended,
		"suspended_at":   time.Now().Format(time.RFC3339),
		"suspend_reason": reason,
	}, "suspend")
}

// Activate reinstates a suspended account.
func (s *UserService) Activate(id string) error {
	return s.applyPatch(id, store.Record{
		"status":         StatusActive,
		"suspended_at":   "",
		"suspend_reason": "",
	}, "activate")
}

// UpdateRating folds a new 1-5 rating into the running average.
func (s *UserService) UpdateRating(id string, rating float64) error {
	if rating < 1 || rating > 5 {
		return validationf("rating must be between 1 and 5, got %f", rating)
	}

	user, err := s.GetByID(id)
	if err != nil {
		return err
	}

	total := user.TotalRatings + 1
	average := (user.Rating*float64(user.TotalRatings) + rating) / float64(total)

	return s.applyPatch(id, store.Record{
		"rating":        roundTo(average, 2),
		"total_ratings": total,
	}, "rate")
}

// TouchLastActive records an authentication or other account activity.
func (s *UserService) TouchLastActive(id string) {
	patch := store.Record{"last_active": time.Now().Format(time.RFC3339)}
	if err := s.store.Update(UsersFile, id, patch, usersKey, "id"); err != nil {
		s.log.Warn("Failed to update last_active",
			logger.String("user_id", id),
			logger.Error(err))
	}
}

// Delete removes an account. Refused while the account still has active
// listings or open orders.
func (s *UserService) Delete(id string) error {
	if _, err := s.GetByID(id); err != nil {
		metrics.UserOperationsTotal.WithLabelValues("delete", "not_found").Inc()
		return err
	}

	if s.hasActiveListings(id) {
		metrics.UserOperationsTotal.WithLabelValues("delete", "conflict").Inc()
		return fmt.Errorf("%w: user %s still has active listings", ErrConflict, id)
	}

	if s.hasOpenOrders(id) {
		metrics.UserOperationsTotal.WithLabelValues("delete", "conflict").Inc()
		return fmt.Errorf("%w: user %s still has open orders", ErrConflict, id)
	}

	if err := s.store.Delete(UsersFile, id, usersKey, "id"); err != nil {
		metrics.UserOperationsTotal.WithLabelValues("delete", "error").Inc()
		return err
	}

	metrics.UserOperationsTotal.WithLabelValues("delete", "success").Inc()
	s.log.Info("User deleted", logger.String("user_id", id))
	return nil
}

// UserStats summarizes an account's marketplace activity.
type UserStats struct {
	TotalListings   int     `json:"total_listings"`
	ActiveListings  int     `json:"active_listings"`
	BuyerOrders     int     `json:"buyer_orders"`
	SellerOrders    int     `json:"seller_orders"`
	CompletedOrders int     `json:"completed_orders"`
	Rating          float64 `json:"rating"`
	TotalRatings    int     `json:"total_ratings"`
	MemberSince     string  `json:"member_since"`
}

// Stats aggregates listing and order counts for an account.
func (s *UserService) Stats(id string) (*UserStats, error) {
	user, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	stats := &UserStats{
		Rating:       user.Rating,
		TotalRatings: user.TotalRatings,
		MemberSince:  user.CreatedAt,
	}

	for _, file := range []struct {
		path string
		key  string
	}{{ProductsFile, productsKey}, {ServicesFile, servicesKey}} {
		listings, err := s.store.Search(file.path, store.Record{"user_id": id}, file.key)
		if err != nil {
			return nil, err
		}
		stats.TotalListings += len(listings)
		for _, rec := range listings {
			if rec["status"] == StatusActive {
				stats.ActiveListings++
			}
		}
	}

	buyerOrders, err := s.store.Search(OrdersFile, store.Record{"buyer_id": id}, ordersKey)
	if err != nil {
		return nil, err
	}
	sellerOrders, err := s.store.Search(OrdersFile, store.Record{"seller_id": id}, ordersKey)
	if err != nil {
		return nil, err
	}

	stats.BuyerOrders = len(buyerOrders)
	stats.SellerOrders = len(sellerOrders)
	for _, rec := range append(buyerOrders, sellerOrders...) {
		if rec["status"] == OrderStatusCompleted {
			stats.CompletedOrders++
		}
	}

	return stats, nil
}

func (s *UserService) applyPatch(id string, patch store.Record, op string) error {
	if err := s.store.Update(UsersFile, id, patch, usersKey, "id"); err != nil {
		if store.IsNotFound(err) {
			metrics.UserOperationsTotal.WithLabelValues(op, "not_found").Inc()
			return fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		metrics.UserOperationsTotal.WithLabelValues(op, "error").Inc()
		return err
	}
	metrics.UserOperationsTotal.WithLabelValues(op, "success").Inc()
	return nil
}

func (s *UserService) hasActiveListings(userID string) bool {
	for _, file := range []struct {
		path string
		key  string
	}{{ProductsFile, productsKey}, {ServicesFile, servicesKey}} {
		matches, err := s.store.Search(file.path, store.Record{
			"user_id": userID,
			"status":  StatusActive,
		}, file.key)
		if err == nil && len(matches) > 0 {
			return true
		}
	}
	return false
}

func (s *UserService) hasOpenOrders(userID string) bool {
	open := map[string]bool{
		OrderStatusPending:    true,
		OrderStatusApproved:   true,
		OrderStatusInProgress: true,
	}

	for _, field := range []string{"buyer_id", "seller_id"} {
		matches, err := s.store.Search(OrdersFile, store.Record{field: userID}, ordersKey)
		if err != nil {
			continue
		}
		for _, rec := range matches {
			if status, ok := rec["status"].(string); ok && open[status] {
				return true
			}
		}
	}
	return false
}

func (s *UserService) validateRegistration(in RegisterUserInput) error {
	if len(in.Username) < 3 || len(in.Username) > 30 {
		return validationf("username must be 3-30 characters")
	}
	if strings.ContainsAny(in.Username, " \t\n") {
		return validationf("username must not contain whitespace")
	}
	if in.Type != "" && !validUserType(in.Type) {
		return validationf("invalid user type: %s", in.Type)
	}
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		return validationf("invalid email: %s", in.Email)
	}
	return nil
}

func validUserType(t string) bool {
	switch t {
	case UserTypeBuyer, UserTypeSeller, UserTypeBoth:
		return true
	}
	return false
}

func roundTo(v float64, places int) float64 {
	shift := 1.0
	for i := 0; i < places; i++ {
		shift *= 10
	}
	return float64(int(v*shift+0.5)) / shift
}
