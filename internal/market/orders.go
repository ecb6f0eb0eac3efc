package market

import (
	"fmt"
	"sort"
	"time"

	"github.com/bazarhq/bazar/internal/logger"
	"github.com/bazarhq/bazar/internal/metrics"
	"github.com/bazarhq/bazar/internal/store"
)

// validTransitions maps an order status to the statuses it may move to.
// Completed and cancelled are terminal.
var validTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusApproved, OrderStatusCancelled},
	OrderStatusApproved:   {OrderStatusInProgress, OrderStatusCancelled},
	OrderStatusInProgress: {OrderStatusCompleted, OrderStatusCancelled},
}

// OrderService manages purchases and their status lifecycle.
type OrderService struct {
	store    *store.Store
	users    *UserService
	listings *ListingService
	log      logger.Logger
}

// NewOrderService creates an order service backed by the document store.
func NewOrderService(st *store.Store, users *UserService, listings *ListingService, log logger.Logger) *OrderService {
	return &OrderService{
		store:    st,
		users:    users,
		listings: listings,
		log:      log,
	}
}

// CreateOrderInput is the payload for placing an order.
type CreateOrderInput struct {
	BuyerID        string               `json:"buyer_id"`
	ListingID      string               `json:"listing_id"`
	Quantity       int                  `json:"quantity"`
	PaymentMethod  string               `json:"payment_method"`
	DeliveryMethod string               `json:"delivery_method"`
	DeliveryAddr   string               `json:"delivery_address"`
	Notes          string               `json:"notes"`
	ServiceDetails *OrderServiceDetails `json:"service_details"`
}

// Create places an order against an active listing. Listing title, type
// and unit price are snapshotted so later listing edits do not rewrite
// order history. Buyers cannot order their own listings.
func (s *OrderService) Create(in CreateOrderInput) (*Order, error) {
	buyer, err := s.users.GetByID(in.BuyerID)
	if err != nil {
		metrics.OrderOperationsTotal.WithLabelValues("create", "not_found").Inc()
		return nil, err
	}
	if buyer.Status != StatusActive {
		metrics.OrderOperationsTotal.WithLabelValues("create", "forbidden").Inc()
		return nil, fmt.Errorf("%w: account %s is suspended", ErrForbidden, in.BuyerID)
	}
	if !buyer.IsBuyer() {
		metrics.OrderOperationsTotal.WithLabelValues("create", "forbidden").Inc()
		return nil, fmt.Errorf("%w: account %s cannot buy", ErrForbidden, in.BuyerID)
	}

	listing, err := s.listings.Get(in.ListingID)
	if err != nil {
		metrics.OrderOperationsTotal.WithLabelValues("create", "not_found").Inc()
		return nil, err
	}
	if listing.Status != StatusActive {
		metrics.OrderOperationsTotal.WithLabelValues("create", "conflict").Inc()
		return nil, fmt.Errorf("%w: listing %s is not active", ErrConflict, in.ListingID)
	}
	if listing.UserID == in.BuyerID {
		metrics.OrderOperationsTotal.WithLabelValues("create", "invalid").Inc()
		return nil, validationf("cannot order your own listing")
	}

	quantity := in.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	now := time.Now().Format(time.RFC3339)
	order := Order{
		BuyerID:        in.BuyerID,
		SellerID:       listing.UserID,
		ListingID:      in.ListingID,
		ListingType:    listing.Type,
		ListingTitle:   listing.Title,
		Quantity:       quantity,
		UnitPrice:      listing.Price,
		TotalPrice:     listing.Price * float64(quantity),
		Currency:       listing.Currency,
		Status:         OrderStatusPending,
		PaymentStatus:  "unpaid",
		PaymentMethod:  in.PaymentMethod,
		DeliveryMethod: in.DeliveryMethod,
		DeliveryAddr:   in.DeliveryAddr,
		Notes:          in.Notes,
		ServiceDetails: in.ServiceDetails,
		StatusHistory: []StatusChange{{
			Status:    OrderStatusPending,
			ChangedBy: in.BuyerID,
			ChangedAt: now,
		}},
	}

	rec, err := toRecord(order)
	if err != nil {
		return nil, err
	}

	id, err := s.store.Insert(OrdersFile, rec, ordersKey, "id")
	if err != nil {
		metrics.OrderOperationsTotal.WithLabelValues("create", "error").Inc()
		return nil, err
	}

	metrics.OrderOperationsTotal.WithLabelValues("create", "success").Inc()
	s.log.Info("Order created",
		logger.String("order_id", id),
		logger.String("buyer_id", in.BuyerID),
		logger.String("seller_id", listing.UserID),
		logger.String("listing_id", in.ListingID))

	return s.Get(id)
}

// Get loads an order by id.
func (s *OrderService) Get(id string) (*Order, error) {
	rec, err := s.store.FindByID(OrdersFile, id, ordersKey, "id")
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
		}
		return nil, err
	}
	return fromRecord[Order](rec)
}

// UpdateStatus moves an order along its lifecycle. Only the buyer, the
// seller, or an admin may change the status, and only along a valid
// transition. The change is appended to the status history.
func (s *OrderService) UpdateStatus(id, actorID, newStatus, notes string) (*Order, error) {
	return s.transition(id, actorID, newStatus, notes, "update_status", nil)
}

// Cancel cancels an order that has not started yet. Allowed from pending
// or approved only.
func (s *OrderService) Cancel(id, actorID, reason string) (*Order, error) {
	order, err := s.Get(id)
	if err != nil {
		metrics.OrderOperationsTotal.WithLabelValues("cancel", "not_found").Inc()
		return nil, err
	}

	if order.Status != OrderStatusPending && order.Status != OrderStatusApproved {
		metrics.OrderOperationsTotal.WithLabelValues("cancel", "conflict").Inc()
		return nil, fmt.Errorf("%w: cannot cancel order in status %s", ErrConflict, order.Status)
	}

	var extra store.Record
	if reason != "" {
		extra = store.Record{"cancel_reason": reason}
	}
	return s.transition(id, actorID, OrderStatusCancelled, reason, "cancel", extra)
}

// transition applies a status change plus any extra fields in a single
// store write, counted once under op.
func (s *OrderService) transition(id, actorID, newStatus, notes, op string, extra store.Record) (*Order, error) {
	order, err := s.Get(id)
	if err != nil {
		metrics.OrderOperationsTotal.WithLabelValues(op, "not_found").Inc()
		return nil, err
	}

	if err := s.authorize(order, actorID); err != nil {
		metrics.OrderOperationsTotal.WithLabelValues(op, "forbidden").Inc()
		return nil, err
	}

	if !transitionAllowed(order.Status, newStatus) {
		metrics.OrderOperationsTotal.WithLabelValues(op, "conflict").Inc()
		return nil, fmt.Errorf("%w: cannot move order from %s to %s", ErrConflict, order.Status, newStatus)
	}

	history := append(order.StatusHistory, StatusChange{
		Status:    newStatus,
		ChangedBy: actorID,
		ChangedAt: time.Now().Format(time.RFC3339),
		Notes:     notes,
	})

	historyRecs := make([]any, 0, len(history))
	for _, change := range history {
		rec, convErr := toRecord(change)
		if convErr != nil {
			return nil, convErr
		}
		historyRecs = append(historyRecs, map[string]any(rec))
	}

	patch := store.Record{
		"status":         newStatus,
		"status_history": historyRecs,
	}
	if newStatus == OrderStatusCompleted {
		patch["payment_status"] = "paid"
	}
	for k, v := range extra {
		patch[k] = v
	}

	if err := s.store.Update(OrdersFile, id, patch, ordersKey, "id"); err != nil {
		metrics.OrderOperationsTotal.WithLabelValues(op, "error").Inc()
		return nil, err
	}

	metrics.OrderOperationsTotal.WithLabelValues(op, "success").Inc()
	s.log.Info("Order status changed",
		logger.String("order_id", id),
		logger.String("from", order.Status),
		logger.String("to", newStatus),
		logger.String("actor_id", actorID))

	return s.Get(id)
}

// ListByBuyer returns a buyer's orders, newest first.
func (s *OrderService) ListByBuyer(buyerID string) ([]*Order, error) {
	return s.list(store.Record{"buyer_id": buyerID})
}

// ListBySeller returns a seller's orders, newest first.
func (s *OrderService) ListBySeller(sellerID string) ([]*Order, error) {
	return s.list(store.Record{"seller_id": sellerID})
}

// ListByStatus returns all orders in a given status, newest first.
func (s *OrderService) ListByStatus(status string) ([]*Order, error) {
	if _, terminal := validTransitions[status]; !terminal &&
		status != OrderStatusCompleted && status != OrderStatusCancelled {
		return nil, validationf("invalid order status: %s", status)
	}
	return s.list(store.Record{"status": status})
}

func (s *OrderService) list(criteria store.Record) ([]*Order, error) {
	matches, err := s.store.Search(OrdersFile, criteria, ordersKey)
	if err != nil {
		return nil, err
	}

	orders, err := fromRecords[Order](matches)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt > orders[j].CreatedAt
	})
	return orders, nil
}

func (s *OrderService) authorize(order *Order, actorID string) error {
	if actorID == order.BuyerID || actorID == order.SellerID {
		return nil
	}

	actor, err := s.users.GetByID(actorID)
	if err == nil && actor.IsAdmin() {
		return nil
	}
	return fmt.Errorf("%w: user %s is not a party to order %s", ErrForbidden, actorID, order.ID)
}

func transitionAllowed(from, to string) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
