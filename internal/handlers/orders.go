package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bazarhq/bazar/internal/logger"
	"github.com/bazarhq/bazar/internal/market"
	"github.com/bazarhq/bazar/internal/middleware"
)

type OrderHandler struct {
	orders *market.OrderService
}

func NewOrderHandler(orders *market.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Create places an order for the authenticated buyer.
func (h *OrderHandler) Create(c *fiber.Ctx) error {
	log := middleware.GetLogger(c)

	var in market.CreateOrderInput
	if err := c.BodyParser(&in); err != nil {
		log.Error("Failed to parse request body", logger.Error(err))
		return middleware.BadRequest(c, "Invalid JSON body")
	}

	if userID := middleware.GetUserID(c); userID != "" {
		in.BuyerID = userID
	}

	order, err := h.orders.Create(in)
	if err != nil {
		return middleware.DomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

// Get returns an order by id.
func (h *OrderHandler) Get(c *fiber.Ctx) error {
	order, err := h.orders.Get(c.Params("id"))
	if err != nil {
		return middleware.DomainError(c, err)
	}
	return c.JSON(order)
}

// UpdateStatus moves an order along its lifecycle.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	body := struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}{}
	if err := c.BodyParser(&body); err != nil {
		return middleware.BadRequest(c, "Invalid JSON body")
	}
	if body.Status == "" {
		return middleware.BadRequest(c, "status is required")
	}

	order, err := h.orders.UpdateStatus(c.Params("id"), actorID(c), body.Status, body.Notes)
	if err != nil {
		return middleware.DomainError(c, err)
	}
	return c.JSON(order)
}

// Cancel cancels a pending or approved order.
func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	body := struct {
		Reason string `json:"reason"`
	}{}
	if err := c.BodyParser(&body); err != nil && len(c.Body()) > 0 {
		return middleware.BadRequest(c, "Invalid JSON body")
	}

	order, err := h.orders.Cancel(c.Params("id"), actorID(c), body.Reason)
	if err != nil {
		return middleware.DomainError(c, err)
	}
	return c.JSON(order)
}

// List returns orders filtered by buyer_id, seller_id, or status.
func (h *OrderHandler) List(c *fiber.Ctx) error {
	var (
		orders []*market.Order
		err    error
	)

	switch {
	case c.Query("buyer_id") != "":
		orders, err = h.orders.ListByBuyer(c.Query("buyer_id"))
	case c.Query("seller_id") != "":
		orders, err = h.orders.ListBySeller(c.Query("seller_id"))
	case c.Query("status") != "":
		orders, err = h.orders.ListByStatus(c.Query("status"))
	default:
		return middleware.BadRequest(c, "one of buyer_id, seller_id, or status is required")
	}

	if err != nil {
		return middleware.DomainError(c, err)
	}

	return c.JSON(fiber.Map{
		"orders": orders,
		"count":  len(orders),
	})
}
