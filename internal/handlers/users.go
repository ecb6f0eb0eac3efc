package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bazarhq/bazar/internal/logger"
	"github.com/bazarhq/bazar/internal/market"
	"github.com/bazarhq/bazar/internal/middleware"
)

type UserHandler struct {
	users *market.UserService
}

func NewUserHandler(users *market.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// Register creates a new account.
func (h *UserHandler) Register(c *fiber.Ctx) error {
	log := middleware.GetLogger(c)

	var in market.RegisterUserInput
	if err := c.BodyParser(&in); err != nil {
		log.Error("Failed to parse request body", logger.Error(err))
		return middleware.BadRequest(c, "Invalid JSON body")
	}

	user, err := h.users.Register(in)
	if err != nil {
		return middleware.DomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

// Get returns an account by id.
func (h *UserHandler) Get(c *fiber.Ctx) error {
	user, err := h.users.GetByID(c.Params("id"))
	if err != nil {
		return middleware.DomainError(c, err)
	}
	return c.JSON(user)
}

// Update applies profile changes to an account.
func (h *UserHandler) Update(c *fiber.Ctx) error {
	var in market.UpdateUserInput
	if err := c.BodyParser(&in); err != nil {
		return middleware.BadRequest(c, "Invalid JSON body")
	}

	user, err := h.users.Update(c.Params("id"), in)
	if err != nil {
		return middleware.DomainError(c, err)
	}
	return c.JSON(user)
}

// UpdateLocation stores new coordinates for an account.
func (h *UserHandler) UpdateLocation(c *fiber.Ctx) error {
	var loc market.Location
	if err := c.BodyParser(&loc); err != nil {
		return middleware.BadRequest(c, "Invalid JSON body")
	}

	user, err := h.users.UpdateLocation(c.Params("id"), loc)
	if err != nil {
		return middleware.DomainError(c, err)
	}
	return c.JSON(user)
}

// Suspend marks an account suspended.
func (h *UserHandler) Suspend(c *fiber.Ctx) error {
	body := struct {
		Reason string `json:"reason"`
	}{}
	if err := c.BodyParser(&body); err != nil && len(c.Body()) > 0 {
		return middleware.BadRequest(c, "Invalid JSON body")
	}

	if err := h.users.Suspend(c.Params("id"), body.Reason); err != nil {
		return middleware.DomainError(c, err)
	}
	return c.JSON(fiber.Map{"message": "user suspended", "id": c.Params("id")})
}

// Activate reinstates a suspended account.
func (h *UserHandler) Activate(c *fiber.Ctx) error {
	if err := h.users.Activate(c.Params("id")); err != nil {
		return middleware.DomainError(c, err)
	}
	return c.JSON(fiber.Map{"message": "user activated", "id": c.Params("id")})
}

// Delete removes an account.
func (h *UserHandler) Delete(c *fiber.Ctx) error {
	if err := h.users.Delete(c.Params("id")); err != nil {
		return middleware.DomainError(c, err)
	}
	return c.JSON(fiber.Map{"message": "user deleted", "id": c.Params("id")})
}

// Stats returns listing and order aggregates for an account.
func (h *UserHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.users.Stats(c.Params("id"))
	if err != nil {
		return middleware.DomainError(c, err)
	}
	return c.JSON(stats)
}
