package handlers

import (
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bazarhq/bazar/internal/market"
	"github.com/bazarhq/bazar/internal/store"
)

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Status      string           `json:"status"`
	Version     string           `json:"version"`
	Uptime      string           `json:"uptime"`
	Timestamp   time.Time        `json:"timestamp"`
	Collections CollectionHealth `json:"collections"`
	Cache       store.CacheStats `json:"cache"`
	System      SystemHealth     `json:"system"`
}

type CollectionHealth struct {
	Users    int `json:"users"`
	Products int `json:"products"`
	Services int `json:"services"`
	Orders   int `json:"orders"`
}

type SystemHealth struct {
	Goroutines  int    `json:"goroutines"`
	MemoryAlloc uint64 `json:"memory_alloc_bytes"`
	MemorySys   uint64 `json:"memory_sys_bytes"`
	NumGC       uint32 `json:"num_gc"`
}

// HealthHandler handles health check operations
type HealthHandler struct {
	store     *store.Store
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(st *store.Store, version string) *HealthHandler {
	return &HealthHandler{
		store:     st,
		startTime: time.Now(),
		version:   version,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status := HealthStatus{
		Status:    "healthy",
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now(),
		Collections: CollectionHealth{
			Users:    h.store.Count(market.UsersFile, "users"),
			Products: h.store.Count(market.ProductsFile, "products"),
			Services: h.store.Count(market.ServicesFile, "services"),
			Orders:   h.store.Count(market.OrdersFile, "orders"),
		},
		Cache: h.store.Stats(),
		System: SystemHealth{
			Goroutines:  runtime.NumGoroutine(),
			MemoryAlloc: m.Alloc,
			MemorySys:   m.Sys,
			NumGC:       m.NumGC,
		},
	}

	return c.JSON(status)
}

// Liveness is a simple liveness probe
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// Readiness checks if the service is ready to accept traffic
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	if _, err := h.store.Read(market.UsersFile, true); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not ready",
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}
