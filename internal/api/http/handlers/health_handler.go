package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger is any dependency that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	store Pinger
	redis Pinger
	now   func() time.Time
}

// NewHealthHandler returns a new handler instance. redis may be nil when
// replay is disabled.
func NewHealthHandler(store, redis Pinger) *HealthHandler {
	return &HealthHandler{store: store, redis: redis, now: time.Now}
}

// Live handles GET /health.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": h.now().Format(time.RFC3339Nano),
	})
}

// Ready reports service readiness by checking dependencies.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true

	if h.store == nil {
		depStatus["staff_store"] = "not configured"
		ready = false
	} else if err := h.store.Ping(ctx); err != nil {
		depStatus["staff_store"] = err.Error()
		ready = false
	} else {
		depStatus["staff_store"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			depStatus["redis"] = err.Error()
			ready = false
		} else {
			depStatus["redis"] = "ok"
		}
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error":        "one or more dependencies unavailable",
		"dependencies": depStatus,
	})
}
