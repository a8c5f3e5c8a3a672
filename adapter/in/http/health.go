package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// HealthHandler answers liveness/readiness, adapted from the teacher's
// pgxpool/redis health check pair onto this service's sqlite-plus-optional-
// redis stack (spec §6 supplement: `/healthz`).
type HealthHandler struct {
	db    *sqlx.DB
	redis *redis.Client
}

// NewHealthHandler wires the store handles available to health-check.
// redis is optional — a nil client means no distributed permit is
// configured and the check is simply omitted.
func NewHealthHandler(db *sqlx.DB, redis *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// Register mounts /healthz on app.
func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/healthz", h.Health)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			checks["journal"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["journal"] = "healthy"
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["permit_lock"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["permit_lock"] = "healthy"
		}
	} else {
		checks["permit_lock"] = "in-process"
	}

	status := "ok"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
