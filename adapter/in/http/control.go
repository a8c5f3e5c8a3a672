// Package http binds the core's control surface (core/port/in.Engine) onto
// fiber, the way the teacher bound its services onto HTTP handlers: one
// small struct per resource, a Register method that mounts its routes.
package http

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"mailsieve/core/domain"
	in "mailsieve/core/port/in"
	"mailsieve/pkg/apperr"
)

// ControlHandler exposes the engine's control surface under /v1 (spec §6).
type ControlHandler struct {
	engine in.Engine
}

// NewControlHandler wraps an engine.
func NewControlHandler(engine in.Engine) *ControlHandler {
	return &ControlHandler{engine: engine}
}

// Register mounts the public and privileged /v1 routes. auth is the
// privileged-route middleware (infra/middleware.RequireAuth).
func (h *ControlHandler) Register(app *fiber.App, auth fiber.Handler) {
	v1 := app.Group("/v1")

	v1.Post("/run", h.run)
	v1.Get("/stats", h.stats)
	v1.Get("/notifications", h.notifications)
	v1.Post("/notifications/ack", h.ack)
	v1.Post("/notifications/pop", h.pop)
	v1.Get("/notifications/read", h.read)
	v1.Get("/labels", h.labels)

	v1.Post("/correct", auth, h.correct)
	v1.Post("/reclassify", auth, h.reclassify)
	v1.Get("/ambiguous", auth, h.ambiguous)
}

func (h *ControlHandler) run(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	result, err := h.engine.Run(c.Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *ControlHandler) reclassify(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	// Fire-and-forget: the pass runs in the background on its own context,
	// since the request's context ends when this handler returns.
	go func() {
		_, _ = h.engine.Reclassify(context.Background(), limit)
	}()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
}

func (h *ControlHandler) stats(c *fiber.Ctx) error {
	from, err := parseOptionalTime(c.Query("from"))
	if err != nil {
		return apperr.BadRequest("invalid 'from' timestamp")
	}
	to, err := parseOptionalTime(c.Query("to"))
	if err != nil {
		return apperr.BadRequest("invalid 'to' timestamp")
	}

	stats, err := h.engine.Stats(c.Context(), from, to)
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

func (h *ControlHandler) notifications(c *fiber.Ctx) error {
	records, err := h.engine.Notifications(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(records)
}

type ackRequest struct {
	IDs []string `json:"ids"`
	All bool     `json:"all"`
}

func (h *ControlHandler) ack(c *fiber.Ctx) error {
	var req ackRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return apperr.BadRequest("invalid request body")
	}
	if err := h.engine.Ack(c.Context(), req.IDs, req.All); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ControlHandler) pop(c *fiber.Ctx) error {
	records, err := h.engine.Pop(c.Context())
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(records)
}

func (h *ControlHandler) read(c *fiber.Ctx) error {
	from, err := parseOptionalTime(c.Query("from"))
	if err != nil || from == nil {
		return apperr.BadRequest("'from' is required")
	}
	to, err := parseOptionalTime(c.Query("to"))
	if err != nil {
		return apperr.BadRequest("invalid 'to' timestamp")
	}
	toVal := time.Now().UTC()
	if to != nil {
		toVal = *to
	}

	records, err := h.engine.Read(c.Context(), *from, toVal)
	if err != nil {
		return err
	}
	return c.JSON(records)
}

func (h *ControlHandler) labels(c *fiber.Ctx) error {
	return c.JSON(h.engine.Labels(c.Context()))
}

type correctRequest struct {
	ID       string `json:"id"`
	Category string `json:"category"`
}

func (h *ControlHandler) correct(c *fiber.Ctx) error {
	var req correctRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if req.ID == "" || req.Category == "" {
		return apperr.MissingField("id/category")
	}
	if err := h.engine.Correct(c.Context(), req.ID, domain.Category(req.Category)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ControlHandler) ambiguous(c *fiber.Ctx) error {
	records, err := h.engine.Ambiguous(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(records)
}

func parseOptionalTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if unixSeconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		t := time.Unix(unixSeconds, 0).UTC()
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
