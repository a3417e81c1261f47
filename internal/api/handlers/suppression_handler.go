package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kwstx/email-agent/internal/compliance"
	"github.com/kwstx/email-agent/internal/storage/models"
	"github.com/kwstx/email-agent/pkg/logger"
)

type SuppressionHandler struct {
	gate *compliance.Gate
}

func NewSuppressionHandler(gate *compliance.Gate) *SuppressionHandler {
	return &SuppressionHandler{gate: gate}
}

func (h *SuppressionHandler) List(c *fiber.Ctx) error {
	entries, err := h.gate.List()
	if err != nil {
		logger.Error("Failed to list suppressions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list suppressions",
		})
	}

	return c.JSON(fiber.Map{
		"count":   len(entries),
		"entries": entries,
	})
}

func (h *SuppressionHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.gate.GetStats()
	if err != nil {
		logger.Error("Failed to build suppression stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to build suppression stats",
		})
	}

	return c.JSON(stats)
}

func (h *SuppressionHandler) Add(c *fiber.Ctx) error {
	var req struct {
		Value  string `json:"value"`
		Type   string `json:"type"`
		Reason string `json:"reason"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Value == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "value is required",
		})
	}
	if req.Type == "" {
		req.Type = models.SuppressionEmail
	}
	if req.Type != models.SuppressionEmail && req.Type != models.SuppressionDomain {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "type must be email or domain",
		})
	}

	added, err := h.gate.Suppress(req.Value, req.Type, req.Reason)
	if err != nil {
		logger.Error("Failed to add suppression", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to add suppression",
		})
	}

	status := fiber.StatusCreated
	if !added {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"value": req.Value,
		"type":  req.Type,
		"added": added,
	})
}

func (h *SuppressionHandler) Remove(c *fiber.Ctx) error {
	value := c.Query("value")
	entryType := c.Query("type", models.SuppressionEmail)
	if value == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "value is required",
		})
	}

	removed, err := h.gate.Unsuppress(value, entryType)
	if err != nil {
		logger.Error("Failed to remove suppression", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to remove suppression",
		})
	}
	if !removed {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Suppression entry not found",
		})
	}

	return c.JSON(fiber.Map{
		"value":   value,
		"type":    entryType,
		"removed": true,
	})
}
