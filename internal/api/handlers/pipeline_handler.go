package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kwstx/email-agent/internal/pipeline"
	"github.com/kwstx/email-agent/internal/storage/sqlite"
	"github.com/kwstx/email-agent/pkg/logger"
)

type PipelineHandler struct {
	monitor *pipeline.Monitor
	store   *sqlite.Store
}

func NewPipelineHandler(monitor *pipeline.Monitor, store *sqlite.Store) *PipelineHandler {
	return &PipelineHandler{
		monitor: monitor,
		store:   store,
	}
}

// GetHealthReport returns the stage counts, conversion rates and alerts for
// the whole pipeline.
func (h *PipelineHandler) GetHealthReport(c *fiber.Ctx) error {
	report, err := h.monitor.HealthReport()
	if err != nil {
		logger.Error("Failed to build pipeline report", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to build pipeline report",
		})
	}

	return c.JSON(report)
}

// GetCompany returns one company's qualification record by domain.
func (h *PipelineHandler) GetCompany(c *fiber.Ctx) error {
	domain := c.Params("domain")
	if domain == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "domain is required",
		})
	}

	company, err := h.store.GetCompanyByDomain(domain)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Company not found",
		})
	}

	return c.JSON(fiber.Map{
		"id":       company.ID,
		"domain":   company.Domain,
		"name":     company.Name,
		"score":    company.Score,
		"tier":     company.Tier,
		"maturity": company.Maturity,
		"metadata": company.Metadata,
	})
}
