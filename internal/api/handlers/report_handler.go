package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kwstx/email-agent/internal/feedback"
	"github.com/kwstx/email-agent/pkg/logger"
)

type ReportHandler struct {
	aggregator *feedback.Aggregator
	refiner    *feedback.Refiner
}

func NewReportHandler(aggregator *feedback.Aggregator, refiner *feedback.Refiner) *ReportHandler {
	return &ReportHandler{
		aggregator: aggregator,
		refiner:    refiner,
	}
}

// GetOutcomeReport returns reply and interest rates globally, per signal and
// per tier.
func (h *ReportHandler) GetOutcomeReport(c *fiber.Ctx) error {
	report, err := h.aggregator.Report()
	if err != nil {
		logger.Error("Failed to build outcome report", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to build outcome report",
		})
	}

	return c.JSON(report)
}

// PreviewRefinement runs a dry refinement cycle and returns the proposed
// weight changes without persisting anything.
func (h *ReportHandler) PreviewRefinement(c *fiber.Ctx) error {
	summary, err := h.refiner.Refine(true)
	if err != nil {
		logger.Error("Failed to preview refinement", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to preview refinement",
		})
	}

	return c.JSON(summary)
}
