// Package api exposes the engine's read-side and compliance operations over
// HTTP. Mutation of the pipeline itself stays with the scheduler and CLI.
package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/kwstx/email-agent/internal/api/handlers"
	"github.com/kwstx/email-agent/internal/compliance"
	"github.com/kwstx/email-agent/internal/feedback"
	"github.com/kwstx/email-agent/internal/metrics"
	"github.com/kwstx/email-agent/internal/pipeline"
	"github.com/kwstx/email-agent/internal/storage/sqlite"
	"github.com/kwstx/email-agent/pkg/config"
)

type Deps struct {
	Store      *sqlite.Store
	Gate       *compliance.Gate
	Aggregator *feedback.Aggregator
	Refiner    *feedback.Refiner
	Monitor    *pipeline.Monitor
}

func NewServer(cfg *config.Config, deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))

	reportHandler := handlers.NewReportHandler(deps.Aggregator, deps.Refiner)
	pipelineHandler := handlers.NewPipelineHandler(deps.Monitor, deps.Store)
	suppressionHandler := handlers.NewSuppressionHandler(deps.Gate)

	v1 := app.Group("/api/v1")

	v1.Get("/report", reportHandler.GetOutcomeReport)
	v1.Get("/refine/preview", reportHandler.PreviewRefinement)

	v1.Get("/pipeline", pipelineHandler.GetHealthReport)
	v1.Get("/companies/:domain", pipelineHandler.GetCompany)

	v1.Get("/suppressions", suppressionHandler.List)
	v1.Get("/suppressions/stats", suppressionHandler.GetStats)
	v1.Post("/suppressions", suppressionHandler.Add)
	v1.Delete("/suppressions", suppressionHandler.Remove)

	v1.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	return app
}
