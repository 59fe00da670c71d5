// Package main provides the OptiFlow API server implementation.
package main

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/luisscruza/optiflow-sub005/pkg/automation"
	"github.com/luisscruza/optiflow-sub005/pkg/eventbus"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence"
	"github.com/luisscruza/optiflow-sub005/pkg/registry"
	"github.com/luisscruza/optiflow-sub005/pkg/web"
	"github.com/redis/go-redis/v9"
)

// Dedup keys only need to outlive the workflow subsystem's redelivery
// window; the run store stays authoritative after expiry.
const dedupTTL = 24 * time.Hour

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	redisURL    string
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
	redisURL string,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		registry:    registry,
		eventBus:    eventBus,
		redisURL:    redisURL,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	matcher := automation.NewTriggerMatcher(a.persistence, a.logger)
	orchestrator := automation.NewOrchestrator(a.persistence, a.eventBus, matcher, a.deduper(), a.logger)
	publishing := automation.NewPublishingService(a.persistence, a.registry, a.logger)

	handlers := web.NewAPIHandlers(a.persistence, publishing, orchestrator, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("OptiFlow API")
	})

	auto := app.Group("/automations")
	auto.Get("/", handlers.GetAutomations)
	auto.Post("/", handlers.CreateAutomation)
	auto.Get("/:id", handlers.GetAutomation)
	auto.Patch("/:id", handlers.UpdateAutomation)
	auto.Delete("/:id", handlers.DeleteAutomation)
	auto.Post("/:id/versions", handlers.CreateDraft)
	auto.Get("/:id/versions/:version", handlers.GetVersion)
	auto.Post("/:id/publish", handlers.PublishAutomation)
	auto.Get("/:id/published", handlers.GetPublishedVersion)
	auto.Get("/:id/triggers", handlers.GetTriggers)
	auto.Post("/:id/triggers", handlers.CreateTrigger)
	auto.Get("/:id/runs", handlers.GetRuns)

	app.Get("/triggers/:triggerId", handlers.GetTrigger)
	app.Patch("/triggers/:triggerId", handlers.UpdateTrigger)
	app.Delete("/triggers/:triggerId", handlers.DeleteTrigger)

	app.Post("/events", handlers.EmitEvent)
	app.Get("/runs/:runId", handlers.GetRun)
	app.Get("/runs/:runId/nodes", handlers.GetRunNodes)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) deduper() automation.OccurrenceDeduper {
	if a.redisURL == "" {
		return automation.NoopDeduper{}
	}

	opts, err := redis.ParseURL(a.redisURL)
	if err != nil {
		panic("Invalid redis URL: " + err.Error())
	}

	return automation.NewRedisDeduper(redis.NewClient(opts), dedupTTL)
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
