// Package main provides the Eventiq API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/eventiq/eventiq/pkg/engine"
	"github.com/eventiq/eventiq/pkg/persistence"
	"github.com/eventiq/eventiq/pkg/services"
	"github.com/eventiq/eventiq/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	engine      *engine.Engine
	identity    *engine.StaticIdentityProvider
	backoffice  services.BackofficeConfig
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eng *engine.Engine,
	identity *engine.StaticIdentityProvider,
	backoffice services.BackofficeConfig,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		engine:      eng,
		identity:    identity,
		backoffice:  backoffice,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	templateService := services.NewTemplate(a.persistence)
	requestService := services.NewRequest(a.engine, a.persistence)
	backofficeService := services.NewBackoffice(a.backoffice, a.persistence, a.engine)

	handlers := web.NewAPIHandlers(templateService, requestService, backofficeService, a.identity, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Eventiq API")
	})

	r := app.Group("/requests")
	r.Get("/", handlers.GetRequests)
	r.Post("/", handlers.SubmitRequest)
	r.Get("/:id", handlers.GetRequest)
	r.Post("/:id/decisions", handlers.DecideRequest)
	r.Post("/:id/resubmit", handlers.ResubmitRequest)
	r.Post("/:id/cancel", handlers.CancelRequest)
	r.Get("/:id/history", handlers.GetRequestHistory)

	t := app.Group("/templates")
	t.Get("/", handlers.GetTemplates)
	t.Post("/", handlers.CreateTemplate)
	t.Get("/:id", handlers.GetTemplate)
	t.Patch("/:id", handlers.UpdateTemplate)
	t.Delete("/:id", handlers.DeleteTemplate)
	t.Post("/:id/publish", handlers.PublishTemplate)
	t.Post("/groups/:groupId/create-draft", handlers.CreateDraftFromPublished)

	handlers.RegisterBackofficeRoutes(app)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
