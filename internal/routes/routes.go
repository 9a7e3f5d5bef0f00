package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/khata-ledger/khata/internal/auth"
	"github.com/khata-ledger/khata/internal/book"
	"github.com/khata-ledger/khata/internal/config"
	"github.com/khata-ledger/khata/internal/infra"
	"github.com/khata-ledger/khata/internal/middleware"
	"github.com/khata-ledger/khata/internal/party"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	Backends *infra.Backends
	Logger   *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Backends == nil {
		return fmt.Errorf("backends are required")
	}
	if !d.Cfg.IsDevelopment() && d.Backends.Cache == nil {
		return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDevelopment() {
		// Plain text access log in the format: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	authSvc, err := auth.NewService(d.Cfg.AdminUsername, d.Cfg.AdminPassword, d.Cfg.AuthSecret, d.Cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("build auth service: %w", err)
	}
	partySvc := party.NewService(d.Backends.Parties, d.Logger, d.Cfg.StoreTimeout)
	bookSvc := book.NewService(d.Backends.Parties, d.Backends.Entries, d.Backends.Notifier, d.Logger, d.Cfg.StoreTimeout)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	api.Post("/auth/login", middleware.LoginRateLimit(d.Backends.Cache, d.Cfg.LoginPerMinute), auth.NewHandler(authSvc).Login)

	protected := api.Group("",
		middleware.JWTAuth(authSvc),
		middleware.Idempotency(d.Backends.Cache, d.Cfg.IdempotencyTTL, d.Logger),
	)
	RegisterPartyRoutes(protected, party.NewHandler(partySvc), book.NewHandler(bookSvc))

	return nil
}
