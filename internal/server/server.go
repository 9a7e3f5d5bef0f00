package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/khata-ledger/khata/internal/apperr"
	"github.com/khata-ledger/khata/internal/config"
	"github.com/khata-ledger/khata/internal/infra"
	"github.com/khata-ledger/khata/internal/middleware"
	"github.com/khata-ledger/khata/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app *fiber.App
	cfg config.Config
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, backends *infra.Backends, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		DisableStartupMessage: !cfg.IsDevelopment(),
		ErrorHandler:          errorHandler,
	})

	if err := routes.Setup(app, routes.Deps{Cfg: cfg, Backends: backends, Logger: logger}); err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg}, nil
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

type fieldBody struct {
	Field   string `json:"field"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorBody struct {
	Error     string      `json:"error"`
	Kind      string      `json:"kind"`
	Fields    []fieldBody `json:"fields,omitempty"`
	RequestID string      `json:"requestId,omitempty"`
}

// errorHandler renders every handler error as JSON. Validation failures list
// each violated field; internal errors do not leak their cause.
func errorHandler(c *fiber.Ctx, err error) error {
	status := middleware.StatusOf(err)
	body := errorBody{Error: err.Error(), Kind: apperr.Kind(err), RequestID: middleware.RequestIDFrom(c)}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		body.Error = fe.Message
		body.Kind = strings.ReplaceAll(strings.ToLower(http.StatusText(fe.Code)), " ", "_")
	}

	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		for _, f := range verr.Fields {
			body.Fields = append(body.Fields, fieldBody{Field: f.Field, Kind: apperr.FieldKind(f.Err), Message: f.Message})
		}
	}

	if status >= http.StatusInternalServerError && fe == nil {
		switch {
		case errors.Is(err, apperr.ErrTimeout):
			body.Error = apperr.ErrTimeout.Error()
		case errors.Is(err, apperr.ErrStoreUnavailable):
			body.Error = apperr.ErrStoreUnavailable.Error()
		default:
			body.Error = "internal error"
		}
	}

	return c.Status(status).JSON(body)
}
