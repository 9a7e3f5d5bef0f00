package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/khata-ledger/khata/internal/apperr"
)

// Handler exposes the login endpoint.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Session
	TokenType string `json:"tokenType"`
}

// Login checks the operator credentials and returns a bearer session token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	var verr apperr.ValidationError
	if strings.TrimSpace(req.Username) == "" {
		verr.Add("username", apperr.ErrInvalidField, "is required")
	}
	if req.Password == "" {
		verr.Add("password", apperr.ErrInvalidField, "is required")
	}
	if err := verr.OrNil(); err != nil {
		return err
	}

	session, err := h.svc.Login(strings.TrimSpace(req.Username), req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(loginResponse{Session: session, TokenType: "Bearer"})
}
