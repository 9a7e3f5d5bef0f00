package party

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes party endpoints. Deletion lives with the ledger book
// because it cascades to entries.
type Handler struct {
	service *Service
}

// NewHandler constructs a party HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List handles GET /parties?q=.
func (h *Handler) List(c *fiber.Ctx) error {
	parties, err := h.service.List(c.UserContext(), c.Query("q"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"parties": parties})
}

// Create handles POST /parties.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req Fields
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	p, err := h.service.Create(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(p)
}

// Get handles GET /parties/:partyId.
func (h *Handler) Get(c *fiber.Ctx) error {
	p, err := h.service.Get(c.UserContext(), c.Params("partyId"))
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// Update handles PUT /parties/:partyId.
func (h *Handler) Update(c *fiber.Ctx) error {
	var req Patch
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	p, err := h.service.Update(c.UserContext(), c.Params("partyId"), req)
	if err != nil {
		return err
	}
	return c.JSON(p)
}
