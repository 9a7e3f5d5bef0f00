package book

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/khata-ledger/khata/internal/report"
)

// Handler exposes ledger endpoints scoped to a party.
type Handler struct {
	service *Service
}

// NewHandler constructs a ledger HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// entryRequest accepts "kind" or the older "type" field, and the amount as a
// JSON string or number.
type entryRequest struct {
	Kind        string          `json:"kind"`
	Type        string          `json:"type"`
	Amount      json.RawMessage `json:"amount"`
	Description string          `json:"description"`
}

func (r entryRequest) input() EntryInput {
	kind := r.Kind
	if kind == "" {
		kind = r.Type
	}
	return EntryInput{Kind: kind, Amount: amountText(r.Amount), Description: r.Description}
}

func amountText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// AddEntry handles POST /parties/:partyId/entries.
func (h *Handler) AddEntry(c *fiber.Ctx) error {
	var req entryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	entry, err := h.service.AddEntry(c.UserContext(), c.Params("partyId"), req.input())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(entry)
}

// GetEntry handles GET /parties/:partyId/entries/:entryId.
func (h *Handler) GetEntry(c *fiber.Ctx) error {
	entry, err := h.service.GetEntry(c.UserContext(), c.Params("partyId"), c.Params("entryId"))
	if err != nil {
		return err
	}
	return c.JSON(entry)
}

// UpdateEntry handles PUT /parties/:partyId/entries/:entryId.
func (h *Handler) UpdateEntry(c *fiber.Ctx) error {
	var req entryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	entry, err := h.service.UpdateEntry(c.UserContext(), c.Params("partyId"), c.Params("entryId"), req.input())
	if err != nil {
		return err
	}
	return c.JSON(entry)
}

// DeleteEntry handles DELETE /parties/:partyId/entries/:entryId.
func (h *Handler) DeleteEntry(c *fiber.Ctx) error {
	if err := h.service.DeleteEntry(c.UserContext(), c.Params("partyId"), c.Params("entryId")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// DeleteParty handles DELETE /parties/:partyId.
func (h *Handler) DeleteParty(c *fiber.Ctx) error {
	if err := h.service.DeleteParty(c.UserContext(), c.Params("partyId")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

type ledgerResponse struct {
	View
	Matched int `json:"matched"`
	Page    int `json:"page"`
	Size    int `json:"size"`
}

// Ledger handles GET /parties/:partyId/ledger. Totals always cover the whole
// ledger; the query only narrows the returned entries.
func (h *Handler) Ledger(c *fiber.Ctx) error {
	q, err := report.ParseQuery(func(key string) string { return c.Query(key) })
	if err != nil {
		return err
	}
	view, err := h.service.LedgerView(c.UserContext(), c.Params("partyId"))
	if err != nil {
		return err
	}
	page := report.Apply(view.Postings, q)
	view.Postings = page.Postings
	return c.JSON(ledgerResponse{View: view, Matched: page.Matched, Page: page.Page, Size: page.Size})
}

// Export handles GET /parties/:partyId/ledger/export as CSV. Filters apply but
// paging does not.
func (h *Handler) Export(c *fiber.Ctx) error {
	q, err := report.ParseQuery(func(key string) string { return c.Query(key) })
	if err != nil {
		return err
	}
	q.Page, q.Size = 1, 0
	view, err := h.service.LedgerView(c.UserContext(), c.Params("partyId"))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, report.Apply(view.Postings, q).Postings); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="ledger-%s.csv"`, view.Party.ID))
	return c.Send(buf.Bytes())
}
