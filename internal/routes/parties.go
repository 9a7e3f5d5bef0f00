package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/khata-ledger/khata/internal/book"
	"github.com/khata-ledger/khata/internal/party"
)

// RegisterPartyRoutes wires party management and the per-party ledger.
func RegisterPartyRoutes(r fiber.Router, parties *party.Handler, ledger *book.Handler) {
	r.Get("/parties", parties.List)
	r.Post("/parties", parties.Create)
	r.Get("/parties/:partyId", parties.Get)
	r.Put("/parties/:partyId", parties.Update)
	r.Delete("/parties/:partyId", ledger.DeleteParty)

	r.Get("/parties/:partyId/ledger", ledger.Ledger)
	r.Get("/parties/:partyId/ledger/export", ledger.Export)

	r.Post("/parties/:partyId/entries", ledger.AddEntry)
	r.Get("/parties/:partyId/entries/:entryId", ledger.GetEntry)
	r.Put("/parties/:partyId/entries/:entryId", ledger.UpdateEntry)
	r.Delete("/parties/:partyId/entries/:entryId", ledger.DeleteEntry)
}
