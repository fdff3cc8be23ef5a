package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/slhnet/slh_ledger/internal/admin"
	"github.com/slhnet/slh_ledger/internal/issuance"
	"github.com/slhnet/slh_ledger/internal/reconcile"
)

// AdminHandlers groups the operator endpoints.
type AdminHandlers struct {
	Snapshots *admin.Handler
	Issuance  *issuance.Handler
	Reconcile *reconcile.Handler
}

// RegisterAdminRoutes wires the admin endpoints onto an authenticated group.
func RegisterAdminRoutes(r fiber.Router, h AdminHandlers) {
	r.Get("/snapshot", h.Snapshots.System)
	r.Get("/users/:ownerId", h.Snapshots.User)

	r.Get("/issuance/rate", h.Issuance.Rate)
	r.Put("/issuance/price", h.Issuance.SetPrice)
	r.Put("/issuance/entry-amount", h.Issuance.SetEntryAmount)

	r.Post("/payments/approved", h.Issuance.PaymentApproved)
	r.Post("/credits", h.Issuance.Credit)

	r.Get("/reconcile", h.Reconcile.Run)
}
