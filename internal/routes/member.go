package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/slhnet/slh_ledger/internal/staking"
	"github.com/slhnet/slh_ledger/internal/transfer"
	"github.com/slhnet/slh_ledger/internal/wallet"
)

// MemberHandlers groups the handlers reachable with a member identity.
type MemberHandlers struct {
	Wallet   *wallet.Handler
	Transfer *transfer.Handler
	Staking  *staking.Handler
}

// RegisterMemberRoutes wires wallet, transfer and staking endpoints.
// idempotent guards the value-moving routes when non-nil.
func RegisterMemberRoutes(r fiber.Router, h MemberHandlers, idempotent fiber.Handler) {
	guarded := func(handler fiber.Handler) []fiber.Handler {
		if idempotent == nil {
			return []fiber.Handler{handler}
		}
		return []fiber.Handler{idempotent, handler}
	}

	r.Post("/wallet", h.Wallet.Ensure)
	r.Get("/wallet", h.Wallet.Overview)
	r.Get("/wallet/ledger", h.Wallet.History)

	r.Post("/transfers", guarded(h.Transfer.Create)...)

	r.Post("/stakes", guarded(h.Staking.Open)...)
	r.Get("/stakes", h.Staking.List)
}
