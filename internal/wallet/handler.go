package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/slhnet/slh_ledger/internal/httpx"
	"github.com/slhnet/slh_ledger/internal/middleware"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type ensureRequest struct {
	DisplayName string `json:"display_name" validate:"omitempty,max=128"`
}

// Ensure provisions the caller's wallet if it does not exist yet.
func (h *Handler) Ensure(c *fiber.Ctx) error {
	var req ensureRequest
	if len(c.Body()) > 0 {
		if err := httpx.Bind(c, &req); err != nil {
			return err
		}
	}
	w, err := h.service.Ensure(c.UserContext(), middleware.OwnerID(c), req.DisplayName)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toView(w))
}

// Overview returns the caller's wallet.
func (h *Handler) Overview(c *fiber.Ctx) error {
	w, err := h.service.Overview(c.UserContext(), middleware.OwnerID(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toView(w))
}

// History returns the caller's newest journal entries.
func (h *Handler) History(c *fiber.Ctx) error {
	entries, err := h.service.History(c.UserContext(), middleware.OwnerID(c), c.QueryInt("limit", defaultHistoryLimit))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"entries": toEntryViews(entries)})
}

func mapError(err error) error {
	if errors.Is(err, ErrOwnerRequired) {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	return httpx.Error(err)
}
