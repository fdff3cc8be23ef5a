package transfer

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/slhnet/slh_ledger/internal/httpx"
	"github.com/slhnet/slh_ledger/internal/middleware"
)

// Handler exposes transfer endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	ToOwnerID string `json:"to_owner_id" validate:"required,max=128"`
	Amount    string `json:"amount" validate:"required,numeric"`
}

// Create processes a member-to-member transfer from the caller's wallet.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req transferRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	amount, err := httpx.Decimal("amount", req.Amount)
	if err != nil {
		return err
	}

	owner := middleware.OwnerID(c)
	var key string
	if k := c.Get("Idempotency-Key"); k != "" {
		key = owner + ":" + k
	}

	res, err := h.service.Transfer(c.UserContext(), Input{
		FromOwnerID:    owner,
		ToOwnerID:      req.ToOwnerID,
		Amount:         amount,
		IdempotencyKey: key,
	})
	if err != nil {
		if errors.Is(err, ErrRecipientRequired) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return httpx.Error(err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transfer_id":  res.TransferID,
		"from_balance": res.FromBalance.String(),
		"to_balance":   res.ToBalance.String(),
		"completed_at": res.CreatedAt,
	})
}
