package issuance

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/slhnet/slh_ledger/internal/httpx"
)

// Handler exposes the admin issuance endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an issuance handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Rate returns the live rate.
func (h *Handler) Rate(c *fiber.Ctx) error {
	r, err := h.service.Rate(c.UserContext())
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(RateResponse{
		PricePerUnit:    r.PricePerUnit.String(),
		EntryFiatAmount: r.EntryFiatAmount.String(),
		TotalIssued:     r.TotalIssued.String(),
		UpdatedAt:       r.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
}

// SetPrice updates price_per_unit.
func (h *Handler) SetPrice(c *fiber.Ctx) error {
	var req priceRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	price, err := httpx.Decimal("price", req.Price)
	if err != nil {
		return err
	}
	old, err := h.service.SetPrice(c.UserContext(), price)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(fiber.Map{"old_price": old.String(), "new_price": price.String()})
}

// SetEntryAmount updates entry_fiat_amount.
func (h *Handler) SetEntryAmount(c *fiber.Ctx) error {
	var req entryAmountRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	amount, err := httpx.Decimal("amount", req.Amount)
	if err != nil {
		return err
	}
	old, err := h.service.SetEntryAmount(c.UserContext(), amount)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(fiber.Map{"old_amount": old.String(), "new_amount": amount.String()})
}

// PaymentApproved mints for an approved payment. It answers 200 even when
// nothing was minted so the approval flow is never blocked.
func (h *Handler) PaymentApproved(c *fiber.Ctx) error {
	var req PaymentApprovedRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	fiat := decimal.Zero
	if req.FiatAmount != "" {
		var err error
		if fiat, err = httpx.Decimal("fiat_amount", req.FiatAmount); err != nil {
			return err
		}
	}
	minted := h.service.OnPaymentApproved(c.UserContext(), PaymentEvent{
		OwnerID:     req.OwnerID,
		DisplayName: req.DisplayName,
		PaymentRef:  req.PaymentRef,
		FiatAmount:  fiat,
	})
	return c.JSON(fiber.Map{"owner_id": req.OwnerID, "minted": minted.String()})
}

// Credit grants tokens administratively.
func (h *Handler) Credit(c *fiber.Ctx) error {
	var req creditRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	amount, err := httpx.Decimal("amount", req.Amount)
	if err != nil {
		return err
	}
	w, err := h.service.AdminCredit(c.UserContext(), req.OwnerID, amount, req.Reason)
	if err != nil {
		if errors.Is(err, ErrOwnerRequired) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return httpx.Error(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"owner_id":  w.OwnerID,
		"wallet_id": w.ID,
		"balance":   w.Balance.String(),
	})
}
