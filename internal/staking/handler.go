package staking

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/slhnet/slh_ledger/internal/httpx"
	"github.com/slhnet/slh_ledger/internal/middleware"
)

// Handler exposes staking endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a staking handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type openRequest struct {
	Amount   string `json:"amount" validate:"required,numeric"`
	LockDays int    `json:"lock_days" validate:"required"`
	APY      string `json:"apy" validate:"omitempty,numeric"`
}

type positionResponse struct {
	PositionID        string     `json:"position_id"`
	Principal         string     `json:"principal"`
	AnnualRatePercent string     `json:"annual_rate_percent"`
	LockDays          int        `json:"lock_days"`
	Status            string     `json:"status"`
	OpenedAt          time.Time  `json:"opened_at"`
	MaturesAt         time.Time  `json:"matures_at"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
	AccruedRewards    string     `json:"accrued_rewards"`
	ProjectedReward   string     `json:"projected_reward"`
}

func toResponse(p Projection) positionResponse {
	return positionResponse{
		PositionID:        p.ID,
		Principal:         p.Principal.String(),
		AnnualRatePercent: p.AnnualRatePercent.String(),
		LockDays:          p.LockDays,
		Status:            string(p.Status),
		OpenedAt:          p.OpenedAt,
		MaturesAt:         p.MaturesAt,
		ClosedAt:          p.ClosedAt,
		AccruedRewards:    p.AccruedRewards.String(),
		ProjectedReward:   p.ProjectedReward.String(),
	}
}

// Open stakes part of the caller's balance.
func (h *Handler) Open(c *fiber.Ctx) error {
	var req openRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	principal, err := httpx.Decimal("amount", req.Amount)
	if err != nil {
		return err
	}
	rate := decimal.Zero
	if req.APY != "" {
		if rate, err = httpx.Decimal("apy", req.APY); err != nil {
			return err
		}
		if !rate.IsPositive() {
			return fiber.NewError(http.StatusBadRequest, "invalid apy")
		}
	}

	p, err := h.service.Open(c.UserContext(), OpenInput{
		OwnerID:           middleware.OwnerID(c),
		Principal:         principal,
		AnnualRatePercent: rate,
		LockDays:          req.LockDays,
	})
	if err != nil {
		return httpx.Error(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(p))
}

// List returns the caller's positions.
func (h *Handler) List(c *fiber.Ctx) error {
	positions, err := h.service.List(c.UserContext(), middleware.OwnerID(c))
	if err != nil {
		return httpx.Error(err)
	}
	out := make([]positionResponse, 0, len(positions))
	for _, p := range positions {
		out = append(out, toResponse(p))
	}
	return c.JSON(fiber.Map{"positions": out})
}
