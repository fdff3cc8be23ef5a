package reconcile

import (
	"github.com/gofiber/fiber/v2"

	"github.com/slhnet/slh_ledger/internal/httpx"
)

type driftView struct {
	WalletID   int64  `json:"wallet_id"`
	OwnerID    string `json:"owner_id"`
	Balance    string `json:"balance"`
	JournalSum string `json:"journal_sum"`
}

// Handler runs an on-demand reconcile pass.
type Handler struct {
	job *Job
}

// NewHandler constructs a reconcile handler.
func NewHandler(job *Job) *Handler {
	return &Handler{job: job}
}

// Run reconciles now and lists any drifted wallets.
func (h *Handler) Run(c *fiber.Ctx) error {
	drifts, err := h.job.Run(c.UserContext())
	if err != nil {
		return httpx.Error(err)
	}
	views := make([]driftView, 0, len(drifts))
	for _, d := range drifts {
		views = append(views, driftView{
			WalletID:   d.WalletID,
			OwnerID:    d.OwnerID,
			Balance:    d.Balance.String(),
			JournalSum: d.JournalSum.String(),
		})
	}
	return c.JSON(fiber.Map{"consistent": len(views) == 0, "drifts": views})
}
