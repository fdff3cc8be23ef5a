package wallet

import (
	"time"

	"github.com/slhnet/slh_ledger/internal/ledger"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// View is the member-facing representation of a wallet.
type View struct {
	WalletID    int64     `json:"wallet_id"`
	OwnerID     string    `json:"owner_id"`
	DisplayName string    `json:"display_name,omitempty"`
	Balance     string    `json:"balance"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EntryView is one line of the audit trail.
type EntryView struct {
	EntryID   string    `json:"entry_id"`
	Delta     string    `json:"delta"`
	Reason    string    `json:"reason"`
	RefType   string    `json:"reference_type"`
	RefID     string    `json:"reference_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toView(w ledger.Wallet) View {
	return View{
		WalletID:    w.ID,
		OwnerID:     w.OwnerID,
		DisplayName: w.DisplayName,
		Balance:     w.Balance.String(),
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

func toEntryViews(entries []ledger.Entry) []EntryView {
	out := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, EntryView{
			EntryID:   e.ID,
			Delta:     e.Delta.String(),
			Reason:    e.Reason,
			RefType:   string(e.RefType),
			RefID:     e.RefID,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}
