package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

// SeedBalance is a test helper that credits amount to ownerID through the
// journal so the seeded wallet still reconciles.
func SeedBalance(t testing.TB, s Store, ownerID, amount string) Wallet {
	t.Helper()
	w, err := s.Credit(context.Background(), CreditRequest{
		OwnerID: ownerID,
		Amount:  decimal.RequireFromString(amount),
		Reason:  "seed",
	})
	if err != nil {
		t.Fatalf("seed balance for %s: %v", ownerID, err)
	}
	return w
}
