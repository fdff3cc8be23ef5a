package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/slhnet/slh_ledger/internal/ledger"
	"github.com/slhnet/slh_ledger/internal/logging"
)

func TestServiceEnsureAndOverview(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(store, logging.Discard())
	ctx := context.Background()

	if _, err := svc.Overview(ctx, "u1"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected not found before ensure, got %v", err)
	}

	w, err := svc.Ensure(ctx, " u1 ", "Alice")
	if err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	if w.OwnerID != "u1" || w.DisplayName != "Alice" || !w.Balance.IsZero() {
		t.Fatalf("unexpected wallet: %+v", w)
	}

	ledger.SeedBalance(t, store, "u1", "2.5")

	fetched, err := svc.Overview(ctx, "u1")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if fetched.ID != w.ID || fetched.Balance.String() != "2.5" {
		t.Fatalf("expected wallet %d with 2.5, got %+v", w.ID, fetched)
	}
}

func TestServiceEnsureRequiresOwner(t *testing.T) {
	svc := NewService(ledger.NewInMemory(), logging.Discard())
	if _, err := svc.Ensure(context.Background(), "  ", ""); !errors.Is(err, ErrOwnerRequired) {
		t.Fatalf("expected owner required, got %v", err)
	}
}

func TestServiceHistoryClampsLimit(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(store, logging.Discard())
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		ledger.SeedBalance(t, store, "u1", "1")
	}

	entries, err := svc.History(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != defaultHistoryLimit {
		t.Fatalf("expected default limit %d, got %d", defaultHistoryLimit, len(entries))
	}

	entries, _ = svc.History(ctx, "u1", 1000)
	if len(entries) != 25 {
		t.Fatalf("expected all 25 entries, got %d", len(entries))
	}

	if _, err := svc.History(ctx, "nobody", 5); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
