package transfer

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/slhnet/slh_ledger/internal/ledger"
	"github.com/slhnet/slh_ledger/internal/logging"
	"github.com/slhnet/slh_ledger/internal/notification"
)

type testNotifier struct {
	last  notification.Message
	count int
	err   error
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
	n.last = msg
	n.count++
	return n.err
}

func TestTransferSuccess(t *testing.T) {
	store := ledger.NewInMemory()
	notifier := &testNotifier{}
	svc := NewService(store, notifier, logging.Discard())
	ctx := context.Background()

	ledger.SeedBalance(t, store, "alice", "10")

	res, err := svc.Transfer(ctx, Input{FromOwnerID: "alice", ToOwnerID: "bob", Amount: decimal.RequireFromString("2")})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if res.FromBalance.String() != "8" || res.ToBalance.String() != "2" {
		t.Fatalf("unexpected balances: %+v", res)
	}
	if notifier.last.Kind != notification.KindTransferReceived || notifier.last.Destination != "bob" {
		t.Fatalf("expected notification to bob, got %+v", notifier.last)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	store := ledger.NewInMemory()
	notifier := &testNotifier{}
	svc := NewService(store, notifier, logging.Discard())
	ctx := context.Background()

	ledger.SeedBalance(t, store, "alice", "1")

	_, err := svc.Transfer(ctx, Input{FromOwnerID: "alice", ToOwnerID: "bob", Amount: decimal.RequireFromString("5")})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if notifier.count != 0 {
		t.Fatalf("failed transfers must not notify")
	}
}

func TestTransferNotificationFailureDoesNotFail(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(store, &testNotifier{err: errors.New("broker down")}, logging.Discard())
	ledger.SeedBalance(t, store, "alice", "3")

	if _, err := svc.Transfer(context.Background(), Input{FromOwnerID: "alice", ToOwnerID: "bob", Amount: decimal.RequireFromString("1")}); err != nil {
		t.Fatalf("notification failure must not fail the transfer: %v", err)
	}
}

func TestTransferDuplicateReturnsOriginal(t *testing.T) {
	store := ledger.NewInMemory()
	notifier := &testNotifier{}
	svc := NewService(store, notifier, logging.Discard())
	ctx := context.Background()
	ledger.SeedBalance(t, store, "alice", "10")

	in := Input{FromOwnerID: "alice", ToOwnerID: "bob", Amount: decimal.RequireFromString("4"), IdempotencyKey: "alice:k1"}
	first, err := svc.Transfer(ctx, in)
	if err != nil {
		t.Fatalf("first transfer: %v", err)
	}
	again, err := svc.Transfer(ctx, in)
	if !errors.Is(err, ledger.ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if again.TransferID != first.TransferID {
		t.Fatalf("expected original transfer id %s, got %s", first.TransferID, again.TransferID)
	}
	if notifier.count != 1 {
		t.Fatalf("expected a single notification, got %d", notifier.count)
	}
}

func TestTransferTrimsRecipient(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(store, &testNotifier{}, logging.Discard())
	ctx := context.Background()

	ledger.SeedBalance(t, store, "alice", "10")
	ledger.SeedBalance(t, store, "bob", "1")

	if _, err := svc.Transfer(ctx, Input{FromOwnerID: "alice", ToOwnerID: "  bob ", Amount: decimal.RequireFromString("2")}); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	w, err := store.WalletByOwner(ctx, "bob")
	if err != nil {
		t.Fatalf("wallet lookup: %v", err)
	}
	if w.Balance.String() != "3" {
		t.Fatalf("padded recipient must credit the existing wallet, balance %s", w.Balance)
	}
	if _, err := store.WalletByOwner(ctx, "  bob "); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("no padded wallet may be created, got %v", err)
	}
}

func TestTransferRejectsBlankRecipient(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(store, &testNotifier{}, logging.Discard())

	ledger.SeedBalance(t, store, "alice", "10")

	_, err := svc.Transfer(context.Background(), Input{FromOwnerID: "alice", ToOwnerID: "   ", Amount: decimal.RequireFromString("1")})
	if !errors.Is(err, ErrRecipientRequired) {
		t.Fatalf("expected recipient required, got %v", err)
	}
}
