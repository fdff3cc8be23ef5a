package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slhnet/slh_ledger/internal/ledger"
)

// ErrOwnerRequired rejects calls without a member identity.
var ErrOwnerRequired = errors.New("owner id is required")

// Service exposes wallet operations backed by the ledger store.
type Service struct {
	store  ledger.Store
	logger *slog.Logger
}

// NewService builds a wallet service instance.
func NewService(store ledger.Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Ensure returns the member's wallet, creating it on first use.
func (s *Service) Ensure(ctx context.Context, ownerID, displayName string) (ledger.Wallet, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return ledger.Wallet{}, ErrOwnerRequired
	}
	w, err := s.store.EnsureWallet(ctx, ownerID, strings.TrimSpace(displayName))
	if err != nil {
		return ledger.Wallet{}, fmt.Errorf("ensure wallet: %w", err)
	}
	s.logger.Debug("wallet ensured", "owner_id", ownerID, "wallet_id", w.ID)
	return w, nil
}

// Overview returns the member's wallet or ledger.ErrNotFound.
func (s *Service) Overview(ctx context.Context, ownerID string) (ledger.Wallet, error) {
	if ownerID == "" {
		return ledger.Wallet{}, ErrOwnerRequired
	}
	w, err := s.store.WalletByOwner(ctx, ownerID)
	if err != nil {
		return ledger.Wallet{}, fmt.Errorf("wallet overview: %w", err)
	}
	return w, nil
}

// History returns the newest journal entries of the member's wallet.
func (s *Service) History(ctx context.Context, ownerID string, limit int) ([]ledger.Entry, error) {
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	w, err := s.Overview(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.Entries(ctx, w.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("wallet history: %w", err)
	}
	return entries, nil
}
