package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/slhnet/slh_ledger/internal/httpx"
	"github.com/slhnet/slh_ledger/internal/ledger"
	"github.com/slhnet/slh_ledger/internal/metrics"
	"github.com/slhnet/slh_ledger/internal/notification"
)

// ErrRecipientRequired rejects transfers without a receiving owner.
var ErrRecipientRequired = errors.New("recipient owner id is required")

// Service moves tokens between member wallets.
type Service struct {
	store    ledger.Store
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService constructs a transfer service.
func NewService(store ledger.Store, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{store: store, notifier: notifier, logger: logger}
}

// Input captures the data needed to move funds between wallets.
type Input struct {
	FromOwnerID    string
	ToOwnerID      string
	Amount         decimal.Decimal
	IdempotencyKey string
}

// Transfer debits the sender and credits the receiver atomically. A replayed
// idempotency key returns the original result together with
// ledger.ErrDuplicateTransaction.
func (s *Service) Transfer(ctx context.Context, input Input) (ledger.TransferResult, error) {
	input.FromOwnerID = strings.TrimSpace(input.FromOwnerID)
	input.ToOwnerID = strings.TrimSpace(input.ToOwnerID)
	if input.ToOwnerID == "" {
		return ledger.TransferResult{}, ErrRecipientRequired
	}

	res, err := s.store.Transfer(ctx, ledger.TransferRequest{
		FromOwnerID:    input.FromOwnerID,
		ToOwnerID:      input.ToOwnerID,
		Amount:         input.Amount,
		IdempotencyKey: input.IdempotencyKey,
	})
	metrics.RecordOperation("transfer", httpx.Outcome(err))
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateTransaction) {
			return res, err
		}
		if errors.Is(err, ledger.ErrStoreUnavailable) {
			s.logger.Error("transfer failed", "from", input.FromOwnerID, "to", input.ToOwnerID, "error", err)
		}
		return ledger.TransferResult{}, fmt.Errorf("transfer: %w", err)
	}

	s.logger.Info("transfer committed",
		"transfer_id", res.TransferID,
		"from", input.FromOwnerID,
		"to", input.ToOwnerID,
		"amount", input.Amount.String(),
	)

	if s.notifier != nil {
		if err := s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferReceived,
			Destination: input.ToOwnerID,
			Body:        fmt.Sprintf("You received %s SLH from user %s", input.Amount.String(), input.FromOwnerID),
			Attributes: map[string]string{
				"transfer_id": res.TransferID,
				"from":        input.FromOwnerID,
				"amount":      input.Amount.String(),
			},
			OccurredAt: time.Now().UTC(),
		}); err != nil {
			s.logger.Warn("transfer notification failed", "transfer_id", res.TransferID, "error", err)
		}
	}

	return res, nil
}
