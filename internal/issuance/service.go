package issuance

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

// ErrOwnerRequired rejects issuance without a beneficiary.
var ErrOwnerRequired = errors.New("owner id is required")

// Service mints tokens against confirmed payments at the live rate and
// administers that rate.
type Service struct {
	store     ledger.Store
	notifier  notification.Notifier
	precision int32
	logger    *slog.Logger
}

// NewService constructs an issuance service rounding minted amounts to precision places.
func NewService(store ledger.Store, notifier notification.Notifier, precision int32, logger *slog.Logger) *Service {
	return &Service{store: store, notifier: notifier, precision: precision, logger: logger}
}

// PaymentEvent is an approved off-platform payment. A zero FiatAmount means
// the configured entry amount.
type PaymentEvent struct {
	OwnerID     string
	DisplayName string
	PaymentRef  string
	FiatAmount  decimal.Decimal
}

// MintFromEntryPayment credits the owner with entry_fiat_amount / price_per_unit
// at the rate live at call time.
func (s *Service) MintFromEntryPayment(ctx context.Context, ownerID, displayName, paymentRef string) (ledger.MintResult, error) {
	return s.mint(ctx, PaymentEvent{OwnerID: ownerID, DisplayName: displayName, PaymentRef: paymentRef})
}

// MintFromPayment credits the owner for an explicit fiat amount.
func (s *Service) MintFromPayment(ctx context.Context, ownerID string, fiatAmount decimal.Decimal, paymentRef string) (ledger.MintResult, error) {
	if !ledger.ValidAmount(fiatAmount) {
		return ledger.MintResult{}, ledger.ErrInvalidAmount
	}
	return s.mint(ctx, PaymentEvent{OwnerID: ownerID, PaymentRef: paymentRef, FiatAmount: fiatAmount})
}

func (s *Service) mint(ctx context.Context, ev PaymentEvent) (ledger.MintResult, error) {
	ownerID := strings.TrimSpace(ev.OwnerID)
	if ownerID == "" {
		return ledger.MintResult{}, ErrOwnerRequired
	}

	res, err := s.store.Mint(ctx, ledger.MintRequest{
		OwnerID:     ownerID,
		DisplayName: strings.TrimSpace(ev.DisplayName),
		FiatAmount:  ev.FiatAmount,
		PaymentRef:  ev.PaymentRef,
		Precision:   s.precision,
	})
	metrics.RecordOperation("mint", httpx.Outcome(err))
	if err != nil {
		return res, fmt.Errorf("mint: %w", err)
	}
	if !res.Minted {
		s.logger.Warn("mint skipped", "owner_id", ownerID, "price", res.Price.String(), "fiat", res.FiatAmount.String())
		return res, nil
	}

	metrics.RecordMinted(res.Amount.InexactFloat64())
	s.logger.Info("tokens minted",
		"owner_id", ownerID,
		"amount", res.Amount.String(),
		"price", res.Price.String(),
		"fiat", res.FiatAmount.String(),
		"payment_ref", ev.PaymentRef,
	)

	if s.notifier != nil {
		if err := s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTokensMinted,
			Destination: ownerID,
			Body:        fmt.Sprintf("%s SLH credited to your wallet", res.Amount.String()),
			Attributes: map[string]string{
				"amount":      res.Amount.String(),
				"price":       res.Price.String(),
				"payment_ref": ev.PaymentRef,
			},
			OccurredAt: time.Now().UTC(),
		}); err != nil {
			s.logger.Warn("mint notification failed", "owner_id", ownerID, "error", err)
		}
	}
	return res, nil
}

// OnPaymentApproved is the payment-approval hook. It never fails the approval
// flow: it returns the minted amount, the original amount for a replayed
// payment, or zero on no-op or failure.
func (s *Service) OnPaymentApproved(ctx context.Context, ev PaymentEvent) decimal.Decimal {
	var (
		res ledger.MintResult
		err error
	)
	if ev.FiatAmount.IsZero() {
		res, err = s.MintFromEntryPayment(ctx, ev.OwnerID, ev.DisplayName, ev.PaymentRef)
	} else {
		res, err = s.mint(ctx, ev)
	}

	switch {
	case err == nil:
		return res.Amount
	case errors.Is(err, ledger.ErrDuplicateTransaction):
		s.logger.Info("payment already credited", "owner_id", ev.OwnerID, "payment_ref", ev.PaymentRef, "amount", res.Amount.String())
		return res.Amount
	default:
		s.logger.Error("mint on payment approval failed", "owner_id", ev.OwnerID, "payment_ref", ev.PaymentRef, "error", err)
		return decimal.Zero
	}
}

// AdminCredit grants amount to the owner outside the payment flow. It counts
// as issuance.
func (s *Service) AdminCredit(ctx context.Context, ownerID string, amount decimal.Decimal, reason string) (ledger.Wallet, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return ledger.Wallet{}, ErrOwnerRequired
	}
	w, err := s.store.Credit(ctx, ledger.CreditRequest{OwnerID: ownerID, Amount: amount, Reason: strings.TrimSpace(reason)})
	metrics.RecordOperation("admin_credit", httpx.Outcome(err))
	if err != nil {
		return ledger.Wallet{}, fmt.Errorf("admin credit: %w", err)
	}
	metrics.RecordMinted(amount.InexactFloat64())
	s.logger.Info("admin credit", "owner_id", ownerID, "amount", amount.String(), "reason", reason)
	return w, nil
}

// Rate returns the live issuance rate.
func (s *Service) Rate(ctx context.Context) (ledger.Rate, error) {
	r, err := s.store.Rate(ctx)
	if err != nil {
		return ledger.Rate{}, fmt.Errorf("issuance rate: %w", err)
	}
	return r, nil
}

// SetPrice replaces price_per_unit for subsequent issuances and returns the old price.
func (s *Service) SetPrice(ctx context.Context, price decimal.Decimal) (decimal.Decimal, error) {
	old, err := s.store.SetPrice(ctx, price)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("set price: %w", err)
	}
	s.logger.Info("issuance price changed", "old", old.String(), "new", price.String())
	return old, nil
}

// SetEntryAmount replaces entry_fiat_amount and returns the old amount.
func (s *Service) SetEntryAmount(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	old, err := s.store.SetEntryAmount(ctx, amount)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("set entry amount: %w", err)
	}
	s.logger.Info("entry amount changed", "old", old.String(), "new", amount.String())
	return old, nil
}
