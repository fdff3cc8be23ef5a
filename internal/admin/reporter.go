// Package admin builds the read-only oversight snapshots used by operators.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/slhnet/slh_ledger/internal/ledger"
)

// ReferralCountKey is the Redis hash maintained by the referral system,
// keyed by owner id.
const ReferralCountKey = "referrals:count"

// PaymentTotals summarises approved payments.
type PaymentTotals struct {
	Count     int64
	TotalFiat decimal.Decimal
}

// PaymentStats reports totals over approved payments.
type PaymentStats interface {
	PaymentTotals(ctx context.Context) (PaymentTotals, error)
}

// ReferralCounter reports how many members an owner referred.
type ReferralCounter interface {
	ReferralCount(ctx context.Context, ownerID string) (int64, error)
}

// StorePaymentStats derives payment totals from the issuance records.
type StorePaymentStats struct {
	Store ledger.Store
}

// PaymentTotals counts recorded issuances and their fiat sum.
func (s StorePaymentStats) PaymentTotals(ctx context.Context) (PaymentTotals, error) {
	t, err := s.Store.Totals(ctx)
	if err != nil {
		return PaymentTotals{}, err
	}
	return PaymentTotals{Count: t.IssuanceCount, TotalFiat: t.TotalFiat}, nil
}

// RedisReferralCounter reads counts from the referral system's Redis hash.
// A nil client counts zero for everyone.
type RedisReferralCounter struct {
	Client *redis.Client
}

// ReferralCount returns the owner's count, zero when absent.
func (r RedisReferralCounter) ReferralCount(ctx context.Context, ownerID string) (int64, error) {
	if r.Client == nil {
		return 0, nil
	}
	n, err := r.Client.HGet(ctx, ReferralCountKey, ownerID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("referral count: %w", err)
	}
	return n, nil
}

// SystemSnapshot is the store-wide picture.
type SystemSnapshot struct {
	PaymentsCount     int64           `json:"payments_count"`
	TotalFiat         decimal.Decimal `json:"total_fiat"`
	TotalIssuedTokens decimal.Decimal `json:"total_issued_tokens"`
	TotalStaked       decimal.Decimal `json:"total_staked"`
	PricePerUnit      decimal.Decimal `json:"price_per_unit"`
	EntryFiatAmount   decimal.Decimal `json:"entry_fiat_amount"`
}

// UserSnapshot is one member's picture. WalletID is zero when HasWallet is false.
type UserSnapshot struct {
	OwnerID       string          `json:"owner_id"`
	WalletID      int64           `json:"wallet_id"`
	DisplayName   string          `json:"display_name"`
	Balance       decimal.Decimal `json:"balance"`
	StakeCount    int             `json:"stake_count"`
	StakedTotal   decimal.Decimal `json:"staked_total"`
	ReferralCount int64           `json:"referral_count"`
	HasWallet     bool            `json:"has_wallet"`
}

// Reporter assembles snapshots. Every collaborator failure degrades to zero
// values and a warning.
type Reporter struct {
	store     ledger.Store
	payments  PaymentStats
	referrals ReferralCounter
	logger    *slog.Logger
}

// NewReporter constructs a reporter. Nil collaborators fall back to the
// store-backed payment stats and a zero referral counter.
func NewReporter(store ledger.Store, payments PaymentStats, referrals ReferralCounter, logger *slog.Logger) *Reporter {
	if payments == nil {
		payments = StorePaymentStats{Store: store}
	}
	if referrals == nil {
		referrals = RedisReferralCounter{}
	}
	return &Reporter{store: store, payments: payments, referrals: referrals, logger: logger}
}

// SystemSnapshot never fails.
func (r *Reporter) SystemSnapshot(ctx context.Context) SystemSnapshot {
	out := SystemSnapshot{
		TotalFiat:         decimal.Zero,
		TotalIssuedTokens: decimal.Zero,
		TotalStaked:       decimal.Zero,
		PricePerUnit:      decimal.Zero,
		EntryFiatAmount:   decimal.Zero,
	}

	if p, err := r.payments.PaymentTotals(ctx); err != nil {
		r.logger.Warn("snapshot payment stats unavailable", "error", err)
	} else {
		out.PaymentsCount = p.Count
		out.TotalFiat = p.TotalFiat
	}

	if rate, err := r.store.Rate(ctx); err != nil {
		r.logger.Warn("snapshot rate unavailable", "error", err)
	} else {
		out.TotalIssuedTokens = rate.TotalIssued
		out.PricePerUnit = rate.PricePerUnit
		out.EntryFiatAmount = rate.EntryFiatAmount
	}

	if t, err := r.store.Totals(ctx); err != nil {
		r.logger.Warn("snapshot totals unavailable", "error", err)
	} else {
		out.TotalStaked = t.TotalStaked
	}
	return out
}

// UserSnapshot never fails; an unknown owner yields HasWallet false.
func (r *Reporter) UserSnapshot(ctx context.Context, ownerID string) UserSnapshot {
	ownerID = strings.TrimSpace(ownerID)
	out := UserSnapshot{OwnerID: ownerID, Balance: decimal.Zero, StakedTotal: decimal.Zero}

	w, err := r.store.WalletByOwner(ctx, ownerID)
	switch {
	case err == nil:
		out.HasWallet = true
		out.WalletID = w.ID
		out.DisplayName = w.DisplayName
		out.Balance = w.Balance
	case errors.Is(err, ledger.ErrNotFound):
	default:
		r.logger.Warn("user snapshot wallet unavailable", "owner_id", ownerID, "error", err)
	}

	if out.HasWallet {
		positions, err := r.store.Stakes(ctx, ownerID)
		if err != nil {
			r.logger.Warn("user snapshot stakes unavailable", "owner_id", ownerID, "error", err)
		}
		for _, p := range positions {
			if p.Status != ledger.StakeActive {
				continue
			}
			out.StakeCount++
			out.StakedTotal = out.StakedTotal.Add(p.Principal)
		}
	}

	if n, err := r.referrals.ReferralCount(ctx, ownerID); err != nil {
		r.logger.Warn("user snapshot referrals unavailable", "owner_id", ownerID, "error", err)
	} else {
		out.ReferralCount = n
	}
	return out
}
