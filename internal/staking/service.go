package staking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/slhnet/slh_ledger/internal/httpx"
	"github.com/slhnet/slh_ledger/internal/ledger"
	"github.com/slhnet/slh_ledger/internal/metrics"
	"github.com/slhnet/slh_ledger/internal/notification"
)

// Service opens and lists stake positions.
type Service struct {
	store      ledger.Store
	notifier   notification.Notifier
	defaultAPY decimal.Decimal
	logger     *slog.Logger
}

// NewService constructs a staking service. defaultAPY applies when a caller
// omits the annual rate.
func NewService(store ledger.Store, notifier notification.Notifier, defaultAPY decimal.Decimal, logger *slog.Logger) *Service {
	return &Service{store: store, notifier: notifier, defaultAPY: defaultAPY, logger: logger}
}

// OpenInput describes a new stake. A zero AnnualRatePercent selects the default.
type OpenInput struct {
	OwnerID           string
	Principal         decimal.Decimal
	AnnualRatePercent decimal.Decimal
	LockDays          int
}

// Projection is a position annotated with its display-only reward estimate.
type Projection struct {
	ledger.Position
	ProjectedReward decimal.Decimal
	MaturesAt       time.Time
}

func project(p ledger.Position) Projection {
	return Projection{
		Position:        p,
		ProjectedReward: ledger.ProjectedReward(p.Principal, p.AnnualRatePercent, p.LockDays),
		MaturesAt:       p.OpenedAt.AddDate(0, 0, p.LockDays),
	}
}

// Open locks principal out of the owner's wallet into a new active position.
func (s *Service) Open(ctx context.Context, input OpenInput) (Projection, error) {
	rate := input.AnnualRatePercent
	if rate.IsZero() {
		rate = s.defaultAPY
	}

	pos, err := s.store.OpenStake(ctx, ledger.StakeRequest{
		OwnerID:           input.OwnerID,
		Principal:         input.Principal,
		AnnualRatePercent: rate,
		LockDays:          input.LockDays,
	})
	metrics.RecordOperation("stake_open", httpx.Outcome(err))
	if err != nil {
		return Projection{}, fmt.Errorf("open stake: %w", err)
	}

	s.logger.Info("stake opened",
		"position_id", pos.ID,
		"owner_id", pos.OwnerID,
		"principal", pos.Principal.String(),
		"rate", pos.AnnualRatePercent.String(),
		"lock_days", pos.LockDays,
	)

	if s.notifier != nil {
		if err := s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindStakeOpened,
			Destination: pos.OwnerID,
			Body:        fmt.Sprintf("Staked %s SLH for %d days at %s%%", pos.Principal.String(), pos.LockDays, pos.AnnualRatePercent.String()),
			Attributes:  map[string]string{"position_id": pos.ID},
			OccurredAt:  pos.OpenedAt,
		}); err != nil {
			s.logger.Warn("stake notification failed", "position_id", pos.ID, "error", err)
		}
	}

	return project(pos), nil
}

// List returns the owner's positions, most recent first.
func (s *Service) List(ctx context.Context, ownerID string) ([]Projection, error) {
	positions, err := s.store.Stakes(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list stakes: %w", err)
	}
	out := make([]Projection, 0, len(positions))
	for _, p := range positions {
		out = append(out, project(p))
	}
	return out, nil
}
