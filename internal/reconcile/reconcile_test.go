package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slhnet/slh_ledger/internal/ledger"
	"github.com/slhnet/slh_ledger/internal/logging"
)

type driftingStore struct {
	ledger.Store
	drifts []ledger.Drift
	err    error
}

func (s driftingStore) Reconcile(context.Context) ([]ledger.Drift, error) {
	return s.drifts, s.err
}

func TestRunConsistentStore(t *testing.T) {
	store := ledger.NewInMemory()
	ledger.SeedBalance(t, store, "alice", "10")
	_, err := store.Transfer(context.Background(), ledger.TransferRequest{
		FromOwnerID: "alice",
		ToOwnerID:   "bob",
		Amount:      decimal.RequireFromString("4"),
	})
	require.NoError(t, err)

	drifts, err := NewJob(store, logging.Discard()).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestRunReportsDrift(t *testing.T) {
	store := driftingStore{drifts: []ledger.Drift{{
		WalletID:   3,
		OwnerID:    "carol",
		Balance:    decimal.RequireFromString("5"),
		JournalSum: decimal.RequireFromString("4"),
	}}}

	drifts, err := NewJob(store, logging.Discard()).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, "carol", drifts[0].OwnerID)
}

func TestRunPropagatesStoreErrors(t *testing.T) {
	store := driftingStore{err: ledger.ErrStoreUnavailable}

	_, err := NewJob(store, logging.Discard()).Run(context.Background())
	assert.True(t, errors.Is(err, ledger.ErrStoreUnavailable))
}

func TestScheduler(t *testing.T) {
	job := NewJob(ledger.NewInMemory(), logging.Discard())

	s, err := NewScheduler("@every 1h", job, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Entries())
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	disabled, err := NewScheduler("", job, logging.Discard())
	require.NoError(t, err)
	assert.Zero(t, disabled.Entries())

	_, err = NewScheduler("not a schedule", job, logging.Discard())
	assert.Error(t, err)
}
