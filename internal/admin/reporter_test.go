package admin

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slhnet/slh_ledger/internal/ledger"
	"github.com/slhnet/slh_ledger/internal/logging"
)

type failingPayments struct{}

func (failingPayments) PaymentTotals(context.Context) (PaymentTotals, error) {
	return PaymentTotals{}, errors.New("payments db down")
}

type failingReferrals struct{}

func (failingReferrals) ReferralCount(context.Context, string) (int64, error) {
	return 0, errors.New("referrals down")
}

// unavailableStore fails every read the reporter performs.
type unavailableStore struct {
	ledger.Store
}

func (unavailableStore) Rate(context.Context) (ledger.Rate, error) {
	return ledger.Rate{}, ledger.ErrStoreUnavailable
}

func (unavailableStore) Totals(context.Context) (ledger.Totals, error) {
	return ledger.Totals{}, ledger.ErrStoreUnavailable
}

func (unavailableStore) WalletByOwner(context.Context, string) (ledger.Wallet, error) {
	return ledger.Wallet{}, ledger.ErrStoreUnavailable
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func seededStore(t *testing.T) ledger.Store {
	t.Helper()
	ctx := context.Background()
	store := ledger.NewInMemory()
	require.NoError(t, store.SeedRate(ctx, decimal.RequireFromString("444"), decimal.RequireFromString("39")))

	_, err := store.Mint(ctx, ledger.MintRequest{OwnerID: "u1", DisplayName: "Alice", PaymentRef: "p1", Precision: ledger.DefaultPrecision})
	require.NoError(t, err)
	ledger.SeedBalance(t, store, "u1", "100")
	_, err = store.OpenStake(ctx, ledger.StakeRequest{
		OwnerID:           "u1",
		Principal:         decimal.RequireFromString("40"),
		AnnualRatePercent: decimal.RequireFromString("15"),
		LockDays:          30,
	})
	require.NoError(t, err)
	return store
}

func TestSystemSnapshot(t *testing.T) {
	reporter := NewReporter(seededStore(t), nil, nil, logging.Discard())

	snap := reporter.SystemSnapshot(context.Background())
	assert.EqualValues(t, 1, snap.PaymentsCount)
	assert.Equal(t, "39", snap.TotalFiat.String())
	assert.Equal(t, "100.0878", snap.TotalIssuedTokens.String())
	assert.Equal(t, "40", snap.TotalStaked.String())
	assert.Equal(t, "444", snap.PricePerUnit.String())
	assert.Equal(t, "39", snap.EntryFiatAmount.String())
}

func TestSystemSnapshotToleratesFailures(t *testing.T) {
	reporter := NewReporter(unavailableStore{Store: ledger.NewInMemory()}, failingPayments{}, nil, logging.Discard())

	snap := reporter.SystemSnapshot(context.Background())
	assert.Zero(t, snap.PaymentsCount)
	assert.True(t, snap.TotalFiat.IsZero())
	assert.True(t, snap.TotalIssuedTokens.IsZero())
	assert.True(t, snap.TotalStaked.IsZero())
	assert.True(t, snap.PricePerUnit.IsZero())
}

func TestUserSnapshot(t *testing.T) {
	client := newRedis(t)
	require.NoError(t, client.HSet(context.Background(), ReferralCountKey, "u1", 7).Err())

	reporter := NewReporter(seededStore(t), nil, RedisReferralCounter{Client: client}, logging.Discard())

	snap := reporter.UserSnapshot(context.Background(), "u1")
	assert.True(t, snap.HasWallet)
	assert.NotZero(t, snap.WalletID)
	assert.Equal(t, "Alice", snap.DisplayName)
	assert.Equal(t, "60.0878", snap.Balance.String())
	assert.Equal(t, 1, snap.StakeCount)
	assert.Equal(t, "40", snap.StakedTotal.String())
	assert.EqualValues(t, 7, snap.ReferralCount)
}

func TestUserSnapshotUnknownOwner(t *testing.T) {
	reporter := NewReporter(seededStore(t), nil, RedisReferralCounter{Client: newRedis(t)}, logging.Discard())

	snap := reporter.UserSnapshot(context.Background(), "nobody")
	assert.False(t, snap.HasWallet)
	assert.Zero(t, snap.WalletID)
	assert.True(t, snap.Balance.IsZero())
	assert.Zero(t, snap.ReferralCount)
}

func TestUserSnapshotToleratesFailures(t *testing.T) {
	reporter := NewReporter(unavailableStore{Store: ledger.NewInMemory()}, nil, failingReferrals{}, logging.Discard())

	snap := reporter.UserSnapshot(context.Background(), "u1")
	assert.Equal(t, "u1", snap.OwnerID)
	assert.False(t, snap.HasWallet)
	assert.Zero(t, snap.ReferralCount)
}

func TestRedisReferralCounterWithoutClient(t *testing.T) {
	n, err := RedisReferralCounter{}.ReferralCount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
}
