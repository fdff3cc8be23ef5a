package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slhnet/slh_ledger/internal/config"
	"github.com/slhnet/slh_ledger/internal/ledger"
	"github.com/slhnet/slh_ledger/internal/logging"
)

func testConfig() config.Config {
	return config.Config{
		AppName:            "test",
		AppEnv:             "development",
		TokenPrice:         decimal.RequireFromString("444"),
		EntryFiatAmount:    decimal.RequireFromString("39"),
		IssuancePrecision:  4,
		StakingDefaultAPY:  decimal.RequireFromString("15"),
		RateLimitPerMinute: 30,
		ReconcileSchedule:  "@every 1h",
		KafkaTopic:         "slh.ledger.events",
	}
}

func TestNewSeedsRateInMemory(t *testing.T) {
	srv, err := New(testConfig(), nil, nil, nil, logging.Discard())
	require.NoError(t, err)

	rate, err := srv.store.Rate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "444", rate.PricePerUnit.String())
	assert.Equal(t, "39", rate.EntryFiatAmount.String())

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
}

func TestNewRejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.ReconcileSchedule = "whenever"
	_, err := New(cfg, nil, nil, nil, logging.Discard())
	assert.Error(t, err)
}

func TestNewPublishesToKafka(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, "slh.ledger.events", msg.Topic)
		return nil
	})

	srv, err := New(testConfig(), nil, nil, producer, logging.Discard())
	require.NoError(t, err)

	ledger.SeedBalance(t, srv.store, "alice", "10")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/stakes", strings.NewReader(`{"amount":"5","lock_days":10}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Owner-ID", "alice")
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NoError(t, producer.Close())
}
