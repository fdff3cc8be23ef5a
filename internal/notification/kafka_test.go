package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slhnet/slh_ledger/internal/logging"
)

func TestKafkaNotifierPublishesJSON(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	defer producer.Close()

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var msg Message
		if err := json.Unmarshal(val, &msg); err != nil {
			return err
		}
		if msg.Kind != KindTransferReceived || msg.Destination != "bob" {
			return errors.New("unexpected payload")
		}
		if msg.Attributes["amount"] != "2.5" {
			return errors.New("missing amount attribute")
		}
		return nil
	})

	n := NewKafkaNotifier(producer, "slh.ledger.events", logging.Discard())
	err := n.Send(context.Background(), Message{
		Kind:        KindTransferReceived,
		Destination: "bob",
		Body:        "you received 2.5",
		Attributes:  map[string]string{"amount": "2.5"},
	})
	require.NoError(t, err)
}

func TestKafkaNotifierReturnsBrokerError(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	defer producer.Close()

	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	n := NewKafkaNotifier(producer, "slh.ledger.events", logging.Discard())
	err := n.Send(context.Background(), Message{Kind: KindTokensMinted, Destination: "alice"})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
}

type recordingNotifier struct {
	sent []Message
	err  error
}

func (r *recordingNotifier) Send(_ context.Context, m Message) error {
	r.sent = append(r.sent, m)
	return r.err
}

func TestFanoutDeliversToAll(t *testing.T) {
	ok := &recordingNotifier{}
	failing := &recordingNotifier{err: errors.New("down")}

	err := Fanout{ok, nil, failing}.Send(context.Background(), Message{Kind: KindStakeOpened})
	require.Error(t, err)
	assert.Len(t, ok.sent, 1)
	assert.Len(t, failing.sent, 1)
}
