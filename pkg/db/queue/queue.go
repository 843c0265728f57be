package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/erain9/limitbook/pkg/messaging"
)

var (
	brokerList = "localhost:9092"
	topic      = "trade-feed"
	maxRetry   = 5
)

// SetBrokerList overrides the Kafka broker address
func SetBrokerList(brokers string) {
	brokerList = brokers
}

// SetTopic overrides the Kafka topic trades are published to
func SetTopic(t string) {
	topic = t
}

// QueueTradeSender implements the TradeSender interface for sending
// executed trades to Kafka through a sarama sync producer.
type QueueTradeSender struct {
	producer sarama.SyncProducer
}

// NewQueueTradeSender creates a sender with its own producer connection
func NewQueueTradeSender() (*QueueTradeSender, error) {
	config := sarama.NewConfig()
	config.Producer.Retry.Max = maxRetry
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer([]string{brokerList}, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &QueueTradeSender{producer: producer}, nil
}

// SendTrades publishes the trades as JSON, one message per trade
func (q *QueueTradeSender) SendTrades(_ context.Context, trades []messaging.TradeMessage) error {
	if len(trades) == 0 {
		return nil
	}

	msgs := make([]*sarama.ProducerMessage, 0, len(trades))
	for _, trade := range trades {
		data, err := json.Marshal(trade)
		if err != nil {
			return fmt.Errorf("failed to marshal trade message: %w", err)
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: topic,
			Key:   sarama.StringEncoder(strconv.FormatUint(trade.BuyOrderID, 10)),
			Value: sarama.ByteEncoder(data),
		})
	}

	if err := q.producer.SendMessages(msgs); err != nil {
		return fmt.Errorf("failed to send trades to Kafka: %w", err)
	}

	return nil
}

// Close closes the underlying producer
func (q *QueueTradeSender) Close() error {
	return q.producer.Close()
}

// Ensure QueueTradeSender implements TradeSender
var _ messaging.TradeSender = (*QueueTradeSender)(nil)
