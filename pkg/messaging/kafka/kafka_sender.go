package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/erain9/limitbook/pkg/messaging"
	"github.com/segmentio/kafka-go"
)

// KafkaTradeSender implements TradeSender using Kafka
type KafkaTradeSender struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaTradeSender creates a new Kafka trade sender
func NewKafkaTradeSender(brokerAddr, topic string) (*KafkaTradeSender, error) {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerAddr),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &KafkaTradeSender{
		writer: writer,
		topic:  topic,
	}, nil
}

// SendTrades publishes one message per trade, keyed by the buy order id so
// fills of the same resting order land on one partition in order.
func (k *KafkaTradeSender) SendTrades(ctx context.Context, trades []messaging.TradeMessage) error {
	if len(trades) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(trades))
	for _, trade := range trades {
		data, err := json.Marshal(trade)
		if err != nil {
			return fmt.Errorf("failed to marshal trade message: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.FormatUint(trade.BuyOrderID, 10)),
			Value: data,
			Time:  time.Now(),
		})
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to send trades to Kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka writer
func (k *KafkaTradeSender) Close() error {
	return k.writer.Close()
}

// Ensure KafkaTradeSender implements TradeSender
var _ messaging.TradeSender = (*KafkaTradeSender)(nil)
