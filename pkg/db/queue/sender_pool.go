package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/erain9/limitbook/pkg/messaging"
)

var (
	senderPool   chan messaging.TradeSender
	poolInitOnce sync.Once
	maxPoolSize  = 32
)

// initSenderPool initializes the sender pool
func initSenderPool() {
	poolInitOnce.Do(func() {
		senderPool = make(chan messaging.TradeSender, maxPoolSize)
		for i := 0; i < maxPoolSize; i++ {
			sender, err := NewQueueTradeSender()
			if err != nil {
				fmt.Printf("Error creating sender: %v\n", err)
				continue
			}
			senderPool <- sender
		}
	})
}

// GetSender gets a sender from the pool
func GetSender() messaging.TradeSender {
	initSenderPool()

	select {
	case sender := <-senderPool:
		return sender
	default:
		fmt.Printf("Warning: sender pool is empty\n")
		return nil
	}
}

// ReturnSender returns a sender to the pool
func ReturnSender(sender messaging.TradeSender) {
	if sender == nil {
		return
	}

	select {
	case senderPool <- sender:
	default:
		fmt.Printf("Warning: sender pool is full\n")
		_ = sender.Close()
	}
}

// SendTrades publishes the trades using a pooled sender
func SendTrades(ctx context.Context, trades []messaging.TradeMessage) error {
	sender := GetSender()
	if sender == nil {
		return fmt.Errorf("failed to get trade sender from pool")
	}
	defer ReturnSender(sender)

	return sender.SendTrades(ctx, trades)
}

// PooledSender adapts the package-level pool to the TradeSender interface
type PooledSender struct{}

// SendTrades publishes through a pooled sender
func (PooledSender) SendTrades(ctx context.Context, trades []messaging.TradeMessage) error {
	return SendTrades(ctx, trades)
}

// Close is a no-op; pooled senders are closed when evicted
func (PooledSender) Close() error {
	return nil
}
