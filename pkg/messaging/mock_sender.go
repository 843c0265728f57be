package messaging

import (
	"context"
	"sync"
)

// MockTradeSender records sent trades for testing.
type MockTradeSender struct {
	mu     sync.Mutex
	trades []TradeMessage
}

// NewMockTradeSender creates a new MockTradeSender.
func NewMockTradeSender() *MockTradeSender {
	return &MockTradeSender{}
}

// SendTrades records the trades.
func (m *MockTradeSender) SendTrades(_ context.Context, trades []TradeMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, trades...)
	return nil
}

// Sent returns a copy of everything recorded so far.
func (m *MockTradeSender) Sent() []TradeMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TradeMessage, len(m.trades))
	copy(out, m.trades)
	return out
}

// Close does nothing.
func (m *MockTradeSender) Close() error {
	return nil
}

// Ensure MockTradeSender implements TradeSender
var _ TradeSender = (*MockTradeSender)(nil)
