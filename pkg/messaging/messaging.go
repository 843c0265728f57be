package messaging

import "context"

// TradeSender defines an interface for publishing executed trades.
// This keeps the serving layer decoupled from specific transports like
// Kafka in the kafka and queue packages.
type TradeSender interface {
	SendTrades(ctx context.Context, trades []TradeMessage) error
	Close() error
}

// TradeMessage represents a single executed trade on the wire. Decimal
// values travel as strings.
type TradeMessage struct {
	BuyOrderID  uint64 `json:"buyOrderID"`
	SellOrderID uint64 `json:"sellOrderID"`
	Price       string `json:"price"`
	Quantity    string `json:"quantity"`
	ExecutedAt  int64  `json:"executedAt"`
}
