package core

import (
	"time"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/rs/zerolog"
)

// Clock supplies arrival timestamps for orders that come in without one.
type Clock func() int64

// Book is a single-instrument limit order book with price-time priority.
// All mutating methods are synchronous and must be serialized by the
// caller; the book performs no I/O and holds no locks.
type Book struct {
	backend BookBackend
	clock   Clock
	logger  zerolog.Logger

	trades uint64
	volume fpdecimal.Decimal
}

// Option configures a Book
type Option func(*Book)

// WithClock overrides the arrival timestamp source
func WithClock(clock Clock) Option {
	return func(b *Book) {
		b.clock = clock
	}
}

// WithLogger attaches a logger for trade-level debug logging
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Book) {
		b.logger = logger
	}
}

// NewBook creates an empty Book on top of the given backend
func NewBook(backend BookBackend, opts ...Option) *Book {
	b := &Book{
		backend: backend,
		clock:   func() int64 { return time.Now().UnixNano() },
		logger:  zerolog.Nop(),
		volume:  fpdecimal.Zero,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// AddOrder validates and inserts an order into the book. With
// matchImmediately set, an exhaustive matching pass runs afterwards and the
// executed trades are returned. On a validation error the book is left
// untouched.
func (b *Book) AddOrder(order *Order, matchImmediately bool) ([]Trade, error) {
	if order == nil {
		return nil, ErrInvalidArgument
	}

	if b.backend.Exists(order.ID()) {
		return nil, ErrDuplicateOrderID
	}

	if order.Quantity().LessThanOrEqual(fpdecimal.Zero) {
		return nil, ErrInvalidQuantity
	}

	if order.Price().LessThanOrEqual(fpdecimal.Zero) {
		return nil, ErrInvalidPrice
	}

	if order.Timestamp() == 0 {
		order.timestamp = b.clock()
	}

	if err := b.backend.Append(order); err != nil {
		return nil, err
	}

	if !matchImmediately {
		return nil, nil
	}

	return b.match(), nil
}

// CancelOrder removes the order with the given id. Returns false when the
// id is not resting; that is a normal outcome, not an error. Cancellation
// never triggers matching since removing liquidity cannot create a cross.
func (b *Book) CancelOrder(id uint64) bool {
	_, ok := b.backend.Remove(id)
	return ok
}

// AmendOrder changes the price and/or quantity of a resting order. A pure
// quantity change keeps the order's queue position; a price change loses
// time priority and the order joins the back of its new level's queue with
// a fresh arrival timestamp. Returns false when the id is not resting.
func (b *Book) AmendOrder(id uint64, newPrice, newQuantity fpdecimal.Decimal, matchImmediately bool) (bool, []Trade, error) {
	existing := b.backend.GetOrder(id)
	if existing == nil {
		return false, nil, nil
	}

	if newQuantity.LessThanOrEqual(fpdecimal.Zero) {
		return false, nil, ErrInvalidQuantity
	}

	if newPrice.LessThanOrEqual(fpdecimal.Zero) {
		return false, nil, ErrInvalidPrice
	}

	if existing.Price().Equal(newPrice) {
		b.backend.UpdateQuantity(id, newQuantity)
	} else {
		// Two-phase reinsert, not a call back into AddOrder: the old order
		// is fully gone before the replacement is linked, so the id is
		// never resting twice.
		removed, ok := b.backend.Remove(id)
		if !ok {
			return false, nil, nil
		}

		replacement := &Order{
			id:        removed.ID(),
			side:      removed.Side(),
			quantity:  newQuantity,
			price:     newPrice,
			timestamp: b.clock(),
		}

		if err := b.backend.Append(replacement); err != nil {
			return false, nil, err
		}
	}

	if !matchImmediately {
		return true, nil, nil
	}

	return true, b.match(), nil
}

// MatchOrders runs a matching pass manually and returns the executed
// trades. Useful after a batch of deferred insertions.
func (b *Book) MatchOrders() []Trade {
	return b.match()
}

// match trades the FIFO heads of the best bid and best ask while the sides
// cross. Each iteration removes min(buyQty, sellQty) > 0 of resting
// quantity, so the loop terminates.
func (b *Book) match() []Trade {
	var trades []Trade

	for {
		buy, ok := b.backend.Best(Buy)
		if !ok {
			break
		}

		sell, ok := b.backend.Best(Sell)
		if !ok {
			break
		}

		if buy.Price().LessThan(sell.Price()) {
			break
		}

		quantity := min(buy.Quantity(), sell.Quantity())
		price := min(buy.Price(), sell.Price())

		trade := Trade{
			BuyOrderID:  buy.ID(),
			SellOrderID: sell.ID(),
			Price:       price,
			Quantity:    quantity,
		}

		b.backend.Fill(trade.BuyOrderID, quantity)
		b.backend.Fill(trade.SellOrderID, quantity)

		b.trades++
		b.volume = b.volume.Add(quantity)
		trades = append(trades, trade)

		b.logger.Debug().
			Uint64("buy_order_id", trade.BuyOrderID).
			Uint64("sell_order_id", trade.SellOrderID).
			Str("price", price.String()).
			Str("quantity", quantity.String()).
			Msg("trade executed")
	}

	return trades
}

// GetOrder returns a copy of the resting order with the given id, or nil
func (b *Book) GetOrder(id uint64) *Order {
	order := b.backend.GetOrder(id)
	if order == nil {
		return nil
	}
	return order.Clone()
}

// OrderExists reports whether the id is currently resting
func (b *Book) OrderExists(id uint64) bool {
	return b.backend.Exists(id)
}

// Snapshot returns up to depth bid levels (best first, price descending)
// and up to depth ask levels (best first, price ascending).
func (b *Book) Snapshot(depth int) (bids, asks []BookLevel) {
	return b.backend.Levels(Buy, depth), b.backend.Levels(Sell, depth)
}

// BestBid returns the highest resting bid price, or zero when the bid side
// is empty.
func (b *Book) BestBid() fpdecimal.Decimal {
	if order, ok := b.backend.Best(Buy); ok {
		return order.Price()
	}
	return fpdecimal.Zero
}

// BestAsk returns the lowest resting ask price, or zero when the ask side
// is empty.
func (b *Book) BestAsk() fpdecimal.Decimal {
	if order, ok := b.backend.Best(Sell); ok {
		return order.Price()
	}
	return fpdecimal.Zero
}

// Spread returns best ask minus best bid, regardless of sign
func (b *Book) Spread() fpdecimal.Decimal {
	return b.BestAsk().Sub(b.BestBid())
}

// Statistics returns the monotonic trade counters and the active order count
func (b *Book) Statistics() Stats {
	return Stats{
		Trades:       b.trades,
		Volume:       b.volume,
		ActiveOrders: b.backend.Len(),
	}
}

// TotalOrders returns the number of resting orders
func (b *Book) TotalOrders() int {
	return b.backend.Len()
}

// BidLevels returns the number of distinct bid prices
func (b *Book) BidLevels() int {
	return b.backend.LevelCount(Buy)
}

// AskLevels returns the number of distinct ask prices
func (b *Book) AskLevels() int {
	return b.backend.LevelCount(Sell)
}

// min returns the minimum of two decimals
func min(a, b fpdecimal.Decimal) fpdecimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
