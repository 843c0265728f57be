package core_test

import (
	"testing"

	"github.com/nikolaydubina/fpdecimal"

	"github.com/erain9/limitbook/pkg/backend/memory"
	"github.com/erain9/limitbook/pkg/core"
)

// newTestBook builds a book on the in-memory backend with a deterministic
// clock so queue positions are reproducible.
func newTestBook(t *testing.T) *core.Book {
	t.Helper()
	var tick int64
	clock := func() int64 {
		tick++
		return tick
	}
	return core.NewBook(memory.NewMemoryBackend(), core.WithClock(clock))
}

func mustOrder(t *testing.T, id uint64, side core.Side, quantity, price float64) *core.Order {
	t.Helper()
	order, err := core.NewOrder(id, side, fpdecimal.FromFloat(quantity), fpdecimal.FromFloat(price), 0)
	if err != nil {
		t.Fatalf("NewOrder(%d) failed: %v", id, err)
	}
	return order
}

func addOrder(t *testing.T, book *core.Book, id uint64, side core.Side, quantity, price float64) []core.Trade {
	t.Helper()
	trades, err := book.AddOrder(mustOrder(t, id, side, quantity, price), true)
	if err != nil {
		t.Fatalf("AddOrder(%d) failed: %v", id, err)
	}
	return trades
}

func TestAddOrderRestsWithoutCross(t *testing.T) {
	book := newTestBook(t)

	trades := addOrder(t, book, 1, core.Buy, 100, 99.0)
	if len(trades) != 0 {
		t.Fatalf("Expected no trades, got %d", len(trades))
	}

	trades = addOrder(t, book, 2, core.Sell, 100, 101.0)
	if len(trades) != 0 {
		t.Fatalf("Expected no trades, got %d", len(trades))
	}

	if book.TotalOrders() != 2 {
		t.Errorf("Expected 2 resting orders, got %d", book.TotalOrders())
	}
	if book.BidLevels() != 1 || book.AskLevels() != 1 {
		t.Errorf("Expected 1 level per side, got %d bid / %d ask", book.BidLevels(), book.AskLevels())
	}
	if !book.BestBid().Equal(fpdecimal.FromFloat(99.0)) {
		t.Errorf("Expected best bid 99.0, got %s", book.BestBid())
	}
	if !book.BestAsk().Equal(fpdecimal.FromFloat(101.0)) {
		t.Errorf("Expected best ask 101.0, got %s", book.BestAsk())
	}
	if !book.Spread().Equal(fpdecimal.FromFloat(2.0)) {
		t.Errorf("Expected spread 2.0, got %s", book.Spread())
	}
}

func TestSnapshotAggregatesPerPrice(t *testing.T) {
	book := newTestBook(t)

	addOrder(t, book, 1, core.Buy, 50, 101.0)
	addOrder(t, book, 2, core.Buy, 100, 100.0)
	addOrder(t, book, 3, core.Buy, 200, 100.0)
	addOrder(t, book, 4, core.Buy, 25, 98.5)

	bids, asks := book.Snapshot(2)
	if len(asks) != 0 {
		t.Fatalf("Expected empty ask side, got %d levels", len(asks))
	}
	if len(bids) != 2 {
		t.Fatalf("Expected 2 bid levels at depth 2, got %d", len(bids))
	}

	if !bids[0].Price.Equal(fpdecimal.FromFloat(101.0)) || !bids[0].Quantity.Equal(fpdecimal.FromFloat(50.0)) {
		t.Errorf("Unexpected top bid level: %s @ %s", bids[0].Quantity, bids[0].Price)
	}
	if !bids[1].Price.Equal(fpdecimal.FromFloat(100.0)) || !bids[1].Quantity.Equal(fpdecimal.FromFloat(300.0)) {
		t.Errorf("Unexpected second bid level: %s @ %s", bids[1].Quantity, bids[1].Price)
	}
}

func TestMatchTradesAtLowerOfTheTwoPrices(t *testing.T) {
	book := newTestBook(t)

	addOrder(t, book, 1, core.Buy, 100, 100.0)
	trades := addOrder(t, book, 2, core.Sell, 50, 99.0)

	if len(trades) != 1 {
		t.Fatalf("Expected 1 trade, got %d", len(trades))
	}

	trade := trades[0]
	if trade.BuyOrderID != 1 || trade.SellOrderID != 2 {
		t.Errorf("Unexpected trade parties: buy %d sell %d", trade.BuyOrderID, trade.SellOrderID)
	}
	if !trade.Price.Equal(fpdecimal.FromFloat(99.0)) {
		t.Errorf("Expected trade price 99.0, got %s", trade.Price)
	}
	if !trade.Quantity.Equal(fpdecimal.FromFloat(50.0)) {
		t.Errorf("Expected trade quantity 50, got %s", trade.Quantity)
	}

	// The incoming sell is fully filled and gone; the resting buy keeps
	// its remainder at the same price.
	if book.OrderExists(2) {
		t.Error("Expected order 2 to be fully filled and removed")
	}
	resting := book.GetOrder(1)
	if resting == nil {
		t.Fatal("Expected order 1 to stay resting")
	}
	if !resting.Quantity().Equal(fpdecimal.FromFloat(50.0)) {
		t.Errorf("Expected order 1 remainder 50, got %s", resting.Quantity())
	}

	stats := book.Statistics()
	if stats.Trades != 1 {
		t.Errorf("Expected 1 trade in stats, got %d", stats.Trades)
	}
	if !stats.Volume.Equal(fpdecimal.FromFloat(50.0)) {
		t.Errorf("Expected volume 50, got %s", stats.Volume)
	}
	if stats.ActiveOrders != 1 {
		t.Errorf("Expected 1 active order, got %d", stats.ActiveOrders)
	}
}

func TestMatchAtEqualPrices(t *testing.T) {
	book := newTestBook(t)

	addOrder(t, book, 1, core.Sell, 30, 100.0)
	trades := addOrder(t, book, 2, core.Buy, 30, 100.0)

	if len(trades) != 1 {
		t.Fatalf("Expected 1 trade, got %d", len(trades))
	}
	if !trades[0].Price.Equal(fpdecimal.FromFloat(100.0)) {
		t.Errorf("Expected trade price 100.0, got %s", trades[0].Price)
	}
	if book.TotalOrders() != 0 {
		t.Errorf("Expected empty book, got %d orders", book.TotalOrders())
	}
}

func TestMatchSweepsMultipleLevels(t *testing.T) {
	book := newTestBook(t)

	addOrder(t, book, 1, core.Sell, 40, 100.0)
	addOrder(t, book, 2, core.Sell, 40, 101.0)
	trades := addOrder(t, book, 3, core.Buy, 100, 101.0)

	if len(trades) != 2 {
		t.Fatalf("Expected 2 trades, got %d", len(trades))
	}
	if !trades[0].Price.Equal(fpdecimal.FromFloat(100.0)) {
		t.Errorf("First trade at %s, want 100.0", trades[0].Price)
	}
	if !trades[1].Price.Equal(fpdecimal.FromFloat(101.0)) {
		t.Errorf("Second trade at %s, want 101.0", trades[1].Price)
	}

	// 20 of the buy is left at 101.0 and the sides no longer cross
	resting := book.GetOrder(3)
	if resting == nil || !resting.Quantity().Equal(fpdecimal.FromFloat(20.0)) {
		t.Fatalf("Expected order 3 remainder 20, got %v", resting)
	}
	if book.AskLevels() != 0 {
		t.Errorf("Expected ask side swept, got %d levels", book.AskLevels())
	}
}

func TestMatchPreservesTimePriority(t *testing.T) {
	book := newTestBook(t)

	addOrder(t, book, 1, core.Buy, 50, 100.0)
	addOrder(t, book, 2, core.Buy, 50, 100.0)
	trades := addOrder(t, book, 3, core.Sell, 70, 100.0)

	if len(trades) != 2 {
		t.Fatalf("Expected 2 trades, got %d", len(trades))
	}
	if trades[0].BuyOrderID != 1 {
		t.Errorf("Expected order 1 to fill first, got %d", trades[0].BuyOrderID)
	}
	if trades[1].BuyOrderID != 2 {
		t.Errorf("Expected order 2 to fill second, got %d", trades[1].BuyOrderID)
	}

	// Order 2 is partially filled but keeps the head of its level
	resting := book.GetOrder(2)
	if resting == nil || !resting.Quantity().Equal(fpdecimal.FromFloat(30.0)) {
		t.Fatalf("Expected order 2 remainder 30, got %v", resting)
	}
}

func TestDuplicateIDLeavesBookUnchanged(t *testing.T) {
	book := newTestBook(t)

	addOrder(t, book, 1, core.Buy, 100, 99.0)

	_, err := book.AddOrder(mustOrder(t, 1, core.Sell, 10, 101.0), true)
	if err != core.ErrDuplicateOrderID {
		t.Fatalf("Expected ErrDuplicateOrderID, got %v", err)
	}

	if book.TotalOrders() != 1 {
		t.Errorf("Expected 1 resting order, got %d", book.TotalOrders())
	}
	resting := book.GetOrder(1)
	if resting.Side() != core.Buy || !resting.Quantity().Equal(fpdecimal.FromFloat(100.0)) {
		t.Errorf("Original order was disturbed: %v", resting)
	}
}

func TestAddOrderNil(t *testing.T) {
	book := newTestBook(t)

	if _, err := book.AddOrder(nil, true); err != core.ErrInvalidArgument {
		t.Errorf("Expected ErrInvalidArgument for nil order, got %v", err)
	}
}

func TestCancelOrder(t *testing.T) {
	book := newTestBook(t)

	addOrder(t, book, 1, core.Buy, 100, 99.0)

	if !book.CancelOrder(1) {
		t.Error("Expected cancel of resting order to succeed")
	}
	if book.OrderExists(1) {
		t.Error("Expected order 1 to be gone after cancel")
	}
	if book.BidLevels() != 0 {
		t.Errorf("Expected empty level to be dropped, got %d levels", book.BidLevels())
	}

	// Cancelling again or cancelling an unknown id reports false
	if book.CancelOrder(1) {
		t.Error("Expected second cancel to report false")
	}
	if book.CancelOrder(999) {
		t.Error("Expected cancel of unknown id to report false")
	}
}

func TestAmendQuantityKeepsQueuePosition(t *testing.T) {
	book := newTestBook(t)

	addOrder(t, book, 1, core.Buy, 200, 100.0)
	addOrder(t, book, 2, core.Buy, 200, 100.0)

	amended, trades, err := book.AmendOrder(1, fpdecimal.FromFloat(100.0), fpdecimal.FromFloat(500.0), true)
	if err != nil || !amended {
		t.Fatalf("AmendOrder failed: amended=%v err=%v", amended, err)
	}
	if len(trades) != 0 {
		t.Fatalf("Expected no trades from amend, got %d", len(trades))
	}

	bids, _ := book.Snapshot(1)
	if !bids[0].Quantity.Equal(fpdecimal.FromFloat(700.0)) {
		t.Errorf("Expected level aggregate 700, got %s", bids[0].Quantity)
	}

	// A size change, up or down, never costs the queue slot
	matched := addOrder(t, book, 3, core.Sell, 10, 100.0)
	if len(matched) != 1 || matched[0].BuyOrderID != 1 {
		t.Errorf("Expected order 1 to still be at the head, trades: %v", matched)
	}
}

func TestAmendPriceLosesTimePriority(t *testing.T) {
	book := newTestBook(t)

	addOrder(t, book, 1, core.Buy, 100, 100.0)
	addOrder(t, book, 2, core.Buy, 100, 101.0)

	// Move order 1 to 101.0; it joins behind order 2
	amended, _, err := book.AmendOrder(1, fpdecimal.FromFloat(101.0), fpdecimal.FromFloat(100.0), true)
	if err != nil || !amended {
		t.Fatalf("AmendOrder failed: amended=%v err=%v", amended, err)
	}
	if book.BidLevels() != 1 {
		t.Fatalf("Expected a single bid level, got %d", book.BidLevels())
	}

	trades := addOrder(t, book, 3, core.Sell, 100, 101.0)
	if len(trades) != 1 || trades[0].BuyOrderID != 2 {
		t.Errorf("Expected order 2 to fill first after reprice, trades: %v", trades)
	}
}

func TestAmendPriceCanTriggerMatch(t *testing.T) {
	book := newTestBook(t)

	addOrder(t, book, 1, core.Buy, 100, 99.0)
	addOrder(t, book, 2, core.Sell, 100, 101.0)

	amended, trades, err := book.AmendOrder(1, fpdecimal.FromFloat(101.0), fpdecimal.FromFloat(100.0), true)
	if err != nil || !amended {
		t.Fatalf("AmendOrder failed: amended=%v err=%v", amended, err)
	}
	if len(trades) != 1 {
		t.Fatalf("Expected repricing across the spread to trade, got %d trades", len(trades))
	}
	if !trades[0].Price.Equal(fpdecimal.FromFloat(101.0)) {
		t.Errorf("Expected trade at 101.0, got %s", trades[0].Price)
	}
	if book.TotalOrders() != 0 {
		t.Errorf("Expected both orders filled, %d left", book.TotalOrders())
	}
}

func TestAmendUnknownOrder(t *testing.T) {
	book := newTestBook(t)

	amended, trades, err := book.AmendOrder(42, fpdecimal.FromFloat(100.0), fpdecimal.FromFloat(10.0), true)
	if err != nil {
		t.Fatalf("Expected no error for unknown id, got %v", err)
	}
	if amended || trades != nil {
		t.Errorf("Expected amended=false and no trades, got %v %v", amended, trades)
	}
}

func TestAmendValidation(t *testing.T) {
	book := newTestBook(t)

	addOrder(t, book, 1, core.Buy, 100, 99.0)

	if _, _, err := book.AmendOrder(1, fpdecimal.FromFloat(99.0), fpdecimal.Zero, true); err != core.ErrInvalidQuantity {
		t.Errorf("Expected ErrInvalidQuantity, got %v", err)
	}
	if _, _, err := book.AmendOrder(1, fpdecimal.Zero, fpdecimal.FromFloat(10.0), true); err != core.ErrInvalidPrice {
		t.Errorf("Expected ErrInvalidPrice, got %v", err)
	}

	// Failed amends leave the order as it was
	resting := book.GetOrder(1)
	if !resting.Quantity().Equal(fpdecimal.FromFloat(100.0)) || !resting.Price().Equal(fpdecimal.FromFloat(99.0)) {
		t.Errorf("Order changed by failed amend: %v", resting)
	}
}

func TestDeferredMatching(t *testing.T) {
	book := newTestBook(t)

	// Crossing orders inserted without matching simply rest
	for i := 0; i < 500; i++ {
		id := uint64(i + 1)
		order := mustOrder(t, id, core.Buy, 10, 100.0)
		if _, err := book.AddOrder(order, false); err != nil {
			t.Fatalf("AddOrder(%d) failed: %v", id, err)
		}
	}
	for i := 0; i < 500; i++ {
		id := uint64(i + 501)
		order := mustOrder(t, id, core.Sell, 10, 100.0)
		if _, err := book.AddOrder(order, false); err != nil {
			t.Fatalf("AddOrder(%d) failed: %v", id, err)
		}
	}

	if book.TotalOrders() != 1000 {
		t.Fatalf("Expected 1000 resting orders, got %d", book.TotalOrders())
	}
	if book.Statistics().Trades != 0 {
		t.Fatalf("Expected no trades before MatchOrders, got %d", book.Statistics().Trades)
	}

	// Cancel half of the sells, then run the deferred pass
	for i := 0; i < 250; i++ {
		if !book.CancelOrder(uint64(i + 501)) {
			t.Fatalf("Cancel of %d failed", i+501)
		}
	}
	if book.TotalOrders() != 750 {
		t.Fatalf("Expected 750 resting orders after cancels, got %d", book.TotalOrders())
	}

	trades := book.MatchOrders()
	if len(trades) != 250 {
		t.Fatalf("Expected 250 trades, got %d", len(trades))
	}

	stats := book.Statistics()
	if stats.Trades != 250 {
		t.Errorf("Expected 250 trades in stats, got %d", stats.Trades)
	}
	if !stats.Volume.Equal(fpdecimal.FromFloat(2500.0)) {
		t.Errorf("Expected volume 2500, got %s", stats.Volume)
	}
	if stats.ActiveOrders != 250 {
		t.Errorf("Expected 250 buys left, got %d", stats.ActiveOrders)
	}
}

func TestBulkDeferredInsertAndCancel(t *testing.T) {
	book := newTestBook(t)

	for i := 0; i < 1000; i++ {
		id := uint64(i + 1)
		order := mustOrder(t, id, core.Buy, 10, 50.0+float64(i%100)*0.25)
		if _, err := book.AddOrder(order, false); err != nil {
			t.Fatalf("AddOrder(%d) failed: %v", id, err)
		}
	}

	for i := 0; i < 500; i++ {
		if !book.CancelOrder(uint64(i + 1)) {
			t.Fatalf("Cancel of %d failed", i+1)
		}
	}

	if book.TotalOrders() != 500 {
		t.Errorf("Expected exactly 500 resting orders, got %d", book.TotalOrders())
	}
	if stats := book.Statistics(); stats.Trades != 0 {
		t.Errorf("Expected no trades, got %d", stats.Trades)
	}
}

func TestNoCrossAfterMatching(t *testing.T) {
	book := newTestBook(t)

	addOrder(t, book, 1, core.Buy, 100, 101.0)
	addOrder(t, book, 2, core.Buy, 100, 100.0)
	addOrder(t, book, 3, core.Sell, 150, 100.5)

	bestBid := book.BestBid()
	bestAsk := book.BestAsk()
	if !bestBid.Equal(fpdecimal.Zero) && !bestAsk.Equal(fpdecimal.Zero) {
		if bestAsk.LessThanOrEqual(bestBid) {
			t.Errorf("Book crossed after matching: bid %s ask %s", bestBid, bestAsk)
		}
	}
}

func TestBestPricesOnEmptyBook(t *testing.T) {
	book := newTestBook(t)

	if !book.BestBid().Equal(fpdecimal.Zero) {
		t.Errorf("Expected zero best bid on empty book, got %s", book.BestBid())
	}
	if !book.BestAsk().Equal(fpdecimal.Zero) {
		t.Errorf("Expected zero best ask on empty book, got %s", book.BestAsk())
	}
	if !book.Spread().Equal(fpdecimal.Zero) {
		t.Errorf("Expected zero spread on empty book, got %s", book.Spread())
	}
}

func TestGetOrderReturnsCopy(t *testing.T) {
	book := newTestBook(t)

	addOrder(t, book, 1, core.Buy, 100, 99.0)

	copy1 := book.GetOrder(1)
	copy1.SetQuantity(fpdecimal.FromFloat(1.0))

	if !book.GetOrder(1).Quantity().Equal(fpdecimal.FromFloat(100.0)) {
		t.Error("Mutating the returned order leaked into the book")
	}

	if book.GetOrder(999) != nil {
		t.Error("Expected nil for unknown order id")
	}
}
