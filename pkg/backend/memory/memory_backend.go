// Package memory implements core.BookBackend with in-process data
// structures: one btree ladder per side, an owned doubly-linked FIFO per
// price level, and a hash index from order id to its slot for O(1) cancel
// and amend.
//
// The backend assumes a single logical writer, the same contract as the
// book itself; it holds no locks.
package memory

import (
	"fmt"
	"strings"

	"github.com/erain9/limitbook/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
)

// bookEntry locates a resting order: its side, owning level and queue slot
type bookEntry struct {
	side  core.Side
	level *priceLevel
	node  *orderNode
}

// MemoryBackend implements core.BookBackend with in-memory storage
type MemoryBackend struct {
	bids  *ladder
	asks  *ladder
	index map[uint64]*bookEntry
}

// NewMemoryBackend creates new instance of MemoryBackend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		bids:  newLadder(core.Buy),
		asks:  newLadder(core.Sell),
		index: make(map[uint64]*bookEntry),
	}
}

func (b *MemoryBackend) side(side core.Side) *ladder {
	if side == core.Buy {
		return b.bids
	}
	return b.asks
}

// GetOrder retrieves a resting order by ID, or nil
func (b *MemoryBackend) GetOrder(id uint64) *core.Order {
	entry, ok := b.index[id]
	if !ok {
		return nil
	}
	return entry.node.order
}

// Exists reports whether the id is resting
func (b *MemoryBackend) Exists(id uint64) bool {
	_, ok := b.index[id]
	return ok
}

// Append links the order at the tail of its price level and indexes it
func (b *MemoryBackend) Append(order *core.Order) error {
	if _, ok := b.index[order.ID()]; ok {
		return core.ErrDuplicateOrderID
	}

	level := b.side(order.Side()).getOrCreate(order.Price())
	node := level.push(order)

	b.index[order.ID()] = &bookEntry{
		side:  order.Side(),
		level: level,
		node:  node,
	}

	return nil
}

// Remove unlinks the order from its level and the index as one operation
func (b *MemoryBackend) Remove(id uint64) (*core.Order, bool) {
	entry, ok := b.index[id]
	if !ok {
		return nil, false
	}

	entry.level.decrease(entry.node.order.Quantity())
	b.drop(id, entry)

	return entry.node.order, true
}

// drop detaches the queue slot and the index entry, dropping the level when
// its queue runs empty. Aggregate adjustment is the caller's job.
func (b *MemoryBackend) drop(id uint64, entry *bookEntry) {
	entry.level.unlink(entry.node)
	if entry.level.head == nil {
		b.side(entry.side).remove(entry.level)
	}
	delete(b.index, id)
}

// UpdateQuantity replaces the order's quantity in place, keeping its queue
// position and moving the level aggregate by the delta.
func (b *MemoryBackend) UpdateQuantity(id uint64, quantity fpdecimal.Decimal) bool {
	entry, ok := b.index[id]
	if !ok {
		return false
	}

	old := entry.node.order.Quantity()
	entry.node.order.SetQuantity(quantity)
	entry.level.quantity = entry.level.quantity.Add(quantity.Sub(old))
	if entry.level.quantity.LessThan(fpdecimal.Zero) {
		entry.level.quantity = fpdecimal.Zero
	}

	return true
}

// Fill decrements order and aggregate by quantity; a fully filled order is
// removed from queue, ladder and index immediately.
func (b *MemoryBackend) Fill(id uint64, quantity fpdecimal.Decimal) bool {
	entry, ok := b.index[id]
	if !ok {
		return false
	}

	entry.node.order.DecreaseQuantity(quantity)
	entry.level.decrease(quantity)

	if entry.node.order.Quantity().LessThanOrEqual(fpdecimal.Zero) {
		b.drop(id, entry)
	}

	return true
}

// Best returns the oldest order at the side's best price
func (b *MemoryBackend) Best(side core.Side) (*core.Order, bool) {
	level, ok := b.side(side).best()
	if !ok {
		return nil, false
	}
	return level.head.order, true
}

// Levels returns up to depth levels from the best price outward
func (b *MemoryBackend) Levels(side core.Side, depth int) []core.BookLevel {
	return b.side(side).levels(depth)
}

// LevelCount returns the number of distinct prices on the side
func (b *MemoryBackend) LevelCount(side core.Side) int {
	return b.side(side).len()
}

// Len returns the number of resting orders
func (b *MemoryBackend) Len() int {
	return len(b.index)
}

// String implements fmt.Stringer interface
func (b *MemoryBackend) String() string {
	sb := strings.Builder{}

	sb.WriteString("Ask:")
	b.asks.tree.Scan(func(level *priceLevel) bool {
		sb.WriteString(fmt.Sprintf("\n%s -> orders: %d qty: %s", level.price, level.count, level.quantity))
		return true
	})
	sb.WriteString("\nBid:")
	b.bids.tree.Scan(func(level *priceLevel) bool {
		sb.WriteString(fmt.Sprintf("\n%s -> orders: %d qty: %s", level.price, level.count, level.quantity))
		return true
	})

	return sb.String()
}

var _ core.BookBackend = (*MemoryBackend)(nil)
