package core

import "github.com/nikolaydubina/fpdecimal"

// BookBackend defines the storage interface the matching engine runs
// against. A backend owns the two price ladders, the per-level FIFO queues
// and the order index, and must keep all three consistent on every call:
// an order id resolves through the index if and only if the order is linked
// into a level, and a level's aggregate always equals the sum of its
// members' remaining quantities.
//
// Orders returned by GetOrder and Best stay owned by the backend and are
// only valid until the next mutating call.
type BookBackend interface {
	// Order index operations
	GetOrder(id uint64) *Order
	Exists(id uint64) bool

	// Append links the order to the tail of its price level, creating the
	// level if needed, and indexes it. Returns ErrDuplicateOrderID if the
	// id is already resting.
	Append(order *Order) error

	// Remove unlinks the order from its level and the index, dropping the
	// level if it became empty. Reports whether the id was found.
	Remove(id uint64) (*Order, bool)

	// UpdateQuantity replaces the order's remaining quantity in place,
	// adjusting the level aggregate by the delta. The order keeps its
	// queue position.
	UpdateQuantity(id uint64, quantity fpdecimal.Decimal) bool

	// Fill decrements the order and its level aggregate by quantity and
	// fully removes the order once its remainder reaches zero.
	Fill(id uint64, quantity fpdecimal.Decimal) bool

	// Best returns the oldest order at the best price of the given side.
	Best(side Side) (*Order, bool)

	// Levels returns up to depth levels from the best price outward.
	Levels(side Side, depth int) []BookLevel

	LevelCount(side Side) int
	Len() int
}
