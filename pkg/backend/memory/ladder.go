package memory

import (
	"github.com/erain9/limitbook/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/tidwall/btree"
)

// orderNode is one resting order's slot in a level's FIFO queue. Nodes are
// owned by their priceLevel; the index holds back-references only.
type orderNode struct {
	order *core.Order
	prev  *orderNode
	next  *orderNode
}

// priceLevel aggregates all orders resting at one exact price on one side.
// quantity is kept alongside the queue so depth queries never scan orders.
type priceLevel struct {
	price    fpdecimal.Decimal
	quantity fpdecimal.Decimal
	head     *orderNode
	tail     *orderNode
	count    int
}

func (l *priceLevel) push(order *core.Order) *orderNode {
	node := &orderNode{order: order}
	if l.tail == nil {
		l.head = node
		l.tail = node
	} else {
		node.prev = l.tail
		l.tail.next = node
		l.tail = node
	}
	l.count++
	l.quantity = l.quantity.Add(order.Quantity())
	return node
}

func (l *priceLevel) unlink(node *orderNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	l.count--
}

// decrease lowers the aggregate by quantity, clamped at zero
func (l *priceLevel) decrease(quantity fpdecimal.Decimal) {
	l.quantity = l.quantity.Sub(quantity)
	if l.quantity.LessThan(fpdecimal.Zero) {
		l.quantity = fpdecimal.Zero
	}
}

// ladder is one side's price-ordered collection of levels. The same
// implementation serves both sides; only the comparator differs, so the
// tree minimum is always the best price for its side.
type ladder struct {
	tree *btree.BTreeG[*priceLevel]
}

func newLadder(side core.Side) *ladder {
	var less func(a, b *priceLevel) bool
	if side == core.Buy {
		// Bid side: highest price first
		less = func(a, b *priceLevel) bool { return a.price.GreaterThan(b.price) }
	} else {
		// Ask side: lowest price first
		less = func(a, b *priceLevel) bool { return a.price.LessThan(b.price) }
	}
	return &ladder{tree: btree.NewBTreeG(less)}
}

// getOrCreate finds the level keyed by the exact price, creating it if absent
func (d *ladder) getOrCreate(price fpdecimal.Decimal) *priceLevel {
	if level, ok := d.tree.Get(&priceLevel{price: price}); ok {
		return level
	}
	level := &priceLevel{price: price, quantity: fpdecimal.Zero}
	d.tree.Set(level)
	return level
}

func (d *ladder) remove(level *priceLevel) {
	d.tree.Delete(level)
}

func (d *ladder) best() (*priceLevel, bool) {
	return d.tree.Min()
}

func (d *ladder) levels(depth int) []core.BookLevel {
	out := make([]core.BookLevel, 0, depth)
	d.tree.Scan(func(level *priceLevel) bool {
		if len(out) >= depth {
			return false
		}
		out = append(out, core.BookLevel{Price: level.price, Quantity: level.quantity})
		return true
	})
	return out
}

func (d *ladder) len() int {
	return d.tree.Len()
}
