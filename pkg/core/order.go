package core

import (
	"encoding/json"
	"strconv"

	"github.com/nikolaydubina/fpdecimal"
)

// Side represents buy or sell side of the order
type Side int

// Order sides
const (
	Sell Side = iota
	Buy
)

// String returns side as string
func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the other side of the book
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// SideFromString parses "BUY"/"SELL" (case sensitive, as emitted by String)
func SideFromString(s string) (Side, error) {
	switch s {
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	default:
		return 0, ErrInvalidArgument
	}
}

// Order stores information about a single limit order. An Order is created
// once via NewOrder and after that only its remaining quantity changes, and
// only through the book that owns it.
type Order struct {
	id        uint64
	side      Side
	quantity  fpdecimal.Decimal
	price     fpdecimal.Decimal
	timestamp int64
}

// NewOrder creates a new Order. A zero timestamp means "stamp on arrival";
// the book fills it in from its clock when the order is added.
func NewOrder(id uint64, side Side, quantity, price fpdecimal.Decimal, timestamp int64) (*Order, error) {
	if quantity.LessThanOrEqual(fpdecimal.Zero) {
		return nil, ErrInvalidQuantity
	}

	if price.LessThanOrEqual(fpdecimal.Zero) {
		return nil, ErrInvalidPrice
	}

	return &Order{
		id:        id,
		side:      side,
		quantity:  quantity,
		price:     price,
		timestamp: timestamp,
	}, nil
}

// ID returns the order identifier
func (o *Order) ID() uint64 {
	return o.id
}

// Side returns side of the Order
func (o *Order) Side() Side {
	return o.side
}

// Quantity returns the remaining unfilled quantity
func (o *Order) Quantity() fpdecimal.Decimal {
	return o.quantity
}

// Price returns the limit price
func (o *Order) Price() fpdecimal.Decimal {
	return o.price
}

// Timestamp returns the arrival timestamp in nanoseconds
func (o *Order) Timestamp() int64 {
	return o.timestamp
}

// SetQuantity sets the remaining quantity
func (o *Order) SetQuantity(quantity fpdecimal.Decimal) {
	o.quantity = quantity
}

// DecreaseQuantity subtracts quantity from the remaining amount
func (o *Order) DecreaseQuantity(quantity fpdecimal.Decimal) {
	o.quantity = o.quantity.Sub(quantity)
}

// Clone returns a copy of the order that the caller may keep
func (o *Order) Clone() *Order {
	clone := *o
	return &clone
}

// orderJSON is the wire form of Order; decimals travel as strings
type orderJSON struct {
	ID        uint64 `json:"id"`
	Side      string `json:"side"`
	Quantity  string `json:"quantity"`
	Price     string `json:"price"`
	Timestamp int64  `json:"timestamp"`
}

// MarshalJSON implements custom JSON marshaling for Order
func (o *Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(orderJSON{
		ID:        o.id,
		Side:      o.side.String(),
		Quantity:  o.quantity.String(),
		Price:     o.price.String(),
		Timestamp: o.timestamp,
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for Order
func (o *Order) UnmarshalJSON(data []byte) error {
	var oj orderJSON
	if err := json.Unmarshal(data, &oj); err != nil {
		return err
	}

	side, err := SideFromString(oj.Side)
	if err != nil {
		return err
	}

	quantity, err := fpdecimal.FromString(oj.Quantity)
	if err != nil {
		return err
	}

	price, err := fpdecimal.FromString(oj.Price)
	if err != nil {
		return err
	}

	o.id = oj.ID
	o.side = side
	o.quantity = quantity
	o.price = price
	o.timestamp = oj.Timestamp

	return nil
}

// String implements fmt.Stringer interface
func (o *Order) String() string {
	return "#" + strconv.FormatUint(o.id, 10) + " " + o.side.String() +
		" " + o.quantity.String() + " @ " + o.price.String()
}
