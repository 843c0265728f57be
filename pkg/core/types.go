package core

import (
	"encoding/json"

	"github.com/nikolaydubina/fpdecimal"
)

// Trade records a single execution between the resting heads of the two
// crossing price levels. Price is the less aggressive of the two limit
// prices, so the more aggressive counterparty gets the improvement.
type Trade struct {
	BuyOrderID  uint64
	SellOrderID uint64
	Price       fpdecimal.Decimal
	Quantity    fpdecimal.Decimal
}

// MarshalJSON implements Marshaler interface
func (t Trade) MarshalJSON() ([]byte, error) {
	customStruct := struct {
		BuyOrderID  uint64 `json:"buyOrderID"`
		SellOrderID uint64 `json:"sellOrderID"`
		Price       string `json:"price"`
		Quantity    string `json:"quantity"`
	}{
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		Price:       t.Price.String(),
		Quantity:    t.Quantity.String(),
	}
	return json.Marshal(customStruct)
}

// BookLevel is a snapshot of one price level: the price and the aggregate
// quantity of all orders resting there.
type BookLevel struct {
	Price    fpdecimal.Decimal
	Quantity fpdecimal.Decimal
}

// MarshalJSON implements Marshaler interface
func (l BookLevel) MarshalJSON() ([]byte, error) {
	customStruct := struct {
		Price    string `json:"price"`
		Quantity string `json:"quantity"`
	}{
		Price:    l.Price.String(),
		Quantity: l.Quantity.String(),
	}
	return json.Marshal(customStruct)
}

// Stats carries the book's monotonic execution counters plus the number of
// orders resting at the time of the query.
type Stats struct {
	Trades       uint64
	Volume       fpdecimal.Decimal
	ActiveOrders int
}

// MarshalJSON implements Marshaler interface
func (s Stats) MarshalJSON() ([]byte, error) {
	customStruct := struct {
		Trades       uint64 `json:"trades"`
		Volume       string `json:"volume"`
		ActiveOrders int    `json:"activeOrders"`
	}{
		Trades:       s.Trades,
		Volume:       s.Volume.String(),
		ActiveOrders: s.ActiveOrders,
	}
	return json.Marshal(customStruct)
}
