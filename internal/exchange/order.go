package exchange

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderOpen            OrderStatus = "open"
	OrderPartiallyFilled OrderStatus = "partially_filled"
	OrderFilled          OrderStatus = "filled"
	OrderCancelled       OrderStatus = "cancelled"
)

// Order is a standing instruction to trade. Orders are created and mutated
// only by the Exchange; callers always receive value copies.
type Order struct {
	ID        string          // Engine assigned uuid
	UserID    string          // Owning user
	Side      Side            // Order side
	Asset     AssetType       // Traded asset, quoted in USDT
	Quantity  decimal.Decimal // Original quantity, fixed at creation
	Remaining decimal.Decimal // Unfilled quantity
	Price     decimal.Decimal // Limit price
	Seq       uint64          // Arrival sequence, used for time priority
	CreatedAt time.Time       // Time of acceptance into the engine
	Status    OrderStatus     // Lifecycle status
}

// Filled returns the quantity executed so far.
func (o Order) Filled() decimal.Decimal {
	return o.Quantity.Sub(o.Remaining)
}

// Active reports whether the order is still eligible for matching.
func (o Order) Active() bool {
	return o.Status == OrderOpen || o.Status == OrderPartiallyFilled
}

// Terminal reports whether the order reached an absorbing state.
func (o Order) Terminal() bool {
	return o.Status == OrderFilled || o.Status == OrderCancelled
}

// fill decrements the remaining quantity after a match and moves the
// status forward. FILLED iff nothing remains.
func (o *Order) fill(qty decimal.Decimal) {
	o.Remaining = o.Remaining.Sub(qty)
	if o.Remaining.IsZero() {
		o.Status = OrderFilled
	} else {
		o.Status = OrderPartiallyFilled
	}
}
