package exchange

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

// priceLevel groups the resting orders at one price, oldest first as
// they are appended on arrival.
type priceLevel struct {
	price  decimal.Decimal
	orders []*Order
}

type priceLevels = btree.BTreeG[*priceLevel]

// orderBook holds the resting orders of one trading pair. Bids are
// sorted greatest price first, asks least price first, so Min of either
// tree is the best level of that side.
type orderBook struct {
	bids *priceLevels
	asks *priceLevels

	// resting orders by id, for removal on fill or cancel
	index map[string]*Order
}

func newOrderBook() *orderBook {
	bids := btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price.GreaterThan(b.price)
	})
	asks := btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price.LessThan(b.price)
	})
	return &orderBook{
		bids:  bids,
		asks:  asks,
		index: make(map[string]*Order),
	}
}

func (book *orderBook) levels(side Side) *priceLevels {
	if side == Buy {
		return book.bids
	}
	return book.asks
}

// insert rests an order on its own side. Only active orders with
// positive remaining quantity and a positive price may rest.
func (book *orderBook) insert(order *Order) error {
	if !order.Remaining.IsPositive() || !order.Price.IsPositive() {
		return fmt.Errorf("%w: order %s has non-positive remaining quantity or price", ErrValidation, order.ID)
	}
	if !order.Active() {
		return fmt.Errorf("%w: order %s is %s", ErrValidation, order.ID, order.Status)
	}

	levels := book.levels(order.Side)
	// Comparator only looks at the price, so a bare level works as the
	// search key.
	if level, ok := levels.GetMut(&priceLevel{price: order.Price}); ok {
		level.orders = append(level.orders, order)
	} else {
		levels.Set(&priceLevel{
			price:  order.Price,
			orders: []*Order{order},
		})
	}
	book.index[order.ID] = order
	return nil
}

// best returns the highest priority resting order on the given side, or
// nil if that side is empty. Priority is price first, then arrival.
func (book *orderBook) best(side Side) *Order {
	level, ok := book.levels(side).MinMut()
	if !ok {
		return nil
	}
	return level.orders[0]
}

// remove takes an order out of whichever side it rests on and drops the
// level once it holds no more orders.
func (book *orderBook) remove(orderID string) error {
	order, ok := book.index[orderID]
	if !ok {
		return fmt.Errorf("%w: order %s is not resting in the book", ErrNotFound, orderID)
	}

	levels := book.levels(order.Side)
	level, ok := levels.GetMut(&priceLevel{price: order.Price})
	if ok {
		for i, resting := range level.orders {
			if resting.ID == orderID {
				level.orders = append(level.orders[:i], level.orders[i+1:]...)
				break
			}
		}
		if len(level.orders) == 0 {
			levels.Delete(level)
		}
	}
	delete(book.index, orderID)
	return nil
}

// depth returns up to limit resting orders of one side in priority
// order. Orders are copied, the book is never exposed. limit <= 0
// returns the whole side.
func (book *orderBook) depth(side Side, limit int) []Order {
	out := make([]Order, 0)
	book.levels(side).Scan(func(level *priceLevel) bool {
		for _, order := range level.orders {
			if limit > 0 && len(out) == limit {
				return false
			}
			out = append(out, *order)
		}
		return true
	})
	return out
}

// depthLevels aggregates remaining quantity per price in priority order.
func (book *orderBook) depthLevels(side Side) []DepthLevel {
	out := make([]DepthLevel, 0)
	book.levels(side).Scan(func(level *priceLevel) bool {
		qty := decimal.Zero
		for _, order := range level.orders {
			qty = qty.Add(order.Remaining)
		}
		out = append(out, DepthLevel{Price: level.price, Quantity: qty})
		return true
	})
	return out
}

// size is the number of resting orders on one side.
func (book *orderBook) size(side Side) int {
	n := 0
	book.levels(side).Scan(func(level *priceLevel) bool {
		n += len(level.orders)
		return true
	})
	return n
}
