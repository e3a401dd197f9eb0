package exchange

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookSnapshot is a read-only view of both sides of one order book.
// Bids are sorted highest price first, asks lowest first, ties by
// arrival. Every order is a copy.
type BookSnapshot struct {
	Bids []Order
	Asks []Order
}

// DepthLevel is the aggregated remaining quantity at one price.
type DepthLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// MarketDepth is the aggregated order book of one pair, used for
// display. Bids descend, asks ascend.
type MarketDepth struct {
	Bids []DepthLevel
	Asks []DepthLevel
}

// MarketSummary condenses the state of one pair for reporting.
type MarketSummary struct {
	Symbol       string
	CurrentPrice decimal.Decimal
	LastUpdate   time.Time
	OpenBids     int
	OpenAsks     int
	TradeCount   int
	BestBid      *DepthLevel // nil when the side is empty
	BestAsk      *DepthLevel
}
