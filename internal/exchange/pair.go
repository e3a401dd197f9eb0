package exchange

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradingPair tracks the reference price of one asset quoted in USDT.
// The current price is the execution price of the most recent trade, or
// the seed price while no trade has happened yet.
type TradingPair struct {
	Asset        AssetType
	CurrentPrice decimal.Decimal
	LastUpdate   time.Time
	LastSeq      uint64 // Sequence of the trade that set the price, 0 if seeded
}

// Symbol returns the conventional pair notation, e.g. "BTC/USDT".
func (p TradingPair) Symbol() string {
	return string(p.Asset) + "/" + string(USDT)
}

// initialPrices seeds the reference price of every tradable asset
// before the first execution.
var initialPrices = map[AssetType]decimal.Decimal{
	BTC: decimal.NewFromInt(50000),
}
