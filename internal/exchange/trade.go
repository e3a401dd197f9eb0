package exchange

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is the immutable record of one execution between a buy and a
// sell order. Exactly one Trade is created per match event.
type Trade struct {
	ID          string          // Engine assigned uuid
	Asset       AssetType       // Traded asset
	Price       decimal.Decimal // Execution price, set by the resting order
	Quantity    decimal.Decimal // Executed quantity
	BuyOrderID  string
	SellOrderID string
	Seq         uint64    // Execution sequence
	ExecutedAt  time.Time // Time of execution
}
