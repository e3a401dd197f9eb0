package exchange

import "fmt"

// AssetType identifies one of the assets supported by the venue.
type AssetType string

const (
	USDT AssetType = "USDT"
	BTC  AssetType = "BTC"
)

// Valid reports whether the asset is part of the supported set.
func (a AssetType) Valid() bool {
	switch a {
	case USDT, BTC:
		return true
	}
	return false
}

// Tradable reports whether the asset trades against the quote currency.
// USDT is the quote currency itself and has no pair of its own.
func (a AssetType) Tradable() bool {
	return a.Valid() && a != USDT
}

// Side is the direction of an order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

func (s Side) Valid() bool {
	switch s {
	case Buy, Sell:
		return true
	}
	return false
}

// Opposite returns the side an incoming order matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) String() string { return string(s) }

// ParseSide converts a textual side into a Side.
func ParseSide(s string) (Side, error) {
	side := Side(s)
	if !side.Valid() {
		return "", fmt.Errorf("%w: unknown side %q", ErrValidation, s)
	}
	return side, nil
}
