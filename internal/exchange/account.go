package exchange

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Portfolio is the holding of one user in one asset. Locked funds back
// the user's resting orders and move back to Available on cancel, or
// are spent on fill.
type Portfolio struct {
	Asset     AssetType
	Available decimal.Decimal
	Locked    decimal.Decimal
}

// Total is the sum of available and locked balance.
func (p Portfolio) Total() decimal.Decimal {
	return p.Available.Add(p.Locked)
}

// User is the public identity of an account holder.
type User struct {
	ID        string
	Username  string
	Email     string
	CreatedAt time.Time
}

// account pairs a user with their engine-owned portfolios.
type account struct {
	user       User
	portfolios map[AssetType]*Portfolio
}

func newAccount(username, email string) *account {
	return &account{
		user: User{
			ID:        uuid.NewString(),
			Username:  username,
			Email:     email,
			CreatedAt: time.Now(),
		},
		portfolios: make(map[AssetType]*Portfolio),
	}
}

// portfolio returns the mutable holding for an asset, creating the
// entry on first use. Only write-lock paths may call it; read paths
// use view so concurrent queries never touch the map.
func (a *account) portfolio(asset AssetType) *Portfolio {
	p, ok := a.portfolios[asset]
	if !ok {
		p = &Portfolio{Asset: asset}
		a.portfolios[asset] = p
	}
	return p
}

// view returns a copy of the holding without creating an entry.
func (a *account) view(asset AssetType) Portfolio {
	if p, ok := a.portfolios[asset]; ok {
		return *p
	}
	return Portfolio{Asset: asset}
}

// lock moves funds from available to locked, backing a new order.
func (a *account) lock(asset AssetType, amount decimal.Decimal) error {
	p := a.portfolio(asset)
	if p.Available.LessThan(amount) {
		return fmt.Errorf("%w: need %s %s, available %s",
			ErrInsufficientBalance, amount, asset, p.Available)
	}
	p.Available = p.Available.Sub(amount)
	p.Locked = p.Locked.Add(amount)
	return nil
}

// unlock releases locked funds back to available, on cancel or when an
// execution beats the locked limit price.
func (a *account) unlock(asset AssetType, amount decimal.Decimal) {
	p := a.portfolio(asset)
	p.Locked = p.Locked.Sub(amount)
	p.Available = p.Available.Add(amount)
}

// spendLocked consumes locked funds that were exchanged away in a trade.
func (a *account) spendLocked(asset AssetType, amount decimal.Decimal) {
	p := a.portfolio(asset)
	p.Locked = p.Locked.Sub(amount)
}

// credit adds freshly received funds to the available balance.
func (a *account) credit(asset AssetType, amount decimal.Decimal) {
	p := a.portfolio(asset)
	p.Available = p.Available.Add(amount)
}
