// Package sim drives an exchange with a crowd of randomized traders,
// used by cmd/sim and the soak tests. Each trader runs in its own
// goroutine with its own seeded RNG, so a given seed and trader count
// reproduce the same stream of per-trader decisions.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	tomb "gopkg.in/tomb.v2"

	"github.com/0xWelt/TradeMasterOnline/internal/exchange"
)

// Config tunes one simulation run.
type Config struct {
	Traders int   // number of concurrent traders
	Rounds  int   // actions per trader
	Seed    int64 // base RNG seed; trader i uses Seed+i
	Asset   exchange.AssetType
}

// Stats summarizes what a run did to the venue.
type Stats struct {
	OrdersPlaced    int64
	OrdersRejected  int64
	OrdersCancelled int64
	TradesExecuted  int
	FinalPrice      decimal.Decimal
}

// Simulator owns one run over one exchange instance.
type Simulator struct {
	cfg Config
	ex  *exchange.Exchange
	log zerolog.Logger

	placed    atomic.Int64
	rejected  atomic.Int64
	cancelled atomic.Int64
}

var traderNames = []string{
	"alice", "bob", "charlie", "david", "eva",
	"frank", "grace", "henry", "ivy", "jack",
}

// Starting balances per trader, roughly equal value at the seed price.
var (
	startQuote = decimal.NewFromInt(50000)
	startBase  = decimal.NewFromInt(1)
)

const (
	buyBias      = 0.6  // fraction of placements that are buys
	cancelChance = 0.1  // fraction of rounds spent cancelling instead
	volatility   = 0.02 // max relative distance from the market price
)

func New(cfg Config, ex *exchange.Exchange, log zerolog.Logger) *Simulator {
	if cfg.Asset == "" {
		cfg.Asset = exchange.BTC
	}
	return &Simulator{cfg: cfg, ex: ex, log: log}
}

// Run registers and funds the traders, lets them trade for the
// configured number of rounds and reports totals. Cancelling the
// context stops the traders early and reports whatever was done up to
// that point.
func (s *Simulator) Run(ctx context.Context) (Stats, error) {
	if s.cfg.Traders <= 0 || s.cfg.Rounds <= 0 {
		return Stats{}, fmt.Errorf("simulation needs at least one trader and one round, got %d/%d",
			s.cfg.Traders, s.cfg.Rounds)
	}
	users, err := s.setupTraders()
	if err != nil {
		return Stats{}, err
	}

	t, _ := tomb.WithContext(ctx)
	for i, user := range users {
		rng := rand.New(rand.NewSource(s.cfg.Seed + int64(i)))
		t.Go(func() error {
			return s.trade(t, user, rng)
		})
	}
	// The tomb dies with the context's error on cancellation; that is
	// an early stop, not a failure.
	if err := t.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return Stats{}, err
	}

	trades, err := s.ex.GetRecentTrades(s.cfg.Asset, 0)
	if err != nil {
		return Stats{}, err
	}
	price, err := s.ex.GetMarketPrice(s.cfg.Asset)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		OrdersPlaced:    s.placed.Load(),
		OrdersRejected:  s.rejected.Load(),
		OrdersCancelled: s.cancelled.Load(),
		TradesExecuted:  len(trades),
		FinalPrice:      price,
	}, nil
}

func (s *Simulator) setupTraders() ([]exchange.User, error) {
	users := make([]exchange.User, 0, s.cfg.Traders)
	for i := 0; i < s.cfg.Traders; i++ {
		name := traderNames[i%len(traderNames)]
		if i >= len(traderNames) {
			name = fmt.Sprintf("%s%d", name, i/len(traderNames))
		}
		user, err := s.ex.CreateUser(name, name+"@example.com")
		if err != nil {
			return nil, fmt.Errorf("creating trader %s: %w", name, err)
		}
		if err := s.ex.Deposit(user.ID, exchange.USDT, startQuote); err != nil {
			return nil, fmt.Errorf("funding trader %s: %w", name, err)
		}
		if err := s.ex.Deposit(user.ID, s.cfg.Asset, startBase); err != nil {
			return nil, fmt.Errorf("funding trader %s: %w", name, err)
		}
		users = append(users, user)
	}
	return users, nil
}

// trade is one trader's loop: mostly random limit orders around the
// current market price, occasionally cancelling one of its own.
func (s *Simulator) trade(t *tomb.Tomb, user exchange.User, rng *rand.Rand) error {
	var open []string

	for round := 0; round < s.cfg.Rounds; round++ {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		if len(open) > 0 && rng.Float64() < cancelChance {
			id := open[rng.Intn(len(open))]
			// The order may have filled in the meantime; forget it
			// either way.
			if err := s.ex.CancelOrder(id); err == nil {
				s.cancelled.Add(1)
			}
			open = removeID(open, id)
			continue
		}

		side := exchange.Sell
		if rng.Float64() < buyBias {
			side = exchange.Buy
		}
		price, err := s.ex.GetMarketPrice(s.cfg.Asset)
		if err != nil {
			return err
		}
		limit := jitterPrice(price, rng)
		qty := decimal.NewFromFloat(0.1 + rng.Float64()*1.9).Round(2)

		order, err := s.ex.PlaceOrder(user.ID, side, s.cfg.Asset, qty, limit)
		if err != nil {
			// Traders routinely run out of one leg; that only skips
			// the round.
			s.rejected.Add(1)
			continue
		}
		s.placed.Add(1)
		if order.Active() {
			open = append(open, order.ID)
		}

		s.log.Debug().
			Str("trader", user.Username).
			Str("side", side.String()).
			Stringer("qty", qty).
			Stringer("price", limit).
			Str("status", string(order.Status)).
			Msg("round")
	}
	return nil
}

// jitterPrice walks the limit price up to ±volatility around the
// current market price, rounded to cents.
func jitterPrice(price decimal.Decimal, rng *rand.Rand) decimal.Decimal {
	swing := decimal.NewFromFloat(1 + (rng.Float64()*2-1)*volatility)
	return price.Mul(swing).Round(2)
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
