// Command demo walks through a scripted trading session on a fresh
// exchange: two funded users, a resting bid, a partial fill, a sweep
// at a better price and a cancel, printing book and market state along
// the way.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/0xWelt/TradeMasterOnline/internal/exchange"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ex := exchange.New()
	ex.SetLogger(log.Logger)

	alice := mustUser(ex, "alice", "alice@example.com")
	bob := mustUser(ex, "bob", "bob@example.com")

	must(ex.Deposit(alice.ID, exchange.USDT, decimal.NewFromInt(100000)))
	must(ex.Deposit(bob.ID, exchange.BTC, decimal.NewFromInt(3)))

	logPair(ex)

	// Alice bids a full coin at the seed price; nothing to match yet,
	// so it rests.
	bid, err := ex.PlaceOrder(alice.ID, exchange.Buy, exchange.BTC,
		decimal.NewFromInt(1), decimal.NewFromInt(50000))
	must(err)
	logOrder("alice bids", bid)

	// Bob sells half a coin into the bid and fills completely.
	ask, err := ex.PlaceOrder(bob.ID, exchange.Sell, exchange.BTC,
		decimal.NewFromFloat(0.5), decimal.NewFromInt(50000))
	must(err)
	logOrder("bob sells into the bid", ask)
	logPair(ex)

	// Bob offers two coins below the market. The remaining half of the
	// bid trades at its own 50000 and the rest of the offer rests.
	ask, err = ex.PlaceOrder(bob.ID, exchange.Sell, exchange.BTC,
		decimal.NewFromInt(2), decimal.NewFromInt(49000))
	must(err)
	logOrder("bob undercuts", ask)
	logPair(ex)
	logBook(ex)

	// Clean up the resting offer.
	must(ex.CancelOrder(ask.ID))
	logBook(ex)

	trades, err := ex.GetRecentTrades(exchange.BTC, 0)
	must(err)
	for _, trade := range trades {
		log.Info().
			Stringer("qty", trade.Quantity).
			Stringer("price", trade.Price).
			Msg("trade")
	}

	summary, err := ex.GetMarketSummary(exchange.BTC)
	must(err)
	log.Info().
		Str("symbol", summary.Symbol).
		Stringer("price", summary.CurrentPrice).
		Int("open_bids", summary.OpenBids).
		Int("open_asks", summary.OpenAsks).
		Int("trades", summary.TradeCount).
		Msg("session summary")
}

func mustUser(ex *exchange.Exchange, name, email string) exchange.User {
	user, err := ex.CreateUser(name, email)
	must(err)
	return user
}

func logOrder(what string, order exchange.Order) {
	log.Info().
		Str("status", string(order.Status)).
		Stringer("remaining", order.Remaining).
		Msg(what)
}

func logPair(ex *exchange.Exchange) {
	pair, err := ex.GetTradingPair(exchange.BTC)
	must(err)
	log.Info().
		Str("symbol", pair.Symbol()).
		Stringer("price", pair.CurrentPrice).
		Msg("market price")
}

func logBook(ex *exchange.Exchange) {
	depth, err := ex.GetMarketDepth(exchange.BTC)
	must(err)
	for _, level := range depth.Bids {
		log.Info().Stringer("price", level.Price).Stringer("qty", level.Quantity).Msg("bid level")
	}
	for _, level := range depth.Asks {
		log.Info().Stringer("price", level.Price).Stringer("qty", level.Quantity).Msg("ask level")
	}
}

func must(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("demo failed")
	}
}
