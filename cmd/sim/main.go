// Command sim runs a randomized multi-trader session against one
// exchange instance and prints what it did to the market.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/0xWelt/TradeMasterOnline/internal/exchange"
	"github.com/0xWelt/TradeMasterOnline/internal/sim"
)

func main() {
	traders := flag.Int("traders", 3, "number of concurrent traders")
	rounds := flag.Int("rounds", 200, "actions per trader")
	seed := flag.Int64("seed", 42, "base RNG seed")
	verbose := flag.Bool("v", false, "log every trader action")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	ex := exchange.New()
	ex.SetLogger(log.Logger)

	simulator := sim.New(sim.Config{
		Traders: *traders,
		Rounds:  *rounds,
		Seed:    *seed,
		Asset:   exchange.BTC,
	}, ex, log.Logger)

	stats, err := simulator.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("simulation failed")
	}

	log.Info().
		Int64("placed", stats.OrdersPlaced).
		Int64("rejected", stats.OrdersRejected).
		Int64("cancelled", stats.OrdersCancelled).
		Int("trades", stats.TradesExecuted).
		Stringer("final_price", stats.FinalPrice).
		Msg("simulation finished")

	summary, err := ex.GetMarketSummary(exchange.BTC)
	if err != nil {
		log.Fatal().Err(err).Msg("summary failed")
	}
	log.Info().
		Str("symbol", summary.Symbol).
		Int("open_bids", summary.OpenBids).
		Int("open_asks", summary.OpenAsks).
		Msg("final book")
}
