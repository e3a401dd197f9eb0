package exchange_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xWelt/TradeMasterOnline/internal/exchange"
)

func TestCreateUser(t *testing.T) {
	ex := exchange.New()

	alice, err := ex.CreateUser("alice", "alice@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, alice.ID)
	assert.Equal(t, "alice", alice.Username)

	_, err = ex.CreateUser("alice", "other@example.com")
	assert.ErrorIs(t, err, exchange.ErrDuplicateUser)

	_, err = ex.CreateUser("", "anon@example.com")
	assert.ErrorIs(t, err, exchange.ErrValidation)

	users := ex.ListUsers()
	require.Len(t, users, 1)
	assert.Equal(t, alice.ID, users[0].ID)
}

func TestListUsers_DeterministicOrder(t *testing.T) {
	ex := exchange.New()

	// Back-to-back registrations can land on the same clock tick, so
	// the listing order must not depend on timestamp resolution.
	names := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7", "u8"}
	for _, name := range names {
		_, err := ex.CreateUser(name, name+"@example.com")
		require.NoError(t, err)
	}

	first := ex.ListUsers()
	require.Len(t, first, len(names))
	for i := 0; i < 20; i++ {
		again := ex.ListUsers()
		assert.Equal(t, first, again)
	}
}

func TestDepositWithdraw(t *testing.T) {
	ex := exchange.New()
	alice, err := ex.CreateUser("alice", "alice@example.com")
	require.NoError(t, err)

	require.NoError(t, ex.Deposit(alice.ID, exchange.USDT, dec("1000")))
	require.NoError(t, ex.Deposit(alice.ID, exchange.USDT, dec("500")))

	p, err := ex.GetPortfolio(alice.ID, exchange.USDT)
	require.NoError(t, err)
	eq(t, "1500", p.Available)
	eq(t, "0", p.Locked)
	eq(t, "1500", p.Total())

	require.NoError(t, ex.Withdraw(alice.ID, exchange.USDT, dec("400")))
	p, err = ex.GetPortfolio(alice.ID, exchange.USDT)
	require.NoError(t, err)
	eq(t, "1100", p.Available)

	assert.ErrorIs(t, ex.Withdraw(alice.ID, exchange.USDT, dec("9999")), exchange.ErrInsufficientBalance)
	assert.ErrorIs(t, ex.Withdraw(alice.ID, exchange.USDT, dec("0")), exchange.ErrValidation)
	assert.ErrorIs(t, ex.Deposit(alice.ID, exchange.USDT, dec("-1")), exchange.ErrValidation)
	assert.ErrorIs(t, ex.Deposit(alice.ID, exchange.AssetType("DOGE"), dec("1")), exchange.ErrValidation)
	assert.ErrorIs(t, ex.Deposit("nobody", exchange.USDT, dec("1")), exchange.ErrNotFound)
}

func TestPlaceOrder_LocksAndUnlocksFunds(t *testing.T) {
	ex, alice, bob := newVenue(t)

	// A bid locks quantity * price of the quote currency.
	bid := place(t, ex, alice, exchange.Buy, "2.0", "40000")
	p, err := ex.GetPortfolio(alice.ID, exchange.USDT)
	require.NoError(t, err)
	eq(t, "920000", p.Available)
	eq(t, "80000", p.Locked)

	require.NoError(t, ex.CancelOrder(bid.ID))
	p, err = ex.GetPortfolio(alice.ID, exchange.USDT)
	require.NoError(t, err)
	eq(t, "1000000", p.Available)
	eq(t, "0", p.Locked)

	// An offer locks the asset itself.
	ask := place(t, ex, bob, exchange.Sell, "1.5", "52000")
	p, err = ex.GetPortfolio(bob.ID, exchange.BTC)
	require.NoError(t, err)
	eq(t, "98.5", p.Available)
	eq(t, "1.5", p.Locked)

	require.NoError(t, ex.CancelOrder(ask.ID))
	p, err = ex.GetPortfolio(bob.ID, exchange.BTC)
	require.NoError(t, err)
	eq(t, "100", p.Available)
}

func TestPlaceOrder_InsufficientFunds(t *testing.T) {
	ex := exchange.New()
	poor, err := ex.CreateUser("poor", "poor@example.com")
	require.NoError(t, err)
	require.NoError(t, ex.Deposit(poor.ID, exchange.USDT, dec("100")))

	_, err = ex.PlaceOrder(poor.ID, exchange.Buy, exchange.BTC, dec("1"), dec("50000"))
	assert.ErrorIs(t, err, exchange.ErrInsufficientBalance)

	_, err = ex.PlaceOrder(poor.ID, exchange.Sell, exchange.BTC, dec("0.1"), dec("50000"))
	assert.ErrorIs(t, err, exchange.ErrInsufficientBalance)

	// Nothing was locked by the rejected orders.
	p, err := ex.GetPortfolio(poor.ID, exchange.USDT)
	require.NoError(t, err)
	eq(t, "100", p.Available)
	eq(t, "0", p.Locked)
}

func TestTrade_SettlesBothParties(t *testing.T) {
	ex, alice, bob := newVenue(t)

	place(t, ex, alice, exchange.Buy, "1.0", "50000")
	place(t, ex, bob, exchange.Sell, "1.0", "50000")

	aliceUSDT, err := ex.GetPortfolio(alice.ID, exchange.USDT)
	require.NoError(t, err)
	aliceBTC, err := ex.GetPortfolio(alice.ID, exchange.BTC)
	require.NoError(t, err)
	bobUSDT, err := ex.GetPortfolio(bob.ID, exchange.USDT)
	require.NoError(t, err)
	bobBTC, err := ex.GetPortfolio(bob.ID, exchange.BTC)
	require.NoError(t, err)

	eq(t, "950000", aliceUSDT.Available)
	eq(t, "0", aliceUSDT.Locked)
	eq(t, "1", aliceBTC.Available)
	eq(t, "50000", bobUSDT.Available)
	eq(t, "99", bobBTC.Available)
	eq(t, "0", bobBTC.Locked)
}

func TestTrade_RefundsPriceImprovement(t *testing.T) {
	ex, alice, bob := newVenue(t)

	// Bob offers at 50000; alice lifts it with a 51000 limit. She pays
	// the maker's 50000 and the 1000 locked above it comes back.
	place(t, ex, bob, exchange.Sell, "1.0", "50000")
	bid := place(t, ex, alice, exchange.Buy, "1.0", "51000")
	assert.Equal(t, exchange.OrderFilled, bid.Status)

	trades, err := ex.GetRecentTrades(exchange.BTC, 1)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	eq(t, "50000", trades[0].Price)

	p, err := ex.GetPortfolio(alice.ID, exchange.USDT)
	require.NoError(t, err)
	eq(t, "950000", p.Available)
	eq(t, "0", p.Locked)
}

func TestPortfolioQueries_Concurrent(t *testing.T) {
	ex := exchange.New()
	carol, err := ex.CreateUser("carol", "carol@example.com")
	require.NoError(t, err)

	// Portfolio reads on assets the user never held must be safe to
	// run in parallel with each other and with map-iterating queries.
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = ex.GetPortfolio(carol.ID, exchange.BTC)
		}()
		go func() {
			defer wg.Done()
			_, _ = ex.GetPortfolios(carol.ID)
		}()
	}
	wg.Wait()

	p, err := ex.GetPortfolio(carol.ID, exchange.BTC)
	require.NoError(t, err)
	eq(t, "0", p.Available)
	eq(t, "0", p.Locked)

	// Reading must not have created any holdings.
	all, err := ex.GetPortfolios(carol.ID)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestGetPortfolios(t *testing.T) {
	ex, alice, _ := newVenue(t)

	place(t, ex, alice, exchange.Buy, "1.0", "40000")

	all, err := ex.GetPortfolios(alice.ID)
	require.NoError(t, err)
	require.Contains(t, all, exchange.USDT)
	eq(t, "40000", all[exchange.USDT].Locked)

	_, err = ex.GetPortfolios("nobody")
	assert.ErrorIs(t, err, exchange.ErrNotFound)
}
