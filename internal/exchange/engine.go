package exchange

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Exchange is the matching engine of the venue. It is the sole owner
// and mutator of all orders, trades, trading pairs, books and user
// accounts; callers only ever receive value copies.
//
// Every mutating operation runs under one exclusive lock and is atomic:
// it either rejects before touching state or runs the matching loop to
// a consistent stopping point. Queries take the read lock and observe
// a consistent snapshot.
type Exchange struct {
	mu  sync.RWMutex
	log zerolog.Logger

	books  map[AssetType]*orderBook
	pairs  map[AssetType]*TradingPair
	orders map[string]*Order
	trades map[AssetType][]*Trade

	accounts  map[string]*account
	usernames map[string]string // username -> user id

	seq uint64
}

// New creates an exchange trading every supported pair with its seed
// reference price. Logging is off by default; see SetLogger.
func New() *Exchange {
	e := &Exchange{
		log:       zerolog.Nop(),
		books:     make(map[AssetType]*orderBook),
		pairs:     make(map[AssetType]*TradingPair),
		orders:    make(map[string]*Order),
		trades:    make(map[AssetType][]*Trade),
		accounts:  make(map[string]*account),
		usernames: make(map[string]string),
	}
	for asset, price := range initialPrices {
		e.books[asset] = newOrderBook()
		e.pairs[asset] = &TradingPair{
			Asset:        asset,
			CurrentPrice: price,
			LastUpdate:   time.Now(),
		}
	}
	return e
}

// SetLogger attaches a logger for order, trade and price events.
func (e *Exchange) SetLogger(log zerolog.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = log
}

// nextSeq hands out the monotonically increasing sequence numbers that
// define time priority. Callers must hold the write lock.
func (e *Exchange) nextSeq() uint64 {
	e.seq++
	return e.seq
}

// ====================
// User management
// ====================

// CreateUser registers a new account. Usernames are unique.
func (e *Exchange) CreateUser(username, email string) (User, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if username == "" {
		return User{}, fmt.Errorf("%w: username must not be empty", ErrValidation)
	}
	if _, ok := e.usernames[username]; ok {
		return User{}, fmt.Errorf("%w: %s", ErrDuplicateUser, username)
	}

	acct := newAccount(username, email)
	e.accounts[acct.user.ID] = acct
	e.usernames[username] = acct.user.ID

	e.log.Debug().
		Str("user", username).
		Str("id", acct.user.ID).
		Msg("user created")
	return acct.user, nil
}

// GetUser returns the public identity of an account holder.
func (e *Exchange) GetUser(userID string) (User, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	acct, ok := e.accounts[userID]
	if !ok {
		return User{}, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return acct.user, nil
}

// ListUsers returns every registered user, ordered by creation.
func (e *Exchange) ListUsers() []User {
	e.mu.RLock()
	defer e.mu.RUnlock()

	users := make([]User, 0, len(e.accounts))
	for _, acct := range e.accounts {
		users = append(users, acct.user)
	}
	sort.Slice(users, func(i, j int) bool {
		// Timestamps can collide at clock resolution; the id keeps the
		// order deterministic either way.
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users
}

// Deposit credits an asset to the user's available balance.
func (e *Exchange) Deposit(userID string, asset AssetType, amount decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !asset.Valid() {
		return fmt.Errorf("%w: unsupported asset %q", ErrValidation, asset)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: deposit amount must be positive", ErrValidation)
	}
	acct, ok := e.accounts[userID]
	if !ok {
		return fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}

	acct.credit(asset, amount)
	e.log.Debug().
		Str("user", acct.user.Username).
		Str("asset", string(asset)).
		Stringer("amount", amount).
		Msg("deposit")
	return nil
}

// Withdraw debits an asset from the user's available balance. Locked
// funds cannot be withdrawn.
func (e *Exchange) Withdraw(userID string, asset AssetType, amount decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !asset.Valid() {
		return fmt.Errorf("%w: unsupported asset %q", ErrValidation, asset)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: withdrawal amount must be positive", ErrValidation)
	}
	acct, ok := e.accounts[userID]
	if !ok {
		return fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}

	p := acct.portfolio(asset)
	if p.Available.LessThan(amount) {
		return fmt.Errorf("%w: need %s %s, available %s",
			ErrInsufficientBalance, amount, asset, p.Available)
	}
	p.Available = p.Available.Sub(amount)

	e.log.Debug().
		Str("user", acct.user.Username).
		Str("asset", string(asset)).
		Stringer("amount", amount).
		Msg("withdrawal")
	return nil
}

// GetPortfolio returns a copy of the user's holding in one asset.
func (e *Exchange) GetPortfolio(userID string, asset AssetType) (Portfolio, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	acct, ok := e.accounts[userID]
	if !ok {
		return Portfolio{}, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return acct.view(asset), nil
}

// GetPortfolios returns copies of all of the user's holdings.
func (e *Exchange) GetPortfolios(userID string) (map[AssetType]Portfolio, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	acct, ok := e.accounts[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	out := make(map[AssetType]Portfolio, len(acct.portfolios))
	for asset, p := range acct.portfolios {
		out[asset] = *p
	}
	return out, nil
}

// ====================
// Order management
// ====================

// PlaceOrder accepts a limit order, funds it, matches it against the
// opposite side of the book and rests any remainder. It returns a copy
// of the order after matching.
//
// Execution follows price-time priority: the best-priced opposite
// order matches first, ties go to the earliest arrival, and every
// execution happens at the resting order's price.
func (e *Exchange) PlaceOrder(userID string, side Side, asset AssetType, quantity, price decimal.Decimal) (Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !side.Valid() {
		return Order{}, fmt.Errorf("%w: unknown side %q", ErrValidation, side)
	}
	if !asset.Tradable() {
		return Order{}, fmt.Errorf("%w: unsupported asset %q", ErrValidation, asset)
	}
	if !quantity.IsPositive() {
		return Order{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if !price.IsPositive() {
		return Order{}, fmt.Errorf("%w: price must be positive", ErrValidation)
	}
	acct, ok := e.accounts[userID]
	if !ok {
		return Order{}, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}

	// Fund the order up front. A buy locks quote currency at the limit
	// price, a sell locks the asset itself. This is the last rejection
	// point; from here on the call cannot fail.
	if side == Buy {
		if err := acct.lock(USDT, quantity.Mul(price)); err != nil {
			return Order{}, err
		}
	} else {
		if err := acct.lock(asset, quantity); err != nil {
			return Order{}, err
		}
	}

	order := &Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		Side:      side,
		Asset:     asset,
		Quantity:  quantity,
		Remaining: quantity,
		Price:     price,
		Seq:       e.nextSeq(),
		CreatedAt: time.Now(),
		Status:    OrderOpen,
	}
	e.orders[order.ID] = order

	e.log.Debug().
		Str("user", acct.user.Username).
		Str("order", order.ID).
		Str("side", string(side)).
		Stringer("qty", quantity).
		Stringer("price", price).
		Msg("order accepted")

	// Matching loop: consume the opposite best while prices cross.
	book := e.books[asset]
	for order.Remaining.IsPositive() {
		resting := book.best(side.Opposite())
		if resting == nil || !crosses(side, price, resting.Price) {
			break
		}
		e.execute(order, resting, book)
	}

	if order.Remaining.IsPositive() {
		// insert only rejects inactive or unpriced orders, neither of
		// which can reach this point.
		if err := book.insert(order); err != nil {
			return Order{}, err
		}
	}
	return *order, nil
}

// crosses reports whether an incoming limit price can trade against the
// opposite resting price.
func crosses(side Side, price, restingPrice decimal.Decimal) bool {
	if side == Buy {
		return price.GreaterThanOrEqual(restingPrice)
	}
	return price.LessThanOrEqual(restingPrice)
}

// execute matches the incoming taker against one resting maker: records
// the trade at the maker's price, fills both orders, settles balances,
// lifts the maker off the book if exhausted and moves the reference
// price. Callers must hold the write lock.
func (e *Exchange) execute(taker, maker *Order, book *orderBook) {
	qty := decimal.Min(taker.Remaining, maker.Remaining)
	price := maker.Price

	buy, sell := taker, maker
	if taker.Side == Sell {
		buy, sell = maker, taker
	}

	trade := &Trade{
		ID:          uuid.NewString(),
		Asset:       taker.Asset,
		Price:       price,
		Quantity:    qty,
		BuyOrderID:  buy.ID,
		SellOrderID: sell.ID,
		Seq:         e.nextSeq(),
		ExecutedAt:  time.Now(),
	}

	taker.fill(qty)
	maker.fill(qty)
	e.settle(buy, sell, qty, price)
	e.trades[taker.Asset] = append(e.trades[taker.Asset], trade)

	if maker.Status == OrderFilled {
		// The maker rested in the book by definition.
		_ = book.remove(maker.ID)
	}

	pair := e.pairs[taker.Asset]
	pair.CurrentPrice = price
	pair.LastUpdate = trade.ExecutedAt
	pair.LastSeq = trade.Seq

	e.log.Debug().
		Str("trade", trade.ID).
		Str("buy", buy.ID).
		Str("sell", sell.ID).
		Stringer("qty", qty).
		Stringer("price", price).
		Msg("trade executed")
}

// settle moves funds between the two parties of one execution. The
// buyer spends locked quote at the execution price and gets back any
// amount locked above it; the seller hands over the locked asset and
// receives the proceeds.
func (e *Exchange) settle(buy, sell *Order, qty, price decimal.Decimal) {
	buyer := e.accounts[buy.UserID]
	seller := e.accounts[sell.UserID]

	cost := qty.Mul(price)
	buyer.spendLocked(USDT, cost)
	if excess := qty.Mul(buy.Price).Sub(cost); excess.IsPositive() {
		buyer.unlock(USDT, excess)
	}
	buyer.credit(buy.Asset, qty)

	seller.spendLocked(sell.Asset, qty)
	seller.credit(USDT, cost)
}

// CancelOrder removes an active order from the book and releases its
// backing funds. The remaining quantity is kept as it was at the time
// of cancellation.
func (e *Exchange) CancelOrder(orderID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if order.Terminal() {
		return fmt.Errorf("%w: order %s is already %s", ErrNotFound, orderID, order.Status)
	}

	// Active orders always rest in the book.
	_ = e.books[order.Asset].remove(order.ID)

	acct := e.accounts[order.UserID]
	if order.Side == Buy {
		acct.unlock(USDT, order.Remaining.Mul(order.Price))
	} else {
		acct.unlock(order.Asset, order.Remaining)
	}
	order.Status = OrderCancelled

	e.log.Debug().
		Str("order", order.ID).
		Stringer("remaining", order.Remaining).
		Msg("order cancelled")
	return nil
}

// ====================
// Query surface
// ====================

// GetOrder returns a copy of any order the engine has ever accepted.
func (e *Exchange) GetOrder(orderID string) (Order, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	order, ok := e.orders[orderID]
	if !ok {
		return Order{}, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	return *order, nil
}

// GetOrderBook returns both sides of the book in priority order.
func (e *Exchange) GetOrderBook(asset AssetType) (BookSnapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	book, ok := e.books[asset]
	if !ok {
		return BookSnapshot{}, fmt.Errorf("%w: no trading pair for %q", ErrNotFound, asset)
	}
	return BookSnapshot{
		Bids: book.depth(Buy, 0),
		Asks: book.depth(Sell, 0),
	}, nil
}

// GetRecentTrades returns up to limit trades of one pair, most recent
// first. limit <= 0 returns the full history.
func (e *Exchange) GetRecentTrades(asset AssetType, limit int) ([]Trade, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok := e.pairs[asset]; !ok {
		return nil, fmt.Errorf("%w: no trading pair for %q", ErrNotFound, asset)
	}
	trades := e.trades[asset]
	if limit <= 0 || limit > len(trades) {
		limit = len(trades)
	}
	out := make([]Trade, 0, limit)
	for i := len(trades) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *trades[i])
	}
	return out, nil
}

// GetTradingPair returns the reference price state of one pair.
func (e *Exchange) GetTradingPair(asset AssetType) (TradingPair, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	pair, ok := e.pairs[asset]
	if !ok {
		return TradingPair{}, fmt.Errorf("%w: no trading pair for %q", ErrNotFound, asset)
	}
	return *pair, nil
}

// GetMarketPrice returns the current reference price of one pair.
func (e *Exchange) GetMarketPrice(asset AssetType) (decimal.Decimal, error) {
	pair, err := e.GetTradingPair(asset)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return pair.CurrentPrice, nil
}

// GetMarketDepth returns the aggregated book of one pair.
func (e *Exchange) GetMarketDepth(asset AssetType) (MarketDepth, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	book, ok := e.books[asset]
	if !ok {
		return MarketDepth{}, fmt.Errorf("%w: no trading pair for %q", ErrNotFound, asset)
	}
	return MarketDepth{
		Bids: book.depthLevels(Buy),
		Asks: book.depthLevels(Sell),
	}, nil
}

// GetMarketSummary condenses pair state, book totals and trade count.
func (e *Exchange) GetMarketSummary(asset AssetType) (MarketSummary, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	pair, ok := e.pairs[asset]
	if !ok {
		return MarketSummary{}, fmt.Errorf("%w: no trading pair for %q", ErrNotFound, asset)
	}
	book := e.books[asset]

	summary := MarketSummary{
		Symbol:       pair.Symbol(),
		CurrentPrice: pair.CurrentPrice,
		LastUpdate:   pair.LastUpdate,
		OpenBids:     book.size(Buy),
		OpenAsks:     book.size(Sell),
		TradeCount:   len(e.trades[asset]),
	}
	if bids := book.depthLevels(Buy); len(bids) > 0 {
		summary.BestBid = &bids[0]
	}
	if asks := book.depthLevels(Sell); len(asks) > 0 {
		summary.BestAsk = &asks[0]
	}
	return summary, nil
}

// GetUserOrders returns copies of every order the user has placed, in
// arrival order.
func (e *Exchange) GetUserOrders(userID string) ([]Order, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok := e.accounts[userID]; !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	out := make([]Order, 0)
	for _, order := range e.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// GetUserTrades returns every trade one of the user's orders took part
// in, in execution order.
func (e *Exchange) GetUserTrades(userID string) ([]Trade, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok := e.accounts[userID]; !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	owned := make(map[string]bool)
	for _, order := range e.orders {
		if order.UserID == userID {
			owned[order.ID] = true
		}
	}
	out := make([]Trade, 0)
	for _, trades := range e.trades {
		for _, trade := range trades {
			if owned[trade.BuyOrderID] || owned[trade.SellOrderID] {
				out = append(out, *trade)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}
