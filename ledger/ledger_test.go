package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wealthpilot/tradesim/market"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	mu        sync.Mutex
	accounts  map[string]Account
	byOwner   map[string]string
	positions map[string]map[string]Position
	orders    map[string]Order

	failFills bool
}

func newMemStore() *memStore {
	return &memStore{
		accounts:  make(map[string]Account),
		byOwner:   make(map[string]string),
		positions: make(map[string]map[string]Position),
		orders:    make(map[string]Order),
	}
}

func (s *memStore) CreateAccount(_ context.Context, a Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	s.byOwner[a.OwnerID] = a.ID
	return nil
}

func (s *memStore) GetAccount(_ context.Context, accountID string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (s *memStore) GetAccountByOwner(_ context.Context, ownerID string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acctID, ok := s.byOwner[ownerID]
	if !ok {
		return Account{}, ErrNotFound
	}
	return s.accounts[acctID], nil
}

func (s *memStore) ResetAccount(_ context.Context, accountID string, balance float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return ErrNotFound
	}
	a.CashBalance = balance
	a.TotalTrades, a.WinningTrades, a.LosingTrades = 0, 0, 0
	a.TotalRealizedPnl = 0
	s.accounts[accountID] = a
	delete(s.positions, accountID)
	for id, o := range s.orders {
		if o.AccountID == accountID {
			delete(s.orders, id)
		}
	}
	return nil
}

func (s *memStore) GetPosition(_ context.Context, accountID, symbol string) (Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[accountID][symbol]
	if !ok {
		return Position{}, ErrNotFound
	}
	return p, nil
}

func (s *memStore) ListPositions(_ context.Context, accountID string) ([]Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Position
	for _, p := range s.positions[accountID] {
		out = append(out, p)
	}
	return out, nil
}

func (s *memStore) SaveOrder(_ context.Context, o Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
	return nil
}

func (s *memStore) GetOrder(_ context.Context, orderID string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (s *memStore) ListOrders(_ context.Context, accountID string) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Order
	for _, o := range s.orders {
		if o.AccountID == accountID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memStore) ListRestingOrders(_ context.Context) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Order
	for _, o := range s.orders {
		if o.Resting() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memStore) ApplyFill(_ context.Context, f Fill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFills {
		return errors.New("simulated apply failure")
	}
	s.orders[f.Order.ID] = f.Order
	s.accounts[f.Account.ID] = f.Account
	if f.RemovePosition {
		delete(s.positions[f.Account.ID], f.Position.Symbol)
		return nil
	}
	if s.positions[f.Account.ID] == nil {
		s.positions[f.Account.ID] = make(map[string]Position)
	}
	s.positions[f.Account.ID][f.Position.Symbol] = f.Position
	return nil
}

// fixedQuotes serves one price per symbol, or a configured error.
type fixedQuotes struct {
	mu     sync.Mutex
	prices map[string]float64
	err    error
}

func (q *fixedQuotes) Quote(_ context.Context, symbol string) (market.Quote, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return market.Quote{}, q.err
	}
	p, ok := q.prices[symbol]
	if !ok {
		return market.Quote{}, market.ErrQuoteUnavailable
	}
	return market.Quote{Symbol: symbol, Price: p, Time: time.Now()}, nil
}

func (q *fixedQuotes) set(symbol string, price float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.prices[symbol] = price
}

func newTestLedger(t *testing.T) (*Ledger, *memStore, *fixedQuotes) {
	t.Helper()
	s := newMemStore()
	q := &fixedQuotes{prices: map[string]float64{"AAPL": 100}}
	return New(s, q, Options{}), s, q
}

func openTestAccount(t *testing.T, l *Ledger, owner string, balance float64) Account {
	t.Helper()
	a, err := l.OpenAccount(context.Background(), owner, balance)
	if err != nil {
		t.Fatalf("open account: %v", err)
	}
	return a
}

func marketOrder(symbol string, side Side, qty int64) OrderRequest {
	return OrderRequest{Symbol: symbol, Side: side, Type: Market, Quantity: qty}
}

func TestOpenAccount(t *testing.T) {
	t.Parallel()

	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	a, err := l.OpenAccount(ctx, "alice", 10_000)
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "alice", a.OwnerID)
	assert.Equal(t, 10_000.0, a.CashBalance)
	assert.Equal(t, 10_000.0, a.InitialBalance)

	t.Run("one account per owner", func(t *testing.T) {
		_, err := l.OpenAccount(ctx, "alice", 5000)
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("non-positive balance", func(t *testing.T) {
		_, err := l.OpenAccount(ctx, "bob", 0)
		require.ErrorIs(t, err, ErrValidation)
	})
}

func TestMarketBuyThenSell(t *testing.T) {
	t.Parallel()

	l, _, q := newTestLedger(t)
	ctx := context.Background()
	a := openTestAccount(t, l, "alice", 10_000)

	o, err := l.PlaceOrder(ctx, "alice", a.ID, marketOrder("AAPL", Buy, 10))
	require.NoError(t, err)
	assert.Equal(t, StatusFilled, o.Status)
	assert.Equal(t, 100.0, o.FilledPrice)
	assert.Equal(t, int64(10), o.FilledQuantity)
	assert.False(t, o.FilledAt.IsZero())

	got, err := l.Account(ctx, "alice", a.ID)
	require.NoError(t, err)
	assert.InDelta(t, 9000, got.CashBalance, 1e-9)

	pos, err := l.Positions(ctx, "alice", a.ID)
	require.NoError(t, err)
	require.Len(t, pos, 1)
	assert.Equal(t, int64(10), pos[0].Quantity)
	assert.InDelta(t, 100, pos[0].AvgCost, 1e-9)

	// Sell the full lot at 120: +200 realized, position gone.
	q.set("AAPL", 120)
	o, err = l.PlaceOrder(ctx, "alice", a.ID, marketOrder("AAPL", Sell, 10))
	require.NoError(t, err)
	assert.Equal(t, StatusFilled, o.Status)

	got, err = l.Account(ctx, "alice", a.ID)
	require.NoError(t, err)
	assert.InDelta(t, 10_200, got.CashBalance, 1e-9)
	assert.Equal(t, 1, got.TotalTrades)
	assert.Equal(t, 1, got.WinningTrades)
	assert.Zero(t, got.LosingTrades)
	assert.InDelta(t, 200, got.TotalRealizedPnl, 1e-9)

	pos, err = l.Positions(ctx, "alice", a.ID)
	require.NoError(t, err)
	assert.Empty(t, pos)
}

func TestWeightedAverageCost(t *testing.T) {
	t.Parallel()

	l, _, q := newTestLedger(t)
	ctx := context.Background()
	a := openTestAccount(t, l, "alice", 100_000)

	_, err := l.PlaceOrder(ctx, "alice", a.ID, marketOrder("AAPL", Buy, 10))
	require.NoError(t, err)

	q.set("AAPL", 110)
	_, err = l.PlaceOrder(ctx, "alice", a.ID, marketOrder("AAPL", Buy, 10))
	require.NoError(t, err)

	pos, err := l.Positions(ctx, "alice", a.ID)
	require.NoError(t, err)
	require.Len(t, pos, 1)
	assert.Equal(t, int64(20), pos[0].Quantity)
	assert.InDelta(t, 105, pos[0].AvgCost, 1e-9)

	// A partial close keeps the cost basis.
	q.set("AAPL", 130)
	_, err = l.PlaceOrder(ctx, "alice", a.ID, marketOrder("AAPL", Sell, 5))
	require.NoError(t, err)

	pos, err = l.Positions(ctx, "alice", a.ID)
	require.NoError(t, err)
	require.Len(t, pos, 1)
	assert.Equal(t, int64(15), pos[0].Quantity)
	assert.InDelta(t, 105, pos[0].AvgCost, 1e-9)

	got, err := l.Account(ctx, "alice", a.ID)
	require.NoError(t, err)
	assert.InDelta(t, (130-105)*5, got.TotalRealizedPnl, 1e-9)
}

func TestPlaceOrderRejections(t *testing.T) {
	t.Parallel()

	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	a := openTestAccount(t, l, "alice", 500)

	t.Run("insufficient funds", func(t *testing.T) {
		_, err := l.PlaceOrder(ctx, "alice", a.ID, marketOrder("AAPL", Buy, 10))
		require.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("insufficient position", func(t *testing.T) {
		_, err := l.PlaceOrder(ctx, "alice", a.ID, marketOrder("AAPL", Sell, 1))
		require.ErrorIs(t, err, ErrInsufficientPosition)
	})

	t.Run("access denied", func(t *testing.T) {
		_, err := l.PlaceOrder(ctx, "mallory", a.ID, marketOrder("AAPL", Buy, 1))
		require.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := l.PlaceOrder(ctx, "alice", "nope", marketOrder("AAPL", Buy, 1))
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPlaceOrderValidation(t *testing.T) {
	t.Parallel()

	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	a := openTestAccount(t, l, "alice", 10_000)

	tests := []struct {
		name string
		req  OrderRequest
	}{
		{"missing symbol", OrderRequest{Side: Buy, Type: Market, Quantity: 1}},
		{"zero quantity", OrderRequest{Symbol: "AAPL", Side: Buy, Type: Market}},
		{"negative quantity", OrderRequest{Symbol: "AAPL", Side: Buy, Type: Market, Quantity: -5}},
		{"bad side", OrderRequest{Symbol: "AAPL", Side: "hold", Type: Market, Quantity: 1}},
		{"bad type", OrderRequest{Symbol: "AAPL", Side: Buy, Type: "trailing", Quantity: 1}},
		{"limit without price", OrderRequest{Symbol: "AAPL", Side: Buy, Type: Limit, Quantity: 1}},
		{"stop without price", OrderRequest{Symbol: "AAPL", Side: Sell, Type: Stop, Quantity: 1}},
		{"stop-limit missing stop", OrderRequest{Symbol: "AAPL", Side: Buy, Type: StopLimit, Quantity: 1, LimitPrice: 99}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.PlaceOrder(ctx, "alice", a.ID, tt.req)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestQuoteUnavailable(t *testing.T) {
	t.Parallel()

	l, _, q := newTestLedger(t)
	ctx := context.Background()
	a := openTestAccount(t, l, "alice", 10_000)

	q.err = market.ErrQuoteUnavailable
	_, err := l.PlaceOrder(ctx, "alice", a.ID, marketOrder("AAPL", Buy, 1))
	require.ErrorIs(t, err, market.ErrQuoteUnavailable)

	// Nothing was persisted.
	orders, err := l.Orders(ctx, "alice", a.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestRestingOrderLifecycle(t *testing.T) {
	t.Parallel()

	l, s, _ := newTestLedger(t)
	ctx := context.Background()
	a := openTestAccount(t, l, "alice", 10_000)

	o, err := l.PlaceOrder(ctx, "alice", a.ID, OrderRequest{
		Symbol: "AAPL", Side: Buy, Type: Limit, Quantity: 10, LimitPrice: 95,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	assert.True(t, o.Resting())
	assert.Equal(t, 100.0, o.SubmittedPrice)

	// Pending orders touch neither cash nor positions.
	got, err := l.Account(ctx, "alice", a.ID)
	require.NoError(t, err)
	assert.Equal(t, 10_000.0, got.CashBalance)

	resting, err := s.ListRestingOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, resting, 1)

	t.Run("cancel pending", func(t *testing.T) {
		cancelled, err := l.CancelOrder(ctx, "alice", o.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, cancelled.Status)

		_, err = l.CancelOrder(ctx, "alice", o.ID)
		require.ErrorIs(t, err, ErrOrderNotPending)
	})

	t.Run("cancel unknown order", func(t *testing.T) {
		_, err := l.CancelOrder(ctx, "alice", "missing")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCancelFilledOrder(t *testing.T) {
	t.Parallel()

	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	a := openTestAccount(t, l, "alice", 10_000)

	o, err := l.PlaceOrder(ctx, "alice", a.ID, marketOrder("AAPL", Buy, 10))
	require.NoError(t, err)
	require.Equal(t, StatusFilled, o.Status)

	_, err = l.CancelOrder(ctx, "alice", o.ID)
	require.ErrorIs(t, err, ErrOrderNotPending)
}

func TestExecuteOrderIdempotent(t *testing.T) {
	t.Parallel()

	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	a := openTestAccount(t, l, "alice", 10_000)

	o, err := l.PlaceOrder(ctx, "alice", a.ID, OrderRequest{
		Symbol: "AAPL", Side: Buy, Type: Limit, Quantity: 10, LimitPrice: 100,
	})
	require.NoError(t, err)

	first, err := l.ExecuteOrder(ctx, o.ID, 99)
	require.NoError(t, err)
	assert.Equal(t, StatusFilled, first.Status)
	assert.Equal(t, 99.0, first.FilledPrice)

	// A second execution is a no-op: same order back, no state change.
	second, err := l.ExecuteOrder(ctx, o.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	got, err := l.Account(ctx, "alice", a.ID)
	require.NoError(t, err)
	assert.InDelta(t, 10_000-99*10, got.CashBalance, 1e-9)
}

func TestRestingBuyRejectedWhenFundsGone(t *testing.T) {
	t.Parallel()

	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	a := openTestAccount(t, l, "alice", 1100)

	resting, err := l.PlaceOrder(ctx, "alice", a.ID, OrderRequest{
		Symbol: "AAPL", Side: Buy, Type: Limit, Quantity: 10, LimitPrice: 95,
	})
	require.NoError(t, err)

	// Drain the cash with a market buy before the limit triggers.
	_, err = l.PlaceOrder(ctx, "alice", a.ID, marketOrder("AAPL", Buy, 10))
	require.NoError(t, err)

	_, err = l.ExecuteOrder(ctx, resting.ID, 95)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// Terminal rejection, not an eternal retry.
	o, err := l.store.GetOrder(ctx, resting.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Zero(t, o.FilledQuantity)

	got, err := l.Account(ctx, "alice", a.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.CashBalance, 0.0)
}

func TestApplyFillFailureLeavesStateIntact(t *testing.T) {
	t.Parallel()

	l, s, _ := newTestLedger(t)
	ctx := context.Background()
	a := openTestAccount(t, l, "alice", 10_000)

	s.failFills = true
	_, err := l.PlaceOrder(ctx, "alice", a.ID, marketOrder("AAPL", Buy, 10))
	require.ErrorIs(t, err, ErrPersistence)

	got, err := l.Account(ctx, "alice", a.ID)
	require.NoError(t, err)
	assert.Equal(t, 10_000.0, got.CashBalance)

	pos, err := l.Positions(ctx, "alice", a.ID)
	require.NoError(t, err)
	assert.Empty(t, pos)
}

func TestReset(t *testing.T) {
	t.Parallel()

	l, _, q := newTestLedger(t)
	ctx := context.Background()
	a := openTestAccount(t, l, "alice", 10_000)

	_, err := l.PlaceOrder(ctx, "alice", a.ID, marketOrder("AAPL", Buy, 10))
	require.NoError(t, err)
	q.set("AAPL", 90)
	_, err = l.PlaceOrder(ctx, "alice", a.ID, marketOrder("AAPL", Sell, 10))
	require.NoError(t, err)

	require.NoError(t, l.Reset(ctx, "alice", a.ID))

	got, err := l.Account(ctx, "alice", a.ID)
	require.NoError(t, err)
	assert.Equal(t, 10_000.0, got.CashBalance)
	assert.Zero(t, got.TotalTrades)
	assert.Zero(t, got.TotalRealizedPnl)

	pos, err := l.Positions(ctx, "alice", a.ID)
	require.NoError(t, err)
	assert.Empty(t, pos)

	orders, err := l.Orders(ctx, "alice", a.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)

	t.Run("wrong owner", func(t *testing.T) {
		require.ErrorIs(t, l.Reset(ctx, "mallory", a.ID), ErrAccessDenied)
	})
}

func TestConcurrentBuysNeverOverdraw(t *testing.T) {
	t.Parallel()

	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	// Room for exactly three 10-share lots at 100.
	a := openTestAccount(t, l, "alice", 3000)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.PlaceOrder(ctx, "alice", a.ID, marketOrder("AAPL", Buy, 10))
		}(i)
	}
	wg.Wait()

	var filled int
	for _, err := range errs {
		if err == nil {
			filled++
		} else {
			require.ErrorIs(t, err, ErrInsufficientFunds)
		}
	}
	assert.Equal(t, 3, filled)

	got, err := l.Account(ctx, "alice", a.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0, got.CashBalance, 1e-9)

	pos, err := l.Positions(ctx, "alice", a.ID)
	require.NoError(t, err)
	require.Len(t, pos, 1)
	assert.Equal(t, int64(30), pos[0].Quantity)
}
