package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wealthpilot/tradesim/backtest"
	"github.com/wealthpilot/tradesim/internal/id"
	"github.com/wealthpilot/tradesim/ledger"
)

// Memory is an in-process store. All entities are value types, so handing
// out copies is enough isolation; one RWMutex covers the maps.
type Memory struct {
	mu        sync.RWMutex
	accounts  map[string]ledger.Account              // by account id
	byOwner   map[string]string                      // owner id -> account id
	positions map[string]map[string]ledger.Position  // account id -> symbol
	orders    map[string]ledger.Order                // by order id
	backtests map[string]*backtest.Result            // by run id
}

var _ ledger.Store = (*Memory)(nil)
var _ BacktestStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		accounts:  make(map[string]ledger.Account),
		byOwner:   make(map[string]string),
		positions: make(map[string]map[string]ledger.Position),
		orders:    make(map[string]ledger.Order),
		backtests: make(map[string]*backtest.Result),
	}
}

// Close satisfies the same lifecycle as the SQLite store.
func (m *Memory) Close() error { return nil }

func (m *Memory) CreateAccount(_ context.Context, a ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[a.ID]; ok {
		return fmt.Errorf("account %s already exists", a.ID)
	}
	if _, ok := m.byOwner[a.OwnerID]; ok {
		return fmt.Errorf("owner %s already has an account", a.OwnerID)
	}
	m.accounts[a.ID] = a
	m.byOwner[a.OwnerID] = a.ID
	return nil
}

func (m *Memory) GetAccount(_ context.Context, accountID string) (ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return ledger.Account{}, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	return a, nil
}

func (m *Memory) GetAccountByOwner(_ context.Context, ownerID string) (ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acctID, ok := m.byOwner[ownerID]
	if !ok {
		return ledger.Account{}, fmt.Errorf("owner %s: %w", ownerID, ErrNotFound)
	}
	return m.accounts[acctID], nil
}

func (m *Memory) ResetAccount(_ context.Context, accountID string, balance float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}

	a.CashBalance = balance
	a.InitialBalance = balance
	a.TotalTrades = 0
	a.WinningTrades = 0
	a.LosingTrades = 0
	a.TotalRealizedPnl = 0
	m.accounts[accountID] = a

	delete(m.positions, accountID)
	for oid, o := range m.orders {
		if o.AccountID == accountID {
			delete(m.orders, oid)
		}
	}
	return nil
}

func (m *Memory) GetPosition(_ context.Context, accountID, symbol string) (ledger.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[accountID][symbol]
	if !ok {
		return ledger.Position{}, fmt.Errorf("position %s/%s: %w", accountID, symbol, ErrNotFound)
	}
	return p, nil
}

func (m *Memory) ListPositions(_ context.Context, accountID string) ([]ledger.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Position, 0, len(m.positions[accountID]))
	for _, p := range m.positions[accountID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (m *Memory) SaveOrder(_ context.Context, o ledger.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	return nil
}

func (m *Memory) GetOrder(_ context.Context, orderID string) (ledger.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[orderID]
	if !ok {
		return ledger.Order{}, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return o, nil
}

func (m *Memory) ListOrders(_ context.Context, accountID string) ([]ledger.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Order
	for _, o := range m.orders {
		if o.AccountID == accountID {
			out = append(out, o)
		}
	}
	sortOrders(out)
	return out, nil
}

func (m *Memory) ListRestingOrders(_ context.Context) ([]ledger.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Order
	for _, o := range m.orders {
		if o.Resting() {
			out = append(out, o)
		}
	}
	sortOrders(out)
	return out, nil
}

// ApplyFill applies the whole fill under one lock acquisition, so a reader
// never observes the order filled but the account unchanged.
func (m *Memory) ApplyFill(_ context.Context, f ledger.Fill) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[f.Account.ID]; !ok {
		return fmt.Errorf("account %s: %w", f.Account.ID, ErrNotFound)
	}

	m.orders[f.Order.ID] = f.Order
	m.accounts[f.Account.ID] = f.Account

	if f.RemovePosition {
		delete(m.positions[f.Account.ID], f.Position.Symbol)
		return nil
	}
	if m.positions[f.Account.ID] == nil {
		m.positions[f.Account.ID] = make(map[string]ledger.Position)
	}
	m.positions[f.Account.ID][f.Position.Symbol] = f.Position
	return nil
}

func (m *Memory) SaveBacktest(_ context.Context, r *backtest.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.RunID == "" {
		r.RunID = id.New()
	}
	if r.Created.IsZero() {
		r.Created = time.Now()
	}
	cp := *r
	m.backtests[r.RunID] = &cp
	return nil
}

func (m *Memory) GetBacktest(_ context.Context, runID string) (*backtest.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.backtests[runID]
	if !ok {
		return nil, fmt.Errorf("backtest %s: %w", runID, ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) ListBacktests(_ context.Context) ([]backtest.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]backtest.Result, 0, len(m.backtests))
	for _, r := range m.backtests {
		cp := *r
		cp.Trades = nil
		cp.EquityCurve = nil
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	return out, nil
}

// ULIDs are time-sortable, so ordering by ID is submission order.
func sortOrders(orders []ledger.Order) {
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
}
