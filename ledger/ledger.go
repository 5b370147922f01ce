package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wealthpilot/tradesim/internal/id"
	"github.com/wealthpilot/tradesim/market"
)

// Options tunes a Ledger. Zero values select the defaults noted per field.
type Options struct {
	// QuoteTimeout bounds every quote fetch done on behalf of an order so a
	// stalled provider cannot block the caller or the matcher. Default 5s.
	QuoteTimeout time.Duration
	// CommissionRate is applied to fills. Paper trading runs at 0.
	CommissionRate float64
	// Now is injectable for tests. Default time.Now.
	Now func() time.Time
}

// Ledger owns the paper-trading order lifecycle. It keeps no entity state:
// accounts, positions and orders live in the Store, and every operation is a
// read-validate-mutate-persist sequence held under that account's lock.
//
// Two independent triggers funnel through here — interactive calls and the
// Matcher's tick — so the per-account lock is the serialization point for
// the whole check-then-act sequence.
type Ledger struct {
	store  Store
	quotes market.QuoteProvider
	opts   Options

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(store Store, quotes market.QuoteProvider, opts Options) *Ledger {
	if opts.QuoteTimeout <= 0 {
		opts.QuoteTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Ledger{
		store:  store,
		quotes: quotes,
		opts:   opts,
		locks:  make(map[string]*sync.Mutex),
	}
}

// accountLock returns the mutex serializing all mutation of one account.
func (l *Ledger) accountLock(accountID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[accountID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[accountID] = m
	}
	return m
}

// OpenAccount creates the owner's account. Each owner has at most one; a
// second open fails.
func (l *Ledger) OpenAccount(ctx context.Context, ownerID string, balance float64) (Account, error) {
	if balance <= 0 {
		return Account{}, fmt.Errorf("%w: opening balance must be positive, got %.2f", ErrValidation, balance)
	}
	if existing, err := l.store.GetAccountByOwner(ctx, ownerID); err == nil {
		return Account{}, fmt.Errorf("%w: owner %s already has account %s", ErrValidation, ownerID, existing.ID)
	}

	a := Account{
		ID:             id.New(),
		OwnerID:        ownerID,
		CashBalance:    balance,
		InitialBalance: balance,
		CreatedAt:      l.opts.Now(),
	}
	if err := l.store.CreateAccount(ctx, a); err != nil {
		return Account{}, fmt.Errorf("create account: %w: %w", ErrPersistence, err)
	}
	return a, nil
}

// Account returns the account after verifying ownership.
func (l *Ledger) Account(ctx context.Context, ownerID, accountID string) (Account, error) {
	return l.ownedAccount(ctx, ownerID, accountID)
}

// AccountByOwner resolves the owner's single account.
func (l *Ledger) AccountByOwner(ctx context.Context, ownerID string) (Account, error) {
	a, err := l.store.GetAccountByOwner(ctx, ownerID)
	if err != nil {
		return Account{}, fmt.Errorf("owner %s: %w", ownerID, ErrNotFound)
	}
	return a, nil
}

// Positions lists the account's open positions.
func (l *Ledger) Positions(ctx context.Context, ownerID, accountID string) ([]Position, error) {
	if _, err := l.ownedAccount(ctx, ownerID, accountID); err != nil {
		return nil, err
	}
	return l.store.ListPositions(ctx, accountID)
}

// Orders lists the account's orders, including terminal ones.
func (l *Ledger) Orders(ctx context.Context, ownerID, accountID string) ([]Order, error) {
	if _, err := l.ownedAccount(ctx, ownerID, accountID); err != nil {
		return nil, err
	}
	return l.store.ListOrders(ctx, accountID)
}

// Reset restores the account to its initial balance and deletes all of its
// positions and orders.
func (l *Ledger) Reset(ctx context.Context, ownerID, accountID string) error {
	lock := l.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	a, err := l.ownedAccount(ctx, ownerID, accountID)
	if err != nil {
		return err
	}
	if err := l.store.ResetAccount(ctx, accountID, a.InitialBalance); err != nil {
		return fmt.Errorf("reset account %s: %w: %w", accountID, ErrPersistence, err)
	}
	return nil
}

// PlaceOrder validates the request against a live quote and the current
// account state. Market orders fill synchronously; limit/stop orders are
// persisted pending for the matcher, with no effect on cash or positions.
func (l *Ledger) PlaceOrder(ctx context.Context, ownerID, accountID string, req OrderRequest) (Order, error) {
	if err := validateRequest(req); err != nil {
		return Order{}, err
	}

	lock := l.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	a, err := l.ownedAccount(ctx, ownerID, accountID)
	if err != nil {
		return Order{}, err
	}

	// No order is accepted without a reference price.
	q, err := l.fetchQuote(ctx, req.Symbol)
	if err != nil {
		return Order{}, fmt.Errorf("place order %s: %w", req.Symbol, err)
	}

	switch req.Side {
	case Buy:
		cost := float64(req.Quantity) * q.Price
		if cost > a.CashBalance {
			return Order{}, fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientFunds, cost, a.CashBalance)
		}
	case Sell:
		pos, err := l.store.GetPosition(ctx, accountID, req.Symbol)
		if err != nil || pos.Quantity < req.Quantity {
			return Order{}, fmt.Errorf("%w: %s sell %d, held %d", ErrInsufficientPosition, req.Symbol, req.Quantity, pos.Quantity)
		}
	}

	o := Order{
		ID:             id.New(),
		AccountID:      accountID,
		Symbol:         req.Symbol,
		Side:           req.Side,
		Type:           req.Type,
		Quantity:       req.Quantity,
		LimitPrice:     req.LimitPrice,
		StopPrice:      req.StopPrice,
		Status:         StatusPending,
		SubmittedPrice: q.Price,
		CreatedAt:      l.opts.Now(),
	}

	if o.Type == Market {
		return l.executeLocked(ctx, o, q.Price)
	}

	if err := l.store.SaveOrder(ctx, o); err != nil {
		return Order{}, fmt.Errorf("save order: %w: %w", ErrPersistence, err)
	}
	return o, nil
}

// CancelOrder cancels a pending order. Terminal orders cannot be cancelled.
func (l *Ledger) CancelOrder(ctx context.Context, ownerID, orderID string) (Order, error) {
	// Resolve the account before taking its lock.
	o, err := l.store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}

	lock := l.accountLock(o.AccountID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := l.ownedAccount(ctx, ownerID, o.AccountID); err != nil {
		return Order{}, err
	}

	// Re-read under the lock: the matcher may have filled it meanwhile.
	o, err = l.store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if o.Status != StatusPending {
		return Order{}, fmt.Errorf("cancel %s: %w (status %s)", orderID, ErrOrderNotPending, o.Status)
	}

	o.Status = StatusCancelled
	if err := l.store.SaveOrder(ctx, o); err != nil {
		return Order{}, fmt.Errorf("save order: %w: %w", ErrPersistence, err)
	}
	return o, nil
}

// ExecuteOrder fills a pending order at executionPrice, applying the order,
// account and position mutations as one atomic unit. Calling it on an order
// that is no longer pending is a no-op returning the order unchanged.
//
// This is the matcher's entry point; it is also what market orders go
// through inside PlaceOrder.
func (l *Ledger) ExecuteOrder(ctx context.Context, orderID string, executionPrice float64) (Order, error) {
	o, err := l.store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}

	lock := l.accountLock(o.AccountID)
	lock.Lock()
	defer lock.Unlock()

	o, err = l.store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if o.Status != StatusPending {
		return o, nil
	}
	return l.executeLocked(ctx, o, executionPrice)
}

// executeLocked performs the fill arithmetic. Caller holds the account
// lock. Nothing is mutated in place: updated copies are built and
// handed to the store as one Fill, so a persistence failure leaves every
// entity at its prior state.
func (l *Ledger) executeLocked(ctx context.Context, o Order, price float64) (Order, error) {
	a, err := l.store.GetAccount(ctx, o.AccountID)
	if err != nil {
		return Order{}, fmt.Errorf("account %s: %w", o.AccountID, ErrNotFound)
	}

	commission := price * float64(o.Quantity) * l.opts.CommissionRate
	now := l.opts.Now()

	o.Status = StatusFilled
	o.FilledPrice = price
	o.FilledQuantity = o.Quantity
	o.FilledAt = now
	o.Commission = commission

	fill := Fill{Order: o, Account: a}

	switch o.Side {
	case Buy:
		cost := price*float64(o.Quantity) + commission
		if cost > a.CashBalance {
			// Resting orders are validated at submission, but the balance can
			// shrink before the trigger fires. Reject terminally rather than
			// overdraw or retry forever.
			o.Status = StatusCancelled
			o.FilledPrice, o.FilledQuantity, o.FilledAt, o.Commission = 0, 0, time.Time{}, 0
			if err := l.store.SaveOrder(ctx, o); err != nil {
				return Order{}, fmt.Errorf("save order: %w: %w", ErrPersistence, err)
			}
			return Order{}, fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientFunds, cost, a.CashBalance)
		}

		pos, err := l.store.GetPosition(ctx, o.AccountID, o.Symbol)
		if err != nil {
			pos = Position{AccountID: o.AccountID, Symbol: o.Symbol}
		}
		oldQty, oldCost := pos.Quantity, pos.AvgCost
		pos.Quantity = oldQty + o.Quantity
		pos.AvgCost = (oldCost*float64(oldQty) + price*float64(o.Quantity)) / float64(pos.Quantity)
		pos.UpdatedAt = now

		fill.Account.CashBalance -= cost
		fill.Position = pos

	case Sell:
		pos, err := l.store.GetPosition(ctx, o.AccountID, o.Symbol)
		if err != nil || pos.Quantity < o.Quantity {
			o.Status = StatusCancelled
			o.FilledPrice, o.FilledQuantity, o.FilledAt, o.Commission = 0, 0, time.Time{}, 0
			if err := l.store.SaveOrder(ctx, o); err != nil {
				return Order{}, fmt.Errorf("save order: %w: %w", ErrPersistence, err)
			}
			return Order{}, fmt.Errorf("%w: %s sell %d, held %d", ErrInsufficientPosition, o.Symbol, o.Quantity, pos.Quantity)
		}

		realized := (price - pos.AvgCost) * float64(o.Quantity)

		fill.Account.CashBalance += price*float64(o.Quantity) - commission
		fill.Account.TotalTrades++
		if realized > 0 {
			fill.Account.WinningTrades++
		} else if realized < 0 {
			fill.Account.LosingTrades++
		}
		fill.Account.TotalRealizedPnl += realized

		if pos.Quantity == o.Quantity {
			fill.RemovePosition = true
			fill.Position = pos
		} else {
			// Partial close: remaining lot keeps its cost basis.
			pos.Quantity -= o.Quantity
			pos.UpdatedAt = now
			fill.Position = pos
		}
	}

	fill.Order = o
	if err := l.store.ApplyFill(ctx, fill); err != nil {
		return Order{}, fmt.Errorf("apply fill: %w: %w", ErrPersistence, err)
	}
	return o, nil
}

// fetchQuote bounds the provider call so neither interactive callers nor the
// matcher can hang on a slow feed.
func (l *Ledger) fetchQuote(ctx context.Context, symbol string) (market.Quote, error) {
	qctx, cancel := context.WithTimeout(ctx, l.opts.QuoteTimeout)
	defer cancel()
	return l.quotes.Quote(qctx, symbol)
}

func (l *Ledger) ownedAccount(ctx context.Context, ownerID, accountID string) (Account, error) {
	a, err := l.store.GetAccount(ctx, accountID)
	if err != nil {
		return Account{}, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	if a.OwnerID != ownerID {
		return Account{}, fmt.Errorf("account %s: %w", accountID, ErrAccessDenied)
	}
	return a, nil
}

func validateRequest(req OrderRequest) error {
	if req.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrValidation)
	}
	if req.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrValidation, req.Quantity)
	}
	switch req.Side {
	case Buy, Sell:
	default:
		return fmt.Errorf("%w: side %q", ErrValidation, req.Side)
	}
	switch req.Type {
	case Market:
	case Limit:
		if req.LimitPrice <= 0 {
			return fmt.Errorf("%w: limit order requires a limit price", ErrValidation)
		}
	case Stop:
		if req.StopPrice <= 0 {
			return fmt.Errorf("%w: stop order requires a stop price", ErrValidation)
		}
	case StopLimit:
		if req.LimitPrice <= 0 || req.StopPrice <= 0 {
			return fmt.Errorf("%w: stop-limit order requires both limit and stop prices", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: order type %q", ErrValidation, req.Type)
	}
	return nil
}
