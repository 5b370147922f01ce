package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wealthpilot/tradesim/backtest"
	"github.com/wealthpilot/tradesim/internal/id"
	"github.com/wealthpilot/tradesim/ledger"
)

// SQLite is the durable store. Combined mutations (fills, resets) run inside
// a transaction so the order, account and position rows move together.
type SQLite struct {
	db *sql.DB
}

var _ ledger.Store = (*SQLite)(nil)
var _ BacktestStore = (*SQLite)(nil)

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// Serialized access keeps the per-account critical section honest even
	// though SQLite itself locks at database granularity.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) CreateAccount(ctx context.Context, a ledger.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts
		(id, owner_id, cash_balance, initial_balance, total_trades, winning_trades, losing_trades, total_realized_pnl, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OwnerID, a.CashBalance, a.InitialBalance,
		a.TotalTrades, a.WinningTrades, a.LosingTrades, a.TotalRealizedPnl, a.CreatedAt,
	)
	return err
}

const accountCols = `id, owner_id, cash_balance, initial_balance, total_trades, winning_trades, losing_trades, total_realized_pnl, created_at`

func scanAccount(row *sql.Row) (ledger.Account, error) {
	var a ledger.Account
	err := row.Scan(&a.ID, &a.OwnerID, &a.CashBalance, &a.InitialBalance,
		&a.TotalTrades, &a.WinningTrades, &a.LosingTrades, &a.TotalRealizedPnl, &a.CreatedAt)
	return a, err
}

func (s *SQLite) GetAccount(ctx context.Context, accountID string) (ledger.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE id = ?`, accountID))
	if err == sql.ErrNoRows {
		return ledger.Account{}, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	return a, err
}

func (s *SQLite) GetAccountByOwner(ctx context.Context, ownerID string) (ledger.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE owner_id = ?`, ownerID))
	if err == sql.ErrNoRows {
		return ledger.Account{}, fmt.Errorf("owner %s: %w", ownerID, ErrNotFound)
	}
	return a, err
}

func (s *SQLite) ResetAccount(ctx context.Context, accountID string, balance float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET cash_balance = ?, initial_balance = ?,
		    total_trades = 0, winning_trades = 0, losing_trades = 0, total_realized_pnl = 0
		WHERE id = ?`, balance, balance, accountID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM positions WHERE account_id = ?`, accountID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE account_id = ?`, accountID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) GetPosition(ctx context.Context, accountID, symbol string) (ledger.Position, error) {
	var p ledger.Position
	err := s.db.QueryRowContext(ctx, `
		SELECT account_id, symbol, quantity, avg_cost, updated_at
		FROM positions WHERE account_id = ? AND symbol = ?`, accountID, symbol,
	).Scan(&p.AccountID, &p.Symbol, &p.Quantity, &p.AvgCost, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return ledger.Position{}, fmt.Errorf("position %s/%s: %w", accountID, symbol, ErrNotFound)
	}
	return p, err
}

func (s *SQLite) ListPositions(ctx context.Context, accountID string) ([]ledger.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account_id, symbol, quantity, avg_cost, updated_at
		FROM positions WHERE account_id = ? ORDER BY symbol`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Position
	for rows.Next() {
		var p ledger.Position
		if err := rows.Scan(&p.AccountID, &p.Symbol, &p.Quantity, &p.AvgCost, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) SaveOrder(ctx context.Context, o ledger.Order) error {
	return saveOrder(ctx, s.db, o)
}

// execer lets saveOrder run against either the db or a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveOrder(ctx context.Context, db execer, o ledger.Order) error {
	var filledAt any
	if !o.FilledAt.IsZero() {
		filledAt = o.FilledAt
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO orders
		(id, account_id, symbol, side, order_type, quantity, limit_price, stop_price,
		 status, submitted_price, filled_price, filled_quantity, filled_at, commission, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		 status = excluded.status,
		 filled_price = excluded.filled_price,
		 filled_quantity = excluded.filled_quantity,
		 filled_at = excluded.filled_at,
		 commission = excluded.commission`,
		o.ID, o.AccountID, o.Symbol, string(o.Side), string(o.Type), o.Quantity,
		o.LimitPrice, o.StopPrice, string(o.Status), o.SubmittedPrice,
		o.FilledPrice, o.FilledQuantity, filledAt, o.Commission, o.CreatedAt,
	)
	return err
}

const orderCols = `id, account_id, symbol, side, order_type, quantity, limit_price, stop_price,
	status, submitted_price, filled_price, filled_quantity, filled_at, commission, created_at`

type rowScanner interface{ Scan(dest ...any) error }

func scanOrder(row rowScanner) (ledger.Order, error) {
	var o ledger.Order
	var side, typ, status string
	var filledAt sql.NullTime
	err := row.Scan(&o.ID, &o.AccountID, &o.Symbol, &side, &typ, &o.Quantity,
		&o.LimitPrice, &o.StopPrice, &status, &o.SubmittedPrice,
		&o.FilledPrice, &o.FilledQuantity, &filledAt, &o.Commission, &o.CreatedAt)
	if err != nil {
		return ledger.Order{}, err
	}
	o.Side = ledger.Side(side)
	o.Type = ledger.OrderType(typ)
	o.Status = ledger.OrderStatus(status)
	if filledAt.Valid {
		o.FilledAt = filledAt.Time
	}
	return o, nil
}

func (s *SQLite) GetOrder(ctx context.Context, orderID string) (ledger.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx,
		`SELECT `+orderCols+` FROM orders WHERE id = ?`, orderID))
	if err == sql.ErrNoRows {
		return ledger.Order{}, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return o, err
}

func (s *SQLite) listOrders(ctx context.Context, query string, args ...any) ([]ledger.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *SQLite) ListOrders(ctx context.Context, accountID string) ([]ledger.Order, error) {
	return s.listOrders(ctx,
		`SELECT `+orderCols+` FROM orders WHERE account_id = ? ORDER BY id`, accountID)
}

func (s *SQLite) ListRestingOrders(ctx context.Context) ([]ledger.Order, error) {
	return s.listOrders(ctx,
		`SELECT `+orderCols+` FROM orders WHERE status = ? AND order_type != ? ORDER BY id`,
		string(ledger.StatusPending), string(ledger.Market))
}

// ApplyFill writes the order, account and position rows in one transaction.
func (s *SQLite) ApplyFill(ctx context.Context, f ledger.Fill) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := saveOrder(ctx, tx, f.Order); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET cash_balance = ?, total_trades = ?, winning_trades = ?, losing_trades = ?, total_realized_pnl = ?
		WHERE id = ?`,
		f.Account.CashBalance, f.Account.TotalTrades, f.Account.WinningTrades,
		f.Account.LosingTrades, f.Account.TotalRealizedPnl, f.Account.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account %s: %w", f.Account.ID, ErrNotFound)
	}

	if f.RemovePosition {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM positions WHERE account_id = ? AND symbol = ?`,
			f.Position.AccountID, f.Position.Symbol)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO positions (account_id, symbol, quantity, avg_cost, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(account_id, symbol) DO UPDATE SET
			 quantity = excluded.quantity,
			 avg_cost = excluded.avg_cost,
			 updated_at = excluded.updated_at`,
			f.Position.AccountID, f.Position.Symbol, f.Position.Quantity,
			f.Position.AvgCost, f.Position.UpdatedAt)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) SaveBacktest(ctx context.Context, r *backtest.Result) error {
	if r.RunID == "" {
		r.RunID = id.New()
	}
	if r.Created.IsZero() {
		r.Created = time.Now()
	}

	cfg, err := json.Marshal(r.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	m := r.Metrics
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO backtest_runs
		(run_id, created, strategy, symbol, start_date, end_date, initial_capital, final_capital, config,
		 total_return, total_trades, winning_trades, losing_trades, win_rate, avg_win, avg_loss,
		 gross_profit, gross_loss, profit_factor, expectancy, max_drawdown, sharpe_ratio, sortino_ratio)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created, r.Strategy, r.Symbol, r.Start, r.End,
		r.InitialCapital, r.FinalCapital, string(cfg),
		m.TotalReturn, m.TotalTrades, m.WinningTrades, m.LosingTrades, m.WinRate,
		m.AvgWin, m.AvgLoss, m.GrossProfit, m.GrossLoss, m.ProfitFactor,
		m.Expectancy, m.MaxDrawdown, m.SharpeRatio, m.SortinoRatio,
	); err != nil {
		return err
	}

	for i, t := range r.Trades {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO backtest_trades
			(run_id, seq, entry_date, exit_date, entry_price, exit_price, shares,
			 profit_loss, profit_loss_pct, duration_bars, commission, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, i, t.EntryDate, t.ExitDate, t.EntryPrice, t.ExitPrice, t.Shares,
			t.ProfitLoss, t.ProfitLossPct, t.DurationBars, t.Commission, t.Reason,
		); err != nil {
			return err
		}
	}
	for i, p := range r.EquityCurve {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO backtest_equity (run_id, seq, date, equity, drawdown_pct)
			VALUES (?, ?, ?, ?, ?)`,
			r.RunID, i, p.Date, p.Equity, p.DrawdownPct,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const runCols = `run_id, created, strategy, symbol, start_date, end_date, initial_capital, final_capital, config,
	total_return, total_trades, winning_trades, losing_trades, win_rate, avg_win, avg_loss,
	gross_profit, gross_loss, profit_factor, expectancy, max_drawdown, sharpe_ratio, sortino_ratio`

func scanRun(row rowScanner) (backtest.Result, error) {
	var r backtest.Result
	var cfg string
	m := &r.Metrics
	err := row.Scan(&r.RunID, &r.Created, &r.Strategy, &r.Symbol, &r.Start, &r.End,
		&r.InitialCapital, &r.FinalCapital, &cfg,
		&m.TotalReturn, &m.TotalTrades, &m.WinningTrades, &m.LosingTrades, &m.WinRate,
		&m.AvgWin, &m.AvgLoss, &m.GrossProfit, &m.GrossLoss, &m.ProfitFactor,
		&m.Expectancy, &m.MaxDrawdown, &m.SharpeRatio, &m.SortinoRatio)
	if err != nil {
		return backtest.Result{}, err
	}
	if err := json.Unmarshal([]byte(cfg), &r.Config); err != nil {
		return backtest.Result{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return r, nil
}

func (s *SQLite) GetBacktest(ctx context.Context, runID string) (*backtest.Result, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runCols+` FROM backtest_runs WHERE run_id = ?`, runID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("backtest %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	trows, err := s.db.QueryContext(ctx, `
		SELECT entry_date, exit_date, entry_price, exit_price, shares,
		       profit_loss, profit_loss_pct, duration_bars, commission, reason
		FROM backtest_trades WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer trows.Close()
	for trows.Next() {
		var t backtest.SimulatedTrade
		if err := trows.Scan(&t.EntryDate, &t.ExitDate, &t.EntryPrice, &t.ExitPrice, &t.Shares,
			&t.ProfitLoss, &t.ProfitLossPct, &t.DurationBars, &t.Commission, &t.Reason); err != nil {
			return nil, err
		}
		r.Trades = append(r.Trades, t)
	}
	if err := trows.Err(); err != nil {
		return nil, err
	}

	erows, err := s.db.QueryContext(ctx, `
		SELECT date, equity, drawdown_pct
		FROM backtest_equity WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer erows.Close()
	for erows.Next() {
		var p backtest.EquityPoint
		if err := erows.Scan(&p.Date, &p.Equity, &p.DrawdownPct); err != nil {
			return nil, err
		}
		r.EquityCurve = append(r.EquityCurve, p)
	}
	if err := erows.Err(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLite) ListBacktests(ctx context.Context) ([]backtest.Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runCols+` FROM backtest_runs ORDER BY created DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []backtest.Result
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
