package store

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL UNIQUE,
	cash_balance REAL NOT NULL,
	initial_balance REAL NOT NULL,
	total_trades INTEGER NOT NULL DEFAULT 0,
	winning_trades INTEGER NOT NULL DEFAULT 0,
	losing_trades INTEGER NOT NULL DEFAULT 0,
	total_realized_pnl REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	account_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	avg_cost REAL NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (account_id, symbol)
);

CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	order_type TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	limit_price REAL NOT NULL DEFAULT 0,
	stop_price REAL NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	submitted_price REAL NOT NULL,
	filled_price REAL NOT NULL DEFAULT 0,
	filled_quantity INTEGER NOT NULL DEFAULT 0,
	filled_at DATETIME,
	commission REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_account ON orders(account_id);
CREATE INDEX IF NOT EXISTS idx_orders_resting ON orders(status, order_type);

CREATE TABLE IF NOT EXISTS backtest_runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	symbol TEXT NOT NULL,
	start_date DATETIME NOT NULL,
	end_date DATETIME NOT NULL,
	initial_capital REAL NOT NULL,
	final_capital REAL NOT NULL,
	config TEXT NOT NULL,
	total_return REAL NOT NULL,
	total_trades INTEGER NOT NULL,
	winning_trades INTEGER NOT NULL,
	losing_trades INTEGER NOT NULL,
	win_rate REAL NOT NULL,
	avg_win REAL NOT NULL,
	avg_loss REAL NOT NULL,
	gross_profit REAL NOT NULL,
	gross_loss REAL NOT NULL,
	profit_factor REAL NOT NULL,
	expectancy REAL NOT NULL,
	max_drawdown REAL NOT NULL,
	sharpe_ratio REAL NOT NULL,
	sortino_ratio REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS backtest_trades (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	entry_date DATETIME NOT NULL,
	exit_date DATETIME NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	shares INTEGER NOT NULL,
	profit_loss REAL NOT NULL,
	profit_loss_pct REAL NOT NULL,
	duration_bars INTEGER NOT NULL,
	commission REAL NOT NULL,
	reason TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS backtest_equity (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	date DATETIME NOT NULL,
	equity REAL NOT NULL,
	drawdown_pct REAL NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`
