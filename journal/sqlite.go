package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}
	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, symbol, side, size, entry_price, exit_price, entry_time, exit_time,
		 pnl, fees, funding_cost, leverage, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Symbol, t.Side, t.Size, t.EntryPrice, t.ExitPrice,
		t.EntryTime, t.ExitTime, t.PnL, t.Fees, t.FundingCost, t.Leverage, t.Reason,
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (time, capital, equity, open_positions)
		VALUES (?, ?, ?, ?)`,
		e.Time, e.Capital, e.Equity, e.OpenPositions,
	)
	return err
}

func (j *SQLiteJournal) RecordRun(r RunRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO runs
		(run_id, created, symbol, strategy, start_time, end_time,
		 initial_capital, final_capital, total_return, max_drawdown,
		 sharpe, sortino, profit_factor, win_rate, trades)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created, r.Symbol, r.Strategy, r.Start, r.End,
		r.InitialCapital, r.FinalCapital, r.TotalReturn, r.MaxDrawdown,
		r.Sharpe, r.Sortino, r.ProfitFactor, r.WinRate, r.Trades,
	)
	return err
}

// ListTrades returns all recorded trades for symbol, oldest first.
// An empty symbol returns every trade.
func (j *SQLiteJournal) ListTrades(symbol string) ([]TradeRecord, error) {
	query := `
		SELECT trade_id, symbol, side, size, entry_price, exit_price,
		       entry_time, exit_time, pnl, fees, funding_cost, leverage, reason
		FROM trades`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY exit_time`

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(
			&t.TradeID, &t.Symbol, &t.Side, &t.Size, &t.EntryPrice, &t.ExitPrice,
			&t.EntryTime, &t.ExitTime, &t.PnL, &t.Fees, &t.FundingCost, &t.Leverage, &t.Reason,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListEquity returns the persisted equity curve, oldest first.
func (j *SQLiteJournal) ListEquity() ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT time, capital, equity, open_positions
		FROM equity ORDER BY time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(&e.Time, &e.Capital, &e.Equity, &e.OpenPositions); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
