package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"SignalSim/internal/domain/models"
	domrepo "SignalSim/internal/domain/repository"
	"SignalSim/pkg/postgres"
)

// JournalSchema is the idempotent DDL for the persistence tables.
func JournalSchema() []string {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS watchlist (
			symbol TEXT PRIMARY KEY,
			added_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value DOUBLE PRECISION NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS signal_logs (
			id BIGSERIAL PRIMARY KEY,
			symbol TEXT NOT NULL,
			signal TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			interval TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS signal_logs_symbol_idx ON signal_logs (symbol, created_at)`,
		`CREATE TABLE IF NOT EXISTS performance_stats (
			symbol TEXT PRIMARY KEY,
			total_trades INTEGER NOT NULL DEFAULT 0,
			wins INTEGER NOT NULL DEFAULT 0,
			losses INTEGER NOT NULL DEFAULT 0,
			profit_loss DOUBLE PRECISION NOT NULL DEFAULT 0,
			win_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for k, v := range models.DefaultSettings {
		stmts = append(stmts, fmt.Sprintf(
			"INSERT INTO settings (key, value) VALUES ('%s', %g) ON CONFLICT (key) DO NOTHING", k, v))
	}
	return stmts
}

// PGJournal implements SignalJournal and SettingsStore on PostgreSQL.
type PGJournal struct {
	db postgres.Querier
}

func NewPGJournal(db postgres.Querier) *PGJournal {
	return &PGJournal{db: db}
}

// ============================================================================
// SIGNALS & PERFORMANCE
// ============================================================================

func (j *PGJournal) LogSignal(ctx context.Context, e models.SignalLog) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := j.db.Exec(ctx, `
		INSERT INTO signal_logs (symbol, signal, confidence, price, interval, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.Symbol, string(e.Signal), e.Confidence, e.Price, e.Interval, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("log signal: %w", err)
	}
	return nil
}

// RecordTradeOutcome counts one closed trade; pnl > 0 is a win.
func (j *PGJournal) RecordTradeOutcome(ctx context.Context, symbol string, pnl float64) error {
	win, loss, winRate := 0, 1, 0.0
	if pnl > 0 {
		win, loss, winRate = 1, 0, 100
	}
	// every placeholder appears once: Postgres rejects a parameter deduced as two types
	_, err := j.db.Exec(ctx, `
		INSERT INTO performance_stats (symbol, total_trades, wins, losses, profit_loss, win_rate, updated_at)
		VALUES ($1, 1, $2, $3, $4, $5, now())
		ON CONFLICT (symbol) DO UPDATE SET
			total_trades = performance_stats.total_trades + 1,
			wins = performance_stats.wins + EXCLUDED.wins,
			losses = performance_stats.losses + EXCLUDED.losses,
			profit_loss = performance_stats.profit_loss + EXCLUDED.profit_loss,
			win_rate = (performance_stats.wins + EXCLUDED.wins)::float8 * 100 / (performance_stats.total_trades + 1),
			updated_at = now()
	`, symbol, win, loss, pnl, winRate)
	if err != nil {
		return fmt.Errorf("record trade outcome: %w", err)
	}
	return nil
}

func (j *PGJournal) GetPerformance(ctx context.Context, symbol string) (models.PerformanceStats, error) {
	st := models.PerformanceStats{Symbol: symbol}
	err := j.db.QueryRow(ctx, `
		SELECT total_trades, wins, losses, profit_loss, win_rate
		FROM performance_stats WHERE symbol = $1
	`, symbol).Scan(&st.TotalTrades, &st.Wins, &st.Losses, &st.ProfitLoss, &st.WinRate)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("get performance: %w", err)
	}
	return st, nil
}

// ============================================================================
// SETTINGS
// ============================================================================

func (j *PGJournal) GetSettings(ctx context.Context) (map[string]float64, error) {
	rows, err := j.db.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var (
			k string
			v float64
		)
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (j *PGJournal) SetSetting(ctx context.Context, key string, value float64) error {
	_, err := j.db.Exec(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// ============================================================================
// WATCHLIST
// ============================================================================

func (j *PGJournal) GetWatchlist(ctx context.Context) ([]string, error) {
	rows, err := j.db.Query(ctx, `SELECT symbol FROM watchlist ORDER BY added_at, symbol`)
	if err != nil {
		return nil, fmt.Errorf("get watchlist: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan watchlist: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (j *PGJournal) AddToWatchlist(ctx context.Context, symbol string) error {
	_, err := j.db.Exec(ctx, `INSERT INTO watchlist (symbol) VALUES ($1) ON CONFLICT (symbol) DO NOTHING`, strings.ToUpper(symbol))
	if err != nil {
		return fmt.Errorf("add to watchlist: %w", err)
	}
	return nil
}

func (j *PGJournal) RemoveFromWatchlist(ctx context.Context, symbol string) error {
	_, err := j.db.Exec(ctx, `DELETE FROM watchlist WHERE symbol = $1`, strings.ToUpper(symbol))
	if err != nil {
		return fmt.Errorf("remove from watchlist: %w", err)
	}
	return nil
}

var (
	_ domrepo.SignalJournal = (*PGJournal)(nil)
	_ domrepo.SettingsStore = (*PGJournal)(nil)
)
