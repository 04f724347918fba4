package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"SignalSim/internal/domain/models"
	domrepo "SignalSim/internal/domain/repository"
	pkgch "SignalSim/pkg/clickhouse"
	applogger "SignalSim/pkg/logger"
)

// CandleSchema creates the archive table. ReplacingMergeTree collapses
// re-archived bars with the same key.
func CandleSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.candles (
			interval LowCardinality(String),
			symbol LowCardinality(String),
			bucket DateTime64(3, 'UTC'),
			open Float64,
			high Float64,
			low Float64,
			close Float64,
			vol Float64
		) ENGINE = ReplacingMergeTree ORDER BY (symbol, interval, bucket)`, database),
	}
}

// CHCandleStore implements CandleStore backed by ClickHouse.
type CHCandleStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHCandleStore(ch *pkgch.Client, database string) *CHCandleStore {
	return &CHCandleStore{db: ch.DB(), table: database + ".candles", l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHCandleStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHCandleStore) StoreCandles(ctx context.Context, interval domrepo.Interval, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	// chunked multi-row VALUES keeps round-trips low
	const chunkSize = 1000
	for start := 0; start < len(candles); start += chunkSize {
		end := start + chunkSize
		if end > len(candles) {
			end = len(candles)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, c := range candles[start:end] {
			if c.Symbol == "" || c.Timestamp.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, string(interval), c.Symbol, c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (interval, symbol, bucket, open, high, low, close, vol) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse store_candles error",
				applogger.String("table", s.table),
				applogger.String("interval", string(interval)),
				applogger.Int("rows", len(values)),
				applogger.Error(err),
			)
			return fmt.Errorf("store candles: %w", err)
		}
	}
	return nil
}

func (s *CHCandleStore) GetLatestNCandles(ctx context.Context, symbol string, n int, interval domrepo.Interval) ([]models.Candle, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT bucket, symbol, open, high, low, close, vol
        FROM %s FINAL
        WHERE symbol = ? AND interval = ?
        ORDER BY bucket DESC
        LIMIT ?
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, string(interval), n)
	if err != nil {
		s.l.Error("clickhouse latest_candles query error",
			applogger.Symbol(symbol),
			applogger.String("interval", string(interval)),
			applogger.Int("limit", n),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get latest candles: %w", err)
	}
	defer rows.Close()

	tmp := make([]models.Candle, 0, n)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Timestamp = c.Timestamp.UTC()
		tmp = append(tmp, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	s.l.Debug("clickhouse latest_candles ok",
		applogger.Symbol(symbol),
		applogger.String("interval", string(interval)),
		applogger.Int("rows", len(tmp)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return tmp, nil
}

// FetchCandles serves the archive as a CandleSource for offline replays.
func (s *CHCandleStore) FetchCandles(ctx context.Context, symbol string, interval domrepo.Interval, lookbackDays int) ([]models.Candle, error) {
	return s.GetLatestNCandles(ctx, symbol, domrepo.LimitForLookback(interval, lookbackDays), interval)
}

var (
	_ domrepo.CandleStore  = (*CHCandleStore)(nil)
	_ domrepo.CandleSource = (*CHCandleStore)(nil)
)
