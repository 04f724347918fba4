package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"SignalSim/internal/domain/models"
	domrepo "SignalSim/internal/domain/repository"
	xhttp "SignalSim/pkg/http"
	applogger "SignalSim/pkg/logger"
)

// BinanceSource reads klines and 24h tickers from the Binance spot REST API.
type BinanceSource struct {
	client *xhttp.Client
	l      *applogger.Logger
}

func NewBinanceSource(client *xhttp.Client, l *applogger.Logger) *BinanceSource {
	if l == nil {
		l = applogger.Nop()
	}
	return &BinanceSource{client: client, l: l}
}

// FetchCandles returns up to lookbackDays worth of closed and open bars in ascending order.
func (s *BinanceSource) FetchCandles(ctx context.Context, symbol string, interval domrepo.Interval, lookbackDays int) ([]models.Candle, error) {
	start := time.Now()
	limit := domrepo.LimitForLookback(interval, lookbackDays)

	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	q.Set("interval", string(interval))
	q.Set("limit", strconv.Itoa(limit))

	var raw [][]interface{}
	if err := s.client.GetJSON(ctx, "/api/v3/klines", q, &raw); err != nil {
		s.l.Error("binance klines request error",
			applogger.Symbol(symbol),
			applogger.String("interval", string(interval)),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("fetch klines %s: %w", symbol, err)
	}

	out, err := parseKlines(symbol, raw)
	if err != nil {
		return nil, err
	}
	s.l.Debug("binance klines ok",
		applogger.Symbol(symbol),
		applogger.String("interval", string(interval)),
		applogger.Int("limit", limit),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

// parseKlines converts [openTime, open, high, low, close, volume, ...] rows.
// Prices arrive as decimal strings.
func parseKlines(symbol string, raw [][]interface{}) ([]models.Candle, error) {
	out := make([]models.Candle, 0, len(raw))
	for i, row := range raw {
		if len(row) < 6 {
			return nil, fmt.Errorf("kline %d: expected at least 6 fields, got %d", i, len(row))
		}
		openTime, ok := row[0].(float64)
		if !ok {
			return nil, fmt.Errorf("kline %d: open time is %T", i, row[0])
		}
		var vals [5]float64
		for j := range vals {
			v, err := parseNumber(row[j+1])
			if err != nil {
				return nil, fmt.Errorf("kline %d field %d: %w", i, j+1, err)
			}
			vals[j] = v
		}
		out = append(out, models.Candle{
			Timestamp: time.UnixMilli(int64(openTime)).UTC(),
			Symbol:    strings.ToUpper(symbol),
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func parseNumber(v interface{}) (float64, error) {
	switch x := v.(type) {
	case string:
		return strconv.ParseFloat(x, 64)
	case float64:
		return x, nil
	case json.Number:
		return x.Float64()
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

type ticker24h struct {
	Symbol      string `json:"symbol"`
	QuoteVolume string `json:"quoteVolume"`
}

// TopSymbols ranks USDT pairs by 24h quote volume, skipping leveraged tokens.
func (s *BinanceSource) TopSymbols(ctx context.Context, n int) ([]string, error) {
	var tickers []ticker24h
	if err := s.client.GetJSON(ctx, "/api/v3/ticker/24hr", nil, &tickers); err != nil {
		s.l.Error("binance tickers request error", applogger.Error(err))
		return nil, fmt.Errorf("fetch tickers: %w", err)
	}
	return rankSymbols(tickers, n), nil
}

func rankSymbols(tickers []ticker24h, n int) []string {
	type ranked struct {
		symbol string
		volume float64
	}
	pairs := make([]ranked, 0, len(tickers))
	for _, t := range tickers {
		if !strings.HasSuffix(t.Symbol, "USDT") {
			continue
		}
		base := strings.TrimSuffix(t.Symbol, "USDT")
		if strings.HasSuffix(base, "UP") || strings.HasSuffix(base, "DOWN") {
			continue
		}
		v, err := strconv.ParseFloat(t.QuoteVolume, 64)
		if err != nil {
			continue
		}
		pairs = append(pairs, ranked{symbol: t.Symbol, volume: v})
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].volume > pairs[j].volume })

	if n > 0 && len(pairs) > n {
		pairs = pairs[:n]
	}
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.symbol
	}
	return out
}

var (
	_ domrepo.CandleSource = (*BinanceSource)(nil)
	_ domrepo.SymbolLister = (*BinanceSource)(nil)
)
