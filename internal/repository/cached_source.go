package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"SignalSim/internal/domain/models"
	domrepo "SignalSim/internal/domain/repository"
	"SignalSim/pkg/cache"
	applogger "SignalSim/pkg/logger"
)

// CachedSource keeps the latest candle window per symbol/interval in a cache
// and refreshes it from the upstream source once the newest bar is stale.
// Fresh candles are optionally archived to a CandleStore.
type CachedSource struct {
	upstream domrepo.CandleSource
	cache    cache.Service
	archive  domrepo.CandleStore
	metrics  domrepo.Metrics
	ttl      time.Duration
	lockTTL  time.Duration
	now      func() time.Time
	l        *applogger.Logger
}

type CachedSourceOption func(*CachedSource)

// WithArchive mirrors every refreshed window into store.
func WithArchive(store domrepo.CandleStore) CachedSourceOption {
	return func(s *CachedSource) { s.archive = store }
}

func WithCacheTTL(ttl time.Duration) CachedSourceOption {
	return func(s *CachedSource) { s.ttl = ttl }
}

// WithRefreshLock bounds how long one caller may hold the refresh lock of a
// window. Other callers serve the cached window meanwhile.
func WithRefreshLock(ttl time.Duration) CachedSourceOption {
	return func(s *CachedSource) { s.lockTTL = ttl }
}

func WithSourceMetrics(m domrepo.Metrics) CachedSourceOption {
	return func(s *CachedSource) { s.metrics = m }
}

func WithSourceLogger(l *applogger.Logger) CachedSourceOption {
	return func(s *CachedSource) { s.l = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) CachedSourceOption {
	return func(s *CachedSource) { s.now = now }
}

func NewCachedSource(upstream domrepo.CandleSource, c cache.Service, opts ...CachedSourceOption) *CachedSource {
	s := &CachedSource{
		upstream: upstream,
		cache:    c,
		ttl:      24 * time.Hour,
		lockTTL:  30 * time.Second,
		now:      time.Now,
		l:        applogger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func candleKey(symbol string, interval domrepo.Interval) string {
	return cache.Key("candles", strings.ToUpper(symbol), interval)
}

func (s *CachedSource) FetchCandles(ctx context.Context, symbol string, interval domrepo.Interval, lookbackDays int) ([]models.Candle, error) {
	limit := domrepo.LimitForLookback(interval, lookbackDays)
	key := candleKey(symbol, interval)

	var cached []models.Candle
	err := s.cache.Get(ctx, key, &cached)
	switch {
	case err == nil:
	case errors.Is(err, cache.ErrCacheMiss):
		cached = nil
	default:
		s.l.Warn("candle cache read error", applogger.String("key", key), applogger.Error(err))
		s.recordError("cache_read")
		cached = nil
	}

	if s.fresh(cached, interval, limit) {
		s.recordCandles("cache", limit)
		return tail(cached, limit), nil
	}

	if len(cached) > 0 {
		lockKey := cache.Key("lock", key)
		locked, err := s.cache.TryLock(ctx, lockKey, s.lockTTL)
		switch {
		case err != nil:
			s.l.Warn("candle refresh lock error", applogger.String("key", lockKey), applogger.Error(err))
			s.recordError("cache_lock")
		case !locked:
			s.recordCandles("cache", len(tail(cached, limit)))
			return tail(cached, limit), nil
		default:
			defer func() { _ = s.cache.Unlock(ctx, lockKey) }()
		}
	}

	fetched, err := s.upstream.FetchCandles(ctx, symbol, interval, lookbackDays)
	if err != nil {
		if len(cached) > 0 {
			// serve stale data rather than nothing
			s.l.Warn("upstream refresh failed, serving cached candles",
				applogger.Symbol(symbol),
				applogger.Int("cached", len(cached)),
				applogger.Error(err),
			)
			s.recordError("upstream")
			return tail(cached, limit), nil
		}
		return nil, fmt.Errorf("cached source: %w", err)
	}
	s.recordCandles("upstream", len(fetched))

	merged := tail(mergeCandles(cached, fetched), limit)
	if len(merged) > 0 {
		if err := s.cache.Set(ctx, key, merged, s.ttl); err != nil {
			s.l.Warn("candle cache write error", applogger.String("key", key), applogger.Error(err))
			s.recordError("cache_write")
		}
	}
	if s.archive != nil && len(fetched) > 0 {
		if err := s.archive.StoreCandles(ctx, interval, fetched); err != nil {
			s.l.Warn("candle archive error", applogger.Symbol(symbol), applogger.Error(err))
			s.recordError("archive")
		}
	}
	return merged, nil
}

// fresh reports whether the cached window is long enough and its newest bar
// opened less than one interval ago.
func (s *CachedSource) fresh(cached []models.Candle, interval domrepo.Interval, limit int) bool {
	if len(cached) < limit {
		return false
	}
	last := cached[len(cached)-1].Timestamp
	return s.now().Sub(last) < interval.Duration()
}

// mergeCandles unions two windows by timestamp; b wins on conflict.
func mergeCandles(a, b []models.Candle) []models.Candle {
	byTS := make(map[int64]models.Candle, len(a)+len(b))
	for _, c := range a {
		byTS[c.Timestamp.UnixMilli()] = c
	}
	for _, c := range b {
		byTS[c.Timestamp.UnixMilli()] = c
	}
	out := make([]models.Candle, 0, len(byTS))
	for _, c := range byTS {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func tail(c []models.Candle, n int) []models.Candle {
	if n <= 0 || len(c) <= n {
		return c
	}
	return c[len(c)-n:]
}

func (s *CachedSource) recordError(kind string) {
	if s.metrics != nil {
		s.metrics.RecordError(kind)
	}
}

func (s *CachedSource) recordCandles(source string, n int) {
	if s.metrics != nil {
		s.metrics.RecordCandles(source, n)
	}
}

var _ domrepo.CandleSource = (*CachedSource)(nil)
