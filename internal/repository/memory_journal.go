package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"SignalSim/internal/domain/models"
	domrepo "SignalSim/internal/domain/repository"
)

// MemoryJournal is the in-process persistence used when PostgreSQL is disabled.
type MemoryJournal struct {
	mu        sync.Mutex
	settings  map[string]float64
	watchlist map[string]time.Time
	signals   []models.SignalLog
	perf      map[string]models.PerformanceStats
}

func NewMemoryJournal() *MemoryJournal {
	settings := make(map[string]float64, len(models.DefaultSettings))
	for k, v := range models.DefaultSettings {
		settings[k] = v
	}
	return &MemoryJournal{
		settings:  settings,
		watchlist: make(map[string]time.Time),
		perf:      make(map[string]models.PerformanceStats),
	}
}

func (j *MemoryJournal) LogSignal(_ context.Context, e models.SignalLog) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	j.mu.Lock()
	j.signals = append(j.signals, e)
	j.mu.Unlock()
	return nil
}

// Signals returns a copy of the signal log.
func (j *MemoryJournal) Signals() []models.SignalLog {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]models.SignalLog, len(j.signals))
	copy(out, j.signals)
	return out
}

func (j *MemoryJournal) RecordTradeOutcome(_ context.Context, symbol string, pnl float64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	st := j.perf[symbol]
	st.Symbol = symbol
	st.TotalTrades++
	if pnl > 0 {
		st.Wins++
	} else {
		st.Losses++
	}
	st.ProfitLoss += pnl
	st.WinRate = float64(st.Wins) / float64(st.TotalTrades) * 100
	j.perf[symbol] = st
	return nil
}

func (j *MemoryJournal) GetPerformance(_ context.Context, symbol string) (models.PerformanceStats, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	st, ok := j.perf[symbol]
	if !ok {
		return models.PerformanceStats{Symbol: symbol}, nil
	}
	return st, nil
}

func (j *MemoryJournal) GetSettings(_ context.Context) (map[string]float64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make(map[string]float64, len(j.settings))
	for k, v := range j.settings {
		out[k] = v
	}
	return out, nil
}

func (j *MemoryJournal) SetSetting(_ context.Context, key string, value float64) error {
	j.mu.Lock()
	j.settings[key] = value
	j.mu.Unlock()
	return nil
}

func (j *MemoryJournal) GetWatchlist(_ context.Context) ([]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, 0, len(j.watchlist))
	for s := range j.watchlist {
		out = append(out, s)
	}
	sort.Slice(out, func(a, b int) bool {
		ta, tb := j.watchlist[out[a]], j.watchlist[out[b]]
		if ta.Equal(tb) {
			return out[a] < out[b]
		}
		return ta.Before(tb)
	})
	return out, nil
}

func (j *MemoryJournal) AddToWatchlist(_ context.Context, symbol string) error {
	symbol = strings.ToUpper(symbol)
	j.mu.Lock()
	if _, ok := j.watchlist[symbol]; !ok {
		j.watchlist[symbol] = time.Now()
	}
	j.mu.Unlock()
	return nil
}

func (j *MemoryJournal) RemoveFromWatchlist(_ context.Context, symbol string) error {
	j.mu.Lock()
	delete(j.watchlist, strings.ToUpper(symbol))
	j.mu.Unlock()
	return nil
}

var (
	_ domrepo.SignalJournal = (*MemoryJournal)(nil)
	_ domrepo.SettingsStore = (*MemoryJournal)(nil)
)
