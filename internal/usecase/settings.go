package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"SignalSim/internal/domain/models"
	domrepo "SignalSim/internal/domain/repository"
	"SignalSim/pkg/cache"
	applogger "SignalSim/pkg/logger"
)

var (
	ErrUnknownSetting = errors.New("unknown setting")
	ErrInvalidSetting = errors.New("setting out of range")
	ErrInvalidSymbol  = errors.New("invalid symbol")
	ErrNoSymbolLister = errors.New("symbol ranking unavailable")
)

var symbolRe = regexp.MustCompile(`^[A-Z0-9]{5,20}$`)

type settingRange struct {
	min, max         float64
	minOpen, maxOpen bool
}

func (r settingRange) contains(v float64) bool {
	if v < r.min || (r.minOpen && v == r.min) {
		return false
	}
	if v > r.max || (r.maxOpen && v == r.max) {
		return false
	}
	return true
}

func (r settingRange) String() string {
	lo, hi := "[", "]"
	if r.minOpen {
		lo = "("
	}
	if r.maxOpen {
		hi = ")"
	}
	return fmt.Sprintf("%s%g, %g%s", lo, r.min, r.max, hi)
}

var settingRanges = map[string]settingRange{
	models.SettingRiskPerTrade: {min: 0, max: 1, minOpen: true},
	models.SettingStopLoss:     {min: 0, max: 1, minOpen: true, maxOpen: true},
	models.SettingTakeProfit:   {min: 0, max: 10, minOpen: true},
	models.SettingSensitivity:  {min: 0, max: 1, maxOpen: true},
	models.SettingLookbackDays: {min: 1, max: 365},
}

// ValidateSetting checks key against the known settings and their ranges.
func ValidateSetting(key string, value float64) error {
	r, ok := settingRanges[key]
	if !ok {
		return fmt.Errorf("%q: %w", key, ErrUnknownSetting)
	}
	if !r.contains(value) {
		return fmt.Errorf("%s=%g not in %s: %w", key, value, r, ErrInvalidSetting)
	}
	return nil
}

// SettingsService is the control surface over persisted settings, the
// watchlist and per-symbol performance.
type SettingsService struct {
	store  domrepo.SettingsStore
	lister domrepo.SymbolLister
	cache  cache.Service
	ttl    time.Duration
	l      *applogger.Logger
}

type SettingsOption func(*SettingsService)

func WithSymbolLister(sl domrepo.SymbolLister) SettingsOption {
	return func(s *SettingsService) { s.lister = sl }
}

// WithTopSymbolsCache caches the ranking for ttl.
func WithTopSymbolsCache(c cache.Service, ttl time.Duration) SettingsOption {
	return func(s *SettingsService) { s.cache, s.ttl = c, ttl }
}

func WithSettingsLogger(l *applogger.Logger) SettingsOption {
	return func(s *SettingsService) { s.l = l }
}

func NewSettingsService(store domrepo.SettingsStore, opts ...SettingsOption) *SettingsService {
	s := &SettingsService{store: store, ttl: 5 * time.Minute, l: applogger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SettingsService) Settings(ctx context.Context) (map[string]float64, error) {
	return s.store.GetSettings(ctx)
}

// UpdateSettings validates every pair before writing any of them.
func (s *SettingsService) UpdateSettings(ctx context.Context, in map[string]float64) (map[string]float64, error) {
	keys := make([]string, 0, len(in))
	for k, v := range in {
		if err := ValidateSetting(k, v); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := s.store.SetSetting(ctx, k, in[k]); err != nil {
			return nil, err
		}
	}
	s.l.Info("settings updated", applogger.Strings("keys", keys))
	return s.store.GetSettings(ctx)
}

func (s *SettingsService) Watchlist(ctx context.Context) ([]string, error) {
	list, err := s.store.GetWatchlist(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

func (s *SettingsService) AddToWatchlist(ctx context.Context, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolRe.MatchString(symbol) {
		return fmt.Errorf("%q: %w", symbol, ErrInvalidSymbol)
	}
	return s.store.AddToWatchlist(ctx, symbol)
}

func (s *SettingsService) RemoveFromWatchlist(ctx context.Context, symbol string) error {
	return s.store.RemoveFromWatchlist(ctx, strings.ToUpper(strings.TrimSpace(symbol)))
}

func (s *SettingsService) Performance(ctx context.Context, symbol string) (models.PerformanceStats, error) {
	return s.store.GetPerformance(ctx, strings.ToUpper(symbol))
}

// TopSymbols ranks USDT pairs by 24h quote volume.
func (s *SettingsService) TopSymbols(ctx context.Context, n int) ([]string, error) {
	if s.lister == nil {
		return nil, ErrNoSymbolLister
	}
	key := cache.Key("top_symbols", n)
	if s.cache != nil {
		var cached []string
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.l.Warn("top symbols cache read failed", applogger.Error(err))
		}
	}
	out, err := s.lister.TopSymbols(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("top symbols: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, out, s.ttl); err != nil {
			s.l.Warn("top symbols cache write failed", applogger.Error(err))
		}
	}
	return out, nil
}
