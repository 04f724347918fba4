package simulator

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"SignalSim/internal/domain/models"
)

const (
	DefaultInitialCapital = 10000.0
	// DefaultMinTradeCost is the smallest entry cost that opens a position.
	// Entries costing this much or less are skipped.
	DefaultMinTradeCost = 10.0
)

// DefaultRisk mirrors the stock risk settings.
var DefaultRisk = models.RiskConfig{
	PositionSize: 0.10,
	StopLoss:     0.02,
	TakeProfit:   0.05,
}

var (
	ErrInvalidRisk  = errors.New("invalid risk configuration")
	ErrPositionOpen = errors.New("risk cannot change while a position is open")
)

// ValidateRisk checks PositionSize in (0,1], StopLoss in (0,1) and TakeProfit > 0.
func ValidateRisk(r models.RiskConfig) error {
	switch {
	case !(r.PositionSize > 0 && r.PositionSize <= 1):
		return fmt.Errorf("%w: position_size %.4f must be in (0,1]", ErrInvalidRisk, r.PositionSize)
	case !(r.StopLoss > 0 && r.StopLoss < 1):
		return fmt.Errorf("%w: stop_loss %.4f must be in (0,1)", ErrInvalidRisk, r.StopLoss)
	case !(r.TakeProfit > 0) || math.IsInf(r.TakeProfit, 1):
		return fmt.Errorf("%w: take_profit %.4f must be positive", ErrInvalidRisk, r.TakeProfit)
	}
	return nil
}

// PositionState is FLAT or LONG.
type PositionState string

const (
	Flat PositionState = "FLAT"
	Long PositionState = "LONG"
)

// Position describes the open long, zero valued when flat.
type Position struct {
	State      PositionState `json:"state"`
	Symbol     string        `json:"symbol,omitempty"`
	EntryPrice float64       `json:"entry_price,omitempty"`
	StopLoss   float64       `json:"stop_loss,omitempty"`
	TakeProfit float64       `json:"take_profit,omitempty"`
	Quantity   float64       `json:"quantity,omitempty"`
}

type exitTrigger struct {
	reason string
	hit    func(pos Position, signal models.SignalClass, price float64) bool
}

// exitTriggers are evaluated in order; the first hit closes the position.
var exitTriggers = []exitTrigger{
	{models.ReasonStopLoss, func(pos Position, _ models.SignalClass, price float64) bool {
		return price <= pos.StopLoss
	}},
	{models.ReasonTakeProfit, func(pos Position, _ models.SignalClass, price float64) bool {
		return price >= pos.TakeProfit
	}},
	{models.ReasonSignalReversal, func(_ Position, signal models.SignalClass, _ float64) bool {
		return signal == models.SignalSell
	}},
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithInitialCapital funds the portfolio with capital units of quote.
func WithInitialCapital(capital float64) Option {
	return func(s *Simulator) { s.initialCapital = capital }
}

// WithMinTradeCost overrides the minimum entry cost.
func WithMinTradeCost(cost float64) Option {
	return func(s *Simulator) { s.minTradeCost = cost }
}

// WithQuoteAsset overrides the quote currency.
func WithQuoteAsset(asset string) Option {
	return func(s *Simulator) { s.quote = asset }
}

// WithIDGenerator replaces the trade ID source.
func WithIDGenerator(fn func() string) Option {
	return func(s *Simulator) { s.newID = fn }
}

// Simulator is a single-account long-only position state machine.
// It is not safe for concurrent use.
type Simulator struct {
	risk           models.RiskConfig
	initialCapital float64
	minTradeCost   float64
	quote          string
	newID          func() string

	portfolio *Portfolio
	position  Position
	trades    []models.Trade
}

// New creates a flat simulator funded with the initial capital.
func New(risk models.RiskConfig, opts ...Option) (*Simulator, error) {
	if err := ValidateRisk(risk); err != nil {
		return nil, err
	}
	s := &Simulator{
		risk:           risk,
		initialCapital: DefaultInitialCapital,
		minTradeCost:   DefaultMinTradeCost,
		quote:          DefaultQuoteAsset,
		newID:          uuid.NewString,
		position:       Position{State: Flat},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.initialCapital < 0 {
		return nil, fmt.Errorf("%w: initial capital %.2f is negative", ErrInvalidRisk, s.initialCapital)
	}
	s.portfolio = NewPortfolio(s.quote, s.initialCapital)
	return s, nil
}

// SetRisk replaces the risk parameters between replays.
func (s *Simulator) SetRisk(risk models.RiskConfig) error {
	if s.position.State == Long {
		return ErrPositionOpen
	}
	if err := ValidateRisk(risk); err != nil {
		return err
	}
	s.risk = risk
	return nil
}

func (s *Simulator) Risk() models.RiskConfig { return s.risk }
func (s *Simulator) InitialCapital() float64 { return s.initialCapital }
func (s *Simulator) Position() Position      { return s.position }
func (s *Simulator) Portfolio() *Portfolio   { return s.portfolio }

// Trades returns a copy of the trade log in execution order.
func (s *Simulator) Trades() []models.Trade {
	out := make([]models.Trade, len(s.trades))
	copy(out, s.trades)
	return out
}

// PortfolioValue values the portfolio against prices keyed by pair symbol.
func (s *Simulator) PortfolioValue(prices map[string]float64) float64 {
	return s.portfolio.Value(prices)
}

// Step feeds one signal and price observation to the state machine and
// returns the trade it caused, or nil. Calls must arrive in timestamp order.
func (s *Simulator) Step(signal models.SignalClass, symbol string, price float64, ts time.Time) *models.Trade {
	if !(price > 0) || math.IsInf(price, 1) {
		return nil
	}

	switch s.position.State {
	case Long:
		for _, trig := range exitTriggers {
			if trig.hit(s.position, signal, price) {
				return s.exit(trig.reason, price, ts)
			}
		}
	case Flat:
		if signal == models.SignalBuy {
			return s.enter(symbol, price, ts)
		}
	}
	return nil
}

func (s *Simulator) enter(symbol string, price float64, ts time.Time) *models.Trade {
	cost := s.portfolio.Cash() * s.risk.PositionSize
	if cost <= s.minTradeCost {
		return nil
	}
	base := s.portfolio.BaseAsset(symbol)
	qty := cost / price

	s.portfolio.debit(s.quote, cost)
	s.portfolio.credit(base, qty)
	s.position = Position{
		State:      Long,
		Symbol:     symbol,
		EntryPrice: price,
		StopLoss:   price * (1 - s.risk.StopLoss),
		TakeProfit: price * (1 + s.risk.TakeProfit),
		Quantity:   qty,
	}

	return s.record(models.Trade{
		Timestamp: ts,
		Symbol:    symbol,
		Action:    models.ActionBuy,
		Price:     price,
		Quantity:  qty,
		Reason:    models.ReasonSignalBuy,
	})
}

func (s *Simulator) exit(reason string, price float64, ts time.Time) *models.Trade {
	pos := s.position
	base := s.portfolio.BaseAsset(pos.Symbol)
	qty := s.portfolio.Balance(base)

	s.portfolio.credit(s.quote, qty*price)
	s.portfolio.zero(base)
	s.position = Position{State: Flat}

	return s.record(models.Trade{
		Timestamp:   ts,
		Symbol:      pos.Symbol,
		Action:      models.ActionSell,
		Price:       price,
		Quantity:    qty,
		Reason:      reason,
		RealizedPnL: qty * (price - pos.EntryPrice),
		ProfitPct:   (price - pos.EntryPrice) / pos.EntryPrice * 100,
	})
}

func (s *Simulator) record(t models.Trade) *models.Trade {
	t.ID = s.newID()
	s.trades = append(s.trades, t)
	out := t
	return &out
}
