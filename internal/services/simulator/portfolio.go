package simulator

import (
	"sort"
	"strings"
)

// DefaultQuoteAsset is the cash currency balances are denominated in.
const DefaultQuoteAsset = "USDT"

// Portfolio holds cash in the quote asset plus base-asset holdings.
// Balances only change through simulator executions.
type Portfolio struct {
	quote    string
	balances map[string]float64
}

// NewPortfolio creates a portfolio funded with capital units of quote.
func NewPortfolio(quote string, capital float64) *Portfolio {
	if quote == "" {
		quote = DefaultQuoteAsset
	}
	return &Portfolio{
		quote:    quote,
		balances: map[string]float64{quote: capital},
	}
}

// Quote returns the quote asset name.
func (p *Portfolio) Quote() string { return p.quote }

// Cash returns the quote balance.
func (p *Portfolio) Cash() float64 { return p.balances[p.quote] }

// Balance returns the holding of asset, zero if never held.
func (p *Portfolio) Balance(asset string) float64 { return p.balances[asset] }

// Balances returns a copy of all balances.
func (p *Portfolio) Balances() map[string]float64 {
	out := make(map[string]float64, len(p.balances))
	for k, v := range p.balances {
		out[k] = v
	}
	return out
}

// BaseAsset strips the quote suffix from a trading pair symbol,
// e.g. BTCUSDT -> BTC.
func (p *Portfolio) BaseAsset(symbol string) string {
	base := strings.TrimSuffix(strings.ToUpper(symbol), p.quote)
	if base == "" {
		return symbol
	}
	return base
}

// Value prices every non-quote holding with prices[asset+quote]. Pair keys
// match regardless of case. A missing price values the holding at zero.
func (p *Portfolio) Value(prices map[string]float64) float64 {
	pairs := make(map[string]float64, len(prices))
	for k, v := range prices {
		pairs[strings.ToUpper(k)] = v
	}
	assets := make([]string, 0, len(p.balances))
	for asset := range p.balances {
		if asset != p.quote {
			assets = append(assets, asset)
		}
	}
	// stable summation order
	sort.Strings(assets)

	value := p.balances[p.quote]
	for _, asset := range assets {
		qty := p.balances[asset]
		if qty == 0 {
			continue
		}
		value += qty * pairs[asset+p.quote]
	}
	return value
}

func (p *Portfolio) debit(asset string, amount float64) {
	p.balances[asset] -= amount
}

func (p *Portfolio) credit(asset string, amount float64) {
	p.balances[asset] += amount
}

func (p *Portfolio) zero(asset string) {
	p.balances[asset] = 0
}
