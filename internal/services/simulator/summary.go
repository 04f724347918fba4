package simulator

import "SignalSim/internal/domain/models"

// Summarize aggregates closed trades and the equity curve. Only SELL trades
// count as closed; a trade with positive realized PnL is a win.
func Summarize(trades []models.Trade, equity []models.EquityPoint) models.Summary {
	var (
		sum         models.Summary
		gross, loss float64
	)
	for _, t := range trades {
		if t.Action != models.ActionSell {
			continue
		}
		sum.TotalTrades++
		sum.RealizedPnL += t.RealizedPnL
		if t.RealizedPnL > 0 {
			sum.Wins++
			gross += t.RealizedPnL
		} else {
			sum.Losses++
			loss += -t.RealizedPnL
		}
	}
	if sum.TotalTrades > 0 {
		sum.WinRate = float64(sum.Wins) / float64(sum.TotalTrades) * 100
	}
	if loss > 0 {
		sum.ProfitFactor = gross / loss
	}
	sum.MaxDrawdown = maxDrawdown(equity)
	return sum
}

// maxDrawdown is the largest peak-to-trough decline in percent.
func maxDrawdown(equity []models.EquityPoint) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak, dd := equity[0].Value, 0.0
	for _, p := range equity {
		if p.Value > peak {
			peak = p.Value
		}
		if peak <= 0 {
			continue
		}
		if d := (peak - p.Value) / peak * 100; d > dd {
			dd = d
		}
	}
	return dd
}
