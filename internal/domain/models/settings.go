package models

// Named numeric settings kept by the persistence layer.
const (
	SettingRiskPerTrade = "risk_per_trade"
	SettingStopLoss     = "stop_loss"
	SettingTakeProfit   = "take_profit"
	SettingSensitivity  = "sensitivity"
	SettingLookbackDays = "lookback_days"
)

// DefaultSettings are seeded into an empty store.
var DefaultSettings = map[string]float64{
	SettingRiskPerTrade: 0.10,
	SettingStopLoss:     0.02,
	SettingTakeProfit:   0.05,
	SettingSensitivity:  0.005,
	SettingLookbackDays: 30,
}
