package models

// Requests for the HTTP control surface. Defined in domain for reuse by handlers and tests.

type RunRequest struct {
	Symbol       string  `json:"symbol" validate:"required,uppercase"`
	Interval     string  `json:"interval" default:"1h" validate:"oneof=15m 1h 1d"`
	LookbackDays int     `json:"lookback_days" validate:"gte=0,lte=365"`
	Horizon      int     `json:"horizon" default:"1" validate:"gte=1,lte=48"`
	Threshold    float64 `json:"threshold" validate:"gte=0,lt=1"`
	PositionSize float64 `json:"position_size" validate:"gte=0,lte=1"`
	StopLoss     float64 `json:"stop_loss" validate:"gte=0,lt=1"`
	TakeProfit   float64 `json:"take_profit" validate:"gte=0"`
}

type FeaturesRequest struct {
	Symbol       string  `query:"symbol" json:"symbol" validate:"required,uppercase"`
	Interval     string  `query:"interval" json:"interval" default:"1h" validate:"oneof=15m 1h 1d"`
	LookbackDays int     `query:"lookback_days" json:"lookback_days" default:"30" validate:"gte=1,lte=365"`
	Horizon      int     `query:"horizon" json:"horizon" default:"1" validate:"gte=1,lte=48"`
	Threshold    float64 `query:"threshold" json:"threshold" default:"0.005" validate:"gte=0,lt=1"`
}

type TopSymbolsRequest struct {
	Limit int `query:"limit" json:"limit" default:"10" validate:"gte=1,lte=100"`
}

type SettingsRequest struct {
	Settings map[string]float64 `json:"settings" validate:"required,min=1,dive,keys,required,endkeys"`
}

type WatchlistRequest struct {
	Symbol string `json:"symbol" validate:"required,uppercase"`
}
