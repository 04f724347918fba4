package repository

import "time"

// Interval represents candle resolution.
type Interval string

const (
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval1d  Interval = "1d"
)

// MaxCandlesPerRequest is the exchange cap on one klines request.
const MaxCandlesPerRequest = 1000

// IsValidInterval returns true if iv is a supported interval.
func IsValidInterval(iv Interval) bool {
	switch iv {
	case Interval15m, Interval1h, Interval1d:
		return true
	default:
		return false
	}
}

// DefaultInterval returns the default interval.
func DefaultInterval() Interval { return Interval1h }

// NormalizeInterval converts raw string to a valid interval (or default).
func NormalizeInterval(s string) Interval {
	if s == "" {
		return DefaultInterval()
	}
	iv := Interval(s)
	if IsValidInterval(iv) {
		return iv
	}
	return DefaultInterval()
}

// BarsPerDay returns how many candles of iv fit in one day.
func BarsPerDay(iv Interval) int {
	switch iv {
	case Interval15m:
		return 96
	case Interval1d:
		return 1
	default:
		return 24
	}
}

// Duration returns the wall-clock length of one candle.
func (iv Interval) Duration() time.Duration {
	switch iv {
	case Interval15m:
		return 15 * time.Minute
	case Interval1d:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// LimitForLookback converts a lookback window in days to a candle count,
// capped at MaxCandlesPerRequest.
func LimitForLookback(iv Interval, days int) int {
	if days <= 0 {
		days = 1
	}
	n := days * BarsPerDay(iv)
	if n > MaxCandlesPerRequest {
		n = MaxCandlesPerRequest
	}
	return n
}
