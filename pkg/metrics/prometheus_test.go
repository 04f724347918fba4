package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"SignalSim/internal/domain/models"
)

func TestRecorderCounts(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.RecordRun("ok")
	r.RecordRun("ok")
	r.RecordRun("insufficient_data")
	r.RecordSignal("BTCUSDT", models.SignalBuy)
	r.RecordTrade("BTCUSDT", models.ActionSell, models.ReasonStopLoss)
	r.RecordAccuracy("BTCUSDT", 0.75)
	r.RecordCandles("binance", 120)

	if got := testutil.ToFloat64(r.runs.WithLabelValues("ok")); got != 2 {
		t.Fatalf("runs ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.signals.WithLabelValues("BTCUSDT", "BUY")); got != 1 {
		t.Fatalf("signals = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.trades.WithLabelValues("BTCUSDT", "SELL", models.ReasonStopLoss)); got != 1 {
		t.Fatalf("trades = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.accuracy.WithLabelValues("BTCUSDT")); got != 0.75 {
		t.Fatalf("accuracy = %v", got)
	}
	if got := testutil.ToFloat64(r.candles.WithLabelValues("binance")); got != 120 {
		t.Fatalf("candles = %v", got)
	}
}

func TestRecordersDoNotCollide(t *testing.T) {
	// separate registries must not panic on duplicate registration
	_ = New()
	_ = New()
}
