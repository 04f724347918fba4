package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"SignalSim/internal/domain/models"
	"SignalSim/pkg/config"
)

func writeCSV(t *testing.T, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("timestamp,open,high,low,close,volume\n")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := 100 + 8*math.Sin(float64(i)/3) + 0.05*float64(i)
		fmt.Fprintf(&b, "%s,%g,%g,%g,%g,%d\n", start.Add(time.Duration(i)*time.Hour).Format(time.RFC3339), c, c+0.5, c-0.5, c, 100+i%7)
	}
	path := filepath.Join(t.TempDir(), "candles.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func defaultOptions(path string) *runOptions {
	def := config.Default()
	return &runOptions{
		csvPath:      path,
		symbol:       "BTCUSDT",
		interval:     "1h",
		horizon:      def.Engine.Horizon,
		threshold:    def.Engine.Threshold,
		positionSize: def.Risk.PositionSize,
		stopLoss:     def.Risk.StopLoss,
		takeProfit:   def.Risk.TakeProfit,
		capital:      def.Engine.InitialCapital,
		minCost:      def.Engine.MinTradeCost,
		showTrades:   true,
	}
}

func TestRunFromCSV(t *testing.T) {
	o := defaultOptions(writeCSV(t, 300))
	var out, errOut bytes.Buffer
	if err := o.run(context.Background(), &out, &errOut, config.Default()); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"BTCUSDT 1h", "final value", "max drawdown", "rows 300"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunFromCSVAsJSON(t *testing.T) {
	o := defaultOptions(writeCSV(t, 300))
	o.asJSON = true
	var out bytes.Buffer
	if err := o.run(context.Background(), &out, &bytes.Buffer{}, config.Default()); err != nil {
		t.Fatalf("run: %v", err)
	}
	var res models.RunResult
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Symbol != "BTCUSDT" || len(res.Rows) != 300 || res.InitialCapital != 10000 {
		t.Fatalf("unexpected result: symbol=%s rows=%d capital=%v", res.Symbol, len(res.Rows), res.InitialCapital)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	o := defaultOptions(writeCSV(t, 60))
	if err := o.run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, config.Default()); err == nil {
		t.Fatal("expected insufficient data error")
	}
	o.interval = "4h"
	if err := o.run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, config.Default()); err == nil {
		t.Fatal("expected interval error")
	}
}
