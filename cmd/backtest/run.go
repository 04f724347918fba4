package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"SignalSim/internal/domain/models"
	domrepo "SignalSim/internal/domain/repository"
	"SignalSim/internal/repository"
	"SignalSim/internal/usecase"
	"SignalSim/pkg/config"
	xhttp "SignalSim/pkg/http"
	applogger "SignalSim/pkg/logger"
)

// allRows is a lookback that keeps every row of a CSV file.
const allRows = 100000

type runOptions struct {
	csvPath      string
	symbol       string
	interval     string
	lookbackDays int
	horizon      int
	threshold    float64
	positionSize float64
	stopLoss     float64
	takeProfit   float64
	capital      float64
	minCost      float64
	asJSON       bool
	showTrades   bool
	verbose      bool
}

func runCmd() *cobra.Command {
	def := config.Default()
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one backtest from a CSV file or the Binance REST API",
		Example: `  backtest run --csv btc_1h.csv --symbol BTCUSDT
  backtest run --symbol ETHUSDT --interval 15m --lookback-days 14 --sl 0.01 --tp 0.03`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return o.run(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), def)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.csvPath, "csv", "", "CSV file with timestamp,open,high,low,close,volume rows (default: fetch from Binance)")
	f.StringVarP(&o.symbol, "symbol", "s", "BTCUSDT", "Trading pair")
	f.StringVarP(&o.interval, "interval", "i", string(domrepo.DefaultInterval()), "Candle interval: 15m, 1h or 1d")
	f.IntVar(&o.lookbackDays, "lookback-days", 0, "Days of history (0: whole CSV, or the configured default for Binance)")
	f.IntVar(&o.horizon, "horizon", def.Engine.Horizon, "Label horizon in bars")
	f.Float64Var(&o.threshold, "threshold", def.Engine.Threshold, "Label threshold as a fraction")
	f.Float64Var(&o.positionSize, "risk", def.Risk.PositionSize, "Fraction of cash spent per entry")
	f.Float64Var(&o.stopLoss, "sl", def.Risk.StopLoss, "Stop loss fraction")
	f.Float64Var(&o.takeProfit, "tp", def.Risk.TakeProfit, "Take profit fraction")
	f.Float64Var(&o.capital, "capital", def.Engine.InitialCapital, "Initial cash")
	f.Float64Var(&o.minCost, "min-cost", def.Engine.MinTradeCost, "Entries costing this much or less are skipped")
	f.BoolVar(&o.asJSON, "json", false, "Print the full result as JSON")
	f.BoolVar(&o.showTrades, "trades", true, "Print the trade log")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "Log pipeline progress to stderr")
	return cmd
}

func (o *runOptions) run(ctx context.Context, out, errOut io.Writer, def *config.Config) error {
	if !domrepo.IsValidInterval(domrepo.Interval(o.interval)) {
		return fmt.Errorf("invalid interval %q", o.interval)
	}
	l := applogger.Nop()
	if o.verbose {
		l = applogger.NewWriter(zerolog.ConsoleWriter{Out: errOut, TimeFormat: time.Kitchen}, zerolog.DebugLevel)
	}

	var source domrepo.CandleSource
	lookback := o.lookbackDays
	if o.csvPath != "" {
		source = repository.NewCSVSource(o.csvPath)
		if lookback <= 0 {
			lookback = allRows
		}
	} else {
		client := xhttp.NewClient(
			xhttp.WithBaseURL(def.Binance.RestURL),
			xhttp.WithTimeout(def.Binance.Timeout),
		)
		source = repository.NewBinanceSource(client, l)
	}

	pc := usecase.DefaultPipelineConfig()
	pc.LookbackDays = def.Engine.LookbackDays
	pc.Horizon = o.horizon
	pc.Threshold = o.threshold
	pc.InitialCapital = o.capital
	pc.MinTradeCost = o.minCost
	pc.Risk = models.RiskConfig{PositionSize: o.positionSize, StopLoss: o.stopLoss, TakeProfit: o.takeProfit}

	journal := repository.NewMemoryJournal()
	p := usecase.NewSignalPipeline(source,
		usecase.WithConfig(pc),
		usecase.WithJournal(journal),
		usecase.WithLogger(l),
	)
	res, err := p.Run(ctx, models.RunParams{
		Symbol:       o.symbol,
		Interval:     o.interval,
		LookbackDays: lookback,
	})
	if err != nil {
		return err
	}

	if o.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResult(out, res, o.showTrades)
	return nil
}

func printResult(out io.Writer, res *models.RunResult, showTrades bool) {
	signals := map[models.SignalClass]int{}
	for _, r := range res.Rows {
		if r.HasSignal {
			signals[r.Signal.Class]++
		}
	}

	fmt.Fprintf(out, "%s %s  run %s\n", res.Symbol, res.Interval, res.RunID)
	fmt.Fprintf(out, "rows %d  signals BUY=%d SELL=%d HOLD=%d  test accuracy %.2f%%\n\n",
		len(res.Rows), signals[models.SignalBuy], signals[models.SignalSell], signals[models.SignalHold], res.Accuracy*100)

	if showTrades && len(res.Trades) > 0 {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tACTION\tPRICE\tQTY\tREASON\tPNL\tPNL%")
		for _, t := range res.Trades {
			pnl, pct := "", ""
			if t.Action == models.ActionSell {
				pnl = fmt.Sprintf("%.2f", t.RealizedPnL)
				pct = fmt.Sprintf("%.2f", t.ProfitPct)
			}
			fmt.Fprintf(w, "%s\t%s\t%.4f\t%.6f\t%s\t%s\t%s\n",
				t.Timestamp.Format(time.RFC3339), t.Action, t.Price, t.Quantity, t.Reason, pnl, pct)
		}
		_ = w.Flush()
		fmt.Fprintln(out)
	}

	s := res.Summary
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "initial capital\t%.2f\n", res.InitialCapital)
	fmt.Fprintf(w, "final value\t%.2f\n", res.FinalValue)
	fmt.Fprintf(w, "return\t%.2f%%\n", (res.FinalValue/res.InitialCapital-1)*100)
	fmt.Fprintf(w, "closed trades\t%d (%d wins, %d losses)\n", s.TotalTrades, s.Wins, s.Losses)
	fmt.Fprintf(w, "win rate\t%.2f%%\n", s.WinRate)
	fmt.Fprintf(w, "realized pnl\t%.2f\n", s.RealizedPnL)
	fmt.Fprintf(w, "profit factor\t%.2f\n", s.ProfitFactor)
	fmt.Fprintf(w, "max drawdown\t%.2f%%\n", s.MaxDrawdown)
	_ = w.Flush()
}

func symbolsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "symbols",
		Short: "List the top USDT pairs by 24h quote volume",
		RunE: func(cmd *cobra.Command, args []string) error {
			def := config.Default()
			client := xhttp.NewClient(
				xhttp.WithBaseURL(def.Binance.RestURL),
				xhttp.WithTimeout(def.Binance.Timeout),
			)
			syms, err := repository.NewBinanceSource(client, nil).TopSymbols(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for i, s := range syms {
				fmt.Fprintf(cmd.OutOrStdout(), "%2d  %s\n", i+1, s)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of symbols")
	return cmd
}
