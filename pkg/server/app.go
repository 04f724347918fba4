package server

import (
	"context"
	"fmt"

	"SignalSim/internal/usecase"
	"SignalSim/pkg/config"
	xhttp "SignalSim/pkg/http"
	applogger "SignalSim/pkg/logger"
)

// App owns the HTTP server and the optional live candle collector.
type App struct {
	cfg       *config.Config
	http      *xhttp.Server
	collector *usecase.KlineCollector
	l         *applogger.Logger
}

// New creates an App. collector may be nil.
func New(cfg *config.Config, srv *xhttp.Server, collector *usecase.KlineCollector, l *applogger.Logger) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, http: srv, collector: collector, l: l}
}

// Run starts every component and blocks until ctx is done or the listener fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			// runs still work from REST data without the live archive
			a.l.Error("collector start failed", applogger.Error(err))
		} else {
			a.l.Info("collector started",
				applogger.Strings("symbols", a.cfg.Binance.Symbols),
				applogger.String("interval", a.cfg.Binance.Interval),
			)
		}
	}

	if err := a.http.Start(); err != nil {
		return fmt.Errorf("http start: %w", err)
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	case err := <-a.http.Errors():
		runErr = fmt.Errorf("http server: %w", err)
	}
	cancel()
	a.shutdown()
	return runErr
}

func (a *App) shutdown() {
	a.l.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.l.Warn("collector stop error", applogger.Error(err))
		}
	}
	if err := a.http.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}
	a.l.Info("shutdown complete")
}
