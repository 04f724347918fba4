package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"SignalSim/internal/domain/models"
	"SignalSim/internal/service/ratelimit"
	xhttp "SignalSim/pkg/http"
	applogger "SignalSim/pkg/logger"
)

const featuresMaxAge = 30 * time.Second

// Runner is the part of the signal pipeline the HTTP surface uses.
type Runner interface {
	Run(ctx context.Context, params models.RunParams) (*models.RunResult, error)
	LabeledFeatures(ctx context.Context, params models.RunParams) ([]models.FeatureRow, error)
}

// RunsHandler exposes pipeline runs and the labeled feature table.
type RunsHandler struct {
	runner   Runner
	limiter  *ratelimit.Limiter
	capacity float64
	refill   float64
	l        *applogger.Logger
}

// NewRunsHandler allows burst runs per client, refilled at perMinute.
func NewRunsHandler(runner Runner, limiter *ratelimit.Limiter, perMinute, burst int, l *applogger.Logger) *RunsHandler {
	if limiter == nil {
		limiter = ratelimit.New()
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &RunsHandler{
		runner:   runner,
		limiter:  limiter,
		capacity: float64(burst),
		refill:   float64(perMinute) / 60,
		l:        l,
	}
}

func (h *RunsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/runs", h.Run)
	g.GET("/features", h.Features)
}

func (h *RunsHandler) Run(c echo.Context) error {
	req := &models.RunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.capacity > 0 && !h.limiter.Allow(c.RealIP()+":runs", h.capacity, h.refill) {
		h.l.Warn("run rate limited", applogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many runs, retry later"))
	}

	res, err := h.runner.Run(c.Request().Context(), models.RunParams{
		Symbol:       req.Symbol,
		Interval:     req.Interval,
		LookbackDays: req.LookbackDays,
		Horizon:      req.Horizon,
		Threshold:    req.Threshold,
		Risk: models.RiskConfig{
			PositionSize: req.PositionSize,
			StopLoss:     req.StopLoss,
			TakeProfit:   req.TakeProfit,
		},
	})
	if err != nil {
		appErr := toAppError(err)
		if appErr.Status >= http.StatusInternalServerError {
			h.l.Error("run failed", applogger.Symbol(req.Symbol), applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, appErr)
	}
	return xhttp.CreatedResponse(c, res)
}

func (h *RunsHandler) Features(c echo.Context) error {
	req := &models.FeaturesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.runner.LabeledFeatures(c.Request().Context(), models.RunParams{
		Symbol:       req.Symbol,
		Interval:     req.Interval,
		LookbackDays: req.LookbackDays,
		Horizon:      req.Horizon,
		Threshold:    req.Threshold,
	})
	if err != nil {
		appErr := toAppError(err)
		if appErr.Status >= http.StatusInternalServerError {
			h.l.Error("features failed", applogger.Symbol(req.Symbol), applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, appErr)
	}
	return xhttp.CachedListResponse(c, rows, int64(len(rows)), featuresMaxAge)
}
