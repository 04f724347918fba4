package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"SignalSim/internal/domain/models"
	"SignalSim/internal/usecase"
	xhttp "SignalSim/pkg/http"
	applogger "SignalSim/pkg/logger"
)

// SettingsHandler exposes settings, the watchlist, performance counters and
// the top symbol ranking.
type SettingsHandler struct {
	svc *usecase.SettingsService
	l   *applogger.Logger
}

func NewSettingsHandler(svc *usecase.SettingsService, l *applogger.Logger) *SettingsHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &SettingsHandler{svc: svc, l: l}
}

func (h *SettingsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/settings", h.GetSettings)
	g.PUT("/settings", h.UpdateSettings)
	g.GET("/watchlist", h.GetWatchlist)
	g.POST("/watchlist", h.AddToWatchlist)
	g.DELETE("/watchlist/:symbol", h.RemoveFromWatchlist)
	g.GET("/performance/:symbol", h.Performance)
	g.GET("/symbols/top", h.TopSymbols)
}

func (h *SettingsHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.l.Error(op+" failed", applogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func (h *SettingsHandler) GetSettings(c echo.Context) error {
	s, err := h.svc.Settings(c.Request().Context())
	if err != nil {
		return h.fail(c, "get settings", err)
	}
	return xhttp.SuccessResponse(c, s)
}

func (h *SettingsHandler) UpdateSettings(c echo.Context) error {
	req := &models.SettingsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	s, err := h.svc.UpdateSettings(c.Request().Context(), req.Settings)
	if err != nil {
		return h.fail(c, "update settings", err)
	}
	return xhttp.SuccessResponse(c, s)
}

func (h *SettingsHandler) GetWatchlist(c echo.Context) error {
	list, err := h.svc.Watchlist(c.Request().Context())
	if err != nil {
		return h.fail(c, "get watchlist", err)
	}
	return xhttp.ListResponse(c, list, int64(len(list)))
}

func (h *SettingsHandler) AddToWatchlist(c echo.Context) error {
	req := &models.WatchlistRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.svc.AddToWatchlist(c.Request().Context(), req.Symbol); err != nil {
		return h.fail(c, "add to watchlist", err)
	}
	return xhttp.CreatedResponse(c, req)
}

func (h *SettingsHandler) RemoveFromWatchlist(c echo.Context) error {
	if err := h.svc.RemoveFromWatchlist(c.Request().Context(), c.Param("symbol")); err != nil {
		return h.fail(c, "remove from watchlist", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *SettingsHandler) Performance(c echo.Context) error {
	symbol := strings.ToUpper(c.Param("symbol"))
	st, err := h.svc.Performance(c.Request().Context(), symbol)
	if err != nil {
		return h.fail(c, "get performance", err)
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *SettingsHandler) TopSymbols(c echo.Context) error {
	req := &models.TopSymbolsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	list, err := h.svc.TopSymbols(c.Request().Context(), req.Limit)
	if err != nil {
		return h.fail(c, "top symbols", err)
	}
	return xhttp.ListResponse(c, list, int64(len(list)))
}
