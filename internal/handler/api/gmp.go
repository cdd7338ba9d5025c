package api

import (
	"sort"
	"time"

	models "GreyPulse/internal/domain/models"
	"GreyPulse/internal/gmp"
	"GreyPulse/internal/usecase"
	xhttp "GreyPulse/pkg/http"
	xlogger "GreyPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GMPHandler serves the validated-GMP read API.
type GMPHandler struct {
	logger *xlogger.Logger
	run    *usecase.ValidationRun
}

func NewGMPHandler(logger *xlogger.Logger, run *usecase.ValidationRun) *GMPHandler {
	return &GMPHandler{logger: logger, run: run}
}

func (h *GMPHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/gmp", h.GetGMP)
	g.GET("/gmp/all", h.ListGMP)
	g.GET("/spikes", h.GetSpike)
	g.GET("/profitability", h.GetProfitability)
	g.GET("/sources/stats", h.SourceStats)
	g.GET("/ipos", h.ListIPOs)
	e.GET("/health", h.Health)
}

// GetGMP returns the current consensus for one IPO.
func (h *GMPHandler) GetGMP(c echo.Context) error {
	req := &models.GMPRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	window, err := time.ParseDuration(req.Window)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("window must be a duration like 6h"))
	}

	res, err := h.run.ValidateIPOWithin(c.Request().Context(), req.IPO, window, time.Now())
	if err != nil {
		h.logger.Error("gmp validate error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// ListGMP returns the consensus for every IPO active in the current window.
func (h *GMPHandler) ListGMP(c echo.Context) error {
	res, err := h.run.ValidateActive(c.Request().Context(), time.Now())
	if err != nil {
		h.logger.Error("gmp list error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].IPOKey < res[j].IPOKey })
	return xhttp.ListResponse(c, res, int64(len(res)))
}

// GetSpike re-runs spike detection for one IPO on demand.
func (h *GMPHandler) GetSpike(c echo.Context) error {
	req := &models.SpikeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	lookback, err := time.ParseDuration(req.Lookback)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("lookback must be a duration like 6h"))
	}

	ctx := c.Request().Context()
	now := time.Now()
	validated, err := h.run.ValidateIPO(ctx, req.IPO, now)
	if err != nil {
		h.logger.Error("spike validate error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	ev, err := h.run.DetectSpikeWith(ctx, validated, req.Threshold, lookback, now)
	if err != nil {
		h.logger.Error("spike detect error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"current": validated,
		"spike":   ev,
	})
}

// GetProfitability returns the listing-gain assessment for one registered IPO.
func (h *GMPHandler) GetProfitability(c echo.Context) error {
	req := &models.ProfitabilityRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	th := gmp.ProfitThresholds{
		MinProfitPercentage: req.MinPercent,
		MinAbsoluteProfit:   req.MinAbs,
	}
	res, err := h.run.Profitability(c.Request().Context(), req.IPO, th, time.Now())
	if err != nil {
		if _, ok := h.run.Lookup(req.IPO); !ok {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("ipo %q is not registered", req.IPO))
		}
		h.logger.Error("profitability error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// SourceStats returns per-source behaviour over the requested horizon.
func (h *GMPHandler) SourceStats(c echo.Context) error {
	req := &models.SourceStatsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	since := time.Now().AddDate(0, 0, -req.Days)
	stats, err := h.run.SourceStats(c.Request().Context(), since)
	if err != nil {
		h.logger.Error("source stats error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, stats, int64(len(stats)))
}

// ListIPOs returns the operator-registered reference records.
func (h *GMPHandler) ListIPOs(c echo.Context) error {
	ipos := h.run.IPOs()
	sort.Slice(ipos, func(i, j int) bool { return ipos[i].Key < ipos[j].Key })
	return xhttp.ListResponse(c, ipos, int64(len(ipos)))
}

// Health reports pipeline storage reachability.
func (h *GMPHandler) Health(c echo.Context) error {
	if err := h.run.Health(c.Request().Context()); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_UNHEALTHY", "", "storage unreachable", 503).WithError(err))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}
