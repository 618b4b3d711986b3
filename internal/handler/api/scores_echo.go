package api

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	models "CreditLens/internal/domain/models"
	domrepo "CreditLens/internal/domain/repository"
	"CreditLens/internal/service/metrics"
	"CreditLens/internal/service/ratelimit"
	"CreditLens/internal/usecase"
	"CreditLens/pkg/cache"
	xhttp "CreditLens/pkg/http"
	xlogger "CreditLens/pkg/logger"
)

// ScoresEchoHandler exposes score computation and retrieval endpoints.
type ScoresEchoHandler struct {
	logger   *xlogger.Logger
	pipeline *usecase.ScorePipeline
	classes  *usecase.ClassScoreUseCase
	cache    cache.Service
	rl       *ratelimit.Limiter
}

func NewScoresEchoHandler(logger *xlogger.Logger, pipeline *usecase.ScorePipeline, classes *usecase.ClassScoreUseCase) *ScoresEchoHandler {
	metrics.Register()
	return &ScoresEchoHandler{logger: logger, pipeline: pipeline, classes: classes, rl: ratelimit.New()}
}

// SetCache enables read-side caching of latest scores.
func (h *ScoresEchoHandler) SetCache(c cache.Service) { h.cache = c }

func (h *ScoresEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/scores", h.Compute)
	g.GET("/scores/latest", h.Latest)
	g.GET("/scores/history", h.History)
}

// Compute runs the full snapshot -> score -> explanation pipeline. With
// granularity=asset_class the issuer field names a configured asset class and
// the response is the class aggregate.
func (h *ScoresEchoHandler) Compute(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.ScoringLatency.WithLabelValues("compute").Observe(time.Since(start).Seconds()) }()

	req := &models.ComputeScoreRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":compute", 5, 2) {
		h.logger.Warn("scores.compute rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.DataResponse(c, 429, "rate limited")
	}

	if domrepo.NormalizeGranularity(req.Granularity) == domrepo.GranAssetClass {
		res, err := h.classes.ClassScore(c.Request().Context(), req.IssuerID)
		if err != nil {
			h.logger.Error("scores.compute class error", xlogger.Error(err))
			return h.appError(c, err)
		}
		return xhttp.SuccessResponse(c, res)
	}

	asOf, err := parseAsOf(req.AsOf)
	if err != nil {
		return xhttp.BadRequestResponse(c, xhttp.BadRequestError("as_of must be RFC3339 or unix seconds"))
	}

	res, err := h.pipeline.ComputeScore(c.Request().Context(), req.IssuerID, asOf)
	if err != nil {
		h.logger.Error("scores.compute error", xlogger.String("issuer", req.IssuerID), xlogger.Error(err))
		return h.appError(c, err)
	}

	if h.cache != nil {
		_ = h.cache.Delete(c.Request().Context(), latestKey(req.IssuerID))
	}
	return xhttp.SuccessResponse(c, res)
}

// Latest serves the most recent persisted score, cached briefly.
func (h *ScoresEchoHandler) Latest(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.ScoringLatency.WithLabelValues("latest").Observe(time.Since(start).Seconds()) }()

	req := &models.LatestScoreRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	key := latestKey(req.IssuerID)
	if h.cache != nil {
		var cached models.ScoreBundle
		if err := h.cache.Get(c.Request().Context(), key, &cached); err == nil {
			return xhttp.SuccessResponse(c, cached)
		}
	}

	res, err := h.pipeline.LatestScore(c.Request().Context(), req.IssuerID)
	if err != nil {
		h.logger.Error("scores.latest error", xlogger.String("issuer", req.IssuerID), xlogger.Error(err))
		return h.appError(c, err)
	}

	if h.cache != nil {
		if err := h.cache.Set(c.Request().Context(), key, res, 15*time.Second); err != nil {
			h.logger.Warn("scores.latest cache_set_error", xlogger.Error(err))
		}
	}
	return xhttp.SuccessResponse(c, res)
}

// History serves persisted scores in a time window.
func (h *ScoresEchoHandler) History(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.ScoringLatency.WithLabelValues("history").Observe(time.Since(start).Seconds()) }()

	req := &models.ScoreHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	from, err := parseAsOf(req.From)
	if err != nil {
		return xhttp.BadRequestResponse(c, xhttp.BadRequestError("from must be RFC3339 or unix seconds"))
	}
	if req.From == "" {
		from = time.Time{}
	}
	to, err := parseAsOf(req.To)
	if err != nil {
		return xhttp.BadRequestResponse(c, xhttp.BadRequestError("to must be RFC3339 or unix seconds"))
	}

	recs, err := h.pipeline.ScoreHistory(c.Request().Context(), req.IssuerID, from, to, req.Limit)
	if err != nil {
		h.logger.Error("scores.history error", xlogger.String("issuer", req.IssuerID), xlogger.Error(err))
		return h.appError(c, err)
	}
	return xhttp.ListResponse(c, recs, int64(len(recs)))
}

func (h *ScoresEchoHandler) appError(c echo.Context, err error) error {
	metrics.ScoringErrors.WithLabelValues(c.Path()).Inc()
	return xhttp.AppErrorResponse(c, mapDomainError(err))
}

func latestKey(issuerID string) string {
	return cache.GenerateKey("scores:latest", issuerID)
}

// parseAsOf accepts RFC3339 or unix seconds; empty means now.
func parseAsOf(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	if t, ok := xhttp.ParseTime(s); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}
