package api

import (
	"time"

	"github.com/labstack/echo/v4"

	models "CreditLens/internal/domain/models"
	"CreditLens/internal/middleware"
	"CreditLens/internal/service/metrics"
	xhttp "CreditLens/pkg/http"
	xlogger "CreditLens/pkg/logger"
)

// ObservationsEchoHandler accepts observation batches from external adapters.
type ObservationsEchoHandler struct {
	logger   *xlogger.Logger
	pipeline *middleware.IngestPipeline
}

func NewObservationsEchoHandler(logger *xlogger.Logger, pipeline *middleware.IngestPipeline) *ObservationsEchoHandler {
	metrics.Register()
	return &ObservationsEchoHandler{logger: logger, pipeline: pipeline}
}

func (h *ObservationsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/observations", h.Ingest)
}

// Ingest normalizes and stores a batch. Per-record rejects come back in the
// result body with a 200: the batch itself succeeded.
func (h *ObservationsEchoHandler) Ingest(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.ScoringLatency.WithLabelValues("ingest").Observe(time.Since(start).Seconds()) }()

	req := &models.IngestObservationsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.pipeline.Process(c.Request().Context(), req.Observations)
	if err != nil {
		h.logger.Error("observations.ingest error", xlogger.Error(err))
		metrics.ScoringErrors.WithLabelValues("ingest").Inc()
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.SuccessResponse(c, res)
}
