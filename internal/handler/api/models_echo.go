package api

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	models "CreditLens/internal/domain/models"
	domsvc "CreditLens/internal/domain/service"
	"CreditLens/internal/service/metrics"
	"CreditLens/internal/usecase"
	xhttp "CreditLens/pkg/http"
	xlogger "CreditLens/pkg/logger"
	"CreditLens/pkg/queue"
)

// ModelsEchoHandler drives the model lifecycle over HTTP: submit a training
// set, validate the candidate, promote it, inspect the active model.
type ModelsEchoHandler struct {
	logger      *xlogger.Logger
	coordinator domsvc.Coordinator
	queue       queue.QueueService
}

func NewModelsEchoHandler(logger *xlogger.Logger, coordinator domsvc.Coordinator, q queue.QueueService) *ModelsEchoHandler {
	metrics.Register()
	return &ModelsEchoHandler{logger: logger, coordinator: coordinator, queue: q}
}

func (h *ModelsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/models")
	g.POST("/submit", h.Submit)
	g.POST("/retrain", h.Retrain)
	g.POST("/:id/validate", h.Validate)
	g.POST("/:id/promote", h.Promote)
	g.GET("/active", h.Active)
}

// Submit trains a candidate synchronously and returns it. The candidate does
// not affect live scoring until validated and promoted.
func (h *ModelsEchoHandler) Submit(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.ScoringLatency.WithLabelValues("model_submit").Observe(time.Since(start).Seconds()) }()

	req := &models.SubmitModelRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	cand, err := h.coordinator.Submit(c.Request().Context(), req.Rows)
	if err != nil {
		h.logger.Error("models.submit error", xlogger.Error(err))
		metrics.ScoringErrors.WithLabelValues("model_submit").Inc()
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.CreatedResponse(c, cand)
}

// Retrain enqueues a background training run instead of blocking the request.
func (h *ModelsEchoHandler) Retrain(c echo.Context) error {
	req := &models.SubmitModelRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if h.queue == nil {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_QUEUE_DISABLED", "", "retrain queue is not configured", 503))
	}

	payload := usecase.RetrainPayload{Rows: req.Rows, AutoPromote: true}
	if err := h.queue.PublishMessage(c.Request().Context(), usecase.RetrainMessageType, payload); err != nil {
		h.logger.Error("models.retrain enqueue error", xlogger.Error(err))
		metrics.ScoringErrors.WithLabelValues("model_retrain").Inc()
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.DataResponse(c, 202, map[string]any{"queued": true, "rows": len(req.Rows)})
}

func (h *ModelsEchoHandler) Validate(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return xhttp.BadRequestResponse(c, xhttp.BadRequestError("id must be a model version number"))
	}

	ok, err := h.coordinator.Validate(c.Request().Context(), id)
	if err != nil {
		h.logger.Error("models.validate error", xlogger.Uint64("model_version", id), xlogger.Error(err))
		metrics.ScoringErrors.WithLabelValues("model_validate").Inc()
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.SuccessResponse(c, map[string]any{"model_version": id, "validated": ok})
}

func (h *ModelsEchoHandler) Promote(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return xhttp.BadRequestResponse(c, xhttp.BadRequestError("id must be a model version number"))
	}

	if err := h.coordinator.Promote(id); err != nil {
		h.logger.Error("models.promote error", xlogger.Uint64("model_version", id), xlogger.Error(err))
		metrics.ScoringErrors.WithLabelValues("model_promote").Inc()
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	h.logger.Info("model promoted via api", xlogger.Uint64("model_version", id))
	return xhttp.SuccessResponse(c, map[string]any{"model_version": id, "promoted": true})
}

// Active exposes the active model's holdout metrics.
func (h *ModelsEchoHandler) Active(c echo.Context) error {
	m, err := h.coordinator.ActiveMetrics()
	if err != nil {
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.SuccessResponse(c, m)
}
