package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CreditLens/internal/domain/models"
	domsvc "CreditLens/internal/domain/service"
	"CreditLens/pkg/logger"
	"CreditLens/pkg/queue"
)

// RetrainMessageType is the queue message type for retraining requests.
const RetrainMessageType = "model.retrain"

// RetrainPayload is the queued retraining request.
type RetrainPayload struct {
	Rows []models.TrainingRow `json:"rows"`
	// AutoPromote promotes the candidate immediately when validation passes.
	// Without it the candidate waits for an explicit promote call.
	AutoPromote bool `json:"auto_promote"`
}

// RetrainJob runs queued retraining in the background so scoring requests are
// never blocked by a training run.
type RetrainJob struct {
	coordinator domsvc.Coordinator
	log         *logger.Logger
}

func NewRetrainJob(coordinator domsvc.Coordinator, log *logger.Logger) *RetrainJob {
	return &RetrainJob{coordinator: coordinator, log: log}
}

func (j *RetrainJob) Name() string { return "retrain-model" }
func (j *RetrainJob) Type() string { return RetrainMessageType }

func (j *RetrainJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[RetrainPayload](payload)
	if err != nil {
		return fmt.Errorf("parse retrain payload: %w", err)
	}

	cand, err := j.coordinator.Submit(ctx, p.Rows)
	if err != nil {
		return fmt.Errorf("train candidate: %w", err)
	}

	ok, err := j.coordinator.Validate(ctx, cand.ID)
	if err != nil {
		return fmt.Errorf("validate candidate %d: %w", cand.ID, err)
	}
	if !ok {
		j.log.Warn("retrain candidate rejected", logger.Uint64("model_version", cand.ID))
		return nil
	}
	if !p.AutoPromote {
		j.log.Info("retrain candidate validated, awaiting promotion",
			logger.Uint64("model_version", cand.ID))
		return nil
	}

	return j.promoteWithRetry(ctx, cand.ID)
}

// promoteWithRetry retries promotion conflicts a few times; a conflict means
// another promotion was mid-flight, not that this candidate is unfit.
func (j *RetrainJob) promoteWithRetry(ctx context.Context, id uint64) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if err = j.coordinator.Promote(id); err == nil {
			return nil
		}
		if !errors.Is(err, models.ErrPromotionConflict) {
			return fmt.Errorf("promote candidate %d: %w", id, err)
		}
		select {
		case <-time.After(50 * time.Millisecond << uint(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("promote candidate %d: %w", id, err)
}

var _ queue.Job = (*RetrainJob)(nil)
