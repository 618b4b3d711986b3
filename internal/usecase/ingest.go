package usecase

import (
	"context"
	"fmt"
	"time"

	"CreditLens/internal/domain/models"
	drepo "CreditLens/internal/domain/repository"
	"CreditLens/internal/services/normalize"
	"CreditLens/pkg/logger"
)

// IngestUseCase normalizes raw adapter payloads and appends the accepted
// observations to the structured store. Headline text rides along to the
// document store and never enters scoring.
type IngestUseCase struct {
	norm    *normalize.Normalizer
	store   drepo.ObservationStore
	docs    drepo.DocumentStore
	metrics drepo.Metrics
	log     *logger.Logger
}

func NewIngestUseCase(
	norm *normalize.Normalizer,
	store drepo.ObservationStore,
	docs drepo.DocumentStore,
	metrics drepo.Metrics,
	log *logger.Logger,
) *IngestUseCase {
	return &IngestUseCase{norm: norm, store: store, docs: docs, metrics: metrics, log: log}
}

// Ingest processes a batch with per-record isolation: a bad record is reported
// in the result and never blocks its neighbors. Only an infrastructure failure
// on the store fails the batch.
func (uc *IngestUseCase) Ingest(ctx context.Context, raws []models.RawObservation) (models.IngestResult, error) {
	now := time.Now()
	res := models.IngestResult{}

	accepted := make([]models.Observation, 0, len(raws))
	headlines := make([]models.RawObservation, 0)
	for i, raw := range raws {
		obs, err := uc.norm.Normalize(raw, now)
		if err != nil {
			uc.metrics.RecordError("ingest_reject")
			res.Rejected = append(res.Rejected, models.IngestError{Index: i, Reason: err.Error()})
			continue
		}
		accepted = append(accepted, obs)
		if obs.Source == models.SourceNewsSentiment && raw.Headline != "" {
			headlines = append(headlines, raw)
		}
	}

	if len(accepted) > 0 {
		if err := uc.store.Append(ctx, accepted...); err != nil {
			uc.metrics.RecordError("ingest_store")
			return models.IngestResult{}, fmt.Errorf("append observations: %w", err)
		}
	}
	for _, obs := range accepted {
		uc.metrics.RecordIngested(string(obs.Source))
	}
	res.Accepted = len(accepted)

	// Document-store writes are best effort: the structured observation is
	// already durable, the raw text is auxiliary.
	for _, h := range headlines {
		t := time.Unix(h.ObservedAt, 0)
		if h.ObservedAt > 1e11 {
			t = time.Unix(h.ObservedAt/1000, 0)
		}
		if err := uc.docs.PutHeadline(ctx, h.IssuerID, h.Headline, t.UTC()); err != nil {
			uc.metrics.RecordError("ingest_headline")
			uc.log.Warn("headline handoff failed",
				logger.String("issuer", h.IssuerID), logger.Error(err))
		}
	}

	if len(res.Rejected) > 0 {
		uc.log.Info("ingest batch completed with rejects",
			logger.Int("accepted", res.Accepted),
			logger.Int("rejected", len(res.Rejected)))
	}
	return res, nil
}
