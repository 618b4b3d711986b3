package usecase

import (
	"context"
	"fmt"
	"time"

	"CreditLens/internal/domain/models"
	drepo "CreditLens/internal/domain/repository"
	domsvc "CreditLens/internal/domain/service"
	"CreditLens/internal/services/scoring"
	"CreditLens/pkg/logger"
)

// ScorePipeline runs the snapshot -> score -> explanation unit for one issuer.
// A score is never persisted without its explanation; if any stage fails the
// whole computation fails and nothing is written.
type ScorePipeline struct {
	builder   domsvc.SnapshotBuilder
	scorer    domsvc.Scorer
	explainer domsvc.Explainer
	registry  *scoring.Registry
	scores    drepo.ScoreStore
	pub       drepo.ScorePublisher
	metrics   drepo.Metrics
	log       *logger.Logger
}

func NewScorePipeline(
	builder domsvc.SnapshotBuilder,
	scorer domsvc.Scorer,
	explainer domsvc.Explainer,
	registry *scoring.Registry,
	scores drepo.ScoreStore,
	pub drepo.ScorePublisher,
	metrics drepo.Metrics,
	log *logger.Logger,
) *ScorePipeline {
	return &ScorePipeline{
		builder:   builder,
		scorer:    scorer,
		explainer: explainer,
		registry:  registry,
		scores:    scores,
		pub:       pub,
		metrics:   metrics,
		log:       log,
	}
}

// ComputeScore builds a fresh snapshot as of the given time, scores it with
// the active model, explains it, persists the pair and publishes the bundle.
func (p *ScorePipeline) ComputeScore(ctx context.Context, issuerID string, asOf time.Time) (models.ScoreBundle, error) {
	start := time.Now()

	version, err := p.registry.Active()
	if err != nil {
		p.metrics.RecordError("score_no_active_model")
		return models.ScoreBundle{}, err
	}

	snap, err := p.builder.Build(ctx, issuerID, asOf)
	if err != nil {
		p.metrics.RecordError("score_snapshot")
		return models.ScoreBundle{}, fmt.Errorf("build snapshot: %w", err)
	}

	rec, err := p.scorer.Score(snap, version)
	if err != nil {
		p.metrics.RecordError("score_model")
		return models.ScoreBundle{}, fmt.Errorf("score snapshot: %w", err)
	}
	rec = scoring.Stamp(rec, time.Now())

	exp, err := p.explainer.Explain(snap, version, rec)
	if err != nil {
		p.metrics.RecordError("score_explain")
		return models.ScoreBundle{}, fmt.Errorf("explain score: %w", err)
	}

	if err := p.scores.AppendScored(ctx, rec, exp); err != nil {
		p.metrics.RecordError("score_store")
		return models.ScoreBundle{}, fmt.Errorf("persist score: %w", err)
	}

	bundle := models.Bundle(rec, exp)

	// The persisted pair is the source of truth; a publish failure is logged
	// and surfaced as a metric, not as a request error.
	if err := p.pub.Publish(ctx, bundle); err != nil {
		p.metrics.RecordError("score_publish")
		p.log.Warn("score event publish failed",
			logger.String("issuer", issuerID), logger.Error(err))
	}

	p.metrics.RecordScore(issuerID, rec.Score)
	p.metrics.RecordLatency("score_pipeline", time.Since(start).Seconds())
	p.log.Info("score computed",
		logger.String("issuer", issuerID),
		logger.Uint64("model_version", rec.ModelVersionID),
		logger.Uint64("snapshot_version", rec.SnapshotVersion),
		logger.Any("score", rec.Score),
		logger.String("risk_level", string(rec.RiskLevel)))
	return bundle, nil
}

// LatestScore returns the most recent persisted score+explanation for an issuer.
func (p *ScorePipeline) LatestScore(ctx context.Context, issuerID string) (models.ScoreBundle, error) {
	rec, exp, ok, err := p.scores.Latest(ctx, issuerID)
	if err != nil {
		return models.ScoreBundle{}, fmt.Errorf("load latest score: %w", err)
	}
	if !ok {
		return models.ScoreBundle{}, models.ErrIssuerNotFound
	}
	return models.Bundle(rec, exp), nil
}

// ScoreHistory returns persisted scores for an issuer in (from, to], newest last.
func (p *ScorePipeline) ScoreHistory(ctx context.Context, issuerID string, from, to time.Time, limit int) ([]models.ScoreRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	recs, err := p.scores.History(ctx, issuerID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("load score history: %w", err)
	}
	return recs, nil
}
