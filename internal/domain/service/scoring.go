package service

import (
	"context"
	"time"

	"CreditLens/internal/domain/models"
)

// SnapshotBuilder aggregates accepted observations into an immutable,
// versioned feature snapshot for one issuer.
type SnapshotBuilder interface {
	Build(ctx context.Context, issuerID string, asOf time.Time) (models.FeatureSnapshot, error)
}

// Scorer maps a feature snapshot to (score, risk level, confidence) using a
// specific model version.
type Scorer interface {
	Score(snapshot models.FeatureSnapshot, version *models.ModelVersion) (models.ScoreRecord, error)
}

// Explainer produces the per-feature attribution and narrative for one
// (snapshot, model, score record) triple.
type Explainer interface {
	Explain(snapshot models.FeatureSnapshot, version *models.ModelVersion, rec models.ScoreRecord) (models.Explanation, error)
}

// Coordinator owns the candidate -> validated/rejected -> active/retired model
// lifecycle.
type Coordinator interface {
	Submit(ctx context.Context, rows []models.TrainingRow) (*models.ModelVersion, error)
	Validate(ctx context.Context, candidateID uint64) (bool, error)
	Promote(candidateID uint64) error
	ActiveMetrics() (models.ActiveModelMetrics, error)
}
