package repository

import (
	"context"
	"time"

	"CreditLens/internal/domain/models"
)

// ObservationStore is the append-only structured store for accepted observations.
// Append must be idempotent on the observation identity.
type ObservationStore interface {
	Append(ctx context.Context, obs ...models.Observation) error
	// Range returns observations for one issuer and source/metric with
	// observed_at in (from, to], ordered by observed_at ascending then
	// ingested_at ascending.
	Range(ctx context.Context, issuerID string, source models.SourceKind, metric string, from, to time.Time) ([]models.Observation, error)
	// LastBefore returns the most recent observation at or before t, regardless
	// of window, for carry-forward imputation. ok=false when none exists.
	LastBefore(ctx context.Context, issuerID string, source models.SourceKind, metric string, t time.Time) (models.Observation, bool, error)
	Health(ctx context.Context) error
	Close() error
}

// SnapshotStore persists immutable feature snapshots.
type SnapshotStore interface {
	Append(ctx context.Context, snap models.FeatureSnapshot) error
	Latest(ctx context.Context, issuerID string) (models.FeatureSnapshot, bool, error)
	// LatestVersion returns the highest snapshot version stored for an issuer,
	// 0 when none. Used to seed the per-issuer version sequence.
	LatestVersion(ctx context.Context, issuerID string) (uint64, error)
	Close() error
}

// ScoreStore persists ScoreRecord+Explanation pairs. AppendScored must persist
// the pair as one unit: readers never see a record without its explanation.
type ScoreStore interface {
	AppendScored(ctx context.Context, rec models.ScoreRecord, exp models.Explanation) error
	Latest(ctx context.Context, issuerID string) (models.ScoreRecord, models.Explanation, bool, error)
	History(ctx context.Context, issuerID string, from, to time.Time, limit int) ([]models.ScoreRecord, error)
	Close() error
}

// DocumentStore is the boundary to the external document store that keeps raw
// unstructured payloads (news text). The core only hands payloads over.
type DocumentStore interface {
	PutHeadline(ctx context.Context, issuerID, headline string, observedAt time.Time) error
}

// ScorePublisher emits outbound score events to the messaging layer.
type ScorePublisher interface {
	Publish(ctx context.Context, bundle models.ScoreBundle) error
	Close() error
}

// Metrics records operational metrics for the pipeline.
type Metrics interface {
	RecordScore(issuerID string, score float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordIngested(source string)
}
