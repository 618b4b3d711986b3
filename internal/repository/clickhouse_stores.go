package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"CreditLens/internal/domain/models"
	domrepo "CreditLens/internal/domain/repository"
	pkgch "CreditLens/pkg/clickhouse"
	applogger "CreditLens/pkg/logger"
)

// SchemaStatements returns idempotent DDL for all ClickHouse tables.
// Observations dedupe on their logical identity via ReplacingMergeTree, which
// is what makes Append idempotent at the storage layer.
func SchemaStatements(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.observations (
			issuer_id   String,
			source      String,
			metric      String,
			value       Float64,
			observed_at DateTime64(3, 'UTC'),
			ingested_at DateTime64(3, 'UTC')
		) ENGINE = ReplacingMergeTree(ingested_at)
		ORDER BY (issuer_id, source, metric, observed_at)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.feature_snapshots (
			issuer_id    String,
			version      UInt64,
			as_of        DateTime64(3, 'UTC'),
			features     String,
			provenance   String,
			low_coverage UInt8
		) ENGINE = MergeTree
		ORDER BY (issuer_id, version)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.scores (
			issuer_id        String,
			model_version    UInt64,
			snapshot_version UInt64,
			score            Float64,
			risk_level       String,
			confidence       Float64,
			low_coverage     UInt8,
			computed_at      DateTime64(3, 'UTC'),
			explanation      String
		) ENGINE = MergeTree
		ORDER BY (issuer_id, computed_at)`, database),
	}
}

// CHObservationStore implements ObservationStore backed by ClickHouse.
type CHObservationStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHObservationStore(ch *pkgch.Client) *CHObservationStore {
	return &CHObservationStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHObservationStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHObservationStore) Append(ctx context.Context, obs ...models.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	values := make([]string, 0, len(obs))
	args := make([]interface{}, 0, len(obs)*6)
	for _, o := range obs {
		values = append(values, "(?, ?, ?, ?, ?, ?)")
		args = append(args, o.IssuerID, string(o.Source), o.Metric, o.Value, o.ObservedAt, o.IngestedAt)
	}
	q := "INSERT INTO observations (issuer_id, source, metric, value, observed_at, ingested_at) VALUES " +
		strings.Join(values, ",")
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse append_observations error",
				applogger.Int("rows", len(obs)), applogger.Error(err))
		}
		return fmt.Errorf("append observations: %w", err)
	}
	return nil
}

func (s *CHObservationStore) Range(ctx context.Context, issuerID string, source models.SourceKind, metric string, from, to time.Time) ([]models.Observation, error) {
	const q = `
        SELECT issuer_id, source, metric, value, observed_at, ingested_at
        FROM observations FINAL
        WHERE issuer_id = ? AND source = ? AND metric = ?
          AND observed_at > ? AND observed_at <= ?
        ORDER BY observed_at ASC, ingested_at ASC
    `
	rows, err := s.db.QueryContext(ctx, q, issuerID, string(source), metric, from, to)
	if err != nil {
		return nil, fmt.Errorf("range observations: %w", err)
	}
	defer rows.Close()

	out := make([]models.Observation, 0, 256)
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHObservationStore) LastBefore(ctx context.Context, issuerID string, source models.SourceKind, metric string, t time.Time) (models.Observation, bool, error) {
	const q = `
        SELECT issuer_id, source, metric, value, observed_at, ingested_at
        FROM observations FINAL
        WHERE issuer_id = ? AND source = ? AND metric = ? AND observed_at <= ?
        ORDER BY observed_at DESC, ingested_at DESC
        LIMIT 1
    `
	rows, err := s.db.QueryContext(ctx, q, issuerID, string(source), metric, t)
	if err != nil {
		return models.Observation{}, false, fmt.Errorf("last observation: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return models.Observation{}, false, rows.Err()
	}
	o, err := scanObservation(rows)
	if err != nil {
		return models.Observation{}, false, err
	}
	return o, true, rows.Err()
}

func (s *CHObservationStore) Health(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *CHObservationStore) Close() error                     { return nil } // pool owned by pkg client

func scanObservation(rows *sql.Rows) (models.Observation, error) {
	var o models.Observation
	var source string
	if err := rows.Scan(&o.IssuerID, &source, &o.Metric, &o.Value, &o.ObservedAt, &o.IngestedAt); err != nil {
		return models.Observation{}, fmt.Errorf("scan observation: %w", err)
	}
	o.Source = models.SourceKind(source)
	return o, nil
}

// CHSnapshotStore implements SnapshotStore backed by ClickHouse. Features and
// provenance are stored as JSON columns; snapshots are immutable so there is
// no update path.
type CHSnapshotStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHSnapshotStore(ch *pkgch.Client) *CHSnapshotStore {
	return &CHSnapshotStore{db: ch.DB()}
}

func (s *CHSnapshotStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHSnapshotStore) Append(ctx context.Context, snap models.FeatureSnapshot) error {
	features, err := json.Marshal(snap.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	provenance, err := json.Marshal(snap.Provenance)
	if err != nil {
		return fmt.Errorf("marshal provenance: %w", err)
	}
	const q = `INSERT INTO feature_snapshots
        (issuer_id, version, as_of, features, provenance, low_coverage)
        VALUES (?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		snap.IssuerID, snap.Version, snap.AsOf, string(features), string(provenance), boolToUInt8(snap.LowCoverage))
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse append_snapshot error",
				applogger.String("issuer", snap.IssuerID),
				applogger.Uint64("version", snap.Version),
				applogger.Error(err))
		}
		return fmt.Errorf("append snapshot: %w", err)
	}
	return nil
}

func (s *CHSnapshotStore) Latest(ctx context.Context, issuerID string) (models.FeatureSnapshot, bool, error) {
	const q = `
        SELECT issuer_id, version, as_of, features, provenance, low_coverage
        FROM feature_snapshots
        WHERE issuer_id = ?
        ORDER BY version DESC
        LIMIT 1
    `
	rows, err := s.db.QueryContext(ctx, q, issuerID)
	if err != nil {
		return models.FeatureSnapshot{}, false, fmt.Errorf("latest snapshot: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return models.FeatureSnapshot{}, false, rows.Err()
	}
	snap, err := scanSnapshot(rows)
	if err != nil {
		return models.FeatureSnapshot{}, false, err
	}
	return snap, true, rows.Err()
}

func (s *CHSnapshotStore) LatestVersion(ctx context.Context, issuerID string) (uint64, error) {
	const q = `SELECT max(version) FROM feature_snapshots WHERE issuer_id = ?`
	var v uint64
	if err := s.db.QueryRowContext(ctx, q, issuerID).Scan(&v); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("latest snapshot version: %w", err)
	}
	return v, nil
}

func (s *CHSnapshotStore) Close() error { return nil }

func scanSnapshot(rows *sql.Rows) (models.FeatureSnapshot, error) {
	var snap models.FeatureSnapshot
	var features, provenance string
	var lowCoverage uint8
	if err := rows.Scan(&snap.IssuerID, &snap.Version, &snap.AsOf, &features, &provenance, &lowCoverage); err != nil {
		return models.FeatureSnapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(features), &snap.Features); err != nil {
		return models.FeatureSnapshot{}, fmt.Errorf("unmarshal features: %w", err)
	}
	if provenance != "" {
		if err := json.Unmarshal([]byte(provenance), &snap.Provenance); err != nil {
			return models.FeatureSnapshot{}, fmt.Errorf("unmarshal provenance: %w", err)
		}
	}
	snap.LowCoverage = lowCoverage != 0
	return snap, nil
}

// CHScoreStore implements ScoreStore backed by ClickHouse. The explanation is
// a JSON column on the score row itself, so the record+explanation pair is a
// single insert and readers can never observe one without the other.
type CHScoreStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHScoreStore(ch *pkgch.Client) *CHScoreStore {
	return &CHScoreStore{db: ch.DB()}
}

func (s *CHScoreStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHScoreStore) AppendScored(ctx context.Context, rec models.ScoreRecord, exp models.Explanation) error {
	explanation, err := json.Marshal(exp)
	if err != nil {
		return fmt.Errorf("marshal explanation: %w", err)
	}
	const q = `INSERT INTO scores
        (issuer_id, model_version, snapshot_version, score, risk_level, confidence, low_coverage, computed_at, explanation)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		rec.IssuerID, rec.ModelVersionID, rec.SnapshotVersion, rec.Score,
		string(rec.RiskLevel), rec.Confidence, boolToUInt8(rec.LowCoverage),
		rec.ComputedAt, string(explanation))
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse append_score error",
				applogger.String("issuer", rec.IssuerID), applogger.Error(err))
		}
		return fmt.Errorf("append score: %w", err)
	}
	return nil
}

func (s *CHScoreStore) Latest(ctx context.Context, issuerID string) (models.ScoreRecord, models.Explanation, bool, error) {
	const q = `
        SELECT issuer_id, model_version, snapshot_version, score, risk_level, confidence, low_coverage, computed_at, explanation
        FROM scores
        WHERE issuer_id = ?
        ORDER BY computed_at DESC
        LIMIT 1
    `
	rows, err := s.db.QueryContext(ctx, q, issuerID)
	if err != nil {
		return models.ScoreRecord{}, models.Explanation{}, false, fmt.Errorf("latest score: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return models.ScoreRecord{}, models.Explanation{}, false, rows.Err()
	}
	rec, exp, err := scanScored(rows)
	if err != nil {
		return models.ScoreRecord{}, models.Explanation{}, false, err
	}
	return rec, exp, true, rows.Err()
}

func (s *CHScoreStore) History(ctx context.Context, issuerID string, from, to time.Time, limit int) ([]models.ScoreRecord, error) {
	const q = `
        SELECT issuer_id, model_version, snapshot_version, score, risk_level, confidence, low_coverage, computed_at, explanation
        FROM scores
        WHERE issuer_id = ? AND computed_at >= ? AND computed_at <= ?
        ORDER BY computed_at ASC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, issuerID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("score history: %w", err)
	}
	defer rows.Close()

	out := make([]models.ScoreRecord, 0, limit)
	for rows.Next() {
		rec, _, err := scanScored(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHScoreStore) Close() error { return nil }

func scanScored(rows *sql.Rows) (models.ScoreRecord, models.Explanation, error) {
	var rec models.ScoreRecord
	var exp models.Explanation
	var riskLevel, explanation string
	var lowCoverage uint8
	if err := rows.Scan(&rec.IssuerID, &rec.ModelVersionID, &rec.SnapshotVersion, &rec.Score,
		&riskLevel, &rec.Confidence, &lowCoverage, &rec.ComputedAt, &explanation); err != nil {
		return rec, exp, fmt.Errorf("scan score: %w", err)
	}
	rec.RiskLevel = models.RiskLevel(riskLevel)
	rec.LowCoverage = lowCoverage != 0
	if err := json.Unmarshal([]byte(explanation), &exp); err != nil {
		return rec, exp, fmt.Errorf("unmarshal explanation: %w", err)
	}
	return rec, exp, nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

var (
	_ domrepo.ObservationStore = (*CHObservationStore)(nil)
	_ domrepo.SnapshotStore    = (*CHSnapshotStore)(nil)
	_ domrepo.ScoreStore       = (*CHScoreStore)(nil)
)
