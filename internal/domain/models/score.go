package models

import "time"

// RiskLevel is the coarse risk bucket derived from a score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ScoreRecord is one computed creditworthiness score. Immutable; uniquely keyed
// by (IssuerID, SnapshotVersion, ModelVersionID) — recomputation with the same
// inputs yields a bit-identical record.
type ScoreRecord struct {
	IssuerID        string    `json:"issuer_id"`
	ModelVersionID  uint64    `json:"model_version_id"`
	SnapshotVersion uint64    `json:"snapshot_version"`
	Score           float64   `json:"score"` // 0..100, higher is safer
	RiskLevel       RiskLevel `json:"risk_level"`
	Confidence      float64   `json:"confidence"` // 0..1 calibrated
	LowCoverage     bool      `json:"low_coverage"`
	ComputedAt      time.Time `json:"computed_at"`
}

// KeyFactor is one ranked entry of an explanation.
type KeyFactor struct {
	Feature      string  `json:"feature"`
	Label        string  `json:"label"`
	Contribution float64 `json:"contribution"` // signed, score points
}

// Explanation is the feature-level account of one ScoreRecord. It is always
// derived from the exact snapshot and model version that produced the score.
type Explanation struct {
	IssuerID        string      `json:"issuer_id"`
	ModelVersionID  uint64      `json:"model_version_id"`
	SnapshotVersion uint64      `json:"snapshot_version"`
	KeyFactors      []KeyFactor `json:"key_factors"` // ranked by |contribution|
	Summary         string      `json:"summary"`
	BaselineScore   float64     `json:"baseline_score"`
}

// ScoreBundle is the outbound score+explanation pair consumed by the dashboard
// layer and published on the score events topic.
type ScoreBundle struct {
	IssuerID        string      `json:"issuer_id"`
	Score           float64     `json:"score"`
	RiskLevel       RiskLevel   `json:"risk_level"`
	Confidence      float64     `json:"confidence"`
	Explanation     string      `json:"explanation"`
	KeyFactors      []KeyFactor `json:"key_factors"`
	LowCoverage     bool        `json:"low_coverage"`
	ModelVersion    uint64      `json:"model_version"`
	SnapshotVersion uint64      `json:"snapshot_version"`
	ComputedAt      time.Time   `json:"computed_at"`
}

// Bundle combines a record and its explanation into the outbound shape.
func Bundle(rec ScoreRecord, exp Explanation) ScoreBundle {
	return ScoreBundle{
		IssuerID:        rec.IssuerID,
		Score:           rec.Score,
		RiskLevel:       rec.RiskLevel,
		Confidence:      rec.Confidence,
		Explanation:     exp.Summary,
		KeyFactors:      exp.KeyFactors,
		LowCoverage:     rec.LowCoverage,
		ModelVersion:    rec.ModelVersionID,
		SnapshotVersion: rec.SnapshotVersion,
		ComputedAt:      rec.ComputedAt,
	}
}

// ClassScore is an asset-class level aggregate of member issuer scores.
type ClassScore struct {
	AssetClass string      `json:"asset_class"`
	Score      float64     `json:"score"`
	RiskLevel  RiskLevel   `json:"risk_level"`
	Confidence float64     `json:"confidence"` // min over members
	Members    []string    `json:"members"`
	KeyFactors []KeyFactor `json:"key_factors"`
	ComputedAt time.Time   `json:"computed_at"`
}
