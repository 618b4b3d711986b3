package models

import "time"

// ModelStatus is the lifecycle state of a model version.
// candidate -> (validated | rejected) -> (active | retired)
type ModelStatus string

const (
	StatusCandidate ModelStatus = "candidate"
	StatusValidated ModelStatus = "validated"
	StatusRejected  ModelStatus = "rejected"
	StatusActive    ModelStatus = "active"
	StatusRetired   ModelStatus = "retired"
)

// HoldoutMetrics are the quality and explanation-stability metrics computed on
// the holdout set when a candidate is trained and validated.
type HoldoutMetrics struct {
	Accuracy float64 `json:"accuracy"`
	F1       float64 `json:"f1_score"`
	AUC      float64 `json:"auc_roc"`
	// AttributionConsistency measures how closely the candidate's per-feature
	// attributions track the active model's over a fixed evaluation set.
	AttributionConsistency float64 `json:"shap_consistency"`
	// ImportanceStability is the rank correlation of top-K feature importances
	// between candidate and active model.
	ImportanceStability float64 `json:"feature_importance_stability"`
}

// RiskThresholds are the score cut-points for risk buckets. They belong to the
// model version, not to code, so each retraining may move them.
type RiskThresholds struct {
	Low    float64 `json:"low"`    // score >= Low    -> low risk
	Medium float64 `json:"medium"` // score >= Medium -> medium risk, else high
}

// Bucket maps a score to its risk level.
func (t RiskThresholds) Bucket(score float64) RiskLevel {
	switch {
	case score >= t.Low:
		return RiskLow
	case score >= t.Medium:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// ModelVersion is one trained scoring model. Weights and schema are fixed at
// training time; Status is the only mutable field and is owned by the registry.
type ModelVersion struct {
	ID        uint64      `json:"version_id"` // monotonic
	Status    ModelStatus `json:"status"`
	TrainedAt time.Time   `json:"trained_at"`

	// FeatureSchema is the exact ordered list of feature names the model expects.
	FeatureSchema []string `json:"feature_schema"`

	// Logistic-regression parameters over standardized features.
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Means   []float64 `json:"means"`  // standardization means, schema order
	Scales  []float64 `json:"scales"` // standardization scales, schema order

	// BaselineScore is the expected score over the training reference
	// population; attribution explains score relative to it.
	BaselineScore float64 `json:"baseline_score"`
	// ReferenceMeans are raw feature means of the reference population, used as
	// the attribution baseline point.
	ReferenceMeans []float64 `json:"reference_means"`

	Thresholds RiskThresholds `json:"thresholds"`
	Metrics    HoldoutMetrics `json:"holdout_metrics"`
}

// ActiveModelMetrics is the observability shape exposed for the active model.
type ActiveModelMetrics struct {
	ModelVersion               uint64  `json:"model_version"`
	Accuracy                   float64 `json:"accuracy"`
	F1Score                    float64 `json:"f1_score"`
	AUCROC                     float64 `json:"auc_roc"`
	SHAPConsistency            float64 `json:"shap_consistency"`
	FeatureImportanceStability float64 `json:"feature_importance_stability"`
}
