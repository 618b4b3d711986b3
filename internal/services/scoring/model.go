// Package scoring maps feature snapshots to calibrated creditworthiness
// scores and owns the model-version registry.
package scoring

import (
	"math"
	"time"

	"CreditLens/internal/domain/models"
	domsvc "CreditLens/internal/domain/service"
)

// LogisticScorer scores snapshots with a logistic-regression model version.
// Stateless and deterministic: the same snapshot and version always produce
// the same (score, risk level, confidence) triple.
type LogisticScorer struct{}

func NewLogisticScorer() *LogisticScorer { return &LogisticScorer{} }

// Score computes a ScoreRecord from one snapshot and one model version. The
// snapshot's feature set must be a superset of the model's schema; a missing
// feature is a hard SchemaMismatchError, never a silent default.
func (s *LogisticScorer) Score(snapshot models.FeatureSnapshot, version *models.ModelVersion) (models.ScoreRecord, error) {
	x, err := Vector(snapshot, version)
	if err != nil {
		return models.ScoreRecord{}, err
	}

	p := Sigmoid(Margin(version, x))
	score := (1 - p) * 100

	return models.ScoreRecord{
		IssuerID:        snapshot.IssuerID,
		ModelVersionID:  version.ID,
		SnapshotVersion: snapshot.Version,
		Score:           score,
		RiskLevel:       version.Thresholds.Bucket(score),
		Confidence:      math.Max(p, 1-p),
		LowCoverage:     snapshot.LowCoverage,
	}, nil
}

// Vector extracts the snapshot's values in the exact order of the model's
// feature schema. Order comes from the model, never from the snapshot.
func Vector(snapshot models.FeatureSnapshot, version *models.ModelVersion) ([]float64, error) {
	x := make([]float64, len(version.FeatureSchema))
	var missing []string
	for i, name := range version.FeatureSchema {
		v, ok := snapshot.Value(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		x[i] = v
	}
	if len(missing) > 0 {
		return nil, &models.SchemaMismatchError{
			IssuerID:     snapshot.IssuerID,
			ModelVersion: version.ID,
			Missing:      missing,
		}
	}
	return x, nil
}

// Sigmoid is the logistic link.
func Sigmoid(m float64) float64 { return 1 / (1 + math.Exp(-m)) }

// Margin computes the logit for a raw feature vector under a model version.
func Margin(v *models.ModelVersion, x []float64) float64 {
	m := v.Bias
	for i, w := range v.Weights {
		m += w * standardize(x[i], v.Means[i], v.Scales[i])
	}
	return m
}

func standardize(x, mean, scale float64) float64 {
	if scale <= 0 {
		return 0
	}
	return (x - mean) / scale
}

// Stamp fills the computed_at field; kept out of Score so scoring itself stays
// free of wall-clock reads.
func Stamp(rec models.ScoreRecord, now time.Time) models.ScoreRecord {
	rec.ComputedAt = now.UTC()
	return rec
}

var _ domsvc.Scorer = (*LogisticScorer)(nil)
