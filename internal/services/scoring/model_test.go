package scoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CreditLens/internal/domain/models"
)

func testVersion() *models.ModelVersion {
	return &models.ModelVersion{
		ID:            1,
		Status:        models.StatusActive,
		TrainedAt:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		FeatureSchema: []string{"price_last", "sentiment_30d"},
		Weights:       []float64{-0.5, -1.2}, // negative weight: high value lowers distress
		Bias:          0.1,
		Means:         []float64{100, 0},
		Scales:        []float64{50, 0.5},
		Thresholds:    models.RiskThresholds{Low: 70, Medium: 40},
	}
}

func snap(values map[string]float64) models.FeatureSnapshot {
	s := models.FeatureSnapshot{IssuerID: "AAPL", Version: 1}
	for name, v := range values {
		s.Features = append(s.Features, models.FeatureValue{Name: name, Value: v})
	}
	return s
}

func TestScoreDeterministic(t *testing.T) {
	sc := NewLogisticScorer()
	v := testVersion()
	s := snap(map[string]float64{"price_last": 150, "sentiment_30d": -0.6})

	a, err := sc.Score(s, v)
	require.NoError(t, err)
	b, err := sc.Score(s, v)
	require.NoError(t, err)

	assert.Equal(t, a.Score, b.Score)
	assert.Equal(t, a.RiskLevel, b.RiskLevel)
	assert.Equal(t, a.Confidence, b.Confidence)
}

func TestScoreRangeAndConfidence(t *testing.T) {
	sc := NewLogisticScorer()
	v := testVersion()
	rec, err := sc.Score(snap(map[string]float64{"price_last": 150, "sentiment_30d": -0.6}), v)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, rec.Score, 0.0)
	assert.LessOrEqual(t, rec.Score, 100.0)
	assert.GreaterOrEqual(t, rec.Confidence, 0.5, "predicted-class probability is at least 0.5")
	assert.LessOrEqual(t, rec.Confidence, 1.0)
	assert.Equal(t, v.Thresholds.Bucket(rec.Score), rec.RiskLevel)
}

func TestScoreSchemaMismatch(t *testing.T) {
	sc := NewLogisticScorer()
	v := testVersion()

	// Snapshot missing sentiment_30d: hard error, no default substitution.
	_, err := sc.Score(snap(map[string]float64{"price_last": 150}), v)
	var mismatch *models.SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, []string{"sentiment_30d"}, mismatch.Missing)
	assert.Equal(t, uint64(1), mismatch.ModelVersion)
}

func TestScoreAcceptsSupersetSnapshots(t *testing.T) {
	sc := NewLogisticScorer()
	v := testVersion()

	s := snap(map[string]float64{"sentiment_30d": -0.6, "price_last": 150, "extra_feature": 9})
	rec, err := sc.Score(s, v)
	require.NoError(t, err)

	// Order comes from the model schema, not the snapshot layout.
	want, err := sc.Score(snap(map[string]float64{"price_last": 150, "sentiment_30d": -0.6}), v)
	require.NoError(t, err)
	assert.Equal(t, want.Score, rec.Score)
}

func TestScoreCarriesLowCoverageFlag(t *testing.T) {
	sc := NewLogisticScorer()
	v := testVersion()
	s := snap(map[string]float64{"price_last": 150, "sentiment_30d": 0})
	s.LowCoverage = true

	rec, err := sc.Score(s, v)
	require.NoError(t, err)
	assert.True(t, rec.LowCoverage)
}

func TestThresholdsComeFromVersionConfig(t *testing.T) {
	sc := NewLogisticScorer()
	v := testVersion()
	s := snap(map[string]float64{"price_last": 150, "sentiment_30d": 0.5})

	rec, err := sc.Score(s, v)
	require.NoError(t, err)

	// Move the cut-points: same score lands in a different bucket.
	strict := *v
	strict.Thresholds = models.RiskThresholds{Low: 99.9, Medium: 99.5}
	rec2, err := sc.Score(s, &strict)
	require.NoError(t, err)

	assert.Equal(t, rec.Score, rec2.Score)
	assert.NotEqual(t, rec.RiskLevel, rec2.RiskLevel)
}
