package explain

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CreditLens/internal/domain/models"
	"CreditLens/internal/services/scoring"
)

func version() *models.ModelVersion {
	return &models.ModelVersion{
		ID:             3,
		FeatureSchema:  []string{"price_last", "sentiment_30d", "debt_to_equity"},
		Weights:        []float64{-0.4, -1.5, 0.9},
		Bias:           0.0,
		Means:          []float64{100, 0, 0.5},
		Scales:         []float64{50, 0.5, 0.3},
		ReferenceMeans: []float64{100, 0, 0.5},
		BaselineScore:  50,
		Thresholds:     models.RiskThresholds{Low: 70, Medium: 40},
	}
}

func snapshot(price, sentiment, dte float64) models.FeatureSnapshot {
	return models.FeatureSnapshot{
		IssuerID: "AAPL",
		Version:  9,
		AsOf:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Features: []models.FeatureValue{
			{Name: "price_last", Value: price},
			{Name: "sentiment_30d", Value: sentiment},
			{Name: "debt_to_equity", Value: dte},
		},
	}
}

func record(v *models.ModelVersion, s models.FeatureSnapshot, t *testing.T) models.ScoreRecord {
	t.Helper()
	rec, err := scoring.NewLogisticScorer().Score(s, v)
	require.NoError(t, err)
	return rec
}

func labels() map[string]string {
	return map[string]string{
		"price_last":     "latest share price",
		"sentiment_30d":  "recent news sentiment",
		"debt_to_equity": "debt-to-equity ratio",
	}
}

func TestAttributionsSumToScoreMinusBaseline(t *testing.T) {
	v := version()
	s := snapshot(150, -0.6, 0.8)
	rec := record(v, s, t)

	contribs, err := Attributions(s, v, rec.Score)
	require.NoError(t, err)

	sum := 0.0
	for _, c := range contribs {
		sum += c
	}
	delta := rec.Score - v.BaselineScore
	assert.InEpsilon(t, delta, sum, 1e-6)
}

func TestAttributionsAtBaselinePoint(t *testing.T) {
	v := version()
	s := snapshot(100, 0, 0.5) // exactly the reference population point
	rec := record(v, s, t)

	contribs, err := Attributions(s, v, rec.Score)
	require.NoError(t, err)

	sum := 0.0
	for _, c := range contribs {
		sum += c
	}
	assert.InDelta(t, rec.Score-v.BaselineScore, sum, 1e-9)
}

func TestExplainStability(t *testing.T) {
	g := NewGenerator(labels(), 5)
	v := version()
	s := snapshot(150, -0.6, 0.8)
	rec := record(v, s, t)

	a, err := g.Explain(s, v, rec)
	require.NoError(t, err)
	b, err := g.Explain(s, v, rec)
	require.NoError(t, err)

	assert.Equal(t, a, b, "identical triple must yield identical explanation")
}

func TestExplainRankingAndTopK(t *testing.T) {
	g := NewGenerator(labels(), 2)
	v := version()
	s := snapshot(150, -0.9, 1.4)
	rec := record(v, s, t)

	exp, err := g.Explain(s, v, rec)
	require.NoError(t, err)

	require.Len(t, exp.KeyFactors, 2)
	assert.GreaterOrEqual(t,
		math.Abs(exp.KeyFactors[0].Contribution),
		math.Abs(exp.KeyFactors[1].Contribution))
	assert.NotEmpty(t, exp.KeyFactors[0].Label)
}

func TestExplainRejectsMismatchedRecord(t *testing.T) {
	g := NewGenerator(labels(), 5)
	v := version()
	s := snapshot(150, -0.6, 0.8)
	rec := record(v, s, t)

	other := s
	other.Version = s.Version + 1 // different snapshot than the one scored
	_, err := g.Explain(other, v, rec)
	assert.ErrorIs(t, err, ErrIncoherentInputs)
}

func TestNarrativeMentionsLeadFactor(t *testing.T) {
	g := NewGenerator(labels(), 5)
	v := version()
	s := snapshot(150, -0.9, 0.5)
	rec := record(v, s, t)

	exp, err := g.Explain(s, v, rec)
	require.NoError(t, err)

	assert.True(t, strings.Contains(exp.Summary, exp.KeyFactors[0].Label),
		"summary %q must name the lead factor", exp.Summary)
	assert.Contains(t, exp.Summary, string(rec.RiskLevel))
}

func TestNarrativeLowCoverageCaveat(t *testing.T) {
	rec := models.ScoreRecord{IssuerID: "AAPL", Score: 55, RiskLevel: models.RiskMedium, LowCoverage: true}
	out := Narrative(rec, []models.KeyFactor{{Feature: "sentiment_30d", Label: "recent news sentiment", Contribution: -4.2}})
	assert.Contains(t, out, "Coverage is low")
}
