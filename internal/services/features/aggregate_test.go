package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CreditLens/internal/domain/models"
)

func obsAt(t0 time.Time, offset time.Duration, v float64) models.Observation {
	ts := t0.Add(offset)
	return models.Observation{
		IssuerID:   "AAPL",
		Source:     models.SourceMarket,
		Metric:     "price",
		Value:      v,
		ObservedAt: ts,
		IngestedAt: ts,
	}
}

func TestLatestEmptyWindow(t *testing.T) {
	_, ok := Latest(nil)
	assert.False(t, ok)
}

func TestLatestTakesLastElement(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	obs := []models.Observation{
		obsAt(t0, 0, 100),
		obsAt(t0, time.Hour, 101),
		obsAt(t0, 2*time.Hour, 99),
	}
	got, ok := Latest(obs)
	require.True(t, ok)
	assert.Equal(t, 99.0, got.Value)
}

func TestMean(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	obs := []models.Observation{obsAt(t0, 0, -0.4), obsAt(t0, time.Hour, -0.8)}
	got, ok := Mean(obs)
	require.True(t, ok)
	assert.InDelta(t, -0.6, got, 1e-12)
}

func TestRateOfChange(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	obs := []models.Observation{obsAt(t0, 0, 100), obsAt(t0, time.Hour, 110)}
	got, ok := RateOfChange(obs)
	require.True(t, ok)
	assert.InDelta(t, 0.1, got, 1e-12)

	_, ok = RateOfChange(obs[:1])
	assert.False(t, ok)

	zero := []models.Observation{obsAt(t0, 0, 0), obsAt(t0, time.Hour, 5)}
	_, ok = RateOfChange(zero)
	assert.False(t, ok, "non-positive base must not produce a ratio")
}

func TestLogReturnVolConstantSeries(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	obs := []models.Observation{
		obsAt(t0, 0, 50), obsAt(t0, time.Hour, 50), obsAt(t0, 2*time.Hour, 50),
	}
	got, ok := LogReturnVol(obs)
	require.True(t, ok)
	assert.Equal(t, 0.0, got)
}

func TestLogLast(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	obs := []models.Observation{obsAt(t0, 0, math.E)}
	got, ok := LogLast(obs)
	require.True(t, ok)
	assert.InDelta(t, 1.0, got, 1e-12)
}

func TestApplyDispatch(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	obs := []models.Observation{obsAt(t0, 0, 100), obsAt(t0, time.Hour, 110)}

	v, ok := Apply(Spec{Agg: AggLast}, obs)
	require.True(t, ok)
	assert.Equal(t, 110.0, v)

	v, ok = Apply(Spec{Agg: AggMean}, obs)
	require.True(t, ok)
	assert.Equal(t, 105.0, v)

	_, ok = Apply(Spec{Agg: Agg("bogus")}, obs)
	assert.False(t, ok)
}

func TestDefaultSchemaIsConsistent(t *testing.T) {
	schema := DefaultSchema()
	require.NotEmpty(t, schema)

	names := Names(schema)
	seen := map[string]bool{}
	for _, n := range names {
		assert.False(t, seen[n], "duplicate feature %s", n)
		seen[n] = true
	}

	labels := Labels(schema)
	for _, s := range schema {
		assert.NotEmpty(t, labels[s.Name], "feature %s needs a label", s.Name)
		assert.True(t, s.Window > 0, "feature %s needs a window", s.Name)
	}
}
