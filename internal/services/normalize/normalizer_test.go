package normalize

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CreditLens/internal/domain/models"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func raw(source, metric string, v float64, at time.Time) models.RawObservation {
	return models.RawObservation{
		IssuerID:   "AAPL",
		Source:     source,
		Metric:     metric,
		Value:      v,
		ObservedAt: at.Unix(),
	}
}

func TestNormalizeMarketPrice(t *testing.T) {
	n := New(2 * time.Minute)
	obs, err := n.Normalize(raw("market", "price", 150.0, now.Add(-time.Hour)), now)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", obs.IssuerID)
	assert.Equal(t, models.SourceMarket, obs.Source)
	assert.Equal(t, 150.0, obs.Value)
	assert.Equal(t, now, obs.IngestedAt)
}

func TestNormalizeRejectsNonFinite(t *testing.T) {
	n := New(0)
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := n.Normalize(raw("market", "price", v, now), now)
		var verr *models.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "value", verr.Field)
	}
}

func TestNormalizeSentimentScaling(t *testing.T) {
	n := New(0)

	obs, err := n.Normalize(raw("news_sentiment", "headline_sentiment", -0.6, now), now)
	require.NoError(t, err)
	assert.Equal(t, -0.6, obs.Value)

	obs, err = n.Normalize(raw("news_sentiment", "headline_sentiment", 80, now), now)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, obs.Value, 1e-12)

	_, err = n.Normalize(raw("news_sentiment", "headline_sentiment", 250, now), now)
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
}

func TestNormalizeRejectsFutureTimestamps(t *testing.T) {
	n := New(2 * time.Minute)

	// inside skew tolerance: accepted
	_, err := n.Normalize(raw("macro", "policy_rate", 0.05, now.Add(time.Minute)), now)
	require.NoError(t, err)

	// beyond tolerance: rejected
	_, err = n.Normalize(raw("macro", "policy_rate", 0.05, now.Add(10*time.Minute)), now)
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "observed_at", verr.Field)
}

func TestNormalizeRejectsUnknownSource(t *testing.T) {
	n := New(0)
	_, err := n.Normalize(raw("astrology", "mood", 1, now), now)
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "source", verr.Field)
}

func TestNormalizeMillisecondEpochs(t *testing.T) {
	n := New(0)
	r := raw("market", "price", 99.5, now.Add(-time.Hour))
	r.ObservedAt = now.Add(-time.Hour).UnixMilli()
	obs, err := n.Normalize(r, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-time.Hour), obs.ObservedAt)
}

func TestNormalizeIsPure(t *testing.T) {
	n := New(time.Minute)
	r := raw("market", "price", 101.25, now.Add(-time.Minute))
	a, err := n.Normalize(r, now)
	require.NoError(t, err)
	b, err := n.Normalize(r, now)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
