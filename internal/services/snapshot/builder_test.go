package snapshot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CreditLens/internal/domain/models"
	"CreditLens/internal/repository"
	"CreditLens/internal/services/features"
)

const day = 24 * time.Hour

func testSchema() []features.Spec {
	return []features.Spec{
		{Name: "price_last", Source: models.SourceMarket, Metric: "price", Window: 7 * day, Agg: features.AggLast, Neutral: 0, CarryForward: true, Label: "latest share price"},
		{Name: "sentiment_30d", Source: models.SourceNewsSentiment, Metric: "headline_sentiment", Window: 30 * day, Agg: features.AggMean, Neutral: 0, Label: "recent news sentiment"},
	}
}

func seed(t *testing.T, store *repository.MemoryObservationStore, obs ...models.Observation) {
	t.Helper()
	require.NoError(t, store.Append(context.Background(), obs...))
}

func marketObs(issuer string, metric string, v float64, observed, ingested time.Time) models.Observation {
	return models.Observation{IssuerID: issuer, Source: models.SourceMarket, Metric: metric, Value: v, ObservedAt: observed, IngestedAt: ingested}
}

func TestBuildExampleScenario(t *testing.T) {
	// Observations for AAPL: market price 150.0 at t0, sentiment -0.6 at t1>t0.
	obs := repository.NewMemoryObservationStore()
	snaps := repository.NewMemorySnapshotStore()
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(2 * day)

	seed(t, obs, marketObs("AAPL", "price", 150.0, t0, t0))
	seed(t, obs, models.Observation{
		IssuerID: "AAPL", Source: models.SourceNewsSentiment, Metric: "headline_sentiment",
		Value: -0.6, ObservedAt: t1, IngestedAt: t1,
	})

	b := NewBuilder(testSchema(), obs, snaps, 0.5)
	snap, err := b.Build(context.Background(), "AAPL", t1)
	require.NoError(t, err)

	price, ok := snap.Value("price_last")
	require.True(t, ok)
	assert.Equal(t, 150.0, price)

	sent, ok := snap.Value("sentiment_30d")
	require.True(t, ok)
	assert.Equal(t, -0.6, sent)

	assert.False(t, snap.LowCoverage)
	assert.Len(t, snap.Provenance["price_last"], 1)
	assert.Len(t, snap.Provenance["sentiment_30d"], 1)
}

func TestBuildIsDeterministic(t *testing.T) {
	obs := repository.NewMemoryObservationStore()
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seed(t, obs, marketObs("AAPL", "price", 150.0, t0, t0))

	build := func() models.FeatureSnapshot {
		b := NewBuilder(testSchema(), obs, repository.NewMemorySnapshotStore(), 0.5)
		s, err := b.Build(context.Background(), "AAPL", t0.Add(day))
		require.NoError(t, err)
		return s
	}

	a, b := build(), build()
	assert.Equal(t, a.Features, b.Features)
	assert.Equal(t, a.Provenance, b.Provenance)
	assert.Equal(t, a.AsOf, b.AsOf)
}

func TestBuildTieBreakByIngestedAt(t *testing.T) {
	obs := repository.NewMemoryObservationStore()
	snaps := repository.NewMemorySnapshotStore()
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// Same observed_at; the later ingest wins for point-in-time features.
	seed(t, obs, marketObs("AAPL", "price", 150.0, t0, t0))
	seed(t, obs, marketObs("AAPL", "price", 151.5, t0, t0.Add(time.Minute)))

	b := NewBuilder(testSchema(), obs, snaps, 0.5)
	snap, err := b.Build(context.Background(), "AAPL", t0.Add(time.Hour))
	require.NoError(t, err)

	price, _ := snap.Value("price_last")
	assert.Equal(t, 151.5, price)
}

func TestBuildImputesEmptyWindows(t *testing.T) {
	obs := repository.NewMemoryObservationStore()
	snaps := repository.NewMemorySnapshotStore()
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// Price observed long before the 7d window: carry-forward, flagged imputed.
	seed(t, obs, marketObs("AAPL", "price", 140.0, t0.Add(-60*day), t0.Add(-60*day)))

	b := NewBuilder(testSchema(), obs, snaps, 0.5)
	snap, err := b.Build(context.Background(), "AAPL", t0)
	require.NoError(t, err)

	f, ok := snap.Feature("price_last")
	require.True(t, ok)
	assert.True(t, f.Imputed)
	assert.Equal(t, 140.0, f.Value)
	assert.Len(t, snap.Provenance["price_last"], 1)

	// Sentiment has nothing at all: neutral constant, empty provenance.
	sf, _ := snap.Feature("sentiment_30d")
	assert.True(t, sf.Imputed)
	assert.Equal(t, 0.0, sf.Value)
	assert.Empty(t, snap.Provenance["sentiment_30d"])

	// Both of two features imputed -> above the 0.5 threshold -> low coverage.
	assert.True(t, snap.LowCoverage)
}

func TestBuildMonotonicVersionsUnderConcurrency(t *testing.T) {
	obs := repository.NewMemoryObservationStore()
	snaps := repository.NewMemorySnapshotStore()
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seed(t, obs, marketObs("AAPL", "price", 150.0, t0, t0))

	b := NewBuilder(testSchema(), obs, snaps, 0.5)

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Build(context.Background(), "AAPL", t0.Add(time.Hour))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all := snaps.All("AAPL")
	require.Len(t, all, n)
	seen := map[uint64]bool{}
	for _, s := range all {
		assert.False(t, seen[s.Version], "duplicate version %d", s.Version)
		seen[s.Version] = true
	}
	for v := uint64(1); v <= n; v++ {
		assert.True(t, seen[v], "missing version %d", v)
	}
}

func TestBuildSeedsVersionFromStore(t *testing.T) {
	obs := repository.NewMemoryObservationStore()
	snaps := repository.NewMemorySnapshotStore()
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seed(t, obs, marketObs("AAPL", "price", 150.0, t0, t0))

	require.NoError(t, snaps.Append(context.Background(), models.FeatureSnapshot{IssuerID: "AAPL", Version: 7, AsOf: t0}))

	b := NewBuilder(testSchema(), obs, snaps, 0.5)
	snap, err := b.Build(context.Background(), "AAPL", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, uint64(8), snap.Version)
}
