package usecase

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CreditLens/internal/domain/models"
	"CreditLens/internal/repository"
	"CreditLens/internal/services/explain"
	"CreditLens/internal/services/features"
	"CreditLens/internal/services/normalize"
	"CreditLens/internal/services/scoring"
	"CreditLens/internal/services/snapshot"
	"CreditLens/pkg/logger"
)

const day = 24 * time.Hour

type nopMetrics struct{}

func (nopMetrics) RecordScore(string, float64)   {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordLatency(string, float64) {}
func (nopMetrics) RecordIngested(string)         {}

type capturePublisher struct {
	mu      sync.Mutex
	bundles []models.ScoreBundle
}

func (p *capturePublisher) Publish(ctx context.Context, b models.ScoreBundle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bundles = append(p.bundles, b)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

type memDocs struct {
	mu        sync.Mutex
	headlines []string
}

func (d *memDocs) PutHeadline(ctx context.Context, issuerID, headline string, observedAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.headlines = append(d.headlines, headline)
	return nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func featureSchema() []features.Spec {
	return []features.Spec{
		{Name: "price_last", Source: models.SourceMarket, Metric: "price", Window: 7 * day, Agg: features.AggLast, CarryForward: true, Label: "latest share price"},
		{Name: "sentiment_30d", Source: models.SourceNewsSentiment, Metric: "headline_sentiment", Window: 30 * day, Agg: features.AggMean, Label: "recent news sentiment"},
	}
}

// activeRegistry promotes a hand-built model where negative sentiment
// dominates the score.
func activeRegistry(t *testing.T) *scoring.Registry {
	t.Helper()
	r := scoring.NewRegistry()
	v := r.Add(&models.ModelVersion{
		FeatureSchema:  []string{"price_last", "sentiment_30d"},
		Weights:        []float64{-0.05, -0.35},
		Bias:           0,
		Means:          []float64{100, 0},
		Scales:         []float64{50, 0.5},
		ReferenceMeans: []float64{100, 0},
		BaselineScore:  50,
		Thresholds:     models.RiskThresholds{Low: 70, Medium: 40},
	})
	require.NoError(t, r.SetStatus(v.ID, models.StatusValidated))
	require.NoError(t, r.Promote(v.ID))
	return r
}

type fixture struct {
	ingest   *IngestUseCase
	pipeline *ScorePipeline
	registry *scoring.Registry
	pub      *capturePublisher
	docs     *memDocs
	scores   *repository.MemoryScoreStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	obs := repository.NewMemoryObservationStore()
	snaps := repository.NewMemorySnapshotStore()
	scores := repository.NewMemoryScoreStore()
	registry := activeRegistry(t)
	pub := &capturePublisher{}
	docs := &memDocs{}
	log := testLogger(t)

	builder := snapshot.NewBuilder(featureSchema(), obs, snaps, 0.5)
	explainer := explain.NewGenerator(map[string]string{
		"price_last":    "latest share price",
		"sentiment_30d": "recent news sentiment",
	}, 5)

	return &fixture{
		ingest:   NewIngestUseCase(normalize.New(0), obs, docs, nopMetrics{}, log),
		pipeline: NewScorePipeline(builder, scoring.NewLogisticScorer(), explainer, registry, scores, pub, nopMetrics{}, log),
		registry: registry,
		pub:      pub,
		docs:     docs,
		scores:   scores,
	}
}

func TestComputeScoreEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	res, err := f.ingest.Ingest(ctx, []models.RawObservation{
		{IssuerID: "AAPL", Source: "market", Metric: "price", Value: 150.0, ObservedAt: now.Add(-48 * time.Hour).Unix()},
		{IssuerID: "AAPL", Source: "news_sentiment", Metric: "headline_sentiment", Value: -0.6, ObservedAt: now.Add(-2 * time.Hour).Unix(), Headline: "Supplier dispute escalates"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Accepted)
	require.Empty(t, res.Rejected)
	assert.Equal(t, []string{"Supplier dispute escalates"}, f.docs.headlines)

	bundle, err := f.pipeline.ComputeScore(ctx, "AAPL", now)
	require.NoError(t, err)

	assert.Equal(t, models.RiskMedium, bundle.RiskLevel)
	assert.GreaterOrEqual(t, bundle.Score, 40.0)
	assert.Less(t, bundle.Score, 70.0)

	// Negative sentiment is the dominant factor and pulls the score down.
	require.NotEmpty(t, bundle.KeyFactors)
	assert.Equal(t, "sentiment_30d", bundle.KeyFactors[0].Feature)
	assert.Negative(t, bundle.KeyFactors[0].Contribution)
	assert.Contains(t, bundle.Explanation, "recent news sentiment")

	// Published and persisted as one coherent pair.
	require.Len(t, f.pub.bundles, 1)
	assert.Equal(t, bundle, f.pub.bundles[0])

	latest, err := f.pipeline.LatestScore(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, bundle.Score, latest.Score)
	assert.Equal(t, bundle.Explanation, latest.Explanation)
}

func TestComputeScoreWithoutActiveModel(t *testing.T) {
	f := newFixture(t)
	obs := repository.NewMemoryObservationStore()
	builder := snapshot.NewBuilder(featureSchema(), obs, repository.NewMemorySnapshotStore(), 0.5)
	p := NewScorePipeline(builder, scoring.NewLogisticScorer(),
		explain.NewGenerator(nil, 5), scoring.NewRegistry(),
		f.scores, f.pub, nopMetrics{}, testLogger(t))

	_, err := p.ComputeScore(context.Background(), "AAPL", time.Now())
	assert.ErrorIs(t, err, models.ErrNoActiveModel)
	assert.Empty(t, f.pub.bundles, "nothing is published on failure")
}

func TestScoreHistoryWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	_, err := f.ingest.Ingest(ctx, []models.RawObservation{
		{IssuerID: "AAPL", Source: "market", Metric: "price", Value: 150.0, ObservedAt: now.Add(-time.Hour).Unix()},
	})
	require.NoError(t, err)

	_, err = f.pipeline.ComputeScore(ctx, "AAPL", now)
	require.NoError(t, err)
	_, err = f.pipeline.ComputeScore(ctx, "AAPL", now)
	require.NoError(t, err)

	recs, err := f.pipeline.ScoreHistory(ctx, "AAPL", now.Add(-time.Minute), now.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	// Each recomputation built a fresh snapshot, so the records differ in key.
	assert.NotEqual(t, recs[0].SnapshotVersion, recs[1].SnapshotVersion)
}

func TestLatestScoreUnknownIssuer(t *testing.T) {
	f := newFixture(t)
	_, err := f.pipeline.LatestScore(context.Background(), "UNKNOWN")
	assert.ErrorIs(t, err, models.ErrIssuerNotFound)
}

func TestIngestPerRecordIsolation(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	res, err := f.ingest.Ingest(context.Background(), []models.RawObservation{
		{IssuerID: "AAPL", Source: "market", Metric: "price", Value: 150.0, ObservedAt: now.Unix()},
		{IssuerID: "AAPL", Source: "telepathy", Metric: "vibes", Value: 1, ObservedAt: now.Unix()},
		{IssuerID: "MSFT", Source: "market", Metric: "price", Value: 300.0, ObservedAt: now.Unix()},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Accepted)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, 1, res.Rejected[0].Index)
	assert.Contains(t, res.Rejected[0].Reason, "source")
}

func TestClassScoreAggregatesMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	_, err := f.ingest.Ingest(ctx, []models.RawObservation{
		{IssuerID: "AAPL", Source: "market", Metric: "price", Value: 150.0, ObservedAt: now.Add(-time.Hour).Unix()},
		{IssuerID: "AAPL", Source: "news_sentiment", Metric: "headline_sentiment", Value: -0.6, ObservedAt: now.Add(-time.Hour).Unix()},
		{IssuerID: "MSFT", Source: "market", Metric: "price", Value: 100.0, ObservedAt: now.Add(-time.Hour).Unix()},
		{IssuerID: "MSFT", Source: "news_sentiment", Metric: "headline_sentiment", Value: 0, ObservedAt: now.Add(-time.Hour).Unix()},
	})
	require.NoError(t, err)

	aapl, err := f.pipeline.ComputeScore(ctx, "AAPL", now)
	require.NoError(t, err)
	msft, err := f.pipeline.ComputeScore(ctx, "MSFT", now)
	require.NoError(t, err)

	uc := NewClassScoreUseCase(f.pipeline, f.registry, map[string][]string{
		"us_tech": {"MSFT", "AAPL", "NOT_SCORED"},
	})

	cs, err := uc.ClassScore(ctx, "us_tech")
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, cs.Members, "unscored members are skipped")
	assert.InDelta(t, (aapl.Score+msft.Score)/2, cs.Score, 1e-9)
	assert.InDelta(t, min(aapl.Confidence, msft.Confidence), cs.Confidence, 1e-9)
	assert.Equal(t, models.RiskMedium, cs.RiskLevel)

	_, err = uc.ClassScore(ctx, "no_such_class")
	assert.Error(t, err)
}

func TestKafkaObservationsHandlerDecoding(t *testing.T) {
	f := newFixture(t)
	h := NewKafkaObservationsHandler("observations", f.ingest, nopMetrics{})
	ctx := context.Background()
	now := time.Now().Add(-time.Hour).Unix()

	single := []byte(`{"issuer_id":"AAPL","source":"market","metric":"price","value":151.0,"observed_at":` + itoa(now) + `}`)
	require.NoError(t, h.Handle(ctx, single))

	batch := []byte(`[{"issuer_id":"MSFT","source":"market","metric":"price","value":300.0,"observed_at":` + itoa(now) + `}]`)
	require.NoError(t, h.Handle(ctx, batch))

	assert.Error(t, h.Handle(ctx, []byte(`{not json`)))
	assert.Equal(t, "observations", h.Topic())
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
