package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CreditLens/internal/domain/models"
)

type nopMetrics struct{}

func (nopMetrics) RecordScore(string, float64)   {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordLatency(string, float64) {}
func (nopMetrics) RecordIngested(string)         {}

type stubIngestor struct {
	fail  bool
	calls int
}

func (s *stubIngestor) Ingest(ctx context.Context, raws []models.RawObservation) (models.IngestResult, error) {
	s.calls++
	if s.fail {
		return models.IngestResult{}, errors.New("store down")
	}
	return models.IngestResult{Accepted: len(raws)}, nil
}

func batch(issuer string) []models.RawObservation {
	return []models.RawObservation{
		{IssuerID: issuer, Source: "market", Metric: "price", Value: 100, ObservedAt: time.Now().Unix()},
	}
}

func TestProcessForwardsDownstream(t *testing.T) {
	ing := &stubIngestor{}
	p := NewIngestPipeline(ing, nopMetrics{})

	res, err := p.Process(context.Background(), batch("AAPL"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Accepted)
	assert.Equal(t, 1, ing.calls)
}

func TestProcessBuffersOnDownstreamError(t *testing.T) {
	ing := &stubIngestor{fail: true}
	p := NewIngestPipeline(ing, nopMetrics{}, WithBufferSize(4))

	_, err := p.Process(context.Background(), batch("AAPL"))
	require.Error(t, err)
	assert.Len(t, p.bufCh, 1, "failed batch is buffered for retry")
}

func TestProcessThrottlesPerIssuer(t *testing.T) {
	ing := &stubIngestor{}
	p := NewIngestPipeline(ing, nopMetrics{}, WithMaxRPS(1))

	now := time.Now()
	require.True(t, p.allow("AAPL", now))
	assert.False(t, p.allow("AAPL", now.Add(100*time.Millisecond)))
	assert.True(t, p.allow("MSFT", now), "throttle is per issuer")
	assert.True(t, p.allow("AAPL", now.Add(2*time.Second)))
}

func TestProcessRejectsEmptyBatch(t *testing.T) {
	p := NewIngestPipeline(&stubIngestor{}, nopMetrics{})
	_, err := p.Process(context.Background(), nil)
	assert.Error(t, err)
}

func TestStartFlushesBufferedBatches(t *testing.T) {
	ing := &stubIngestor{fail: true}
	p := NewIngestPipeline(ing, nopMetrics{}, WithBufferSize(4))

	_, err := p.Process(context.Background(), batch("AAPL"))
	require.Error(t, err)

	ing.fail = false
	p.Start(context.Background())
	defer p.Stop()

	assert.Eventually(t, func() bool { return len(p.bufCh) == 0 }, time.Second, 10*time.Millisecond)
}
