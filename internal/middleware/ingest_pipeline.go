package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CreditLens/internal/domain/models"
	domrepo "CreditLens/internal/domain/repository"
)

// Ingestor is the minimal downstream interface the pipeline needs.
type Ingestor interface {
	Ingest(ctx context.Context, raws []models.RawObservation) (models.IngestResult, error)
}

// IngestPipeline sits between the event sources (Kafka, HTTP batch) and the
// ingest use case. It throttles per issuer and buffers batches when the store
// is temporarily unavailable, flushing them in the background.
type IngestPipeline struct {
	ingest   Ingestor
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan []models.RawObservation
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-issuer last accepted time
}

type PipelineOption func(*IngestPipeline)

// WithMaxRPS sets the max accepted batches per second per issuer.
func WithMaxRPS(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer size for batches the store rejected.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func NewIngestPipeline(ingest Ingestor, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		ingest:   ingest,
		metrics:  metrics,
		maxRPS:   50,
		bufSize:  1000,
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan []models.RawObservation, p.bufSize)
	return p
}

// Start launches background flushing of buffered batches.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case batch := <-p.bufCh:
				if len(batch) == 0 {
					continue
				}
				if _, err := p.ingest.Ingest(ctx, batch); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- batch:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process throttles and forwards a batch downstream, buffering it when the
// store is unavailable. Validation rejects inside the result are the caller's
// to report; only infrastructure errors are buffered.
func (p *IngestPipeline) Process(ctx context.Context, raws []models.RawObservation) (models.IngestResult, error) {
	start := time.Now()
	if len(raws) == 0 {
		return models.IngestResult{}, fmt.Errorf("empty batch")
	}

	if !p.allow(raws[0].IssuerID, start) {
		p.metrics.RecordError("pipeline_throttle")
		return models.IngestResult{}, nil
	}

	res, err := p.ingest.Ingest(ctx, raws)
	if err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- raws:
			p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return models.IngestResult{}, fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return res, nil
}

func (p *IngestPipeline) allow(issuerID string, now time.Time) bool {
	if p.maxRPS <= 0 || issuerID == "" {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[issuerID]
	if last.IsZero() {
		p.lastSeen[issuerID] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[issuerID] = now
	return true
}
