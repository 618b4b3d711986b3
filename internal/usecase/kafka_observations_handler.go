package usecase

import (
	"context"
	"encoding/json"
	"time"

	"CreditLens/internal/domain/models"
	drepo "CreditLens/internal/domain/repository"
	pkgkafka "CreditLens/pkg/kafka"
)

// KafkaObservationsHandler consumes observation events and feeds them through
// the ingest path.
type KafkaObservationsHandler struct {
	topic   string
	ingest  *IngestUseCase
	metrics drepo.Metrics
}

func NewKafkaObservationsHandler(topic string, ingest *IngestUseCase, metrics drepo.Metrics) *KafkaObservationsHandler {
	return &KafkaObservationsHandler{topic: topic, ingest: ingest, metrics: metrics}
}

func (h *KafkaObservationsHandler) Topic() string { return h.topic }

// Handle accepts either a single raw observation or a batch array. Validation
// rejects are terminal: retrying a malformed payload never helps, so they are
// counted and committed rather than requeued.
func (h *KafkaObservationsHandler) Handle(ctx context.Context, b []byte) error {
	raws, err := decodeObservations(b)
	if err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if len(raws) > 0 && raws[0].ObservedAt > 0 {
		// E2E latency from event time to now (approx)
		t := raws[0].ObservedAt
		if t > 1e11 {
			t = t / 1000
		}
		h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(t, 0)).Seconds())
	}

	res, err := h.ingest.Ingest(ctx, raws)
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	for range res.Rejected {
		h.metrics.RecordError("consumer_reject")
	}
	return nil
}

func decodeObservations(b []byte) ([]models.RawObservation, error) {
	if len(b) > 0 && b[0] == '[' {
		var raws []models.RawObservation
		if err := json.Unmarshal(b, &raws); err != nil {
			return nil, err
		}
		return raws, nil
	}
	var raw models.RawObservation
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	return []models.RawObservation{raw}, nil
}

var _ pkgkafka.MessageHandler = (*KafkaObservationsHandler)(nil)
