// Package normalize converts heterogeneous adapter payloads into typed
// observations. It is pure: bad input fails loudly and never enters a snapshot.
package normalize

import (
	"math"
	"strings"
	"time"

	"CreditLens/internal/domain/models"
)

// Normalizer validates and types raw adapter output.
type Normalizer struct {
	// ClockSkew is the tolerance for observed_at timestamps ahead of now.
	ClockSkew time.Duration
}

// New returns a normalizer with the given clock-skew tolerance.
func New(clockSkew time.Duration) *Normalizer {
	if clockSkew <= 0 {
		clockSkew = 2 * time.Minute
	}
	return &Normalizer{ClockSkew: clockSkew}
}

// Normalize converts one raw payload into an Observation. now is passed in so
// the function stays deterministic under test.
func (n *Normalizer) Normalize(raw models.RawObservation, now time.Time) (models.Observation, error) {
	issuer := strings.TrimSpace(raw.IssuerID)
	if issuer == "" {
		return models.Observation{}, &models.ValidationError{Field: "issuer_id", Reason: "empty"}
	}

	source := models.SourceKind(strings.TrimSpace(raw.Source))
	if !models.IsValidSource(source) {
		return models.Observation{}, &models.ValidationError{IssuerID: issuer, Field: "source", Reason: "unknown kind " + raw.Source}
	}

	metric := strings.TrimSpace(raw.Metric)
	if metric == "" {
		return models.Observation{}, &models.ValidationError{IssuerID: issuer, Field: "metric", Reason: "empty"}
	}

	if math.IsNaN(raw.Value) || math.IsInf(raw.Value, 0) {
		return models.Observation{}, &models.ValidationError{IssuerID: issuer, Field: "value", Reason: "not a finite number"}
	}

	value := raw.Value
	if source == models.SourceNewsSentiment {
		v, err := normalizeSentiment(issuer, value)
		if err != nil {
			return models.Observation{}, err
		}
		value = v
	}

	observedAt := parseEpoch(raw.ObservedAt)
	if observedAt.IsZero() {
		return models.Observation{}, &models.ValidationError{IssuerID: issuer, Field: "observed_at", Reason: "missing or non-positive"}
	}
	if observedAt.After(now.Add(n.ClockSkew)) {
		return models.Observation{}, &models.ValidationError{IssuerID: issuer, Field: "observed_at", Reason: "in the future beyond clock-skew tolerance"}
	}

	return models.Observation{
		IssuerID:   issuer,
		Source:     source,
		Metric:     metric,
		Value:      value,
		ObservedAt: observedAt,
		IngestedAt: now.UTC(),
	}, nil
}

// normalizeSentiment accepts polarity on [-1,1] directly, or a percent scale
// [-100,100] scaled down. Anything else is rejected rather than clamped.
func normalizeSentiment(issuer string, v float64) (float64, error) {
	switch {
	case v >= -1 && v <= 1:
		return v, nil
	case v >= -100 && v <= 100:
		return v / 100, nil
	default:
		return 0, &models.ValidationError{IssuerID: issuer, Field: "value", Reason: "sentiment outside [-1,1]"}
	}
}

// parseEpoch interprets unix seconds or milliseconds (adapters differ).
func parseEpoch(ts int64) time.Time {
	if ts <= 0 {
		return time.Time{}
	}
	if ts > 1e11 { // millis
		return time.Unix(ts/1000, (ts%1000)*int64(time.Millisecond)).UTC()
	}
	return time.Unix(ts, 0).UTC()
}
