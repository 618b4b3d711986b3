package models

import "time"

// FeatureValue is one named entry of a snapshot's ordered feature vector.
type FeatureValue struct {
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Imputed bool    `json:"imputed"`
}

// FeatureSnapshot is an immutable, versioned feature vector for one issuer at
// one point in time. A new snapshot supersedes but never mutates a prior one.
type FeatureSnapshot struct {
	IssuerID string    `json:"issuer_id"`
	Version  uint64    `json:"snapshot_version"` // strictly monotonic per issuer
	AsOf     time.Time `json:"as_of"`
	// Features is ordered by the schema that built the snapshot.
	Features []FeatureValue `json:"features"`
	// Provenance lists the observation identities that contributed, keyed by
	// feature name. Imputed features have an empty list.
	Provenance map[string][]ObservationID `json:"provenance"`
	// LowCoverage is set when more than the configured fraction of features
	// was imputed. The snapshot is still produced; rejecting is the caller's call.
	LowCoverage bool `json:"low_coverage"`
}

// Value returns the snapshot value for a feature name.
func (s *FeatureSnapshot) Value(name string) (float64, bool) {
	for _, f := range s.Features {
		if f.Name == name {
			return f.Value, true
		}
	}
	return 0, false
}

// Feature returns the full entry for a feature name.
func (s *FeatureSnapshot) Feature(name string) (FeatureValue, bool) {
	for _, f := range s.Features {
		if f.Name == name {
			return f, true
		}
	}
	return FeatureValue{}, false
}

// ImputedFraction reports the share of features that were imputed.
func (s *FeatureSnapshot) ImputedFraction() float64 {
	if len(s.Features) == 0 {
		return 0
	}
	n := 0
	for _, f := range s.Features {
		if f.Imputed {
			n++
		}
	}
	return float64(n) / float64(len(s.Features))
}
