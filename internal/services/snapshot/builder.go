// Package snapshot builds immutable, versioned feature vectors from the
// observation store.
package snapshot

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"CreditLens/internal/domain/models"
	domrepo "CreditLens/internal/domain/repository"
	domsvc "CreditLens/internal/domain/service"
	"CreditLens/internal/services/features"
)

// Builder aggregates the latest accepted observations per issuer into feature
// snapshots. Builds for the same issuer serialize on a per-issuer lock so
// snapshot versions stay strictly monotonic; different issuers never block
// each other.
type Builder struct {
	schema []features.Spec
	obs    domrepo.ObservationStore
	snaps  domrepo.SnapshotStore

	// maxImputed is the imputed-feature fraction above which a snapshot is
	// flagged low-coverage.
	maxImputed float64

	mu      sync.Mutex
	issuers map[string]*issuerSeq
}

type issuerSeq struct {
	mu      sync.Mutex
	version uint64
	seeded  bool
}

// NewBuilder creates a snapshot builder over the given schema and stores.
func NewBuilder(schema []features.Spec, obs domrepo.ObservationStore, snaps domrepo.SnapshotStore, maxImputed float64) *Builder {
	if maxImputed <= 0 || maxImputed > 1 {
		maxImputed = 0.5
	}
	return &Builder{
		schema:     schema,
		obs:        obs,
		snaps:      snaps,
		maxImputed: maxImputed,
		issuers:    make(map[string]*issuerSeq),
	}
}

// Schema returns the ordered feature names the builder produces.
func (b *Builder) Schema() []string { return features.Names(b.schema) }

// Build computes and persists the next snapshot for one issuer. Deterministic:
// given an identical observation set and asOf, the feature vector is
// bit-identical (only Version advances, and no wall clock is read).
func (b *Builder) Build(ctx context.Context, issuerID string, asOf time.Time) (models.FeatureSnapshot, error) {
	seq := b.seq(issuerID)
	seq.mu.Lock()
	defer seq.mu.Unlock()

	if !seq.seeded {
		v, err := b.snaps.LatestVersion(ctx, issuerID)
		if err != nil {
			return models.FeatureSnapshot{}, fmt.Errorf("seed snapshot version: %w", err)
		}
		seq.version = v
		seq.seeded = true
	}

	asOf = asOf.UTC()
	snap := models.FeatureSnapshot{
		IssuerID:   issuerID,
		Version:    seq.version + 1,
		AsOf:       asOf,
		Features:   make([]models.FeatureValue, 0, len(b.schema)),
		Provenance: make(map[string][]models.ObservationID, len(b.schema)),
	}

	for _, spec := range b.schema {
		fv, prov, err := b.computeFeature(ctx, issuerID, spec, asOf)
		if err != nil {
			return models.FeatureSnapshot{}, err
		}
		snap.Features = append(snap.Features, fv)
		snap.Provenance[spec.Name] = prov
	}

	snap.LowCoverage = snap.ImputedFraction() > b.maxImputed

	if err := b.snaps.Append(ctx, snap); err != nil {
		return models.FeatureSnapshot{}, fmt.Errorf("append snapshot: %w", err)
	}
	seq.version = snap.Version
	return snap, nil
}

func (b *Builder) computeFeature(ctx context.Context, issuerID string, spec features.Spec, asOf time.Time) (models.FeatureValue, []models.ObservationID, error) {
	from := asOf.Add(-spec.Window)
	window, err := b.obs.Range(ctx, issuerID, spec.Source, spec.Metric, from, asOf)
	if err != nil {
		return models.FeatureValue{}, nil, fmt.Errorf("range %s: %w", spec.Name, err)
	}

	if v, ok := features.Apply(spec, window); ok {
		prov := make([]models.ObservationID, len(window))
		for i, o := range window {
			prov[i] = o.ID()
		}
		return models.FeatureValue{Name: spec.Name, Value: v}, prov, nil
	}

	// Missing-window policy: carry forward the last known value when the spec
	// allows it, otherwise the documented neutral constant. Either way the
	// feature is flagged imputed.
	if spec.CarryForward {
		last, ok, err := b.obs.LastBefore(ctx, issuerID, spec.Source, spec.Metric, asOf)
		if err != nil {
			return models.FeatureValue{}, nil, fmt.Errorf("carry-forward %s: %w", spec.Name, err)
		}
		if ok {
			if v, vok := carryValue(spec, last.Value); vok {
				return models.FeatureValue{Name: spec.Name, Value: v, Imputed: true},
					[]models.ObservationID{last.ID()}, nil
			}
		}
	}
	return models.FeatureValue{Name: spec.Name, Value: spec.Neutral, Imputed: true}, nil, nil
}

// carryValue applies the spec's point transform to a carried-forward raw value.
func carryValue(spec features.Spec, v float64) (float64, bool) {
	if spec.Agg == features.AggLogLast {
		if v <= 0 {
			return 0, false
		}
		return math.Log(v), true
	}
	return v, true
}

func (b *Builder) seq(issuerID string) *issuerSeq {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.issuers[issuerID]
	if !ok {
		s = &issuerSeq{}
		b.issuers[issuerID] = s
	}
	return s
}

var _ domsvc.SnapshotBuilder = (*Builder)(nil)
