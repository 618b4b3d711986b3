package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"CreditLens/internal/domain/models"
	domrepo "CreditLens/internal/domain/repository"
)

// MemoryObservationStore is an append-only in-memory ObservationStore. Used in
// tests and when no ClickHouse backend is configured.
type MemoryObservationStore struct {
	mu   sync.RWMutex
	byID map[models.ObservationID]models.Observation
	rows []models.Observation
}

func NewMemoryObservationStore() *MemoryObservationStore {
	return &MemoryObservationStore{byID: make(map[models.ObservationID]models.Observation)}
}

// Append stores observations, idempotent on identity: a duplicate of an
// already-stored identity is ignored (observations are immutable once stored).
func (s *MemoryObservationStore) Append(ctx context.Context, obs ...models.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range obs {
		id := o.ID()
		if _, dup := s.byID[id]; dup {
			continue
		}
		s.byID[id] = o
		s.rows = append(s.rows, o)
	}
	return nil
}

func (s *MemoryObservationStore) Range(ctx context.Context, issuerID string, source models.SourceKind, metric string, from, to time.Time) ([]models.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Observation
	for _, o := range s.rows {
		if o.IssuerID != issuerID || o.Source != source || o.Metric != metric {
			continue
		}
		if o.ObservedAt.After(from) && !o.ObservedAt.After(to) {
			out = append(out, o)
		}
	}
	sortObservations(out)
	return out, nil
}

func (s *MemoryObservationStore) LastBefore(ctx context.Context, issuerID string, source models.SourceKind, metric string, t time.Time) (models.Observation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best models.Observation
	found := false
	for _, o := range s.rows {
		if o.IssuerID != issuerID || o.Source != source || o.Metric != metric {
			continue
		}
		if o.ObservedAt.After(t) {
			continue
		}
		if !found || laterObservation(o, best) {
			best = o
			found = true
		}
	}
	return best, found, nil
}

func (s *MemoryObservationStore) Health(ctx context.Context) error { return nil }
func (s *MemoryObservationStore) Close() error                     { return nil }

// sortObservations orders by observed_at then ingested_at ascending — the
// store contract the aggregation tie-break relies on.
func sortObservations(obs []models.Observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		if !obs[i].ObservedAt.Equal(obs[j].ObservedAt) {
			return obs[i].ObservedAt.Before(obs[j].ObservedAt)
		}
		return obs[i].IngestedAt.Before(obs[j].IngestedAt)
	})
}

func laterObservation(a, b models.Observation) bool {
	if !a.ObservedAt.Equal(b.ObservedAt) {
		return a.ObservedAt.After(b.ObservedAt)
	}
	return a.IngestedAt.After(b.IngestedAt)
}

// MemorySnapshotStore keeps immutable snapshots per issuer.
type MemorySnapshotStore struct {
	mu   sync.RWMutex
	rows map[string][]models.FeatureSnapshot
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{rows: make(map[string][]models.FeatureSnapshot)}
}

func (s *MemorySnapshotStore) Append(ctx context.Context, snap models.FeatureSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[snap.IssuerID] = append(s.rows[snap.IssuerID], snap)
	return nil
}

func (s *MemorySnapshotStore) Latest(ctx context.Context, issuerID string) (models.FeatureSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snaps := s.rows[issuerID]
	if len(snaps) == 0 {
		return models.FeatureSnapshot{}, false, nil
	}
	return snaps[len(snaps)-1], true, nil
}

func (s *MemorySnapshotStore) LatestVersion(ctx context.Context, issuerID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max uint64
	for _, sn := range s.rows[issuerID] {
		if sn.Version > max {
			max = sn.Version
		}
	}
	return max, nil
}

func (s *MemorySnapshotStore) Close() error { return nil }

// All returns every stored snapshot for an issuer, oldest first. Test helper.
func (s *MemorySnapshotStore) All(issuerID string) []models.FeatureSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FeatureSnapshot, len(s.rows[issuerID]))
	copy(out, s.rows[issuerID])
	return out
}

// MemoryScoreStore keeps ScoreRecord+Explanation pairs. The pair is stored in
// one append so readers never see a record without its explanation.
type MemoryScoreStore struct {
	mu   sync.RWMutex
	rows map[string][]scoredPair
}

type scoredPair struct {
	rec models.ScoreRecord
	exp models.Explanation
}

func NewMemoryScoreStore() *MemoryScoreStore {
	return &MemoryScoreStore{rows: make(map[string][]scoredPair)}
}

func (s *MemoryScoreStore) AppendScored(ctx context.Context, rec models.ScoreRecord, exp models.Explanation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[rec.IssuerID] = append(s.rows[rec.IssuerID], scoredPair{rec: rec, exp: exp})
	return nil
}

func (s *MemoryScoreStore) Latest(ctx context.Context, issuerID string) (models.ScoreRecord, models.Explanation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pairs := s.rows[issuerID]
	if len(pairs) == 0 {
		return models.ScoreRecord{}, models.Explanation{}, false, nil
	}
	last := pairs[len(pairs)-1]
	return last.rec, last.exp, true, nil
}

func (s *MemoryScoreStore) History(ctx context.Context, issuerID string, from, to time.Time, limit int) ([]models.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ScoreRecord
	for _, p := range s.rows[issuerID] {
		if p.rec.ComputedAt.Before(from) || p.rec.ComputedAt.After(to) {
			continue
		}
		out = append(out, p.rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryScoreStore) Close() error { return nil }

var (
	_ domrepo.ObservationStore = (*MemoryObservationStore)(nil)
	_ domrepo.SnapshotStore    = (*MemorySnapshotStore)(nil)
	_ domrepo.ScoreStore       = (*MemoryScoreStore)(nil)
)
