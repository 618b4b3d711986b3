package scoring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CreditLens/internal/domain/models"
)

func candidate(r *Registry) *models.ModelVersion {
	v := r.Add(&models.ModelVersion{FeatureSchema: []string{"price_last"}})
	return v
}

func TestRegistryNoActiveModelInitially(t *testing.T) {
	r := NewRegistry()
	_, err := r.Active()
	assert.ErrorIs(t, err, models.ErrNoActiveModel)
	assert.Equal(t, 0, r.ActiveCount())
}

func TestRegistryMonotonicIDs(t *testing.T) {
	r := NewRegistry()
	a, b := candidate(r), candidate(r)
	assert.Equal(t, uint64(1), a.ID)
	assert.Equal(t, uint64(2), b.ID)
	assert.Equal(t, models.StatusCandidate, a.Status)
}

func TestRegistryPromoteRequiresValidated(t *testing.T) {
	r := NewRegistry()
	v := candidate(r)

	err := r.Promote(v.ID)
	var terr *models.TrainingError
	require.ErrorAs(t, err, &terr)

	require.NoError(t, r.SetStatus(v.ID, models.StatusValidated))
	require.NoError(t, r.Promote(v.ID))

	active, err := r.Active()
	require.NoError(t, err)
	assert.Equal(t, v.ID, active.ID)
	assert.Equal(t, 1, r.ActiveCount())
}

func TestRegistryPromotionRetiresPrevious(t *testing.T) {
	r := NewRegistry()
	first, second := candidate(r), candidate(r)

	require.NoError(t, r.SetStatus(first.ID, models.StatusValidated))
	require.NoError(t, r.Promote(first.ID))
	require.NoError(t, r.SetStatus(second.ID, models.StatusValidated))
	require.NoError(t, r.Promote(second.ID))

	st, err := r.Status(first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRetired, st)

	active, err := r.Active()
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
	assert.Equal(t, 1, r.ActiveCount())
}

func TestRegistrySingleActiveUnderConcurrentPromotions(t *testing.T) {
	r := NewRegistry()

	const n = 16
	ids := make([]uint64, n)
	for i := 0; i < n; i++ {
		v := candidate(r)
		require.NoError(t, r.SetStatus(v.ID, models.StatusValidated))
		ids[i] = v.ID
	}

	var wg sync.WaitGroup
	conflicts := 0
	var mu sync.Mutex
	for _, id := range ids {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			if err := r.Promote(id); err != nil {
				mu.Lock()
				if err == models.ErrPromotionConflict {
					conflicts++
				}
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	// However the race resolved, the invariant holds: exactly one active.
	assert.Equal(t, 1, r.ActiveCount())
	_, err := r.Active()
	assert.NoError(t, err)
	_ = conflicts // conflicts are legal outcomes, not failures
}

func TestRegistryGetUnknownVersion(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get(42)
	assert.ErrorIs(t, err, models.ErrModelNotFound)
}
