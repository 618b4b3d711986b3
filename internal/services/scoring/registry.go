package scoring

import (
	"sync"
	"sync/atomic"

	"CreditLens/internal/domain/models"
)

// Registry is the arena of model versions with a single atomically-swapped
// active pointer. Exactly one version is active at every observable instant;
// promotion is guarded by its own lock so in-flight scoring always sees one
// fully-formed active version.
type Registry struct {
	mu       sync.RWMutex
	versions map[uint64]*models.ModelVersion
	nextID   uint64

	active atomic.Pointer[models.ModelVersion]

	// promoting enforces single-writer promotion. TryLock keeps a concurrent
	// promotion visible to the caller instead of queueing it silently.
	promoting sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{versions: make(map[uint64]*models.ModelVersion)}
}

// Add registers a trained model as a candidate and assigns its monotonic id.
func (r *Registry) Add(v *models.ModelVersion) *models.ModelVersion {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	v.ID = r.nextID
	v.Status = models.StatusCandidate
	r.versions[v.ID] = v
	return v
}

// Get returns a version by id.
func (r *Registry) Get(id uint64) (*models.ModelVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.versions[id]
	if !ok {
		return nil, models.ErrModelNotFound
	}
	return v, nil
}

// Active returns the current active version. Weights and schema of a version
// are immutable after training, so callers may use the pointer lock-free.
func (r *Registry) Active() (*models.ModelVersion, error) {
	v := r.active.Load()
	if v == nil {
		return nil, models.ErrNoActiveModel
	}
	return v, nil
}

// SetStatus transitions a version's lifecycle state (validated/rejected).
func (r *Registry) SetStatus(id uint64, status models.ModelStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.versions[id]
	if !ok {
		return models.ErrModelNotFound
	}
	v.Status = status
	return nil
}

// Status reads a version's lifecycle state under the registry lock.
func (r *Registry) Status(id uint64) (models.ModelStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.versions[id]
	if !ok {
		return "", models.ErrModelNotFound
	}
	return v.Status, nil
}

// Promote atomically retires the current active version and activates the
// candidate. A concurrent promotion attempt fails with ErrPromotionConflict;
// the caller retries. There is no window with zero or two active versions:
// the active pointer swap is a single atomic store and status flips happen
// under the registry lock.
func (r *Registry) Promote(id uint64) error {
	if !r.promoting.TryLock() {
		return models.ErrPromotionConflict
	}
	defer r.promoting.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	next, ok := r.versions[id]
	if !ok {
		return models.ErrModelNotFound
	}
	if next.Status != models.StatusValidated {
		return &models.TrainingError{Reason: "cannot promote model in status " + string(next.Status)}
	}

	prev := r.active.Load()
	next.Status = models.StatusActive
	r.active.Store(next)
	if prev != nil {
		prev.Status = models.StatusRetired
	}
	return nil
}

// ActiveCount reports how many versions are currently marked active. Invariant
// check used by tests and the health endpoint.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, v := range r.versions {
		if v.Status == models.StatusActive {
			n++
		}
	}
	return n
}
