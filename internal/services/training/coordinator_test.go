package training

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CreditLens/internal/domain/models"
	"CreditLens/internal/services/scoring"
	"CreditLens/pkg/logger"
)

func testCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return NewCoordinator(scoring.NewRegistry(), testSchema, DefaultCoordinatorConfig(), log)
}

func TestCoordinatorSubmitValidatePromote(t *testing.T) {
	c := testCoordinator(t)
	ctx := context.Background()

	cand, err := c.Submit(ctx, separableRows(105))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCandidate, cand.Status)

	ok, err := c.Validate(ctx, cand.ID)
	require.NoError(t, err)
	assert.True(t, ok, "first model has nothing to regress against")

	require.NoError(t, c.Promote(cand.ID))
	active, err := c.registry.Active()
	require.NoError(t, err)
	assert.Equal(t, cand.ID, active.ID)
}

func TestCoordinatorEquivalentCandidatePassesGates(t *testing.T) {
	c := testCoordinator(t)
	ctx := context.Background()

	first, err := c.Submit(ctx, separableRows(105))
	require.NoError(t, err)
	_, err = c.Validate(ctx, first.ID)
	require.NoError(t, err)
	require.NoError(t, c.Promote(first.ID))

	second, err := c.Submit(ctx, separableRows(105))
	require.NoError(t, err)
	ok, err := c.Validate(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 1.0, second.Metrics.AttributionConsistency, 1e-9)
	assert.InDelta(t, 1.0, second.Metrics.ImportanceStability, 1e-9)

	require.NoError(t, c.Promote(second.ID))
	st, err := c.registry.Status(first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRetired, st)
}

func TestCoordinatorRejectsRegressedCandidate(t *testing.T) {
	c := testCoordinator(t)
	ctx := context.Background()

	good, err := c.Submit(ctx, separableRows(105))
	require.NoError(t, err)
	_, err = c.Validate(ctx, good.ID)
	require.NoError(t, err)
	require.NoError(t, c.Promote(good.ID))

	bad, err := c.Submit(ctx, noiseRows(104))
	require.NoError(t, err)
	ok, err := c.Validate(ctx, bad.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	st, err := c.registry.Status(bad.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, st)

	// Live scoring is untouched by the rejection.
	active, err := c.registry.Active()
	require.NoError(t, err)
	assert.Equal(t, good.ID, active.ID)
}

func TestCoordinatorValidateRequiresCandidateStatus(t *testing.T) {
	c := testCoordinator(t)
	ctx := context.Background()

	cand, err := c.Submit(ctx, separableRows(105))
	require.NoError(t, err)
	_, err = c.Validate(ctx, cand.ID)
	require.NoError(t, err)

	_, err = c.Validate(ctx, cand.ID)
	var terr *models.TrainingError
	assert.ErrorAs(t, err, &terr, "a concluded candidate cannot be re-validated")
}

func TestCoordinatorActiveMetrics(t *testing.T) {
	c := testCoordinator(t)
	ctx := context.Background()

	_, err := c.ActiveMetrics()
	assert.ErrorIs(t, err, models.ErrNoActiveModel)

	cand, err := c.Submit(ctx, separableRows(105))
	require.NoError(t, err)
	_, err = c.Validate(ctx, cand.ID)
	require.NoError(t, err)
	require.NoError(t, c.Promote(cand.ID))

	m, err := c.ActiveMetrics()
	require.NoError(t, err)
	assert.Equal(t, cand.ID, m.ModelVersion)
	assert.Equal(t, cand.Metrics.Accuracy, m.Accuracy)
	assert.Equal(t, cand.Metrics.AUC, m.AUCROC)
}

func TestCoordinatorBootstrap(t *testing.T) {
	c := testCoordinator(t)
	ctx := context.Background()

	require.NoError(t, c.Bootstrap(ctx))
	active, err := c.registry.Active()
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, active.Status)

	// Idempotent: a second bootstrap leaves the active model alone.
	require.NoError(t, c.Bootstrap(ctx))
	again, err := c.registry.Active()
	require.NoError(t, err)
	assert.Equal(t, active.ID, again.ID)
}
