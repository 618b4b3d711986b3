package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CreditLens/internal/domain/models"
	"CreditLens/internal/services/scoring"
	"CreditLens/internal/services/training"
)

func trainingRows(n int) []models.TrainingRow {
	rows := make([]models.TrainingRow, n)
	for i := range rows {
		x0 := float64(i%21) - 9.5
		rows[i] = models.TrainingRow{
			Features: []float64{x0, float64(i%7) - 3},
			Distress: x0 < 0,
		}
	}
	return rows
}

func TestRetrainJobTrainsValidatesPromotes(t *testing.T) {
	registry := scoring.NewRegistry()
	coord := training.NewCoordinator(registry,
		[]string{"price_last", "sentiment_30d"},
		training.DefaultCoordinatorConfig(), testLogger(t))
	job := NewRetrainJob(coord, testLogger(t))

	assert.Equal(t, RetrainMessageType, job.Type())

	err := job.Handle(context.Background(), RetrainPayload{
		Rows:        trainingRows(105),
		AutoPromote: true,
	})
	require.NoError(t, err)

	active, err := registry.Active()
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, active.Status)
}

func TestRetrainJobWithoutAutoPromoteLeavesCandidateValidated(t *testing.T) {
	registry := scoring.NewRegistry()
	coord := training.NewCoordinator(registry,
		[]string{"price_last", "sentiment_30d"},
		training.DefaultCoordinatorConfig(), testLogger(t))
	job := NewRetrainJob(coord, testLogger(t))

	require.NoError(t, job.Handle(context.Background(), RetrainPayload{Rows: trainingRows(105)}))

	_, err := registry.Active()
	assert.ErrorIs(t, err, models.ErrNoActiveModel)
	st, err := registry.Status(1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusValidated, st)
}

func TestRetrainJobRejectsBadPayload(t *testing.T) {
	registry := scoring.NewRegistry()
	coord := training.NewCoordinator(registry,
		[]string{"price_last"}, training.DefaultCoordinatorConfig(), testLogger(t))
	job := NewRetrainJob(coord, testLogger(t))

	assert.Error(t, job.Handle(context.Background(), 42))
	assert.Error(t, job.Handle(context.Background(), RetrainPayload{Rows: nil}))
}
