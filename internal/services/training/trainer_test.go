package training

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CreditLens/internal/domain/models"
)

var testSchema = []string{"price_last", "sentiment_30d"}

// separableRows is a cleanly separable population: distress tracks the first
// feature's sign with a margin around zero.
func separableRows(n int) []models.TrainingRow {
	rows := make([]models.TrainingRow, n)
	for i := range rows {
		x0 := float64(i%21) - 9.5
		x1 := math.Sin(float64(i))
		rows[i] = models.TrainingRow{
			Features: []float64{x0, x1},
			Distress: x0 < 0,
		}
	}
	return rows
}

// noiseRows carry labels independent of the features.
func noiseRows(n int) []models.TrainingRow {
	rows := make([]models.TrainingRow, n)
	for i := range rows {
		x0 := float64(i%21) - 9.5
		x1 := math.Sin(float64(i))
		rows[i] = models.TrainingRow{
			Features: []float64{x0, x1},
			Distress: i%2 == 0,
		}
	}
	return rows
}

func TestTrainLearnsSeparableData(t *testing.T) {
	v, err := Train(context.Background(), testSchema, separableRows(105), DefaultTrainerConfig())
	require.NoError(t, err)

	assert.Equal(t, testSchema, v.FeatureSchema)
	assert.Negative(t, v.Weights[0], "distress tracks low values of the first feature")
	assert.GreaterOrEqual(t, v.Metrics.Accuracy, 0.9)
	assert.GreaterOrEqual(t, v.Metrics.AUC, 0.95)
	assert.GreaterOrEqual(t, v.Metrics.F1, 0.9)
}

func TestTrainIsDeterministic(t *testing.T) {
	rows := separableRows(105)
	a, err := Train(context.Background(), testSchema, rows, DefaultTrainerConfig())
	require.NoError(t, err)
	b, err := Train(context.Background(), testSchema, rows, DefaultTrainerConfig())
	require.NoError(t, err)

	assert.Equal(t, a.Weights, b.Weights)
	assert.Equal(t, a.Bias, b.Bias)
	assert.Equal(t, a.BaselineScore, b.BaselineScore)
	assert.Equal(t, a.Metrics, b.Metrics)
}

func TestTrainBaselineIsMeanTrainingScore(t *testing.T) {
	v, err := Train(context.Background(), testSchema, separableRows(105), DefaultTrainerConfig())
	require.NoError(t, err)

	assert.Greater(t, v.BaselineScore, 0.0)
	assert.Less(t, v.BaselineScore, 100.0)
	assert.Len(t, v.ReferenceMeans, len(testSchema))
}

func TestTrainRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Train(ctx, testSchema, separableRows(105), DefaultTrainerConfig())
	var terr *models.TrainingError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrainRejectsBadData(t *testing.T) {
	cfg := DefaultTrainerConfig()

	cases := map[string][]models.TrainingRow{
		"too few rows": separableRows(5),
		"single class": func() []models.TrainingRow {
			rows := separableRows(105)
			for i := range rows {
				rows[i].Distress = true
			}
			return rows
		}(),
		"feature count mismatch": func() []models.TrainingRow {
			rows := separableRows(105)
			rows[3].Features = []float64{1}
			return rows
		}(),
		"non-finite value": func() []models.TrainingRow {
			rows := separableRows(105)
			rows[7].Features[1] = math.NaN()
			return rows
		}(),
	}

	for name, rows := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Train(context.Background(), testSchema, rows, cfg)
			var terr *models.TrainingError
			assert.ErrorAs(t, err, &terr)
		})
	}
}

func TestRanksAverageTies(t *testing.T) {
	r := ranks([]float64{2, 1, 2, 3})
	assert.Equal(t, []float64{1.5, 0, 1.5, 3}, r)
}

func TestAUCPerfectSeparation(t *testing.T) {
	rows := []models.TrainingRow{
		{Distress: true}, {Distress: true},
		{Distress: false}, {Distress: false},
	}
	assert.Equal(t, 1.0, aucROC([]float64{0.9, 0.8, 0.2, 0.1}, rows))
	assert.Equal(t, 0.0, aucROC([]float64{0.1, 0.2, 0.8, 0.9}, rows))
}
