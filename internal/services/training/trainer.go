// Package training trains candidate model versions and coordinates their
// validation and promotion.
package training

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"CreditLens/internal/domain/models"
)

// TrainerConfig holds the deterministic gradient-descent settings. No
// randomness anywhere: initialization is zeros, the holdout split is every
// k-th row, and epochs/learning rate are fixed.
type TrainerConfig struct {
	Epochs       int
	LearningRate float64
	L2           float64
	HoldoutEvery int // every k-th row goes to the holdout set
	Thresholds   models.RiskThresholds
}

// DefaultTrainerConfig returns the settings used when config omits them.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Epochs:       400,
		LearningRate: 0.1,
		L2:           1e-3,
		HoldoutEvery: 5,
		Thresholds:   models.RiskThresholds{Low: 70, Medium: 40},
	}
}

// Train fits a logistic-regression candidate on the given rows. It returns a
// TrainingError on bad data and respects ctx cancellation: a canceled run
// simply discards the partial candidate, nothing shared is touched.
func Train(ctx context.Context, schema []string, rows []models.TrainingRow, cfg TrainerConfig) (*models.ModelVersion, error) {
	if len(schema) == 0 {
		return nil, &models.TrainingError{Reason: "empty feature schema"}
	}
	if len(rows) < 2*cfg.HoldoutEvery {
		return nil, &models.TrainingError{Reason: "not enough training rows"}
	}
	for i, r := range rows {
		if len(r.Features) != len(schema) {
			return nil, &models.TrainingError{Reason: "row feature count does not match schema"}
		}
		for _, v := range r.Features {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &models.TrainingError{Reason: "non-finite feature value in training data"}
			}
		}
		_ = i
	}

	train, holdout := split(rows, cfg.HoldoutEvery)
	if !bothClasses(train) || !bothClasses(holdout) {
		return nil, &models.TrainingError{Reason: "training data must contain both outcome classes"}
	}

	nFeat := len(schema)
	means, scales := standardization(train, nFeat)

	// Full-batch gradient descent on standardized features, zero init.
	w := make([]float64, nFeat)
	bias := 0.0
	n := float64(len(train))
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, &models.TrainingError{Reason: "training canceled", Err: err}
		}
		gw := make([]float64, nFeat)
		gb := 0.0
		for _, r := range train {
			m := bias
			for j := range w {
				m += w[j] * z(r.Features[j], means[j], scales[j])
			}
			diff := sigmoid(m) - label(r.Distress)
			for j := range w {
				gw[j] += diff * z(r.Features[j], means[j], scales[j])
			}
			gb += diff
		}
		for j := range w {
			w[j] -= cfg.LearningRate * (gw[j]/n + cfg.L2*w[j])
		}
		bias -= cfg.LearningRate * gb / n
	}

	v := &models.ModelVersion{
		TrainedAt:      time.Now().UTC(),
		FeatureSchema:  append([]string(nil), schema...),
		Weights:        w,
		Bias:           bias,
		Means:          means,
		Scales:         scales,
		ReferenceMeans: rawMeans(train, nFeat),
		Thresholds:     cfg.Thresholds,
	}

	v.BaselineScore = meanScore(v, train)
	v.Metrics.Accuracy, v.Metrics.F1, v.Metrics.AUC = holdoutMetrics(v, holdout)
	return v, nil
}

func split(rows []models.TrainingRow, every int) (train, holdout []models.TrainingRow) {
	if every < 2 {
		every = 5
	}
	for i, r := range rows {
		if i%every == 0 {
			holdout = append(holdout, r)
		} else {
			train = append(train, r)
		}
	}
	return train, holdout
}

func bothClasses(rows []models.TrainingRow) bool {
	var pos, neg bool
	for _, r := range rows {
		if r.Distress {
			pos = true
		} else {
			neg = true
		}
	}
	return pos && neg
}

func standardization(rows []models.TrainingRow, nFeat int) (means, scales []float64) {
	means = make([]float64, nFeat)
	scales = make([]float64, nFeat)
	col := make([]float64, len(rows))
	for j := 0; j < nFeat; j++ {
		for i, r := range rows {
			col[i] = r.Features[j]
		}
		means[j] = stat.Mean(col, nil)
		scales[j] = stat.StdDev(col, nil)
		if scales[j] <= 0 || math.IsNaN(scales[j]) {
			scales[j] = 1
		}
	}
	return means, scales
}

func rawMeans(rows []models.TrainingRow, nFeat int) []float64 {
	out := make([]float64, nFeat)
	col := make([]float64, len(rows))
	for j := 0; j < nFeat; j++ {
		for i, r := range rows {
			col[i] = r.Features[j]
		}
		out[j] = stat.Mean(col, nil)
	}
	return out
}

// meanScore is the model's expected score over the training reference
// population; explanations attribute against it.
func meanScore(v *models.ModelVersion, rows []models.TrainingRow) float64 {
	sum := 0.0
	for _, r := range rows {
		sum += scoreOf(v, r.Features)
	}
	return sum / float64(len(rows))
}

func scoreOf(v *models.ModelVersion, x []float64) float64 {
	return (1 - pDistress(v, x)) * 100
}

func pDistress(v *models.ModelVersion, x []float64) float64 {
	m := v.Bias
	for j, w := range v.Weights {
		m += w * z(x[j], v.Means[j], v.Scales[j])
	}
	return sigmoid(m)
}

func z(x, mean, scale float64) float64 {
	if scale <= 0 {
		return 0
	}
	return (x - mean) / scale
}

func sigmoid(m float64) float64 { return 1 / (1 + math.Exp(-m)) }

func label(distress bool) float64 {
	if distress {
		return 1
	}
	return 0
}
