package training

import (
	"context"
	"errors"
	"fmt"

	"CreditLens/internal/domain/models"
	domsvc "CreditLens/internal/domain/service"
	"CreditLens/internal/services/scoring"
	"CreditLens/pkg/logger"
)

// CoordinatorConfig tunes the validation gates a candidate must clear before
// it may be promoted.
type CoordinatorConfig struct {
	Trainer TrainerConfig

	// RegressionTolerance is how far a candidate's holdout metrics may trail
	// the active model's before it is rejected.
	RegressionTolerance float64
	// ConsistencyThreshold is the minimum mean attribution cosine similarity
	// against the active model over the fixed evaluation set.
	ConsistencyThreshold float64
	// StabilityThreshold is the minimum importance rank correlation against
	// the active model.
	StabilityThreshold float64
	// EvalSetSize is the number of synthetic points in the fixed evaluation
	// set used for the explanation-stability gates.
	EvalSetSize int
}

func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		Trainer:              DefaultTrainerConfig(),
		RegressionTolerance:  0.02,
		ConsistencyThreshold: 0.80,
		StabilityThreshold:   0.70,
		EvalSetSize:          64,
	}
}

// Coordinator drives the candidate -> validated/rejected -> active/retired
// lifecycle on top of the model registry. Scoring keeps using the current
// active version while training and validation run; the swap itself is the
// registry's atomic promotion.
type Coordinator struct {
	registry *scoring.Registry
	schema   []string
	cfg      CoordinatorConfig
	log      *logger.Logger

	// evalSet is generated once, deterministically, so consistency checks
	// compare candidate and active over the same points every time.
	evalSet [][]float64
}

func NewCoordinator(registry *scoring.Registry, schema []string, cfg CoordinatorConfig, log *logger.Logger) *Coordinator {
	if cfg.EvalSetSize <= 0 {
		cfg.EvalSetSize = 64
	}
	return &Coordinator{
		registry: registry,
		schema:   schema,
		cfg:      cfg,
		log:      log,
		evalSet:  syntheticPoints(cfg.EvalSetSize, len(schema)),
	}
}

// Submit trains a candidate on the given rows and registers it. The candidate
// never affects live scoring until it is validated and promoted. A canceled
// or failed run leaves the registry untouched.
func (c *Coordinator) Submit(ctx context.Context, rows []models.TrainingRow) (*models.ModelVersion, error) {
	v, err := Train(ctx, c.schema, rows, c.cfg.Trainer)
	if err != nil {
		c.log.Error("candidate training failed", logger.Error(err), logger.Int("rows", len(rows)))
		return nil, err
	}
	v = c.registry.Add(v)
	c.log.Info("candidate model trained",
		logger.Uint64("model_version", v.ID),
		logger.Int("rows", len(rows)),
		logger.Any("holdout_metrics", v.Metrics))
	return v, nil
}

// Validate runs the candidate through the quality and explanation-stability
// gates and transitions it to validated or rejected. The first model in an
// empty registry has no active model to compare against and passes on its own
// holdout metrics.
func (c *Coordinator) Validate(ctx context.Context, candidateID uint64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	cand, err := c.registry.Get(candidateID)
	if err != nil {
		return false, err
	}
	st, err := c.registry.Status(candidateID)
	if err != nil {
		return false, err
	}
	if st != models.StatusCandidate {
		return false, &models.TrainingError{Reason: fmt.Sprintf("cannot validate model in status %s", st)}
	}

	active, err := c.registry.Active()
	switch {
	case errors.Is(err, models.ErrNoActiveModel):
		// Bootstrap case: nothing to regress against.
		cand.Metrics.AttributionConsistency = 1
		cand.Metrics.ImportanceStability = 1
		return c.conclude(cand, true, "first model")
	case err != nil:
		return false, err
	}

	cand.Metrics.AttributionConsistency = attributionConsistency(cand, active, c.evalSet)
	cand.Metrics.ImportanceStability = importanceStability(cand, active)

	tol := c.cfg.RegressionTolerance
	switch {
	case cand.Metrics.Accuracy < active.Metrics.Accuracy-tol:
		return c.conclude(cand, false, "accuracy regression")
	case cand.Metrics.F1 < active.Metrics.F1-tol:
		return c.conclude(cand, false, "f1 regression")
	case cand.Metrics.AUC < active.Metrics.AUC-tol:
		return c.conclude(cand, false, "auc regression")
	case cand.Metrics.AttributionConsistency < c.cfg.ConsistencyThreshold:
		return c.conclude(cand, false, "attribution consistency below threshold")
	case cand.Metrics.ImportanceStability < c.cfg.StabilityThreshold:
		return c.conclude(cand, false, "importance stability below threshold")
	}
	return c.conclude(cand, true, "all gates passed")
}

func (c *Coordinator) conclude(cand *models.ModelVersion, pass bool, reason string) (bool, error) {
	status := models.StatusRejected
	if pass {
		status = models.StatusValidated
	}
	if err := c.registry.SetStatus(cand.ID, status); err != nil {
		return false, err
	}
	c.log.Info("candidate validation concluded",
		logger.Uint64("model_version", cand.ID),
		logger.Bool("validated", pass),
		logger.String("reason", reason))
	return pass, nil
}

// Promote atomically activates a validated candidate and retires the previous
// active model. Conflicting concurrent promotions surface as
// models.ErrPromotionConflict for the caller to retry.
func (c *Coordinator) Promote(candidateID uint64) error {
	if err := c.registry.Promote(candidateID); err != nil {
		return err
	}
	c.log.Info("model promoted", logger.Uint64("model_version", candidateID))
	return nil
}

// ActiveMetrics exposes the active model's holdout metrics for observability.
func (c *Coordinator) ActiveMetrics() (models.ActiveModelMetrics, error) {
	v, err := c.registry.Active()
	if err != nil {
		return models.ActiveModelMetrics{}, err
	}
	return models.ActiveModelMetrics{
		ModelVersion:               v.ID,
		Accuracy:                   v.Metrics.Accuracy,
		F1Score:                    v.Metrics.F1,
		AUCROC:                     v.Metrics.AUC,
		SHAPConsistency:            v.Metrics.AttributionConsistency,
		FeatureImportanceStability: v.Metrics.ImportanceStability,
	}, nil
}

var _ domsvc.Coordinator = (*Coordinator)(nil)
