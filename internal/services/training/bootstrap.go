package training

import (
	"context"
	"errors"
	"math"

	"CreditLens/internal/domain/models"
)

// bootstrapRows is the size of the synthetic training set used to seed an
// empty registry.
const bootstrapRows = 400

// Bootstrap seeds an empty registry with an initial model trained on a
// deterministic synthetic population, so scoring works before the first real
// retraining lands. It is a no-op when an active model already exists.
func (c *Coordinator) Bootstrap(ctx context.Context) error {
	if _, err := c.registry.Active(); err == nil {
		return nil
	} else if !errors.Is(err, models.ErrNoActiveModel) {
		return err
	}

	rows := syntheticTrainingSet(bootstrapRows, len(c.schema))
	cand, err := c.Submit(ctx, rows)
	if err != nil {
		return err
	}
	ok, err := c.Validate(ctx, cand.ID)
	if err != nil {
		return err
	}
	if !ok {
		return &models.TrainingError{Reason: "bootstrap model failed validation"}
	}
	return c.Promote(cand.ID)
}

// lcg is a fixed-seed linear congruential generator. Plain math/rand would do,
// but pinning the recurrence here keeps the bootstrap population identical
// across Go releases.
type lcg struct{ state uint64 }

func newLCG() *lcg { return &lcg{state: 0x5DEECE66D} }

func (g *lcg) next() float64 {
	g.state = g.state*6364136223846793005 + 1442695040888963407
	return float64(g.state>>11) / float64(1<<53)
}

// syntheticPoints generates the fixed evaluation grid used by the
// attribution-consistency gate.
func syntheticPoints(n, nFeat int) [][]float64 {
	g := newLCG()
	out := make([][]float64, n)
	for i := range out {
		x := make([]float64, nFeat)
		for j := range x {
			x[j] = 2*g.next() - 1
		}
		out[i] = x
	}
	return out
}

// syntheticTrainingSet draws feature vectors from the same generator and
// labels them with a fixed latent linear rule plus noise, so both classes are
// always present and the fitted weights are reproducible.
func syntheticTrainingSet(n, nFeat int) []models.TrainingRow {
	g := newLCG()
	rows := make([]models.TrainingRow, n)
	for i := range rows {
		x := make([]float64, nFeat)
		latent := 0.0
		for j := range x {
			x[j] = 2*g.next() - 1
			latent += math.Cos(float64(j+1)) * x[j]
		}
		latent += 0.5 * (2*g.next() - 1)
		rows[i] = models.TrainingRow{Features: x, Distress: latent > 0}
	}
	return rows
}
