package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"CreditLens/internal/domain/models"
	"CreditLens/internal/services/scoring"
)

// ClassScoreUseCase aggregates issuer-level scores into an asset-class view.
// Members are fanned out concurrently; a member without a persisted score is
// skipped rather than failing the aggregate.
type ClassScoreUseCase struct {
	pipeline *ScorePipeline
	registry *scoring.Registry
	classes  map[string][]string // asset class -> member issuers
	timeout  time.Duration
}

func NewClassScoreUseCase(pipeline *ScorePipeline, registry *scoring.Registry, classes map[string][]string) *ClassScoreUseCase {
	return &ClassScoreUseCase{
		pipeline: pipeline,
		registry: registry,
		classes:  classes,
		timeout:  10 * time.Second,
	}
}

// Classes lists the configured asset classes, sorted.
func (uc *ClassScoreUseCase) Classes() []string {
	out := make([]string, 0, len(uc.classes))
	for c := range uc.classes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// ClassScore computes the aggregate for one asset class: the mean member
// score, the minimum member confidence, and key factors summed per feature
// across members.
func (uc *ClassScoreUseCase) ClassScore(ctx context.Context, class string) (models.ClassScore, error) {
	members, ok := uc.classes[class]
	if !ok {
		return models.ClassScore{}, fmt.Errorf("unknown asset class %q", class)
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	type item struct {
		issuer string
		bundle models.ScoreBundle
		err    error
	}
	ch := make(chan item, len(members))
	var wg sync.WaitGroup
	for _, issuer := range members {
		wg.Add(1)
		go func(issuer string) {
			defer wg.Done()
			b, err := uc.pipeline.LatestScore(ctx, issuer)
			ch <- item{issuer, b, err}
		}(issuer)
	}
	go func() { wg.Wait(); close(ch) }()

	var (
		scored     []string
		sum        float64
		confidence = 1.0
		byFeature  = map[string]models.KeyFactor{}
	)
	for it := range ch {
		if it.err != nil {
			continue
		}
		scored = append(scored, it.issuer)
		sum += it.bundle.Score
		confidence = math.Min(confidence, it.bundle.Confidence)
		for _, f := range it.bundle.KeyFactors {
			agg := byFeature[f.Feature]
			agg.Feature = f.Feature
			agg.Label = f.Label
			agg.Contribution += f.Contribution
			byFeature[f.Feature] = agg
		}
	}
	if len(scored) == 0 {
		return models.ClassScore{}, models.ErrIssuerNotFound
	}
	sort.Strings(scored)

	version, err := uc.registry.Active()
	if err != nil {
		return models.ClassScore{}, err
	}

	score := sum / float64(len(scored))
	factors := make([]models.KeyFactor, 0, len(byFeature))
	for _, f := range byFeature {
		factors = append(factors, f)
	}
	sort.SliceStable(factors, func(i, j int) bool {
		if math.Abs(factors[i].Contribution) != math.Abs(factors[j].Contribution) {
			return math.Abs(factors[i].Contribution) > math.Abs(factors[j].Contribution)
		}
		return factors[i].Feature < factors[j].Feature
	})
	if len(factors) > 5 {
		factors = factors[:5]
	}

	return models.ClassScore{
		AssetClass: class,
		Score:      score,
		RiskLevel:  version.Thresholds.Bucket(score),
		Confidence: confidence,
		Members:    scored,
		KeyFactors: factors,
		ComputedAt: time.Now().UTC(),
	}, nil
}
