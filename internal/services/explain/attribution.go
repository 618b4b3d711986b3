// Package explain computes per-feature attributions and renders them into
// ranked key factors plus a plain-language summary.
package explain

import (
	"errors"
	"math"
	"sort"

	"CreditLens/internal/domain/models"
	domsvc "CreditLens/internal/domain/service"
	"CreditLens/internal/services/scoring"
)

// ErrIncoherentInputs guards the referential coherence invariant: an
// explanation is only ever derived from the exact snapshot and model version
// that produced the score record.
var ErrIncoherentInputs = errors.New("explanation inputs do not match the score record")

// Generator produces explanations for score records. The attribution is the
// exact closed-form variant (no sampling), so re-running on the identical
// triple yields identical output.
type Generator struct {
	labels map[string]string
	topK   int
}

// NewGenerator builds a generator with a static feature->label table and the
// number of key factors to keep.
func NewGenerator(labels map[string]string, topK int) *Generator {
	if topK <= 0 {
		topK = 5
	}
	return &Generator{labels: labels, topK: topK}
}

// Explain computes signed per-feature contributions that sum to
// rec.Score - version.BaselineScore, ranks them by magnitude, and renders the
// narrative.
func (g *Generator) Explain(snapshot models.FeatureSnapshot, version *models.ModelVersion, rec models.ScoreRecord) (models.Explanation, error) {
	if rec.IssuerID != snapshot.IssuerID ||
		rec.SnapshotVersion != snapshot.Version ||
		rec.ModelVersionID != version.ID {
		return models.Explanation{}, ErrIncoherentInputs
	}

	contribs, err := Attributions(snapshot, version, rec.Score)
	if err != nil {
		return models.Explanation{}, err
	}

	factors := make([]models.KeyFactor, len(version.FeatureSchema))
	for i, name := range version.FeatureSchema {
		factors[i] = models.KeyFactor{
			Feature:      name,
			Label:        g.label(name),
			Contribution: contribs[i],
		}
	}

	// Rank by |contribution|; ties keep schema order so output is stable.
	sort.SliceStable(factors, func(i, j int) bool {
		return math.Abs(factors[i].Contribution) > math.Abs(factors[j].Contribution)
	})
	if len(factors) > g.topK {
		factors = factors[:g.topK]
	}

	return models.Explanation{
		IssuerID:        rec.IssuerID,
		ModelVersionID:  rec.ModelVersionID,
		SnapshotVersion: rec.SnapshotVersion,
		KeyFactors:      factors,
		Summary:         Narrative(rec, factors),
		BaselineScore:   version.BaselineScore,
	}, nil
}

// Attributions returns per-feature contributions in schema order. Raw
// contributions are computed in logit space against the model's reference
// population point, then rescaled so the signed sum equals exactly
// score - baseline.
func Attributions(snapshot models.FeatureSnapshot, version *models.ModelVersion, score float64) ([]float64, error) {
	x, err := scoring.Vector(snapshot, version)
	if err != nil {
		return nil, err
	}

	raw := make([]float64, len(x))
	total := 0.0
	for i, w := range version.Weights {
		scale := version.Scales[i]
		if scale <= 0 {
			scale = 1
		}
		raw[i] = w * (x[i] - version.ReferenceMeans[i]) / scale
		total += raw[i]
	}

	delta := score - version.BaselineScore
	out := make([]float64, len(raw))
	if math.Abs(total) < 1e-12 {
		// Flat logit difference: the score sits on the baseline, so spread the
		// residual evenly to preserve the sum property.
		per := delta / float64(len(raw))
		for i := range out {
			out[i] = per
		}
		return out, nil
	}
	k := delta / total
	for i, c := range raw {
		out[i] = c * k
	}
	return out, nil
}

func (g *Generator) label(feature string) string {
	if l, ok := g.labels[feature]; ok {
		return l
	}
	return feature
}

var _ domsvc.Explainer = (*Generator)(nil)
