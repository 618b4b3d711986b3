package training

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"CreditLens/internal/domain/models"
)

// holdoutMetrics evaluates a trained version on its holdout rows. Distress is
// the positive class throughout.
func holdoutMetrics(v *models.ModelVersion, holdout []models.TrainingRow) (accuracy, f1, auc float64) {
	var tp, tn, fp, fn float64
	probs := make([]float64, len(holdout))
	for i, r := range holdout {
		p := pDistress(v, r.Features)
		probs[i] = p
		predicted := p >= 0.5
		switch {
		case predicted && r.Distress:
			tp++
		case predicted && !r.Distress:
			fp++
		case !predicted && r.Distress:
			fn++
		default:
			tn++
		}
	}

	n := float64(len(holdout))
	accuracy = (tp + tn) / n

	if tp > 0 {
		precision := tp / (tp + fp)
		recall := tp / (tp + fn)
		f1 = 2 * precision * recall / (precision + recall)
	}

	auc = aucROC(probs, holdout)
	return accuracy, f1, auc
}

// aucROC is the Mann-Whitney formulation: the probability that a random
// distressed row scores a higher p than a random healthy one, ties at half.
func aucROC(probs []float64, rows []models.TrainingRow) float64 {
	var pos, neg []float64
	for i, r := range rows {
		if r.Distress {
			pos = append(pos, probs[i])
		} else {
			neg = append(neg, probs[i])
		}
	}
	if len(pos) == 0 || len(neg) == 0 {
		return 0.5
	}
	wins := 0.0
	for _, p := range pos {
		for _, q := range neg {
			switch {
			case p > q:
				wins++
			case p == q:
				wins += 0.5
			}
		}
	}
	return wins / float64(len(pos)*len(neg))
}

// attributionConsistency is the mean cosine similarity between the candidate's
// and the active model's per-feature attribution vectors over a fixed
// evaluation set. Both models must share the feature schema; a schema drift
// scores zero and fails validation loudly rather than silently.
func attributionConsistency(cand, active *models.ModelVersion, evalSet [][]float64) float64 {
	if !sameSchema(cand, active) || len(evalSet) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range evalSet {
		a := logitContributions(cand, x)
		b := logitContributions(active, x)
		sum += cosine(a, b)
	}
	return sum / float64(len(evalSet))
}

// logitContributions are the raw signed per-feature contributions in logit
// space against the model's reference population point.
func logitContributions(v *models.ModelVersion, x []float64) []float64 {
	out := make([]float64, len(v.Weights))
	for i, w := range v.Weights {
		scale := v.Scales[i]
		if scale <= 0 {
			scale = 1
		}
		out[i] = w * (x[i] - v.ReferenceMeans[i]) / scale
	}
	return out
}

func cosine(a, b []float64) float64 {
	na := math.Sqrt(floats.Dot(a, a))
	nb := math.Sqrt(floats.Dot(b, b))
	if na < 1e-12 || nb < 1e-12 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

// importanceStability is the Spearman rank correlation of feature importances
// (absolute standardized weights) between candidate and active model.
func importanceStability(cand, active *models.ModelVersion) float64 {
	if !sameSchema(cand, active) {
		return 0
	}
	ra := ranks(absAll(cand.Weights))
	rb := ranks(absAll(active.Weights))
	r := stat.Correlation(ra, rb, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

func sameSchema(a, b *models.ModelVersion) bool {
	if len(a.FeatureSchema) != len(b.FeatureSchema) {
		return false
	}
	for i := range a.FeatureSchema {
		if a.FeatureSchema[i] != b.FeatureSchema[i] {
			return false
		}
	}
	return true
}

func absAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = math.Abs(x)
	}
	return out
}

// ranks assigns fractional ranks, averaging ties so equal importances do not
// depend on input order.
func ranks(xs []float64) []float64 {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	out := make([]float64, len(xs))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && xs[idx[j+1]] == xs[idx[i]] {
			j++
		}
		avg := float64(i+j) / 2
		for k := i; k <= j; k++ {
			out[idx[k]] = avg
		}
		i = j + 1
	}
	return out
}
