package features

import (
	"math"

	"CreditLens/internal/domain/models"
)

// Latest returns the observation with the greatest observed_at. When several
// share that timestamp the one with the latest ingested_at wins. Input must be
// ordered by observed_at then ingested_at ascending (store contract), so this
// is just the last element.
func Latest(obs []models.Observation) (models.Observation, bool) {
	if len(obs) == 0 {
		return models.Observation{}, false
	}
	return obs[len(obs)-1], true
}

// Mean computes the arithmetic mean of the observation values.
func Mean(obs []models.Observation) (float64, bool) {
	if len(obs) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, o := range obs {
		sum += o.Value
	}
	return sum / float64(len(obs)), true
}

// RateOfChange computes (last-first)/first over the window. Zero or negative
// first value yields no result rather than an unbounded ratio.
func RateOfChange(obs []models.Observation) (float64, bool) {
	if len(obs) < 2 {
		return 0, false
	}
	first := obs[0].Value
	last := obs[len(obs)-1].Value
	if first <= 0 {
		return 0, false
	}
	return (last - first) / first, true
}

// LogReturnVol computes the sample standard deviation of successive log
// returns over the window.
func LogReturnVol(obs []models.Observation) (float64, bool) {
	if len(obs) < 3 {
		return 0, false
	}
	rets := make([]float64, 0, len(obs)-1)
	for i := 1; i < len(obs); i++ {
		prev, cur := obs[i-1].Value, obs[i].Value
		if prev <= 0 || cur <= 0 {
			continue
		}
		rets = append(rets, math.Log(cur/prev))
	}
	if len(rets) < 2 {
		return 0, false
	}
	sum, sum2 := 0.0, 0.0
	for _, r := range rets {
		sum += r
		sum2 += r * r
	}
	n := float64(len(rets))
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance), true
}

// LogLast returns ln of the latest value; non-positive values yield no result.
func LogLast(obs []models.Observation) (float64, bool) {
	last, ok := Latest(obs)
	if !ok || last.Value <= 0 {
		return 0, false
	}
	return math.Log(last.Value), true
}

// Apply runs the spec's aggregation over the window's observations.
// ok=false means the window could not produce a value and imputation applies.
func Apply(spec Spec, obs []models.Observation) (float64, bool) {
	switch spec.Agg {
	case AggLast:
		if o, ok := Latest(obs); ok {
			return o.Value, true
		}
		return 0, false
	case AggMean:
		return Mean(obs)
	case AggROC:
		return RateOfChange(obs)
	case AggVol:
		return LogReturnVol(obs)
	case AggLogLast:
		return LogLast(obs)
	default:
		return 0, false
	}
}
