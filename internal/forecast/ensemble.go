package forecast

import (
	"fmt"
)

// EnsembleResult is the weighted combination of two or more forecasts.
type EnsembleResult struct {
	Forecast []float64   `json:"forecast"`
	Kinds    []ModelKind `json:"contributors"`
	Weights  []float64   `json:"weights"`
}

// Combine merges the point forecasts of two or more results into one
// weighted average. A nil weight vector means uniform weights. Custom
// weights must match the number of forecasts, be non-negative and not all
// zero; they are normalized to sum to 1 so the combination stays a convex
// average of its inputs.
func Combine(results []ForecastResult, weights []float64) (EnsembleResult, error) {
	if len(results) < 2 {
		return EnsembleResult{}, fmt.Errorf("%w: need at least 2 forecasts, have %d",
			ErrEnsembleUnavailable, len(results))
	}

	h := len(results[0].Forecast)
	for _, r := range results[1:] {
		if len(r.Forecast) != h {
			return EnsembleResult{}, fmt.Errorf("%w: forecast length mismatch (%s has %d, %s has %d)",
				ErrEnsembleUnavailable, results[0].Kind, h, r.Kind, len(r.Forecast))
		}
	}

	if weights == nil {
		weights = make([]float64, len(results))
		for i := range weights {
			weights[i] = 1 / float64(len(results))
		}
	} else {
		if len(weights) != len(results) {
			return EnsembleResult{}, fmt.Errorf("%w: %d weights for %d forecasts",
				ErrEnsembleUnavailable, len(weights), len(results))
		}
		var sum float64
		for _, w := range weights {
			if w < 0 {
				return EnsembleResult{}, fmt.Errorf("%w: negative weight %v", ErrEnsembleUnavailable, w)
			}
			sum += w
		}
		if sum == 0 {
			return EnsembleResult{}, fmt.Errorf("%w: weights sum to zero", ErrEnsembleUnavailable)
		}
		normalized := make([]float64, len(weights))
		for i, w := range weights {
			normalized[i] = w / sum
		}
		weights = normalized
	}

	combined := make([]float64, h)
	kinds := make([]ModelKind, len(results))
	for i, r := range results {
		kinds[i] = r.Kind
		for j, v := range r.Forecast {
			combined[j] += v * weights[i]
		}
	}

	return EnsembleResult{Forecast: combined, Kinds: kinds, Weights: weights}, nil
}
