package forecast

import (
	"fmt"
	"math"
)

// mapeEpsilon guards the MAPE denominator when a reference value is exactly
// zero.
const mapeEpsilon = 1e-10

// MetricsReport scores one forecast against a reference sequence.
type MetricsReport struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	MAPE float64 `json:"mape"`
}

// Score computes MAE, RMSE and MAPE between a reference and a candidate
// sequence. The sequences must be non-empty and of equal length; a mismatch
// is reported, never silently truncated.
func Score(reference, candidate []float64) (MetricsReport, error) {
	if len(reference) == 0 {
		return MetricsReport{}, fmt.Errorf("%w: empty reference", ErrMetricsUnavailable)
	}
	if len(reference) != len(candidate) {
		return MetricsReport{}, fmt.Errorf("%w: length mismatch (reference %d, candidate %d)",
			ErrMetricsUnavailable, len(reference), len(candidate))
	}

	var absSum, sqSum, pctSum float64
	for i, ref := range reference {
		diff := ref - candidate[i]
		absSum += math.Abs(diff)
		sqSum += diff * diff
		pctSum += math.Abs(diff) / (math.Abs(ref) + mapeEpsilon)
	}
	n := float64(len(reference))
	return MetricsReport{
		MAE:  absSum / n,
		RMSE: math.Sqrt(sqSum / n),
		MAPE: pctSum / n * 100,
	}, nil
}
