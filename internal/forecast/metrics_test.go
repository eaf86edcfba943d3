package forecast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreIdentity(t *testing.T) {
	y := []float64{3.5, -2, 0, 17.25}
	report, err := Score(y, y)
	require.NoError(t, err)
	assert.InDelta(t, 0, report.MAE, 1e-12)
	assert.InDelta(t, 0, report.RMSE, 1e-12)
	assert.InDelta(t, 0, report.MAPE, 1e-6)
}

func TestScoreKnownValues(t *testing.T) {
	report, err := Score([]float64{10, 20, 30}, []float64{12, 18, 33})
	require.NoError(t, err)
	assert.InDelta(t, 7.0/3, report.MAE, 1e-9)
	assert.InDelta(t, math.Sqrt(17.0/3), report.RMSE, 1e-9)
	// mean(2/10, 2/20, 3/30) * 100
	assert.InDelta(t, 100.0*(0.2+0.1+0.1)/3, report.MAPE, 1e-9)
}

func TestScoreUnavailable(t *testing.T) {
	cases := []struct {
		name      string
		reference []float64
		candidate []float64
	}{
		{"empty", nil, nil},
		{"mismatched lengths", []float64{1, 2, 3}, []float64{1, 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Score(tc.reference, tc.candidate)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMetricsUnavailable)
		})
	}
}

func TestScoreZeroReferenceGuard(t *testing.T) {
	report, err := Score([]float64{0, 10}, []float64{1, 10})
	require.NoError(t, err)
	assert.False(t, math.IsInf(report.MAPE, 0))
	assert.False(t, math.IsNaN(report.MAPE))
}
