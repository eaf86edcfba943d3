package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultWith(kind ModelKind, forecast ...float64) ForecastResult {
	return ForecastResult{Kind: kind, Forecast: forecast}
}

func TestCombineUniform(t *testing.T) {
	a := resultWith(KindStatistical, 10, 20, 30)
	b := resultWith(KindAdditive, 20, 10, 40)

	out, err := Combine([]ForecastResult{a, b}, nil)
	require.NoError(t, err)
	require.Len(t, out.Forecast, 3)
	for i := range out.Forecast {
		want := (a.Forecast[i] + b.Forecast[i]) / 2
		assert.InDelta(t, want, out.Forecast[i], 1e-12, "step %d", i)
	}
	assert.Equal(t, []ModelKind{KindStatistical, KindAdditive}, out.Kinds)
	assert.InDelta(t, 0.5, out.Weights[0], 1e-12)
}

func TestCombineNormalizesWeights(t *testing.T) {
	a := resultWith(KindStatistical, 10, 10)
	b := resultWith(KindSequential, 20, 20)

	// 3:1 expressed in unnormalized units.
	out, err := Combine([]ForecastResult{a, b}, []float64{6, 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, out.Weights[0], 1e-12)
	assert.InDelta(t, 12.5, out.Forecast[0], 1e-12)
}

func TestCombineUnavailable(t *testing.T) {
	a := resultWith(KindStatistical, 1, 2)
	b := resultWith(KindAdditive, 1, 2)
	short := resultWith(KindSequential, 1)

	cases := []struct {
		name    string
		results []ForecastResult
		weights []float64
	}{
		{"single forecast", []ForecastResult{a}, nil},
		{"length mismatch", []ForecastResult{a, short}, nil},
		{"weight count mismatch", []ForecastResult{a, b}, []float64{1}},
		{"negative weight", []ForecastResult{a, b}, []float64{1, -1}},
		{"zero-sum weights", []ForecastResult{a, b}, []float64{0, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Combine(tc.results, tc.weights)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrEnsembleUnavailable)
		})
	}
}
