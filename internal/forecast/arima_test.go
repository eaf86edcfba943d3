package forecast

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noisySine mixes a second incommensurate cycle in so regressions stay well
// conditioned without randomness.
func noisySine(i int) float64 {
	return weeklySine(i) + 0.4*math.Cos(2*math.Pi*float64(i)/11)
}

func assertBounds(t *testing.T, r ForecastResult, horizon int) {
	t.Helper()
	require.Len(t, r.Forecast, horizon)
	require.Len(t, r.Lower, horizon)
	require.Len(t, r.Upper, horizon)
	for i := range r.Forecast {
		assert.False(t, math.IsNaN(r.Forecast[i]), "forecast step %d is NaN", i)
		assert.LessOrEqual(t, r.Lower[i], r.Forecast[i]+1e-6, "lower bound above forecast at step %d", i)
		assert.LessOrEqual(t, r.Forecast[i], r.Upper[i]+1e-6, "forecast above upper bound at step %d", i)
	}
}

func TestStatisticalModelOnSeasonalSeries(t *testing.T) {
	model := NewStatisticalModel(DefaultOptions())
	series := makeSeries(60, noisySine)

	result, err := model.Train(context.Background(), series, 7)
	require.NoError(t, err)
	assertBounds(t, result, 7)

	// A clean seasonal signal should extrapolate within the historical
	// envelope.
	for i, v := range result.Forecast {
		assert.Greater(t, v, 10.0, "step %d", i)
		assert.Less(t, v, 40.0, "step %d", i)
	}
}

func TestStatisticalModelInsufficientData(t *testing.T) {
	model := NewStatisticalModel(DefaultOptions())
	series := makeSeries(20, weeklySine)

	_, err := model.Train(context.Background(), series, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestStatisticalModelCancelled(t *testing.T) {
	model := NewStatisticalModel(DefaultOptions())
	series := makeSeries(60, noisySine)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := model.Train(ctx, series, 7)
	require.Error(t, err)
}

func TestDifference(t *testing.T) {
	x := []float64{1, 4, 9, 16}
	assert.Equal(t, []float64{3, 5, 7}, difference(x, 1))
	assert.Equal(t, []float64{2, 2}, difference(x, 2))
}

func TestChooseDifferencingOnTrend(t *testing.T) {
	// A strong linear trend should be differenced at least once.
	trend := make([]float64, 80)
	for i := range trend {
		trend[i] = 2*float64(i) + 0.3*math.Sin(float64(i))
	}
	assert.GreaterOrEqual(t, chooseDifferencing(trend), 1)

	// White-noise-like alternation should not be differenced.
	flat := make([]float64, 80)
	for i := range flat {
		flat[i] = math.Cos(2.1 * float64(i))
	}
	assert.Equal(t, 0, chooseDifferencing(flat))
}

func TestFitARMARecoversAR1(t *testing.T) {
	// y_t = 5 + 0.6*y_{t-1} + e_t with seeded Gaussian innovations.
	rng := rand.New(rand.NewSource(7))
	n := 400
	w := make([]float64, n)
	w[0] = 12.5
	for i := 1; i < n; i++ {
		w[i] = 5 + 0.6*w[i-1] + 0.5*rng.NormFloat64()
	}

	fit, err := fitARMA(w, 1, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, fit.phi[0], 0.1)
	assert.InDelta(t, 5.0, fit.intercept, 1.5)
}
