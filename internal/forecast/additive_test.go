package forecast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdditiveModelOnSeasonalSeries(t *testing.T) {
	model := NewAdditiveModel(DefaultOptions())
	series := makeSeries(90, weeklySine)

	result, err := model.Train(context.Background(), series, 14)
	require.NoError(t, err)
	assertBounds(t, result, 14)

	// The weekly Fourier block should pick the cycle up closely on a
	// noiseless series.
	for step := 0; step < 14; step++ {
		want := weeklySine(90 + step)
		assert.InDelta(t, want, result.Forecast[step], 1.5, "step %d", step)
	}
}

func TestAdditiveModelTracksTrend(t *testing.T) {
	model := NewAdditiveModel(DefaultOptions())
	series := makeSeries(80, func(i int) float64 {
		return 10 + 0.5*float64(i) + weeklySine(i)
	})

	result, err := model.Train(context.Background(), series, 7)
	require.NoError(t, err)

	last := series[len(series)-1].Value
	for i, v := range result.Forecast {
		assert.Greater(t, v, last-10, "step %d should continue the upward trend", i)
	}
	assert.Greater(t, result.Forecast[6], result.Forecast[0]-3.0)
}

func TestAdditiveModelInsufficientData(t *testing.T) {
	model := NewAdditiveModel(DefaultOptions())
	_, err := model.Train(context.Background(), makeSeries(10, weeklySine), 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestAdditiveModelFlexibilityExtremes(t *testing.T) {
	series := makeSeries(90, weeklySine)

	stiff := DefaultOptions()
	stiff.ChangepointFlexibility = 0.001
	loose := DefaultOptions()
	loose.ChangepointFlexibility = 10

	rs, err := NewAdditiveModel(stiff).Train(context.Background(), series, 7)
	require.NoError(t, err)
	rl, err := NewAdditiveModel(loose).Train(context.Background(), series, 7)
	require.NoError(t, err)

	// Both must still produce ordered bounds regardless of flexibility.
	assertBounds(t, rs, 7)
	assertBounds(t, rl, 7)
}
