package forecast

import (
	"context"
	"fmt"
	"math"
)

const (
	weeklyPeriod = 7.0
	yearlyPeriod = 365.25

	weeklyFourierOrder = 3
	yearlyFourierOrder = 5

	// Changepoints are placed over the first 80% of the history, as the
	// usual changepoint prior does.
	changepointRange = 0.8
	maxChangepoints  = 10
)

// AdditiveModel is the Prophet-style variant: a piecewise-linear trend with
// changepoints plus weekly (and, when the history spans at least a year,
// yearly) Fourier seasonality, fitted jointly by penalized least squares.
// The changepoint flexibility option maps to the inverse of the L2 penalty
// on the changepoint slope adjustments. The predictive interval comes from
// the model's in-sample residual spread, widened with forecast distance.
type AdditiveModel struct {
	opts Options
}

func NewAdditiveModel(opts Options) *AdditiveModel {
	return &AdditiveModel{opts: opts}
}

func (m *AdditiveModel) Kind() ModelKind { return KindAdditive }

func (m *AdditiveModel) Train(ctx context.Context, series TimeSeries, horizon int) (ForecastResult, error) {
	n := len(series)
	if n < m.opts.MinTraining {
		return ForecastResult{}, fmt.Errorf("%w: %d observations, need %d",
			ErrInsufficientData, n, m.opts.MinTraining)
	}
	if err := ctx.Err(); err != nil {
		return ForecastResult{}, err
	}

	spansYear := series.LastDate().Sub(series[0].Date).Hours() >= 24*yearlyPeriod
	changepoints := additiveChangepoints(n)

	cols := 0
	design := func(t float64, dayIndex int) []float64 {
		row := []float64{1, t}
		for _, c := range changepoints {
			if t > c {
				row = append(row, t-c)
			} else {
				row = append(row, 0)
			}
		}
		row = append(row, fourierTerms(float64(dayIndex), weeklyPeriod, weeklyFourierOrder)...)
		if spansYear {
			row = append(row, fourierTerms(float64(dayIndex), yearlyPeriod, yearlyFourierOrder)...)
		}
		cols = len(row)
		return row
	}

	rows := make([][]float64, n)
	for i := range rows {
		// Time is scaled to [0,1] over the history so changepoint
		// positions and penalties are length-independent.
		rows[i] = design(float64(i)/float64(n-1), i)
	}

	// Penalize only the changepoint slope adjustments.
	penalty := make([]float64, cols)
	flex := m.opts.ChangepointFlexibility
	if flex <= 0 {
		flex = 0.05
	}
	for j := 2; j < 2+len(changepoints); j++ {
		penalty[j] = 1 / flex
	}

	beta, err := ridge(rows, series.Values(), penalty)
	if err != nil {
		return ForecastResult{}, fmt.Errorf("additive trend fit failed: %w", err)
	}

	predict := func(row []float64) float64 {
		var v float64
		for j, b := range beta {
			v += row[j] * b
		}
		return v
	}

	residuals := make([]float64, n)
	for i, row := range rows {
		residuals[i] = series[i].Value - predict(row)
	}
	residStd := sampleStd(residuals)

	point := make([]float64, horizon)
	lower := make([]float64, horizon)
	upper := make([]float64, horizon)
	for s := 0; s < horizon; s++ {
		idx := n + s
		t := float64(idx) / float64(n-1)
		v := predict(design(t, idx))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ForecastResult{}, fmt.Errorf("additive forecast diverged at step %d", s+1)
		}
		// Uncertainty grows as the trend is extrapolated past the
		// fitted range.
		half := z95 * residStd * math.Sqrt(1+float64(s+1)/float64(n))
		point[s] = v
		lower[s] = v - half
		upper[s] = v + half
	}

	return ForecastResult{Forecast: point, Lower: lower, Upper: upper}, nil
}

// additiveChangepoints returns candidate changepoint positions on the scaled
// time axis, evenly spaced over the changepoint range.
func additiveChangepoints(n int) []float64 {
	count := n / 10
	if count > maxChangepoints {
		count = maxChangepoints
	}
	if count < 1 {
		count = 1
	}
	out := make([]float64, count)
	for i := range out {
		out[i] = changepointRange * float64(i+1) / float64(count+1)
	}
	return out
}

// fourierTerms expands a day index into sin/cos pairs for the given period.
func fourierTerms(day, period float64, order int) []float64 {
	out := make([]float64, 0, 2*order)
	for k := 1; k <= order; k++ {
		arg := 2 * math.Pi * float64(k) * day / period
		out = append(out, math.Sin(arg), math.Cos(arg))
	}
	return out
}
