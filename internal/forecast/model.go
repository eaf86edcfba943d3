package forecast

import (
	"context"
	"time"
)

// ModelKind identifies one of the closed set of forecasting variants.
type ModelKind string

const (
	KindStatistical     ModelKind = "statistical"
	KindAdditive        ModelKind = "additive"
	KindSequential      ModelKind = "sequential"
	KindGradientBoosted ModelKind = "gradient_boosted"
)

// AllKinds lists every variant in the canonical reporting order.
func AllKinds() []ModelKind {
	return []ModelKind{KindStatistical, KindAdditive, KindSequential, KindGradientBoosted}
}

// ForecastResult is the outcome of one successful training run: a point
// forecast with lower/upper bounds, all of length equal to the requested
// horizon, with Lower[i] <= Forecast[i] <= Upper[i].
type ForecastResult struct {
	Kind             ModelKind     `json:"modelKind"`
	Forecast         []float64     `json:"forecast"`
	Lower            []float64     `json:"lowerBound"`
	Upper            []float64     `json:"upperBound"`
	TrainingDuration time.Duration `json:"trainingDuration"`

	// FeatureImportance is populated by the gradient-boosted variant only.
	FeatureImportance map[string]float64 `json:"featureImportance,omitempty"`
}

// Model abstracts a forecasting variant. Train fits the model on the series
// and forecasts horizon steps ahead. Algorithm-internal problems (numerical
// non-convergence, degenerate input, too little data) are returned as
// errors, never panics; the orchestrator converts them into
// TrainingFailure values.
type Model interface {
	Kind() ModelKind
	Train(ctx context.Context, series TimeSeries, horizon int) (ForecastResult, error)
}

// Options carries the tunable knobs shared by the variants. The zero value
// is not usable; construct with DefaultOptions.
type Options struct {
	// MinTraining is the minimum usable observations a variant needs.
	MinTraining int

	// Lookback is the sliding-window length of the sequential variant.
	Lookback int

	// Epochs is the sequential variant's fixed training budget.
	Epochs int

	// HiddenSize is the width of each recurrent layer.
	HiddenSize int

	// Dropout is the sequential variant's dropout rate.
	Dropout float64

	// ChangepointFlexibility controls how strongly the additive variant's
	// trend is allowed to bend at changepoints. Larger is more flexible.
	ChangepointFlexibility float64

	// Trees, LearningRate and MaxDepth configure the gradient-boosted
	// variant.
	Trees        int
	LearningRate float64
	MaxDepth     int

	// Seed makes the stochastic variants reproducible.
	Seed int64
}

// DefaultOptions mirrors the training defaults the variants were designed
// around.
func DefaultOptions() Options {
	return Options{
		MinTraining:            DefaultMinTraining,
		Lookback:               30,
		Epochs:                 50,
		HiddenSize:             32,
		Dropout:                0.2,
		ChangepointFlexibility: 0.05,
		Trees:                  100,
		LearningRate:           0.1,
		MaxDepth:               5,
		Seed:                   42,
	}
}

// NewModel constructs the variant for the given kind.
func NewModel(kind ModelKind, opts Options) (Model, bool) {
	switch kind {
	case KindStatistical:
		return NewStatisticalModel(opts), true
	case KindAdditive:
		return NewAdditiveModel(opts), true
	case KindSequential:
		return NewSequentialModel(opts), true
	case KindGradientBoosted:
		return NewGradientBoostedModel(opts), true
	}
	return nil, false
}

// heuristicBounds builds the ±1 std bounds used by the sequential and
// gradient-boosted variants. Unlike the statistical and additive variants,
// whose intervals come from the model itself, this band only reflects the
// spread of the last tail observations and says nothing about the model's
// own predictive uncertainty.
func heuristicBounds(pointForecast, history []float64, tail int) (lower, upper []float64) {
	if len(history) < tail {
		tail = len(history)
	}
	sd := sampleStd(history[len(history)-tail:])
	lower = make([]float64, len(pointForecast))
	upper = make([]float64, len(pointForecast))
	for i, v := range pointForecast {
		lower[i] = v - sd
		upper[i] = v + sd
	}
	return lower, upper
}
