package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"
)

var (
	boostedLags    = []int{1, 2, 3, 7}
	boostedWindows = []int{7, 14}
)

// boostedMinRows is the post-feature-engineering floor: the deepest feature
// (rolling window 14) consumes 13 leading rows, so the 30-observation
// minimum binds the raw series while Finalize only has to leave enough rows
// to grow trees on.
const boostedMinRows = 15

// GradientBoostedModel is the tree-ensemble variant. It engineers
// calendar, lag {1,2,3,7} and rolling {7,14} features over the target,
// standardizes them, and fits gradient-boosted regression trees with squared
// loss. The horizon is forecast autoregressively: calendar features are
// recomputed per future date, lag features read the concatenation of actual
// history and already-produced forecasts, and rolling features are
// approximated from the trailing actual history only. Bounds use the same
// trailing ±1 std heuristic as the sequential variant rather than a
// model-native interval. Per-feature importance scores (normalized split
// gain) are reported on the result.
type GradientBoostedModel struct {
	opts Options
}

func NewGradientBoostedModel(opts Options) *GradientBoostedModel {
	return &GradientBoostedModel{opts: opts}
}

func (m *GradientBoostedModel) Kind() ModelKind { return KindGradientBoosted }

func (m *GradientBoostedModel) Train(ctx context.Context, series TimeSeries, horizon int) (ForecastResult, error) {
	if len(series) < m.opts.MinTraining {
		return ForecastResult{}, fmt.Errorf("%w: %d observations, need %d",
			ErrInsufficientData, len(series), m.opts.MinTraining)
	}

	frame, err := NewFeatureFrame(series).
		AddTimeFeatures().
		AddLagFeatures(boostedLags).
		AddRollingFeatures(boostedWindows).
		Finalize(boostedMinRows)
	if err != nil {
		return ForecastResult{}, err
	}

	X := frame.Matrix()
	y := frame.Target

	// Standardize features with the training moments.
	scaler := fitStandardScaler(X)
	Xs := scaler.transform(X)

	booster, err := fitBoosted(ctx, Xs, y, m.opts)
	if err != nil {
		return ForecastResult{}, err
	}

	// Autoregressive rollout over the horizon.
	history := frame.Target
	recent := append([]float64(nil), history[len(history)-7:]...)

	rollingByName := make(map[string]float64)
	for _, w := range boostedWindows {
		tail := history
		if len(tail) > w {
			tail = tail[len(tail)-w:]
		}
		mu, sd := meanStd(tail)
		rollingByName[fmt.Sprintf("rolling_mean_%d", w)] = mu
		rollingByName[fmt.Sprintf("rolling_std_%d", w)] = sd
	}
	histMean := mean(history)

	point := make([]float64, horizon)
	futureDates := series.FutureDates(horizon)
	for s, date := range futureDates {
		cell := make(map[string]float64, len(frame.Columns))
		cal := CalendarFeatures(date)
		cell["day_of_week"] = cal.DayOfWeek
		cell["day_of_month"] = cal.DayOfMonth
		cell["month"] = cal.Month
		cell["quarter"] = cal.Quarter
		cell["is_weekend"] = cal.IsWeekend
		for _, lag := range boostedLags {
			if len(recent) >= lag {
				cell[fmt.Sprintf("lag_%d", lag)] = recent[len(recent)-lag]
			} else {
				cell[fmt.Sprintf("lag_%d", lag)] = histMean
			}
		}
		for name, v := range rollingByName {
			cell[name] = v
		}

		row := make([]float64, len(frame.Columns))
		for j, name := range frame.Columns {
			row[j] = cell[name]
		}
		pred := booster.predict(scaler.transformRow(row))
		if math.IsNaN(pred) || math.IsInf(pred, 0) {
			return ForecastResult{}, fmt.Errorf("boosted forecast diverged at step %d", s+1)
		}
		point[s] = pred
		recent = append(recent, pred)
	}

	lower, upper := heuristicBounds(point, history, 30)
	importance := booster.featureImportance(frame.Columns)
	return ForecastResult{Forecast: point, Lower: lower, Upper: upper, FeatureImportance: importance}, nil
}

// standardScaler centers and scales columns to unit variance. Constant
// columns keep scale 1 so they standardize to zero instead of dividing by
// zero.
type standardScaler struct {
	mean, scale []float64
}

func fitStandardScaler(X [][]float64) *standardScaler {
	cols := len(X[0])
	s := &standardScaler{mean: make([]float64, cols), scale: make([]float64, cols)}
	col := make([]float64, len(X))
	for j := 0; j < cols; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		mu, sd := meanStd(col)
		s.mean[j] = mu
		if sd == 0 {
			sd = 1
		}
		s.scale[j] = sd
	}
	return s
}

func (s *standardScaler) transformRow(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.mean[j]) / s.scale[j]
	}
	return out
}

func (s *standardScaler) transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = s.transformRow(row)
	}
	return out
}

// boostedEnsemble is a fitted set of regression trees over a constant base
// prediction.
type boostedEnsemble struct {
	base         float64
	learningRate float64
	trees        []*regressionTree
	gains        []float64
}

func fitBoosted(ctx context.Context, X [][]float64, y []float64, opts Options) (*boostedEnsemble, error) {
	trees := opts.Trees
	if trees < 1 {
		trees = 100
	}
	lr := opts.LearningRate
	if lr <= 0 {
		lr = 0.1
	}
	depth := opts.MaxDepth
	if depth < 1 {
		depth = 5
	}

	ens := &boostedEnsemble{
		base:         mean(y),
		learningRate: lr,
		gains:        make([]float64, len(X[0])),
	}

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = ens.base
	}
	residual := make([]float64, len(y))
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}

	for t := 0; t < trees; t++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("boosting aborted after %d trees: %w", t, err)
		}
		for i := range residual {
			residual[i] = y[i] - pred[i]
		}
		tree := buildRegressionTree(X, residual, idx, depth, ens.gains)
		ens.trees = append(ens.trees, tree)
		for i, row := range X {
			pred[i] += lr * tree.predict(row)
		}
	}
	return ens, nil
}

func (e *boostedEnsemble) predict(row []float64) float64 {
	out := e.base
	for _, t := range e.trees {
		out += e.learningRate * t.predict(row)
	}
	return out
}

// featureImportance normalizes the accumulated split gains to sum to 1.
func (e *boostedEnsemble) featureImportance(names []string) map[string]float64 {
	total := 0.0
	for _, g := range e.gains {
		total += g
	}
	out := make(map[string]float64, len(names))
	for j, name := range names {
		if total > 0 {
			out[name] = e.gains[j] / total
		} else {
			out[name] = 0
		}
	}
	return out
}

type regressionTree struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      *regressionTree
	right     *regressionTree
}

// buildRegressionTree grows a depth-limited tree minimizing squared error.
// gains accumulates the SSE reduction per feature across every split taken.
func buildRegressionTree(X [][]float64, target []float64, idx []int, depth int, gains []float64) *regressionTree {
	leafValue := 0.0
	for _, i := range idx {
		leafValue += target[i]
	}
	leafValue /= float64(len(idx))

	if depth == 0 || len(idx) < 4 {
		return &regressionTree{leaf: true, value: leafValue}
	}

	feature, threshold, gain, ok := bestSplit(X, target, idx)
	if !ok {
		return &regressionTree{leaf: true, value: leafValue}
	}
	gains[feature] += gain

	var leftIdx, rightIdx []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}

	return &regressionTree{
		feature:   feature,
		threshold: threshold,
		left:      buildRegressionTree(X, target, leftIdx, depth-1, gains),
		right:     buildRegressionTree(X, target, rightIdx, depth-1, gains),
	}
}

// bestSplit scans every feature for the threshold minimizing the combined
// child SSE, using sorted prefix sums.
func bestSplit(X [][]float64, target []float64, idx []int) (feature int, threshold, gain float64, ok bool) {
	n := len(idx)
	var totalSum, totalSq float64
	for _, i := range idx {
		totalSum += target[i]
		totalSq += target[i] * target[i]
	}
	parentSSE := totalSq - totalSum*totalSum/float64(n)

	order := make([]int, n)
	bestGain := 0.0
	for f := 0; f < len(X[idx[0]]); f++ {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			i := order[k]
			leftSum += target[i]
			leftSq += target[i] * target[i]
			if X[order[k]][f] == X[order[k+1]][f] {
				continue
			}
			nl := float64(k + 1)
			nr := float64(n - k - 1)
			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			if g := parentSSE - sse; g > bestGain {
				bestGain = g
				feature = f
				threshold = (X[order[k]][f] + X[order[k+1]][f]) / 2
				ok = true
			}
		}
	}
	return feature, threshold, bestGain, ok
}

func (t *regressionTree) predict(row []float64) float64 {
	node := t
	for !node.leaf {
		if row[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.value
}
