package forecast

import (
	"context"
	"fmt"
	"math"
)

// Search bounds for the stepwise order search, matching the classic
// auto-ARIMA defaults (seasonal terms disabled).
const (
	arimaMaxP = 5
	arimaMaxD = 2
	arimaMaxQ = 5
)

const z95 = 1.959963984540054

// StatisticalModel is the ARIMA-style variant. It performs a bounded
// stepwise search over (p,d,q), selects the order minimizing AIC, fits by
// conditional least squares (Hannan-Rissanen two-stage regression) and
// derives forecast intervals analytically from the fitted model's
// psi-weights and residual variance.
type StatisticalModel struct {
	opts Options
}

func NewStatisticalModel(opts Options) *StatisticalModel {
	return &StatisticalModel{opts: opts}
}

func (m *StatisticalModel) Kind() ModelKind { return KindStatistical }

func (m *StatisticalModel) Train(ctx context.Context, series TimeSeries, horizon int) (ForecastResult, error) {
	values := series.Values()
	if len(values) < m.opts.MinTraining {
		return ForecastResult{}, fmt.Errorf("%w: %d observations, need %d",
			ErrInsufficientData, len(values), m.opts.MinTraining)
	}

	order, fit, err := searchARIMAOrder(ctx, values)
	if err != nil {
		return ForecastResult{}, err
	}

	point, lower, upper := fit.forecast(values, order.d, horizon)
	for i := range point {
		if math.IsNaN(point[i]) || math.IsInf(point[i], 0) {
			return ForecastResult{}, fmt.Errorf("arima(%d,%d,%d) forecast diverged", order.p, order.d, order.q)
		}
	}

	return ForecastResult{Forecast: point, Lower: lower, Upper: upper}, nil
}

type arimaOrder struct {
	p, d, q int
}

// searchARIMAOrder picks d by minimum differenced-series variance, then hill
// climbs over (p,q) from a handful of seeds, keeping the AIC-minimizing fit.
func searchARIMAOrder(ctx context.Context, values []float64) (arimaOrder, *armaFit, error) {
	d := chooseDifferencing(values)
	w := difference(values, d)
	if len(w) <= arimaMaxP+arimaMaxQ+2 {
		return arimaOrder{}, nil, fmt.Errorf("%w: %d observations after differencing", ErrInsufficientData, len(w))
	}

	type cacheKey struct{ p, q int }
	cache := make(map[cacheKey]*armaFit)
	tryFit := func(p, q int) *armaFit {
		if p < 0 || q < 0 || p > arimaMaxP || q > arimaMaxQ {
			return nil
		}
		key := cacheKey{p, q}
		if f, ok := cache[key]; ok {
			return f
		}
		f, err := fitARMA(w, p, q)
		if err != nil {
			f = nil
		}
		cache[key] = f
		return f
	}

	var best *armaFit
	bestOrder := arimaOrder{d: d}
	consider := func(p, q int) bool {
		f := tryFit(p, q)
		if f == nil {
			return false
		}
		if best == nil || f.aic < best.aic {
			best = f
			bestOrder = arimaOrder{p: p, d: d, q: q}
			return true
		}
		return false
	}

	for _, seed := range [][2]int{{2, 2}, {0, 0}, {1, 0}, {0, 1}} {
		consider(seed[0], seed[1])
	}
	if best == nil {
		return arimaOrder{}, nil, fmt.Errorf("arima order search failed: no candidate converged")
	}

	// Stepwise neighborhood walk until no neighbor improves AIC.
	for improved := true; improved; {
		if err := ctx.Err(); err != nil {
			return arimaOrder{}, nil, fmt.Errorf("arima order search aborted: %w", err)
		}
		improved = false
		p, q := bestOrder.p, bestOrder.q
		for _, step := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {-1, -1}} {
			if consider(p+step[0], q+step[1]) {
				improved = true
			}
		}
	}

	return bestOrder, best, nil
}

// chooseDifferencing returns the smallest d in [0, arimaMaxD] whose
// differenced series has materially the lowest variance. Over-differencing
// inflates variance, so the first non-improving step stops the search.
func chooseDifferencing(values []float64) int {
	d := 0
	current := sampleStd(values)
	w := values
	for d < arimaMaxD {
		next := difference(w, 1)
		nextStd := sampleStd(next)
		if nextStd >= current*0.99 {
			break
		}
		w = next
		current = nextStd
		d++
	}
	return d
}

// difference applies d first differences.
func difference(values []float64, d int) []float64 {
	out := values
	for k := 0; k < d; k++ {
		next := make([]float64, len(out)-1)
		for i := range next {
			next[i] = out[i+1] - out[i]
		}
		out = next
	}
	return out
}

// armaFit is a fitted ARMA(p,q) on the differenced scale.
type armaFit struct {
	p, q      int
	intercept float64
	phi       []float64 // AR coefficients, phi[0] multiplies w_{t-1}
	theta     []float64 // MA coefficients, theta[0] multiplies e_{t-1}
	residuals []float64 // aligned with the fitted series, zeros before the fit window
	sigma2    float64
	aic       float64
}

// fitARMA estimates ARMA(p,q) with intercept by Hannan-Rissanen: a long AR
// regression supplies residual proxies for the MA lags, then one joint least
// squares over AR and MA terms.
func fitARMA(w []float64, p, q int) (*armaFit, error) {
	n := len(w)

	resid := make([]float64, n)
	if q > 0 {
		long := p + q + 3
		if long > n/3 {
			long = n / 3
		}
		if long < 1 {
			return nil, fmt.Errorf("%w: series too short for ma terms", ErrInsufficientData)
		}
		beta, err := regressLags(w, long)
		if err != nil {
			return nil, err
		}
		for t := long; t < n; t++ {
			pred := beta[0]
			for i := 1; i <= long; i++ {
				pred += beta[i] * w[t-i]
			}
			resid[t] = w[t] - pred
		}
	}

	start := p
	if q > start {
		start = q
	}
	if n-start < p+q+2 {
		return nil, fmt.Errorf("%w: series too short for arma(%d,%d)", ErrInsufficientData, p, q)
	}

	rows := make([][]float64, 0, n-start)
	ys := make([]float64, 0, n-start)
	for t := start; t < n; t++ {
		row := make([]float64, 1+p+q)
		row[0] = 1
		for i := 1; i <= p; i++ {
			row[i] = w[t-i]
		}
		for j := 1; j <= q; j++ {
			row[p+j] = resid[t-j]
		}
		rows = append(rows, row)
		ys = append(ys, w[t])
	}

	beta, err := lstsq(rows, ys)
	if err != nil {
		return nil, fmt.Errorf("arma(%d,%d) estimation failed: %w", p, q, err)
	}

	fit := &armaFit{
		p:         p,
		q:         q,
		intercept: beta[0],
		phi:       beta[1 : 1+p],
		theta:     beta[1+p:],
		residuals: make([]float64, n),
	}

	var sse float64
	for k, row := range rows {
		pred := 0.0
		for j, b := range beta {
			pred += row[j] * b
		}
		e := ys[k] - pred
		fit.residuals[start+k] = e
		sse += e * e
	}
	eff := float64(len(rows))
	fit.sigma2 = sse / eff
	if fit.sigma2 <= 0 {
		fit.sigma2 = 1e-12
	}
	fit.aic = eff*math.Log(fit.sigma2) + 2*float64(p+q+1)
	return fit, nil
}

// regressLags fits w_t on an intercept and its own previous m values.
func regressLags(w []float64, m int) ([]float64, error) {
	n := len(w)
	rows := make([][]float64, 0, n-m)
	ys := make([]float64, 0, n-m)
	for t := m; t < n; t++ {
		row := make([]float64, m+1)
		row[0] = 1
		for i := 1; i <= m; i++ {
			row[i] = w[t-i]
		}
		rows = append(rows, row)
		ys = append(ys, w[t])
	}
	return lstsq(rows, ys)
}

// forecast rolls the ARMA recursion h steps ahead on the differenced scale,
// inverts the differencing, and builds 95% intervals from the accumulated
// psi-weight variance.
func (f *armaFit) forecast(values []float64, d, h int) (point, lower, upper []float64) {
	levels := [][]float64{values}
	for k := 0; k < d; k++ {
		levels = append(levels, difference(levels[k], 1))
	}
	w := levels[d]

	wExt := append([]float64(nil), w...)
	eExt := append([]float64(nil), f.residuals...)
	steps := make([]float64, h)
	for s := 0; s < h; s++ {
		t := len(wExt)
		pred := f.intercept
		for i := 1; i <= f.p; i++ {
			pred += f.phi[i-1] * wExt[t-i]
		}
		for j := 1; j <= f.q; j++ {
			if t-j < len(f.residuals) {
				pred += f.theta[j-1] * eExt[t-j]
			}
		}
		wExt = append(wExt, pred)
		eExt = append(eExt, 0) // future shocks have zero expectation
		steps[s] = pred
	}

	// Psi-weights of the ARMA part, then integrated d times for the
	// undifferenced process.
	psi := make([]float64, h)
	psi[0] = 1
	for j := 1; j < h; j++ {
		v := 0.0
		if j <= f.q {
			v += f.theta[j-1]
		}
		for i := 1; i <= f.p && i <= j; i++ {
			v += f.phi[i-1] * psi[j-i]
		}
		psi[j] = v
	}
	for k := 0; k < d; k++ {
		for j := 1; j < h; j++ {
			psi[j] += psi[j-1]
		}
	}

	point = make([]float64, h)
	copy(point, steps)
	for lvl := d - 1; lvl >= 0; lvl-- {
		last := levels[lvl][len(levels[lvl])-1]
		for i := range point {
			last += point[i]
			point[i] = last
		}
	}

	lower = make([]float64, h)
	upper = make([]float64, h)
	variance := 0.0
	for i := 0; i < h; i++ {
		variance += psi[i] * psi[i] * f.sigma2
		half := z95 * math.Sqrt(variance)
		lower[i] = point[i] - half
		upper[i] = point[i] + half
	}
	return point, lower, upper
}
