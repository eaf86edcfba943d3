package forecast

import (
	"context"
	"fmt"
	"math"
	"math/rand"
)

// SequentialModel is the recurrent-network variant. The series is min-max
// scaled to [0,1], cut into sliding windows of Lookback steps predicting the
// next value, and fed through two stacked recurrent layers with dropout and
// a linear readout, trained by backpropagation through time with Adam for a
// fixed epoch budget. Forecasting is autoregressive: each prediction is
// appended to the window for the next step.
//
// Bounds are a heuristic (point forecast ± one standard deviation of the
// last 30 observations), not derived from the network; unlike the
// statistical and additive variants there is no model-native interval here.
type SequentialModel struct {
	opts Options
}

func NewSequentialModel(opts Options) *SequentialModel {
	return &SequentialModel{opts: opts}
}

func (m *SequentialModel) Kind() ModelKind { return KindSequential }

func (m *SequentialModel) Train(ctx context.Context, series TimeSeries, horizon int) (ForecastResult, error) {
	values := series.Values()
	if len(values) < m.opts.MinTraining {
		return ForecastResult{}, fmt.Errorf("%w: %d observations, need %d",
			ErrInsufficientData, len(values), m.opts.MinTraining)
	}
	lookback := m.opts.Lookback
	if lookback < 1 {
		lookback = 30
	}
	if len(values) <= lookback {
		return ForecastResult{}, fmt.Errorf("%w: need more than lookback (%d) observations, have %d",
			ErrInsufficientData, lookback, len(values))
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return ForecastResult{}, fmt.Errorf("degenerate input: series is constant, nothing to learn")
	}
	scaled := make([]float64, len(values))
	for i, v := range values {
		scaled[i] = (v - lo) / (hi - lo)
	}

	windows := len(scaled) - lookback
	net := newSeqNet(lookback, m.opts.HiddenSize, m.opts.Dropout, m.opts.Seed)

	order := make([]int, windows)
	for i := range order {
		order[i] = i
	}
	epochs := m.opts.Epochs
	if epochs < 1 {
		epochs = 50
	}
	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return ForecastResult{}, fmt.Errorf("training aborted: %w", err)
		}
		net.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, w := range order {
			loss := net.trainStep(scaled[w:w+lookback], scaled[w+lookback])
			if math.IsNaN(loss) || math.IsInf(loss, 0) {
				return ForecastResult{}, fmt.Errorf("training diverged at epoch %d", epoch+1)
			}
		}
	}

	window := append([]float64(nil), scaled[len(scaled)-lookback:]...)
	point := make([]float64, horizon)
	for s := 0; s < horizon; s++ {
		pred := net.predict(window)
		window = append(window[1:], pred)
		point[s] = pred*(hi-lo) + lo
	}

	lower, upper := heuristicBounds(point, values, 30)
	return ForecastResult{Forecast: point, Lower: lower, Upper: upper}, nil
}

// seqNet is a two-layer Elman network over a scalar input sequence with a
// linear readout from the final hidden state. Matrices are row-major.
type seqNet struct {
	lookback, hidden int
	dropout          float64
	rng              *rand.Rand

	w1x, w1h, b1 *seqParam // input and recurrent weights, layer 1
	w2x, w2h, b2 *seqParam // inter-layer and recurrent weights, layer 2
	wo, bo       *seqParam // readout

	step int // Adam timestep
}

// seqParam bundles a weight slice with its gradient and Adam moments.
type seqParam struct {
	w, g, m, v []float64
}

func newSeqParam(n int, scale float64, rng *rand.Rand) *seqParam {
	p := &seqParam{
		w: make([]float64, n),
		g: make([]float64, n),
		m: make([]float64, n),
		v: make([]float64, n),
	}
	for i := range p.w {
		p.w[i] = (rng.Float64()*2 - 1) * scale
	}
	return p
}

func newSeqNet(lookback, hidden int, dropout float64, seed int64) *seqNet {
	if hidden < 1 {
		hidden = 32
	}
	rng := rand.New(rand.NewSource(seed))
	scale := 1 / math.Sqrt(float64(hidden))
	return &seqNet{
		lookback: lookback,
		hidden:   hidden,
		dropout:  dropout,
		rng:      rng,
		w1x:      newSeqParam(hidden, scale, rng),
		w1h:      newSeqParam(hidden*hidden, scale, rng),
		b1:       newSeqParam(hidden, 0, rng),
		w2x:      newSeqParam(hidden*hidden, scale, rng),
		w2h:      newSeqParam(hidden*hidden, scale, rng),
		b2:       newSeqParam(hidden, 0, rng),
		wo:       newSeqParam(hidden, scale, rng),
		bo:       newSeqParam(1, 0, rng),
	}
}

func (n *seqNet) params() []*seqParam {
	return []*seqParam{n.w1x, n.w1h, n.b1, n.w2x, n.w2h, n.b2, n.wo, n.bo}
}

// forward runs the window through both layers. Dropout masks are nil at
// inference; during training they already carry the 1/(1-p) scaling.
func (n *seqNet) forward(xs []float64, mask1, mask2 []float64) (h1, h2 [][]float64, out float64) {
	H := n.hidden
	L := len(xs)
	h1 = make([][]float64, L+1)
	h2 = make([][]float64, L+1)
	h1[0] = make([]float64, H)
	h2[0] = make([]float64, H)

	for t := 0; t < L; t++ {
		h1[t+1] = make([]float64, H)
		for i := 0; i < H; i++ {
			a := n.w1x.w[i]*xs[t] + n.b1.w[i]
			for j := 0; j < H; j++ {
				a += n.w1h.w[i*H+j] * h1[t][j]
			}
			h1[t+1][i] = math.Tanh(a)
		}
		h2[t+1] = make([]float64, H)
		for i := 0; i < H; i++ {
			a := n.b2.w[i]
			for j := 0; j < H; j++ {
				in := h1[t+1][j]
				if mask1 != nil {
					in *= mask1[j]
				}
				a += n.w2x.w[i*H+j] * in
				a += n.w2h.w[i*H+j] * h2[t][j]
			}
			h2[t+1][i] = math.Tanh(a)
		}
	}

	out = n.bo.w[0]
	for i := 0; i < H; i++ {
		v := h2[L][i]
		if mask2 != nil {
			v *= mask2[i]
		}
		out += n.wo.w[i] * v
	}
	return h1, h2, out
}

func (n *seqNet) predict(xs []float64) float64 {
	_, _, out := n.forward(xs, nil, nil)
	return out
}

// trainStep runs one window through forward, backpropagation through time
// and an Adam update, returning the squared error.
func (n *seqNet) trainStep(xs []float64, target float64) float64 {
	H := n.hidden
	L := len(xs)

	mask1 := n.dropoutMask()
	mask2 := n.dropoutMask()

	h1, h2, out := n.forward(xs, mask1, mask2)
	err := out - target
	loss := err * err

	for _, p := range n.params() {
		for i := range p.g {
			p.g[i] = 0
		}
	}

	dy := 2 * err
	n.bo.g[0] += dy
	carry2 := make([]float64, H)
	for i := 0; i < H; i++ {
		v := h2[L][i] * mask2[i]
		n.wo.g[i] += dy * v
		carry2[i] = dy * n.wo.w[i] * mask2[i]
	}

	carry1 := make([]float64, H)
	da1 := make([]float64, H)
	da2 := make([]float64, H)
	for t := L - 1; t >= 0; t-- {
		for i := 0; i < H; i++ {
			da2[i] = carry2[i] * (1 - h2[t+1][i]*h2[t+1][i])
			n.b2.g[i] += da2[i]
			for j := 0; j < H; j++ {
				n.w2x.g[i*H+j] += da2[i] * h1[t+1][j] * mask1[j]
				n.w2h.g[i*H+j] += da2[i] * h2[t][j]
			}
		}
		for j := 0; j < H; j++ {
			c2 := 0.0
			dd1 := 0.0
			for i := 0; i < H; i++ {
				c2 += da2[i] * n.w2h.w[i*H+j]
				dd1 += da2[i] * n.w2x.w[i*H+j]
			}
			carry2[j] = c2
			dh1 := dd1*mask1[j] + carry1[j]
			da1[j] = dh1 * (1 - h1[t+1][j]*h1[t+1][j])
		}
		for j := 0; j < H; j++ {
			n.w1x.g[j] += da1[j] * xs[t]
			n.b1.g[j] += da1[j]
			for k := 0; k < H; k++ {
				n.w1h.g[j*H+k] += da1[j] * h1[t][k]
			}
		}
		for k := 0; k < H; k++ {
			c1 := 0.0
			for j := 0; j < H; j++ {
				c1 += da1[j] * n.w1h.w[j*H+k]
			}
			carry1[k] = c1
		}
	}

	n.clipGradients(5.0)
	n.adamUpdate(0.001, 0.9, 0.999, 1e-8)
	return loss
}

func (n *seqNet) dropoutMask() []float64 {
	mask := make([]float64, n.hidden)
	keep := 1 - n.dropout
	if keep >= 1 {
		for i := range mask {
			mask[i] = 1
		}
		return mask
	}
	for i := range mask {
		if n.rng.Float64() < keep {
			mask[i] = 1 / keep
		}
	}
	return mask
}

func (n *seqNet) clipGradients(maxNorm float64) {
	var sq float64
	for _, p := range n.params() {
		for _, g := range p.g {
			sq += g * g
		}
	}
	norm := math.Sqrt(sq)
	if norm <= maxNorm || norm == 0 {
		return
	}
	scale := maxNorm / norm
	for _, p := range n.params() {
		for i := range p.g {
			p.g[i] *= scale
		}
	}
}

func (n *seqNet) adamUpdate(lr, beta1, beta2, eps float64) {
	n.step++
	t := float64(n.step)
	c1 := 1 - math.Pow(beta1, t)
	c2 := 1 - math.Pow(beta2, t)
	for _, p := range n.params() {
		for i := range p.w {
			g := p.g[i]
			p.m[i] = beta1*p.m[i] + (1-beta1)*g
			p.v[i] = beta2*p.v[i] + (1-beta2)*g*g
			p.w[i] -= lr * (p.m[i] / c1) / (math.Sqrt(p.v[i]/c2) + eps)
		}
	}
}
