package forecast

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

var errSingular = errors.New("design matrix is singular or underdetermined")

// lstsq solves min ||Xb - y|| by QR. rows is row-major with one slice per
// observation; every row must have the same width.
func lstsq(rows [][]float64, y []float64) ([]float64, error) {
	m := len(rows)
	if m == 0 || m != len(y) {
		return nil, errSingular
	}
	n := len(rows[0])
	if n == 0 || m < n {
		return nil, errSingular
	}

	X := mat.NewDense(m, n, nil)
	for i, row := range rows {
		X.SetRow(i, row)
	}
	b := mat.NewDense(m, 1, nil)
	for i, v := range y {
		b.Set(i, 0, v)
	}

	var qr mat.QR
	qr.Factorize(X)
	var sol mat.Dense
	if err := qr.SolveTo(&sol, false, b); err != nil {
		return nil, errSingular
	}

	beta := make([]float64, n)
	for j := range beta {
		v := sol.At(j, 0)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errSingular
		}
		beta[j] = v
	}
	return beta, nil
}

// ridge solves least squares with an L2 penalty on a subset of columns, via
// the augmented-rows formulation. penalize[j] gives the penalty weight for
// column j (0 leaves the column unpenalized).
func ridge(rows [][]float64, y []float64, penalize []float64) ([]float64, error) {
	if len(rows) == 0 {
		return nil, errSingular
	}
	n := len(rows[0])
	aug := make([][]float64, 0, len(rows)+n)
	aug = append(aug, rows...)
	augY := append(append([]float64(nil), y...), make([]float64, 0, n)...)
	for j := 0; j < n; j++ {
		if penalize[j] <= 0 {
			continue
		}
		row := make([]float64, n)
		row[j] = math.Sqrt(penalize[j])
		aug = append(aug, row)
		augY = append(augY, 0)
	}
	return lstsq(aug, augY)
}
