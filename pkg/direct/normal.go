package direct

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/abworrall/direct-pose/pkg/emath"
)

const (
	// Above this condition number the Cholesky solve is not trusted,
	// and we go via the eigen decomposition instead.
	maxCholeskyCond = 1e10

	// Eigenvalues below this fraction of the largest are treated as
	// zero when pseudo-inverting.
	pinvTolerance = 1e-9
)

// NormalEquations is the Gauss-Newton linear system H*x = B built up
// from all the pixel residuals of one iteration, plus its cost.
type NormalEquations struct {
	H        [6][6]float64
	B        [6]float64
	Cost     float64
	NumValid int // points that contributed
}

func (ne NormalEquations) String() string {
	return fmt.Sprintf("NE[valid:%d cost:%.4f b:%v]", ne.NumValid, ne.Cost, ne.B)
}

// addPixel folds one weighted residual e with jacobian J into the sums.
func (ne *NormalEquations) addPixel(J [6]float64, e, w float64) {
	w2 := w * w
	for r := 0; r < 6; r++ {
		ne.B[r] += -w2 * e * J[r]
		for c := 0; c < 6; c++ {
			ne.H[r][c] += w2 * J[r] * J[c]
		}
	}
	ne.Cost += w2 * e * e
}

// merge adds a worker's partial sums. With CostPerRange the worker's
// cost is averaged over its own valid points before it is added.
func (ne *NormalEquations) merge(part NormalEquations, costNormalization string) {
	for r := 0; r < 6; r++ {
		ne.B[r] += part.B[r]
		for c := 0; c < 6; c++ {
			ne.H[r][c] += part.H[r][c]
		}
	}

	if costNormalization == CostPerRange {
		ne.Cost += part.Cost / float64(part.NumValid)
	} else {
		ne.Cost += part.Cost
	}
	ne.NumValid += part.NumValid
}

func (ne *NormalEquations) hasNaN() bool {
	for r := 0; r < 6; r++ {
		if math.IsNaN(ne.B[r]) {
			return true
		}
		for c := 0; c < 6; c++ {
			if math.IsNaN(ne.H[r][c]) {
				return true
			}
		}
	}
	return false
}

func (ne *NormalEquations) isZero() bool {
	for r := 0; r < 6; r++ {
		for c := 0; c < 6; c++ {
			if ne.H[r][c] != 0 {
				return false
			}
		}
	}
	return true
}

// Solve returns the update x with H*x = B. A well conditioned H goes
// through Cholesky; a rank deficient one (e.g. a handful of points,
// or gradients all in one direction) is pseudo-inverted, which leaves
// the unobservable directions at zero. An empty Hessian, or any NaN,
// is ErrDegenerate.
func (ne *NormalEquations) Solve() (emath.Twist, error) {
	var update emath.Twist
	if ne.isZero() || ne.hasNaN() {
		return update, ErrDegenerate
	}

	H := mat.NewSymDense(6, nil)
	for r := 0; r < 6; r++ {
		for c := r; c < 6; c++ {
			H.SetSym(r, c, ne.H[r][c])
		}
	}
	b := mat.NewVecDense(6, append([]float64(nil), ne.B[:]...))

	var chol mat.Cholesky
	if chol.Factorize(H) && chol.Cond() < maxCholeskyCond {
		var x mat.VecDense
		if err := chol.SolveVecTo(&x, b); err == nil {
			for i := range update {
				update[i] = x.AtVec(i)
			}
			if !update.HasNaN() {
				return update, nil
			}
		}
	}

	return pseudoInverseSolve(H, b)
}

func pseudoInverseSolve(H *mat.SymDense, b *mat.VecDense) (emath.Twist, error) {
	var update emath.Twist

	var eig mat.EigenSym
	if !eig.Factorize(H, true) {
		return update, ErrDegenerate
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	maxVal := 0.0
	for _, v := range vals {
		if math.IsNaN(v) {
			return update, ErrDegenerate
		}
		maxVal = math.Max(maxVal, math.Abs(v))
	}
	if maxVal == 0 {
		return update, ErrDegenerate
	}

	for i, lambda := range vals {
		if lambda <= pinvTolerance*maxVal {
			continue
		}
		coef := mat.Dot(vecs.ColView(i), b) / lambda
		for r := range update {
			update[r] += coef * vecs.At(r, i)
		}
	}

	if update.HasNaN() {
		return update, ErrDegenerate
	}
	return update, nil
}
