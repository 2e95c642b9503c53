package direct

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"github.com/abworrall/direct-pose/pkg/emath"
)

func TestBackProjectProjectRoundTrip(t *testing.T) {
	t.Parallel()
	cam := Intrinsics{Fx: 637.3, Fy: 637.3, Cx: 636.3, Cy: 377.0}

	px := r2.Point{X: 100.5, Y: 412.25}
	p := cam.BackProject(px, 2.5)
	assert.InDelta(t, 2.5, p.Z, 1e-12)

	back := cam.Project(p)
	assert.InDelta(t, px.X, back.X, 1e-9)
	assert.InDelta(t, px.Y, back.Y, 1e-9)
}

func TestScaledIntrinsics(t *testing.T) {
	t.Parallel()
	cam := Intrinsics{Fx: 400, Fy: 300, Cx: 320, Cy: 240}
	half := cam.Scaled(0.5)

	assert.Equal(t, Intrinsics{Fx: 200, Fy: 150, Cx: 160, Cy: 120}, half)
	assert.Equal(t, Intrinsics{Fx: 400, Fy: 300, Cx: 320, Cy: 240}, cam, "scaling must not touch the original")
}

func TestIntrinsicsValidate(t *testing.T) {
	t.Parallel()
	assert.NoError(t, testCamera().Validate())
	assert.ErrorIs(t, Intrinsics{Fx: 0, Fy: 10}.Validate(), ErrInvalidIntrinsics)
	assert.ErrorIs(t, Intrinsics{Fx: 10, Fy: math.NaN()}.Validate(), ErrInvalidIntrinsics)
}

// The analytic jacobian is checked against central differences of the
// reprojection, with the twist applied on the left of the pose.
func TestProjectionJacobianMatchesFiniteDifferences(t *testing.T) {
	t.Parallel()
	cam := Intrinsics{Fx: 520, Fy: 510, Cx: 320, Cy: 240}

	poses := []emath.SE3{
		emath.IdentitySE3(),
		emath.Exp(emath.Twist{0.1, -0.05, 0.2, 0.02, -0.03, 0.01}),
		emath.Exp(emath.Twist{-0.3, 0.2, 0.1, 0.1, 0.05, -0.2}),
	}
	points := []r3.Vector{
		{X: 0.1, Y: -0.2, Z: 1.5},
		{X: -0.8, Y: 0.4, Z: 3.0},
		{X: 0.5, Y: 0.5, Z: 0.9},
	}

	for _, pose := range poses {
		for _, p := range points {
			pCur := pose.Transform(p)
			if pCur.Z <= 0 {
				continue
			}

			reproject := func(y, x []float64) {
				var tw emath.Twist
				copy(tw[:], x)
				uv := cam.Project(pose.Update(tw).Transform(p))
				y[0], y[1] = uv.X, uv.Y
			}

			numerical := mat.NewDense(2, 6, nil)
			fd.Jacobian(numerical, reproject, make([]float64, 6), &fd.JacobianSettings{
				Formula: fd.Central,
				Step:    1e-6,
			})

			analytic := cam.ProjectionJacobian(pCur)
			for r := 0; r < 2; r++ {
				for c := 0; c < 6; c++ {
					a, n := analytic[r][c], numerical.At(r, c)
					tol := 1e-4 * math.Max(1, math.Abs(a))
					assert.InDeltaf(t, a, n, tol, "J[%d][%d] at %v", r, c, p)
				}
			}
		}
	}
}
