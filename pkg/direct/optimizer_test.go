package direct

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abworrall/direct-pose/pkg/emath"
)

// An 8x8 horizontal ramp, and the same ramp one pixel to the right.
// One point, with a patch gradient that only sees x.
func TestSinglePointRamp(t *testing.T) {
	t.Parallel()
	img1 := makeGrid(8, 8, func(x, y float64) float64 { return 20 * x })
	img2 := makeGrid(8, 8, func(x, y float64) float64 { return math.Max(0, 20*(x-1)) })
	cam := Intrinsics{Fx: 10, Fy: 10, Cx: 4, Cy: 4}

	e := testEstimator(testConfig(1))
	pose := emath.IdentitySE3()
	res, err := e.EstimatePoseSingleLevel(img1, img2, cam, []r2.Point{{X: 4, Y: 4}}, []float64{1}, &pose)
	require.NoError(t, err)

	assert.Equal(t, StatusConverged, res.Status)
	assert.Equal(t, ReasonUpdateSmall, res.Reason)
	assert.Equal(t, 2, res.Iterations)

	require.Len(t, res.Costs, 2)
	assert.InDelta(t, 576.0, res.Costs[0], 1e-6)
	assert.Less(t, res.Costs[1], 0.1)

	// The pseudo-inverse splits the motion between x translation and y rotation
	assert.InDelta(t, 0.05, pose.T.X, 0.005)
	assert.InDelta(t, 0.0, pose.T.Y, 1e-12)

	require.True(t, IsProjected(res.Inliers[0]))
	assert.InDelta(t, 5.0, res.Inliers[0].X, 0.01)
	assert.InDelta(t, 4.0, res.Inliers[0].Y, 1e-9)
	assert.Equal(t, 0, res.NumOutliers)
}

func TestTranslatedPlane(t *testing.T) {
	t.Parallel()
	img1, img2 := shiftedTexture(64, 48, 1.5)
	pixels, depths := gridPoints(6, 58, 6, 42, 4, 2.0)

	e := testEstimator(testConfig(4))
	pose := emath.IdentitySE3()
	res, err := e.EstimatePoseSingleLevel(img1, img2, testCamera(), pixels, depths, &pose)
	require.NoError(t, err)

	assert.Equal(t, StatusConverged, res.Status)
	require.NotEmpty(t, res.Costs)
	for i := 1; i < len(res.Costs); i++ {
		assert.LessOrEqualf(t, res.Costs[i], res.Costs[i-1], "cost %d went up", i)
	}
	assert.Less(t, res.FinalCost(), res.Costs[0])

	// 1.5px at depth 2 with fx 50
	assert.InDelta(t, 0.06, pose.T.X, 0.01)

	nInliers := 0
	for i, uv := range res.Inliers {
		if !IsProjected(uv) {
			continue
		}
		nInliers++
		assert.InDelta(t, pixels[i].X+1.5, uv.X, 0.05)
		assert.InDelta(t, pixels[i].Y, uv.Y, 0.05)
	}
	assert.Greater(t, nInliers, len(pixels)/2)
}

func TestIdenticalImagesLeavePoseAlone(t *testing.T) {
	t.Parallel()
	img := makeGrid(64, 48, texture)
	pixels, depths := gridPoints(6, 58, 6, 42, 4, 2.0)

	e := testEstimator(testConfig(3))
	pose := emath.IdentitySE3()
	res, err := e.EstimatePoseSingleLevel(img, img, testCamera(), pixels, depths, &pose)
	require.NoError(t, err)

	assert.Equal(t, StatusConverged, res.Status)
	assert.Equal(t, ReasonUpdateSmall, res.Reason)
	assert.Equal(t, 1, res.Iterations)
	require.Len(t, res.Costs, 1)
	assert.InDelta(t, 0, res.Costs[0], 1e-12)

	// Back-projecting and reprojecting a pixel isn't exact, so the pose
	// only stays at identity to within rounding
	assert.Less(t, pose.T.Norm(), 1e-12)
	id := emath.Identity3()
	for i := range pose.R {
		assert.InDelta(t, id[i], pose.R[i], 1e-12)
	}
	assert.Equal(t, 0, res.NumOutliers)
}

// A 4px shift is too far to settle in one step; the solver overshoots
// and the first step that makes things worse is thrown away.
func TestCostIncreaseDiscardsStep(t *testing.T) {
	t.Parallel()
	img1, img2 := shiftedTexture(64, 48, 4)
	pixels, depths := gridPoints(6, 58, 6, 42, 4, 2.0)

	cfg := testConfig(4)
	cfg.ConvergenceNorm = 0
	cfg.Iterations = 30

	pose := emath.IdentitySE3()
	res, err := testEstimator(cfg).EstimatePoseSingleLevel(img1, img2, testCamera(), pixels, depths, &pose)
	require.NoError(t, err)

	assert.Equal(t, StatusConverged, res.Status)
	require.Equal(t, ReasonCostIncreased, res.Reason)
	require.NotEmpty(t, res.Costs)
	assert.Equal(t, len(res.Costs)+1, res.Iterations)
	for i := 1; i < len(res.Costs); i++ {
		assert.LessOrEqualf(t, res.Costs[i], res.Costs[i-1], "cost %d went up", i)
	}

	// Stopping just before the bad step lands on the same pose
	cfg.Iterations = len(res.Costs)
	budgetPose := emath.IdentitySE3()
	budgetRes, err := testEstimator(cfg).EstimatePoseSingleLevel(img1, img2, testCamera(), pixels, depths, &budgetPose)
	require.NoError(t, err)
	assert.Equal(t, ReasonIterationBudget, budgetRes.Reason)
	assert.InDeltaSlice(t, []float64{budgetPose.T.X, budgetPose.T.Y, budgetPose.T.Z},
		[]float64{pose.T.X, pose.T.Y, pose.T.Z}, 1e-9)
	assert.InDeltaSlice(t, budgetPose.R[:], pose.R[:], 1e-9)
}

func TestIterationBudgetRunsOut(t *testing.T) {
	t.Parallel()
	img1, img2 := shiftedTexture(64, 48, 1.5)
	pixels, depths := gridPoints(6, 58, 6, 42, 4, 2.0)

	cfg := testConfig(4)
	cfg.ConvergenceNorm = 0
	cfg.Iterations = 1

	pose := emath.IdentitySE3()
	res, err := testEstimator(cfg).EstimatePoseSingleLevel(img1, img2, testCamera(), pixels, depths, &pose)
	require.NoError(t, err)

	assert.Equal(t, StatusConverged, res.Status)
	assert.Equal(t, ReasonIterationBudget, res.Reason)
	assert.Equal(t, 1, res.Iterations)
	assert.Len(t, res.Costs, 1)
	assert.Greater(t, pose.T.X, 0.0)
}

func TestTexturelessImagesAbort(t *testing.T) {
	t.Parallel()
	img := makeGrid(64, 48, uniform)
	pixels, depths := gridPoints(6, 58, 6, 42, 4, 2.0)

	e := testEstimator(testConfig(2))
	start := emath.Exp(emath.Twist{0.01, 0.02, 0, 0, 0.01, 0})
	pose := start
	res, err := e.EstimatePoseSingleLevel(img, img, testCamera(), pixels, depths, &pose)
	require.NoError(t, err)

	assert.Equal(t, StatusAborted, res.Status)
	assert.Equal(t, ReasonDegenerate, res.Reason)
	assert.Equal(t, 1, res.Iterations)
	assert.Empty(t, res.Costs)
	assert.Equal(t, start, pose)
}

func TestAllPointsOffImageAbort(t *testing.T) {
	t.Parallel()
	img1, img2 := shiftedTexture(64, 48, 1.5)
	pixels, depths := gridPoints(6, 58, 6, 42, 4, 2.0)

	// Pushes everything far out of view
	pose := emath.Exp(emath.Twist{50, 0, 0, 0, 0, 0})
	start := pose
	res, err := testEstimator(testConfig(2)).EstimatePoseSingleLevel(img1, img2, testCamera(), pixels, depths, &pose)
	require.NoError(t, err)

	assert.Equal(t, StatusAborted, res.Status)
	assert.Equal(t, start, pose)
	for i := range res.Inliers {
		assert.False(t, IsProjected(res.Inliers[i]))
		assert.False(t, IsProjected(res.Outliers[i]))
	}
}

func TestEstimateRejectsBadInputs(t *testing.T) {
	t.Parallel()
	img := makeGrid(16, 16, texture)
	small := makeGrid(8, 16, texture)
	cam := Intrinsics{Fx: 10, Fy: 10, Cx: 8, Cy: 8}
	px := []r2.Point{{X: 8, Y: 8}}
	e := testEstimator(testConfig(1))
	pose := emath.IdentitySE3()

	_, err := e.EstimatePoseSingleLevel(img, img, cam, px, []float64{1, 2}, &pose)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = e.EstimatePoseSingleLevel(img, img, cam, nil, nil, &pose)
	assert.ErrorIs(t, err, ErrNoObservations)

	_, err = e.EstimatePoseSingleLevel(img, img, cam, px, []float64{1}, nil)
	assert.ErrorIs(t, err, ErrNilPose)

	_, err = e.EstimatePoseSingleLevel(img, small, cam, px, []float64{1}, &pose)
	assert.ErrorIs(t, err, ErrImageSize)

	_, err = e.EstimatePoseSingleLevel(emath.FloatGrid{}, emath.FloatGrid{}, cam, px, []float64{1}, &pose)
	assert.ErrorIs(t, err, ErrImageSize)

	_, err = e.EstimatePoseSingleLevel(img, img, Intrinsics{}, px, []float64{1}, &pose)
	assert.ErrorIs(t, err, ErrInvalidIntrinsics)

	_, err = e.EstimatePoseMultiLevel(img, img, cam, px, []float64{1, 2}, &pose)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestNewEstimatorValidates(t *testing.T) {
	t.Parallel()
	cfg := NewConfig()
	cfg.Iterations = 0
	_, err := NewEstimator(cfg, testEstimator(NewConfig()).Log)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
