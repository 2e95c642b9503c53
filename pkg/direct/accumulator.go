package direct

import (
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/rs/zerolog"

	"github.com/abworrall/direct-pose/pkg/emath"
)

// NoProjection marks an empty slot in the projection caches.
var NoProjection = r2.Point{X: -1, Y: -1}

func IsProjected(p r2.Point) bool { return p != NoProjection }

// An Accumulator holds everything one pose estimation call needs
// about its points: the two images, the observations, and the outlier
// flags. Accumulate reads the flags, ClassifyOutliers writes them; the
// caller must not run the two concurrently.
type Accumulator struct {
	cfg  Config
	log  zerolog.Logger
	img1 *emath.FloatGrid
	img2 *emath.FloatGrid
	cam  Intrinsics
	obs  []Observation

	outlier            []bool
	projections        []r2.Point // where inliers landed in img2, at the last classification
	outlierProjections []r2.Point // same, for outliers
	patchErrors        []float64  // mean squared patch error at the last classification; NaN if unclassified
}

func NewAccumulator(cfg Config, log zerolog.Logger, img1, img2 *emath.FloatGrid, cam Intrinsics, obs []Observation) *Accumulator {
	a := &Accumulator{
		cfg:                cfg,
		log:                log,
		img1:               img1,
		img2:               img2,
		cam:                cam,
		obs:                obs,
		outlier:            make([]bool, len(obs)),
		projections:        make([]r2.Point, len(obs)),
		outlierProjections: make([]r2.Point, len(obs)),
		patchErrors:        make([]float64, len(obs)),
	}
	for i := range obs {
		a.projections[i] = NoProjection
		a.outlierProjections[i] = NoProjection
		a.patchErrors[i] = math.NaN()
	}
	return a
}

func (a *Accumulator) Len() int { return len(a.obs) }

func (a *Accumulator) Outliers() []bool {
	return append([]bool(nil), a.outlier...)
}

func (a *Accumulator) NumOutliers() int {
	n := 0
	for _, o := range a.outlier {
		if o {
			n++
		}
	}
	return n
}

// Projections returns copies of the inlier and outlier caches.
func (a *Accumulator) Projections() ([]r2.Point, []r2.Point) {
	return append([]r2.Point(nil), a.projections...), append([]r2.Point(nil), a.outlierProjections...)
}

func (a *Accumulator) PatchErrors() []float64 {
	return append([]float64(nil), a.patchErrors...)
}

// reproject carries observation i through the pose into image 2. It
// returns false if the point ends up behind the camera, or its pixel
// is within HalfPatchSize of the border. With allowZeroDepth a point
// at Z == 0 is only stopped by the border check.
func (a *Accumulator) reproject(pose emath.SE3, i int, allowZeroDepth bool) (r3.Vector, r2.Point, bool) {
	pRef := a.cam.BackProject(a.obs[i].Pixel, a.obs[i].Depth)
	pCur := pose.Transform(pRef)

	if pCur.Z < 0 || (pCur.Z == 0 && !allowZeroDepth) {
		return pCur, r2.Point{}, false
	}

	uv := a.cam.Project(pCur)
	if !a.inBounds(uv) {
		return pCur, uv, false
	}
	return pCur, uv, true
}

// inBounds is written as a positive test so NaN pixels fail it.
func (a *Accumulator) inBounds(uv r2.Point) bool {
	m := float64(a.cfg.HalfPatchSize)
	maxX := float64(a.img2.Dx()-1) - m
	maxY := float64(a.img2.Dy()-1) - m
	return uv.X >= m && uv.X <= maxX && uv.Y >= m && uv.Y <= maxY
}

func huberWeight(e, threshold float64) float64 {
	if math.Abs(e) < threshold {
		return 1
	}
	return threshold / math.Abs(e)
}

// Accumulate builds the normal equations for the pose. Each range of
// points is summed into its own NormalEquations, and the partial sums
// are merged under a single lock.
func (a *Accumulator) Accumulate(pose emath.SE3) NormalEquations {
	tStart := time.Now()

	var mu sync.Mutex
	var total NormalEquations

	parallelFor(len(a.obs), a.cfg.Workers, func(lo, hi int) {
		part := a.accumulateRange(pose, lo, hi)
		if part.NumValid == 0 {
			return
		}
		mu.Lock()
		total.merge(part, a.cfg.CostNormalization)
		mu.Unlock()
	})

	if a.cfg.CostNormalization == CostGlobal && total.NumValid > 0 {
		total.Cost /= float64(total.NumValid)
	}

	a.log.Debug().
		Int("valid", total.NumValid).
		Float64("cost", total.Cost).
		Dur("elapsed", time.Since(tStart)).
		Msg("accumulated normal equations")

	return total
}

func (a *Accumulator) accumulateRange(pose emath.SE3, lo, hi int) NormalEquations {
	var part NormalEquations
	hp := a.cfg.HalfPatchSize

	for i := lo; i < hi; i++ {
		if a.outlier[i] {
			continue
		}

		pCur, uv, ok := a.reproject(pose, i, false)
		if !ok {
			continue
		}

		jPixel := a.cam.ProjectionJacobian(pCur)
		ref := a.obs[i].Pixel
		part.NumValid++

		for x := -hp; x <= hp; x++ {
			for y := -hp; y <= hp; y++ {
				dx, dy := float64(x), float64(y)

				e := a.img1.Bilinear(ref.X+dx, ref.Y+dy) - a.img2.Bilinear(uv.X+dx, uv.Y+dy)
				w := huberWeight(e, a.cfg.HuberThreshold)
				gx, gy := a.img2.Gradient(uv.X+dx, uv.Y+dy)

				var J [6]float64
				for k := 0; k < 6; k++ {
					J[k] = -(gx*jPixel[0][k] + gy*jPixel[1][k])
				}
				part.addPixel(J, e, w)
			}
		}
	}

	return part
}
