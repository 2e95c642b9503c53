package direct

import (
	"fmt"
	"math"

	"github.com/skypies/util/histogram"

	"github.com/abworrall/direct-pose/pkg/emath"
)

type ClassificationStats struct {
	Inliers      int
	Outliers     int
	Unclassified int // failed the depth/border check; flag left as it was
}

func (s ClassificationStats) String() string {
	return fmt.Sprintf("in:%d out:%d unclassified:%d", s.Inliers, s.Outliers, s.Unclassified)
}

// ClassifyOutliers re-evaluates every point at the pose, flagged or
// not, and flags those whose mean squared patch error is above
// OutlierThreshold. Each range writes only its own indices.
func (a *Accumulator) ClassifyOutliers(pose emath.SE3) ClassificationStats {
	parallelFor(len(a.obs), a.cfg.Workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			a.classifyPoint(pose, i)
		}
	})

	stats := ClassificationStats{}
	for i := range a.obs {
		switch {
		case math.IsNaN(a.patchErrors[i]):
			stats.Unclassified++
		case a.outlier[i]:
			stats.Outliers++
		default:
			stats.Inliers++
		}
	}

	if ev := a.log.Debug(); ev.Enabled() {
		h := histogram.Histogram{NumBuckets: 24, ValMin: 0, ValMax: 1200}
		for _, e := range a.patchErrors {
			if !math.IsNaN(e) {
				h.Add(histogram.ScalarVal(int(e)))
			}
		}
		ev.Str("stats", stats.String()).Str("patch_errors", fmt.Sprintf("%v", h)).Msg("classified outliers")
	}

	return stats
}

func (a *Accumulator) classifyPoint(pose emath.SE3, i int) {
	_, uv, ok := a.reproject(pose, i, true)
	if !ok {
		a.patchErrors[i] = math.NaN()
		return
	}

	hp := a.cfg.HalfPatchSize
	ref := a.obs[i].Pixel
	sum := 0.0
	for x := -hp; x <= hp; x++ {
		for y := -hp; y <= hp; y++ {
			dx, dy := float64(x), float64(y)
			e := a.img1.Bilinear(ref.X+dx, ref.Y+dy) - a.img2.Bilinear(uv.X+dx, uv.Y+dy)
			sum += e * e
		}
	}
	meanErr := sum / float64(a.cfg.PatchPixels())
	a.patchErrors[i] = meanErr

	if meanErr > a.cfg.OutlierThreshold {
		a.outlier[i] = true
		a.projections[i] = NoProjection
		a.outlierProjections[i] = uv
	} else {
		a.outlier[i] = false
		a.projections[i] = uv
		a.outlierProjections[i] = NoProjection
	}
}
