package direct

import (
	"fmt"
	"time"

	"github.com/golang/geo/r2"

	"github.com/abworrall/direct-pose/pkg/emath"
)

// PyramidResult holds the per-level results, coarsest level first.
type PyramidResult struct {
	Levels   []LevelResult
	Duration time.Duration
}

func (pr PyramidResult) String() string {
	str := fmt.Sprintf("Pyramid %s [\n", pr.Duration)
	for _, l := range pr.Levels {
		str += fmt.Sprintf("  %s\n", l)
	}
	return str + "]"
}

// Final is the result at the finest level that ran.
func (pr PyramidResult) Final() LevelResult {
	for i := len(pr.Levels) - 1; i >= 0; i-- {
		if pr.Levels[i].Status != StatusSkipped {
			return pr.Levels[i]
		}
	}
	return LevelResult{Status: StatusSkipped, Reason: ReasonLevelTooSmall}
}

func (pr PyramidResult) AnyAborted() bool {
	for _, l := range pr.Levels {
		if l.Status == StatusAborted {
			return true
		}
	}
	return false
}

// BuildPyramid returns img followed by PyramidLevels-1 successively
// downsampled copies. Levels that get too small come back empty.
func (e *Estimator) BuildPyramid(img emath.FloatGrid) []emath.FloatGrid {
	pyr := make([]emath.FloatGrid, e.PyramidLevels)
	pyr[0] = img
	for i := 1; i < e.PyramidLevels; i++ {
		prev := pyr[i-1]
		if e.PyramidResize == ResizeArea {
			pyr[i] = prev.DownSample()
		} else {
			pyr[i] = prev.Resize(e.PyramidScale)
		}
	}
	return pyr
}

// levelUsable says whether a level can host a patch, plus the extra
// pixel the gradient reaches out to, anywhere at all.
func (e *Estimator) levelUsable(img emath.FloatGrid) bool {
	min := 2*e.HalfPatchSize + 3
	return img.Dx() >= min && img.Dy() >= min
}

// EstimatePoseMultiLevel runs the single level estimator from the
// coarsest pyramid level to the finest, threading the one pose
// through all of them. Each level gets its own scaled copy of the
// intrinsics and pixels. A level that aborts still hands its best
// pose on to the next finer level, unless StopPyramidOnAbort is set.
func (e *Estimator) EstimatePoseMultiLevel(img1, img2 emath.FloatGrid, cam Intrinsics, pixels []r2.Point, depths []float64, pose *emath.SE3) (PyramidResult, error) {
	obs, err := e.checkInputs(img1, img2, cam, pixels, depths, pose)
	if err != nil {
		return PyramidResult{}, err
	}

	tStart := time.Now()
	pyr1 := e.BuildPyramid(img1)
	pyr2 := e.BuildPyramid(img2)
	scales := e.PyramidScales()
	result := PyramidResult{}

	for level := len(scales) - 1; level >= 0; level-- {
		s := scales[level]

		if !e.levelUsable(pyr1[level]) || pyr1[level].Size() != pyr2[level].Size() {
			e.Log.Debug().Int("level", level).Str("size", fmt.Sprint(pyr1[level].Size())).Msg("skipping pyramid level")
			result.Levels = append(result.Levels, LevelResult{Scale: s, Status: StatusSkipped, Reason: ReasonLevelTooSmall})
			continue
		}

		res := e.optimize(&pyr1[level], &pyr2[level], cam.Scaled(s), scaleObservations(obs, s), pose, s)
		result.Levels = append(result.Levels, res)

		if res.Status == StatusAborted && e.StopPyramidOnAbort {
			e.Log.Warn().Int("level", level).Msg("stopping pyramid after aborted level")
			break
		}
	}

	result.Duration = time.Since(tStart)
	return result, nil
}
