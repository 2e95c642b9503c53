package direct

import (
	"fmt"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/abworrall/direct-pose/pkg/emath"
)

type Status int

const (
	StatusConverged Status = iota // normal stop, including running out of iterations
	StatusAborted                 // numerical failure; pose left at the last accepted value
	StatusSkipped                 // pyramid level too small to try
)

func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusAborted:
		return "aborted"
	case StatusSkipped:
		return "skipped"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

type StopReason int

const (
	ReasonIterationBudget StopReason = iota
	ReasonUpdateSmall
	ReasonCostIncreased
	ReasonDegenerate
	ReasonLevelTooSmall
)

func (r StopReason) String() string {
	switch r {
	case ReasonIterationBudget:
		return "iteration budget"
	case ReasonUpdateSmall:
		return "update below convergence norm"
	case ReasonCostIncreased:
		return "cost increased"
	case ReasonDegenerate:
		return "degenerate system"
	case ReasonLevelTooSmall:
		return "level too small"
	}
	return fmt.Sprintf("StopReason(%d)", int(r))
}

// LevelResult describes one run of the optimizer.
type LevelResult struct {
	Scale  float64
	Status Status
	Reason StopReason

	Iterations int       // accumulation passes run
	Costs      []float64 // cost of each accepted iteration, in order

	Inliers     []r2.Point // per observation, NoProjection unless an inlier at the last classification
	Outliers    []r2.Point // per observation, NoProjection unless an outlier at the last classification
	NumOutliers int

	Duration time.Duration
}

func (r LevelResult) String() string {
	return fmt.Sprintf("Level[x%.3f %s (%s), %d iters, cost %.3f, %d outliers, %s]",
		r.Scale, r.Status, r.Reason, r.Iterations, r.FinalCost(), r.NumOutliers, r.Duration)
}

// FinalCost is the cost of the last accepted iteration, or 0 if none
// was accepted.
func (r LevelResult) FinalCost() float64 {
	if len(r.Costs) == 0 {
		return 0
	}
	return r.Costs[len(r.Costs)-1]
}

// An Estimator runs direct (photometric) pose estimation between a
// reference image, whose points have known depth, and a second image.
type Estimator struct {
	Config
	Log zerolog.Logger
}

func NewEstimator(cfg Config, log zerolog.Logger) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Estimator{
		Config: cfg,
		Log:    log.With().Str("component", "direct").Logger(),
	}
	if cfg.Verbosity > 0 {
		e.Log.Info().Msgf("estimator configuration:-\n\n%s", cfg.AsYaml())
	}
	return e, nil
}

// EstimatePoseSingleLevel refines pose (T21, mapping frame-1 points
// into frame 2) at full resolution. pose is updated in place after
// every accepted iteration. An error is returned only for bad inputs,
// before any work is done; numerical trouble shows up in the result's
// Status.
func (e *Estimator) EstimatePoseSingleLevel(img1, img2 emath.FloatGrid, cam Intrinsics, pixels []r2.Point, depths []float64, pose *emath.SE3) (LevelResult, error) {
	obs, err := e.checkInputs(img1, img2, cam, pixels, depths, pose)
	if err != nil {
		return LevelResult{}, err
	}

	return e.optimize(&img1, &img2, cam, obs, pose, 1.0), nil
}

func (e *Estimator) checkInputs(img1, img2 emath.FloatGrid, cam Intrinsics, pixels []r2.Point, depths []float64, pose *emath.SE3) ([]Observation, error) {
	if pose == nil {
		return nil, ErrNilPose
	}
	obs, err := NewObservations(pixels, depths)
	if err != nil {
		return nil, err
	}
	if img1.IsEmpty() || img2.IsEmpty() {
		return nil, errors.Wrap(ErrImageSize, "empty image")
	}
	if img1.Size() != img2.Size() {
		return nil, errors.Wrapf(ErrImageSize, "%v vs %v", img1.Size(), img2.Size())
	}
	if err := cam.Validate(); err != nil {
		return nil, err
	}
	return obs, nil
}

// optimize is the Gauss-Newton loop for one level.
func (e *Estimator) optimize(img1, img2 *emath.FloatGrid, cam Intrinsics, obs []Observation, pose *emath.SE3, scale float64) LevelResult {
	tStart := time.Now()
	log := e.Log.With().Float64("scale", scale).Logger()

	acc := NewAccumulator(e.Config, log, img1, img2, cam, obs)
	res := LevelResult{Scale: scale, Status: StatusConverged, Reason: ReasonIterationBudget}
	lastCost := 0.0

	for iter := 0; iter < e.Iterations; iter++ {
		ne := acc.Accumulate(*pose)
		res.Iterations++

		update, err := ne.Solve()
		if err != nil {
			// Sometimes happens with a black or white patch, where H can't be inverted
			log.Warn().Int("iter", iter).Int("valid", ne.NumValid).Err(err).Msg("update not solvable, aborting")
			res.Status = StatusAborted
			res.Reason = ReasonDegenerate
			break
		}

		candidate := pose.Update(update)
		cost := ne.Cost

		if iter > 0 && cost > lastCost {
			log.Debug().Int("iter", iter).Float64("cost", cost).Float64("last", lastCost).Msg("cost increased")
			res.Reason = ReasonCostIncreased
			break
		}

		*pose = candidate
		res.Costs = append(res.Costs, cost)
		stats := acc.ClassifyOutliers(*pose)

		log.Debug().
			Int("iter", iter).
			Float64("cost", cost).
			Float64("update", update.Norm()).
			Str("outliers", stats.String()).
			Msg("iteration")

		if update.Norm() < e.ConvergenceNorm {
			res.Reason = ReasonUpdateSmall
			break
		}

		lastCost = cost
	}

	res.Inliers, res.Outliers = acc.Projections()
	res.NumOutliers = acc.NumOutliers()
	res.Duration = time.Since(tStart)

	log.Info().Str("result", res.String()).Msg("pose estimated")
	return res
}
