package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/codahale/hdrhistogram"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/abworrall/direct-pose/pkg/direct"
	"github.com/abworrall/direct-pose/pkg/emath"
	"github.com/abworrall/direct-pose/pkg/frames"
	"github.com/abworrall/direct-pose/pkg/sampler"
)

type frameResult struct {
	Frame    int
	Pose     emath.SE3
	Status   direct.Status
	Reason   direct.StopReason
	Cost     float64
	Outliers int
	Latency  time.Duration
}

// A sequence tracks frames against the current keyframe, carrying the
// pose estimate from one frame to the next.
type sequence struct {
	cfg     runConfig
	est     *direct.Estimator
	log     zerolog.Logger
	latency *hdrhistogram.Histogram // microseconds per tracked frame

	refFrame int
	ref      emath.FloatGrid
	pixels   []r2.Point
	depths   []float64
	pose     emath.SE3

	results []frameResult
}

func newSequence(cfg runConfig, log zerolog.Logger) (*sequence, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	est, err := direct.NewEstimator(cfg.Estimator, log)
	if err != nil {
		return nil, err
	}
	return &sequence{
		cfg:     cfg,
		est:     est,
		log:     log,
		latency: hdrhistogram.New(1, 60*1000*1000, 3),
		pose:    emath.IdentitySE3(),
	}, nil
}

// setKeyframe makes frame i the reference, and picks fresh points from
// it. The pose is kept as the first guess for the next frame.
func (s *sequence) setKeyframe(i int) error {
	img, depth, err := frames.LoadFrame(s.cfg.Dataset.Dir, i)
	if err != nil {
		return err
	}
	pixels, depths, err := sampler.Select(img, depth, s.cfg.Sampler)
	if err != nil {
		return errors.Wrapf(err, "keyframe %d", i)
	}

	s.refFrame, s.ref, s.pixels, s.depths = i, img, pixels, depths
	s.log.Info().Int("frame", i).Int("points", len(pixels)).Msg("new keyframe")
	s.log.Debug().Str("image", img.Stats()).Str("depth", depth.Stats()).Msg("keyframe grids")

	if dir := s.cfg.Dataset.OverlayDir; dir != "" {
		file := filepath.Join(dir, fmt.Sprintf("keyframe_%06d_depth.png", i))
		if err := depth.ToImg(fmt.Sprintf("depth %d", i), file); err != nil {
			return err
		}
	}
	return nil
}

func (s *sequence) track(i int) (frameResult, error) {
	img, err := frames.LoadGrayscale(frames.FramePath(s.cfg.Dataset.Dir, frames.CameraIntensity, i))
	if err != nil {
		return frameResult{}, errors.Wrapf(err, "frame %d", i)
	}

	tStart := time.Now()
	var res direct.LevelResult
	if s.cfg.Dataset.MultiLevel {
		pr, err := s.est.EstimatePoseMultiLevel(s.ref, img, s.cfg.Camera, s.pixels, s.depths, &s.pose)
		if err != nil {
			return frameResult{}, errors.Wrapf(err, "frame %d", i)
		}
		res = pr.Final()
	} else {
		res, err = s.est.EstimatePoseSingleLevel(s.ref, img, s.cfg.Camera, s.pixels, s.depths, &s.pose)
		if err != nil {
			return frameResult{}, errors.Wrapf(err, "frame %d", i)
		}
	}
	elapsed := time.Since(tStart)

	if err := s.latency.RecordValue(elapsed.Microseconds()); err != nil {
		s.log.Warn().Err(err).Dur("elapsed", elapsed).Msg("latency out of histogram range")
	}

	if dir := s.cfg.Dataset.OverlayDir; dir != "" {
		file := filepath.Join(dir, fmt.Sprintf("overlay_%06d.png", i))
		if err := frames.DrawProjections(img, res.Inliers, res.Outliers, file); err != nil {
			return frameResult{}, err
		}
	}

	fr := frameResult{
		Frame:    i,
		Pose:     s.pose,
		Status:   res.Status,
		Reason:   res.Reason,
		Cost:     res.FinalCost(),
		Outliers: res.NumOutliers,
		Latency:  elapsed,
	}
	s.log.Info().
		Int("frame", i).
		Int("ref", s.refFrame).
		Str("status", res.Status.String()).
		Str("reason", res.Reason.String()).
		Float64("cost", fr.Cost).
		Int("outliers", fr.Outliers).
		Dur("elapsed", elapsed).
		Msg("tracked")
	s.log.Debug().Msgf("T21:\n%s", s.pose)

	return fr, nil
}

// Run loads the reference frame, then walks [Start,End).
func (s *sequence) Run() error {
	ds := s.cfg.Dataset
	if err := s.setKeyframe(ds.Reference); err != nil {
		return err
	}

	for i := ds.Start; i < ds.End; i++ {
		if ds.KeyframeEvery > 0 && i%ds.KeyframeEvery == 0 {
			if err := s.setKeyframe(i); err != nil {
				return err
			}
			continue
		}

		fr, err := s.track(i)
		if err != nil {
			return err
		}
		s.results = append(s.results, fr)
	}

	if ds.PlotFile != "" {
		if err := s.plot(ds.PlotFile); err != nil {
			return err
		}
	}
	return nil
}

func (s *sequence) plot(filename string) error {
	var xs, costs, outliers []float64
	for _, r := range s.results {
		xs = append(xs, float64(r.Frame))
		costs = append(costs, r.Cost)
		outliers = append(outliers, float64(r.Outliers))
	}
	return frames.PlotSeries("direct pose", "frame", "cost / outliers", []frames.Series{
		{Name: "cost", Xs: xs, Ys: costs},
		{Name: "outliers", Xs: xs, Ys: outliers},
	}, filename)
}

func (s *sequence) Summary() string {
	aborted := 0
	for _, r := range s.results {
		if r.Status == direct.StatusAborted {
			aborted++
		}
	}
	h := s.latency
	return fmt.Sprintf("%d frames tracked, %d aborted; latency(us) p50:%d p90:%d p99:%d max:%d",
		len(s.results), aborted,
		h.ValueAtQuantile(50), h.ValueAtQuantile(90), h.ValueAtQuantile(99), h.Max())
}
