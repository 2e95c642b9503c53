package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"
)

var (
	fVerbosity     int
	fConfig        string
	fDir           string
	fStart         int
	fEnd           int
	fKeyframeEvery int
	fMultiLevel    bool
	fWorkers       int
	fOverlayDir    string
	fPlotFile      string
)

func init() {
	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get")
	flag.StringVar(&fConfig, "config", "", "yaml file with camera/estimator/sampler/dataset sections")
	flag.StringVar(&fDir, "dir", "", "dataset dir, holding image_0/ (intensity) and image_1/ (depth)")
	flag.IntVar(&fStart, "start", -1, "first frame to track")
	flag.IntVar(&fEnd, "end", -1, "frame to stop at (exclusive)")
	flag.IntVar(&fKeyframeEvery, "keyframe", -1, "every Nth frame becomes the reference (0 for never)")
	flag.BoolVar(&fMultiLevel, "multilevel", false, "estimate coarse to fine on an image pyramid")
	flag.IntVar(&fWorkers, "workers", 0, "goroutines per accumulation pass (default NumCPU)")
	flag.StringVar(&fOverlayDir, "overlays", "", "dir to write projection overlays into")
	flag.StringVar(&fPlotFile, "plot", "", "png file for a cost/outlier plot of the run")
}

func newLogger(verbosity int) zerolog.Logger {
	level := zerolog.InfoLevel
	switch {
	case verbosity >= 2:
		level = zerolog.TraceLevel
	case verbosity == 1:
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

// applyFlags lets anything set on the command line win over the file.
func applyFlags(cfg *runConfig) {
	cfg.Estimator.Verbosity = fVerbosity
	if fDir != "" {
		cfg.Dataset.Dir = fDir
	}
	if fStart >= 0 {
		cfg.Dataset.Start = fStart
	}
	if fEnd >= 0 {
		cfg.Dataset.End = fEnd
	}
	if fKeyframeEvery >= 0 {
		cfg.Dataset.KeyframeEvery = fKeyframeEvery
	}
	if fMultiLevel {
		cfg.Dataset.MultiLevel = true
	}
	if fWorkers > 0 {
		cfg.Estimator.Workers = fWorkers
	}
	if fOverlayDir != "" {
		cfg.Dataset.OverlayDir = fOverlayDir
	}
	if fPlotFile != "" {
		cfg.Dataset.PlotFile = fPlotFile
	}
}

func main() {
	flag.Parse()
	log := newLogger(fVerbosity)
	log.Info().Msg("directpose starting")

	cfg := newRunConfig()
	if fConfig != "" {
		var err error
		if cfg, err = loadRunConfig(fConfig); err != nil {
			log.Fatal().Err(err).Msg("config")
		}
		log.Info().Str("file", fConfig).Msg("loaded configuration")
	}
	applyFlags(&cfg)

	if fVerbosity > 0 {
		log.Debug().Msgf("Final configuration:-\n\n%s\n", cfg.AsYaml())
	}

	seq, err := newSequence(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("setup")
	}
	if err := seq.Run(); err != nil {
		log.Fatal().Err(err).Msg("run")
	}
	log.Info().Msg(seq.Summary())
}
