package main

import (
	"io/ioutil"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/abworrall/direct-pose/pkg/direct"
	"github.com/abworrall/direct-pose/pkg/sampler"
)

/* Example run config, all keys optional ...

camera:
  fx: 637.27803366
  fy: 637.30526147
  cx: 636.3285782
  cy: 377.00039794
estimator:
  iterations: 4
  workers: 8
sampler:
  mode: gradient
dataset:
  dir: /data/img
  reference: 699
  start: 700
  end: 3500
  keyframeevery: 3
  multilevel: false

*/

type datasetConfig struct {
	Dir           string
	Reference     int // first keyframe
	Start, End    int // frames [Start,End) are tracked
	KeyframeEvery int // frames with i%KeyframeEvery == 0 become the new reference; 0 disables
	MultiLevel    bool
	OverlayDir    string // if set, an overlay png per tracked frame goes here
	PlotFile      string // if set, cost & outlier plot for the run
}

type runConfig struct {
	Camera    direct.Intrinsics
	Estimator direct.Config
	Sampler   sampler.Config
	Dataset   datasetConfig
}

func newRunConfig() runConfig {
	return runConfig{
		Camera:    direct.Intrinsics{Fx: 637.27803366, Fy: 637.30526147, Cx: 636.3285782, Cy: 377.00039794},
		Estimator: direct.NewConfig(),
		Sampler:   sampler.NewConfig(),
		Dataset: datasetConfig{
			Dir:           ".",
			Reference:     699,
			Start:         700,
			End:           3500,
			KeyframeEvery: 3,
		},
	}
}

func loadRunConfig(filename string) (runConfig, error) {
	c := newRunConfig()
	contents, err := ioutil.ReadFile(filename)
	if err != nil {
		return c, errors.Wrapf(err, "config read %s", filename)
	}
	if err := yaml.Unmarshal(contents, &c); err != nil {
		return c, errors.Wrapf(err, "config parse %s", filename)
	}
	return c, nil
}

func (c runConfig) Validate() error {
	if err := c.Camera.Validate(); err != nil {
		return err
	}
	if err := c.Estimator.Validate(); err != nil {
		return err
	}
	if err := c.Sampler.Validate(); err != nil {
		return err
	}
	if c.Dataset.End < c.Dataset.Start || c.Dataset.KeyframeEvery < 0 {
		return errors.Errorf("bad dataset frames [%d,%d) every %d", c.Dataset.Start, c.Dataset.End, c.Dataset.KeyframeEvery)
	}
	return nil
}

func (c runConfig) AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return "# can't marshal config: " + err.Error()
	}
	return string(b)
}
