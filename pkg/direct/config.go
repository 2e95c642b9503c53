package direct

import (
	"io/ioutil"
	"runtime"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

/* Example config file, all keys optional ...

halfpatchsize: 1
huberthreshold: 8
outlierthreshold: 300
iterations: 4
convergencenorm: 0.001
pyramidlevels: 4
pyramidscale: 0.5
costnormalization: range

*/

const (
	CostPerRange = "range"  // sum over workers of (worker cost / worker valid points)
	CostGlobal   = "global" // total cost / total valid points

	ResizeLinear = "linear"
	ResizeArea   = "area" // 2x2 box average, only for a pyramid scale of 0.5
)

type Config struct {
	Verbosity int // above 0, the estimator logs its configuration when created

	HalfPatchSize    int     // patch is (2n+1)^2 pixels; also the border margin for reprojections
	HuberThreshold   float64 // residuals (intensity levels) above this get down-weighted
	OutlierThreshold float64 // mean squared patch error (intensity^2) above which a point is an outlier
	Iterations       int     // Gauss-Newton iterations per pyramid level
	ConvergenceNorm  float64 // stop once the update norm drops below this
	Workers          int     // parallel ranges per accumulation pass

	PyramidLevels      int
	PyramidScale       float64
	PyramidResize      string
	StopPyramidOnAbort bool // if false, finer levels still run after a degenerate level

	CostNormalization string
}

func NewConfig() Config {
	return Config{
		HalfPatchSize:     1,
		HuberThreshold:    8,
		OutlierThreshold:  300,
		Iterations:        4,
		ConvergenceNorm:   1e-3,
		Workers:           runtime.NumCPU(),
		PyramidLevels:     4,
		PyramidScale:      0.5,
		PyramidResize:     ResizeLinear,
		CostNormalization: CostPerRange,
	}
}

func newConfigFromYaml(b []byte) (Config, error) {
	c := NewConfig()
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, errors.Wrap(err, "parse config yaml")
	}
	return c, c.Validate()
}

func LoadConfig(filename string) (Config, error) {
	contents, err := ioutil.ReadFile(filename)
	if err != nil {
		return NewConfig(), errors.Wrapf(err, "config read %s", filename)
	}
	return newConfigFromYaml(contents)
}

func (c Config) AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return "# can't marshal config: " + err.Error()
	}
	return string(b)
}

// Validate does sanity checks on the values.
func (c Config) Validate() error {
	switch {
	case c.HalfPatchSize < 0:
		return errors.Wrapf(ErrInvalidConfig, "halfpatchsize %d", c.HalfPatchSize)
	case c.HuberThreshold <= 0:
		return errors.Wrapf(ErrInvalidConfig, "huberthreshold %f", c.HuberThreshold)
	case c.OutlierThreshold <= 0:
		return errors.Wrapf(ErrInvalidConfig, "outlierthreshold %f", c.OutlierThreshold)
	case c.Iterations < 1:
		return errors.Wrapf(ErrInvalidConfig, "iterations %d", c.Iterations)
	case c.ConvergenceNorm < 0:
		return errors.Wrapf(ErrInvalidConfig, "convergencenorm %f", c.ConvergenceNorm)
	case c.Workers < 1:
		return errors.Wrapf(ErrInvalidConfig, "workers %d", c.Workers)
	case c.PyramidLevels < 1:
		return errors.Wrapf(ErrInvalidConfig, "pyramidlevels %d", c.PyramidLevels)
	case c.PyramidScale <= 0 || c.PyramidScale >= 1:
		return errors.Wrapf(ErrInvalidConfig, "pyramidscale %f", c.PyramidScale)
	}

	switch c.PyramidResize {
	case ResizeLinear:
	case ResizeArea:
		if c.PyramidScale != 0.5 {
			return errors.Wrapf(ErrInvalidConfig, "pyramidresize %q needs pyramidscale 0.5", c.PyramidResize)
		}
	default:
		return errors.Wrapf(ErrInvalidConfig, "no pyramidresize named %q", c.PyramidResize)
	}

	switch c.CostNormalization {
	case CostPerRange, CostGlobal:
	default:
		return errors.Wrapf(ErrInvalidConfig, "no costnormalization named %q", c.CostNormalization)
	}

	return nil
}

// PatchPixels is the number of pixels sampled around each point.
func (c Config) PatchPixels() int {
	n := 2*c.HalfPatchSize + 1
	return n * n
}

// PyramidScales returns the scale of each level, finest (1.0) first.
func (c Config) PyramidScales() []float64 {
	scales := make([]float64, c.PyramidLevels)
	s := 1.0
	for i := range scales {
		scales[i] = s
		s *= c.PyramidScale
	}
	return scales
}
