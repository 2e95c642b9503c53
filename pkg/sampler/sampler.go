package sampler

// Picks the reference pixels that get tracked, and looks up their
// depths.

import (
	"io/ioutil"
	"math"
	"math/rand/v2"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/abworrall/direct-pose/pkg/emath"
)

const (
	ModeRandom   = "random"
	ModeGradient = "gradient"
)

var (
	ErrNoPoints      = errors.New("no usable points")
	ErrSizeMismatch  = errors.New("image and depth map sizes differ")
	ErrInvalidConfig = errors.New("invalid sampler config")
)

/* Example config, all keys optional ...

mode: gradient
gradientstride: 3
gradientthreshold: 50
mindepth: 0.3
maxdepth: 8
depthscale: 0.001

*/

type Config struct {
	Mode string

	// random
	NumPoints      int
	Border         int
	Seed           uint64
	RandomMinDepth float64

	// gradient
	GradientStride    int
	GradientThreshold float64 // on the two pixel difference, intensity levels
	MinDepth          float64
	MaxDepth          float64

	DepthScale float64 // metres per raw depth map unit
}

func NewConfig() Config {
	return Config{
		Mode:              ModeGradient,
		NumPoints:         200,
		Border:            20,
		Seed:              1,
		RandomMinDepth:    0.1,
		GradientStride:    3,
		GradientThreshold: 50,
		MinDepth:          0.3,
		MaxDepth:          8,
		DepthScale:        0.001,
	}
}

func LoadConfig(filename string) (Config, error) {
	c := NewConfig()
	contents, err := ioutil.ReadFile(filename)
	if err != nil {
		return c, errors.Wrapf(err, "sampler config read %s", filename)
	}
	if err := yaml.Unmarshal(contents, &c); err != nil {
		return c, errors.Wrapf(err, "sampler config parse %s", filename)
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeRandom:
		if c.NumPoints < 1 || c.Border < 0 {
			return errors.Wrapf(ErrInvalidConfig, "numpoints %d, border %d", c.NumPoints, c.Border)
		}
	case ModeGradient:
		if c.GradientStride < 1 {
			return errors.Wrapf(ErrInvalidConfig, "gradientstride %d", c.GradientStride)
		}
		if c.MaxDepth <= c.MinDepth {
			return errors.Wrapf(ErrInvalidConfig, "depth band [%f,%f]", c.MinDepth, c.MaxDepth)
		}
	default:
		return errors.Wrapf(ErrInvalidConfig, "no mode named %q", c.Mode)
	}
	if c.DepthScale <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "depthscale %f", c.DepthScale)
	}
	return nil
}

// Select returns reference pixels from img with their depth in metres,
// read from the raw depth map at the same pixel.
func Select(img, depth emath.FloatGrid, cfg Config) ([]r2.Point, []float64, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if img.IsEmpty() || img.Size() != depth.Size() {
		return nil, nil, errors.Wrapf(ErrSizeMismatch, "%v vs %v", img.Size(), depth.Size())
	}

	var pixels []r2.Point
	var depths []float64
	if cfg.Mode == ModeRandom {
		pixels, depths = selectRandom(img, depth, cfg)
	} else {
		pixels, depths = selectGradient(img, depth, cfg)
	}

	if len(pixels) == 0 {
		return nil, nil, errors.Wrapf(ErrNoPoints, "%s selection on %v", cfg.Mode, img.Size())
	}
	return pixels, depths, nil
}

// selectRandom draws NumPoints pixels uniformly, keeping Border pixels
// clear of the edges. Draws with too little depth are dropped, not
// redrawn, so fewer than NumPoints may come back.
func selectRandom(img, depth emath.FloatGrid, cfg Config) ([]r2.Point, []float64) {
	w, h := img.Dx()-2*cfg.Border, img.Dy()-2*cfg.Border
	if w < 1 || h < 1 {
		return nil, nil
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, 0))
	pixels := []r2.Point{}
	depths := []float64{}

	for i := 0; i < cfg.NumPoints; i++ {
		x := cfg.Border + rng.IntN(w)
		y := cfg.Border + rng.IntN(h)
		d := depth.Get(x, y) * cfg.DepthScale
		if d < cfg.RandomMinDepth || d <= 0 {
			continue
		}
		pixels = append(pixels, r2.Point{X: float64(x), Y: float64(y)})
		depths = append(depths, d)
	}
	return pixels, depths
}

// selectGradient walks a GradientStride grid and keeps pixels whose
// gradient is strong and whose depth is inside [MinDepth,MaxDepth].
func selectGradient(img, depth emath.FloatGrid, cfg Config) ([]r2.Point, []float64) {
	pixels := []r2.Point{}
	depths := []float64{}

	for x := 1; x < img.Dx()-1; x += cfg.GradientStride {
		for y := 1; y < img.Dy()-1; y += cfg.GradientStride {
			gx, gy := img.PixelGradient(x, y)
			if math.Hypot(gx, gy) < cfg.GradientThreshold {
				continue
			}
			d := depth.Get(x, y) * cfg.DepthScale
			if d < cfg.MinDepth || d > cfg.MaxDepth {
				continue
			}
			pixels = append(pixels, r2.Point{X: float64(x), Y: float64(y)})
			depths = append(depths, d)
		}
	}
	return pixels, depths
}
