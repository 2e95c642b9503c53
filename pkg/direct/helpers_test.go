package direct

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/rs/zerolog"

	"github.com/abworrall/direct-pose/pkg/emath"
)

func makeGrid(w, h int, f func(x, y float64) float64) emath.FloatGrid {
	g := emath.NewFloatGrid(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.Set(x, y, f(float64(x), float64(y)))
		}
	}
	return g
}

// texture is smooth, with gradients in both directions everywhere.
func texture(x, y float64) float64 {
	return 128 + 50*math.Sin(0.35*x+0.2*y) + 40*math.Cos(0.3*y-0.15*x)
}

func uniform(x, y float64) float64 { return 100 }

func testCamera() Intrinsics {
	return Intrinsics{Fx: 50, Fy: 50, Cx: 32, Cy: 24}
}

// gridPoints lays out pixels on a regular grid, all at one depth.
func gridPoints(x0, x1, y0, y1, step int, depth float64) ([]r2.Point, []float64) {
	pixels := []r2.Point{}
	depths := []float64{}
	for y := y0; y <= y1; y += step {
		for x := x0; x <= x1; x += step {
			pixels = append(pixels, r2.Point{X: float64(x), Y: float64(y)})
			depths = append(depths, depth)
		}
	}
	return pixels, depths
}

func testConfig(workers int) Config {
	cfg := NewConfig()
	cfg.Workers = workers
	return cfg
}

func testEstimator(cfg Config) *Estimator {
	e, err := NewEstimator(cfg, zerolog.Nop())
	if err != nil {
		panic(err)
	}
	return e
}

func mustObservations(pixels []r2.Point, depths []float64) []Observation {
	obs, err := NewObservations(pixels, depths)
	if err != nil {
		panic(err)
	}
	return obs
}
