package direct

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// An Observation is a pixel in the reference image with its depth in
// the reference camera frame. Its index in the slice is its identity.
type Observation struct {
	Pixel r2.Point
	Depth float64
}

// NewObservations zips pixels and depths together.
func NewObservations(pixels []r2.Point, depths []float64) ([]Observation, error) {
	if len(pixels) != len(depths) {
		return nil, errors.Wrapf(ErrLengthMismatch, "%d pixels, %d depths", len(pixels), len(depths))
	}
	if len(pixels) == 0 {
		return nil, ErrNoObservations
	}

	obs := make([]Observation, len(pixels))
	for i := range pixels {
		obs[i] = Observation{Pixel: pixels[i], Depth: depths[i]}
	}
	return obs, nil
}

// scaleObservations moves the pixels onto a pyramid level; depths are
// unaffected by image scaling.
func scaleObservations(obs []Observation, s float64) []Observation {
	scaled := make([]Observation, len(obs))
	for i, o := range obs {
		scaled[i] = Observation{Pixel: o.Pixel.Mul(s), Depth: o.Depth}
	}
	return scaled
}
