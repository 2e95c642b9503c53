package direct

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Intrinsics is a pinhole camera, in pixel units.
type Intrinsics struct {
	Fx, Fy float64
	Cx, Cy float64
}

func (k Intrinsics) String() string {
	return fmt.Sprintf("K[fx:%.3f fy:%.3f cx:%.3f cy:%.3f]", k.Fx, k.Fy, k.Cx, k.Cy)
}

func (k Intrinsics) Validate() error {
	if !(k.Fx > 0) || !(k.Fy > 0) {
		return errors.Wrapf(ErrInvalidIntrinsics, "%s", k)
	}
	return nil
}

// Scaled returns the intrinsics for an image resized by s.
func (k Intrinsics) Scaled(s float64) Intrinsics {
	return Intrinsics{Fx: k.Fx * s, Fy: k.Fy * s, Cx: k.Cx * s, Cy: k.Cy * s}
}

// BackProject lifts a pixel at the given depth into the camera frame.
func (k Intrinsics) BackProject(px r2.Point, depth float64) r3.Vector {
	return r3.Vector{
		X: depth * (px.X - k.Cx) / k.Fx,
		Y: depth * (px.Y - k.Cy) / k.Fy,
		Z: depth,
	}
}

func (k Intrinsics) Project(p r3.Vector) r2.Point {
	return r2.Point{
		X: k.Fx*p.X/p.Z + k.Cx,
		Y: k.Fy*p.Y/p.Z + k.Cy,
	}
}

// ProjectionJacobian is d(pixel)/d(twist) at camera-frame point p,
// for a twist applied on the left of the pose (translation columns
// first, then rotation).
func (k Intrinsics) ProjectionJacobian(p r3.Vector) [2][6]float64 {
	X, Y, Z := p.X, p.Y, p.Z
	zInv := 1.0 / Z
	z2Inv := zInv * zInv

	return [2][6]float64{
		{
			k.Fx * zInv,
			0,
			-k.Fx * X * z2Inv,
			-k.Fx * X * Y * z2Inv,
			k.Fx + k.Fx*X*X*z2Inv,
			-k.Fx * Y * zInv,
		},
		{
			0,
			k.Fy * zInv,
			-k.Fy * Y * z2Inv,
			-k.Fy - k.Fy*Y*Y*z2Inv,
			k.Fy * X * Y * z2Inv,
			k.Fy * X * zInv,
		},
	}
}
