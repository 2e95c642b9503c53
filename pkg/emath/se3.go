package emath

// Rigid body transforms, and the exponential map that lets us nudge
// them by a small 6-vector without leaving SE(3).

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"golang.org/x/image/math/f64" // Will be "image/math/f64" at some point
	"gonum.org/v1/gonum/floats"
)

// Actual 3x3 matrixes, row major, used for rotations
type Mat3 f64.Mat3

func Identity3() Mat3 {
	return Mat3{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

func (a Mat3) Mult(b Mat3) Mat3 {
	return Mat3{
		a[3*0+0]*b[3*0+0] + a[3*0+1]*b[3*1+0] + a[3*0+2]*b[3*2+0],
		a[3*0+0]*b[3*0+1] + a[3*0+1]*b[3*1+1] + a[3*0+2]*b[3*2+1],
		a[3*0+0]*b[3*0+2] + a[3*0+1]*b[3*1+2] + a[3*0+2]*b[3*2+2],

		a[3*1+0]*b[3*0+0] + a[3*1+1]*b[3*1+0] + a[3*1+2]*b[3*2+0],
		a[3*1+0]*b[3*0+1] + a[3*1+1]*b[3*1+1] + a[3*1+2]*b[3*2+1],
		a[3*1+0]*b[3*0+2] + a[3*1+1]*b[3*1+2] + a[3*1+2]*b[3*2+2],

		a[3*2+0]*b[3*0+0] + a[3*2+1]*b[3*1+0] + a[3*2+2]*b[3*2+0],
		a[3*2+0]*b[3*0+1] + a[3*2+1]*b[3*1+1] + a[3*2+2]*b[3*2+1],
		a[3*2+0]*b[3*0+2] + a[3*2+1]*b[3*1+2] + a[3*2+2]*b[3*2+2],
	}
}

func (m Mat3) Apply(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[3*0+0]*v.X + m[3*0+1]*v.Y + m[3*0+2]*v.Z,
		Y: m[3*1+0]*v.X + m[3*1+1]*v.Y + m[3*1+2]*v.Z,
		Z: m[3*2+0]*v.X + m[3*2+1]*v.Y + m[3*2+2]*v.Z,
	}
}

func (m Mat3) Transpose() Mat3 {
	return Mat3{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}
}

func (a Mat3) Add(b Mat3) Mat3 {
	for i := range a {
		a[i] += b[i]
	}
	return a
}

func (m Mat3) Scale(s float64) Mat3 {
	for i := range m {
		m[i] *= s
	}
	return m
}

// Hat returns the skew-symmetric matrix W such that W*v == w x v.
func Hat(w r3.Vector) Mat3 {
	return Mat3{
		0, -w.Z, w.Y,
		w.Z, 0, -w.X,
		-w.Y, w.X, 0,
	}
}

func (m Mat3) String() string {
	str := fmt.Sprintf("[%10f, %10f, %10f]\n", m[3*0+0], m[3*0+1], m[3*0+2])
	str += fmt.Sprintf("[%10f, %10f, %10f]\n", m[3*1+0], m[3*1+1], m[3*1+2])
	str += fmt.Sprintf("[%10f, %10f, %10f]\n", m[3*2+0], m[3*2+1], m[3*2+2])
	return str
}

// A Twist is a tangent vector of SE(3): translation generators in
// [0,3), rotation generators in [3,6).
type Twist [6]float64

func (t Twist) Translation() r3.Vector { return r3.Vector{X: t[0], Y: t[1], Z: t[2]} }
func (t Twist) Rotation() r3.Vector    { return r3.Vector{X: t[3], Y: t[4], Z: t[5]} }

func (t Twist) Norm() float64 { return floats.Norm(t[:], 2) }

func (t Twist) HasNaN() bool {
	for _, v := range t {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// SE3 maps a point p to R*p + T.
type SE3 struct {
	R Mat3
	T r3.Vector
}

func IdentitySE3() SE3 {
	return SE3{R: Identity3()}
}

// Exp maps a twist onto the group. Below a tiny rotation angle the
// Taylor expansions of the coefficients are used.
func Exp(t Twist) SE3 {
	omega := t.Rotation()
	theta := omega.Norm()
	W := Hat(omega)
	W2 := W.Mult(W)

	var a, b, c float64
	if theta < 1e-10 {
		a, b, c = 1.0, 0.5, 1.0/6.0
	} else {
		a = math.Sin(theta) / theta
		b = (1 - math.Cos(theta)) / (theta * theta)
		c = (theta - math.Sin(theta)) / (theta * theta * theta)
	}

	R := Identity3().Add(W.Scale(a)).Add(W2.Scale(b))
	V := Identity3().Add(W.Scale(b)).Add(W2.Scale(c))

	return SE3{R: R, T: V.Apply(t.Translation())}
}

// Compose returns a*b, i.e. b is applied first.
func (a SE3) Compose(b SE3) SE3 {
	return SE3{
		R: a.R.Mult(b.R),
		T: a.R.Apply(b.T).Add(a.T),
	}
}

// Update left-multiplies the pose by exp(t).
func (a SE3) Update(t Twist) SE3 {
	return Exp(t).Compose(a)
}

func (a SE3) Transform(p r3.Vector) r3.Vector {
	return a.R.Apply(p).Add(a.T)
}

func (a SE3) Inverse() SE3 {
	rt := a.R.Transpose()
	return SE3{R: rt, T: rt.Apply(a.T).Mul(-1)}
}

func (a SE3) String() string {
	str := ""
	for row := 0; row < 3; row++ {
		t := []float64{a.T.X, a.T.Y, a.T.Z}[row]
		str += fmt.Sprintf("[%10f, %10f, %10f, %10f]\n", a.R[3*row+0], a.R[3*row+1], a.R[3*row+2], t)
	}
	str += fmt.Sprintf("[%10f, %10f, %10f, %10f]\n", 0.0, 0.0, 0.0, 1.0)
	return str
}
