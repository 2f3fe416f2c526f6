package kernel

import (
	"errors"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// PlaneEpsilon is the signed distance below which a point counts as lying
// on a plane.
const PlaneEpsilon = 1e-6

// ErrDegeneratePlane is returned when a plane normal has no usable length.
var ErrDegeneratePlane = errors.New("kernel: degenerate plane normal")

// Side is the classification of a point against a plane.
type Side int

const (
	OnPlane Side = iota
	Positive
	Negative
)

func (s Side) String() string {
	switch s {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return "on-plane"
	}
}

// Plane is a point plus a unit normal. The positive half-space is the one
// the normal points into.
type Plane struct {
	Point  v3.Vec `json:"point"`
	Normal v3.Vec `json:"normal"`
}

// NewPlane normalizes normal and returns the plane through point.
func NewPlane(point, normal v3.Vec) (Plane, error) {
	l := normal.Length()
	if l < 1e-9 || math.IsNaN(l) || math.IsInf(l, 0) {
		return Plane{}, ErrDegeneratePlane
	}
	return Plane{Point: point, Normal: normal.DivScalar(l)}, nil
}

// Distance returns the signed distance from x to the plane.
func (p Plane) Distance(x v3.Vec) float64 {
	return p.Normal.Dot(x.Sub(p.Point))
}

// Side classifies x with PlaneEpsilon tolerance.
func (p Plane) Side(x v3.Vec) Side {
	d := p.Distance(x)
	switch {
	case d > PlaneEpsilon:
		return Positive
	case d < -PlaneEpsilon:
		return Negative
	default:
		return OnPlane
	}
}

// Flip returns the same plane with the normal reversed.
func (p Plane) Flip() Plane {
	return Plane{Point: p.Point, Normal: p.Normal.Neg()}
}

// Transform maps the plane through t.
func (p Plane) Transform(t Transform) Plane {
	return Plane{Point: t.Apply(p.Point), Normal: t.ApplyNormal(p.Normal)}
}

// Basis returns two unit vectors spanning the plane with u × v = Normal.
func (p Plane) Basis() (u, v v3.Vec) {
	helper := v3.Vec{X: 1}
	if math.Abs(p.Normal.X) > 0.9 {
		helper = v3.Vec{Y: 1}
	}
	u = p.Normal.Cross(helper).Normalize()
	v = p.Normal.Cross(u)
	return u, v
}

// ClassifyVertex classifies a vertex position against the plane.
func ClassifyVertex(p Plane, v Vertex) Side {
	return p.Side(v.Position)
}
