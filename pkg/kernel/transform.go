package kernel

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/go-gl/mathgl/mgl64"
)

// Transform places an object in its parent frame: scale, then rotate, then
// translate. The zero value behaves as the identity.
type Transform struct {
	Position mgl64.Vec3 `json:"position"`
	Rotation mgl64.Quat `json:"rotation"`
	Scale    mgl64.Vec3 `json:"scale"`
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{Rotation: mgl64.QuatIdent(), Scale: mgl64.Vec3{1, 1, 1}}
}

// FromEuler builds a transform from a position and X, Y, Z rotations in
// degrees, applied X first then Y then Z.
func FromEuler(position, degrees mgl64.Vec3) Transform {
	q := mgl64.QuatRotate(mgl64.DegToRad(degrees[2]), mgl64.Vec3{0, 0, 1}).
		Mul(mgl64.QuatRotate(mgl64.DegToRad(degrees[1]), mgl64.Vec3{0, 1, 0})).
		Mul(mgl64.QuatRotate(mgl64.DegToRad(degrees[0]), mgl64.Vec3{1, 0, 0}))
	return Transform{Position: position, Rotation: q.Normalize(), Scale: mgl64.Vec3{1, 1, 1}}
}

func (t Transform) normalized() Transform {
	if t.Rotation == (mgl64.Quat{}) {
		t.Rotation = mgl64.QuatIdent()
	}
	if t.Scale == (mgl64.Vec3{}) {
		t.Scale = mgl64.Vec3{1, 1, 1}
	}
	return t
}

// Matrix returns the local-to-parent matrix.
func (t Transform) Matrix() mgl64.Mat4 {
	t = t.normalized()
	return mgl64.Translate3D(t.Position[0], t.Position[1], t.Position[2]).
		Mul4(t.Rotation.Mat4()).
		Mul4(mgl64.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2]))
}

// InverseMatrix returns the parent-to-local matrix.
func (t Transform) InverseMatrix() mgl64.Mat4 {
	return t.Matrix().Inv()
}

// Relative returns the matrix taking points in t's frame into to's frame.
func (t Transform) Relative(to Transform) mgl64.Mat4 {
	return to.InverseMatrix().Mul4(t.Matrix())
}

// Apply maps a local point into the parent frame.
func (t Transform) Apply(p v3.Vec) v3.Vec {
	return fromMgl(mgl64.TransformCoordinate(toMgl(p), t.Matrix()))
}

// InverseApply maps a parent-frame point into the local frame.
func (t Transform) InverseApply(p v3.Vec) v3.Vec {
	return fromMgl(mgl64.TransformCoordinate(toMgl(p), t.InverseMatrix()))
}

// ApplyDirection maps a local direction into the parent frame, ignoring
// translation.
func (t Transform) ApplyDirection(d v3.Vec) v3.Vec {
	return fromMgl(mgl64.TransformNormal(toMgl(d), t.Matrix()))
}

// ApplyNormal maps a surface normal with the inverse-transpose so that it
// stays perpendicular under non-uniform scale.
func (t Transform) ApplyNormal(n v3.Vec) v3.Vec {
	return transformNormal(t.Matrix(), n)
}

func transformNormal(m mgl64.Mat4, n v3.Vec) v3.Vec {
	out := m.Mat3().Inv().Transpose().Mul3x1(toMgl(n))
	if l := out.Len(); l > 0 {
		out = out.Mul(1 / l)
	}
	return fromMgl(out)
}

func toMgl(v v3.Vec) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

func fromMgl(v mgl64.Vec3) v3.Vec {
	return v3.Vec{X: v[0], Y: v[1], Z: v[2]}
}
