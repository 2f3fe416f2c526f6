// Package scene defines the description of cuttable objects that a script
// produces. A Scene is plain data: it is never mutated after evaluation and
// each evaluation produces a new one.
package scene

import (
	"fmt"

	"github.com/chazu/notch/pkg/chop"
	"github.com/chazu/notch/pkg/kernel"
	"github.com/chazu/notch/pkg/scan"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 is a point, size or set of Euler angles in a scene description.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// IsZero reports whether all components are zero.
func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// V3 converts to the kernel vector type.
func (v Vec3) V3() v3.Vec {
	return v3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

// ---------------------------------------------------------------------------
// Shapes
// ---------------------------------------------------------------------------

// ShapeKind distinguishes the primitive an object is made from.
type ShapeKind int

const (
	ShapeBox      ShapeKind = iota // axis-aligned box centred on the origin
	ShapeCylinder                  // cylinder along Z centred on the origin
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeBox:
		return "box"
	case ShapeCylinder:
		return "cylinder"
	default:
		return fmt.Sprintf("ShapeKind(%d)", int(k))
	}
}

// Shape is the primitive of an object, in its local frame.
type Shape struct {
	Kind   ShapeKind `json:"kind"`
	Size   Vec3      `json:"size,omitempty"`   // box extents
	Radius float64   `json:"radius,omitempty"` // cylinder
	Height float64   `json:"height,omitempty"` // cylinder
}

// ---------------------------------------------------------------------------
// Objects
// ---------------------------------------------------------------------------

// Object is one cuttable object.
type Object struct {
	Name     string          `json:"name"`
	Shape    Shape           `json:"shape"`
	Position Vec3            `json:"position"`
	Rotation Vec3            `json:"rotation"` // Euler angles in degrees
	Material kernel.Material `json:"material"`
	Seam     kernel.Material `json:"seam"`
	Scan     scan.Config     `json:"scan"`

	// WeakPoints, when non-nil, replace the scan. Local frame.
	WeakPoints []Vec3 `json:"weak_points,omitempty"`
}

// Transform returns the object's placement.
func (o *Object) Transform() kernel.Transform {
	return kernel.FromEuler(
		mgl64.Vec3{o.Position.X, o.Position.Y, o.Position.Z},
		mgl64.Vec3{o.Rotation.X, o.Rotation.Y, o.Rotation.Z},
	)
}

// Points returns WeakPoints as kernel vectors, or nil when none were given.
func (o *Object) Points() []v3.Vec {
	if o.WeakPoints == nil {
		return nil
	}
	out := make([]v3.Vec, len(o.WeakPoints))
	for i, p := range o.WeakPoints {
		out[i] = p.V3()
	}
	return out
}

// DefaultMaterial and DefaultSeam are used when a script names neither.
const (
	DefaultMaterial kernel.Material = "bark"
	DefaultSeam     kernel.Material = "heartwood"
)

// Scene is the top-level structure produced by script evaluation.
type Scene struct {
	Objects   []*Object      `json:"objects"`
	NameIndex map[string]int `json:"name_index"`
	Chop      chop.Config    `json:"chop"`
	Version   uint64         `json:"version"`
}

// New creates an empty scene with default chop tuning.
func New() *Scene {
	return &Scene{
		NameIndex: make(map[string]int),
		Chop:      chop.DefaultConfig(),
	}
}

// AddObject appends o. It does not check for duplicate names; the last
// object with a name wins the index and Validate reports the clash.
func (s *Scene) AddObject(o *Object) {
	s.Objects = append(s.Objects, o)
	if o.Name != "" {
		s.NameIndex[o.Name] = len(s.Objects) - 1
	}
}

// Lookup returns the object with the given name, or nil.
func (s *Scene) Lookup(name string) *Object {
	i, ok := s.NameIndex[name]
	if !ok {
		return nil
	}
	return s.Objects[i]
}

// Len returns the number of objects.
func (s *Scene) Len() int {
	return len(s.Objects)
}
