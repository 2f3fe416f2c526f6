// Package kernel is the geometry kernel of the chop engine: indexed meshes
// with material slots, plane classification, triangle and mesh splitting,
// cross-section capping and submesh-aware merging. Everything here is a
// pure function of its inputs; nothing in the package knows about entities
// or their lifecycle.
//
// The package also defines the abstract solid-modeling Kernel interface.
// Backends (sdfx) build the initial objects behind it and hand out solids
// that double as ray-queryable collision volumes.
package kernel

import v3 "github.com/deadsy/sdfx/vec/v3"

// Solid is an opaque handle to a backend solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max v3.Vec)
	// Raycast returns the first surface point hit by the ray within maxDist.
	// dir does not need to be normalized.
	Raycast(origin, dir v3.Vec, maxDist float64) (v3.Vec, bool)
}

// Kernel is the abstract solid-modeling interface.
type Kernel interface {
	// Primitives, centred on the origin.
	Box(x, y, z float64) Solid
	Cylinder(height, radius float64, segments int) Solid

	// Boolean operations
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees

	// Mesh output with every triangle in a single material slot.
	ToMesh(s Solid, material Material) (*Mesh, error)
}
