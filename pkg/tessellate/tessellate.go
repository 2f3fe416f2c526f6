// Package tessellate turns a scene into the initial geometry of each
// cuttable object: a render mesh, the backend solid it came from and a
// collision volume. Everything is produced in the object's local frame;
// placement is carried separately by the entity transform.
package tessellate

import (
	"fmt"

	"github.com/chazu/notch/pkg/kernel"
	"github.com/chazu/notch/pkg/scan"
	"github.com/chazu/notch/pkg/scene"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// cylinderSegments is passed to Kernel.Cylinder for backends that facet.
const cylinderSegments = 32

// Part is the geometry of one scene object.
type Part struct {
	Object   *scene.Object
	Mesh     *kernel.Mesh
	Solid    kernel.Solid
	Collider scan.Collider
}

// solidCollider exposes a kernel solid as a scan.Collider.
type solidCollider struct {
	kernel.Solid
}

func (c solidCollider) Bounds() (min, max v3.Vec) {
	return c.BoundingBox()
}

// Tessellate produces one Part per scene object, in scene order, using the
// provided geometry kernel. The scene is never mutated.
func Tessellate(s *scene.Scene, k kernel.Kernel) ([]Part, error) {
	if s == nil {
		return nil, nil
	}

	parts := make([]Part, 0, s.Len())
	for _, o := range s.Objects {
		p, err := tessellateObject(k, o)
		if err != nil {
			return nil, fmt.Errorf("tessellate: object %q: %w", o.Name, err)
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// tessellateObject builds the geometry for a single object. Boxes use the
// exact box mesh so their faces stay planar under slicing; other shapes
// go through the kernel's mesher.
func tessellateObject(k kernel.Kernel, o *scene.Object) (Part, error) {
	var (
		solid kernel.Solid
		mesh  *kernel.Mesh
	)

	switch o.Shape.Kind {
	case scene.ShapeBox:
		sz := o.Shape.Size
		solid = k.Box(sz.X, sz.Y, sz.Z)
		mesh = kernel.NewBoxMesh(sz.V3(), o.Material)

	case scene.ShapeCylinder:
		solid = k.Cylinder(o.Shape.Height, o.Shape.Radius, cylinderSegments)
		m, err := k.ToMesh(solid, o.Material)
		if err != nil {
			return Part{}, fmt.Errorf("ToMesh failed: %w", err)
		}
		mesh = m

	default:
		return Part{}, fmt.Errorf("unsupported shape %s", o.Shape.Kind)
	}

	mesh.Name = o.Name
	return Part{
		Object:   o,
		Mesh:     mesh,
		Solid:    solid,
		Collider: solidCollider{solid},
	}, nil
}
