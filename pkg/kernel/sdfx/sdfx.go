// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/notch/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// defaultMeshCells controls marching cubes tessellation resolution.
const defaultMeshCells = 64

const (
	// hitEpsilon is how close a sphere-traced sample must get to the
	// surface to count as a hit.
	hitEpsilon = 1e-5
	maxSteps   = 512
)

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid.
type sdfxSolid struct {
	s sdf.SDF3
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max v3.Vec) {
	bb := s.s.BoundingBox()
	return bb.Min, bb.Max
}

// Raycast sphere-traces the distance field along the ray. A ray starting
// inside the solid does not hit it.
func (s *sdfxSolid) Raycast(origin, dir v3.Vec, maxDist float64) (v3.Vec, bool) {
	l := dir.Length()
	if l == 0 || maxDist <= 0 {
		return v3.Vec{}, false
	}
	dir = dir.DivScalar(l)

	min, max := s.BoundingBox()
	pad := v3.Vec{X: hitEpsilon, Y: hitEpsilon, Z: hitEpsilon}
	t, tEnd, ok := kernel.RayBox(origin, dir, min.Sub(pad), max.Add(pad))
	if !ok || t > maxDist {
		return v3.Vec{}, false
	}
	if s.s.Evaluate(origin) < 0 {
		return v3.Vec{}, false
	}
	tEnd = math.Min(tEnd, maxDist)
	for i := 0; i < maxSteps && t <= tEnd; i++ {
		p := origin.Add(dir.MulScalar(t))
		d := s.s.Evaluate(p)
		if d < hitEpsilon {
			return p, true
		}
		t += d
	}
	return v3.Vec{}, false
}

// Option configures an SdfxKernel.
type Option func(*SdfxKernel)

// WithMeshCells sets the marching cubes resolution along the longest axis.
func WithMeshCells(n int) Option {
	return func(k *SdfxKernel) {
		if n > 0 {
			k.meshCells = n
		}
	}
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	meshCells int
}

// New returns a new SdfxKernel.
func New(opts ...Option) *SdfxKernel {
	k := &SdfxKernel{meshCells: defaultMeshCells}
	for _, o := range opts {
		o(k)
	}
	return k
}

// unwrap extracts the underlying sdf.SDF3 from a kernel.Solid.
func unwrap(s kernel.Solid) sdf.SDF3 {
	return s.(*sdfxSolid).s
}

// wrap creates a kernel.Solid from an sdf.SDF3.
func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s}
}

// Box creates a box with the given dimensions, centred on the origin so
// that the object's local origin sits inside it.
func (k *SdfxKernel) Box(x, y, z float64) kernel.Solid {
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Box3D: %v", err))
	}
	return wrap(s)
}

// Cylinder creates a cylinder along Z with the given height and radius.
// The segments parameter is ignored since SDF represents smooth surfaces.
func (k *SdfxKernel) Cylinder(height, radius float64, segments int) kernel.Solid {
	s, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Cylinder3D: %v", err))
	}
	return wrap(s)
}

// Union returns the union of two solids.
func (k *SdfxKernel) Union(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Union3D(unwrap(a), unwrap(b)))
}

// Difference returns the difference a - b.
func (k *SdfxKernel) Difference(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Difference3D(unwrap(a), unwrap(b)))
}

// Intersection returns the intersection of two solids.
func (k *SdfxKernel) Intersection(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Intersect3D(unwrap(a), unwrap(b)))
}

// Translate moves a solid by (x, y, z).
func (k *SdfxKernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	m := sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z})
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// Rotate rotates a solid by Euler angles (degrees) around X, Y, Z axes.
func (k *SdfxKernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	xRad := x * math.Pi / 180.0
	yRad := y * math.Pi / 180.0
	zRad := z * math.Pi / 180.0

	m := sdf.RotateZ(zRad).Mul(sdf.RotateY(yRad)).Mul(sdf.RotateX(xRad))
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// ToMesh converts a solid to a triangle mesh using marching cubes.
// Vertices at the same position are shared and carry the area-weighted
// average of the adjacent face normals. UVs are box-projected along the
// dominant normal axis and scaled to the bounding box.
func (k *SdfxKernel) ToMesh(s kernel.Solid, material kernel.Material) (*kernel.Mesh, error) {
	sdf3 := unwrap(s)

	renderer := render.NewMarchingCubesUniform(k.meshCells)
	triangles := render.ToTriangles(sdf3, renderer)
	if len(triangles) == 0 {
		return nil, fmt.Errorf("sdfx: marching cubes produced no triangles")
	}

	index := make(map[v3.Vec]uint32)
	var positions []v3.Vec
	var normals []v3.Vec
	indices := make([]uint32, 0, len(triangles)*3)

	for _, tri := range triangles {
		var ids [3]uint32
		for j := 0; j < 3; j++ {
			p := tri[j]
			id, ok := index[p]
			if !ok {
				id = uint32(len(positions))
				index[p] = id
				positions = append(positions, p)
				normals = append(normals, v3.Vec{})
			}
			ids[j] = id
		}
		if ids[0] == ids[1] || ids[1] == ids[2] || ids[2] == ids[0] {
			continue
		}
		// Unnormalized cross product weights the normal by face area.
		n := tri[1].Sub(tri[0]).Cross(tri[2].Sub(tri[0]))
		for _, id := range ids {
			normals[id] = normals[id].Add(n)
		}
		indices = append(indices, ids[0], ids[1], ids[2])
	}

	bb := sdf3.BoundingBox()
	size := bb.Max.Sub(bb.Min)
	mesh := &kernel.Mesh{
		Name:      string(material),
		Vertices:  make([]kernel.Vertex, len(positions)),
		Submeshes: []kernel.Submesh{{Material: material, Indices: indices}},
	}
	for i, p := range positions {
		n := normals[i]
		if l := n.Length(); l > 0 {
			n = n.DivScalar(l)
		}
		mesh.Vertices[i] = kernel.Vertex{Position: p, Normal: n, UV: boxUV(p, n, bb.Min, size)}
	}
	return mesh, mesh.Validate()
}

// boxUV projects p onto the box face its normal points at most strongly.
func boxUV(p, n, origin, size v3.Vec) v2.Vec {
	rel := p.Sub(origin)
	div := func(a, b float64) float64 {
		if b == 0 {
			return 0
		}
		return a / b
	}
	ax, ay, az := math.Abs(n.X), math.Abs(n.Y), math.Abs(n.Z)
	switch {
	case ax >= ay && ax >= az:
		return v2.Vec{X: div(rel.Z, size.Z), Y: div(rel.Y, size.Y)}
	case ay >= az:
		return v2.Vec{X: div(rel.X, size.X), Y: div(rel.Z, size.Z)}
	default:
		return v2.Vec{X: div(rel.X, size.X), Y: div(rel.Y, size.Y)}
	}
}
