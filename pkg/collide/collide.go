// Package collide derives a ray-queryable collision volume from a
// triangle mesh. Triangles are indexed in an R-tree so that a ray only
// tests the triangles whose bounds meet the ray segment.
package collide

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/notch/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/dhconnelly/rtreego"
)

// ErrEmptyMesh is returned when a collider is requested for a mesh with no
// triangles.
var ErrEmptyMesh = errors.New("collide: mesh has no triangles")

const (
	// boundsPad keeps R-tree rectangles from having zero extent on
	// axis-aligned triangles.
	boundsPad = 1e-9
	// parallelEpsilon is the determinant below which a ray is treated as
	// parallel to a triangle.
	parallelEpsilon = 1e-12
	// baryEpsilon lets rays through a shared edge hit at least one side.
	baryEpsilon = 1e-12

	minBranch = 4
	maxBranch = 16
)

type triangle struct {
	a, b, c v3.Vec
	bounds  rtreego.Rect
}

func (t *triangle) Bounds() rtreego.Rect {
	return t.bounds
}

func rect(min, max v3.Vec) (rtreego.Rect, error) {
	return rtreego.NewRect(
		rtreego.Point{min.X - boundsPad, min.Y - boundsPad, min.Z - boundsPad},
		[]float64{max.X - min.X + 2*boundsPad, max.Y - min.Y + 2*boundsPad, max.Z - min.Z + 2*boundsPad},
	)
}

// MeshCollider answers ray queries against a fixed triangle mesh.
type MeshCollider struct {
	tree      *rtreego.Rtree
	min, max  v3.Vec
	triangles int
}

// NewMeshCollider indexes every triangle of m. The collider keeps its own
// copy of the geometry; later changes to m do not affect it.
func NewMeshCollider(m *kernel.Mesh) (*MeshCollider, error) {
	if m == nil || m.TriangleCount() == 0 {
		return nil, ErrEmptyMesh
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("collide: %w", err)
	}
	tris := m.Triangles()
	objs := make([]rtreego.Spatial, 0, len(tris))
	for _, t := range tris {
		a, b, c := t[0].Position, t[1].Position, t[2].Position
		r, err := rect(a.Min(b).Min(c), a.Max(b).Max(c))
		if err != nil {
			return nil, fmt.Errorf("collide: triangle bounds: %w", err)
		}
		objs = append(objs, &triangle{a: a, b: b, c: c, bounds: r})
	}
	min, max := m.Bounds()
	return &MeshCollider{
		tree:      rtreego.NewTree(3, minBranch, maxBranch, objs...),
		min:       min,
		max:       max,
		triangles: len(objs),
	}, nil
}

// Bounds returns the axis-aligned bounds of the mesh.
func (c *MeshCollider) Bounds() (min, max v3.Vec) {
	return c.min, c.max
}

// Len returns the number of indexed triangles.
func (c *MeshCollider) Len() int {
	return c.triangles
}

// Raycast returns the nearest point where the ray meets a triangle within
// maxDist. Triangles are hit from either side.
func (c *MeshCollider) Raycast(origin, dir v3.Vec, maxDist float64) (v3.Vec, bool) {
	l := dir.Length()
	if l == 0 || maxDist <= 0 {
		return v3.Vec{}, false
	}
	dir = dir.DivScalar(l)

	t0, t1, ok := kernel.RayBox(origin, dir, c.min, c.max)
	if !ok || t0 > maxDist {
		return v3.Vec{}, false
	}
	t1 = math.Min(t1, maxDist)
	p0 := origin.Add(dir.MulScalar(t0))
	p1 := origin.Add(dir.MulScalar(t1))
	query, err := rect(p0.Min(p1), p0.Max(p1))
	if err != nil {
		return v3.Vec{}, false
	}

	best := math.Inf(1)
	for _, s := range c.tree.SearchIntersect(query) {
		tri := s.(*triangle)
		if t, hit := intersect(origin, dir, tri.a, tri.b, tri.c); hit && t <= maxDist && t < best {
			best = t
		}
	}
	if math.IsInf(best, 1) {
		return v3.Vec{}, false
	}
	return origin.Add(dir.MulScalar(best)), true
}

// intersect is the Möller–Trumbore ray/triangle test.
func intersect(origin, dir, a, b, c v3.Vec) (float64, bool) {
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := dir.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < parallelEpsilon {
		return 0, false
	}
	inv := 1 / det
	s := origin.Sub(a)
	u := s.Dot(p) * inv
	if u < -baryEpsilon || u > 1+baryEpsilon {
		return 0, false
	}
	q := s.Cross(e1)
	v := dir.Dot(q) * inv
	if v < -baryEpsilon || u+v > 1+baryEpsilon {
		return 0, false
	}
	t := e2.Dot(q) * inv
	if t < 0 {
		return 0, false
	}
	return t, true
}
