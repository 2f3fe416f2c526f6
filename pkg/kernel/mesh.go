package kernel

import (
	"errors"
	"fmt"
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/samber/lo"
)

// ErrInvalidMesh is returned by Validate when a mesh breaks its index invariants.
var ErrInvalidMesh = errors.New("kernel: invalid mesh")

// Material names a material slot. The kernel never looks inside it; it only
// uses it to group triangles into submeshes.
type Material string

// Vertex is a single mesh vertex.
type Vertex struct {
	Position v3.Vec `json:"position"`
	Normal   v3.Vec `json:"normal"`
	UV       v2.Vec `json:"uv"`
}

// lerpVertex interpolates all vertex attributes. The normal is renormalized.
func lerpVertex(a, b Vertex, t float64) Vertex {
	n := a.Normal.Add(b.Normal.Sub(a.Normal).MulScalar(t))
	if l := n.Length(); l > 0 {
		n = n.DivScalar(l)
	}
	return Vertex{
		Position: a.Position.Add(b.Position.Sub(a.Position).MulScalar(t)),
		Normal:   n,
		UV:       a.UV.Add(b.UV.Sub(a.UV).MulScalar(t)),
	}
}

// Submesh is one material slot's triangle list.
type Submesh struct {
	Material Material `json:"material"`
	Indices  []uint32 `json:"indices"` // [i0,i1,i2, ...] triangles
}

// Mesh is an indexed triangle mesh partitioned into submeshes, one per
// material slot. Triangles are wound counter-clockwise seen from outside.
type Mesh struct {
	Name      string    `json:"name"`
	Vertices  []Vertex  `json:"vertices"`
	Submeshes []Submesh `json:"submeshes"`
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// TriangleCount returns the number of triangles across all submeshes.
func (m *Mesh) TriangleCount() int {
	n := 0
	for _, sm := range m.Submeshes {
		n += len(sm.Indices) / 3
	}
	return n
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Materials returns the material of every slot, in slot order.
func (m *Mesh) Materials() []Material {
	return lo.Map(m.Submeshes, func(sm Submesh, _ int) Material { return sm.Material })
}

// Slot returns the index of the first submesh using material, or -1.
func (m *Mesh) Slot(material Material) int {
	for i, sm := range m.Submeshes {
		if sm.Material == material {
			return i
		}
	}
	return -1
}

// Validate checks that every index list is a whole number of triangles and
// that every index references an existing vertex.
func (m *Mesh) Validate() error {
	for i, sm := range m.Submeshes {
		if len(sm.Indices)%3 != 0 {
			return fmt.Errorf("%w: submesh %d has %d indices, not a multiple of 3", ErrInvalidMesh, i, len(sm.Indices))
		}
		for _, idx := range sm.Indices {
			if int(idx) >= len(m.Vertices) {
				return fmt.Errorf("%w: submesh %d references vertex %d of %d", ErrInvalidMesh, i, idx, len(m.Vertices))
			}
		}
	}
	return nil
}

// Triangle returns triangle k of submesh slot.
func (m *Mesh) Triangle(slot, k int) Triangle {
	idx := m.Submeshes[slot].Indices[k*3 : k*3+3]
	return Triangle{m.Vertices[idx[0]], m.Vertices[idx[1]], m.Vertices[idx[2]]}
}

// Triangles returns every triangle of the mesh, submesh by submesh.
func (m *Mesh) Triangles() []Triangle {
	tris := make([]Triangle, 0, m.TriangleCount())
	for s, sm := range m.Submeshes {
		for k := 0; k < len(sm.Indices)/3; k++ {
			tris = append(tris, m.Triangle(s, k))
		}
	}
	return tris
}

// SurfaceArea returns the summed area of all triangles.
func (m *Mesh) SurfaceArea() float64 {
	return lo.SumBy(m.Triangles(), func(t Triangle) float64 { return t.Area() })
}

// SubmeshArea returns the summed area of the triangles in one slot.
func (m *Mesh) SubmeshArea(slot int) float64 {
	area := 0.0
	for k := 0; k < len(m.Submeshes[slot].Indices)/3; k++ {
		area += m.Triangle(slot, k).Area()
	}
	return area
}

// Volume returns the signed volume enclosed by the mesh. It is only
// meaningful for closed meshes; outward winding gives a positive result.
func (m *Mesh) Volume() float64 {
	vol := 0.0
	for _, t := range m.Triangles() {
		vol += t[0].Position.Dot(t[1].Position.Cross(t[2].Position))
	}
	return vol / 6
}

// Centroid returns the average vertex position.
func (m *Mesh) Centroid() v3.Vec {
	if len(m.Vertices) == 0 {
		return v3.Vec{}
	}
	var sum v3.Vec
	for _, v := range m.Vertices {
		sum = sum.Add(v.Position)
	}
	return sum.DivScalar(float64(len(m.Vertices)))
}

// Bounds returns the axis-aligned bounding box of the vertices. An empty
// mesh has zero bounds.
func (m *Mesh) Bounds() (min, max v3.Vec) {
	if len(m.Vertices) == 0 {
		return v3.Vec{}, v3.Vec{}
	}
	min, max = m.Vertices[0].Position, m.Vertices[0].Position
	for _, v := range m.Vertices[1:] {
		min = min.Min(v.Position)
		max = max.Max(v.Position)
	}
	return min, max
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	out := &Mesh{
		Name:      m.Name,
		Vertices:  append([]Vertex(nil), m.Vertices...),
		Submeshes: make([]Submesh, len(m.Submeshes)),
	}
	for i, sm := range m.Submeshes {
		out.Submeshes[i] = Submesh{Material: sm.Material, Indices: append([]uint32(nil), sm.Indices...)}
	}
	return out
}

// Intersects reports whether the plane has mesh vertices strictly on both
// of its sides.
func Intersects(m *Mesh, p Plane) bool {
	pos, neg := false, false
	for _, v := range m.Vertices {
		switch ClassifyVertex(p, v) {
		case Positive:
			pos = true
		case Negative:
			neg = true
		}
		if pos && neg {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Render buffers
// ---------------------------------------------------------------------------

// BufferGroup is one draw call: a material and its triangle indices.
type BufferGroup struct {
	Material Material `json:"material"`
	Indices  []uint32 `json:"indices"`
}

// Buffers is a flat, renderer-friendly copy of a mesh: 3 floats per
// position and normal, 2 per UV, one index group per material slot.
type Buffers struct {
	Positions []float32     `json:"positions"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals   []float32     `json:"normals"`   // [nx0,ny0,nz0, ...]
	UVs       []float32     `json:"uvs"`       // [u0,v0, ...]
	Groups    []BufferGroup `json:"groups"`
}

// Buffers flattens the mesh for an external renderer.
func (m *Mesh) Buffers() Buffers {
	b := Buffers{
		Positions: make([]float32, 0, len(m.Vertices)*3),
		Normals:   make([]float32, 0, len(m.Vertices)*3),
		UVs:       make([]float32, 0, len(m.Vertices)*2),
		Groups:    make([]BufferGroup, 0, len(m.Submeshes)),
	}
	for _, v := range m.Vertices {
		b.Positions = append(b.Positions, float32(v.Position.X), float32(v.Position.Y), float32(v.Position.Z))
		b.Normals = append(b.Normals, float32(v.Normal.X), float32(v.Normal.Y), float32(v.Normal.Z))
		b.UVs = append(b.UVs, float32(v.UV.X), float32(v.UV.Y))
	}
	for _, sm := range m.Submeshes {
		b.Groups = append(b.Groups, BufferGroup{Material: sm.Material, Indices: append([]uint32(nil), sm.Indices...)})
	}
	return b
}

// ---------------------------------------------------------------------------
// Primitives
// ---------------------------------------------------------------------------

// boxFaces lists each face normal with two in-face axes u, v where u×v is
// the normal, so (-,-) (+,-) (+,+) (-,+) runs counter-clockwise.
var boxFaces = [6][3]v3.Vec{
	{{X: 1}, {Y: 1}, {Z: 1}},
	{{X: -1}, {Z: 1}, {Y: 1}},
	{{Y: 1}, {Z: 1}, {X: 1}},
	{{Y: -1}, {X: 1}, {Z: 1}},
	{{Z: 1}, {X: 1}, {Y: 1}},
	{{Z: -1}, {Y: 1}, {X: 1}},
}

// extent returns the size of the box along an axis-aligned unit direction.
func extent(axis, size v3.Vec) float64 {
	return math.Abs(axis.X)*size.X + math.Abs(axis.Y)*size.Y + math.Abs(axis.Z)*size.Z
}

// NewBoxMesh returns an exact box centred on the origin, four vertices per
// face so each face keeps its own normal and UV square.
func NewBoxMesh(size v3.Vec, material Material) *Mesh {
	m := &Mesh{Name: "box", Submeshes: []Submesh{{Material: material}}}
	corners := [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	for _, f := range boxFaces {
		n, u, v := f[0], f[1], f[2]
		center := n.MulScalar(extent(n, size) / 2)
		hu, hv := extent(u, size)/2, extent(v, size)/2
		base := uint32(len(m.Vertices))
		for _, c := range corners {
			m.Vertices = append(m.Vertices, Vertex{
				Position: center.Add(u.MulScalar(c[0] * hu)).Add(v.MulScalar(c[1] * hv)),
				Normal:   n,
				UV:       v2.Vec{X: (c[0] + 1) / 2, Y: (c[1] + 1) / 2},
			})
		}
		m.Submeshes[0].Indices = append(m.Submeshes[0].Indices,
			base, base+1, base+2,
			base, base+2, base+3,
		)
	}
	return m
}
