package kernel

import v3 "github.com/deadsy/sdfx/vec/v3"

// Triangle is three vertices wound counter-clockwise seen from outside.
type Triangle [3]Vertex

// Normal returns the unit face normal, or the zero vector for a degenerate
// triangle.
func (t Triangle) Normal() v3.Vec {
	n := t[1].Position.Sub(t[0].Position).Cross(t[2].Position.Sub(t[0].Position))
	if l := n.Length(); l > 0 {
		return n.DivScalar(l)
	}
	return v3.Vec{}
}

// Area returns the triangle area.
func (t Triangle) Area() float64 {
	return t[1].Position.Sub(t[0].Position).Cross(t[2].Position.Sub(t[0].Position)).Length() / 2
}

// Segment is a line segment between two points.
type Segment [2]v3.Vec

// Split is the result of splitting one triangle by a plane.
type Split struct {
	Positive []Triangle
	Negative []Triangle
	// Edge is where the triangle meets the plane, valid when HasEdge is set.
	Edge    Segment
	HasEdge bool
}

// SplitTriangle splits t by p. Triangles entirely on one side pass through
// unchanged. Crossing triangles are clipped once per side and
// fan-triangulated, giving one or two triangles per side.
//
// Crossing points are always interpolated from the positive vertex towards
// the negative one, so two triangles sharing an edge produce bit-identical
// points. A triangle lying in the plane goes to the side opposite its
// normal, and an edge lying in the plane is only reported by the triangle
// on the negative side.
func SplitTriangle(p Plane, t Triangle) Split {
	var d [3]float64
	var s [3]Side
	nPos, nNeg, nOn := 0, 0, 0
	for i, v := range t {
		d[i] = p.Distance(v.Position)
		s[i] = p.Side(v.Position)
		switch s[i] {
		case Positive:
			nPos++
		case Negative:
			nNeg++
		default:
			nOn++
		}
	}

	switch {
	case nOn == 3:
		if t.Normal().Dot(p.Normal) > 0 {
			return Split{Negative: []Triangle{t}}
		}
		return Split{Positive: []Triangle{t}}
	case nNeg == 0:
		return Split{Positive: []Triangle{t}}
	case nPos == 0:
		out := Split{Negative: []Triangle{t}}
		if nOn == 2 {
			k := 0
			for i := range t {
				if s[i] == OnPlane {
					out.Edge[k] = t[i].Position
					k++
				}
			}
			out.HasEdge = true
		}
		return out
	}

	var pos, neg []Vertex
	var onPlane []v3.Vec
	for i := 0; i < 3; i++ {
		j := (i + 1) % 3
		a, b := t[i], t[j]
		switch s[i] {
		case Positive:
			pos = append(pos, a)
		case Negative:
			neg = append(neg, a)
		default:
			pos = append(pos, a)
			neg = append(neg, a)
			onPlane = append(onPlane, a.Position)
		}
		if (s[i] == Positive && s[j] == Negative) || (s[i] == Negative && s[j] == Positive) {
			var x Vertex
			if s[i] == Positive {
				x = lerpVertex(a, b, d[i]/(d[i]-d[j]))
			} else {
				x = lerpVertex(b, a, d[j]/(d[j]-d[i]))
			}
			pos = append(pos, x)
			neg = append(neg, x)
			onPlane = append(onPlane, x.Position)
		}
	}

	out := Split{Positive: fan(pos), Negative: fan(neg)}
	if len(onPlane) == 2 {
		out.Edge = Segment{onPlane[0], onPlane[1]}
		out.HasEdge = true
	}
	return out
}

// fan triangulates a convex polygon around its first vertex.
func fan(poly []Vertex) []Triangle {
	if len(poly) < 3 {
		return nil
	}
	tris := make([]Triangle, 0, len(poly)-2)
	for k := 1; k+1 < len(poly); k++ {
		tris = append(tris, Triangle{poly[0], poly[k], poly[k+1]})
	}
	return tris
}

// ---------------------------------------------------------------------------
// Mesh splitting
// ---------------------------------------------------------------------------

// MeshSplit is the result of splitting a whole mesh by a plane. Both halves
// keep every material slot of the source, in order, even when a slot ends
// up empty.
type MeshSplit struct {
	Upper *Mesh
	Lower *Mesh
	// Edges are the plane crossings reported by the individual triangles.
	Edges []Segment
	// Crossed is set when both halves received triangles.
	Crossed bool
}

// SplitMesh splits every triangle of m by p. The input is not modified.
func SplitMesh(m *Mesh, p Plane) MeshSplit {
	materials := m.Materials()
	upper := newMeshBuilder(m.Name+"-upper", materials)
	lower := newMeshBuilder(m.Name+"-lower", materials)
	var edges []Segment
	for slot, sm := range m.Submeshes {
		for k := 0; k < len(sm.Indices)/3; k++ {
			sp := SplitTriangle(p, m.Triangle(slot, k))
			for _, t := range sp.Positive {
				upper.add(slot, t)
			}
			for _, t := range sp.Negative {
				lower.add(slot, t)
			}
			if sp.HasEdge {
				edges = append(edges, sp.Edge)
			}
		}
	}
	return MeshSplit{
		Upper:   upper.mesh,
		Lower:   lower.mesh,
		Edges:   edges,
		Crossed: upper.mesh.TriangleCount() > 0 && lower.mesh.TriangleCount() > 0,
	}
}

// meshBuilder appends triangles to a mesh, sharing identical vertices.
type meshBuilder struct {
	mesh  *Mesh
	index map[Vertex]uint32
}

func newMeshBuilder(name string, materials []Material) *meshBuilder {
	b := &meshBuilder{mesh: &Mesh{Name: name}, index: make(map[Vertex]uint32)}
	for _, mat := range materials {
		b.mesh.Submeshes = append(b.mesh.Submeshes, Submesh{Material: mat})
	}
	return b
}

// extend continues building on top of an existing mesh, which it takes
// ownership of. Only vertices added through the builder are shared.
func extend(m *Mesh) *meshBuilder {
	return &meshBuilder{mesh: m, index: make(map[Vertex]uint32)}
}

// slot returns the slot for material, appending one if needed.
func (b *meshBuilder) slot(material Material) int {
	if i := b.mesh.Slot(material); i >= 0 {
		return i
	}
	b.mesh.Submeshes = append(b.mesh.Submeshes, Submesh{Material: material})
	return len(b.mesh.Submeshes) - 1
}

func (b *meshBuilder) vertex(v Vertex) uint32 {
	if i, ok := b.index[v]; ok {
		return i
	}
	i := uint32(len(b.mesh.Vertices))
	b.mesh.Vertices = append(b.mesh.Vertices, v)
	b.index[v] = i
	return i
}

func (b *meshBuilder) add(slot int, t Triangle) {
	sm := &b.mesh.Submeshes[slot]
	sm.Indices = append(sm.Indices, b.vertex(t[0]), b.vertex(t[1]), b.vertex(t[2]))
}
