package kernel

import (
	"errors"
	"fmt"
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrDegenerateCap is returned by BuildCap when the cut edges do not close
// into loops.
var ErrDegenerateCap = errors.New("kernel: cap edges do not form closed loops")

// weldEpsilon is the distance under which two edge endpoints are the same
// cap vertex.
const weldEpsilon = 1e-6

// Cap is the triangulated cross-section of a cut. Triangles face along
// Plane.Normal.
type Cap struct {
	Plane     Plane
	Loops     [][]v3.Vec
	Triangles [][3]v3.Vec
}

// BuildCap orders the intersection edges of a cut into closed loops and
// triangulates each one. Edges reported an even number of times cancel
// out. Holes (loops nested inside other loops) are not subtracted; each
// loop is filled on its own.
func BuildCap(edges []Segment, p Plane) (*Cap, error) {
	w := newWelder()
	type key [2]int
	counts := make(map[key]int)
	var order []key
	for _, e := range edges {
		a, b := w.id(e[0]), w.id(e[1])
		if a == b {
			continue
		}
		if a > b {
			a, b = b, a
		}
		k := key{a, b}
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}

	adj := make(map[int][]int)
	for _, k := range order {
		if counts[k]%2 == 0 {
			continue
		}
		adj[k[0]] = append(adj[k[0]], k[1])
		adj[k[1]] = append(adj[k[1]], k[0])
	}
	if len(adj) == 0 {
		return nil, fmt.Errorf("%w: no edges", ErrDegenerateCap)
	}
	for v, n := range adj {
		if len(n) != 2 {
			return nil, fmt.Errorf("%w: vertex %d has %d edges", ErrDegenerateCap, v, len(n))
		}
	}

	u, v := p.Basis()
	c := &Cap{Plane: p}
	visited := make(map[int]bool)
	for start := 0; start < len(w.points); start++ {
		if visited[start] || adj[start] == nil {
			continue
		}
		var ids []int
		prev, cur := -1, start
		for {
			visited[cur] = true
			ids = append(ids, cur)
			next := adj[cur][0]
			if next == prev {
				next = adj[cur][1]
			}
			prev, cur = cur, next
			if cur == start {
				break
			}
		}

		loop := make([]v3.Vec, len(ids))
		for i, id := range ids {
			loop[i] = w.points[id]
		}
		loop = dropCollinear(loop, p, u, v)
		if len(loop) < 3 {
			continue
		}
		flat := project(loop, p, u, v)
		if signedArea(flat) < 0 {
			reverse(loop)
			reverse(flat)
		}
		c.Loops = append(c.Loops, loop)
		for _, t := range earClip(flat) {
			c.Triangles = append(c.Triangles, [3]v3.Vec{loop[t[0]], loop[t[1]], loop[t[2]]})
		}
	}
	if len(c.Triangles) == 0 {
		return nil, fmt.Errorf("%w: loops collapse to lines", ErrDegenerateCap)
	}
	return c, nil
}

// Area returns the summed triangle area.
func (c *Cap) Area() float64 {
	area := 0.0
	for _, t := range c.Triangles {
		area += t[1].Sub(t[0]).Cross(t[2].Sub(t[0])).Length() / 2
	}
	return area
}

// Flipped returns the cap facing the other way.
func (c *Cap) Flipped() *Cap {
	out := &Cap{Plane: c.Plane.Flip(), Loops: make([][]v3.Vec, len(c.Loops))}
	for i, l := range c.Loops {
		out.Loops[i] = append([]v3.Vec(nil), l...)
		reverse(out.Loops[i])
	}
	for _, t := range c.Triangles {
		out.Triangles = append(out.Triangles, [3]v3.Vec{t[0], t[2], t[1]})
	}
	return out
}

// Clip returns the part of the cap on the positive side of q.
func (c *Cap) Clip(q Plane) *Cap {
	out := &Cap{Plane: c.Plane}
	for _, l := range c.Loops {
		poly := make([]Vertex, len(l))
		for i, x := range l {
			poly[i] = Vertex{Position: x}
		}
		if kept := clipPolygon(poly, q); len(kept) >= 3 {
			loop := make([]v3.Vec, len(kept))
			for i, x := range kept {
				loop[i] = x.Position
			}
			out.Loops = append(out.Loops, loop)
		}
	}
	for _, t := range c.Triangles {
		tri := Triangle{{Position: t[0]}, {Position: t[1]}, {Position: t[2]}}
		for _, kept := range SplitTriangle(q, tri).Positive {
			out.Triangles = append(out.Triangles, [3]v3.Vec{kept[0].Position, kept[1].Position, kept[2].Position})
		}
	}
	return out
}

// AddCap returns a copy of m with the cap triangles appended to the seam
// slot. The slot is appended only when m does not already carry the seam
// material; a nil cap still guarantees the slot exists. Cap vertices take
// the plane normal and UVs projected onto the plane and normalized to the
// cap's bounds.
func AddCap(m *Mesh, c *Cap, seam Material) *Mesh {
	b := extend(m.Clone())
	slot := b.slot(seam)
	if c == nil || len(c.Triangles) == 0 {
		return b.mesh
	}

	u, v := c.Plane.Basis()
	lo := v2.Vec{X: math.Inf(1), Y: math.Inf(1)}
	hi := v2.Vec{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, t := range c.Triangles {
		for _, x := range t {
			q := v2.Vec{X: x.Dot(u), Y: x.Dot(v)}
			lo = v2.Vec{X: math.Min(lo.X, q.X), Y: math.Min(lo.Y, q.Y)}
			hi = v2.Vec{X: math.Max(hi.X, q.X), Y: math.Max(hi.Y, q.Y)}
		}
	}
	size := hi.Sub(lo)
	if size.X <= 0 {
		size.X = 1
	}
	if size.Y <= 0 {
		size.Y = 1
	}
	uv := func(x v3.Vec) v2.Vec {
		return v2.Vec{X: (x.Dot(u) - lo.X) / size.X, Y: (x.Dot(v) - lo.Y) / size.Y}
	}
	for _, t := range c.Triangles {
		var tri Triangle
		for i, x := range t {
			tri[i] = Vertex{Position: x, Normal: c.Plane.Normal, UV: uv(x)}
		}
		b.add(slot, tri)
	}
	return b.mesh
}

// ---------------------------------------------------------------------------
// Polygon helpers
// ---------------------------------------------------------------------------

// welder maps nearby points to a shared index using a hash grid.
type welder struct {
	points []v3.Vec
	grid   map[[3]int64][]int
}

func newWelder() *welder {
	return &welder{grid: make(map[[3]int64][]int)}
}

func (w *welder) cell(x v3.Vec) [3]int64 {
	return [3]int64{
		int64(math.Floor(x.X / weldEpsilon)),
		int64(math.Floor(x.Y / weldEpsilon)),
		int64(math.Floor(x.Z / weldEpsilon)),
	}
}

func (w *welder) id(x v3.Vec) int {
	c := w.cell(x)
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				for _, i := range w.grid[[3]int64{c[0] + dx, c[1] + dy, c[2] + dz}] {
					if w.points[i].Sub(x).Length() <= weldEpsilon {
						return i
					}
				}
			}
		}
	}
	i := len(w.points)
	w.points = append(w.points, x)
	w.grid[c] = append(w.grid[c], i)
	return i
}

func project(loop []v3.Vec, p Plane, u, v v3.Vec) []v2.Vec {
	out := make([]v2.Vec, len(loop))
	for i, x := range loop {
		d := x.Sub(p.Point)
		out[i] = v2.Vec{X: d.Dot(u), Y: d.Dot(v)}
	}
	return out
}

func cross2(o, a, b v2.Vec) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

func signedArea(poly []v2.Vec) float64 {
	area := 0.0
	for i := range poly {
		j := (i + 1) % len(poly)
		area += poly[i].X*poly[j].Y - poly[j].X*poly[i].Y
	}
	return area / 2
}

// dropCollinear removes loop vertices that sit on the line through their
// neighbours.
func dropCollinear(loop []v3.Vec, p Plane, u, v v3.Vec) []v3.Vec {
	for changed := true; changed && len(loop) >= 3; {
		changed = false
		flat := project(loop, p, u, v)
		for i := range loop {
			a := flat[(i+len(flat)-1)%len(flat)]
			b := flat[(i+1)%len(flat)]
			tol := 1e-9 * a.Sub(flat[i]).Length() * b.Sub(flat[i]).Length()
			if math.Abs(cross2(a, flat[i], b)) <= tol+1e-18 {
				loop = append(loop[:i:i], loop[i+1:]...)
				changed = true
				break
			}
		}
	}
	return loop
}

// earClip triangulates a counter-clockwise simple polygon. If no ear can
// be found the remainder is fanned.
func earClip(poly []v2.Vec) [][3]int {
	idx := make([]int, len(poly))
	for i := range idx {
		idx[i] = i
	}
	var tris [][3]int
	for len(idx) > 3 {
		found := false
		for i := range idx {
			a := idx[(i+len(idx)-1)%len(idx)]
			b := idx[i]
			c := idx[(i+1)%len(idx)]
			if cross2(poly[a], poly[b], poly[c]) <= 0 {
				continue
			}
			inside := false
			for _, o := range idx {
				if o == a || o == b || o == c {
					continue
				}
				if pointInTriangle(poly[o], poly[a], poly[b], poly[c]) {
					inside = true
					break
				}
			}
			if inside {
				continue
			}
			tris = append(tris, [3]int{a, b, c})
			idx = append(idx[:i:i], idx[i+1:]...)
			found = true
			break
		}
		if !found {
			for k := 1; k+1 < len(idx); k++ {
				tris = append(tris, [3]int{idx[0], idx[k], idx[k+1]})
			}
			return tris
		}
	}
	return append(tris, [3]int{idx[0], idx[1], idx[2]})
}

func pointInTriangle(p, a, b, c v2.Vec) bool {
	return cross2(a, b, p) >= 0 && cross2(b, c, p) >= 0 && cross2(c, a, p) >= 0
}

// clipPolygon keeps the part of a polygon on the positive side of q.
func clipPolygon(poly []Vertex, q Plane) []Vertex {
	var out []Vertex
	for i := range poly {
		a, b := poly[i], poly[(i+1)%len(poly)]
		sa, sb := ClassifyVertex(q, a), ClassifyVertex(q, b)
		if sa != Negative {
			out = append(out, a)
		}
		if (sa == Positive && sb == Negative) || (sa == Negative && sb == Positive) {
			da, db := q.Distance(a.Position), q.Distance(b.Position)
			if sa == Positive {
				out = append(out, lerpVertex(a, b, da/(da-db)))
			} else {
				out = append(out, lerpVertex(b, a, db/(db-da)))
			}
		}
	}
	return out
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
