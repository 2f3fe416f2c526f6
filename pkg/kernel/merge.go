package kernel

import (
	"github.com/go-gl/mathgl/mgl64"
)

// MergePart is one input of MergeMeshes: a mesh and the transform that
// places it.
type MergePart struct {
	Mesh      *Mesh
	Transform Transform
}

// MergeMeshes concatenates parts into a single mesh expressed in target's
// frame. Every distinct material becomes exactly one submesh, in order of
// first appearance, holding the triangles of that material from all parts.
// Vertices that end up identical after transformation are shared.
func MergeMeshes(parts []MergePart, target Transform) *Mesh {
	var materials []Material
	seen := make(map[Material]bool)
	for _, p := range parts {
		if p.Mesh == nil {
			continue
		}
		for _, mat := range p.Mesh.Materials() {
			if !seen[mat] {
				seen[mat] = true
				materials = append(materials, mat)
			}
		}
	}

	b := newMeshBuilder("merged", materials)
	for _, p := range parts {
		if p.Mesh == nil {
			continue
		}
		rel := p.Transform.Relative(target)
		identity := rel.ApproxEqual(mgl64.Ident4())
		for slot, sm := range p.Mesh.Submeshes {
			dst := b.mesh.Slot(sm.Material)
			for k := 0; k < len(sm.Indices)/3; k++ {
				t := p.Mesh.Triangle(slot, k)
				if !identity {
					for i := range t {
						t[i].Position = fromMgl(mgl64.TransformCoordinate(toMgl(t[i].Position), rel))
						t[i].Normal = transformNormal(rel, t[i].Normal)
					}
				}
				b.add(dst, t)
			}
		}
	}
	return b.mesh
}
