// Package slice cuts a mesh in two along a plane and caps both halves.
package slice

import (
	"errors"
	"fmt"

	"github.com/chazu/notch/pkg/kernel"
)

// ErrMissingSeamMaterial is returned when no seam material is supplied.
var ErrMissingSeamMaterial = errors.New("slice: missing seam material")

// SlicedHull is the result of a successful slice.
type SlicedHull struct {
	Plane kernel.Plane
	Seam  kernel.Material

	// Upper lies on the positive side of the plane, Lower on the negative
	// side. Both are capped and carry the source slots plus the seam slot.
	Upper *kernel.Mesh
	Lower *kernel.Mesh

	// UpperSurface and LowerSurface are the same halves without the new cap.
	UpperSurface *kernel.Mesh
	LowerSurface *kernel.Mesh

	// Cap faces along the plane normal. It is nil when the cut edges could
	// not be closed into loops, in which case both halves are left open.
	Cap *kernel.Cap
}

// Slice cuts m along p. ok is false when the plane does not cross the
// mesh, which is a normal outcome: nothing is split and the caller keeps m
// whole. The input mesh is never modified.
func Slice(m *kernel.Mesh, p kernel.Plane, seam kernel.Material) (hull SlicedHull, ok bool, err error) {
	if seam == "" {
		return SlicedHull{}, false, ErrMissingSeamMaterial
	}
	if err := m.Validate(); err != nil {
		return SlicedHull{}, false, fmt.Errorf("slice: %w", err)
	}
	if !kernel.Intersects(m, p) {
		return SlicedHull{}, false, nil
	}

	split := kernel.SplitMesh(m, p)
	if !split.Crossed {
		return SlicedHull{}, false, nil
	}

	c, err := kernel.BuildCap(split.Edges, p)
	if err != nil {
		// An open cross-section is an acceptable result.
		c = nil
	}

	hull = SlicedHull{
		Plane:        p,
		Seam:         seam,
		UpperSurface: split.Upper,
		LowerSurface: split.Lower,
		Cap:          c,
	}
	if c != nil {
		hull.Upper = kernel.AddCap(split.Upper, c.Flipped(), seam)
	} else {
		hull.Upper = kernel.AddCap(split.Upper, nil, seam)
	}
	hull.Lower = kernel.AddCap(split.Lower, c, seam)
	return hull, true, nil
}
