// Package chop removes wedge-shaped chips from cuttable meshes.
//
// A Controller owns one Entity. Each chop picks a weak point, derives two
// planes that meet in a line just behind it, slices twice and splits the
// result into the chip and the kept remainder. The chip becomes a short
// lived physics body; the remainder replaces the Entity and inherits the
// weak points that were not consumed.
package chop

import (
	"errors"
	"fmt"
	"time"

	"github.com/chazu/notch/pkg/kernel"
	"github.com/chazu/notch/pkg/physics"
	"github.com/chazu/notch/pkg/scan"
	"github.com/chazu/notch/pkg/schedule"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/google/uuid"
)

var (
	// ErrMissingCollisionVolume is returned for an entity without a collider.
	ErrMissingCollisionVolume = errors.New("chop: missing collision volume")
	// ErrMissingSeamMaterial is returned for an entity without a seam material.
	ErrMissingSeamMaterial = errors.New("chop: missing seam material")
	// ErrNoSuchWeakPoint is returned by ChopAt for an out-of-range index.
	ErrNoSuchWeakPoint = errors.New("chop: no such weak point")
)

// Entity is a cuttable object: a mesh in its local frame, a collision
// volume for scanning and the weak points still available for chopping.
type Entity struct {
	ID         uuid.UUID
	Name       string
	Mesh       *kernel.Mesh
	Collider   scan.Collider
	Transform  kernel.Transform
	WeakPoints *scan.WeakPointSet
	Seam       kernel.Material
	Body       physics.BodyID

	// Generation counts the chops that led to this entity.
	Generation int
}

// EntitySpec describes an entity to create.
type EntitySpec struct {
	Name      string
	Mesh      *kernel.Mesh
	Collider  scan.Collider
	Transform kernel.Transform
	Seam      kernel.Material

	// WeakPoints are used as given when non-nil; otherwise the collider is
	// scanned with Scan.
	WeakPoints []v3.Vec
	Scan       scan.Config
}

// NewEntity checks spec and returns the entity. It does not attach a body.
func NewEntity(spec EntitySpec) (*Entity, error) {
	if spec.Mesh == nil {
		return nil, fmt.Errorf("chop: entity %q: %w: no mesh", spec.Name, kernel.ErrInvalidMesh)
	}
	if err := spec.Mesh.Validate(); err != nil {
		return nil, fmt.Errorf("chop: entity %q: %w", spec.Name, err)
	}
	if spec.Collider == nil {
		return nil, fmt.Errorf("chop: entity %q: %w", spec.Name, ErrMissingCollisionVolume)
	}
	if spec.Seam == "" {
		return nil, fmt.Errorf("chop: entity %q: %w", spec.Name, ErrMissingSeamMaterial)
	}

	points := spec.WeakPoints
	if points == nil {
		var err error
		points, err = scan.Scan(spec.Collider, spec.Scan)
		if err != nil {
			return nil, fmt.Errorf("chop: entity %q: %w", spec.Name, err)
		}
	}

	return &Entity{
		ID:         uuid.New(),
		Name:       spec.Name,
		Mesh:       spec.Mesh,
		Collider:   spec.Collider,
		Transform:  spec.Transform,
		WeakPoints: scan.NewWeakPointSet(points),
		Seam:       spec.Seam,
	}, nil
}

// HullKind tags a hull produced by a chop.
type HullKind int

const (
	// HullKept is part of the remainder.
	HullKept HullKind = iota
	// HullChip is the removed wedge.
	HullChip
)

func (k HullKind) String() string {
	if k == HullChip {
		return "chip"
	}
	return "kept"
}

// Hull is one closed piece produced by a chop, in the local frame of
// Transform.
type Hull struct {
	Kind      HullKind
	Mesh      *kernel.Mesh
	Transform kernel.Transform
}

// Chip is a removed wedge living as a dynamic body until Deadline.
type Chip struct {
	ID        uuid.UUID
	Mesh      *kernel.Mesh
	Transform kernel.Transform
	// Apex and Impulse are in world space.
	Apex     v3.Vec
	Impulse  v3.Vec
	Body     physics.BodyID
	Deadline time.Time
	Handle   schedule.Handle
}
