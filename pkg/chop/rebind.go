package chop

import (
	"fmt"
	"math"

	"github.com/chazu/notch/pkg/collide"
	"github.com/chazu/notch/pkg/kernel"
	"github.com/chazu/notch/pkg/physics"
	"github.com/chazu/notch/pkg/scan"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Rebinder turns the kept hulls of a chop into the entity that replaces
// the chopped one.
type Rebinder struct {
	port physics.Port
	cfg  Config
	log  *logrus.Entry
}

// NewRebinder returns a Rebinder attaching bodies through port.
func NewRebinder(port physics.Port, cfg Config, log *logrus.Entry) *Rebinder {
	return &Rebinder{port: port, cfg: cfg, log: log}
}

// Rebind merges kept into one mesh in prev's frame and returns the new
// entity carrying points. When revalidation is on, points inside n are
// dropped. The new entity gets a kinematic body and prev's body is
// removed; prev itself is left untouched.
func (r *Rebinder) Rebind(prev *Entity, kept []Hull, points *scan.WeakPointSet, n Notch) (*Entity, error) {
	parts := lo.FilterMap(kept, func(h Hull, _ int) (kernel.MergePart, bool) {
		return kernel.MergePart{Mesh: h.Mesh, Transform: h.Transform}, h.Kind == HullKept && h.Mesh != nil
	})
	merged := kernel.MergeMeshes(parts, prev.Transform)
	merged.Name = prev.Mesh.Name

	collider, err := collide.NewMeshCollider(merged)
	if err != nil {
		return nil, fmt.Errorf("chop: rebind %q: %w", prev.Name, err)
	}

	points = points.Clone()
	if r.cfg.Revalidate {
		if dropped := points.Filter(func(p v3.Vec) bool { return !n.Contains(p) }); dropped > 0 {
			r.log.WithFields(logrus.Fields{
				"entity":  prev.Name,
				"dropped": dropped,
			}).Debug("weak points inside the notch dropped")
		}
	}

	next := &Entity{
		ID:         uuid.New(),
		Name:       prev.Name,
		Mesh:       merged,
		Collider:   collider,
		Transform:  prev.Transform,
		WeakPoints: points,
		Seam:       prev.Seam,
		Generation: prev.Generation + 1,
	}
	if err := attachKinematic(r.port, next, r.cfg.Density); err != nil {
		return nil, fmt.Errorf("chop: rebind %q: %w", prev.Name, err)
	}
	if prev.Body != 0 {
		if err := r.port.Remove(prev.Body); err != nil {
			r.log.WithField("entity", prev.Name).WithError(err).Warn("previous body already gone")
		}
	}
	return next, nil
}

// attachKinematic gives e a body that does not move under simulation.
func attachKinematic(port physics.Port, e *Entity, density float64) error {
	mass := math.Max(density*math.Abs(e.Mesh.Volume()), minMass)
	body, err := port.AttachDynamic(e.ID, e.Mesh, e.Transform, mass)
	if err != nil {
		return err
	}
	if err := port.MarkKinematic(body); err != nil {
		_ = port.Remove(body)
		return err
	}
	e.Body = body
	return nil
}
