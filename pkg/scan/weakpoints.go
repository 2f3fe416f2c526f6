package scan

import (
	"math/rand/v2"
	"slices"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/samber/lo"
)

// WeakPointSet is the pool of chop positions owned by one entity. Points
// are in the entity's local frame. Removal is plain deletion.
type WeakPointSet struct {
	points []v3.Vec
}

// NewWeakPointSet returns a set holding a copy of points.
func NewWeakPointSet(points []v3.Vec) *WeakPointSet {
	return &WeakPointSet{points: slices.Clone(points)}
}

// Len returns the number of points left.
func (s *WeakPointSet) Len() int {
	return len(s.points)
}

// At returns point i.
func (s *WeakPointSet) At(i int) v3.Vec {
	return s.points[i]
}

// Points returns a copy of the points in order.
func (s *WeakPointSet) Points() []v3.Vec {
	return slices.Clone(s.points)
}

// Remove deletes point i, keeping the order of the rest.
func (s *WeakPointSet) Remove(i int) (v3.Vec, bool) {
	if i < 0 || i >= len(s.points) {
		return v3.Vec{}, false
	}
	p := s.points[i]
	s.points = slices.Delete(s.points, i, i+1)
	return p, true
}

// Pick returns a uniformly random index, or false for an empty set.
func (s *WeakPointSet) Pick(rng *rand.Rand) (int, bool) {
	if len(s.points) == 0 {
		return 0, false
	}
	return rng.IntN(len(s.points)), true
}

// Filter keeps the points for which keep returns true and reports how many
// were dropped.
func (s *WeakPointSet) Filter(keep func(v3.Vec) bool) int {
	before := len(s.points)
	s.points = lo.Filter(s.points, func(p v3.Vec, _ int) bool { return keep(p) })
	return before - len(s.points)
}

// Clone returns an independent copy.
func (s *WeakPointSet) Clone() *WeakPointSet {
	return NewWeakPointSet(s.points)
}
