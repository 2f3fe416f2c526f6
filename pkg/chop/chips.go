package chop

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/chazu/notch/pkg/physics"
	"github.com/chazu/notch/pkg/schedule"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// minMass keeps slivers simulatable.
const minMass = 1e-6

// ChipManager spawns chips as dynamic bodies and removes them when their
// lifetime runs out. Removal happens inside Tick. Like Controller, it is
// not safe for concurrent use.
type ChipManager struct {
	port   physics.Port
	queue  *schedule.Queue
	cfg    Config
	log    *logrus.Entry
	active map[uuid.UUID]*Chip
}

// NewChipManager returns a manager scheduling removals on queue.
func NewChipManager(port physics.Port, queue *schedule.Queue, cfg Config, log *logrus.Entry) *ChipManager {
	return &ChipManager{
		port:   port,
		queue:  queue,
		cfg:    cfg,
		log:    log,
		active: make(map[uuid.UUID]*Chip),
	}
}

// Spawn attaches h as a dynamic body, pushes it away from apex (a point in
// the hull's local frame) and schedules its removal.
func (m *ChipManager) Spawn(h Hull, apex v3.Vec, now time.Time) (*Chip, error) {
	if h.Kind != HullChip {
		return nil, fmt.Errorf("chop: spawn chip from %s hull", h.Kind)
	}
	if h.Mesh == nil || h.Mesh.IsEmpty() {
		return nil, fmt.Errorf("chop: spawn chip: empty mesh")
	}

	c := &Chip{
		ID:        uuid.New(),
		Mesh:      h.Mesh,
		Transform: h.Transform,
		Apex:      h.Transform.Apply(apex),
		Deadline:  now.Add(m.cfg.ChipLifetime),
	}
	mass := math.Max(m.cfg.Density*math.Abs(h.Mesh.Volume()), minMass)
	body, err := m.port.AttachDynamic(c.ID, h.Mesh, h.Transform, mass)
	if err != nil {
		return nil, fmt.Errorf("chop: attach chip: %w", err)
	}
	c.Body = body

	dir := h.Transform.Apply(h.Mesh.Centroid()).Sub(c.Apex)
	if l := dir.Length(); l > 1e-12 {
		c.Impulse = dir.DivScalar(l).MulScalar(m.cfg.CutForce)
	}
	if err := m.port.ApplyImpulseAtPoint(body, c.Impulse, c.Apex); err != nil {
		_ = m.port.Remove(body)
		return nil, fmt.Errorf("chop: push chip: %w", err)
	}

	m.active[c.ID] = c
	c.Handle = m.queue.Schedule(c.Deadline, func(time.Time) { m.expire(c.ID) })

	m.log.WithFields(logrus.Fields{
		"chip":     c.ID,
		"mass":     mass,
		"deadline": c.Deadline,
	}).Debug("chip spawned")
	return c, nil
}

func (m *ChipManager) expire(id uuid.UUID) {
	c, ok := m.active[id]
	delete(m.active, id)
	if !ok {
		return
	}
	if err := m.port.Remove(c.Body); err != nil {
		m.log.WithField("chip", id).WithError(err).Warn("chip body already gone")
		return
	}
	m.log.WithField("chip", id).Debug("chip expired")
}

// Tick fires every removal due at now and returns how many tasks ran.
func (m *ChipManager) Tick(now time.Time) int {
	return m.queue.Poll(now)
}

// Active returns the live chips ordered by deadline.
func (m *ChipManager) Active() []*Chip {
	out := make([]*Chip, 0, len(m.active))
	for _, c := range m.active {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Deadline.Equal(out[j].Deadline) {
			return out[i].Handle.ID < out[j].Handle.ID
		}
		return out[i].Deadline.Before(out[j].Deadline)
	})
	return out
}
