package chop

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/chazu/notch/pkg/config"
	"github.com/chazu/notch/pkg/kernel"
	"github.com/chazu/notch/pkg/physics"
	"github.com/chazu/notch/pkg/scan"
	"github.com/chazu/notch/pkg/schedule"
	"github.com/chazu/notch/pkg/slice"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/sirupsen/logrus"
)

// State is a step of the chop state machine.
type State int

const (
	Idle State = iota
	PointSelected
	FirstSliceDone
	SecondSliceDone
	Recombined
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PointSelected:
		return "point-selected"
	case FirstSliceDone:
		return "first-slice-done"
	case SecondSliceDone:
		return "second-slice-done"
	case Recombined:
		return "recombined"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Result is how a chop request ended.
type Result int

const (
	// ResultChopped means a chip was removed and the entity replaced.
	ResultChopped Result = iota
	// ResultAborted means the chop was abandoned and nothing changed.
	ResultAborted
	// ResultExhausted means there were no weak points left.
	ResultExhausted
)

func (r Result) String() string {
	switch r {
	case ResultChopped:
		return "chopped"
	case ResultAborted:
		return "aborted"
	case ResultExhausted:
		return "exhausted"
	}
	return fmt.Sprintf("result(%d)", int(r))
}

// Outcome describes one chop request.
type Outcome struct {
	Result Result
	// Reason explains an abort.
	Reason string
	// Point is the weak point that was chopped or attempted.
	Point v3.Vec
	Notch Notch
	// Entity is the current entity after the request.
	Entity *Entity
	Chip   *Chip
	// Trace lists the states visited, starting with the one the request
	// began in.
	Trace []State
}

// Controller runs chops on one entity. It is not safe for concurrent use;
// chops on different entities can run on separate controllers.
type Controller struct {
	entity   *Entity
	state    State
	cfg      Config
	rng      *rand.Rand
	log      *logrus.Entry
	queue    *schedule.Queue
	chips    *ChipManager
	rebinder *Rebinder
	trace    []State
}

// Option configures a Controller.
type Option func(*Controller)

// WithRand sets the source for weak point and tilt selection.
func WithRand(rng *rand.Rand) Option {
	return func(c *Controller) { c.rng = rng }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(c *Controller) { c.log = log }
}

// WithQueue sets the queue chip removals are scheduled on, so several
// controllers can share one frame loop.
func WithQueue(q *schedule.Queue) Option {
	return func(c *Controller) { c.queue = q }
}

// NewController returns a controller for e. If e has no body yet it gets a
// kinematic one.
func NewController(e *Entity, port physics.Port, cfg Config, opts ...Option) (*Controller, error) {
	if e == nil {
		return nil, errors.New("chop: nil entity")
	}
	if port == nil {
		return nil, errors.New("chop: nil physics port")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if e.Collider == nil {
		return nil, fmt.Errorf("chop: entity %q: %w", e.Name, ErrMissingCollisionVolume)
	}
	if e.Seam == "" {
		return nil, fmt.Errorf("chop: entity %q: %w", e.Name, ErrMissingSeamMaterial)
	}

	if e.WeakPoints == nil {
		e.WeakPoints = scan.NewWeakPointSet(nil)
	}

	c := &Controller{entity: e, state: Idle, cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if c.log == nil {
		c.log = config.NamedLogger("chop", logrus.InfoLevel)
	}
	if c.queue == nil {
		c.queue = schedule.NewQueue()
	}
	c.chips = NewChipManager(port, c.queue, cfg, c.log)
	c.rebinder = NewRebinder(port, cfg, c.log)

	if e.Body == 0 {
		if err := attachKinematic(port, e, cfg.Density); err != nil {
			return nil, fmt.Errorf("chop: entity %q: %w", e.Name, err)
		}
	}
	return c, nil
}

// Current returns the entity the next chop will act on.
func (c *Controller) Current() *Entity { return c.entity }

// State returns the state the last request left the controller in.
func (c *Controller) State() State { return c.state }

// Chips returns the chip manager.
func (c *Controller) Chips() *ChipManager { return c.chips }

// Tick removes chips whose lifetime has run out.
func (c *Controller) Tick(now time.Time) int { return c.chips.Tick(now) }

// Chop removes a chip at a randomly picked weak point.
func (c *Controller) Chop(now time.Time) (Outcome, error) {
	i, ok := c.entity.WeakPoints.Pick(c.rng)
	if !ok {
		return c.exhausted(), nil
	}
	return c.ChopAt(i, now)
}

// ChopAt removes a chip at weak point i. Aborts and an empty weak point
// set are reported through Outcome; errors are configuration problems.
// The entity is only replaced when the whole chop succeeds.
func (c *Controller) ChopAt(i int, now time.Time) (Outcome, error) {
	e := c.entity
	if e.WeakPoints.Len() == 0 {
		return c.exhausted(), nil
	}
	if i < 0 || i >= e.WeakPoints.Len() {
		return Outcome{}, fmt.Errorf("%w: %d of %d", ErrNoSuchWeakPoint, i, e.WeakPoints.Len())
	}

	c.trace = []State{c.state}
	c.enter(PointSelected)
	p := e.WeakPoints.At(i)
	out := Outcome{Point: p, Entity: e}

	n, err := DeriveNotch(p, c.tilt(), c.cfg)
	if err != nil {
		return c.abort(out, err.Error()), nil
	}
	out.Notch = n

	h1, ok, err := slice.Slice(e.Mesh, n.Planes[0], e.Seam)
	if err != nil {
		c.reset()
		return Outcome{}, sliceError(e.Name, "first slice", err)
	}
	if !ok {
		return c.abort(out, "first plane misses the mesh"), nil
	}
	c.enter(FirstSliceDone)

	h2, ok, err := slice.Slice(h1.Upper, n.Planes[1], e.Seam)
	if err != nil {
		c.reset()
		return Outcome{}, sliceError(e.Name, "second slice", err)
	}
	if !ok {
		return c.abort(out, "second plane misses the first hull"), nil
	}
	c.enter(SecondSliceDone)

	chip, kept := assemble(e, n, h1, h2)

	points := e.WeakPoints.Clone()
	points.Remove(i)
	next, err := c.rebinder.Rebind(e, kept, points, n)
	if err != nil {
		return c.abort(out, err.Error()), nil
	}
	c.enter(Recombined)

	spawned, err := c.chips.Spawn(chip, n.Corner, now)
	if err != nil {
		c.log.WithField("entity", e.Name).WithError(err).Warn("chip not spawned")
	}

	c.entity = next
	c.enter(Idle)
	out.Result = ResultChopped
	out.Entity = next
	out.Chip = spawned
	out.Trace = c.trace
	c.log.WithFields(logrus.Fields{
		"entity":      e.Name,
		"weak_points": next.WeakPoints.Len(),
		"state":       c.state,
		"generation":  next.Generation,
	}).Info("chopped")
	return out, nil
}

// sliceError reports a failed slice under the matching chop sentinel.
func sliceError(name, step string, err error) error {
	if errors.Is(err, slice.ErrMissingSeamMaterial) {
		err = ErrMissingSeamMaterial
	}
	return fmt.Errorf("chop: entity %q: %s: %w", name, step, err)
}

// assemble splits the two slices into the chip and the kept hulls. The kept
// lower hull is closed by the part of the first cap on the chip side of the
// second plane; the kept upper hull by the second cap.
func assemble(e *Entity, n Notch, h1, h2 slice.SlicedHull) (Hull, []Hull) {
	chip := Hull{Kind: HullChip, Mesh: h2.Upper, Transform: e.Transform}

	var floor *kernel.Cap
	if h1.Cap != nil {
		floor = h1.Cap.Clip(n.Planes[1])
	}
	lower := kernel.AddCap(h1.LowerSurface, floor, e.Seam)
	wall := kernel.AddCap(kernel.SplitMesh(h1.UpperSurface, n.Planes[1]).Lower, h2.Cap, e.Seam)

	return chip, []Hull{
		{Kind: HullKept, Mesh: lower, Transform: e.Transform},
		{Kind: HullKept, Mesh: wall, Transform: e.Transform},
	}
}

func (c *Controller) tilt() float64 {
	t := c.cfg.MinTilt + c.rng.Float64()*(c.cfg.MaxTilt-c.cfg.MinTilt)
	if c.rng.IntN(2) == 0 {
		return -t
	}
	return t
}

func (c *Controller) enter(s State) {
	c.state = s
	c.trace = append(c.trace, s)
	c.log.WithFields(logrus.Fields{
		"entity": c.entity.Name,
		"state":  s,
	}).Debug("transition")
}

func (c *Controller) abort(out Outcome, reason string) Outcome {
	c.enter(Aborted)
	out.Result = ResultAborted
	out.Reason = reason
	out.Trace = c.trace
	c.log.WithFields(logrus.Fields{
		"entity":      c.entity.Name,
		"weak_points": c.entity.WeakPoints.Len(),
		"state":       c.state,
		"reason":      reason,
	}).Info("chop aborted")
	return out
}

func (c *Controller) reset() {
	c.state = Idle
	c.trace = nil
}

func (c *Controller) exhausted() Outcome {
	c.reset()
	c.log.WithFields(logrus.Fields{
		"entity":      c.entity.Name,
		"weak_points": 0,
		"state":       c.state,
	}).Debug("no weak points left")
	return Outcome{Result: ResultExhausted, Entity: c.entity, Trace: []State{c.state}}
}
