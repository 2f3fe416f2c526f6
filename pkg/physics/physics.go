// Package physics is the boundary between the chop engine and a physics
// simulation. The engine only attaches bodies, pushes them and removes
// them; everything else belongs to the simulation behind Port.
package physics

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/chazu/notch/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// ErrUnknownBody is returned for operations on a body that does not exist.
var ErrUnknownBody = errors.New("physics: unknown body")

// BodyID identifies an attached body.
type BodyID uint64

// Kind says whether a body moves under simulation.
type Kind int

const (
	Dynamic Kind = iota
	Kinematic
)

func (k Kind) String() string {
	if k == Kinematic {
		return "kinematic"
	}
	return "dynamic"
}

// Port is the set of physics operations the engine consumes.
type Port interface {
	// AttachDynamic adds a body that falls and reacts to impulses.
	AttachDynamic(owner uuid.UUID, mesh *kernel.Mesh, transform kernel.Transform, mass float64) (BodyID, error)
	// ApplyImpulseAtPoint pushes a body at a world-space point.
	ApplyImpulseAtPoint(body BodyID, impulse, point v3.Vec) error
	// MarkKinematic stops a body from moving under simulation.
	MarkKinematic(body BodyID) error
	// Remove detaches a body.
	Remove(body BodyID) error
}

// Impulse is one recorded push.
type Impulse struct {
	Impulse v3.Vec
	Point   v3.Vec
}

// Body is the World's record of an attached body.
type Body struct {
	ID        BodyID
	Owner     uuid.UUID
	Kind      Kind
	Mesh      *kernel.Mesh
	Transform kernel.Transform
	Mass      float64
	Velocity  v3.Vec
	Impulses  []Impulse
}

// World is an in-memory Port. Dynamic bodies integrate linear motion under
// gravity in Step; angular motion is not simulated.
type World struct {
	mu      sync.Mutex
	bodies  map[BodyID]*Body
	nextID  BodyID
	gravity v3.Vec
}

// Compile-time interface check.
var _ Port = (*World)(nil)

// DefaultGravity is the acceleration applied to dynamic bodies.
var DefaultGravity = v3.Vec{Y: -9.81}

// NewWorld returns an empty world with DefaultGravity.
func NewWorld() *World {
	return &World{bodies: make(map[BodyID]*Body), gravity: DefaultGravity}
}

// AttachDynamic implements Port.
func (w *World) AttachDynamic(owner uuid.UUID, mesh *kernel.Mesh, transform kernel.Transform, mass float64) (BodyID, error) {
	if mesh == nil || mesh.TriangleCount() == 0 {
		return 0, fmt.Errorf("physics: attach body for %s: empty mesh", owner)
	}
	if !(mass > 0) {
		return 0, fmt.Errorf("physics: body for %s needs positive mass, got %v", owner, mass)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	id := w.nextID
	w.bodies[id] = &Body{ID: id, Owner: owner, Kind: Dynamic, Mesh: mesh, Transform: transform, Mass: mass}
	return id, nil
}

// ApplyImpulseAtPoint implements Port. Kinematic bodies record the impulse
// but do not move.
func (w *World) ApplyImpulseAtPoint(id BodyID, impulse, point v3.Vec) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.bodies[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBody, id)
	}
	b.Impulses = append(b.Impulses, Impulse{Impulse: impulse, Point: point})
	if b.Kind == Dynamic {
		b.Velocity = b.Velocity.Add(impulse.DivScalar(b.Mass))
	}
	return nil
}

// MarkKinematic implements Port.
func (w *World) MarkKinematic(id BodyID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.bodies[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBody, id)
	}
	b.Kind = Kinematic
	b.Velocity = v3.Vec{}
	return nil
}

// Remove implements Port.
func (w *World) Remove(id BodyID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.bodies[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBody, id)
	}
	delete(w.bodies, id)
	return nil
}

// Step advances every dynamic body by dt seconds.
func (w *World) Step(dt float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, b := range w.bodies {
		if b.Kind != Dynamic {
			continue
		}
		b.Velocity = b.Velocity.Add(w.gravity.MulScalar(dt))
		d := b.Velocity.MulScalar(dt)
		b.Transform.Position = b.Transform.Position.Add(mgl64.Vec3{d.X, d.Y, d.Z})
	}
}

// Body returns a copy of the body record.
func (w *World) Body(id BodyID) (Body, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.bodies[id]
	if !ok {
		return Body{}, false
	}
	out := *b
	out.Impulses = append([]Impulse(nil), b.Impulses...)
	return out, true
}

// Bodies returns copies of all bodies ordered by ID.
func (w *World) Bodies() []Body {
	w.mu.Lock()
	ids := make([]BodyID, 0, len(w.bodies))
	for id := range w.bodies {
		ids = append(ids, id)
	}
	w.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Body, 0, len(ids))
	for _, id := range ids {
		if b, ok := w.Body(id); ok {
			out = append(out, b)
		}
	}
	return out
}

// Len returns the number of attached bodies.
func (w *World) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.bodies)
}
