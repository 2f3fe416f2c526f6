package main

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/chazu/notch/pkg/chop"
	"github.com/chazu/notch/pkg/config"
	"github.com/chazu/notch/pkg/engine"
	"github.com/chazu/notch/pkg/kernel"
	"github.com/chazu/notch/pkg/kernel/sdfx"
	"github.com/chazu/notch/pkg/physics"
	"github.com/chazu/notch/pkg/schedule"
	"github.com/chazu/notch/pkg/scene"
	"github.com/chazu/notch/pkg/tessellate"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// ErrUnknownObject is returned when a chop names an object that is not loaded.
var ErrUnknownObject = errors.New("app: unknown object")

// colorPalette is a default palette used to assign distinct colors to objects.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// chipColor is used for every chip so they read as debris.
const chipColor = "#C8A165"

// App ties script evaluation, tessellation and chopping together around a
// single physics world and frame clock.
type App struct {
	engine *engine.Engine
	kernel kernel.Kernel
	rng    *rand.Rand
	log    *logrus.Entry

	world       *physics.World
	queue       *schedule.Queue
	scene       *scene.Scene
	controllers []*chop.Controller
	byName      map[string]*chop.Controller
	lastTick    time.Time
}

// AppOption configures an App.
type AppOption func(*App)

// WithKernel sets the geometry kernel used to tessellate objects.
func WithKernel(k kernel.Kernel) AppOption {
	return func(a *App) { a.kernel = k }
}

// WithSeed makes weak point and tilt selection reproducible.
func WithSeed(seed uint64) AppOption {
	return func(a *App) { a.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithAppLogger sets the logger shared by the app and its controllers.
func WithAppLogger(log *logrus.Entry) AppOption {
	return func(a *App) { a.log = log }
}

// MeshData is the JSON-serializable mesh format handed to a renderer.
type MeshData struct {
	Name       string         `json:"name"`
	Chip       bool           `json:"chip"`
	Generation int            `json:"generation"`
	Transform  [16]float64    `json:"transform"` // column-major
	Buffers    kernel.Buffers `json:"buffers"`
	Color      string         `json:"color"`
}

// EvalErrorData is a JSON-serializable script error or warning.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Object  string `json:"object,omitempty"`
	Message string `json:"message"`
}

// LoadResult is the outcome of loading a script.
type LoadResult struct {
	Objects  []string        `json:"objects"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
}

// ChopResult summarizes one chop request.
type ChopResult struct {
	Object         string   `json:"object"`
	Result         string   `json:"result"`
	Reason         string   `json:"reason,omitempty"`
	Generation     int      `json:"generation"`
	WeakPointsLeft int      `json:"weak_points_left"`
	Volume         float64  `json:"volume"`
	ChipVolume     float64  `json:"chip_volume,omitempty"`
	Trace          []string `json:"trace"`
}

// NewApp creates an App with the sdfx kernel unless options say otherwise.
func NewApp(opts ...AppOption) *App {
	a := &App{engine: engine.NewEngine()}
	for _, opt := range opts {
		opt(a)
	}
	if a.kernel == nil {
		a.kernel = sdfx.New()
	}
	if a.rng == nil {
		a.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if a.log == nil {
		a.log = config.NamedLogger("notch", logrus.InfoLevel)
	}
	a.reset()
	return a
}

func (a *App) reset() {
	a.world = physics.NewWorld()
	a.queue = schedule.NewQueue()
	a.scene = nil
	a.controllers = nil
	a.byName = make(map[string]*chop.Controller)
	a.lastTick = time.Time{}
}

// Load evaluates source and replaces the loaded objects with its scene.
// On any error the previous objects stay loaded.
func (a *App) Load(source string) LoadResult {
	result := LoadResult{
		Objects:  []string{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}

	// Step 1: Evaluate and validate the script.
	res, err := a.engine.EvaluateAll(source)
	if err != nil {
		a.log.WithError(err).Error("evaluate failed")
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	for _, w := range res.Warnings {
		result.Warnings = append(result.Warnings, EvalErrorData{Object: w.Object, Message: w.Message})
	}
	if !res.OK() {
		for _, e := range res.Errors {
			result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
		}
		return result
	}

	// Step 2: Tessellate every object in its local frame.
	parts, err := tessellate.Tessellate(res.Scene, a.kernel)
	if err != nil {
		a.log.WithError(err).Error("tessellate failed")
		result.Errors = append(result.Errors, EvalErrorData{Message: "tessellation failed: " + err.Error()})
		return result
	}

	// Step 3: Instantiate entities and controllers against a fresh world.
	world := physics.NewWorld()
	queue := schedule.NewQueue()
	controllers := make([]*chop.Controller, 0, len(parts))
	for _, p := range parts {
		c, err := a.instantiate(p, res.Scene.Chop, world, queue)
		if err != nil {
			result.Errors = append(result.Errors, EvalErrorData{Object: p.Object.Name, Message: err.Error()})
			continue
		}
		controllers = append(controllers, c)
	}
	if len(result.Errors) > 0 {
		return result
	}

	a.reset()
	a.world, a.queue, a.scene, a.controllers = world, queue, res.Scene, controllers
	for _, c := range controllers {
		a.byName[c.Current().Name] = c
		result.Objects = append(result.Objects, c.Current().Name)
	}
	a.log.WithFields(logrus.Fields{
		"objects":  len(controllers),
		"version":  res.Scene.Version,
		"warnings": len(result.Warnings),
	}).Info("scene loaded")
	return result
}

func (a *App) instantiate(p tessellate.Part, cfg chop.Config, world *physics.World, queue *schedule.Queue) (*chop.Controller, error) {
	o := p.Object
	e, err := chop.NewEntity(chop.EntitySpec{
		Name:       o.Name,
		Mesh:       p.Mesh,
		Collider:   p.Collider,
		Transform:  o.Transform(),
		Seam:       o.Seam,
		WeakPoints: o.Points(),
		Scan:       o.Scan,
	})
	if err != nil {
		return nil, err
	}
	a.log.WithFields(logrus.Fields{
		"entity":      o.Name,
		"shape":       o.Shape.Kind,
		"weak_points": e.WeakPoints.Len(),
	}).Debug("entity ready")

	return chop.NewController(e, world, cfg,
		chop.WithRand(a.rng),
		chop.WithLogger(a.log.WithField("entity", o.Name)),
		chop.WithQueue(queue),
	)
}

// Objects returns the loaded object names in scene order.
func (a *App) Objects() []string {
	return lo.Map(a.controllers, func(c *chop.Controller, _ int) string { return c.Current().Name })
}

// Controller returns the controller for name.
func (a *App) Controller(name string) (*chop.Controller, bool) {
	c, ok := a.byName[name]
	return c, ok
}

// Scene returns the loaded scene, or nil before the first successful Load.
func (a *App) Scene() *scene.Scene {
	return a.scene
}

// World returns the physics world the loaded objects live in.
func (a *App) World() *physics.World {
	return a.world
}

// Chop runs one chop on the named object at time now.
func (a *App) Chop(name string, now time.Time) (ChopResult, error) {
	c, ok := a.byName[name]
	if !ok {
		return ChopResult{}, fmt.Errorf("%w: %q", ErrUnknownObject, name)
	}
	out, err := c.Chop(now)
	if err != nil {
		return ChopResult{}, err
	}

	e := out.Entity
	res := ChopResult{
		Object:         name,
		Result:         out.Result.String(),
		Reason:         out.Reason,
		Generation:     e.Generation,
		WeakPointsLeft: e.WeakPoints.Len(),
		Volume:         e.Mesh.Volume(),
		Trace:          lo.Map(out.Trace, func(s chop.State, _ int) string { return s.String() }),
	}
	if out.Chip != nil {
		res.ChipVolume = out.Chip.Mesh.Volume()
	}
	return res, nil
}

// Tick advances the physics world to now and fires due chip removals.
// It returns how many scheduled tasks ran.
func (a *App) Tick(now time.Time) int {
	if !a.lastTick.IsZero() && now.After(a.lastTick) {
		a.world.Step(now.Sub(a.lastTick).Seconds())
	}
	a.lastTick = now
	return a.queue.Poll(now)
}

// Meshes returns render data for every loaded object followed by the live
// chips. Chips take their transform from the physics world.
func (a *App) Meshes() []MeshData {
	var out []MeshData
	for i, c := range a.controllers {
		e := c.Current()
		out = append(out, MeshData{
			Name:       e.Name,
			Generation: e.Generation,
			Transform:  e.Transform.Matrix(),
			Buffers:    e.Mesh.Buffers(),
			Color:      colorPalette[i%len(colorPalette)],
		})
	}
	for _, c := range a.controllers {
		for _, chip := range c.Chips().Active() {
			t := chip.Transform
			if b, ok := a.world.Body(chip.Body); ok {
				t = b.Transform
			}
			out = append(out, MeshData{
				Name:      chip.ID.String(),
				Chip:      true,
				Transform: t.Matrix(),
				Buffers:   chip.Mesh.Buffers(),
				Color:     chipColor,
			})
		}
	}
	return out
}
