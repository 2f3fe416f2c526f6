package main

import (
	"errors"
	"io"
	"math"
	"os"
	"testing"
	"time"

	"github.com/chazu/notch/pkg/chop"
	"github.com/chazu/notch/pkg/config"
	"github.com/sirupsen/logrus"
)

// newTestApp returns an app with a fixed seed and a silent logger.
func newTestApp() *App {
	return NewApp(
		WithSeed(42),
		WithAppLogger(config.NamedLoggerTo(io.Discard, "notch", logrus.DebugLevel)),
	)
}

func mustLoad(t *testing.T, app *App, source string) LoadResult {
	t.Helper()
	res := app.Load(source)
	if len(res.Errors) > 0 {
		for _, e := range res.Errors {
			t.Errorf("load error (line %d, object %q): %s", e.Line, e.Object, e.Message)
		}
		t.FailNow()
	}
	return res
}

// TestE2ELogExample exercises the full pipeline: script → engine → scene →
// tessellate → entities → chops → chip expiry.
func TestE2ELogExample(t *testing.T) {
	app := newTestApp()

	source, err := os.ReadFile("examples/log.notch")
	if err != nil {
		t.Fatalf("failed to read log.notch: %v", err)
	}
	res := mustLoad(t, app, string(source))

	if len(res.Objects) != 2 || res.Objects[0] != "log" || res.Objects[1] != "stump" {
		t.Fatalf("objects = %v, want [log stump]", res.Objects)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}

	meshes := app.Meshes()
	if len(meshes) != 2 {
		t.Fatalf("expected 2 meshes, got %d", len(meshes))
	}
	if meshes[0].Color == meshes[1].Color {
		t.Error("objects share a color")
	}
	for _, m := range meshes {
		if len(m.Buffers.Positions) == 0 || len(m.Buffers.Groups) == 0 {
			t.Errorf("mesh %q has no geometry", m.Name)
		}
	}
	// The log sits at y=0.5.
	if meshes[0].Transform[13] != 0.5 {
		t.Errorf("log transform translation = %v", meshes[0].Transform[12:15])
	}

	c, ok := app.Controller("log")
	if !ok {
		t.Fatal("no controller for log")
	}
	startPoints := c.Current().WeakPoints.Len()
	if startPoints == 0 {
		t.Fatal("log scanned no weak points")
	}

	start := time.Unix(0, 0)
	app.Tick(start)
	chipVolume := 0.0
	for i := 0; i < 3; i++ {
		now := start.Add(time.Duration(i) * 500 * time.Millisecond)
		r, err := app.Chop("log", now)
		if err != nil {
			t.Fatalf("chop %d: %v", i, err)
		}
		if r.Result != "chopped" {
			t.Fatalf("chop %d result = %s (%s)", i, r.Result, r.Reason)
		}
		if r.Generation != i+1 {
			t.Errorf("chop %d generation = %d", i, r.Generation)
		}
		if r.WeakPointsLeft != startPoints-i-1 {
			t.Errorf("chop %d left %d weak points, want %d", i, r.WeakPointsLeft, startPoints-i-1)
		}
		chipVolume += r.ChipVolume
		if got := r.Volume + chipVolume; math.Abs(got-4) > 1e-6 {
			t.Errorf("chop %d: remainder + chips = %f, want 4", i, got)
		}
		app.Tick(now)
	}

	meshes = app.Meshes()
	if len(meshes) != 5 {
		t.Fatalf("expected 2 objects + 3 chips, got %d meshes", len(meshes))
	}
	chips := 0
	for _, m := range meshes {
		if m.Chip {
			chips++
			if len(m.Buffers.Groups) != 2 {
				t.Errorf("chip %s has %d material groups, want surface and seam", m.Name, len(m.Buffers.Groups))
			}
		}
	}
	if chips != 3 {
		t.Errorf("chips = %d, want 3", chips)
	}
	if app.World().Len() != 5 {
		t.Errorf("world has %d bodies, want 5", app.World().Len())
	}

	// Lifetime is 3s: the first chip expires at 3s, the rest by 4s.
	if ran := app.Tick(start.Add(3 * time.Second)); ran != 1 {
		t.Errorf("tick at 3s ran %d removals, want 1", ran)
	}
	if ran := app.Tick(start.Add(4 * time.Second)); ran != 2 {
		t.Errorf("tick at 4s ran %d removals, want 2", ran)
	}
	if len(app.Meshes()) != 2 || app.World().Len() != 2 {
		t.Errorf("after expiry: %d meshes, %d bodies", len(app.Meshes()), app.World().Len())
	}
}

// TestE2EEmptySource ensures the pipeline handles empty input gracefully.
func TestE2EEmptySource(t *testing.T) {
	app := newTestApp()
	res := mustLoad(t, app, "")
	if len(res.Objects) != 0 {
		t.Errorf("expected no objects, got %v", res.Objects)
	}
	if len(app.Meshes()) != 0 {
		t.Errorf("expected 0 meshes for empty source, got %d", len(app.Meshes()))
	}
}

// TestE2ESyntaxErrorKeepsScene ensures a broken reload leaves the previous
// objects in place.
func TestE2ESyntaxErrorKeepsScene(t *testing.T) {
	app := newTestApp()
	mustLoad(t, app, `(cuttable "log" (box 2 2 1))`)
	version := app.Scene().Version

	res := app.Load(`(cuttable "other" (box 1 1`)
	if len(res.Errors) == 0 {
		t.Fatal("expected eval errors for syntax error")
	}
	if got := app.Objects(); len(got) != 1 || got[0] != "log" {
		t.Errorf("objects after failed reload = %v, want [log]", got)
	}
	if app.Scene().Version != version {
		t.Errorf("scene version = %d, want %d", app.Scene().Version, version)
	}
}

func TestE2EExhaust(t *testing.T) {
	app := newTestApp()
	mustLoad(t, app, `
(cuttable "log" (box 2 2 1)
  :points (points (vec3 -0.5 0 -0.5) (vec3 0.5 0 -0.5)))
`)
	now := time.Unix(100, 0)
	want := []string{"chopped", "chopped", "exhausted", "exhausted"}
	for i, w := range want {
		r, err := app.Chop("log", now)
		if err != nil {
			t.Fatalf("chop %d: %v", i, err)
		}
		if r.Result != w {
			t.Errorf("chop %d = %s, want %s", i, r.Result, w)
		}
	}
	c, _ := app.Controller("log")
	if c.State() != chop.Idle {
		t.Errorf("state = %s, want idle", c.State())
	}
}

func TestChopUnknownObject(t *testing.T) {
	app := newTestApp()
	mustLoad(t, app, `(cuttable "log" (box 2 2 1))`)
	if _, err := app.Chop("nope", time.Now()); !errors.Is(err, ErrUnknownObject) {
		t.Errorf("err = %v, want ErrUnknownObject", err)
	}
}

func TestChopsAreReproducible(t *testing.T) {
	source := `(cuttable "log" (box 2 2 1))`
	run := func() []ChopResult {
		app := newTestApp()
		mustLoad(t, app, source)
		var out []ChopResult
		for i := 0; i < 4; i++ {
			r, err := app.Chop("log", time.Unix(int64(i), 0))
			if err != nil {
				t.Fatalf("chop %d: %v", i, err)
			}
			out = append(out, r)
		}
		return out
	}
	a, b := run(), run()
	for i := range a {
		if a[i].Result != b[i].Result || a[i].Volume != b[i].Volume || a[i].ChipVolume != b[i].ChipVolume {
			t.Errorf("chop %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}
