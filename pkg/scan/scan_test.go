package scan

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/chazu/notch/pkg/collide"
	"github.com/chazu/notch/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func boxCollider(t *testing.T, size v3.Vec) *collide.MeshCollider {
	t.Helper()
	c, err := collide.NewMeshCollider(kernel.NewBoxMesh(size, "bark"))
	if err != nil {
		t.Fatalf("NewMeshCollider: %v", err)
	}
	return c
}

// missCollider has bounds but never reports a hit.
type missCollider struct{ calls int }

func (m *missCollider) Bounds() (min, max v3.Vec) {
	return v3.Vec{X: -1, Y: -1, Z: -1}, v3.Vec{X: 1, Y: 1, Z: 1}
}

func (m *missCollider) Raycast(origin, dir v3.Vec, maxDist float64) (v3.Vec, bool) {
	m.calls++
	return v3.Vec{}, false
}

// postCollider is a post thinner than a sample step: every ray in a row
// lands on the same point of its front face.
type postCollider struct{}

func (postCollider) Bounds() (min, max v3.Vec) {
	return v3.Vec{X: -1, Y: -1, Z: -1}, v3.Vec{X: 1, Y: 1, Z: 1}
}

func (postCollider) Raycast(origin, dir v3.Vec, maxDist float64) (v3.Vec, bool) {
	return v3.Vec{Y: origin.Y + dir.Y, Z: -1}, true
}

func TestScanNarrowColliderNoDuplicates(t *testing.T) {
	tests := []struct {
		name       string
		hitsPerRow int
	}{
		{"one", 1},
		{"two", 2},
		{"unlimited", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.HitsPerRow = tt.hitsPerRow
			points, err := Scan(postCollider{}, cfg)
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			// One point per row; rows y=-1.1..0.9.
			if len(points) != 5 {
				t.Fatalf("got %d points, want 5: %v", len(points), points)
			}
			seen := make(map[v3.Vec]bool)
			for _, p := range points {
				if seen[p] {
					t.Errorf("point %v reported twice", p)
				}
				seen[p] = true
			}
		})
	}
}

func TestScanBox(t *testing.T) {
	c := boxCollider(t, v3.Vec{X: 2, Y: 2, Z: 1})
	points, err := Scan(c, DefaultConfig())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	// Five rows from y=-1.1 to y=0.9, one hit per row and direction.
	if len(points) != 10 {
		t.Fatalf("got %d points, want 10: %v", len(points), points)
	}
	for i, p := range points {
		if math.Abs(p.Z+0.5) > 1e-9 {
			t.Errorf("point %d = %v not on the front face", i, p)
		}
		wantX := -0.55
		if i%2 == 1 {
			wantX = 0.55
		}
		if math.Abs(p.X-wantX) > 1e-9 {
			t.Errorf("point %d x = %f, want %f", i, p.X, wantX)
		}
	}

	again, err := Scan(c, DefaultConfig())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	for i := range points {
		if points[i] != again[i] {
			t.Fatalf("scan is not deterministic at %d: %v vs %v", i, points[i], again[i])
		}
	}
}

func TestScanHitsPerRow(t *testing.T) {
	c := boxCollider(t, v3.Vec{X: 2, Y: 2, Z: 1})
	tests := []struct {
		name       string
		hitsPerRow int
		want       int
	}{
		{"one", 1, 10},
		{"two", 2, 20},
		{"unlimited", 0, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.HitsPerRow = tt.hitsPerRow
			points, err := Scan(c, cfg)
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			if len(points) != tt.want {
				t.Errorf("got %d points, want %d", len(points), tt.want)
			}
		})
	}
}

func TestScanMisses(t *testing.T) {
	m := &missCollider{}
	points, err := Scan(m, DefaultConfig())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(points) != 0 {
		t.Errorf("got %d points, want 0", len(points))
	}
	// Rows y=-1.1..1.1 and 3 samples per sweep each way.
	if want := 5 * (3 + 3); m.calls != want {
		t.Errorf("raycasts = %d, want %d", m.calls, want)
	}
}

func TestScanErrors(t *testing.T) {
	if _, err := Scan(nil, DefaultConfig()); !errors.Is(err, ErrNoCollider) {
		t.Errorf("nil collider err = %v, want ErrNoCollider", err)
	}
	cfg := DefaultConfig()
	cfg.VerticalStep = 0
	if _, err := Scan(&missCollider{}, cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"zero vertical step", func(c *Config) { c.VerticalStep = 0 }, true},
		{"negative horizontal step", func(c *Config) { c.HorizontalStep = -1 }, true},
		{"NaN step", func(c *Config) { c.HorizontalStep = math.NaN() }, true},
		{"negative margin", func(c *Config) { c.Margin = -0.1 }, true},
		{"negative origin distance", func(c *Config) { c.OriginDistance = -1 }, true},
		{"negative max distance", func(c *Config) { c.MaxDistance = -1 }, true},
		{"negative hits", func(c *Config) { c.HitsPerRow = -1 }, true},
		{"zero margin", func(c *Config) { c.Margin = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCount(t *testing.T) {
	tests := []struct {
		lo, hi, step float64
		want         int
	}{
		{-1.1, 1.1, 0.5, 5},
		{0, 1, 0.5, 3},
		{0, 0.99, 0.5, 2},
		{0, 0, 0.5, 1},
		{1, 0, 0.5, 0},
		// 0.1+0.2 style rounding must not drop the last sample.
		{0, 0.3, 0.1, 4},
	}
	for _, tt := range tests {
		if got := count(tt.lo, tt.hi, tt.step); got != tt.want {
			t.Errorf("count(%v, %v, %v) = %d, want %d", tt.lo, tt.hi, tt.step, got, tt.want)
		}
	}
}

// --- WeakPointSet ---

func TestWeakPointSet(t *testing.T) {
	src := []v3.Vec{{X: 1}, {X: 2}, {X: 3}, {X: 4}}
	s := NewWeakPointSet(src)
	src[0] = v3.Vec{X: 99}
	if s.At(0) != (v3.Vec{X: 1}) {
		t.Fatal("set aliases the input slice")
	}

	p, ok := s.Remove(1)
	if !ok || p != (v3.Vec{X: 2}) {
		t.Fatalf("Remove(1) = %v, %v", p, ok)
	}
	if s.Len() != 3 || s.At(1) != (v3.Vec{X: 3}) {
		t.Errorf("after Remove: %v", s.Points())
	}
	if _, ok := s.Remove(5); ok {
		t.Error("Remove out of range succeeded")
	}
	if _, ok := s.Remove(-1); ok {
		t.Error("Remove(-1) succeeded")
	}

	c := s.Clone()
	c.Remove(0)
	if s.Len() != 3 {
		t.Error("Clone shares storage")
	}

	dropped := s.Filter(func(p v3.Vec) bool { return p.X > 1.5 })
	if dropped != 1 || s.Len() != 2 {
		t.Errorf("Filter dropped %d, left %v", dropped, s.Points())
	}
}

func TestWeakPointSetPick(t *testing.T) {
	empty := NewWeakPointSet(nil)
	if _, ok := empty.Pick(rand.New(rand.NewPCG(1, 2))); ok {
		t.Error("Pick on empty set succeeded")
	}

	s := NewWeakPointSet([]v3.Vec{{X: 1}, {X: 2}, {X: 3}})
	a := rand.New(rand.NewPCG(7, 7))
	b := rand.New(rand.NewPCG(7, 7))
	seen := make(map[int]bool)
	for i := 0; i < 100; i++ {
		x, ok := s.Pick(a)
		y, _ := s.Pick(b)
		if !ok || x != y {
			t.Fatalf("Pick not deterministic: %d vs %d", x, y)
		}
		if x < 0 || x >= s.Len() {
			t.Fatalf("Pick = %d out of range", x)
		}
		seen[x] = true
	}
	if len(seen) != 3 {
		t.Errorf("Pick covered %d of 3 indices", len(seen))
	}
}
