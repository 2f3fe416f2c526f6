package chop

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/chazu/notch/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/go-gl/mathgl/mgl64"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("chop: invalid config")

// Config tunes the notch shape and the chip.
type Config struct {
	// MinTilt and MaxTilt bound the random tilt of the notch axis, in
	// degrees. The sign of the tilt is random too.
	MinTilt float64 `json:"min_tilt"`
	MaxTilt float64 `json:"max_tilt"`
	// Spread is the half-angle of the notch, in degrees.
	Spread float64 `json:"spread"`
	// Inset is how far behind the weak point the two planes meet.
	Inset float64 `json:"inset"`
	// CutForce is the magnitude of the impulse given to a chip.
	CutForce float64 `json:"cut_force"`
	// ChipLifetime is how long a chip stays in the world.
	ChipLifetime time.Duration `json:"chip_lifetime"`
	// Density converts hull volume to body mass.
	Density float64 `json:"density"`
	// Revalidate drops carried weak points that fall inside the removed
	// wedge.
	Revalidate bool `json:"revalidate"`
}

// DefaultConfig returns the standard chop tuning.
func DefaultConfig() Config {
	return Config{
		MinTilt:      5,
		MaxTilt:      15,
		Spread:       15,
		Inset:        0.15,
		CutForce:     2,
		ChipLifetime: 3 * time.Second,
		Density:      1,
		Revalidate:   true,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case !(c.MinTilt >= 0) || !(c.MaxTilt >= c.MinTilt) || c.MaxTilt >= 90:
		return fmt.Errorf("%w: tilt range [%v, %v] must satisfy 0 <= min <= max < 90", ErrInvalidConfig, c.MinTilt, c.MaxTilt)
	case !(c.Spread > 0) || c.Spread >= 90:
		return fmt.Errorf("%w: spread %v must be in (0, 90)", ErrInvalidConfig, c.Spread)
	case !(c.Inset > 0):
		return fmt.Errorf("%w: inset %v must be positive", ErrInvalidConfig, c.Inset)
	case !(c.CutForce >= 0):
		return fmt.Errorf("%w: cut force %v must not be negative", ErrInvalidConfig, c.CutForce)
	case c.ChipLifetime < 0:
		return fmt.Errorf("%w: chip lifetime %v must not be negative", ErrInvalidConfig, c.ChipLifetime)
	case !(c.Density > 0):
		return fmt.Errorf("%w: density %v must be positive", ErrInvalidConfig, c.Density)
	}
	return nil
}

// Notch is the wedge removed around one weak point, in the entity's local
// frame. The chip is the region on the positive side of both planes.
type Notch struct {
	Point  v3.Vec
	Corner v3.Vec
	// Tilt is the signed rotation of the notch axis about Z, in degrees.
	Tilt   float64
	Chords [2]kernel.Segment
	Planes [2]kernel.Plane
}

func rotateZ(v v3.Vec, degrees float64) v3.Vec {
	r := mgl64.Rotate3DZ(mgl64.DegToRad(degrees)).Mul3x1(mgl64.Vec3{v.X, v.Y, v.Z})
	return v3.Vec{X: r[0], Y: r[1], Z: r[2]}
}

// DeriveNotch builds the two cutting planes for weak point p. The corner
// sits Inset inward from p along the X axis turned by tilt; each chord runs
// from the corner back past p turned by ±Spread, and each plane contains
// its chord and the Z axis.
func DeriveNotch(p v3.Vec, tilt float64, cfg Config) (Notch, error) {
	inward := v3.Vec{X: 1}
	if p.X > 0 {
		inward = v3.Vec{X: -1}
	}
	corner := p.Add(rotateZ(inward, tilt).MulScalar(cfg.Inset))
	back := p.Sub(corner)

	d := [2]v3.Vec{rotateZ(back, cfg.Spread), rotateZ(back, -cfg.Spread)}
	n := Notch{Point: p, Corner: corner, Tilt: tilt}
	z := v3.Vec{Z: 1}
	for i := range d {
		n.Chords[i] = kernel.Segment{corner, corner.Add(d[i])}
		pl, err := kernel.NewPlane(corner.Add(d[i].MulScalar(0.5)), d[i].Cross(z))
		if err != nil {
			return Notch{}, fmt.Errorf("chop: notch plane %d at %v: %w", i+1, p, err)
		}
		// Each plane faces the other chord so the wedge between them is
		// the positive side of both.
		if pl.Normal.Dot(d[1-i]) < 0 {
			pl = pl.Flip()
		}
		n.Planes[i] = pl
	}
	return n, nil
}

// Contains reports whether x lies strictly inside the wedge.
func (n Notch) Contains(x v3.Vec) bool {
	return n.Planes[0].Distance(x) > kernel.PlaneEpsilon && n.Planes[1].Distance(x) > kernel.PlaneEpsilon
}

// Axis returns the unit direction from the corner through the weak point.
func (n Notch) Axis() v3.Vec {
	a := n.Point.Sub(n.Corner)
	if l := a.Length(); l > 0 && !math.IsNaN(l) {
		return a.DivScalar(l)
	}
	return v3.Vec{}
}
