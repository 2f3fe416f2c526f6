// Package scan finds candidate chop positions on an object's surface.
//
// The scanner samples a grid of rows over the object's bounding box. Each
// row is swept inwards from the left and from the right; every sample casts
// a ray from a fixed origin in front of the object and the first surface
// hits are kept. All coordinates are in the object's local frame.
package scan

import (
	"errors"
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

var (
	// ErrNoCollider is returned when there is no collision volume to scan.
	ErrNoCollider = errors.New("scan: no collision volume")
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("scan: invalid config")
)

// Collider is the collision volume the scanner queries, in the object's
// local frame.
type Collider interface {
	Bounds() (min, max v3.Vec)
	Raycast(origin, dir v3.Vec, maxDist float64) (v3.Vec, bool)
}

// Config controls the sampling grid.
type Config struct {
	// VerticalStep is the distance between rows along Y.
	VerticalStep float64 `json:"vertical_step"`
	// HorizontalStep is the distance between samples along X.
	HorizontalStep float64 `json:"horizontal_step"`
	// Margin extends the grid beyond the bounding box on every side.
	Margin float64 `json:"margin"`
	// OriginDistance is how far in front of the box the rays start.
	OriginDistance float64 `json:"origin_distance"`
	// MaxDistance limits ray length. Zero derives it from the bounds.
	MaxDistance float64 `json:"max_distance"`
	// HitsPerRow caps the hits kept per row and direction. Zero means no cap.
	HitsPerRow int `json:"hits_per_row"`
}

// DefaultConfig returns the standard scan settings.
func DefaultConfig() Config {
	return Config{
		VerticalStep:   0.5,
		HorizontalStep: 0.5,
		Margin:         0.1,
		OriginDistance: 0.5,
		HitsPerRow:     1,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case !(c.VerticalStep > 0):
		return fmt.Errorf("%w: vertical step %v must be positive", ErrInvalidConfig, c.VerticalStep)
	case !(c.HorizontalStep > 0):
		return fmt.Errorf("%w: horizontal step %v must be positive", ErrInvalidConfig, c.HorizontalStep)
	case c.Margin < 0:
		return fmt.Errorf("%w: margin %v must not be negative", ErrInvalidConfig, c.Margin)
	case c.OriginDistance < 0:
		return fmt.Errorf("%w: origin distance %v must not be negative", ErrInvalidConfig, c.OriginDistance)
	case c.MaxDistance < 0:
		return fmt.Errorf("%w: max distance %v must not be negative", ErrInvalidConfig, c.MaxDistance)
	case c.HitsPerRow < 0:
		return fmt.Errorf("%w: hits per row %d must not be negative", ErrInvalidConfig, c.HitsPerRow)
	}
	return nil
}

// count returns how many samples lo, lo+step, ... fit in [lo, hi].
func count(lo, hi, step float64) int {
	if hi < lo {
		return 0
	}
	return int(math.Floor((hi-lo)/step+1e-9)) + 1
}

// Scan samples c and returns the surface points found, in row order with
// the left sweep before the right sweep.
func Scan(c Collider, cfg Config) ([]v3.Vec, error) {
	if c == nil {
		return nil, ErrNoCollider
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	min, max := c.Bounds()
	center := min.Add(max).MulScalar(0.5)
	origin := v3.Vec{X: center.X, Y: center.Y, Z: min.Z - cfg.OriginDistance}
	maxDist := cfg.MaxDistance
	if maxDist == 0 {
		maxDist = max.Sub(min).Length() + cfg.OriginDistance + 2*cfg.Margin
	}
	m, h := cfg.Margin, cfg.HorizontalStep

	// cast sweeps one side of a row. Hits that coincide with one already
	// taken in the row are skipped and do not count towards HitsPerRow.
	cast := func(y float64, xs func(i int) float64, n int, taken []v3.Vec) []v3.Vec {
		var hits []v3.Vec
		for i := 0; i < n; i++ {
			sample := v3.Vec{X: xs(i), Y: y, Z: center.Z}
			p, ok := c.Raycast(origin, sample.Sub(origin), maxDist)
			if !ok || coincides(p, taken) || coincides(p, hits) {
				continue
			}
			hits = append(hits, p)
			if cfg.HitsPerRow > 0 && len(hits) >= cfg.HitsPerRow {
				break
			}
		}
		return hits
	}

	var points []v3.Vec
	rows := count(min.Y-m, max.Y+m, cfg.VerticalStep)
	nLeft := count(min.X-m, center.X+m, h)
	nRight := count(center.X-m, max.X+m, h)
	for r := 0; r < rows; r++ {
		y := min.Y - m + float64(r)*cfg.VerticalStep
		left := cast(y, func(i int) float64 { return min.X - m + float64(i)*h }, nLeft, nil)
		right := cast(y, func(i int) float64 { return max.X + m - float64(i)*h }, nRight, left)
		points = append(points, left...)
		points = append(points, right...)
	}
	return points, nil
}

// sameHit is the distance under which two hits are one surface point.
const sameHit = 1e-9

func coincides(p v3.Vec, hits []v3.Vec) bool {
	for _, q := range hits {
		if p.Sub(q).Length() <= sameHit {
			return true
		}
	}
	return false
}
