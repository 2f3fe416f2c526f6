package kernel

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// RayBox clips the ray origin + t*dir against an axis-aligned box and
// returns the parameter interval inside it. ok is false when the ray
// misses the box or the box lies entirely behind the origin.
func RayBox(origin, dir, min, max v3.Vec) (tmin, tmax float64, ok bool) {
	tmin, tmax = math.Inf(-1), math.Inf(1)
	o := [3]float64{origin.X, origin.Y, origin.Z}
	d := [3]float64{dir.X, dir.Y, dir.Z}
	lo := [3]float64{min.X, min.Y, min.Z}
	hi := [3]float64{max.X, max.Y, max.Z}
	for i := 0; i < 3; i++ {
		if d[i] == 0 {
			if o[i] < lo[i] || o[i] > hi[i] {
				return 0, 0, false
			}
			continue
		}
		t0 := (lo[i] - o[i]) / d[i]
		t1 := (hi[i] - o[i]) / d[i]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = math.Max(tmin, t0)
		tmax = math.Min(tmax, t1)
		if tmin > tmax {
			return 0, 0, false
		}
	}
	if tmax < 0 {
		return 0, 0, false
	}
	return math.Max(tmin, 0), tmax, true
}
