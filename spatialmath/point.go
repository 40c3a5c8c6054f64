// Package spatialmath defines the planar geometry shared by the planners, trajectory shaping and control code.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r2"
)

// Default distance below which two points are considered equal.
const defaultEpsilon = 1e-9

// Distance returns the Euclidean distance between two points.
func Distance(a, b r2.Point) float64 {
	return b.Sub(a).Norm()
}

// Heading returns the angle, in radians, of the vector from `from` to `to`.
func Heading(from, to r2.Point) float64 {
	d := to.Sub(from)
	return math.Atan2(d.Y, d.X)
}

// Lerp linearly interpolates between a and b. t=0 yields a and t=1 yields b.
func Lerp(a, b r2.Point, t float64) r2.Point {
	return a.Add(b.Sub(a).Mul(t))
}

// PointAlmostEqual reports whether two points lie within a small epsilon of each other.
func PointAlmostEqual(a, b r2.Point) bool {
	return PointAlmostEqualEps(a, b, defaultEpsilon)
}

// PointAlmostEqualEps reports whether two points lie within eps of each other.
func PointAlmostEqualEps(a, b r2.Point, eps float64) bool {
	return Distance(a, b) <= eps
}

// NormalizeAngle wraps an angle into (-pi, pi].
func NormalizeAngle(theta float64) float64 {
	theta = math.Mod(theta, 2*math.Pi)
	if theta <= -math.Pi {
		theta += 2 * math.Pi
	} else if theta > math.Pi {
		theta -= 2 * math.Pi
	}
	return theta
}

// IsFinite reports whether both coordinates of p are finite.
func IsFinite(p r2.Point) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}
