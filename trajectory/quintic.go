package trajectory

import (
	"go.viam.com/navcore/spatialmath"
)

// quintic evaluates s(τ) = 10τ³ − 15τ⁴ + 6τ⁵ and its first two derivatives with respect to τ.
// s has zero velocity and acceleration at τ=0 and τ=1.
func quintic(tau float64) (s, ds, dds float64) {
	t2 := tau * tau
	t3 := t2 * tau
	t4 := t3 * tau
	t5 := t4 * tau
	s = 10*t3 - 15*t4 + 6*t5
	ds = 30*t2 - 60*t3 + 30*t4
	dds = 60*tau - 180*t2 + 120*t3
	return s, ds, dds
}

// Quintic samples path so that the robot comes to rest at every waypoint. Each segment receives a share of
// totalTime proportional to its length and is interpolated with a quintic polynomial.
func (g *Generator) Quintic(path *spatialmath.Path, totalTime float64) ([]Point, error) {
	if err := checkRequest(path, totalTime); err != nil {
		return nil, err
	}
	if path.IsDegenerate() {
		return stationary(path), nil
	}

	traj := make([]Point, 0, samplesFor(totalTime, g.cfg.QuinticSampleRate, minQuinticSamples)+path.Len())
	elapsed := 0.
	for i := 0; i < path.Len()-1; i++ {
		segLen := path.SegmentLength(i)
		if segLen <= 0 {
			continue
		}
		segTime := segLen / path.TotalLength() * totalTime
		from, to := path.Point(i), path.Point(i+1)
		delta := to.Sub(from)
		heading := spatialmath.Heading(from, to)
		n := samplesFor(segTime, g.cfg.QuinticSampleRate, minQuinticSamples)

		first := 1
		if len(traj) == 0 {
			first = 0
		}
		for j := first; j <= n; j++ {
			tau := float64(j) / float64(n)
			s, ds, dds := quintic(tau)
			vel := ds / segTime
			acc := dds / (segTime * segTime)
			traj = appendSample(traj, Point{
				X:     from.X + s*delta.X,
				Y:     from.Y + s*delta.Y,
				Theta: heading,
				Vx:    vel * delta.X,
				Vy:    vel * delta.Y,
				Ax:    acc * delta.X,
				Ay:    acc * delta.Y,
				Time:  elapsed + tau*segTime,
			})
		}
		elapsed += segTime
	}
	fillOmega(traj)
	return traj, nil
}
