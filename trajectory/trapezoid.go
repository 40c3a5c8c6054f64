package trajectory

import (
	"math"

	"go.viam.com/navcore/spatialmath"
)

// trapezoid is a symmetric accelerate/cruise/decelerate profile over a distance, before time scaling.
type trapezoid struct {
	distance float64
	acc      float64
	peakVel  float64
	tAcc     float64
	dAcc     float64
	tCruise  float64
	duration float64
}

func newTrapezoid(distance, maxVel, maxAcc float64) trapezoid {
	tr := trapezoid{distance: distance, acc: maxAcc}
	tr.tAcc = maxVel / maxAcc
	tr.dAcc = 0.5 * maxAcc * tr.tAcc * tr.tAcc
	if distance < 2*tr.dAcc {
		// triangular: the limit velocity is never reached
		tr.tAcc = math.Sqrt(distance / maxAcc)
		tr.dAcc = distance / 2
		tr.peakVel = maxAcc * tr.tAcc
	} else {
		tr.peakVel = maxVel
		tr.tCruise = (distance - 2*tr.dAcc) / maxVel
	}
	tr.duration = 2*tr.tAcc + tr.tCruise
	return tr
}

// distanceAt returns the distance covered u seconds into the unscaled profile.
func (tr trapezoid) distanceAt(u float64) float64 {
	switch {
	case u <= 0:
		return 0
	case u <= tr.tAcc:
		return 0.5 * tr.acc * u * u
	case u <= tr.tAcc+tr.tCruise:
		return tr.dAcc + tr.peakVel*(u-tr.tAcc)
	case u < tr.duration:
		r := tr.duration - u
		return tr.distance - 0.5*tr.acc*r*r
	default:
		return tr.distance
	}
}

// velocityAt returns the speed u seconds into the unscaled profile.
func (tr trapezoid) velocityAt(u float64) float64 {
	switch {
	case u <= 0:
		return 0
	case u <= tr.tAcc:
		return tr.acc * u
	case u <= tr.tAcc+tr.tCruise:
		return tr.peakVel
	case u < tr.duration:
		return tr.acc * (tr.duration - u)
	default:
		return 0
	}
}

// timeAt inverts distanceAt.
func (tr trapezoid) timeAt(d float64) float64 {
	switch {
	case d <= 0:
		return 0
	case d <= tr.dAcc:
		return math.Sqrt(2 * d / tr.acc)
	case d <= tr.distance-tr.dAcc:
		return tr.tAcc + (d-tr.dAcc)/tr.peakVel
	case d < tr.distance:
		return tr.duration - math.Sqrt(2*(tr.distance-d)/tr.acc)
	default:
		return tr.duration
	}
}

// Trapezoidal samples path under a trapezoidal speed profile stretched to last totalTime seconds. The profile
// is never compressed: when totalTime is shorter than the fastest feasible traversal the fastest traversal is
// used so that speed stays within MaxVelocity.
func (g *Generator) Trapezoidal(path *spatialmath.Path, totalTime float64) ([]Point, error) {
	if err := checkRequest(path, totalTime); err != nil {
		return nil, err
	}
	if path.IsDegenerate() {
		return stationary(path), nil
	}

	tr := newTrapezoid(path.TotalLength(), g.cfg.MaxVelocity, g.cfg.MaxAcceleration)
	scale := totalTime / tr.duration
	if scale < 1 {
		g.logger.Warnw("requested duration is shorter than the fastest feasible traversal, using the fastest",
			"requested", totalTime, "minimum", tr.duration)
		scale = 1
	}

	traj := make([]Point, 0, samplesFor(scale*tr.duration, g.cfg.SampleRate, 2)+path.Len())
	for i := 0; i < path.Len()-1; i++ {
		segLen := path.SegmentLength(i)
		if segLen <= 0 {
			continue
		}
		dStart := path.DistanceAt(i)
		dEnd := path.DistanceAt(i + 1)
		tStart := scale * tr.timeAt(dStart)
		tEnd := scale * tr.timeAt(dEnd)
		n := samplesFor(tEnd-tStart, g.cfg.SampleRate, 1)

		first := 1
		if len(traj) == 0 {
			first = 0
		}
		for j := first; j <= n; j++ {
			t := tStart + float64(j)/float64(n)*(tEnd-tStart)
			if j == n {
				t = tEnd
			}
			u := t / scale
			d := math.Min(math.Max(tr.distanceAt(u), dStart), dEnd)
			pos := path.PointAtDistance(d)
			heading := path.DirectionAtDistance(d)
			speed := tr.velocityAt(u) / scale
			traj = appendSample(traj, Point{
				X:     pos.X,
				Y:     pos.Y,
				Theta: heading,
				Vx:    speed * math.Cos(heading),
				Vy:    speed * math.Sin(heading),
				Time:  t,
			})
		}
	}
	fillOmega(traj)
	return traj, nil
}

// fillOmega sets each sample's angular velocity from the heading change since the previous sample.
func fillOmega(traj []Point) {
	for k := 1; k < len(traj); k++ {
		dt := traj[k].Time - traj[k-1].Time
		if dt <= 0 {
			continue
		}
		traj[k].Omega = spatialmath.NormalizeAngle(traj[k].Theta-traj[k-1].Theta) / dt
	}
}
