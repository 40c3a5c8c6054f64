package trajectory

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/navcore/spatialmath"
)

const eps = 1e-6

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := NewGenerator(DefaultGeneratorConfig(), golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return g
}

func randomPath(rnd *rand.Rand, n int) *spatialmath.Path {
	pts := make([]r2.Point, n)
	for i := range pts {
		pts[i] = r2.Point{X: rnd.Float64()*10 - 5, Y: rnd.Float64()*10 - 5}
	}
	return spatialmath.NewPath(pts)
}

func checkTimeIncreasing(t *testing.T, traj []Point) {
	t.Helper()
	for i := 1; i < len(traj); i++ {
		test.That(t, traj[i].Time, test.ShouldBeGreaterThan, traj[i-1].Time)
	}
}

func TestNewGeneratorValidation(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cfg := DefaultGeneratorConfig()
	cfg.MaxVelocity = 0
	cfg.SampleRate = math.Inf(1)
	_, err := NewGenerator(cfg, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrInvalidConfiguration), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "max_velocity")
	test.That(t, err.Error(), test.ShouldContainSubstring, "sample_rate_hz")

	cfg = DefaultGeneratorConfig()
	cfg.MaxAcceleration = math.NaN()
	_, err = NewGenerator(cfg, logger)
	test.That(t, errors.Is(err, ErrInvalidConfiguration), test.ShouldBeTrue)
}

func TestInvalidRequests(t *testing.T) {
	g := newTestGenerator(t)
	path := spatialmath.NewPath([]r2.Point{{X: 0, Y: 0}, {X: 1, Y: 0}})
	for _, profile := range []Profile{TrapezoidalProfile, QuinticProfile} {
		_, err := g.Generate(profile, path, 0)
		test.That(t, errors.Is(err, ErrInvalidConfiguration), test.ShouldBeTrue)
		_, err = g.Generate(profile, path, -3)
		test.That(t, errors.Is(err, ErrInvalidConfiguration), test.ShouldBeTrue)
		_, err = g.Generate(profile, spatialmath.NewPath(nil), 1)
		test.That(t, errors.Is(err, ErrInvalidConfiguration), test.ShouldBeTrue)
		_, err = g.Generate(profile, nil, 1)
		test.That(t, errors.Is(err, ErrInvalidConfiguration), test.ShouldBeTrue)
	}
	_, err := g.Generate(Profile(9), path, 1)
	test.That(t, errors.Is(err, ErrInvalidConfiguration), test.ShouldBeTrue)
}

func TestZeroLengthPath(t *testing.T) {
	g := newTestGenerator(t)
	for _, path := range []*spatialmath.Path{
		spatialmath.NewPath([]r2.Point{{X: 1, Y: 1}, {X: 1, Y: 1}}),
		spatialmath.NewPath([]r2.Point{{X: 1, Y: 1}}),
	} {
		for _, profile := range []Profile{TrapezoidalProfile, QuinticProfile} {
			traj, err := g.Generate(profile, path, 1.0)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, traj, test.ShouldResemble, []Point{{X: 1, Y: 1}})
		}
	}
}

func TestTrapezoidalStraightLine(t *testing.T) {
	g := newTestGenerator(t)
	path := spatialmath.NewPath([]r2.Point{{X: 0, Y: 0}, {X: 4, Y: 0}})

	// fastest traversal of 4 units at v=1, a=2 is 4.5s
	traj, err := g.Trapezoidal(path, 4.5)
	test.That(t, err, test.ShouldBeNil)
	checkTimeIncreasing(t, traj)

	first, last := traj[0], traj[len(traj)-1]
	test.That(t, first.Time, test.ShouldEqual, 0)
	test.That(t, first.Speed(), test.ShouldAlmostEqual, 0)
	test.That(t, last.Time, test.ShouldAlmostEqual, 4.5)
	test.That(t, last.Speed(), test.ShouldAlmostEqual, 0)
	test.That(t, last.X, test.ShouldAlmostEqual, 4)
	test.That(t, last.Y, test.ShouldAlmostEqual, 0)
	test.That(t, MaxSpeed(traj), test.ShouldAlmostEqual, 1.0)

	for i := 1; i < len(traj); i++ {
		test.That(t, traj[i].Time-traj[i-1].Time, test.ShouldBeLessThanOrEqualTo, 1/defaultSampleRate+eps)
		test.That(t, traj[i].X, test.ShouldBeGreaterThanOrEqualTo, traj[i-1].X)
		test.That(t, traj[i].Theta, test.ShouldEqual, 0)
		test.That(t, traj[i].Omega, test.ShouldEqual, 0)
	}
}

func TestTrapezoidalStretchesToRequestedTime(t *testing.T) {
	g := newTestGenerator(t)
	path := spatialmath.NewPath([]r2.Point{{X: 0, Y: 0}, {X: 4, Y: 0}})
	traj, err := g.Trapezoidal(path, 9)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, Duration(traj), test.ShouldAlmostEqual, 9)
	test.That(t, MaxSpeed(traj), test.ShouldAlmostEqual, 0.5)
}

func TestTrapezoidalInfeasibleTime(t *testing.T) {
	logger, logs := golog.NewObservedTestLogger(t)
	g, err := NewGenerator(DefaultGeneratorConfig(), logger)
	test.That(t, err, test.ShouldBeNil)

	path := spatialmath.NewPath([]r2.Point{{X: 0, Y: 0}, {X: 4, Y: 0}})
	traj, err := g.Trapezoidal(path, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, Duration(traj), test.ShouldAlmostEqual, 4.5)
	test.That(t, MaxSpeed(traj), test.ShouldBeLessThanOrEqualTo, 1+eps)
	test.That(t, logs.FilterMessageSnippet("shorter than the fastest").Len(), test.ShouldEqual, 1)
}

func TestTrapezoidalTriangular(t *testing.T) {
	g := newTestGenerator(t)
	// too short to reach max velocity: peak is sqrt(a*d) = sqrt(0.4)
	path := spatialmath.NewPath([]r2.Point{{X: 0, Y: 0}, {X: 0, Y: 0.2}})
	traj, err := g.Trapezoidal(path, 0.1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, Duration(traj), test.ShouldAlmostEqual, 2*math.Sqrt(0.1))
	test.That(t, MaxSpeed(traj), test.ShouldBeLessThanOrEqualTo, math.Sqrt(0.4)+eps)
	test.That(t, traj[len(traj)-1].Y, test.ShouldAlmostEqual, 0.2)
	test.That(t, traj[len(traj)/2].Theta, test.ShouldAlmostEqual, math.Pi/2)
}

func TestTrapezoidalCorner(t *testing.T) {
	g := newTestGenerator(t)
	path := spatialmath.NewPath([]r2.Point{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}})
	traj, err := g.Trapezoidal(path, 6)
	test.That(t, err, test.ShouldBeNil)
	checkTimeIncreasing(t, traj)

	turned := false
	for _, p := range traj {
		if p.Omega > 0 {
			turned = true
		}
		test.That(t, p.Omega, test.ShouldBeGreaterThanOrEqualTo, 0)
	}
	test.That(t, turned, test.ShouldBeTrue)
	last := traj[len(traj)-1]
	test.That(t, last.X, test.ShouldAlmostEqual, 2)
	test.That(t, last.Y, test.ShouldAlmostEqual, 2)
	test.That(t, last.Theta, test.ShouldAlmostEqual, math.Pi/2)
}

func TestTrapezoidalSpeedBound(t *testing.T) {
	g := newTestGenerator(t)
	//nolint:gosec
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 25; i++ {
		path := randomPath(rnd, 2+rnd.Intn(5))
		totalTime := 0.1 + rnd.Float64()*20
		traj, err := g.Trapezoidal(path, totalTime)
		test.That(t, err, test.ShouldBeNil)
		checkTimeIncreasing(t, traj)
		test.That(t, MaxSpeed(traj), test.ShouldBeLessThanOrEqualTo, g.Config().MaxVelocity+eps)
		test.That(t, Duration(traj), test.ShouldBeGreaterThanOrEqualTo, totalTime-eps)

		last := traj[len(traj)-1]
		test.That(t, spatialmath.PointAlmostEqualEps(r2.Point{X: last.X, Y: last.Y}, path.End(), eps), test.ShouldBeTrue)
	}
}

func TestQuinticBoundaries(t *testing.T) {
	g := newTestGenerator(t)
	path := spatialmath.NewPath([]r2.Point{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 1}})
	traj, err := g.Quintic(path, 4)
	test.That(t, err, test.ShouldBeNil)
	checkTimeIncreasing(t, traj)

	first, last := traj[0], traj[len(traj)-1]
	test.That(t, first.Speed(), test.ShouldAlmostEqual, 0)
	test.That(t, last.Speed(), test.ShouldAlmostEqual, 0)
	test.That(t, math.Hypot(last.Ax, last.Ay), test.ShouldAlmostEqual, 0)
	test.That(t, last.Time, test.ShouldAlmostEqual, 4)
	test.That(t, last.X, test.ShouldAlmostEqual, 3)
	test.That(t, last.Y, test.ShouldAlmostEqual, 1)

	// at rest on the interior waypoint, reached after 3/4 of the time
	var corner Point
	for _, p := range traj {
		if math.Abs(p.Time-3) < 1e-9 {
			corner = p
		}
	}
	test.That(t, corner.X, test.ShouldAlmostEqual, 3)
	test.That(t, corner.Speed(), test.ShouldAlmostEqual, 0)

	// peak speed of a quintic segment is 1.875 * length / time
	test.That(t, MaxSpeed(traj), test.ShouldAlmostEqual, 1.875, 1e-3)

	// the heading turns once, at the interior waypoint
	turns := 0
	for i, p := range traj {
		if p.Omega != 0 {
			turns++
			test.That(t, p.Omega, test.ShouldBeGreaterThan, 0)
			test.That(t, p.Omega*(p.Time-traj[i-1].Time), test.ShouldAlmostEqual, math.Pi/2)
		}
	}
	test.That(t, turns, test.ShouldEqual, 1)
}

func TestQuinticSampling(t *testing.T) {
	g := newTestGenerator(t)

	// short segments still get at least the minimum number of samples
	traj, err := g.Quintic(spatialmath.NewPath([]r2.Point{{X: 0, Y: 0}, {X: 0.01, Y: 0}}), 0.01)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(traj), test.ShouldEqual, minQuinticSamples+1)

	traj, err = g.Quintic(spatialmath.NewPath([]r2.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}}), 2)
	test.That(t, err, test.ShouldBeNil)
	checkTimeIncreasing(t, traj)
	test.That(t, len(traj), test.ShouldEqual, 201)
	for _, p := range traj {
		test.That(t, p.Theta, test.ShouldEqual, 0)
	}
}

func TestQuinticPolynomial(t *testing.T) {
	s, ds, dds := quintic(0)
	test.That(t, []float64{s, ds, dds}, test.ShouldResemble, []float64{0, 0, 0})
	s, ds, dds = quintic(1)
	test.That(t, s, test.ShouldAlmostEqual, 1)
	test.That(t, ds, test.ShouldAlmostEqual, 0)
	test.That(t, dds, test.ShouldAlmostEqual, 0)
	s, ds, _ = quintic(0.5)
	test.That(t, s, test.ShouldAlmostEqual, 0.5)
	test.That(t, ds, test.ShouldAlmostEqual, 1.875)
}

func TestProfileText(t *testing.T) {
	var holder struct {
		Profile Profile `json:"profile"`
	}
	test.That(t, json.Unmarshal([]byte(`{"profile": "quintic"}`), &holder), test.ShouldBeNil)
	test.That(t, holder.Profile, test.ShouldEqual, QuinticProfile)
	out, err := json.Marshal(holder)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldEqual, `{"profile":"quintic"}`)

	_, err = ParseProfile("jerk")
	test.That(t, errors.Is(err, ErrInvalidConfiguration), test.ShouldBeTrue)
	p, err := ParseProfile("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p, test.ShouldEqual, TrapezoidalProfile)
}
