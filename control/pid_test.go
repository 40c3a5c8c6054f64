package control

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func newTestPID(t *testing.T, cfg PIDConfig, opts ...PIDOption) *PIDController {
	t.Helper()
	pid, err := NewPIDController(cfg, golog.NewTestLogger(t), opts...)
	test.That(t, err, test.ShouldBeNil)
	return pid
}

// dampedPlant is a first order process with a small leak.
func dampedPlant(u, x, dt float64) float64 {
	return x + (u-0.1*x)*dt
}

func TestPIDConfigValidate(t *testing.T) {
	cfg := DefaultPIDConfig(1, 0.1, 0.01)
	test.That(t, cfg.Validate("pid"), test.ShouldBeNil)

	for _, c := range []struct {
		name   string
		mutate func(*PIDConfig)
		substr string
	}{
		{"inverted output", func(c *PIDConfig) { c.OutputMin, c.OutputMax = 1, -1 }, "output_min"},
		{"negative integral limit", func(c *PIDConfig) { c.IntegralLimit = -1 }, "integral_limit"},
		{"nan gain", func(c *PIDConfig) { c.Kp = math.NaN() }, "kp"},
		{"infinite limit", func(c *PIDConfig) { c.OutputMax = math.Inf(1) }, "output_max"},
	} {
		t.Run(c.name, func(t *testing.T) {
			bad := DefaultPIDConfig(1, 0.1, 0.01)
			c.mutate(&bad)
			err := bad.Validate("pid")
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, errors.Is(err, ErrInvalidConfiguration), test.ShouldBeTrue)
			test.That(t, err.Error(), test.ShouldContainSubstring, c.substr)

			_, err = NewPIDController(bad, golog.NewTestLogger(t))
			test.That(t, errors.Is(err, ErrInvalidConfiguration), test.ShouldBeTrue)
		})
	}
}

func TestPIDTerms(t *testing.T) {
	pid := newTestPID(t, DefaultPIDConfig(2, 0.5, 0.1))

	out := pid.ComputeDt(1, 0, 0.1)
	test.That(t, out.Error, test.ShouldEqual, 1)
	test.That(t, out.P, test.ShouldEqual, 2)
	test.That(t, out.I, test.ShouldAlmostEqual, 0.05)
	test.That(t, out.D, test.ShouldEqual, 0)
	test.That(t, out.Value, test.ShouldAlmostEqual, 2.05)
	test.That(t, out.Saturated, test.ShouldBeFalse)

	out = pid.ComputeDt(1, 0.5, 0.1)
	test.That(t, out.P, test.ShouldEqual, 1)
	test.That(t, pid.Integral(), test.ShouldAlmostEqual, 0.15)
	test.That(t, out.I, test.ShouldAlmostEqual, 0.075)
	test.That(t, out.D, test.ShouldAlmostEqual, -0.5)
	test.That(t, out.Value, test.ShouldAlmostEqual, 0.575)
	test.That(t, pid.LastError(), test.ShouldEqual, 0.5)
}

func TestPIDScenarioConverges(t *testing.T) {
	pid := newTestPID(t, DefaultPIDConfig(2.0, 0.1, 0.05))
	const dt = 0.02
	pv := 0.0
	for i := 0; i < 100; i++ {
		out := pid.ComputeDt(1.0, pv, dt)
		pv = dampedPlant(out.Value, pv, dt)
	}
	test.That(t, math.Abs(1.0-pv), test.ShouldBeLessThan, 0.1)
	test.That(t, len(pid.History()), test.ShouldEqual, 100)
}

func TestPIDConvergesForStableGains(t *testing.T) {
	//nolint:gosec
	rnd := rand.New(rand.NewSource(1))
	const dt = 0.01
	for i := 0; i < 20; i++ {
		kp := 1 + rnd.Float64()*4
		ki := 0.5 + rnd.Float64()*0.5
		kd := rnd.Float64() * 0.05
		setpoint := rnd.Float64()*4 - 2
		pid := newTestPID(t, DefaultPIDConfig(kp, ki, kd))
		pv := 0.0
		for j := 0; j < 1000; j++ {
			out := pid.ComputeDt(setpoint, pv, dt)
			pv = dampedPlant(out.Value, pv, dt)
		}
		test.That(t, pv, test.ShouldAlmostEqual, setpoint, 0.1)
	}
}

func TestPIDAntiWindupAndOutputBounds(t *testing.T) {
	//nolint:gosec
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		cfg := PIDConfig{
			Kp:            rnd.Float64() * 10,
			Ki:            rnd.Float64() * 10,
			Kd:            rnd.Float64(),
			OutputMin:     -rnd.Float64() * 5,
			OutputMax:     rnd.Float64() * 5,
			IntegralLimit: rnd.Float64() * 2,
		}
		pid := newTestPID(t, cfg)
		for j := 0; j < 500; j++ {
			sp := rnd.Float64()*200 - 100
			pv := rnd.Float64()*200 - 100
			dt := rnd.Float64() * 0.5
			out := pid.ComputeDt(sp, pv, dt)
			test.That(t, math.Abs(pid.Integral()), test.ShouldBeLessThanOrEqualTo, cfg.IntegralLimit)
			test.That(t, out.Value, test.ShouldBeGreaterThanOrEqualTo, cfg.OutputMin)
			test.That(t, out.Value, test.ShouldBeLessThanOrEqualTo, cfg.OutputMax)
		}
	}
}

func TestPIDSetConfigClampsIntegral(t *testing.T) {
	cfg := DefaultPIDConfig(0, 1, 0)
	cfg.IntegralLimit = 10
	pid := newTestPID(t, cfg)
	for i := 0; i < 20; i++ {
		pid.ComputeDt(100, 0, maxDt)
	}
	test.That(t, pid.Integral(), test.ShouldAlmostEqual, 10)

	cfg.IntegralLimit = 1
	test.That(t, pid.SetConfig(cfg), test.ShouldBeNil)
	test.That(t, pid.Integral(), test.ShouldAlmostEqual, 1)

	for i := 0; i < 20; i++ {
		pid.ComputeDt(-100, 0, maxDt)
	}
	test.That(t, pid.Integral(), test.ShouldAlmostEqual, -1)
	cfg.IntegralLimit = 0.5
	test.That(t, pid.SetConfig(cfg), test.ShouldBeNil)
	test.That(t, pid.Integral(), test.ShouldAlmostEqual, -0.5)

	// an invalid config leaves state alone
	cfg.IntegralLimit = -1
	test.That(t, pid.SetConfig(cfg), test.ShouldNotBeNil)
	test.That(t, pid.Integral(), test.ShouldAlmostEqual, -0.5)
}

func TestPIDSaturation(t *testing.T) {
	cfg := DefaultPIDConfig(100, 0, 0)
	pid := newTestPID(t, cfg)
	out := pid.ComputeDt(1, 0, 0.02)
	test.That(t, out.Saturated, test.ShouldBeTrue)
	test.That(t, out.Value, test.ShouldEqual, cfg.OutputMax)
	out = pid.ComputeDt(-1, 0, 0.02)
	test.That(t, out.Saturated, test.ShouldBeTrue)
	test.That(t, out.Value, test.ShouldEqual, cfg.OutputMin)
}

func TestPIDRejectsNonFiniteInput(t *testing.T) {
	logger, logs := golog.NewObservedTestLogger(t)
	pid, err := NewPIDController(DefaultPIDConfig(1, 1, 0), logger)
	test.That(t, err, test.ShouldBeNil)

	first := pid.ComputeDt(1, 0, 0.02)
	for _, in := range [][2]float64{{math.NaN(), 0}, {1, math.Inf(1)}, {math.Inf(-1), 0}} {
		out := pid.ComputeDt(in[0], in[1], 0.02)
		test.That(t, out.Rejected, test.ShouldBeTrue)
		test.That(t, out.Value, test.ShouldEqual, first.Value)
	}
	test.That(t, len(pid.History()), test.ShouldEqual, 1)
	test.That(t, pid.Integral(), test.ShouldAlmostEqual, 0.02)
	test.That(t, logs.FilterMessageSnippet("non-finite").Len(), test.ShouldEqual, 3)
}

func TestPIDDtClamping(t *testing.T) {
	for _, c := range []struct {
		dt       float64
		expected float64
	}{
		{0, minDt},
		{-1, minDt},
		{math.NaN(), minDt},
		{0.05, 0.05},
		{3, maxDt},
	} {
		test.That(t, clampDt(c.dt), test.ShouldEqual, c.expected)
	}

	pid := newTestPID(t, DefaultPIDConfig(0, 1, 0))
	pid.ComputeDt(1, 0, 10)
	test.That(t, pid.Integral(), test.ShouldAlmostEqual, maxDt)
}

func TestPIDComputeUsesClock(t *testing.T) {
	mock := clock.NewMock()
	pid := newTestPID(t, DefaultPIDConfig(0, 1, 0), WithClock(mock))

	pid.Compute(1, 0)
	test.That(t, pid.Integral(), test.ShouldAlmostEqual, initialDt)

	mock.Add(50 * time.Millisecond)
	pid.Compute(1, 0)
	test.That(t, pid.Integral(), test.ShouldAlmostEqual, initialDt+0.05)

	// a long pause is bounded
	mock.Add(time.Minute)
	pid.Compute(1, 0)
	test.That(t, pid.Integral(), test.ShouldAlmostEqual, initialDt+0.05+maxDt)

	history := pid.History()
	test.That(t, len(history), test.ShouldEqual, 3)
	test.That(t, history[0].Time, test.ShouldEqual, 0)
	test.That(t, history[2].Time, test.ShouldAlmostEqual, 0.05+maxDt)
}

func TestPIDReset(t *testing.T) {
	mock := clock.NewMock()
	pid := newTestPID(t, DefaultPIDConfig(1, 1, 1), WithClock(mock))
	pid.Compute(1, 0)
	mock.Add(10 * time.Millisecond)
	pid.Compute(1, 0.5)
	test.That(t, pid.Integral(), test.ShouldNotEqual, 0)

	pid.Reset()
	test.That(t, pid.Integral(), test.ShouldEqual, 0)
	test.That(t, pid.LastError(), test.ShouldEqual, 0)
	test.That(t, pid.History(), test.ShouldBeEmpty)
	test.That(t, pid.Metrics(), test.ShouldResemble, PerformanceMetrics{})

	// first call after a reset has no derivative kick and uses the initial time step
	out := pid.Compute(1, 0)
	test.That(t, out.D, test.ShouldEqual, 0)
	test.That(t, pid.Integral(), test.ShouldAlmostEqual, initialDt)
}

func TestPIDTune(t *testing.T) {
	pid := newTestPID(t, DefaultPIDConfig(1, 2, 3))
	kp, kd := 5.0, 0.5
	test.That(t, pid.Tune(TuneRequest{Kp: &kp, Kd: &kd}), test.ShouldBeNil)
	cfg := pid.Config()
	test.That(t, cfg.Kp, test.ShouldEqual, 5)
	test.That(t, cfg.Ki, test.ShouldEqual, 2)
	test.That(t, cfg.Kd, test.ShouldEqual, 0.5)

	nan := math.NaN()
	err := pid.Tune(TuneRequest{Ki: &nan})
	test.That(t, errors.Is(err, ErrInvalidConfiguration), test.ShouldBeTrue)
	test.That(t, pid.Config().Ki, test.ShouldEqual, 2)

	replacement := DefaultPIDConfig(0.1, 0, 0)
	test.That(t, pid.SetConfig(replacement), test.ShouldBeNil)
	test.That(t, pid.Config(), test.ShouldResemble, replacement)
	test.That(t, pid.SetConfig(PIDConfig{OutputMin: 1}), test.ShouldNotBeNil)
	test.That(t, pid.Config(), test.ShouldResemble, replacement)
}

func TestHistoryIsBounded(t *testing.T) {
	pid := newTestPID(t, DefaultPIDConfig(1, 0, 0))
	for i := 0; i < historyCapacity+250; i++ {
		pid.ComputeDt(float64(i), 0, 0.01)
	}
	history := pid.History()
	test.That(t, len(history), test.ShouldEqual, historyCapacity)
	test.That(t, history[0].Setpoint, test.ShouldEqual, 250)
	test.That(t, history[len(history)-1].Setpoint, test.ShouldEqual, historyCapacity+249)
	for i := 1; i < len(history); i++ {
		test.That(t, history[i].Time, test.ShouldBeGreaterThan, history[i-1].Time)
	}
}

func TestSampleRing(t *testing.T) {
	r := newSampleRing(3)
	test.That(t, r.samples(), test.ShouldBeEmpty)
	for i := 1; i <= 5; i++ {
		r.push(Sample{Error: float64(i)})
	}
	test.That(t, r.len(), test.ShouldEqual, 3)
	test.That(t, r.samples(), test.ShouldResemble, []Sample{{Error: 3}, {Error: 4}, {Error: 5}})
	r.clear()
	test.That(t, r.len(), test.ShouldEqual, 0)
	r.push(Sample{Error: 9})
	test.That(t, r.samples(), test.ShouldResemble, []Sample{{Error: 9}})
}

func TestComputeMetrics(t *testing.T) {
	test.That(t, ComputeMetrics(nil), test.ShouldResemble, PerformanceMetrics{})

	var history []Sample
	errs := []float64{1, -0.5, 0.3, 0.1}
	for i := 0; i < 16; i++ {
		errs = append(errs, 0.01)
	}
	for i, e := range errs {
		history = append(history, Sample{Time: float64(i) * 0.1, Error: e})
	}
	m := ComputeMetrics(history)
	test.That(t, m.Samples, test.ShouldEqual, 20)
	test.That(t, m.Overshoot, test.ShouldAlmostEqual, 1)
	test.That(t, m.SteadyStateError, test.ShouldAlmostEqual, 0.01)
	test.That(t, m.Settled, test.ShouldBeTrue)
	test.That(t, m.SettlingTime, test.ShouldAlmostEqual, 0.4)
	test.That(t, m.RMSError, test.ShouldAlmostEqual, math.Sqrt((1+0.25+0.09+0.01+16*0.0001)/20))

	// an oscillating response never settles
	history = history[:0]
	for i := 0; i < 50; i++ {
		history = append(history, Sample{Time: float64(i), Error: math.Cos(float64(i) * math.Pi)})
	}
	m = ComputeMetrics(history)
	test.That(t, m.Settled, test.ShouldBeFalse)
	test.That(t, m.SettlingTime, test.ShouldEqual, -1)
	test.That(t, m.Overshoot, test.ShouldAlmostEqual, 1)

	// zero initial error
	m = ComputeMetrics([]Sample{{Error: 0}, {Error: 0.5}})
	test.That(t, m.Overshoot, test.ShouldEqual, 0)
	test.That(t, m.SteadyStateError, test.ShouldAlmostEqual, 0.5)
}

func TestPIDConfigJSONDefaults(t *testing.T) {
	var cfg PIDConfig
	test.That(t, json.Unmarshal([]byte(`{"kp": 2, "ki": 0.1, "output_max": 4}`), &cfg), test.ShouldBeNil)
	test.That(t, cfg, test.ShouldResemble, PIDConfig{
		Kp:            2,
		Ki:            0.1,
		OutputMin:     -defaultOutputLimit,
		OutputMax:     4,
		IntegralLimit: defaultIntegralLimit,
	})

	var axes map[string]PIDConfig
	test.That(t, json.Unmarshal([]byte(`{"x": {"kd": 1}}`), &axes), test.ShouldBeNil)
	test.That(t, axes["x"].IntegralLimit, test.ShouldEqual, defaultIntegralLimit)
	test.That(t, json.Unmarshal([]byte(`{"kp": "fast"}`), &cfg), test.ShouldNotBeNil)
}
