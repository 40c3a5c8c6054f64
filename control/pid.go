package control

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"go.uber.org/atomic"
)

// bounds applied to every time step.
const (
	minDt     = 1e-6
	maxDt     = 0.1
	initialDt = 0.02
)

// Output is the result of one controller step.
type Output struct {
	Value float64 `json:"value"`
	// Saturated is true when the unclamped output fell outside [OutputMin, OutputMax].
	Saturated bool    `json:"saturated"`
	P         float64 `json:"p"`
	I         float64 `json:"i"`
	D         float64 `json:"d"`
	Error     float64 `json:"error"`
	// Rejected is true when the inputs were not finite and Value repeats the previous output.
	Rejected bool `json:"rejected"`
}

// PIDOption configures optional PIDController behavior.
type PIDOption func(*PIDController)

// WithClock sets the clock Compute uses to measure time between calls.
func WithClock(c clock.Clock) PIDOption {
	return func(pid *PIDController) {
		pid.clock = c
	}
}

// PIDController is a discrete PID controller with integral anti-windup, clamped output and a bounded history.
// Gains may be swapped while another goroutine is computing.
type PIDController struct {
	cfg    atomic.Pointer[PIDConfig]
	clock  clock.Clock
	logger golog.Logger

	mu         sync.Mutex
	integral   float64
	lastError  float64
	lastTime   time.Time
	lastOutput Output
	started    bool
	elapsed    float64
	history    *sampleRing
}

// NewPIDController returns a controller for cfg.
func NewPIDController(cfg PIDConfig, logger golog.Logger, opts ...PIDOption) (*PIDController, error) {
	if err := cfg.Validate("pid"); err != nil {
		return nil, err
	}
	pid := &PIDController{
		clock:   clock.New(),
		logger:  logger,
		history: newSampleRing(historyCapacity),
	}
	pid.cfg.Store(&cfg)
	for _, opt := range opts {
		opt(pid)
	}
	return pid, nil
}

// Config returns the active configuration.
func (pid *PIDController) Config() PIDConfig {
	return *pid.cfg.Load()
}

// SetConfig validates and installs cfg. Controller state is kept, with the integral clamped to the new limit.
func (pid *PIDController) SetConfig(cfg PIDConfig) error {
	if err := cfg.Validate("pid"); err != nil {
		return err
	}
	pid.mu.Lock()
	defer pid.mu.Unlock()
	pid.integral = clamp(pid.integral, -cfg.IntegralLimit, cfg.IntegralLimit)
	pid.cfg.Store(&cfg)
	return nil
}

// Tune replaces the gains set in req.
func (pid *PIDController) Tune(req TuneRequest) error {
	cfg := req.apply(pid.Config())
	if err := pid.SetConfig(cfg); err != nil {
		return err
	}
	pid.logger.Debugw("pid tuned", "kp", cfg.Kp, "ki", cfg.Ki, "kd", cfg.Kd)
	return nil
}

// Compute runs one step, measuring the time step since the previous call on the controller's clock.
func (pid *PIDController) Compute(setpoint, processVariable float64) Output {
	now := pid.clock.Now()
	pid.mu.Lock()
	defer pid.mu.Unlock()
	dt := initialDt
	if !pid.lastTime.IsZero() {
		dt = now.Sub(pid.lastTime).Seconds()
	}
	pid.lastTime = now
	return pid.step(setpoint, processVariable, dt)
}

// ComputeDt runs one step with the supplied time step in seconds.
func (pid *PIDController) ComputeDt(setpoint, processVariable, dt float64) Output {
	pid.mu.Lock()
	defer pid.mu.Unlock()
	pid.lastTime = pid.clock.Now()
	return pid.step(setpoint, processVariable, dt)
}

func clampDt(dt float64) float64 {
	if !(dt >= minDt) {
		return minDt
	}
	return math.Min(dt, maxDt)
}

func (pid *PIDController) step(setpoint, processVariable, dt float64) Output {
	if !isFinite(setpoint) || !isFinite(processVariable) {
		pid.logger.Warnw("rejecting non-finite controller input", "setpoint", setpoint, "process_variable", processVariable)
		out := pid.lastOutput
		out.Rejected = true
		return out
	}
	cfg := pid.cfg.Load()
	dt = clampDt(dt)

	e := setpoint - processVariable
	pid.integral = clamp(pid.integral+e*dt, -cfg.IntegralLimit, cfg.IntegralLimit)

	out := Output{Error: e, P: cfg.Kp * e, I: cfg.Ki * pid.integral}
	if pid.started {
		out.D = cfg.Kd * (e - pid.lastError) / dt
	}
	raw := out.P + out.I + out.D
	out.Value = clamp(raw, cfg.OutputMin, cfg.OutputMax)
	out.Saturated = out.Value != raw

	if pid.started {
		pid.elapsed += dt
	}
	pid.started = true
	pid.lastError = e
	pid.lastOutput = out
	pid.history.push(Sample{
		Time:            pid.elapsed,
		Error:           e,
		Output:          out.Value,
		Setpoint:        setpoint,
		ProcessVariable: processVariable,
	})
	return out
}

// Reset clears the integral, the previous error and time, and the history.
func (pid *PIDController) Reset() {
	pid.mu.Lock()
	defer pid.mu.Unlock()
	pid.integral = 0
	pid.lastError = 0
	pid.lastTime = time.Time{}
	pid.lastOutput = Output{}
	pid.started = false
	pid.elapsed = 0
	pid.history.clear()
}

// History returns the recorded samples, oldest first.
func (pid *PIDController) History() []Sample {
	pid.mu.Lock()
	defer pid.mu.Unlock()
	return pid.history.samples()
}

// Metrics summarizes the recorded history.
func (pid *PIDController) Metrics() PerformanceMetrics {
	return ComputeMetrics(pid.History())
}

// Integral returns the anti-windup clamped error accumulator.
func (pid *PIDController) Integral() float64 {
	pid.mu.Lock()
	defer pid.mu.Unlock()
	return pid.integral
}

// LastError returns the error of the most recent accepted step.
func (pid *PIDController) LastError() float64 {
	pid.mu.Lock()
	defer pid.mu.Unlock()
	return pid.lastError
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
