package control

import (
	"math"
	"math/rand"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
)

// ProcessFunc simulates one step of a plant: given the control input and the current state it returns the
// next state.
type ProcessFunc func(controlInput, currentState float64) float64

// OvershootTarget selects how aggressive the heuristic gains are.
type OvershootTarget int

// The overshoot targets understood by Heuristic.
const (
	LowOvershoot OvershootTarget = iota
	MediumOvershoot
	HighOvershoot
)

func (o OvershootTarget) String() string {
	switch o {
	case LowOvershoot:
		return "low"
	case MediumOvershoot:
		return "medium"
	case HighOvershoot:
		return "high"
	default:
		return "unknown"
	}
}

// step test fractions of the final response.
const (
	timeConstantFraction = 0.63
	riseStartFraction    = 0.1
	riseEndFraction      = 0.9

	// tuned limits are wide so that a first tuning pass does not hide the plant's behavior.
	defaultTunedOutputLimit   = 1e3
	defaultTunedIntegralLimit = 1e3

	refineDt       = 0.01
	refineSteps    = 1000
	refineSpread   = 0.2
	flatResponseEp = 1e-9
)

// StepTestOptions configures ZieglerNicholsStep. Zero values are replaced by defaults.
type StepTestOptions struct {
	StepInput     float64 `json:"step_input"`
	Duration      float64 `json:"duration"`
	Dt            float64 `json:"dt"`
	InitialState  float64 `json:"initial_state"`
	OutputLimit   float64 `json:"output_limit"`
	IntegralLimit float64 `json:"integral_limit"`
}

func (opts *StepTestOptions) fillDefaults() {
	if opts.StepInput == 0 {
		opts.StepInput = 1.0
	}
	if opts.Duration == 0 {
		opts.Duration = 30
	}
	if opts.Dt == 0 {
		opts.Dt = 0.01
	}
	if opts.OutputLimit == 0 {
		opts.OutputLimit = defaultTunedOutputLimit
	}
	if opts.IntegralLimit == 0 {
		opts.IntegralLimit = defaultTunedIntegralLimit
	}
}

// PIDTuner derives PID gains from the response of a simulated process.
type PIDTuner struct {
	logger golog.Logger
	rnd    *rand.Rand
}

// NewPIDTuner returns a tuner. rnd drives Refine; a nil rnd uses a fixed seed.
func NewPIDTuner(logger golog.Logger, rnd *rand.Rand) *PIDTuner {
	if rnd == nil {
		//nolint:gosec
		rnd = rand.New(rand.NewSource(1))
	}
	return &PIDTuner{logger: logger, rnd: rnd}
}

// ZieglerNicholsStep applies a step input to process, measures the static gain, time constant and rise time
// of the response and derives gains from them.
func (tuner *PIDTuner) ZieglerNicholsStep(process ProcessFunc, opts StepTestOptions) (PIDConfig, error) {
	opts.fillDefaults()
	if !(opts.Duration > 0) || !(opts.Dt > 0) || opts.Dt > opts.Duration {
		return PIDConfig{}, errors.Wrapf(ErrInvalidConfiguration, "invalid step test duration %v and dt %v", opts.Duration, opts.Dt)
	}
	if opts.OutputLimit < 0 || opts.IntegralLimit < 0 {
		return PIDConfig{}, errors.Wrap(ErrInvalidConfiguration, "step test limits must not be negative")
	}

	steps := int(math.Round(opts.Duration / opts.Dt))
	response := make([]float64, steps)
	state := opts.InitialState
	for i := range response {
		state = process(opts.StepInput, state)
		if !isFinite(state) {
			return PIDConfig{}, errors.Wrapf(ErrTuningFailed, "process diverged after %d steps", i+1)
		}
		response[i] = state
	}

	change := response[len(response)-1] - opts.InitialState
	if math.Abs(change) < flatResponseEp {
		return PIDConfig{}, errors.Wrap(ErrTuningFailed, "process did not respond to the step input")
	}
	gain := change / opts.StepInput

	timeAt := func(fraction float64) float64 {
		for i, y := range response {
			if (y-opts.InitialState)/change >= fraction {
				return float64(i+1) * opts.Dt
			}
		}
		return opts.Duration
	}
	timeConstant := timeAt(timeConstantFraction)
	riseTime := timeAt(riseEndFraction) - timeAt(riseStartFraction)
	if riseTime <= 0 {
		return PIDConfig{}, errors.Wrap(ErrTuningFailed, "rise time is too short to measure, reduce dt")
	}

	kp := 1.2 / (gain * timeConstant)
	cfg := PIDConfig{
		Kp:            kp,
		Ki:            kp * 2 / riseTime,
		Kd:            kp * riseTime * 0.5,
		OutputMin:     -opts.OutputLimit,
		OutputMax:     opts.OutputLimit,
		IntegralLimit: opts.IntegralLimit,
	}
	tuner.logger.Debugw("step response measured",
		"gain", gain, "time_constant", timeConstant, "rise_time", riseTime, "kp", cfg.Kp, "ki", cfg.Ki, "kd", cfg.Kd)
	return cfg, nil
}

// Heuristic derives gains from the size of the process's response to a unit input.
func (tuner *PIDTuner) Heuristic(initialResponse float64, target OvershootTarget) (PIDConfig, error) {
	if initialResponse == 0 || !isFinite(initialResponse) {
		return PIDConfig{}, errors.Wrapf(ErrTuningFailed, "initial response must be finite and non-zero, got %v", initialResponse)
	}
	kp := 1 / math.Abs(initialResponse)
	var ki, kd float64
	switch target {
	case LowOvershoot:
		ki, kd = 0.05*kp, 0.2*kp
	case MediumOvershoot:
		ki, kd = 0.1*kp, 0.1*kp
	case HighOvershoot:
		ki, kd = 0.2*kp, 0.05*kp
	default:
		return PIDConfig{}, errors.Wrapf(ErrInvalidConfiguration, "unknown overshoot target %d", int(target))
	}
	return DefaultPIDConfig(kp, ki, kd), nil
}

// Refine searches around cfg's gains for a configuration with a lower RMS tracking error on the closed loop
// of process, keeping cfg's limits. It returns the best configuration found and its RMS error.
func (tuner *PIDTuner) Refine(process ProcessFunc, cfg PIDConfig, iterations int, setpoint float64) (PIDConfig, float64, error) {
	if err := cfg.Validate("refine"); err != nil {
		return PIDConfig{}, 0, err
	}
	if iterations < 0 {
		return PIDConfig{}, 0, errors.Wrapf(ErrInvalidConfiguration, "iterations must not be negative, got %d", iterations)
	}
	best := cfg
	bestCost := tuner.simulate(process, cfg, setpoint)
	for i := 0; i < iterations; i++ {
		candidate := best
		candidate.Kp *= math.Exp(tuner.rnd.NormFloat64() * refineSpread)
		candidate.Ki *= math.Exp(tuner.rnd.NormFloat64() * refineSpread)
		candidate.Kd *= math.Exp(tuner.rnd.NormFloat64() * refineSpread)
		if cost := tuner.simulate(process, candidate, setpoint); cost < bestCost {
			best, bestCost = candidate, cost
		}
	}
	if math.IsInf(bestCost, 1) {
		return PIDConfig{}, 0, errors.Wrap(ErrTuningFailed, "closed loop diverged for every candidate")
	}
	tuner.logger.Debugw("refined gains", "kp", best.Kp, "ki", best.Ki, "kd", best.Kd, "rms_error", bestCost)
	return best, bestCost, nil
}

// simulate returns the RMS error of a closed loop run starting from rest, +Inf if it diverges.
func (tuner *PIDTuner) simulate(process ProcessFunc, cfg PIDConfig, setpoint float64) float64 {
	pid, err := NewPIDController(cfg, tuner.logger)
	if err != nil {
		return math.Inf(1)
	}
	state := 0.
	for i := 0; i < refineSteps; i++ {
		out := pid.ComputeDt(setpoint, state, refineDt)
		state = process(out.Value, state)
		if !isFinite(state) {
			return math.Inf(1)
		}
	}
	return pid.Metrics().RMSError
}
