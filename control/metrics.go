package control

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// thresholds used to evaluate a response.
const (
	steadyStateFraction = 0.1
	settlingBand        = 0.02
	settlingRun         = 10
)

// PerformanceMetrics summarizes how well a controller tracked its setpoint.
type PerformanceMetrics struct {
	// SteadyStateError is the mean absolute error over the last tenth of the samples.
	SteadyStateError float64 `json:"steady_state_error"`
	// Overshoot is the largest absolute error relative to the initial one.
	Overshoot float64 `json:"overshoot"`
	// SettlingTime is the time until the error stays within 2% of the initial error, -1 if it never does.
	SettlingTime float64 `json:"settling_time"`
	Settled      bool    `json:"settled"`
	RMSError     float64 `json:"rms_error"`
	Samples      int     `json:"samples"`
}

// ComputeMetrics evaluates a history ordered oldest first.
func ComputeMetrics(history []Sample) PerformanceMetrics {
	if len(history) == 0 {
		return PerformanceMetrics{}
	}
	absErrs := make([]float64, len(history))
	for i, s := range history {
		absErrs[i] = math.Abs(s.Error)
	}

	tail := int(float64(len(absErrs)) * steadyStateFraction)
	if tail < 1 {
		tail = 1
	}
	m := PerformanceMetrics{
		SteadyStateError: stat.Mean(absErrs[len(absErrs)-tail:], nil),
		RMSError:         math.Sqrt(floats.Dot(absErrs, absErrs) / float64(len(absErrs))),
		Samples:          len(history),
		SettlingTime:     -1,
	}

	initial := absErrs[0]
	if initial > 0 {
		m.Overshoot = floats.Max(absErrs) / initial
	}

	band := settlingBand * initial
	run := 0
	for i, e := range absErrs {
		if e > band {
			run = 0
			continue
		}
		run++
		if run == settlingRun {
			first := i - settlingRun + 1
			m.SettlingTime = history[first].Time - history[0].Time
			m.Settled = true
			break
		}
	}
	return m
}
