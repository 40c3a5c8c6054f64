package control

import (
	"sync"

	"go.viam.com/navcore/trajectory"
)

// Axis names fed by TrajectorySetpoints.
const (
	AxisX     = "x"
	AxisY     = "y"
	AxisTheta = "theta"
)

// trajectorySetpoints yields one trajectory point per tick.
type trajectorySetpoints struct {
	mu     sync.Mutex
	points []trajectory.Point
	next   int
}

// TrajectorySetpoints returns a SetpointSource that yields the pose of each point in order on the x, y and
// theta axes. The loop frequency should match the trajectory's sample rate.
func TrajectorySetpoints(points []trajectory.Point) SetpointSource {
	return &trajectorySetpoints{points: points}
}

func (ts *trajectorySetpoints) Next() (map[string]float64, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.next >= len(ts.points) {
		return nil, false
	}
	p := ts.points[ts.next]
	ts.next++
	return map[string]float64{AxisX: p.X, AxisY: p.Y, AxisTheta: p.Theta}, true
}

// constantSetpoints yields the same setpoints a fixed number of times.
type constantSetpoints struct {
	mu        sync.Mutex
	setpoints map[string]float64
	remaining int
}

// ConstantSetpoints returns a SetpointSource that yields setpoints for the given number of ticks.
func ConstantSetpoints(setpoints map[string]float64, ticks int) SetpointSource {
	return &constantSetpoints{setpoints: setpoints, remaining: ticks}
}

func (cs *constantSetpoints) Next() (map[string]float64, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.remaining <= 0 {
		return nil, false
	}
	cs.remaining--
	return cs.setpoints, true
}
