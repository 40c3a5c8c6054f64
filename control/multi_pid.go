package control

import (
	"sort"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
)

// MultiPIDController drives independent axes, each with its own PIDController.
type MultiPIDController struct {
	logger golog.Logger
	opts   []PIDOption

	mu          sync.RWMutex
	controllers map[string]*PIDController
}

// NewMultiPIDController creates one controller per entry of configs. opts apply to every controller,
// including ones added later.
func NewMultiPIDController(configs map[string]PIDConfig, logger golog.Logger, opts ...PIDOption) (*MultiPIDController, error) {
	m := &MultiPIDController{
		logger:      logger,
		opts:        opts,
		controllers: make(map[string]*PIDController, len(configs)),
	}
	for name, cfg := range configs {
		if err := m.Add(name, cfg); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Add registers a controller for the named axis, replacing any existing one.
func (m *MultiPIDController) Add(name string, cfg PIDConfig) error {
	if name == "" {
		return errors.Wrap(ErrInvalidConfiguration, "axis name must not be empty")
	}
	pid, err := NewPIDController(cfg, m.logger.Named(name), m.opts...)
	if err != nil {
		return errors.Wrapf(err, "axis %q", name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.controllers[name] = pid
	return nil
}

// Remove drops the named axis. It reports whether the axis existed.
func (m *MultiPIDController) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.controllers[name]
	delete(m.controllers, name)
	return ok
}

// Controller returns the controller of the named axis.
func (m *MultiPIDController) Controller(name string) (*PIDController, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pid, ok := m.controllers[name]
	return pid, ok
}

// Names returns the registered axes in sorted order.
func (m *MultiPIDController) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.controllers))
	for name := range m.controllers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ComputeAll steps every registered axis that has both a setpoint and a process variable,
// measuring time steps on each controller's clock.
func (m *MultiPIDController) ComputeAll(setpoints, processVariables map[string]float64) map[string]Output {
	return m.computeAll(setpoints, processVariables, func(pid *PIDController, sp, pv float64) Output {
		return pid.Compute(sp, pv)
	})
}

// ComputeAllDt is ComputeAll with a supplied time step.
func (m *MultiPIDController) ComputeAllDt(setpoints, processVariables map[string]float64, dt float64) map[string]Output {
	return m.computeAll(setpoints, processVariables, func(pid *PIDController, sp, pv float64) Output {
		return pid.ComputeDt(sp, pv, dt)
	})
}

func (m *MultiPIDController) computeAll(
	setpoints, processVariables map[string]float64,
	step func(pid *PIDController, sp, pv float64) Output,
) map[string]Output {
	m.mu.RLock()
	defer m.mu.RUnlock()
	outputs := make(map[string]Output, len(setpoints))
	for name, sp := range setpoints {
		pv, ok := processVariables[name]
		if !ok {
			continue
		}
		pid, ok := m.controllers[name]
		if !ok {
			continue
		}
		outputs[name] = step(pid, sp, pv)
	}
	return outputs
}

// ResetAll resets every controller.
func (m *MultiPIDController) ResetAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, pid := range m.controllers {
		pid.Reset()
	}
}

// MetricsAll returns the performance metrics of every axis.
func (m *MultiPIDController) MetricsAll() map[string]PerformanceMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	metrics := make(map[string]PerformanceMetrics, len(m.controllers))
	for name, pid := range m.controllers {
		metrics[name] = pid.Metrics()
	}
	return metrics
}

// SetConfigs swaps the configuration of every named axis that is registered. Unknown axes are ignored
// with a warning. Nothing is changed if any config is invalid.
func (m *MultiPIDController) SetConfigs(configs map[string]PIDConfig) error {
	for name, cfg := range configs {
		if err := cfg.Validate(name); err != nil {
			return err
		}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, cfg := range configs {
		pid, ok := m.controllers[name]
		if !ok {
			m.logger.Warnw("ignoring config for unknown axis", "axis", name)
			continue
		}
		if err := pid.SetConfig(cfg); err != nil {
			return err
		}
	}
	return nil
}
