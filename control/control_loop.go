package control

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// maxLoopFrequency is the fastest supported tick rate in Hz.
const maxLoopFrequency = 200

// Sensor measures the process variable of one axis.
type Sensor interface {
	Read(ctx context.Context) (float64, error)
}

// Actuator applies a controller output to one axis.
type Actuator interface {
	Set(ctx context.Context, value float64) error
}

// Axis binds a named controller to the sensor it reads and the actuator it drives.
type Axis struct {
	Name     string
	Sensor   Sensor
	Actuator Actuator
}

// LoopConfig configures a tracking loop.
type LoopConfig struct {
	Frequency float64 `json:"frequency_hz"`
}

// Validate ensures the frequency is in (0, 200] Hz.
func (cfg *LoopConfig) Validate(path string) error {
	if !(cfg.Frequency > 0) || cfg.Frequency > maxLoopFrequency {
		return utils.NewConfigValidationError(path,
			errors.Wrapf(ErrInvalidConfiguration, "loop frequency must be in (0, %d] Hz, got %v", maxLoopFrequency, cfg.Frequency))
	}
	return nil
}

// SetpointSource yields the setpoints of successive ticks. It returns false once exhausted.
type SetpointSource interface {
	Next() (map[string]float64, bool)
}

// LoopOption configures optional Loop behavior.
type LoopOption func(*Loop)

// WithLoopClock sets the clock the loop ticks on.
func WithLoopClock(c clock.Clock) LoopOption {
	return func(l *Loop) {
		l.clock = c
	}
}

// Loop reads sensors, steps a MultiPIDController and drives actuators at a fixed rate.
type Loop struct {
	cfg    LoopConfig
	logger golog.Logger
	pid    *MultiPIDController
	axes   []Axis
	clock  clock.Clock
	dt     time.Duration
	ticks  atomic.Int64

	mu                      sync.Mutex
	running                 bool
	cancel                  context.CancelFunc
	err                     error
	activeBackgroundWorkers sync.WaitGroup
}

// NewLoop returns a loop driving axes. Every axis must have a controller registered in pid.
func NewLoop(logger golog.Logger, cfg LoopConfig, pid *MultiPIDController, axes []Axis, opts ...LoopOption) (*Loop, error) {
	if err := cfg.Validate("loop"); err != nil {
		return nil, err
	}
	if pid == nil {
		return nil, errors.Wrap(ErrInvalidConfiguration, "loop requires a controller")
	}
	seen := make(map[string]bool, len(axes))
	for _, axis := range axes {
		if axis.Sensor == nil || axis.Actuator == nil {
			return nil, errors.Wrapf(ErrInvalidConfiguration, "axis %q needs a sensor and an actuator", axis.Name)
		}
		if _, ok := pid.Controller(axis.Name); !ok {
			return nil, errors.Wrapf(ErrInvalidConfiguration, "axis %q has no controller", axis.Name)
		}
		if seen[axis.Name] {
			return nil, errors.Wrapf(ErrInvalidConfiguration, "axis %q is listed twice", axis.Name)
		}
		seen[axis.Name] = true
	}
	l := &Loop{
		cfg:    cfg,
		logger: logger,
		pid:    pid,
		axes:   append([]Axis(nil), axes...),
		clock:  clock.New(),
		dt:     time.Duration(float64(time.Second) * (1.0 / cfg.Frequency)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Frequency returns the loop's frequency.
func (l *Loop) Frequency() float64 {
	return l.cfg.Frequency
}

// Ticks returns the number of completed ticks.
func (l *Loop) Ticks() int64 {
	return l.ticks.Load()
}

// Start launches the tick loop in the background. It stops when ctx is done, when setpoints is exhausted or
// after a tick in which a sensor or actuator failed.
func (l *Loop) Start(ctx context.Context, setpoints SetpointSource) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return errors.New("control loop is already running")
	}
	l.running = true
	l.err = nil

	cancelCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	ticker := l.clock.Ticker(l.dt)
	dtSeconds := l.dt.Seconds()
	l.logger.Debugw("starting control loop", "frequency", l.cfg.Frequency, "axes", len(l.axes))

	l.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		for {
			select {
			case <-cancelCtx.Done():
				return
			case <-ticker.C:
			}
			sp, ok := setpoints.Next()
			if !ok {
				return
			}
			if err := l.tick(cancelCtx, sp, dtSeconds); err != nil {
				l.mu.Lock()
				l.err = multierr.Combine(l.err, err)
				l.mu.Unlock()
				return
			}
		}
	}, func() {
		ticker.Stop()
		cancel()
		l.activeBackgroundWorkers.Done()
	})
	return nil
}

// tick runs one control step. A failing axis does not prevent the others from being driven.
func (l *Loop) tick(ctx context.Context, setpoints map[string]float64, dt float64) error {
	var errs error
	pvs := make(map[string]float64, len(l.axes))
	for _, axis := range l.axes {
		if _, ok := setpoints[axis.Name]; !ok {
			continue
		}
		pv, err := axis.Sensor.Read(ctx)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "reading axis %q", axis.Name))
			continue
		}
		pvs[axis.Name] = pv
	}
	outputs := l.pid.ComputeAllDt(setpoints, pvs, dt)
	for _, axis := range l.axes {
		out, ok := outputs[axis.Name]
		if !ok {
			continue
		}
		if out.Saturated {
			l.logger.Debugw("controller saturated", "axis", axis.Name, "output", out.Value)
		}
		if err := axis.Actuator.Set(ctx, out.Value); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "driving axis %q", axis.Name))
		}
	}
	l.ticks.Inc()
	return errs
}

// Wait blocks until the background loop stops and returns the errors it encountered.
func (l *Loop) Wait() error {
	l.activeBackgroundWorkers.Wait()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = false
	return l.err
}

// Run starts the loop and waits for it to stop.
func (l *Loop) Run(ctx context.Context, setpoints SetpointSource) error {
	if err := l.Start(ctx, setpoints); err != nil {
		return err
	}
	return l.Wait()
}

// Close stops the loop and waits for it.
func (l *Loop) Close() error {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return l.Wait()
}
