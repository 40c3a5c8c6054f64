// Package config defines the structures to configure navigation, trajectory tracking and a demo scenario.
package config

import (
	"fmt"
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/navcore/control"
	"go.viam.com/navcore/motionplan"
	"go.viam.com/navcore/navigation"
	"go.viam.com/navcore/trajectory"
)

// gains given to the default x, y and theta axes.
const (
	defaultKp            = 2.0
	defaultKi            = 0.1
	defaultKd            = 0.05
	defaultLoopFrequency = 50.0
)

// A Config describes a navigation stack: how paths are planned and shaped, and how the result is tracked.
type Config struct {
	Navigation navigation.Config            `json:"navigation"`
	Axes       map[string]control.PIDConfig `json:"axes,omitempty"`
	Loop       control.LoopConfig           `json:"loop"`
	Scenario   *Scenario                    `json:"scenario,omitempty"`

	ConfigFilePath string `json:"-"`
}

// Default returns a config with default navigation settings and x, y and theta axes tracked at 50 Hz.
func Default() *Config {
	return &Config{
		Navigation: navigation.DefaultConfig(),
		Axes: map[string]control.PIDConfig{
			control.AxisX:     control.DefaultPIDConfig(defaultKp, defaultKi, defaultKd),
			control.AxisY:     control.DefaultPIDConfig(defaultKp, defaultKi, defaultKd),
			control.AxisTheta: control.DefaultPIDConfig(defaultKp, defaultKi, defaultKd),
		},
		Loop: control.LoopConfig{Frequency: defaultLoopFrequency},
	}
}

// Ensure ensures all parts of the config are valid, reporting every problem found.
func (c *Config) Ensure() error {
	errs := c.Navigation.Validate("navigation")
	errs = multierr.Append(errs, c.Loop.Validate("loop"))
	for _, name := range c.AxisNames() {
		cfg := c.Axes[name]
		errs = multierr.Append(errs, cfg.Validate(fmt.Sprintf("axes.%s", name)))
	}
	if c.Scenario != nil {
		errs = multierr.Append(errs, c.Scenario.Validate("scenario"))
	}
	return errs
}

// AxisNames returns the configured axes in sorted order.
func (c *Config) AxisNames() []string {
	names := lo.Keys(c.Axes)
	sort.Strings(names)
	return names
}

// Point is an x, y pair written as a two element array.
type Point [2]float64

// R2 converts p into an r2.Point.
func (p Point) R2() r2.Point {
	return r2.Point{X: p[0], Y: p[1]}
}

// Scenario is a navigation request stored in a config file.
type Scenario struct {
	Start     Point                   `json:"start"`
	Goal      Point                   `json:"goal"`
	Obstacles []Point                 `json:"obstacles,omitempty"`
	Planner   *motionplan.PlannerType `json:"planner,omitempty"`
	Profile   *trajectory.Profile     `json:"profile,omitempty"`
	TotalTime *float64                `json:"total_time,omitempty"`
}

// Validate ensures the scenario's points are finite and its duration is positive.
func (s *Scenario) Validate(path string) error {
	var errs error
	check := func(field string, p Point) {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.Errorf("%s must be finite", field)))
		}
	}
	check("start", s.Start)
	check("goal", s.Goal)
	for i, o := range s.Obstacles {
		check(fmt.Sprintf("obstacles.%d", i), o)
	}
	if s.TotalTime != nil && !(*s.TotalTime > 0) {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			errors.Errorf("total_time must be positive, got %v", *s.TotalTime)))
	}
	return errs
}

// Request converts the scenario into a navigation request.
func (s *Scenario) Request() navigation.NavigateRequest {
	obstacles := lo.Map(s.Obstacles, func(o Point, _ int) r2.Point {
		return o.R2()
	})
	return navigation.NavigateRequest{
		Start:       s.Start.R2(),
		Goal:        s.Goal.R2(),
		Obstacles:   obstacles,
		PlannerType: s.Planner,
		Profile:     s.Profile,
		TotalTime:   s.TotalTime,
	}
}
