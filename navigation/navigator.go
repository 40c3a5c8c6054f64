// Package navigation plans a path to a goal and turns it into a trajectory in one call.
package navigation

import (
	"context"
	"math"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/navcore/motionplan"
	"go.viam.com/navcore/spatialmath"
	"go.viam.com/navcore/trajectory"
)

const (
	// defaultAverageSpeed is the speed, in units per second, used to derive a duration when none is requested.
	defaultAverageSpeed = 0.5
	// minTotalTime is the shortest derived duration in seconds.
	minTotalTime = 1.0
)

// Config configures a Navigator.
type Config struct {
	DefaultPlanner motionplan.PlannerType     `json:"default_planner"`
	Profile        trajectory.Profile         `json:"profile"`
	AverageSpeed   float64                    `json:"average_speed"`
	Planner        motionplan.PlannerOptions  `json:"planner"`
	Trajectory     trajectory.GeneratorConfig `json:"trajectory"`
}

// DefaultConfig returns an A* navigator producing trapezoidal trajectories at an average speed of 0.5.
func DefaultConfig() Config {
	return Config{
		DefaultPlanner: motionplan.AStar,
		Profile:        trajectory.TrapezoidalProfile,
		AverageSpeed:   defaultAverageSpeed,
		Planner:        *motionplan.NewDefaultPlannerOptions(),
		Trajectory:     trajectory.DefaultGeneratorConfig(),
	}
}

// Validate ensures every section of the config is usable.
func (cfg *Config) Validate(path string) error {
	var errs error
	if !(cfg.AverageSpeed > 0) || math.IsInf(cfg.AverageSpeed, 1) {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			errors.Errorf("average_speed must be positive and finite, got %v", cfg.AverageSpeed)))
	}
	if _, err := cfg.DefaultPlanner.MarshalText(); err != nil {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, err))
	}
	if _, err := cfg.Profile.MarshalText(); err != nil {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, err))
	}
	errs = multierr.Append(errs, cfg.Planner.Validate(path+".planner"))
	errs = multierr.Append(errs, cfg.Trajectory.Validate(path+".trajectory"))
	return errs
}

// NavigateRequest describes one navigation problem. Nil optional fields use the navigator's defaults.
type NavigateRequest struct {
	Start     r2.Point
	Goal      r2.Point
	Obstacles []r2.Point

	PlannerType *motionplan.PlannerType
	Profile     *trajectory.Profile
	// TotalTime is the requested duration of the trajectory in seconds.
	TotalTime *float64
}

// Result is a planned path and the trajectory that follows it.
type Result struct {
	Path       *spatialmath.Path
	Trajectory []trajectory.Point
	Planner    motionplan.PlannerType
	Profile    trajectory.Profile
	TotalTime  float64
}

// Navigator selects a planner, plans and generates a trajectory.
type Navigator struct {
	cfg    Config
	gen    *trajectory.Generator
	logger golog.Logger
}

// NewNavigator validates cfg and returns a Navigator.
func NewNavigator(cfg Config, logger golog.Logger) (*Navigator, error) {
	if err := cfg.Validate("navigation"); err != nil {
		return nil, err
	}
	gen, err := trajectory.NewGenerator(cfg.Trajectory, logger.Named("trajectory"))
	if err != nil {
		return nil, err
	}
	return &Navigator{cfg: cfg, gen: gen, logger: logger}, nil
}

// Config returns the navigator's configuration.
func (n *Navigator) Config() Config {
	return n.cfg
}

// NavigateTo plans from req.Start to req.Goal and generates a trajectory along the path. When planning fails
// the returned Result still carries the planner's degenerate path alongside the error.
func (n *Navigator) NavigateTo(ctx context.Context, req NavigateRequest) (*Result, error) {
	plannerType := n.cfg.DefaultPlanner
	if req.PlannerType != nil {
		plannerType = *req.PlannerType
	}
	profile := n.cfg.Profile
	if req.Profile != nil {
		profile = *req.Profile
	}
	res := &Result{Planner: plannerType, Profile: profile}

	opts := n.cfg.Planner
	mp, err := motionplan.NewPlanner(plannerType, &opts, n.logger.Named(plannerType.String()))
	if err != nil {
		return res, err
	}

	planCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		planCtx, cancel = context.WithTimeout(ctx, time.Duration(opts.Timeout*float64(time.Second)))
		defer cancel()
	}
	start := time.Now()
	path, err := mp.Plan(planCtx, req.Start, req.Goal, req.Obstacles)
	res.Path = path
	if err != nil {
		return res, err
	}
	n.logger.Debugw("planned path", "planner", plannerType, "waypoints", path.Len(),
		"length", path.TotalLength(), "elapsed", time.Since(start))

	if req.TotalTime != nil {
		res.TotalTime = *req.TotalTime
	} else {
		res.TotalTime = math.Max(minTotalTime, path.TotalLength()/n.cfg.AverageSpeed)
	}
	res.Trajectory, err = n.gen.Generate(profile, path, res.TotalTime)
	if err != nil {
		return res, err
	}
	return res, nil
}
