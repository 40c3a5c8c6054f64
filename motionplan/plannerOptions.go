package motionplan

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// default values for planning options.
const (
	// side length of one A* grid cell.
	defaultGridResolution = 0.1

	// free space around the start/goal/obstacle bounding box that A* is allowed to search.
	defaultSearchMargin = 1.0

	// Number of RRT iterations before giving up.
	defaultPlanIter = 1000

	// distance the RRT tree grows toward each sample.
	defaultStepSize = 0.1

	// probability of sampling the goal directly.
	defaultGoalBias = 0.1

	// half width of the default RRT sampling square centered on the origin.
	defaultSampleExtent = 5.0

	defaultSeed = 1
)

// Obstacle inflation. Both are applied uniformly and are not caller supplied.
const (
	// obstacle cells are inflated by a disk of this radius, in grid cells.
	inflationCells = 2

	// minimum distance an RRT node must keep from every obstacle.
	rrtClearance = 0.3
)

// Bounds is an axis aligned rectangle.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Rect converts the bounds into an r2.Rect.
func (b Bounds) Rect() r2.Rect {
	return r2.RectFromPoints(r2.Point{X: b.MinX, Y: b.MinY}, r2.Point{X: b.MaxX, Y: b.MaxY})
}

// AStarOptions configure the grid planner.
type AStarOptions struct {
	// Side length of a grid cell.
	GridResolution float64 `json:"grid_resolution"`

	// Padding added around the start, goal and obstacles to bound the search.
	SearchMargin float64 `json:"search_margin"`

	// Maximum number of node expansions. 0 means unbounded, the grid bounds still make the search finite.
	MaxExpansions int `json:"max_expansions,omitempty"`

	// Return the raw cell-by-cell path instead of the line-of-sight shortened one.
	DisableSmoothing bool `json:"disable_smoothing,omitempty"`
}

// RRTOptions configure the sampling planner.
type RRTOptions struct {
	// Number of planner iterations before giving up.
	MaxIterations int `json:"max_iterations"`

	// Distance the tree is grown toward each sample.
	StepSize float64 `json:"step_size"`

	// Probability of sampling the goal.
	GoalBias float64 `json:"goal_bias"`

	// Region random samples are drawn from. It is widened to contain the start and goal.
	SampleBounds Bounds `json:"sample_bounds"`

	// Seed of the planner's random source.
	Seed int64 `json:"seed"`
}

// PlannerOptions are a set of options to be passed to a planner which will specify how to solve a planning problem.
type PlannerOptions struct {
	AStar AStarOptions `json:"astar"`
	RRT   RRTOptions   `json:"rrt"`

	// Number of seconds a single planning call may run. 0 disables the limit.
	Timeout float64 `json:"timeout,omitempty"`
}

// NewDefaultPlannerOptions returns options populated with the default values.
func NewDefaultPlannerOptions() *PlannerOptions {
	return &PlannerOptions{
		AStar: AStarOptions{
			GridResolution: defaultGridResolution,
			SearchMargin:   defaultSearchMargin,
		},
		RRT: RRTOptions{
			MaxIterations: defaultPlanIter,
			StepSize:      defaultStepSize,
			GoalBias:      defaultGoalBias,
			SampleBounds: Bounds{
				MinX: -defaultSampleExtent,
				MinY: -defaultSampleExtent,
				MaxX: defaultSampleExtent,
				MaxY: defaultSampleExtent,
			},
			Seed: defaultSeed,
		},
	}
}

// FillDefaults replaces zero valued fields with their defaults. GoalBias and Seed are left alone since 0 is a
// meaningful value for both.
func (opts *PlannerOptions) FillDefaults() {
	def := NewDefaultPlannerOptions()
	if opts.AStar.GridResolution == 0 {
		opts.AStar.GridResolution = def.AStar.GridResolution
	}
	if opts.AStar.SearchMargin == 0 {
		opts.AStar.SearchMargin = def.AStar.SearchMargin
	}
	if opts.RRT.MaxIterations == 0 {
		opts.RRT.MaxIterations = def.RRT.MaxIterations
	}
	if opts.RRT.StepSize == 0 {
		opts.RRT.StepSize = def.RRT.StepSize
	}
	if opts.RRT.SampleBounds == (Bounds{}) {
		opts.RRT.SampleBounds = def.RRT.SampleBounds
	}
}

// Validate ensures all options are usable, reporting every problem found.
func (opts *PlannerOptions) Validate(path string) error {
	var errs error
	if !(opts.AStar.GridResolution > 0) {
		errs = multierr.Append(errs, utils.NewConfigValidationError(
			fmt.Sprintf("%s.astar", path), newInvalidOptionError("grid_resolution", opts.AStar.GridResolution)))
	}
	if opts.AStar.SearchMargin < 0 || math.IsNaN(opts.AStar.SearchMargin) {
		errs = multierr.Append(errs, utils.NewConfigValidationError(
			fmt.Sprintf("%s.astar", path), errors.Wrapf(ErrInvalidConfiguration, "search_margin must not be negative")))
	}
	if opts.AStar.MaxExpansions < 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(
			fmt.Sprintf("%s.astar", path), errors.Wrapf(ErrInvalidConfiguration, "max_expansions must not be negative")))
	}
	if opts.RRT.MaxIterations <= 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(
			fmt.Sprintf("%s.rrt", path), newInvalidOptionError("max_iterations", opts.RRT.MaxIterations)))
	}
	if !(opts.RRT.StepSize > 0) {
		errs = multierr.Append(errs, utils.NewConfigValidationError(
			fmt.Sprintf("%s.rrt", path), newInvalidOptionError("step_size", opts.RRT.StepSize)))
	}
	if opts.RRT.GoalBias < 0 || opts.RRT.GoalBias > 1 || math.IsNaN(opts.RRT.GoalBias) {
		errs = multierr.Append(errs, utils.NewConfigValidationError(
			fmt.Sprintf("%s.rrt", path), errors.Wrapf(ErrInvalidConfiguration, "goal_bias must be within [0, 1], got %v", opts.RRT.GoalBias)))
	}
	b := opts.RRT.SampleBounds
	if !(b.MaxX > b.MinX) || !(b.MaxY > b.MinY) {
		errs = multierr.Append(errs, utils.NewConfigValidationError(
			fmt.Sprintf("%s.rrt", path), errors.Wrapf(ErrInvalidConfiguration, "sample_bounds must have positive area, got %+v", b)))
	}
	if opts.Timeout < 0 || math.IsNaN(opts.Timeout) {
		errs = multierr.Append(errs, utils.NewConfigValidationError(
			path, errors.Wrapf(ErrInvalidConfiguration, "timeout must not be negative")))
	}
	return errs
}
