// Package motionplan finds obstacle free paths between two points in the plane.
package motionplan

import (
	"context"
	"strings"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/navcore/spatialmath"
)

// Planner computes a path from start to goal that avoids a set of point obstacles.
//
// On success the returned path starts at start and ends at goal. When no path exists within the
// planner's resource bounds the planner returns a single point path at start together with an
// error matching ErrPlanningFailed. When ctx is done the planner returns a nil path and the
// context's error.
type Planner interface {
	Plan(ctx context.Context, start, goal r2.Point, obstacles []r2.Point) (*spatialmath.Path, error)
	Type() PlannerType
}

// PlannerType selects one of the available planners.
type PlannerType int

// The set of supported planners.
const (
	AStar PlannerType = iota
	RRT
)

func (t PlannerType) String() string {
	switch t {
	case AStar:
		return "astar"
	case RRT:
		return "rrt"
	default:
		return "unknown"
	}
}

// ParsePlannerType converts a planner name, as found in configuration, into a PlannerType.
func ParsePlannerType(name string) (PlannerType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "astar", "a*", "":
		return AStar, nil
	case "rrt":
		return RRT, nil
	default:
		return 0, errors.Wrapf(ErrInvalidConfiguration, "unknown planner type %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t PlannerType) MarshalText() ([]byte, error) {
	if t != AStar && t != RRT {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "unknown planner type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *PlannerType) UnmarshalText(text []byte) error {
	parsed, err := ParsePlannerType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// NewPlanner constructs the planner selected by plannerType. Nil options select the defaults.
func NewPlanner(plannerType PlannerType, opts *PlannerOptions, logger golog.Logger) (Planner, error) {
	if opts == nil {
		opts = NewDefaultPlannerOptions()
	}
	if err := opts.Validate("planner"); err != nil {
		return nil, err
	}
	switch plannerType {
	case AStar:
		return NewAStarPlanner(opts.AStar, logger)
	case RRT:
		return NewRRTPlanner(opts.RRT, logger)
	default:
		return nil, errors.Wrapf(ErrInvalidConfiguration, "unsupported planner type %d", int(plannerType))
	}
}

// degeneratePath is what planners hand back alongside ErrPlanningFailed.
func degeneratePath(start r2.Point) *spatialmath.Path {
	return spatialmath.NewPath([]r2.Point{start})
}

func validateEndpoints(start, goal r2.Point, obstacles []r2.Point) error {
	if !spatialmath.IsFinite(start) || !spatialmath.IsFinite(goal) {
		return errors.Wrapf(ErrInvalidConfiguration, "start %v and goal %v must be finite", start, goal)
	}
	for i, o := range obstacles {
		if !spatialmath.IsFinite(o) {
			return errors.Wrapf(ErrInvalidConfiguration, "obstacle %d at %v is not finite", i, o)
		}
	}
	return nil
}
