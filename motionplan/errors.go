package motionplan

import (
	"github.com/pkg/errors"
)

var (
	// ErrPlanningFailed is matched by every error returned when no path was found within the planner's resource bounds.
	ErrPlanningFailed = errors.New("motion planner failed to find path")

	// ErrInvalidConfiguration is matched by errors produced by malformed planner options.
	ErrInvalidConfiguration = errors.New("invalid planner configuration")
)

// NewPlannerFailedError annotates ErrPlanningFailed with the planner and the reason it gave up.
func NewPlannerFailedError(planner PlannerType, reason string) error {
	return errors.Wrapf(ErrPlanningFailed, "%s: %s", planner, reason)
}

func newInvalidOptionError(field string, value interface{}) error {
	return errors.Wrapf(ErrInvalidConfiguration, "%s must be positive, got %v", field, value)
}

func newCanceledError(planner PlannerType, err error) error {
	return errors.Wrapf(err, "%s planning canceled", planner)
}
