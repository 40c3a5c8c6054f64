package inject

import (
	"context"

	"go.viam.com/navcore/control"
)

// Actuator is an injected actuator.
type Actuator struct {
	control.Actuator
	SetFunc func(ctx context.Context, value float64) error
}

// Set calls the injected Set or the real version.
func (a *Actuator) Set(ctx context.Context, value float64) error {
	if a.SetFunc == nil {
		return a.Actuator.Set(ctx, value)
	}
	return a.SetFunc(ctx, value)
}
