package inject

import (
	"context"

	"go.viam.com/navcore/control"
)

// Sensor is an injected sensor.
type Sensor struct {
	control.Sensor
	ReadFunc func(ctx context.Context) (float64, error)
}

// Read calls the injected Read or the real version.
func (s *Sensor) Read(ctx context.Context) (float64, error) {
	if s.ReadFunc == nil {
		return s.Sensor.Read(ctx)
	}
	return s.ReadFunc(ctx)
}
