package control

import (
	"encoding/json"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

var (
	// ErrInvalidConfiguration is matched by errors caused by unusable gains or limits.
	ErrInvalidConfiguration = errors.New("invalid controller configuration")
	// ErrTuningFailed is returned when a tuning strategy cannot derive gains from a response.
	ErrTuningFailed = errors.New("pid tuning failed")
)

// default output and anti-windup limits applied to configs that do not set them.
const (
	defaultOutputLimit   = 10.0
	defaultIntegralLimit = 10.0
)

// PIDConfig describes the gains and limits of a single PID controller.
type PIDConfig struct {
	Kp            float64 `json:"kp"`
	Ki            float64 `json:"ki"`
	Kd            float64 `json:"kd"`
	OutputMin     float64 `json:"output_min"`
	OutputMax     float64 `json:"output_max"`
	IntegralLimit float64 `json:"integral_limit"`
}

// DefaultPIDConfig returns a config with the given gains and the default limits.
func DefaultPIDConfig(kp, ki, kd float64) PIDConfig {
	return PIDConfig{
		Kp:            kp,
		Ki:            ki,
		Kd:            kd,
		OutputMin:     -defaultOutputLimit,
		OutputMax:     defaultOutputLimit,
		IntegralLimit: defaultIntegralLimit,
	}
}

// Validate ensures the gains are finite, the output range is not inverted and the integral limit is not negative.
func (cfg *PIDConfig) Validate(path string) error {
	var errs error
	for _, field := range []struct {
		name  string
		value float64
	}{
		{"kp", cfg.Kp},
		{"ki", cfg.Ki},
		{"kd", cfg.Kd},
		{"output_min", cfg.OutputMin},
		{"output_max", cfg.OutputMax},
		{"integral_limit", cfg.IntegralLimit},
	} {
		if math.IsNaN(field.value) || math.IsInf(field.value, 0) {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path,
				errors.Wrapf(ErrInvalidConfiguration, "%s must be finite, got %v", field.name, field.value)))
		}
	}
	if cfg.OutputMin > cfg.OutputMax {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			errors.Wrapf(ErrInvalidConfiguration, "output_min (%v) is greater than output_max (%v)", cfg.OutputMin, cfg.OutputMax)))
	}
	if cfg.IntegralLimit < 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			errors.Wrapf(ErrInvalidConfiguration, "integral_limit must not be negative, got %v", cfg.IntegralLimit)))
	}
	return errs
}

// UnmarshalJSON decodes a config, keeping the default limits for fields that are not present.
func (cfg *PIDConfig) UnmarshalJSON(data []byte) error {
	type plainConfig PIDConfig
	decoded := plainConfig(DefaultPIDConfig(0, 0, 0))
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*cfg = PIDConfig(decoded)
	return nil
}

// TuneRequest replaces the gains that are set and keeps the others.
type TuneRequest struct {
	Kp *float64 `json:"kp,omitempty"`
	Ki *float64 `json:"ki,omitempty"`
	Kd *float64 `json:"kd,omitempty"`
}

// apply returns a copy of cfg with the requested gains.
func (req TuneRequest) apply(cfg PIDConfig) PIDConfig {
	if req.Kp != nil {
		cfg.Kp = *req.Kp
	}
	if req.Ki != nil {
		cfg.Ki = *req.Ki
	}
	if req.Kd != nil {
		cfg.Kd = *req.Kd
	}
	return cfg
}
