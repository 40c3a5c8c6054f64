// Package trajectory turns planned paths into time stamped motion states.
package trajectory

import (
	"fmt"
	"math"
	"strings"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/navcore/spatialmath"
)

// ErrInvalidConfiguration is matched by errors caused by unusable limits or durations.
var ErrInvalidConfiguration = errors.New("invalid trajectory configuration")

// default values for trajectory generation.
const (
	defaultMaxVelocity       = 1.0
	defaultMaxAcceleration   = 2.0
	defaultSampleRate        = 50.0
	defaultQuinticSampleRate = 100.0

	// minimum number of samples per quintic segment.
	minQuinticSamples = 10
)

// Point is one sample of a trajectory. Velocities and accelerations are in the world frame.
type Point struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
	Vx    float64 `json:"vx"`
	Vy    float64 `json:"vy"`
	Omega float64 `json:"omega"`
	Ax    float64 `json:"ax"`
	Ay    float64 `json:"ay"`
	Time  float64 `json:"time"`
}

// Speed returns the magnitude of the linear velocity.
func (p Point) Speed() float64 {
	return math.Hypot(p.Vx, p.Vy)
}

// Profile selects how speed evolves along a path.
type Profile int

// The supported velocity profiles.
const (
	// TrapezoidalProfile accelerates, cruises and decelerates once over the whole path.
	TrapezoidalProfile Profile = iota
	// QuinticProfile comes to rest at every waypoint using a quintic polynomial per segment.
	QuinticProfile
)

func (p Profile) String() string {
	switch p {
	case TrapezoidalProfile:
		return "trapezoidal"
	case QuinticProfile:
		return "quintic"
	default:
		return "unknown"
	}
}

// ParseProfile converts a profile name into a Profile.
func ParseProfile(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trapezoidal", "trapezoid", "":
		return TrapezoidalProfile, nil
	case "quintic", "smooth":
		return QuinticProfile, nil
	default:
		return 0, errors.Wrapf(ErrInvalidConfiguration, "unknown profile %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Profile) MarshalText() ([]byte, error) {
	if p != TrapezoidalProfile && p != QuinticProfile {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "unknown profile %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Profile) UnmarshalText(text []byte) error {
	parsed, err := ParseProfile(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// GeneratorConfig holds the motion limits and sampling rates of a Generator.
type GeneratorConfig struct {
	MaxVelocity       float64 `json:"max_velocity"`
	MaxAcceleration   float64 `json:"max_acceleration"`
	SampleRate        float64 `json:"sample_rate_hz"`
	QuinticSampleRate float64 `json:"quintic_sample_rate_hz"`
}

// DefaultGeneratorConfig returns the default limits: 1 unit/s, 2 units/s², sampled at 50 Hz (100 Hz for quintic).
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		MaxVelocity:       defaultMaxVelocity,
		MaxAcceleration:   defaultMaxAcceleration,
		SampleRate:        defaultSampleRate,
		QuinticSampleRate: defaultQuinticSampleRate,
	}
}

// Validate ensures all limits are positive and finite.
func (cfg *GeneratorConfig) Validate(path string) error {
	var errs error
	for _, field := range []struct {
		name  string
		value float64
	}{
		{"max_velocity", cfg.MaxVelocity},
		{"max_acceleration", cfg.MaxAcceleration},
		{"sample_rate_hz", cfg.SampleRate},
		{"quintic_sample_rate_hz", cfg.QuinticSampleRate},
	} {
		if !(field.value > 0) || math.IsInf(field.value, 1) {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path,
				errors.Wrapf(ErrInvalidConfiguration, "%s must be positive and finite, got %v", field.name, field.value)))
		}
	}
	return errs
}

// Generator converts paths into trajectories that respect a velocity and acceleration limit.
type Generator struct {
	cfg    GeneratorConfig
	logger golog.Logger
}

// NewGenerator validates cfg and returns a Generator.
func NewGenerator(cfg GeneratorConfig, logger golog.Logger) (*Generator, error) {
	if err := cfg.Validate("trajectory"); err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg, logger: logger}, nil
}

// Config returns the generator's limits.
func (g *Generator) Config() GeneratorConfig {
	return g.cfg
}

// Generate shapes path with the selected profile so that it lasts totalTime seconds.
func (g *Generator) Generate(profile Profile, path *spatialmath.Path, totalTime float64) ([]Point, error) {
	switch profile {
	case TrapezoidalProfile:
		return g.Trapezoidal(path, totalTime)
	case QuinticProfile:
		return g.Quintic(path, totalTime)
	default:
		return nil, errors.Wrapf(ErrInvalidConfiguration, "unsupported profile %d", int(profile))
	}
}

func checkRequest(path *spatialmath.Path, totalTime float64) error {
	if path == nil || path.Len() == 0 {
		return errors.Wrap(ErrInvalidConfiguration, "path has no waypoints")
	}
	if !(totalTime > 0) || math.IsInf(totalTime, 1) {
		return errors.Wrapf(ErrInvalidConfiguration, "total time must be positive and finite, got %v", totalTime)
	}
	return nil
}

// stationary is the trajectory of a path that cannot be travelled: a single resting point at its start.
func stationary(path *spatialmath.Path) []Point {
	start := path.Start()
	return []Point{{X: start.X, Y: start.Y}}
}

// appendSample adds p unless its time does not advance past the last sample.
func appendSample(traj []Point, p Point) []Point {
	if len(traj) > 0 && p.Time <= traj[len(traj)-1].Time {
		return traj
	}
	return append(traj, p)
}

func samplesFor(duration, rate float64, minimum int) int {
	n := int(math.Ceil(duration * rate))
	if n < minimum {
		return minimum
	}
	return n
}

// Duration returns the time stamp of the last sample, 0 for an empty trajectory.
func Duration(traj []Point) float64 {
	if len(traj) == 0 {
		return 0
	}
	return traj[len(traj)-1].Time
}

// MaxSpeed returns the largest sampled speed.
func MaxSpeed(traj []Point) float64 {
	maxSpeed := 0.
	for _, p := range traj {
		maxSpeed = math.Max(maxSpeed, p.Speed())
	}
	return maxSpeed
}

func (p Point) String() string {
	return fmt.Sprintf("t=%.3f (%.3f, %.3f) θ=%.3f v=(%.3f, %.3f) ω=%.3f", p.Time, p.X, p.Y, p.Theta, p.Vx, p.Vy, p.Omega)
}
