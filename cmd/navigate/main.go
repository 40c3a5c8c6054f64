// Package main plans a path through the scenario of a config file and prints the resulting trajectory.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/edaniels/golog"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/floats"

	"go.viam.com/navcore/config"
	"go.viam.com/navcore/control"
	"go.viam.com/navcore/motionplan"
	"go.viam.com/navcore/navigation"
	"go.viam.com/navcore/trajectory"
)

var (
	logger           = golog.NewDevelopmentLogger("navigate")
	stdout io.Writer = os.Stdout
)

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"0,required,usage=navigation config file"`
	Planner    string `flag:"planner,usage=planner to use instead of the configured one (astar or rrt)"`
	Profile    string `flag:"profile,usage=velocity profile to use instead of the configured one (trapezoidal or quintic)"`
	Simulate   bool   `flag:"simulate,usage=track the trajectory with simulated axes"`
	Watch      bool   `flag:"watch,usage=apply gain changes from the config file while simulating"`
	Every      int    `flag:"every,default=10,usage=print every nth trajectory point"`
	Histogram  bool   `flag:"histogram,usage=print a histogram of trajectory speeds"`
	Plot       string `flag:"plot,usage=image file to draw the path and trajectory into"`
	LogFile    string `flag:"log-file,usage=also write logs to this rotated file"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Every <= 0 {
		return errors.Errorf("every must be positive, got %d", argsParsed.Every)
	}
	if argsParsed.LogFile != "" {
		var logFile io.Closer
		logger, logFile = withLogFile(logger, argsParsed.LogFile)
		defer func() {
			err = multierr.Combine(err, logFile.Close())
		}()
	}

	cfg, err := config.Read(ctx, argsParsed.ConfigFile, logger)
	if err != nil {
		return err
	}
	if cfg.Scenario == nil {
		return errors.Errorf("config %q has no scenario to navigate", argsParsed.ConfigFile)
	}
	req := cfg.Scenario.Request()
	if argsParsed.Planner != "" {
		plannerType, err := motionplan.ParsePlannerType(argsParsed.Planner)
		if err != nil {
			return err
		}
		req.PlannerType = &plannerType
	}
	if argsParsed.Profile != "" {
		profile, err := trajectory.ParseProfile(argsParsed.Profile)
		if err != nil {
			return err
		}
		req.Profile = &profile
	}

	nav, err := navigation.NewNavigator(cfg.Navigation, logger.Named("navigation"))
	if err != nil {
		return err
	}
	res, err := nav.NavigateTo(ctx, req)
	if err != nil {
		return err
	}
	logger.Infow("navigated",
		"planner", res.Planner,
		"profile", res.Profile,
		"waypoints", res.Path.Len(),
		"length", res.Path.TotalLength(),
		"total_time", res.TotalTime,
		"points", len(res.Trajectory),
	)
	fmt.Fprintln(stdout, renderTrajectory(res.Trajectory, argsParsed.Every))
	if argsParsed.Histogram {
		if err := printSpeedHistogram(stdout, res.Trajectory); err != nil {
			return err
		}
	}
	if argsParsed.Plot != "" {
		if err := savePlot(argsParsed.Plot, cfg.Scenario, res); err != nil {
			return errors.Wrapf(err, "cannot plot to %q", argsParsed.Plot)
		}
		logger.Infow("saved plot", "file", argsParsed.Plot)
	}

	if !argsParsed.Simulate {
		return nil
	}
	metrics, err := simulate(ctx, cfg, res.Trajectory, argsParsed.Watch, logger)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, renderMetrics(metrics))
	return nil
}

// simulate tracks traj with one simulated axis per configured controller and returns each axis' metrics.
func simulate(
	ctx context.Context,
	cfg *config.Config,
	traj []trajectory.Point,
	watch bool,
	logger golog.Logger,
) (metrics map[string]control.PerformanceMetrics, err error) {
	multi, err := control.NewMultiPIDController(cfg.Axes, logger.Named("pid"))
	if err != nil {
		return nil, err
	}
	dt := 1 / cfg.Loop.Frequency
	initial := map[string]float64{}
	if len(traj) > 0 {
		initial = map[string]float64{control.AxisX: traj[0].X, control.AxisY: traj[0].Y, control.AxisTheta: traj[0].Theta}
	}
	axes := make([]control.Axis, 0, len(cfg.Axes))
	for _, name := range multi.Names() {
		plant := &simulatedAxis{position: initial[name], dt: dt}
		axes = append(axes, control.Axis{Name: name, Sensor: plant, Actuator: plant})
	}
	loop, err := control.NewLoop(logger.Named("loop"), cfg.Loop, multi, axes)
	if err != nil {
		return nil, err
	}

	if watch {
		watcher, watchErr := config.NewWatcher(ctx, cfg.ConfigFilePath, logger.Named("watcher"))
		if watchErr != nil {
			return nil, watchErr
		}
		cancelCtx, cancel := context.WithCancel(ctx)
		var activeBackgroundWorkers sync.WaitGroup
		activeBackgroundWorkers.Add(1)
		utils.ManagedGo(func() {
			applyGains(cancelCtx, watcher, multi, logger)
		}, activeBackgroundWorkers.Done)
		defer func() {
			cancel()
			activeBackgroundWorkers.Wait()
			err = multierr.Combine(err, watcher.Close())
		}()
	}

	if err := loop.Run(ctx, control.TrajectorySetpoints(traj)); err != nil {
		return nil, err
	}
	logger.Infow("tracked trajectory", "ticks", loop.Ticks(), "frequency", loop.Frequency())
	return multi.MetricsAll(), nil
}

// applyGains swaps in the gains of every config the watcher reports until ctx is done.
func applyGains(ctx context.Context, watcher config.Watcher, multi *control.MultiPIDController, logger golog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg := <-watcher.Config():
			if err := multi.SetConfigs(newCfg.Axes); err != nil {
				logger.Warnw("could not apply new gains", "error", err)
				continue
			}
			logger.Infow("applied new gains", "axes", newCfg.AxisNames())
		}
	}
}

// simulatedAxis is an integrator: the commanded value is a velocity applied over one period.
type simulatedAxis struct {
	mu       sync.Mutex
	position float64
	dt       float64
}

func (s *simulatedAxis) Read(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, nil
}

func (s *simulatedAxis) Set(ctx context.Context, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position += value * s.dt
	return nil
}

func renderTrajectory(traj []trajectory.Point, every int) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Time", "X", "Y", "Theta", "Vx", "Vy", "Omega"})
	for i, p := range traj {
		if i%every != 0 && i != len(traj)-1 {
			continue
		}
		t.AppendRow(table.Row{
			i,
			fmt.Sprintf("%.3f", p.Time),
			fmt.Sprintf("%.3f", p.X),
			fmt.Sprintf("%.3f", p.Y),
			fmt.Sprintf("%.3f", p.Theta),
			fmt.Sprintf("%.3f", p.Vx),
			fmt.Sprintf("%.3f", p.Vy),
			fmt.Sprintf("%.3f", p.Omega),
		})
	}
	return t.Render()
}

// speed histogram layout.
const (
	histogramBins  = 10
	histogramWidth = 40
)

func printSpeedHistogram(w io.Writer, traj []trajectory.Point) error {
	speeds := make([]float64, 0, len(traj))
	for _, p := range traj {
		speeds = append(speeds, p.Speed())
	}
	if len(speeds) == 0 {
		return nil
	}
	fmt.Fprintln(w, "speed")
	if len(speeds) < 2 || floats.Min(speeds) == floats.Max(speeds) {
		// a single bucket cannot be scaled
		_, err := fmt.Fprintf(w, "%d points at %.3f\n", len(speeds), floats.Max(speeds))
		return err
	}
	return histogram.Fprint(w, histogram.Hist(histogramBins, speeds), histogram.Linear(histogramWidth))
}

func renderMetrics(metrics map[string]control.PerformanceMetrics) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Axis", "RMS Error", "Steady State Error", "Overshoot", "Settling Time"})
	names := lo.Keys(metrics)
	sort.Strings(names)
	for _, name := range names {
		m := metrics[name]
		settling := "-"
		if m.Settled {
			settling = fmt.Sprintf("%.3f", m.SettlingTime)
		}
		t.AppendRow(table.Row{
			name,
			fmt.Sprintf("%.4f", m.RMSError),
			fmt.Sprintf("%.4f", m.SteadyStateError),
			fmt.Sprintf("%.4f", m.Overshoot),
			settling,
		})
	}
	return t.Render()
}
