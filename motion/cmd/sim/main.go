// Package main runs the motion primitives against a simulated drivetrain.
package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/drivecore/drivecore/components/drivetrain"
	"github.com/drivecore/drivecore/components/drivetrain/fake"
	"github.com/drivecore/drivecore/config"
	"github.com/drivecore/drivecore/control"
	"github.com/drivecore/drivecore/motion"
	"github.com/drivecore/drivecore/odometry"
	rutils "github.com/drivecore/drivecore/utils"
)

var logger = golog.NewDevelopmentLogger("sim")

// snapshotEvery is how many ticks pass between logged arc snapshots.
const snapshotEvery = 25

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"config,usage=robot config file"`
	PlotFile   string `flag:"plot,usage=write the trajectory to this png"`
	MaxTicks   int    `flag:"max-ticks,default=6000,usage=tick budget per primitive"`
	Debug      bool   `flag:"debug,usage=log arc snapshots"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Debug {
		logger = golog.NewDebugLogger("sim")
	}

	cfg := config.Default()
	if argsParsed.ConfigFile != "" {
		read, err := config.Read(ctx, argsParsed.ConfigFile, logger)
		if err != nil {
			return err
		}
		cfg = *read
	}

	res, err := runSim(ctx, cfg, argsParsed.MaxTicks, argsParsed.Debug, logger)
	if err != nil {
		return err
	}
	logger.Info("\n" + summary(res.steps))
	if argsParsed.PlotFile != "" {
		if err := savePlot(argsParsed.PlotFile, res.trace); err != nil {
			return err
		}
		logger.Infow("wrote trajectory", "path", argsParsed.PlotFile)
	}
	return nil
}

type step struct {
	name    string
	prim    motion.Primitive
	target  r2.Point
	heading float64
	ticks   int
	done    bool

	// posError is the distance from target when the step ends, NaN for turns.
	posError float64
	// headingErr is the signed heading error when a turn ends, NaN for drives.
	headingErr float64
	// effort is the mean absolute wheel power over the step.
	effort float64
}

type result struct {
	steps []step
	trace plotter.XYs
}

type rig struct {
	mock   *clock.Mock
	dt     *fake.Drivetrain
	odom   *odometry.Odometry
	motors drivetrain.Motors
	runner *motion.Runner
	ctrl   *motion.Controllers
}

func newRig(ctx context.Context, cfg config.Config, logger golog.Logger) (*rig, error) {
	mock := clock.NewMock()
	dt, err := fake.New(fake.Config{
		TicksPerInch: cfg.TicksPerInch,
		TrackWidth:   cfg.TrackWidth,
		MaxSpeed:     cfg.Sim.MaxSpeed,
	})
	if err != nil {
		return nil, errors.Wrap(err, "simulated drivetrain")
	}
	dt.SetPose(0, 0, cfg.InitialHeading)

	odom, err := odometry.New(dt, cfg.TrackWidth, cfg.TicksPerInch, logger)
	if err != nil {
		return nil, err
	}
	odom.SetXAxisDir(cfg.XAxisDir)
	odom.SetRotationDir(cfg.RotationDir)
	odom.SetPose(0, 0, cfg.InitialHeading)
	if err := odom.Rebase(ctx); err != nil {
		return nil, err
	}

	var motors drivetrain.Motors = dt
	if cfg.SlewRate > 0 {
		motors = drivetrain.NewSlewed(dt, control.NewSlew(cfg.SlewRate, mock), control.NewSlew(cfg.SlewRate, mock))
	}

	ctrl, err := motion.NewControllers(cfg.PIDs, mock)
	if err != nil {
		return nil, err
	}
	runner, err := motion.NewRunner(odom, motors, cfg.FrequencyHz, mock, logger)
	if err != nil {
		return nil, err
	}
	return &rig{mock: mock, dt: dt, odom: odom, motors: motors, runner: runner, ctrl: ctrl}, nil
}

// script is a turn to face +x, a drive to a point, a line back along y=24 and a
// clockwise half circle up to (0, 48). The line is driven in reverse, so the robot
// still faces roughly +x at (0, 24) and runs the arc backwards.
func (r *rig) script(cfg config.Config) []step {
	const wait = 100 * time.Millisecond

	turn := motion.NewTurn(r.odom, r.motors, r.ctrl, r.mock)
	turn.SetLimit(cfg.TurnPowerLimit)
	turn.Init(rutils.DegToRad(0), wait)

	point := motion.NewPointDrive(r.odom, r.motors, r.ctrl, r.mock)
	point.Init(r2.Point{X: 24, Y: 24}, wait)

	line := motion.NewLineDrive(r.odom, r.motors, r.ctrl, r.mock)
	line.Init(r2.Point{X: 24, Y: 24}, r2.Point{X: 0, Y: 24}, wait)

	arc := motion.NewArc(r.odom, r.motors, r.ctrl, r.mock)
	arc.Init(r2.Point{X: 0, Y: 24}, r2.Point{X: 0, Y: 48}, 12, -1, wait)

	return []step{
		{name: "turn", prim: turn, posError: math.NaN()},
		{name: "point", prim: point, target: point.Target()},
		{name: "line", prim: line, target: line.Target()},
		{name: "arc", prim: arc, target: arc.Target()},
	}
}

func runSim(ctx context.Context, cfg config.Config, maxTicks int, debug bool, logger golog.Logger) (*result, error) {
	if maxTicks <= 0 {
		return nil, errors.Errorf("max ticks must be positive, got %d", maxTicks)
	}
	r, err := newRig(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	period := r.runner.Period()

	res := &result{}
	x, y, _ := r.dt.Pose()
	res.trace = append(res.trace, plotter.XY{X: x, Y: y})

	for _, s := range r.script(cfg) {
		arc, isArc := s.prim.(*motion.Arc)
		var powers []float64
		for s.ticks < maxTicks && !s.done {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			r.mock.Add(period)
			r.dt.Advance(period)
			s.ticks++
			if s.done, err = r.runner.Step(ctx, s.prim); err != nil {
				return nil, errors.Wrapf(err, "%s step", s.name)
			}
			x, y, _ := r.dt.Pose()
			res.trace = append(res.trace, plotter.XY{X: x, Y: y})
			l, rt := r.dt.Powers()
			powers = append(powers, (math.Abs(float64(l))+math.Abs(float64(rt)))/2)

			if debug && isArc && s.ticks%snapshotEvery == 0 {
				snap, err := arc.Snapshot(ctx, r.dt)
				if err != nil {
					return nil, err
				}
				motion.LogSnapshot(logger, snap)
			}
		}
		if !s.done {
			logger.Warnw("primitive did not finish", "name", s.name, "ticks", s.ticks)
		}

		if s.effort, err = stats.Mean(powers); err != nil {
			return nil, errors.Wrapf(err, "%s effort", s.name)
		}
		pose := r.odom.Pose()
		s.heading = pose.Heading
		s.headingErr = math.NaN()
		if turn, ok := s.prim.(*motion.Turn); ok {
			s.headingErr = rutils.AngleDiffRad(turn.Target(), pose.Heading)
		}
		if !math.IsNaN(s.posError) {
			s.posError = floats.Distance([]float64{pose.X, pose.Y}, []float64{s.target.X, s.target.Y}, 2)
		}
		res.steps = append(res.steps, s)
	}
	if err := drivetrain.Stop(ctx, r.motors); err != nil {
		return nil, err
	}
	return res, nil
}

// summary renders one row per step.
func summary(steps []step) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Step", "Ticks", "Done", "Position Error (in)", "Heading (deg)", "Heading Error (deg)", "Mean Power"})
	for _, s := range steps {
		posErr, headingErr := "-", "-"
		if !math.IsNaN(s.posError) {
			posErr = fmt.Sprintf("%.2f", s.posError)
		}
		if !math.IsNaN(s.headingErr) {
			headingErr = fmt.Sprintf("%.1f", rutils.RadToDeg(s.headingErr))
		}
		t.AppendRow(table.Row{
			s.name, s.ticks, s.done, posErr,
			fmt.Sprintf("%.1f", rutils.RadToDeg(rutils.WrapRad(s.heading))),
			headingErr,
			fmt.Sprintf("%.0f", s.effort),
		})
	}
	return t.Render()
}

func savePlot(path string, trace plotter.XYs) error {
	p := plot.New()
	p.Title.Text = "Simulated trajectory"
	p.X.Label.Text = "x (in)"
	p.Y.Label.Text = "y (in)"

	line, err := plotter.NewLine(trace)
	if err != nil {
		return err
	}
	line.LineStyle.Width = vg.Points(2)
	p.Add(line, plotter.NewGrid())

	return errors.Wrapf(p.Save(6*vg.Inch, 6*vg.Inch, path), "saving plot to %q", path)
}
