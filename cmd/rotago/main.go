package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/cjeanneret/rotago/internal/config"
	"github.com/cjeanneret/rotago/internal/debug"
	"github.com/cjeanneret/rotago/internal/hw/gpio"
	"github.com/cjeanneret/rotago/internal/hw/stepper"
	"github.com/cjeanneret/rotago/internal/logic/animation"
	"github.com/cjeanneret/rotago/internal/logic/geometry"
	"github.com/cjeanneret/rotago/internal/logic/motion"
	"github.com/cjeanneret/rotago/internal/logic/rotation"
	"github.com/cjeanneret/rotago/internal/web"
)

// options holds the parsed command line.
type options struct {
	configPath    string
	degrees       float64
	clockwise     bool
	target        string
	tiltDegrees   float64
	tiltClockwise bool
	durationS     float64
	planOut       string
	planIn        string
	web           webPortFlag
}

func main() {
	var o options
	flag.Var(&o.web, "web", "start web server; -web= uses defaults.web_port, -web 8980 for a custom port")
	flag.StringVar(&o.configPath, "config", filepath.Join("configs", "default.yaml"), "path to config file")
	flag.Float64Var(&o.degrees, "degrees", 0, "rotate -target by this many degrees (> 0)")
	flag.BoolVar(&o.clockwise, "clockwise", false, "rotate -target clockwise")
	flag.StringVar(&o.target, "target", motion.AxisPan, "axis turned by -degrees: pan or tilt")
	flag.Float64Var(&o.tiltDegrees, "tilt_degrees", 0, "also rotate the tilt axis by this many degrees")
	flag.BoolVar(&o.tiltClockwise, "tilt_clockwise", false, "rotate the tilt axis clockwise")
	flag.Float64Var(&o.durationS, "duration", 0, "override animation duration in seconds (0 = config)")
	flag.StringVar(&o.planOut, "plan_out", "", "write the plan for -degrees to this file (.yaml or .yaml.zst) and exit")
	flag.StringVar(&o.planIn, "plan_in", "", "play a plan file on -target instead of planning")
	flag.Parse()

	if err := o.validate(); err != nil {
		log.Fatalf("invalid arguments: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.ValidateConfigPath(o.configPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", o.configPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	if o.planOut != "" {
		if err := writePlan(o, cfg.StepLimit()); err != nil {
			log.Fatalf("write plan failed: %v", err)
		}
		return
	}

	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	player := motion.NewPlayer(newAxes(gpioDriver, cfg)...)
	defer player.Close()
	rotator := animation.NewRotator(player, cfg.AnimationDefaults(), cfg.StepLimit())
	ctrl := motion.NewController(player, rotator)

	if port := o.web.port(cfg.Defaults.WebPort); port > 0 {
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.NewWriter(broadcaster)))

		rotate := func(req animation.Request, cb animation.Callbacks) (rotation.Sequence, error) {
			return rotator.Rotate(ctx, req, nil, cb)
		}
		view := web.NewConfigView(rotator.Defaults(), rotator.StepLimit(), player.Axes())
		srv, err := web.NewServer(fmt.Sprintf(":%d", port), broadcaster, rotate, view)
		if err != nil {
			log.Fatalf("web server: %v", err)
		}
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}
		return
	}

	if o.planIn != "" {
		if err := playPlan(ctx, ctrl, o, rotator.Defaults(), rotator.StepLimit()); err != nil {
			log.Fatalf("play plan failed: %v", err)
		}
		return
	}

	reqs, err := o.requests()
	if err != nil {
		log.Fatalf("invalid arguments: %v", err)
	}
	debug.Section("Rotating")
	if err := ctrl.RotateAll(ctx, reqs...); err != nil {
		log.Fatalf("rotation failed: %v", err)
	}
	debug.Section("Rotation Complete")
}

// validate checks flag values that do not depend on the config file.
func (o *options) validate() error {
	if err := checkDegrees("degrees", o.degrees); err != nil {
		return err
	}
	if err := checkDegrees("tilt_degrees", o.tiltDegrees); err != nil {
		return err
	}
	if math.IsNaN(o.durationS) || math.IsInf(o.durationS, 0) || o.durationS < 0 {
		return fmt.Errorf("duration must be a positive number of seconds, got %g", o.durationS)
	}
	if o.target != motion.AxisPan && o.target != motion.AxisTilt {
		return fmt.Errorf("target must be %q or %q, got %q", motion.AxisPan, motion.AxisTilt, o.target)
	}
	if o.planIn != "" && o.planOut != "" {
		return errors.New("plan_in and plan_out are mutually exclusive")
	}
	if o.planOut != "" && o.degrees == 0 {
		return errors.New("plan_out needs -degrees")
	}
	return nil
}

// checkDegrees accepts 0 (flag not set) or a positive finite angle.
func checkDegrees(name string, v float64) error {
	if v == 0 {
		return nil
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%s must be a positive number of degrees, got %g", name, v)
	}
	return nil
}

// duration returns the -duration override; 0 keeps the configured duration.
func (o *options) duration() time.Duration {
	d, _ := animation.DurationFromSeconds(o.durationS)
	return d
}

// requests turns -degrees/-target and -tilt_degrees into one request per axis.
func (o *options) requests() ([]animation.Request, error) {
	var reqs []animation.Request
	if o.degrees > 0 {
		reqs = append(reqs, animation.Request{
			Target:    o.target,
			Degrees:   o.degrees,
			Clockwise: o.clockwise,
			Duration:  o.duration(),
		})
	}
	if o.tiltDegrees > 0 {
		if o.degrees > 0 && o.target == motion.AxisTilt {
			return nil, errors.New("tilt_degrees conflicts with -target tilt")
		}
		reqs = append(reqs, animation.Request{
			Target:    motion.AxisTilt,
			Degrees:   o.tiltDegrees,
			Clockwise: o.tiltClockwise,
			Duration:  o.duration(),
		})
	}
	if len(reqs) == 0 {
		return nil, errors.New("nothing to do: set -degrees, -tilt_degrees, -plan_in or -web")
	}
	return reqs, nil
}

// newAxes builds the pan and tilt axes from the stepper sections.
func newAxes(g gpio.Driver, cfg *config.Config) []*motion.Axis {
	stepDelay := cfg.StepDelay()
	axis := func(name string, sc config.StepperConfig) *motion.Axis {
		debug.PrintStruct(name+" stepper config", sc)
		return &motion.Axis{
			Name: name,
			Motor: stepper.NewStepper(g, stepper.Config{
				StepPin:       sc.StepPin,
				DirPin:        sc.DirPin,
				EnablePin:     sc.EnablePin,
				StepsPerRev:   sc.StepsPerRev,
				Microstepping: sc.Microstepping,
				StepDelay:     stepDelay,
			}),
			Converter: geometry.NewAngleConverter(sc),
		}
	}
	return []*motion.Axis{
		axis(motion.AxisPan, cfg.PanStepper),
		axis(motion.AxisTilt, cfg.TiltStepper),
	}
}

// writePlan saves the plan for -degrees to -plan_out.
func writePlan(o options, stepLimit float64) error {
	plan, err := rotation.NewPlanFile(o.degrees, o.clockwise, stepLimit)
	if err != nil {
		return err
	}
	if err := rotation.WritePlan(plan, o.planOut); err != nil {
		return err
	}
	printPlan("Plan written to "+o.planOut, plan)
	return nil
}

// playPlan plays the keyframes of -plan_in on -target. Keyframes may not
// turn further than stepLimit.
func playPlan(ctx context.Context, ctrl *motion.Controller, o options, defaults animation.Config, stepLimit float64) error {
	plan, err := rotation.ReadPlan(o.planIn, stepLimit)
	if err != nil {
		return err
	}
	printPlan("Playing "+o.planIn+" on "+o.target, plan)
	return ctrl.PlayAndWait(ctx, o.target, plan.Keyframes, defaults.WithDuration(o.duration()))
}

func printPlan(title string, plan *rotation.PlanFile) {
	debug.Summary(title)
	debug.Value("Degrees", plan.Degrees)
	debug.Value("Clockwise", plan.Clockwise)
	debug.Value("Step limit", plan.StepLimit)
	debug.Value("Keyframes", len(plan.Keyframes))
	for i, kf := range plan.Keyframes {
		debug.Keyframe(i, kf.Key, kf.Rotation)
	}
}

// webPortFlag implements flag.Value for -web: unset = disabled, -web= uses the
// configured port, -web 8980 picks a port.
type webPortFlag struct {
	val        int
	useDefault bool
}

func (w *webPortFlag) String() string {
	if w == nil || w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.useDefault = true
		w.val = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	w.useDefault = false
	return nil
}

// port returns the port to listen on, or 0 when -web was not given.
func (w *webPortFlag) port(defaultPort int) int {
	if w.useDefault {
		return defaultPort
	}
	return w.val
}
