package main

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cjeanneret/rotago/internal/config"
	"github.com/cjeanneret/rotago/internal/debug"
	"github.com/cjeanneret/rotago/internal/hw/gpio"
	"github.com/cjeanneret/rotago/internal/logic/animation"
	"github.com/cjeanneret/rotago/internal/logic/motion"
	"github.com/cjeanneret/rotago/internal/logic/rotation"
)

func baseOptions() options {
	return options{target: motion.AxisPan}
}

// ---------- options.validate ----------

func TestValidate_Valid(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*options)
	}{
		{"nothing_set", func(o *options) {}},
		{"pan", func(o *options) { o.degrees = 270; o.clockwise = true }},
		{"tilt_target", func(o *options) { o.degrees = 45; o.target = motion.AxisTilt }},
		{"both_axes", func(o *options) { o.degrees = 90; o.tiltDegrees = 30 }},
		{"duration", func(o *options) { o.degrees = 90; o.durationS = 2.5 }},
		{"plan_out", func(o *options) { o.degrees = 360; o.planOut = "plan.yaml" }},
		{"plan_in", func(o *options) { o.planIn = "plan.yaml" }},
		{"tiny_angle", func(o *options) { o.degrees = 0.001 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := baseOptions()
			tc.mod(&o)
			if err := o.validate(); err != nil {
				t.Errorf("expected valid, got: %v", err)
			}
		})
	}
}

func TestValidate_Invalid(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*options)
	}{
		{"negative_degrees", func(o *options) { o.degrees = -90 }},
		{"nan_degrees", func(o *options) { o.degrees = math.NaN() }},
		{"inf_degrees", func(o *options) { o.degrees = math.Inf(1) }},
		{"negative_tilt", func(o *options) { o.tiltDegrees = -1 }},
		{"nan_tilt", func(o *options) { o.tiltDegrees = math.NaN() }},
		{"negative_duration", func(o *options) { o.durationS = -1 }},
		{"nan_duration", func(o *options) { o.durationS = math.NaN() }},
		{"unknown_target", func(o *options) { o.target = "roll" }},
		{"plan_in_and_out", func(o *options) { o.degrees = 90; o.planIn = "a.yaml"; o.planOut = "b.yaml" }},
		{"plan_out_without_degrees", func(o *options) { o.planOut = "b.yaml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := baseOptions()
			tc.mod(&o)
			if err := o.validate(); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

// ---------- options.requests ----------

func TestRequests(t *testing.T) {
	o := baseOptions()
	o.degrees = 180
	o.clockwise = true
	o.tiltDegrees = 30
	o.durationS = 3

	reqs, err := o.requests()
	if err != nil {
		t.Fatalf("requests: %v", err)
	}
	want := []animation.Request{
		{Target: motion.AxisPan, Degrees: 180, Clockwise: true, Duration: 3 * time.Second},
		{Target: motion.AxisTilt, Degrees: 30, Clockwise: false, Duration: 3 * time.Second},
	}
	if len(reqs) != len(want) {
		t.Fatalf("requests = %+v, want %+v", reqs, want)
	}
	for i := range want {
		if reqs[i] != want[i] {
			t.Errorf("request %d = %+v, want %+v", i, reqs[i], want[i])
		}
	}
}

func TestRequests_TargetTilt(t *testing.T) {
	o := baseOptions()
	o.degrees = 45
	o.target = motion.AxisTilt

	reqs, err := o.requests()
	if err != nil {
		t.Fatalf("requests: %v", err)
	}
	if len(reqs) != 1 || reqs[0].Target != motion.AxisTilt || reqs[0].Duration != 0 {
		t.Errorf("requests = %+v, want one tilt request with configured duration", reqs)
	}
}

func TestRequests_Errors(t *testing.T) {
	o := baseOptions()
	if _, err := o.requests(); err == nil {
		t.Error("no degrees: expected error")
	}

	o.degrees = 45
	o.target = motion.AxisTilt
	o.tiltDegrees = 10
	if _, err := o.requests(); err == nil {
		t.Error("tilt given twice: expected error")
	}
}

// ---------- webPortFlag ----------

func TestWebPortFlag(t *testing.T) {
	var w webPortFlag
	if got := w.port(8080); got != 0 {
		t.Errorf("unset: port = %d, want 0", got)
	}
	if err := w.Set(""); err != nil {
		t.Fatalf("Set(\"\"): %v", err)
	}
	if got := w.port(8081); got != 8081 {
		t.Errorf("-web=: port = %d, want configured 8081", got)
	}
	if err := w.Set("8980"); err != nil {
		t.Fatalf("Set(8980): %v", err)
	}
	if got := w.port(8081); got != 8980 {
		t.Errorf("-web 8980: port = %d, want 8980", got)
	}
	if w.String() != "8980" {
		t.Errorf("String() = %q, want 8980", w.String())
	}
}

func TestWebPortFlag_Invalid(t *testing.T) {
	for _, s := range []string{"abc", "0", "-1", "65536"} {
		var w webPortFlag
		if err := w.Set(s); err == nil {
			t.Errorf("Set(%q): expected error", s)
		}
	}
}

// ---------- wiring ----------

func loadDefaultConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join("..", "..", "configs", "default.yaml"))
	if err != nil {
		t.Fatalf("load default config: %v", err)
	}
	return cfg
}

func TestNewAxes(t *testing.T) {
	cfg := loadDefaultConfig(t)
	axes := newAxes(&gpio.MockDriver{}, cfg)
	if len(axes) != 2 || axes[0].Name != motion.AxisPan || axes[1].Name != motion.AxisTilt {
		t.Fatalf("axes = %+v, want pan and tilt", axes)
	}
	if got := axes[0].Motor.MicrostepsPerRev(); got != 3200 {
		t.Errorf("pan microsteps/rev = %d, want 3200", got)
	}
	if pan, tilt := axes[0].Converter.StepsFromAngle(90), axes[1].Converter.StepsFromAngle(90); pan != -tilt {
		t.Errorf("inverted tilt: pan=%d tilt=%d, want opposite signs", pan, tilt)
	}
}

func TestWritePlanThenPlay(t *testing.T) {
	o := baseOptions()
	o.degrees = 180
	o.planOut = filepath.Join(t.TempDir(), "half.yaml.zst")
	if err := writePlan(o, rotation.StepLimit); err != nil {
		t.Fatalf("writePlan: %v", err)
	}

	drv := &gpio.MockDriver{}
	cfg := loadDefaultConfig(t)
	cfg.PanStepper.Microstepping = 1
	player := motion.NewPlayer(newAxes(drv, cfg)...)
	defer player.Close()
	defaults := animation.DefaultConfig()
	defaults.Duration = 10 * time.Millisecond
	ctrl := motion.NewController(player, animation.NewRotator(player, defaults, 0))

	o.planIn, o.planOut = o.planOut, ""
	if err := playPlan(context.Background(), ctrl, o, defaults, rotation.StepLimit); err != nil {
		t.Fatalf("playPlan: %v", err)
	}
	// 180° at 200 steps/rev.
	if got := drv.Rises(cfg.PanStepper.StepPin); got != 100 {
		t.Errorf("pan step pulses = %d, want 100", got)
	}
}

func TestPlayPlan_MissingFile(t *testing.T) {
	o := baseOptions()
	o.planIn = filepath.Join(t.TempDir(), "missing.yaml")
	if err := playPlan(context.Background(), nil, o, animation.DefaultConfig(), rotation.StepLimit); err == nil {
		t.Error("expected error for missing plan file")
	}
}

func TestWritePlan_PrintsSummary(t *testing.T) {
	var buf bytes.Buffer
	debug.SetOutput(&buf)
	debug.Init(debug.LevelVerbose)
	t.Cleanup(func() {
		debug.Init(debug.LevelOff)
		debug.SetOutput(os.Stdout)
	})

	o := baseOptions()
	o.degrees = 270
	o.clockwise = true
	o.planOut = filepath.Join(t.TempDir(), "turn.yaml")
	if err := writePlan(o, rotation.StepLimit); err != nil {
		t.Fatalf("writePlan: %v", err)
	}

	got := buf.String()
	for _, want := range []string{"Plan written to " + o.planOut, "Keyframes = 3", "keyframe 2: key=100 rotation=-270°"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}
