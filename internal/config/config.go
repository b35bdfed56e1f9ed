package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/rotago/internal/logic/animation"
	"github.com/cjeanneret/rotago/internal/logic/rotation"
)

// StepperConfig holds the configuration for a stepper motor.
type StepperConfig struct {
	StepPin       int  `yaml:"step_pin"`
	DirPin        int  `yaml:"dir_pin"`
	EnablePin     int  `yaml:"enable_pin"` // A4988 ENABLE pin (BCM). 0 = not used. Active LOW.
	StepsPerRev   int  `yaml:"steps_per_rev"`
	Microstepping int  `yaml:"microstepping"`
	Invert        bool `yaml:"invert"` // motor mounted so that DIR high turns clockwise
}

// AnimationConfig holds the defaults applied to every rotation.
type AnimationConfig struct {
	DurationS      float64 `yaml:"duration_s"`      // total animation duration (default: 1s)
	DelayS         float64 `yaml:"delay_s"`         // wait before moving (default: 0)
	IterationCount int     `yaml:"iteration_count"` // default: 1
	Direction      string  `yaml:"direction"`       // none, reverse, alternate, alternate-reverse
	FillMode       string  `yaml:"fill_mode"`       // none, forwards, backwards, both
	StepLimitDeg   float64 `yaml:"step_limit_deg"`  // max turn between keyframes (default: 90°)
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	MoveSpeedMs int  `yaml:"move_speed_ms"` // fastest full STEP cycle
	DebugLevel  int  `yaml:"debug_level"`   // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO    bool `yaml:"mock_gpio"`     // use mock GPIO (true=dev/test, false=real Raspberry Pi)
	WebPort     int  `yaml:"web_port"`      // default port for -web without a value (default: 8080)
}

// Config aggregates all application configuration.
type Config struct {
	PanStepper  StepperConfig   `yaml:"pan_stepper"`
	TiltStepper StepperConfig   `yaml:"tilt_stepper"`
	Animation   AnimationConfig `yaml:"animation"`
	Defaults    DefaultsConfig  `yaml:"defaults"`
}

// ValidateConfigPath accepts only .yaml files located in a "configs" directory.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config file must have a .yaml extension: %s", path)
	}
	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("config file must be in a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	for _, axis := range []struct {
		name string
		s    *StepperConfig
	}{{"pan_stepper", &cfg.PanStepper}, {"tilt_stepper", &cfg.TiltStepper}} {
		if axis.s.StepsPerRev <= 0 {
			return nil, fmt.Errorf("%s.steps_per_rev must be > 0", axis.name)
		}
		if axis.s.Microstepping < 0 {
			return nil, fmt.Errorf("%s.microstepping must be >= 0, got %d", axis.name, axis.s.Microstepping)
		}
		if axis.s.Microstepping == 0 {
			axis.s.Microstepping = 1 // full steps
		}
	}

	if cfg.Defaults.MoveSpeedMs <= 0 {
		cfg.Defaults.MoveSpeedMs = 1
	}
	if cfg.Defaults.WebPort == 0 {
		cfg.Defaults.WebPort = 8080
	}
	if cfg.Defaults.WebPort < 0 || cfg.Defaults.WebPort > 65535 {
		return nil, fmt.Errorf("web_port must be 1-65535, got %d", cfg.Defaults.WebPort)
	}

	a := &cfg.Animation
	if !finite(a.DurationS) || a.DurationS < 0 {
		return nil, fmt.Errorf("animation.duration_s must be >= 0, got %g", a.DurationS)
	}
	if a.DurationS == 0 {
		a.DurationS = 1 // default (1s)
	}
	if !finite(a.DelayS) || a.DelayS < 0 {
		return nil, fmt.Errorf("animation.delay_s must be >= 0, got %g", a.DelayS)
	}
	if a.IterationCount < 0 {
		return nil, fmt.Errorf("animation.iteration_count must be >= 1, got %d", a.IterationCount)
	}
	if a.IterationCount == 0 {
		a.IterationCount = 1
	}
	dir, err := animation.ParseDirection(a.Direction)
	if err != nil {
		return nil, fmt.Errorf("animation.direction: %w", err)
	}
	a.Direction = string(dir)
	fill, err := animation.ParseFillMode(a.FillMode)
	if err != nil {
		return nil, fmt.Errorf("animation.fill_mode: %w", err)
	}
	a.FillMode = string(fill)
	if !finite(a.StepLimitDeg) || a.StepLimitDeg < 0 {
		return nil, fmt.Errorf("animation.step_limit_deg must be > 0, got %g", a.StepLimitDeg)
	}
	if a.StepLimitDeg == 0 {
		a.StepLimitDeg = rotation.StepLimit
	}

	return &cfg, nil
}

// StepDelay returns the shortest half-cycle of a STEP pulse.
func (c *Config) StepDelay() time.Duration {
	return time.Duration(c.Defaults.MoveSpeedMs) * time.Millisecond / 2
}

// AnimationDefaults returns the playback defaults as an animation.Config.
func (c *Config) AnimationDefaults() animation.Config {
	return animation.Config{
		Duration:       seconds(c.Animation.DurationS),
		Delay:          seconds(c.Animation.DelayS),
		IterationCount: c.Animation.IterationCount,
		Direction:      animation.Direction(c.Animation.Direction),
		FillMode:       animation.FillMode(c.Animation.FillMode),
	}
}

// StepLimit returns the maximum turn between two keyframes, in degrees.
func (c *Config) StepLimit() float64 {
	return c.Animation.StepLimitDeg
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
