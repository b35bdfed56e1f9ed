package stepper

import (
	"context"
	"time"

	"github.com/cjeanneret/rotago/internal/debug"
	"github.com/cjeanneret/rotago/internal/hw/gpio"
)

// Config holds the hardware configuration for a stepper motor.
type Config struct {
	StepPin       int
	DirPin        int
	EnablePin     int // A4988 ENABLE pin (BCM). 0 = not used. Active LOW.
	StepsPerRev   int
	Microstepping int
	StepDelay     time.Duration // shortest half-cycle of the STEP pulse; bounds the top speed
}

// Stepper drives one A4988-style STEP/DIR motor driver.
// A Stepper is not safe for concurrent moves; one axis, one goroutine.
type Stepper struct {
	gpio  gpio.Driver
	cfg   Config
	delay time.Duration // minimum delay between STEP pulse half-cycles
}

// NewStepper creates a new stepper motor controller.
// cfg.StepDelay: if 0, defaults to 1ms.
func NewStepper(g gpio.Driver, cfg Config) *Stepper {
	_ = g.SetupPin(cfg.StepPin, gpio.Output)
	_ = g.SetupPin(cfg.DirPin, gpio.Output)

	delay := cfg.StepDelay
	if delay <= 0 {
		delay = 1 * time.Millisecond
	}

	s := &Stepper{
		gpio:  g,
		cfg:   cfg,
		delay: delay,
	}

	// A4988 ENABLE: active LOW. LOW = enabled, HIGH = disabled.
	if cfg.EnablePin > 0 {
		_ = g.SetupPin(cfg.EnablePin, gpio.Output)
		_ = g.WritePin(cfg.EnablePin, gpio.Low)
	}

	return s
}

// MicrostepsPerRev returns the number of STEP pulses for a full turn.
func (s *Stepper) MicrostepsPerRev() int {
	return s.cfg.StepsPerRev * s.cfg.Microstepping
}

// MoveSteps moves the motor by a number of steps (positive or negative) at
// full speed.
func (s *Stepper) MoveSteps(steps int) error {
	return s.move(context.Background(), steps, s.delay)
}

// MoveStepsTimed spreads the move over d at a constant step rate. When d is
// too short for the motor, the move runs at full speed and takes longer.
// A zero-step move just waits for d. It returns ctx.Err() if cancelled.
func (s *Stepper) MoveStepsTimed(ctx context.Context, steps int, d time.Duration) error {
	if steps == 0 {
		return wait(ctx, d)
	}
	half := d / time.Duration(2*abs(steps))
	if half < s.delay {
		half = s.delay
	}
	return s.move(ctx, steps, half)
}

func (s *Stepper) move(ctx context.Context, steps int, half time.Duration) error {
	if steps == 0 {
		return nil
	}

	dirLevel := gpio.High
	direction := "forward"
	if steps < 0 {
		dirLevel = gpio.Low
		direction = "backward"
		steps = -steps
	}

	debug.Trace("Stepper: moving %d steps (%s) on pin %d, half-cycle %v", steps, direction, s.cfg.StepPin, half)

	if err := s.gpio.WritePin(s.cfg.DirPin, dirLevel); err != nil {
		return err
	}

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.stepPulse(half); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stepper) stepPulse(half time.Duration) error {
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.High); err != nil {
		return err
	}
	time.Sleep(half)
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.Low); err != nil {
		return err
	}
	time.Sleep(half)
	return nil
}

// Enable turns on the motor driver (A4988 ENABLE=LOW). Motors hold position.
func (s *Stepper) Enable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.Low)
}

// Disable turns off the motor driver (A4988 ENABLE=HIGH). Motors freewheel.
func (s *Stepper) Disable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.High)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
