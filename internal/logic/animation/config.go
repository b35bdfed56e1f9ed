// Package animation turns rotation plans into animations handed to a player.
package animation

import (
	"fmt"
	"math"
	"time"
)

// Direction selects which way successive iterations run.
type Direction string

const (
	DirectionNone             Direction = "none" // every iteration runs start -> end
	DirectionReverse          Direction = "reverse"
	DirectionAlternate        Direction = "alternate"
	DirectionAlternateReverse Direction = "alternate-reverse"
)

// Reversed reports whether iteration i (0-based) runs from the end state back
// to the start state.
func (d Direction) Reversed(i int) bool {
	switch d {
	case DirectionReverse:
		return true
	case DirectionAlternate:
		return i%2 == 1
	case DirectionAlternateReverse:
		return i%2 == 0
	default:
		return false
	}
}

// ParseDirection parses a direction name; "" means DirectionNone.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case "":
		return DirectionNone, nil
	case DirectionNone, DirectionReverse, DirectionAlternate, DirectionAlternateReverse:
		return d, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// FillMode selects which state the target keeps outside the active animation.
type FillMode string

const (
	FillNone      FillMode = "none"
	FillForwards  FillMode = "forwards"  // hold the end state afterwards
	FillBackwards FillMode = "backwards" // apply the start state during the delay
	FillBoth      FillMode = "both"
)

// HoldsEnd reports whether the end state is kept after the last iteration.
// The zero FillMode behaves as FillForwards.
func (f FillMode) HoldsEnd() bool {
	return f == "" || f == FillForwards || f == FillBoth
}

// AppliesStart reports whether the first iteration's start state is applied
// before the delay.
func (f FillMode) AppliesStart() bool {
	return f == FillBackwards || f == FillBoth
}

// ParseFillMode parses a fill mode name; "" means FillForwards.
func ParseFillMode(s string) (FillMode, error) {
	switch f := FillMode(s); f {
	case "":
		return FillForwards, nil
	case FillNone, FillForwards, FillBackwards, FillBoth:
		return f, nil
	default:
		return "", fmt.Errorf("unknown fill mode %q", s)
	}
}

// Config is the playback configuration of one animation. It is a plain value:
// merging an override always produces a new Config.
type Config struct {
	Duration       time.Duration
	Delay          time.Duration
	IterationCount int
	Direction      Direction
	FillMode       FillMode
}

// DefaultConfig returns the documented defaults: one second, no delay, a
// single iteration, no direction reversal, end state held.
func DefaultConfig() Config {
	return Config{
		Duration:       1 * time.Second,
		Delay:          0,
		IterationCount: 1,
		Direction:      DirectionNone,
		FillMode:       FillForwards,
	}
}

// WithDuration returns a copy of c using d, or c unchanged when d <= 0.
func (c Config) WithDuration(d time.Duration) Config {
	if d > 0 {
		c.Duration = d
	}
	return c
}

// Validate checks c for values a player cannot honour.
func (c Config) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be > 0, got %v", c.Duration)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must be >= 0, got %v", c.Delay)
	}
	if c.IterationCount < 1 {
		return fmt.Errorf("iteration count must be >= 1, got %d", c.IterationCount)
	}
	if _, err := ParseDirection(string(c.Direction)); err != nil {
		return err
	}
	if _, err := ParseFillMode(string(c.FillMode)); err != nil {
		return err
	}
	return nil
}

// DurationFromSeconds converts an untyped duration (CLI flag, JSON field).
// ok is false for NaN, infinities and values <= 0; callers keep their
// configured duration in that case.
func DurationFromSeconds(s float64) (d time.Duration, ok bool) {
	if math.IsNaN(s) || math.IsInf(s, 0) || s <= 0 {
		return 0, false
	}
	if s > math.MaxInt64/float64(time.Second) {
		return 0, false
	}
	d = time.Duration(s * float64(time.Second))
	return d, d > 0
}
