package geometry

import (
	"math"

	"github.com/cjeanneret/rotago/internal/config"
)

// AngleConverter converts absolute axis angles to motor microstep positions.
// Positive angles are counter-clockwise; unless the axis is inverted they map
// to forward (DIR high) steps.
type AngleConverter struct {
	stepsPerDegree float64
}

// NewAngleConverter creates a converter for one axis.
func NewAngleConverter(cfg config.StepperConfig) *AngleConverter {
	microstepsPerRev := float64(cfg.StepsPerRev * cfg.Microstepping)
	spd := microstepsPerRev / 360.0
	if cfg.Invert {
		spd = -spd
	}
	return &AngleConverter{stepsPerDegree: spd}
}

// StepsPerDegree returns the signed number of microsteps per degree.
func (c *AngleConverter) StepsPerDegree() float64 {
	return c.stepsPerDegree
}

// StepsFromAngle converts an absolute angle (degrees) to the nearest
// microstep position.
func (c *AngleConverter) StepsFromAngle(angleDegrees float64) int {
	return int(math.Round(angleDegrees * c.stepsPerDegree))
}

// SegmentSteps returns the steps needed to go from one absolute angle to
// another. Both ends are rounded to positions first, so consecutive segments
// add up to the exact total without drift.
func (c *AngleConverter) SegmentSteps(fromDegrees, toDegrees float64) int {
	return c.StepsFromAngle(toDegrees) - c.StepsFromAngle(fromDegrees)
}
