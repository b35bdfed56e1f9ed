// Package rotation splits a rotation into keyframes that a player can
// interpolate without ambiguity.
package rotation

import (
	"fmt"
	"math"

	"github.com/cjeanneret/rotago/internal/debug"
)

// StepLimit is the largest turn, in degrees, between two consecutive keyframes.
// Past 90° the shortest-path interpolation of a transform becomes ambiguous.
const StepLimit = 90.0

// FinalKey is the timing key of the last keyframe of every plan.
const FinalKey = 100

// Keyframe pairs a timing key (0-100, share of the total duration) with the
// absolute angle the target must have reached at that point.
type Keyframe struct {
	Key      int     `yaml:"key" json:"key"`
	Rotation float64 `yaml:"rotation" json:"rotation"` // cumulative signed degrees, positive = counter-clockwise
}

// Sequence is an ordered list of keyframes, ascending by Key.
type Sequence []Keyframe

// Plan splits totalDegrees into keyframes no more than StepLimit apart.
func Plan(totalDegrees float64, clockwise bool) (Sequence, error) {
	return PlanWithLimit(totalDegrees, clockwise, StepLimit)
}

// PlanWithLimit is Plan with an explicit step limit.
//
// Each interior keyframe advances the timing key by the floored share of the
// total rotation it covers. The last keyframe is always forced to FinalKey, so
// rounding losses are absorbed by the last step.
func PlanWithLimit(totalDegrees float64, clockwise bool, stepLimit float64) (Sequence, error) {
	if !positiveFinite(totalDegrees) {
		return nil, &InvalidRotationError{Degrees: totalDegrees}
	}
	if !positiveFinite(stepLimit) {
		return nil, fmt.Errorf("%w: %g", ErrInvalidStepLimit, stepLimit)
	}

	sign := 1.0
	if clockwise {
		sign = -1.0
	}
	// Share of the progress range given to each degree.
	tick := float64(FinalKey) / totalDegrees
	debug.Verbose("Planning %g° (clockwise=%t, limit=%g°), tick=%g", totalDegrees, clockwise, stepLimit, tick)

	seq := make(Sequence, 0, capacityFor(totalDegrees, stepLimit))
	remaining := totalDegrees
	cumulative := 0.0
	key := 0

	for {
		step := math.Min(remaining, stepLimit)
		// Subtract the limit, not the step: a negative remainder marks the last step.
		remaining -= stepLimit
		cumulative += sign * step

		last := remaining <= 0
		if last {
			key = FinalKey
			cumulative = sign * totalDegrees
		} else {
			key += int(math.Floor(tick * step))
		}

		if n := len(seq); n > 0 && key <= seq[n-1].Key {
			return nil, &DuplicateKeyError{Index: n, Key: key, Previous: seq[n-1].Key}
		}
		seq = append(seq, Keyframe{Key: key, Rotation: cumulative})
		debug.Keyframe(len(seq), key, cumulative)

		if last {
			return seq, nil
		}
	}
}

// Final returns the last keyframe, or the zero Keyframe for an empty sequence.
func (s Sequence) Final() Keyframe {
	if len(s) == 0 {
		return Keyframe{}
	}
	return s[len(s)-1]
}

// Degrees returns the unsigned total rotation covered by the sequence.
func (s Sequence) Degrees() float64 {
	return math.Abs(s.Final().Rotation)
}

// Clockwise reports whether the sequence turns clockwise (negative angles).
func (s Sequence) Clockwise() bool {
	return s.Final().Rotation < 0
}

// Validate checks a sequence produced elsewhere (a plan file, a remote
// caller) against the guarantees Plan gives.
func (s Sequence) Validate(stepLimit float64) error {
	if len(s) == 0 {
		return fmt.Errorf("%w: no keyframes", ErrInvalidSequence)
	}
	if !positiveFinite(stepLimit) {
		return fmt.Errorf("%w: %g", ErrInvalidStepLimit, stepLimit)
	}
	// Tolerance for angles that went through a text encoding.
	const epsilon = 1e-9

	sign := 1.0
	if s.Clockwise() {
		sign = -1.0
	}
	prevKey := -1
	prevRot := 0.0
	for i, kf := range s {
		if kf.Key < 0 || kf.Key > FinalKey {
			return fmt.Errorf("%w: keyframe %d key %d out of range [0,%d]", ErrInvalidSequence, i, kf.Key, FinalKey)
		}
		if kf.Key <= prevKey {
			return &DuplicateKeyError{Index: i, Key: kf.Key, Previous: prevKey}
		}
		if math.IsNaN(kf.Rotation) || math.IsInf(kf.Rotation, 0) {
			return fmt.Errorf("%w: keyframe %d rotation is not finite", ErrInvalidSequence, i)
		}
		delta := sign * (kf.Rotation - prevRot)
		if delta <= 0 {
			return fmt.Errorf("%w: keyframe %d does not advance the rotation", ErrInvalidSequence, i)
		}
		if delta > stepLimit+epsilon {
			return fmt.Errorf("%w: keyframe %d turns %g°, limit is %g°", ErrInvalidSequence, i, delta, stepLimit)
		}
		prevKey = kf.Key
		prevRot = kf.Rotation
	}
	if prevKey != FinalKey {
		return fmt.Errorf("%w: last key is %d, want %d", ErrInvalidSequence, prevKey, FinalKey)
	}
	return nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// capacityFor bounds the preallocation: distinct keys cap a plan at
// FinalKey+1 keyframes.
func capacityFor(totalDegrees, stepLimit float64) int {
	n := math.Ceil(totalDegrees / stepLimit)
	if n > FinalKey+1 {
		return FinalKey + 1
	}
	return int(n)
}
