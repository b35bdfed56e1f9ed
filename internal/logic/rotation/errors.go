package rotation

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRotation is returned when the requested rotation is zero,
	// negative, NaN or infinite.
	ErrInvalidRotation = errors.New("invalid rotation")
	// ErrInvalidStepLimit is returned when the step limit is not a finite number > 0.
	ErrInvalidStepLimit = errors.New("invalid step limit")
	// ErrDuplicateKey is returned when two keyframes would share a timing key.
	ErrDuplicateKey = errors.New("duplicate keyframe key")
	// ErrInvalidSequence is returned by Sequence.Validate.
	ErrInvalidSequence = errors.New("invalid keyframe sequence")
)

// InvalidRotationError carries the rejected angle.
type InvalidRotationError struct {
	Degrees float64
}

func (e *InvalidRotationError) Error() string {
	return fmt.Sprintf("invalid rotation: %g degrees (must be a finite number > 0)", e.Degrees)
}

func (e *InvalidRotationError) Unwrap() error { return ErrInvalidRotation }

// DuplicateKeyError reports the keyframe whose floored timing key did not
// move past the previous one. This happens when a single step covers less
// than 1% of the total rotation.
type DuplicateKeyError struct {
	Index    int // position of the offending keyframe
	Key      int
	Previous int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate keyframe key: keyframe %d has key %d, previous key is %d", e.Index, e.Key, e.Previous)
}

func (e *DuplicateKeyError) Unwrap() error { return ErrDuplicateKey }
