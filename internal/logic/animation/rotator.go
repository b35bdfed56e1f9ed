package animation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/rotago/internal/debug"
	"github.com/cjeanneret/rotago/internal/logic/rotation"
)

// ErrNoPlayer is returned by Rotate when the Rotator has no player.
var ErrNoPlayer = errors.New("no animation player configured")

// Callbacks are invoked by the player. Nil fields are ignored.
type Callbacks struct {
	OnStart func()
	OnEnd   func(err error) // err is nil on normal completion
}

// Start calls OnStart if set.
func (c Callbacks) Start() {
	if c.OnStart != nil {
		c.OnStart()
	}
}

// End calls OnEnd if set.
func (c Callbacks) End(err error) {
	if c.OnEnd != nil {
		c.OnEnd(err)
	}
}

// Player plays a keyframe sequence on a named target. Play must not block on
// the animation itself; completion is reported through the callbacks.
// Cancelling ctx stops that animation and no other. The player keeps its own
// copy of seq.
type Player interface {
	Play(ctx context.Context, target string, seq rotation.Sequence, cfg Config, cb Callbacks) error
}

// Request describes one rotation.
type Request struct {
	Target    string
	Degrees   float64
	Clockwise bool
	Duration  time.Duration // 0 keeps the configured duration
}

// Rotator plans rotations and hands them to a player.
type Rotator struct {
	player    Player
	defaults  Config
	stepLimit float64
}

// NewRotator creates a Rotator. A stepLimit <= 0 selects rotation.StepLimit.
func NewRotator(p Player, defaults Config, stepLimit float64) *Rotator {
	if stepLimit <= 0 {
		stepLimit = rotation.StepLimit
	}
	return &Rotator{
		player:    p,
		defaults:  defaults,
		stepLimit: stepLimit,
	}
}

// Defaults returns a copy of the default configuration.
func (r *Rotator) Defaults() Config {
	return r.defaults
}

// StepLimit returns the step limit used for planning.
func (r *Rotator) StepLimit() float64 {
	return r.stepLimit
}

// Rotate plans req and starts it on the player. overrides, when non-nil,
// replaces the defaults for this call only; req.Duration is applied on top.
// The planned sequence is returned once the player has accepted it; ctx
// bounds the animation, not just this call.
func (r *Rotator) Rotate(ctx context.Context, req Request, overrides *Config, cb Callbacks) (rotation.Sequence, error) {
	debug.Request(req.Target, req.Degrees, req.Clockwise)

	seq, err := rotation.PlanWithLimit(req.Degrees, req.Clockwise, r.stepLimit)
	if err != nil {
		return nil, fmt.Errorf("plan rotation: %w", err)
	}

	cfg := r.defaults
	if overrides != nil {
		cfg = *overrides
	}
	cfg = cfg.WithDuration(req.Duration)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("animation config: %w", err)
	}

	if r.player == nil {
		return nil, ErrNoPlayer
	}
	debug.Verbose("Playing %d keyframes on %s: %+v", len(seq), req.Target, cfg)
	if err := r.player.Play(ctx, req.Target, seq, cfg, cb); err != nil {
		return nil, fmt.Errorf("play on %s: %w", req.Target, err)
	}
	return seq, nil
}
