package motion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/cjeanneret/rotago/internal/debug"
	"github.com/cjeanneret/rotago/internal/hw/stepper"
	"github.com/cjeanneret/rotago/internal/logic/animation"
	"github.com/cjeanneret/rotago/internal/logic/geometry"
	"github.com/cjeanneret/rotago/internal/logic/rotation"
)

var (
	// ErrUnknownAxis is returned by Play for a target no axis is registered under.
	ErrUnknownAxis = errors.New("unknown axis")
	// ErrAxisBusy is returned by Play while the axis is still animating.
	ErrAxisBusy = errors.New("axis busy")
)

// Axis names of the pan/tilt head.
const (
	AxisPan  = "pan"
	AxisTilt = "tilt"
)

// Axis is one motorised rotation axis.
type Axis struct {
	Name      string
	Motor     *stepper.Stepper
	Converter *geometry.AngleConverter
}

// Player plays keyframe sequences on stepper axes. It implements
// animation.Player: Play returns as soon as the animation is started.
//
// Every animation starts from wherever the axis is when Play is called;
// that position is angle 0 for the sequence.
type Player struct {
	axes map[string]*Axis

	mu      sync.Mutex
	running map[string]context.CancelFunc
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPlayer creates a player for the given axes.
func NewPlayer(axes ...*Axis) *Player {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		axes:    make(map[string]*Axis, len(axes)),
		running: make(map[string]context.CancelFunc),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, a := range axes {
		p.axes[a.Name] = a
	}
	return p
}

// Axes returns the registered axis names, sorted.
func (p *Player) Axes() []string {
	names := make([]string, 0, len(p.axes))
	for name := range p.axes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Busy reports whether an animation is running on the axis.
func (p *Player) Busy(target string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.running[target]
	return ok
}

// Play starts seq on the target axis and returns immediately. cb.OnEnd
// receives nil on completion, or the error that stopped the animation.
// Cancelling ctx stops this animation only; a later one on the same axis is
// not affected. seq is copied, the caller may reuse it.
func (p *Player) Play(ctx context.Context, target string, seq rotation.Sequence, cfg animation.Config, cb animation.Callbacks) error {
	axis, ok := p.axes[target]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAxis, target)
	}
	// The step limit is the planner's business; only the shape is checked here.
	if err := seq.Validate(math.MaxFloat64); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	seq = slices.Clone(seq)

	p.mu.Lock()
	if _, busy := p.running[target]; busy {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAxisBusy, target)
	}
	if err := p.ctx.Err(); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("player closed: %w", err)
	}
	runCtx, cancel := context.WithCancel(p.ctx)
	p.running[target] = cancel
	p.wg.Add(1)
	p.mu.Unlock()

	stopOnCaller := context.AfterFunc(ctx, cancel)
	go func() {
		defer p.wg.Done()
		err := p.run(runCtx, axis, seq, cfg, cb)
		stopOnCaller()

		p.mu.Lock()
		delete(p.running, target)
		p.mu.Unlock()
		cancel()

		if err != nil {
			debug.Error(fmt.Errorf("axis %s: %w", target, err))
		} else {
			debug.Live("Axis %s: animation complete", target)
		}
		cb.End(err)
	}()
	return nil
}

// Stop cancels the animation running on the axis, if any.
func (p *Player) Stop(target string) {
	p.mu.Lock()
	cancel, ok := p.running[target]
	p.mu.Unlock()
	if ok {
		cancel()
	}
}

// Close cancels every running animation and waits for them to end.
func (p *Player) Close() {
	p.mu.Lock()
	p.cancel()
	p.mu.Unlock()
	p.wg.Wait()
}

// point is a keyframe placed on the progress axis of one iteration.
type point struct {
	progress int
	angle    float64
}

// timeline returns the points of one iteration, starting at progress 0.
func timeline(seq rotation.Sequence, reversed bool) []point {
	pts := make([]point, 0, len(seq)+1)
	pts = append(pts, point{0, 0})
	for _, kf := range seq {
		pts = append(pts, point{kf.Key, kf.Rotation})
	}
	if !reversed {
		return pts
	}
	rev := make([]point, len(pts))
	for i, pt := range pts {
		rev[len(pts)-1-i] = point{rotation.FinalKey - pt.progress, pt.angle}
	}
	return rev
}

func (p *Player) run(ctx context.Context, axis *Axis, seq rotation.Sequence, cfg animation.Config, cb animation.Callbacks) error {
	pos := 0.0
	// jump moves to angle at full speed, outside the animation timeline.
	jump := func(angle float64) error {
		steps := axis.Converter.SegmentSteps(pos, angle)
		if err := axis.Motor.MoveStepsTimed(ctx, steps, 0); err != nil {
			return err
		}
		pos = angle
		return nil
	}

	if err := axis.Motor.Enable(); err != nil {
		return fmt.Errorf("enable motor: %w", err)
	}

	if cfg.FillMode.AppliesStart() {
		if err := jump(timeline(seq, cfg.Direction.Reversed(0))[0].angle); err != nil {
			return err
		}
	}
	if cfg.Delay > 0 {
		debug.Live("Axis %s: waiting %v before start", axis.Name, cfg.Delay)
		if err := sleep(ctx, cfg.Delay); err != nil {
			return err
		}
	}

	cb.Start()
	debug.Live("Axis %s: playing %d keyframes, %d iteration(s) of %v", axis.Name, len(seq), cfg.IterationCount, cfg.Duration)

	for i := 0; i < cfg.IterationCount; i++ {
		pts := timeline(seq, cfg.Direction.Reversed(i))
		if err := jump(pts[0].angle); err != nil {
			return err
		}
		for j := 1; j < len(pts); j++ {
			from, to := pts[j-1], pts[j]
			d := cfg.Duration * time.Duration(to.progress-from.progress) / rotation.FinalKey
			steps := axis.Converter.SegmentSteps(pos, to.angle)
			debug.Segment(axis.Name, pos, to.angle, steps, d)
			if err := axis.Motor.MoveStepsTimed(ctx, steps, d); err != nil {
				return err
			}
			pos = to.angle
		}
	}

	if !cfg.FillMode.HoldsEnd() {
		return jump(0)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
