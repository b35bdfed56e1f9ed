package animation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cjeanneret/rotago/internal/logic/rotation"
)

// recordingPlayer records Play calls instead of animating anything.
type recordingPlayer struct {
	calls []playCall
	err   error
}

type playCall struct {
	target string
	seq    rotation.Sequence
	cfg    Config
	cb     Callbacks
}

func (p *recordingPlayer) Play(_ context.Context, target string, seq rotation.Sequence, cfg Config, cb Callbacks) error {
	if p.err != nil {
		return p.err
	}
	p.calls = append(p.calls, playCall{target: target, seq: seq, cfg: cfg, cb: cb})
	return nil
}

func TestRotate_PlansAndPlaysOnce(t *testing.T) {
	p := &recordingPlayer{}
	r := NewRotator(p, DefaultConfig(), 0)

	seq, err := r.Rotate(context.Background(), Request{Target: "pan", Degrees: 270, Clockwise: true}, nil, Callbacks{})
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if len(p.calls) != 1 {
		t.Fatalf("Play called %d times, want 1", len(p.calls))
	}
	call := p.calls[0]
	if call.target != "pan" {
		t.Errorf("target = %q, want pan", call.target)
	}
	want := rotation.Sequence{{Key: 33, Rotation: -90}, {Key: 66, Rotation: -180}, {Key: 100, Rotation: -270}}
	if len(call.seq) != len(want) {
		t.Fatalf("played %v, want %v", call.seq, want)
	}
	for i := range want {
		if call.seq[i] != want[i] || seq[i] != want[i] {
			t.Errorf("keyframe %d = %v (returned %v), want %v", i, call.seq[i], seq[i], want[i])
		}
	}
	if call.cfg != DefaultConfig() {
		t.Errorf("cfg = %+v, want defaults", call.cfg)
	}
}

func TestRotate_DefaultStepLimit(t *testing.T) {
	r := NewRotator(&recordingPlayer{}, DefaultConfig(), -5)
	if r.StepLimit() != rotation.StepLimit {
		t.Errorf("StepLimit() = %v, want %v", r.StepLimit(), rotation.StepLimit)
	}
}

func TestRotate_CustomStepLimit(t *testing.T) {
	p := &recordingPlayer{}
	r := NewRotator(p, DefaultConfig(), 30)
	if _, err := r.Rotate(context.Background(), Request{Target: "pan", Degrees: 100}, nil, Callbacks{}); err != nil {
		t.Fatal(err)
	}
	if got := len(p.calls[0].seq); got != 4 {
		t.Errorf("played %d keyframes, want 4", got)
	}
}

func TestRotate_DurationOverride(t *testing.T) {
	p := &recordingPlayer{}
	r := NewRotator(p, DefaultConfig(), 0)

	if _, err := r.Rotate(context.Background(), Request{Target: "pan", Degrees: 90, Duration: 5 * time.Second}, nil, Callbacks{}); err != nil {
		t.Fatal(err)
	}
	if got := p.calls[0].cfg.Duration; got != 5*time.Second {
		t.Errorf("Duration = %v, want 5s", got)
	}
}

func TestRotate_OverrideDoesNotLeak(t *testing.T) {
	p := &recordingPlayer{}
	r := NewRotator(p, DefaultConfig(), 0)

	if _, err := r.Rotate(context.Background(), Request{Target: "pan", Degrees: 90, Duration: 5 * time.Second}, nil, Callbacks{}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Rotate(context.Background(), Request{Target: "pan", Degrees: 90}, nil, Callbacks{}); err != nil {
		t.Fatal(err)
	}
	if got := p.calls[1].cfg.Duration; got != time.Second {
		t.Errorf("second call Duration = %v, want default 1s", got)
	}
	if got := r.Defaults().Duration; got != time.Second {
		t.Errorf("defaults mutated: Duration = %v", got)
	}
}

func TestRotate_ConfigOverrides(t *testing.T) {
	p := &recordingPlayer{}
	r := NewRotator(p, DefaultConfig(), 0)

	custom := Config{
		Duration:       2 * time.Second,
		Delay:          100 * time.Millisecond,
		IterationCount: 3,
		Direction:      DirectionAlternate,
		FillMode:       FillNone,
	}
	if _, err := r.Rotate(context.Background(), Request{Target: "tilt", Degrees: 45, Duration: 4 * time.Second}, &custom, Callbacks{}); err != nil {
		t.Fatal(err)
	}
	got := p.calls[0].cfg
	want := custom
	want.Duration = 4 * time.Second
	if got != want {
		t.Errorf("cfg = %+v, want %+v", got, want)
	}
	if custom.Duration != 2*time.Second {
		t.Errorf("caller's override was mutated: %v", custom.Duration)
	}
}

func TestRotate_InvalidRotationSkipsPlayer(t *testing.T) {
	p := &recordingPlayer{}
	r := NewRotator(p, DefaultConfig(), 0)

	seq, err := r.Rotate(context.Background(), Request{Target: "pan", Degrees: 0}, nil, Callbacks{})
	if !errors.Is(err, rotation.ErrInvalidRotation) {
		t.Fatalf("err = %v, want ErrInvalidRotation", err)
	}
	if seq != nil {
		t.Errorf("expected no sequence, got %v", seq)
	}
	if len(p.calls) != 0 {
		t.Errorf("player should not be called, got %d calls", len(p.calls))
	}
}

func TestRotate_InvalidConfig(t *testing.T) {
	p := &recordingPlayer{}
	r := NewRotator(p, DefaultConfig(), 0)
	bad := DefaultConfig()
	bad.IterationCount = 0

	if _, err := r.Rotate(context.Background(), Request{Target: "pan", Degrees: 90}, &bad, Callbacks{}); err == nil {
		t.Fatal("expected error for invalid config")
	}
	if len(p.calls) != 0 {
		t.Errorf("player should not be called, got %d calls", len(p.calls))
	}
}

func TestRotate_NoPlayer(t *testing.T) {
	r := NewRotator(nil, DefaultConfig(), 0)
	if _, err := r.Rotate(context.Background(), Request{Target: "pan", Degrees: 90}, nil, Callbacks{}); !errors.Is(err, ErrNoPlayer) {
		t.Errorf("err = %v, want ErrNoPlayer", err)
	}
}

func TestRotate_PlayerError(t *testing.T) {
	boom := errors.New("boom")
	r := NewRotator(&recordingPlayer{err: boom}, DefaultConfig(), 0)
	if _, err := r.Rotate(context.Background(), Request{Target: "pan", Degrees: 90}, nil, Callbacks{}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
}

func TestCallbacks_NilSafe(t *testing.T) {
	var cb Callbacks
	cb.Start()
	cb.End(nil)

	started, ended := false, false
	cb = Callbacks{
		OnStart: func() { started = true },
		OnEnd:   func(err error) { ended = err == nil },
	}
	cb.Start()
	cb.End(nil)
	if !started || !ended {
		t.Errorf("callbacks not invoked: started=%v ended=%v", started, ended)
	}
}
