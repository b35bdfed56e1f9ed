package motion

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/cjeanneret/rotago/internal/logic/animation"
	"github.com/cjeanneret/rotago/internal/logic/rotation"
)

// Controller runs rotations on the pan/tilt axes and waits for them, for
// callers that need a blocking API (the CLI).
type Controller struct {
	player  *Player
	rotator *animation.Rotator
}

func NewController(p *Player, r *animation.Rotator) *Controller {
	return &Controller{
		player:  p,
		rotator: r,
	}
}

// RotateAndWait plans and plays one rotation and blocks until it ends.
// Cancelling ctx stops this rotation.
func (c *Controller) RotateAndWait(ctx context.Context, req animation.Request) (rotation.Sequence, error) {
	done := make(chan error, 1)
	seq, err := c.rotator.Rotate(ctx, req, nil, animation.Callbacks{
		OnEnd: func(err error) { done <- err },
	})
	if err != nil {
		return nil, err
	}
	return seq, wait(ctx, done)
}

// PlayAndWait plays an already planned sequence and blocks until it ends.
func (c *Controller) PlayAndWait(ctx context.Context, target string, seq rotation.Sequence, cfg animation.Config) error {
	done := make(chan error, 1)
	err := c.player.Play(ctx, target, seq, cfg, animation.Callbacks{
		OnEnd: func(err error) { done <- err },
	})
	if err != nil {
		return err
	}
	return wait(ctx, done)
}

// RotateAll runs the requests concurrently, one per axis, and waits for all
// of them. The first failure stops the others.
func (c *Controller) RotateAll(ctx context.Context, reqs ...animation.Request) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, req := range reqs {
		g.Go(func() error {
			_, err := c.RotateAndWait(gctx, req)
			return err
		})
	}
	return g.Wait()
}

// RotatePanTilt rotates the pan and tilt axes together. The targets of the
// requests are set here.
func (c *Controller) RotatePanTilt(ctx context.Context, pan, tilt animation.Request) error {
	pan.Target = AxisPan
	tilt.Target = AxisTilt
	return c.RotateAll(ctx, pan, tilt)
}

// wait blocks until the animation ends. The animation was started with ctx,
// so cancelling ctx ends it.
func wait(ctx context.Context, done <-chan error) error {
	err := <-done
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
