package analysis

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"swotlens/internal/core"
)

// Run is an analysis executing in the background.
type Run struct {
	cancel context.CancelFunc
	group  *errgroup.Group
	report *core.AggregatedReport
}

// Start runs Analyze on a background goroutine. A positive timeout bounds the
// whole run; when it elapses the run fails with ErrRunTimeout.
func (o *Orchestrator) Start(ctx context.Context, reviews []core.ReviewRecord, batchSize int, mode Mode, timeout time.Duration) *Run {
	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	g, gctx := errgroup.WithContext(runCtx)
	r := &Run{cancel: cancel, group: g}
	g.Go(func() error {
		report, err := o.Analyze(gctx, reviews, batchSize, mode)
		if err != nil {
			return err
		}
		r.report = report
		return nil
	})
	return r
}

// Wait blocks until the run finishes and returns its report or error.
func (r *Run) Wait() (*core.AggregatedReport, error) {
	err := r.group.Wait()
	r.cancel()
	if err != nil {
		return nil, err
	}
	return r.report, nil
}

// Cancel stops the run. Wait returns once the current model call gives up.
func (r *Run) Cancel() {
	r.cancel()
}
