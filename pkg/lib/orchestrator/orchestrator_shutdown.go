package orchestrator

import (
	"context"
	"time"

	"github.com/drericflores/hstp/pkg/lib"
)

// killSettle is how long Shutdown waits for killed processes to be reaped
// before it reports them as forcibly terminated anyway.
const killSettle = time.Second

// Shutdown stops accepting submissions, cancels pending jobs and terminates
// running ones, non-cancellable jobs included. Each job is killed after its
// grace period. The whole operation takes at most the sum of the remaining
// grace periods, bounded by ShutdownTimeout and ctx; jobs still alive after
// that are reported Failed with a forced termination. A job killed at the end
// of its own grace period within the budget ends Cancelled with forced set.
// Calling Shutdown again waits for the same jobs.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	first := !o.closed
	o.closed = true

	for _, r := range o.queue {
		if r.state == lib.JobStatePending {
			o.finishLocked(r, lib.JobStateCancelled, nil, lib.ErrorKindCancelled, "orchestrator shut down")
		}
	}
	o.queue = nil

	var running []*run
	var budget time.Duration
	for _, r := range o.order {
		if r.state != lib.JobStateRunning {
			continue
		}
		running = append(running, r)
		budget += r.remainingGrace(o.cfg.GracePeriod)
		r.shuttingDown = true
		if !r.terminating {
			o.beginTerminateLocked(r)
		}
	}
	if budget > o.cfg.ShutdownTimeout {
		budget = o.cfg.ShutdownTimeout
	}
	if first {
		close(o.shutdown)
		logger.Infof("shutting down, %d running jobs, budget %s", len(running), budget)
	}
	o.mu.Unlock()

	var err error
	if !o.awaitRuns(ctx, running, budget) {
		err = o.forceRuns(ctx, running)
	}

	o.awaitArchives(ctx)
	if err == nil {
		err = ctx.Err()
	}
	return err
}

// awaitRuns reports whether every run reached a terminal state within budget.
func (o *Orchestrator) awaitRuns(ctx context.Context, runs []*run, budget time.Duration) bool {
	timer := time.NewTimer(budget)
	defer timer.Stop()
	for _, r := range runs {
		select {
		case <-r.done:
		case <-timer.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// forceRuns kills whatever is still running, gives the kills a moment to
// land and then reports the stragglers as forcibly terminated. Runs already
// killed at the end of their grace period are only waited for.
func (o *Orchestrator) forceRuns(ctx context.Context, runs []*run) error {
	o.mu.Lock()
	for _, r := range runs {
		if r.state == lib.JobStateRunning && !r.forced {
			r.abandoned = true
		}
		o.killLocked(r)
	}
	o.mu.Unlock()

	settle := time.NewTimer(killSettle)
	defer settle.Stop()
wait:
	for _, r := range runs {
		select {
		case <-r.done:
		case <-settle.C:
			break wait
		case <-ctx.Done():
			break wait
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	var stragglers []string
	for _, r := range runs {
		if r.state != lib.JobStateRunning {
			continue
		}
		stragglers = append(stragglers, r.spec.ID)
		r.forced = true
		o.finishLocked(r, lib.JobStateFailed, nil, lib.ErrorKindForcedTermination,
			lib.NewErrForcedTermination(r.spec.ID).Error())
	}
	if len(stragglers) > 0 {
		logger.Warnf("jobs %v did not exit after being killed", stragglers)
		return lib.NewErrForcedTermination(stragglers[0])
	}
	return nil
}

func (o *Orchestrator) awaitArchives(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		o.archives.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Done is closed once Shutdown has been called.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.shutdown
}
