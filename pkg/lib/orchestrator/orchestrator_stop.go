package orchestrator

import (
	"context"

	"github.com/drericflores/hstp/pkg/lib"
)

// Stop cancels a job. A pending job is cancelled immediately. A running job
// gets SIGTERM, then SIGKILL after the grace period, and Stop returns once it
// has reached its terminal state or ctx ends. Stopping a terminal job returns
// its record unchanged. Running jobs whose spec is not cancellable are refused
// with *lib.ErrNotCancellable.
func (o *Orchestrator) Stop(ctx context.Context, id string) (lib.Record, error) {
	o.mu.Lock()
	r, ok := o.runs[id]
	if !ok {
		o.mu.Unlock()
		return lib.Record{}, lib.NewErrNotFound("job", id)
	}

	switch r.state {
	case lib.JobStatePending:
		o.removeQueuedLocked(r)
		o.finishLocked(r, lib.JobStateCancelled, nil, "", "")
		rec := r.snapshotLocked(true)
		o.mu.Unlock()
		return rec, nil

	case lib.JobStateRunning:
		if !r.spec.Cancellable {
			o.mu.Unlock()
			return lib.Record{}, lib.NewErrNotCancellable(id)
		}
		r.stopRequested = true
		if !r.terminating {
			logger.WithField("job", id).Info("stopping job")
			o.beginTerminateLocked(r)
		}

	default:
		rec := r.snapshotLocked(true)
		o.mu.Unlock()
		return rec, nil
	}

	done := r.done
	o.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return o.statusOf(r), ctx.Err()
	}
	return o.statusOf(r), nil
}

func (o *Orchestrator) statusOf(r *run) lib.Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	return r.snapshotLocked(true)
}
