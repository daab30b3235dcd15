package orchestrator

import (
	"github.com/drericflores/hstp/pkg/lib"
)

// Submit accepts spec and returns its id. The job starts right away unless
// another job holds its category: then Submit fails with *lib.ErrJobConflict,
// or the job waits as Pending when QueueOnConflict is set. A launch failure is
// not an error here; the job ends up Failed and the feed carries the details.
func (o *Orchestrator) Submit(spec lib.JobSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return "", lib.ErrClosed
	}

	if err := o.opts.registry.Register(spec); err != nil {
		return "", err
	}

	active := o.conflictLocked(spec.Category, true)
	if active != "" && !o.cfg.QueueOnConflict {
		// the job is never created, so its id stays free
		o.opts.registry.Unregister(spec.ID)
		logger.WithField("job", spec.ID).WithField("active", active).Debug("submission rejected")
		if o.cfg.Mode == ModeExclusive {
			return "", lib.NewErrJobConflict("", active)
		}
		return "", lib.NewErrJobConflict(spec.Category, active)
	}

	r := newRun(spec, o.opts.now(), o.cfg.OutputLines)
	o.runs[spec.ID] = r
	o.order = append(o.order, r)

	if active != "" {
		logger.WithField("job", spec.ID).WithField("behind", active).Info("job queued")
		o.queue = append(o.queue, r)
		return spec.ID, nil
	}

	o.startLocked(r)
	return spec.ID, nil
}
