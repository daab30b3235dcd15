package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/drericflores/hstp/pkg/lib"
	"github.com/drericflores/hstp/pkg/lib/output_storage"
	"github.com/drericflores/hstp/pkg/lib/progress"
)

// run is one job run. Fields are guarded by the orchestrator mutex, except
// output which only the reader goroutine appends to.
type run struct {
	spec lib.JobSpec

	state       lib.JobState
	submittedAt time.Time
	startedAt   *time.Time
	finishedAt  *time.Time
	exitCode    *int
	forced      bool
	errMsg      string

	output *output_storage.OutputStorage
	proc   Process

	// stopRequested means the process was asked to terminate by Stop.
	stopRequested bool
	// shuttingDown means the process was asked to terminate by Shutdown.
	shuttingDown bool
	// abandoned means Shutdown ran out of budget and killed the process.
	abandoned   bool
	terminating bool
	termStarted time.Time

	done chan struct{}
}

func newRun(spec lib.JobSpec, now time.Time, outputLines int) *run {
	return &run{
		spec:        spec.Clone(),
		state:       lib.JobStatePending,
		submittedAt: now,
		output:      output_storage.RunNewOutputStorage(outputLines),
		done:        make(chan struct{}),
	}
}

func (r *run) snapshotLocked(withOutput bool) lib.Record {
	rec := lib.Record{
		ID:           r.spec.ID,
		Category:     r.spec.Category,
		Command:      append([]string(nil), r.spec.Command...),
		Cancellable:  r.spec.Cancellable,
		State:        r.state,
		SubmittedAt:  r.submittedAt,
		Forced:       r.forced,
		Error:        r.errMsg,
		DroppedLines: r.output.Dropped(),
	}
	if r.spec.HasExpectedDuration() {
		rec.ExpectedDurationSeconds = r.spec.ExpectedDuration.Seconds()
	}
	if r.startedAt != nil {
		t := *r.startedAt
		rec.StartedAt = &t
	}
	if r.finishedAt != nil {
		t := *r.finishedAt
		rec.FinishedAt = &t
	}
	if r.exitCode != nil {
		c := *r.exitCode
		rec.ExitCode = &c
	}
	if withOutput {
		rec.Output = r.output.Lines()
	}
	return rec
}

func (r *run) elapsedLocked(now time.Time) time.Duration {
	if r.startedAt == nil {
		return 0
	}
	return now.Sub(*r.startedAt)
}

// startLocked launches the process of a pending run. A launch failure ends
// the run as Failed.
func (o *Orchestrator) startLocked(r *run) {
	log := logger.WithField("job", r.spec.ID)

	proc, err := o.launcher.Launch(r.spec.Command)
	if err != nil {
		log.WithError(err).Warn("error launching job")
		o.finishLocked(r, lib.JobStateFailed, nil, lib.ErrorKindLaunch, err.Error())
		return
	}

	lines, err := proc.Lines()
	if err != nil {
		log.WithError(err).Warn("error attaching to job output")
		_ = proc.Kill()
		<-proc.Done()
		o.finishLocked(r, lib.JobStateFailed, nil, lib.ErrorKindStream, err.Error())
		return
	}

	now := o.opts.now()
	r.startedAt = &now
	r.proc = proc
	r.state = lib.JobStateRunning
	o.publishLocked(lib.Event{
		Kind:  lib.EventJobStateChanged,
		JobID: r.spec.ID,
		State: &lib.StateChange{From: lib.JobStatePending, To: lib.JobStateRunning},
	})
	log.Info("job started")

	o.followers.Add(1)
	go o.follow(r, proc, lines)
	go o.track(r, proc)
}

// follow copies output lines into the run buffer and onto the feed, in the
// order the process produced them, then records the exit.
func (o *Orchestrator) follow(r *run, proc Process, lines <-chan string) {
	defer o.followers.Done()

	var n uint64
	for line := range lines {
		n++
		r.output.Append(line)
		o.bus.Publish(lib.Event{
			Kind:  lib.EventJobOutputLine,
			JobID: r.spec.ID,
			Line:  &lib.OutputLine{Number: n, Text: line},
		})
	}

	code, waitErr := proc.Wait()

	o.mu.Lock()
	o.completeLocked(r, code, waitErr)
	o.dispatchLocked()
	o.mu.Unlock()

	if rel, ok := o.launcher.(releaser); ok {
		rel.Release(proc)
	}
}

// track publishes progress updates while the run is Running.
func (o *Orchestrator) track(r *run, proc Process) {
	ticker := time.NewTicker(o.cfg.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-proc.Done():
			return
		case <-ticker.C:
		}

		o.mu.Lock()
		if r.state != lib.JobStateRunning {
			o.mu.Unlock()
			return
		}
		p := progress.Estimate(*r.startedAt, o.opts.now(), r.spec.ExpectedDuration)
		o.publishLocked(lib.Event{
			Kind:     lib.EventProgressUpdate,
			JobID:    r.spec.ID,
			Progress: &p,
		})
		o.mu.Unlock()
	}
}

// completeLocked decides the terminal state of a run whose process exited.
func (o *Orchestrator) completeLocked(r *run, code int, waitErr error) {
	if r.state.IsTerminal() {
		// already reported, e.g. by a shutdown that gave up on the process
		return
	}

	exitCode := &code
	switch {
	case r.abandoned:
		o.finishLocked(r, lib.JobStateFailed, exitCode, lib.ErrorKindForcedTermination,
			lib.NewErrForcedTermination(r.spec.ID).Error())
	case waitErr != nil:
		o.finishLocked(r, lib.JobStateFailed, nil, lib.ErrorKindStream, waitErr.Error())
	case r.stopRequested || r.shuttingDown:
		o.finishLocked(r, lib.JobStateCancelled, exitCode, "", "")
	case code == 0:
		o.finishLocked(r, lib.JobStateCompleted, exitCode, "", "")
	default:
		o.finishLocked(r, lib.JobStateFailed, exitCode, lib.ErrorKindExit, fmt.Sprintf("exited with code %d", code))
	}
}

// finishLocked moves r to a terminal state, emits the terminal event sequence
// and hands the record to the archiver.
func (o *Orchestrator) finishLocked(r *run, to lib.JobState, exitCode *int, errKind, errMsg string) {
	from := r.state
	if !from.CanTransition(to) {
		logger.WithField("job", r.spec.ID).Warnf("ignoring transition %s -> %s", from, to)
		return
	}

	now := o.opts.now()
	r.state = to
	r.finishedAt = &now
	r.exitCode = exitCode
	r.errMsg = errMsg
	r.output.Stop()

	if from == lib.JobStateRunning {
		final := progress.Final(r.elapsedLocked(now))
		o.publishLocked(lib.Event{
			Kind:     lib.EventProgressUpdate,
			JobID:    r.spec.ID,
			Progress: &final,
		})
	}

	change := &lib.StateChange{
		From:     from,
		To:       to,
		Forced:   r.forced,
		Error:    errMsg,
		Fraction: 1,
	}
	if exitCode != nil {
		c := *exitCode
		change.ExitCode = &c
	}
	ev := lib.Event{
		Kind:  lib.EventJobStateChanged,
		JobID: r.spec.ID,
		State: change,
	}
	if errKind != "" {
		ev.Error = &lib.ErrorDetail{Kind: errKind, Message: errMsg}
	}
	o.publishLocked(ev)
	close(r.done)

	log := logger.WithField("job", r.spec.ID).WithField("state", to)
	if errMsg != "" {
		log = log.WithField("error", errMsg)
	}
	log.Info("job finished")

	if o.opts.archiver != nil {
		o.archive(r.snapshotLocked(true))
	}
	o.pruneLocked()
}

func (o *Orchestrator) archive(rec lib.Record) {
	o.archives.Add(1)
	go func() {
		defer o.archives.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.opts.archiveTimeout)
		defer cancel()
		if err := o.opts.archiver.Save(ctx, rec); err != nil {
			logger.WithField("job", rec.ID).WithError(err).Error("error archiving job record")
			o.bus.Publish(jobError(rec.ID, lib.ErrorKindArchive, err))
		}
	}()
}

// remainingGrace is what is left of grace for a run, counting from the moment
// it was asked to terminate.
func (r *run) remainingGrace(grace time.Duration) time.Duration {
	if !r.terminating {
		return grace
	}
	left := grace - time.Since(r.termStarted)
	if left < 0 {
		return 0
	}
	return left
}

func (o *Orchestrator) beginTerminateLocked(r *run) {
	r.terminating = true
	r.termStarted = time.Now()
	go o.terminate(r, r.proc, o.cfg.GracePeriod)
}

// terminate asks the process to exit and kills it after grace. Only one
// terminate runs per run.
func (o *Orchestrator) terminate(r *run, proc Process, grace time.Duration) {
	log := logger.WithField("job", r.spec.ID)
	if err := proc.Terminate(); err != nil {
		log.WithError(err).Warn("error terminating job")
		o.bus.Publish(jobError(r.spec.ID, lib.ErrorKindSignal, err))
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-proc.Done():
		return
	case <-timer.C:
	}

	o.mu.Lock()
	o.killLocked(r)
	o.mu.Unlock()
}

// killLocked sends SIGKILL to a running job and marks it forced.
func (o *Orchestrator) killLocked(r *run) {
	if r.state != lib.JobStateRunning || r.proc == nil {
		return
	}
	r.forced = true
	log := logger.WithField("job", r.spec.ID)
	log.Warn("job did not exit in time, killing")
	if err := r.proc.Kill(); err != nil {
		log.WithError(err).Warn("error killing job")
		o.publishLocked(jobError(r.spec.ID, lib.ErrorKindSignal, err))
	}
}

func jobError(id, kind string, err error) lib.Event {
	return lib.Event{
		Kind:  lib.EventJobError,
		JobID: id,
		Error: &lib.ErrorDetail{Kind: kind, Message: err.Error()},
	}
}
