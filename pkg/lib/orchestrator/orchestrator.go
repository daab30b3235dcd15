// Package orchestrator runs stress jobs as external processes, enforces the
// exclusivity policy between them and reports everything that happens to a
// single event feed.
package orchestrator

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/drericflores/hstp/pkg/lib"
	"github.com/drericflores/hstp/pkg/lib/registry"
)

var logger = lib.Logger.WithField("component", "orchestrator")

const defaultArchiveTimeout = 10 * time.Second

// Registry maps job ids to specs. *registry.Registry implements it.
type Registry interface {
	Register(spec lib.JobSpec) error
	Unregister(id string)
	Lookup(id string) (lib.JobSpec, error)
}

// Orchestrator owns every job run from submission until it reaches a
// terminal state. All run state is guarded by mu.
type Orchestrator struct {
	cfg      Config
	launcher Launcher
	bus      Publisher
	opts     options

	mu       sync.Mutex
	runs     map[string]*run
	order    []*run
	queue    []*run
	closed   bool
	shutdown chan struct{}

	followers sync.WaitGroup
	archives  sync.WaitGroup
}

// New creates an orchestrator. The configuration is validated; launcher and
// bus are required.
func New(cfg Config, launcher Launcher, bus Publisher, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid orchestrator configuration")
	}
	if launcher == nil {
		return nil, errors.New("launcher is required")
	}
	if bus == nil {
		return nil, errors.New("event publisher is required")
	}

	o := &Orchestrator{
		cfg:      cfg,
		launcher: launcher,
		bus:      bus,
		opts: options{
			now:            time.Now,
			archiveTimeout: defaultArchiveTimeout,
		},
		runs:     make(map[string]*run),
		shutdown: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(&o.opts)
	}
	if o.opts.registry == nil {
		o.opts.registry = registry.New()
	}
	return o, nil
}

// Config returns the configuration the orchestrator was created with.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Status returns a snapshot of the run, including its retained output.
func (o *Orchestrator) Status(id string) (lib.Record, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.runs[id]
	if !ok {
		return lib.Record{}, lib.NewErrNotFound("job", id)
	}
	return r.snapshotLocked(true), nil
}

// List returns every run in submission order. Output is omitted; use Status
// for a single run's output.
func (o *Orchestrator) List() []lib.Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]lib.Record, 0, len(o.order))
	for _, r := range o.order {
		out = append(out, r.snapshotLocked(false))
	}
	return out
}

// Active returns the ids of running jobs in submission order.
func (o *Orchestrator) Active() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var ids []string
	for _, r := range o.order {
		if r.state == lib.JobStateRunning {
			ids = append(ids, r.spec.ID)
		}
	}
	return ids
}

// conflictLocked returns the id of a job that keeps a job of category from
// starting now, or "" when it may start. With includeQueued, pending queued
// jobs count as well so new submissions line up behind them.
func (o *Orchestrator) conflictLocked(category lib.Category, includeQueued bool) string {
	if o.cfg.Mode == ModeParallel {
		return ""
	}
	blocks := func(r *run) bool {
		return o.cfg.Mode == ModeExclusive || r.spec.Category == category
	}
	for _, r := range o.order {
		if r.state == lib.JobStateRunning && blocks(r) {
			return r.spec.ID
		}
	}
	if includeQueued {
		for _, r := range o.queue {
			if r.state == lib.JobStatePending && blocks(r) {
				return r.spec.ID
			}
		}
	}
	return ""
}

// dispatchLocked starts queued jobs whose category is free, in FIFO order.
func (o *Orchestrator) dispatchLocked() {
	if o.closed || len(o.queue) == 0 {
		return
	}
	queue := o.queue
	o.queue = nil
	for _, r := range queue {
		if r.state != lib.JobStatePending {
			continue
		}
		if o.conflictLocked(r.spec.Category, false) != "" {
			o.queue = append(o.queue, r)
			continue
		}
		logger.WithField("job", r.spec.ID).Debug("starting queued job")
		o.startLocked(r)
	}
}

// pruneLocked forgets the oldest finished runs beyond RetainFinished, output
// included. Their ids become unknown and may be submitted again.
func (o *Orchestrator) pruneLocked() {
	if o.cfg.RetainFinished <= 0 {
		return
	}
	finished := 0
	for _, r := range o.order {
		if r.state.IsTerminal() {
			finished++
		}
	}
	excess := finished - o.cfg.RetainFinished
	if excess <= 0 {
		return
	}

	// callers may be ranging over the old slice
	kept := make([]*run, 0, len(o.order)-excess)
	for _, r := range o.order {
		if excess > 0 && r.state.IsTerminal() {
			excess--
			delete(o.runs, r.spec.ID)
			o.opts.registry.Unregister(r.spec.ID)
			logger.WithField("job", r.spec.ID).Debug("forgetting finished job")
			continue
		}
		kept = append(kept, r)
	}
	o.order = kept
}

func (o *Orchestrator) removeQueuedLocked(target *run) {
	for i, r := range o.queue {
		if r == target {
			o.queue = append(o.queue[:i], o.queue[i+1:]...)
			return
		}
	}
}

func (o *Orchestrator) publishLocked(ev lib.Event) {
	o.bus.Publish(ev)
}
