package orchestrator

import (
	"context"
	"time"

	"github.com/drericflores/hstp/pkg/lib"
	"github.com/drericflores/hstp/pkg/lib/runner"
)

// Process is a launched command as seen by the orchestrator.
type Process interface {
	// Lines yields the merged output once and closes when the output ends.
	Lines() (<-chan string, error)
	// Wait blocks until exit. The error is set when output collection failed.
	Wait() (int, error)
	Terminate() error
	Kill() error
	Done() <-chan struct{}
}

// Launcher starts processes. Failures must be *lib.ErrLaunch.
type Launcher interface {
	Launch(command []string) (Process, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(command []string) (Process, error)

func (f LauncherFunc) Launch(command []string) (Process, error) {
	return f(command)
}

// releaser is implemented by launchers that keep per-process resources until
// told otherwise.
type releaser interface {
	Release(Process)
}

// Publisher receives every event the orchestrator produces.
type Publisher interface {
	Publish(lib.Event) lib.Event
}

// Archiver persists terminal job records.
type Archiver interface {
	Save(ctx context.Context, record lib.Record) error
}

type runnerLauncher struct {
	runner *runner.Runner
}

// NewRunnerLauncher launches jobs as local processes.
func NewRunnerLauncher(r *runner.Runner) Launcher {
	return &runnerLauncher{runner: r}
}

func (l *runnerLauncher) Launch(command []string) (Process, error) {
	p, err := l.runner.Launch(command)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (l *runnerLauncher) Release(p Process) {
	rp, ok := p.(*runner.Process)
	if !ok {
		return
	}
	if err := l.runner.Release(rp.ID()); err != nil {
		logger.WithError(err).Warn("error releasing process")
	}
}

type options struct {
	archiver       Archiver
	registry       Registry
	now            func() time.Time
	archiveTimeout time.Duration
}

type Option func(*options)

// WithArchiver hands every terminal record to a.
func WithArchiver(a Archiver) Option {
	return func(o *options) {
		o.archiver = a
	}
}

// WithRegistry replaces the job registry.
func WithRegistry(r Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
