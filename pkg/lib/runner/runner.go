package runner

import (
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/drericflores/hstp/pkg/lib"
	"github.com/drericflores/hstp/pkg/lib/output_storage"
)

var logger = lib.Logger.WithField("component", "runner")

const (
	// DefaultWaitDelay bounds how long Wait keeps copying output after the
	// process itself has exited.
	DefaultWaitDelay = 2 * time.Second
	// DefaultLineCapacity is the number of output lines kept for a consumer
	// that has not attached yet.
	DefaultLineCapacity = 10000
)

// Runner launches external commands and keeps track of them until released.
type Runner struct {
	mu        sync.RWMutex
	processes map[string]*Process

	baseDir      string
	ownsBaseDir  bool
	waitDelay    time.Duration
	lineCapacity int
}

// Process is a handle to one launched command. Its stdout and stderr are
// merged into a single line stream.
type Process struct {
	id      string
	cmd     *exec.Cmd
	workDir string

	output     *output_storage.OutputStorage
	writer     *output_storage.LineWriter
	linesTaken atomic.Bool

	done chan struct{}

	mu       sync.RWMutex
	pid      int
	waitCode int
	waitErr  error
}

type Option func(*Runner)

// WithWorkDir sets the directory under which every process gets its own
// working directory. The directory is created if needed and is not removed by
// Close.
func WithWorkDir(dir string) Option {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

func WithWaitDelay(d time.Duration) Option {
	return func(r *Runner) {
		r.waitDelay = d
	}
}

// WithLineCapacity bounds the lines retained per process. Zero or less keeps
// everything.
func WithLineCapacity(n int) Option {
	return func(r *Runner) {
		r.lineCapacity = n
	}
}

// NewRunner creates a new Runner.
func NewRunner(opts ...Option) (*Runner, error) {
	r := &Runner{
		processes:    make(map[string]*Process),
		waitDelay:    DefaultWaitDelay,
		lineCapacity: DefaultLineCapacity,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.baseDir == "" {
		baseDir, err := os.MkdirTemp("", "hstp-*")
		if err != nil {
			return nil, errors.Wrap(err, "error creating runner work directory")
		}
		r.baseDir = baseDir
		r.ownsBaseDir = true
	} else if err := os.MkdirAll(r.baseDir, 0o700); err != nil {
		return nil, errors.Wrapf(err, "error creating runner work directory %s", r.baseDir)
	}

	return r, nil
}

// Release forgets an exited process and removes its working directory.
// Running processes cannot be released.
func (runner *Runner) Release(id string) error {
	p, err := runner.getProcess(id)
	if err != nil {
		return err
	}
	select {
	case <-p.done:
	default:
		return errors.Errorf("process %s is still running", id)
	}

	runner.mu.Lock()
	delete(runner.processes, id)
	runner.mu.Unlock()

	return errors.Wrapf(os.RemoveAll(p.workDir), "error removing work directory of process %s", id)
}

// Close kills every process that is still running and removes the work
// directory if the runner created it.
func (runner *Runner) Close() error {
	runner.mu.RLock()
	procs := make([]*Process, 0, len(runner.processes))
	for _, p := range runner.processes {
		procs = append(procs, p)
	}
	runner.mu.RUnlock()

	for _, p := range procs {
		_ = p.Kill()
		<-p.done
	}

	if runner.ownsBaseDir {
		return errors.Wrap(os.RemoveAll(runner.baseDir), "error removing runner work directory")
	}
	return nil
}

func (runner *Runner) getProcess(id string) (*Process, error) {
	runner.mu.RLock()
	p := runner.processes[id]
	runner.mu.RUnlock()
	if p == nil {
		return nil, lib.NewErrNotFound("process", id)
	}
	return p, nil
}

func (runner *Runner) workDirFor(id string) string {
	return filepath.Join(runner.baseDir, id)
}
