package runner

import (
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"

	"github.com/drericflores/hstp/pkg/lib"
	"github.com/drericflores/hstp/pkg/lib/output_storage"
)

// Launch starts command[0] with the remaining elements as arguments. It fails
// with *lib.ErrLaunch when the executable cannot be found or spawned.
func (runner *Runner) Launch(command []string) (*Process, error) {
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return nil, lib.NewErrLaunch(command, errors.New("command is required"))
	}

	path, err := exec.LookPath(command[0])
	if err != nil {
		return nil, lib.NewErrLaunch(command, err)
	}

	processId := lib.NewID()
	workDir := runner.workDirFor(processId)
	if err := os.MkdirAll(workDir, 0o700); err != nil {
		return nil, lib.NewErrLaunch(command, errors.Wrap(err, "error creating work directory"))
	}

	cmd := exec.Command(path, command[1:]...)
	cmd.Args[0] = command[0]
	cmd.Dir = workDir
	cmd.SysProcAttr = sysProcAttr()
	cmd.WaitDelay = runner.waitDelay

	output := output_storage.RunNewOutputStorage(runner.lineCapacity)
	writer := output_storage.NewLineWriter(output)

	// cmd.Stdin is left nil, so it will use /dev/null. Using one writer for
	// both streams makes exec serialize the writes.
	cmd.Stdout = writer
	cmd.Stderr = writer

	p := &Process{
		id:      processId,
		cmd:     cmd,
		workDir: workDir,
		output:  output,
		writer:  writer,
		done:    make(chan struct{}),
	}

	logger.WithField("process", processId).Debugf("starting %s", strings.Join(command, " "))
	if err := cmd.Start(); err != nil {
		output.Stop()
		_ = os.RemoveAll(workDir)
		logger.WithField("process", processId).WithError(err).Debug("failed to start")
		return nil, lib.NewErrLaunch(command, err)
	}

	p.mu.Lock()
	p.pid = cmd.Process.Pid
	p.mu.Unlock()

	go p.wait()

	runner.mu.Lock()
	runner.processes[processId] = p
	runner.mu.Unlock()

	return p, nil
}

func (p *Process) wait() {
	log := logger.WithField("process", p.id)
	log.Debug("waiting for process to finish")

	err := p.cmd.Wait()

	p.writer.Flush()
	p.output.Stop()

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// -1 when the process was terminated by a signal
			code = exitErr.ExitCode()
			err = nil
		} else {
			code = -1
			err = errors.Wrap(err, "error reading process output")
		}
	}
	if err != nil {
		log.WithError(err).Debug("process finished with error")
	} else {
		log.Debugf("process finished with exit code %d", code)
	}

	p.mu.Lock()
	p.waitCode = code
	p.waitErr = err
	p.mu.Unlock()

	close(p.done)
}

// Wait blocks until the process exits. A process killed by a signal reports
// exit code -1. The error is set only when the output could not be collected.
func (p *Process) Wait() (int, error) {
	<-p.done
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.waitCode, p.waitErr
}

// Done is closed once the process has exited and its output stream closed.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

func (p *Process) ID() string {
	return p.id
}

func (p *Process) Pid() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pid
}

// WorkDir is the directory the process was started in.
func (p *Process) WorkDir() string {
	return p.workDir
}
