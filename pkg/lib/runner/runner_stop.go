package runner

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Terminate asks the process group to exit with SIGTERM. It is a no-op once
// the process has exited.
func (p *Process) Terminate() error {
	return p.signal(unix.SIGTERM)
}

// Kill sends SIGKILL to the process group. It is a no-op once the process
// has exited.
func (p *Process) Kill() error {
	return p.signal(unix.SIGKILL)
}

func (p *Process) signal(sig unix.Signal) error {
	select {
	case <-p.done:
		return nil
	default:
	}

	// Negative PID means process group
	err := unix.Kill(-p.Pid(), sig)
	if err == unix.ESRCH {
		// group already gone, the waiter will notice shortly
		return nil
	}
	logger.WithField("process", p.id).Debugf("sent %s", unix.SignalName(sig))
	return errors.Wrapf(err, "error sending %s to process %s", unix.SignalName(sig), p.id)
}
