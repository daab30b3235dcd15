package runner

import (
	"github.com/pkg/errors"
)

const linesBuffer = 64

// Lines returns the merged output of the process, one element per line. The
// sequence starts with the retained lines produced before the call, then
// follows new output and closes when the process closes its output. Only the
// first call succeeds.
func (p *Process) Lines() (<-chan string, error) {
	if !p.linesTaken.CompareAndSwap(false, true) {
		return nil, errors.Errorf("output of process %s is already being consumed", p.id)
	}
	logger.WithField("process", p.id).Debug("subscribed to output")
	return p.output.Subscribe(linesBuffer), nil
}

// Output returns a copy of the retained output lines.
func (p *Process) Output() []string {
	return p.output.Lines()
}

// DroppedLines is the number of lines evicted before anyone read them.
func (p *Process) DroppedLines() uint64 {
	return p.output.Dropped()
}
