//go:build linux

package runner

import (
	"syscall"
)

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		// New process group to manage children as a unit
		Setpgid: true,
		// Stress tools must not outlive the orchestrator
		Pdeathsig: syscall.SIGKILL,
	}
}
