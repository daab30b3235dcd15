package runner

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drericflores/hstp/pkg/lib"
)

func newTestRunner(t *testing.T, opts ...Option) *Runner {
	t.Helper()
	r, err := NewRunner(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func waitDone(t *testing.T, p *Process, d time.Duration) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(d):
		t.Fatalf("process %s did not exit in time", p.ID())
	}
}

func TestLaunchAndWait(t *testing.T) {
	r := newTestRunner(t)

	p, err := r.Launch([]string{"sh", "-c", "echo out; echo err 1>&2"})
	require.NoError(t, err)

	require.NotZero(t, p.Pid())

	code, err := p.Wait()
	require.NoError(t, err)
	require.Zero(t, code)

	require.ElementsMatch(t, []string{"out", "err"}, p.Output())
}

func TestLaunchReportsNonZeroExit(t *testing.T) {
	r := newTestRunner(t)

	p, err := r.Launch([]string{"sh", "-c", "echo partial; exit 3"})
	require.NoError(t, err)

	code, err := p.Wait()
	require.NoError(t, err)
	require.Equal(t, 3, code)
	require.Equal(t, []string{"partial"}, p.Output())
}

func TestLaunchInvalidCommand(t *testing.T) {
	r := newTestRunner(t)

	_, err := r.Launch(nil)
	require.Error(t, err)
	require.True(t, lib.IsLaunch(err))

	_, err = r.Launch([]string{""})
	require.True(t, lib.IsLaunch(err))

	_, err = r.Launch([]string{"hstp-definitely-missing-binary", "--cpu", "4"})
	require.Error(t, err)
	require.True(t, lib.IsLaunch(err))
	require.Contains(t, err.Error(), "hstp-definitely-missing-binary")

	r.mu.RLock()
	defer r.mu.RUnlock()
	require.Empty(t, r.processes)
}

func TestTerminateStopsProcess(t *testing.T) {
	r := newTestRunner(t)

	p, err := r.Launch([]string{"sh", "-c", "sleep 10"})
	require.NoError(t, err)

	require.NoError(t, p.Terminate())
	waitDone(t, p, 3*time.Second)

	code, err := p.Wait()
	require.NoError(t, err)
	// killed by a signal
	require.Equal(t, -1, code)

	// idempotent after exit
	require.NoError(t, p.Terminate())
	require.NoError(t, p.Kill())
}

func TestKillAfterIgnoredTerminate(t *testing.T) {
	r := newTestRunner(t)

	// the ignored disposition survives exec, so sleep ignores SIGTERM too
	p, err := r.Launch([]string{"sh", "-c", `trap "" TERM; echo ready; sleep 10`})
	require.NoError(t, err)
	lines, err := p.Lines()
	require.NoError(t, err)
	require.Equal(t, "ready", <-lines)

	require.NoError(t, p.Terminate())
	select {
	case <-p.Done():
		t.Fatalf("process exited on SIGTERM")
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, p.Kill())
	waitDone(t, p, 3*time.Second)
	code, err := p.Wait()
	require.NoError(t, err)
	require.Equal(t, -1, code)
}

func TestReleaseUnknownProcess(t *testing.T) {
	r := newTestRunner(t)

	require.True(t, lib.IsNotFound(r.Release("nope")))
}

func TestReleaseRemovesWorkDir(t *testing.T) {
	dir := t.TempDir()
	r := newTestRunner(t, WithWorkDir(dir))

	p, err := r.Launch([]string{"sh", "-c", "echo data > scratch.bin; sleep 10"})
	require.NoError(t, err)
	require.DirExists(t, p.WorkDir())

	require.Error(t, r.Release(p.ID()))

	require.NoError(t, p.Kill())
	waitDone(t, p, 3*time.Second)

	require.NoError(t, r.Release(p.ID()))
	_, err = os.Stat(p.WorkDir())
	require.True(t, os.IsNotExist(err))

	require.True(t, lib.IsNotFound(r.Release(p.ID())))
	require.DirExists(t, dir)
}

func TestCloseKillsRunningProcesses(t *testing.T) {
	r, err := NewRunner()
	require.NoError(t, err)

	p, err := r.Launch([]string{"sh", "-c", "sleep 10"})
	require.NoError(t, err)

	require.NoError(t, r.Close())
	waitDone(t, p, time.Second)
}
