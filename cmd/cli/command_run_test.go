package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drericflores/hstp/pkg/lib"
	"github.com/drericflores/hstp/pkg/lib/archive"
	"github.com/drericflores/hstp/pkg/lib/catalog"
	"github.com/drericflores/hstp/pkg/lib/orchestrator"
)

// syncBuffer guards a buffer written by the run loop and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type constantReader struct{}

func (constantReader) Read(context.Context) (lib.MetricSample, error) {
	return lib.MetricSample{Time: time.Now(), CPUPercent: 42, MemoryTotalBytes: 1 << 30}, nil
}

func testRunConfig() orchestrator.Config {
	cfg := orchestrator.DefaultConfig()
	cfg.GracePeriod = 500 * time.Millisecond
	cfg.ShutdownTimeout = 5 * time.Second
	cfg.ProgressInterval = 50 * time.Millisecond
	cfg.QueueOnConflict = true
	return cfg
}

func shTemplate(name string, category lib.Category, script string, expected time.Duration) catalog.Template {
	return catalog.Template{
		Name:             name,
		Category:         category,
		Command:          []string{"sh", "-c", script},
		ExpectedDuration: expected,
		Cancellable:      true,
	}
}

func TestLocalRun_QueuesAndReports(t *testing.T) {
	out := &syncBuffer{}
	local := localRun{
		config:   testRunConfig(),
		interval: 20 * time.Millisecond,
		reader:   constantReader{},
		templates: []catalog.Template{
			shTemplate("first", lib.CategoryCPU, "echo first; sleep 0.2", 200*time.Millisecond),
			shTemplate("second", lib.CategoryCPU, "echo second", 0),
			shTemplate("broken", lib.CategoryDisk, "exit 3", 0),
		},
		presenter: newPresenter(out, outputTable, true),
	}

	records, err := local.execute(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	require.True(t, strings.HasPrefix(records[0].ID, "first-"))
	require.Equal(t, lib.JobStateCompleted, records[0].State)
	require.Equal(t, []string{"first"}, records[0].Output)
	require.Equal(t, lib.JobStateCompleted, records[1].State)
	require.Equal(t, lib.JobStateFailed, records[2].State)
	require.Equal(t, 3, *records[2].ExitCode)

	// the queued job only started after the first one finished
	require.False(t, records[1].StartedAt.Before(*records[0].FinishedAt))

	text := out.String()
	require.Contains(t, text, "["+records[0].ID+"] first")
	require.Contains(t, text, "["+records[1].ID+"] second")
	require.Contains(t, text, "CPU 42.0%")
	require.Contains(t, text, "exit code 3")

	require.Error(t, incomplete(records))
	require.NoError(t, incomplete(records[:2]))
}

func TestLocalRun_InterruptStopsJobs(t *testing.T) {
	out := &syncBuffer{}
	local := localRun{
		config: testRunConfig(),
		templates: []catalog.Template{
			shTemplate("long", lib.CategoryMemory, "echo started; sleep 30", 30*time.Second),
		},
		presenter: newPresenter(out, outputTable, false),
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		deadline := time.Now().Add(5 * time.Second)
		for !strings.Contains(out.String(), "started") && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		cancel()
	}()

	start := time.Now()
	records, err := local.execute(ctx)
	require.NoError(t, err)
	require.Less(t, time.Since(start), 10*time.Second)
	require.Len(t, records, 1)
	require.Equal(t, lib.JobStateCancelled, records[0].State)
	require.Contains(t, out.String(), "interrupted, stopping jobs")
}

func TestLocalRun_RejectsConflictWithoutQueue(t *testing.T) {
	cfg := testRunConfig()
	cfg.QueueOnConflict = false
	out := &syncBuffer{}
	local := localRun{
		config: cfg,
		templates: []catalog.Template{
			shTemplate("a", lib.CategoryGPU, "sleep 0.2", 0),
			shTemplate("b", lib.CategoryGPU, "true", 0),
		},
		presenter: newPresenter(out, outputTable, false),
	}

	records, err := local.execute(context.Background())
	require.True(t, lib.IsJobConflict(err))
	require.Len(t, records, 1)
	require.Equal(t, lib.JobStateCompleted, records[0].State)
	require.Contains(t, out.String(), "not started")
}

func TestRunCommand_Archives(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(`
grace_period: 500ms
templates:
  - name: hello
    category: cpu
    command: ["sh", "-c", "echo hello from run"]
    cancellable: true
`), 0o600))
	archivePath := filepath.Join(dir, "archive.db")

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"run", "hello", "--catalog", catalogPath, "--archive", archivePath, "--metrics=false"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	require.Contains(t, out.String(), "hello from run")
	require.Contains(t, out.String(), "completed")

	store, err := archive.OpenSQLite(context.Background(), archivePath)
	require.NoError(t, err)
	defer store.Close()
	records, err := store.List(context.Background(), archive.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, []string{"hello from run"}, records[0].Output)

	// history reads the same archive back
	out.Reset()
	root = NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"history", "--archive", archivePath, "-o", "json"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	require.Contains(t, out.String(), records[0].ID)

	out.Reset()
	root = NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"history", records[0].ID, "--archive", archivePath})
	require.NoError(t, root.ExecuteContext(context.Background()))
	require.Contains(t, out.String(), "OUTPUT:\nhello from run")
}

func TestRunCommand_UnknownTemplate(t *testing.T) {
	catalogPath := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte("mode: exclusive\n"), 0o600))

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"run", "nonexistent", "--catalog", catalogPath})
	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "cpu")
}
