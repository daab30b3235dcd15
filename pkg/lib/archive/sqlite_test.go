package archive

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drericflores/hstp/pkg/lib"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func finishedRecord(id string, category lib.Category, submitted time.Time) lib.Record {
	started := submitted.Add(time.Second)
	finished := started.Add(3 * time.Second)
	code := 0
	return lib.Record{
		ID:                      id,
		Category:                category,
		Command:                 []string{"stress-ng", "--cpu", "2", "--timeout", "3s"},
		ExpectedDurationSeconds: 3,
		Cancellable:             true,
		State:                   lib.JobStateCompleted,
		SubmittedAt:             submitted,
		StartedAt:               &started,
		FinishedAt:              &finished,
		ExitCode:                &code,
		Output:                  []string{"stress-ng: info: dispatching hogs", "", "stress-ng: info: successful run completed"},
	}
}

func TestSQLiteSaveGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	want := finishedRecord("cpu-1", lib.CategoryCPU, time.Now())
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Get(ctx, "cpu-1")
	require.NoError(t, err)
	require.Equal(t, want.ID, got.ID)
	require.Equal(t, want.Category, got.Category)
	require.Equal(t, want.Command, got.Command)
	require.Equal(t, want.ExpectedDurationSeconds, got.ExpectedDurationSeconds)
	require.True(t, got.Cancellable)
	require.Equal(t, want.State, got.State)
	require.True(t, want.SubmittedAt.Equal(got.SubmittedAt))
	require.True(t, want.StartedAt.Equal(*got.StartedAt))
	require.True(t, want.FinishedAt.Equal(*got.FinishedAt))
	require.Equal(t, 0, *got.ExitCode)
	require.False(t, got.Forced)
	require.Equal(t, want.Output, got.Output)
}

func TestSQLiteSaveFailedRecord(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := lib.Record{
		ID:           "disk-1",
		Category:     lib.CategoryDisk,
		Command:      []string{"fio", "--name=randrw"},
		State:        lib.JobStateFailed,
		SubmittedAt:  time.Now(),
		Forced:       true,
		Error:        `job "disk-1" did not exit in time and was forcibly terminated`,
		DroppedLines: 42,
	}
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.Get(ctx, "disk-1")
	require.NoError(t, err)
	require.Nil(t, got.StartedAt)
	require.Nil(t, got.FinishedAt)
	require.Nil(t, got.ExitCode)
	require.Nil(t, got.Output)
	require.True(t, got.Forced)
	require.Equal(t, rec.Error, got.Error)
	require.Equal(t, uint64(42), got.DroppedLines)
}

func TestSQLiteSaveReplaces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := finishedRecord("cpu-1", lib.CategoryCPU, time.Now())
	require.NoError(t, store.Save(ctx, rec))

	rec.State = lib.JobStateCancelled
	rec.Output = []string{"single line"}
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.Get(ctx, "cpu-1")
	require.NoError(t, err)
	require.Equal(t, lib.JobStateCancelled, got.State)
	require.Equal(t, []string{"single line"}, got.Output)

	all, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestSQLiteGetMissing(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get(context.Background(), "nope")
	require.True(t, lib.IsNotFound(err))
}

func TestSQLiteList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	categories := []lib.Category{lib.CategoryCPU, lib.CategoryDisk, lib.CategoryCPU, lib.CategoryNetwork, lib.CategoryCPU}
	for i, c := range categories {
		rec := finishedRecord(fmt.Sprintf("job-%d", i), c, base.Add(time.Duration(i)*time.Minute))
		if i == 3 {
			rec.State = lib.JobStateFailed
		}
		require.NoError(t, store.Save(ctx, rec))
	}

	all, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, rec := range all {
		require.Equal(t, fmt.Sprintf("job-%d", i), rec.ID)
	}

	cpu, err := store.List(ctx, Filter{Category: lib.CategoryCPU})
	require.NoError(t, err)
	require.Equal(t, []string{"job-0", "job-2", "job-4"}, ids(cpu))

	failed, err := store.List(ctx, Filter{State: lib.JobStateFailed})
	require.NoError(t, err)
	require.Equal(t, []string{"job-3"}, ids(failed))

	recent, err := store.List(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"job-3", "job-4"}, ids(recent))

	none, err := store.List(ctx, Filter{Category: lib.CategoryGPU})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestOpenSQLiteErrors(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "")
	require.Error(t, err)

	_, err = OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "archive.db"))
	require.Error(t, err)
}

func ids(records []lib.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}
