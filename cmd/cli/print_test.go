package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/ghodss/yaml"
	"github.com/stretchr/testify/require"

	"github.com/drericflores/hstp/pkg/lib"
	"github.com/drericflores/hstp/pkg/lib/catalog"
)

func sampleRecord() lib.Record {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	finished := started.Add(95 * time.Second)
	code := 0
	return lib.Record{
		ID:          "cpu-1a2b3c4d",
		Category:    lib.CategoryCPU,
		Command:     []string{"stress-ng", "--cpu", "4", "--timeout", "95s"},
		State:       lib.JobStateCompleted,
		SubmittedAt: started,
		StartedAt:   &started,
		FinishedAt:  &finished,
		ExitCode:    &code,
		Output:      []string{"line one", "line two"},
	}
}

func TestValidateOutputFormat(t *testing.T) {
	for _, f := range []string{"table", "json", "yaml", "JSON"} {
		require.NoError(t, validateOutputFormat(f))
	}
	require.Error(t, validateOutputFormat("xml"))
}

func TestPrintRecords(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRecords(&buf, outputTable, []lib.Record{sampleRecord()}))
	out := buf.String()
	require.Contains(t, out, "ID")
	require.Contains(t, out, "cpu-1a2b3c4d")
	require.Contains(t, out, "completed")
	require.Contains(t, out, "01:35")
	require.Contains(t, out, "stress-ng --cpu 4")

	buf.Reset()
	require.NoError(t, printRecords(&buf, outputTable, nil))
	require.Equal(t, "No jobs found.\n", buf.String())

	buf.Reset()
	require.NoError(t, printRecords(&buf, outputJSON, []lib.Record{sampleRecord()}))
	var decoded []lib.Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	require.Equal(t, "cpu-1a2b3c4d", decoded[0].ID)

	buf.Reset()
	require.NoError(t, printRecords(&buf, outputYAML, []lib.Record{sampleRecord()}))
	decoded = nil
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, lib.JobStateCompleted, decoded[0].State)
}

func TestPrintRecord(t *testing.T) {
	rec := sampleRecord()
	rec.State = lib.JobStateCancelled
	rec.Forced = true

	var buf bytes.Buffer
	require.NoError(t, printRecord(&buf, outputTable, rec))
	out := buf.String()
	require.Contains(t, out, "cancelled (killed)")
	require.Contains(t, out, "OUTPUT:\nline one\nline two\n")
}

func TestPrintDependencies(t *testing.T) {
	deps := []catalog.Dependency{
		{Command: "sh", Path: "/bin/sh"},
		{Command: "fio", Hint: "sudo apt install fio"},
	}
	var buf bytes.Buffer
	require.NoError(t, printDependencies(&buf, outputTable, deps))
	require.Contains(t, buf.String(), "/bin/sh")
	require.Contains(t, buf.String(), "NOT FOUND")
	require.Contains(t, buf.String(), "sudo apt install fio")
}
