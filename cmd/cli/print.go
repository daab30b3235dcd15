package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ghodss/yaml"
	"github.com/gosuri/uitable"
	"github.com/pkg/errors"

	"github.com/drericflores/hstp/pkg/lib"
	"github.com/drericflores/hstp/pkg/lib/catalog"
	"github.com/drericflores/hstp/pkg/lib/progress"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func validateOutputFormat(outputFormat string) error {
	switch strings.ToLower(outputFormat) {
	case outputTable, outputJSON, outputYAML:
	default:
		return errors.Errorf("unknown output format %q", outputFormat)
	}
	return nil
}

// printStructured writes v as JSON or YAML. It reports false for the table
// format so the caller renders its own table.
func printStructured(w io.Writer, outputFormat string, v any) (bool, error) {
	switch strings.ToLower(outputFormat) {
	case outputYAML:
		yamlBytes, err := yaml.Marshal(v)
		if err != nil {
			return true, errors.Wrap(err, "error formatting output")
		}
		_, err = fmt.Fprint(w, string(yamlBytes))
		return true, err
	case outputJSON:
		prettyJSON, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return true, errors.Wrap(err, "error formatting output")
		}
		_, err = fmt.Fprintln(w, string(prettyJSON))
		return true, err
	}
	return false, nil
}

func printRecords(w io.Writer, outputFormat string, records []lib.Record) error {
	if done, err := printStructured(w, outputFormat, records); done {
		return err
	}

	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No jobs found.")
		return err
	}

	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow("ID", "CATEGORY", "STATE", "EXIT", "STARTED", "DURATION", "COMMAND")
	for _, rec := range records {
		table.AddRow(
			rec.ID,
			rec.Category,
			stateLabel(rec),
			exitLabel(rec.ExitCode),
			timeLabel(rec.StartedAt),
			durationLabel(rec),
			strings.Join(rec.Command, " "),
		)
	}
	_, err := fmt.Fprintln(w, table)
	return err
}

func printRecord(w io.Writer, outputFormat string, rec lib.Record) error {
	if done, err := printStructured(w, outputFormat, rec); done {
		return err
	}

	table := uitable.New()
	table.Wrap = true
	table.AddRow("ID:", rec.ID)
	table.AddRow("CATEGORY:", rec.Category)
	table.AddRow("COMMAND:", strings.Join(rec.Command, " "))
	table.AddRow("STATE:", stateLabel(rec))
	table.AddRow("EXIT CODE:", exitLabel(rec.ExitCode))
	table.AddRow("SUBMITTED:", timeLabel(&rec.SubmittedAt))
	table.AddRow("STARTED:", timeLabel(rec.StartedAt))
	table.AddRow("FINISHED:", timeLabel(rec.FinishedAt))
	table.AddRow("DURATION:", durationLabel(rec))
	if rec.Error != "" {
		table.AddRow("ERROR:", rec.Error)
	}
	if rec.DroppedLines > 0 {
		table.AddRow("DROPPED LINES:", rec.DroppedLines)
	}
	if _, err := fmt.Fprintln(w, table); err != nil {
		return err
	}

	if len(rec.Output) > 0 {
		if _, err := fmt.Fprintln(w, "\nOUTPUT:"); err != nil {
			return err
		}
		for _, line := range rec.Output {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

func printDependencies(w io.Writer, outputFormat string, deps []catalog.Dependency) error {
	if done, err := printStructured(w, outputFormat, deps); done {
		return err
	}

	table := uitable.New()
	table.AddRow("COMMAND", "STATUS", "PATH / HINT")
	for _, d := range deps {
		if d.Found() {
			table.AddRow(d.Command, "found", d.Path)
			continue
		}
		hint := d.Hint
		if hint == "" {
			hint = fmt.Sprintf("Please install '%s'.", d.Command)
		}
		table.AddRow(d.Command, "NOT FOUND", hint)
	}
	_, err := fmt.Fprintln(w, table)
	return err
}

func stateLabel(rec lib.Record) string {
	if rec.Forced {
		return string(rec.State) + " (killed)"
	}
	return string(rec.State)
}

func exitLabel(code *int) string {
	if code == nil {
		return "-"
	}
	return fmt.Sprint(*code)
}

func timeLabel(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func durationLabel(rec lib.Record) string {
	if rec.StartedAt == nil {
		return "-"
	}
	end := time.Now()
	if rec.FinishedAt != nil {
		end = *rec.FinishedAt
	}
	return progress.FormatClock(end.Sub(*rec.StartedAt))
}
