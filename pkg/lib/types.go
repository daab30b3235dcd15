package lib

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Category is the subsystem a stress job targets.
type Category string

const (
	CategoryCPU     Category = "cpu"
	CategoryMemory  Category = "memory"
	CategoryGPU     Category = "gpu"
	CategoryDisk    Category = "disk"
	CategoryNetwork Category = "network"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategoryCPU,
	CategoryMemory,
	CategoryGPU,
	CategoryDisk,
	CategoryNetwork,
}

// ParseCategory accepts canonical names and the short aliases ram and net.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cpu":
		return CategoryCPU, nil
	case "memory", "mem", "ram":
		return CategoryMemory, nil
	case "gpu":
		return CategoryGPU, nil
	case "disk":
		return CategoryDisk, nil
	case "network", "net":
		return CategoryNetwork, nil
	}
	return "", NewErrValidation(fmt.Sprintf("unknown category %q", s))
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// JobSpec describes a runnable stress job. A zero or negative
// ExpectedDuration means the duration is unknown.
type JobSpec struct {
	ID               string
	Category         Category
	Command          []string
	ExpectedDuration time.Duration
	Cancellable      bool
}

type jobSpecJSON struct {
	ID                      string   `json:"id"`
	Category                Category `json:"category"`
	Command                 []string `json:"command"`
	ExpectedDurationSeconds float64  `json:"expected_duration_seconds,omitempty"`
	Cancellable             bool     `json:"cancellable"`
}

func (s JobSpec) MarshalJSON() ([]byte, error) {
	out := jobSpecJSON{
		ID:          s.ID,
		Category:    s.Category,
		Command:     s.Command,
		Cancellable: s.Cancellable,
	}
	if s.HasExpectedDuration() {
		out.ExpectedDurationSeconds = s.ExpectedDuration.Seconds()
	}
	return json.Marshal(out)
}

func (s *JobSpec) UnmarshalJSON(data []byte) error {
	var in jobSpecJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = JobSpec{
		ID:               in.ID,
		Category:         in.Category,
		Command:          in.Command,
		ExpectedDuration: SecondsToDuration(in.ExpectedDurationSeconds),
		Cancellable:      in.Cancellable,
	}
	return nil
}

// HasExpectedDuration reports whether the duration hint is known.
func (s JobSpec) HasExpectedDuration() bool {
	return s.ExpectedDuration > 0
}

// Clone returns a copy that shares no memory with s.
func (s JobSpec) Clone() JobSpec {
	s.Command = append([]string(nil), s.Command...)
	return s
}

// Validate checks the fields every submission needs.
func (s JobSpec) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return NewErrValidation("job id is required")
	}
	if !s.Category.Valid() {
		return NewErrValidation(fmt.Sprintf("job %q: unknown category %q", s.ID, s.Category))
	}
	if len(s.Command) == 0 || strings.TrimSpace(s.Command[0]) == "" {
		return NewErrValidation(fmt.Sprintf("job %q: command is required", s.ID))
	}
	return nil
}

// JobState is the lifecycle state of a job run.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateCancelled JobState = "cancelled"
)

// IsTerminal reports whether no further transition is possible.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed || s == JobStateCancelled
}

// CanTransition reports whether moving from s to next keeps the lifecycle
// monotonic.
func (s JobState) CanTransition(next JobState) bool {
	switch s {
	case JobStatePending:
		return next == JobStateRunning || next == JobStateFailed || next == JobStateCancelled
	case JobStateRunning:
		return next.IsTerminal()
	default:
		return false
	}
}

// Record is a snapshot of a job run. Terminal records are what gets handed to
// archival storage.
type Record struct {
	ID                      string     `json:"id"`
	Category                Category   `json:"category"`
	Command                 []string   `json:"command"`
	ExpectedDurationSeconds float64    `json:"expected_duration_seconds,omitempty"`
	Cancellable             bool       `json:"cancellable"`
	State                   JobState   `json:"state"`
	SubmittedAt             time.Time  `json:"submitted_at"`
	StartedAt               *time.Time `json:"started_at,omitempty"`
	FinishedAt              *time.Time `json:"finished_at,omitempty"`
	ExitCode                *int       `json:"exit_code,omitempty"`
	Forced                  bool       `json:"forced,omitempty"`
	Error                   string     `json:"error,omitempty"`
	Output                  []string   `json:"output,omitempty"`
	DroppedLines            uint64     `json:"dropped_lines,omitempty"`
}

// Spec rebuilds the JobSpec the record was created from.
func (r Record) Spec() JobSpec {
	return JobSpec{
		ID:               r.ID,
		Category:         r.Category,
		Command:          append([]string(nil), r.Command...),
		ExpectedDuration: SecondsToDuration(r.ExpectedDurationSeconds),
		Cancellable:      r.Cancellable,
	}
}

// MetricSample is one reading of system resource usage.
type MetricSample struct {
	Time             time.Time `json:"time"`
	CPUPercent       float64   `json:"cpu_percent"`
	MemoryPercent    float64   `json:"memory_percent"`
	MemoryUsedBytes  uint64    `json:"memory_used_bytes"`
	MemoryTotalBytes uint64    `json:"memory_total_bytes"`
	DiskBusyPercent  float64   `json:"disk_busy_percent"`
	DiskUsedPercent  float64   `json:"disk_used_percent"`
}

// EventKind tags the payload carried by an Event.
type EventKind string

const (
	EventJobOutputLine   EventKind = "job_output_line"
	EventJobStateChanged EventKind = "job_state_changed"
	EventProgressUpdate  EventKind = "progress_update"
	EventMetricSampled   EventKind = "metric_sampled"
	EventSampleError     EventKind = "sample_error"
	// EventJobError reports a failure around a job that does not change its
	// state, such as a signal that could not be sent or a record that could
	// not be archived. Only Error is set.
	EventJobError EventKind = "job_error"
)

// OutputLine is one line of job output. Number counts from 1 per job.
type OutputLine struct {
	Number uint64 `json:"number"`
	Text   string `json:"text"`
}

// StateChange describes a job state transition.
type StateChange struct {
	From     JobState `json:"from"`
	To       JobState `json:"to"`
	ExitCode *int     `json:"exit_code,omitempty"`
	Forced   bool     `json:"forced,omitempty"`
	Error    string   `json:"error,omitempty"`
	Fraction float64  `json:"fraction,omitempty"`
}

// Progress is a completion estimate for a running job.
type Progress struct {
	Fraction    float64       `json:"fraction"`
	Determinate bool          `json:"determinate"`
	ETA         time.Duration `json:"eta"`
	ETAKnown    bool          `json:"eta_known"`
	Elapsed     time.Duration `json:"elapsed"`
	Final       bool          `json:"final,omitempty"`
}

// ErrorDetail describes a failure surfaced as an event.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Event is the tagged union delivered on the event feed. Exactly the payload
// that matches Kind is set.
type Event struct {
	Seq      uint64        `json:"seq"`
	Time     time.Time     `json:"time"`
	Kind     EventKind     `json:"kind"`
	JobID    string        `json:"job_id,omitempty"`
	Line     *OutputLine   `json:"line,omitempty"`
	State    *StateChange  `json:"state,omitempty"`
	Progress *Progress     `json:"progress,omitempty"`
	Metric   *MetricSample `json:"metric,omitempty"`
	Error    *ErrorDetail  `json:"error,omitempty"`
}

// Droppable reports whether the event may be discarded under backpressure.
// Only output lines qualify.
func (e Event) Droppable() bool {
	return e.Kind == EventJobOutputLine
}

// IsTerminal reports whether the event is a job's final state change.
func (e Event) IsTerminal() bool {
	return e.Kind == EventJobStateChanged && e.State != nil && e.State.To.IsTerminal()
}

// SecondsToDuration converts a float seconds value, treating non-positive
// values as unknown (zero).
func SecondsToDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
