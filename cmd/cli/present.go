package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/drericflores/hstp/pkg/lib"
	"github.com/drericflores/hstp/pkg/lib/progress"
)

// presenter renders feed events as terminal lines: job output prefixed with
// the job id, progress with an ETA, and one line per metric sample.
type presenter struct {
	w       io.Writer
	json    bool
	metrics bool
}

func newPresenter(w io.Writer, outputFormat string, metrics bool) *presenter {
	return &presenter{
		w:       w,
		json:    strings.EqualFold(outputFormat, outputJSON),
		metrics: metrics,
	}
}

func (p *presenter) handle(ev lib.Event) {
	if !p.metrics && (ev.Kind == lib.EventMetricSampled || ev.Kind == lib.EventSampleError) {
		return
	}
	if p.json {
		if data, err := json.Marshal(ev); err == nil {
			fmt.Fprintln(p.w, string(data))
		}
		return
	}
	if line := formatEvent(ev); line != "" {
		fmt.Fprintln(p.w, line)
	}
}

func formatEvent(ev lib.Event) string {
	switch ev.Kind {
	case lib.EventJobOutputLine:
		if ev.Line == nil {
			return ""
		}
		return fmt.Sprintf("[%s] %s", ev.JobID, ev.Line.Text)

	case lib.EventJobStateChanged:
		if ev.State == nil {
			return ""
		}
		return fmt.Sprintf("[%s] %s", ev.JobID, formatStateChange(*ev.State))

	case lib.EventProgressUpdate:
		if ev.Progress == nil {
			return ""
		}
		return fmt.Sprintf("[%s] %s", ev.JobID, formatProgress(*ev.Progress))

	case lib.EventMetricSampled:
		if ev.Metric == nil {
			return ""
		}
		return formatMetric(*ev.Metric)

	case lib.EventJobError:
		if ev.Error == nil {
			return ""
		}
		return fmt.Sprintf("[%s] %s: %s", ev.JobID, strings.ReplaceAll(ev.Error.Kind, "_", " "), ev.Error.Message)

	case lib.EventSampleError:
		if ev.Error == nil {
			return "metrics unavailable"
		}
		return "metrics unavailable: " + ev.Error.Message
	}
	return ""
}

func formatStateChange(sc lib.StateChange) string {
	var b strings.Builder
	b.WriteString(string(sc.To))
	if sc.ExitCode != nil {
		fmt.Fprintf(&b, ", exit code %d", *sc.ExitCode)
	}
	if sc.Forced {
		b.WriteString(", killed")
	}
	if sc.Error != "" {
		fmt.Fprintf(&b, ": %s", sc.Error)
	}
	return b.String()
}

const barWidth = 20

func formatProgress(p lib.Progress) string {
	if !p.Determinate {
		return fmt.Sprintf("running %s", progress.FormatClock(p.Elapsed))
	}
	filled := int(p.Fraction * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled)
	return fmt.Sprintf("[%s] %3.0f%% ETA %s", bar, p.Fraction*100, progress.FormatETA(p))
}

func formatMetric(m lib.MetricSample) string {
	return fmt.Sprintf("CPU %.1f%% | MEM %.1f%% (%s/%s) | DISK busy %.1f%% used %.1f%%",
		m.CPUPercent,
		m.MemoryPercent,
		formatBytes(m.MemoryUsedBytes),
		formatBytes(m.MemoryTotalBytes),
		m.DiskBusyPercent,
		m.DiskUsedPercent,
	)
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
