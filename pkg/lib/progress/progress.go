// Package progress turns elapsed time and a duration hint into a completion
// estimate.
package progress

import (
	"fmt"
	"time"

	"github.com/drericflores/hstp/pkg/lib"
)

// MaxRunning is the highest fraction reported while a job is still running.
// Only the terminal estimate reaches 1.
const MaxRunning = 0.99

// Estimate returns the progress of a job started at startedAt. A non-positive
// expected duration means unknown: the estimate is indeterminate and carries
// no ETA.
func Estimate(startedAt, now time.Time, expected time.Duration) lib.Progress {
	elapsed := now.Sub(startedAt)
	if elapsed < 0 {
		elapsed = 0
	}

	if expected <= 0 {
		return lib.Progress{Elapsed: elapsed}
	}

	fraction := float64(elapsed) / float64(expected)
	if fraction > MaxRunning {
		fraction = MaxRunning
	}

	eta := expected - elapsed
	if eta < 0 {
		eta = 0
	}

	return lib.Progress{
		Fraction:    fraction,
		Determinate: true,
		ETA:         eta.Round(time.Second),
		ETAKnown:    true,
		Elapsed:     elapsed,
	}
}

// Final is the estimate carried by a job's terminal event.
func Final(elapsed time.Duration) lib.Progress {
	if elapsed < 0 {
		elapsed = 0
	}
	return lib.Progress{
		Fraction:    1,
		Determinate: true,
		ETAKnown:    true,
		Elapsed:     elapsed,
		Final:       true,
	}
}

// FormatETA renders p's ETA as mm:ss, or --:-- when it is unknown. Durations
// beyond 99 minutes keep growing the minutes field.
func FormatETA(p lib.Progress) string {
	if !p.ETAKnown {
		return "--:--"
	}
	return FormatClock(p.ETA)
}

// FormatClock renders d as mm:ss.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
