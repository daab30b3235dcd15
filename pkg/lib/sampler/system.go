package sampler

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/drericflores/hstp/pkg/lib"
)

// SystemReader reads host metrics through gopsutil. CPU and disk busy
// percentages are computed against the previous Read, so the first reading
// covers the time since boot.
type SystemReader struct {
	// Path is the filesystem whose usage is reported. Defaults to "/".
	Path string

	mu         sync.Mutex
	lastIOTime map[string]uint64
	lastIOAt   time.Time
}

func NewSystemReader(path string) *SystemReader {
	if path == "" {
		path = "/"
	}
	return &SystemReader{Path: path}
}

func (r *SystemReader) Read(ctx context.Context) (lib.MetricSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sample := lib.MetricSample{Time: time.Now()}

	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return lib.MetricSample{}, errors.Wrap(err, "error reading cpu usage")
	}
	if len(percents) > 0 {
		sample.CPUPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return lib.MetricSample{}, errors.Wrap(err, "error reading memory usage")
	}
	sample.MemoryPercent = vm.UsedPercent
	sample.MemoryUsedBytes = vm.Used
	sample.MemoryTotalBytes = vm.Total

	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return lib.MetricSample{}, errors.Wrap(err, "error reading disk counters")
	}
	sample.DiskBusyPercent = r.busyPercent(counters, sample.Time)

	usage, err := disk.UsageWithContext(ctx, r.Path)
	if err != nil {
		return lib.MetricSample{}, errors.Wrapf(err, "error reading usage of %s", r.Path)
	}
	sample.DiskUsedPercent = usage.UsedPercent

	return sample, nil
}

// busyPercent is the share of wall time the busiest device spent doing I/O
// since the previous call.
func (r *SystemReader) busyPercent(counters map[string]disk.IOCountersStat, now time.Time) float64 {
	current := make(map[string]uint64, len(counters))
	for name, c := range counters {
		current[name] = c.IoTime
	}
	prev, prevAt := r.lastIOTime, r.lastIOAt
	r.lastIOTime, r.lastIOAt = current, now

	if prev == nil {
		return 0
	}
	return BusyPercent(prev, current, now.Sub(prevAt))
}

// BusyPercent computes the I/O busy percentage of the busiest device from
// two snapshots of cumulative busy milliseconds taken elapsed apart.
func BusyPercent(prev, current map[string]uint64, elapsed time.Duration) float64 {
	wall := float64(elapsed.Milliseconds())
	if wall <= 0 {
		return 0
	}
	var busiest float64
	for name, now := range current {
		before, ok := prev[name]
		if !ok || now < before {
			continue
		}
		if p := float64(now-before) / wall * 100; p > busiest {
			busiest = p
		}
	}
	if busiest > 100 {
		busiest = 100
	}
	return busiest
}
