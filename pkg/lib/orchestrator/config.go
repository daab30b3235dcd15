package orchestrator

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Mode selects how jobs exclude each other.
type Mode string

const (
	// ModePerCategory allows one running job per category.
	ModePerCategory Mode = "per-category"
	// ModeExclusive allows one running job at all.
	ModeExclusive Mode = "exclusive"
	// ModeParallel applies no exclusivity.
	ModeParallel Mode = "parallel"
)

// ParseMode accepts the mode names, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePerCategory, "category", "":
		return ModePerCategory, nil
	case ModeExclusive, "single":
		return ModeExclusive, nil
	case ModeParallel, "all":
		return ModeParallel, nil
	}
	return "", errors.Errorf("unknown mode %q", s)
}

// Config represents orchestrator configuration
type Config struct {
	Mode             Mode          // exclusivity policy
	QueueOnConflict  bool          // queue conflicting submissions instead of rejecting them
	GracePeriod      time.Duration // time between SIGTERM and SIGKILL
	ShutdownTimeout  time.Duration // upper bound for Shutdown
	OutputLines      int           // lines retained per job
	ProgressInterval time.Duration // period of progress updates
	RetainFinished   int           // finished runs kept in memory, 0 keeps all
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Mode:             ModePerCategory,
		GracePeriod:      5 * time.Second,
		ShutdownTimeout:  30 * time.Second,
		OutputLines:      10000,
		ProgressInterval: time.Second,
		RetainFinished:   1000,
	}
}

// Validate validates configuration
func (cfg Config) Validate() error {
	switch cfg.Mode {
	case ModePerCategory, ModeExclusive, ModeParallel:
	default:
		return errors.Errorf("unknown mode %q", cfg.Mode)
	}
	if cfg.GracePeriod < 0 {
		return errors.New("grace period must be greater than or equal to 0")
	}
	if cfg.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be greater than 0")
	}
	if cfg.OutputLines < 1 {
		return errors.New("output lines must be greater than 0")
	}
	if cfg.ProgressInterval <= 0 {
		return errors.New("progress interval must be greater than 0")
	}
	if cfg.RetainFinished < 0 {
		return errors.New("retained finished runs must be greater than or equal to 0")
	}
	return nil
}
