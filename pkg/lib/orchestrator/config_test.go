package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"":             ModePerCategory,
		"per-category": ModePerCategory,
		"Exclusive":    ModeExclusive,
		"single":       ModeExclusive,
		" parallel ":   ModeParallel,
		"all":          ModeParallel,
	}
	for in, want := range tests {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ParseMode("round-robin")
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "mode", mutate: func(c *Config) { c.Mode = "bogus" }},
		{name: "grace", mutate: func(c *Config) { c.GracePeriod = -time.Second }},
		{name: "shutdown", mutate: func(c *Config) { c.ShutdownTimeout = 0 }},
		{name: "output", mutate: func(c *Config) { c.OutputLines = 0 }},
		{name: "progress", mutate: func(c *Config) { c.ProgressInterval = 0 }},
		{name: "retain", mutate: func(c *Config) { c.RetainFinished = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
