package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"

	"github.com/drericflores/hstp/pkg/lib/catalog"
	"github.com/drericflores/hstp/pkg/lib/orchestrator"
)

const envconfigPrefix = "SRN"

// Config is the daemon configuration. Orchestrator settings left unset here
// come from the catalog.
type Config struct {
	Address   string `envconfig:"ADDRESS" default:"localhost:50051"`
	TLSKey    string `envconfig:"TLS_KEY" required:"true"`
	TLSCert   string `envconfig:"TLS_CERT" required:"true"`
	CATLSCert string `envconfig:"CA_TLS_CERT" required:"true"`

	Catalog         string        `envconfig:"CATALOG"`
	Mode            string        `envconfig:"MODE"`
	GracePeriod     time.Duration `envconfig:"GRACE_PERIOD"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT"`
	SampleInterval  time.Duration `envconfig:"SAMPLE_INTERVAL"`
	OutputLines     int           `envconfig:"OUTPUT_LINES"`
	RetainFinished  int           `envconfig:"RETAIN_FINISHED"`
	History         int           `envconfig:"HISTORY" default:"1024"` // events kept for replay
	Archive         string        `envconfig:"ARCHIVE"`               // sqlite source, empty disables archival
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
}

// GetConfigFromEnvironment returns configuration derived from environment
// variables
func GetConfigFromEnvironment() (Config, error) {
	c := Config{}
	err := envconfig.Process(envconfigPrefix, &c)
	return c, errors.Wrap(err, "error getting server configuration from environment")
}

// orchestratorConfig overlays the non-zero daemon settings on the catalog
// settings.
func (c Config) orchestratorConfig(settings catalog.Settings) (orchestrator.Config, error) {
	if c.Mode != "" {
		settings.Mode = c.Mode
	}
	if c.GracePeriod > 0 {
		settings.GracePeriod = c.GracePeriod
	}
	if c.ShutdownTimeout > 0 {
		settings.ShutdownTimeout = c.ShutdownTimeout
	}
	if c.OutputLines > 0 {
		settings.OutputLines = c.OutputLines
	}
	if c.RetainFinished > 0 {
		settings.RetainFinished = c.RetainFinished
	}
	cfg, err := settings.OrchestratorConfig()
	return cfg, errors.Wrap(err, "invalid orchestrator configuration")
}

func (c Config) sampleInterval(settings catalog.Settings) time.Duration {
	if c.SampleInterval > 0 {
		return c.SampleInterval
	}
	return settings.SampleInterval
}
