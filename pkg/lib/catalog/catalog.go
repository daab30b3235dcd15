// Package catalog loads named job templates and orchestrator settings from a
// configuration file or the environment.
package catalog

import (
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/drericflores/hstp/pkg/lib"
	"github.com/drericflores/hstp/pkg/lib/orchestrator"
)

var logger = lib.Logger.WithField("component", "catalog")

const envPrefix = "HSTP"

// Template is a named, reusable job description.
type Template struct {
	Name             string        `mapstructure:"name" json:"name"`
	Category         lib.Category  `mapstructure:"category" json:"category"`
	Command          []string      `mapstructure:"command" json:"command"`
	ExpectedDuration time.Duration `mapstructure:"expected_duration" json:"expected_duration,omitempty"`
	Cancellable      bool          `mapstructure:"cancellable" json:"cancellable"`
	InstallHint      string        `mapstructure:"install_hint" json:"install_hint,omitempty"`
}

// Spec builds a JobSpec with the given id.
func (t Template) Spec(id string) lib.JobSpec {
	return lib.JobSpec{
		ID:               id,
		Category:         t.Category,
		Command:          append([]string(nil), t.Command...),
		ExpectedDuration: t.ExpectedDuration,
		Cancellable:      t.Cancellable,
	}
}

func (t Template) validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("template name is required")
	}
	if len(t.Command) == 0 || strings.TrimSpace(t.Command[0]) == "" {
		return errors.Errorf("template %q: command is required", t.Name)
	}
	if t.ExpectedDuration < 0 {
		return errors.Errorf("template %q: expected duration must not be negative", t.Name)
	}
	return nil
}

// Settings configures the orchestrator and the sampler.
type Settings struct {
	Mode            string        `json:"mode"`
	QueueOnConflict bool          `json:"queue_on_conflict"`
	GracePeriod     time.Duration `json:"grace_period"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	OutputLines     int           `json:"output_lines"`
	SampleInterval  time.Duration `json:"sample_interval"`
	RetainFinished  int           `json:"retain_finished"`
}

// OrchestratorConfig applies the settings over orchestrator.DefaultConfig
// and validates the result.
func (s Settings) OrchestratorConfig() (orchestrator.Config, error) {
	cfg := orchestrator.DefaultConfig()
	mode, err := orchestrator.ParseMode(s.Mode)
	if err != nil {
		return cfg, err
	}
	cfg.Mode = mode
	cfg.QueueOnConflict = s.QueueOnConflict
	cfg.GracePeriod = s.GracePeriod
	if s.ShutdownTimeout > 0 {
		cfg.ShutdownTimeout = s.ShutdownTimeout
	}
	if s.OutputLines > 0 {
		cfg.OutputLines = s.OutputLines
	}
	if s.RetainFinished > 0 {
		cfg.RetainFinished = s.RetainFinished
	}
	return cfg, cfg.Validate()
}

// Catalog is the loaded configuration.
type Catalog struct {
	Settings  Settings
	Templates []Template
	// File is the configuration file that was read, empty for built-in
	// defaults.
	File string
}

// Load reads the catalog from path. With an empty path it looks for
// catalog.{yaml,json,toml} in /etc/hstp, $HOME/.hstp and the working
// directory, falling back to the built-in templates. Settings can be
// overridden with HSTP_* environment variables.
func Load(path string) (*Catalog, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("catalog")
		v.AddConfigPath("/etc/hstp")
		v.AddConfigPath("$HOME/.hstp")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "error reading catalog")
		}
		logger.Debug("no catalog file found, using built-in templates")
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "per-category")
	v.SetDefault("queue_on_conflict", false)
	v.SetDefault("grace_period", 5*time.Second)
	v.SetDefault("shutdown_timeout", 30*time.Second)
	v.SetDefault("output_lines", 10000)
	v.SetDefault("sample_interval", time.Second)
	v.SetDefault("retain_finished", 1000)
}

func fromViper(v *viper.Viper) (*Catalog, error) {
	c := &Catalog{
		Settings: Settings{
			Mode:            v.GetString("mode"),
			QueueOnConflict: v.GetBool("queue_on_conflict"),
			GracePeriod:     v.GetDuration("grace_period"),
			ShutdownTimeout: v.GetDuration("shutdown_timeout"),
			OutputLines:     v.GetInt("output_lines"),
			SampleInterval:  v.GetDuration("sample_interval"),
			RetainFinished:  v.GetInt("retain_finished"),
		},
		File: v.ConfigFileUsed(),
	}

	if v.IsSet("templates") {
		if err := v.UnmarshalKey("templates", &c.Templates); err != nil {
			return nil, errors.Wrap(err, "error decoding templates")
		}
	} else {
		c.Templates = DefaultTemplates()
	}

	seen := map[string]bool{}
	for i := range c.Templates {
		t := &c.Templates[i]
		if err := t.validate(); err != nil {
			return nil, err
		}
		category, err := lib.ParseCategory(string(t.Category))
		if err != nil {
			return nil, errors.Wrapf(err, "template %q", t.Name)
		}
		t.Category = category
		if seen[t.Name] {
			return nil, errors.Errorf("template %q is defined twice", t.Name)
		}
		seen[t.Name] = true
	}
	return c, nil
}

// Template returns the template called name.
func (c *Catalog) Template(name string) (Template, error) {
	for _, t := range c.Templates {
		if t.Name == name {
			return t, nil
		}
	}
	return Template{}, lib.NewErrNotFound("template", name)
}

// Names lists the template names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Templates))
	for _, t := range c.Templates {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// DefaultTemplates mirrors the stock test set: stress-ng for CPU and memory,
// glmark2 for the GPU, fio for the disk and iperf3 for the network.
func DefaultTemplates() []Template {
	return []Template{
		{
			Name:             "cpu",
			Category:         lib.CategoryCPU,
			Command:          []string{"stress-ng", "--cpu", "4", "--timeout", "300s"},
			ExpectedDuration: 300 * time.Second,
			Cancellable:      true,
			InstallHint:      "sudo apt install stress-ng",
		},
		{
			Name:             "memory",
			Category:         lib.CategoryMemory,
			Command:          []string{"stress-ng", "--vm", "2", "--vm-bytes", "512M", "--timeout", "300s"},
			ExpectedDuration: 300 * time.Second,
			Cancellable:      true,
			InstallHint:      "sudo apt install stress-ng",
		},
		{
			Name:        "gpu",
			Category:    lib.CategoryGPU,
			Command:     []string{"glmark2"},
			Cancellable: true,
			InstallHint: "sudo apt install glmark2",
		},
		{
			Name:     "disk",
			Category: lib.CategoryDisk,
			Command: []string{
				"fio", "--name=randrw", "--rw=randrw", "--size=1G",
				"--runtime=60", "--time_based=1", "--filename=fio_testfile.bin",
				"--ioengine=libaio", "--direct=1",
			},
			ExpectedDuration: 60 * time.Second,
			Cancellable:      true,
			InstallHint:      "sudo apt install fio",
		},
		{
			Name:        "network",
			Category:    lib.CategoryNetwork,
			Command:     []string{"iperf3", "-c", "127.0.0.1"},
			Cancellable: true,
			InstallHint: "sudo apt install iperf3",
		},
	}
}
