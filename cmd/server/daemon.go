package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/drericflores/hstp/pkg/lib/archive"
	"github.com/drericflores/hstp/pkg/lib/catalog"
	"github.com/drericflores/hstp/pkg/lib/eventbus"
	"github.com/drericflores/hstp/pkg/lib/orchestrator"
	"github.com/drericflores/hstp/pkg/lib/runner"
	"github.com/drericflores/hstp/pkg/lib/sampler"
)

// daemon owns every long-lived component of the server process.
type daemon struct {
	bus      *eventbus.Bus
	runner   *runner.Runner
	orch     *orchestrator.Orchestrator
	sampler  *sampler.Sampler
	archive  archive.Store
	interval time.Duration
	timeout  time.Duration
}

func newDaemon(ctx context.Context, cfg Config) (*daemon, error) {
	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	orchCfg, err := cfg.orchestratorConfig(cat.Settings)
	if err != nil {
		return nil, err
	}

	d := &daemon{
		bus:      eventbus.New(eventbus.WithHistory(cfg.History)),
		interval: cfg.sampleInterval(cat.Settings),
		timeout:  orchCfg.ShutdownTimeout,
	}

	d.runner, err = runner.NewRunner(
		runner.WithWaitDelay(orchCfg.GracePeriod),
		runner.WithLineCapacity(orchCfg.OutputLines),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create runner")
	}

	var opts []orchestrator.Option
	if cfg.Archive != "" {
		store, err := archive.OpenSQLite(ctx, cfg.Archive)
		if err != nil {
			_ = d.runner.Close()
			return nil, err
		}
		d.archive = store
		opts = append(opts, orchestrator.WithArchiver(store))
	}

	d.orch, err = orchestrator.New(orchCfg, orchestrator.NewRunnerLauncher(d.runner), d.bus, opts...)
	if err != nil {
		d.close()
		return nil, err
	}

	d.sampler = sampler.New(sampler.NewSystemReader("/"), d.bus)

	logger.WithField("mode", orchCfg.Mode).
		WithField("catalog", cat.File).
		WithField("archive", cfg.Archive).
		Info("daemon configured")
	return d, nil
}

func (d *daemon) start() error {
	return d.sampler.Start(d.interval)
}

// shutdown stops every job within the orchestrator's budget, then the
// sampler, and finally closes the feed so event streams end.
func (d *daemon) shutdown() error {
	// a little past the budget so forced kills can still be reported
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout+5*time.Second)
	defer cancel()

	err := d.orch.Shutdown(ctx)
	d.sampler.Stop()
	d.bus.Close()
	d.close()
	return err
}

func (d *daemon) close() {
	if err := d.runner.Close(); err != nil {
		logger.WithError(err).Warn("error closing runner")
	}
	if d.archive != nil {
		if err := d.archive.Close(); err != nil {
			logger.WithError(err).Warn("error closing archive")
		}
	}
}
