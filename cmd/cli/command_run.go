package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/drericflores/hstp/pkg/lib"
	"github.com/drericflores/hstp/pkg/lib/archive"
	"github.com/drericflores/hstp/pkg/lib/catalog"
	"github.com/drericflores/hstp/pkg/lib/eventbus"
	"github.com/drericflores/hstp/pkg/lib/orchestrator"
	"github.com/drericflores/hstp/pkg/lib/runner"
	"github.com/drericflores/hstp/pkg/lib/sampler"
)

type runOptions struct {
	mode     string
	queue    bool
	grace    time.Duration
	interval time.Duration
	metrics  bool
	archive  string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <template>...",
		Short: "Run catalog templates on this machine with live output, progress and metrics",
		Long: "Run catalog templates on this machine. Templates that conflict wait " +
			"their turn unless --queue=false. Ctrl-C stops every job gracefully.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load(root.catalog)
			if err != nil {
				return err
			}

			settings := cat.Settings
			settings.QueueOnConflict = opts.queue
			if cmd.Flags().Changed("mode") {
				settings.Mode = opts.mode
			}
			if cmd.Flags().Changed("grace") {
				settings.GracePeriod = opts.grace
			}
			cfg, err := settings.OrchestratorConfig()
			if err != nil {
				return err
			}

			templates := make([]catalog.Template, 0, len(args))
			for _, name := range args {
				tmpl, err := cat.Template(name)
				if err != nil {
					return errors.Wrapf(err, "known templates: %v", cat.Names())
				}
				templates = append(templates, tmpl)
			}

			interval := settings.SampleInterval
			if cmd.Flags().Changed("interval") {
				interval = opts.interval
			}
			if !opts.metrics {
				interval = 0
			}

			local := localRun{
				config:    cfg,
				interval:  interval,
				templates: templates,
				presenter: newPresenter(cmd.OutOrStdout(), root.output, opts.metrics),
			}
			if opts.archive != "" {
				store, err := archive.OpenSQLite(cmd.Context(), opts.archive)
				if err != nil {
					return err
				}
				defer store.Close()
				local.archive = store
			}

			records, runErr := local.execute(cmd.Context())

			summary := make([]lib.Record, len(records))
			for i, rec := range records {
				rec.Output = nil
				summary[i] = rec
			}
			if root.output == outputTable {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			if err := printRecords(cmd.OutOrStdout(), root.output, summary); err != nil {
				return err
			}

			if runErr != nil {
				return runErr
			}
			return incomplete(records)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.mode, "mode", "", "exclusivity: per-category, exclusive or parallel (default from catalog)")
	flags.BoolVar(&opts.queue, "queue", true, "queue conflicting templates instead of refusing them")
	flags.DurationVar(&opts.grace, "grace", 0, "time between SIGTERM and SIGKILL when stopping (default from catalog)")
	flags.DurationVar(&opts.interval, "interval", 0, "metric sample interval (default from catalog)")
	flags.BoolVar(&opts.metrics, "metrics", true, "sample and show system metrics")
	flags.StringVar(&opts.archive, "archive", "", "SQLite archive to store finished runs in")
	return cmd
}

// localRun wires an in-process orchestrator to the terminal.
type localRun struct {
	config    orchestrator.Config
	interval  time.Duration // 0 disables sampling
	templates []catalog.Template
	archive   archive.Store
	presenter *presenter
	reader    sampler.Reader // defaults to the system reader
}

// execute runs every template to a terminal state and returns their records
// in submission order. Cancelling ctx shuts the run down gracefully.
func (l localRun) execute(ctx context.Context) ([]lib.Record, error) {
	r, err := runner.NewRunner(
		runner.WithWaitDelay(l.config.GracePeriod),
		runner.WithLineCapacity(l.config.OutputLines),
	)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	bus := eventbus.New()
	defer bus.Close()
	sub := bus.Subscribe()
	defer sub.Close()

	var opts []orchestrator.Option
	if l.archive != nil {
		opts = append(opts, orchestrator.WithArchiver(l.archive))
	}
	orch, err := orchestrator.New(l.config, orchestrator.NewRunnerLauncher(r), bus, opts...)
	if err != nil {
		return nil, err
	}

	if l.interval > 0 {
		reader := l.reader
		if reader == nil {
			reader = sampler.NewSystemReader("/")
		}
		s := sampler.New(reader, bus)
		if err := s.Start(l.interval); err != nil {
			return nil, err
		}
		defer s.Stop()
	}

	var (
		ids      []string
		firstErr error
	)
	pending := make(map[string]bool, len(l.templates))
	for _, tmpl := range l.templates {
		id := tmpl.Name + "-" + lib.ShortID()
		if _, err := orch.Submit(tmpl.Spec(id)); err != nil {
			fmt.Fprintf(l.presenter.w, "[%s] not started: %v\n", id, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		ids = append(ids, id)
		pending[id] = true
	}

	shutdown := func() error {
		sctx, cancel := context.WithTimeout(context.Background(), l.config.ShutdownTimeout+5*time.Second)
		defer cancel()
		return orch.Shutdown(sctx)
	}

	var shutdownErr chan error
	interrupted := ctx.Done()
	events := sub.C()
	for len(pending) > 0 {
		select {
		case <-interrupted:
			interrupted = nil
			fmt.Fprintln(l.presenter.w, "interrupted, stopping jobs")
			shutdownErr = make(chan error, 1)
			go func() { shutdownErr <- shutdown() }()
		case ev, ok := <-events:
			if !ok {
				return nil, errors.New("event feed closed unexpectedly")
			}
			l.presenter.handle(ev)
			if ev.IsTerminal() {
				delete(pending, ev.JobID)
			}
		}
	}

	// also waits for the archive writes
	var shutErr error
	if shutdownErr != nil {
		shutErr = <-shutdownErr
	} else {
		shutErr = shutdown()
	}
	if firstErr == nil {
		firstErr = shutErr
	}

	records := make([]lib.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := orch.Status(id)
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
	return records, firstErr
}

func incomplete(records []lib.Record) error {
	failed := 0
	for _, rec := range records {
		if rec.State != lib.JobStateCompleted {
			failed++
		}
	}
	if failed > 0 {
		return errors.Errorf("%d of %d jobs did not complete", failed, len(records))
	}
	return nil
}
