package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	apiv1 "github.com/drericflores/hstp/api/v1"
	"github.com/drericflores/hstp/pkg/lib"
	"github.com/drericflores/hstp/pkg/lib/catalog"
)

type startOptions struct {
	template string
	id       string
	category string
	expected time.Duration
	noCancel bool
}

func newStartCmd(root *rootOptions) *cobra.Command {
	opts := &startOptions{}

	cmd := &cobra.Command{
		Use:   "start (--template <name> | --category <category> -- <command> [args...])",
		Short: "Submit a job to the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := buildSpec(root, opts, args)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			return withClient(ctx, func(client *apiv1.Client) error {
				id, err := client.Submit(ctx, spec)
				if err != nil {
					return explain(err, "use this id")
				}
				// Print only the job ID so scripts can capture it
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.template, "template", "t", "", "catalog template to run")
	flags.StringVar(&opts.id, "id", "", "job id (default: generated)")
	flags.StringVarP(&opts.category, "category", "c", "", "category of an ad-hoc command: cpu, memory, gpu, disk or network")
	flags.DurationVar(&opts.expected, "expected", 0, "expected duration of an ad-hoc command, enables progress estimates")
	flags.BoolVar(&opts.noCancel, "no-cancel", false, "refuse stop requests for this job")
	return cmd
}

// buildSpec turns the start flags into a JobSpec, from a catalog template or
// from the command after --.
func buildSpec(root *rootOptions, opts *startOptions, args []string) (lib.JobSpec, error) {
	var spec lib.JobSpec

	switch {
	case opts.template != "" && len(args) > 0:
		return spec, errors.New("use either --template or a command, not both")

	case opts.template != "":
		cat, err := catalog.Load(root.catalog)
		if err != nil {
			return spec, err
		}
		tmpl, err := cat.Template(opts.template)
		if err != nil {
			return spec, err
		}
		spec = tmpl.Spec(opts.id)
		if opts.id == "" {
			spec.ID = tmpl.Name + "-" + lib.ShortID()
		}

	case len(args) > 0:
		if opts.category == "" {
			return spec, errors.New("--category is required with an ad-hoc command")
		}
		category, err := lib.ParseCategory(opts.category)
		if err != nil {
			return spec, err
		}
		spec = lib.JobSpec{
			ID:               opts.id,
			Category:         category,
			Command:          args,
			ExpectedDuration: opts.expected,
			Cancellable:      true,
		}
		if spec.ID == "" {
			spec.ID = string(category) + "-" + lib.ShortID()
		}

	default:
		return spec, errors.New("a template or a command to execute is required; use -- to separate CLI flags from the command")
	}

	if opts.noCancel {
		spec.Cancellable = false
	}
	return spec, spec.Validate()
}
