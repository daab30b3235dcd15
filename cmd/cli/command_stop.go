package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	apiv1 "github.com/drericflores/hstp/api/v1"
)

func newStopCmd(root *rootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "stop <job_id>",
		Short: "Stop a job and wait for its final state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			return withClient(ctx, func(client *apiv1.Client) error {
				rec, err := client.Stop(ctx, args[0])
				if err != nil {
					return explain(err, "stop it")
				}
				// Print the record returned by Stop directly
				return printRecord(cmd.OutOrStdout(), root.output, rec)
			})
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for the job to end")
	return cmd
}
