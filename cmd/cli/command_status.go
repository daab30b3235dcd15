package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	apiv1 "github.com/drericflores/hstp/api/v1"
)

func newStatusCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <job_id>",
		Short: "Show a job with its retained output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			return withClient(ctx, func(client *apiv1.Client) error {
				rec, err := client.Status(ctx, args[0])
				if err != nil {
					return explain(err, "get its status")
				}
				return printRecord(cmd.OutOrStdout(), root.output, rec)
			})
		},
	}
	return cmd
}

func newListCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			return withClient(ctx, func(client *apiv1.Client) error {
				records, err := client.List(ctx)
				if err != nil {
					return explain(err, "list it")
				}
				return printRecords(cmd.OutOrStdout(), root.output, records)
			})
		},
	}
	return cmd
}
