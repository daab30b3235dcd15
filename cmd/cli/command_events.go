package main

import (
	"io"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"

	apiv1 "github.com/drericflores/hstp/api/v1"
)

func newEventsCmd(root *rootOptions) *cobra.Command {
	var (
		replay  int
		metrics bool
	)

	cmd := &cobra.Command{
		Use:   "events [job_id]",
		Short: "Follow the live event feed",
		Long: "Follow the live event feed. With a job id, only that job's events are " +
			"shown and the command ends when the job does.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := apiv1.EventsRequest{Replay: replay}
			if len(args) == 1 {
				req.JobID = args[0]
			}
			ctx := cmd.Context()
			p := newPresenter(cmd.OutOrStdout(), root.output, metrics)

			return withClient(ctx, func(client *apiv1.Client) error {
				stream, err := client.Events(ctx, req)
				if err != nil {
					return explain(err, "follow it")
				}
				for {
					ev, err := stream.Recv()
					if err == io.EOF {
						return nil
					}
					if grpcCode(err) == codes.Canceled && ctx.Err() != nil {
						return nil
					}
					if err != nil {
						return explain(err, "follow it")
					}
					p.handle(ev)
					if req.JobID != "" && ev.JobID == req.JobID && ev.IsTerminal() {
						return nil
					}
				}
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&replay, "replay", 0, "number of past events to show first")
	flags.BoolVar(&metrics, "metrics", true, "show system metric samples")
	return cmd
}
