package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/drericflores/hstp/pkg/lib"
	"github.com/drericflores/hstp/pkg/lib/archive"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var (
		source   string
		category string
		state    string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "history [job_id]",
		Short: "List archived runs, or show one with its output",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := archive.OpenSQLite(ctx, source)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				rec, err := store.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printRecord(cmd.OutOrStdout(), root.output, rec)
			}

			filter := archive.Filter{State: lib.JobState(state), Limit: limit}
			if category != "" {
				if filter.Category, err = lib.ParseCategory(category); err != nil {
					return err
				}
			}
			records, err := store.List(ctx, filter)
			if err != nil {
				return err
			}
			return printRecords(cmd.OutOrStdout(), root.output, records)
		},
	}

	defaultSource := os.Getenv("SRN_ARCHIVE")
	if defaultSource == "" {
		defaultSource = "hstp-archive.db"
	}

	flags := cmd.Flags()
	flags.StringVar(&source, "archive", defaultSource, "SQLite archive to read")
	flags.StringVarP(&category, "category", "c", "", "only runs of this category")
	flags.StringVar(&state, "state", "", "only runs that ended in this state")
	flags.IntVarP(&limit, "limit", "n", 20, "most recent runs to show, 0 for all")
	return cmd
}
