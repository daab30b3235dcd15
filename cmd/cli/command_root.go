package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/drericflores/hstp/pkg/lib"
)

type rootOptions struct {
	output   string
	logLevel string
	catalog  string
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "hstp",
		Short:         "Hardware stress test runner",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutputFormat(opts.output); err != nil {
				return err
			}
			level, err := logrus.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			lib.Logger.SetOutput(cmd.ErrOrStderr())
			lib.Logger.SetLevel(level)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.output, "output", "o", outputTable, "output format: table, json or yaml")
	flags.StringVar(&opts.logLevel, "log-level", "warning", "log level for diagnostics on stderr")
	flags.StringVar(&opts.catalog, "catalog", "", "catalog file (default: catalog.yaml in /etc/hstp, ~/.hstp or .)")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newCheckCmd(opts))
	root.AddCommand(newStartCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newStopCmd(opts))
	root.AddCommand(newListCmd(opts))
	root.AddCommand(newEventsCmd(opts))
	root.AddCommand(newHistoryCmd(opts))

	return root
}
