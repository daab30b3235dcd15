package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/drericflores/hstp/pkg/lib/catalog"
)

func newCheckCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that the executables of the catalog templates are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load(root.catalog)
			if err != nil {
				return err
			}

			deps := catalog.CheckDependencies(cat.Templates)
			if err := printDependencies(cmd.OutOrStdout(), root.output, deps); err != nil {
				return err
			}

			if missing := catalog.Missing(deps); len(missing) > 0 {
				return errors.Errorf("%d of %d required executables are missing", len(missing), len(deps))
			}
			return nil
		},
	}
	return cmd
}
