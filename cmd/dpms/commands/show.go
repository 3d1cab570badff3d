package commands

import (
	"errors"
	"fmt"

	"dpmserver/pkg/descriptor"
	"dpmserver/pkg/layout"
	"dpmserver/pkg/printer"
	"dpmserver/pkg/registry"
	"dpmserver/pkg/types"

	"github.com/spf13/cobra"
)

func newShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:         "show <package>",
		Short:       "Show the descriptor and registry entry of a package",
		Annotations: readOnly(),
		Args:        cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.App()
			if err != nil {
				return err
			}
			name := types.PackageName(args[0])
			if err := layout.ValidateName(name); err != nil {
				return err
			}

			d, err := descriptor.Load(a.Layout.PackageDir(name))
			if err != nil && !errors.Is(err, types.ErrPackageNotFound) {
				return err
			}

			var entry *registry.Entry
			if e, ok := a.Registry.Get(name); ok {
				entry = &e
			}

			if d == nil && entry == nil {
				return fmt.Errorf("package %q: %w", name, types.ErrPackageNotFound)
			}
			return printer.PrintPackage(cmd.OutOrStdout(), name, d, entry)
		},
	}
}
