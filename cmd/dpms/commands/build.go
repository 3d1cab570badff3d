package commands

import (
	"fmt"

	"dpmserver/pkg/archive"
	"dpmserver/pkg/layout"
	"dpmserver/pkg/types"

	"github.com/spf13/cobra"
)

func newBuildCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "build <package>",
		Short: "Build Repo/<package>.zip from the source tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.App()
			if err != nil {
				return err
			}
			name := types.PackageName(args[0])
			if err := layout.ValidateName(name); err != nil {
				return err
			}

			archivePath := a.Layout.ArchivePath(name)
			if err := archive.Build(a.Layout.PackageDir(name), archivePath); err != nil {
				return err
			}

			a.Logger.Info("archive built", "package", name, "path", archivePath)
			fmt.Fprintf(cmd.OutOrStdout(), "Built %s\n", archivePath)
			return nil
		},
	}
}
