package commands

import (
	"fmt"

	"dpmserver/pkg/descriptor"
	"dpmserver/pkg/layout"
	"dpmserver/pkg/types"

	"github.com/spf13/cobra"
)

func newInitCmd(opts *rootOptions) *cobra.Command {
	var (
		version     string
		description string
	)

	cmd := &cobra.Command{
		Use:   "init <name> <entry>",
		Short: "Create a new package under Repo/src",
		Long:  `Create Repo/src/<name> with an empty entry file, an empty hashes.json and packageInfo.json.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.App()
			if err != nil {
				return err
			}
			name := types.PackageName(args[0])
			if err := layout.ValidateName(name); err != nil {
				return err
			}

			// 非 semver 的版本号依然接受，只给出提示
			if err := descriptor.CheckVersion(version); err != nil {
				a.Logger.Warn("version is not semver", "version", version)
			}

			d, err := descriptor.Create(a.Layout.PackageDir(name), name, args[1], version, description)
			if err != nil {
				return err
			}

			a.Logger.Info("package created", "package", d.PackageName, "version", d.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s in %s\n", d.PackageName, a.Layout.PackageDir(name))
			return nil
		},
	}

	cmd.Flags().StringVarP(&version, "ver", "v", descriptor.DefaultVersion, "package version")
	cmd.Flags().StringVarP(&description, "description", "d", descriptor.DefaultDescription, "package description")
	return cmd
}
