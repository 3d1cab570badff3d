package commands

import (
	"dpmserver/pkg/layout"
	"dpmserver/pkg/ledger"
	"dpmserver/pkg/printer"
	"dpmserver/pkg/types"

	"github.com/spf13/cobra"
)

func newHashCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hash <package>",
		Short: "Recompute hashes.json and the package hash",
		Long:  `Hash every file under Repo/src/<package>, rewrite hashes.json and store its digest in packageInfo.json.`,
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

			out := cmd.OutOrStdout()
			_, pkgHash, err := ledger.Recompute(a.Layout.PackageDir(name), func(n int, path string, h types.Hash) {
				printer.HashLine(out, n, path, h)
			})
			if err != nil {
				return err
			}

			a.Logger.Info("package hashed", "package", name, "hash", pkgHash)
			return nil
		},
	}
}
