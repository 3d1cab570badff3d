package commands

import (
	"fmt"

	"dpmserver/pkg/logging"
	"dpmserver/pkg/types"
	"dpmserver/pkg/verify"

	"github.com/spf13/cobra"
)

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:         "verify <package>",
		Short:       "Check Repo/<package>.zip against RepoInfo.json and hashes.json",
		Annotations: readOnly(),
		Args:        cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.App()
			if err != nil {
				return err
			}

			report, err := verify.Package(a.Layout, a.Registry, types.PackageName(args[0]))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, m := range report.Mismatches {
				fmt.Fprintf(out, "%s %s\n", logging.LabelStyle.Render(string(m.Kind)), m.Path)
				if m.Want != "" {
					fmt.Fprintf(out, "    want %s\n", m.Want)
				}
				if m.Got != "" {
					fmt.Fprintf(out, "    got  %s\n", m.Got)
				}
			}
			if err := report.Err(); err != nil {
				return err
			}

			if !report.Registered {
				a.Logger.Warn("package is not registered", "package", report.Package)
			}
			fmt.Fprintf(out, "%s %s: %d files match\n", logging.OKStyle.Render("OK"), report.Package, report.Checked)
			return nil
		},
	}
}
