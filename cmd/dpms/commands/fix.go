package commands

import (
	"fmt"

	"dpmserver/pkg/types"

	"github.com/spf13/cobra"
)

func newFixCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Edit RepoInfo.json entries",
	}
	cmd.AddCommand(newFixAddCmd(opts), newFixDelCmd(opts))
	return cmd
}

func newFixAddCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <package>",
		Short: "Derive a registry entry from Repo/<package>.zip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.App()
			if err != nil {
				return err
			}
			name := types.PackageName(args[0])

			e, err := a.Registry.AddFromBuild(name)
			if err != nil {
				return err
			}

			a.Logger.Info("registry entry updated", "package", name, "version", e.Version, "hash", e.Hash.Short())
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", name, e.Hash)
			return nil
		},
	}
}

func newFixDelCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "del <package>",
		Short: "Remove a registry entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.App()
			if err != nil {
				return err
			}
			name := types.PackageName(args[0])

			e, err := a.Registry.Remove(name)
			if err != nil {
				return err
			}

			a.Logger.Info("registry entry removed", "package", name, "file", e.FileName)
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", name)
			return nil
		},
	}
}
