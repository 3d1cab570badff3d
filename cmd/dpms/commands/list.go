package commands

import (
	"slices"

	"dpmserver/pkg/app"
	"dpmserver/pkg/printer"
	"dpmserver/pkg/types"

	"github.com/spf13/cobra"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	var dependentsOf string

	cmd := &cobra.Command{
		Use:         "list",
		Short:       "List registered packages",
		Annotations: readOnly(),
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.App()
			if err != nil {
				return err
			}

			var rows []printer.Row
			if dependentsOf != "" {
				rows, err = dependents(cmd, a, types.PackageName(dependentsOf))
				if err != nil {
					return err
				}
			} else {
				for _, name := range a.Registry.Names() {
					e, _ := a.Registry.Get(name)
					rows = append(rows, printer.Row{Name: name, Entry: e})
				}
			}
			return printer.PrintList(cmd.OutOrStdout(), rows)
		},
	}

	cmd.Flags().StringVar(&dependentsOf, "dependents-of", "", "only list packages that depend on this package")
	return cmd
}

// dependents 优先查询 SQL catalog，未启用时扫描内存中的注册表
func dependents(cmd *cobra.Command, a *app.App, dep types.PackageName) ([]printer.Row, error) {
	var rows []printer.Row

	if a.Catalog != nil {
		// 启动时可能刚重建过注册表，先保证 catalog 是最新的
		if err := a.SyncCatalog(cmd.Context()); err != nil {
			return nil, err
		}
		models, err := a.Catalog.Dependents(cmd.Context(), dep)
		if err != nil {
			return nil, err
		}
		for _, m := range models {
			e, err := m.Entry()
			if err != nil {
				return nil, err
			}
			rows = append(rows, printer.Row{Name: types.PackageName(m.Name), Entry: e})
		}
		return rows, nil
	}

	for _, name := range a.Registry.Names() {
		e, _ := a.Registry.Get(name)
		if slices.Contains(e.Dependencies, string(dep)) {
			rows = append(rows, printer.Row{Name: name, Entry: e})
		}
	}
	return rows, nil
}
