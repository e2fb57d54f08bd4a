package cli

import (
	"fmt"

	"github.com/365businessdev/alget/internal/domain"
	"github.com/spf13/cobra"
)

func newListCmd(opts *globalOptions) *cobra.Command {
	var updates bool
	var folder string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the packages of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(opts)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			var stop func()
			if updates {
				stop = withSpinner(ctx, "Checking for updates...")
			}
			p, err := e.openProject(ctx, folder, nil, updates)
			if stop != nil {
				stop()
			}
			if err != nil {
				return err
			}

			var packages []*domain.Package
			for _, pkg := range p.catalog.All() {
				if updates && pkg.UpdateVersion == "" {
					continue
				}
				packages = append(packages, pkg)
			}

			if len(packages) == 0 {
				if updates {
					fmt.Printf("\n%s All packages are up-to-date\n", dim("○"))
				} else {
					fmt.Printf("\n%s No packages declared\n", dim("○"))
				}
				return nil
			}

			label := "Packages:"
			if updates {
				label = "Available updates:"
			}
			fmt.Printf("%s\n\n", label)

			for _, pkg := range packages {
				mark := dim("○")
				if pkg.IsInstalled {
					mark = green("✓")
				}
				line := fmt.Sprintf("%s %s", mark, bold(fmt.Sprintf("%s@%s", pkg.Name, pkg.Version)))
				if pkg.UpdateVersion != "" {
					line += fmt.Sprintf("  %s", yellow(fmt.Sprintf("↑ %s", pkg.UpdateVersion)))
				}
				line += fmt.Sprintf("  %s", dim(pkg.Source.Name))
				fmt.Println(line)
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&updates, "updates", "u", false, "Only list packages with a newer version")
	cmd.Flags().StringVarP(&folder, "project", "p", ".", "Project folder")
	return cmd
}
