package cli

import (
	"fmt"
	"strings"

	"github.com/365businessdev/alget/internal/resolver"
	"github.com/spf13/cobra"
)

func newDepsCmd(opts *globalOptions) *cobra.Command {
	var version, folder string
	var recursive bool

	cmd := &cobra.Command{
		Use:   "deps <package-id>",
		Short: "Show the declared dependencies of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(opts)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			p, err := e.openProject(ctx, folder, nil, false)
			if err != nil {
				return err
			}

			if !recursive {
				deps, err := p.manager.Dependencies(ctx, args[0], version)
				if err != nil {
					return err
				}
				if len(deps) == 0 {
					fmt.Printf("%s %s has no dependencies\n", dim("○"), args[0])
					return nil
				}
				for _, dep := range deps {
					fmt.Println(depLine(dep.ID, dep.Version, 1, p.manager.IsInstalled(dep.ID)))
				}
				return nil
			}

			stop := withSpinner(ctx, fmt.Sprintf("Resolving %s...", args[0]))
			resolved, err := resolver.New(p.manager).Resolve(ctx, args[0], version)
			stop()
			if err != nil {
				return err
			}

			// the root comes last
			for _, rp := range resolved[:len(resolved)-1] {
				fmt.Println(depLine(rp.PackageID, rp.VersionRange, rp.Depth, rp.AlreadyInstalled))
			}
			if len(resolved) == 1 {
				fmt.Printf("%s %s has no dependencies\n", dim("○"), args[0])
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&version, "version", "v", "", "Package version")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Include transitive dependencies in install order")
	cmd.Flags().StringVarP(&folder, "project", "p", ".", "Project folder")
	return cmd
}

func depLine(id, version string, depth int, installed bool) string {
	line := fmt.Sprintf("%s%s %s %s", strings.Repeat("  ", depth-1), dim("↳"), bold(id), version)
	if installed {
		line += " " + dim("(installed)")
	}
	return line
}
