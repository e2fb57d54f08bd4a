package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInstallCmd(opts *globalOptions) *cobra.Command {
	var versionRange, folder string

	cmd := &cobra.Command{
		Use:   "install <package-id>...",
		Short: "Install packages and their dependencies into a project",
		Args:  cobra.MinimumNArgs(1),
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

			var failed int
			for _, id := range args {
				if err := p.manager.Install(ctx, id, versionRange); err != nil {
					fmt.Printf("%s %s: %v\n", red("✗"), id, err)
					failed++
					continue
				}

				pkg, err := p.catalog.Get(id)
				if err != nil {
					fmt.Printf("%s %s\n", green("✓"), bold(id))
					continue
				}
				fmt.Printf("%s %s%s%s\n  %s %s\n",
					green("✓"), bold(pkg.Name), bold("@"), bold(pkg.Version),
					cyan("path:"), p.cache.Path(pkg.FileName(pkg.Version)))
			}

			if failed > 0 {
				return fmt.Errorf("failed to install %d package(s)", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&versionRange, "version", "v", "", "Version or version range, e.g. [1.0.0.0,2.0.0.0)")
	cmd.Flags().StringVarP(&folder, "project", "p", ".", "Project folder")
	return cmd
}
