package cli

import (
	"fmt"
	"strings"

	"github.com/365businessdev/alget/internal/domain"
	"github.com/365businessdev/alget/internal/log"
	"github.com/spf13/cobra"
)

func newRemoveCmd(opts *globalOptions) *cobra.Command {
	var folder string

	cmd := &cobra.Command{
		Use:   "remove <app-id>...",
		Short: "Remove dependencies from a project and delete their cached files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(opts)
			if err != nil {
				return err
			}
			defer e.Close()

			p, err := e.openProject(cmd.Context(), folder, nil, false)
			if err != nil {
				return err
			}

			fmt.Printf("Removing %d package(s)...\n", len(args))

			var failed int
			for _, appID := range args {
				removed, err := p.store.RemoveDependency(appID)
				if err != nil {
					fmt.Printf("\n%s %s: %v\n", red("✗"), appID, err)
					failed++
					continue
				}
				if !removed {
					fmt.Printf("\n%s %s: %v\n", red("✗"), appID, domain.ErrNotFound)
					failed++
					continue
				}

				name := appID
				if pkg := findByAppID(p.catalog.All(), appID); pkg != nil {
					name = pkg.Name
					if _, err := p.cache.Remove(pkg.FileStem()); err != nil {
						log.Warn("Unable to delete cached files of %s: %v", pkg.Name, err)
					}
					if err := e.journal.Forget(p.dir, pkg.PackageID); err != nil {
						log.Warn("Unable to update install history of %s: %v", pkg.Name, err)
					}
				}
				fmt.Printf("\n%s %s\n", green("✓"), bold(name))
			}

			if failed > 0 {
				return fmt.Errorf("failed to remove %d package(s)", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&folder, "project", "p", ".", "Project folder")
	return cmd
}

func findByAppID(packages []*domain.Package, appID string) *domain.Package {
	for _, pkg := range packages {
		if strings.EqualFold(pkg.AppID, appID) {
			return pkg
		}
	}
	return nil
}
