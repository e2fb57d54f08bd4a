package cli

import (
	"fmt"
	"path/filepath"

	"github.com/365businessdev/alget/internal/manifest"
	"github.com/spf13/cobra"
)

func newTouchCmd(opts *globalOptions) *cobra.Command {
	var folder string

	cmd := &cobra.Command{
		Use:   "touch",
		Short: "Rewrite the project manifest so editors reload it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			store, err := manifest.Open(filepath.Join(folder, cfg.ManifestFile))
			if err != nil {
				return err
			}
			if err := store.Touch(); err != nil {
				return err
			}

			fmt.Printf("%s %s\n", green("✓"), store.Path())
			return nil
		},
	}

	cmd.Flags().StringVarP(&folder, "project", "p", ".", "Project folder")
	return cmd
}
