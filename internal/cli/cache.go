package cli

import (
	"fmt"
	"path/filepath"

	"github.com/365businessdev/alget/internal/cache"
	"github.com/365businessdev/alget/internal/registry"
	"github.com/spf13/cobra"
)

func newCacheCmd(opts *globalOptions) *cobra.Command {
	var folder string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear a project's package folder",
	}
	cmd.PersistentFlags().StringVarP(&folder, "project", "p", ".", "Project folder")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "size",
			Short: "Print the size of the package folder",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}

				c := cache.New(filepath.Join(folder, cfg.CacheDirName))
				files, err := c.List()
				if err != nil {
					return err
				}
				size, err := c.Size()
				if err != nil {
					return err
				}

				fmt.Printf("%s %d package(s), %s\n", cyan(c.Dir()), len(files), formatSize(size))
				return nil
			},
		},
		newCacheClearCmd(opts, &folder),
	)
	return cmd
}

func newCacheClearCmd(opts *globalOptions, folder *string) *cobra.Command {
	var feeds bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every downloaded package of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			c := cache.New(filepath.Join(*folder, cfg.CacheDirName))
			size, _ := c.Size()

			if err := c.Clear(); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			fmt.Printf("%s Cache cleared (%s freed)\n", green("✓"), formatSize(size))

			if feeds {
				if err := registry.New(nil, cfg.FeedCacheDir, cfg.FeedCacheTTL).ClearCache(); err != nil {
					return fmt.Errorf("failed to clear feed cache: %w", err)
				}
				fmt.Printf("%s Feed index cache cleared\n", green("✓"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&feeds, "feeds", false, "Also clear cached feed service indexes")
	return cmd
}
