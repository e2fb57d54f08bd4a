package cli

import (
	"fmt"
	"os"

	"github.com/365businessdev/alget/internal/config"
	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the alget configuration",
	}

	cmd.AddCommand(newConfigInitCmd(opts), &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return toml.NewEncoder(os.Stdout).Encode(cfg)
		},
	})
	return cmd
}

func newConfigInitCmd(opts *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(opts.configPath); err == nil && !force {
				fmt.Printf("%s %s already exists, use %s to overwrite\n", yellow("!"), opts.configPath, cyan("--force"))
				return nil
			}

			if err := config.Save(config.DefaultConfig(), opts.configPath); err != nil {
				return err
			}
			fmt.Printf("%s %s\n", green("✓"), opts.configPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
