package cli

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"

	"github.com/365businessdev/alget/internal/config"
	"github.com/365businessdev/alget/internal/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	configPath string
	logLevel   string
	country    string
}

func Execute() error {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "alget",
		Short:         "Business Central symbol package manager",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env feeds ${VAR} references in custom feed credentials
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				log.Warn("Unable to read .env: %v", err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath(), "Path to config file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.country, "country", "", "Country code, overrides the config file")

	rootCmd.AddCommand(
		newRestoreCmd(opts),
		newUpdateCmd(opts),
		newInstallCmd(opts),
		newSearchCmd(opts),
		newListCmd(opts),
		newDepsCmd(opts),
		newRemoveCmd(opts),
		newTouchCmd(opts),
		newCacheCmd(opts),
		newHistoryCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)

	// an interrupted install leaves a pending journal record that the next
	// run cleans up
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

// loadConfig reads the config file and applies the global flag overrides.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	if o.country != "" {
		cfg.CountryCode = o.country
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	log.SetLevel(log.ParseLevel(cfg.LogLevel))

	return cfg, nil
}
