package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"growcore/internal/config"
)

type rootOptions struct {
	configFile string
	v          *viper.Viper
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "growcore",
		Short:         "Spatial allocation and plant lifecycle service for cultivation facilities",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file (default: growcore.yaml in ., $HOME/.growcore, /etc/growcore)")
	flags.String("storage", "", "storage driver: memory, sqlite, postgres, badger")
	flags.String("sqlite-path", "", "sqlite database file")
	flags.String("log-level", "", "log level: debug, info, warn, error")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		opts.v = config.New(opts.configFile)
		bindings := map[string]string{
			"storage.driver":      "storage",
			"storage.sqlite_path": "sqlite-path",
			"log.level":           "log-level",
		}
		for key, flag := range bindings {
			if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
				if err := opts.v.BindPFlag(key, f); err != nil {
					return err
				}
			}
		}
		return nil
	}

	cmd.AddCommand(
		newServeCommand(opts),
		newSeedCommand(opts),
		newImportTagsCommand(opts),
		newArchiveCommand(opts),
	)
	return cmd
}

func (o *rootOptions) load() (config.Config, error) {
	return config.Load(o.v)
}
