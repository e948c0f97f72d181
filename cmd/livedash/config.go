package main

import (
	"encoding/json"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/solarstation/livedash/pkg/config"
)

var configWrite = false

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Print the effective configuration",
		GroupID: gAdvanced,
		Long: `Print the configuration after defaults, the config file, LIVEDASH_*
environment variables and flags are applied. With --write, the result is
saved to the config file.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}

			effective := conf.Effective()
			if configWrite {
				if err := config.NewFileFromConfig(effective, configPath).Save(); err != nil {
					return err
				}
				logrus.Infof("config written to %s", configPath)
				return nil
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(effective)
		},
	}

	cmd.Flags().BoolVar(&configWrite, "write", configWrite, "write the effective configuration to the config file")

	return cmd
}
