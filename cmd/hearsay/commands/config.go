package commands

import (
	"github.com/spf13/cobra"

	"github.com/hearsaylabs/hearsay/cmd/hearsay/internal/config"
	"github.com/hearsaylabs/hearsay/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := configDir
		if dir == "" {
			var err error
			if dir, err = config.Dir(); err != nil {
				return err
			}
		}
		cfg, err := config.LoadFrom(dir)
		if err != nil {
			return err
		}
		if err := config.Save(dir, cfg); err != nil {
			return err
		}
		cli.PrintSuccess("wrote %s/config.yaml", dir)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg *config.Config
		var err error
		if configDir != "" {
			cfg, err = config.LoadFrom(configDir)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return err
		}
		// Credentials stay out of terminal output.
		redacted := *cfg
		if redacted.Speaker.APIKey != "" {
			redacted.Speaker.APIKey = "****"
		}
		if redacted.Transcription.APIKey != "" {
			redacted.Transcription.APIKey = "****"
		}
		return output(redacted)
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
