package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hupe1980/chatagent/config"
)

func newConfigCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Long:  "Writes the default configuration to --config, or to ~/.config/chatagent/chatagent.yaml.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := flags.configPath
			if path == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				path = filepath.Join(home, ".config", "chatagent", "chatagent.yaml")
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			cmd.Println(successStyle.Render("✓ wrote " + path))
			return nil
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			pc, err := cfg.ProviderConfig()
			if err != nil {
				return err
			}
			cmd.Println(successStyle.Render("✓ configuration is valid"))
			cmd.Printf("  provider: %s (%s)\n", pc.Provider, pc.Model)
			cmd.Printf("  tools:    %d\n", len(cfg.Tools))
			return nil
		},
	}

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
