/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/pagestore/pkg/config"
)

// upCmd represents the up command
var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Bootstrap and start the PageStore server",
	Long: `Bootstrap PageStore by creating configuration and keys if they don't exist,
then start the REST API server. This is the recommended way to get PageStore running.

Examples:
  pagestore up
  pagestore up --store ./mydata/records.db --port 9000
  pagestore up --config ./custom-config.yaml --print-keys`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printKeys, _ := cmd.Flags().GetBool("print-keys")

		cfg, created, err := ensureConfig(cmd)
		if err != nil {
			return err
		}
		if created && printKeys {
			printAPIKeys(cmd, cfg, configPath(cmd))
		}

		applyServerFlags(cmd, cfg)
		return serve(cmd, cfg)
	},
}

func init() {
	rootCmd.AddCommand(upCmd)
	addServerFlags(upCmd)
	upCmd.Flags().Bool("print-keys", false, "Print generated keys on first run")
}

// ensureConfig loads the configuration, bootstrapping it on first run.
func ensureConfig(cmd *cobra.Command) (*config.Config, bool, error) {
	path := configPath(cmd)
	if config.ConfigExists(path) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, false, err
		}
		cmd.Printf("✅ Loaded existing configuration from %s\n", path)
		return cfg, false, nil
	}

	cmd.Printf("🔧 First run detected. Bootstrapping PageStore...\n")
	storePath, _ := cmd.Flags().GetString("store")
	if _, err := config.BootstrapConfig(path, storePath); err != nil {
		return nil, false, err
	}
	cmd.Printf("✅ Configuration created at %s\n", path)

	cfg, err := loadConfig(cmd)
	return cfg, true, err
}
