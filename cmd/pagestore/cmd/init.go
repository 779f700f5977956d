/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/pagestore/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration and format the store",
	Long: `Create a configuration file with generated API keys and format an
empty store at store.path.

Examples:
  pagestore init
  pagestore init --store ./data/records.db --print-keys
  pagestore init --config ./pagestore.yaml --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		printKeys, _ := cmd.Flags().GetBool("print-keys")

		path := configPath(cmd)
		if config.ConfigExists(path) && !force {
			cmd.Printf("Already initialized. Use --force to regenerate keys.\n")
			cmd.Printf("Config: %s\n", path)
			return nil
		}

		storePath, _ := cmd.Flags().GetString("store")
		cfg, err := config.BootstrapConfig(path, storePath)
		if err != nil {
			return err
		}
		cmd.Printf("✅ Configuration created at %s\n", path)

		e, err := openStore(cmd, cfg, false, nil)
		if err != nil {
			return err
		}
		id := e.StoreID()
		if err := e.Close(); err != nil {
			return err
		}
		cmd.Printf("✅ Store %s ready at %s\n", id, cfg.Store.Path)

		if printKeys {
			printAPIKeys(cmd, cfg, path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration")
	initCmd.Flags().Bool("print-keys", false, "Print the generated API keys")
}

func printAPIKeys(cmd *cobra.Command, cfg *config.Config, path string) {
	cmd.Printf("\n🔑 Generated Keys:\n")
	cmd.Printf("System API Key: %s\n", cfg.Security.SystemAPIKey)
	cmd.Printf("Client API Key: %s\n", cfg.Security.ClientAPIKey)
	cmd.Printf("\n⚠️  Store these keys securely! They are also saved in %s\n", path)
}
