/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ssargent/pagestore/pkg/config"
	"github.com/ssargent/pagestore/pkg/store"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pagestore",
	Short: "PageStore - paged record store",
	Long: `PageStore stores variable-length records in size-classed slots on
fixed-size pages and hands out stable 64-bit record ids. Writers are striped
across independently locked shards and commits flip between two superblocks.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default is $HOME/.config/pagestore/config.yaml)")
	rootCmd.PersistentFlags().StringP("store", "s", "", "Store file, overrides store.path from the config")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
}

func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	return path
}

// loadConfig reads the config file when present and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path := configPath(cmd); config.ConfigExists(path) {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if storePath, _ := cmd.Flags().GetString("store"); storePath != "" {
		cfg.Store.Path = storePath
		cfg.Store.InMemory = false
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	return cfg, nil
}

// openStore opens the engine described by cfg, logging to stderr.
func openStore(cmd *cobra.Command, cfg *config.Config, readOnly bool, reg prometheus.Registerer) (*store.Engine, error) {
	logger, err := cfg.Logging.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	sc := cfg.ToStoreConfig()
	sc.ReadOnly = readOnly
	sc.Logger = logger
	sc.Registerer = reg

	if !sc.InMemory && !readOnly {
		if err := os.MkdirAll(filepath.Dir(sc.Path), 0750); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	if readOnly && !sc.InMemory {
		if _, err := os.Stat(sc.Path); err != nil {
			return nil, fmt.Errorf("store %s not found (run 'pagestore init' first): %w", sc.Path, err)
		}
	}
	return store.Open(sc)
}

// withStore opens the store, runs fn and closes the store, committing any
// changes fn made.
func withStore(cmd *cobra.Command, readOnly bool, fn func(e *store.Engine) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	e, err := openStore(cmd, cfg, readOnly, nil)
	if err != nil {
		return err
	}
	if err := fn(e); err != nil {
		_ = e.Close()
		return err
	}
	return e.Close()
}
