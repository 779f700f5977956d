/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/ssargent/pagestore/pkg/api"
	"github.com/ssargent/pagestore/pkg/config"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Serve the store over HTTP. Record routes require the client API key,
commit and stats require the system API key. Both come from the
configuration created by 'pagestore init'.

Examples:
  pagestore serve
  pagestore serve --port 9200 --bind 0.0.0.0`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		applyServerFlags(cmd, cfg)
		return serve(cmd, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServerFlags(serveCmd)
}

func addServerFlags(c *cobra.Command) {
	c.Flags().IntP("port", "p", 0, "Port to listen on (default from config)")
	c.Flags().String("bind", "", "Address to bind (default from config)")
}

func applyServerFlags(cmd *cobra.Command, cfg *config.Config) {
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}
	if bind, _ := cmd.Flags().GetString("bind"); bind != "" {
		cfg.Server.Bind = bind
	}
}

// serve runs the API until interrupted and closes the store afterwards.
func serve(cmd *cobra.Command, cfg *config.Config) error {
	if err := checkKeys(cfg); err != nil {
		return err
	}

	logger, err := cfg.Logging.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	e, err := openStore(cmd, cfg, false, reg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverConfig := api.ServerConfig{
		Port:          cfg.Server.Port,
		Bind:          cfg.Server.Bind,
		APIKey:        cfg.Security.ClientAPIKey,
		SystemKey:     cfg.Security.SystemAPIKey,
		MaxRecordSize: cfg.Server.MaxRecordSize,
	}
	cmd.Printf("Starting PageStore REST API server on %s:%d\n", cfg.Server.Bind, cfg.Server.Port)
	cmd.Printf("Metrics available at: http://%s:%d/metrics\n", cfg.Server.Bind, cfg.Server.Port)

	serveErr := api.StartServer(ctx, e, serverConfig, logger, reg)
	return errors.Join(serveErr, e.Close())
}

func checkKeys(cfg *config.Config) error {
	for name, key := range map[string]string{
		"client_api_key": cfg.Security.ClientAPIKey,
		"system_api_key": cfg.Security.SystemAPIKey,
	} {
		if key == "" || key == "auto" {
			return fmt.Errorf("security.%s is not set (run 'pagestore init' first)", name)
		}
	}
	return nil
}
