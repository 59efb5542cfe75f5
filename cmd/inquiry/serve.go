package main

import (
	"context"

	"github.com/aretw0/inquiry/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the respondent and editor API. Storage, reasoning and pacing come
from the configuration file and INQUIRY_* environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		if cmd.Flags().Changed("metrics-addr") {
			cfg.Server.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
		}
		debug, _ := cmd.Flags().GetBool("debug")
		logger := cli.NewLogger(cfg.Log, debug)

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		logger.Info("starting inquiry server", "storage", cfg.Storage.Driver, "reasoning", cfg.Reasoning.Driver)
		return cli.Serve(sigCtx, cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "API listen address (overrides server.addr)")
	serveCmd.Flags().String("metrics-addr", "", "Metrics listen address; empty serves /metrics on the API")
}
