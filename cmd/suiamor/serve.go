package main

import (
	"github.com/spf13/cobra"

	"github.com/dumb-meh/Sui-Amor/config"
	"github.com/dumb-meh/Sui-Amor/internal/logging"
	srv "github.com/dumb-meh/Sui-Amor/internal/server"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			logger := logging.New(cfg.General.Debug, cfg.General.LogLevel)
			defer func() { _ = logger.Sync() }()
			return srv.Run(cfg, logger)
		},
	}
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return serve
}
