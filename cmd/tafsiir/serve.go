package main

import (
	"github.com/spf13/cobra"

	"github.com/omartood/tafsiir-agent/config"
	srv "github.com/omartood/tafsiir-agent/internal/server"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	var serveAddr string

	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP chat API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			return srv.Run(cfg)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return serve
}
