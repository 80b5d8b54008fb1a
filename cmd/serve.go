package cmd

import (
	"github.com/spf13/cobra"
	"github.com/user/policygen/pkg/aggregator"
	"github.com/user/policygen/pkg/parser"
	"github.com/user/policygen/pkg/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		addr := serveAddr
		if addr == "" {
			addr = cfg.ServerAddr
		}

		agg := aggregator.New(parser.New(logger), logger)
		api := server.NewWebAPI(logger, agg, server.Config{
			Addr:          addr,
			ReportsDir:    cfg.ReportsDir,
			PoliciesDir:   cfg.PoliciesDir,
			EvaluationDir: cfg.EvaluationDir,
		})
		return api.Start()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address, e.g. :8080")
	rootCmd.AddCommand(serveCmd)
}
