// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/papermap/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve exposes search, parse jobs and chat over HTTP:

  GET  /health
  POST /api/search               {"query": "...", "max_results": 200}
  POST /api/parse-paper          {"arxiv_id": "...", "pdf_url": "..."}
  GET  /api/parse-paper/{jobID}
  POST /api/chat                 {"message": "...", "papers": [...], "history": [...]}

Parse jobs run in the background; poll the job id until it completes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8000)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig(loadedSecrets)
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(a.pipeline, a.jobs, a.composer, logger.Named("http"))
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
