// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/renderforge/internal/job"
	"github.com/pdiddy/renderforge/internal/logger"
	"github.com/pdiddy/renderforge/internal/server"
	"github.com/pdiddy/renderforge/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP job API",
	Long: `Serve starts the generation engine and its HTTP API. Jobs are submitted
with POST /jobs, polled with GET /jobs/{id}, and their artifacts fetched
with GET /jobs/{id}/artifact once complete. Job state survives restarts;
jobs found mid-flight at startup are marked failed.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadEngineConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	log, err := logger.New(logMode())
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := store.NewStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("opening job store: %w", err)
	}
	defer st.Close()

	recovered, err := st.RecoverInFlight(context.Background(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recovering in-flight jobs: %w", err)
	}
	if recovered > 0 {
		log.Warn("marked pre-restart jobs failed", "count", recovered)
	}

	eng, err := job.NewEngine(cfg, loadedSecrets, &http.Client{}, st, log)
	if err != nil {
		return err
	}

	return server.New(cfg.Server, eng, log).Run()
}
