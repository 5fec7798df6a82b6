package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rlm/internal/agent"
	"rlm/internal/httpapi"
	"rlm/internal/logging"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the retrieval agent over HTTP",
	Long: `serve starts an HTTP server exposing GET /v1/health, GET
/v1/version, and POST /v1/retrieve. Set RUSTRLM_DISABLE_LLM=1 to force
deterministic fallback retrieval, or leave OPENAI_API_KEY unset to the
same effect; either way the server still starts and serves requests.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: config server_addr, "+defaultServeAddr+")")
}

const defaultServeAddr = ":8080"

func runServe(cmd *cobra.Command, args []string) error {
	addr := serveAddr
	if addr == "" {
		addr = cfg.ServerAddr
	}
	if addr == "" {
		addr = defaultServeAddr
	}

	requestTimeout, err := cfg.RequestTimeoutDuration()
	if err != nil {
		return fmt.Errorf("resolve request timeout: %w", err)
	}

	loopOpts := agent.Options{
		MaxIterations:  cfg.MaxIterations,
		MaxRetries:     cfg.MaxRetries,
		RequestTimeout: requestTimeout,
	}

	state := httpapi.NewAppState(logger, loopOpts, cfg.MaxJSONRepair)
	router := httpapi.Router(state)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logging.For(logger, logging.CategoryHTTP)
	return httpapi.Serve(ctx, addr, router, 15*time.Second, log)
}
