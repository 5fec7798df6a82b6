// Package main implements the rlm CLI: a restricted Python-subset sandbox
// and retrieval agent, runnable either as a one-shot Execute RPC over
// stdin/stdout or as an HTTP retrieval server.
//
// # File Index
//
//   - main.go      - entry point, rootCmd, global flags, init()
//   - cmd_exec.go  - execCmd, runExec() (stdin/stdout Execute RPC)
//   - cmd_serve.go - serveCmd, runServe() (HTTP retrieval server)
//   - cmd_version.go - versionCmd
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rlm/internal/config"
	"rlm/internal/logging"
)

var (
	verbose    bool
	configPath string

	logger *zap.Logger
	cfg    config.Config
)

var rootCmd = &cobra.Command{
	Use:   "rlm",
	Short: "A sandboxed Python-subset REPL and retrieval agent",
	Long: `rlm executes a restricted, allowlist-guarded subset of Python
against caller-supplied state, and drives a document-retrieval agent
loop on top of it.

Run "rlm exec" to evaluate one snippet from stdin, or "rlm serve" to
expose the retrieval agent over HTTP.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			loaded, err := config.LoadFromFile(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
		} else {
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
		}
		if verbose {
			cfg.Verbose = true
		}

		built, err := logging.New(cfg.Verbose)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = built
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to rlm.yaml (default: built-in defaults + RLM_* env vars)")

	rootCmd.AddCommand(execCmd, serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
