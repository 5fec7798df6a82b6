package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rlm/internal/logging"
	"rlm/internal/sandbox"
)

var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Execute one Execute RPC request read as JSON from stdin",
	Long: `exec reads a single JSON object from stdin in the shape
{"context": str, "query": str, "code": str, "max_output_chars": int?, "state": object?}
executes it against the sandbox, and writes the result to stdout as
{"ok": bool, "output": str, "error": str?, "state": object?}.

Malformed input or an I/O failure reading stdin exits with status 2.`,
	RunE: runExec,
}

// execRequestWire is the stdin JSON shape for the exec command.
type execRequestWire struct {
	Context        string           `json:"context"`
	Query          string           `json:"query"`
	Code           string           `json:"code"`
	MaxOutputChars *int             `json:"max_output_chars"`
	State          sandbox.StateMap `json:"state"`
}

// execResponseWire is the stdout JSON shape for the exec command.
type execResponseWire struct {
	Ok     bool             `json:"ok"`
	Output string           `json:"output"`
	Error  string           `json:"error,omitempty"`
	State  sandbox.StateMap `json:"state"`
}

func runExec(cmd *cobra.Command, args []string) error {
	log := logging.For(logger, logging.CategoryCLI)

	raw, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		log.Error("failed to read stdin", zap.Error(err))
		return execFailure(fmt.Errorf("read stdin: %w", err))
	}

	var wire execRequestWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		log.Warn("malformed exec request", zap.Error(err))
		return execFailure(fmt.Errorf("parse request: %w", err))
	}

	limits := sandbox.DefaultLimits()
	if wire.MaxOutputChars != nil {
		limits.MaxOutputChars = *wire.MaxOutputChars
	}
	engine := sandbox.NewReplEngine(limits)
	resp := engine.Exec(sandbox.ExecRequest{
		Code:    wire.Code,
		Context: wire.Context,
		Query:   wire.Query,
		State:   wire.State,
	})

	out := execResponseWire{Ok: resp.Ok, Output: resp.Output, Error: resp.Error, State: resp.State}
	enc := json.NewEncoder(cmd.OutOrStdout())
	if err := enc.Encode(out); err != nil {
		return execFailure(fmt.Errorf("write response: %w", err))
	}
	return nil
}

// execFailure prints err to stderr and forces exit status 2, per the
// documented Execute RPC CLI contract for malformed input or I/O failure.
func execFailure(err error) error {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(2)
	return nil
}
