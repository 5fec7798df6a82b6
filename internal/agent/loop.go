package agent

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"rlm/internal/sandbox"
)

// Options bounds one agent run: how many model turns it may take, how many
// times a failed model call is retried, and the per-call timeout.
type Options struct {
	MaxIterations  int
	MaxRetries     int
	RequestTimeout time.Duration
}

// Result is what Run returns: either a final body (Found == true) or no
// final at all, plus the accumulated sandbox state and every warning
// collected along the way.
type Result struct {
	Found         bool
	Final         string
	State         sandbox.StateMap
	Warnings      []string
	Iterations    int
	LastReply     string
	LastReplError string
}

// Run drives the two-phase REPL/FINAL protocol described in spec.md §4.7:
// it alternates model calls with sandbox executions until the model
// submits FINAL(...) or FINAL_VAR(...), the retry budget on transport
// failures is exhausted, or MaxIterations is reached.
func Run(ctx context.Context, client Client, engine *sandbox.ReplEngine, query string, state sandbox.StateMap, opts Options, log *zap.Logger) Result {
	if log == nil {
		log = zap.NewNop()
	}
	messages := []Message{
		{Role: RoleSystem, Content: SystemPrompt()},
		{Role: RoleUser, Content: UserPrompt(query)},
	}

	var warnings []string
	replHappened := false
	lastReply := ""
	lastReplError := ""
	iterations := 0

	for iter := 0; iter < opts.MaxIterations; iter++ {
		iterations = iter + 1
		reply, err := callWithRetry(ctx, client, messages, opts)
		if err != nil {
			log.Warn("llm call exhausted retries", zap.Int("iteration", iter), zap.Error(err))
			warnings = append(warnings, "llm_error: "+err.Error())
			return Result{State: state, Warnings: warnings, Iterations: iterations, LastReply: lastReply, LastReplError: lastReplError}
		}
		lastReply = reply

		code := extractCodePayload(reply)
		finalBody, hasFinal := extractFinalBody(reply)
		finalVarName, hasFinalVar := extractFinalVarName(reply)
		stripped := strings.TrimSpace(stripFinalLines(code))

		if (hasFinal || hasFinalVar) && !replHappened {
			warnings = append(warnings, "final_before_repl")
			messages = append(messages,
				Message{Role: RoleAssistant, Content: reply},
				Message{Role: RoleUser, Content: finalBeforeREPLMessage()},
			)
			continue
		}

		if (hasFinal || hasFinalVar) && stripped != "" {
			warnings = append(warnings, "final_mixed_with_code_ignored")
			hasFinal, hasFinalVar = false, false
		}

		if hasFinal {
			return Result{Found: true, Final: finalBody, State: state, Warnings: warnings, Iterations: iterations, LastReply: lastReply, LastReplError: lastReplError}
		}
		if hasFinalVar {
			sv, ok := state[finalVarName]
			if !ok {
				warnings = append(warnings, "final_var_missing: "+finalVarName)
				messages = append(messages,
					Message{Role: RoleAssistant, Content: reply},
					Message{Role: RoleUser, Content: finalVarMissingMessage(finalVarName)},
				)
				continue
			}
			if sv.Kind != "Str" {
				warnings = append(warnings, "final_var_not_string: "+finalVarName)
				messages = append(messages,
					Message{Role: RoleAssistant, Content: reply},
					Message{Role: RoleUser, Content: finalVarMissingMessage(finalVarName)},
				)
				continue
			}
			return Result{Found: true, Final: sv.Str, State: state, Warnings: warnings, Iterations: iterations, LastReply: lastReply, LastReplError: lastReplError}
		}

		resp := engine.Exec(sandbox.ExecRequest{Code: stripped, Query: query, State: state})
		replHappened = true
		state = resp.State

		var feedback string
		if resp.Ok {
			feedback = replOutputMessage(resp.Output)
			lastReplError = ""
		} else {
			feedback = replErrorMessage(resp.Error, resp.Output)
			lastReplError = resp.Error
		}
		messages = append(messages,
			Message{Role: RoleAssistant, Content: reply},
			Message{Role: RoleUser, Content: feedback},
		)
	}

	warnings = append(warnings, "final_not_found: max_iterations reached")
	return Result{State: state, Warnings: warnings, Iterations: iterations, LastReply: lastReply, LastReplError: lastReplError}
}

// callWithRetry retries a transport failure up to opts.MaxRetries times
// before giving up.
func callWithRetry(ctx context.Context, client Client, messages []Message, opts Options) (string, error) {
	attempts := opts.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		reply, err := client.Complete(ctx, Request{Messages: messages, Timeout: opts.RequestTimeout})
		if err == nil {
			return reply, nil
		}
		lastErr = err
	}
	return "", lastErr
}
