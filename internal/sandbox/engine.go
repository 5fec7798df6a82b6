package sandbox

import "strings"

const emptyCodeOutput = "No code to execute"

const printTxtKey = "_print_txt"

// ExecRequest is the wire shape of one Execute RPC call: the code to run,
// the retrieval context/query strings seeded into the namespace, and the
// carried Stored State from the previous call (which may include the
// internal `_print_txt` carry-over — user code can never name it directly,
// since underscore-prefixed identifiers are forbidden by the allowlist).
type ExecRequest struct {
	Code    string
	Context string
	Query   string
	State   StateMap
	Config  *Limits
}

// ExecResponse is the wire shape of one Execute RPC reply.
type ExecResponse struct {
	Ok     bool
	Output string
	State  StateMap
	Error  string
}

// ReplEngine is the sandbox façade (C7): one Exec call parses, allowlist
// checks, evaluates, and re-projects state for a single turn of agent code.
type ReplEngine struct {
	limits Limits
}

func NewReplEngine(limits Limits) *ReplEngine {
	return &ReplEngine{limits: limits}
}

func (eng *ReplEngine) Exec(req ExecRequest) ExecResponse {
	limits := eng.limits
	if req.Config != nil {
		limits = *req.Config
	}

	if strings.TrimSpace(req.Code) == "" {
		return ExecResponse{Ok: true, Output: emptyCodeOutput, State: req.State}
	}

	priorPrintTxt := ""
	if sv, ok := req.State[printTxtKey]; ok {
		priorPrintTxt = sv.Str
	}
	workingPrintTxt := priorPrintTxt
	if strings.Contains(req.Code, "print(") || strings.Contains(req.Code, "print (") {
		workingPrintTxt = ""
	}

	stmts, err := parseProgram(req.Code)
	if err != nil {
		return eng.errorResponse(err, req, workingPrintTxt)
	}
	if err := checkAllowlist(stmts); err != nil {
		return eng.errorResponse(err, req, workingPrintTxt)
	}

	env := NewEnvironment()
	seedBuiltins(env)
	seedModules(env)
	env.SeedGlobal("context", Str(req.Context))
	env.SeedGlobal("query", Str(req.Query))
	if err := env.ApplyState(stateWithoutPrintTxt(req.State)); err != nil {
		return eng.errorResponse(err, req, workingPrintTxt)
	}

	sink := NewSink(limits.MaxOutputChars, limits.MaxPrintStateChars)
	ctx := &evalCtx{env: env, sink: sink, limits: limits}

	echoEligible := lastLineAllowsEcho(req.Code)
	var echoVal *Value
	for i, s := range stmts {
		if i == len(stmts)-1 && echoEligible {
			if es, ok := s.(ExprStmt); ok {
				if _, isCall := es.X.(Call); !isCall {
					v, err := evalExpr(ctx, es.X)
					if err != nil {
						return eng.errorResponse(err, req, workingPrintTxt)
					}
					echoVal = &v
					continue
				}
			}
		}
		if _, err := execStmt(ctx, s); err != nil {
			return eng.errorResponse(err, req, workingPrintTxt)
		}
	}

	printedThisRun := len(sink.printParts) > 0
	if !printedThisRun && workingPrintTxt != "" {
		sink.PushRawOutput(workingPrintTxt)
	}
	if echoVal != nil && echoVal.Kind != KNone {
		sink.PushEchoLine(StrValue(*echoVal))
	}

	newPrintTxt := workingPrintTxt
	if printedThisRun {
		newPrintTxt = sink.PrintState()
	}

	state, err := env.DumpState()
	if err != nil {
		return eng.errorResponse(err, req, workingPrintTxt)
	}
	state[printTxtKey] = StoredValue{Kind: "Str", Str: newPrintTxt}

	return ExecResponse{
		Ok:     true,
		Output: sink.Finish(),
		State:  state,
	}
}

// skipEchoSubstrs mirrors the upstream unofficial executor's naive filter:
// the last source line is eligible for echo only if it contains none of
// these substrings.
var skipEchoSubstrs = []string{"=", "import", "def", "class", "if", "for", "while", "with"}

// lastLineAllowsEcho inspects the literal last line of the source text (not
// the parsed AST) and reports whether it looks like a "simple expression"
// safe to re-evaluate and echo.
func lastLineAllowsEcho(code string) bool {
	lines := strings.Split(strings.TrimSpace(code), "\n")
	if len(lines) == 0 {
		return false
	}
	lastLine := strings.TrimSpace(lines[len(lines)-1])
	if lastLine == "" {
		return false
	}
	for _, substr := range skipEchoSubstrs {
		if strings.Contains(lastLine, substr) {
			return false
		}
	}
	return true
}

func (eng *ReplEngine) errorResponse(err error, req ExecRequest, printTxt string) ExecResponse {
	state := StateMap{}
	for k, v := range req.State {
		state[k] = v
	}
	state[printTxtKey] = StoredValue{Kind: "Str", Str: printTxt}
	return ExecResponse{
		Ok:    false,
		Error: FormatError(err),
		State: state,
	}
}

func stateWithoutPrintTxt(state StateMap) StateMap {
	out := make(StateMap, len(state))
	for k, v := range state {
		if k == printTxtKey {
			continue
		}
		out[k] = v
	}
	return out
}
