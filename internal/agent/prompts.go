package agent

import "strings"

// SystemPrompt is the instruction set given to the model for the whole
// conversation: the rules of the two-phase REPL/FINAL protocol and the
// restricted Python dialect it is allowed to write. Built from a line
// slice rather than one string literal so individual rules can be edited
// without reflowing a paragraph.
func SystemPrompt() string {
	lines := []string{
		"You are a retrieval agent. You answer a query against a small set of",
		"documents by writing and running short snippets of a restricted",
		"Python dialect, one turn at a time, then reporting a final answer.",
		"",
		"Rules:",
		"1. Each turn, write one snippet of code. Do not explain your reasoning",
		"   in prose outside of code comments; the code is what gets executed.",
		"2. The dialect supports: variable assignment, if/elif/else, for loops",
		"   over lists and dicts, try/except, def with positional parameters,",
		"   list and dict literals (string keys only), list/dict/string",
		"   indexing, and the builtins print, len, max, range, rank_documents.",
		"3. It does NOT support: imports, classes, lambdas, while loops,",
		"   *args/**kwargs, default argument values, or attribute access",
		"   beyond the fixed method tables on strings, bytes, dicts, and",
		"   match objects.",
		"4. You must run at least one turn of code via the REPL before you",
		"   are allowed to submit a final answer. Submitting FINAL before",
		"   that point will be refused and you will be asked to try again.",
		"5. When you have your answer, submit it with exactly one line of",
		`   the form FINAL("""<json>""") where <json> is`,
		`   {"results": [{"doc_id": str, "score": number, "snippet": str}, ...], "warnings": [str, ...]}.`,
		"   You may instead submit FINAL_VAR(name) to reference a string",
		"   variable already bound in your REPL state.",
		"6. Do not mix FINAL with other code in the same turn once you are",
		"   ready to submit; if you do, the code runs and the FINAL is",
		"   ignored for that turn.",
	}
	return strings.Join(lines, "\n")
}

// UserPrompt builds the first user turn: the query and a reminder of the
// carried state the sandbox was seeded with.
func UserPrompt(query string) string {
	lines := []string{
		"Query: " + query,
		"",
		"Your REPL state already has the variables `documents`, `top_k`,",
		"`max_chunk_chars`, and `min_score` bound. Use rank_documents to",
		"narrow down candidates before writing your final answer.",
	}
	return strings.Join(lines, "\n")
}

// JSONRepairSystemPrompt is the one-shot system prompt used when the final
// body failed to parse as JSON and a repair attempt is made.
func JSONRepairSystemPrompt() string {
	return "You fix JSON formatting. Given malformed JSON, respond with only the corrected JSON and nothing else."
}

// replOutputMessage formats a successful REPL turn's feedback.
func replOutputMessage(output string) string {
	return "REPL_OUTPUT:\n" + output
}

// replErrorMessage formats a failed REPL turn's feedback: the error first,
// then whatever output the sandbox produced before failing.
func replErrorMessage(errMsg, output string) string {
	return "REPL_ERROR:\n" + errMsg + "\nREPL_OUTPUT:\n" + output
}

// finalBeforeREPLMessage is pushed back to the model when it submits FINAL
// before ever having run a REPL turn.
func finalBeforeREPLMessage() string {
	return "REPL_REQUIRED: you must execute at least one turn of code " +
		"before submitting a final answer. Write and run a snippet now."
}

// finalVarMissingMessage is pushed back when FINAL_VAR names a variable
// that is missing or not a string in the carried state.
func finalVarMissingMessage(name string) string {
	return "FINAL_VAR(" + name + ") does not name a string variable in your " +
		"current state. Bind it first, or use FINAL(\"...\") directly."
}
