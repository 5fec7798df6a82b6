package agent

import (
	"regexp"
	"strings"
)

// finalPatterns are tried in order; the first successful capture wins. The
// ordering matters: triple-quoted forms are tried before single-line forms
// so a triple-quoted body containing an embedded quote character is not
// truncated by the single-line pattern.
var finalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)FINAL\s*\(\s*"""(.*)"""\s*\)`),
	regexp.MustCompile(`(?s)FINAL\s*\(\s*'''(.*)'''\s*\)`),
	regexp.MustCompile(`FINAL\s*\(\s*"([^"]*)"\s*\)`),
	regexp.MustCompile(`FINAL\s*\(\s*'([^']*)'\s*\)`),
}

var finalVarPattern = regexp.MustCompile(`FINAL_VAR\s*\(\s*(\w+)\s*\)`)

// isFinalCandidate is a cheap pre-check so callers can skip the full regex
// sweep on replies that plainly contain no marker.
func isFinalCandidate(reply string) bool {
	return strings.Contains(reply, "FINAL(") || strings.Contains(reply, "FINAL_VAR(")
}

// extractFinalBody returns the body of a FINAL("...") marker (any quoting
// form), the trimmed capture, and true if one was found.
func extractFinalBody(reply string) (string, bool) {
	if !isFinalCandidate(reply) {
		return "", false
	}
	for _, pat := range finalPatterns {
		if m := pat.FindStringSubmatch(reply); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

// extractFinalVarName returns the variable name inside a FINAL_VAR(name)
// marker, if present.
func extractFinalVarName(reply string) (string, bool) {
	if !strings.Contains(reply, "FINAL_VAR(") {
		return "", false
	}
	if m := finalVarPattern.FindStringSubmatch(reply); m != nil {
		return m[1], true
	}
	return "", false
}

// stripFinalLines removes any line starting with FINAL( or FINAL_VAR( from
// code, used before executing a reply that mixes a final marker with
// executable code.
func stripFinalLines(code string) string {
	lines := strings.Split(code, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "FINAL(") || strings.HasPrefix(trimmed, "FINAL_VAR(") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// extractCodePayload pulls the code the model intends to run out of its
// raw reply: the concatenation of all triple-backtick fenced block bodies
// if any are present, otherwise the entire trimmed reply.
func extractCodePayload(reply string) string {
	fence := regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*\\n?(.*?)```")
	matches := fence.FindAllStringSubmatch(reply, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(reply)
	}
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = strings.TrimSpace(m[1])
	}
	return strings.Join(parts, "\n")
}
