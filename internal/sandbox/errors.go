// Package sandbox implements the restricted tree-walking interpreter that
// executes agent-generated code against a document/query environment.
package sandbox

import "fmt"

// Kind identifies one of the closed set of error categories the sandbox can
// raise. Every kind carries a human-readable message formatted the same way
// the host this runtime emulates formats it, so substring assertions made by
// callers (and by the model, via the subset hint) stay stable.
type Kind int

const (
	KindParseError Kind = iota
	KindForbiddenSyntax
	KindForbiddenName
	KindNameError
	KindTypeError
	KindValueError
	KindResourceLimitExceeded
	KindRuntimeError
	KindSystemExit
)

// ReplError is the sandbox's single error type. It deliberately does not
// implement Unwrap to a generic cause: every sandbox failure is one of the
// nine closed kinds above, never a wrapped third-party error.
type ReplError struct {
	Kind    Kind
	Message string
}

func (e *ReplError) Error() string {
	switch e.Kind {
	case KindParseError:
		return fmt.Sprintf("parse error: %s", e.Message)
	case KindForbiddenSyntax:
		return fmt.Sprintf("forbidden syntax: %s", e.Message)
	case KindForbiddenName:
		return fmt.Sprintf("forbidden name: %s", e.Message)
	case KindNameError:
		return fmt.Sprintf("name error: %s", e.Message)
	case KindTypeError:
		return fmt.Sprintf("type error: %s", e.Message)
	case KindValueError:
		return fmt.Sprintf("value error: %s", e.Message)
	case KindResourceLimitExceeded:
		return fmt.Sprintf("resource limit exceeded: %s", e.Message)
	case KindRuntimeError:
		return fmt.Sprintf("runtime error: %s", e.Message)
	case KindSystemExit:
		return "SystemExit"
	default:
		return e.Message
	}
}

func errParse(format string, a ...any) *ReplError {
	return &ReplError{Kind: KindParseError, Message: fmt.Sprintf(format, a...)}
}

func errForbiddenSyntax(format string, a ...any) *ReplError {
	return &ReplError{Kind: KindForbiddenSyntax, Message: fmt.Sprintf(format, a...)}
}

func errForbiddenName(name string) *ReplError {
	return &ReplError{Kind: KindForbiddenName, Message: name}
}

func errName(name string) *ReplError {
	return &ReplError{Kind: KindNameError, Message: name}
}

func errType(format string, a ...any) *ReplError {
	return &ReplError{Kind: KindTypeError, Message: fmt.Sprintf(format, a...)}
}

func errValue(format string, a ...any) *ReplError {
	return &ReplError{Kind: KindValueError, Message: fmt.Sprintf(format, a...)}
}

func errResourceLimit(format string, a ...any) *ReplError {
	return &ReplError{Kind: KindResourceLimitExceeded, Message: fmt.Sprintf(format, a...)}
}

func errRuntime(format string, a ...any) *ReplError {
	return &ReplError{Kind: KindRuntimeError, Message: fmt.Sprintf(format, a...)}
}

func errSystemExit() *ReplError {
	return &ReplError{Kind: KindSystemExit}
}

// SubsetHint is appended to the four error kinds known to benefit from it
// (ParseError, ForbiddenSyntax, ForbiddenName, NameError) so the model is
// told, in-band, that it is operating in a restricted dialect.
const SubsetHint = "Note: this is a restricted Python subset. Only simple " +
	"assignments, if/for/try, def (positional args only), and the " +
	"documented builtins (print, len, max, range, rank_documents) and " +
	"module stubs (re, json, base64, binascii, zlib) are available. " +
	"No while/with/class/lambda/imports-as-dynamic-loads/dunder or " +
	"underscore-prefixed names."

func needsSubsetHint(e *ReplError) bool {
	switch e.Kind {
	case KindParseError, KindForbiddenSyntax, KindForbiddenName, KindNameError:
		return true
	default:
		return false
	}
}

// FormatError renders the final error text the engine façade returns,
// appending the subset hint to the four kinds that benefit from it.
func FormatError(err error) string {
	re, ok := err.(*ReplError)
	if !ok {
		return err.Error()
	}
	if needsSubsetHint(re) {
		return re.Error() + "\n\n" + SubsetHint
	}
	return re.Error()
}
