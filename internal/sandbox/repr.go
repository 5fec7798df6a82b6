package sandbox

import (
	"fmt"
	"strconv"
	"strings"
)

// StrValue renders a value the way `print()` and the trailing-expression
// echo show top-level strings and bytes: raw content for Str, repr form for
// everything else (including Str/Bytes nested inside a container).
func StrValue(v Value) string {
	if v.Kind == KStr {
		return v.Str
	}
	return ReprValue(v)
}

// ReprValue renders a value the way Python's repr() would, used for
// container elements and for the Match object's own repr.
func ReprValue(v Value) string {
	switch v.Kind {
	case KNone:
		return "None"
	case KBool:
		if v.Bool {
			return "True"
		}
		return "False"
	case KInt:
		return strconv.FormatInt(v.Int, 10)
	case KStr:
		return reprString(v.Str)
	case KBytes:
		return reprBytes(v.Bytes)
	case KList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = ReprValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KDict:
		keys := v.SortedKeys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = reprString(k) + ": " + ReprValue(v.Dict[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KMatch:
		return fmt.Sprintf("<re.Match object; span=(%d, %d), match=%s>",
			v.Match.SpanStart, v.Match.SpanEnd, reprString(v.Match.Full))
	case KFunc:
		return fmt.Sprintf("<function %s>", v.Func.Name)
	case KCallable:
		return "<built-in method>"
	case KModule:
		return fmt.Sprintf("<module %q>", v.Module)
	default:
		return "?"
	}
}

func reprString(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			b.WriteString("\\'")
		case '\\':
			b.WriteString("\\\\")
		case '\n':
			b.WriteString("\\n")
		case '\t':
			b.WriteString("\\t")
		case '\r':
			b.WriteString("\\r")
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

func reprBytes(data []byte) string {
	var b strings.Builder
	b.WriteString("b'")
	for _, c := range data {
		switch {
		case c == '\'':
			b.WriteString("\\'")
		case c == '\\':
			b.WriteString("\\\\")
		case c == '\n':
			b.WriteString("\\n")
		case c == '\t':
			b.WriteString("\\t")
		case c == '\r':
			b.WriteString("\\r")
		case c >= 32 && c < 127:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "\\x%02x", c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
