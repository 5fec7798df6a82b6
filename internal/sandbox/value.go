package sandbox

import "sort"

// ValueKind tags the closed variant set the evaluator operates over. The set
// is intentionally closed: adding a new kind means adding a case everywhere
// a type switch on Kind appears, not implementing an interface.
type ValueKind int

const (
	KNone ValueKind = iota
	KBool
	KInt
	KStr
	KBytes
	KList
	KDict
	KMatch
	KFunc
	KCallable
	KModule
)

// MatchObject is the handle produced by re.search: the full match, any
// captured groups, and the codepoint-indexed span of the overall match.
type MatchObject struct {
	Full      string
	Groups    []string // Groups[0] is the full match; Groups[1:] are captures.
	SpanStart int
	SpanEnd   int
}

// UserFunc is a def-bound function: name, positional parameter names, and
// its statement body.
type UserFunc struct {
	Name   string
	Params []string
	Body   []Stmt
}

// CallableKind distinguishes the two Bound Callable shapes.
type CallableKind int

const (
	CallModuleFunc CallableKind = iota
	CallBoundMethod
)

// Callable is a Bound Callable: either a module-level function reference
// (Module+Attr) or a method pre-bound to a receiver captured by value at
// attribute-lookup time.
type Callable struct {
	Kind     CallableKind
	Module   string
	Attr     string
	Receiver *Value
	Method   string
}

// Value is the tagged union the evaluator operates over. Only the field(s)
// matching Kind are meaningful; zero values elsewhere.
type Value struct {
	Kind     ValueKind
	Bool     bool
	Int      int64
	Str      string
	Bytes    []byte
	List     []Value
	Dict     map[string]Value
	Match    *MatchObject
	Func     *UserFunc
	Callable *Callable
	Module   string
}

func None() Value                 { return Value{Kind: KNone} }
func Bool(b bool) Value           { return Value{Kind: KBool, Bool: b} }
func Int(i int64) Value           { return Value{Kind: KInt, Int: i} }
func Str(s string) Value          { return Value{Kind: KStr, Str: s} }
func Bytes(b []byte) Value        { return Value{Kind: KBytes, Bytes: b} }
func List(xs []Value) Value       { return Value{Kind: KList, List: xs} }
func Dict(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{Kind: KDict, Dict: m}
}
func Match(m *MatchObject) Value    { return Value{Kind: KMatch, Match: m} }
func Func(f *UserFunc) Value        { return Value{Kind: KFunc, Func: f} }
func CallableValue(c *Callable) Value { return Value{Kind: KCallable, Callable: c} }
func ModuleValue(name string) Value { return Value{Kind: KModule, Module: name} }

// TypeName returns the subset's user-facing type name, used in type-error
// messages.
func (v Value) TypeName() string {
	switch v.Kind {
	case KNone:
		return "NoneType"
	case KBool:
		return "bool"
	case KInt:
		return "int"
	case KStr:
		return "str"
	case KBytes:
		return "bytes"
	case KList:
		return "list"
	case KDict:
		return "dict"
	case KMatch:
		return "Match"
	case KFunc:
		return "function"
	case KCallable:
		return "builtin_function_or_method"
	case KModule:
		return "module"
	default:
		return "unknown"
	}
}

// Truthy implements the subset's truthiness rule: None/false/0/"" /empty
// bytes/list/dict are false; everything else (including Match, Func,
// Callable, Module) is true.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KNone:
		return false
	case KBool:
		return v.Bool
	case KInt:
		return v.Int != 0
	case KStr:
		return v.Str != ""
	case KBytes:
		return len(v.Bytes) != 0
	case KList:
		return len(v.List) != 0
	case KDict:
		return len(v.Dict) != 0
	default:
		return true
	}
}

// SortedKeys returns a dict's keys in the deterministic sorted order the
// subset uses for iteration and int-indexing.
func (v Value) SortedKeys() []string {
	keys := make([]string, 0, len(v.Dict))
	for k := range v.Dict {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// primitiveEqual implements structural equality for `in`/`is` over the
// primitive kinds (None/Bool/Int/Str/Bytes). Lists and Dicts compare
// structurally too, recursively; Func/Callable/Module are never equal to
// anything but themselves by kind+identity-insensitive shallow comparison
// (the spec treats `is` as an over-approximated structural equality).
func primitiveEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KNone:
		return true
	case KBool:
		return a.Bool == b.Bool
	case KInt:
		return a.Int == b.Int
	case KStr:
		return a.Str == b.Str
	case KBytes:
		if len(a.Bytes) != len(b.Bytes) {
			return false
		}
		for i := range a.Bytes {
			if a.Bytes[i] != b.Bytes[i] {
				return false
			}
		}
		return true
	case KList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !primitiveEqual(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	case KDict:
		if len(a.Dict) != len(b.Dict) {
			return false
		}
		for k, av := range a.Dict {
			bv, ok := b.Dict[k]
			if !ok || !primitiveEqual(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// CloneShallowList copies a list's backing slice so append-style mutation
// of one Value never aliases another.
func CloneShallowList(xs []Value) []Value {
	out := make([]Value, len(xs))
	copy(out, xs)
	return out
}

// CloneDict copies a dict's backing map.
func CloneDict(m map[string]Value) map[string]Value {
	out := make(map[string]Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
