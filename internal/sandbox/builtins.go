package sandbox

import (
	"sort"
	"strings"
	"unicode"
)

// Limits bounds the resources one Execute call may consume (C7/§5). Every
// cap is independent; hitting any one of them raises a ResourceLimitExceeded
// error, except MaxOutputChars and MaxPrintStateChars, which truncate the
// output instead of failing the call.
type Limits struct {
	MaxOutputChars      int
	MaxPrintStateChars  int
	MaxRangeLen         int // range() materialization cap
	MaxLoopIterations   int // total for-loop iterations across one call
	MaxCallDepth        int
	MaxZlibOutputBytes  int
}

// DefaultLimits mirrors the resource ceilings the original runtime shipped.
func DefaultLimits() Limits {
	return Limits{
		MaxOutputChars:     2000,
		MaxPrintStateChars: 100000,
		MaxRangeLen:        5000,
		MaxLoopIterations:  100000,
		MaxCallDepth:       64,
		MaxZlibOutputBytes: 1000000,
	}
}

// builtinNames are the bare (unqualified) names seeded into every fresh
// Environment, each bound to a Callable over the synthetic "builtins" module.
var builtinNames = []string{"print", "len", "max", "range", "rank_documents"}

func seedBuiltins(env *Environment) {
	for _, name := range builtinNames {
		n := name
		env.SeedGlobal(n, CallableValue(&Callable{Kind: CallModuleFunc, Module: "builtins", Attr: n}))
	}
}

// callBuiltin dispatches a call against the synthetic "builtins" module.
func callBuiltin(ctx *evalCtx, attr string, args []Value, kwargs map[string]Value) (Value, error) {
	switch attr {
	case "print":
		return builtinPrint(ctx, args)
	case "len":
		return builtinLen(args)
	case "max":
		return builtinMax(args)
	case "range":
		return builtinRange(ctx, args)
	case "rank_documents":
		return builtinRankDocuments(args, kwargs)
	default:
		return Value{}, errName(attr)
	}
}

func builtinPrint(ctx *evalCtx, args []Value) (Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = StrValue(a)
	}
	ctx.sink.PushPrintLine(strings.Join(parts, " "))
	return None(), nil
}

func builtinLen(args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, errType("len() takes exactly one argument (%d given)", len(args))
	}
	switch args[0].Kind {
	case KStr:
		return Int(int64(len([]rune(args[0].Str)))), nil
	case KBytes:
		return Int(int64(len(args[0].Bytes))), nil
	case KList:
		return Int(int64(len(args[0].List))), nil
	case KDict:
		return Int(int64(len(args[0].Dict))), nil
	default:
		return Value{}, errType("object of type %q has no len()", args[0].TypeName())
	}
}

func builtinMax(args []Value) (Value, error) {
	var items []Value
	if len(args) == 1 && args[0].Kind == KList {
		items = args[0].List
	} else {
		items = args
	}
	if len(items) == 0 {
		return Value{}, errValue("max() arg is an empty sequence")
	}
	best := items[0]
	for _, v := range items[1:] {
		gt, err := valueLess(best, v)
		if err != nil {
			return Value{}, err
		}
		if gt {
			best = v
		}
	}
	return best, nil
}

func valueLess(a, b Value) (bool, error) {
	if a.Kind == KInt && b.Kind == KInt {
		return a.Int < b.Int, nil
	}
	if a.Kind == KStr && b.Kind == KStr {
		return a.Str < b.Str, nil
	}
	return false, errType("unorderable types: %s and %s", a.TypeName(), b.TypeName())
}

func builtinRange(ctx *evalCtx, args []Value) (Value, error) {
	var start, stop, step int64 = 0, 0, 1
	switch len(args) {
	case 1:
		if args[0].Kind != KInt {
			return Value{}, errType("range() argument must be int")
		}
		stop = args[0].Int
	case 2:
		if args[0].Kind != KInt || args[1].Kind != KInt {
			return Value{}, errType("range() arguments must be int")
		}
		start, stop = args[0].Int, args[1].Int
	case 3:
		if args[0].Kind != KInt || args[1].Kind != KInt || args[2].Kind != KInt {
			return Value{}, errType("range() arguments must be int")
		}
		start, stop, step = args[0].Int, args[1].Int, args[2].Int
		if step == 0 {
			return Value{}, errValue("range() arg 3 must not be zero")
		}
	default:
		return Value{}, errType("range() takes 1 to 3 arguments (%d given)", len(args))
	}
	var out []Value
	if step > 0 {
		for i := start; i < stop; i += step {
			if len(out) >= ctx.limits.MaxRangeLen {
				return Value{}, errResourceLimit("range() would materialize more than %d elements", ctx.limits.MaxRangeLen)
			}
			out = append(out, Int(i))
		}
	} else {
		for i := start; i > stop; i += step {
			if len(out) >= ctx.limits.MaxRangeLen {
				return Value{}, errResourceLimit("range() would materialize more than %d elements", ctx.limits.MaxRangeLen)
			}
			out = append(out, Int(i))
		}
	}
	return List(out), nil
}

// builtinRankDocuments scores documents against a query by distinct-term
// presence and returns, for each document, its id (duplicated as doc_id for
// model robustness) and a codepoint window centered on the earliest matching
// term. Accepts the query/document-list arguments in either order (detected
// by kind) and top_k either positionally or by keyword, clamped to [0, 20].
// min_score is accepted and ignored, matching the call signature documents
// were generated against.
func builtinRankDocuments(args []Value, kwargs map[string]Value) (Value, error) {
	var query string
	var docs []Value
	haveQuery, haveDocs := false, false
	topK := 5
	intArgs := 0

	consume := func(v Value) error {
		switch v.Kind {
		case KStr:
			if haveQuery {
				return errType("rank_documents() got multiple query arguments")
			}
			query = v.Str
			haveQuery = true
		case KList:
			if haveDocs {
				return errType("rank_documents() got multiple document-list arguments")
			}
			docs = v.List
			haveDocs = true
		case KInt:
			// First bare int positional is top_k; any further one (min_score,
			// passed as an int in this value model) is accepted and ignored.
			if intArgs == 0 {
				topK = int(v.Int)
			}
			intArgs++
		default:
			return errType("rank_documents() received an unsupported argument of type %q", v.TypeName())
		}
		return nil
	}
	for _, a := range args {
		if err := consume(a); err != nil {
			return Value{}, err
		}
	}
	if v, ok := kwargs["top_k"]; ok {
		if v.Kind != KInt {
			return Value{}, errType("top_k must be an int")
		}
		topK = int(v.Int)
	}
	if !haveQuery || !haveDocs {
		return Value{}, errType("rank_documents() requires a query string and a list of documents")
	}
	if topK < 0 {
		topK = 0
	}
	if topK > 20 {
		topK = 20
	}

	terms := tokenizeWords(query)
	type scored struct {
		id    Value
		score int
		doc   Value
	}
	results := make([]scored, 0, len(docs))
	for i, d := range docs {
		text := ""
		id := Value{Kind: KInt, Int: int64(i)}
		if d.Kind == KDict {
			if t, ok := d.Dict["text"]; ok && t.Kind == KStr {
				text = t.Str
			}
			if v, ok := d.Dict["id"]; ok {
				id = v
			}
		} else if d.Kind == KStr {
			text = d.Str
		}
		lower := strings.ToLower(text)
		present := 0
		firstPos := -1
		for _, term := range terms {
			p := strings.Index(lower, term)
			if p >= 0 {
				present++
				if firstPos < 0 || p < firstPos {
					firstPos = p
				}
			}
		}
		if present == 0 {
			continue
		}
		snippet := snippetWindow(text, firstPos, 80)
		result := Dict(map[string]Value{
			"id":     id,
			"doc_id": id,
			"snippet": Str(snippet),
		})
		results = append(results, scored{id: id, score: present, doc: result})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return StrValue(results[i].id) < StrValue(results[j].id)
	})
	if topK < len(results) {
		results = results[:topK]
	}
	out := make([]Value, len(results))
	for i, r := range results {
		out[i] = r.doc
	}
	return List(out), nil
}

// tokenizeWords lowercases and splits on non-alphanumeric runs, keeping
// distinct tokens of length >= 2.
func tokenizeWords(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := map[string]bool{}
	var out []string
	for _, f := range fields {
		if len([]rune(f)) < 2 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// snippetWindow extracts a codepoint-indexed window of radius chars around
// byteOffset (a byte offset into text, or -1 for no match, in which case the
// window starts at the beginning of the text).
func snippetWindow(text string, byteOffset int, radius int) string {
	runes := []rune(text)
	centerRune := 0
	if byteOffset > 0 {
		centerRune = len([]rune(text[:byteOffset]))
	}
	lo := centerRune - radius
	if lo < 0 {
		lo = 0
	}
	hi := centerRune + radius
	if hi > len(runes) {
		hi = len(runes)
	}
	return string(runes[lo:hi])
}
