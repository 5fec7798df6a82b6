package sandbox

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"regexp"
	"strings"
)

// moduleNames are the stub modules seeded into every fresh Environment.
var moduleNames = []string{"re", "json", "base64", "binascii", "zlib"}

func seedModules(env *Environment) {
	for _, m := range moduleNames {
		env.SeedGlobal(m, ModuleValue(m))
	}
}

// moduleAttr resolves attribute access on a module value: either a module
// constant or a Callable bound to that module+attribute.
func moduleAttr(module, attr string) (Value, error) {
	switch module {
	case "re":
		switch attr {
		case "IGNORECASE":
			return Int(2), nil
		case "DOTALL":
			return Int(16), nil
		case "search", "findall":
			return CallableValue(&Callable{Kind: CallModuleFunc, Module: "re", Attr: attr}), nil
		}
	case "json":
		switch attr {
		case "loads", "dumps":
			return CallableValue(&Callable{Kind: CallModuleFunc, Module: "json", Attr: attr}), nil
		}
	case "base64":
		switch attr {
		case "b64decode":
			return CallableValue(&Callable{Kind: CallModuleFunc, Module: "base64", Attr: attr}), nil
		}
	case "binascii":
		switch attr {
		case "hexlify":
			return CallableValue(&Callable{Kind: CallModuleFunc, Module: "binascii", Attr: attr}), nil
		}
	case "zlib":
		switch attr {
		case "MAX_WBITS":
			return Int(15), nil
		case "decompress":
			return CallableValue(&Callable{Kind: CallModuleFunc, Module: "zlib", Attr: attr}), nil
		}
	}
	return Value{}, errName(module + "." + attr)
}

func callModule(ctx *evalCtx, module, attr string, args []Value, kwargs map[string]Value) (Value, error) {
	switch module {
	case "re":
		return callRe(attr, args, kwargs)
	case "json":
		return callJSON(attr, args)
	case "base64":
		return callBase64(attr, args)
	case "binascii":
		return callBinascii(attr, args)
	case "zlib":
		return callZlib(ctx, attr, args, kwargs)
	default:
		return Value{}, errName(module)
	}
}

func reFlags(args []Value, kwargs map[string]Value, posIdx int) int64 {
	if posIdx < len(args) && args[posIdx].Kind == KInt {
		return args[posIdx].Int
	}
	if v, ok := kwargs["flags"]; ok && v.Kind == KInt {
		return v.Int
	}
	return 0
}

func compileRe(pattern string, flags int64) (*regexp.Regexp, error) {
	pattern = strings.ReplaceAll(pattern, `\Z`, `\z`)
	prefix := ""
	if flags&2 != 0 {
		prefix += "(?i)"
	}
	if flags&16 != 0 {
		prefix += "(?s)"
	}
	re, err := regexp.Compile(prefix + pattern)
	if err != nil {
		return nil, errValue("invalid regular expression: %v", err)
	}
	return re, nil
}

func callRe(attr string, args []Value, kwargs map[string]Value) (Value, error) {
	if len(args) < 2 || args[0].Kind != KStr || args[1].Kind != KStr {
		return Value{}, errType("%s() requires a pattern and a string", attr)
	}
	re, err := compileRe(args[0].Str, reFlags(args, kwargs, 2))
	if err != nil {
		return Value{}, err
	}
	text := args[1].Str
	switch attr {
	case "search":
		loc := re.FindStringSubmatchIndex(text)
		if loc == nil {
			return None(), nil
		}
		groups := make([]string, 0, len(loc)/2)
		for i := 0; i < len(loc); i += 2 {
			if loc[i] < 0 {
				groups = append(groups, "")
				continue
			}
			groups = append(groups, text[loc[i]:loc[i+1]])
		}
		spanStart := len([]rune(text[:loc[0]]))
		spanEnd := len([]rune(text[:loc[1]]))
		return Match(&MatchObject{Full: groups[0], Groups: groups, SpanStart: spanStart, SpanEnd: spanEnd}), nil
	case "findall":
		all := re.FindAllString(text, -1)
		out := make([]Value, len(all))
		for i, m := range all {
			out[i] = Str(m)
		}
		return List(out), nil
	default:
		return Value{}, errName("re." + attr)
	}
}

func callJSON(attr string, args []Value) (Value, error) {
	switch attr {
	case "loads":
		if len(args) != 1 || args[0].Kind != KStr {
			return Value{}, errType("json.loads() requires a string")
		}
		var raw any
		if err := json.Unmarshal([]byte(args[0].Str), &raw); err != nil {
			return Value{}, errValue("invalid JSON: %v", err)
		}
		return jsonToValue(raw)
	case "dumps":
		if len(args) != 1 {
			return Value{}, errType("json.dumps() requires exactly one argument")
		}
		native, err := valueToJSON(args[0])
		if err != nil {
			return Value{}, err
		}
		raw, err := json.Marshal(native)
		if err != nil {
			return Value{}, errValue("object is not JSON serializable: %v", err)
		}
		return Str(string(raw)), nil
	default:
		return Value{}, errName("json." + attr)
	}
}

func jsonToValue(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return None(), nil
	case bool:
		return Bool(t), nil
	case float64:
		if t != float64(int64(t)) {
			return Value{}, errValue("non-integer JSON numbers are not supported")
		}
		return Int(int64(t)), nil
	case string:
		return Str(t), nil
	case []any:
		out := make([]Value, len(t))
		for i, e := range t {
			v, err := jsonToValue(e)
			if err != nil {
				return Value{}, err
			}
			out[i] = v
		}
		return List(out), nil
	case map[string]any:
		out := make(map[string]Value, len(t))
		for k, e := range t {
			v, err := jsonToValue(e)
			if err != nil {
				return Value{}, err
			}
			out[k] = v
		}
		return Dict(out), nil
	default:
		return Value{}, errValue("unsupported JSON value")
	}
}

func valueToJSON(v Value) (any, error) {
	switch v.Kind {
	case KNone:
		return nil, nil
	case KBool:
		return v.Bool, nil
	case KInt:
		return v.Int, nil
	case KStr:
		return v.Str, nil
	case KList:
		out := make([]any, len(v.List))
		for i, e := range v.List {
			n, err := valueToJSON(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case KDict:
		out := make(map[string]any, len(v.Dict))
		for k, e := range v.Dict {
			n, err := valueToJSON(e)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	default:
		return nil, errType("object of type %q is not JSON serializable", v.TypeName())
	}
}

func callBase64(attr string, args []Value) (Value, error) {
	if attr != "b64decode" {
		return Value{}, errName("base64." + attr)
	}
	if len(args) != 1 || args[0].Kind != KStr {
		return Value{}, errType("base64.b64decode() requires a string")
	}
	clean := strings.Join(strings.Fields(args[0].Str), "")
	if m := len(clean) % 4; m != 0 {
		clean += strings.Repeat("=", 4-m)
	}
	if b, err := base64.StdEncoding.DecodeString(clean); err == nil {
		return Bytes(b), nil
	}
	b, err := base64.URLEncoding.DecodeString(clean)
	if err != nil {
		return Value{}, errValue("invalid base64 input: %v", err)
	}
	return Bytes(b), nil
}

func callBinascii(attr string, args []Value) (Value, error) {
	if attr != "hexlify" {
		return Value{}, errName("binascii." + attr)
	}
	if len(args) != 1 || args[0].Kind != KBytes {
		return Value{}, errType("binascii.hexlify() requires bytes")
	}
	return Bytes([]byte(hex.EncodeToString(args[0].Bytes))), nil
}

func callZlib(ctx *evalCtx, attr string, args []Value, kwargs map[string]Value) (Value, error) {
	if attr != "decompress" {
		return Value{}, errName("zlib." + attr)
	}
	if len(args) < 1 || args[0].Kind != KBytes {
		return Value{}, errType("zlib.decompress() requires bytes")
	}
	wbits := int64(15)
	if len(args) > 1 && args[1].Kind == KInt {
		wbits = args[1].Int
	} else if v, ok := kwargs["wbits"]; ok && v.Kind == KInt {
		wbits = v.Int
	}

	var r io.Reader
	raw := bytes.NewReader(args[0].Bytes)
	switch wbits {
	case 15:
		zr, err := zlib.NewReader(raw)
		if err != nil {
			return Value{}, errValue("invalid zlib stream: %v", err)
		}
		defer zr.Close()
		r = zr
	case 31:
		gr, err := gzip.NewReader(raw)
		if err != nil {
			return Value{}, errValue("invalid gzip stream: %v", err)
		}
		defer gr.Close()
		r = gr
	case -15:
		r = flate.NewReader(raw)
	case 47:
		if zr, err := zlib.NewReader(bytes.NewReader(args[0].Bytes)); err == nil {
			defer zr.Close()
			r = zr
		} else if gr, err := gzip.NewReader(bytes.NewReader(args[0].Bytes)); err == nil {
			defer gr.Close()
			r = gr
		} else {
			return Value{}, errValue("invalid compressed stream")
		}
	default:
		return Value{}, errValue("unsupported wbits value %d", wbits)
	}

	limited := io.LimitReader(r, int64(ctx.limits.MaxZlibOutputBytes)+1)
	out, err := io.ReadAll(limited)
	if err != nil {
		return Value{}, errValue("decompression failed: %v", err)
	}
	if len(out) > ctx.limits.MaxZlibOutputBytes {
		return Value{}, errResourceLimit("decompressed output exceeds %d bytes", ctx.limits.MaxZlibOutputBytes)
	}
	return Bytes(out), nil
}
