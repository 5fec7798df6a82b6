package sandbox

import (
	"bytes"
	"strconv"
	"strings"
)

// evalCtx threads the mutable state one Execute call carries through
// statement/expression evaluation: the namespace, the output sink, the
// resource ceilings, and the running counters those ceilings are checked
// against.
type evalCtx struct {
	env       *Environment
	sink      *Sink
	limits    Limits
	loopIters int
	callDepth int
}

type flowKind int

const (
	flowNone flowKind = iota
	flowReturn
	flowBreak
	flowContinue
)

type flow struct {
	kind  flowKind
	value Value
}

func execStmts(ctx *evalCtx, stmts []Stmt) (flow, error) {
	for _, s := range stmts {
		fl, err := execStmt(ctx, s)
		if err != nil {
			return flow{}, err
		}
		if fl.kind != flowNone {
			return fl, nil
		}
	}
	return flow{}, nil
}

func execStmt(ctx *evalCtx, s Stmt) (flow, error) {
	switch n := s.(type) {
	case AssignStmt:
		v, err := evalExpr(ctx, n.Value)
		if err != nil {
			return flow{}, err
		}
		ctx.env.Set(n.Target, v)
		return flow{}, nil
	case AugAssignStmt:
		cur, ok := ctx.env.Get(n.Target)
		if !ok {
			return flow{}, errName(n.Target)
		}
		rhs, err := evalExpr(ctx, n.Value)
		if err != nil {
			return flow{}, err
		}
		result, err := addValues(cur, rhs)
		if err != nil {
			return flow{}, err
		}
		ctx.env.Set(n.Target, result)
		return flow{}, nil
	case ExprStmt:
		_, err := evalExpr(ctx, n.X)
		return flow{}, err
	case IfStmt:
		cond, err := evalExpr(ctx, n.Cond)
		if err != nil {
			return flow{}, err
		}
		if cond.Truthy() {
			return execStmts(ctx, n.Body)
		}
		return execStmts(ctx, n.Orelse)
	case PassStmt:
		return flow{}, nil
	case ForStmt:
		return execFor(ctx, n)
	case TryStmt:
		return execTry(ctx, n)
	case FuncDef:
		ctx.env.Set(n.Name, Func(&UserFunc{Name: n.Name, Params: n.Params, Body: n.Body}))
		return flow{}, nil
	case ReturnStmt:
		if n.Value == nil {
			return flow{kind: flowReturn, value: None()}, nil
		}
		v, err := evalExpr(ctx, n.Value)
		if err != nil {
			return flow{}, err
		}
		return flow{kind: flowReturn, value: v}, nil
	case BreakStmt:
		return flow{kind: flowBreak}, nil
	case ContinueStmt:
		return flow{kind: flowContinue}, nil
	case RaiseStmt:
		return execRaise(ctx, n)
	case ImportStmt:
		if !isKnownModule(n.Module) {
			return flow{}, errName(n.Module)
		}
		target := n.Module
		if n.Alias != "" {
			target = n.Alias
		}
		ctx.env.Set(target, ModuleValue(n.Module))
		return flow{}, nil
	case ImportFromStmt:
		v, err := moduleAttr(n.Module, n.Name)
		if err != nil {
			return flow{}, err
		}
		target := n.Name
		if n.Alias != "" {
			target = n.Alias
		}
		ctx.env.Set(target, v)
		return flow{}, nil
	default:
		return flow{}, errRuntime("unsupported statement")
	}
}

func isKnownModule(m string) bool {
	for _, n := range moduleNames {
		if n == m {
			return true
		}
	}
	return false
}

func execFor(ctx *evalCtx, n ForStmt) (flow, error) {
	iterV, err := evalExpr(ctx, n.Iter)
	if err != nil {
		return flow{}, err
	}
	elems, err := iterableElements(iterV)
	if err != nil {
		return flow{}, err
	}
	for _, e := range elems {
		ctx.loopIters++
		if ctx.loopIters > ctx.limits.MaxLoopIterations {
			return flow{}, errResourceLimit("exceeded maximum loop iterations (%d)", ctx.limits.MaxLoopIterations)
		}
		if len(n.Targets) == 1 {
			ctx.env.Set(n.Targets[0], e)
		} else {
			if e.Kind != KList || len(e.List) != len(n.Targets) {
				return flow{}, errValue("cannot unpack value into %d targets", len(n.Targets))
			}
			for i, t := range n.Targets {
				ctx.env.Set(t, e.List[i])
			}
		}
		fl, err := execStmts(ctx, n.Body)
		if err != nil {
			return flow{}, err
		}
		switch fl.kind {
		case flowBreak:
			return flow{}, nil
		case flowReturn:
			return fl, nil
		}
	}
	return flow{}, nil
}

func execTry(ctx *evalCtx, n TryStmt) (flow, error) {
	fl, err := execStmts(ctx, n.Body)
	if err == nil {
		return fl, nil
	}
	if re, ok := err.(*ReplError); ok && re.Kind == KindSystemExit {
		return flow{}, err
	}
	if n.ExceptName != "" {
		ctx.env.Set(n.ExceptName, Str(err.Error()))
	}
	return execStmts(ctx, n.Handler)
}

func execRaise(ctx *evalCtx, n RaiseStmt) (flow, error) {
	switch n.RKind {
	case RaiseBare:
		return flow{}, errRuntime("exception raised")
	case RaiseSystemExit:
		return flow{}, errSystemExit()
	case RaiseException:
		msg := ""
		if n.Arg != nil {
			v, err := evalExpr(ctx, n.Arg)
			if err != nil {
				return flow{}, err
			}
			msg = StrValue(v)
		}
		return flow{}, errRuntime("%s", msg)
	default:
		return flow{}, errRuntime("exception raised")
	}
}

// iterableElements projects a value into the sequence a for-loop walks:
// codepoints of a string (as single-character strings), bytes as ints,
// lists as themselves, dicts as their sorted keys.
func iterableElements(v Value) ([]Value, error) {
	switch v.Kind {
	case KStr:
		runes := []rune(v.Str)
		out := make([]Value, len(runes))
		for i, r := range runes {
			out[i] = Str(string(r))
		}
		return out, nil
	case KBytes:
		out := make([]Value, len(v.Bytes))
		for i, b := range v.Bytes {
			out[i] = Int(int64(b))
		}
		return out, nil
	case KList:
		return v.List, nil
	case KDict:
		keys := v.SortedKeys()
		out := make([]Value, len(keys))
		for i, k := range keys {
			out[i] = Str(k)
		}
		return out, nil
	default:
		return nil, errType("'%s' object is not iterable", v.TypeName())
	}
}

func callUserFunc(ctx *evalCtx, f *UserFunc, args []Value, kwargs map[string]Value) (Value, error) {
	if ctx.callDepth >= ctx.limits.MaxCallDepth {
		return Value{}, errResourceLimit("exceeded maximum call depth (%d)", ctx.limits.MaxCallDepth)
	}
	if len(args) > len(f.Params) {
		return Value{}, errType("%s() takes %d positional arguments but %d were given", f.Name, len(f.Params), len(args))
	}
	ctx.callDepth++
	ctx.env.pushFrame()
	defer func() {
		ctx.env.popFrame()
		ctx.callDepth--
	}()
	for i, p := range f.Params {
		var v Value
		if i < len(args) {
			v = args[i]
		} else if kv, ok := kwargs[p]; ok {
			v = kv
		} else {
			return Value{}, errType("%s() missing required argument: %q", f.Name, p)
		}
		ctx.env.Set(p, v)
	}
	fl, err := execStmts(ctx, f.Body)
	if err != nil {
		return Value{}, err
	}
	if fl.kind == flowReturn {
		return fl.value, nil
	}
	return None(), nil
}

// --- expressions ---

func evalExpr(ctx *evalCtx, e Expr) (Value, error) {
	switch n := e.(type) {
	case NoneLit:
		return None(), nil
	case BoolLit:
		return Bool(n.Value), nil
	case IntLit:
		return Int(n.Value), nil
	case StrLit:
		return Str(n.Value), nil
	case BytesLit:
		return Bytes(n.Value), nil
	case NameExpr:
		v, ok := ctx.env.Get(n.Name)
		if !ok {
			return Value{}, errName(n.Name)
		}
		return v, nil
	case BinOp:
		return evalBinOp(ctx, n)
	case UnaryOp:
		return evalUnary(ctx, n)
	case BoolOp:
		return evalBoolOp(ctx, n)
	case Compare:
		return evalCompare(ctx, n)
	case IfExp:
		cond, err := evalExpr(ctx, n.Cond)
		if err != nil {
			return Value{}, err
		}
		if cond.Truthy() {
			return evalExpr(ctx, n.Body)
		}
		return evalExpr(ctx, n.Orelse)
	case Call:
		return evalCall(ctx, n)
	case Attribute:
		return evalAttribute(ctx, n)
	case Subscript:
		return evalSubscript(ctx, n)
	case SliceExpr:
		return evalSlice(ctx, n)
	case ListExpr:
		out := make([]Value, len(n.Elts))
		for i, el := range n.Elts {
			v, err := evalExpr(ctx, el)
			if err != nil {
				return Value{}, err
			}
			out[i] = v
		}
		return List(out), nil
	case TupleExpr:
		out := make([]Value, len(n.Elts))
		for i, el := range n.Elts {
			v, err := evalExpr(ctx, el)
			if err != nil {
				return Value{}, err
			}
			out[i] = v
		}
		return List(out), nil
	case DictExpr:
		out := make(map[string]Value, len(n.Keys))
		for i, k := range n.Keys {
			v, err := evalExpr(ctx, n.Values[i])
			if err != nil {
				return Value{}, err
			}
			out[k] = v
		}
		return Dict(out), nil
	case ListComp:
		return evalListComp(ctx, n)
	default:
		return Value{}, errRuntime("unsupported expression")
	}
}

func evalUnary(ctx *evalCtx, n UnaryOp) (Value, error) {
	x, err := evalExpr(ctx, n.X)
	if err != nil {
		return Value{}, err
	}
	switch n.Op {
	case "-":
		if x.Kind != KInt {
			return Value{}, errType("bad operand type for unary -: '%s'", x.TypeName())
		}
		return Int(-x.Int), nil
	case "not":
		return Bool(!x.Truthy()), nil
	default:
		return Value{}, errType("unsupported unary operator %q", n.Op)
	}
}

func evalBoolOp(ctx *evalCtx, n BoolOp) (Value, error) {
	var result Value
	for _, e := range n.Values {
		v, err := evalExpr(ctx, e)
		if err != nil {
			return Value{}, err
		}
		result = v
		if n.Op == "and" && !v.Truthy() {
			return v, nil
		}
		if n.Op == "or" && v.Truthy() {
			return v, nil
		}
	}
	return result, nil
}

func evalCompare(ctx *evalCtx, n Compare) (Value, error) {
	left, err := evalExpr(ctx, n.Left)
	if err != nil {
		return Value{}, err
	}
	for i, op := range n.Ops {
		right, err := evalExpr(ctx, n.Comparators[i])
		if err != nil {
			return Value{}, err
		}
		ok, err := compareOp(op, left, right)
		if err != nil {
			return Value{}, err
		}
		if !ok {
			return Bool(false), nil
		}
		left = right
	}
	return Bool(true), nil
}

func compareOp(op string, a, b Value) (bool, error) {
	switch op {
	case "==":
		return primitiveEqual(a, b), nil
	case "!=":
		return !primitiveEqual(a, b), nil
	case "<":
		return valueLess(a, b)
	case ">":
		return valueLess(b, a)
	case "<=":
		gt, err := valueLess(b, a)
		return !gt, err
	case ">=":
		lt, err := valueLess(a, b)
		return !lt, err
	case "in":
		return containsValue(b, a)
	case "not in":
		ok, err := containsValue(b, a)
		return !ok, err
	case "is":
		return primitiveEqual(a, b), nil
	case "is not":
		return !primitiveEqual(a, b), nil
	default:
		return false, errType("unsupported comparison operator %q", op)
	}
}

func containsValue(container, item Value) (bool, error) {
	switch container.Kind {
	case KStr:
		if item.Kind != KStr {
			return false, errType("'in <string>' requires string as left operand, not %s", item.TypeName())
		}
		return strings.Contains(container.Str, item.Str), nil
	case KList:
		for _, e := range container.List {
			if primitiveEqual(e, item) {
				return true, nil
			}
		}
		return false, nil
	case KDict:
		if item.Kind != KStr {
			return false, nil
		}
		_, ok := container.Dict[item.Str]
		return ok, nil
	case KBytes:
		if item.Kind != KBytes {
			return false, errType("a bytes-like object is required, not %s", item.TypeName())
		}
		return bytes.Contains(container.Bytes, item.Bytes), nil
	default:
		return false, errType("argument of type %q is not iterable", container.TypeName())
	}
}

func addInt(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, errValue("integer overflow")
	}
	return sum, nil
}

func subInt(a, b int64) (int64, error) {
	diff := a - b
	if (b < 0 && diff < a) || (b > 0 && diff > a) {
		return 0, errValue("integer overflow")
	}
	return diff, nil
}

func addValues(x, y Value) (Value, error) {
	switch {
	case x.Kind == KInt && y.Kind == KInt:
		sum, err := addInt(x.Int, y.Int)
		if err != nil {
			return Value{}, err
		}
		return Int(sum), nil
	case x.Kind == KStr && y.Kind == KStr:
		return Str(x.Str + y.Str), nil
	case x.Kind == KBytes && y.Kind == KBytes:
		out := make([]byte, 0, len(x.Bytes)+len(y.Bytes))
		out = append(out, x.Bytes...)
		out = append(out, y.Bytes...)
		return Bytes(out), nil
	default:
		return Value{}, errType("unsupported operand type(s) for +: '%s' and '%s'", x.TypeName(), y.TypeName())
	}
}

func evalBinOp(ctx *evalCtx, n BinOp) (Value, error) {
	x, err := evalExpr(ctx, n.X)
	if err != nil {
		return Value{}, err
	}
	y, err := evalExpr(ctx, n.Y)
	if err != nil {
		return Value{}, err
	}
	switch n.Op {
	case "+":
		return addValues(x, y)
	case "-":
		if x.Kind == KInt && y.Kind == KInt {
			diff, err := subInt(x.Int, y.Int)
			if err != nil {
				return Value{}, err
			}
			return Int(diff), nil
		}
		return Value{}, errType("unsupported operand type(s) for -: '%s' and '%s'", x.TypeName(), y.TypeName())
	case "|":
		if x.Kind == KInt && y.Kind == KInt {
			return Int(x.Int | y.Int), nil
		}
		return Value{}, errType("unsupported operand type(s) for |: '%s' and '%s'", x.TypeName(), y.TypeName())
	case "%":
		if x.Kind == KInt && y.Kind == KInt {
			if y.Int == 0 {
				return Value{}, errValue("integer division or modulo by zero")
			}
			return Int(x.Int % y.Int), nil
		}
		if x.Kind == KStr {
			return formatPercent(x.Str, y)
		}
		return Value{}, errType("unsupported operand type(s) for %%: '%s' and '%s'", x.TypeName(), y.TypeName())
	default:
		return Value{}, errType("unsupported operand type(s) for %s: '%s' and '%s'", n.Op, x.TypeName(), y.TypeName())
	}
}

// formatPercent implements the subset of Python's %-formatting needed for
// simple result messages: %s, %d, %x, and %%. arg is treated as a tuple of
// substitutions when it is a List, else as the single substitution.
func formatPercent(format string, arg Value) (Value, error) {
	var args []Value
	if arg.Kind == KList {
		args = arg.List
	} else {
		args = []Value{arg}
	}
	var b strings.Builder
	ai := 0
	rs := []rune(format)
	for i := 0; i < len(rs); i++ {
		if rs[i] == '%' && i+1 < len(rs) {
			switch rs[i+1] {
			case 's':
				if ai >= len(args) {
					return Value{}, errValue("not enough arguments for format string")
				}
				b.WriteString(StrValue(args[ai]))
				ai++
				i++
				continue
			case 'd':
				if ai >= len(args) {
					return Value{}, errValue("not enough arguments for format string")
				}
				if args[ai].Kind != KInt {
					return Value{}, errType("%%d format: a number is required, not %s", args[ai].TypeName())
				}
				b.WriteString(strconv.FormatInt(args[ai].Int, 10))
				ai++
				i++
				continue
			case 'x':
				if ai >= len(args) {
					return Value{}, errValue("not enough arguments for format string")
				}
				if args[ai].Kind != KInt {
					return Value{}, errType("format %%x expects int")
				}
				b.WriteString(strconv.FormatInt(args[ai].Int, 16))
				ai++
				i++
				continue
			case '%':
				b.WriteByte('%')
				i++
				continue
			}
		}
		b.WriteRune(rs[i])
	}
	return Str(b.String()), nil
}

var strMethods = map[string]bool{
	"strip": true, "lower": true, "find": true, "replace": true,
	"split": true, "startswith": true,
}
var bytesMethods = map[string]bool{"decode": true}
var dictMethods = map[string]bool{"get": true}
var matchMethods = map[string]bool{"group": true}

func evalAttribute(ctx *evalCtx, n Attribute) (Value, error) {
	recv, err := evalExpr(ctx, n.Value)
	if err != nil {
		return Value{}, err
	}
	switch recv.Kind {
	case KModule:
		return moduleAttr(recv.Module, n.Attr)
	case KStr:
		if strMethods[n.Attr] {
			return bindMethod(recv, n.Attr), nil
		}
	case KBytes:
		if bytesMethods[n.Attr] {
			return bindMethod(recv, n.Attr), nil
		}
	case KDict:
		if dictMethods[n.Attr] {
			return bindMethod(recv, n.Attr), nil
		}
	case KMatch:
		if matchMethods[n.Attr] {
			return bindMethod(recv, n.Attr), nil
		}
	}
	return Value{}, errType("'%s' object has no attribute %q", recv.TypeName(), n.Attr)
}

func bindMethod(recv Value, method string) Value {
	r := recv
	return CallableValue(&Callable{Kind: CallBoundMethod, Receiver: &r, Method: method})
}

func callBoundMethod(ctx *evalCtx, c *Callable, args []Value, kwargs map[string]Value) (Value, error) {
	recv := *c.Receiver
	switch recv.Kind {
	case KStr:
		return callStrMethod(recv.Str, c.Method, args)
	case KBytes:
		return callBytesMethod(recv.Bytes, c.Method, args, kwargs)
	case KDict:
		return callDictMethod(recv, c.Method, args)
	case KMatch:
		return callMatchMethod(recv.Match, c.Method, args)
	default:
		return Value{}, errType("'%s' object has no attribute %q", recv.TypeName(), c.Method)
	}
}

func callStrMethod(s, method string, args []Value) (Value, error) {
	switch method {
	case "strip":
		return Str(strings.TrimSpace(s)), nil
	case "lower":
		return Str(strings.ToLower(s)), nil
	case "find":
		if len(args) != 1 || args[0].Kind != KStr {
			return Value{}, errType("find() requires a string argument")
		}
		bi := strings.Index(s, args[0].Str)
		if bi < 0 {
			return Int(-1), nil
		}
		return Int(int64(len([]rune(s[:bi])))), nil
	case "replace":
		if len(args) != 2 || args[0].Kind != KStr || args[1].Kind != KStr {
			return Value{}, errType("replace() requires two string arguments")
		}
		return Str(strings.ReplaceAll(s, args[0].Str, args[1].Str)), nil
	case "split":
		if len(args) == 0 {
			parts := strings.Fields(s)
			out := make([]Value, len(parts))
			for i, p := range parts {
				out[i] = Str(p)
			}
			return List(out), nil
		}
		if len(args) != 1 || args[0].Kind != KStr {
			return Value{}, errType("split() requires a string argument")
		}
		parts := strings.Split(s, args[0].Str)
		out := make([]Value, len(parts))
		for i, p := range parts {
			out[i] = Str(p)
		}
		return List(out), nil
	case "startswith":
		if len(args) != 1 || args[0].Kind != KStr {
			return Value{}, errType("startswith() requires a string argument")
		}
		return Bool(strings.HasPrefix(s, args[0].Str)), nil
	default:
		return Value{}, errName("str." + method)
	}
}

func callBytesMethod(data []byte, method string, args []Value, kwargs map[string]Value) (Value, error) {
	if method != "decode" {
		return Value{}, errName("bytes." + method)
	}
	encoding := "utf-8"
	errMode := "strict"
	if len(args) > 0 && args[0].Kind == KStr {
		encoding = args[0].Str
	}
	if v, ok := kwargs["encoding"]; ok && v.Kind == KStr {
		encoding = v.Str
	}
	if len(args) > 1 && args[1].Kind == KStr {
		errMode = args[1].Str
	}
	if v, ok := kwargs["errors"]; ok && v.Kind == KStr {
		errMode = v.Str
	}
	switch strings.ToLower(encoding) {
	case "utf-8", "utf8":
		if !isValidUTF8(data) {
			if errMode == "replace" {
				return Str(strings.ToValidUTF8(string(data), "�")), nil
			}
			return Value{}, errValue("invalid utf-8 in bytes.decode()")
		}
		return Str(string(data)), nil
	case "latin-1", "latin1", "iso-8859-1":
		runes := make([]rune, len(data))
		for i, b := range data {
			runes[i] = rune(b)
		}
		return Str(string(runes)), nil
	case "ascii":
		for _, b := range data {
			if b > 127 {
				if errMode == "replace" {
					break
				}
				return Value{}, errValue("ordinal not in range(128)")
			}
		}
		runes := make([]rune, 0, len(data))
		for _, b := range data {
			if b > 127 {
				runes = append(runes, '�')
				continue
			}
			runes = append(runes, rune(b))
		}
		return Str(string(runes)), nil
	default:
		return Value{}, errValue("unknown encoding: %s", encoding)
	}
}

func isValidUTF8(b []byte) bool {
	return strings.ToValidUTF8(string(b), "") == string(b)
}

func callDictMethod(recv Value, method string, args []Value) (Value, error) {
	if method != "get" {
		return Value{}, errName("dict." + method)
	}
	if len(args) < 1 {
		return Value{}, errType("get() requires at least one argument")
	}
	var key string
	switch args[0].Kind {
	case KStr:
		key = args[0].Str
	case KInt:
		keys := recv.SortedKeys()
		idx := int(args[0].Int)
		if idx < 0 || idx >= len(keys) {
			if len(args) > 1 {
				return args[1], nil
			}
			return None(), nil
		}
		key = keys[idx]
	default:
		return Value{}, errType("get() key must be str or int")
	}
	if v, ok := recv.Dict[key]; ok {
		return v, nil
	}
	if len(args) > 1 {
		return args[1], nil
	}
	return None(), nil
}

func callMatchMethod(m *MatchObject, method string, args []Value) (Value, error) {
	if method != "group" {
		return Value{}, errName("Match." + method)
	}
	idx := 0
	if len(args) > 0 {
		if args[0].Kind != KInt {
			return Value{}, errType("group() argument must be an int")
		}
		idx = int(args[0].Int)
	}
	if idx < 0 || idx >= len(m.Groups) {
		return Value{}, errValue("no such group: %d", idx)
	}
	return Str(m.Groups[idx]), nil
}

func evalCall(ctx *evalCtx, n Call) (Value, error) {
	if attr, ok := n.Func.(Attribute); ok && attr.Attr == "append" {
		if name, ok2 := attr.Value.(NameExpr); ok2 {
			return evalListAppend(ctx, name.Name, n.Args)
		}
	}
	fnVal, err := evalExpr(ctx, n.Func)
	if err != nil {
		return Value{}, err
	}
	args := make([]Value, len(n.Args))
	for i, a := range n.Args {
		v, err := evalExpr(ctx, a)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	var kwargs map[string]Value
	if len(n.Kwargs) > 0 {
		kwargs = make(map[string]Value, len(n.Kwargs))
		for k, e := range n.Kwargs {
			v, err := evalExpr(ctx, e)
			if err != nil {
				return Value{}, err
			}
			kwargs[k] = v
		}
	}
	switch fnVal.Kind {
	case KFunc:
		return callUserFunc(ctx, fnVal.Func, args, kwargs)
	case KCallable:
		c := fnVal.Callable
		switch c.Kind {
		case CallModuleFunc:
			if c.Module == "builtins" {
				return callBuiltin(ctx, c.Attr, args, kwargs)
			}
			return callModule(ctx, c.Module, c.Attr, args, kwargs)
		case CallBoundMethod:
			return callBoundMethod(ctx, c, args, kwargs)
		}
	}
	return Value{}, errType("'%s' object is not callable", fnVal.TypeName())
}

func evalListAppend(ctx *evalCtx, name string, argExprs []Expr) (Value, error) {
	cur, ok := ctx.env.Get(name)
	if !ok {
		return Value{}, errName(name)
	}
	if cur.Kind != KList {
		return Value{}, errType("'%s' object has no attribute 'append'", cur.TypeName())
	}
	if len(argExprs) != 1 {
		return Value{}, errType("append() takes exactly one argument (%d given)", len(argExprs))
	}
	v, err := evalExpr(ctx, argExprs[0])
	if err != nil {
		return Value{}, err
	}
	ctx.env.Set(name, List(append(CloneShallowList(cur.List), v)))
	return None(), nil
}

func normalizeIndex(i int64, n int) int {
	if i < 0 {
		i += int64(n)
	}
	return int(i)
}

func evalSubscript(ctx *evalCtx, n Subscript) (Value, error) {
	recv, err := evalExpr(ctx, n.Value)
	if err != nil {
		return Value{}, err
	}
	idx, err := evalExpr(ctx, n.Index)
	if err != nil {
		return Value{}, err
	}
	switch recv.Kind {
	case KStr:
		if idx.Kind != KInt {
			return Value{}, errType("string indices must be integers")
		}
		runes := []rune(recv.Str)
		i := normalizeIndex(idx.Int, len(runes))
		if i < 0 || i >= len(runes) {
			return Value{}, errValue("string index out of range")
		}
		return Str(string(runes[i])), nil
	case KBytes:
		if idx.Kind != KInt {
			return Value{}, errType("bytes indices must be integers")
		}
		i := normalizeIndex(idx.Int, len(recv.Bytes))
		if i < 0 || i >= len(recv.Bytes) {
			return Value{}, errValue("bytes index out of range")
		}
		return Int(int64(recv.Bytes[i])), nil
	case KList:
		if idx.Kind != KInt {
			return Value{}, errType("list indices must be integers")
		}
		i := normalizeIndex(idx.Int, len(recv.List))
		if i < 0 || i >= len(recv.List) {
			return Value{}, errValue("list index out of range")
		}
		return recv.List[i], nil
	case KDict:
		switch idx.Kind {
		case KStr:
			v, ok := recv.Dict[idx.Str]
			if !ok {
				return None(), nil
			}
			return v, nil
		case KInt:
			if idx.Int < 0 {
				return Value{}, errValue("index out of range")
			}
			keys := recv.SortedKeys()
			i := int(idx.Int)
			if i >= len(keys) {
				return Value{}, errValue("index out of range")
			}
			return recv.Dict[keys[i]], nil
		default:
			return Value{}, errType("dict index must be str")
		}
	default:
		return Value{}, errType("'%s' object is not subscriptable", recv.TypeName())
	}
}

func evalSlice(ctx *evalCtx, n SliceExpr) (Value, error) {
	recv, err := evalExpr(ctx, n.Value)
	if err != nil {
		return Value{}, err
	}
	var lower, upper *int64
	if n.Lower != nil {
		v, err := evalExpr(ctx, n.Lower)
		if err != nil {
			return Value{}, err
		}
		if v.Kind != KInt {
			return Value{}, errType("slice indices must be integers")
		}
		lower = &v.Int
	}
	if n.Upper != nil {
		v, err := evalExpr(ctx, n.Upper)
		if err != nil {
			return Value{}, err
		}
		if v.Kind != KInt {
			return Value{}, errType("slice indices must be integers")
		}
		upper = &v.Int
	}
	switch recv.Kind {
	case KStr:
		runes := []rune(recv.Str)
		lo, hi := clampSlice(lower, upper, len(runes))
		return Str(string(runes[lo:hi])), nil
	case KBytes:
		lo, hi := clampSlice(lower, upper, len(recv.Bytes))
		return Bytes(append([]byte{}, recv.Bytes[lo:hi]...)), nil
	case KList:
		lo, hi := clampSlice(lower, upper, len(recv.List))
		return List(CloneShallowList(recv.List[lo:hi])), nil
	default:
		return Value{}, errType("'%s' object is not subscriptable", recv.TypeName())
	}
}

func clampSlice(lower, upper *int64, n int) (int, int) {
	lo := 0
	if lower != nil {
		lo = int(*lower)
		if lo < 0 {
			lo += n
		}
		if lo < 0 {
			lo = 0
		}
		if lo > n {
			lo = n
		}
	}
	hi := n
	if upper != nil {
		hi = int(*upper)
		if hi < 0 {
			hi += n
		}
		if hi < 0 {
			hi = 0
		}
		if hi > n {
			hi = n
		}
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func evalListComp(ctx *evalCtx, n ListComp) (Value, error) {
	iterV, err := evalExpr(ctx, n.Iter)
	if err != nil {
		return Value{}, err
	}
	elems, err := iterableElements(iterV)
	if err != nil {
		return Value{}, err
	}
	ctx.env.pushFrame()
	defer ctx.env.popFrame()
	var out []Value
	for _, e := range elems {
		ctx.loopIters++
		if ctx.loopIters > ctx.limits.MaxLoopIterations {
			return Value{}, errResourceLimit("exceeded maximum loop iterations (%d)", ctx.limits.MaxLoopIterations)
		}
		ctx.env.Set(n.Target, e)
		include := true
		for _, cond := range n.Ifs {
			cv, err := evalExpr(ctx, cond)
			if err != nil {
				return Value{}, err
			}
			if !cv.Truthy() {
				include = false
				break
			}
		}
		if !include {
			continue
		}
		v, err := evalExpr(ctx, n.Elt)
		if err != nil {
			return Value{}, err
		}
		out = append(out, v)
	}
	return List(out), nil
}
