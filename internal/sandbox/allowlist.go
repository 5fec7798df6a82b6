package sandbox

import "strings"

// deniedNames is the explicit name blocklist layered on top of the
// underscore/dunder rule below.
var deniedNames = map[string]bool{
	"__import__": true, "eval": true, "exec": true, "open": true,
	"globals": true, "locals": true, "vars": true,
	"getattr": true, "setattr": true, "delattr": true,
}

// checkName enforces the name rule: no underscore-prefixed or
// dunder-containing identifiers, and an explicit blocklist of builtins that
// would otherwise let code escape the sandbox.
func checkName(name string) error {
	if deniedNames[name] {
		return errForbiddenName(name)
	}
	if strings.HasPrefix(name, "_") {
		return errForbiddenName(name)
	}
	if strings.Contains(name, "__") {
		return errForbiddenName(name)
	}
	return nil
}

// checkAttr enforces the attribute rule: no underscore-prefixed or
// dunder-containing attribute names, mirroring checkName but without the
// explicit builtins blocklist (which only applies to bound names).
func checkAttr(attr string) error {
	if strings.HasPrefix(attr, "_") {
		return errForbiddenName(attr)
	}
	if strings.Contains(attr, "__") {
		return errForbiddenName(attr)
	}
	return nil
}

// checkAllowlist walks a parsed suite (C3) as defense-in-depth separate from
// the runtime type checks eval.go performs. It rejects anything parser.go
// accepted syntactically but the subset still disallows, and it rejects
// every name the parser didn't already reject.
func checkAllowlist(stmts []Stmt) error {
	for _, s := range stmts {
		if err := checkStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func checkStmt(s Stmt) error {
	switch n := s.(type) {
	case AssignStmt:
		if err := checkName(n.Target); err != nil {
			return err
		}
		return checkExpr(n.Value)
	case AugAssignStmt:
		if err := checkName(n.Target); err != nil {
			return err
		}
		return checkExpr(n.Value)
	case ExprStmt:
		return checkExpr(n.X)
	case IfStmt:
		if err := checkExpr(n.Cond); err != nil {
			return err
		}
		if err := checkAllowlist(n.Body); err != nil {
			return err
		}
		return checkAllowlist(n.Orelse)
	case PassStmt:
		return nil
	case ForStmt:
		for _, t := range n.Targets {
			if err := checkName(t); err != nil {
				return err
			}
		}
		if err := checkExpr(n.Iter); err != nil {
			return err
		}
		return checkAllowlist(n.Body)
	case TryStmt:
		if n.ExceptName != "" {
			if err := checkName(n.ExceptName); err != nil {
				return err
			}
		}
		if err := checkAllowlist(n.Body); err != nil {
			return err
		}
		return checkAllowlist(n.Handler)
	case FuncDef:
		if err := checkName(n.Name); err != nil {
			return err
		}
		for _, p := range n.Params {
			if err := checkName(p); err != nil {
				return err
			}
		}
		return checkAllowlist(n.Body)
	case ReturnStmt:
		if n.Value == nil {
			return nil
		}
		return checkExpr(n.Value)
	case BreakStmt, ContinueStmt:
		return nil
	case RaiseStmt:
		if n.Arg == nil {
			return nil
		}
		return checkExpr(n.Arg)
	case ImportStmt:
		if n.Alias != "" {
			return checkName(n.Alias)
		}
		return nil
	case ImportFromStmt:
		if n.Alias != "" {
			return checkName(n.Alias)
		}
		return nil
	default:
		return errForbiddenSyntax("unsupported statement")
	}
}

func checkExpr(e Expr) error {
	switch n := e.(type) {
	case nil:
		return nil
	case NoneLit, BoolLit, IntLit, StrLit, BytesLit:
		return nil
	case NameExpr:
		return checkName(n.Name)
	case BinOp:
		if err := checkExpr(n.X); err != nil {
			return err
		}
		return checkExpr(n.Y)
	case UnaryOp:
		return checkExpr(n.X)
	case BoolOp:
		for _, v := range n.Values {
			if err := checkExpr(v); err != nil {
				return err
			}
		}
		return nil
	case Compare:
		if err := checkExpr(n.Left); err != nil {
			return err
		}
		for _, c := range n.Comparators {
			if err := checkExpr(c); err != nil {
				return err
			}
		}
		return nil
	case IfExp:
		if err := checkExpr(n.Cond); err != nil {
			return err
		}
		if err := checkExpr(n.Body); err != nil {
			return err
		}
		return checkExpr(n.Orelse)
	case Call:
		if err := checkExpr(n.Func); err != nil {
			return err
		}
		for _, a := range n.Args {
			if err := checkExpr(a); err != nil {
				return err
			}
		}
		for _, v := range n.Kwargs {
			if err := checkExpr(v); err != nil {
				return err
			}
		}
		return nil
	case Attribute:
		if err := checkExpr(n.Value); err != nil {
			return err
		}
		return checkAttr(n.Attr)
	case Subscript:
		if err := checkExpr(n.Value); err != nil {
			return err
		}
		return checkExpr(n.Index)
	case SliceExpr:
		if err := checkExpr(n.Value); err != nil {
			return err
		}
		if n.Lower != nil {
			if err := checkExpr(n.Lower); err != nil {
				return err
			}
		}
		if n.Upper != nil {
			return checkExpr(n.Upper)
		}
		return nil
	case ListExpr:
		for _, el := range n.Elts {
			if err := checkExpr(el); err != nil {
				return err
			}
		}
		return nil
	case TupleExpr:
		for _, el := range n.Elts {
			if err := checkExpr(el); err != nil {
				return err
			}
		}
		return nil
	case DictExpr:
		for _, v := range n.Values {
			if err := checkExpr(v); err != nil {
				return err
			}
		}
		return nil
	case ListComp:
		if err := checkName(n.Target); err != nil {
			return err
		}
		if err := checkExpr(n.Iter); err != nil {
			return err
		}
		for _, cond := range n.Ifs {
			if err := checkExpr(cond); err != nil {
				return err
			}
		}
		return checkExpr(n.Elt)
	default:
		return errForbiddenSyntax("unsupported expression")
	}
}
