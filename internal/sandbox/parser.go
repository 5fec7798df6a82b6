package sandbox

// parseProgram turns source text into an ordered statement suite (C2). It is
// a hand-written recursive-descent parser over the subset grammar §4.1/§4.2
// describe — there is no off-the-shelf parser for this restricted dialect
// to adapt.
func parseProgram(src string) ([]Stmt, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	var stmts []Stmt
	for p.cur().typ != tEOF {
		if p.cur().typ == tNewline {
			p.advance()
			continue
		}
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) cur() token {
	if p.pos >= len(p.toks) {
		return token{typ: tEOF}
	}
	return p.toks[p.pos]
}

func (p *parser) peekAt(off int) token {
	i := p.pos + off
	if i >= len(p.toks) {
		return token{typ: tEOF}
	}
	return p.toks[i]
}

func (p *parser) advance() token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *parser) isOp(s string) bool {
	t := p.cur()
	return t.typ == tOp && t.str == s
}

func (p *parser) isKeyword(s string) bool {
	t := p.cur()
	return t.typ == tName && t.str == s
}

func (p *parser) expectOp(s string) error {
	if !p.isOp(s) {
		return errParse("expected %q, line %d", s, p.cur().line)
	}
	p.advance()
	return nil
}

func (p *parser) expectKeyword(s string) error {
	if !p.isKeyword(s) {
		return errParse("expected %q, line %d", s, p.cur().line)
	}
	p.advance()
	return nil
}

func (p *parser) expectNewline() error {
	if p.cur().typ != tNewline && p.cur().typ != tEOF {
		return errParse("expected end of statement, line %d", p.cur().line)
	}
	if p.cur().typ == tNewline {
		p.advance()
	}
	return nil
}

func (p *parser) expectName() (string, error) {
	t := p.cur()
	if t.typ != tName || keywords[t.str] {
		return "", errParse("expected identifier, line %d", t.line)
	}
	p.advance()
	return t.str, nil
}

// --- statements ---

func (p *parser) parseStatement() (Stmt, error) {
	t := p.cur()
	if t.typ == tName {
		switch t.str {
		case "if":
			return p.parseIf()
		case "for":
			return p.parseFor()
		case "try":
			return p.parseTry()
		case "def":
			return p.parseFuncDef()
		case "pass":
			p.advance()
			return PassStmt{}, p.expectNewline()
		case "return":
			return p.parseReturn()
		case "break":
			p.advance()
			return BreakStmt{}, p.expectNewline()
		case "continue":
			p.advance()
			return ContinueStmt{}, p.expectNewline()
		case "raise":
			return p.parseRaise()
		case "import":
			return p.parseImport()
		case "from":
			return p.parseFromImport()
		case "while", "with", "class", "lambda", "async", "await",
			"del", "global", "nonlocal", "yield":
			return nil, errForbiddenSyntax("%s statement", t.str)
		}
	}
	return p.parseSimpleOrAssign()
}

// parseBlock parses the suite that follows a ':' — either a single inline
// statement or an indented block.
func (p *parser) parseBlock() ([]Stmt, error) {
	if err := p.expectOp(":"); err != nil {
		return nil, err
	}
	if p.cur().typ == tNewline {
		p.advance()
		if p.cur().typ != tIndent {
			return nil, errParse("expected indented block, line %d", p.cur().line)
		}
		p.advance()
		var stmts []Stmt
		for p.cur().typ != tDedent {
			if p.cur().typ == tEOF {
				return nil, errParse("unexpected end of input in block")
			}
			s, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s)
		}
		p.advance() // consume DEDENT
		return stmts, nil
	}
	var stmts []Stmt
	for {
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		if p.isOp(";") {
			p.advance()
			if p.cur().typ == tNewline || p.cur().typ == tEOF {
				break
			}
			continue
		}
		break
	}
	return stmts, nil
}

func (p *parser) parseIf() (Stmt, error) {
	p.advance() // "if"
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var orelse []Stmt
	if p.isKeyword("elif") {
		// Rewrite `elif` as a nested if inside the else branch.
		nested, err := p.parseElif()
		if err != nil {
			return nil, err
		}
		orelse = []Stmt{nested}
	} else if p.isKeyword("else") {
		p.advance()
		orelse, err = p.parseBlock()
		if err != nil {
			return nil, err
		}
	}
	return IfStmt{Cond: cond, Body: body, Orelse: orelse}, nil
}

func (p *parser) parseElif() (Stmt, error) {
	p.advance() // "elif"
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var orelse []Stmt
	if p.isKeyword("elif") {
		nested, err := p.parseElif()
		if err != nil {
			return nil, err
		}
		orelse = []Stmt{nested}
	} else if p.isKeyword("else") {
		p.advance()
		orelse, err = p.parseBlock()
		if err != nil {
			return nil, err
		}
	}
	return IfStmt{Cond: cond, Body: body, Orelse: orelse}, nil
}

func (p *parser) parseTargetList() ([]string, error) {
	var names []string
	bracketed := false
	if p.isOp("(") || p.isOp("[") {
		bracketed = true
		p.advance()
	}
	for {
		name, err := p.expectName()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		if p.isOp(",") {
			p.advance()
			if bracketed && (p.isOp(")") || p.isOp("]")) {
				break
			}
			continue
		}
		break
	}
	if bracketed {
		if p.isOp(")") || p.isOp("]") {
			p.advance()
		} else {
			return nil, errParse("expected closing bracket in for-target, line %d", p.cur().line)
		}
	}
	return names, nil
}

func (p *parser) parseFor() (Stmt, error) {
	p.advance() // "for"
	targets, err := p.parseTargetList()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("in"); err != nil {
		return nil, err
	}
	iter, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return ForStmt{Targets: targets, Iter: iter, Body: body}, nil
}

func (p *parser) parseTry() (Stmt, error) {
	p.advance() // "try"
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("except"); err != nil {
		return nil, err
	}
	excName := ""
	if !p.isOp(":") {
		if !p.isKeyword("Exception") && p.cur().typ == tName {
			return nil, errForbiddenSyntax("except clause must omit its type or name exactly Exception")
		}
		p.advance() // "Exception"
		if p.isKeyword("as") {
			p.advance()
			excName, err = p.expectName()
			if err != nil {
				return nil, err
			}
		}
	}
	handler, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	if p.isKeyword("except") {
		return nil, errForbiddenSyntax("try with more than one handler")
	}
	return TryStmt{Body: body, ExceptName: excName, Handler: handler}, nil
}

func (p *parser) parseFuncDef() (Stmt, error) {
	p.advance() // "def"
	name, err := p.expectName()
	if err != nil {
		return nil, err
	}
	if err := p.expectOp("("); err != nil {
		return nil, err
	}
	var params []string
	for !p.isOp(")") {
		if p.isOp("*") || p.isOp("**") {
			return nil, errForbiddenSyntax("var-args/kwargs in function definition")
		}
		pname, err := p.expectName()
		if err != nil {
			return nil, err
		}
		if p.isOp("=") {
			return nil, errForbiddenSyntax("default argument value for %q", pname)
		}
		params = append(params, pname)
		if p.isOp(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return FuncDef{Name: name, Params: params, Body: body}, nil
}

func (p *parser) parseReturn() (Stmt, error) {
	p.advance() // "return"
	if p.cur().typ == tNewline || p.cur().typ == tEOF {
		return ReturnStmt{}, p.expectNewline()
	}
	v, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return ReturnStmt{Value: v}, p.expectNewline()
}

func (p *parser) parseRaise() (Stmt, error) {
	p.advance() // "raise"
	if p.cur().typ == tNewline || p.cur().typ == tEOF {
		return RaiseStmt{RKind: RaiseBare}, p.expectNewline()
	}
	if p.isKeyword("SystemExit") || (p.cur().typ == tName && p.cur().str == "SystemExit") {
		p.advance()
		if p.isOp("(") {
			p.advance()
			for !p.isOp(")") {
				if _, err := p.parseExpr(); err != nil {
					return nil, err
				}
				if p.isOp(",") {
					p.advance()
					continue
				}
				break
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
		}
		return RaiseStmt{RKind: RaiseSystemExit}, p.expectNewline()
	}
	if p.cur().typ == tName && p.cur().str == "Exception" {
		p.advance()
		var arg Expr
		if err := p.expectOp("("); err != nil {
			return nil, err
		}
		if !p.isOp(")") {
			a, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			arg = a
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return RaiseStmt{RKind: RaiseException, Arg: arg}, p.expectNewline()
	}
	return nil, errForbiddenSyntax("raise must be bare, SystemExit, or Exception(...)")
}

func (p *parser) parseImport() (Stmt, error) {
	p.advance() // "import"
	mod, err := p.expectName()
	if err != nil {
		return nil, err
	}
	alias := ""
	if p.isKeyword("as") {
		p.advance()
		alias, err = p.expectName()
		if err != nil {
			return nil, err
		}
	}
	return ImportStmt{Module: mod, Alias: alias}, p.expectNewline()
}

func (p *parser) parseFromImport() (Stmt, error) {
	p.advance() // "from"
	mod, err := p.expectName()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("import"); err != nil {
		return nil, err
	}
	name, err := p.expectName()
	if err != nil {
		return nil, err
	}
	alias := ""
	if p.isKeyword("as") {
		p.advance()
		alias, err = p.expectName()
		if err != nil {
			return nil, err
		}
	}
	return ImportFromStmt{Module: mod, Name: name, Alias: alias}, p.expectNewline()
}

func (p *parser) parseSimpleOrAssign() (Stmt, error) {
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.isOp("=") {
		p.advance()
		rhs, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		name, ok := x.(NameExpr)
		if !ok {
			return nil, errForbiddenSyntax("assignment target must be a simple name")
		}
		return AssignStmt{Target: name.Name, Value: rhs}, p.expectNewline()
	}
	if p.isOp("+=") {
		p.advance()
		rhs, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		name, ok := x.(NameExpr)
		if !ok {
			return nil, errForbiddenSyntax("assignment target must be a simple name")
		}
		return AugAssignStmt{Target: name.Name, Op: "+", Value: rhs}, p.expectNewline()
	}
	if t := p.cur(); t.typ == tOp && len(t.str) == 2 && t.str[1] == '=' && t.str != "==" && t.str != "!=" && t.str != "<=" && t.str != ">=" {
		return nil, errForbiddenSyntax("augmented assignment operator %q", t.str)
	}
	return ExprStmt{X: x}, p.expectNewline()
}

// --- expressions, precedence low to high ---

func (p *parser) parseExpr() (Expr, error) { return p.parseTernary() }

func (p *parser) parseTernary() (Expr, error) {
	body, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.isKeyword("if") {
		p.advance()
		cond, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("else"); err != nil {
			return nil, err
		}
		orelse, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		return IfExp{Cond: cond, Body: body, Orelse: orelse}, nil
	}
	return body, nil
}

func (p *parser) parseOr() (Expr, error) {
	x, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	var vals []Expr
	for p.isKeyword("or") {
		p.advance()
		y, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		if vals == nil {
			vals = []Expr{x}
		}
		vals = append(vals, y)
	}
	if vals != nil {
		return BoolOp{Op: "or", Values: vals}, nil
	}
	return x, nil
}

func (p *parser) parseAnd() (Expr, error) {
	x, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	var vals []Expr
	for p.isKeyword("and") {
		p.advance()
		y, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		if vals == nil {
			vals = []Expr{x}
		}
		vals = append(vals, y)
	}
	if vals != nil {
		return BoolOp{Op: "and", Values: vals}, nil
	}
	return x, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.isKeyword("not") {
		p.advance()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return UnaryOp{Op: "not", X: x}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseBitOr()
	if err != nil {
		return nil, err
	}
	var ops []string
	var comps []Expr
	for {
		op := ""
		switch {
		case p.isOp("=="):
			op = "=="
		case p.isOp("!="):
			op = "!="
		case p.isOp("<="):
			op = "<="
		case p.isOp(">="):
			op = ">="
		case p.isOp("<"):
			op = "<"
		case p.isOp(">"):
			op = ">"
		case p.isKeyword("in"):
			op = "in"
		case p.isKeyword("is"):
			if p.peekAt(1).typ == tName && p.peekAt(1).str == "not" {
				p.advance()
				op = "is not"
			} else {
				op = "is"
			}
		case p.isKeyword("not") && p.peekAt(1).typ == tName && p.peekAt(1).str == "in":
			p.advance()
			op = "not in"
		default:
			op = ""
		}
		if op == "" {
			break
		}
		p.advance()
		right, err := p.parseBitOr()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		comps = append(comps, right)
	}
	if ops == nil {
		return left, nil
	}
	return Compare{Left: left, Ops: ops, Comparators: comps}, nil
}

func (p *parser) parseBitOr() (Expr, error) {
	x, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.isOp("|") {
		p.advance()
		y, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		x = BinOp{Op: "|", X: x, Y: y}
	}
	return x, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	x, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.advance().str
		y, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		x = BinOp{Op: op, X: x, Y: y}
	}
	return x, nil
}

func (p *parser) parseMultiplicative() (Expr, error) {
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") || p.isOp("//") || p.isOp("%") {
		op := p.advance().str
		y, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		x = BinOp{Op: op, X: x, Y: y}
	}
	return x, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.isOp("-") {
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return UnaryOp{Op: "-", X: x}, nil
	}
	if p.isOp("+") {
		p.advance()
		return p.parseUnary()
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Expr, error) {
	x, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isOp("."):
			p.advance()
			attr, err := p.expectName()
			if err != nil {
				return nil, err
			}
			x = Attribute{Value: x, Attr: attr}
		case p.isOp("("):
			p.advance()
			args, kwargs, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			x = Call{Func: x, Args: args, Kwargs: kwargs}
		case p.isOp("["):
			p.advance()
			sub, err := p.parseSubscript(x)
			if err != nil {
				return nil, err
			}
			x = sub
		default:
			return x, nil
		}
	}
}

func (p *parser) parseCallArgs() ([]Expr, map[string]Expr, error) {
	var args []Expr
	var kwargs map[string]Expr
	for !p.isOp(")") {
		if p.isOp("**") {
			return nil, nil, errForbiddenSyntax("**kwargs in call")
		}
		if p.isOp("*") {
			return nil, nil, errForbiddenSyntax("*args in call")
		}
		if p.cur().typ == tName && !keywords[p.cur().str] && p.peekAt(1).typ == tOp && p.peekAt(1).str == "=" {
			name := p.advance().str
			p.advance() // "="
			v, err := p.parseExpr()
			if err != nil {
				return nil, nil, err
			}
			if kwargs == nil {
				kwargs = map[string]Expr{}
			}
			kwargs[name] = v
		} else {
			v, err := p.parseExpr()
			if err != nil {
				return nil, nil, err
			}
			args = append(args, v)
		}
		if p.isOp(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectOp(")"); err != nil {
		return nil, nil, err
	}
	return args, kwargs, nil
}

func (p *parser) parseSubscript(recv Expr) (Expr, error) {
	var lower, upper Expr
	var err error
	isSlice := false
	if !p.isOp(":") {
		lower, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if p.isOp(":") {
		isSlice = true
		p.advance()
		if !p.isOp("]") {
			upper, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		if p.isOp(":") {
			return nil, errForbiddenSyntax("slice step")
		}
	}
	if err := p.expectOp("]"); err != nil {
		return nil, err
	}
	if isSlice {
		return SliceExpr{Value: recv, Lower: lower, Upper: upper}, nil
	}
	return Subscript{Value: recv, Index: lower}, nil
}

func (p *parser) parseAtom() (Expr, error) {
	t := p.cur()
	switch t.typ {
	case tInt:
		p.advance()
		return IntLit{Value: t.ival}, nil
	case tString:
		p.advance()
		return StrLit{Value: t.str}, nil
	case tBytes:
		p.advance()
		return BytesLit{Value: []byte(t.str)}, nil
	case tName:
		switch t.str {
		case "None":
			p.advance()
			return NoneLit{}, nil
		case "True":
			p.advance()
			return BoolLit{Value: true}, nil
		case "False":
			p.advance()
			return BoolLit{Value: false}, nil
		}
		if keywords[t.str] {
			return nil, errParse("unexpected keyword %q, line %d", t.str, t.line)
		}
		p.advance()
		return NameExpr{Name: t.str}, nil
	case tOp:
		switch t.str {
		case "(":
			p.advance()
			if p.isOp(")") {
				p.advance()
				return TupleExpr{}, nil
			}
			x, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if p.isOp(",") {
				elts := []Expr{x}
				for p.isOp(",") {
					p.advance()
					if p.isOp(")") {
						break
					}
					y, err := p.parseExpr()
					if err != nil {
						return nil, err
					}
					elts = append(elts, y)
				}
				if err := p.expectOp(")"); err != nil {
					return nil, err
				}
				return TupleExpr{Elts: elts}, nil
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return x, nil
		case "[":
			return p.parseListOrComp()
		case "{":
			return p.parseDict()
		}
	}
	return nil, errParse("unexpected token, line %d", t.line)
}

func (p *parser) parseListOrComp() (Expr, error) {
	p.advance() // "["
	if p.isOp("]") {
		p.advance()
		return ListExpr{}, nil
	}
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.isKeyword("for") {
		p.advance()
		target, err := p.expectName()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("in"); err != nil {
			return nil, err
		}
		iter, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		var ifs []Expr
		for p.isKeyword("if") {
			p.advance()
			cond, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			ifs = append(ifs, cond)
		}
		if p.isKeyword("for") {
			return nil, errForbiddenSyntax("list comprehension with more than one generator")
		}
		if err := p.expectOp("]"); err != nil {
			return nil, err
		}
		return ListComp{Elt: first, Target: target, Iter: iter, Ifs: ifs}, nil
	}
	elts := []Expr{first}
	for p.isOp(",") {
		p.advance()
		if p.isOp("]") {
			break
		}
		y, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elts = append(elts, y)
	}
	if err := p.expectOp("]"); err != nil {
		return nil, err
	}
	return ListExpr{Elts: elts}, nil
}

func (p *parser) parseDict() (Expr, error) {
	p.advance() // "{"
	var keys []string
	var vals []Expr
	for !p.isOp("}") {
		if p.cur().typ != tString {
			return nil, errForbiddenSyntax("dict literal keys must be string literals")
		}
		key := p.advance().str
		if err := p.expectOp(":"); err != nil {
			return nil, err
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
		vals = append(vals, v)
		if p.isOp(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectOp("}"); err != nil {
		return nil, err
	}
	return DictExpr{Keys: keys, Values: vals}, nil
}
