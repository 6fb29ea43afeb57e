package syntax

import (
	"fmt"
	"strings"
)

// maxNesting bounds parser recursion so hostile input fails instead of
// exhausting the stack.
const maxNesting = 1000

var reserved = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

var augmentedOps = map[string]bool{
	"+=": true, "-=": true, "*=": true, "/=": true, "//=": true, "%=": true, "@=": true,
	"&=": true, "|=": true, "^=": true, ">>=": true, "<<=": true, "**=": true,
}

var binaryLevels = [][]string{
	{"|"},
	{"^"},
	{"&"},
	{"<<", ">>"},
	{"+", "-"},
	{"*", "/", "//", "%", "@"},
}

var comparisonOps = map[string]bool{"<": true, ">": true, "==": true, ">=": true, "<=": true, "!=": true}

type parser struct {
	toks  []token
	pos   int
	depth int
}

// Parse parses a code block. Any construct outside the grammar yields a
// *SyntaxError and no module.
func Parse(src string) (mod *Module, err error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks}
	defer func() {
		if r := recover(); r != nil {
			se, ok := r.(*SyntaxError)
			if !ok {
				panic(r)
			}
			mod, err = nil, se
		}
	}()

	return &Module{Body: p.parseFile()}, nil
}

// token helpers

func (p *parser) peek() token {
	return p.peekAt(0)
}

func (p *parser) peekAt(n int) token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() token {
	t := p.peek()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) isOp(op string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == op
}

func (p *parser) isKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tokName && t.text == kw
}

func (p *parser) acceptOp(op string) bool {
	if p.isOp(op) {
		p.next()
		return true
	}
	return false
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.isKeyword(kw) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expectOp(op string) token {
	if !p.isOp(op) {
		p.fail("expected '%s'", op)
	}
	return p.next()
}

func (p *parser) expectKeyword(kw string) token {
	if !p.isKeyword(kw) {
		p.fail("expected '%s'", kw)
	}
	return p.next()
}

func (p *parser) expectIdent() string {
	t := p.peek()
	if t.kind != tokName || reserved[t.text] {
		p.fail("invalid syntax")
	}
	p.next()
	return t.text
}

func (p *parser) expectNewline() {
	if p.peek().kind != tokNewline {
		p.fail("invalid syntax")
	}
	p.next()
}

func (p *parser) fail(format string, args ...any) {
	panic(&SyntaxError{Line: p.peek().line, Msg: fmt.Sprintf(format, args...)})
}

func (p *parser) enter() {
	p.depth++
	if p.depth > maxNesting {
		p.fail("too many nested expressions")
	}
}

func (p *parser) leave() {
	p.depth--
}

// attempt runs fn and rewinds the parser if it raised a syntax error
func (p *parser) attempt(fn func()) (ok bool) {
	pos, depth := p.pos, p.depth
	defer func() {
		if r := recover(); r != nil {
			if _, isSyntax := r.(*SyntaxError); !isSyntax {
				panic(r)
			}
			p.pos, p.depth = pos, depth
			ok = false
		}
	}()
	fn()
	return true
}

// startsExpr reports whether the current token can begin an expression
func (p *parser) startsExpr() bool {
	t := p.peek()
	switch t.kind {
	case tokNumber, tokString:
		return true
	case tokName:
		if !reserved[t.text] {
			return true
		}
		switch t.text {
		case "True", "False", "None", "not", "lambda", "await":
			return true
		}
	case tokOp:
		switch t.text {
		case "(", "[", "{", "-", "+", "~", "...", "*":
			return true
		}
	}
	return false
}

// statements

func (p *parser) parseFile() []Stmt {
	var body []Stmt
	for p.peek().kind != tokEOF {
		if p.peek().kind == tokNewline {
			p.next()
			continue
		}
		body = append(body, p.parseStatement()...)
	}
	return body
}

func (p *parser) parseStatement() []Stmt {
	p.enter()
	defer p.leave()

	t := p.peek()
	switch t.kind {
	case tokIndent:
		p.fail("unexpected indent")
	case tokDedent:
		p.fail("unexpected unindent")
	case tokOp:
		if t.text == "@" {
			return []Stmt{p.parseDecorated()}
		}
	case tokName:
		switch t.text {
		case "if":
			return []Stmt{p.parseIf()}
		case "while":
			return []Stmt{p.parseWhile()}
		case "for":
			return []Stmt{p.parseFor()}
		case "try":
			return []Stmt{p.parseTry()}
		case "with":
			return []Stmt{p.parseWith()}
		case "def":
			return []Stmt{p.parseDef()}
		case "class":
			return []Stmt{p.parseClass()}
		case "async":
			return []Stmt{p.parseAsync()}
		case "match":
			// soft keyword: "match(x)" and "match = 1" stay expressions
			var stmt Stmt
			if p.attempt(func() { stmt = p.parseMatch() }) {
				return []Stmt{stmt}
			}
		}
	}

	return p.parseSimpleStatement()
}

func (p *parser) parseSuite() []Stmt {
	if p.peek().kind != tokNewline {
		return p.parseSimpleStatement()
	}
	p.next()

	if p.peek().kind != tokIndent {
		p.fail("expected an indented block")
	}
	p.next()

	var body []Stmt
	for p.peek().kind != tokDedent && p.peek().kind != tokEOF {
		body = append(body, p.parseStatement()...)
	}
	if p.peek().kind == tokDedent {
		p.next()
	}
	return body
}

func (p *parser) parseIf() Stmt {
	line := p.next().line // "if" or "elif"
	p.parseNamedExpr()
	p.expectOp(":")

	block := &BlockStmt{Line: line, Keyword: "if", Body: p.parseSuite()}
	switch {
	case p.isKeyword("elif"):
		block.Body = append(block.Body, p.parseIf())
	case p.acceptKeyword("else"):
		p.expectOp(":")
		block.Body = append(block.Body, p.parseSuite()...)
	}
	return block
}

func (p *parser) parseWhile() Stmt {
	line := p.next().line
	p.parseNamedExpr()
	p.expectOp(":")

	block := &BlockStmt{Line: line, Keyword: "while", Body: p.parseSuite()}
	p.parseElse(block)
	return block
}

func (p *parser) parseFor() Stmt {
	line := p.next().line
	p.parseExprList()
	p.expectKeyword("in")
	p.parseTestList(true)
	p.expectOp(":")

	block := &BlockStmt{Line: line, Keyword: "for", Body: p.parseSuite()}
	p.parseElse(block)
	return block
}

func (p *parser) parseElse(block *BlockStmt) {
	if p.acceptKeyword("else") {
		p.expectOp(":")
		block.Body = append(block.Body, p.parseSuite()...)
	}
}

func (p *parser) parseTry() Stmt {
	line := p.next().line
	p.expectOp(":")
	block := &BlockStmt{Line: line, Keyword: "try", Body: p.parseSuite()}

	handlers := 0
	for p.isKeyword("except") {
		handlerLine := p.next().line
		p.acceptOp("*")
		if !p.isOp(":") {
			p.parseTest()
			if p.acceptKeyword("as") {
				p.expectIdent()
			}
		}
		p.expectOp(":")
		block.Body = append(block.Body, &BlockStmt{Line: handlerLine, Keyword: "except", Body: p.parseSuite()})
		handlers++
	}

	if handlers > 0 {
		p.parseElse(block)
	}

	hasFinally := false
	if p.acceptKeyword("finally") {
		p.expectOp(":")
		block.Body = append(block.Body, p.parseSuite()...)
		hasFinally = true
	}

	if handlers == 0 && !hasFinally {
		p.fail("expected 'except' or 'finally' block")
	}
	return block
}

// parseMatch reads a match statement as a "match" block whose body holds
// one "case" block per clause. Patterns are checked for balance only.
func (p *parser) parseMatch() Stmt {
	line := p.next().line
	p.parseNamedOrStar()
	for p.acceptOp(",") && !p.isOp(":") {
		p.parseNamedOrStar()
	}
	p.expectOp(":")
	p.expectNewline()
	if p.peek().kind != tokIndent {
		p.fail("expected an indented block")
	}
	p.next()

	block := &BlockStmt{Line: line, Keyword: "match"}
	for p.peek().kind != tokDedent && p.peek().kind != tokEOF {
		if !p.isKeyword("case") {
			p.fail("invalid syntax")
		}
		caseLine := p.next().line
		p.skipPattern()
		if p.acceptKeyword("if") {
			p.parseNamedExpr()
		}
		p.expectOp(":")
		block.Body = append(block.Body, &BlockStmt{Line: caseLine, Keyword: "case", Body: p.parseSuite()})
	}
	if p.peek().kind == tokDedent {
		p.next()
	}
	return block
}

// skipPattern consumes a case pattern up to its guard or closing colon
func (p *parser) skipPattern() {
	depth, n := 0, 0
	for {
		t := p.peek()
		switch t.kind {
		case tokNewline, tokIndent, tokDedent, tokEOF:
			p.fail("invalid syntax")
		case tokName:
			if depth == 0 && t.text == "if" {
				if n == 0 {
					p.fail("invalid syntax")
				}
				return
			}
		case tokOp:
			switch t.text {
			case ":":
				if depth == 0 {
					if n == 0 {
						p.fail("invalid syntax")
					}
					return
				}
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
				if depth < 0 {
					p.fail("unmatched '%s'", t.text)
				}
			}
		}
		p.next()
		n++
	}
}

func (p *parser) parseWith() Stmt {
	line := p.next().line

	parenthesized := p.isOp("(") && p.attempt(func() {
		p.next()
		for {
			p.parseWithItem()
			if !p.acceptOp(",") || p.isOp(")") {
				break
			}
		}
		p.expectOp(")")
		if !p.isOp(":") {
			p.fail("invalid syntax")
		}
	})
	if !parenthesized {
		for {
			p.parseWithItem()
			if !p.acceptOp(",") {
				break
			}
		}
	}
	p.expectOp(":")

	return &BlockStmt{Line: line, Keyword: "with", Body: p.parseSuite()}
}

func (p *parser) parseWithItem() {
	p.parseTest()
	if p.acceptKeyword("as") {
		target := p.parseOrExprOrStar()
		p.checkTarget(target)
	}
}

func (p *parser) parseDef() Stmt {
	line := p.next().line
	p.expectIdent()
	if p.isOp("[") {
		p.skipBracketed()
	}
	p.expectOp("(")
	p.parseParams(")", true)
	p.expectOp(")")
	if p.acceptOp("->") {
		p.parseTest()
	}
	p.expectOp(":")

	return &BlockStmt{Line: line, Keyword: "def", Body: p.parseSuite()}
}

func (p *parser) parseClass() Stmt {
	line := p.next().line
	p.expectIdent()
	if p.isOp("[") {
		p.skipBracketed()
	}
	if p.isOp("(") {
		p.parseArguments(&Call{Line: line})
	}
	p.expectOp(":")

	return &BlockStmt{Line: line, Keyword: "class", Body: p.parseSuite()}
}

func (p *parser) parseAsync() Stmt {
	p.next()
	switch {
	case p.isKeyword("def"):
		return p.parseDef()
	case p.isKeyword("for"):
		return p.parseFor()
	case p.isKeyword("with"):
		return p.parseWith()
	}
	p.fail("invalid syntax")
	return nil
}

func (p *parser) parseDecorated() Stmt {
	for p.acceptOp("@") {
		p.parseNamedExpr()
		p.expectNewline()
	}

	switch {
	case p.isKeyword("def"):
		return p.parseDef()
	case p.isKeyword("class"):
		return p.parseClass()
	case p.isKeyword("async"):
		return p.parseAsync()
	}
	p.fail("invalid syntax")
	return nil
}

// parseParams consumes a def or lambda parameter list up to closer
func (p *parser) parseParams(closer string, annotations bool) {
	for !p.isOp(closer) {
		switch {
		case p.acceptOp("/"):
		case p.acceptOp("*"):
			if p.peek().kind == tokName && !reserved[p.peek().text] {
				p.next()
				if annotations && p.acceptOp(":") {
					p.parseTestOrStar(true)
				}
			}
		case p.acceptOp("**"):
			p.expectIdent()
			if annotations && p.acceptOp(":") {
				p.parseTest()
			}
		default:
			p.expectIdent()
			if annotations && p.acceptOp(":") {
				p.parseTest()
			}
			if p.acceptOp("=") {
				p.parseTest()
			}
		}

		if !p.acceptOp(",") {
			return
		}
	}
}

// skipBracketed consumes a balanced [...] group such as type parameters
func (p *parser) skipBracketed() {
	depth := 0
	for {
		t := p.next()
		if t.kind == tokEOF {
			p.fail("unexpected EOF")
		}
		if t.kind != tokOp {
			continue
		}
		switch t.text {
		case "[", "(", "{":
			depth++
		case "]", ")", "}":
			depth--
		}
		if depth == 0 {
			return
		}
	}
}

func (p *parser) parseSimpleStatement() []Stmt {
	var stmts []Stmt
	for {
		stmts = append(stmts, p.parseSmallStatement())
		if !p.acceptOp(";") || p.peek().kind == tokNewline {
			break
		}
	}
	p.expectNewline()
	return stmts
}

func (p *parser) atStatementEnd() bool {
	return p.peek().kind == tokNewline || p.isOp(";")
}

func (p *parser) parseSmallStatement() Stmt {
	t := p.peek()
	if t.kind == tokName {
		switch t.text {
		case "pass", "break", "continue":
			p.next()
		case "return":
			p.next()
			if !p.atStatementEnd() {
				p.parseTestList(true)
			}
		case "raise":
			p.next()
			if !p.atStatementEnd() {
				p.parseTest()
				if p.acceptKeyword("from") {
					p.parseTest()
				}
			}
		case "global", "nonlocal":
			p.next()
			p.expectIdent()
			for p.acceptOp(",") {
				p.expectIdent()
			}
		case "del":
			p.next()
			p.checkTarget(p.parseExprList())
		case "assert":
			p.next()
			p.parseTest()
			if p.acceptOp(",") {
				p.parseTest()
			}
		case "import":
			p.next()
			p.parseImportNames()
		case "from":
			p.parseFromImport()
		default:
			return p.parseExprStatement()
		}
		return &SimpleStmt{Line: t.line, Keyword: t.text}
	}

	return p.parseExprStatement()
}

func (p *parser) parseDottedName() {
	p.expectIdent()
	for p.acceptOp(".") {
		p.expectIdent()
	}
}

func (p *parser) parseImportNames() {
	for {
		p.parseDottedName()
		if p.acceptKeyword("as") {
			p.expectIdent()
		}
		if !p.acceptOp(",") {
			return
		}
	}
}

func (p *parser) parseFromImport() {
	p.next()

	dots := 0
	for p.isOp(".") || p.isOp("...") {
		dots++
		p.next()
	}
	if !p.isKeyword("import") || dots == 0 {
		p.parseDottedName()
	}
	p.expectKeyword("import")

	if p.acceptOp("*") {
		return
	}

	parenthesized := p.acceptOp("(")
	for {
		p.expectIdent()
		if p.acceptKeyword("as") {
			p.expectIdent()
		}
		if !p.acceptOp(",") {
			break
		}
		if parenthesized && p.isOp(")") {
			break
		}
	}
	if parenthesized {
		p.expectOp(")")
	}
}

func (p *parser) parseExprStatement() Stmt {
	line := p.peek().line

	var first Expr
	if p.isKeyword("yield") {
		first = p.parseYieldExpr()
	} else {
		first = p.parseTestList(true)
	}

	switch t := p.peek(); {
	case t.kind == tokOp && t.text == "=":
		targets := []Expr{first}
		var value Expr
		for p.acceptOp("=") {
			if p.isKeyword("yield") {
				value = p.parseYieldExpr()
			} else {
				value = p.parseTestList(true)
			}
			targets = append(targets, value)
		}
		targets = targets[:len(targets)-1]
		for _, target := range targets {
			p.checkTarget(target)
		}
		return &AssignStmt{Line: line, Targets: targets, Value: value}

	case t.kind == tokOp && augmentedOps[t.text]:
		p.checkSingleTarget(first)
		p.next()
		if p.isKeyword("yield") {
			p.parseYieldExpr()
		} else {
			p.parseTestList(true)
		}
		return &SimpleStmt{Line: line, Keyword: "augassign"}

	case t.kind == tokOp && t.text == ":":
		p.checkSingleTarget(first)
		p.next()
		p.parseTest()
		if p.acceptOp("=") {
			if p.isKeyword("yield") {
				p.parseYieldExpr()
			} else {
				p.parseTestList(true)
			}
		}
		return &SimpleStmt{Line: line, Keyword: "annassign"}
	}

	if _, ok := first.(*Starred); ok {
		p.fail("can't use starred expression here")
	}
	return &ExprStmt{Line: line, X: first}
}

// checkTarget rejects assignment targets that are not names, attributes,
// subscripts, or tuples/lists/starred forms of those.
func (p *parser) checkTarget(e Expr) {
	switch x := e.(type) {
	case *Name, *Attribute:
		return
	case *Opaque:
		if x.Kind == "subscript" {
			return
		}
	case *Starred:
		p.checkTarget(x.X)
		return
	case *Tuple:
		for _, elt := range x.Elts {
			p.checkTarget(elt)
		}
		return
	case *List:
		for _, elt := range x.Elts {
			p.checkTarget(elt)
		}
		return
	}
	p.fail("cannot assign to expression")
}

func (p *parser) checkSingleTarget(e Expr) {
	switch x := e.(type) {
	case *Name, *Attribute:
		return
	case *Opaque:
		if x.Kind == "subscript" {
			return
		}
	}
	p.fail("illegal target for assignment")
}

// expressions

// parseTestList parses one or more comma-separated expressions; more than
// one, or a trailing comma, yields a Tuple.
func (p *parser) parseTestList(allowStar bool) Expr {
	line := p.peek().line
	first := p.parseTestOrStar(allowStar)
	if !p.isOp(",") {
		return first
	}

	elts := []Expr{first}
	for p.acceptOp(",") {
		if !p.startsExpr() {
			break
		}
		elts = append(elts, p.parseTestOrStar(allowStar))
	}
	return &Tuple{Line: line, Elts: elts}
}

// parseExprList parses targets of for loops, comprehensions and del
func (p *parser) parseExprList() Expr {
	line := p.peek().line
	first := p.parseOrExprOrStar()
	if !p.isOp(",") {
		return first
	}

	elts := []Expr{first}
	for p.acceptOp(",") {
		if !p.startsExpr() {
			break
		}
		elts = append(elts, p.parseOrExprOrStar())
	}
	return &Tuple{Line: line, Elts: elts}
}

func (p *parser) parseTestOrStar(allowStar bool) Expr {
	if allowStar && p.isOp("*") {
		line := p.next().line
		return &Starred{Line: line, X: p.parseOrExpr()}
	}
	return p.parseTest()
}

func (p *parser) parseOrExprOrStar() Expr {
	if p.isOp("*") {
		line := p.next().line
		return &Starred{Line: line, X: p.parseOrExpr()}
	}
	return p.parseOrExpr()
}

func (p *parser) parseNamedOrStar() Expr {
	if p.isOp("*") {
		line := p.next().line
		return &Starred{Line: line, X: p.parseOrExpr()}
	}
	return p.parseNamedExpr()
}

func (p *parser) parseNamedExpr() Expr {
	t := p.peek()
	if t.kind == tokName && !reserved[t.text] {
		if next := p.peekAt(1); next.kind == tokOp && next.text == ":=" {
			p.next()
			p.next()
			p.parseTest()
			return &Opaque{Line: t.line, Kind: "namedexpr"}
		}
	}
	return p.parseTest()
}

func (p *parser) parseTest() Expr {
	p.enter()
	defer p.leave()

	if p.isKeyword("lambda") {
		line := p.next().line
		p.parseParams(":", false)
		p.expectOp(":")
		p.parseTest()
		return &Opaque{Line: line, Kind: "lambda"}
	}

	x := p.parseOrTest()
	if p.isKeyword("if") {
		line := p.next().line
		p.parseOrTest()
		p.expectKeyword("else")
		p.parseTest()
		return &Opaque{Line: line, Kind: "ifexp"}
	}
	return x
}

func (p *parser) parseOrTest() Expr {
	x := p.parseAndTest()
	for p.isKeyword("or") {
		line := p.next().line
		p.parseAndTest()
		x = &Opaque{Line: line, Kind: "boolop"}
	}
	return x
}

func (p *parser) parseAndTest() Expr {
	x := p.parseNotTest()
	for p.isKeyword("and") {
		line := p.next().line
		p.parseNotTest()
		x = &Opaque{Line: line, Kind: "boolop"}
	}
	return x
}

func (p *parser) parseNotTest() Expr {
	if p.isKeyword("not") {
		p.enter()
		defer p.leave()
		line := p.next().line
		return &UnaryOp{Line: line, Op: "not", X: p.parseNotTest()}
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() Expr {
	x := p.parseOrExpr()
	for {
		t := p.peek()
		switch {
		case t.kind == tokOp && comparisonOps[t.text]:
			p.next()
		case p.isKeyword("in"):
			p.next()
		case p.isKeyword("is"):
			p.next()
			p.acceptKeyword("not")
		case p.isKeyword("not") && p.peekAt(1).kind == tokName && p.peekAt(1).text == "in":
			p.next()
			p.next()
		default:
			return x
		}
		p.parseOrExpr()
		x = &Opaque{Line: t.line, Kind: "compare"}
	}
}

func (p *parser) parseOrExpr() Expr {
	return p.parseBinary(0)
}

func (p *parser) parseBinary(level int) Expr {
	if level == len(binaryLevels) {
		return p.parseFactor()
	}

	x := p.parseBinary(level + 1)
	for {
		t := p.peek()
		if t.kind != tokOp || !containsOp(binaryLevels[level], t.text) {
			return x
		}
		p.next()
		p.parseBinary(level + 1)
		x = &Opaque{Line: t.line, Kind: "binop"}
	}
}

func containsOp(ops []string, op string) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

func (p *parser) parseFactor() Expr {
	t := p.peek()
	if t.kind == tokOp && (t.text == "-" || t.text == "+" || t.text == "~") {
		p.enter()
		defer p.leave()
		p.next()
		return &UnaryOp{Line: t.line, Op: t.text, X: p.parseFactor()}
	}
	return p.parsePower()
}

func (p *parser) parsePower() Expr {
	var x Expr
	if p.isKeyword("await") {
		line := p.next().line
		p.parsePrimary()
		x = &Opaque{Line: line, Kind: "await"}
	} else {
		x = p.parsePrimary()
	}

	if p.isOp("**") {
		line := p.next().line
		p.parseFactor()
		return &Opaque{Line: line, Kind: "binop"}
	}
	return x
}

func (p *parser) parsePrimary() Expr {
	x := p.parseAtom()
	for {
		switch {
		case p.isOp("("):
			call := &Call{Line: x.Pos(), Func: x}
			p.parseArguments(call)
			x = call
		case p.isOp("["):
			line := p.next().line
			p.parseSubscript()
			x = &Opaque{Line: line, Kind: "subscript"}
		case p.isOp("."):
			line := p.next().line
			x = &Attribute{Line: line, X: x, Attr: p.expectIdent()}
		default:
			return x
		}
	}
}

// parseArguments consumes "(" arglist ")" into call
func (p *parser) parseArguments(call *Call) {
	p.expectOp("(")

	sawKeyword := false
	sawDoubleStar := false

	for !p.isOp(")") {
		t := p.peek()
		switch {
		case t.kind == tokOp && t.text == "**":
			p.next()
			call.Keywords = append(call.Keywords, &Keyword{Line: t.line, Value: p.parseTest()})
			sawDoubleStar = true

		case t.kind == tokOp && t.text == "*":
			if sawDoubleStar {
				p.fail("iterable argument unpacking follows keyword argument unpacking")
			}
			p.next()
			call.Args = append(call.Args, &Starred{Line: t.line, X: p.parseTest()})

		case t.kind == tokName && p.peekAt(1).kind == tokOp && p.peekAt(1).text == "=":
			if reserved[t.text] {
				p.fail("cannot assign to %s", t.text)
			}
			p.next()
			p.next()
			call.Keywords = append(call.Keywords, &Keyword{Line: t.line, Arg: t.text, Value: p.parseTest()})
			sawKeyword = true

		default:
			if sawKeyword || sawDoubleStar {
				p.fail("positional argument follows keyword argument")
			}
			arg := p.parseNamedExpr()
			if p.isKeyword("for") || p.isKeyword("async") {
				p.parseCompFor()
				if len(call.Args) > 0 || !p.isOp(")") {
					p.fail("generator expression must be parenthesized")
				}
				arg = &Opaque{Line: t.line, Kind: "genexp"}
			}
			call.Args = append(call.Args, arg)
		}

		if !p.acceptOp(",") {
			break
		}
	}

	p.expectOp(")")
}

func (p *parser) parseSubscript() {
	for {
		p.parseSliceItem()
		if !p.acceptOp(",") || p.isOp("]") {
			break
		}
	}
	p.expectOp("]")
}

func (p *parser) parseSliceItem() {
	if p.isOp("*") {
		p.next()
		p.parseOrExpr()
		return
	}
	if !p.isOp(":") {
		p.parseNamedExpr()
	}
	if p.acceptOp(":") {
		if p.startsExpr() {
			p.parseTest()
		}
		if p.acceptOp(":") && p.startsExpr() {
			p.parseTest()
		}
	}
}

func (p *parser) parseCompFor() {
	for {
		p.acceptKeyword("async")
		p.expectKeyword("for")
		p.checkTarget(p.parseExprList())
		p.expectKeyword("in")
		p.parseOrTest()
		for p.acceptKeyword("if") {
			p.parseOrTest()
		}
		if !p.isKeyword("for") && !p.isKeyword("async") {
			return
		}
	}
}

func (p *parser) parseYieldExpr() Expr {
	line := p.expectKeyword("yield").line
	if p.acceptKeyword("from") {
		p.parseTest()
	} else if p.startsExpr() {
		p.parseTestList(true)
	}
	return &Opaque{Line: line, Kind: "yield"}
}

func (p *parser) parseAtom() Expr {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.next()
		return &Constant{Line: t.line, Kind: numberKind(t.text), Text: t.text}

	case tokString:
		return p.parseStrings()

	case tokName:
		switch t.text {
		case "True":
			p.next()
			return &Constant{Line: t.line, Kind: ConstTrue, Text: t.text}
		case "False":
			p.next()
			return &Constant{Line: t.line, Kind: ConstFalse, Text: t.text}
		case "None":
			p.next()
			return &Constant{Line: t.line, Kind: ConstNone, Text: t.text}
		}
		if reserved[t.text] {
			p.fail("invalid syntax")
		}
		p.next()
		return &Name{Line: t.line, ID: t.text}

	case tokOp:
		switch t.text {
		case "(":
			return p.parseParen()
		case "[":
			return p.parseListDisplay()
		case "{":
			return p.parseBraceDisplay()
		case "...":
			p.next()
			return &Constant{Line: t.line, Kind: ConstEllipsis, Text: t.text}
		}
	}

	p.fail("invalid syntax")
	return nil
}

func numberKind(text string) ConstKind {
	lower := strings.ToLower(text)
	switch {
	case strings.HasSuffix(lower, "j"):
		return ConstImaginary
	case strings.HasPrefix(lower, "0x"), strings.HasPrefix(lower, "0o"), strings.HasPrefix(lower, "0b"):
		return ConstInt
	case strings.ContainsAny(lower, ".e"):
		return ConstFloat
	}
	return ConstInt
}

// parseStrings joins adjacent string literals
func (p *parser) parseStrings() Expr {
	first := p.peek()

	var text strings.Builder
	format := false
	for p.peek().kind == tokString {
		t := p.next()
		if t.bytes != first.bytes {
			p.fail("cannot mix bytes and nonbytes literals")
		}
		format = format || t.format
		text.WriteString(t.text)
	}

	if format {
		return &Opaque{Line: first.line, Kind: "fstring"}
	}
	kind := ConstString
	if first.bytes {
		kind = ConstBytes
	}
	return &Constant{Line: first.line, Kind: kind, Text: text.String()}
}

func (p *parser) parseParen() Expr {
	line := p.next().line
	if p.acceptOp(")") {
		return &Tuple{Line: line}
	}
	if p.isKeyword("yield") {
		x := p.parseYieldExpr()
		p.expectOp(")")
		return x
	}

	first := p.parseNamedOrStar()
	if p.isKeyword("for") || p.isKeyword("async") {
		p.parseCompFor()
		p.expectOp(")")
		return &Opaque{Line: line, Kind: "genexp"}
	}
	if p.acceptOp(")") {
		if _, ok := first.(*Starred); ok {
			p.fail("cannot use starred expression here")
		}
		return first
	}

	elts := []Expr{first}
	for p.acceptOp(",") {
		if p.isOp(")") {
			break
		}
		elts = append(elts, p.parseNamedOrStar())
	}
	p.expectOp(")")
	return &Tuple{Line: line, Elts: elts}
}

func (p *parser) parseListDisplay() Expr {
	line := p.next().line
	if p.acceptOp("]") {
		return &List{Line: line}
	}

	first := p.parseNamedOrStar()
	if p.isKeyword("for") || p.isKeyword("async") {
		p.parseCompFor()
		p.expectOp("]")
		return &Opaque{Line: line, Kind: "listcomp"}
	}

	elts := []Expr{first}
	for p.acceptOp(",") {
		if p.isOp("]") {
			break
		}
		elts = append(elts, p.parseNamedOrStar())
	}
	p.expectOp("]")
	return &List{Line: line, Elts: elts}
}

func (p *parser) parseBraceDisplay() Expr {
	line := p.next().line
	if p.acceptOp("}") {
		return &Dict{Line: line}
	}

	if p.acceptOp("**") {
		d := &Dict{Line: line, Keys: []Expr{nil}, Values: []Expr{p.parseOrExpr()}}
		return p.parseDictRest(d)
	}

	first := p.parseNamedOrStar()
	if _, starred := first.(*Starred); !starred && p.acceptOp(":") {
		value := p.parseTest()
		if p.isKeyword("for") || p.isKeyword("async") {
			p.parseCompFor()
			p.expectOp("}")
			return &Opaque{Line: line, Kind: "dictcomp"}
		}
		d := &Dict{Line: line, Keys: []Expr{first}, Values: []Expr{value}}
		return p.parseDictRest(d)
	}

	if p.isKeyword("for") || p.isKeyword("async") {
		p.parseCompFor()
		p.expectOp("}")
		return &Opaque{Line: line, Kind: "setcomp"}
	}

	elts := []Expr{first}
	for p.acceptOp(",") {
		if p.isOp("}") {
			break
		}
		elts = append(elts, p.parseNamedOrStar())
	}
	p.expectOp("}")
	return &Set{Line: line, Elts: elts}
}

func (p *parser) parseDictRest(d *Dict) Expr {
	for p.acceptOp(",") {
		if p.isOp("}") {
			break
		}
		if p.acceptOp("**") {
			d.Keys = append(d.Keys, nil)
			d.Values = append(d.Values, p.parseOrExpr())
			continue
		}
		key := p.parseTest()
		p.expectOp(":")
		d.Keys = append(d.Keys, key)
		d.Values = append(d.Values, p.parseTest())
	}
	p.expectOp("}")
	return d
}
