// Package syntax parses the statement and expression grammar used inside
// fenced python code blocks into a small typed tree.
//
// Only the node kinds needed to recognize call statements and evaluate
// literal arguments are kept as distinct types. Everything else collapses
// into Opaque expressions or SimpleStmt statements that still participate in
// the tree shape.
package syntax

// Node is any node of the tree
type Node interface {
	Pos() int // 1-based source line
}

// Stmt is a statement node
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node
type Expr interface {
	Node
	exprNode()
}

// Module is the root of a parsed code block
type Module struct {
	Body []Stmt
}

// ExprStmt is a bare expression used as a statement
type ExprStmt struct {
	Line int
	X    Expr
}

// AssignStmt is a plain "=" assignment; chained assignments have several targets
type AssignStmt struct {
	Line    int
	Targets []Expr
	Value   Expr
}

// SimpleStmt is any other single-line statement (pass, return, import, a += b, ...)
type SimpleStmt struct {
	Line    int
	Keyword string
}

// BlockStmt is a compound statement or a clause that owns a body.
// Body holds the nested statements in the order the tree stores them:
// for "if" the then-branch followed by the else-branch (an elif is a nested
// "if" block), for "try" the body, the "except" clauses, else and finally.
type BlockStmt struct {
	Line    int
	Keyword string
	Body    []Stmt
}

func (s *ExprStmt) Pos() int   { return s.Line }
func (s *AssignStmt) Pos() int { return s.Line }
func (s *SimpleStmt) Pos() int { return s.Line }
func (s *BlockStmt) Pos() int  { return s.Line }

func (*ExprStmt) stmtNode()   {}
func (*AssignStmt) stmtNode() {}
func (*SimpleStmt) stmtNode() {}
func (*BlockStmt) stmtNode()  {}

// ConstKind classifies a Constant
type ConstKind int

const (
	ConstInt ConstKind = iota
	ConstFloat
	ConstImaginary
	ConstString
	ConstBytes
	ConstTrue
	ConstFalse
	ConstNone
	ConstEllipsis
)

// Constant is a literal token: number, string, bytes, True, False, None or ...
type Constant struct {
	Line int
	Kind ConstKind
	Text string // number text as written, or the decoded string/bytes contents
}

// Name is an unqualified identifier reference
type Name struct {
	Line int
	ID   string
}

// Attribute is X.Attr
type Attribute struct {
	Line int
	X    Expr
	Attr string
}

// Keyword is a keyword argument of a call; Arg is empty for **mapping
type Keyword struct {
	Line  int
	Arg   string
	Value Expr
}

// Call is a function invocation
type Call struct {
	Line     int
	Func     Expr
	Args     []Expr
	Keywords []*Keyword
}

// List is a [a, b] display
type List struct {
	Line int
	Elts []Expr
}

// Tuple is an (a, b) display or a bare a, b
type Tuple struct {
	Line int
	Elts []Expr
}

// Set is a {a, b} display
type Set struct {
	Line int
	Elts []Expr
}

// Dict is a {k: v} display; a nil key marks a **mapping entry
type Dict struct {
	Line   int
	Keys   []Expr
	Values []Expr
}

// UnaryOp is a prefix +, -, ~ or not
type UnaryOp struct {
	Line int
	Op   string
	X    Expr
}

// Starred is *X
type Starred struct {
	Line int
	X    Expr
}

// Opaque is any expression that is neither a call target nor a literal
// (operators, comparisons, subscripts, lambdas, comprehensions, f-strings, ...)
type Opaque struct {
	Line int
	Kind string
}

func (e *Constant) Pos() int  { return e.Line }
func (e *Name) Pos() int      { return e.Line }
func (e *Attribute) Pos() int { return e.Line }
func (e *Call) Pos() int      { return e.Line }
func (e *List) Pos() int      { return e.Line }
func (e *Tuple) Pos() int     { return e.Line }
func (e *Set) Pos() int       { return e.Line }
func (e *Dict) Pos() int      { return e.Line }
func (e *UnaryOp) Pos() int   { return e.Line }
func (e *Starred) Pos() int   { return e.Line }
func (e *Opaque) Pos() int    { return e.Line }

func (*Constant) exprNode()  {}
func (*Name) exprNode()      {}
func (*Attribute) exprNode() {}
func (*Call) exprNode()      {}
func (*List) exprNode()      {}
func (*Tuple) exprNode()     {}
func (*Set) exprNode()       {}
func (*Dict) exprNode()      {}
func (*UnaryOp) exprNode()   {}
func (*Starred) exprNode()   {}
func (*Opaque) exprNode()    {}

// Walk visits every statement of the module breadth-first: all top-level
// statements, then the statements one level down, and so on. Clause
// blocks (except, case) count as a level of their own.
func Walk(m *Module, visit func(Stmt)) {
	if m == nil {
		return
	}

	queue := append([]Stmt(nil), m.Body...)
	for len(queue) > 0 {
		stmt := queue[0]
		queue = queue[1:]

		visit(stmt)

		if block, ok := stmt.(*BlockStmt); ok {
			queue = append(queue, block.Body...)
		}
	}
}
