// Package ast defines the typed abstract syntax tree produced by the parser
// and consumed by the code generator.
package ast

import (
	"github.com/raymyers/ccx64/pkg/ctypes"
	"github.com/raymyers/ccx64/pkg/lexer"
)

// Node is the base interface for all AST nodes
type Node interface {
	implNode()
	Pos() *lexer.Token
}

// Expr is the interface for expression nodes. Every expression carries a
// type once AddType has run.
type Expr interface {
	Node
	implExpr()
	Type() ctypes.Type
	SetType(ctypes.Type)
}

// Stmt is the interface for statement nodes
type Stmt interface {
	Node
	implStmt()
}

// ExprInfo is embedded in every expression variant: the token the
// expression starts at and its type.
type ExprInfo struct {
	Tok *lexer.Token
	Ty  ctypes.Type
}

func (e *ExprInfo) Pos() *lexer.Token     { return e.Tok }
func (e *ExprInfo) Type() ctypes.Type     { return e.Ty }
func (e *ExprInfo) SetType(t ctypes.Type) { e.Ty = t }
func (*ExprInfo) implNode()               {}
func (*ExprInfo) implExpr()               {}

// StmtInfo is embedded in every statement variant.
type StmtInfo struct {
	Tok *lexer.Token
}

func (s *StmtInfo) Pos() *lexer.Token { return s.Tok }
func (*StmtInfo) implNode()           {}
func (*StmtInfo) implStmt()           {}

// BinaryOp represents binary operators
type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	Mod
	BitAnd
	BitOr
	BitXor
	Shl
	Shr
	Eq
	Ne
	Lt
	Le
	LogAnd
	LogOr
)

func (op BinaryOp) String() string {
	names := []string{"+", "-", "*", "/", "%", "&", "|", "^", "<<", ">>", "==", "!=", "<", "<=", "&&", "||"}
	if int(op) < len(names) {
		return names[op]
	}
	return "?"
}

// IsComparison reports whether op yields an int truth value.
func (op BinaryOp) IsComparison() bool {
	return op == Eq || op == Ne || op == Lt || op == Le
}

// UnaryOp represents unary operators
type UnaryOp int

const (
	Neg    UnaryOp = iota // -
	Not                   // !
	BitNot                // ~
)

func (op UnaryOp) String() string {
	names := []string{"-", "!", "~"}
	if int(op) < len(names) {
		return names[op]
	}
	return "?"
}

// --- Expressions ---

// Num is an integer or floating constant.
type Num struct {
	ExprInfo
	Val  int64
	FVal float64
}

// Var references a variable or function.
type Var struct {
	ExprInfo
	Obj *Obj
}

// Binary is an arithmetic, bitwise, comparison or logical operation.
type Binary struct {
	ExprInfo
	Op  BinaryOp
	LHS Expr
	RHS Expr
}

// Unary is -x, !x or ~x.
type Unary struct {
	ExprInfo
	Op UnaryOp
	X  Expr
}

// Assign stores RHS into the lvalue LHS.
type Assign struct {
	ExprInfo
	LHS Expr
	RHS Expr
}

// Comma evaluates LHS, discards it and yields RHS.
type Comma struct {
	ExprInfo
	LHS Expr
	RHS Expr
}

// Cond is the ?: operator.
type Cond struct {
	ExprInfo
	Cond Expr
	Then Expr
	Else Expr
}

// Addr is &x.
type Addr struct {
	ExprInfo
	X Expr
}

// Deref is *x.
type Deref struct {
	ExprInfo
	X Expr
}

// Member is x.name; x->name is parsed as (*x).name.
type Member struct {
	ExprInfo
	X   Expr
	Mem *ctypes.Member
}

// Cast converts X to the node type.
type Cast struct {
	ExprInfo
	X Expr
}

// Call is a function call. RetBuffer is the caller-allocated temporary
// receiving a struct returned in memory.
type Call struct {
	ExprInfo
	Func      Expr
	FuncType  *ctypes.Tfunction
	Args      []Expr
	RetBuffer *Obj
}

// StmtExpr is a GNU statement expression ({ ... }); its value is that of
// the last expression statement.
type StmtExpr struct {
	ExprInfo
	Body []Stmt
}

// MemZero clears a local variable, used before partial initialisation.
type MemZero struct {
	ExprInfo
	Var *Obj
}

// --- Statements ---

// Return returns from the function; X is nil for a bare return.
type Return struct {
	StmtInfo
	X Expr
}

// If is an if statement; Else may be nil.
type If struct {
	StmtInfo
	Cond Expr
	Then Stmt
	Else Stmt
}

// For is a for or while loop. Init, Cond and Inc may be nil.
type For struct {
	StmtInfo
	Init          Stmt
	Cond          Expr
	Inc           Expr
	Body          Stmt
	BreakLabel    string
	ContinueLabel string
}

// Do is a do-while loop.
type Do struct {
	StmtInfo
	Body          Stmt
	Cond          Expr
	BreakLabel    string
	ContinueLabel string
}

// Switch dispatches on Cond by comparing against each case in order.
type Switch struct {
	StmtInfo
	Cond       Expr
	Body       Stmt
	Cases      []*Case
	Default    *Case
	BreakLabel string
}

// Case is a case or default label inside a switch.
type Case struct {
	StmtInfo
	Val       int64
	IsDefault bool
	Label     string
	Body      Stmt
}

// Block is a compound statement.
type Block struct {
	StmtInfo
	Body []Stmt
}

// Goto jumps to a label; break and continue are gotos to loop labels.
type Goto struct {
	StmtInfo
	Name  string // label as written, "" for break/continue
	Label string // assembly label
}

// Label is a labeled statement.
type Label struct {
	StmtInfo
	Name  string
	Label string
	Body  Stmt
}

// ExprStmt evaluates X for its side effects.
type ExprStmt struct {
	StmtInfo
	X Expr
}

// --- Objects ---

// Reloc is a pointer inside a global initializer: the 8 bytes at Offset
// hold the address of Label plus Addend.
type Reloc struct {
	Offset int64
	Label  string
	Addend int64
}

// Obj is a variable or function.
type Obj struct {
	Name  string
	Ty    ctypes.Type
	Tok   *lexer.Token
	Align int64

	IsLocal bool
	Offset  int64 // locals: rbp-relative, assigned by frame layout
	Used    bool

	IsFunction   bool
	IsDefinition bool
	IsStatic     bool

	// Global variables
	InitData []byte
	Rels     []Reloc

	// Functions
	Params    []*Obj
	Body      *Block
	Locals    []*Obj
	VaArea    *Obj
	StackSize int64
}

// FuncType returns the function type of a function object.
func (o *Obj) FuncType() *ctypes.Tfunction {
	fn, _ := o.Ty.(*ctypes.Tfunction)
	return fn
}

// Program is a translation unit: globals and functions in definition
// order.
type Program struct {
	Globals []*Obj
}

// Functions returns the function definitions of the program.
func (p *Program) Functions() []*Obj {
	var fns []*Obj
	for _, o := range p.Globals {
		if o.IsFunction && o.IsDefinition {
			fns = append(fns, o)
		}
	}
	return fns
}
