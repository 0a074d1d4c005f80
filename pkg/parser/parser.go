// Package parser implements a recursive descent parser for C. It resolves
// declarations through a scope stack and types every expression while it
// builds the AST.
package parser

import (
	"fmt"

	"github.com/raymyers/ccx64/pkg/ast"
	"github.com/raymyers/ccx64/pkg/ctypes"
	"github.com/raymyers/ccx64/pkg/diag"
	"github.com/raymyers/ccx64/pkg/lexer"
)

// Parser parses a preprocessed token slice into an ast.Program
type Parser struct {
	toks []lexer.Token
	pos  int
	rep  *diag.Reporter

	scopes  []*scope
	globals []*ast.Obj
	byName  map[string]*ast.Obj // file-scope objects by name

	// Per-function state, reset by function.
	fn        *ast.Obj
	locals    []*ast.Obj
	gotos     []*ast.Goto
	labels    []*ast.Label
	brkLabel  string
	contLabel string
	sw        *ast.Switch
	funcName  *ast.Obj // __func__, created on first use

	unique int
}

// New creates a Parser for toks, which must end with an EOF token and have
// had ConvertPPTokens applied.
func New(toks []lexer.Token, rep *diag.Reporter) *Parser {
	p := &Parser{toks: toks, rep: rep, byName: make(map[string]*ast.Obj)}
	p.enterScope()
	return p
}

// Parse parses a translation unit.
func Parse(toks []lexer.Token, rep *diag.Reporter) (prog *ast.Program, err error) {
	defer diag.Bailout(&err)
	return New(toks, rep).Program(), nil
}

// Program parses the whole token slice. Errors are raised as *diag.Error
// panics; use Parse to receive them as errors.
func (p *Parser) Program() *ast.Program {
	for !p.atEOF() {
		attr := &varAttr{}
		basety := p.declspec(attr)

		if attr.isTypedef {
			p.parseTypedef(basety)
			continue
		}
		if p.isFunction() {
			p.function(basety, attr)
			continue
		}
		p.globalVariable(basety, attr)
	}
	return &ast.Program{Globals: p.globals}
}

// --- token helpers ---

func (p *Parser) tok() *lexer.Token {
	return &p.toks[p.pos]
}

func (p *Parser) peek(n int) *lexer.Token {
	if p.pos+n >= len(p.toks) {
		return &p.toks[len(p.toks)-1]
	}
	return &p.toks[p.pos+n]
}

func (p *Parser) next() *lexer.Token {
	t := p.tok()
	if t.Kind != lexer.EOF {
		p.pos++
	}
	return t
}

func (p *Parser) atEOF() bool {
	return p.tok().Kind == lexer.EOF
}

func (p *Parser) is(s string) bool {
	return p.tok().Is(s)
}

func (p *Parser) consume(s string) bool {
	if p.is(s) {
		p.pos++
		return true
	}
	return false
}

func (p *Parser) skip(s string) *lexer.Token {
	t := p.tok()
	if !t.Is(s) {
		p.errorf(t, "expected '%s'", s)
	}
	p.pos++
	return t
}

func (p *Parser) ident() *lexer.Token {
	t := p.tok()
	if t.Kind != lexer.Ident {
		p.errorf(t, "expected an identifier")
	}
	p.pos++
	return t
}

// isEnd reports whether the next tokens close a brace list: "}" or ",}".
func (p *Parser) isEnd() bool {
	return p.is("}") || (p.is(",") && p.peek(1).Is("}"))
}

func (p *Parser) consumeEnd() bool {
	if p.is("}") {
		p.pos++
		return true
	}
	if p.is(",") && p.peek(1).Is("}") {
		p.pos += 2
		return true
	}
	return false
}

func (p *Parser) errorf(tok *lexer.Token, format string, args ...any) {
	panic(tok.Errorf(format, args...))
}

func (p *Parser) warnf(level diag.Level, tok *lexer.Token, format string, args ...any) {
	p.rep.Warn(level, tok.Errorf(format, args...))
}

func (p *Parser) uniqueName() string {
	name := fmt.Sprintf(".L..%d", p.unique)
	p.unique++
	return name
}

// --- objects ---

func (p *Parser) newLocal(name string, ty ctypes.Type, tok *lexer.Token) *ast.Obj {
	v := &ast.Obj{Name: name, Ty: ty, Tok: tok, Align: ty.Align(), IsLocal: true}
	if name != "" {
		p.pushScope(name).obj = v
	}
	p.locals = append(p.locals, v)
	return v
}

// newGlobal creates a file-scope object or merges a redeclaration into the
// existing one.
func (p *Parser) newGlobal(name string, ty ctypes.Type, tok *lexer.Token) *ast.Obj {
	if old := p.byName[name]; old != nil {
		if old.IsFunction != ctypes.IsFunction(ty) {
			p.errorf(tok, "redefinition of '%s' as different kind of symbol", name)
		}
		if !redeclCompatible(old.Ty, ty) {
			p.errorf(tok, "conflicting types for '%s'", name)
		}
		if arr, ok := ty.(ctypes.Tarray); ok && arr.Len >= 0 {
			old.Ty = ty
		}
		p.pushScope(name).obj = old
		return old
	}
	v := &ast.Obj{Name: name, Ty: ty, Tok: tok, Align: ty.Align(), IsFunction: ctypes.IsFunction(ty)}
	p.pushScope(name).obj = v
	p.globals = append(p.globals, v)
	p.byName[name] = v
	return v
}

// redeclCompatible accepts compatible types, and a prototype after an
// unprototyped declaration such as int f().
func redeclCompatible(old, ty ctypes.Type) bool {
	if ctypes.Compatible(old, ty) {
		return true
	}
	f1, ok1 := old.(*ctypes.Tfunction)
	f2, ok2 := ty.(*ctypes.Tfunction)
	if !ok1 || !ok2 || !ctypes.Equal(f1.Return, f2.Return) {
		return false
	}
	unprototyped := func(f *ctypes.Tfunction) bool { return f.VarArg && len(f.Params) == 0 }
	return unprototyped(f1) || unprototyped(f2)
}

// newAnonGlobal creates an unnamed static global such as a string literal.
func (p *Parser) newAnonGlobal(ty ctypes.Type, tok *lexer.Token) *ast.Obj {
	v := &ast.Obj{Name: p.uniqueName(), Ty: ty, Tok: tok, Align: ty.Align(), IsDefinition: true, IsStatic: true}
	p.globals = append(p.globals, v)
	return v
}

func (p *Parser) newStringLiteral(data []byte, tok *lexer.Token) *ast.Obj {
	v := p.newAnonGlobal(ctypes.Array(ctypes.Char(), int64(len(data))), tok)
	v.InitData = data
	return v
}

// --- node constructors ---

func at(tok *lexer.Token) ast.ExprInfo {
	return ast.ExprInfo{Tok: tok}
}

func typed(tok *lexer.Token, ty ctypes.Type) ast.ExprInfo {
	return ast.ExprInfo{Tok: tok, Ty: ty}
}

func newNum(v int64, tok *lexer.Token) *ast.Num {
	return &ast.Num{ExprInfo: typed(tok, ctypes.Int()), Val: v}
}

func newLong(v int64, tok *lexer.Token) *ast.Num {
	return &ast.Num{ExprInfo: typed(tok, ctypes.Long()), Val: v}
}

func newULong(v int64, tok *lexer.Token) *ast.Num {
	return &ast.Num{ExprInfo: typed(tok, ctypes.ULong()), Val: v}
}

func newVar(v *ast.Obj, tok *lexer.Token) *ast.Var {
	return &ast.Var{ExprInfo: typed(tok, v.Ty), Obj: v}
}

func newBinary(op ast.BinaryOp, lhs, rhs ast.Expr, tok *lexer.Token) *ast.Binary {
	return &ast.Binary{ExprInfo: at(tok), Op: op, LHS: lhs, RHS: rhs}
}

func newCast(e ast.Expr, ty ctypes.Type) ast.Expr {
	AddType(e)
	return &ast.Cast{ExprInfo: typed(e.Pos(), ty), X: e}
}
