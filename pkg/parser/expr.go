package parser

import (
	"github.com/raymyers/ccx64/pkg/ast"
	"github.com/raymyers/ccx64/pkg/ctypes"
	"github.com/raymyers/ccx64/pkg/lexer"
)

// expr = assign ("," expr)?
func (p *Parser) expr() ast.Expr {
	e := p.assign()
	if tok := p.tok(); p.consume(",") {
		return &ast.Comma{ExprInfo: at(tok), LHS: e, RHS: p.expr()}
	}
	return e
}

var compoundOps = map[string]ast.BinaryOp{
	"+=": ast.Add, "-=": ast.Sub, "*=": ast.Mul, "/=": ast.Div, "%=": ast.Mod,
	"&=": ast.BitAnd, "|=": ast.BitOr, "^=": ast.BitXor, "<<=": ast.Shl, ">>=": ast.Shr,
}

// assign = conditional (assign-op assign)?
func (p *Parser) assign() ast.Expr {
	e := p.conditional()
	tok := p.tok()
	if p.consume("=") {
		return &ast.Assign{ExprInfo: at(tok), LHS: e, RHS: p.assign()}
	}
	if op, ok := compoundOps[tok.Text]; ok && tok.Kind == lexer.Punct {
		p.pos++
		rhs := p.assign()
		switch op {
		case ast.Add:
			return p.toAssign(p.newAdd(e, rhs, tok))
		case ast.Sub:
			return p.toAssign(p.newSub(e, rhs, tok))
		}
		return p.toAssign(newBinary(op, e, rhs, tok))
	}
	return e
}

// toAssign rewrites "A op= B" into "tmp = &A, *tmp = *tmp op B" so that A
// is evaluated once.
func (p *Parser) toAssign(b *ast.Binary) ast.Expr {
	AddType(b.LHS)
	AddType(b.RHS)
	tok := b.Pos()
	checkLvalue(b.LHS)

	tmp := p.newLocal("", ctypes.Pointer(b.LHS.Type()), tok)
	store := &ast.Assign{ExprInfo: at(tok), LHS: newVar(tmp, tok), RHS: &ast.Addr{ExprInfo: at(tok), X: b.LHS}}
	deref := func() ast.Expr { return &ast.Deref{ExprInfo: at(tok), X: newVar(tmp, tok)} }
	update := &ast.Assign{ExprInfo: at(tok), LHS: deref(), RHS: newBinary(b.Op, deref(), b.RHS, tok)}
	return &ast.Comma{ExprInfo: at(tok), LHS: store, RHS: update}
}

// conditional = logor ("?" expr? ":" conditional)?
func (p *Parser) conditional() ast.Expr {
	cond := p.logor()
	tok := p.tok()
	if !p.consume("?") {
		return cond
	}

	if p.consume(":") {
		// a ?: b evaluates a once.
		AddType(cond)
		tmp := p.newLocal("", cond.Type(), tok)
		store := &ast.Assign{ExprInfo: at(tok), LHS: newVar(tmp, tok), RHS: cond}
		sel := &ast.Cond{ExprInfo: at(tok), Cond: newVar(tmp, tok), Then: newVar(tmp, tok), Else: p.conditional()}
		return &ast.Comma{ExprInfo: at(tok), LHS: store, RHS: sel}
	}

	then := p.expr()
	p.skip(":")
	return &ast.Cond{ExprInfo: at(tok), Cond: cond, Then: then, Else: p.conditional()}
}

// binaryLevel parses a left-associative chain of the operators in ops over
// operands parsed by next.
func (p *Parser) binaryLevel(next func() ast.Expr, ops map[string]ast.BinaryOp) ast.Expr {
	e := next()
	for {
		tok := p.tok()
		op, ok := ops[tok.Text]
		if !ok || tok.Kind != lexer.Punct {
			return e
		}
		p.pos++
		e = newBinary(op, e, next(), tok)
	}
}

var (
	logorOps  = map[string]ast.BinaryOp{"||": ast.LogOr}
	logandOps = map[string]ast.BinaryOp{"&&": ast.LogAnd}
	bitorOps  = map[string]ast.BinaryOp{"|": ast.BitOr}
	bitxorOps = map[string]ast.BinaryOp{"^": ast.BitXor}
	bitandOps = map[string]ast.BinaryOp{"&": ast.BitAnd}
	eqOps     = map[string]ast.BinaryOp{"==": ast.Eq, "!=": ast.Ne}
	shiftOps  = map[string]ast.BinaryOp{"<<": ast.Shl, ">>": ast.Shr}
	mulOps    = map[string]ast.BinaryOp{"*": ast.Mul, "/": ast.Div, "%": ast.Mod}
)

func (p *Parser) logor() ast.Expr  { return p.binaryLevel(p.logand, logorOps) }
func (p *Parser) logand() ast.Expr { return p.binaryLevel(p.bitor, logandOps) }
func (p *Parser) bitor() ast.Expr  { return p.binaryLevel(p.bitxor, bitorOps) }
func (p *Parser) bitxor() ast.Expr { return p.binaryLevel(p.bitand, bitxorOps) }
func (p *Parser) bitand() ast.Expr { return p.binaryLevel(p.equality, bitandOps) }
func (p *Parser) equality() ast.Expr {
	return p.binaryLevel(p.relational, eqOps)
}
func (p *Parser) shift() ast.Expr { return p.binaryLevel(p.add, shiftOps) }
func (p *Parser) mul() ast.Expr   { return p.binaryLevel(p.cast, mulOps) }

// relational = shift ("<" shift | "<=" shift | ">" shift | ">=" shift)*
//
// a > b is represented as b < a, and a >= b as b <= a.
func (p *Parser) relational() ast.Expr {
	e := p.shift()
	for {
		tok := p.tok()
		switch {
		case p.consume("<"):
			e = newBinary(ast.Lt, e, p.shift(), tok)
		case p.consume("<="):
			e = newBinary(ast.Le, e, p.shift(), tok)
		case p.consume(">"):
			e = newBinary(ast.Lt, p.shift(), e, tok)
		case p.consume(">="):
			e = newBinary(ast.Le, p.shift(), e, tok)
		default:
			return e
		}
	}
}

// add = mul ("+" mul | "-" mul)*
func (p *Parser) add() ast.Expr {
	e := p.mul()
	for {
		tok := p.tok()
		switch {
		case p.consume("+"):
			e = p.newAdd(e, p.mul(), tok)
		case p.consume("-"):
			e = p.newSub(e, p.mul(), tok)
		default:
			return e
		}
	}
}

// newAdd builds lhs + rhs. Pointer arithmetic scales the integer operand
// by the element size and puts the pointer on the left.
func (p *Parser) newAdd(lhs, rhs ast.Expr, tok *lexer.Token) *ast.Binary {
	AddType(lhs)
	AddType(rhs)
	lt, rt := lhs.Type(), rhs.Type()

	if ctypes.IsNumeric(lt) && ctypes.IsNumeric(rt) {
		return newBinary(ast.Add, lhs, rhs, tok)
	}
	if ctypes.Base(lt) != nil && ctypes.Base(rt) != nil {
		p.errorf(tok, "invalid operands")
	}
	if ctypes.Base(lt) == nil && ctypes.Base(rt) != nil {
		lhs, rhs = rhs, lhs
		lt, rt = rt, lt
	}
	if ctypes.Base(lt) == nil || !ctypes.IsInteger(rt) {
		p.errorf(tok, "invalid operands")
	}
	scaled := newBinary(ast.Mul, rhs, newLong(ctypes.Base(lt).Size(), tok), tok)
	return newBinary(ast.Add, lhs, scaled, tok)
}

// newSub builds lhs - rhs. The difference of two pointers is the number of
// elements between them.
func (p *Parser) newSub(lhs, rhs ast.Expr, tok *lexer.Token) *ast.Binary {
	AddType(lhs)
	AddType(rhs)
	lt, rt := lhs.Type(), rhs.Type()

	if ctypes.IsNumeric(lt) && ctypes.IsNumeric(rt) {
		return newBinary(ast.Sub, lhs, rhs, tok)
	}
	base := ctypes.Base(lt)
	if base != nil && ctypes.IsInteger(rt) {
		scaled := newBinary(ast.Mul, rhs, newLong(base.Size(), tok), tok)
		AddType(scaled)
		e := newBinary(ast.Sub, lhs, scaled, tok)
		e.Ty = ctypes.Pointer(base)
		return e
	}
	if base != nil && ctypes.Base(rt) != nil {
		diff := newBinary(ast.Sub, lhs, rhs, tok)
		diff.Ty = ctypes.Long()
		return newBinary(ast.Div, diff, newLong(base.Size(), tok), tok)
	}
	p.errorf(tok, "invalid operands")
	return nil
}

// cast = "(" type-name ")" cast | unary
func (p *Parser) cast() ast.Expr {
	if p.is("(") && p.isTypename(p.peek(1)) {
		start := p.pos
		tok := p.next()
		ty := p.typename()
		p.skip(")")

		// Compound literal
		if p.is("{") {
			p.pos = start
			return p.unary()
		}

		x := p.cast()
		AddType(x)
		if (ctypes.IsStruct(ty) || ctypes.IsStruct(x.Type())) && !ctypes.IsVoid(ty) {
			p.errorf(tok, "invalid cast to or from a struct type")
		}
		return &ast.Cast{ExprInfo: typed(tok, ty), X: x}
	}
	return p.unary()
}

// unary = ("+" | "-" | "*" | "&" | "!" | "~") cast
//
//	| ("++" | "--") unary
//	| "sizeof" unary | "sizeof" "(" type-name ")"
//	| "_Alignof" unary | "_Alignof" "(" type-name ")"
//	| postfix
func (p *Parser) unary() ast.Expr {
	tok := p.tok()
	switch {
	case p.consume("+"):
		return p.cast()
	case p.consume("-"):
		return &ast.Unary{ExprInfo: at(tok), Op: ast.Neg, X: p.cast()}
	case p.consume("&"):
		x := p.cast()
		AddType(x)
		return &ast.Addr{ExprInfo: at(tok), X: x}
	case p.consume("*"):
		x := p.cast()
		AddType(x)
		// *f is f for a function designator.
		if ctypes.IsFunction(x.Type()) {
			return x
		}
		return &ast.Deref{ExprInfo: at(tok), X: x}
	case p.consume("!"):
		return &ast.Unary{ExprInfo: at(tok), Op: ast.Not, X: p.cast()}
	case p.consume("~"):
		return &ast.Unary{ExprInfo: at(tok), Op: ast.BitNot, X: p.cast()}
	case p.consume("++"):
		return p.toAssign(p.newAdd(p.unary(), newNum(1, tok), tok))
	case p.consume("--"):
		return p.toAssign(p.newSub(p.unary(), newNum(1, tok), tok))
	case p.consume("sizeof"):
		ty := p.operandType()
		if s, ok := ty.(*ctypes.Tstruct); ok && !s.IsComplete() {
			p.errorf(tok, "invalid application of 'sizeof' to an incomplete type")
		}
		if ctypes.IsFunction(ty) {
			p.errorf(tok, "invalid application of 'sizeof' to a function type")
		}
		return newULong(ty.Size(), tok)
	case p.consume("_Alignof"):
		return newULong(p.operandType().Align(), tok)
	}
	return p.postfix()
}

// operandType parses the operand of sizeof or _Alignof and returns its type.
func (p *Parser) operandType() ctypes.Type {
	if p.is("(") && p.isTypename(p.peek(1)) {
		start := p.pos
		p.pos++
		ty := p.typename()
		p.skip(")")
		if !p.is("{") {
			return ty
		}
		p.pos = start
	}
	e := p.unary()
	AddType(e)
	return e.Type()
}

// postfix = "(" type-name ")" "{" initializer-list "}"
//
//	| primary ("[" expr "]" | "." ident | "->" ident | "++" | "--" | "(" args ")")*
func (p *Parser) postfix() ast.Expr {
	if p.is("(") && p.isTypename(p.peek(1)) {
		tok := p.next()
		ty := p.typename()
		p.skip(")")
		return p.compoundLiteral(ty, tok)
	}

	e := p.primary()
	for {
		tok := p.tok()
		switch {
		case p.consume("("):
			e = p.funcall(e, tok)
		case p.consume("["):
			idx := p.expr()
			p.skip("]")
			e = &ast.Deref{ExprInfo: at(tok), X: p.newAdd(e, idx, tok)}
		case p.consume("."):
			e = p.structRef(e, p.ident())
		case p.consume("->"):
			AddType(e)
			e = p.structRef(&ast.Deref{ExprInfo: at(tok), X: e}, p.ident())
		case p.consume("++"):
			e = p.newIncDec(e, tok, 1)
		case p.consume("--"):
			e = p.newIncDec(e, tok, -1)
		default:
			return e
		}
	}
}

// compoundLiteral parses the initializer of (T){...}. At file scope the
// literal is an anonymous static; inside a function it is a fresh local.
func (p *Parser) compoundLiteral(ty ctypes.Type, tok *lexer.Token) ast.Expr {
	if p.fn == nil {
		v := p.newAnonGlobal(ty, tok)
		p.globalInitializer(v)
		return newVar(v, tok)
	}
	v := p.newLocal("", ty, tok)
	init := p.localInitializer(v)
	return &ast.Comma{ExprInfo: at(tok), LHS: init, RHS: newVar(v, tok)}
}

// newIncDec turns x++ into (typeof x)((x += 1) - 1).
func (p *Parser) newIncDec(e ast.Expr, tok *lexer.Token, addend int64) ast.Expr {
	AddType(e)
	ty := e.Type()
	inc := p.toAssign(p.newAdd(e, newNum(addend, tok), tok))
	return castTo(p.newAdd(inc, newNum(-addend, tok), tok), ty)
}

// structRef builds x.name, walking through anonymous members.
func (p *Parser) structRef(x ast.Expr, name *lexer.Token) ast.Expr {
	AddType(x)
	st, ok := x.Type().(*ctypes.Tstruct)
	if !ok {
		p.errorf(x.Pos(), "not a struct nor a union")
	}
	if !st.IsComplete() {
		p.errorf(name, "incomplete definition of type '%s'", st)
	}
	path := lookupMember(st, name.Text)
	if path == nil {
		p.errorf(name, "no such member")
	}
	e := x
	for _, m := range path {
		e = &ast.Member{ExprInfo: typed(name, m.Type), X: e, Mem: m}
	}
	return e
}

// funcall parses the argument list after "(". Arguments are converted to
// the parameter types; extra arguments of a variadic call get the default
// argument promotions.
func (p *Parser) funcall(fn ast.Expr, tok *lexer.Token) ast.Expr {
	AddType(fn)
	var ft *ctypes.Tfunction
	switch t := fn.Type().(type) {
	case *ctypes.Tfunction:
		ft = t
	case ctypes.Tpointer:
		ft, _ = t.Elem.(*ctypes.Tfunction)
	}
	if ft == nil {
		p.errorf(fn.Pos(), "not a function")
	}

	var args []ast.Expr
	for !p.consume(")") {
		if len(args) > 0 {
			p.skip(",")
		}
		arg := p.assign()
		AddType(arg)
		i := len(args)
		switch {
		case i < len(ft.Params):
			pt := ft.Params[i].Type
			if ctypes.IsStruct(pt) || ctypes.IsStruct(arg.Type()) {
				if !ctypes.Equal(pt, arg.Type()) {
					p.errorf(arg.Pos(), "passing '%s' to parameter of incompatible type '%s'", arg.Type(), pt)
				}
			} else {
				arg = castTo(arg, pt)
			}
		case !ft.VarArg:
			p.errorf(arg.Pos(), "too many arguments")
		case ctypes.Equal(arg.Type(), ctypes.Float()):
			arg = castTo(arg, ctypes.Double())
		case ctypes.IsInteger(arg.Type()) && arg.Type().Size() < 4:
			arg = castTo(arg, ctypes.Int())
		}
		args = append(args, arg)
	}
	if len(args) < len(ft.Params) {
		p.errorf(tok, "too few arguments")
	}

	call := &ast.Call{ExprInfo: typed(fn.Pos(), ft.Return), Func: fn, FuncType: ft, Args: args}
	if ctypes.IsStruct(ft.Return) {
		call.RetBuffer = p.newLocal("", ft.Return, tok)
	}
	return call
}

// primary = "(" "{" stmt+ "}" ")"
//
//	| "(" expr ")"
//	| "__builtin_reg_class" "(" type-name ")"
//	| ident
//	| str+
//	| num
func (p *Parser) primary() ast.Expr {
	tok := p.tok()

	if p.is("(") && p.peek(1).Is("{") {
		if p.fn == nil {
			p.errorf(tok, "statement expression not allowed at file scope")
		}
		p.pos++
		brace := p.next()
		body := p.compoundStmt(brace).Body
		p.skip(")")
		return &ast.StmtExpr{ExprInfo: at(tok), Body: body}
	}

	if p.consume("(") {
		e := p.expr()
		p.skip(")")
		return e
	}

	if p.consume("__builtin_reg_class") {
		p.skip("(")
		ty := p.typename()
		p.skip(")")
		switch {
		case ctypes.IsInteger(ty) || ctypes.IsPointer(ty):
			return newNum(0, tok)
		case ctypes.IsFloat(ty):
			return newNum(1, tok)
		}
		return newNum(2, tok)
	}

	switch tok.Kind {
	case lexer.Ident:
		p.pos++
		if vs := p.lookupVar(tok.Text); vs != nil {
			if vs.obj != nil {
				vs.obj.Used = true
				return newVar(vs.obj, tok)
			}
			if vs.enumTy != nil {
				return newNum(vs.enumVal, tok)
			}
		}
		if (tok.Text == "__func__" || tok.Text == "__FUNCTION__") && p.fn != nil {
			if p.funcName == nil {
				p.funcName = p.newStringLiteral(append([]byte(p.fn.Name), 0), tok)
			}
			return newVar(p.funcName, tok)
		}
		if p.is("(") {
			p.errorf(tok, "implicit declaration of a function")
		}
		p.errorf(tok, "undefined variable")

	case lexer.Str:
		return newVar(p.stringLiteral(), tok)

	case lexer.Num:
		p.pos++
		if ctypes.IsFloat(tok.Ty) {
			return &ast.Num{ExprInfo: typed(tok, tok.Ty), FVal: tok.FVal}
		}
		return &ast.Num{ExprInfo: typed(tok, tok.Ty), Val: tok.Val}
	}

	p.errorf(tok, "expected an expression")
	return nil
}

// stringLiteral consumes adjacent string literals and returns the anonymous
// global holding their concatenation.
func (p *Parser) stringLiteral() *ast.Obj {
	tok := p.tok()
	return p.newStringLiteral(p.stringData(), tok)
}

// stringData consumes adjacent string literals and returns their
// concatenation with a single trailing NUL.
func (p *Parser) stringData() []byte {
	data := p.next().Str
	for p.tok().Kind == lexer.Str {
		next := p.next().Str
		data = append(data[:len(data)-1:len(data)-1], next...)
	}
	return data
}
