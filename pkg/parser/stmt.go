package parser

import (
	"github.com/raymyers/ccx64/pkg/ast"
	"github.com/raymyers/ccx64/pkg/ctypes"
	"github.com/raymyers/ccx64/pkg/lexer"
)

// compoundStmt parses the statements of a block after its opening brace.
func (p *Parser) compoundStmt(brace *lexer.Token) *ast.Block {
	block := &ast.Block{StmtInfo: ast.StmtInfo{Tok: brace}}
	p.enterScope()
	for !p.consume("}") {
		if p.atEOF() {
			p.errorf(p.tok(), "expected '}'")
		}
		if p.isTypename(p.tok()) && !p.peek(1).Is(":") {
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
			decl := p.declaration(basety, attr)
			block.Body = append(block.Body, decl.Body...)
			continue
		}
		block.Body = append(block.Body, p.stmt())
	}
	p.leaveScope()
	return block
}

// stmt parses one statement.
func (p *Parser) stmt() ast.Stmt {
	tok := p.tok()
	info := ast.StmtInfo{Tok: tok}

	switch {
	case p.consume("return"):
		if p.consume(";") {
			return &ast.Return{StmtInfo: info}
		}
		e := p.expr()
		p.skip(";")
		AddType(e)
		ret := p.fn.FuncType().Return
		if !ctypes.IsStruct(ret) && !ctypes.IsVoid(ret) {
			e = castTo(e, ret)
		}
		return &ast.Return{StmtInfo: info, X: e}

	case p.consume("if"):
		s := &ast.If{StmtInfo: info}
		p.skip("(")
		s.Cond = p.expr()
		p.skip(")")
		s.Then = p.stmt()
		if p.consume("else") {
			s.Else = p.stmt()
		}
		return s

	case p.consume("switch"):
		s := &ast.Switch{StmtInfo: info}
		p.skip("(")
		s.Cond = p.expr()
		p.skip(")")
		AddType(s.Cond)
		if !ctypes.IsInteger(s.Cond.Type()) {
			p.errorf(tok, "statement requires expression of integer type")
		}

		sw, brk := p.sw, p.brkLabel
		p.sw = s
		s.BreakLabel = p.uniqueName()
		p.brkLabel = s.BreakLabel
		s.Body = p.stmt()
		p.sw, p.brkLabel = sw, brk
		return s

	case p.consume("case"):
		if p.sw == nil {
			p.errorf(tok, "'case' statement not in switch statement")
		}
		val := p.constExpr()
		p.skip(":")
		for _, c := range p.sw.Cases {
			if !c.IsDefault && c.Val == val {
				p.errorf(tok, "duplicate case value '%d'", val)
			}
		}
		c := &ast.Case{StmtInfo: info, Val: val, Label: p.uniqueName()}
		c.Body = p.stmt()
		p.sw.Cases = append(p.sw.Cases, c)
		return c

	case p.consume("default"):
		if p.sw == nil {
			p.errorf(tok, "'default' statement not in switch statement")
		}
		if p.sw.Default != nil {
			p.errorf(tok, "duplicate default label")
		}
		p.skip(":")
		c := &ast.Case{StmtInfo: info, IsDefault: true, Label: p.uniqueName()}
		p.sw.Default = c
		c.Body = p.stmt()
		return c

	case p.consume("for"):
		s := &ast.For{StmtInfo: info}
		p.skip("(")
		p.enterScope()
		brk, cont := p.brkLabel, p.contLabel
		s.BreakLabel = p.uniqueName()
		s.ContinueLabel = p.uniqueName()
		p.brkLabel, p.contLabel = s.BreakLabel, s.ContinueLabel

		if p.isTypename(p.tok()) {
			basety := p.declspec(nil)
			s.Init = p.declaration(basety, nil)
		} else {
			s.Init = p.exprStmt()
		}
		if !p.is(";") {
			s.Cond = p.expr()
		}
		p.skip(";")
		if !p.is(")") {
			s.Inc = p.expr()
		}
		p.skip(")")
		s.Body = p.stmt()

		p.leaveScope()
		p.brkLabel, p.contLabel = brk, cont
		return s

	case p.consume("while"):
		s := &ast.For{StmtInfo: info}
		p.skip("(")
		s.Cond = p.expr()
		p.skip(")")

		brk, cont := p.brkLabel, p.contLabel
		s.BreakLabel = p.uniqueName()
		s.ContinueLabel = p.uniqueName()
		p.brkLabel, p.contLabel = s.BreakLabel, s.ContinueLabel
		s.Body = p.stmt()
		p.brkLabel, p.contLabel = brk, cont
		return s

	case p.consume("do"):
		s := &ast.Do{StmtInfo: info}
		brk, cont := p.brkLabel, p.contLabel
		s.BreakLabel = p.uniqueName()
		s.ContinueLabel = p.uniqueName()
		p.brkLabel, p.contLabel = s.BreakLabel, s.ContinueLabel
		s.Body = p.stmt()
		p.brkLabel, p.contLabel = brk, cont

		p.skip("while")
		p.skip("(")
		s.Cond = p.expr()
		p.skip(")")
		p.skip(";")
		return s

	case p.consume("goto"):
		s := &ast.Goto{StmtInfo: info, Name: p.ident().Text}
		p.gotos = append(p.gotos, s)
		p.skip(";")
		return s

	case p.consume("break"):
		if p.brkLabel == "" {
			p.errorf(tok, "'break' statement not in loop or switch statement")
		}
		p.skip(";")
		return &ast.Goto{StmtInfo: info, Label: p.brkLabel}

	case p.consume("continue"):
		if p.contLabel == "" {
			p.errorf(tok, "'continue' statement not in loop statement")
		}
		p.skip(";")
		return &ast.Goto{StmtInfo: info, Label: p.contLabel}

	case tok.Kind == lexer.Ident && p.peek(1).Is(":"):
		for _, l := range p.labels {
			if l.Name == tok.Text {
				p.errorf(tok, "redefinition of label '%s'", tok.Text)
			}
		}
		p.pos += 2
		s := &ast.Label{StmtInfo: info, Name: tok.Text, Label: p.uniqueName()}
		p.labels = append(p.labels, s)
		s.Body = p.stmt()
		return s

	case p.is("{"):
		return p.compoundStmt(p.next())
	}
	return p.exprStmt()
}

// exprStmt = expr? ";"
func (p *Parser) exprStmt() ast.Stmt {
	tok := p.tok()
	if p.consume(";") {
		return &ast.Block{StmtInfo: ast.StmtInfo{Tok: tok}}
	}
	e := p.expr()
	p.skip(";")
	AddType(e)
	return &ast.ExprStmt{StmtInfo: ast.StmtInfo{Tok: tok}, X: e}
}
