package codegen

import (
	"github.com/raymyers/ccx64/pkg/ast"
	"github.com/raymyers/ccx64/pkg/ctypes"
	"github.com/raymyers/ccx64/pkg/diag"
)

func (g *Generator) genStmt(s ast.Stmt) {
	g.loc(s.Pos())

	switch s := s.(type) {
	case *ast.If:
		c := g.nextCount()
		g.genExpr(s.Cond)
		g.cmpZero(s.Cond.Type())
		g.println("  je .L.else.%d", c)
		g.genStmt(s.Then)
		g.println("  jmp .L.end.%d", c)
		g.println(".L.else.%d:", c)
		if s.Else != nil {
			g.genStmt(s.Else)
		}
		g.println(".L.end.%d:", c)

	case *ast.For:
		c := g.nextCount()
		if s.Init != nil {
			g.genStmt(s.Init)
		}
		g.println(".L.begin.%d:", c)
		if s.Cond != nil {
			g.genExpr(s.Cond)
			g.cmpZero(s.Cond.Type())
			g.println("  je %s", s.BreakLabel)
		}
		g.genStmt(s.Body)
		g.println("%s:", s.ContinueLabel)
		if s.Inc != nil {
			g.genExpr(s.Inc)
		}
		g.println("  jmp .L.begin.%d", c)
		g.println("%s:", s.BreakLabel)

	case *ast.Do:
		c := g.nextCount()
		g.println(".L.begin.%d:", c)
		g.genStmt(s.Body)
		g.println("%s:", s.ContinueLabel)
		g.genExpr(s.Cond)
		g.cmpZero(s.Cond.Type())
		g.println("  jne .L.begin.%d", c)
		g.println("%s:", s.BreakLabel)

	case *ast.Switch:
		g.genExpr(s.Cond)
		for _, c := range s.Cases {
			if s.Cond.Type().Size() == 8 {
				g.println("  mov rdi, %d", c.Val)
				g.println("  cmp rax, rdi")
			} else {
				g.println("  cmp eax, %d", int32(c.Val))
			}
			g.println("  je %s", c.Label)
		}
		if s.Default != nil {
			g.println("  jmp %s", s.Default.Label)
		}
		g.println("  jmp %s", s.BreakLabel)
		g.genStmt(s.Body)
		g.println("%s:", s.BreakLabel)

	case *ast.Case:
		g.println("%s:", s.Label)
		g.genStmt(s.Body)

	case *ast.Block:
		for _, stmt := range s.Body {
			g.genStmt(stmt)
		}

	case *ast.Goto:
		g.println("  jmp %s", s.Label)

	case *ast.Label:
		g.println("%s:", s.Label)
		g.genStmt(s.Body)

	case *ast.Return:
		if s.X != nil {
			g.genExpr(s.X)
			if ty := s.X.Type(); ctypes.IsStruct(ty) {
				if returnsInMemory(ty) {
					g.copyStructMem(ty)
				} else {
					g.copyStructReg(ty)
				}
			}
		}
		g.println("  jmp .L.return.%s", g.fn.Name)

	case *ast.ExprStmt:
		g.genExpr(s.X)

	default:
		diag.Unreachable("statement %T", s)
	}
}
