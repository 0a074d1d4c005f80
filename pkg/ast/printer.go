package ast

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/raymyers/ccx64/pkg/ctypes"
)

// Printer outputs the AST as S-expressions, one top-level form per global.
type Printer struct {
	w      io.Writer
	indent int
}

// NewPrinter creates a new AST printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintProgram prints a complete program
func (p *Printer) PrintProgram(prog *Program) {
	for _, obj := range prog.Globals {
		p.printObj(obj)
	}
}

func (p *Printer) line(format string, args ...any) {
	fmt.Fprint(p.w, strings.Repeat("  ", p.indent))
	fmt.Fprintf(p.w, format, args...)
	fmt.Fprintln(p.w)
}

func (p *Printer) printObj(o *Obj) {
	storage := ""
	if o.IsStatic {
		storage = " static"
	}
	switch {
	case o.IsFunction && o.IsDefinition:
		var params []string
		for _, param := range o.Params {
			params = append(params, param.Name)
		}
		p.line("(func%s %s %s (params %s)", storage, o.Name, o.Ty, strings.Join(params, " "))
		p.indent++
		p.printStmt(o.Body)
		p.indent--
		p.line(")")
	case o.IsFunction:
		p.line("(decl%s %s %s)", storage, o.Name, o.Ty)
	case !o.IsDefinition:
		p.line("(extern %s %s)", o.Name, o.Ty)
	default:
		init := ""
		if o.InitData != nil {
			init = " " + strconv.Quote(string(o.InitData))
		}
		p.line("(var%s %s %s%s)", storage, o.Name, o.Ty, init)
	}
}

func (p *Printer) printStmt(s Stmt) {
	if s == nil {
		p.line("()")
		return
	}
	switch s := s.(type) {
	case *Block:
		if len(s.Body) == 0 {
			p.line("(block)")
			return
		}
		p.line("(block")
		p.nested(func() {
			for _, st := range s.Body {
				p.printStmt(st)
			}
		})
	case *ExprStmt:
		p.line("%s", ExprString(s.X))
	case *Return:
		if s.X == nil {
			p.line("(return)")
		} else {
			p.line("(return %s)", ExprString(s.X))
		}
	case *If:
		p.line("(if %s", ExprString(s.Cond))
		p.nested(func() {
			p.printStmt(s.Then)
			if s.Else != nil {
				p.printStmt(s.Else)
			}
		})
	case *For:
		p.line("(for %s %s", optExpr(s.Cond), optExpr(s.Inc))
		p.nested(func() {
			if s.Init != nil {
				p.printStmt(s.Init)
			}
			p.printStmt(s.Body)
		})
	case *Do:
		p.line("(do %s", ExprString(s.Cond))
		p.nested(func() { p.printStmt(s.Body) })
	case *Switch:
		p.line("(switch %s", ExprString(s.Cond))
		p.nested(func() { p.printStmt(s.Body) })
	case *Case:
		if s.IsDefault {
			p.line("(default")
		} else {
			p.line("(case %d", s.Val)
		}
		p.nested(func() { p.printStmt(s.Body) })
	case *Goto:
		if s.Name == "" {
			p.line("(goto %s)", s.Label)
		} else {
			p.line("(goto %s)", s.Name)
		}
	case *Label:
		p.line("(label %s", s.Name)
		p.nested(func() { p.printStmt(s.Body) })
	default:
		p.line("(? %T)", s)
	}
}

func (p *Printer) nested(body func()) {
	p.indent++
	body()
	p.indent--
	p.line(")")
}

func optExpr(e Expr) string {
	if e == nil {
		return "()"
	}
	return ExprString(e)
}

// ExprString renders an expression as a single-line S-expression.
func ExprString(e Expr) string {
	var sb strings.Builder
	writeExpr(&sb, e)
	return sb.String()
}

func writeExpr(sb *strings.Builder, e Expr) {
	form := func(head string, kids ...Expr) {
		sb.WriteString("(")
		sb.WriteString(head)
		for _, k := range kids {
			sb.WriteString(" ")
			writeExpr(sb, k)
		}
		sb.WriteString(")")
	}

	switch e := e.(type) {
	case nil:
		sb.WriteString("()")
	case *Num:
		if ctypes.IsFloat(e.Ty) {
			sb.WriteString(strconv.FormatFloat(e.FVal, 'g', -1, 64))
		} else {
			sb.WriteString(strconv.FormatInt(e.Val, 10))
		}
	case *Var:
		sb.WriteString(e.Obj.Name)
	case *Binary:
		form(e.Op.String(), e.LHS, e.RHS)
	case *Unary:
		form(e.Op.String(), e.X)
	case *Assign:
		form("=", e.LHS, e.RHS)
	case *Comma:
		form(",", e.LHS, e.RHS)
	case *Cond:
		form("?:", e.Cond, e.Then, e.Else)
	case *Addr:
		form("&", e.X)
	case *Deref:
		form("*", e.X)
	case *Member:
		form("."+e.Mem.Name, e.X)
	case *Cast:
		form("cast "+e.Ty.String(), e.X)
	case *Call:
		form("call "+ExprString(e.Func), e.Args...)
	case *StmtExpr:
		sb.WriteString("(stmt-expr)")
	case *MemZero:
		sb.WriteString("(memzero " + e.Var.Name + ")")
	default:
		fmt.Fprintf(sb, "(? %T)", e)
	}
}
