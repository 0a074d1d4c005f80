package codegen

import (
	"math"

	"github.com/raymyers/ccx64/pkg/ast"
	"github.com/raymyers/ccx64/pkg/ctypes"
	"github.com/raymyers/ccx64/pkg/diag"
)

// genAddr computes the address of an lvalue into rax.
func (g *Generator) genAddr(e ast.Expr) {
	switch e := e.(type) {
	case *ast.Var:
		v := e.Obj
		switch {
		case v.IsLocal:
			g.println("  lea rax, %s", rbp(v.Offset))
		case v.IsFunction && !v.IsDefinition:
			// Defined elsewhere, possibly in a shared library.
			g.println("  mov rax, QWORD PTR [rip + %s@GOTPCREL]", v.Name)
		default:
			g.println("  lea rax, [rip + %s]", v.Name)
		}
		return

	case *ast.Deref:
		g.genExpr(e.X)
		return

	case *ast.Comma:
		g.genExpr(e.LHS)
		g.genAddr(e.RHS)
		return

	case *ast.Member:
		g.genAddr(e.X)
		if e.Mem.Offset != 0 {
			g.println("  add rax, %d", e.Mem.Offset)
		}
		return

	case *ast.Call:
		if e.RetBuffer != nil {
			g.genExpr(e)
			return
		}

	case *ast.Assign, *ast.Cond:
		if ctypes.IsStruct(e.Type()) {
			g.genExpr(e)
			return
		}
	}
	diag.Unreachable("address of %T", e)
}

// load replaces the address in rax with the value it points to. Arrays,
// structs and functions are represented by their address, so there is
// nothing to load.
func (g *Generator) load(ty ctypes.Type) {
	switch t := ty.(type) {
	case ctypes.Tarray, *ctypes.Tstruct, *ctypes.Tfunction:
		return
	case ctypes.Tfloat:
		if t.Width == ctypes.F32 {
			g.println("  movss xmm0, DWORD PTR [rax]")
		} else {
			g.println("  movsd xmm0, QWORD PTR [rax]")
		}
		return
	}

	// Narrow values are extended to fill eax.
	insn := "movsx"
	if ctypes.IsUnsigned(ty) {
		insn = "movzx"
	}
	switch ty.Size() {
	case 1:
		g.println("  %s eax, BYTE PTR [rax]", insn)
	case 2:
		g.println("  %s eax, WORD PTR [rax]", insn)
	case 4:
		if ctypes.IsUnsigned(ty) {
			g.println("  mov eax, DWORD PTR [rax]")
		} else {
			g.println("  movsxd rax, DWORD PTR [rax]")
		}
	default:
		g.println("  mov rax, QWORD PTR [rax]")
	}
}

// store writes rax (or xmm0) to the address on top of the stack.
func (g *Generator) store(ty ctypes.Type) {
	g.pop("rdi")

	switch t := ty.(type) {
	case *ctypes.Tstruct:
		g.copyBytes("rax", 0, "rdi", 0, t.Size())
		return
	case ctypes.Tfloat:
		if t.Width == ctypes.F32 {
			g.println("  movss DWORD PTR [rdi], xmm0")
		} else {
			g.println("  movsd QWORD PTR [rdi], xmm0")
		}
		return
	}

	switch ty.Size() {
	case 1:
		g.println("  mov BYTE PTR [rdi], al")
	case 2:
		g.println("  mov WORD PTR [rdi], ax")
	case 4:
		g.println("  mov DWORD PTR [rdi], eax")
	default:
		g.println("  mov QWORD PTR [rdi], rax")
	}
}

// copyBytes copies size bytes from [src+soff] to [dst+doff] one byte at a
// time through r8b.
func (g *Generator) copyBytes(src string, soff int64, dst string, doff int64, size int64) {
	for i := int64(0); i < size; i++ {
		g.println("  mov r8b, BYTE PTR [%s%+d]", src, soff+i)
		g.println("  mov BYTE PTR [%s%+d], r8b", dst, doff+i)
	}
}

// cmpZero sets the flags by comparing the current value of type ty with 0.
func (g *Generator) cmpZero(ty ctypes.Type) {
	if f, ok := ty.(ctypes.Tfloat); ok {
		if f.Width == ctypes.F32 {
			g.println("  xorps xmm1, xmm1")
			g.println("  ucomiss xmm0, xmm1")
		} else {
			g.println("  xorpd xmm1, xmm1")
			g.println("  ucomisd xmm0, xmm1")
		}
		return
	}
	if ctypes.IsInteger(ty) && ty.Size() <= 4 {
		g.println("  cmp eax, 0")
		return
	}
	g.println("  cmp rax, 0")
}

// is64 reports whether arithmetic on ty uses 64-bit registers.
func is64(ty ctypes.Type) bool {
	switch ty.(type) {
	case ctypes.Tlong, ctypes.Tpointer, ctypes.Tarray, *ctypes.Tfunction:
		return true
	}
	return false
}

// genExpr evaluates e into rax, or xmm0 for floating-point values.
func (g *Generator) genExpr(e ast.Expr) {
	g.loc(e.Pos())

	switch e := e.(type) {
	case *ast.Num:
		g.genNum(e)

	case *ast.Unary:
		g.genUnary(e)

	case *ast.Var, *ast.Member:
		g.genAddr(e)
		g.load(e.Type())

	case *ast.Deref:
		g.genExpr(e.X)
		g.load(e.Type())

	case *ast.Addr:
		g.genAddr(e.X)

	case *ast.Assign:
		g.genAddr(e.LHS)
		g.push()
		g.genExpr(e.RHS)
		g.store(e.Type())

	case *ast.StmtExpr:
		for _, s := range e.Body {
			g.genStmt(s)
		}

	case *ast.Comma:
		g.genExpr(e.LHS)
		g.genExpr(e.RHS)

	case *ast.Cast:
		g.genExpr(e.X)
		g.cast(e.X.Type(), e.Type())

	case *ast.MemZero:
		g.println("  mov rcx, %d", e.Var.Ty.Size())
		g.println("  lea rdi, %s", rbp(e.Var.Offset))
		g.println("  mov al, 0")
		g.println("  rep stosb")

	case *ast.Cond:
		c := g.nextCount()
		g.genExpr(e.Cond)
		g.cmpZero(e.Cond.Type())
		g.println("  je .L.else.%d", c)
		g.genExpr(e.Then)
		g.println("  jmp .L.end.%d", c)
		g.println(".L.else.%d:", c)
		g.genExpr(e.Else)
		g.println(".L.end.%d:", c)

	case *ast.Call:
		g.genCall(e)

	case *ast.Binary:
		g.genBinary(e)

	default:
		diag.Unreachable("expression %T", e)
	}
}

func (g *Generator) genNum(e *ast.Num) {
	if f, ok := e.Ty.(ctypes.Tfloat); ok {
		if f.Width == ctypes.F32 {
			g.println("  mov eax, %d # float %g", math.Float32bits(float32(e.FVal)), e.FVal)
		} else {
			g.println("  mov rax, %d # double %g", math.Float64bits(e.FVal), e.FVal)
		}
		g.println("  movq xmm0, rax")
		return
	}
	g.println("  mov rax, %d", e.Val)
}

func (g *Generator) genUnary(e *ast.Unary) {
	g.genExpr(e.X)
	switch e.Op {
	case ast.Neg:
		if f, ok := e.Ty.(ctypes.Tfloat); ok {
			// Flip the sign bit.
			g.println("  mov rax, 1")
			if f.Width == ctypes.F32 {
				g.println("  shl rax, 31")
				g.println("  movq xmm1, rax")
				g.println("  xorps xmm0, xmm1")
			} else {
				g.println("  shl rax, 63")
				g.println("  movq xmm1, rax")
				g.println("  xorpd xmm0, xmm1")
			}
			return
		}
		g.println("  neg rax")
	case ast.Not:
		g.cmpZero(e.X.Type())
		g.println("  sete al")
		g.println("  movzx rax, al")
	case ast.BitNot:
		g.println("  not rax")
	default:
		diag.Unreachable("unary operator %v", e.Op)
	}
}

func (g *Generator) genBinary(e *ast.Binary) {
	switch e.Op {
	case ast.LogAnd:
		c := g.nextCount()
		g.genExpr(e.LHS)
		g.cmpZero(e.LHS.Type())
		g.println("  je .L.false.%d", c)
		g.genExpr(e.RHS)
		g.cmpZero(e.RHS.Type())
		g.println("  je .L.false.%d", c)
		g.println("  mov rax, 1")
		g.println("  jmp .L.end.%d", c)
		g.println(".L.false.%d:", c)
		g.println("  mov rax, 0")
		g.println(".L.end.%d:", c)
		return
	case ast.LogOr:
		c := g.nextCount()
		g.genExpr(e.LHS)
		g.cmpZero(e.LHS.Type())
		g.println("  jne .L.true.%d", c)
		g.genExpr(e.RHS)
		g.cmpZero(e.RHS.Type())
		g.println("  jne .L.true.%d", c)
		g.println("  mov rax, 0")
		g.println("  jmp .L.end.%d", c)
		g.println(".L.true.%d:", c)
		g.println("  mov rax, 1")
		g.println(".L.end.%d:", c)
		return
	}

	if ctypes.IsFloat(e.LHS.Type()) {
		g.genFloatBinary(e)
		return
	}

	g.genExpr(e.RHS)
	g.push()
	g.genExpr(e.LHS)
	g.pop("rdi")

	ax, di, dx := "eax", "edi", "edx"
	if is64(e.LHS.Type()) {
		ax, di, dx = "rax", "rdi", "rdx"
	}

	switch e.Op {
	case ast.Add:
		g.println("  add %s, %s", ax, di)
	case ast.Sub:
		g.println("  sub %s, %s", ax, di)
	case ast.Mul:
		g.println("  imul %s, %s", ax, di)
	case ast.Div, ast.Mod:
		if ctypes.IsUnsigned(e.Ty) {
			g.println("  mov %s, 0", dx)
			g.println("  div %s", di)
		} else {
			if ax == "rax" {
				g.println("  cqo")
			} else {
				g.println("  cdq")
			}
			g.println("  idiv %s", di)
		}
		if e.Op == ast.Mod {
			g.println("  mov rax, rdx")
		}
	case ast.BitAnd:
		g.println("  and %s, %s", ax, di)
	case ast.BitOr:
		g.println("  or %s, %s", ax, di)
	case ast.BitXor:
		g.println("  xor %s, %s", ax, di)
	case ast.Eq, ast.Ne, ast.Lt, ast.Le:
		g.println("  cmp %s, %s", ax, di)
		unsigned := ctypes.IsUnsigned(e.LHS.Type())
		switch {
		case e.Op == ast.Eq:
			g.println("  sete al")
		case e.Op == ast.Ne:
			g.println("  setne al")
		case e.Op == ast.Lt && unsigned:
			g.println("  setb al")
		case e.Op == ast.Lt:
			g.println("  setl al")
		case unsigned:
			g.println("  setbe al")
		default:
			g.println("  setle al")
		}
		g.println("  movzx rax, al")
	case ast.Shl:
		g.println("  mov rcx, rdi")
		g.println("  shl %s, cl", ax)
	case ast.Shr:
		g.println("  mov rcx, rdi")
		if ctypes.IsUnsigned(e.LHS.Type()) {
			g.println("  shr %s, cl", ax)
		} else {
			g.println("  sar %s, cl", ax)
		}
	default:
		diag.Unreachable("binary operator %v", e.Op)
	}
}

func (g *Generator) genFloatBinary(e *ast.Binary) {
	g.genExpr(e.RHS)
	g.pushf()
	g.genExpr(e.LHS)
	g.popf(1)

	sz := "sd"
	if e.LHS.Type().(ctypes.Tfloat).Width == ctypes.F32 {
		sz = "ss"
	}

	switch e.Op {
	case ast.Add:
		g.println("  add%s xmm0, xmm1", sz)
		return
	case ast.Sub:
		g.println("  sub%s xmm0, xmm1", sz)
		return
	case ast.Mul:
		g.println("  mul%s xmm0, xmm1", sz)
		return
	case ast.Div:
		g.println("  div%s xmm0, xmm1", sz)
		return
	}

	// Compare rhs with lhs so that "above" means lhs < rhs; unordered
	// operands make every comparison but != false.
	g.println("  ucomi%s xmm1, xmm0", sz)
	switch e.Op {
	case ast.Eq:
		g.println("  sete al")
		g.println("  setnp dl")
		g.println("  and al, dl")
	case ast.Ne:
		g.println("  setne al")
		g.println("  setp dl")
		g.println("  or al, dl")
	case ast.Lt:
		g.println("  seta al")
	case ast.Le:
		g.println("  setae al")
	default:
		diag.Unreachable("floating-point operator %v", e.Op)
	}
	g.println("  and al, 1")
	g.println("  movzx rax, al")
}
