package codegen

import (
	"github.com/raymyers/ccx64/pkg/ast"
	"github.com/raymyers/ccx64/pkg/ctypes"
	"github.com/raymyers/ccx64/pkg/diag"
)

// genCall calls a function following the System V AMD64 convention:
//   - up to 6 integer-class arguments in rdi, rsi, rdx, rcx, r8, r9;
//   - up to 8 floating-point arguments in xmm0-xmm7;
//   - structs of at most 16 bytes in one register per eightbyte, when
//     all of them fit; larger structs and overflow arguments on the stack,
//     pushed right to left;
//   - al holds the number of vector registers used, for variadic callees;
//   - a struct returned in memory is written to a buffer whose address
//     is passed as a hidden first argument.
func (g *Generator) genCall(e *ast.Call) {
	onStack, stackSlots := g.pushArgs(e)
	g.genExpr(e.Func)

	var regs regAlloc
	if e.RetBuffer != nil && returnsInMemory(e.Ty) {
		g.pop(argreg64[regs.gp])
		regs.gp++
	}
	for i, arg := range e.Args {
		if onStack[i] {
			continue
		}
		ty := arg.Type()
		switch {
		case ctypes.IsStruct(ty):
			for _, sse := range eightbytes(ty) {
				if sse {
					g.popf(regs.fp)
					regs.fp++
				} else {
					g.pop(argreg64[regs.gp])
					regs.gp++
				}
			}
		case ctypes.IsFloat(ty):
			g.popf(regs.fp)
			regs.fp++
		default:
			g.pop(argreg64[regs.gp])
			regs.gp++
		}
	}

	g.println("  mov r10, rax")
	g.println("  mov eax, %d", regs.fp)
	g.println("  call r10")
	if stackSlots > 0 {
		g.println("  add rsp, %d", stackSlots*slotSize)
		g.depth -= stackSlots
	}

	// The callee may leave garbage in the upper bits of a narrow result.
	switch t := e.Ty.(type) {
	case ctypes.Tint:
		insn := "movsx"
		if ctypes.IsUnsigned(t) {
			insn = "movzx"
		}
		switch t.Size() {
		case 1:
			g.println("  %s eax, al", insn)
		case 2:
			g.println("  %s eax, ax", insn)
		}
	}

	if e.RetBuffer != nil {
		if !returnsInMemory(e.Ty) {
			g.copyRetBuffer(e.RetBuffer)
		}
		g.println("  lea rax, %s", rbp(e.RetBuffer.Offset))
	}
}

// pushArgs evaluates the arguments of e onto the stack: first the ones
// passed in memory, right to left, then the register arguments, right to
// left, so the first register argument ends up on top. It returns which
// arguments stay on the stack for the callee and how many 8-byte slots
// they (and any alignment padding) occupy.
func (g *Generator) pushArgs(e *ast.Call) (onStack []bool, slots int) {
	var regs regAlloc
	if e.RetBuffer != nil && returnsInMemory(e.Ty) {
		regs.gp++
	}

	onStack = make([]bool, len(e.Args))
	for i, arg := range e.Args {
		ty := arg.Type()
		if regs.take(ty) {
			continue
		}
		onStack[i] = true
		slots += int(ctypes.AlignTo(ty.Size(), slotSize) / slotSize)
	}

	// rsp must be 16-byte aligned at the call instruction.
	if (g.depth+slots)%2 == 1 {
		g.println("  sub rsp, 8")
		g.depth++
		slots++
	}

	for _, memory := range []bool{true, false} {
		for i := len(e.Args) - 1; i >= 0; i-- {
			if onStack[i] != memory {
				continue
			}
			g.pushArg(e.Args[i])
		}
	}

	if e.RetBuffer != nil && returnsInMemory(e.Ty) {
		g.println("  lea rax, %s", rbp(e.RetBuffer.Offset))
		g.push()
	}
	return onStack, slots
}

func (g *Generator) pushArg(arg ast.Expr) {
	g.genExpr(arg)
	ty := arg.Type()
	switch {
	case ctypes.IsStruct(ty):
		g.pushStruct(ty)
	case ctypes.IsFloat(ty):
		g.pushf()
	default:
		g.push()
	}
}

// pushStruct copies the struct at rax onto the stack, padded to a
// multiple of 8 bytes.
func (g *Generator) pushStruct(ty ctypes.Type) {
	sz := ctypes.AlignTo(ty.Size(), slotSize)
	g.println("  sub rsp, %d", sz)
	g.depth += int(sz / slotSize)
	g.copyBytes("rax", 0, "rsp", 0, ty.Size())
}

// copyRetBuffer stores a struct returned in rax/rdx/xmm0/xmm1 into the
// caller's buffer v.
func (g *Generator) copyRetBuffer(v *ast.Obj) {
	ty := v.Ty
	gp, fp := 0, 0
	for i, sse := range eightbytes(ty) {
		off := v.Offset + int64(i)*8
		size := min(8, ty.Size()-int64(i)*8)
		if sse {
			if size == 4 {
				g.println("  movss DWORD PTR %s, xmm%d", rbp(off), fp)
			} else {
				g.println("  movsd QWORD PTR %s, xmm%d", rbp(off), fp)
			}
			fp++
			continue
		}
		reg8, reg64 := "al", "rax"
		if gp > 0 {
			reg8, reg64 = "dl", "rdx"
		}
		for j := int64(0); j < size; j++ {
			g.println("  mov BYTE PTR %s, %s", rbp(off+j), reg8)
			g.println("  shr %s, 8", reg64)
		}
		gp++
	}
}

// copyStructReg loads the struct at rax into the return registers.
func (g *Generator) copyStructReg(ty ctypes.Type) {
	g.println("  mov rdi, rax")
	gp, fp := 0, 0
	for i, sse := range eightbytes(ty) {
		off := int64(i) * 8
		size := min(8, ty.Size()-off)
		if sse {
			diag.Assert(size == 4 || size == 8, "float eightbyte of size %d", size)
			if size == 4 {
				g.println("  movss xmm%d, DWORD PTR [rdi%+d]", fp, off)
			} else {
				g.println("  movsd xmm%d, QWORD PTR [rdi%+d]", fp, off)
			}
			fp++
			continue
		}
		reg8, reg64 := "al", "rax"
		if gp > 0 {
			reg8, reg64 = "dl", "rdx"
		}
		g.println("  mov %s, 0", reg64)
		for j := size - 1; j >= 0; j-- {
			g.println("  shl %s, 8", reg64)
			g.println("  mov %s, BYTE PTR [rdi%+d]", reg8, off+j)
		}
		gp++
	}
}

// copyStructMem copies the struct at rax into the buffer the caller passed
// and returns the buffer address in rax.
func (g *Generator) copyStructMem(ty ctypes.Type) {
	g.println("  mov rdi, QWORD PTR %s", rbp(g.frame.RetPtr))
	g.copyBytes("rax", 0, "rdi", 0, ty.Size())
	g.println("  mov rax, rdi")
}
