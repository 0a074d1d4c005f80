// Package codegen emits x86-64 assembly (GNU as, Intel syntax) for a parsed
// program. Expressions are evaluated by a stack machine: the value of the
// current expression lives in rax (xmm0 for floating point) and operands
// are saved with push/pop.
package codegen

import (
	"fmt"
	"io"

	"github.com/raymyers/ccx64/pkg/ast"
	"github.com/raymyers/ccx64/pkg/ctypes"
	"github.com/raymyers/ccx64/pkg/diag"
	"github.com/raymyers/ccx64/pkg/lexer"
)

var (
	argreg8  = []string{"dil", "sil", "dl", "cl", "r8b", "r9b"}
	argreg16 = []string{"di", "si", "dx", "cx", "r8w", "r9w"}
	argreg32 = []string{"edi", "esi", "edx", "ecx", "r8d", "r9d"}
	argreg64 = []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}
)

// Options controls assembly output.
type Options struct {
	Debug bool          // emit .file and .loc directives
	Files []*lexer.File // source files, numbered for .file by Index+1
}

// Generator writes the assembly of one translation unit. A Generator is
// used for a single Emit call.
type Generator struct {
	w    io.Writer
	opts Options

	depth int // values pushed by the stack machine
	count int // label counter
	fn    *ast.Obj
	frame *Frame
	err   error
}

// New creates a generator writing to w.
func New(w io.Writer, opts Options) *Generator {
	return &Generator{w: w, opts: opts}
}

// Emit lays out every function frame and writes the program. Invariant
// violations inside the generator panic with *diag.InternalError.
func (g *Generator) Emit(prog *ast.Program) (err error) {
	defer diag.Bailout(&err)

	g.println(".intel_syntax noprefix")
	if g.opts.Debug {
		for _, f := range g.opts.Files {
			g.println("  .file %d \"%s\"", f.Index+1, f.Name)
		}
	}
	g.emitData(prog)
	g.emitText(prog)
	g.println("  .section .note.GNU-stack,\"\",@progbits")
	return g.err
}

func (g *Generator) println(format string, args ...any) {
	if g.err != nil {
		return
	}
	if _, err := fmt.Fprintf(g.w, format+"\n", args...); err != nil {
		g.err = err
	}
}

func (g *Generator) nextCount() int {
	g.count++
	return g.count
}

func (g *Generator) push() {
	g.println("  push rax")
	g.depth++
}

func (g *Generator) pop(reg string) {
	g.println("  pop %s", reg)
	g.depth--
}

func (g *Generator) pushf() {
	g.println("  sub rsp, 8")
	g.println("  movsd QWORD PTR [rsp], xmm0")
	g.depth++
}

func (g *Generator) popf(reg int) {
	g.println("  movsd xmm%d, QWORD PTR [rsp]", reg)
	g.println("  add rsp, 8")
	g.depth--
}

// loc emits a .loc directive for tok when debug info is on.
func (g *Generator) loc(tok *lexer.Token) {
	if !g.opts.Debug || tok == nil || tok.File == nil {
		return
	}
	g.println("  .loc %d %d", tok.File.Index+1, tok.Line)
}

// rbp formats a frame slot address.
func rbp(off int64) string {
	return fmt.Sprintf("[rbp%+d]", off)
}

// ptr returns the operand-size keyword for a memory access of size bytes.
func ptr(size int64) string {
	switch size {
	case 1:
		return "BYTE PTR"
	case 2:
		return "WORD PTR"
	case 4:
		return "DWORD PTR"
	}
	return "QWORD PTR"
}

func (g *Generator) emitData(prog *ast.Program) {
	for _, v := range prog.Globals {
		if v.IsFunction || !v.IsDefinition {
			continue
		}
		if v.IsStatic {
			g.println("  .local %s", v.Name)
		} else {
			g.println("  .globl %s", v.Name)
		}

		align := localAlign(v)
		size := v.Ty.Size()
		if v.InitData == nil {
			g.println("  .bss")
			g.println("  .align %d", align)
			g.println("%s:", v.Name)
			g.println("  .zero %d", size)
			continue
		}

		g.println("  .data")
		g.println("  .type %s, @object", v.Name)
		g.println("  .size %s, %d", v.Name, size)
		g.println("  .align %d", align)
		g.println("%s:", v.Name)
		rels := v.Rels
		for pos := int64(0); pos < size; {
			if len(rels) > 0 && rels[0].Offset == pos {
				g.println("  .quad %s%+d", rels[0].Label, rels[0].Addend)
				rels = rels[1:]
				pos += 8
				continue
			}
			g.println("  .byte %d", v.InitData[pos])
			pos++
		}
		diag.Assert(len(rels) == 0, "%s: relocation outside initializer", v.Name)
	}
}

func (g *Generator) emitText(prog *ast.Program) {
	for _, fn := range prog.Functions() {
		g.emitFunction(fn)
	}
}

func (g *Generator) emitFunction(fn *ast.Obj) {
	g.fn = fn
	g.frame = LayoutFrame(fn)
	g.depth = 0

	if fn.IsStatic {
		g.println("  .local %s", fn.Name)
	} else {
		g.println("  .globl %s", fn.Name)
	}
	g.println("  .text")
	g.println("  .type %s, @function", fn.Name)
	g.println("%s:", fn.Name)
	g.loc(fn.Tok)

	// Prologue
	g.println("  push rbp")
	g.println("  mov rbp, rsp")
	g.println("  sub rsp, %d", g.frame.Size)

	gp, fp := 0, 0
	if g.frame.RetPtr != 0 {
		g.println("  mov QWORD PTR %s, %s", rbp(g.frame.RetPtr), argreg64[gp])
		gp++
	}
	if fn.VaArea != nil {
		g.saveVaArea(fn.VaArea.Offset)
	}

	// Spill register parameters to their stack slots.
	for _, param := range fn.Params {
		if !g.frame.InRegister(param) {
			continue
		}
		ty := param.Ty
		switch {
		case ctypes.IsStruct(ty):
			cls := eightbytes(ty)
			for i, sse := range cls {
				off := param.Offset + int64(i)*8
				sz := min(8, ty.Size()-int64(i)*8)
				if sse {
					g.storeFP(fp, off, sz)
					fp++
				} else {
					g.storeGP(gp, off, sz)
					gp++
				}
			}
		case ctypes.IsFloat(ty):
			g.storeFP(fp, param.Offset, ty.Size())
			fp++
		default:
			g.storeGP(gp, param.Offset, ty.Size())
			gp++
		}
	}

	g.genStmt(fn.Body)
	diag.Assert(g.depth == 0, "%s: stack depth %d at end of function", fn.Name, g.depth)

	// Reaching the end of main returns 0.
	if fn.Name == "main" {
		g.println("  mov rax, 0")
	}

	// Epilogue
	g.println(".L.return.%s:", fn.Name)
	g.println("  mov rsp, rbp")
	g.println("  pop rbp")
	g.println("  ret")
	g.println("  .size %s, .-%s", fn.Name, fn.Name)
}

// saveVaArea initialises the va_list element at off and dumps every
// argument register after it:
//
//	off+0   gp_offset
//	off+4   fp_offset
//	off+8   overflow_arg_area
//	off+16  reg_save_area
//	off+24  rdi rsi rdx rcx r8 r9, then xmm0-xmm7 in 16-byte slots
func (g *Generator) saveVaArea(off int64) {
	f := g.frame
	g.println("  mov DWORD PTR %s, %d", rbp(off), f.GP*8)
	g.println("  mov DWORD PTR %s, %d", rbp(off+4), maxGP*8+f.FP*16)
	g.println("  lea rax, %s", rbp(f.StackTop))
	g.println("  mov QWORD PTR %s, rax", rbp(off+8))
	g.println("  lea rax, %s", rbp(off+24))
	g.println("  mov QWORD PTR %s, rax", rbp(off+16))
	for i, reg := range argreg64 {
		g.println("  mov QWORD PTR %s, %s", rbp(off+24+int64(i)*8), reg)
	}
	for i := 0; i < maxFP; i++ {
		g.println("  movsd QWORD PTR %s, xmm%d", rbp(off+24+maxGP*8+int64(i)*16), i)
	}
}

// storeGP stores the low sz bytes of argument register reg at rbp+off.
func (g *Generator) storeGP(reg int, off, sz int64) {
	switch sz {
	case 1:
		g.println("  mov %s %s, %s", ptr(1), rbp(off), argreg8[reg])
	case 2:
		g.println("  mov %s %s, %s", ptr(2), rbp(off), argreg16[reg])
	case 4:
		g.println("  mov %s %s, %s", ptr(4), rbp(off), argreg32[reg])
	case 8:
		g.println("  mov %s %s, %s", ptr(8), rbp(off), argreg64[reg])
	default:
		for i := int64(0); i < sz; i++ {
			g.println("  mov %s %s, %s", ptr(1), rbp(off+i), argreg8[reg])
			g.println("  shr %s, 8", argreg64[reg])
		}
	}
}

func (g *Generator) storeFP(reg int, off, sz int64) {
	if sz == 4 {
		g.println("  movss DWORD PTR %s, xmm%d", rbp(off), reg)
		return
	}
	diag.Assert(sz == 8, "storeFP: size %d", sz)
	g.println("  movsd QWORD PTR %s, xmm%d", rbp(off), reg)
}
