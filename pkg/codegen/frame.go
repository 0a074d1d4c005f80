package codegen

import (
	"github.com/raymyers/ccx64/pkg/ast"
	"github.com/raymyers/ccx64/pkg/ctypes"
)

const (
	maxGP          = 6  // rdi, rsi, rdx, rcx, r8, r9
	maxFP          = 8  // xmm0-xmm7
	stackAlignment = 16 // rsp is 16-byte aligned at every call
	slotSize       = 8  // one push
)

// x86-64 frame layout (called function's view):
//
//	+---------------------------+
//	| stack-passed parameters   |  rbp+16 upwards
//	| return address            |  rbp+8
//	| saved rbp                 |  rbp+0
//	+---------------------------+  <- rbp
//	| register parameters       |  negative offsets from rbp
//	| local variables           |
//	| hidden return pointer     |
//	+---------------------------+  <- rsp (16-byte aligned)
//
// Temporaries pushed by the stack machine live below rsp.

// Frame describes the activation record of a function definition.
type Frame struct {
	Size int64 // bytes reserved below rbp, a multiple of 16

	// RetPtr is the rbp offset of the saved hidden struct-return pointer,
	// 0 when the function returns in registers.
	RetPtr int64

	// Registers consumed by named parameters, including the hidden
	// return pointer. Variadic functions start their va_list here.
	GP, FP int

	// StackTop is the rbp offset just past the last stack-passed named
	// parameter; variadic stack arguments start there.
	StackTop int64

	regParams map[*ast.Obj]bool
}

// LayoutFrame assigns frame offsets to the parameters and locals of fn and
// sets fn.StackSize. It must run after parsing and before code generation.
func LayoutFrame(fn *ast.Obj) *Frame {
	f := &Frame{regParams: make(map[*ast.Obj]bool)}
	for _, v := range fn.Locals {
		v.Offset = 0
	}

	var regs regAlloc
	if returnsInMemory(fn.FuncType().Return) {
		regs.gp++
	}

	// Parameters that do not fit in registers were pushed by the caller.
	top := int64(16)
	for _, param := range fn.Params {
		if regs.take(param.Ty) {
			f.regParams[param] = true
			continue
		}
		top = ctypes.AlignTo(top, slotSize)
		param.Offset = top
		top += param.Ty.Size()
	}
	f.GP, f.FP = regs.gp, regs.fp
	f.StackTop = ctypes.AlignTo(top, slotSize)

	var bottom int64
	for _, v := range fn.Locals {
		if v.Offset != 0 {
			continue
		}
		bottom += v.Ty.Size()
		bottom = ctypes.AlignTo(bottom, localAlign(v))
		v.Offset = -bottom
	}
	if returnsInMemory(fn.FuncType().Return) {
		bottom = ctypes.AlignTo(bottom+slotSize, slotSize)
		f.RetPtr = -bottom
	}

	f.Size = ctypes.AlignTo(bottom, stackAlignment)
	fn.StackSize = f.Size
	return f
}

// localAlign returns the stack alignment of v. Arrays of 16 bytes or more
// are 16-byte aligned as the psABI requires.
func localAlign(v *ast.Obj) int64 {
	align := v.Align
	if align == 0 {
		align = v.Ty.Align()
	}
	if ctypes.IsArray(v.Ty) && v.Ty.Size() >= 16 && align < 16 {
		return 16
	}
	return align
}

// InRegister reports whether param arrived in registers.
func (f *Frame) InRegister(param *ast.Obj) bool {
	return f.regParams[param]
}

// regAlloc counts argument registers handed out in parameter order.
type regAlloc struct {
	gp, fp int
}

// take reserves the registers for an argument of type ty and reports
// whether it is passed in registers. An argument that does not fit
// consumes nothing and goes on the stack.
func (r *regAlloc) take(ty ctypes.Type) bool {
	switch {
	case ctypes.IsStruct(ty):
		if ty.Size() > 16 {
			return false
		}
		gp, fp := 0, 0
		for _, sse := range eightbytes(ty) {
			if sse {
				fp++
			} else {
				gp++
			}
		}
		if r.gp+gp > maxGP || r.fp+fp > maxFP {
			return false
		}
		r.gp += gp
		r.fp += fp
		return true
	case ctypes.IsFloat(ty):
		if r.fp >= maxFP {
			return false
		}
		r.fp++
		return true
	}
	if r.gp >= maxGP {
		return false
	}
	r.gp++
	return true
}

// eightbytes classifies a struct of at most 16 bytes: one entry per
// eightbyte, true when that eightbyte travels in an SSE register.
func eightbytes(ty ctypes.Type) []bool {
	cls := []bool{onlyFloats(ty, 0, 8, 0)}
	if ty.Size() > 8 {
		cls = append(cls, onlyFloats(ty, 8, 16, 0))
	}
	return cls
}

// onlyFloats reports whether every scalar of ty (placed at offset) that
// overlaps [lo, hi) is a float or double.
func onlyFloats(ty ctypes.Type, lo, hi, offset int64) bool {
	switch t := ty.(type) {
	case *ctypes.Tstruct:
		for _, m := range t.Members {
			if !onlyFloats(m.Type, lo, hi, offset+m.Offset) {
				return false
			}
		}
		return true
	case ctypes.Tarray:
		for i := int64(0); i < t.Len; i++ {
			if !onlyFloats(t.Elem, lo, hi, offset+t.Elem.Size()*i) {
				return false
			}
		}
		return true
	}
	return offset < lo || hi <= offset || ctypes.IsFloat(ty)
}

// returnsInMemory reports whether a function returning ty receives a
// hidden pointer to the result buffer.
func returnsInMemory(ty ctypes.Type) bool {
	return ctypes.IsStruct(ty) && ty.Size() > 16
}
