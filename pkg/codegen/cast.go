package codegen

import (
	"strings"

	"github.com/raymyers/ccx64/pkg/ctypes"
)

type typeID int

const (
	i8 typeID = iota
	i16
	i32
	i64
	u8
	u16
	u32
	u64
	f32
	f64
)

func typeIDOf(ty ctypes.Type) typeID {
	unsigned := ctypes.IsUnsigned(ty)
	switch t := ty.(type) {
	case ctypes.Tint:
		switch t.Width {
		case ctypes.I8, ctypes.IBool:
			if unsigned {
				return u8
			}
			return i8
		case ctypes.I16:
			if unsigned {
				return u16
			}
			return i16
		}
		if unsigned {
			return u32
		}
		return i32
	case ctypes.Tenum:
		return i32
	case ctypes.Tlong:
		if unsigned {
			return u64
		}
		return i64
	case ctypes.Tfloat:
		if t.Width == ctypes.F32 {
			return f32
		}
		return f64
	}
	return u64
}

// Conversion sequences, "; "-separated. Integer values narrower than 64
// bits are kept sign- or zero-extended in eax, so most integer casts only
// need to re-extend the low bits.
const (
	i32i8  = "movsx eax, al"
	i32u8  = "movzx eax, al"
	i32i16 = "movsx eax, ax"
	i32u16 = "movzx eax, ax"
	i32f32 = "cvtsi2ss xmm0, eax"
	i32i64 = "movsxd rax, eax"
	i32f64 = "cvtsi2sd xmm0, eax"

	u32f32 = "mov eax, eax; cvtsi2ss xmm0, rax"
	u32i64 = "mov eax, eax"
	u32f64 = "mov eax, eax; cvtsi2sd xmm0, rax"

	i64f32 = "cvtsi2ss xmm0, rax"
	i64f64 = "cvtsi2sd xmm0, rax"

	u64f32 = "cvtsi2ss xmm0, rax"
	u64f64 = "test rax, rax; js 1f; pxor xmm0, xmm0; cvtsi2sd xmm0, rax; jmp 2f; " +
		"1: mov rdi, rax; and eax, 1; pxor xmm0, xmm0; shr rdi; " +
		"or rdi, rax; cvtsi2sd xmm0, rdi; addsd xmm0, xmm0; 2:"

	f32i8  = "cvttss2si eax, xmm0; movsx eax, al"
	f32u8  = "cvttss2si eax, xmm0; movzx eax, al"
	f32i16 = "cvttss2si eax, xmm0; movsx eax, ax"
	f32u16 = "cvttss2si eax, xmm0; movzx eax, ax"
	f32i32 = "cvttss2si eax, xmm0"
	f32u32 = "cvttss2si rax, xmm0"
	f32i64 = "cvttss2si rax, xmm0"
	f32u64 = "cvttss2si rax, xmm0"
	f32f64 = "cvtss2sd xmm0, xmm0"

	f64i8  = "cvttsd2si eax, xmm0; movsx eax, al"
	f64u8  = "cvttsd2si eax, xmm0; movzx eax, al"
	f64i16 = "cvttsd2si eax, xmm0; movsx eax, ax"
	f64u16 = "cvttsd2si eax, xmm0; movzx eax, ax"
	f64i32 = "cvttsd2si eax, xmm0"
	f64u32 = "cvttsd2si rax, xmm0"
	f64i64 = "cvttsd2si rax, xmm0"
	f64u64 = "cvttsd2si rax, xmm0"
	f64f32 = "cvtsd2ss xmm0, xmm0"
)

// castTable[from][to]; an empty entry needs no code.
var castTable = [10][10]string{
	// i8    i16     i32     i64     u8     u16     u32     u64     f32     f64
	{"", "", "", i32i64, i32u8, i32u16, "", i32i64, i32f32, i32f64},             // i8
	{i32i8, "", "", i32i64, i32u8, i32u16, "", i32i64, i32f32, i32f64},          // i16
	{i32i8, i32i16, "", i32i64, i32u8, i32u16, "", i32i64, i32f32, i32f64},      // i32
	{i32i8, i32i16, "", "", i32u8, i32u16, "", "", i64f32, i64f64},              // i64
	{i32i8, "", "", i32i64, "", "", "", i32i64, i32f32, i32f64},                 // u8
	{i32i8, i32i16, "", i32i64, i32u8, "", "", i32i64, i32f32, i32f64},          // u16
	{i32i8, i32i16, "", u32i64, i32u8, i32u16, "", u32i64, u32f32, u32f64},      // u32
	{i32i8, i32i16, "", "", i32u8, i32u16, "", "", u64f32, u64f64},              // u64
	{f32i8, f32i16, f32i32, f32i64, f32u8, f32u16, f32u32, f32u64, "", f32f64},  // f32
	{f64i8, f64i16, f64i32, f64i64, f64u8, f64u16, f64u32, f64u64, f64f32, ""}, // f64
}

// cast converts the current value from type from to type to.
func (g *Generator) cast(from, to ctypes.Type) {
	if ctypes.IsVoid(to) {
		return
	}
	if ctypes.IsBool(to) {
		g.cmpZero(from)
		g.println("  setne al")
		g.println("  movzx eax, al")
		return
	}
	insn := castTable[typeIDOf(from)][typeIDOf(to)]
	if insn == "" {
		return
	}
	for _, line := range strings.Split(insn, "; ") {
		g.println("  %s", line)
	}
}
