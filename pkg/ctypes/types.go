// Package ctypes defines the C type system of the compiler: type variants
// with their x86-64 size and alignment, struct/union layout and the usual
// arithmetic conversions.
package ctypes

import (
	"fmt"
	"strings"

	"modernc.org/mathutil"
)

// Type is the interface for all C types
type Type interface {
	implType()
	String() string
	Size() int64
	Align() int64
}

// Signedness represents signed/unsigned for integer types
type Signedness int

const (
	Signed Signedness = iota
	Unsigned
)

func (s Signedness) String() string {
	if s == Signed {
		return "signed"
	}
	return "unsigned"
}

// IntSize represents the size of integer types narrower than long
type IntSize int

const (
	I8 IntSize = iota
	I16
	I32
	IBool
)

func (s IntSize) String() string {
	names := []string{"i8", "i16", "i32", "ibool"}
	if int(s) < len(names) {
		return names[s]
	}
	return "?"
}

// FloatSize represents the size of floating-point types
type FloatSize int

const (
	F32 FloatSize = iota
	F64
)

func (s FloatSize) String() string {
	if s == F32 {
		return "f32"
	}
	return "f64"
}

// Tvoid represents the void type
type Tvoid struct{}

// Tint represents integer types (char, short, int, _Bool)
type Tint struct {
	Width IntSize
	Sign Signedness
}

// Tlong represents long and long long (64-bit)
type Tlong struct {
	Sign Signedness
}

// Tfloat represents floating-point types (float, double)
type Tfloat struct {
	Width FloatSize
}

// Tenum represents an enumeration type; it has the representation of int.
type Tenum struct {
	Name string
}

// Tpointer represents pointer types
type Tpointer struct {
	Elem Type
}

// Tarray represents array types
type Tarray struct {
	Elem Type
	Len  int64 // -1 for incomplete array
}

// Param is a named function parameter.
type Param struct {
	Name string
	Type Type
}

// Tfunction represents function types
type Tfunction struct {
	Params []Param
	Return Type
	VarArg bool
}

// Member is a struct or union field.
type Member struct {
	Name   string
	Type   Type
	Index  int
	Offset int64
	Align  int64 // 0 means the alignment of Type
}

// Tstruct represents struct and union types. A Tstruct is created
// incomplete when its tag is first seen and completed exactly once by
// Complete; it is never changed afterwards.
type Tstruct struct {
	Name     string
	Union    bool
	Members  []*Member
	Flexible bool // last member is a flexible array
	complete bool
	size     int64
	align    int64
}

// Marker methods for Type interface
func (Tvoid) implType()      {}
func (Tint) implType()       {}
func (Tlong) implType()      {}
func (Tfloat) implType()     {}
func (Tenum) implType()      {}
func (Tpointer) implType()   {}
func (Tarray) implType()     {}
func (*Tfunction) implType() {}
func (*Tstruct) implType()   {}

// Sizes and alignments (LP64)

func (Tvoid) Size() int64  { return 1 }
func (Tvoid) Align() int64 { return 1 }

func (t Tint) Size() int64 {
	switch t.Width {
	case I16:
		return 2
	case I32:
		return 4
	}
	return 1
}
func (t Tint) Align() int64 { return t.Size() }

func (Tlong) Size() int64  { return 8 }
func (Tlong) Align() int64 { return 8 }

func (t Tfloat) Size() int64 {
	if t.Width == F32 {
		return 4
	}
	return 8
}
func (t Tfloat) Align() int64 { return t.Size() }

func (Tenum) Size() int64  { return 4 }
func (Tenum) Align() int64 { return 4 }

func (Tpointer) Size() int64  { return 8 }
func (Tpointer) Align() int64 { return 8 }

func (t Tarray) Size() int64 {
	if t.Len < 0 {
		return 0
	}
	return t.Elem.Size() * t.Len
}
func (t Tarray) Align() int64 { return t.Elem.Align() }

func (*Tfunction) Size() int64  { return 1 }
func (*Tfunction) Align() int64 { return 1 }

func (t *Tstruct) Size() int64 {
	if !t.complete {
		return -1
	}
	return t.size
}
func (t *Tstruct) Align() int64 {
	if !t.complete {
		return 1
	}
	return t.align
}

// String methods for types
func (Tvoid) String() string { return "void" }

func (t Tint) String() string {
	sign := ""
	if t.Sign == Unsigned {
		sign = "unsigned "
	}
	switch t.Width {
	case I8:
		return sign + "char"
	case I16:
		return sign + "short"
	case I32:
		return sign + "int"
	case IBool:
		return "_Bool"
	}
	return sign + "int"
}

func (t Tlong) String() string {
	if t.Sign == Unsigned {
		return "unsigned long"
	}
	return "long"
}

func (t Tfloat) String() string {
	if t.Width == F32 {
		return "float"
	}
	return "double"
}

func (t Tenum) String() string {
	if t.Name == "" {
		return "enum <anonymous>"
	}
	return "enum " + t.Name
}

func (t Tpointer) String() string {
	if t.Elem == nil {
		return "void *"
	}
	return t.Elem.String() + " *"
}

func (t Tarray) String() string {
	if t.Elem == nil {
		return "?[]"
	}
	if t.Len < 0 {
		return t.Elem.String() + "[]"
	}
	return fmt.Sprintf("%s[%d]", t.Elem, t.Len)
}

func (t *Tfunction) String() string {
	var sb strings.Builder
	sb.WriteString(t.Return.String())
	sb.WriteString("(")
	for i, p := range t.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Type.String())
	}
	if t.VarArg {
		if len(t.Params) > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("...")
	}
	sb.WriteString(")")
	return sb.String()
}

func (t *Tstruct) String() string {
	kw := "struct"
	if t.Union {
		kw = "union"
	}
	if t.Name == "" {
		return kw + " <anonymous>"
	}
	return kw + " " + t.Name
}

// Common type constructors

// Void returns the void type
func Void() Type { return Tvoid{} }

// Bool returns the _Bool type
func Bool() Type { return Tint{Width: IBool, Sign: Unsigned} }

// Char returns a signed char type
func Char() Type { return Tint{Width: I8, Sign: Signed} }

// UChar returns an unsigned char type
func UChar() Type { return Tint{Width: I8, Sign: Unsigned} }

// Short returns a signed short type
func Short() Type { return Tint{Width: I16, Sign: Signed} }

// UShort returns an unsigned short type
func UShort() Type { return Tint{Width: I16, Sign: Unsigned} }

// Int returns a signed 32-bit int type
func Int() Type { return Tint{Width: I32, Sign: Signed} }

// UInt returns an unsigned 32-bit int type
func UInt() Type { return Tint{Width: I32, Sign: Unsigned} }

// Long returns a signed long type
func Long() Type { return Tlong{Sign: Signed} }

// ULong returns an unsigned long type
func ULong() Type { return Tlong{Sign: Unsigned} }

// Float returns a float (32-bit) type
func Float() Type { return Tfloat{Width: F32} }

// Double returns a double (64-bit) type
func Double() Type { return Tfloat{Width: F64} }

// Pointer returns a pointer to the given type
func Pointer(elem Type) Type { return Tpointer{Elem: elem} }

// Array returns an array type
func Array(elem Type, n int64) Type { return Tarray{Elem: elem, Len: n} }

// Func returns a function type
func Func(ret Type, params []Param, vararg bool) *Tfunction {
	return &Tfunction{Return: ret, Params: params, VarArg: vararg}
}

// NewStruct returns an incomplete struct (or union) type for tag name.
func NewStruct(name string, union bool) *Tstruct {
	return &Tstruct{Name: name, Union: union}
}

// IsComplete reports whether the struct body has been seen.
func (t *Tstruct) IsComplete() bool { return t.complete }

// Complete lays out members and marks the type complete. It returns an
// error if the type was already completed.
func (t *Tstruct) Complete(members []*Member) error {
	if t.complete {
		return fmt.Errorf("redefinition of %s", t)
	}
	t.Members = members
	t.align = 1
	var offset int64
	for i, m := range members {
		m.Index = i
		align := m.Align
		if align == 0 {
			align = m.Type.Align()
		}
		if arr, ok := m.Type.(Tarray); ok && arr.Len < 0 && i == len(members)-1 && !t.Union {
			t.Flexible = true
		}
		if t.Union {
			m.Offset = 0
			offset = mathutil.MaxInt64(offset, m.Type.Size())
		} else {
			offset = AlignTo(offset, align)
			m.Offset = offset
			offset += m.Type.Size()
		}
		t.align = mathutil.MaxInt64(t.align, align)
	}
	t.size = AlignTo(offset, t.align)
	t.complete = true
	return nil
}

// Member looks up a member by name.
func (t *Tstruct) Member(name string) *Member {
	for _, m := range t.Members {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// AlignTo rounds n up to the nearest multiple of align.
func AlignTo(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// Base returns the element type of a pointer or array, nil otherwise.
// Pointers and arrays share this field so that subscripting and pointer
// arithmetic treat them alike.
func Base(t Type) Type {
	switch t := t.(type) {
	case Tpointer:
		return t.Elem
	case Tarray:
		return t.Elem
	}
	return nil
}

// IsInteger reports whether t is an integer type (including _Bool and enums).
func IsInteger(t Type) bool {
	switch t.(type) {
	case Tint, Tlong, Tenum:
		return true
	}
	return false
}

// IsFloat reports whether t is float or double.
func IsFloat(t Type) bool {
	_, ok := t.(Tfloat)
	return ok
}

// IsNumeric reports whether t is an arithmetic type.
func IsNumeric(t Type) bool {
	return IsInteger(t) || IsFloat(t)
}

// IsPointer reports whether t is a pointer type.
func IsPointer(t Type) bool {
	_, ok := t.(Tpointer)
	return ok
}

// IsArray reports whether t is an array type.
func IsArray(t Type) bool {
	_, ok := t.(Tarray)
	return ok
}

// IsVoid reports whether t is void.
func IsVoid(t Type) bool {
	_, ok := t.(Tvoid)
	return ok
}

// IsStruct reports whether t is a struct or union.
func IsStruct(t Type) bool {
	_, ok := t.(*Tstruct)
	return ok
}

// IsFunction reports whether t is a function type.
func IsFunction(t Type) bool {
	_, ok := t.(*Tfunction)
	return ok
}

// IsBool reports whether t is _Bool.
func IsBool(t Type) bool {
	ti, ok := t.(Tint)
	return ok && ti.Width == IBool
}

// IsUnsigned reports whether values of t are zero-extended and compared
// unsigned. Pointers compare unsigned.
func IsUnsigned(t Type) bool {
	switch t := t.(type) {
	case Tint:
		return t.Sign == Unsigned
	case Tlong:
		return t.Sign == Unsigned
	case Tpointer:
		return true
	}
	return false
}

// IsScalar reports whether t is an arithmetic or pointer type.
func IsScalar(t Type) bool {
	return IsNumeric(t) || IsPointer(t)
}
