package ctypes

// Equal reports structural type identity. Struct and union types are
// identified by the declaration that created them.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch ta := a.(type) {
	case Tvoid:
		_, ok := b.(Tvoid)
		return ok
	case Tint:
		tb, ok := b.(Tint)
		return ok && ta.Width == tb.Width && ta.Sign == tb.Sign
	case Tlong:
		tb, ok := b.(Tlong)
		return ok && ta.Sign == tb.Sign
	case Tfloat:
		tb, ok := b.(Tfloat)
		return ok && ta.Width == tb.Width
	case Tenum:
		tb, ok := b.(Tenum)
		return ok && ta.Name == tb.Name
	case Tpointer:
		tb, ok := b.(Tpointer)
		return ok && Equal(ta.Elem, tb.Elem)
	case Tarray:
		tb, ok := b.(Tarray)
		return ok && ta.Len == tb.Len && Equal(ta.Elem, tb.Elem)
	case *Tstruct:
		tb, ok := b.(*Tstruct)
		return ok && ta == tb
	case *Tfunction:
		tb, ok := b.(*Tfunction)
		if !ok || ta.VarArg != tb.VarArg || len(ta.Params) != len(tb.Params) {
			return false
		}
		if !Equal(ta.Return, tb.Return) {
			return false
		}
		for i, p := range ta.Params {
			if !Equal(p.Type, tb.Params[i].Type) {
				return false
			}
		}
		return true
	}
	return false
}

// Compatible is a looser identity used for redeclarations: an incomplete
// array matches any array of the same element type.
func Compatible(a, b Type) bool {
	if Equal(a, b) {
		return true
	}
	ta, ok1 := a.(Tarray)
	tb, ok2 := b.(Tarray)
	if ok1 && ok2 && (ta.Len < 0 || tb.Len < 0) {
		return Equal(ta.Elem, tb.Elem)
	}
	return false
}

// Promote applies the integer promotions: anything narrower than int
// becomes int, enums become int.
func Promote(t Type) Type {
	switch t := t.(type) {
	case Tint:
		if t.Width != I32 {
			return Int()
		}
	case Tenum:
		return Int()
	}
	return t
}

// CommonType implements the usual arithmetic conversions. Pointer
// arithmetic takes precedence: if a is a pointer or array the result is a
// pointer to its element type, and a function decays to a pointer to it.
// Floating types dominate integers; otherwise both operands are promoted
// and the wider wins, with ties going to the unsigned side.
func CommonType(a, b Type) Type {
	if elem := Base(a); elem != nil {
		return Pointer(elem)
	}
	if fn, ok := a.(*Tfunction); ok {
		return Pointer(fn)
	}
	if fn, ok := b.(*Tfunction); ok {
		return Pointer(fn)
	}

	fa, aFloat := a.(Tfloat)
	fb, bFloat := b.(Tfloat)
	if aFloat || bFloat {
		if (aFloat && fa.Width == F64) || (bFloat && fb.Width == F64) {
			return Double()
		}
		return Float()
	}

	a, b = Promote(a), Promote(b)
	if a.Size() != b.Size() {
		if a.Size() < b.Size() {
			return b
		}
		return a
	}
	if IsUnsigned(b) {
		return b
	}
	return a
}
