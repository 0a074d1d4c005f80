package parser

import (
	"encoding/binary"
	"math"

	"github.com/raymyers/ccx64/pkg/ast"
	"github.com/raymyers/ccx64/pkg/ctypes"
	"github.com/raymyers/ccx64/pkg/diag"
	"github.com/raymyers/ccx64/pkg/lexer"
)

// initializer is the parsed form of a brace initializer, shaped like the
// type it initialises. Aggregates have one child per element or member;
// scalars have an expression, or none when left zero.
type initializer struct {
	ty       ctypes.Type
	tok      *lexer.Token
	flexible bool // incomplete array sized by the initializer

	expr     ast.Expr
	children []*initializer
	mem      *ctypes.Member // union member being initialised
}

func newInitializer(ty ctypes.Type, flexible bool) *initializer {
	init := &initializer{ty: ty}
	switch t := ty.(type) {
	case ctypes.Tarray:
		if t.Len < 0 {
			init.flexible = flexible
			return init
		}
		init.children = make([]*initializer, t.Len)
		for i := range init.children {
			init.children[i] = newInitializer(t.Elem, false)
		}
	case *ctypes.Tstruct:
		init.children = make([]*initializer, len(t.Members))
		for i, m := range t.Members {
			init.children[i] = newInitializer(m.Type, false)
		}
	}
	return init
}

// initializer parses an initializer for ty. The returned type differs from
// ty when ty is an array of unknown length.
func (p *Parser) initializer(ty ctypes.Type) (*initializer, ctypes.Type) {
	if s, ok := ty.(*ctypes.Tstruct); ok && !s.IsComplete() {
		p.errorf(p.tok(), "variable has incomplete type '%s'", s)
	}
	init := newInitializer(ty, true)
	p.initializer2(init)
	return init, init.ty
}

func (p *Parser) initializer2(init *initializer) {
	init.tok = p.tok()
	switch t := init.ty.(type) {
	case ctypes.Tarray:
		if p.tok().Kind == lexer.Str && ctypes.IsInteger(t.Elem) && t.Elem.Size() == 1 {
			p.stringInitializer(init)
			return
		}
		if p.is("{") {
			p.arrayInitializer1(init)
		} else {
			p.arrayInitializer2(init)
		}
		return

	case *ctypes.Tstruct:
		if t.Union {
			p.unionInitializer(init)
			return
		}
		if p.is("{") {
			p.structInitializer1(init)
			return
		}
		// A struct may be initialised from an expression of the same type.
		start := p.pos
		e := p.assign()
		AddType(e)
		if ctypes.IsStruct(e.Type()) {
			init.expr = e
			return
		}
		p.pos = start
		p.structInitializer2(init)
		return
	}

	if p.consume("{") {
		p.initializer2(init)
		p.skip("}")
		return
	}
	init.expr = p.assign()
}

func (p *Parser) stringInitializer(init *initializer) {
	tok := p.tok()
	data := p.stringData()
	if init.flexible {
		*init = *newInitializer(ctypes.Array(ctypes.Base(init.ty), int64(len(data))), false)
		init.tok = tok
	}
	for i := 0; i < len(init.children) && i < len(data); i++ {
		init.children[i].expr = newNum(int64(int8(data[i])), tok)
	}
}

// countArrayInitElements returns the number of elements of the brace list
// (or unbraced run) at the cursor without consuming it.
func (p *Parser) countArrayInitElements(elem ctypes.Type) int64 {
	start := p.pos
	defer func() { p.pos = start }()

	dummy := newInitializer(elem, false)
	var n int64
	for ; !p.isEnd(); n++ {
		if n > 0 {
			p.skip(",")
		}
		if p.atEOF() {
			p.errorf(p.tok(), "expected '}'")
		}
		p.initializer2(dummy)
	}
	return n
}

func (p *Parser) resizeFlexible(init *initializer) {
	if !init.flexible {
		return
	}
	elem := ctypes.Base(init.ty)
	n := p.countArrayInitElements(elem)
	tok := init.tok
	*init = *newInitializer(ctypes.Array(elem, n), false)
	init.tok = tok
}

// arrayInitializer1 = "{" initializer ("," initializer)* ","? "}"
func (p *Parser) arrayInitializer1(init *initializer) {
	p.skip("{")
	p.resizeFlexible(init)
	for i := 0; !p.consumeEnd(); i++ {
		if i > 0 {
			p.skip(",")
		}
		if i < len(init.children) {
			p.initializer2(init.children[i])
		} else {
			p.skipExcessElement()
		}
	}
}

// arrayInitializer2 = initializer ("," initializer)*
func (p *Parser) arrayInitializer2(init *initializer) {
	p.resizeFlexible(init)
	for i := 0; i < len(init.children) && !p.isEnd(); i++ {
		if i > 0 {
			p.skip(",")
		}
		p.initializer2(init.children[i])
	}
}

// structInitializer1 = "{" initializer ("," initializer)* ","? "}"
func (p *Parser) structInitializer1(init *initializer) {
	p.skip("{")
	for i := 0; !p.consumeEnd(); i++ {
		if i > 0 {
			p.skip(",")
		}
		if i < len(init.children) {
			p.initializer2(init.children[i])
		} else {
			p.skipExcessElement()
		}
	}
}

// structInitializer2 = initializer ("," initializer)*
func (p *Parser) structInitializer2(init *initializer) {
	for i := 0; i < len(init.children) && !p.isEnd(); i++ {
		if i > 0 {
			p.skip(",")
		}
		p.initializer2(init.children[i])
	}
}

// unionInitializer initialises the first member of a union.
func (p *Parser) unionInitializer(init *initializer) {
	st := init.ty.(*ctypes.Tstruct)
	if len(st.Members) == 0 {
		p.skip("{")
		p.skip("}")
		return
	}
	init.mem = st.Members[0]
	if p.consume("{") {
		p.initializer2(init.children[0])
		p.consume(",")
		p.skip("}")
		return
	}
	p.initializer2(init.children[0])
}

func (p *Parser) skipExcessElement() {
	p.warnf(diag.WarnDefault, p.tok(), "excess elements in initializer")
	p.skipExcess()
}

func (p *Parser) skipExcess() {
	if p.consume("{") {
		for i := 0; !p.consumeEnd(); i++ {
			if i > 0 {
				p.skip(",")
			}
			p.skipExcess()
		}
		return
	}
	p.assign()
}

// localInitializer parses the initializer of v and lowers it to an
// expression that zeroes v and then assigns each initialised element.
func (p *Parser) localInitializer(v *ast.Obj) ast.Expr {
	tok := p.tok()
	init, ty := p.initializer(v.Ty)
	v.Ty = ty

	var e ast.Expr = &ast.MemZero{ExprInfo: at(tok), Var: v}
	base := func() ast.Expr { return newVar(v, tok) }
	for _, assign := range p.localInitAssigns(init, v.Ty, base, tok) {
		e = &ast.Comma{ExprInfo: at(tok), LHS: e, RHS: assign}
	}
	return e
}

// localInitAssigns returns the assignments storing init into the object
// designated by lhs.
func (p *Parser) localInitAssigns(init *initializer, ty ctypes.Type, lhs func() ast.Expr, tok *lexer.Token) []ast.Expr {
	switch t := ty.(type) {
	case ctypes.Tarray:
		var out []ast.Expr
		for i, child := range init.children {
			i := int64(i)
			elem := func() ast.Expr {
				return &ast.Deref{ExprInfo: at(tok), X: p.newAdd(lhs(), newNum(i, tok), tok)}
			}
			out = append(out, p.localInitAssigns(child, t.Elem, elem, tok)...)
		}
		return out

	case *ctypes.Tstruct:
		if init.expr != nil {
			break
		}
		members := t.Members
		if t.Union {
			if init.mem == nil {
				return nil
			}
			members = []*ctypes.Member{init.mem}
		}
		var out []ast.Expr
		for _, m := range members {
			m := m
			field := func() ast.Expr {
				x := lhs()
				AddType(x)
				return &ast.Member{ExprInfo: typed(tok, m.Type), X: x, Mem: m}
			}
			out = append(out, p.localInitAssigns(init.children[m.Index], m.Type, field, tok)...)
		}
		return out
	}

	if init.expr == nil {
		return nil
	}
	return []ast.Expr{&ast.Assign{ExprInfo: at(tok), LHS: lhs(), RHS: init.expr}}
}

// globalInitializer parses the initializer of the global v and evaluates
// it to bytes and relocations.
func (p *Parser) globalInitializer(v *ast.Obj) {
	init, ty := p.initializer(v.Ty)
	v.Ty = ty
	buf := make([]byte, ty.Size())
	v.Rels = p.writeGlobalData(nil, init, ty, buf, 0)
	v.InitData = buf
}

func (p *Parser) writeGlobalData(rels []ast.Reloc, init *initializer, ty ctypes.Type, buf []byte, offset int64) []ast.Reloc {
	switch t := ty.(type) {
	case ctypes.Tarray:
		size := t.Elem.Size()
		for i, child := range init.children {
			rels = p.writeGlobalData(rels, child, t.Elem, buf, offset+size*int64(i))
		}
		return rels

	case *ctypes.Tstruct:
		if init.expr != nil {
			p.errorf(init.tok, "initializer element is not a compile-time constant")
		}
		if t.Union {
			if init.mem == nil {
				return rels
			}
			return p.writeGlobalData(rels, init.children[init.mem.Index], init.mem.Type, buf, offset)
		}
		for _, m := range t.Members {
			rels = p.writeGlobalData(rels, init.children[m.Index], m.Type, buf, offset+m.Offset)
		}
		return rels
	}

	if init.expr == nil {
		return rels
	}

	if f, ok := ty.(ctypes.Tfloat); ok {
		val := p.evalDouble(init.expr)
		if f.Width == ctypes.F32 {
			binary.LittleEndian.PutUint32(buf[offset:], math.Float32bits(float32(val)))
		} else {
			binary.LittleEndian.PutUint64(buf[offset:], math.Float64bits(val))
		}
		return rels
	}

	var label string
	val := p.eval2(init.expr, &label)
	if label == "" {
		writeInt(buf[offset:], val, ty.Size())
		return rels
	}
	return append(rels, ast.Reloc{Offset: offset, Label: label, Addend: val})
}

func writeInt(buf []byte, val, size int64) {
	switch size {
	case 1:
		buf[0] = byte(val)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(val))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(val))
	default:
		binary.LittleEndian.PutUint64(buf, uint64(val))
	}
}
