package parser

import (
	"github.com/raymyers/ccx64/pkg/ast"
	"github.com/raymyers/ccx64/pkg/ctypes"
	"github.com/raymyers/ccx64/pkg/diag"
	"github.com/raymyers/ccx64/pkg/lexer"
)

// varAttr holds the storage class and alignment given in a declaration
// specifier.
type varAttr struct {
	isTypedef bool
	isStatic  bool
	isExtern  bool
	isInline  bool
	align     int64
}

// Type specifier counters. Each keyword adds its value; the sum identifies
// the combination, e.g. "unsigned long int" = UNSIGNED + LONG + INT.
const (
	kVoid     = 1 << 0
	kBool     = 1 << 2
	kChar     = 1 << 4
	kShort    = 1 << 6
	kInt      = 1 << 8
	kLong     = 1 << 10
	kFloat    = 1 << 12
	kDouble   = 1 << 14
	kOther    = 1 << 16
	kSigned   = 1 << 17
	kUnsigned = 1 << 18
)

var typenameKeywords = map[string]bool{
	"void": true, "_Bool": true, "char": true, "short": true, "int": true,
	"long": true, "struct": true, "union": true, "typedef": true, "enum": true,
	"static": true, "extern": true, "_Alignas": true, "signed": true,
	"unsigned": true, "const": true, "volatile": true, "auto": true,
	"register": true, "restrict": true, "__restrict": true, "__restrict__": true,
	"_Noreturn": true, "float": true, "double": true, "inline": true, "__inline": true,
}

var qualifiers = map[string]bool{
	"const": true, "volatile": true, "auto": true, "register": true,
	"restrict": true, "__restrict": true, "__restrict__": true, "_Noreturn": true,
}

// isTypename reports whether tok starts a type.
func (p *Parser) isTypename(tok *lexer.Token) bool {
	switch tok.Kind {
	case lexer.Keyword:
		return typenameKeywords[tok.Text]
	case lexer.Ident:
		return p.findTypedef(tok.Text) != nil
	}
	return false
}

// declspec parses a sequence of type specifiers, qualifiers and storage
// classes. attr is nil where storage classes are not allowed.
func (p *Parser) declspec(attr *varAttr) ctypes.Type {
	counter := 0
	ty := ctypes.Int()

loop:
	for p.isTypename(p.tok()) {
		tok := p.tok()

		switch {
		case tok.Is("typedef"), tok.Is("static"), tok.Is("extern"), tok.Is("inline"), tok.Is("__inline"):
			if attr == nil {
				p.errorf(tok, "storage class specifier is not allowed in this context")
			}
			switch tok.Text {
			case "typedef":
				attr.isTypedef = true
			case "static":
				attr.isStatic = true
			case "extern":
				attr.isExtern = true
			default:
				attr.isInline = true
			}
			if attr.isTypedef && (attr.isStatic || attr.isExtern || attr.isInline) {
				p.errorf(tok, "typedef may not be used together with static, extern or inline")
			}
			p.pos++
			continue

		case qualifiers[tok.Text] && tok.Kind == lexer.Keyword:
			p.pos++
			continue

		case tok.Is("_Alignas"):
			if attr == nil {
				p.errorf(tok, "_Alignas is not allowed in this context")
			}
			p.pos++
			p.skip("(")
			if p.isTypename(p.tok()) {
				attr.align = p.typename().Align()
			} else {
				attr.align = p.constExpr()
			}
			p.skip(")")
			continue
		}

		// struct, union, enum and typedef names stand alone.
		typedef := ctypes.Type(nil)
		if tok.Kind == lexer.Ident {
			typedef = p.findTypedef(tok.Text)
		}
		if tok.Is("struct") || tok.Is("union") || tok.Is("enum") || typedef != nil {
			if counter != 0 {
				break loop
			}
			p.pos++
			switch {
			case tok.Is("struct"):
				ty = p.structDecl(false)
			case tok.Is("union"):
				ty = p.structDecl(true)
			case tok.Is("enum"):
				ty = p.enumSpecifier()
			default:
				ty = typedef
			}
			counter += kOther
			continue
		}

		switch tok.Text {
		case "void":
			counter += kVoid
		case "_Bool":
			counter += kBool
		case "char":
			counter += kChar
		case "short":
			counter += kShort
		case "int":
			counter += kInt
		case "long":
			counter += kLong
		case "float":
			counter += kFloat
		case "double":
			counter += kDouble
		case "signed":
			counter |= kSigned
		case "unsigned":
			counter |= kUnsigned
		}

		switch counter {
		case kVoid:
			ty = ctypes.Void()
		case kBool:
			ty = ctypes.Bool()
		case kChar, kSigned + kChar:
			ty = ctypes.Char()
		case kUnsigned + kChar:
			ty = ctypes.UChar()
		case kShort, kShort + kInt, kSigned + kShort, kSigned + kShort + kInt:
			ty = ctypes.Short()
		case kUnsigned + kShort, kUnsigned + kShort + kInt:
			ty = ctypes.UShort()
		case kInt, kSigned, kSigned + kInt:
			ty = ctypes.Int()
		case kUnsigned, kUnsigned + kInt:
			ty = ctypes.UInt()
		case kLong, kLong + kInt, kLong + kLong, kLong + kLong + kInt,
			kSigned + kLong, kSigned + kLong + kInt, kSigned + kLong + kLong, kSigned + kLong + kLong + kInt:
			ty = ctypes.Long()
		case kUnsigned + kLong, kUnsigned + kLong + kInt, kUnsigned + kLong + kLong, kUnsigned + kLong + kLong + kInt:
			ty = ctypes.ULong()
		case kFloat:
			ty = ctypes.Float()
		case kDouble, kLong + kDouble:
			ty = ctypes.Double()
		default:
			p.errorf(tok, "invalid type")
		}
		p.pos++
	}
	return ty
}

// pointers parses ("*" qualifier*)*.
func (p *Parser) pointers(ty ctypes.Type) ctypes.Type {
	for p.consume("*") {
		for qualifiers[p.tok().Text] && p.tok().Kind == lexer.Keyword {
			p.pos++
		}
		ty = ctypes.Pointer(ty)
	}
	return ty
}

// declarator parses a possibly abstract declarator and returns the
// declared type and the name token, nil when abstract.
//
//	declarator = pointers ("(" declarator ")" | ident?) type-suffix
func (p *Parser) declarator(ty ctypes.Type) (ctypes.Type, *lexer.Token) {
	ty = p.pointers(ty)

	if p.is("(") && !p.isTypename(p.peek(1)) && !p.peek(1).Is(")") {
		// The suffix after the parentheses applies first: parse the inner
		// declarator once to skip it, read the suffix, then parse it again
		// with the completed type.
		start := p.pos
		p.pos++
		p.declarator(ctypes.Int())
		p.skip(")")
		ty = p.typeSuffix(ty)
		end := p.pos

		p.pos = start + 1
		ty, name := p.declarator(ty)
		p.skip(")")
		p.pos = end
		return ty, name
	}

	var name *lexer.Token
	if p.tok().Kind == lexer.Ident {
		name = p.next()
	}
	return p.typeSuffix(ty), name
}

// typename parses a type name as used by casts, sizeof and _Alignas.
func (p *Parser) typename() ctypes.Type {
	ty, _ := p.declarator(p.declspec(nil))
	return ty
}

// typeSuffix = "(" func-params | "[" array-dimensions | ε
func (p *Parser) typeSuffix(ty ctypes.Type) ctypes.Type {
	if p.consume("(") {
		return p.funcParams(ty)
	}
	if p.consume("[") {
		return p.arrayDimensions(ty)
	}
	return ty
}

func (p *Parser) arrayDimensions(ty ctypes.Type) ctypes.Type {
	for p.is("static") || p.is("restrict") || p.is("const") {
		p.pos++
	}
	if p.consume("]") {
		return ctypes.Array(p.typeSuffix(ty), -1)
	}
	tok := p.tok()
	n := p.constExpr()
	if n < 0 {
		p.errorf(tok, "array size is negative")
	}
	p.skip("]")
	return ctypes.Array(p.typeSuffix(ty), n)
}

// funcParams parses a parameter list after "(". An empty list declares a
// function without a prototype, which accepts any arguments.
func (p *Parser) funcParams(ret ctypes.Type) ctypes.Type {
	if p.is("void") && p.peek(1).Is(")") {
		p.pos += 2
		return ctypes.Func(ret, nil, false)
	}

	var params []ctypes.Param
	vararg := false
	for !p.consume(")") {
		if len(params) > 0 {
			p.skip(",")
		}
		if p.consume("...") {
			vararg = true
			p.skip(")")
			break
		}
		tok := p.tok()
		ty, name := p.declarator(p.declspec(nil))
		switch t := ty.(type) {
		case ctypes.Tarray:
			ty = ctypes.Pointer(t.Elem)
		case *ctypes.Tfunction:
			ty = ctypes.Pointer(t)
		case ctypes.Tvoid:
			p.errorf(tok, "parameter has void type")
		}
		param := ctypes.Param{Type: ty}
		if name != nil {
			param.Name = name.Text
		}
		params = append(params, param)
	}
	if len(params) == 0 {
		vararg = true
	}
	switch ret.(type) {
	case ctypes.Tarray:
		p.errorf(p.tok(), "function cannot return an array")
	case *ctypes.Tfunction:
		p.errorf(p.tok(), "function cannot return a function")
	}
	return ctypes.Func(ret, params, vararg)
}

// structDecl parses a struct or union specifier after the keyword.
func (p *Parser) structDecl(union bool) ctypes.Type {
	kind := "struct"
	if union {
		kind = "union"
	}

	var tag *lexer.Token
	if p.tok().Kind == lexer.Ident {
		tag = p.next()
	}

	if tag != nil && !p.is("{") {
		if ty := p.lookupTag(tag.Text); ty != nil {
			st, ok := ty.(*ctypes.Tstruct)
			if !ok || st.Union != union {
				p.errorf(tag, "'%s' defined as wrong kind of tag", tag.Text)
			}
			return st
		}
		st := ctypes.NewStruct(tag.Text, union)
		p.pushTag(tag.Text, st)
		return st
	}

	brace := p.skip("{")
	var st *ctypes.Tstruct
	if tag != nil {
		// A forward declaration in the same scope is completed in place.
		if ty, ok := p.curScope().tags[tag.Text]; ok {
			old, isStruct := ty.(*ctypes.Tstruct)
			if !isStruct || old.Union != union {
				p.errorf(tag, "'%s' defined as wrong kind of tag", tag.Text)
			}
			if old.IsComplete() {
				p.errorf(tag, "redefinition of '%s %s'", kind, tag.Text)
			}
			st = old
		}
	}
	if st == nil {
		name := ""
		if tag != nil {
			name = tag.Text
			st = ctypes.NewStruct(name, union)
			p.pushTag(name, st)
		} else {
			st = ctypes.NewStruct(name, union)
		}
	}

	members := p.structMembers(st)
	if err := st.Complete(members); err != nil {
		p.errorf(brace, "%v", err)
	}
	return st
}

func (p *Parser) structMembers(st *ctypes.Tstruct) []*ctypes.Member {
	var members []*ctypes.Member
	for !p.consume("}") {
		attr := &varAttr{}
		tok := p.tok()
		basety := p.declspec(attr)

		// Anonymous struct or union member.
		if inner, ok := basety.(*ctypes.Tstruct); ok && p.consume(";") {
			members = append(members, &ctypes.Member{Type: inner, Align: attr.align})
			continue
		}

		for first := true; !p.consume(";"); first = false {
			if !first {
				p.skip(",")
			}
			ty, name := p.declarator(basety)
			if name == nil {
				p.errorf(tok, "member name omitted")
			}
			if s, ok := ty.(*ctypes.Tstruct); ok && !s.IsComplete() {
				p.errorf(name, "field '%s' has incomplete type", name.Text)
			}
			if m := findMember(members, name.Text); m != nil {
				p.errorf(name, "duplicate member '%s'", name.Text)
			}
			members = append(members, &ctypes.Member{Name: name.Text, Type: ty, Align: attr.align})
		}
	}
	for i, m := range members {
		if arr, ok := m.Type.(ctypes.Tarray); ok && arr.Len < 0 && (i != len(members)-1 || st.Union) {
			p.errorf(p.peek(-1), "flexible array member '%s' is not at the end of a struct", m.Name)
		}
	}
	return members
}

func findMember(members []*ctypes.Member, name string) *ctypes.Member {
	for _, m := range members {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// lookupMember finds name in st, descending into anonymous members. It
// returns the path of members from st to the field.
func lookupMember(st *ctypes.Tstruct, name string) []*ctypes.Member {
	for _, m := range st.Members {
		if m.Name == name {
			return []*ctypes.Member{m}
		}
		if inner, ok := m.Type.(*ctypes.Tstruct); ok && m.Name == "" {
			if path := lookupMember(inner, name); path != nil {
				return append([]*ctypes.Member{m}, path...)
			}
		}
	}
	return nil
}

// enumSpecifier parses an enum specifier after the keyword.
func (p *Parser) enumSpecifier() ctypes.Type {
	var tag *lexer.Token
	if p.tok().Kind == lexer.Ident {
		tag = p.next()
	}

	if tag != nil && !p.is("{") {
		ty := p.lookupTag(tag.Text)
		if ty == nil {
			p.errorf(tag, "unknown enum type")
		}
		if _, ok := ty.(ctypes.Tenum); !ok {
			p.errorf(tag, "'%s' defined as wrong kind of tag", tag.Text)
		}
		return ty
	}

	ty := ctypes.Tenum{}
	if tag != nil {
		ty.Name = tag.Text
	}
	p.skip("{")
	var val int64
	for first := true; !p.consumeEnd(); first = false {
		if !first {
			p.skip(",")
		}
		name := p.ident()
		if p.consume("=") {
			val = p.constExpr()
		}
		vs := p.pushScope(name.Text)
		vs.enumTy = ty
		vs.enumVal = val
		val++
	}
	if tag != nil {
		p.pushTag(tag.Text, ty)
	}
	return ty
}

// parseTypedef binds each declarator of a typedef declaration.
func (p *Parser) parseTypedef(basety ctypes.Type) {
	for first := true; !p.consume(";"); first = false {
		if !first {
			p.skip(",")
		}
		tok := p.tok()
		ty, name := p.declarator(basety)
		if name == nil {
			p.errorf(tok, "typedef name omitted")
		}
		p.pushScope(name.Text).typedef = ty
	}
}

// isFunction looks ahead to decide whether the declaration being parsed
// declares a function.
func (p *Parser) isFunction() bool {
	if p.is(";") {
		return false
	}
	start := p.pos
	ty, _ := p.declarator(ctypes.Int())
	p.pos = start
	return ctypes.IsFunction(ty)
}

// function parses a function declaration or definition after its
// declaration specifier.
func (p *Parser) function(basety ctypes.Type, attr *varAttr) {
	tok := p.tok()
	ty, name := p.declarator(basety)
	if name == nil {
		p.errorf(tok, "function name omitted")
	}
	fnTy := ty.(*ctypes.Tfunction)

	fn := p.newGlobal(name.Text, ty, name)
	if attr.isStatic {
		fn.IsStatic = true
	}
	if p.consume(";") {
		return
	}
	if len(p.scopes) > 1 {
		p.errorf(name, "function definition is not allowed here")
	}
	if fn.IsDefinition {
		p.errorf(name, "redefinition of '%s'", name.Text)
	}
	fn.IsDefinition = true
	fn.Ty = ty
	fn.Tok = name

	p.fn = fn
	p.locals = nil
	p.gotos = nil
	p.labels = nil
	p.enterScope()

	for _, param := range fnTy.Params {
		if param.Name == "" {
			p.errorf(name, "parameter name omitted")
		}
		v := p.newLocal(param.Name, param.Type, name)
		fn.Params = append(fn.Params, v)
	}
	if fnTy.VarArg && len(fnTy.Params) > 0 {
		fn.VaArea = p.newLocal("__va_area__", ctypes.Array(ctypes.Char(), VaAreaSize), name)
	}

	brace := p.skip("{")
	p.funcName = nil
	fn.Body = p.compoundStmt(brace)
	p.leaveScope()
	p.resolveGotoLabels()
	addTypes(fn.Body)
	fn.Locals = p.locals
	p.warnUnused(fn)
	p.fn = nil
}

// VaAreaSize is the size of the register save area of variadic functions:
// the va_list element (24 bytes), 6 general purpose registers and 8 SSE
// registers of 16 bytes each.
const VaAreaSize = 24 + 6*8 + 8*16

func (p *Parser) resolveGotoLabels() {
	for _, g := range p.gotos {
		for _, l := range p.labels {
			if g.Name == l.Name {
				g.Label = l.Label
				break
			}
		}
		if g.Label == "" {
			p.errorf(g.Tok, "use of undeclared label '%s'", g.Name)
		}
	}
	p.gotos, p.labels = nil, nil
}

func (p *Parser) warnUnused(fn *ast.Obj) {
	params := make(map[*ast.Obj]bool)
	for _, v := range fn.Params {
		params[v] = true
	}
	for _, v := range fn.Locals {
		if v.Name == "" || v == fn.VaArea || params[v] || v.Used {
			continue
		}
		p.warnf(diag.WarnAll, v.Tok, "unused variable '%s'", v.Name)
	}
}

// globalVariable parses the declarators of a file-scope declaration.
func (p *Parser) globalVariable(basety ctypes.Type, attr *varAttr) {
	for first := true; !p.consume(";"); first = false {
		if !first {
			p.skip(",")
		}
		tok := p.tok()
		ty, name := p.declarator(basety)
		if name == nil {
			p.errorf(tok, "variable name omitted")
		}
		if ctypes.IsVoid(ty) {
			p.errorf(name, "variable declared void")
		}

		v := p.newGlobal(name.Text, ty, name)
		if attr.isStatic {
			v.IsStatic = true
		}
		if attr.align != 0 {
			v.Align = attr.align
		}
		if !attr.isExtern {
			v.IsDefinition = true
		}
		if p.consume("=") {
			if v.InitData != nil {
				p.errorf(name, "redefinition of '%s'", name.Text)
			}
			p.globalInitializer(v)
		}
	}
}

// declaration parses a block-scope declaration and returns the statements
// that initialise its variables.
func (p *Parser) declaration(basety ctypes.Type, attr *varAttr) *ast.Block {
	block := &ast.Block{StmtInfo: ast.StmtInfo{Tok: p.tok()}}
	for first := true; !p.consume(";"); first = false {
		if !first {
			p.skip(",")
		}
		tok := p.tok()
		ty, name := p.declarator(basety)
		if name == nil {
			p.errorf(tok, "variable name omitted")
		}
		if ctypes.IsVoid(ty) {
			p.errorf(name, "variable declared void")
		}
		isExtern := attr != nil && attr.isExtern
		if prev := p.lookupCurVar(name.Text); prev != nil && !(isExtern && isExternDecl(prev, name.Text)) {
			p.errorf(name, "redefinition of '%s'", name.Text)
		}

		if attr != nil && attr.isStatic {
			v := p.newAnonGlobal(ty, name)
			p.pushScope(name.Text).obj = v
			if attr.align != 0 {
				v.Align = attr.align
			}
			if p.consume("=") {
				p.globalInitializer(v)
			}
			continue
		}
		if isExtern {
			p.newGlobal(name.Text, ty, name)
			continue
		}

		v := p.newLocal(name.Text, ty, name)
		if attr != nil && attr.align != 0 {
			v.Align = attr.align
		}
		if p.consume("=") {
			init := p.localInitializer(v)
			block.Body = append(block.Body, &ast.ExprStmt{StmtInfo: ast.StmtInfo{Tok: name}, X: init})
		}
		if isIncomplete(v.Ty) {
			p.errorf(name, "variable has incomplete type")
		}
	}
	return block
}

// isExternDecl reports whether vs binds name to a file-scope object, as a
// block-scope extern declaration does. Static locals are bound under a
// generated name.
func isExternDecl(vs *varScope, name string) bool {
	return vs.obj != nil && !vs.obj.IsLocal && vs.obj.Name == name
}

func isIncomplete(ty ctypes.Type) bool {
	switch t := ty.(type) {
	case ctypes.Tarray:
		return t.Len < 0
	case *ctypes.Tstruct:
		return !t.IsComplete()
	}
	return false
}
