package parser

import (
	"github.com/raymyers/ccx64/pkg/ast"
	"github.com/raymyers/ccx64/pkg/ctypes"
)

// varScope is what an ordinary identifier is bound to: a variable, a
// typedef or an enum constant.
type varScope struct {
	obj     *ast.Obj
	typedef ctypes.Type
	enumTy  ctypes.Type
	enumVal int64
}

// scope is one block level. Struct, union and enum tags live in their own
// namespace.
type scope struct {
	vars map[string]*varScope
	tags map[string]ctypes.Type
}

func (p *Parser) enterScope() {
	p.scopes = append(p.scopes, &scope{
		vars: make(map[string]*varScope),
		tags: make(map[string]ctypes.Type),
	})
}

func (p *Parser) leaveScope() {
	p.scopes = p.scopes[:len(p.scopes)-1]
}

func (p *Parser) curScope() *scope {
	return p.scopes[len(p.scopes)-1]
}

// lookupVar finds the innermost binding of name.
func (p *Parser) lookupVar(name string) *varScope {
	for i := len(p.scopes) - 1; i >= 0; i-- {
		if vs, ok := p.scopes[i].vars[name]; ok {
			return vs
		}
	}
	return nil
}

// lookupCurVar finds name in the innermost scope only.
func (p *Parser) lookupCurVar(name string) *varScope {
	return p.curScope().vars[name]
}

func (p *Parser) lookupTag(name string) ctypes.Type {
	for i := len(p.scopes) - 1; i >= 0; i-- {
		if ty, ok := p.scopes[i].tags[name]; ok {
			return ty
		}
	}
	return nil
}

// pushScope binds name in the innermost scope, shadowing outer bindings.
func (p *Parser) pushScope(name string) *varScope {
	vs := &varScope{}
	p.curScope().vars[name] = vs
	return vs
}

func (p *Parser) pushTag(name string, ty ctypes.Type) {
	p.curScope().tags[name] = ty
}

// findTypedef returns the type a typedef name stands for, or nil.
func (p *Parser) findTypedef(name string) ctypes.Type {
	if vs := p.lookupVar(name); vs != nil {
		return vs.typedef
	}
	return nil
}
