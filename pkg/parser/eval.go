package parser

import (
	"github.com/raymyers/ccx64/pkg/ast"
	"github.com/raymyers/ccx64/pkg/ctypes"
)

// constExpr parses a conditional expression and evaluates it at compile
// time.
func (p *Parser) constExpr() int64 {
	return p.eval(p.conditional())
}

func (p *Parser) eval(e ast.Expr) int64 {
	return p.eval2(e, nil)
}

// eval2 evaluates a constant expression. A constant expression is either
// a number or ptr+n where ptr is the address of a global; in the latter
// case *label receives the global's name. label is nil where addresses are
// not allowed.
func (p *Parser) eval2(e ast.Expr, label *string) int64 {
	AddType(e)
	if ctypes.IsFloat(e.Type()) {
		return int64(p.evalDouble(e))
	}

	switch e := e.(type) {
	case *ast.Binary:
		switch e.Op {
		case ast.Add:
			return p.eval2(e.LHS, label) + p.eval(e.RHS)
		case ast.Sub:
			return p.eval2(e.LHS, label) - p.eval(e.RHS)
		case ast.Mul:
			return p.eval(e.LHS) * p.eval(e.RHS)
		case ast.Div, ast.Mod:
			l, r := p.eval(e.LHS), p.eval(e.RHS)
			if r == 0 {
				p.errorf(e.Tok, "division by zero in constant expression")
			}
			unsigned := ctypes.IsUnsigned(e.Ty)
			switch {
			case e.Op == ast.Div && unsigned:
				return int64(uint64(l) / uint64(r))
			case e.Op == ast.Div:
				return l / r
			case unsigned:
				return int64(uint64(l) % uint64(r))
			}
			return l % r
		case ast.BitAnd:
			return p.eval(e.LHS) & p.eval(e.RHS)
		case ast.BitOr:
			return p.eval(e.LHS) | p.eval(e.RHS)
		case ast.BitXor:
			return p.eval(e.LHS) ^ p.eval(e.RHS)
		case ast.Shl:
			return p.eval(e.LHS) << uint64(p.eval(e.RHS))
		case ast.Shr:
			l, r := p.eval(e.LHS), uint64(p.eval(e.RHS))
			if ctypes.IsUnsigned(e.Ty) && e.Ty.Size() == 8 {
				return int64(uint64(l) >> r)
			}
			return l >> r
		case ast.Eq:
			return boolVal(p.eval(e.LHS) == p.eval(e.RHS))
		case ast.Ne:
			return boolVal(p.eval(e.LHS) != p.eval(e.RHS))
		case ast.Lt:
			l, r := p.eval(e.LHS), p.eval(e.RHS)
			if ctypes.IsUnsigned(e.LHS.Type()) {
				return boolVal(uint64(l) < uint64(r))
			}
			return boolVal(l < r)
		case ast.Le:
			l, r := p.eval(e.LHS), p.eval(e.RHS)
			if ctypes.IsUnsigned(e.LHS.Type()) {
				return boolVal(uint64(l) <= uint64(r))
			}
			return boolVal(l <= r)
		case ast.LogAnd:
			return boolVal(p.eval(e.LHS) != 0 && p.eval(e.RHS) != 0)
		case ast.LogOr:
			return boolVal(p.eval(e.LHS) != 0 || p.eval(e.RHS) != 0)
		}

	case *ast.Unary:
		switch e.Op {
		case ast.Neg:
			return -p.eval(e.X)
		case ast.Not:
			return boolVal(p.eval(e.X) == 0)
		case ast.BitNot:
			return ^p.eval(e.X)
		}

	case *ast.Cond:
		if p.eval(e.Cond) != 0 {
			return p.eval2(e.Then, label)
		}
		return p.eval2(e.Else, label)

	case *ast.Comma:
		return p.eval2(e.RHS, label)

	case *ast.Cast:
		var val int64
		if ctypes.IsFloat(e.X.Type()) {
			val = int64(p.evalDouble(e.X))
		} else {
			val = p.eval2(e.X, label)
		}
		if ctypes.IsInteger(e.Ty) {
			return truncate(val, e.Ty)
		}
		return val

	case *ast.Addr:
		return p.evalRVal(e.X, label)

	case *ast.Member:
		if label == nil {
			p.errorf(e.Tok, "not a compile-time constant")
		}
		if !ctypes.IsArray(e.Ty) {
			p.errorf(e.Tok, "invalid initializer")
		}
		return p.evalRVal(e.X, label) + e.Mem.Offset

	case *ast.Var:
		if label == nil {
			p.errorf(e.Tok, "not a compile-time constant")
		}
		if !ctypes.IsArray(e.Obj.Ty) && !ctypes.IsFunction(e.Obj.Ty) {
			p.errorf(e.Tok, "invalid initializer")
		}
		if e.Obj.IsLocal {
			p.errorf(e.Tok, "not a compile-time constant")
		}
		*label = e.Obj.Name
		return 0

	case *ast.Num:
		return e.Val
	}

	p.errorf(e.Pos(), "not a compile-time constant")
	return 0
}

// evalRVal evaluates the address of an lvalue in a constant expression.
func (p *Parser) evalRVal(e ast.Expr, label *string) int64 {
	switch e := e.(type) {
	case *ast.Var:
		if e.Obj.IsLocal || label == nil {
			p.errorf(e.Tok, "not a compile-time constant")
		}
		*label = e.Obj.Name
		return 0
	case *ast.Deref:
		return p.eval2(e.X, label)
	case *ast.Member:
		return p.evalRVal(e.X, label) + e.Mem.Offset
	}
	p.errorf(e.Pos(), "invalid initializer")
	return 0
}

func (p *Parser) evalDouble(e ast.Expr) float64 {
	AddType(e)
	if ctypes.IsInteger(e.Type()) {
		if ctypes.IsUnsigned(e.Type()) {
			return float64(uint64(p.eval(e)))
		}
		return float64(p.eval(e))
	}

	switch e := e.(type) {
	case *ast.Binary:
		l, r := p.evalDouble(e.LHS), p.evalDouble(e.RHS)
		switch e.Op {
		case ast.Add:
			return l + r
		case ast.Sub:
			return l - r
		case ast.Mul:
			return l * r
		case ast.Div:
			return l / r
		}
	case *ast.Unary:
		if e.Op == ast.Neg {
			return -p.evalDouble(e.X)
		}
	case *ast.Cond:
		if p.evalDouble(e.Cond) != 0 {
			return p.evalDouble(e.Then)
		}
		return p.evalDouble(e.Else)
	case *ast.Comma:
		return p.evalDouble(e.RHS)
	case *ast.Cast:
		if ctypes.IsFloat(e.X.Type()) {
			v := p.evalDouble(e.X)
			if ctypes.Equal(e.Ty, ctypes.Float()) {
				return float64(float32(v))
			}
			return v
		}
		return p.evalDouble(e.X)
	case *ast.Num:
		return e.FVal
	}
	p.errorf(e.Pos(), "not a compile-time constant")
	return 0
}

// truncate converts val to the width and signedness of the integer type ty.
func truncate(val int64, ty ctypes.Type) int64 {
	unsigned := ctypes.IsUnsigned(ty)
	if ctypes.IsBool(ty) {
		return boolVal(val != 0)
	}
	switch ty.Size() {
	case 1:
		if unsigned {
			return int64(uint8(val))
		}
		return int64(int8(val))
	case 2:
		if unsigned {
			return int64(uint16(val))
		}
		return int64(int16(val))
	case 4:
		if unsigned {
			return int64(uint32(val))
		}
		return int64(int32(val))
	}
	return val
}

func boolVal(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
