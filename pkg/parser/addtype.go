package parser

import (
	"github.com/raymyers/ccx64/pkg/ast"
	"github.com/raymyers/ccx64/pkg/ctypes"
)

// AddType assigns a type to e and its operands, inserting the implicit
// conversions C requires. Nodes that already have a type are left alone, so
// AddType can be called any number of times. Type errors are raised as
// *diag.Error panics.
func AddType(e ast.Expr) {
	if e == nil || e.Type() != nil {
		return
	}

	switch e := e.(type) {
	case *ast.Binary:
		AddType(e.LHS)
		AddType(e.RHS)
		switch e.Op {
		case ast.Add, ast.Sub, ast.Mul, ast.Div:
			e.Ty = usualArithConv(e, &e.LHS, &e.RHS)
		case ast.Mod, ast.BitAnd, ast.BitOr, ast.BitXor:
			requireInteger(e, e.LHS, e.RHS)
			e.Ty = usualArithConv(e, &e.LHS, &e.RHS)
		case ast.Shl, ast.Shr:
			requireInteger(e, e.LHS, e.RHS)
			e.LHS = castTo(e.LHS, ctypes.Promote(e.LHS.Type()))
			e.RHS = castTo(e.RHS, ctypes.Promote(e.RHS.Type()))
			e.Ty = e.LHS.Type()
		case ast.Eq, ast.Ne, ast.Lt, ast.Le:
			usualArithConv(e, &e.LHS, &e.RHS)
			e.Ty = ctypes.Int()
		case ast.LogAnd, ast.LogOr:
			requireScalar(e.LHS)
			requireScalar(e.RHS)
			e.Ty = ctypes.Int()
		}

	case *ast.Unary:
		AddType(e.X)
		switch e.Op {
		case ast.Neg:
			if !ctypes.IsNumeric(e.X.Type()) {
				panic(e.Tok.Errorf("invalid argument type '%s' to unary expression", e.X.Type()))
			}
			ty := ctypes.CommonType(ctypes.Int(), e.X.Type())
			e.X = castTo(e.X, ty)
			e.Ty = ty
		case ast.Not:
			requireScalar(e.X)
			e.Ty = ctypes.Int()
		case ast.BitNot:
			if !ctypes.IsInteger(e.X.Type()) {
				panic(e.Tok.Errorf("invalid argument type '%s' to unary expression", e.X.Type()))
			}
			e.X = castTo(e.X, ctypes.Promote(e.X.Type()))
			e.Ty = e.X.Type()
		}

	case *ast.Assign:
		AddType(e.LHS)
		AddType(e.RHS)
		lt, rt := e.LHS.Type(), e.RHS.Type()
		if ctypes.IsArray(lt) || ctypes.IsFunction(lt) {
			panic(e.LHS.Pos().Errorf("not an lvalue"))
		}
		checkLvalue(e.LHS)
		if ctypes.IsStruct(lt) || ctypes.IsStruct(rt) {
			if !ctypes.Equal(lt, rt) {
				panic(e.Tok.Errorf("assigning to '%s' from incompatible type '%s'", lt, rt))
			}
		} else {
			e.RHS = castTo(e.RHS, lt)
		}
		e.Ty = lt

	case *ast.Comma:
		AddType(e.LHS)
		AddType(e.RHS)
		e.Ty = e.RHS.Type()

	case *ast.Cond:
		AddType(e.Cond)
		AddType(e.Then)
		AddType(e.Else)
		requireScalar(e.Cond)
		tt, et := e.Then.Type(), e.Else.Type()
		switch {
		case ctypes.IsVoid(tt) || ctypes.IsVoid(et):
			e.Ty = ctypes.Void()
		case ctypes.IsStruct(tt) || ctypes.IsStruct(et):
			if !ctypes.Equal(tt, et) {
				panic(e.Tok.Errorf("incompatible operand types ('%s' and '%s')", tt, et))
			}
			e.Ty = tt
		default:
			e.Ty = usualArithConv(e, &e.Then, &e.Else)
		}

	case *ast.Addr:
		AddType(e.X)
		if !ctypes.IsFunction(e.X.Type()) {
			checkLvalue(e.X)
		}
		if arr, ok := e.X.Type().(ctypes.Tarray); ok {
			e.Ty = ctypes.Pointer(arr.Elem)
		} else {
			e.Ty = ctypes.Pointer(e.X.Type())
		}

	case *ast.Deref:
		AddType(e.X)
		base := ctypes.Base(e.X.Type())
		if base == nil {
			panic(e.Tok.Errorf("invalid pointer dereference"))
		}
		if ctypes.IsVoid(base) {
			panic(e.Tok.Errorf("dereferencing a void pointer"))
		}
		e.Ty = base

	case *ast.StmtExpr:
		addTypes(e.Body...)
		e.Ty = ctypes.Void()
		if n := len(e.Body); n > 0 {
			if last, ok := e.Body[n-1].(*ast.ExprStmt); ok {
				e.Ty = last.X.Type()
			}
		}

	case *ast.MemZero:
		e.Ty = ctypes.Void()

	case *ast.Member:
		AddType(e.X)
		e.Ty = e.Mem.Type
	case *ast.Cast:
		AddType(e.X)
	case *ast.Call:
		AddType(e.Func)
		for _, a := range e.Args {
			AddType(a)
		}
	}
}

// addTypes types every expression in the statements.
func addTypes(stmts ...ast.Stmt) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *ast.Block:
			addTypes(s.Body...)
		case *ast.ExprStmt:
			AddType(s.X)
		case *ast.Return:
			AddType(s.X)
		case *ast.If:
			AddType(s.Cond)
			addTypes(s.Then)
			if s.Else != nil {
				addTypes(s.Else)
			}
		case *ast.For:
			if s.Init != nil {
				addTypes(s.Init)
			}
			AddType(s.Cond)
			AddType(s.Inc)
			addTypes(s.Body)
		case *ast.Do:
			addTypes(s.Body)
			AddType(s.Cond)
		case *ast.Switch:
			AddType(s.Cond)
			addTypes(s.Body)
		case *ast.Case:
			addTypes(s.Body)
		case *ast.Label:
			addTypes(s.Body)
		}
	}
}

// usualArithConv converts both operands to their common type.
func usualArithConv(e ast.Expr, lhs, rhs *ast.Expr) ctypes.Type {
	lt, rt := (*lhs).Type(), (*rhs).Type()
	if !arithOperand(lt) || !arithOperand(rt) {
		panic(e.Pos().Errorf("invalid operands to binary expression ('%s' and '%s')", lt, rt))
	}
	ty := ctypes.CommonType(lt, rt)
	*lhs = castTo(*lhs, ty)
	*rhs = castTo(*rhs, ty)
	return ty
}

// arithOperand reports whether a value of type t can take part in the
// usual arithmetic conversions. Arrays and functions decay to pointers.
func arithOperand(t ctypes.Type) bool {
	return ctypes.IsScalar(t) || ctypes.IsArray(t) || ctypes.IsFunction(t)
}

func requireInteger(e ast.Expr, operands ...ast.Expr) {
	for _, x := range operands {
		if !ctypes.IsInteger(x.Type()) {
			panic(e.Pos().Errorf("invalid operands to binary expression ('%s')", x.Type()))
		}
	}
}

func requireScalar(x ast.Expr) {
	if !arithOperand(x.Type()) {
		panic(x.Pos().Errorf("scalar type required, got '%s'", x.Type()))
	}
}

// castTo wraps e in a conversion to ty unless it already has that type.
func castTo(e ast.Expr, ty ctypes.Type) ast.Expr {
	if ctypes.Equal(e.Type(), ty) {
		return e
	}
	return newCast(e, ty)
}

// checkLvalue raises an error unless e designates an object.
func checkLvalue(e ast.Expr) {
	if !isLvalue(e) {
		panic(e.Pos().Errorf("not an lvalue"))
	}
}

func isLvalue(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.Var, *ast.Deref:
		return true
	case *ast.Member:
		return isLvalue(e.X)
	case *ast.Comma:
		return isLvalue(e.RHS)
	case *ast.Call:
		return e.RetBuffer != nil
	case *ast.Assign, *ast.Cond:
		return ctypes.IsStruct(e.Type())
	}
	return false
}
