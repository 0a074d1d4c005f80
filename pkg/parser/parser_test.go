package parser

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sanity-io/litter"

	"github.com/raymyers/ccx64/pkg/ast"
	"github.com/raymyers/ccx64/pkg/ctypes"
	"github.com/raymyers/ccx64/pkg/diag"
	"github.com/raymyers/ccx64/pkg/lexer"
)

var dumper = litter.Options{
	StripPackageNames: true,
	HideZeroValues:    true,
	FieldExclusions:   regexp.MustCompile(`^(Tok|File|Hideset|Origin)$`),
}

func parseString(src string, rep *diag.Reporter) (*ast.Program, error) {
	toks, err := lexer.TokenizeString("test.c", src)
	if err != nil {
		return nil, err
	}
	if err := lexer.ConvertPPTokens(toks); err != nil {
		return nil, err
	}
	return Parse(toks, rep)
}

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := parseString(src, nil)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return prog
}

func findObj(t *testing.T, prog *ast.Program, name string) *ast.Obj {
	t.Helper()
	for _, o := range prog.Globals {
		if o.Name == name {
			return o
		}
	}
	t.Fatalf("no global named %q", name)
	return nil
}

// lastReturn returns the expression of the last statement of fn, which
// must be a return statement.
func lastReturn(t *testing.T, fn *ast.Obj) ast.Expr {
	t.Helper()
	body := fn.Body.Body
	if len(body) == 0 {
		t.Fatalf("%s has an empty body", fn.Name)
	}
	ret, ok := body[len(body)-1].(*ast.Return)
	if !ok {
		t.Fatalf("last statement of %s is %T, want *ast.Return", fn.Name, body[len(body)-1])
	}
	return ret.X
}

func TestExpressions(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"precedence", "int f(int a, int b, int c) { return a + b * c; }", "(+ a (* b c))"},
		{"parentheses", "int f(int a, int b, int c) { return (a + b) * c; }", "(* (+ a b) c)"},
		{"left associative", "int f(int a, int b, int c) { return a - b - c; }", "(- (- a b) c)"},
		{"right associative assign", "int f(int a, int b, int c) { return a = b = c; }", "(= a (= b c))"},
		{"greater than swapped", "int f(int a, int b) { return a > b; }", "(< b a)"},
		{"greater equal swapped", "int f(int a, int b) { return a >= b; }", "(<= b a)"},
		{"equality below relational", "int f(int a, int b, int c) { return a < b == b < c; }", "(== (< a b) (< b c))"},
		{"logical", "int f(int a, int b, int c) { return a && b || c; }", "(|| (&& a b) c)"},
		{"conditional", "int f(int a, int b, int c) { return a ? b : c; }", "(?: a b c)"},
		{"shift", "int f(int a) { return a << 2; }", "(<< a 2)"},
		{"unary", "int f(int a) { return -a + !a + ~a; }", "(+ (+ (- a) (! a)) (~ a))"},
		{"comma", "int f(int a, int b) { return a, b; }", "(, a b)"},
		{"long promotion", "long f(long a, int b) { return a + b; }", "(+ a (cast long b))"},
		{"char promotion", "int f(char a, char b) { return a * b; }", "(* (cast int a) (cast int b))"},
		{"double wins", "double f(double a, long b) { return a - b; }", "(- a (cast double b))"},
		{"unsigned wins tie", "unsigned f(int a, unsigned b) { return a + b; }", "(+ (cast unsigned int a) b)"},
		{"return conversion", "long f(int a) { return a; }", "(cast long a)"},
		{"sizeof type", "long f(void) { return sizeof(int[4]); }", "(cast long 16)"},
		{"sizeof expression", "unsigned long f(long *p) { return sizeof *p; }", "8"},
		{"alignof", "unsigned long f(void) { return _Alignof(double); }", "8"},
		{"pointer difference", "long f(int *p, int *q) { return p - q; }", "(/ (- p q) 4)"},
		{"member arrow", "struct P { int x; int y; }; int f(struct P *p) { return p->y; }", "(.y (* p))"},
		{"member dot", "struct P { int x; int y; }; int f(struct P p) { return p.x; }", "(.x p)"},
		{"anonymous member", "struct P { int x; union { int y; char z; }; }; int f(struct P p) { return p.y; }", "(.y (. p))"},
		{"typedef", "typedef struct { int a; } T; int f(T *t) { return t->a; }", "(.a (* t))"},
		{"enum constant", "enum { A, B = 5, C }; int f(void) { return C; }", "6"},
		{"call", "int g(int x, long y); int f(int a) { return g(a, a); }", "(call g a (cast long a))"},
		{"variadic float promotion", "int g(int n, ...); int f(float x) { return g(1, x); }", "(call g 1 (cast double x))"},
		{"address of array", "int *f(void) { static int a[3]; return a; }", "(cast int * .L..0)"},
		{"deref function", "int g(void); int f(void) { return (*g)(); }", "(call g)"},
		{"cast", "char f(int a) { return (char)a; }", "(cast char a)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := parse(t, tt.src)
			e := lastReturn(t, findObj(t, prog, "f"))
			if got := ast.ExprString(e); got != tt.want {
				t.Errorf("got %s, want %s\n%s", got, tt.want, dumper.Sdump(e))
			}
		})
	}
}

func TestPointerArithmeticScales(t *testing.T) {
	prog := parse(t, "int f(int *p) { return p[1]; }")
	e := lastReturn(t, findObj(t, prog, "f"))
	want := "(* (+ p (cast int * (* (cast long 1) 4))))"
	if got := ast.ExprString(e); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	if !ctypes.Equal(e.Type(), ctypes.Int()) {
		t.Errorf("type = %s, want int", e.Type())
	}
}

func TestEveryExpressionTyped(t *testing.T) {
	src := `
struct S { int a; char b[4]; };
int g(struct S *s, ...);
int f(int n) {
	struct S s = {1, "abc"};
	int i, sum = 0;
	for (i = 0; i < n; i++)
		sum += s.b[i % 3] ? i : -i;
	do { sum--; } while (sum > 100);
	switch (sum) { case 1: sum <<= 1; break; default: sum = g(&s, 2.0f); }
	return ({ int t = sum; t * 2; });
}
`
	prog := parse(t, src)
	fn := findObj(t, prog, "f")

	var check func(e ast.Expr)
	check = func(e ast.Expr) {
		if e == nil {
			return
		}
		if e.Type() == nil {
			t.Fatalf("untyped %T at line %d", e, e.Pos().Line)
		}
		switch e := e.(type) {
		case *ast.Binary:
			check(e.LHS)
			check(e.RHS)
		case *ast.Unary:
			check(e.X)
		case *ast.Assign:
			check(e.LHS)
			check(e.RHS)
		case *ast.Comma:
			check(e.LHS)
			check(e.RHS)
		case *ast.Cond:
			check(e.Cond)
			check(e.Then)
			check(e.Else)
		case *ast.Addr:
			check(e.X)
		case *ast.Deref:
			check(e.X)
		case *ast.Member:
			check(e.X)
		case *ast.Cast:
			check(e.X)
		case *ast.Call:
			for _, a := range e.Args {
				check(a)
			}
		}
	}
	var walk func(s ast.Stmt)
	walk = func(s ast.Stmt) {
		switch s := s.(type) {
		case *ast.Block:
			for _, st := range s.Body {
				walk(st)
			}
		case *ast.ExprStmt:
			check(s.X)
		case *ast.Return:
			check(s.X)
		case *ast.If:
			check(s.Cond)
			walk(s.Then)
			if s.Else != nil {
				walk(s.Else)
			}
		case *ast.For:
			if s.Init != nil {
				walk(s.Init)
			}
			check(s.Cond)
			check(s.Inc)
			walk(s.Body)
		case *ast.Do:
			walk(s.Body)
			check(s.Cond)
		case *ast.Switch:
			check(s.Cond)
			walk(s.Body)
		case *ast.Case:
			walk(s.Body)
		}
	}
	walk(fn.Body)

	ret := lastReturn(t, fn)
	if !ctypes.Equal(ret.Type(), ctypes.Int()) {
		t.Errorf("statement expression type = %s, want int", ret.Type())
	}
}

func TestScopes(t *testing.T) {
	prog := parse(t, `
int x = 1;
int f(void) {
	int x = 2;
	{ int x = 3; x = 4; }
	return x;
}
int g(void) { return x; }
`)
	f := findObj(t, prog, "f")
	if len(f.Locals) != 2 {
		t.Fatalf("f has %d locals, want 2", len(f.Locals))
	}
	ret := lastReturn(t, f).(*ast.Var)
	if ret.Obj != f.Locals[0] {
		t.Errorf("return refers to %+v, want the outer local", ret.Obj)
	}

	g := findObj(t, prog, "g")
	if v := lastReturn(t, g).(*ast.Var); v.Obj != findObj(t, prog, "x") {
		t.Errorf("g returns %+v, want the global x", v.Obj)
	}
}

func TestBlockRedeclarations(t *testing.T) {
	prog := parse(t, `
int g = 5;
int f(int a) {
	int a = 1;
	extern int g;
	extern int g;
	for (int a = 2; a < 3; a++) { int a = 3; }
	return a + g;
}
`)
	f := findObj(t, prog, "f")
	if got := len(f.Locals); got != 4 {
		t.Errorf("f has %d locals, want 4", got)
	}
}

func TestTagScopes(t *testing.T) {
	prog := parse(t, `
struct T { int a; };
int f(void) {
	struct T { long a; long b; } t;
	return sizeof(t);
}
int g(void) { struct T t; return sizeof(t); }
`)
	if got := ast.ExprString(lastReturn(t, findObj(t, prog, "f"))); got != "(cast int 16)" {
		t.Errorf("inner struct size: %s", got)
	}
	if got := ast.ExprString(lastReturn(t, findObj(t, prog, "g"))); got != "(cast int 4)" {
		t.Errorf("outer struct size: %s", got)
	}
}

func TestStructLayout(t *testing.T) {
	prog := parse(t, `
struct S { char a; int b; long c; } s;
union U { char a; int b; long c; } u;
struct F { int n; char data[]; } f;
struct A { char c; _Alignas(16) int x; } al;
`)
	tests := []struct {
		name    string
		size    int64
		offsets []int64
	}{
		{"s", 16, []int64{0, 4, 8}},
		{"u", 8, []int64{0, 0, 0}},
		{"f", 4, []int64{0, 4}},
		{"al", 32, []int64{0, 16}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := findObj(t, prog, tt.name).Ty.(*ctypes.Tstruct)
			if st.Size() != tt.size {
				t.Errorf("size = %d, want %d", st.Size(), tt.size)
			}
			var offsets []int64
			for _, m := range st.Members {
				offsets = append(offsets, m.Offset)
			}
			if diff := cmp.Diff(tt.offsets, offsets); diff != "" {
				t.Errorf("offsets mismatch (-want +got):\n%s", diff)
			}
		})
	}
	if !findObj(t, prog, "f").Ty.(*ctypes.Tstruct).Flexible {
		t.Error("struct F should have a flexible array member")
	}
}

func TestDeclarators(t *testing.T) {
	prog := parse(t, `
int *a[3];
int (*b)[3];
int (*c)(int, char);
char **d;
unsigned long long e;
short int g;
long double h;
int i[2][3];
`)
	tests := []struct {
		name string
		want string
	}{
		{"a", "int *[3]"},
		{"b", "int[3] *"},
		{"c", "int(int, char) *"},
		{"d", "char * *"},
		{"e", "unsigned long"},
		{"g", "short"},
		{"h", "double"},
		{"i", "int[3][2]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findObj(t, prog, tt.name).Ty.String(); got != tt.want {
				t.Errorf("type = %q, want %q", got, tt.want)
			}
		})
	}
	if got := findObj(t, prog, "i").Ty.Size(); got != 24 {
		t.Errorf("sizeof i = %d, want 24", got)
	}
}

func TestGlobalInitializers(t *testing.T) {
	prog := parse(t, `
int x = 3;
int *p = &x;
char *s = "hi";
int a[] = {1, 2, 3};
int *q = a + 1;
char str[] = "ab" "cd";
struct { char c; short n; } st = {1, 2};
long neg = -1;
double dbl = 1.5;
int (*fp)(void) = 0;
int tentative;
int tentative;
`)

	tests := []struct {
		name string
		data []byte
		rels []ast.Reloc
	}{
		{"x", []byte{3, 0, 0, 0}, nil},
		{"p", make([]byte, 8), []ast.Reloc{{Offset: 0, Label: "x"}}},
		{"s", make([]byte, 8), []ast.Reloc{{Offset: 0, Label: ".L..0"}}},
		{"a", []byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0}, nil},
		{"q", make([]byte, 8), []ast.Reloc{{Offset: 0, Label: "a", Addend: 4}}},
		{"str", []byte("abcd\x00"), nil},
		{"st", []byte{1, 0, 2, 0}, nil},
		{"neg", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, nil},
		{"dbl", []byte{0, 0, 0, 0, 0, 0, 0xf8, 0x3f}, nil},
		{"fp", make([]byte, 8), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := findObj(t, prog, tt.name)
			if diff := cmp.Diff(tt.data, v.InitData); diff != "" {
				t.Errorf("data mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.rels, v.Rels); diff != "" {
				t.Errorf("relocations mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if got := findObj(t, prog, "a").Ty.String(); got != "int[3]" {
		t.Errorf("a has type %s, want int[3]", got)
	}
	lit := findObj(t, prog, ".L..0")
	if !lit.IsStatic || string(lit.InitData) != "hi\x00" {
		t.Errorf("string literal = %+v", lit)
	}

	var tentatives int
	for _, o := range prog.Globals {
		if o.Name == "tentative" {
			tentatives++
			if !o.IsDefinition || o.InitData != nil {
				t.Errorf("tentative definition = %+v", o)
			}
		}
	}
	if tentatives != 1 {
		t.Errorf("tentative definitions merged into %d objects, want 1", tentatives)
	}
}

func TestConstantExpressions(t *testing.T) {
	tests := []struct {
		expr string
		want int64
	}{
		{"2 + 3 * 4", 14},
		{"1 << 4", 16},
		{"100 / 7 % 5", 4},
		{"-7 / 2", -3},
		{"sizeof(int) == 4 ? 2 : 8", 2},
		{"(char)300", 44},
		{"!0 + !5", 1},
		{"~0 & 0xff", 255},
		{"1 < 2 && 3 >= 3", 1},
		{"0 || 0", 0},
		{"-1 < 1u", 0},
		{"(int)2.7", 2},
		{"sizeof(struct { char a; long b; })", 16},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			prog := parse(t, "enum { V = "+tt.expr+" }; int f(void) { return V; }")
			e := lastReturn(t, findObj(t, prog, "f")).(*ast.Num)
			if e.Val != tt.want {
				t.Errorf("%s = %d, want %d", tt.expr, e.Val, tt.want)
			}
		})
	}
}

func TestStatements(t *testing.T) {
	prog := parse(t, `
int f(int x) {
	switch (x) {
	case 1: return 2;
	case 3: return 4;
	default: break;
	}
	while (x) { if (x == 5) continue; x--; }
	for (int i = 0; i < 3; i++) x++;
	goto end;
end:
	return x;
}
`)
	f := findObj(t, prog, "f")
	sw, ok := f.Body.Body[0].(*ast.Switch)
	if !ok {
		t.Fatalf("first statement is %T, want *ast.Switch", f.Body.Body[0])
	}
	if len(sw.Cases) != 2 || sw.Default == nil {
		t.Errorf("switch has %d cases and default %v", len(sw.Cases), sw.Default)
	}
	if sw.Cases[0].Val != 1 || sw.Cases[1].Val != 3 {
		t.Errorf("case values %d, %d", sw.Cases[0].Val, sw.Cases[1].Val)
	}

	loop := f.Body.Body[1].(*ast.For)
	if loop.Init != nil || loop.Inc != nil || loop.BreakLabel == loop.ContinueLabel {
		t.Errorf("while loop = %s", dumper.Sdump(loop))
	}

	gt := f.Body.Body[3].(*ast.Goto)
	lbl := f.Body.Body[4].(*ast.Label)
	if gt.Label == "" || gt.Label != lbl.Label {
		t.Errorf("goto resolved to %q, label is %q", gt.Label, lbl.Label)
	}
}

func TestCompoundAssignEvaluatesOnce(t *testing.T) {
	prog := parse(t, "int f(int *p) { *p++ += 2; return *p; }")
	f := findObj(t, prog, "f")
	stmt := f.Body.Body[0].(*ast.ExprStmt)
	if _, ok := stmt.X.(*ast.Comma); !ok {
		t.Fatalf("compound assignment lowered to %T", stmt.X)
	}
	var temps int
	for _, v := range f.Locals {
		if v.Name == "" {
			temps++
		}
	}
	// One temporary for p++ and one for +=.
	if temps != 2 {
		t.Errorf("%d temporaries, want 2", temps)
	}
}

func TestVariadicFunctions(t *testing.T) {
	prog := parse(t, `
int sum(int n, ...) { return n; }
int old() { return 0; }
int none(void) { return 0; }
`)
	sum := findObj(t, prog, "sum")
	if sum.VaArea == nil || sum.VaArea.Ty.Size() != VaAreaSize {
		t.Errorf("sum va area = %+v", sum.VaArea)
	}
	if !sum.FuncType().VarArg {
		t.Error("sum should be variadic")
	}
	if findObj(t, prog, "old").VaArea != nil {
		t.Error("unprototyped function should not get a va area")
	}
	if findObj(t, prog, "none").FuncType().VarArg {
		t.Error("(void) declares no parameters")
	}
}

func TestLocalInitializers(t *testing.T) {
	prog := parse(t, `
int f(void) {
	int a[4] = {1, 2};
	char s[] = "xy";
	struct { int x, y; } p = {1 > 0, 7};
	return a[0] + s[0] + p.y;
}
`)
	f := findObj(t, prog, "f")

	countAssigns := func(e ast.Expr) int {
		n := 0
		for {
			c, ok := e.(*ast.Comma)
			if !ok {
				break
			}
			if _, ok := c.RHS.(*ast.Assign); ok {
				n++
			}
			e = c.LHS
		}
		if _, ok := e.(*ast.MemZero); !ok {
			t.Errorf("initializer does not start by zeroing, got %T", e)
		}
		return n
	}

	wantAssigns := []int{2, 3, 2}
	for i, want := range wantAssigns {
		stmt := f.Body.Body[i].(*ast.ExprStmt)
		if got := countAssigns(stmt.X); got != want {
			t.Errorf("initializer %d has %d assignments, want %d", i, got, want)
		}
	}
	if got := f.Locals[1].Ty.String(); got != "char[3]" {
		t.Errorf("s has type %s, want char[3]", got)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"undefined variable", "int f(void) { return x; }", "undefined variable"},
		{"implicit function", "int f(void) { return g(1); }", "implicit declaration of a function"},
		{"assign to rvalue", "int f(void) { 1 = 2; return 0; }", "not an lvalue"},
		{"assign to array", "int f(void) { int a[2]; int b[2]; a = b; return 0; }", "not an lvalue"},
		{"address of rvalue", "int *f(int a) { return &(a + 1); }", "not an lvalue"},
		{"deref non-pointer", "int f(int x) { return *x; }", "invalid pointer dereference"},
		{"deref void pointer", "int f(void *p) { return *p; }", "dereferencing a void pointer"},
		{"stray break", "int f(void) { break; }", "'break' statement not in loop or switch statement"},
		{"stray continue", "int f(int x) { switch (x) { default: continue; } }", "'continue' statement not in loop statement"},
		{"stray case", "int f(void) { case 1: return 0; }", "'case' statement not in switch statement"},
		{"undefined label", "int f(void) { goto out; }", "use of undeclared label 'out'"},
		{"duplicate default", "int f(int x) { switch (x) { default: ; default: ; } return 0; }", "duplicate default label"},
		{"no such member", "struct S { int a; }; int f(struct S s) { return s.b; }", "no such member"},
		{"member of non-struct", "int f(int s) { return s.b; }", "not a struct nor a union"},
		{"kind conflict", "int x; int x(void);", "redefinition of 'x' as different kind of symbol"},
		{"type conflict", "int x; long x;", "conflicting types for 'x'"},
		{"function redefinition", "int f(void) { return 0; } int f(void) { return 1; }", "redefinition of 'f'"},
		{"missing semicolon", "int f(void) { return 1 }", "expected ';'"},
		{"too few arguments", "int f(int a) { return f(); }", "too few arguments"},
		{"too many arguments", "int f(void) { return f(1); }", "too many arguments"},
		{"invalid type", "long char x;", "invalid type"},
		{"struct redefinition", "struct S { int a; }; struct S { int b; };", "redefinition of 'struct S'"},
		{"incomplete variable", "struct S; int f(void) { struct S s; return 0; }", "variable has incomplete type"},
		{"non-constant array size", "int f(int n) { int a[n]; return 0; }", "not a compile-time constant"},
		{"non-constant global", "int x; int y = x;", "invalid initializer"},
		{"pointer plus pointer", "int *f(int *p, int *q) { return p + q; }", "invalid operands"},
		{"void variable", "void v;", "variable declared void"},
		{"local redefinition", "int main(void) { int a = 1; int a = 2; return a; }", "redefinition of 'a'"},
		{"local over typedef", "int main(void) { typedef int T; int T; return 0; }", "redefinition of 'T'"},
		{"static local redefinition", "int f(void) { static int s; int s; return 0; }", "redefinition of 's'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseString(tt.src, nil)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			var derr *diag.Error
			if !asDiag(err, &derr) {
				t.Fatalf("error is %T, want *diag.Error", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func asDiag(err error, target **diag.Error) bool {
	e, ok := err.(*diag.Error)
	*target = e
	return ok
}

func TestErrorPosition(t *testing.T) {
	_, err := parseString("int f(void) {\n  return y;\n}\n", nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	want := "test.c:2:   return y;\n" + strings.Repeat(" ", len("test.c:2:   return ")) + "^ undefined variable"
	if diff := cmp.Diff(want, err.Error()); diff != "" {
		t.Errorf("error mismatch (-want +got):\n%s", diff)
	}
}

func TestUnusedVariableWarning(t *testing.T) {
	src := "int f(int param) { int unused; int used = 1; return used; }"

	tests := []struct {
		level diag.Level
		want  int
	}{
		{diag.WarnAll, 1},
		{diag.WarnDefault, 0},
		{diag.WarnNone, 0},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		rep := diag.NewReporter(&buf, tt.level)
		if _, err := parseString(src, rep); err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		if rep.Warnings() != tt.want {
			t.Errorf("level %d: %d warnings, want %d:\n%s", tt.level, rep.Warnings(), tt.want, buf.String())
		}
		if tt.want > 0 && !strings.Contains(buf.String(), "unused variable 'unused'") {
			t.Errorf("missing warning text:\n%s", buf.String())
		}
	}
}

func TestPrinter(t *testing.T) {
	prog := parse(t, "int g; int main(void) { return 0; }")
	var buf bytes.Buffer
	ast.NewPrinter(&buf).PrintProgram(prog)
	want := `(var g int)
(func main int() (params )
  (block
    (return 0)
  )
)
`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("printer output mismatch (-want +got):\n%s", diff)
	}
}
