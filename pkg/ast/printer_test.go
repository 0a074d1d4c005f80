package ast

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/raymyers/ccx64/pkg/ctypes"
)

func TestPrintProgram(t *testing.T) {
	x := &Obj{Name: "x", Ty: ctypes.Int(), IsLocal: true}
	body := &Block{Body: []Stmt{
		&Return{X: &Binary{
			ExprInfo: ExprInfo{Ty: ctypes.Int()},
			Op:       Add,
			LHS:      &Var{ExprInfo: ExprInfo{Ty: ctypes.Int()}, Obj: x},
			RHS:      &Num{ExprInfo: ExprInfo{Ty: ctypes.Int()}, Val: 1},
		}},
		&Label{Name: "out", Label: ".L..0", Body: &Return{}},
	}}
	fn := &Obj{
		Name:         "f",
		Ty:           ctypes.Func(ctypes.Int(), []ctypes.Param{{Name: "x", Type: ctypes.Int()}}, false),
		IsFunction:   true,
		IsDefinition: true,
		IsStatic:     true,
		Params:       []*Obj{x},
		Body:         body,
	}
	prog := &Program{Globals: []*Obj{
		{Name: "g", Ty: ctypes.Int(), IsDefinition: true, InitData: []byte{7, 0, 0, 0}},
		{Name: "h", Ty: ctypes.Long()},
		fn,
	}}

	var sb strings.Builder
	NewPrinter(&sb).PrintProgram(prog)
	lines := strings.Split(strings.TrimSuffix(sb.String(), "\n"), "\n")

	if diff := cmp.Diff([]string{`(var g int "\a\x00\x00\x00")`, "(extern h long)"}, lines[:2]); diff != "" {
		t.Errorf("globals mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(lines[2], "(func static f ") || !strings.HasSuffix(lines[2], "(params x)") {
		t.Errorf("function header = %q", lines[2])
	}
	want := []string{
		"  (block",
		"    (return (+ x 1))",
		"    (label out",
		"      (return)",
		"    )",
		"  )",
		")",
	}
	if diff := cmp.Diff(want, lines[3:]); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestFunctions(t *testing.T) {
	decl := &Obj{Name: "d", IsFunction: true}
	def := &Obj{Name: "f", IsFunction: true, IsDefinition: true}
	v := &Obj{Name: "v", IsDefinition: true}
	prog := &Program{Globals: []*Obj{decl, v, def}}
	if got := prog.Functions(); len(got) != 1 || got[0] != def {
		t.Errorf("Functions() = %v, want only f", got)
	}
}
