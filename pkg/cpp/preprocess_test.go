package cpp

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/raymyers/ccx64/pkg/diag"
	"github.com/raymyers/ccx64/pkg/lexer"
)

func preprocess(t *testing.T, opts Options, src string) (string, error) {
	t.Helper()
	toks, err := lexer.TokenizeString("test.c", src)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	return runTokens(t, opts, toks)
}

func preprocessFile(t *testing.T, opts Options, path string) (string, error) {
	t.Helper()
	toks, err := lexer.TokenizeFile(path, 0)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	return runTokens(t, opts, toks)
}

func runTokens(t *testing.T, opts Options, toks []lexer.Token) (string, error) {
	t.Helper()
	p, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := p.Run(toks)
	if err != nil {
		return "", err
	}
	return Render(out), nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPreprocessOutput(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"plain", "int x = 42;\n", "int x = 42;\n"},
		{"object macro", "#define VALUE 123\nint x = VALUE;\n", "int x = 123;\n"},
		{"function macro", "#define SQ(x) ((x)*(x))\nreturn SQ(3+1);\n", "return ((3+1)*(3+1));\n"},
		{"self reference", "#define A A\nint x = A;\n", "int x = A;\n"},
		{"mutual recursion", "#define f(x) g(x)\n#define g(x) f(x)\nf(1);\n", "f(1);\n"},
		{"indirect self reference", "#define foo a foo\nfoo\n", "a foo\n"},
		{"name without parens", "#define F(x) x\nint F;\n", "int F;\n"},
		{"stringize", "#define S(x) #x\nS(a  +  b)\n", "\"a + b\"\n"},
		{"stringize quotes", "#define S(x) #x\nS(\"hi\\n\")\n", "\"\\\"hi\\\\n\\\"\"\n"},
		{"paste", "#define CAT(a, b) a##b\nCAT(foo, bar)\n", "foobar\n"},
		{"paste numbers", "#define CAT(a, b) a ## b\nCAT(1, 2)\n", "12\n"},
		{"paste empty", "#define CAT(a, b) a##b\nCAT(, x)\n", "x\n"},
		{"variadic", "#define P(fmt, ...) printf(fmt, __VA_ARGS__)\nP(\"%d\", 1, 2);\n", "printf(\"%d\", 1, 2);\n"},
		{"named variadic", "#define P(args...) f(args)\nP(1, 2)\n", "f(1, 2)\n"},
		{"gnu comma drop", "#define E(fmt, ...) f(fmt, ## __VA_ARGS__)\nE(x)\n", "f(x)\n"},
		{"gnu comma keep", "#define E(fmt, ...) f(fmt, ## __VA_ARGS__)\nE(x, y)\n", "f(x, y)\n"},
		{"va opt empty", "#define F(a, ...) g(a __VA_OPT__(,) __VA_ARGS__)\nF(1)\n", "g(1)\n"},
		{"va opt present", "#define F(a, ...) g(a __VA_OPT__(,) __VA_ARGS__)\nF(1, 2)\n", "g(1, 2)\n"},
		{"empty argument", "#define F(a, b) [a|b]\nF(,)\n", "[|]\n"},
		{"nested parens in argument", "#define F(a) <a>\nF((1, 2))\n", "<(1, 2)>\n"},
		{"argument expanded first", "#define ONE 1\n#define ID(x) x\nID(ONE)\n", "1\n"},
		{"rescan", "#define F(x) x + G\n#define G 2\nF(1)\n", "1 + 2\n"},
		{"undef", "#define X 1\n#undef X\nX\n", "X\n"},
		{"line", "a __LINE__\nb __LINE__\n", "a 1\nb 2\n"},
		{"line inside macro", "#define L __LINE__\n\nL\n", "3\n"},
		{"file", "__FILE__\n", "\"test.c\"\n"},
		{"counter", "__COUNTER__ __COUNTER__\n", "0 1\n"},
		{"line directive", "#line 100\n__LINE__\n", "100\n"},
		{"line directive with file", "#line 7 \"foo.c\"\n__FILE__ __LINE__\n", "\"foo.c\" 7\n"},
		{"gnu line marker", "# 20 \"bar.c\"\n__LINE__\n", "20\n"},
		{"null directive", "#\nx\n", "x\n"},
		{"pragma ignored", "#pragma pack(1)\nx\n", "x\n"},
		{"invalid directive in excluded region", "#if 0\n#bogus\n#endif\nok\n", "ok\n"},
		{"if first branch", "#if 1+5\nfirst\n#elif 1\nsecond\n#endif\n", "first\n"},
		{"elif third branch", "#if 0\na\n#elif 0\nb\n#elif 1\nc\n#endif\n", "c\n"},
		{"ifdef else", "#ifdef NOPE\na\n#else\nb\n#endif\n", "b\n"},
		{"if macro expression", "#define V 3\n#if V * 2 == 6\nyes\n#endif\n", "yes\n"},
		{"predefined", "#if defined(__x86_64__) && __LP64__\nyes\n#endif\n", "yes\n"},
		{"has include builtin", "#if __has_include(<stdarg.h>)\nyes\n#endif\n", "yes\n"},
		{"has include missing", "#if __has_include(\"no_such_file.h\")\nyes\n#else\nno\n#endif\n", "no\n"},
		{"builtin header", "#include <stdbool.h>\nbool b = true;\n", "_Bool b = 1;\n"},
		{"macro expanded include", "#define H <stdbool.h>\n#include H\nfalse\n", "0\n"},
		{"hash from macro is not a directive", "#define H #\nH define X 1\nX\n", "# define X 1\nX\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := preprocess(t, Options{}, tt.src)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPreprocessErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"too few arguments", "#define F(a, b) a\nF(1)\n", "requires 2 arguments, but only 1 given"},
		{"too many arguments", "#define F(a) a\nF(1, 2)\n", "passed 2 arguments, but takes just 1"},
		{"unterminated invocation", "#define F(a) a\nF(1\n", "unterminated argument list"},
		{"unterminated conditional", "#if 1\nint x;\n", "unterminated conditional directive"},
		{"stray endif", "#endif\n", "#endif without #if"},
		{"error directive", "#error boom here\n", "#error boom here"},
		{"invalid directive", "#frobnicate\n", "invalid preprocessing directive #frobnicate"},
		{"define without name", "#define 3 4\n", "macro name must be an identifier"},
		{"bad stringize", "#define S(x) #y\nS(1)\n", "'#' is not followed by a macro parameter"},
		{"paste at start", "#define P(x) ## x\nP(1)\n", "'##' cannot appear at either end"},
		{"invalid paste", "#define P(a, b) a##b\nP(+, /)\n", "does not give a valid preprocessing token"},
		{"missing include", "#include \"does_not_exist.h\"\n", "\"does_not_exist.h\": cannot open file"},
		{"missing angled include", "#include <does_not_exist.h>\n", "<does_not_exist.h>: cannot open file"},
		{"include without name", "#include 42\n", "expected \"FILENAME\" or <FILENAME>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := preprocess(t, Options{SystemPaths: []string{}}, tt.src)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestErrorAnchoredAtSourceLine(t *testing.T) {
	_, err := preprocess(t, Options{}, "int a;\n#define F(a, b) a\nint b = F(1);\n")
	if err == nil {
		t.Fatal("expected error")
	}
	want := "test.c:3: int b = F(1);\n"
	if !strings.HasPrefix(err.Error(), want) {
		t.Errorf("error %q does not start with %q", err, want)
	}
}

func TestCmdlineDefines(t *testing.T) {
	opts := Options{
		Defines:   []string{"N=3", "FLAG", "GONE=1"},
		Undefines: []string{"GONE", "__STDC__"},
	}
	got, err := preprocess(t, opts, "N FLAG GONE __STDC__\n")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("3 1 GONE __STDC__\n", got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestDefineAndUndef(t *testing.T) {
	p, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Define("DEBUG", "2"); err != nil {
		t.Fatal(err)
	}
	if !p.Macros().IsDefined("DEBUG") {
		t.Fatal("DEBUG should be defined")
	}
	p.Undef("DEBUG")
	if p.Macros().IsDefined("DEBUG") {
		t.Error("DEBUG should be undefined")
	}
}

func TestDateAndTime(t *testing.T) {
	now := func() time.Time { return time.Date(2024, time.March, 5, 9, 7, 3, 0, time.UTC) }
	got, err := preprocess(t, Options{Now: now}, "__DATE__ __TIME__\n")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("\"Mar  5 2024\" \"09:07:03\"\n", got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestWarningDirective(t *testing.T) {
	var buf bytes.Buffer
	rep := diag.NewReporter(&buf, diag.WarnDefault)
	got, err := preprocess(t, Options{Reporter: rep}, "#warning careful\nx\n")
	if err != nil {
		t.Fatal(err)
	}
	if got != "x\n" {
		t.Errorf("got %q", got)
	}
	if !strings.Contains(buf.String(), "#warning careful") {
		t.Errorf("warning not reported, stderr: %q", buf.String())
	}
	if rep.Warnings() != 1 {
		t.Errorf("Warnings() = %d, want 1", rep.Warnings())
	}
}

func TestIncludeQuoted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "header.h", "int from_header;\n")
	main := writeFile(t, dir, "main.c", "#include \"header.h\"\nint main_code;\n")

	got, err := preprocessFile(t, Options{}, main)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("int from_header;\nint main_code;\n", got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestIncludeSearchPaths(t *testing.T) {
	dir := t.TempDir()
	inc := filepath.Join(dir, "inc")
	writeFile(t, inc, "lib.h", "int from_lib;\n")
	writeFile(t, inc, "sub/nested.h", "#include \"sibling.h\"\n")
	writeFile(t, inc, "sub/sibling.h", "int sibling;\n")
	main := writeFile(t, dir, "src/main.c", "#include <lib.h>\n#include \"sub/nested.h\"\n")

	got, err := preprocessFile(t, Options{IncludePaths: []string{inc}}, main)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("int from_lib;\nint sibling;\n", got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestIncludeGuard(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "header.h", "#ifndef HEADER_H\n#define HEADER_H\nint once;\n#endif\n")
	main := writeFile(t, dir, "main.c", "#include \"header.h\"\n#include \"header.h\"\nHEADER_H\n")

	toks, err := lexer.TokenizeFile(main, 0)
	if err != nil {
		t.Fatal(err)
	}
	p, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	out, err := p.Run(toks)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("int once;\n", Render(out)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if len(p.includeGuards) != 1 {
		t.Errorf("include guard not detected: %v", p.includeGuards)
	}
	// The guarded file is read once.
	if n := len(p.Files()); n != 2 {
		t.Errorf("Files() has %d entries, want 2", n)
	}
}

func TestPragmaOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "once.h", "#pragma once\nint once;\n")
	main := writeFile(t, dir, "main.c", "#include \"once.h\"\n#include \"once.h\"\n")

	got, err := preprocessFile(t, Options{}, main)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("int once;\n", got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestIncludeMacrosVisibleAfterInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "defs.h", "#define MAX(a, b) ((a) > (b) ? (a) : (b))\n")
	main := writeFile(t, dir, "main.c", "#include \"defs.h\"\nMAX(1, 2)\n")

	got, err := preprocessFile(t, Options{}, main)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("((1) > (2) ? (1) : (2))\n", got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestIncludedFileLinesAndNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "h.h", "\n\nint h = __LINE__;\n")
	main := writeFile(t, dir, "main.c", "#include \"h.h\"\nint m = __LINE__;\n")

	toks, err := lexer.TokenizeFile(main, 0)
	if err != nil {
		t.Fatal(err)
	}
	p, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	out, err := p.Run(toks)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("int h = 3;\nint m = 2;\n", Render(out)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if base := filepath.Base(out[0].File.Name); base != "h.h" {
		t.Errorf("first token comes from %s, want h.h", base)
	}
	if out[0].File.Index != 1 {
		t.Errorf("included file index = %d, want 1", out[0].File.Index)
	}
}

func TestEmptyInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.h", "")
	main := writeFile(t, dir, "main.c", "#include \"empty.h\"\nint x;\n")

	got, err := preprocessFile(t, Options{}, main)
	if err != nil {
		t.Fatal(err)
	}
	if got != "int x;\n" {
		t.Errorf("got %q", got)
	}
}

// preprocessWithin fails the test instead of hanging when preprocessing
// does not finish in time.
func preprocessWithin(t *testing.T, d time.Duration, path string) error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		toks, err := lexer.TokenizeFile(path, 0)
		if err == nil {
			var p *Preprocessor
			if p, err = New(Options{}); err == nil {
				_, err = p.Run(toks)
			}
		}
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(d):
		t.Fatalf("preprocessing %s did not finish within %v", filepath.Base(path), d)
		return nil
	}
}

func TestIncludeDepthLimit(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{"self include", map[string]string{"self.h": "#include \"self.h\"\n"}},
		{"self include without newline", map[string]string{"self.h": "int x;\n#include \"self.h\""}},
		{"mutual include", map[string]string{
			"a.h": "#include \"b.h\"\n",
			"b.h": "#include \"a.h\"\n",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			var first string
			for name, content := range tt.files {
				writeFile(t, dir, name, content)
				if first == "" || name < first {
					first = name
				}
			}
			main := writeFile(t, dir, "main.c", "#include \""+first+"\"\n")

			err := preprocessWithin(t, 5*time.Second, main)
			if err == nil {
				t.Fatal("expected error for recursive include")
			}
			if !strings.Contains(err.Error(), "nested depth") {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestIncludeOnLastLine(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.h", "int a;\n#include \"b.h\"\n")
	writeFile(t, dir, "b.h", "int b;\n#include \"c.h\"")
	writeFile(t, dir, "c.h", "int c;\n")
	main := writeFile(t, dir, "main.c", "#include \"a.h\"\n#include \"a.h\"\nint m;\n")

	toks, err := lexer.TokenizeFile(main, 0)
	if err != nil {
		t.Fatal(err)
	}
	p, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	out, err := p.Run(toks)
	if err != nil {
		t.Fatal(err)
	}
	want := "int a;\nint b;\nint c;\nint a;\nint b;\nint c;\nint m;\n"
	if diff := cmp.Diff(want, Render(out)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if got := len(p.resolver.includeStack); got != 0 {
		t.Errorf("include stack has %d entries after Run, want 0", got)
	}
}

func TestDetectIncludeGuard(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"guarded", "#ifndef G\n#define G\nint x;\n#endif\n", "G"},
		{"nested conditional", "#ifndef G\n#define G\n#if 1\nint x;\n#endif\n#endif\n", "G"},
		{"code after endif", "#ifndef G\n#define G\n#endif\nint y;\n", ""},
		{"different macro", "#ifndef G\n#define H\n#endif\n", ""},
		{"no guard", "int x;\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := lexer.TokenizeString("g.h", tt.src)
			if err != nil {
				t.Fatal(err)
			}
			if got := detectIncludeGuard(toks); got != tt.want {
				t.Errorf("detectIncludeGuard = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderKeepsLines(t *testing.T) {
	toks, err := lexer.TokenizeString("r.c", "int\n  x ;\n")
	if err != nil {
		t.Fatal(err)
	}
	if got := Render(toks); got != "int\nx ;\n" {
		t.Errorf("Render = %q", got)
	}
}
