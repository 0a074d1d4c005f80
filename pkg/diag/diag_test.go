package diag

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestErrorFormat(t *testing.T) {
	src := "int main() {\n  return x;\n}\n"
	off := strings.Index(src, "x;")
	e := At("foo.c", src, 2, off, "undefined variable")

	want := "foo.c:2:   return x;\n" +
		strings.Repeat(" ", len("foo.c:2:   return ")) + "^ undefined variable"
	if diff := cmp.Diff(want, e.Error()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestErrorAtLineStart(t *testing.T) {
	src := "@\n"
	e := At("a.c", src, 1, 0, "invalid token")
	want := "a.c:1: @\n       ^ invalid token"
	if diff := cmp.Diff(want, e.Error()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestErrorfUnanchored(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"with file", Errorf("x.c", "cannot open: %s", "nope"), "x.c: cannot open: nope"},
		{"no file", Errorf("", "boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReporterLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     Level
		warnLevel Level
		printed   bool
	}{
		{"default shows default", WarnDefault, WarnDefault, true},
		{"default hides all", WarnDefault, WarnAll, false},
		{"all shows all", WarnAll, WarnAll, true},
		{"none hides default", WarnNone, WarnDefault, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := NewReporter(&buf, tt.level)
			r.Warn(tt.warnLevel, Errorf("a.c", "unused variable 'x'"))
			if got := buf.Len() > 0; got != tt.printed {
				t.Errorf("printed = %v, want %v (output %q)", got, tt.printed, buf.String())
			}
		})
	}
}

func TestReporterWerror(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, WarnAll)
	r.Werror = true
	if r.Err() != nil {
		t.Fatal("expected no error before any warning")
	}
	r.Warn(WarnAll, Errorf("a.c", "unused variable 'x'"))
	err := r.Err()
	if err == nil {
		t.Fatal("expected error after warning with Werror")
	}
	var de *Error
	if !errors.As(err, &de) {
		t.Errorf("expected wrapped *Error, got %T", err)
	}
}

func TestReporterReset(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, WarnAll)
	r.Werror = true
	r.Warn(WarnAll, Errorf("a.c", "unused variable 'x'"))
	r.Reset()
	if r.Err() != nil || r.Warnings() != 0 {
		t.Errorf("after Reset: Err() = %v, Warnings() = %d", r.Err(), r.Warnings())
	}
}

func TestNilReporter(t *testing.T) {
	var r *Reporter
	r.Warn(WarnDefault, Errorf("", "x"))
	r.Reset()
	if r.Warnings() != 0 || r.Err() != nil {
		t.Error("nil reporter should discard warnings")
	}
}

func TestBailout(t *testing.T) {
	run := func() (err error) {
		defer Bailout(&err)
		panic(Errorf("a.c", "bad"))
	}
	err := run()
	if err == nil || err.Error() != "a.c: bad" {
		t.Errorf("Bailout err = %v", err)
	}
}

func TestBailoutRepanicsInternal(t *testing.T) {
	defer func() {
		r := recover()
		ie, ok := r.(*InternalError)
		if !ok {
			t.Fatalf("expected *InternalError panic, got %v", r)
		}
		if !strings.Contains(ie.Error(), "depth") {
			t.Errorf("unexpected message %q", ie.Error())
		}
	}()
	func() (err error) {
		defer Bailout(&err)
		Assert(false, "depth %d", 3)
		return nil
	}()
}

func TestIsInternal(t *testing.T) {
	if !IsInternal(&InternalError{Msg: "x"}) {
		t.Error("InternalError should be internal")
	}
	if IsInternal(Errorf("", "x")) {
		t.Error("user error should not be internal")
	}
}
