// Package diag formats source-anchored diagnostics.
//
// User errors are reported as *Error values rendered in the form
//
//	<file>:<line>: <source line text>
//	<spaces>^ <message>
//
// Generator invariant violations are raised as InternalError panics and are
// kept distinct from user errors.
package diag

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Error is a fatal, source-anchored user diagnostic.
type Error struct {
	File       string
	Line       int
	Col        int // 0-based byte column within SourceLine
	SourceLine string
	Msg        string
}

func (e *Error) Error() string {
	if e.SourceLine == "" && e.Line == 0 {
		if e.File == "" {
			return e.Msg
		}
		return fmt.Sprintf("%s: %s", e.File, e.Msg)
	}
	prefix := fmt.Sprintf("%s:%d: ", e.File, e.Line)
	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString(e.SourceLine)
	sb.WriteByte('\n')
	sb.WriteString(strings.Repeat(" ", displayWidth(prefix)+displayWidth(e.SourceLine[:min(e.Col, len(e.SourceLine))])))
	sb.WriteString("^ ")
	sb.WriteString(e.Msg)
	return sb.String()
}

// displayWidth counts runes so multi-byte characters take one column.
func displayWidth(s string) int {
	return len([]rune(s))
}

// At builds an Error for byte offset off in contents.
// line is the 1-based line number of off.
func At(file, contents string, line, off int, format string, args ...any) *Error {
	if off > len(contents) {
		off = len(contents)
	}
	start := strings.LastIndexByte(contents[:off], '\n') + 1
	end := strings.IndexByte(contents[off:], '\n')
	if end < 0 {
		end = len(contents)
	} else {
		end += off
	}
	return &Error{
		File:       file,
		Line:       line,
		Col:        off - start,
		SourceLine: contents[start:end],
		Msg:        fmt.Sprintf(format, args...),
	}
}

// Errorf builds an Error that is not anchored to a source position.
func Errorf(file, format string, args ...any) *Error {
	return &Error{File: file, Msg: fmt.Sprintf(format, args...)}
}

// Level selects which warnings are printed.
type Level int

const (
	WarnNone    Level = iota // -w
	WarnDefault              // warnings that are always on
	WarnAll                  // -Wall
)

// Reporter prints warnings. The zero value discards everything.
type Reporter struct {
	W      io.Writer
	Level  Level
	Werror bool

	warnings int
	first    *Error
}

// NewReporter creates a reporter writing to w.
func NewReporter(w io.Writer, level Level) *Reporter {
	return &Reporter{W: w, Level: level}
}

// Warn prints e as a warning if level is enabled.
func (r *Reporter) Warn(level Level, e *Error) {
	if r == nil || r.W == nil || level > r.Level || r.Level == WarnNone {
		return
	}
	r.warnings++
	if r.first == nil {
		r.first = e
	}
	fmt.Fprintln(r.W, e.Error())
}

// Warnings returns the number of warnings printed so far.
func (r *Reporter) Warnings() int {
	if r == nil {
		return 0
	}
	return r.warnings
}

// Reset forgets the warnings printed so far, starting a new translation
// unit.
func (r *Reporter) Reset() {
	if r == nil {
		return
	}
	r.warnings = 0
	r.first = nil
}

// Err returns a non-nil error when warnings are treated as errors and at
// least one was printed.
func (r *Reporter) Err() error {
	if r == nil || !r.Werror || r.first == nil {
		return nil
	}
	return fmt.Errorf("warnings treated as errors: %w", r.first)
}

// InternalError signals a compiler defect rather than invalid input.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string {
	return "internal compiler error: " + e.Msg
}

// Assert panics with an InternalError if cond is false.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(&InternalError{Msg: fmt.Sprintf(format, args...)})
	}
}

// Unreachable panics with an InternalError.
func Unreachable(format string, args ...any) {
	panic(&InternalError{Msg: "unreachable: " + fmt.Sprintf(format, args...)})
}

// Bailout recovers a *Error panic into *errp. Any other panic is re-raised.
// Phases use it at their entry points:
//
//	defer diag.Bailout(&err)
func Bailout(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(*Error); ok {
		*errp = e
		return
	}
	panic(r)
}

// IsInternal reports whether err carries an InternalError.
func IsInternal(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}
