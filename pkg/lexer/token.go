package lexer

import (
	"fmt"

	"github.com/raymyers/ccx64/pkg/ctypes"
	"github.com/raymyers/ccx64/pkg/diag"
)

// Kind classifies a token
type Kind int

const (
	Ident   Kind = iota // identifiers
	Punct               // punctuators
	Keyword             // keywords
	Str                 // string literals
	Num                 // numeric and character literals
	PPNum               // preprocessing numbers
	EOF                 // end of file
)

var kindNames = map[Kind]string{
	Ident:   "IDENT",
	Punct:   "PUNCT",
	Keyword: "KEYWORD",
	Str:     "STR",
	Num:     "NUM",
	PPNum:   "PPNUM",
	EOF:     "EOF",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token represents a lexical token
type Token struct {
	Kind   Kind
	Text   string
	Offset int // byte offset in File.Contents
	Line   int // 1-based
	File   *File

	Val  int64       // integer value for Num
	FVal float64     // floating value for Num
	Ty   ctypes.Type // literal type for Num and Str
	Str  []byte      // decoded string literal including the trailing NUL

	AtBOL    bool // first token on its line
	HasSpace bool // preceded by whitespace

	Hideset Hideset
	Origin  *Token // macro invocation this token was expanded from
}

// Is reports whether the token is a punctuator or keyword spelled s.
func (t *Token) Is(s string) bool {
	return (t.Kind == Punct || t.Kind == Keyword || t.Kind == Ident) && t.Text == s
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)", t.Kind, t.Text)
}

// Errorf builds a diagnostic anchored at the token.
func (t *Token) Errorf(format string, args ...any) *diag.Error {
	if t.File == nil {
		return diag.Errorf("", format, args...)
	}
	return diag.At(t.File.Name, t.File.Contents, t.Line, t.Offset, format, args...)
}

// Hideset is the set of macro names already expanded into a token's
// ancestry. A Hideset is never modified once built; the operations return
// new sets.
type Hideset map[string]struct{}

// NewHideset returns a set holding names.
func NewHideset(names ...string) Hideset {
	hs := make(Hideset, len(names))
	for _, n := range names {
		hs[n] = struct{}{}
	}
	return hs
}

// Contains reports whether name is in the set.
func (hs Hideset) Contains(name string) bool {
	_, ok := hs[name]
	return ok
}

// Union returns the union of hs and other.
func (hs Hideset) Union(other Hideset) Hideset {
	if len(other) == 0 {
		return hs
	}
	if len(hs) == 0 {
		return other
	}
	out := make(Hideset, len(hs)+len(other))
	for n := range hs {
		out[n] = struct{}{}
	}
	for n := range other {
		out[n] = struct{}{}
	}
	return out
}

// Intersect returns the names present in both sets.
func (hs Hideset) Intersect(other Hideset) Hideset {
	var out Hideset
	for n := range hs {
		if other.Contains(n) {
			if out == nil {
				out = make(Hideset)
			}
			out[n] = struct{}{}
		}
	}
	return out
}
