// Package cpp implements the C preprocessor over lexer tokens: macro
// definition and hide-set based expansion, conditional inclusion and
// #include splicing.
package cpp

import (
	"strings"

	"github.com/raymyers/ccx64/pkg/lexer"
)

// MacroKind distinguishes the kinds of macros.
type MacroKind int

const (
	MacroObject   MacroKind = iota // #define X body
	MacroFunction                  // #define F(a, b) body
	MacroBuiltin                   // __FILE__, __LINE__, ...
)

// Macro is a macro definition.
type Macro struct {
	Name   string
	Kind   MacroKind
	Params []string
	VaArgs string // name of the variadic parameter, "" if not variadic
	Body   []lexer.Token

	// Handler produces the expansion of a builtin macro at tok.
	Handler func(tok *lexer.Token) lexer.Token
}

// IsVariadic reports whether the macro takes a variable argument list.
func (m *Macro) IsVariadic() bool { return m.VaArgs != "" }

func (m *Macro) paramIndex(name string) int {
	for i, p := range m.Params {
		if p == name {
			return i
		}
	}
	if m.VaArgs != "" && name == m.VaArgs {
		return len(m.Params)
	}
	return -1
}

// MacroTable stores the macros defined so far.
type MacroTable struct {
	macros map[string]*Macro
}

// NewMacroTable creates an empty macro table.
func NewMacroTable() *MacroTable {
	return &MacroTable{macros: make(map[string]*Macro)}
}

// Define adds or replaces a macro.
func (t *MacroTable) Define(m *Macro) {
	t.macros[m.Name] = m
}

// Undefine removes a macro.
func (t *MacroTable) Undefine(name string) {
	delete(t.macros, name)
}

// Lookup returns the macro named name, or nil.
func (t *MacroTable) Lookup(name string) *Macro {
	return t.macros[name]
}

// IsDefined reports whether name is a macro.
func (t *MacroTable) IsDefined(name string) bool {
	_, ok := t.macros[name]
	return ok
}

// DefineString defines an object-like macro whose body is the tokenized
// value, as -D name=value does.
func (t *MacroTable) DefineString(name, value string) error {
	toks, err := lexer.TokenizeString("<built-in>", value)
	if err != nil {
		return err
	}
	t.Define(&Macro{Name: name, Kind: MacroObject, Body: toks[:len(toks)-1]})
	return nil
}

// ApplyCmdlineDefines processes -D and -U options in order: defines
// first, then undefines. A define without '=' gets the value 1.
func (t *MacroTable) ApplyCmdlineDefines(defines, undefines []string) error {
	for _, d := range defines {
		name, value, ok := strings.Cut(d, "=")
		if !ok {
			value = "1"
		}
		if err := t.DefineString(name, value); err != nil {
			return err
		}
	}
	for _, u := range undefines {
		t.Undefine(u)
	}
	return nil
}
