package lexer

import (
	"reflect"

	"modernc.org/strutil"
)

var printHooks = strutil.PrettyPrintHooks{
	reflect.TypeOf(Token{}): func(f strutil.Formatter, v interface{}, prefix, suffix string) {
		t := v.(Token)
		f.Format(prefix)
		if t.File != nil {
			f.Format("%s:%d: ", t.File.Name, t.Line)
		}
		f.Format("%s", t.Kind)
		if t.Text != "" {
			f.Format(" %q", t.Text)
		}
		if t.Ty != nil {
			f.Format(" <%s>", t.Ty)
		}
		f.Format(suffix)
	},
}

// Dump returns a readable listing of toks, one token per line.
func Dump(toks []Token) string {
	return strutil.PrettyString(toks, "", "", printHooks)
}
