package cpp

import (
	"fmt"
	"strconv"
	"time"

	"github.com/raymyers/ccx64/pkg/lexer"
)

// predefined are the object-like macros every translation unit starts
// with.
var predefined = [][2]string{
	{"_LP64", "1"},
	{"__C99_MACRO_WITH_VA_ARGS", "1"},
	{"__ELF__", "1"},
	{"__LP64__", "1"},
	{"__SIZEOF_DOUBLE__", "8"},
	{"__SIZEOF_FLOAT__", "4"},
	{"__SIZEOF_INT__", "4"},
	{"__SIZEOF_LONG_DOUBLE__", "8"},
	{"__SIZEOF_LONG_LONG__", "8"},
	{"__SIZEOF_LONG__", "8"},
	{"__SIZEOF_POINTER__", "8"},
	{"__SIZEOF_PTRDIFF_T__", "8"},
	{"__SIZEOF_SHORT__", "2"},
	{"__SIZEOF_SIZE_T__", "8"},
	{"__SIZE_TYPE__", "unsigned long"},
	{"__STDC_HOSTED__", "1"},
	{"__STDC_NO_ATOMICS__", "1"},
	{"__STDC_NO_COMPLEX__", "1"},
	{"__STDC_NO_THREADS__", "1"},
	{"__STDC_NO_VLA__", "1"},
	{"__STDC_VERSION__", "201112L"},
	{"__STDC__", "1"},
	{"__USER_LABEL_PREFIX__", ""},
	{"__alignof__", "_Alignof"},
	{"__amd64", "1"},
	{"__amd64__", "1"},
	{"__ccx64__", "1"},
	{"__const__", "const"},
	{"__gnu_linux__", "1"},
	{"__inline__", "inline"},
	{"__linux", "1"},
	{"__linux__", "1"},
	{"__signed__", "signed"},
	{"__unix", "1"},
	{"__unix__", "1"},
	{"__volatile__", "volatile"},
	{"__x86_64", "1"},
	{"__x86_64__", "1"},
	{"linux", "1"},
	{"unix", "1"},
}

// outermost follows the expansion chain back to the token written in the
// source file.
func outermost(t *lexer.Token) *lexer.Token {
	for t.Origin != nil {
		t = t.Origin
	}
	return t
}

func (p *Preprocessor) defineBuiltins() {
	for _, d := range predefined {
		if err := p.macros.DefineString(d[0], d[1]); err != nil {
			panic(err)
		}
	}

	builtin := func(name string, fn func(tok *lexer.Token) lexer.Token) {
		p.macros.Define(&Macro{Name: name, Kind: MacroBuiltin, Handler: fn})
	}
	builtin("__FILE__", func(tok *lexer.Token) lexer.Token {
		return newToken(quote(fileName(outermost(tok))), tok)
	})
	builtin("__LINE__", func(tok *lexer.Token) lexer.Token {
		return newToken(strconv.Itoa(outermost(tok).Line), tok)
	})
	builtin("__COUNTER__", func(tok *lexer.Token) lexer.Token {
		n := p.counter
		p.counter++
		return newToken(strconv.Itoa(n), tok)
	})
	builtin("__BASE_FILE__", func(tok *lexer.Token) lexer.Token {
		return newToken(quote(p.baseFile), tok)
	})

	now := time.Now
	if p.opts.Now != nil {
		now = p.opts.Now
	}
	t := now()
	// __DATE__ is "Mmm dd yyyy" with a space-padded day.
	date := quote(fmt.Sprintf("%s %2d %d", t.Format("Jan"), t.Day(), t.Year()))
	clock := quote(t.Format("15:04:05"))
	builtin("__DATE__", func(tok *lexer.Token) lexer.Token { return newToken(date, tok) })
	builtin("__TIME__", func(tok *lexer.Token) lexer.Token { return newToken(clock, tok) })
}
