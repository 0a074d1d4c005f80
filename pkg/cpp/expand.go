// expand.go implements macro expansion including argument substitution,
// stringification, and token pasting.
package cpp

import (
	"strings"

	"github.com/raymyers/ccx64/pkg/lexer"
)

// frame is one source of tokens: a file, an included file or the result
// of a macro expansion.
type frame struct {
	toks  []lexer.Token
	pos   int
	macro bool   // produced by macro expansion
	path  string // included file, popped from the include stack when done
}

// stream reads tokens from a stack of frames. Expansions and includes are
// pushed on top and read before the rest of the enclosing frame.
type stream struct {
	frames    []*frame
	eof       lexer.Token
	lastMacro bool
	onPop     func(f *frame)
}

func newStream(toks []lexer.Token) *stream {
	s := &stream{eof: lexer.Token{Kind: lexer.EOF}}
	if n := len(toks); n > 0 && toks[n-1].Kind == lexer.EOF {
		s.eof = toks[n-1]
	}
	s.push(toks, false, "")
	return s
}

func (s *stream) push(toks []lexer.Token, macro bool, path string) {
	s.frames = append(s.frames, &frame{toks: toks, macro: macro, path: path})
}

// top returns the frame holding the next token. Exhausted frames above it
// are left in place until next consumes past them.
func (s *stream) top() *frame {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if f := s.frames[i]; f.pos < len(f.toks) {
			return f
		}
	}
	return nil
}

// drop discards exhausted frames. An included file stays on the include
// stack while a directive on its last line runs.
func (s *stream) drop() {
	for len(s.frames) > 0 {
		f := s.frames[len(s.frames)-1]
		if f.pos < len(f.toks) {
			return
		}
		s.frames = s.frames[:len(s.frames)-1]
		if s.onPop != nil {
			s.onPop(f)
		}
	}
}

func (s *stream) peek() *lexer.Token {
	f := s.top()
	if f == nil {
		return &s.eof
	}
	return &f.toks[f.pos]
}

func (s *stream) next() lexer.Token {
	s.drop()
	f := s.top()
	if f == nil {
		s.lastMacro = false
		return s.eof
	}
	tok := f.toks[f.pos]
	f.pos++
	s.lastMacro = f.macro
	return tok
}

// readLine returns the tokens up to the end of the current line.
func (s *stream) readLine() []lexer.Token {
	var line []lexer.Token
	for {
		t := s.peek()
		if t.AtBOL || t.Kind == lexer.EOF {
			return line
		}
		line = append(line, s.next())
	}
}

// expandMacro expands tok, just read from s, if it names a macro that is
// not in its hide set. The expansion is pushed back onto s so that it is
// rescanned together with the rest of the input.
func (p *Preprocessor) expandMacro(s *stream, tok lexer.Token) bool {
	if tok.Kind != lexer.Ident || tok.Hideset.Contains(tok.Text) {
		return false
	}
	m := p.macros.Lookup(tok.Text)
	if m == nil {
		return false
	}
	origin := tok

	switch m.Kind {
	case MacroBuiltin:
		t := m.Handler(&origin)
		t.AtBOL, t.HasSpace = tok.AtBOL, tok.HasSpace
		t.Hideset = tok.Hideset
		t.Origin = &origin
		s.push([]lexer.Token{t}, true, "")
		return true

	case MacroObject:
		hs := tok.Hideset.Union(lexer.NewHideset(m.Name))
		body := p.subst(m, m.Body, nil)
		s.push(instantiate(body, hs, &origin), true, "")
		return true
	}

	if !s.peek().Is("(") {
		return false
	}
	s.next()
	args, rparen := p.readArgs(s, m, &origin)
	hs := tok.Hideset.Intersect(rparen.Hideset).Union(lexer.NewHideset(m.Name))
	body := p.subst(m, m.Body, args)
	s.push(instantiate(body, hs, &origin), true, "")
	return true
}

// instantiate copies body, adds hs to every hide set and records the
// invocation as the origin. The first token takes the invocation's
// spacing.
func instantiate(body []lexer.Token, hs lexer.Hideset, origin *lexer.Token) []lexer.Token {
	out := make([]lexer.Token, len(body))
	for i, t := range body {
		t.Hideset = t.Hideset.Union(hs)
		t.Origin = origin
		t.AtBOL = false
		if i == 0 {
			t.AtBOL = origin.AtBOL
			t.HasSpace = origin.HasSpace
		}
		out[i] = t
	}
	return out
}

// readArgs reads the arguments of a function-like macro invocation after
// its opening parenthesis. It returns one token list per parameter (the
// variadic one last) and the closing parenthesis.
func (p *Preprocessor) readArgs(s *stream, m *Macro, name *lexer.Token) ([][]lexer.Token, lexer.Token) {
	var args [][]lexer.Token
	var cur []lexer.Token
	depth := 0
	for {
		t := s.next()
		if t.Kind == lexer.EOF {
			panic(name.Errorf("unterminated argument list invoking macro '%s'", m.Name))
		}
		if depth == 0 && t.Is(")") {
			args = append(args, cur)
			return p.checkArgs(m, args, name), t
		}
		if depth == 0 && t.Is(",") && !(m.IsVariadic() && len(args) == len(m.Params)) {
			args = append(args, cur)
			cur = nil
			continue
		}
		if t.Is("(") {
			depth++
		} else if t.Is(")") {
			depth--
		}
		cur = append(cur, t)
	}
}

func (p *Preprocessor) checkArgs(m *Macro, args [][]lexer.Token, name *lexer.Token) [][]lexer.Token {
	n := len(m.Params)
	if !m.IsVariadic() && n == 0 {
		if len(args) == 1 && len(args[0]) == 0 {
			return nil
		}
		panic(name.Errorf("macro '%s' passed %d arguments, but takes just 0", m.Name, len(args)))
	}
	if len(args) < n {
		panic(name.Errorf("macro '%s' requires %d arguments, but only %d given", m.Name, n, len(args)))
	}
	if !m.IsVariadic() && len(args) > n {
		panic(name.Errorf("macro '%s' passed %d arguments, but takes just %d", m.Name, len(args), n))
	}
	if m.IsVariadic() && len(args) == n {
		args = append(args, nil)
	}
	return args
}

// subst replaces parameters in body with the invocation's arguments and
// performs # and ## processing.
func (p *Preprocessor) subst(m *Macro, body []lexer.Token, args [][]lexer.Token) []lexer.Token {
	argOf := func(t *lexer.Token) ([]lexer.Token, bool) {
		if t.Kind != lexer.Ident || m.Kind != MacroFunction {
			return nil, false
		}
		i := m.paramIndex(t.Text)
		if i < 0 {
			return nil, false
		}
		return args[i], true
	}
	vaEmpty := func() bool {
		return m.IsVariadic() && len(args[len(m.Params)]) == 0
	}

	var out []lexer.Token
	for i := 0; i < len(body); i++ {
		t := body[i]

		// "#" param
		if m.Kind == MacroFunction && t.Is("#") {
			if i+1 < len(body) {
				if a, ok := argOf(&body[i+1]); ok {
					out = append(out, stringize(&t, a))
					i++
					continue
				}
			}
			panic(t.Errorf("'#' is not followed by a macro parameter"))
		}

		// GNU ", ## __VA_ARGS__" drops the comma when the variadic
		// argument is empty.
		if t.Is(",") && m.IsVariadic() && i+2 < len(body) && body[i+1].Is("##") &&
			body[i+2].Kind == lexer.Ident && body[i+2].Text == m.VaArgs {
			if vaEmpty() {
				i += 2
			} else {
				out = append(out, t)
				i++
			}
			continue
		}

		if t.Is("##") {
			if len(out) == 0 {
				panic(t.Errorf("'##' cannot appear at either end of a macro expansion"))
			}
			if i+1 == len(body) {
				panic(t.Errorf("'##' cannot appear at either end of a macro expansion"))
			}
			rhs := body[i+1]
			i++
			if a, ok := argOf(&rhs); ok {
				if len(a) > 0 {
					out[len(out)-1] = paste(&out[len(out)-1], &a[0])
					out = append(out, a[1:]...)
				}
				continue
			}
			out[len(out)-1] = paste(&out[len(out)-1], &rhs)
			continue
		}

		if m.IsVariadic() && t.Kind == lexer.Ident && t.Text == "__VA_OPT__" &&
			i+1 < len(body) && body[i+1].Is("(") {
			end := matchParen(body, i+1)
			if end < 0 {
				panic(t.Errorf("unterminated __VA_OPT__"))
			}
			if !vaEmpty() {
				out = append(out, p.subst(m, body[i+2:end], args)...)
			}
			i = end
			continue
		}

		if a, ok := argOf(&t); ok {
			// operand of ##: inserted unexpanded
			if i+1 < len(body) && body[i+1].Is("##") {
				if len(a) == 0 {
					if i+2 < len(body) {
						if a2, ok := argOf(&body[i+2]); ok {
							out = append(out, a2...)
						} else {
							out = append(out, body[i+2])
						}
						i += 2
					}
					continue
				}
				out = append(out, a...)
				continue
			}
			expanded := p.expandAll(a)
			if len(expanded) > 0 {
				expanded[0].AtBOL = t.AtBOL
				expanded[0].HasSpace = t.HasSpace
			}
			out = append(out, expanded...)
			continue
		}

		out = append(out, t)
	}
	return out
}

// expandAll fully macro-expands toks in isolation.
func (p *Preprocessor) expandAll(toks []lexer.Token) []lexer.Token {
	s := newStream(toks)
	var out []lexer.Token
	for {
		t := s.next()
		if t.Kind == lexer.EOF {
			return out
		}
		if p.expandMacro(s, t) {
			continue
		}
		out = append(out, t)
	}
}

func matchParen(toks []lexer.Token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		if toks[i].Is("(") {
			depth++
		} else if toks[i].Is(")") {
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// joinTokens spells toks with single spaces where the source had
// whitespace.
func joinTokens(toks []lexer.Token) string {
	var sb strings.Builder
	for i, t := range toks {
		if i > 0 && t.HasSpace {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.Text)
	}
	return sb.String()
}

func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' || s[i] == '"' {
			sb.WriteByte('\\')
		}
		sb.WriteByte(s[i])
	}
	sb.WriteByte('"')
	return sb.String()
}

// stringize implements the # operator.
func stringize(hash *lexer.Token, arg []lexer.Token) lexer.Token {
	return newToken(quote(joinTokens(arg)), hash)
}

// paste implements the ## operator.
func paste(lhs, rhs *lexer.Token) lexer.Token {
	buf := lhs.Text + rhs.Text
	toks, err := lexer.Tokenize(lexer.NewFile(fileName(lhs), 0, buf))
	if err != nil || len(toks) != 2 {
		panic(lhs.Errorf("pasting \"%s\" and \"%s\" does not give a valid preprocessing token", lhs.Text, rhs.Text))
	}
	t := toks[0]
	t.HasSpace = lhs.HasSpace
	return t
}

// newToken tokenizes text, which must form a single token, using tmpl's
// file name.
func newToken(text string, tmpl *lexer.Token) lexer.Token {
	toks, err := lexer.Tokenize(lexer.NewFile(fileName(tmpl), 0, text))
	if err != nil {
		panic(err)
	}
	return toks[0]
}

func fileName(t *lexer.Token) string {
	if t.File == nil {
		return "<built-in>"
	}
	return t.File.Name
}
