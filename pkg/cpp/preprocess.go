// preprocess.go implements the main preprocessor driver with include processing.
package cpp

import (
	"strings"
	"time"

	"github.com/raymyers/ccx64/pkg/ctypes"
	"github.com/raymyers/ccx64/pkg/diag"
	"github.com/raymyers/ccx64/pkg/lexer"
)

// Options configures the preprocessor.
type Options struct {
	IncludePaths []string // -I directories
	SystemPaths  []string // system directories; nil means the host defaults
	Defines      []string // -D definitions, NAME or NAME=VALUE
	Undefines    []string // -U names
	Reporter     *diag.Reporter
	Now          func() time.Time // clock for __DATE__ and __TIME__
}

// Preprocessor is the main driver for C preprocessing. A Preprocessor
// holds the macro table of one translation unit.
type Preprocessor struct {
	macros        *MacroTable
	cond          *ConditionalProcessor
	resolver      *IncludeResolver
	opts          Options
	includeGuards map[string]string // file path -> guard macro name
	counter       int
	baseFile      string
	files         []*lexer.File
}

// New creates a preprocessor with the predefined macros and the -D/-U
// options applied.
func New(opts Options) (*Preprocessor, error) {
	macros := NewMacroTable()
	resolver := NewIncludeResolver()
	for _, p := range opts.IncludePaths {
		resolver.AddUserPath(p)
	}
	for _, p := range opts.SystemPaths {
		resolver.AddSystemPath(p)
	}
	if opts.SystemPaths != nil {
		resolver.systemDetected = true
	}

	p := &Preprocessor{
		macros:        macros,
		cond:          NewConditionalProcessor(macros),
		resolver:      resolver,
		opts:          opts,
		includeGuards: make(map[string]string),
	}
	p.cond.expand = p.expandAll
	p.cond.hasInclude = func(name string, kind IncludeKind, from *lexer.Token) bool {
		_, err := p.resolver.Resolve(name, kind, filePath(from))
		return err == nil
	}
	p.defineBuiltins()
	if err := macros.ApplyCmdlineDefines(opts.Defines, opts.Undefines); err != nil {
		return nil, err
	}
	return p, nil
}

// Define defines an object-like macro as -D name=value does.
func (p *Preprocessor) Define(name, value string) error {
	return p.macros.DefineString(name, value)
}

// Undef removes a macro.
func (p *Preprocessor) Undef(name string) {
	p.macros.Undefine(name)
}

// Macros returns the macro table.
func (p *Preprocessor) Macros() *MacroTable {
	return p.macros
}

// Files returns every source file read so far, the main file first.
func (p *Preprocessor) Files() []*lexer.File {
	return p.files
}

// Run preprocesses the tokens of a main file. Directives are executed and
// removed, macros expanded and included files spliced in. The result is
// terminated by the EOF token of the input.
func (p *Preprocessor) Run(toks []lexer.Token) (out []lexer.Token, err error) {
	defer diag.Bailout(&err)

	if len(toks) > 0 && toks[0].File != nil && p.baseFile == "" {
		p.baseFile = toks[0].File.Name
		p.files = append(p.files, toks[0].File)
	}

	s := newStream(toks)
	s.onPop = func(f *frame) {
		if f.path != "" {
			p.resolver.PopFile()
		}
	}
	for {
		tok := s.next()
		if tok.Kind == lexer.EOF {
			break
		}
		if tok.AtBOL && tok.Is("#") && !s.lastMacro {
			p.directive(s, &tok)
			continue
		}
		if !p.cond.IsActive() {
			continue
		}
		if p.expandMacro(s, tok) {
			continue
		}
		out = append(out, tok)
	}
	if err := p.cond.CheckBalanced(); err != nil {
		return nil, err
	}
	return append(out, s.eof), nil
}

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func (p *Preprocessor) directive(s *stream, hash *lexer.Token) {
	line := s.readLine()
	if len(line) == 0 {
		return
	}
	name := &line[0]
	args := line[1:]

	// Conditionals are tracked even inside excluded regions.
	switch {
	case name.Is("if"):
		check(p.cond.ProcessIf(hash, args))
		return
	case name.Is("ifdef"):
		check(p.cond.ProcessIfdef(hash, macroName(name, args)))
		return
	case name.Is("ifndef"):
		check(p.cond.ProcessIfndef(hash, macroName(name, args)))
		return
	case name.Is("elif"):
		check(p.cond.ProcessElif(hash, args))
		return
	case name.Is("else"):
		check(p.cond.ProcessElse(hash))
		return
	case name.Is("endif"):
		check(p.cond.ProcessEndif(hash))
		return
	}
	if !p.cond.IsActive() {
		return
	}

	if name.Kind == lexer.PPNum {
		// GNU line marker: # 12 "file"
		p.lineDirective(s, hash, line)
		return
	}

	switch {
	case name.Is("include"):
		p.include(s, hash, name, args)
	case name.Is("define"):
		p.define(name, args)
	case name.Is("undef"):
		p.macros.Undefine(macroName(name, args))
	case name.Is("line"):
		p.lineDirective(s, hash, args)
	case name.Is("pragma"):
		if len(args) > 0 && args[0].Is("once") {
			p.resolver.MarkPragmaOnce(filePath(hash))
		}
	case name.Is("error"):
		panic(name.Errorf("#error %s", joinTokens(args)))
	case name.Is("warning"):
		p.opts.Reporter.Warn(diag.WarnDefault, name.Errorf("#warning %s", joinTokens(args)))
	default:
		panic(name.Errorf("invalid preprocessing directive #%s", name.Text))
	}
}

func macroName(at *lexer.Token, args []lexer.Token) string {
	if len(args) == 0 || args[0].Kind != lexer.Ident {
		panic(at.Errorf("macro name must be an identifier"))
	}
	return args[0].Text
}

func filePath(t *lexer.Token) string {
	if t.File == nil {
		return ""
	}
	return t.File.Path
}

// define handles #define.
func (p *Preprocessor) define(at *lexer.Token, args []lexer.Token) {
	m := &Macro{Name: macroName(at, args), Kind: MacroObject}
	body := args[1:]
	if len(body) > 0 && body[0].Is("(") && !body[0].HasSpace {
		m.Kind = MacroFunction
		body = m.readParams(&args[0], body)
	}
	m.Body = body
	p.macros.Define(m)
}

// readParams parses a parameter list starting at "(" and returns the
// tokens after ")".
func (m *Macro) readParams(name *lexer.Token, toks []lexer.Token) []lexer.Token {
	expect := func(i int, s string) int {
		if i >= len(toks) || !toks[i].Is(s) {
			panic(name.Errorf("expected '%s' in parameter list of macro '%s'", s, m.Name))
		}
		return i + 1
	}

	i := 1
	if i < len(toks) && toks[i].Is(")") {
		return toks[i+1:]
	}
	for {
		if i >= len(toks) {
			panic(name.Errorf("missing ')' in parameter list of macro '%s'", m.Name))
		}
		t := toks[i]
		if t.Is("...") {
			m.VaArgs = "__VA_ARGS__"
			return toks[expect(i+1, ")"):]
		}
		if t.Kind != lexer.Ident {
			panic(t.Errorf("expected parameter name"))
		}
		if i+1 < len(toks) && toks[i+1].Is("...") {
			m.VaArgs = t.Text
			return toks[expect(i+2, ")"):]
		}
		m.Params = append(m.Params, t.Text)
		i++
		if i < len(toks) && toks[i].Is(")") {
			return toks[i+1:]
		}
		i = expect(i, ",")
	}
}

// includeName reads "file" or <file> from toks.
func includeName(at *lexer.Token, toks []lexer.Token) (string, IncludeKind) {
	if len(toks) > 0 && toks[0].Kind == lexer.Str && strings.HasPrefix(toks[0].Text, "\"") {
		return toks[0].Text[1 : len(toks[0].Text)-1], IncludeQuoted
	}
	if len(toks) > 0 && toks[0].Is("<") {
		for i := 1; i < len(toks); i++ {
			if toks[i].Is(">") {
				return joinTokens(toks[1:i]), IncludeAngled
			}
		}
		panic(toks[0].Errorf("expected '>'"))
	}
	panic(at.Errorf("expected \"FILENAME\" or <FILENAME>"))
}

// include handles #include.
func (p *Preprocessor) include(s *stream, hash, at *lexer.Token, args []lexer.Token) {
	if len(args) > 0 && args[0].Kind == lexer.Ident {
		args = p.expandAll(args)
	}
	name, kind := includeName(at, args)
	path, err := p.resolver.Resolve(name, kind, filePath(hash))
	if err != nil {
		panic(args[0].Errorf("%v", err))
	}
	p.includeFile(s, path, &args[0])
}

func (p *Preprocessor) includeFile(s *stream, path string, at *lexer.Token) {
	if p.resolver.IsAlreadyIncluded(path) {
		return
	}
	if guard, ok := p.includeGuards[canonical(path)]; ok && p.macros.IsDefined(guard) {
		return
	}

	data, err := ReadInclude(path)
	if err != nil {
		panic(at.Errorf("%s: cannot open file: %v", path, err))
	}
	file := lexer.NewFile(path, len(p.files), lexer.Normalize(string(data)))
	p.files = append(p.files, file)
	toks, err := lexer.Tokenize(file)
	check(err)

	if guard := detectIncludeGuard(toks); guard != "" {
		p.includeGuards[canonical(path)] = guard
	}
	if err := p.resolver.PushFile(path); err != nil {
		panic(at.Errorf("%v", err))
	}
	s.push(toks[:len(toks)-1], false, path)
}

func isHash(t *lexer.Token) bool {
	return t.AtBOL && t.Is("#")
}

// detectIncludeGuard returns the guard macro of a file wrapped entirely
// in #ifndef X / #define X ... #endif, or "".
func detectIncludeGuard(toks []lexer.Token) string {
	if len(toks) < 6 || !isHash(&toks[0]) || !toks[1].Is("ifndef") || toks[2].Kind != lexer.Ident ||
		!isHash(&toks[3]) || !toks[4].Is("define") || toks[5].Text != toks[2].Text {
		return ""
	}
	guard := toks[2].Text

	depth := 0
	for i := 0; i+1 < len(toks); i++ {
		if !isHash(&toks[i]) || toks[i+1].AtBOL {
			continue
		}
		d := &toks[i+1]
		switch {
		case d.Is("if"), d.Is("ifdef"), d.Is("ifndef"):
			depth++
		case d.Is("endif"):
			depth--
			if depth == 0 {
				j := i + 2
				for j < len(toks) && !toks[j].AtBOL {
					j++
				}
				if j < len(toks) && toks[j].Kind == lexer.EOF {
					return guard
				}
				return ""
			}
		}
	}
	return ""
}

// lineDirective handles #line and GNU line markers: the line after the
// directive gets the given number, and optionally a new file name.
func (p *Preprocessor) lineDirective(s *stream, hash *lexer.Token, args []lexer.Token) {
	toks := p.expandAll(args)
	if len(toks) == 0 || toks[0].Kind != lexer.PPNum {
		panic(hash.Errorf("invalid line directive"))
	}
	check(lexer.ConvertNumber(&toks[0]))
	if !ctypes.IsInteger(toks[0].Ty) {
		panic(toks[0].Errorf("invalid line number"))
	}
	var name string
	if len(toks) > 1 && toks[1].Kind == lexer.Str {
		name = string(toks[1].Str[:len(toks[1].Str)-1])
	}

	f := s.top()
	if f == nil || f.macro || f.toks[f.pos].File != hash.File {
		return
	}
	delta := int(toks[0].Val) - (hash.Line + 1)
	var renamed *lexer.File
	for i := f.pos; i < len(f.toks); i++ {
		t := &f.toks[i]
		if t.File != hash.File {
			continue
		}
		t.Line += delta
		if name != "" {
			if renamed == nil {
				renamed = t.File.Renamed(name)
			}
			t.File = renamed
		}
	}
}

// Render spells a token sequence as preprocessed source text, the output
// of -E.
func Render(toks []lexer.Token) string {
	var sb strings.Builder
	for i, t := range toks {
		if t.Kind == lexer.EOF {
			break
		}
		if i > 0 && t.AtBOL {
			sb.WriteByte('\n')
		} else if i > 0 && t.HasSpace {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.Text)
	}
	sb.WriteByte('\n')
	return sb.String()
}
