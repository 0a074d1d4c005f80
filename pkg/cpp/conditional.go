// conditional.go implements conditional compilation (#if, #ifdef, etc.)
package cpp

import (
	"github.com/raymyers/ccx64/pkg/ctypes"
	"github.com/raymyers/ccx64/pkg/diag"
	"github.com/raymyers/ccx64/pkg/lexer"
)

// ConditionState tracks one level of nested conditional compilation.
type ConditionState struct {
	active    bool         // current branch is included
	seenElse  bool         // #else has been seen for this level
	anyActive bool         // some branch at this level was included
	tok       *lexer.Token // the opening directive
}

// ConditionalProcessor handles conditional compilation directives.
type ConditionalProcessor struct {
	macros *MacroTable
	stack  []ConditionState

	// expand macro-expands a #if expression; hasInclude answers
	// __has_include.
	expand     func([]lexer.Token) []lexer.Token
	hasInclude func(name string, kind IncludeKind, from *lexer.Token) bool
}

// NewConditionalProcessor creates a new conditional processor.
func NewConditionalProcessor(macros *MacroTable) *ConditionalProcessor {
	return &ConditionalProcessor{
		macros:     macros,
		expand:     func(t []lexer.Token) []lexer.Token { return t },
		hasInclude: func(string, IncludeKind, *lexer.Token) bool { return false },
	}
}

// IsActive reports whether the current location is included.
func (cp *ConditionalProcessor) IsActive() bool {
	for _, state := range cp.stack {
		if !state.active {
			return false
		}
	}
	return true
}

func (cp *ConditionalProcessor) parentActive() bool {
	for i := 0; i < len(cp.stack)-1; i++ {
		if !cp.stack[i].active {
			return false
		}
	}
	return true
}

func (cp *ConditionalProcessor) push(tok *lexer.Token, active bool) {
	cp.stack = append(cp.stack, ConditionState{active: active, anyActive: active, tok: tok})
}

// ProcessIf handles #if. In an excluded region the expression is not
// evaluated.
func (cp *ConditionalProcessor) ProcessIf(tok *lexer.Token, expr []lexer.Token) error {
	if !cp.IsActive() {
		cp.push(tok, false)
		return nil
	}
	result, err := cp.Evaluate(tok, expr)
	if err != nil {
		return err
	}
	cp.push(tok, result != 0)
	return nil
}

// ProcessIfdef handles #ifdef.
func (cp *ConditionalProcessor) ProcessIfdef(tok *lexer.Token, name string) error {
	cp.push(tok, cp.IsActive() && cp.macros.IsDefined(name))
	return nil
}

// ProcessIfndef handles #ifndef.
func (cp *ConditionalProcessor) ProcessIfndef(tok *lexer.Token, name string) error {
	cp.push(tok, cp.IsActive() && !cp.macros.IsDefined(name))
	return nil
}

// ProcessElif handles #elif.
func (cp *ConditionalProcessor) ProcessElif(tok *lexer.Token, expr []lexer.Token) error {
	if len(cp.stack) == 0 {
		return tok.Errorf("#elif without #if")
	}
	state := &cp.stack[len(cp.stack)-1]
	if state.seenElse {
		return tok.Errorf("#elif after #else")
	}
	if state.anyActive || !cp.parentActive() {
		state.active = false
		return nil
	}
	result, err := cp.Evaluate(tok, expr)
	if err != nil {
		return err
	}
	state.active = result != 0
	state.anyActive = state.active
	return nil
}

// ProcessElse handles #else.
func (cp *ConditionalProcessor) ProcessElse(tok *lexer.Token) error {
	if len(cp.stack) == 0 {
		return tok.Errorf("#else without #if")
	}
	state := &cp.stack[len(cp.stack)-1]
	if state.seenElse {
		return tok.Errorf("#else after #else")
	}
	state.seenElse = true
	state.active = cp.parentActive() && !state.anyActive
	if state.active {
		state.anyActive = true
	}
	return nil
}

// ProcessEndif handles #endif.
func (cp *ConditionalProcessor) ProcessEndif(tok *lexer.Token) error {
	if len(cp.stack) == 0 {
		return tok.Errorf("#endif without #if")
	}
	cp.stack = cp.stack[:len(cp.stack)-1]
	return nil
}

// Depth returns the nesting depth of conditionals.
func (cp *ConditionalProcessor) Depth() int {
	return len(cp.stack)
}

// CheckBalanced reports the innermost unclosed conditional.
func (cp *ConditionalProcessor) CheckBalanced() error {
	if n := len(cp.stack); n > 0 {
		return cp.stack[n-1].tok.Errorf("unterminated conditional directive")
	}
	return nil
}

// Evaluate computes the value of a #if expression: defined and
// __has_include are resolved, macros expanded, remaining identifiers
// read as 0.
func (cp *ConditionalProcessor) Evaluate(dir *lexer.Token, expr []lexer.Token) (val int64, err error) {
	defer diag.Bailout(&err)

	toks := cp.expand(cp.resolveDefined(dir, expr))
	for i := range toks {
		switch toks[i].Kind {
		case lexer.Ident, lexer.Keyword:
			toks[i].Kind = lexer.Num
			toks[i].Val = 0
		case lexer.PPNum:
			if err := lexer.ConvertNumber(&toks[i]); err != nil {
				return 0, err
			}
			if ctypes.IsFloat(toks[i].Ty) {
				return 0, toks[i].Errorf("floating constant in preprocessor expression")
			}
		}
	}
	if len(toks) == 0 {
		return 0, dir.Errorf("no expression")
	}

	p := &exprParser{toks: toks, dir: dir}
	val = p.conditional()
	if p.pos < len(p.toks) {
		return 0, p.toks[p.pos].Errorf("extra token")
	}
	return val, nil
}

// resolveDefined replaces "defined X", "defined(X)" and __has_include
// with 1 or 0 before macro expansion.
func (cp *ConditionalProcessor) resolveDefined(dir *lexer.Token, expr []lexer.Token) []lexer.Token {
	var out []lexer.Token
	for i := 0; i < len(expr); i++ {
		t := expr[i]
		switch {
		case t.Kind == lexer.Ident && t.Text == "defined":
			paren := i+1 < len(expr) && expr[i+1].Is("(")
			j := i + 1
			if paren {
				j++
			}
			if j >= len(expr) || expr[j].Kind != lexer.Ident {
				panic(t.Errorf("macro name must be an identifier"))
			}
			defined := cp.macros.IsDefined(expr[j].Text)
			if paren {
				j++
				if j >= len(expr) || !expr[j].Is(")") {
					panic(t.Errorf("expected ')' after defined"))
				}
			}
			out = append(out, boolToken(&t, defined))
			i = j

		case t.Kind == lexer.Ident && t.Text == "__has_include":
			if i+1 >= len(expr) || !expr[i+1].Is("(") {
				panic(t.Errorf("expected '(' after __has_include"))
			}
			end := matchParen(expr, i+1)
			if end < 0 {
				panic(t.Errorf("expected ')' after __has_include"))
			}
			name, kind := includeName(&t, expr[i+2:end])
			out = append(out, boolToken(&t, cp.hasInclude(name, kind, &t)))
			i = end

		default:
			out = append(out, t)
		}
	}
	return out
}

func boolToken(at *lexer.Token, b bool) lexer.Token {
	t := *at
	t.Kind = lexer.Num
	t.Text = "0"
	t.Val = 0
	if b {
		t.Text = "1"
		t.Val = 1
	}
	return t
}

// exprParser evaluates preprocessor constant expressions. Errors are
// raised as *diag.Error panics and recovered by Evaluate.
type exprParser struct {
	toks []lexer.Token
	pos  int
	dir  *lexer.Token
}

func (p *exprParser) peek() *lexer.Token {
	if p.pos >= len(p.toks) {
		return nil
	}
	return &p.toks[p.pos]
}

func (p *exprParser) match(op string) bool {
	if t := p.peek(); t != nil && t.Kind == lexer.Punct && t.Text == op {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) errorf(format string, args ...any) {
	if t := p.peek(); t != nil {
		panic(t.Errorf(format, args...))
	}
	panic(p.dir.Errorf(format, args...))
}

// Precedence: conditional -> logicalOr -> logicalAnd -> bitwiseOr -> bitwiseXor -> bitwiseAnd
//             -> equality -> relational -> shift -> additive -> multiplicative -> unary -> primary

func (p *exprParser) conditional() int64 {
	cond := p.logicalOr()
	if !p.match("?") {
		return cond
	}
	then := p.conditional()
	if !p.match(":") {
		p.errorf("expected ':' in conditional expression")
	}
	els := p.conditional()
	if cond != 0 {
		return then
	}
	return els
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (p *exprParser) logicalOr() int64 {
	left := p.logicalAnd()
	for p.match("||") {
		right := p.logicalAnd()
		left = b2i(left != 0 || right != 0)
	}
	return left
}

func (p *exprParser) logicalAnd() int64 {
	left := p.bitwiseOr()
	for p.match("&&") {
		right := p.bitwiseOr()
		left = b2i(left != 0 && right != 0)
	}
	return left
}

func (p *exprParser) bitwiseOr() int64 {
	left := p.bitwiseXor()
	for p.match("|") {
		left |= p.bitwiseXor()
	}
	return left
}

func (p *exprParser) bitwiseXor() int64 {
	left := p.bitwiseAnd()
	for p.match("^") {
		left ^= p.bitwiseAnd()
	}
	return left
}

func (p *exprParser) bitwiseAnd() int64 {
	left := p.equality()
	for p.match("&") {
		left &= p.equality()
	}
	return left
}

func (p *exprParser) equality() int64 {
	left := p.relational()
	for {
		switch {
		case p.match("=="):
			left = b2i(left == p.relational())
		case p.match("!="):
			left = b2i(left != p.relational())
		default:
			return left
		}
	}
}

func (p *exprParser) relational() int64 {
	left := p.shift()
	for {
		switch {
		case p.match("<="):
			left = b2i(left <= p.shift())
		case p.match(">="):
			left = b2i(left >= p.shift())
		case p.match("<"):
			left = b2i(left < p.shift())
		case p.match(">"):
			left = b2i(left > p.shift())
		default:
			return left
		}
	}
}

func (p *exprParser) shift() int64 {
	left := p.additive()
	for {
		switch {
		case p.match("<<"):
			left <<= uint64(p.additive())
		case p.match(">>"):
			left >>= uint64(p.additive())
		default:
			return left
		}
	}
}

func (p *exprParser) additive() int64 {
	left := p.multiplicative()
	for {
		switch {
		case p.match("+"):
			left += p.multiplicative()
		case p.match("-"):
			left -= p.multiplicative()
		default:
			return left
		}
	}
}

func (p *exprParser) multiplicative() int64 {
	left := p.unary()
	for {
		switch {
		case p.match("*"):
			left *= p.unary()
		case p.match("/"), p.match("%"):
			op := p.toks[p.pos-1]
			right := p.unary()
			if right == 0 {
				panic(op.Errorf("division by zero in preprocessor expression"))
			}
			if op.Text == "/" {
				left /= right
			} else {
				left %= right
			}
		default:
			return left
		}
	}
}

func (p *exprParser) unary() int64 {
	switch {
	case p.match("!"):
		return b2i(p.unary() == 0)
	case p.match("-"):
		return -p.unary()
	case p.match("+"):
		return p.unary()
	case p.match("~"):
		return ^p.unary()
	}
	return p.primary()
}

func (p *exprParser) primary() int64 {
	if p.match("(") {
		val := p.conditional()
		if !p.match(")") {
			p.errorf("expected ')'")
		}
		return val
	}
	t := p.peek()
	if t != nil && t.Kind == lexer.Num {
		p.pos++
		return t.Val
	}
	p.errorf("invalid preprocessor expression")
	return 0
}
