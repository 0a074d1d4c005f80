// Package lexer converts C source text into preprocessing tokens and,
// after preprocessing, reclassifies them into keywords and typed literals.
package lexer

import (
	"fmt"
	"os"
	"strings"

	"github.com/raymyers/ccx64/pkg/ctypes"
	"github.com/raymyers/ccx64/pkg/diag"
)

// Multi-character punctuators, longest first.
var punctuators = []string{
	"<<=", ">>=", "...", "==", "!=", "<=", ">=", "->", "+=",
	"-=", "*=", "/=", "++", "--", "%=", "&=", "|=", "^=", "&&",
	"||", "<<", ">>", "##",
}

// Lexer tokenizes one source file
type Lexer struct {
	file     *File
	input    string
	pos      int
	atBOL    bool
	hasSpace bool
	toks     []Token
}

// New creates a new Lexer for the given file
func New(file *File) *Lexer {
	if !strings.HasSuffix(file.Contents, "\n") {
		file.Contents += "\n"
	}
	return &Lexer{file: file, input: file.Contents, atBOL: true}
}

// Tokenize converts the file contents into a token slice terminated by an
// EOF token.
func Tokenize(file *File) (toks []Token, err error) {
	defer diag.Bailout(&err)
	return New(file).run(), nil
}

// TokenizeFile reads, normalises and tokenizes path.
func TokenizeFile(path string, index int) ([]Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	return Tokenize(NewFile(path, index, Normalize(string(data))))
}

// TokenizeString tokenizes an in-memory buffer.
func TokenizeString(name, src string) ([]Token, error) {
	return Tokenize(NewFile(name, 0, Normalize(src)))
}

func (l *Lexer) errorAt(off int, format string, args ...any) {
	panic(diag.At(l.file.Name, l.input, l.file.LineOf(off), off, format, args...))
}

func (l *Lexer) add(kind Kind, start, end int) *Token {
	l.toks = append(l.toks, Token{
		Kind:     kind,
		Text:     l.input[start:end],
		Offset:   start,
		File:     l.file,
		AtBOL:    l.atBOL,
		HasSpace: l.hasSpace,
	})
	l.atBOL, l.hasSpace = false, false
	l.pos = end
	return &l.toks[len(l.toks)-1]
}

func (l *Lexer) run() []Token {
	for l.pos < len(l.input) {
		p := l.pos
		c := l.input[p]
		rest := l.input[p:]

		switch {
		case strings.HasPrefix(rest, "//"):
			l.pos += 2
			for l.input[l.pos] != '\n' {
				l.pos++
			}
			l.hasSpace = true

		case strings.HasPrefix(rest, "/*"):
			end := strings.Index(rest[2:], "*/")
			if end < 0 {
				l.errorAt(p, "unclosed block comment")
			}
			l.pos = p + 2 + end + 2
			l.hasSpace = true

		case c == '\n':
			l.pos++
			l.atBOL, l.hasSpace = true, false

		case isSpace(c):
			l.pos++
			l.hasSpace = true

		case isDigit(c) || (c == '.' && p+1 < len(l.input) && isDigit(l.input[p+1])):
			l.add(PPNum, p, l.scanPPNumber(p))

		case c == '"':
			l.readString(p, p)

		case c == '\'':
			l.readChar(p, p)

		case strings.HasPrefix(rest, "u8\""):
			l.readString(p, p+2)

		case isIdentStart(c):
			end := p + 1
			for end < len(l.input) && isIdentChar(l.input[end]) {
				end++
			}
			l.add(Ident, p, end)

		default:
			if n := punctLen(rest); n > 0 {
				l.add(Punct, p, p+n)
				continue
			}
			l.errorAt(p, "invalid token")
		}
	}
	l.toks = append(l.toks, Token{Kind: EOF, Offset: len(l.input), File: l.file, AtBOL: true})
	l.assignLines()
	return l.toks
}

// assignLines resolves each token's offset to a line number.
func (l *Lexer) assignLines() {
	for i := range l.toks {
		l.toks[i].Line = l.file.LineOf(l.toks[i].Offset)
	}
}

func (l *Lexer) scanPPNumber(p int) int {
	s := l.input
	for {
		if p+1 < len(s) && strings.IndexByte("eEpP", s[p]) >= 0 && (s[p+1] == '+' || s[p+1] == '-') {
			p += 2
		} else if p < len(s) && (isIdentChar(s[p]) || s[p] == '.') {
			p++
		} else {
			return p
		}
	}
}

// readString scans a string literal whose opening quote is at quote.
func (l *Lexer) readString(start, quote int) {
	end := l.stringEnd(quote)
	var buf []byte
	for p := quote + 1; p < end; {
		if l.input[p] == '\\' {
			c, n := l.readEscape(p + 1)
			buf = append(buf, c)
			p = n
		} else {
			buf = append(buf, l.input[p])
			p++
		}
	}
	buf = append(buf, 0)
	tok := l.add(Str, start, end+1)
	tok.Str = buf
	tok.Ty = ctypes.Array(ctypes.Char(), int64(len(buf)))
}

func (l *Lexer) stringEnd(quote int) int {
	p := quote + 1
	for ; l.input[p] != '"'; p++ {
		if l.input[p] == '\n' || p+1 >= len(l.input) {
			l.errorAt(quote, "unclosed string literal")
		}
		if l.input[p] == '\\' {
			p++
		}
	}
	return p
}

func (l *Lexer) readChar(start, quote int) {
	p := quote + 1
	if l.input[p] == '\n' {
		l.errorAt(quote, "unclosed char literal")
	}
	var c byte
	if l.input[p] == '\\' {
		c, p = l.readEscape(p + 1)
	} else {
		c = l.input[p]
		p++
	}
	end := strings.IndexByte(l.input[p:], '\'')
	if end < 0 || strings.IndexByte(l.input[p:p+end], '\n') >= 0 {
		l.errorAt(quote, "unclosed char literal")
	}
	tok := l.add(Num, start, p+end+1)
	tok.Val = int64(int8(c))
	tok.Ty = ctypes.Int()
}

// readEscape decodes the escape sequence starting after the backslash at p.
// It returns the byte value and the offset just past the sequence.
func (l *Lexer) readEscape(p int) (byte, int) {
	s := l.input
	if isOctal(s[p]) {
		c := int(s[p] - '0')
		p++
		for i := 0; i < 2 && isOctal(s[p]); i++ {
			c = c<<3 + int(s[p]-'0')
			p++
		}
		return byte(c), p
	}
	if s[p] == 'x' {
		p++
		if !isHex(s[p]) {
			l.errorAt(p, "invalid hex escape sequence")
		}
		c := 0
		for ; isHex(s[p]); p++ {
			c = c<<4 + hexVal(s[p])
		}
		return byte(c), p
	}
	switch s[p] {
	case 'a':
		return '\a', p + 1
	case 'b':
		return '\b', p + 1
	case 't':
		return '\t', p + 1
	case 'n':
		return '\n', p + 1
	case 'v':
		return '\v', p + 1
	case 'f':
		return '\f', p + 1
	case 'r':
		return '\r', p + 1
	case 'e':
		// GNU extension
		return 27, p + 1
	}
	return s[p], p + 1
}

func punctLen(s string) int {
	for _, p := range punctuators {
		if strings.HasPrefix(s, p) {
			return len(p)
		}
	}
	if isPunct(s[0]) {
		return 1
	}
	return 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\v' || c == '\f' || c == '\r'
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func isOctal(c byte) bool { return '0' <= c && c <= '7' }

func isHex(c byte) bool {
	return isDigit(c) || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func hexVal(c byte) int {
	switch {
	case isDigit(c):
		return int(c - '0')
	case 'a' <= c && c <= 'f':
		return int(c-'a') + 10
	}
	return int(c-'A') + 10
}

func isIdentStart(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || c == '_'
}

func isIdentChar(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isPunct(c byte) bool {
	return strings.IndexByte("!\"#%&'()*+,-./:;<=>?[\\]^{|}~", c) >= 0
}
